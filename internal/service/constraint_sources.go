package service

import (
	"context"
	"time"

	"github.com/careloop/staffing-api/internal/models"
	appErrors "github.com/careloop/staffing-api/pkg/errors"
)

type availabilityReader interface {
	ListWeekly(ctx context.Context, tenant models.TenantContext, staffID string) ([]models.WeeklyAvailability, error)
	ListExceptions(ctx context.Context, tenant models.TenantContext, staffID string, from, to time.Time) ([]models.AvailabilityException, error)
}

type baselineReader interface {
	ListByTeacher(ctx context.Context, tenant models.TenantContext, teacherID string) ([]models.BaselineScheduleEntry, error)
}

type timeOffReader interface {
	ListApprovedByStaff(ctx context.Context, tenant models.TenantContext, staffID string, from, to time.Time) ([]models.TimeOffRequest, error)
}

type activeAssignmentReader interface {
	ListActiveByStaffRange(ctx context.Context, tenant models.TenantContext, staffID string, from, to time.Time) ([]models.Assignment, map[string]models.CoveringRef, error)
}

// ConstraintSources is the read-only query surface over the independently
// mutable constraint sets. Every method fails loudly: a query error must
// abort the evaluation, because treating it as "no conflict" could
// double-book someone.
type ConstraintSources struct {
	availability availabilityReader
	baseline     baselineReader
	timeOff      timeOffReader
	assignments  activeAssignmentReader
}

// NewConstraintSources wires the adapter facade.
func NewConstraintSources(availability availabilityReader, baseline baselineReader, timeOff timeOffReader, assignments activeAssignmentReader) *ConstraintSources {
	return &ConstraintSources{
		availability: availability,
		baseline:     baseline,
		timeOff:      timeOff,
		assignments:  assignments,
	}
}

// WeeklyAvailability returns the recurring layer keyed by (day, slot).
func (s *ConstraintSources) WeeklyAvailability(ctx context.Context, tenant models.TenantContext, staffID string) (map[models.RecurringKey]bool, error) {
	rows, err := s.availability.ListWeekly(ctx, tenant, staffID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "failed to load weekly availability")
	}
	result := make(map[models.RecurringKey]bool, len(rows))
	for _, row := range rows {
		result[models.RecurringKey{DayOfWeek: row.DayOfWeek, TimeSlotID: row.TimeSlotID}] = row.Available
	}
	return result, nil
}

// DateExceptions returns date-specific overrides keyed by date+slot. A missing
// key defers to the weekly layer, it never means unavailable.
func (s *ConstraintSources) DateExceptions(ctx context.Context, tenant models.TenantContext, staffID string, from, to time.Time) (map[string]bool, error) {
	rows, err := s.availability.ListExceptions(ctx, tenant, staffID, from, to)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "failed to load availability exceptions")
	}
	result := make(map[string]bool, len(rows))
	for _, row := range rows {
		key := models.NewShiftKey(row.Date, row.TimeSlotID, "")
		result[key.SlotKey()] = row.Available
	}
	return result, nil
}

// RegularTeachingLoad expands the candidate's own baseline commitments across
// the date range, keyed by date+slot.
func (s *ConstraintSources) RegularTeachingLoad(ctx context.Context, tenant models.TenantContext, staffID string, from, to time.Time) (map[string]models.ShiftKey, error) {
	entries, err := s.baseline.ListByTeacher(ctx, tenant, staffID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "failed to load baseline commitments")
	}
	byDay := make(map[int][]models.BaselineScheduleEntry)
	for _, entry := range entries {
		byDay[entry.DayOfWeek] = append(byDay[entry.DayOfWeek], entry)
	}

	result := make(map[string]models.ShiftKey)
	for date := from; !date.After(to); date = date.AddDate(0, 0, 1) {
		key := models.NewShiftKey(date, "", "")
		for _, entry := range byDay[key.DayOfWeek()] {
			shift := models.NewShiftKey(date, entry.TimeSlotID, entry.ClassroomID)
			result[shift.SlotKey()] = shift
		}
	}
	return result, nil
}

// ExistingTimeOff returns the dates inside the range on which the candidate
// has approved time off. Time off spans whole days, so membership is by date.
func (s *ConstraintSources) ExistingTimeOff(ctx context.Context, tenant models.TenantContext, staffID string, from, to time.Time) (map[string]struct{}, error) {
	requests, err := s.timeOff.ListApprovedByStaff(ctx, tenant, staffID, from, to)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "failed to load time off")
	}
	result := make(map[string]struct{})
	for _, req := range requests {
		for date := req.StartDate; !date.After(req.EndDate); date = date.AddDate(0, 0, 1) {
			result[date.Format(models.DateLayout)] = struct{}{}
		}
	}
	return result, nil
}

// ActiveAssignments returns the shifts the candidate is already covering,
// keyed by date+slot, with the covered teacher attached for messaging.
func (s *ConstraintSources) ActiveAssignments(ctx context.Context, tenant models.TenantContext, staffID string, from, to time.Time) (map[string]models.CoveringRef, error) {
	_, covering, err := s.assignments.ListActiveByStaffRange(ctx, tenant, staffID, from, to)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "failed to load active assignments")
	}
	return covering, nil
}
