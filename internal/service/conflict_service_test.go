package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careloop/staffing-api/internal/dto"
	"github.com/careloop/staffing-api/internal/models"
)

type mockAvailabilityRepo struct {
	weekly     []models.WeeklyAvailability
	exceptions []models.AvailabilityException
	weeklyErr  error
}

func (m *mockAvailabilityRepo) ListWeekly(ctx context.Context, tenant models.TenantContext, staffID string) ([]models.WeeklyAvailability, error) {
	if m.weeklyErr != nil {
		return nil, m.weeklyErr
	}
	return m.weekly, nil
}

func (m *mockAvailabilityRepo) ListExceptions(ctx context.Context, tenant models.TenantContext, staffID string, from, to time.Time) ([]models.AvailabilityException, error) {
	return m.exceptions, nil
}

type mockBaselineRepo struct {
	entries []models.BaselineScheduleEntry
}

func (m *mockBaselineRepo) ListByTeacher(ctx context.Context, tenant models.TenantContext, teacherID string) ([]models.BaselineScheduleEntry, error) {
	return m.entries, nil
}

type mockTimeOffRepo struct {
	requests []models.TimeOffRequest
}

func (m *mockTimeOffRepo) ListApprovedByStaff(ctx context.Context, tenant models.TenantContext, staffID string, from, to time.Time) ([]models.TimeOffRequest, error) {
	return m.requests, nil
}

type mockActiveAssignmentRepo struct {
	covering map[string]models.CoveringRef
}

func (m *mockActiveAssignmentRepo) ListActiveByStaffRange(ctx context.Context, tenant models.TenantContext, staffID string, from, to time.Time) ([]models.Assignment, map[string]models.CoveringRef, error) {
	if m.covering == nil {
		return nil, map[string]models.CoveringRef{}, nil
	}
	return nil, m.covering, nil
}

var testTenant = models.TenantContext{SchoolID: "school-1", ActorUserID: "user-1"}

// mustDate is a Monday; the weekly fixtures below key off ISO day 1.
func mustDate(t *testing.T, raw string) time.Time {
	t.Helper()
	parsed, err := models.ParseShiftDate(raw)
	require.NoError(t, err)
	return parsed
}

func newTestConflictService(availability *mockAvailabilityRepo, baseline *mockBaselineRepo, timeOff *mockTimeOffRepo, assignments *mockActiveAssignmentRepo) *ConflictService {
	if availability == nil {
		availability = &mockAvailabilityRepo{}
	}
	if baseline == nil {
		baseline = &mockBaselineRepo{}
	}
	if timeOff == nil {
		timeOff = &mockTimeOffRepo{}
	}
	if assignments == nil {
		assignments = &mockActiveAssignmentRepo{}
	}
	sources := NewConstraintSources(availability, baseline, timeOff, assignments)
	return NewConflictService(sources, nil, nil)
}

func TestEvaluateShiftPrecedence(t *testing.T) {
	monday := mustDate(t, "2026-09-07")
	key := models.NewShiftKey(monday, "slot-am", "")
	slot := key.SlotKey()

	tests := []struct {
		name       string
		snapshot   candidateSnapshot
		wantStatus models.ShiftStatus
		wantMsg    string
	}{
		{
			name:       "no weekly row means unavailable",
			snapshot:   candidateSnapshot{},
			wantStatus: models.ShiftStatusUnavailable,
			wantMsg:    msgMarkedUnavailable,
		},
		{
			name: "weekly available",
			snapshot: candidateSnapshot{
				weekly: map[models.RecurringKey]bool{key.Recurring(): true},
			},
			wantStatus: models.ShiftStatusAvailable,
		},
		{
			name: "exception overrides weekly available",
			snapshot: candidateSnapshot{
				weekly:     map[models.RecurringKey]bool{key.Recurring(): true},
				exceptions: map[string]bool{slot: false},
			},
			wantStatus: models.ShiftStatusUnavailable,
			wantMsg:    msgMarkedUnavailable,
		},
		{
			name: "exception overrides weekly unavailable",
			snapshot: candidateSnapshot{
				weekly:     map[models.RecurringKey]bool{key.Recurring(): false},
				exceptions: map[string]bool{slot: true},
			},
			wantStatus: models.ShiftStatusAvailable,
		},
		{
			name: "unavailability outranks teaching conflict",
			snapshot: candidateSnapshot{
				weekly:   map[models.RecurringKey]bool{key.Recurring(): false},
				teaching: map[string]models.ShiftKey{slot: key},
			},
			wantStatus: models.ShiftStatusUnavailable,
			wantMsg:    msgMarkedUnavailable,
		},
		{
			name: "teaching conflict outranks sub conflict",
			snapshot: candidateSnapshot{
				weekly:   map[models.RecurringKey]bool{key.Recurring(): true},
				teaching: map[string]models.ShiftKey{slot: key},
				covering: map[string]models.CoveringRef{slot: {TeacherID: "t2", TeacherName: "Dana"}},
			},
			wantStatus: models.ShiftStatusConflictTeaching,
			wantMsg:    msgTeachingConflict,
		},
		{
			name: "sub conflict outranks time off",
			snapshot: candidateSnapshot{
				weekly:   map[models.RecurringKey]bool{key.Recurring(): true},
				covering: map[string]models.CoveringRef{slot: {TeacherID: "t2", TeacherName: "Dana", ClassroomID: "room-b"}},
				timeOff:  map[string]struct{}{key.Date.Format(models.DateLayout): {}},
			},
			wantStatus: models.ShiftStatusConflictSub,
			wantMsg:    "Already covering Dana",
		},
		{
			name: "time off marks day unavailable",
			snapshot: candidateSnapshot{
				weekly:  map[models.RecurringKey]bool{key.Recurring(): true},
				timeOff: map[string]struct{}{key.Date.Format(models.DateLayout): {}},
			},
			wantStatus: models.ShiftStatusUnavailable,
			wantMsg:    msgHasTimeOff,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			verdict := evaluateShift(&tc.snapshot, key)
			assert.Equal(t, tc.wantStatus, verdict.Status)
			assert.Equal(t, tc.wantMsg, verdict.Message)
		})
	}
}

func TestEvaluateShiftSubConflictMetadata(t *testing.T) {
	monday := mustDate(t, "2026-09-07")
	key := models.NewShiftKey(monday, "slot-am", "")
	snapshot := &candidateSnapshot{
		weekly: map[models.RecurringKey]bool{key.Recurring(): true},
		covering: map[string]models.CoveringRef{
			key.SlotKey(): {TeacherID: "t2", TeacherName: "Dana", ClassroomID: "room-b"},
		},
	}

	verdict := evaluateShift(snapshot, key)

	require.Equal(t, models.ShiftStatusConflictSub, verdict.Status)
	assert.Equal(t, "t2", verdict.Metadata["coveredTeacherId"])
	assert.Equal(t, "Dana", verdict.Metadata["coveredTeacherName"])
	assert.Equal(t, "room-b", verdict.Metadata["classroomId"])
}

func TestEvaluateShiftIgnoresClassroomGranularity(t *testing.T) {
	monday := mustDate(t, "2026-09-07")
	teachingKey := models.NewShiftKey(monday, "slot-am", "room-a")
	checkedKey := models.NewShiftKey(monday, "slot-am", "room-b")

	snapshot := &candidateSnapshot{
		weekly:   map[models.RecurringKey]bool{checkedKey.Recurring(): true},
		teaching: map[string]models.ShiftKey{teachingKey.SlotKey(): teachingKey},
	}

	// A teacher in room-a cannot simultaneously cover room-b at the same slot.
	verdict := evaluateShift(snapshot, checkedKey)
	assert.Equal(t, models.ShiftStatusConflictTeaching, verdict.Status)
}

func TestComputeConflictsPreservesInputOrder(t *testing.T) {
	svc := newTestConflictService(
		&mockAvailabilityRepo{weekly: []models.WeeklyAvailability{
			{StaffID: "c1", DayOfWeek: 1, TimeSlotID: "slot-am", Available: true},
		}},
		nil, nil, nil,
	)

	req := dto.ComputeConflictsRequest{Checks: []dto.ConflictCheck{
		{CandidateID: "c2", Date: "2026-09-07", TimeSlotID: "slot-am"},
		{CandidateID: "c1", Date: "2026-09-07", TimeSlotID: "slot-am"},
		{CandidateID: "c2", Date: "2026-09-08", TimeSlotID: "slot-am"},
	}}

	resp, err := svc.ComputeConflicts(context.Background(), testTenant, req)

	require.NoError(t, err)
	require.Len(t, resp.Results, 3)
	assert.Equal(t, "c2", resp.Results[0].CandidateID)
	assert.Equal(t, "2026-09-07", resp.Results[0].Date)
	assert.Equal(t, "c1", resp.Results[1].CandidateID)
	assert.Equal(t, "c2", resp.Results[2].CandidateID)
	assert.Equal(t, "2026-09-08", resp.Results[2].Date)
}

func TestComputeConflictsRejectsEmptyBatch(t *testing.T) {
	svc := newTestConflictService(nil, nil, nil, nil)

	_, err := svc.ComputeConflicts(context.Background(), testTenant, dto.ComputeConflictsRequest{})

	require.Error(t, err)
}

func TestComputeConflictsFailsLoudlyOnSourceError(t *testing.T) {
	svc := newTestConflictService(
		&mockAvailabilityRepo{weeklyErr: assert.AnError},
		nil, nil, nil,
	)

	req := dto.ComputeConflictsRequest{Checks: []dto.ConflictCheck{
		{CandidateID: "c1", Date: "2026-09-07", TimeSlotID: "slot-am"},
	}}

	_, err := svc.ComputeConflicts(context.Background(), testTenant, req)

	require.Error(t, err)
}

func TestEvaluateCandidateExpandsBaselineAcrossRange(t *testing.T) {
	svc := newTestConflictService(
		&mockAvailabilityRepo{weekly: []models.WeeklyAvailability{
			{DayOfWeek: 1, TimeSlotID: "slot-am", Available: true},
			{DayOfWeek: 2, TimeSlotID: "slot-am", Available: true},
		}},
		&mockBaselineRepo{entries: []models.BaselineScheduleEntry{
			{DayOfWeek: 1, TimeSlotID: "slot-am", ClassroomID: "room-a"},
		}},
		nil, nil,
	)

	monday := mustDate(t, "2026-09-07")
	tuesday := mustDate(t, "2026-09-08")
	keys := []models.ShiftKey{
		models.NewShiftKey(monday, "slot-am", ""),
		models.NewShiftKey(tuesday, "slot-am", ""),
	}

	verdicts, err := svc.EvaluateCandidate(context.Background(), testTenant, "c1", monday, tuesday, keys)

	require.NoError(t, err)
	require.Len(t, verdicts, 2)
	assert.Equal(t, models.ShiftStatusConflictTeaching, verdicts[0].Status)
	assert.Equal(t, models.ShiftStatusAvailable, verdicts[1].Status)
}
