package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/careloop/staffing-api/internal/dto"
	"github.com/careloop/staffing-api/internal/models"
	"github.com/careloop/staffing-api/internal/repository"
	appErrors "github.com/careloop/staffing-api/pkg/errors"
)

type assignmentStore interface {
	ListActiveByAbsence(ctx context.Context, tenant models.TenantContext, absenceID, staffID string) ([]models.Assignment, error)
	InsertBatch(ctx context.Context, exec sqlx.ExtContext, assignments []models.Assignment) ([]string, error)
	FindActiveHolder(ctx context.Context, tenant models.TenantContext, teacherID string, date time.Time, timeSlotID string) (*models.Assignment, error)
	CancelByID(ctx context.Context, exec sqlx.ExtContext, tenant models.TenantContext, id string) error
	CancelByWeekday(ctx context.Context, exec sqlx.ExtContext, tenant models.TenantContext, absenceID, staffID string, dayOfWeek int, timeSlotID, classroomID string) (int, error)
	CancelAllForAbsence(ctx context.Context, exec sqlx.ExtContext, tenant models.TenantContext, absenceID, staffID string) (int, error)
	MarkPartial(ctx context.Context, exec sqlx.ExtContext, tenant models.TenantContext, absenceID, staffID string) error
	CountActiveOnShift(ctx context.Context, exec sqlx.ExtContext, tenant models.TenantContext, teacherID string, date time.Time, timeSlotID string) (int, error)
	CreateEvent(ctx context.Context, exec sqlx.ExtContext, event *models.FlexAssignmentEvent) error
	CountActiveByEvent(ctx context.Context, exec sqlx.ExtContext, eventID string) (int, error)
	CancelEvent(ctx context.Context, exec sqlx.ExtContext, eventID string) error
}

type staffFetcher interface {
	FindByID(ctx context.Context, tenant models.TenantContext, id string) (*models.Staff, error)
}

type coverageUpdater interface {
	UpdateCoverage(ctx context.Context, exec sqlx.ExtContext, absenceID string, total, covered int, status models.AbsenceStatus) error
}

type auditRecorder interface {
	Record(tenant models.TenantContext, action, resource, resourceID string, detail interface{})
}

type cacheInvalidator interface {
	DeleteByPattern(ctx context.Context, pattern string) error
}

// AssignmentService creates and cancels substitute assignments. Every
// mutation re-validates the candidate's availability, runs inside one
// transaction, and leans on the storage layer's partial unique index as the
// final arbiter of double booking.
type AssignmentService struct {
	coverage    absenceResolver
	shifts      shiftLister
	staff       staffFetcher
	evaluator   candidateEvaluator
	assignments assignmentStore
	absences    coverageUpdater
	tx          txProvider
	audit       auditRecorder
	cache       cacheInvalidator
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewAssignmentService wires the assignment manager. audit and cache may be
// nil in tests.
func NewAssignmentService(
	coverage absenceResolver,
	shifts shiftLister,
	staff staffFetcher,
	evaluator candidateEvaluator,
	assignments assignmentStore,
	absences coverageUpdater,
	tx txProvider,
	audit auditRecorder,
	cache cacheInvalidator,
	validate *validator.Validate,
	logger *zap.Logger,
) *AssignmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssignmentService{
		coverage:    coverage,
		shifts:      shifts,
		staff:       staff,
		evaluator:   evaluator,
		assignments: assignments,
		absences:    absences,
		tx:          tx,
		audit:       audit,
		cache:       cache,
		validator:   validate,
		logger:      logger,
	}
}

// AssignShifts places one candidate onto the requested absence shifts. The
// batch is all-or-nothing: any conflict rolls everything back and the
// response details every blocked shift.
func (s *AssignmentService) AssignShifts(ctx context.Context, tenant models.TenantContext, absenceID string, req dto.AssignShiftsRequest) (*dto.AssignShiftsResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
	}

	absence, err := s.coverage.ResolveAbsence(ctx, tenant, absenceID)
	if err != nil {
		return nil, err
	}
	if absence.Status == models.AbsenceStatusCancelled {
		return nil, appErrors.Clone(appErrors.ErrValidation, "coverage request is cancelled")
	}
	if req.CandidateID == absence.StaffID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "candidate cannot cover their own absence")
	}

	candidate, err := s.staff.FindByID(ctx, tenant, req.CandidateID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "candidate not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "failed to load candidate")
	}
	if !candidate.Active {
		return nil, appErrors.Clone(appErrors.ErrValidation, "candidate is inactive")
	}

	targets, totalShifts, err := s.resolveTargets(ctx, absence.ID, req.ShiftIDs)
	if err != nil {
		return nil, err
	}

	if conflictErr, evalErr := s.revalidate(ctx, tenant, absence, candidate.ID, targets); evalErr != nil {
		return nil, evalErr
	} else if conflictErr != nil {
		return nil, conflictErr
	}

	kind := req.Kind
	if kind == "" {
		kind = models.AssignmentKindRecommended
	}

	allActive, err := s.assignments.ListActiveByAbsence(ctx, tenant, absence.ID, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "failed to list absence assignments")
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var eventID string
	var eventRef *string
	if kind == models.AssignmentKindFlex {
		event := &models.FlexAssignmentEvent{
			SchoolID: tenant.SchoolID,
			StaffID:  candidate.ID,
			Status:   models.FlexEventStatusActive,
		}
		if err = s.assignments.CreateEvent(ctx, tx, event); err != nil {
			err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create flex event")
			return nil, err
		}
		eventID = event.ID
		eventRef = &event.ID
	}

	// A batch covering fewer shifts than the absence has is partial coverage.
	isPartial := len(targets) < totalShifts
	rows := make([]models.Assignment, 0, len(targets))
	for _, shift := range targets {
		rows = append(rows, models.Assignment{
			SchoolID:    tenant.SchoolID,
			AbsenceID:   absence.ID,
			EventID:     eventRef,
			StaffID:     candidate.ID,
			TeacherID:   absence.StaffID,
			Date:        shift.Date,
			TimeSlotID:  shift.TimeSlotID,
			ClassroomID: shift.ClassroomID,
			Status:      models.AssignmentStatusActive,
			IsPartial:   isPartial,
			Kind:        kind,
			Notes:       req.Notes,
		})
	}

	ids, insertErr := s.assignments.InsertBatch(ctx, tx, rows)
	if insertErr != nil {
		_ = tx.Rollback()
		err = insertErr
		if errors.Is(insertErr, repository.ErrDuplicateActiveAssignment) {
			return nil, s.duplicateConflict(ctx, tenant, absence, candidate.ID, targets)
		}
		return nil, appErrors.Wrap(insertErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to insert assignments")
	}

	total, covered := s.coverageAfter(ctx, absence, allActive, rows, nil)
	status := coverageStatus(absence.Status, total, covered)
	if err = s.absences.UpdateCoverage(ctx, tx, absence.ID, total, covered, status); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to refresh coverage counters")
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit assignments")
		return nil, err
	}

	s.afterMutation(ctx, tenant, "assignment.create", absence.ID, map[string]interface{}{
		"candidate_id":   candidate.ID,
		"assignment_ids": ids,
		"kind":           kind,
		"event_id":       eventID,
	})

	return &dto.AssignShiftsResponse{AssignmentIDs: ids, EventID: eventID}, nil
}

// UnassignShifts cancels assignments by scope. Cancelling the last active
// assignment of a flex event cascades to the event itself.
func (s *AssignmentService) UnassignShifts(ctx context.Context, tenant models.TenantContext, absenceID string, req dto.UnassignShiftsRequest) (*dto.UnassignShiftsResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid unassignment payload")
	}
	if err := validateUnassignTarget(req); err != nil {
		return nil, err
	}

	absence, err := s.coverage.ResolveAbsence(ctx, tenant, absenceID)
	if err != nil {
		return nil, err
	}

	allActive, err := s.assignments.ListActiveByAbsence(ctx, tenant, absence.ID, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "failed to list absence assignments")
	}
	removed, err := selectRemovals(allActive, req)
	if err != nil {
		return nil, err
	}
	if len(removed) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no active assignments match the requested scope")
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	switch req.Scope {
	case models.UnassignScopeSingle:
		err = s.assignments.CancelByID(ctx, tx, tenant, removed[0].ID)
		if errors.Is(err, sql.ErrNoRows) {
			err = appErrors.Clone(appErrors.ErrNotFound, "assignment is not active")
			return nil, err
		}
	case models.UnassignScopeWeekday:
		_, err = s.assignments.CancelByWeekday(ctx, tx, tenant, absence.ID, req.CandidateID,
			req.Target.DayOfWeek, req.Target.TimeSlotID, req.Target.ClassroomID)
	case models.UnassignScopeAll:
		_, err = s.assignments.CancelAllForAbsence(ctx, tx, tenant, absence.ID, req.CandidateID)
	}
	if err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel assignments")
		return nil, err
	}

	// Scoped removal demotes the candidate's surviving rows to partial cover.
	if req.Scope != models.UnassignScopeAll {
		if err = s.assignments.MarkPartial(ctx, tx, tenant, absence.ID, req.CandidateID); err != nil {
			err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to flag partial assignments")
			return nil, err
		}
	}

	eventCancelled := false
	for _, eventID := range affectedEvents(removed) {
		var active int
		active, err = s.assignments.CountActiveByEvent(ctx, tx, eventID)
		if err != nil {
			err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count event assignments")
			return nil, err
		}
		if active == 0 {
			if err = s.assignments.CancelEvent(ctx, tx, eventID); err != nil {
				err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel flex event")
				return nil, err
			}
			eventCancelled = true
		}
	}

	remainingOnTarget := 0
	if req.Scope == models.UnassignScopeSingle {
		remainingOnTarget, err = s.assignments.CountActiveOnShift(ctx, tx, tenant, removed[0].TeacherID, removed[0].Date, removed[0].TimeSlotID)
		if err != nil {
			err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count remaining assignments")
			return nil, err
		}
	}

	total, covered := s.coverageAfter(ctx, absence, allActive, nil, removed)
	status := coverageStatus(absence.Status, total, covered)
	if err = s.absences.UpdateCoverage(ctx, tx, absence.ID, total, covered, status); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to refresh coverage counters")
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit unassignment")
		return nil, err
	}

	removedIDs := make([]string, 0, len(removed))
	for _, assignment := range removed {
		removedIDs = append(removedIDs, assignment.ID)
	}
	s.afterMutation(ctx, tenant, "assignment.cancel", absence.ID, map[string]interface{}{
		"candidate_id":    req.CandidateID,
		"scope":           req.Scope,
		"removed_ids":     removedIDs,
		"event_cancelled": eventCancelled,
	})

	return &dto.UnassignShiftsResponse{
		RemovedCount:                 len(removed),
		RemainingActiveOnTargetShift: remainingOnTarget,
		EventCancelled:               eventCancelled,
	}, nil
}

func (s *AssignmentService) resolveTargets(ctx context.Context, absenceID string, shiftIDs []string) ([]models.AbsenceShift, int, error) {
	shifts, err := s.shifts.ListShifts(ctx, absenceID)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "failed to list absence shifts")
	}
	byID := make(map[string]models.AbsenceShift, len(shifts))
	for _, shift := range shifts {
		byID[shift.ID] = shift
	}

	targets := make([]models.AbsenceShift, 0, len(shiftIDs))
	seen := make(map[string]struct{}, len(shiftIDs))
	for _, id := range shiftIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		shift, ok := byID[id]
		if !ok {
			return nil, 0, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("shift %s does not belong to this coverage request", id))
		}
		targets = append(targets, shift)
	}
	return targets, len(shifts), nil
}

// revalidate re-runs the availability evaluation against live data just
// before writing. Recommendations the coordinator acted on may be minutes
// old; stale ones must fail loudly rather than double book.
func (s *AssignmentService) revalidate(ctx context.Context, tenant models.TenantContext, absence *models.Absence, candidateID string, targets []models.AbsenceShift) (*models.AssignmentConflictError, error) {
	keys := make([]models.ShiftKey, 0, len(targets))
	for _, shift := range targets {
		keys = append(keys, shift.Key())
	}
	verdicts, err := s.evaluator.EvaluateCandidate(ctx, tenant, candidateID, absence.StartDate, absence.EndDate, keys)
	if err != nil {
		return nil, err
	}

	var conflicts []models.AssignmentConflict
	for _, verdict := range verdicts {
		if verdict.Status == models.ShiftStatusAvailable {
			continue
		}
		conflicts = append(conflicts, models.AssignmentConflict{
			StaffID:     candidateID,
			TeacherID:   absence.StaffID,
			Date:        verdict.Key.Date,
			TimeSlotID:  verdict.Key.TimeSlotID,
			ClassroomID: verdict.Key.ClassroomID,
			HeldBy:      verdict.Metadata["coveredTeacherId"],
		})
	}
	if len(conflicts) > 0 {
		return &models.AssignmentConflictError{
			Message:   "candidate is no longer available for all requested shifts",
			Conflicts: conflicts,
		}, nil
	}
	return nil, nil
}

// duplicateConflict enriches a unique-index rejection with the assignment
// that actually holds each contested shift. The index catches races the
// pre-write evaluation cannot see.
func (s *AssignmentService) duplicateConflict(ctx context.Context, tenant models.TenantContext, absence *models.Absence, candidateID string, targets []models.AbsenceShift) error {
	var conflicts []models.AssignmentConflict
	for _, shift := range targets {
		holder, err := s.assignments.FindActiveHolder(ctx, tenant, absence.StaffID, shift.Date, shift.TimeSlotID)
		if err != nil {
			s.logger.Sugar().Warnw("failed to resolve conflict holder", "shift_id", shift.ID, "error", err)
			continue
		}
		if holder == nil {
			continue
		}
		conflicts = append(conflicts, models.AssignmentConflict{
			StaffID:     candidateID,
			TeacherID:   absence.StaffID,
			Date:        shift.Date,
			TimeSlotID:  shift.TimeSlotID,
			ClassroomID: shift.ClassroomID,
			HeldBy:      holder.StaffID,
		})
	}
	if len(conflicts) == 0 {
		return appErrors.Clone(appErrors.ErrConflict, "another assignment already covers one of the requested shifts")
	}
	return &models.AssignmentConflictError{
		Message:   "another assignment already covers one of the requested shifts",
		Conflicts: conflicts,
	}
}

// coverageAfter predicts the post-commit counters without re-reading inside
// the transaction: distinct covered slots of (existing actives + inserts -
// removals), intersected with the absence's shift set.
func (s *AssignmentService) coverageAfter(ctx context.Context, absence *models.Absence, actives, inserted, removed []models.Assignment) (int, int) {
	shifts, err := s.shifts.ListShifts(ctx, absence.ID)
	if err != nil {
		s.logger.Sugar().Warnw("failed to list shifts for coverage counters", "absence_id", absence.ID, "error", err)
		return absence.TotalShifts, absence.CoveredShifts
	}
	slotSet := make(map[string]struct{}, len(shifts))
	for _, shift := range shifts {
		slotSet[shift.Key().SlotKey()] = struct{}{}
	}

	removedIDs := make(map[string]struct{}, len(removed))
	for _, assignment := range removed {
		removedIDs[assignment.ID] = struct{}{}
	}

	covered := map[string]struct{}{}
	for _, assignment := range actives {
		if _, gone := removedIDs[assignment.ID]; gone {
			continue
		}
		slot := assignment.Key().SlotKey()
		if _, ok := slotSet[slot]; ok {
			covered[slot] = struct{}{}
		}
	}
	for _, assignment := range inserted {
		slot := assignment.Key().SlotKey()
		if _, ok := slotSet[slot]; ok {
			covered[slot] = struct{}{}
		}
	}
	return len(shifts), len(covered)
}

func (s *AssignmentService) afterMutation(ctx context.Context, tenant models.TenantContext, action, absenceID string, detail map[string]interface{}) {
	if s.audit != nil {
		s.audit.Record(tenant, action, "coverage_request", absenceID, detail)
	}
	if s.cache != nil {
		pattern := fmt.Sprintf("recommend:%s:%s:*", tenant.SchoolID, absenceID)
		if err := s.cache.DeleteByPattern(ctx, pattern); err != nil {
			s.logger.Sugar().Warnw("failed to invalidate recommendation cache", "pattern", pattern, "error", err)
		}
	}
}

func coverageStatus(current models.AbsenceStatus, total, covered int) models.AbsenceStatus {
	if current == models.AbsenceStatusCancelled {
		return current
	}
	if total > 0 && covered >= total {
		return models.AbsenceStatusFilled
	}
	return models.AbsenceStatusOpen
}

func validateUnassignTarget(req dto.UnassignShiftsRequest) error {
	switch req.Scope {
	case models.UnassignScopeSingle:
		if req.Target == nil || req.Target.AssignmentID == "" {
			return appErrors.Clone(appErrors.ErrValidation, "single scope requires target.assignmentId")
		}
	case models.UnassignScopeWeekday:
		if req.Target == nil || req.Target.DayOfWeek < 1 || req.Target.DayOfWeek > 7 || req.Target.TimeSlotID == "" {
			return appErrors.Clone(appErrors.ErrValidation, "weekday scope requires target.dayOfWeek and target.timeSlotId")
		}
	}
	return nil
}

// selectRemovals predicts which active assignments the scoped cancellation
// will hit, for event cascade checks and coverage arithmetic.
func selectRemovals(actives []models.Assignment, req dto.UnassignShiftsRequest) ([]models.Assignment, error) {
	var removed []models.Assignment
	for _, assignment := range actives {
		if assignment.StaffID != req.CandidateID {
			continue
		}
		switch req.Scope {
		case models.UnassignScopeSingle:
			if assignment.ID == req.Target.AssignmentID {
				removed = append(removed, assignment)
			}
		case models.UnassignScopeWeekday:
			if assignment.Key().DayOfWeek() == req.Target.DayOfWeek &&
				assignment.TimeSlotID == req.Target.TimeSlotID &&
				(req.Target.ClassroomID == "" || assignment.ClassroomID == req.Target.ClassroomID) {
				removed = append(removed, assignment)
			}
		case models.UnassignScopeAll:
			removed = append(removed, assignment)
		}
	}
	if req.Scope == models.UnassignScopeSingle && len(removed) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found for this candidate")
	}
	return removed, nil
}

func affectedEvents(removed []models.Assignment) []string {
	seen := map[string]struct{}{}
	var events []string
	for _, assignment := range removed {
		if assignment.EventID == nil || *assignment.EventID == "" {
			continue
		}
		if _, dup := seen[*assignment.EventID]; dup {
			continue
		}
		seen[*assignment.EventID] = struct{}{}
		events = append(events, *assignment.EventID)
	}
	return events
}
