package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/careloop/staffing-api/internal/dto"
	"github.com/careloop/staffing-api/internal/models"
	appErrors "github.com/careloop/staffing-api/pkg/errors"
)

// Messages surfaced alongside shift verdicts.
const (
	msgMarkedUnavailable = "Marked unavailable"
	msgHasTimeOff        = "Has time off"
	msgTeachingConflict  = "Scheduled to teach"
)

// candidateSnapshot holds every constraint layer for one candidate over one
// date range, loaded once per evaluation.
type candidateSnapshot struct {
	weekly     map[models.RecurringKey]bool
	exceptions map[string]bool
	teaching   map[string]models.ShiftKey
	timeOff    map[string]struct{}
	covering   map[string]models.CoveringRef
}

// ConflictService merges the constraint sources into a single per-shift
// status for a candidate.
type ConflictService struct {
	sources   *ConstraintSources
	validator *validator.Validate
	logger    *zap.Logger
}

// NewConflictService wires the evaluator.
func NewConflictService(sources *ConstraintSources, validate *validator.Validate, logger *zap.Logger) *ConflictService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConflictService{sources: sources, validator: validate, logger: logger}
}

// ComputeConflicts evaluates a batch of candidate/shift checks and returns one
// result per check in input order.
func (s *ConflictService) ComputeConflicts(ctx context.Context, tenant models.TenantContext, req dto.ComputeConflictsRequest) (*dto.ComputeConflictsResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid conflict check payload")
	}

	type parsedCheck struct {
		index int
		key   models.ShiftKey
	}
	byCandidate := make(map[string][]parsedCheck)
	order := make([]string, 0)
	var from, to time.Time
	for i, check := range req.Checks {
		date, err := models.ParseShiftDate(check.Date)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("check %d: invalid date %q", i, check.Date))
		}
		key := models.NewShiftKey(date, check.TimeSlotID, check.ClassroomID)
		if _, seen := byCandidate[check.CandidateID]; !seen {
			order = append(order, check.CandidateID)
		}
		byCandidate[check.CandidateID] = append(byCandidate[check.CandidateID], parsedCheck{index: i, key: key})
		if from.IsZero() || key.Date.Before(from) {
			from = key.Date
		}
		if to.IsZero() || key.Date.After(to) {
			to = key.Date
		}
	}

	results := make([]dto.ConflictResult, len(req.Checks))
	for _, candidateID := range order {
		snapshot, err := s.loadSnapshot(ctx, tenant, candidateID, from, to)
		if err != nil {
			return nil, err
		}
		for _, check := range byCandidate[candidateID] {
			verdict := evaluateShift(snapshot, check.key)
			results[check.index] = dto.ConflictResult{
				CandidateID: candidateID,
				Date:        check.key.Date.Format(models.DateLayout),
				TimeSlotID:  check.key.TimeSlotID,
				Status:      verdict.Status,
				Message:     verdict.Message,
				Metadata:    verdict.Metadata,
			}
		}
	}

	return &dto.ComputeConflictsResponse{Results: results}, nil
}

// EvaluateCandidate loads a candidate's constraints for the range and applies
// the evaluator to each key. Used by the recommender and by assignment-time
// re-validation.
func (s *ConflictService) EvaluateCandidate(ctx context.Context, tenant models.TenantContext, candidateID string, from, to time.Time, keys []models.ShiftKey) ([]models.ShiftVerdict, error) {
	snapshot, err := s.loadSnapshot(ctx, tenant, candidateID, from, to)
	if err != nil {
		return nil, err
	}
	verdicts := make([]models.ShiftVerdict, 0, len(keys))
	for _, key := range keys {
		verdicts = append(verdicts, evaluateShift(snapshot, key))
	}
	return verdicts, nil
}

func (s *ConflictService) loadSnapshot(ctx context.Context, tenant models.TenantContext, candidateID string, from, to time.Time) (*candidateSnapshot, error) {
	weekly, err := s.sources.WeeklyAvailability(ctx, tenant, candidateID)
	if err != nil {
		return nil, err
	}
	exceptions, err := s.sources.DateExceptions(ctx, tenant, candidateID, from, to)
	if err != nil {
		return nil, err
	}
	teaching, err := s.sources.RegularTeachingLoad(ctx, tenant, candidateID, from, to)
	if err != nil {
		return nil, err
	}
	timeOff, err := s.sources.ExistingTimeOff(ctx, tenant, candidateID, from, to)
	if err != nil {
		return nil, err
	}
	covering, err := s.sources.ActiveAssignments(ctx, tenant, candidateID, from, to)
	if err != nil {
		return nil, err
	}
	return &candidateSnapshot{
		weekly:     weekly,
		exceptions: exceptions,
		teaching:   teaching,
		timeOff:    timeOff,
		covering:   covering,
	}, nil
}

// evaluateShift applies the strict precedence order. Unavailability is
// authoritative over scheduling conflicts: someone who is not available
// cannot be double-booked in the first place. A teaching commitment outranks
// an existing substitute assignment for ranking purposes.
func evaluateShift(snapshot *candidateSnapshot, key models.ShiftKey) models.ShiftVerdict {
	slotKey := key.SlotKey()

	available, overridden := snapshot.exceptions[slotKey]
	if !overridden {
		available = snapshot.weekly[key.Recurring()]
	}
	if !available {
		return models.ShiftVerdict{Key: key, Status: models.ShiftStatusUnavailable, Message: msgMarkedUnavailable}
	}

	if _, teaching := snapshot.teaching[slotKey]; teaching {
		return models.ShiftVerdict{Key: key, Status: models.ShiftStatusConflictTeaching, Message: msgTeachingConflict}
	}

	if ref, busy := snapshot.covering[slotKey]; busy {
		return models.ShiftVerdict{
			Key:     key,
			Status:  models.ShiftStatusConflictSub,
			Message: fmt.Sprintf("Already covering %s", ref.TeacherName),
			Metadata: map[string]string{
				"coveredTeacherId":   ref.TeacherID,
				"coveredTeacherName": ref.TeacherName,
				"classroomId":        ref.ClassroomID,
			},
		}
	}

	if _, off := snapshot.timeOff[key.Date.Format(models.DateLayout)]; off {
		return models.ShiftVerdict{Key: key, Status: models.ShiftStatusUnavailable, Message: msgHasTimeOff}
	}

	return models.ShiftVerdict{Key: key, Status: models.ShiftStatusAvailable}
}
