package service

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/careloop/staffing-api/internal/dto"
	"github.com/careloop/staffing-api/internal/models"
	appErrors "github.com/careloop/staffing-api/pkg/errors"
)

type baselineStore interface {
	FindConflicts(ctx context.Context, tenant models.TenantContext, teacherID string, dayOfWeek int, timeSlotID, targetClassroomID string) ([]models.BaselineScheduleEntry, error)
	Create(ctx context.Context, exec sqlx.ExtContext, entry *models.BaselineScheduleEntry) error
	Delete(ctx context.Context, exec sqlx.ExtContext, tenant models.TenantContext, id string) error
	MarkFloater(ctx context.Context, exec sqlx.ExtContext, tenant models.TenantContext, id string) error
}

// BaselineService resolves double-bookings on the recurring weekly grid when
// a teacher is placed into a classroom they already hold elsewhere at the
// same day and slot.
type BaselineService struct {
	baseline  baselineStore
	tx        txProvider
	audit     auditRecorder
	validator *validator.Validate
	logger    *zap.Logger
}

// NewBaselineService wires the grid conflict resolver.
func NewBaselineService(baseline baselineStore, tx txProvider, audit auditRecorder, validate *validator.Validate, logger *zap.Logger) *BaselineService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BaselineService{baseline: baseline, tx: tx, audit: audit, validator: validate, logger: logger}
}

// ResolveConflict places the teacher on the grid according to the chosen
// resolution. Detection and mutation run against the same conflict set within
// one transaction, so concurrent placements cannot interleave half-resolved.
func (s *BaselineService) ResolveConflict(ctx context.Context, tenant models.TenantContext, req dto.ResolveBaselineConflictRequest) (*dto.ResolveBaselineConflictResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid baseline resolution payload")
	}

	conflicts, err := s.baseline.FindConflicts(ctx, tenant, req.TeacherID, req.DayOfWeek, req.TimeSlotID, req.TargetClassroomID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "failed to detect baseline conflicts")
	}

	// A declined placement mutates nothing but still leaves an audit trail.
	if req.Resolution == models.BaselineResolutionCancel {
		if s.audit != nil {
			s.audit.Record(tenant, "baseline.resolve", "baseline_entry", "", map[string]interface{}{
				"teacher_id":   req.TeacherID,
				"resolution":   req.Resolution,
				"conflict_ids": conflictIDs(conflicts),
			})
		}
		return &dto.ResolveBaselineConflictResponse{Outcome: models.BaselineOutcomeUnchanged}, nil
	}

	entry := &models.BaselineScheduleEntry{
		SchoolID:     tenant.SchoolID,
		TeacherID:    req.TeacherID,
		DayOfWeek:    req.DayOfWeek,
		TimeSlotID:   req.TimeSlotID,
		ClassroomID:  req.TargetClassroomID,
		ClassGroupID: req.ClassGroupID,
		IsFloater:    req.Resolution == models.BaselineResolutionMarkFloater && len(conflicts) > 0,
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

	response := &dto.ResolveBaselineConflictResponse{Outcome: models.BaselineOutcomeCreated}
	for _, conflict := range conflicts {
		switch req.Resolution {
		case models.BaselineResolutionRemoveOther:
			if err = s.baseline.Delete(ctx, tx, tenant, conflict.ID); err != nil {
				err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete conflicting entry")
				return nil, err
			}
			response.DeletedIDs = append(response.DeletedIDs, conflict.ID)
		case models.BaselineResolutionMarkFloater:
			if err = s.baseline.MarkFloater(ctx, tx, tenant, conflict.ID); err != nil {
				err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark conflicting entry floater")
				return nil, err
			}
			response.UpdatedIDs = append(response.UpdatedIDs, conflict.ID)
		}
	}

	if err = s.baseline.Create(ctx, tx, entry); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create baseline entry")
		return nil, err
	}
	response.CreatedID = entry.ID

	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit baseline resolution")
		return nil, err
	}

	if s.audit != nil {
		s.audit.Record(tenant, "baseline.resolve", "baseline_entry", entry.ID, map[string]interface{}{
			"teacher_id":  req.TeacherID,
			"resolution":  req.Resolution,
			"deleted_ids": response.DeletedIDs,
			"updated_ids": response.UpdatedIDs,
		})
	}
	return response, nil
}

func conflictIDs(conflicts []models.BaselineScheduleEntry) []string {
	ids := make([]string, 0, len(conflicts))
	for _, conflict := range conflicts {
		ids = append(ids, conflict.ID)
	}
	return ids
}
