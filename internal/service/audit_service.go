package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/careloop/staffing-api/internal/models"
	"github.com/careloop/staffing-api/pkg/config"
	"github.com/careloop/staffing-api/pkg/jobs"
)

type auditWriter interface {
	Create(ctx context.Context, event *models.AuditEvent) error
}

// AuditService persists scheduling mutations as audit events through a
// background worker pool. Recording is fire-and-forget: a full queue or a
// failed write is logged and dropped, never surfaced to the caller, so an
// audit outage cannot block assignment traffic.
type AuditService struct {
	queue  *jobs.Queue
	logger *zap.Logger
}

// NewAuditService builds the audit sink. Call Start before recording and Stop
// on shutdown.
func NewAuditService(writer auditWriter, cfg config.AuditConfig, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	handler := func(ctx context.Context, job jobs.Job) error {
		event, ok := job.Payload.(*models.AuditEvent)
		if !ok {
			logger.Sugar().Errorw("audit job carried unexpected payload", "job_id", job.ID)
			return nil
		}
		return writer.Create(ctx, event)
	}
	queue := jobs.NewQueue("audit", handler, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: cfg.BufferSize,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
	})
	return &AuditService{queue: queue, logger: logger}
}

// Start launches the queue workers.
func (s *AuditService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the workers.
func (s *AuditService) Stop() {
	s.queue.Stop()
}

// Record enqueues one audit event. detail may be any JSON-marshalable value.
func (s *AuditService) Record(tenant models.TenantContext, action, resource, resourceID string, detail interface{}) {
	var raw json.RawMessage
	if detail != nil {
		encoded, err := json.Marshal(detail)
		if err != nil {
			s.logger.Sugar().Warnw("failed to encode audit detail", "action", action, "error", err)
		} else {
			raw = encoded
		}
	}

	event := &models.AuditEvent{
		ID:         uuid.NewString(),
		SchoolID:   tenant.SchoolID,
		ActorID:    tenant.ActorUserID,
		Action:     action,
		Resource:   resource,
		ResourceID: resourceID,
		Detail:     raw,
		OccurredAt: time.Now().UTC(),
	}
	if err := s.queue.Enqueue(jobs.Job{ID: event.ID, Type: action, Payload: event}); err != nil {
		s.logger.Sugar().Warnw("failed to enqueue audit event", "action", action, "error", err)
	}
}
