package models

import (
	"encoding/json"
	"time"
)

// AuditEvent is the side-channel record emitted after a mutation commits.
// Delivery is best effort; audit failures never fail the primary operation.
type AuditEvent struct {
	ID         string          `db:"id" json:"id"`
	SchoolID   string          `db:"school_id" json:"school_id"`
	ActorID    string          `db:"actor_id" json:"actor_id"`
	Action     string          `db:"action" json:"action"`
	Resource   string          `db:"resource" json:"resource"`
	ResourceID string          `db:"resource_id" json:"resource_id"`
	Detail     json.RawMessage `db:"detail" json:"detail,omitempty"`
	OccurredAt time.Time       `db:"occurred_at" json:"occurred_at"`
}
