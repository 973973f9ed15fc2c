package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/careloop/staffing-api/internal/models"
)

// TimeOffRepository reads approved time-off requests. The request workflow is
// owned by an external collaborator; this view is read-only.
type TimeOffRepository struct {
	db *sqlx.DB
}

// NewTimeOffRepository constructs the repository.
func NewTimeOffRepository(db *sqlx.DB) *TimeOffRepository {
	return &TimeOffRepository{db: db}
}

// FindByID loads one request.
func (r *TimeOffRepository) FindByID(ctx context.Context, tenant models.TenantContext, id string) (*models.TimeOffRequest, error) {
	const query = `SELECT id, school_id, staff_id, start_date, end_date, status
FROM time_off_requests WHERE school_id = $1 AND id = $2`
	var req models.TimeOffRequest
	if err := r.db.GetContext(ctx, &req, query, tenant.SchoolID, id); err != nil {
		return nil, err
	}
	return &req, nil
}

// ListApprovedByStaff returns approved requests overlapping the range.
func (r *TimeOffRepository) ListApprovedByStaff(ctx context.Context, tenant models.TenantContext, staffID string, from, to time.Time) ([]models.TimeOffRequest, error) {
	const query = `SELECT id, school_id, staff_id, start_date, end_date, status
FROM time_off_requests
WHERE school_id = $1 AND staff_id = $2 AND status = 'approved'
  AND start_date <= $4 AND end_date >= $3
ORDER BY start_date ASC`
	var requests []models.TimeOffRequest
	if err := r.db.SelectContext(ctx, &requests, query, tenant.SchoolID, staffID, from, to); err != nil {
		return nil, fmt.Errorf("list approved time off: %w", err)
	}
	return requests, nil
}
