package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/careloop/staffing-api/internal/models"
)

// AvailabilityRepository reads the two availability layers for a candidate:
// weekly recurring rows and date-specific exception rows.
type AvailabilityRepository struct {
	db *sqlx.DB
}

// NewAvailabilityRepository constructs the repository.
func NewAvailabilityRepository(db *sqlx.DB) *AvailabilityRepository {
	return &AvailabilityRepository{db: db}
}

// ListWeekly returns the recurring availability rows for a staff member.
func (r *AvailabilityRepository) ListWeekly(ctx context.Context, tenant models.TenantContext, staffID string) ([]models.WeeklyAvailability, error) {
	const query = `SELECT id, school_id, staff_id, day_of_week, time_slot_id, available, created_at
FROM weekly_availability
WHERE school_id = $1 AND staff_id = $2
ORDER BY day_of_week ASC, time_slot_id ASC`
	var rows []models.WeeklyAvailability
	if err := r.db.SelectContext(ctx, &rows, query, tenant.SchoolID, staffID); err != nil {
		return nil, fmt.Errorf("list weekly availability: %w", err)
	}
	return rows, nil
}

// ListExceptions returns date-specific overrides within the range, inclusive.
func (r *AvailabilityRepository) ListExceptions(ctx context.Context, tenant models.TenantContext, staffID string, from, to time.Time) ([]models.AvailabilityException, error) {
	const query = `SELECT id, school_id, staff_id, date, time_slot_id, available, created_at
FROM availability_exceptions
WHERE school_id = $1 AND staff_id = $2 AND date >= $3 AND date <= $4
ORDER BY date ASC, time_slot_id ASC`
	var rows []models.AvailabilityException
	if err := r.db.SelectContext(ctx, &rows, query, tenant.SchoolID, staffID, from, to); err != nil {
		return nil, fmt.Errorf("list availability exceptions: %w", err)
	}
	return rows, nil
}
