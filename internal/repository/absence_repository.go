package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/careloop/staffing-api/internal/models"
)

// AbsenceRepository persists absences and their materialized shifts.
type AbsenceRepository struct {
	db *sqlx.DB
}

// NewAbsenceRepository constructs the repository.
func NewAbsenceRepository(db *sqlx.DB) *AbsenceRepository {
	return &AbsenceRepository{db: db}
}

func (r *AbsenceRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// FindByID loads one absence.
func (r *AbsenceRepository) FindByID(ctx context.Context, tenant models.TenantContext, id string) (*models.Absence, error) {
	const query = `SELECT id, school_id, staff_id, time_off_id, start_date, end_date, status, total_shifts, covered_shifts, created_at, updated_at
FROM absences WHERE school_id = $1 AND id = $2`
	var absence models.Absence
	if err := r.db.GetContext(ctx, &absence, query, tenant.SchoolID, id); err != nil {
		return nil, err
	}
	return &absence, nil
}

// FindByTimeOff returns the absence materialized from a time-off request, if any.
func (r *AbsenceRepository) FindByTimeOff(ctx context.Context, tenant models.TenantContext, timeOffID string) (*models.Absence, error) {
	const query = `SELECT id, school_id, staff_id, time_off_id, start_date, end_date, status, total_shifts, covered_shifts, created_at, updated_at
FROM absences WHERE school_id = $1 AND time_off_id = $2`
	var absence models.Absence
	if err := r.db.GetContext(ctx, &absence, query, tenant.SchoolID, timeOffID); err != nil {
		return nil, err
	}
	return &absence, nil
}

// Create inserts a new absence.
func (r *AbsenceRepository) Create(ctx context.Context, exec sqlx.ExtContext, absence *models.Absence) error {
	if absence.ID == "" {
		absence.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if absence.CreatedAt.IsZero() {
		absence.CreatedAt = now
	}
	absence.UpdatedAt = now
	const query = `INSERT INTO absences (id, school_id, staff_id, time_off_id, start_date, end_date, status, total_shifts, covered_shifts, created_at, updated_at)
		VALUES (:id, :school_id, :staff_id, :time_off_id, :start_date, :end_date, :status, :total_shifts, :covered_shifts, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, absence); err != nil {
		return fmt.Errorf("create absence: %w", err)
	}
	return nil
}

// ListShifts returns the absence's materialized shifts in key order.
func (r *AbsenceRepository) ListShifts(ctx context.Context, absenceID string) ([]models.AbsenceShift, error) {
	const query = `SELECT id, absence_id, date, time_slot_id, classroom_id, class_group_id, created_at
FROM absence_shifts WHERE absence_id = $1
ORDER BY date ASC, time_slot_id ASC, classroom_id ASC`
	var shifts []models.AbsenceShift
	if err := r.db.SelectContext(ctx, &shifts, query, absenceID); err != nil {
		return nil, fmt.Errorf("list absence shifts: %w", err)
	}
	return shifts, nil
}

// InsertShifts adds materialized shifts. Existing keys must be diffed out by
// the caller first; this keeps repeated materialization from recreating rows.
func (r *AbsenceRepository) InsertShifts(ctx context.Context, exec sqlx.ExtContext, shifts []models.AbsenceShift) error {
	if len(shifts) == 0 {
		return nil
	}
	target := r.exec(exec)
	now := time.Now().UTC()

	const query = `INSERT INTO absence_shifts (id, absence_id, date, time_slot_id, classroom_id, class_group_id, created_at)
		VALUES (:id, :absence_id, :date, :time_slot_id, :classroom_id, :class_group_id, :created_at)`

	for i := range shifts {
		shift := &shifts[i]
		if shift.ID == "" {
			shift.ID = uuid.NewString()
		}
		if shift.CreatedAt.IsZero() {
			shift.CreatedAt = now
		}
		if _, err := sqlx.NamedExecContext(ctx, target, query, shift); err != nil {
			return fmt.Errorf("insert absence shift: %w", err)
		}
	}
	return nil
}

// UpdateCoverage refreshes the denormalised coverage counters and status.
func (r *AbsenceRepository) UpdateCoverage(ctx context.Context, exec sqlx.ExtContext, absenceID string, total, covered int, status models.AbsenceStatus) error {
	const query = `UPDATE absences SET total_shifts = $2, covered_shifts = $3, status = $4, updated_at = NOW() WHERE id = $1`
	result, err := r.exec(exec).ExecContext(ctx, query, absenceID, total, covered, status)
	if err != nil {
		return fmt.Errorf("update absence coverage: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check coverage update rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
