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

// BaselineRepository persists the recurring weekly staffing grid.
type BaselineRepository struct {
	db *sqlx.DB
}

// NewBaselineRepository constructs the repository.
func NewBaselineRepository(db *sqlx.DB) *BaselineRepository {
	return &BaselineRepository{db: db}
}

func (r *BaselineRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// ListByTeacher returns every grid entry for one teacher.
func (r *BaselineRepository) ListByTeacher(ctx context.Context, tenant models.TenantContext, teacherID string) ([]models.BaselineScheduleEntry, error) {
	const query = `SELECT id, school_id, teacher_id, day_of_week, time_slot_id, classroom_id, class_group_id, is_floater, created_at, updated_at
FROM baseline_schedule_entries
WHERE school_id = $1 AND teacher_id = $2
ORDER BY day_of_week ASC, time_slot_id ASC, classroom_id ASC`
	var entries []models.BaselineScheduleEntry
	if err := r.db.SelectContext(ctx, &entries, query, tenant.SchoolID, teacherID); err != nil {
		return nil, fmt.Errorf("list baseline entries: %w", err)
	}
	return entries, nil
}

// FindConflicts returns non-floater entries holding the teacher at the same
// day/slot in a classroom other than the target. Floaters are exempt from the
// single-classroom rule.
func (r *BaselineRepository) FindConflicts(ctx context.Context, tenant models.TenantContext, teacherID string, dayOfWeek int, timeSlotID, targetClassroomID string) ([]models.BaselineScheduleEntry, error) {
	const query = `SELECT id, school_id, teacher_id, day_of_week, time_slot_id, classroom_id, class_group_id, is_floater, created_at, updated_at
FROM baseline_schedule_entries
WHERE school_id = $1 AND teacher_id = $2 AND day_of_week = $3 AND time_slot_id = $4
  AND classroom_id <> $5 AND is_floater = FALSE
ORDER BY classroom_id ASC`
	var entries []models.BaselineScheduleEntry
	if err := r.db.SelectContext(ctx, &entries, query, tenant.SchoolID, teacherID, dayOfWeek, timeSlotID, targetClassroomID); err != nil {
		return nil, fmt.Errorf("find baseline conflicts: %w", err)
	}
	return entries, nil
}

// Create inserts a new grid entry.
func (r *BaselineRepository) Create(ctx context.Context, exec sqlx.ExtContext, entry *models.BaselineScheduleEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	entry.UpdatedAt = now
	const query = `INSERT INTO baseline_schedule_entries (id, school_id, teacher_id, day_of_week, time_slot_id, classroom_id, class_group_id, is_floater, created_at, updated_at)
		VALUES (:id, :school_id, :teacher_id, :day_of_week, :time_slot_id, :classroom_id, :class_group_id, :is_floater, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, entry); err != nil {
		return fmt.Errorf("create baseline entry: %w", err)
	}
	return nil
}

// Delete removes one entry by id.
func (r *BaselineRepository) Delete(ctx context.Context, exec sqlx.ExtContext, tenant models.TenantContext, id string) error {
	const query = `DELETE FROM baseline_schedule_entries WHERE school_id = $1 AND id = $2`
	result, err := r.exec(exec).ExecContext(ctx, query, tenant.SchoolID, id)
	if err != nil {
		return fmt.Errorf("delete baseline entry: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check deleted baseline rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// MarkFloater flips an entry's floater flag to true.
func (r *BaselineRepository) MarkFloater(ctx context.Context, exec sqlx.ExtContext, tenant models.TenantContext, id string) error {
	const query = `UPDATE baseline_schedule_entries SET is_floater = TRUE, updated_at = NOW() WHERE school_id = $1 AND id = $2`
	result, err := r.exec(exec).ExecContext(ctx, query, tenant.SchoolID, id)
	if err != nil {
		return fmt.Errorf("mark baseline entry floater: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check floater update rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
