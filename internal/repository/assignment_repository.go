package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/careloop/staffing-api/internal/models"
)

const uniqueViolationCode = "23505"

// ErrDuplicateActiveAssignment is returned when an insert collides with the
// partial unique index on (teacher_id, date, time_slot_id) WHERE status='active'.
var ErrDuplicateActiveAssignment = errors.New("duplicate active assignment")

// IsUniqueViolation reports whether the error is a Postgres unique-constraint
// violation. The check-then-act race between two concurrent assignment
// requests is settled here, at the storage boundary.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == uniqueViolationCode
	}
	return errors.Is(err, ErrDuplicateActiveAssignment)
}

// AssignmentRepository persists substitute assignments and flex events.
type AssignmentRepository struct {
	db *sqlx.DB
}

// NewAssignmentRepository constructs the repository.
func NewAssignmentRepository(db *sqlx.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

func (r *AssignmentRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// FindByID loads one assignment.
func (r *AssignmentRepository) FindByID(ctx context.Context, tenant models.TenantContext, id string) (*models.Assignment, error) {
	const query = `SELECT id, school_id, absence_id, event_id, staff_id, teacher_id, date, time_slot_id, classroom_id, status, is_partial, kind, notes, created_at, updated_at
FROM assignments WHERE school_id = $1 AND id = $2`
	var assignment models.Assignment
	if err := r.db.GetContext(ctx, &assignment, query, tenant.SchoolID, id); err != nil {
		return nil, err
	}
	return &assignment, nil
}

// ListActiveByStaffRange returns a candidate's active assignments in the date
// range, joined with the name of the teacher being covered so conflict
// messages can say who already holds the candidate.
func (r *AssignmentRepository) ListActiveByStaffRange(ctx context.Context, tenant models.TenantContext, staffID string, from, to time.Time) ([]models.Assignment, map[string]models.CoveringRef, error) {
	const query = `SELECT a.id, a.school_id, a.absence_id, a.event_id, a.staff_id, a.teacher_id, a.date, a.time_slot_id, a.classroom_id, a.status, a.is_partial, a.kind, a.notes, a.created_at, a.updated_at,
       s.full_name AS teacher_name
FROM assignments a
JOIN staff s ON s.id = a.teacher_id
WHERE a.school_id = $1 AND a.staff_id = $2 AND a.status = 'active' AND a.date >= $3 AND a.date <= $4
ORDER BY a.date ASC, a.time_slot_id ASC`
	type row struct {
		models.Assignment
		TeacherName string `db:"teacher_name"`
	}
	var rows []row
	if err := r.db.SelectContext(ctx, &rows, query, tenant.SchoolID, staffID, from, to); err != nil {
		return nil, nil, fmt.Errorf("list active assignments: %w", err)
	}
	assignments := make([]models.Assignment, 0, len(rows))
	covering := make(map[string]models.CoveringRef, len(rows))
	for _, item := range rows {
		assignments = append(assignments, item.Assignment)
		covering[item.Key().SlotKey()] = models.CoveringRef{
			TeacherID:   item.TeacherID,
			TeacherName: item.TeacherName,
			ClassroomID: item.ClassroomID,
		}
	}
	return assignments, covering, nil
}

// ListActiveByAbsence returns active assignments for an absence, optionally
// narrowed to one candidate.
func (r *AssignmentRepository) ListActiveByAbsence(ctx context.Context, tenant models.TenantContext, absenceID, staffID string) ([]models.Assignment, error) {
	query := `SELECT id, school_id, absence_id, event_id, staff_id, teacher_id, date, time_slot_id, classroom_id, status, is_partial, kind, notes, created_at, updated_at
FROM assignments
WHERE school_id = $1 AND absence_id = $2 AND status = 'active'`
	args := []interface{}{tenant.SchoolID, absenceID}
	if staffID != "" {
		query += ` AND staff_id = $3`
		args = append(args, staffID)
	}
	query += ` ORDER BY date ASC, time_slot_id ASC`
	var assignments []models.Assignment
	if err := r.db.SelectContext(ctx, &assignments, query, args...); err != nil {
		return nil, fmt.Errorf("list absence assignments: %w", err)
	}
	return assignments, nil
}

// InsertBatch inserts assignments one by one within the caller's transaction.
// The first unique violation aborts the batch; the caller rolls back and maps
// the error to a conflict response.
func (r *AssignmentRepository) InsertBatch(ctx context.Context, exec sqlx.ExtContext, assignments []models.Assignment) ([]string, error) {
	target := r.exec(exec)
	now := time.Now().UTC()

	const query = `INSERT INTO assignments (id, school_id, absence_id, event_id, staff_id, teacher_id, date, time_slot_id, classroom_id, status, is_partial, kind, notes, created_at, updated_at)
		VALUES (:id, :school_id, :absence_id, :event_id, :staff_id, :teacher_id, :date, :time_slot_id, :classroom_id, :status, :is_partial, :kind, :notes, :created_at, :updated_at)`

	ids := make([]string, 0, len(assignments))
	for i := range assignments {
		assignment := &assignments[i]
		if assignment.ID == "" {
			assignment.ID = uuid.NewString()
		}
		if assignment.CreatedAt.IsZero() {
			assignment.CreatedAt = now
		}
		assignment.UpdatedAt = now
		if _, err := sqlx.NamedExecContext(ctx, target, query, assignment); err != nil {
			if IsUniqueViolation(err) {
				return nil, fmt.Errorf("insert assignment %s/%s: %w", assignment.Date.Format(models.DateLayout), assignment.TimeSlotID, ErrDuplicateActiveAssignment)
			}
			return nil, fmt.Errorf("insert assignment: %w", err)
		}
		ids = append(ids, assignment.ID)
	}
	return ids, nil
}

// FindActiveHolder returns the staff member actively assigned to the teacher's
// shift, if any. Used to enrich conflict responses after a rejected insert.
func (r *AssignmentRepository) FindActiveHolder(ctx context.Context, tenant models.TenantContext, teacherID string, date time.Time, timeSlotID string) (*models.Assignment, error) {
	const query = `SELECT id, school_id, absence_id, event_id, staff_id, teacher_id, date, time_slot_id, classroom_id, status, is_partial, kind, notes, created_at, updated_at
FROM assignments
WHERE school_id = $1 AND teacher_id = $2 AND date = $3 AND time_slot_id = $4 AND status = 'active'
LIMIT 1`
	var assignment models.Assignment
	if err := r.db.GetContext(ctx, &assignment, query, tenant.SchoolID, teacherID, date, timeSlotID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find active holder: %w", err)
	}
	return &assignment, nil
}

// CancelByID soft-deletes one active assignment. sql.ErrNoRows means it was
// not active anymore.
func (r *AssignmentRepository) CancelByID(ctx context.Context, exec sqlx.ExtContext, tenant models.TenantContext, id string) error {
	const query = `UPDATE assignments SET status = 'cancelled', updated_at = NOW()
WHERE school_id = $1 AND id = $2 AND status = 'active'`
	result, err := r.exec(exec).ExecContext(ctx, query, tenant.SchoolID, id)
	if err != nil {
		return fmt.Errorf("cancel assignment: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check cancelled rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CancelByWeekday soft-deletes active assignments for the absence/candidate
// matching a recurring day-of-week and slot. An empty classroomID matches any
// classroom.
func (r *AssignmentRepository) CancelByWeekday(ctx context.Context, exec sqlx.ExtContext, tenant models.TenantContext, absenceID, staffID string, dayOfWeek int, timeSlotID, classroomID string) (int, error) {
	const query = `UPDATE assignments SET status = 'cancelled', updated_at = NOW()
WHERE school_id = $1 AND absence_id = $2 AND staff_id = $3 AND status = 'active'
  AND EXTRACT(ISODOW FROM date) = $4 AND time_slot_id = $5 AND ($6 = '' OR classroom_id = $6)`
	result, err := r.exec(exec).ExecContext(ctx, query, tenant.SchoolID, absenceID, staffID, dayOfWeek, timeSlotID, classroomID)
	if err != nil {
		return 0, fmt.Errorf("cancel weekday assignments: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("check cancelled weekday rows: %w", err)
	}
	return int(affected), nil
}

// MarkPartial flags the candidate's surviving active assignments on the
// absence as partial coverage after some siblings were cancelled.
func (r *AssignmentRepository) MarkPartial(ctx context.Context, exec sqlx.ExtContext, tenant models.TenantContext, absenceID, staffID string) error {
	const query = `UPDATE assignments SET is_partial = TRUE, updated_at = NOW()
WHERE school_id = $1 AND absence_id = $2 AND staff_id = $3 AND status = 'active' AND is_partial = FALSE`
	if _, err := r.exec(exec).ExecContext(ctx, query, tenant.SchoolID, absenceID, staffID); err != nil {
		return fmt.Errorf("mark partial assignments: %w", err)
	}
	return nil
}

// CancelAllForAbsence soft-deletes every active assignment linking the
// candidate to the absence.
func (r *AssignmentRepository) CancelAllForAbsence(ctx context.Context, exec sqlx.ExtContext, tenant models.TenantContext, absenceID, staffID string) (int, error) {
	const query = `UPDATE assignments SET status = 'cancelled', updated_at = NOW()
WHERE school_id = $1 AND absence_id = $2 AND staff_id = $3 AND status = 'active'`
	result, err := r.exec(exec).ExecContext(ctx, query, tenant.SchoolID, absenceID, staffID)
	if err != nil {
		return 0, fmt.Errorf("cancel absence assignments: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("check cancelled absence rows: %w", err)
	}
	return int(affected), nil
}

// CountActiveOnShift counts active assignments remaining on one shift.
func (r *AssignmentRepository) CountActiveOnShift(ctx context.Context, exec sqlx.ExtContext, tenant models.TenantContext, teacherID string, date time.Time, timeSlotID string) (int, error) {
	const query = `SELECT COUNT(*) FROM assignments
WHERE school_id = $1 AND teacher_id = $2 AND date = $3 AND time_slot_id = $4 AND status = 'active'`
	var count int
	if err := sqlx.GetContext(ctx, r.exec(exec), &count, query, tenant.SchoolID, teacherID, date, timeSlotID); err != nil {
		return 0, fmt.Errorf("count active on shift: %w", err)
	}
	return count, nil
}

// CreateEvent inserts a flex assignment event.
func (r *AssignmentRepository) CreateEvent(ctx context.Context, exec sqlx.ExtContext, event *models.FlexAssignmentEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if event.CreatedAt.IsZero() {
		event.CreatedAt = now
	}
	event.UpdatedAt = now
	const query = `INSERT INTO flex_assignment_events (id, school_id, staff_id, status, created_at, updated_at)
		VALUES (:id, :school_id, :staff_id, :status, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, event); err != nil {
		return fmt.Errorf("create flex event: %w", err)
	}
	return nil
}

// CountActiveByEvent counts the event's remaining active child assignments.
func (r *AssignmentRepository) CountActiveByEvent(ctx context.Context, exec sqlx.ExtContext, eventID string) (int, error) {
	const query = `SELECT COUNT(*) FROM assignments WHERE event_id = $1 AND status = 'active'`
	var count int
	if err := sqlx.GetContext(ctx, r.exec(exec), &count, query, eventID); err != nil {
		return 0, fmt.Errorf("count event assignments: %w", err)
	}
	return count, nil
}

// CancelEvent flips a flex event to cancelled. Idempotent: cancelling an
// already-cancelled event affects zero rows and is not an error.
func (r *AssignmentRepository) CancelEvent(ctx context.Context, exec sqlx.ExtContext, eventID string) error {
	const query = `UPDATE flex_assignment_events SET status = 'cancelled', updated_at = NOW()
WHERE id = $1 AND status = 'active'`
	if _, err := r.exec(exec).ExecContext(ctx, query, eventID); err != nil {
		return fmt.Errorf("cancel flex event: %w", err)
	}
	return nil
}
