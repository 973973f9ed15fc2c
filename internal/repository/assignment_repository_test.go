package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careloop/staffing-api/internal/models"
)

func newAssignmentRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

var repoTenant = models.TenantContext{SchoolID: "school-1", ActorUserID: "user-1"}

func TestIsUniqueViolation(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{name: "pq unique violation", err: &pq.Error{Code: "23505"}, want: true},
		{name: "pq other code", err: &pq.Error{Code: "23503"}, want: false},
		{name: "wrapped pq violation", err: fmt.Errorf("insert: %w", &pq.Error{Code: "23505"}), want: true},
		{name: "sentinel", err: ErrDuplicateActiveAssignment, want: true},
		{name: "wrapped sentinel", err: fmt.Errorf("insert: %w", ErrDuplicateActiveAssignment), want: true},
		{name: "plain error", err: errors.New("boom"), want: false},
		{name: "nil", err: nil, want: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsUniqueViolation(tc.err))
		})
	}
}

func TestAssignmentRepositoryInsertBatchMapsUniqueViolation(t *testing.T) {
	db, mock, cleanup := newAssignmentRepoMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	date := time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC)
	batch := []models.Assignment{
		{SchoolID: "school-1", AbsenceID: "abs-1", StaffID: "sub-a", TeacherID: "teacher-x", Date: date, TimeSlotID: "slot-am", ClassroomID: "room-a", Status: models.AssignmentStatusActive, Kind: models.AssignmentKindRecommended},
		{SchoolID: "school-1", AbsenceID: "abs-1", StaffID: "sub-a", TeacherID: "teacher-x", Date: date, TimeSlotID: "slot-pm", ClassroomID: "room-a", Status: models.AssignmentStatusActive, Kind: models.AssignmentKindRecommended},
	}

	mock.ExpectExec("INSERT INTO assignments").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO assignments").
		WillReturnError(&pq.Error{Code: "23505"})

	ids, err := repo.InsertBatch(context.Background(), nil, batch)
	require.Error(t, err)
	assert.Nil(t, ids)
	assert.True(t, errors.Is(err, ErrDuplicateActiveAssignment))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignmentRepositoryInsertBatchAssignsIDs(t *testing.T) {
	db, mock, cleanup := newAssignmentRepoMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	date := time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC)
	batch := []models.Assignment{
		{SchoolID: "school-1", AbsenceID: "abs-1", StaffID: "sub-a", TeacherID: "teacher-x", Date: date, TimeSlotID: "slot-am", ClassroomID: "room-a", Status: models.AssignmentStatusActive, Kind: models.AssignmentKindRecommended},
	}

	mock.ExpectExec("INSERT INTO assignments").
		WillReturnResult(sqlmock.NewResult(0, 1))

	ids, err := repo.InsertBatch(context.Background(), nil, batch)
	require.NoError(t, err)
	require.Len(t, ids, 1)
	assert.NotEmpty(t, ids[0])
	assert.Equal(t, ids[0], batch[0].ID)
	assert.False(t, batch[0].CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignmentRepositoryCancelByIDNoRows(t *testing.T) {
	db, mock, cleanup := newAssignmentRepoMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	mock.ExpectExec("UPDATE assignments SET status = 'cancelled'").
		WithArgs("school-1", "asg-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.CancelByID(context.Background(), nil, repoTenant, "asg-1")
	assert.True(t, errors.Is(err, sql.ErrNoRows))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignmentRepositoryCancelByWeekdayWildcardClassroom(t *testing.T) {
	db, mock, cleanup := newAssignmentRepoMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("EXTRACT(ISODOW FROM date) = $4")).
		WithArgs("school-1", "abs-1", "sub-a", 1, "slot-am", "").
		WillReturnResult(sqlmock.NewResult(0, 3))

	affected, err := repo.CancelByWeekday(context.Background(), nil, repoTenant, "abs-1", "sub-a", 1, "slot-am", "")
	require.NoError(t, err)
	assert.Equal(t, 3, affected)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignmentRepositoryMarkPartialSkipsFlaggedRows(t *testing.T) {
	db, mock, cleanup := newAssignmentRepoMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("SET is_partial = TRUE")).
		WithArgs("school-1", "abs-1", "sub-a").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.MarkPartial(context.Background(), nil, repoTenant, "abs-1", "sub-a"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignmentRepositoryCancelAllForAbsence(t *testing.T) {
	db, mock, cleanup := newAssignmentRepoMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	mock.ExpectExec("UPDATE assignments SET status = 'cancelled'").
		WithArgs("school-1", "abs-1", "sub-a").
		WillReturnResult(sqlmock.NewResult(0, 2))

	affected, err := repo.CancelAllForAbsence(context.Background(), nil, repoTenant, "abs-1", "sub-a")
	require.NoError(t, err)
	assert.Equal(t, 2, affected)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignmentRepositoryFindActiveHolderNoRows(t *testing.T) {
	db, mock, cleanup := newAssignmentRepoMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	date := time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT .+ FROM assignments").
		WithArgs("school-1", "teacher-x", date, "slot-am").
		WillReturnError(sql.ErrNoRows)

	holder, err := repo.FindActiveHolder(context.Background(), repoTenant, "teacher-x", date, "slot-am")
	require.NoError(t, err)
	assert.Nil(t, holder)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignmentRepositoryCancelEventIdempotent(t *testing.T) {
	db, mock, cleanup := newAssignmentRepoMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	mock.ExpectExec("UPDATE flex_assignment_events SET status = 'cancelled'").
		WithArgs("evt-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.CancelEvent(context.Background(), nil, "evt-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignmentRepositoryListActiveByStaffRangeBuildsCoveringMap(t *testing.T) {
	db, mock, cleanup := newAssignmentRepoMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	from := time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 9, 11, 0, 0, 0, 0, time.UTC)
	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "school_id", "absence_id", "event_id", "staff_id", "teacher_id", "date", "time_slot_id",
		"classroom_id", "status", "is_partial", "kind", "notes", "created_at", "updated_at", "teacher_name",
	}).AddRow(
		"asg-1", "school-1", "abs-1", nil, "sub-a", "teacher-x", from, "slot-am",
		"room-a", "active", false, "recommended", "", now, now, "Pat Teacher",
	)
	mock.ExpectQuery("JOIN staff s ON s.id = a.teacher_id").
		WithArgs("school-1", "sub-a", from, to).
		WillReturnRows(rows)

	assignments, covering, err := repo.ListActiveByStaffRange(context.Background(), repoTenant, "sub-a", from, to)
	require.NoError(t, err)
	require.Len(t, assignments, 1)
	key := assignments[0].Key().SlotKey()
	ref, ok := covering[key]
	require.True(t, ok)
	assert.Equal(t, "teacher-x", ref.TeacherID)
	assert.Equal(t, "Pat Teacher", ref.TeacherName)
	assert.Equal(t, "room-a", ref.ClassroomID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
