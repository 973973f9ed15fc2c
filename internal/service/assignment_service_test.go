package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careloop/staffing-api/internal/dto"
	"github.com/careloop/staffing-api/internal/models"
	"github.com/careloop/staffing-api/internal/repository"
	appErrors "github.com/careloop/staffing-api/pkg/errors"
)

type txProviderMock struct {
	db *sqlx.DB
}

func (t *txProviderMock) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return t.db.BeginTxx(ctx, opts)
}

func newTxProviderMock(t *testing.T) (txProvider, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	t.Cleanup(func() { db.Close() })
	return &txProviderMock{db: sqlxdb}, mock
}

type mockStaffFetcher struct {
	staff map[string]*models.Staff
}

func (m *mockStaffFetcher) FindByID(ctx context.Context, tenant models.TenantContext, id string) (*models.Staff, error) {
	if staff, ok := m.staff[id]; ok {
		cp := *staff
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

type mockAssignmentStore struct {
	active    []models.Assignment
	insertErr error

	inserted      []models.Assignment
	createdEvents []*models.FlexAssignmentEvent
	cancelledIDs  []string
	weekdayCalls  int
	allCalls      int
	partialCalls  int

	activeByEvent   map[string]int
	cancelledEvents []string
	remainingOnTgt  int
	holder          *models.Assignment
}

func (m *mockAssignmentStore) ListActiveByAbsence(ctx context.Context, tenant models.TenantContext, absenceID, staffID string) ([]models.Assignment, error) {
	if staffID == "" {
		return m.active, nil
	}
	var filtered []models.Assignment
	for _, a := range m.active {
		if a.StaffID == staffID {
			filtered = append(filtered, a)
		}
	}
	return filtered, nil
}

func (m *mockAssignmentStore) InsertBatch(ctx context.Context, exec sqlx.ExtContext, assignments []models.Assignment) ([]string, error) {
	if m.insertErr != nil {
		return nil, m.insertErr
	}
	ids := make([]string, 0, len(assignments))
	for i := range assignments {
		assignments[i].ID = fmt.Sprintf("asg-%d", len(m.inserted)+i+1)
		ids = append(ids, assignments[i].ID)
	}
	m.inserted = append(m.inserted, assignments...)
	return ids, nil
}

func (m *mockAssignmentStore) FindActiveHolder(ctx context.Context, tenant models.TenantContext, teacherID string, date time.Time, timeSlotID string) (*models.Assignment, error) {
	return m.holder, nil
}

func (m *mockAssignmentStore) CancelByID(ctx context.Context, exec sqlx.ExtContext, tenant models.TenantContext, id string) error {
	m.cancelledIDs = append(m.cancelledIDs, id)
	return nil
}

func (m *mockAssignmentStore) CancelByWeekday(ctx context.Context, exec sqlx.ExtContext, tenant models.TenantContext, absenceID, staffID string, dayOfWeek int, timeSlotID, classroomID string) (int, error) {
	m.weekdayCalls++
	return 0, nil
}

func (m *mockAssignmentStore) CancelAllForAbsence(ctx context.Context, exec sqlx.ExtContext, tenant models.TenantContext, absenceID, staffID string) (int, error) {
	m.allCalls++
	return 0, nil
}

func (m *mockAssignmentStore) MarkPartial(ctx context.Context, exec sqlx.ExtContext, tenant models.TenantContext, absenceID, staffID string) error {
	m.partialCalls++
	return nil
}

func (m *mockAssignmentStore) CountActiveOnShift(ctx context.Context, exec sqlx.ExtContext, tenant models.TenantContext, teacherID string, date time.Time, timeSlotID string) (int, error) {
	return m.remainingOnTgt, nil
}

func (m *mockAssignmentStore) CreateEvent(ctx context.Context, exec sqlx.ExtContext, event *models.FlexAssignmentEvent) error {
	event.ID = fmt.Sprintf("evt-%d", len(m.createdEvents)+1)
	m.createdEvents = append(m.createdEvents, event)
	return nil
}

func (m *mockAssignmentStore) CountActiveByEvent(ctx context.Context, exec sqlx.ExtContext, eventID string) (int, error) {
	return m.activeByEvent[eventID], nil
}

func (m *mockAssignmentStore) CancelEvent(ctx context.Context, exec sqlx.ExtContext, eventID string) error {
	m.cancelledEvents = append(m.cancelledEvents, eventID)
	return nil
}

type mockCoverageUpdater struct {
	total   int
	covered int
	status  models.AbsenceStatus
	calls   int
}

func (m *mockCoverageUpdater) UpdateCoverage(ctx context.Context, exec sqlx.ExtContext, absenceID string, total, covered int, status models.AbsenceStatus) error {
	m.total, m.covered, m.status = total, covered, status
	m.calls++
	return nil
}

type mockAuditRecorder struct {
	actions []string
}

func (m *mockAuditRecorder) Record(tenant models.TenantContext, action, resource, resourceID string, detail interface{}) {
	m.actions = append(m.actions, action)
}

type mockCacheInvalidator struct {
	patterns []string
}

func (m *mockCacheInvalidator) DeleteByPattern(ctx context.Context, pattern string) error {
	m.patterns = append(m.patterns, pattern)
	return nil
}

type assignmentFixture struct {
	service *AssignmentService
	store   *mockAssignmentStore
	absence *mockCoverageUpdater
	audit   *mockAuditRecorder
	cache   *mockCacheInvalidator
	mock    sqlmock.Sqlmock
	shifts  []models.AbsenceShift
}

func newAssignmentFixture(t *testing.T, store *mockAssignmentStore, available map[string]map[string]bool) *assignmentFixture {
	t.Helper()
	monday := mustDate(t, "2026-09-07")
	tuesday := mustDate(t, "2026-09-08")
	shifts := []models.AbsenceShift{
		{ID: "s1", AbsenceID: "abs-1", Date: monday, TimeSlotID: "slot-am", ClassroomID: "room-a"},
		{ID: "s2", AbsenceID: "abs-1", Date: tuesday, TimeSlotID: "slot-am", ClassroomID: "room-a"},
	}
	absence := &models.Absence{
		ID: "abs-1", SchoolID: testTenant.SchoolID, StaffID: "teacher-x",
		StartDate: monday, EndDate: tuesday, Status: models.AbsenceStatusOpen,
	}
	if store == nil {
		store = &mockAssignmentStore{}
	}
	if available == nil {
		available = map[string]map[string]bool{
			"sub-a": {shifts[0].Key().SlotKey(): true, shifts[1].Key().SlotKey(): true},
		}
	}

	tx, mock := newTxProviderMock(t)
	updater := &mockCoverageUpdater{}
	audit := &mockAuditRecorder{}
	cache := &mockCacheInvalidator{}
	service := NewAssignmentService(
		&mockAbsenceResolver{absence: absence},
		&mockShiftLister{shifts: shifts},
		&mockStaffFetcher{staff: map[string]*models.Staff{
			"sub-a": {ID: "sub-a", FullName: "Alex", Role: models.StaffRoleSubstitute, Active: true},
			"idle":  {ID: "idle", FullName: "Idle", Role: models.StaffRoleSubstitute, Active: false},
		}},
		&mockEvaluator{available: available},
		store,
		updater,
		tx,
		audit,
		cache,
		nil,
		nil,
	)
	return &assignmentFixture{service: service, store: store, absence: updater, audit: audit, cache: cache, mock: mock, shifts: shifts}
}

func TestAssignShiftsCreatesBatch(t *testing.T) {
	f := newAssignmentFixture(t, nil, nil)
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	resp, err := f.service.AssignShifts(context.Background(), testTenant, "abs-1", dto.AssignShiftsRequest{
		CandidateID: "sub-a",
		ShiftIDs:    []string{"s1", "s2"},
	})

	require.NoError(t, err)
	require.Len(t, resp.AssignmentIDs, 2)
	assert.Empty(t, resp.EventID)
	require.Len(t, f.store.inserted, 2)
	assert.Equal(t, "teacher-x", f.store.inserted[0].TeacherID)
	assert.Equal(t, models.AssignmentKindRecommended, f.store.inserted[0].Kind)

	assert.Equal(t, 2, f.absence.total)
	assert.Equal(t, 2, f.absence.covered)
	assert.Equal(t, models.AbsenceStatusFilled, f.absence.status)
	assert.False(t, f.store.inserted[0].IsPartial, "full-cover batch is not partial")
	assert.Equal(t, []string{"assignment.create"}, f.audit.actions)
	require.Len(t, f.cache.patterns, 1)
	assert.Contains(t, f.cache.patterns[0], "abs-1")
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestAssignShiftsFlagsPartialBatch(t *testing.T) {
	f := newAssignmentFixture(t, nil, nil)
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	resp, err := f.service.AssignShifts(context.Background(), testTenant, "abs-1", dto.AssignShiftsRequest{
		CandidateID: "sub-a",
		ShiftIDs:    []string{"s1"},
	})

	require.NoError(t, err)
	require.Len(t, resp.AssignmentIDs, 1)
	require.Len(t, f.store.inserted, 1)
	assert.True(t, f.store.inserted[0].IsPartial, "one shift out of two is partial cover")
	assert.Equal(t, 2, f.absence.total)
	assert.Equal(t, 1, f.absence.covered)
	assert.Equal(t, models.AbsenceStatusOpen, f.absence.status)
}

func TestAssignShiftsFlexCreatesEvent(t *testing.T) {
	f := newAssignmentFixture(t, nil, nil)
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	resp, err := f.service.AssignShifts(context.Background(), testTenant, "abs-1", dto.AssignShiftsRequest{
		CandidateID: "sub-a",
		ShiftIDs:    []string{"s1", "s2"},
		Kind:        models.AssignmentKindFlex,
	})

	require.NoError(t, err)
	assert.Equal(t, "evt-1", resp.EventID)
	require.Len(t, f.store.createdEvents, 1)
	require.NotNil(t, f.store.inserted[0].EventID)
	assert.Equal(t, "evt-1", *f.store.inserted[0].EventID)
}

func TestAssignShiftsRejectsUnavailableCandidate(t *testing.T) {
	f := newAssignmentFixture(t, nil, map[string]map[string]bool{"sub-a": {}})

	_, err := f.service.AssignShifts(context.Background(), testTenant, "abs-1", dto.AssignShiftsRequest{
		CandidateID: "sub-a",
		ShiftIDs:    []string{"s1"},
	})

	var conflict *models.AssignmentConflictError
	require.ErrorAs(t, err, &conflict)
	require.Len(t, conflict.Conflicts, 1)
	assert.Empty(t, f.store.inserted)
}

func TestAssignShiftsMapsUniqueViolationToConflict(t *testing.T) {
	store := &mockAssignmentStore{
		insertErr: fmt.Errorf("insert assignment: %w", repository.ErrDuplicateActiveAssignment),
		holder:    &models.Assignment{ID: "asg-9", StaffID: "sub-z"},
	}
	f := newAssignmentFixture(t, store, nil)
	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	_, err := f.service.AssignShifts(context.Background(), testTenant, "abs-1", dto.AssignShiftsRequest{
		CandidateID: "sub-a",
		ShiftIDs:    []string{"s1"},
	})

	var conflict *models.AssignmentConflictError
	require.ErrorAs(t, err, &conflict)
	require.NotEmpty(t, conflict.Conflicts)
	assert.Equal(t, "sub-z", conflict.Conflicts[0].HeldBy)
	assert.Empty(t, f.audit.actions)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestAssignShiftsRejectsSelfCoverage(t *testing.T) {
	f := newAssignmentFixture(t, nil, nil)

	_, err := f.service.AssignShifts(context.Background(), testTenant, "abs-1", dto.AssignShiftsRequest{
		CandidateID: "teacher-x",
		ShiftIDs:    []string{"s1"},
	})

	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestAssignShiftsRejectsForeignShift(t *testing.T) {
	f := newAssignmentFixture(t, nil, nil)

	_, err := f.service.AssignShifts(context.Background(), testTenant, "abs-1", dto.AssignShiftsRequest{
		CandidateID: "sub-a",
		ShiftIDs:    []string{"someone-elses-shift"},
	})

	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestAssignShiftsRejectsInactiveCandidate(t *testing.T) {
	f := newAssignmentFixture(t, nil, map[string]map[string]bool{"idle": {}})

	_, err := f.service.AssignShifts(context.Background(), testTenant, "abs-1", dto.AssignShiftsRequest{
		CandidateID: "idle",
		ShiftIDs:    []string{"s1"},
	})

	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestUnassignSingleReportsRemaining(t *testing.T) {
	monday, _ := models.ParseShiftDate("2026-09-07")
	store := &mockAssignmentStore{
		active: []models.Assignment{
			{ID: "asg-1", StaffID: "sub-a", TeacherID: "teacher-x", AbsenceID: "abs-1", Date: monday, TimeSlotID: "slot-am", ClassroomID: "room-a", Status: models.AssignmentStatusActive},
		},
		remainingOnTgt: 0,
	}
	f := newAssignmentFixture(t, store, nil)
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	resp, err := f.service.UnassignShifts(context.Background(), testTenant, "abs-1", dto.UnassignShiftsRequest{
		CandidateID: "sub-a",
		Scope:       models.UnassignScopeSingle,
		Target:      &dto.UnassignTarget{AssignmentID: "asg-1"},
	})

	require.NoError(t, err)
	assert.Equal(t, 1, resp.RemovedCount)
	assert.Equal(t, 0, resp.RemainingActiveOnTargetShift)
	assert.False(t, resp.EventCancelled)
	assert.Equal(t, []string{"asg-1"}, store.cancelledIDs)
	assert.Equal(t, 1, store.partialCalls, "surviving rows are demoted to partial cover")
	assert.Equal(t, models.AbsenceStatusOpen, f.absence.status)
	assert.Equal(t, []string{"assignment.cancel"}, f.audit.actions)
}

func TestUnassignWeekdayMatchesRecurringSlot(t *testing.T) {
	monday, _ := models.ParseShiftDate("2026-09-07")
	tuesday, _ := models.ParseShiftDate("2026-09-08")
	store := &mockAssignmentStore{
		active: []models.Assignment{
			{ID: "asg-1", StaffID: "sub-a", AbsenceID: "abs-1", Date: monday, TimeSlotID: "slot-am", ClassroomID: "room-a", Status: models.AssignmentStatusActive},
			{ID: "asg-2", StaffID: "sub-a", AbsenceID: "abs-1", Date: tuesday, TimeSlotID: "slot-am", ClassroomID: "room-a", Status: models.AssignmentStatusActive},
		},
	}
	f := newAssignmentFixture(t, store, nil)
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	resp, err := f.service.UnassignShifts(context.Background(), testTenant, "abs-1", dto.UnassignShiftsRequest{
		CandidateID: "sub-a",
		Scope:       models.UnassignScopeWeekday,
		Target:      &dto.UnassignTarget{DayOfWeek: 1, TimeSlotID: "slot-am", ClassroomID: "room-a"},
	})

	require.NoError(t, err)
	assert.Equal(t, 1, resp.RemovedCount)
	assert.Equal(t, 1, store.weekdayCalls)
}

func TestUnassignAllCascadesFlexEvent(t *testing.T) {
	monday, _ := models.ParseShiftDate("2026-09-07")
	tuesday, _ := models.ParseShiftDate("2026-09-08")
	eventID := "evt-1"
	store := &mockAssignmentStore{
		active: []models.Assignment{
			{ID: "asg-1", StaffID: "sub-a", AbsenceID: "abs-1", EventID: &eventID, Date: monday, TimeSlotID: "slot-am", Status: models.AssignmentStatusActive},
			{ID: "asg-2", StaffID: "sub-a", AbsenceID: "abs-1", EventID: &eventID, Date: tuesday, TimeSlotID: "slot-am", Status: models.AssignmentStatusActive},
		},
		activeByEvent: map[string]int{"evt-1": 0},
	}
	f := newAssignmentFixture(t, store, nil)
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	resp, err := f.service.UnassignShifts(context.Background(), testTenant, "abs-1", dto.UnassignShiftsRequest{
		CandidateID: "sub-a",
		Scope:       models.UnassignScopeAll,
	})

	require.NoError(t, err)
	assert.Equal(t, 2, resp.RemovedCount)
	assert.True(t, resp.EventCancelled)
	assert.Equal(t, []string{"evt-1"}, store.cancelledEvents)
	assert.Equal(t, 1, store.allCalls)
	assert.Equal(t, 0, store.partialCalls, "nothing survives a full removal")
	assert.Equal(t, 0, f.absence.covered)
}

func TestUnassignKeepsEventWithRemainingAssignments(t *testing.T) {
	monday, _ := models.ParseShiftDate("2026-09-07")
	eventID := "evt-1"
	store := &mockAssignmentStore{
		active: []models.Assignment{
			{ID: "asg-1", StaffID: "sub-a", AbsenceID: "abs-1", EventID: &eventID, Date: monday, TimeSlotID: "slot-am", Status: models.AssignmentStatusActive},
		},
		activeByEvent: map[string]int{"evt-1": 1},
	}
	f := newAssignmentFixture(t, store, nil)
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	resp, err := f.service.UnassignShifts(context.Background(), testTenant, "abs-1", dto.UnassignShiftsRequest{
		CandidateID: "sub-a",
		Scope:       models.UnassignScopeSingle,
		Target:      &dto.UnassignTarget{AssignmentID: "asg-1"},
	})

	require.NoError(t, err)
	assert.False(t, resp.EventCancelled)
	assert.Empty(t, store.cancelledEvents)
}

func TestUnassignNoMatchReturnsNotFound(t *testing.T) {
	f := newAssignmentFixture(t, &mockAssignmentStore{}, nil)

	_, err := f.service.UnassignShifts(context.Background(), testTenant, "abs-1", dto.UnassignShiftsRequest{
		CandidateID: "sub-a",
		Scope:       models.UnassignScopeAll,
	})

	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}
