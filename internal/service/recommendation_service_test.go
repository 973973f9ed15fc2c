package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careloop/staffing-api/internal/dto"
	"github.com/careloop/staffing-api/internal/models"
	"github.com/careloop/staffing-api/pkg/config"
)

type mockAbsenceResolver struct {
	absence *models.Absence
	err     error
}

func (m *mockAbsenceResolver) ResolveAbsence(ctx context.Context, tenant models.TenantContext, id string) (*models.Absence, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.absence, nil
}

type mockShiftLister struct {
	shifts []models.AbsenceShift
}

func (m *mockShiftLister) ListShifts(ctx context.Context, absenceID string) ([]models.AbsenceShift, error) {
	return m.shifts, nil
}

type mockCandidateLister struct {
	staff []models.Staff
}

func (m *mockCandidateLister) ListCandidates(ctx context.Context, tenant models.TenantContext, includeFlex bool) ([]models.Staff, error) {
	return m.staff, nil
}

// mockEvaluator returns available for slots listed per candidate and
// conflict_teaching for everything else.
type mockEvaluator struct {
	available map[string]map[string]bool // candidate -> SlotKey -> available
}

func (m *mockEvaluator) EvaluateCandidate(ctx context.Context, tenant models.TenantContext, candidateID string, from, to time.Time, keys []models.ShiftKey) ([]models.ShiftVerdict, error) {
	verdicts := make([]models.ShiftVerdict, 0, len(keys))
	for _, key := range keys {
		if m.available[candidateID][key.SlotKey()] {
			verdicts = append(verdicts, models.ShiftVerdict{Key: key, Status: models.ShiftStatusAvailable})
		} else {
			verdicts = append(verdicts, models.ShiftVerdict{Key: key, Status: models.ShiftStatusConflictTeaching, Message: msgTeachingConflict})
		}
	}
	return verdicts, nil
}

// Slot keys of the two fixture shifts, usable before the fixture is built.
const (
	mondaySlot  = "2026-09-07|slot-am"
	tuesdaySlot = "2026-09-08|slot-am"
)

func recommenderFixture(t *testing.T, candidates []models.Staff, available map[string]map[string]bool) *RecommendationService {
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

	svc := NewRecommendationService(
		&mockAbsenceResolver{absence: absence},
		&mockShiftLister{shifts: shifts},
		&mockCandidateLister{staff: candidates},
		&mockEvaluator{available: available},
		nil,
		config.RecommenderConfig{MaxCombinations: 3, PageSize: 10, CacheTTL: time.Minute},
		nil,
	)
	svc.now = func() time.Time { return mustDate(t, "2026-09-01") }
	return svc
}

func TestRecommendPrefersFullCoverOverPartialPair(t *testing.T) {
	// A covers only Monday, B covers both days. The primary combination must
	// be B alone, not A plus B.
	svc := recommenderFixture(t,
		[]models.Staff{
			{ID: "sub-a", FullName: "Alex", Role: models.StaffRoleSubstitute, Active: true},
			{ID: "sub-b", FullName: "Blake", Role: models.StaffRoleSubstitute, Active: true},
		},
		map[string]map[string]bool{
			"sub-a": {mondaySlot: true},
			"sub-b": {mondaySlot: true, tuesdaySlot: true},
		},
	)

	resp, err := svc.Recommend(context.Background(), testTenant, "abs-1", dto.RecommendOptions{})

	require.NoError(t, err)
	require.NotEmpty(t, resp.RecommendedCombinations)

	primary := resp.RecommendedCombinations[0]
	require.Len(t, primary.Members, 1)
	assert.Equal(t, "sub-b", primary.Members[0].CandidateID)
	assert.Equal(t, 2, primary.TotalShiftsCovered)
	assert.Equal(t, 2, primary.TotalShiftsNeeded)
	assert.InDelta(t, 100.0, primary.CoveragePercent, 0.001)
}

func TestRecommendAlternativesExcludePrimaryAnchor(t *testing.T) {
	svc := recommenderFixture(t,
		[]models.Staff{
			{ID: "sub-a", FullName: "Alex", Role: models.StaffRoleSubstitute, Active: true},
			{ID: "sub-b", FullName: "Blake", Role: models.StaffRoleSubstitute, Active: true},
			{ID: "sub-c", FullName: "Casey", Role: models.StaffRoleSubstitute, Active: true},
		},
		map[string]map[string]bool{
			"sub-a": {mondaySlot: true},
			"sub-b": {mondaySlot: true, tuesdaySlot: true},
			"sub-c": {tuesdaySlot: true},
		},
	)

	resp, err := svc.Recommend(context.Background(), testTenant, "abs-1", dto.RecommendOptions{})

	require.NoError(t, err)
	require.GreaterOrEqual(t, len(resp.RecommendedCombinations), 2)

	primary := resp.RecommendedCombinations[0]
	require.Len(t, primary.Members, 1)
	assert.Equal(t, "sub-b", primary.Members[0].CandidateID)

	alternative := resp.RecommendedCombinations[1]
	for _, member := range alternative.Members {
		assert.NotEqual(t, "sub-b", member.CandidateID)
	}
	assert.Equal(t, 2, alternative.TotalShiftsCovered)
	require.Len(t, alternative.Members, 2)
}

func TestRecommendDeterministicTieBreakByID(t *testing.T) {
	svc := recommenderFixture(t,
		[]models.Staff{
			{ID: "sub-z", FullName: "Zoe", Role: models.StaffRoleSubstitute, Active: true},
			{ID: "sub-a", FullName: "Alex", Role: models.StaffRoleSubstitute, Active: true},
		},
		map[string]map[string]bool{
			"sub-z": {mondaySlot: true},
			"sub-a": {mondaySlot: true},
		},
	)

	resp, err := svc.Recommend(context.Background(), testTenant, "abs-1", dto.RecommendOptions{})

	require.NoError(t, err)
	require.Len(t, resp.Subs, 2)
	assert.Equal(t, "sub-a", resp.Subs[0].CandidateID)
	assert.Equal(t, "sub-z", resp.Subs[1].CandidateID)

	require.NotEmpty(t, resp.RecommendedCombinations)
	assert.Equal(t, "sub-a", resp.RecommendedCombinations[0].Members[0].CandidateID)
}

func TestRecommendExcludesAbsentStaff(t *testing.T) {
	svc := recommenderFixture(t,
		[]models.Staff{
			{ID: "teacher-x", FullName: "The Absentee", Role: models.StaffRoleTeacher, IsFlex: true, Active: true},
			{ID: "sub-a", FullName: "Alex", Role: models.StaffRoleSubstitute, Active: true},
		},
		map[string]map[string]bool{
			"teacher-x": {mondaySlot: true, tuesdaySlot: true},
			"sub-a":     {mondaySlot: true},
		},
	)

	resp, err := svc.Recommend(context.Background(), testTenant, "abs-1", dto.RecommendOptions{IncludeFlexibleStaff: true})

	require.NoError(t, err)
	require.Len(t, resp.Subs, 1)
	assert.Equal(t, "sub-a", resp.Subs[0].CandidateID)
}

func TestRecommendEmptyWhenNobodyCovers(t *testing.T) {
	svc := recommenderFixture(t,
		[]models.Staff{
			{ID: "sub-a", FullName: "Alex", Role: models.StaffRoleSubstitute, Active: true},
		},
		map[string]map[string]bool{"sub-a": {}},
	)

	resp, err := svc.Recommend(context.Background(), testTenant, "abs-1", dto.RecommendOptions{})

	require.NoError(t, err)
	assert.Empty(t, resp.RecommendedCombinations)
	require.Len(t, resp.Subs, 1)
	assert.Equal(t, 0, resp.Subs[0].ShiftsCovered)
	assert.Equal(t, 2, resp.Subs[0].ConflictCount)
}

func TestRecommendSkipsPastShiftsByDefault(t *testing.T) {
	svc := recommenderFixture(t,
		[]models.Staff{
			{ID: "sub-a", FullName: "Alex", Role: models.StaffRoleSubstitute, Active: true},
		},
		map[string]map[string]bool{
			"sub-a": {mondaySlot: true, tuesdaySlot: true},
		},
	)
	svc.now = func() time.Time { return mustDate(t, "2026-09-08") }

	resp, err := svc.Recommend(context.Background(), testTenant, "abs-1", dto.RecommendOptions{})

	require.NoError(t, err)
	require.NotEmpty(t, resp.RecommendedCombinations)
	// Monday is in the past; only Tuesday remains.
	assert.Equal(t, 1, resp.RecommendedCombinations[0].TotalShiftsNeeded)
	assert.Equal(t, 1, resp.RecommendedCombinations[0].TotalShiftsCovered)

	withPast, err := svc.Recommend(context.Background(), testTenant, "abs-1", dto.RecommendOptions{IncludePastShifts: true})
	require.NoError(t, err)
	assert.Equal(t, 2, withPast.RecommendedCombinations[0].TotalShiftsNeeded)
}
