package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/careloop/staffing-api/internal/dto"
	"github.com/careloop/staffing-api/internal/models"
	"github.com/careloop/staffing-api/pkg/config"
	appErrors "github.com/careloop/staffing-api/pkg/errors"
)

type candidateLister interface {
	ListCandidates(ctx context.Context, tenant models.TenantContext, includeFlex bool) ([]models.Staff, error)
}

type absenceResolver interface {
	ResolveAbsence(ctx context.Context, tenant models.TenantContext, id string) (*models.Absence, error)
}

type shiftLister interface {
	ListShifts(ctx context.Context, absenceID string) ([]models.AbsenceShift, error)
}

type candidateEvaluator interface {
	EvaluateCandidate(ctx context.Context, tenant models.TenantContext, candidateID string, from, to time.Time, keys []models.ShiftKey) ([]models.ShiftVerdict, error)
}

type recommendationCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// RecommendationService ranks substitute candidates against an absence and
// assembles minimal covering combinations.
type RecommendationService struct {
	coverage  absenceResolver
	shifts    shiftLister
	staff     candidateLister
	evaluator candidateEvaluator
	cache     recommendationCache
	cfg       config.RecommenderConfig
	logger    *zap.Logger
	now       func() time.Time
}

// NewRecommendationService wires the recommender. cache may be nil when Redis
// is disabled.
func NewRecommendationService(
	coverage absenceResolver,
	shifts shiftLister,
	staff candidateLister,
	evaluator candidateEvaluator,
	cache recommendationCache,
	cfg config.RecommenderConfig,
	logger *zap.Logger,
) *RecommendationService {
	if cfg.MaxCombinations <= 0 {
		cfg.MaxCombinations = 3
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 10
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 2 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecommendationService{
		coverage:  coverage,
		shifts:    shifts,
		staff:     staff,
		evaluator: evaluator,
		cache:     cache,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// candidateRank is the per-candidate working state the greedy pass consumes.
type candidateRank struct {
	staff     models.Staff
	verdicts  []models.ShiftVerdict
	covers    map[string]string // SlotKey -> shift id
	conflicts int
}

// Recommend evaluates every eligible candidate against the absence's open
// shifts and returns per-candidate verdicts plus ranked covering
// combinations. Results are cached briefly since rosters shift slowly
// relative to how often coordinators refresh the screen.
func (s *RecommendationService) Recommend(ctx context.Context, tenant models.TenantContext, absenceID string, opts dto.RecommendOptions) (*dto.RecommendResponse, error) {
	if opts.Page < 1 {
		opts.Page = 1
	}

	cacheKey := fmt.Sprintf("recommend:%s:%s:flex=%t:past=%t:page=%d",
		tenant.SchoolID, absenceID, opts.IncludeFlexibleStaff, opts.IncludePastShifts, opts.Page)
	if s.cache != nil {
		var cached dto.RecommendResponse
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			return &cached, nil
		}
	}

	absence, err := s.coverage.ResolveAbsence(ctx, tenant, absenceID)
	if err != nil {
		return nil, err
	}

	shifts, err := s.shifts.ListShifts(ctx, absence.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "failed to list absence shifts")
	}
	shifts = s.filterPast(shifts, opts.IncludePastShifts)

	response := &dto.RecommendResponse{
		CoverageRequestID:       absence.ID,
		Subs:                    []dto.SubRecommendation{},
		RecommendedCombinations: []dto.Combination{},
	}
	if len(shifts) == 0 {
		return response, nil
	}

	keys := make([]models.ShiftKey, 0, len(shifts))
	shiftIDBySlot := make(map[string]string, len(shifts))
	for _, shift := range shifts {
		key := shift.Key()
		keys = append(keys, key)
		shiftIDBySlot[key.SlotKey()] = shift.ID
	}

	roster, err := s.staff.ListCandidates(ctx, tenant, opts.IncludeFlexibleStaff)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "failed to list candidates")
	}

	ranks := make([]candidateRank, 0, len(roster))
	for _, candidate := range roster {
		if candidate.ID == absence.StaffID {
			continue
		}
		verdicts, evalErr := s.evaluator.EvaluateCandidate(ctx, tenant, candidate.ID, absence.StartDate, absence.EndDate, keys)
		if evalErr != nil {
			return nil, evalErr
		}
		rank := candidateRank{staff: candidate, verdicts: verdicts, covers: map[string]string{}}
		for _, verdict := range verdicts {
			switch {
			case verdict.Status == models.ShiftStatusAvailable:
				rank.covers[verdict.Key.SlotKey()] = shiftIDBySlot[verdict.Key.SlotKey()]
			case verdict.Status.IsConflict():
				rank.conflicts++
			}
		}
		ranks = append(ranks, rank)
	}

	sortRanks(ranks)
	response.Subs = s.pageSubs(ranks, opts.Page)
	response.RecommendedCombinations = s.buildCombinations(ranks, len(shifts))

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, response, s.cfg.CacheTTL); err != nil {
			s.logger.Sugar().Warnw("failed to cache recommendation", "key", cacheKey, "error", err)
		}
	}
	return response, nil
}

func (s *RecommendationService) filterPast(shifts []models.AbsenceShift, includePast bool) []models.AbsenceShift {
	if includePast {
		return shifts
	}
	today := models.NewShiftKey(s.now().UTC(), "", "").Date
	kept := shifts[:0:0]
	for _, shift := range shifts {
		if !shift.Date.Before(today) {
			kept = append(kept, shift)
		}
	}
	return kept
}

// sortRanks orders candidates by coverage descending, then conflicts
// ascending, then id ascending so equal inputs always produce equal output.
func sortRanks(ranks []candidateRank) {
	sort.SliceStable(ranks, func(i, j int) bool {
		if len(ranks[i].covers) != len(ranks[j].covers) {
			return len(ranks[i].covers) > len(ranks[j].covers)
		}
		if ranks[i].conflicts != ranks[j].conflicts {
			return ranks[i].conflicts < ranks[j].conflicts
		}
		return ranks[i].staff.ID < ranks[j].staff.ID
	})
}

func (s *RecommendationService) pageSubs(ranks []candidateRank, page int) []dto.SubRecommendation {
	start := (page - 1) * s.cfg.PageSize
	if start >= len(ranks) {
		return []dto.SubRecommendation{}
	}
	end := start + s.cfg.PageSize
	if end > len(ranks) {
		end = len(ranks)
	}

	subs := make([]dto.SubRecommendation, 0, end-start)
	for _, rank := range ranks[start:end] {
		verdicts := make([]dto.ShiftVerdictPayload, 0, len(rank.verdicts))
		for _, verdict := range rank.verdicts {
			verdicts = append(verdicts, dto.ShiftVerdictPayload{
				Date:        verdict.Key.Date.Format(models.DateLayout),
				TimeSlotID:  verdict.Key.TimeSlotID,
				ClassroomID: verdict.Key.ClassroomID,
				Status:      verdict.Status,
				Message:     verdict.Message,
				Metadata:    verdict.Metadata,
			})
		}
		subs = append(subs, dto.SubRecommendation{
			CandidateID:   rank.staff.ID,
			CandidateName: rank.staff.FullName,
			IsFlex:        rank.staff.IsFlex,
			ShiftsCovered: len(rank.covers),
			ConflictCount: rank.conflicts,
			Verdicts:      verdicts,
		})
	}
	return subs
}

// buildCombinations runs greedy set cover over the ranked candidates. The
// primary combination always picks the candidate covering the most remaining
// shifts; alternatives re-run the greedy pass with the primary's first member
// excluded, which surfaces genuinely different rosters instead of prefix
// permutations of the same one.
func (s *RecommendationService) buildCombinations(ranks []candidateRank, totalNeeded int) []dto.Combination {
	if totalNeeded == 0 {
		return []dto.Combination{}
	}

	combinations := make([]dto.Combination, 0, s.cfg.MaxCombinations)
	excluded := map[string]struct{}{}
	seen := map[string]struct{}{}
	for len(combinations) < s.cfg.MaxCombinations {
		combo, firstMember := s.greedyCover(ranks, totalNeeded, excluded)
		if combo == nil || firstMember == "" {
			break
		}
		signature := comboSignature(*combo)
		if _, dup := seen[signature]; !dup {
			seen[signature] = struct{}{}
			combinations = append(combinations, *combo)
		}
		excluded[firstMember] = struct{}{}
	}
	return combinations
}

func (s *RecommendationService) greedyCover(ranks []candidateRank, totalNeeded int, excluded map[string]struct{}) (*dto.Combination, string) {
	remaining := map[string]struct{}{}
	for _, rank := range ranks {
		for slot := range rank.covers {
			remaining[slot] = struct{}{}
		}
	}
	// Only shifts at least one candidate can take are coverable; totalNeeded
	// still counts every shift so the percentage reflects true coverage.

	combo := dto.Combination{TotalShiftsNeeded: totalNeeded}
	used := map[string]struct{}{}
	var firstMember string
	for len(remaining) > 0 {
		best := -1
		bestGain := 0
		for i, rank := range ranks {
			if _, skip := excluded[rank.staff.ID]; skip {
				continue
			}
			if _, skip := used[rank.staff.ID]; skip {
				continue
			}
			gain := 0
			for slot := range rank.covers {
				if _, open := remaining[slot]; open {
					gain++
				}
			}
			if gain > bestGain {
				best, bestGain = i, gain
			}
		}
		if best < 0 {
			break
		}

		rank := ranks[best]
		used[rank.staff.ID] = struct{}{}
		if firstMember == "" {
			firstMember = rank.staff.ID
		}

		var shiftIDs []string
		for slot, shiftID := range rank.covers {
			if _, open := remaining[slot]; open {
				delete(remaining, slot)
				shiftIDs = append(shiftIDs, shiftID)
				combo.TotalShiftsCovered++
			}
		}
		sort.Strings(shiftIDs)
		combo.Members = append(combo.Members, dto.CombinationMember{
			CandidateID:   rank.staff.ID,
			CandidateName: rank.staff.FullName,
			ShiftIDs:      shiftIDs,
		})
		combo.TotalConflicts += rank.conflicts
	}

	if len(combo.Members) == 0 {
		return nil, ""
	}
	combo.CoveragePercent = float64(combo.TotalShiftsCovered) / float64(totalNeeded) * 100
	return &combo, firstMember
}

func comboSignature(combo dto.Combination) string {
	ids := make([]string, 0, len(combo.Members))
	for _, member := range combo.Members {
		ids = append(ids, member.CandidateID)
	}
	sort.Strings(ids)
	signature := ""
	for _, id := range ids {
		signature += id + "|"
	}
	return signature
}
