package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/careloop/staffing-api/internal/dto"
	"github.com/careloop/staffing-api/internal/models"
	"github.com/careloop/staffing-api/pkg/config"
	appErrors "github.com/careloop/staffing-api/pkg/errors"
)

type timeOffFetcher interface {
	FindByID(ctx context.Context, tenant models.TenantContext, id string) (*models.TimeOffRequest, error)
}

type absenceRepository interface {
	FindByID(ctx context.Context, tenant models.TenantContext, id string) (*models.Absence, error)
	FindByTimeOff(ctx context.Context, tenant models.TenantContext, timeOffID string) (*models.Absence, error)
	Create(ctx context.Context, exec sqlx.ExtContext, absence *models.Absence) error
	ListShifts(ctx context.Context, absenceID string) ([]models.AbsenceShift, error)
	InsertShifts(ctx context.Context, exec sqlx.ExtContext, shifts []models.AbsenceShift) error
	UpdateCoverage(ctx context.Context, exec sqlx.ExtContext, absenceID string, total, covered int, status models.AbsenceStatus) error
}

type absenceAssignmentReader interface {
	ListActiveByAbsence(ctx context.Context, tenant models.TenantContext, absenceID, staffID string) ([]models.Assignment, error)
}

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

// CoverageService materializes coverage requests from time-off windows and
// keeps their shift sets in sync with the absentee's baseline schedule.
type CoverageService struct {
	absences    absenceRepository
	timeOff     timeOffFetcher
	baseline    baselineReader
	assignments absenceAssignmentReader
	tx          txProvider
	cfg         config.CoverageConfig
	logger      *zap.Logger
}

// NewCoverageService wires the coverage materializer.
func NewCoverageService(
	absences absenceRepository,
	timeOff timeOffFetcher,
	baseline baselineReader,
	assignments absenceAssignmentReader,
	tx txProvider,
	cfg config.CoverageConfig,
	logger *zap.Logger,
) *CoverageService {
	if cfg.ReviewClassroomID == "" {
		cfg.ReviewClassroomID = "needs-review"
	}
	if cfg.MaxRangeDays <= 0 {
		cfg.MaxRangeDays = 92
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CoverageService{
		absences:    absences,
		timeOff:     timeOff,
		baseline:    baseline,
		assignments: assignments,
		tx:          tx,
		cfg:         cfg,
		logger:      logger,
	}
}

// GetCoverageRequest resolves or materializes the coverage request for the
// given id (an absence id or the originating time-off request id) and returns
// its shift map. Calling it repeatedly is idempotent: the same
// coverageRequestId comes back and shift rows are only ever added by diff,
// never recreated, so existing cancellations survive.
func (s *CoverageService) GetCoverageRequest(ctx context.Context, tenant models.TenantContext, id string) (*dto.CoverageRequestResponse, error) {
	if id == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "absence id is required")
	}

	absence, err := s.resolveAbsence(ctx, tenant, id)
	if err != nil {
		return nil, err
	}
	if absence == nil {
		absence, err = s.materialize(ctx, tenant, id)
		if err != nil {
			return nil, err
		}
	}

	if err := s.syncShifts(ctx, tenant, absence); err != nil {
		return nil, err
	}

	return s.buildResponse(ctx, tenant, absence)
}

// ResolveAbsence returns the absence for an absence id or time-off id without
// materializing. Used by the recommender and assignment manager, which require
// the coverage request to already exist.
func (s *CoverageService) ResolveAbsence(ctx context.Context, tenant models.TenantContext, id string) (*models.Absence, error) {
	absence, err := s.resolveAbsence(ctx, tenant, id)
	if err != nil {
		return nil, err
	}
	if absence == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "coverage request not found")
	}
	return absence, nil
}

func (s *CoverageService) resolveAbsence(ctx context.Context, tenant models.TenantContext, id string) (*models.Absence, error) {
	absence, err := s.absences.FindByID(ctx, tenant, id)
	if err == nil {
		return absence, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "failed to load absence")
	}

	absence, err = s.absences.FindByTimeOff(ctx, tenant, id)
	if err == nil {
		return absence, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "failed to load absence by time off")
	}
	return nil, nil
}

func (s *CoverageService) materialize(ctx context.Context, tenant models.TenantContext, timeOffID string) (*models.Absence, error) {
	request, err := s.timeOff.FindByID(ctx, tenant, timeOffID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "time off request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "failed to load time off request")
	}

	rangeDays := int(request.EndDate.Sub(request.StartDate).Hours()/24) + 1
	if rangeDays <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "time off request has an empty date range")
	}
	if rangeDays > s.cfg.MaxRangeDays {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("date range exceeds %d days", s.cfg.MaxRangeDays))
	}

	absence := &models.Absence{
		SchoolID:  tenant.SchoolID,
		StaffID:   request.StaffID,
		TimeOffID: request.ID,
		StartDate: request.StartDate,
		EndDate:   request.EndDate,
		Status:    models.AbsenceStatusOpen,
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = s.absences.Create(ctx, tx, absence); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create coverage request")
		return nil, err
	}

	shifts, expandErr := s.expandShifts(ctx, tenant, absence)
	if expandErr != nil {
		err = expandErr
		return nil, err
	}
	if err = s.absences.InsertShifts(ctx, tx, shifts); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to materialize shifts")
		return nil, err
	}
	if err = s.absences.UpdateCoverage(ctx, tx, absence.ID, len(shifts), 0, models.AbsenceStatusOpen); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to set coverage counters")
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit materialization")
		return nil, err
	}

	absence.TotalShifts = len(shifts)
	s.logger.Sugar().Infow("coverage request materialized",
		"absence_id", absence.ID, "time_off_id", absence.TimeOffID, "shifts", len(shifts))
	return absence, nil
}

// expandShifts derives the absence's shift obligations from the absentee's
// baseline grid: one shift per (date, slot, classroom) the teacher normally
// works. Entries without a classroom fall back to the review sentinel.
func (s *CoverageService) expandShifts(ctx context.Context, tenant models.TenantContext, absence *models.Absence) ([]models.AbsenceShift, error) {
	entries, err := s.baseline.ListByTeacher(ctx, tenant, absence.StaffID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "failed to load absentee baseline schedule")
	}
	byDay := make(map[int][]models.BaselineScheduleEntry)
	for _, entry := range entries {
		byDay[entry.DayOfWeek] = append(byDay[entry.DayOfWeek], entry)
	}

	var shifts []models.AbsenceShift
	for date := absence.StartDate; !date.After(absence.EndDate); date = date.AddDate(0, 0, 1) {
		day := models.NewShiftKey(date, "", "").DayOfWeek()
		for _, entry := range byDay[day] {
			classroom := entry.ClassroomID
			if classroom == "" {
				classroom = s.cfg.ReviewClassroomID
			}
			shifts = append(shifts, models.AbsenceShift{
				AbsenceID:    absence.ID,
				Date:         models.NewShiftKey(date, "", "").Date,
				TimeSlotID:   entry.TimeSlotID,
				ClassroomID:  classroom,
				ClassGroupID: entry.ClassGroupID,
			})
		}
	}
	return shifts, nil
}

// syncShifts diffs the expected shift set against the materialized rows and
// inserts only the missing keys. Shifts are never recreated wholesale: that
// would orphan cancellations recorded against existing rows.
func (s *CoverageService) syncShifts(ctx context.Context, tenant models.TenantContext, absence *models.Absence) error {
	existing, err := s.absences.ListShifts(ctx, absence.ID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "failed to list absence shifts")
	}
	have := make(map[string]struct{}, len(existing))
	for _, shift := range existing {
		have[shift.Key().String()] = struct{}{}
	}

	expected, err := s.expandShifts(ctx, tenant, absence)
	if err != nil {
		return err
	}
	var missing []models.AbsenceShift
	for _, shift := range expected {
		if _, ok := have[shift.Key().String()]; !ok {
			missing = append(missing, shift)
		}
	}

	total := len(existing) + len(missing)
	covered, err := s.countCovered(ctx, tenant, absence.ID)
	if err != nil {
		return err
	}
	status := absence.Status
	if status != models.AbsenceStatusCancelled {
		status = models.AbsenceStatusOpen
		if total > 0 && covered >= total {
			status = models.AbsenceStatusFilled
		}
	}

	if len(missing) == 0 && total == absence.TotalShifts && covered == absence.CoveredShifts && status == absence.Status {
		return nil
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = s.absences.InsertShifts(ctx, tx, missing); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sync absence shifts")
		return err
	}
	if err = s.absences.UpdateCoverage(ctx, tx, absence.ID, total, covered, status); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to refresh coverage counters")
		return err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit shift sync")
		return err
	}

	absence.TotalShifts = total
	absence.CoveredShifts = covered
	absence.Status = status
	return nil
}

func (s *CoverageService) countCovered(ctx context.Context, tenant models.TenantContext, absenceID string) (int, error) {
	active, err := s.assignments.ListActiveByAbsence(ctx, tenant, absenceID, "")
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "failed to list absence assignments")
	}
	covered := make(map[string]struct{}, len(active))
	for _, assignment := range active {
		covered[assignment.Key().SlotKey()] = struct{}{}
	}
	return len(covered), nil
}

func (s *CoverageService) buildResponse(ctx context.Context, tenant models.TenantContext, absence *models.Absence) (*dto.CoverageRequestResponse, error) {
	shifts, err := s.absences.ListShifts(ctx, absence.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "failed to list absence shifts")
	}
	active, err := s.assignments.ListActiveByAbsence(ctx, tenant, absence.ID, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "failed to list absence assignments")
	}
	coveredBy := make(map[string]string, len(active))
	for _, assignment := range active {
		coveredBy[assignment.Key().SlotKey()] = assignment.StaffID
	}

	payload := make([]dto.CoverageShift, 0, len(shifts))
	for _, shift := range shifts {
		staffID, covered := coveredBy[shift.Key().SlotKey()]
		payload = append(payload, dto.CoverageShift{
			ShiftID:      shift.ID,
			Date:         shift.Date.Format(models.DateLayout),
			TimeSlotID:   shift.TimeSlotID,
			ClassroomID:  shift.ClassroomID,
			ClassGroupID: shift.ClassGroupID,
			Covered:      covered,
			CoveredBy:    staffID,
		})
	}

	return &dto.CoverageRequestResponse{
		CoverageRequestID: absence.ID,
		StaffID:           absence.StaffID,
		Status:            string(absence.Status),
		TotalShifts:       absence.TotalShifts,
		CoveredShifts:     absence.CoveredShifts,
		Shifts:            payload,
	}, nil
}
