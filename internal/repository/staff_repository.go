package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/careloop/staffing-api/internal/models"
)

// StaffRepository reads the staff roster.
type StaffRepository struct {
	db *sqlx.DB
}

// NewStaffRepository constructs the repository.
func NewStaffRepository(db *sqlx.DB) *StaffRepository {
	return &StaffRepository{db: db}
}

// FindByID loads one staff member.
func (r *StaffRepository) FindByID(ctx context.Context, tenant models.TenantContext, id string) (*models.Staff, error) {
	const query = `SELECT id, school_id, full_name, role, is_flex, active, created_at
FROM staff WHERE school_id = $1 AND id = $2`
	var staff models.Staff
	if err := r.db.GetContext(ctx, &staff, query, tenant.SchoolID, id); err != nil {
		return nil, err
	}
	return &staff, nil
}

// ListCandidates returns active substitute staff, optionally including
// flex-tagged teachers as additional candidates.
func (r *StaffRepository) ListCandidates(ctx context.Context, tenant models.TenantContext, includeFlex bool) ([]models.Staff, error) {
	query := `SELECT id, school_id, full_name, role, is_flex, active, created_at
FROM staff
WHERE school_id = $1 AND active = TRUE AND (role = 'substitute'`
	if includeFlex {
		query += ` OR is_flex = TRUE`
	}
	query += `) ORDER BY id ASC`
	var staff []models.Staff
	if err := r.db.SelectContext(ctx, &staff, query, tenant.SchoolID); err != nil {
		return nil, fmt.Errorf("list candidate staff: %w", err)
	}
	return staff, nil
}
