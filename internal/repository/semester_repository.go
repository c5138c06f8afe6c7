package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/cms-lvtn-2025/thesis-api/internal/models"
)

// SemesterRepository persists semesters and reads majors.
type SemesterRepository struct {
	db *sqlx.DB
}

// NewSemesterRepository creates a semester repository.
func NewSemesterRepository(db *sqlx.DB) *SemesterRepository {
	return &SemesterRepository{db: db}
}

// List returns every semester, newest first.
func (r *SemesterRepository) List(ctx context.Context) ([]models.Semester, error) {
	const query = `SELECT id, code, title, is_active, created_at, updated_at FROM semesters ORDER BY code DESC`
	var semesters []models.Semester
	if err := r.db.SelectContext(ctx, &semesters, query); err != nil {
		return nil, fmt.Errorf("list semesters: %w", err)
	}
	return semesters, nil
}

// FindByCode loads one semester.
func (r *SemesterRepository) FindByCode(ctx context.Context, code string) (*models.Semester, error) {
	const query = `SELECT id, code, title, is_active, created_at, updated_at FROM semesters WHERE code = $1`
	var semester models.Semester
	if err := r.db.GetContext(ctx, &semester, query, code); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find semester: %w", err)
	}
	return &semester, nil
}

// FindActive loads the semester flagged active.
func (r *SemesterRepository) FindActive(ctx context.Context) (*models.Semester, error) {
	const query = `SELECT id, code, title, is_active, created_at, updated_at FROM semesters WHERE is_active ORDER BY code DESC LIMIT 1`
	var semester models.Semester
	if err := r.db.GetContext(ctx, &semester, query); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find active semester: %w", err)
	}
	return &semester, nil
}

// Create stores a new, inactive semester.
func (r *SemesterRepository) Create(ctx context.Context, semester *models.Semester) error {
	if semester.ID == "" {
		semester.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	semester.CreatedAt, semester.UpdatedAt = now, now

	const query = `INSERT INTO semesters (id, code, title, is_active, created_at, updated_at)
VALUES (:id, :code, :title, :is_active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, semester); err != nil {
		return fmt.Errorf("create semester: %w", err)
	}
	return nil
}

// SetActive flags one semester active and clears the flag on every other.
// Nothing changes when the code is unknown.
func (r *SemesterRepository) SetActive(ctx context.Context, code string) error {
	const query = `UPDATE semesters SET is_active = (code = $1), updated_at = $2
WHERE (is_active OR code = $1) AND EXISTS (SELECT 1 FROM semesters WHERE code = $1)`
	res, err := r.db.ExecContext(ctx, query, code, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("activate semester: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a semester. Postgres refuses while any profile references it.
func (r *SemesterRepository) Delete(ctx context.Context, code string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM semesters WHERE code = $1`, code)
	if err != nil {
		return fmt.Errorf("delete semester: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListMajors returns every major ordered by code.
func (r *SemesterRepository) ListMajors(ctx context.Context) ([]models.Major, error) {
	const query = `SELECT id, code, title, faculty_code, created_at, updated_at FROM majors ORDER BY code`
	var majors []models.Major
	if err := r.db.SelectContext(ctx, &majors, query); err != nil {
		return nil, fmt.Errorf("list majors: %w", err)
	}
	return majors, nil
}
