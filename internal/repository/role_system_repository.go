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

const roleSystemColumns = `id, title, teacher_id, role, semester_code, activate, created_at, updated_at, created_by, updated_by`

// RoleSystemRepository persists role activations.
type RoleSystemRepository struct {
	db *sqlx.DB
}

// NewRoleSystemRepository creates a role system repository.
func NewRoleSystemRepository(db *sqlx.DB) *RoleSystemRepository {
	return &RoleSystemRepository{db: db}
}

// ListActive returns the active roles of one teacher in one semester.
func (r *RoleSystemRepository) ListActive(ctx context.Context, teacherID, semesterCode string) ([]models.RoleSystem, error) {
	query := `SELECT ` + roleSystemColumns + ` FROM role_systems WHERE teacher_id = $1 AND semester_code = $2 AND activate ORDER BY role`
	var roles []models.RoleSystem
	if err := r.db.SelectContext(ctx, &roles, query, teacherID, semesterCode); err != nil {
		return nil, fmt.Errorf("list active roles: %w", err)
	}
	return roles, nil
}

// ListBySemester returns every role row of a semester.
func (r *RoleSystemRepository) ListBySemester(ctx context.Context, semesterCode string) ([]models.RoleSystem, error) {
	query := `SELECT ` + roleSystemColumns + ` FROM role_systems WHERE semester_code = $1 ORDER BY teacher_id, role`
	var roles []models.RoleSystem
	if err := r.db.SelectContext(ctx, &roles, query, semesterCode); err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	return roles, nil
}

// FindByID loads one role row.
func (r *RoleSystemRepository) FindByID(ctx context.Context, id string) (*models.RoleSystem, error) {
	query := `SELECT ` + roleSystemColumns + ` FROM role_systems WHERE id = $1`
	var role models.RoleSystem
	if err := r.db.GetContext(ctx, &role, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find role: %w", err)
	}
	return &role, nil
}

// Upsert activates a role, reusing the existing row for the same teacher, role and semester.
// A nil exec runs on the pool.
func (r *RoleSystemRepository) Upsert(ctx context.Context, exec sqlx.ExtContext, role *models.RoleSystem, actor string) error {
	if role.ID == "" {
		role.ID = uuid.NewString()
	}
	role.Stamp(actor, time.Now().UTC())

	const query = `INSERT INTO role_systems (id, title, teacher_id, role, semester_code, activate, created_at, updated_at, created_by, updated_by)
VALUES (:id, :title, :teacher_id, :role, :semester_code, :activate, :created_at, :updated_at, :created_by, :updated_by)
ON CONFLICT (teacher_id, role, semester_code) DO UPDATE SET activate = EXCLUDED.activate, title = EXCLUDED.title, updated_at = EXCLUDED.updated_at, updated_by = EXCLUDED.updated_by
RETURNING id, created_at, created_by`
	rows, err := sqlx.NamedQueryContext(ctx, orDB(exec, r.db), query, role)
	if err != nil {
		return fmt.Errorf("upsert role: %w", err)
	}
	defer rows.Close() //nolint:errcheck
	if rows.Next() {
		if err := rows.Scan(&role.ID, &role.CreatedAt, &role.CreatedBy); err != nil {
			return fmt.Errorf("scan upserted role: %w", err)
		}
	}
	return rows.Err()
}

// Deactivate clears the activate flag.
func (r *RoleSystemRepository) Deactivate(ctx context.Context, id, actor string) error {
	const query = `UPDATE role_systems SET activate = FALSE, updated_at = $2, updated_by = $3 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, time.Now().UTC(), actor)
	if err != nil {
		return fmt.Errorf("deactivate role: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
