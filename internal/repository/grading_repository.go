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

const (
	midtermColumns      = `id, title, grade, status, feedback, file_id, created_at, updated_at, created_by, updated_by`
	finalColumns        = `id, title, file_id, supervisor_grade, reviewer_grade, defense_grade, final_grade, status, notes, completion_date, created_at, updated_at, created_by, updated_by`
	gradeDefenceColumns = `id, enrollment_id, council, secretary, created_at, updated_at, created_by, updated_by`
)

// GradingRepository persists midterm, final and committee vote records.
type GradingRepository struct {
	db *sqlx.DB
}

// NewGradingRepository creates a grading repository.
func NewGradingRepository(db *sqlx.DB) *GradingRepository {
	return &GradingRepository{db: db}
}

// FindMidterm loads a midterm record.
func (r *GradingRepository) FindMidterm(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Midterm, error) {
	var midterm models.Midterm
	if err := sqlx.GetContext(ctx, orDB(exec, r.db), &midterm, `SELECT `+midtermColumns+` FROM midterms WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find midterm: %w", err)
	}
	return &midterm, nil
}

// SaveMidterm inserts the midterm when it has no id yet, otherwise overwrites
// the latest values.
func (r *GradingRepository) SaveMidterm(ctx context.Context, exec sqlx.ExtContext, midterm *models.Midterm, actor string) error {
	midterm.Stamp(actor, time.Now().UTC())
	if midterm.ID == "" {
		midterm.ID = uuid.NewString()
		const insert = `INSERT INTO midterms (id, title, grade, status, feedback, file_id, created_at, updated_at, created_by, updated_by)
VALUES (:id, :title, :grade, :status, :feedback, :file_id, :created_at, :updated_at, :created_by, :updated_by)`
		if _, err := sqlx.NamedExecContext(ctx, exec, insert, midterm); err != nil {
			return fmt.Errorf("create midterm: %w", err)
		}
		return nil
	}
	const update = `UPDATE midterms SET title = :title, grade = :grade, status = :status, feedback = :feedback, file_id = :file_id,
updated_at = :updated_at, updated_by = :updated_by WHERE id = :id`
	if _, err := sqlx.NamedExecContext(ctx, exec, update, midterm); err != nil {
		return fmt.Errorf("update midterm: %w", err)
	}
	return nil
}

// FindFinal loads a final record.
func (r *GradingRepository) FindFinal(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Final, error) {
	var final models.Final
	if err := sqlx.GetContext(ctx, orDB(exec, r.db), &final, `SELECT `+finalColumns+` FROM finals WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find final: %w", err)
	}
	return &final, nil
}

// CreateFinal inserts an empty pending final.
func (r *GradingRepository) CreateFinal(ctx context.Context, exec sqlx.ExtContext, final *models.Final, actor string) error {
	if final.ID == "" {
		final.ID = uuid.NewString()
	}
	if final.Status == "" {
		final.Status = models.FinalPending
	}
	final.Stamp(actor, time.Now().UTC())
	const query = `INSERT INTO finals (id, title, status, created_at, updated_at, created_by, updated_by)
VALUES (:id, :title, :status, :created_at, :updated_at, :created_by, :updated_by)`
	if _, err := sqlx.NamedExecContext(ctx, exec, query, final); err != nil {
		return fmt.Errorf("create final: %w", err)
	}
	return nil
}

// SetFinalComponent writes exactly one component column.
func (r *GradingRepository) SetFinalComponent(ctx context.Context, exec sqlx.ExtContext, finalID string, component models.FinalComponent, value *float64, actor string) error {
	var column string
	switch component {
	case models.ComponentSupervisor, models.ComponentReviewer, models.ComponentDefense:
		column = string(component)
	default:
		return fmt.Errorf("unknown final component %q", component)
	}
	query := fmt.Sprintf(`UPDATE finals SET %s = $2, updated_at = $3, updated_by = $4 WHERE id = $1`, column)
	if _, err := exec.ExecContext(ctx, query, finalID, value, time.Now().UTC(), actor); err != nil {
		return fmt.Errorf("set final %s: %w", column, err)
	}
	return nil
}

// SetFinalDerived stores the derived grade and status.
func (r *GradingRepository) SetFinalDerived(ctx context.Context, exec sqlx.ExtContext, final *models.Final) error {
	const query = `UPDATE finals SET final_grade = $2, status = $3, completion_date = $4 WHERE id = $1`
	if _, err := exec.ExecContext(ctx, query, final.ID, final.FinalGrade, final.Status, final.CompletionDate); err != nil {
		return fmt.Errorf("set final derived: %w", err)
	}
	return nil
}

// SetFinalNotes stores reviewer or supervisor notes.
func (r *GradingRepository) SetFinalNotes(ctx context.Context, exec sqlx.ExtContext, finalID string, notes *string) error {
	if _, err := exec.ExecContext(ctx, `UPDATE finals SET notes = $2 WHERE id = $1`, finalID, notes); err != nil {
		return fmt.Errorf("set final notes: %w", err)
	}
	return nil
}

// UpsertVote writes a single committee vote column. The other column is never
// touched, so concurrent chair and secretary writes both survive.
func (r *GradingRepository) UpsertVote(ctx context.Context, enrollmentID string, column models.VoteColumn, value float64, actor string) (*models.GradeDefence, error) {
	switch column {
	case models.VoteCouncil, models.VoteSecretary:
	default:
		return nil, fmt.Errorf("unknown vote column %q", column)
	}
	now := time.Now().UTC()
	query := fmt.Sprintf(`INSERT INTO grade_defences (id, enrollment_id, %[1]s, created_at, updated_at, created_by, updated_by)
VALUES ($1, $2, $3, $4, $4, $5, $5)
ON CONFLICT (enrollment_id) DO UPDATE SET %[1]s = EXCLUDED.%[1]s, updated_at = EXCLUDED.updated_at, updated_by = EXCLUDED.updated_by
RETURNING %[2]s`, column, gradeDefenceColumns)

	var grade models.GradeDefence
	if err := r.db.GetContext(ctx, &grade, query, uuid.NewString(), enrollmentID, value, now, actor); err != nil {
		return nil, fmt.Errorf("upsert %s vote: %w", column, err)
	}
	return &grade, nil
}

// FindGradeDefence loads the committee votes of an enrollment.
func (r *GradingRepository) FindGradeDefence(ctx context.Context, exec sqlx.ExtContext, enrollmentID string) (*models.GradeDefence, error) {
	var grade models.GradeDefence
	query := `SELECT ` + gradeDefenceColumns + ` FROM grade_defences WHERE enrollment_id = $1`
	if err := sqlx.GetContext(ctx, orDB(exec, r.db), &grade, query, enrollmentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find grade defence: %w", err)
	}
	return &grade, nil
}

// GradeSheet returns one row per enrollment of the semester, optionally filtered by major.
func (r *GradingRepository) GradeSheet(ctx context.Context, semesterCode, majorCode string) ([]models.GradeSheetRow, error) {
	query := `SELECT s.email AS student_email, s.username AS student_name, t.title AS topic_title, t.major_code,
m.grade AS midterm_grade, f.supervisor_grade, f.reviewer_grade, f.defense_grade, f.final_grade, f.status AS final_status
FROM enrollments e
JOIN students s ON s.id = e.student_id
JOIN topics t ON t.id = e.topic_id
LEFT JOIN midterms m ON m.id = e.midterm_id
LEFT JOIN finals f ON f.id = e.final_id
WHERE e.semester_code = $1 AND ($2 = '' OR t.major_code = $2)
ORDER BY t.major_code, t.title, s.email`
	var rows []models.GradeSheetRow
	if err := r.db.SelectContext(ctx, &rows, query, semesterCode, majorCode); err != nil {
		return nil, fmt.Errorf("grade sheet: %w", err)
	}
	return rows, nil
}
