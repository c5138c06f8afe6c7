package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/cms-lvtn-2025/thesis-api/internal/models"
)

const (
	councilColumns = `c.id, c.title, c.major_code, c.semester_code, c.time_start, c.time_end, c.created_at, c.updated_at, c.created_by, c.updated_by`
	defenceColumns = `id, title, council_id, teacher_id, position, created_at, updated_at, created_by, updated_by`
)

// CouncilRepository persists councils and their committee seats.
type CouncilRepository struct {
	db *sqlx.DB
}

// NewCouncilRepository creates a council repository.
func NewCouncilRepository(db *sqlx.DB) *CouncilRepository {
	return &CouncilRepository{db: db}
}

// Create inserts the council together with its seats.
func (r *CouncilRepository) Create(ctx context.Context, exec sqlx.ExtContext, council *models.Council, defences []models.Defence, actor string) error {
	now := time.Now().UTC()
	if council.ID == "" {
		council.ID = uuid.NewString()
	}
	council.Stamp(actor, now)

	const query = `INSERT INTO councils (id, title, major_code, semester_code, time_start, time_end, created_at, updated_at, created_by, updated_by)
VALUES (:id, :title, :major_code, :semester_code, :time_start, :time_end, :created_at, :updated_at, :created_by, :updated_by)`
	if _, err := sqlx.NamedExecContext(ctx, exec, query, council); err != nil {
		return fmt.Errorf("create council: %w", err)
	}
	for i := range defences {
		defences[i].CouncilID = council.ID
		if err := r.AddDefence(ctx, exec, &defences[i], actor); err != nil {
			return err
		}
	}
	return nil
}

// FindByID loads a council.
func (r *CouncilRepository) FindByID(ctx context.Context, id string) (*models.Council, error) {
	return r.find(ctx, r.db, `SELECT `+councilColumns+` FROM councils c WHERE c.id = $1`, id)
}

// LockByID loads a council and row-locks it. Every schedule write of the
// council serialises on this lock.
func (r *CouncilRepository) LockByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Council, error) {
	return r.find(ctx, exec, `SELECT `+councilColumns+` FROM councils c WHERE c.id = $1 FOR UPDATE`, id)
}

func (r *CouncilRepository) find(ctx context.Context, q sqlx.QueryerContext, query, id string) (*models.Council, error) {
	var council models.Council
	if err := sqlx.GetContext(ctx, q, &council, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find council: %w", err)
	}
	return &council, nil
}

// List returns councils of a semester. TeacherID limits the result to
// councils where the teacher holds a seat.
func (r *CouncilRepository) List(ctx context.Context, filter models.CouncilFilter) ([]models.Council, error) {
	conditions := []string{"c.semester_code = $1"}
	args := []interface{}{filter.SemesterCode}
	if filter.MajorCode != "" {
		args = append(args, filter.MajorCode)
		conditions = append(conditions, fmt.Sprintf("c.major_code = $%d", len(args)))
	}
	if filter.TeacherID != "" {
		args = append(args, filter.TeacherID)
		conditions = append(conditions, fmt.Sprintf("EXISTS (SELECT 1 FROM defences d WHERE d.council_id = c.id AND d.teacher_id = $%d)", len(args)))
	}
	query := `SELECT ` + councilColumns + ` FROM councils c WHERE ` + strings.Join(conditions, " AND ") + ` ORDER BY c.title, c.id`

	var councils []models.Council
	if err := r.db.SelectContext(ctx, &councils, query, args...); err != nil {
		return nil, fmt.Errorf("list councils: %w", err)
	}
	return councils, nil
}

// ListDefences returns the seats of a council. Pass the transaction that
// holds the council lock when the result guards a write.
func (r *CouncilRepository) ListDefences(ctx context.Context, exec sqlx.ExtContext, councilID string) ([]models.Defence, error) {
	var defences []models.Defence
	query := `SELECT ` + defenceColumns + ` FROM defences WHERE council_id = $1 ORDER BY position, teacher_id`
	if err := sqlx.SelectContext(ctx, orDB(exec, r.db), &defences, query, councilID); err != nil {
		return nil, fmt.Errorf("list defences: %w", err)
	}
	return defences, nil
}

// FindDefence loads one seat.
func (r *CouncilRepository) FindDefence(ctx context.Context, id string) (*models.Defence, error) {
	var defence models.Defence
	if err := r.db.GetContext(ctx, &defence, `SELECT `+defenceColumns+` FROM defences WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find defence: %w", err)
	}
	return &defence, nil
}

// AddDefence inserts one seat.
func (r *CouncilRepository) AddDefence(ctx context.Context, exec sqlx.ExtContext, defence *models.Defence, actor string) error {
	if defence.ID == "" {
		defence.ID = uuid.NewString()
	}
	defence.Stamp(actor, time.Now().UTC())
	const query = `INSERT INTO defences (id, title, council_id, teacher_id, position, created_at, updated_at, created_by, updated_by)
VALUES (:id, :title, :council_id, :teacher_id, :position, :created_at, :updated_at, :created_by, :updated_by)`
	if _, err := sqlx.NamedExecContext(ctx, exec, query, defence); err != nil {
		return fmt.Errorf("add defence: %w", err)
	}
	return nil
}

// RemoveDefence deletes one seat of a council.
func (r *CouncilRepository) RemoveDefence(ctx context.Context, councilID, defenceID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM defences WHERE id = $1 AND council_id = $2`, defenceID, councilID)
	if err != nil {
		return fmt.Errorf("remove defence: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListDefencesForTopic returns the seats of the council scheduled to examine a topic.
func (r *CouncilRepository) ListDefencesForTopic(ctx context.Context, topicID string) ([]models.Defence, error) {
	query := `SELECT d.id, d.title, d.council_id, d.teacher_id, d.position, d.created_at, d.updated_at, d.created_by, d.updated_by
FROM defences d JOIN council_schedules s ON s.council_id = d.council_id
WHERE s.topic_id = $1 ORDER BY d.position, d.teacher_id`
	var defences []models.Defence
	if err := r.db.SelectContext(ctx, &defences, query, topicID); err != nil {
		return nil, fmt.Errorf("list defences for topic: %w", err)
	}
	return defences, nil
}
