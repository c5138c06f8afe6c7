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

const scheduleColumns = `id, council_id, topic_id, time_start, time_end, location, created_at, updated_at, created_by, updated_by`

// CouncilScheduleRepository persists council defense slots.
type CouncilScheduleRepository struct {
	db *sqlx.DB
}

// NewCouncilScheduleRepository creates a council schedule repository.
func NewCouncilScheduleRepository(db *sqlx.DB) *CouncilScheduleRepository {
	return &CouncilScheduleRepository{db: db}
}

// ListByCouncil returns every slot of a council ordered by start time.
func (r *CouncilScheduleRepository) ListByCouncil(ctx context.Context, exec sqlx.ExtContext, councilID string) ([]models.CouncilSchedule, error) {
	var schedules []models.CouncilSchedule
	query := `SELECT ` + scheduleColumns + ` FROM council_schedules WHERE council_id = $1 ORDER BY time_start, id`
	if err := sqlx.SelectContext(ctx, orDB(exec, r.db), &schedules, query, councilID); err != nil {
		return nil, fmt.Errorf("list council schedules: %w", err)
	}
	return schedules, nil
}

// FindByID loads one slot.
func (r *CouncilScheduleRepository) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.CouncilSchedule, error) {
	return r.find(ctx, orDB(exec, r.db), `SELECT `+scheduleColumns+` FROM council_schedules WHERE id = $1`, id)
}

// FindByTopic loads the slot of a topic in any council.
func (r *CouncilScheduleRepository) FindByTopic(ctx context.Context, exec sqlx.ExtContext, topicID string) (*models.CouncilSchedule, error) {
	return r.find(ctx, orDB(exec, r.db), `SELECT `+scheduleColumns+` FROM council_schedules WHERE topic_id = $1`, topicID)
}

func (r *CouncilScheduleRepository) find(ctx context.Context, q sqlx.QueryerContext, query, arg string) (*models.CouncilSchedule, error) {
	var schedule models.CouncilSchedule
	if err := sqlx.GetContext(ctx, q, &schedule, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find council schedule: %w", err)
	}
	return &schedule, nil
}

// ListForTeacher returns the slots of every council the teacher sits on.
func (r *CouncilScheduleRepository) ListForTeacher(ctx context.Context, teacherID, semesterCode string) ([]models.CouncilSchedule, error) {
	query := `SELECT s.id, s.council_id, s.topic_id, s.time_start, s.time_end, s.location, s.created_at, s.updated_at, s.created_by, s.updated_by
FROM council_schedules s
JOIN councils c ON c.id = s.council_id
JOIN defences d ON d.council_id = s.council_id
WHERE d.teacher_id = $1 AND c.semester_code = $2
ORDER BY s.time_start, s.id`
	var schedules []models.CouncilSchedule
	if err := r.db.SelectContext(ctx, &schedules, query, teacherID, semesterCode); err != nil {
		return nil, fmt.Errorf("list teacher schedules: %w", err)
	}
	return schedules, nil
}

// Create inserts a slot.
func (r *CouncilScheduleRepository) Create(ctx context.Context, exec sqlx.ExtContext, schedule *models.CouncilSchedule, actor string) error {
	if schedule.ID == "" {
		schedule.ID = uuid.NewString()
	}
	schedule.Stamp(actor, time.Now().UTC())
	const query = `INSERT INTO council_schedules (id, council_id, topic_id, time_start, time_end, location, created_at, updated_at, created_by, updated_by)
VALUES (:id, :council_id, :topic_id, :time_start, :time_end, :location, :created_at, :updated_at, :created_by, :updated_by)`
	if _, err := sqlx.NamedExecContext(ctx, exec, query, schedule); err != nil {
		return fmt.Errorf("create council schedule: %w", err)
	}
	return nil
}

// Update rewrites the interval and location of a slot.
func (r *CouncilScheduleRepository) Update(ctx context.Context, exec sqlx.ExtContext, schedule *models.CouncilSchedule, actor string) error {
	schedule.Stamp(actor, time.Now().UTC())
	const query = `UPDATE council_schedules SET time_start = :time_start, time_end = :time_end, location = :location,
updated_at = :updated_at, updated_by = :updated_by WHERE id = :id`
	if _, err := sqlx.NamedExecContext(ctx, exec, query, schedule); err != nil {
		return fmt.Errorf("update council schedule: %w", err)
	}
	return nil
}

// Delete removes a slot.
func (r *CouncilScheduleRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM council_schedules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete council schedule: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
