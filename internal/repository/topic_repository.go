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

const topicColumns = `id, title, description, major_code, supervisor_id, semester_code, status, team_id, time_start, time_end,
approved_by, approved_at, approval_note, rejected_by, rejected_at, reject_reason, completed_at,
created_at, updated_at, created_by, updated_by`

// TopicRepository persists thesis topics.
type TopicRepository struct {
	db *sqlx.DB
}

// NewTopicRepository creates a topic repository.
func NewTopicRepository(db *sqlx.DB) *TopicRepository {
	return &TopicRepository{db: db}
}

// Create stores a new topic.
func (r *TopicRepository) Create(ctx context.Context, topic *models.Topic, actor string) error {
	if topic.ID == "" {
		topic.ID = uuid.NewString()
	}
	topic.Stamp(actor, time.Now().UTC())

	const query = `INSERT INTO topics (id, title, description, major_code, supervisor_id, semester_code, status, time_start, time_end, created_at, updated_at, created_by, updated_by)
VALUES (:id, :title, :description, :major_code, :supervisor_id, :semester_code, :status, :time_start, :time_end, :created_at, :updated_at, :created_by, :updated_by)`
	if _, err := r.db.NamedExecContext(ctx, query, topic); err != nil {
		return fmt.Errorf("create topic: %w", err)
	}
	return nil
}

// FindByID loads a topic.
func (r *TopicRepository) FindByID(ctx context.Context, id string) (*models.Topic, error) {
	return r.find(ctx, r.db, `SELECT `+topicColumns+` FROM topics WHERE id = $1`, id)
}

// FindForUpdate loads a topic and row-locks it for the rest of the transaction.
func (r *TopicRepository) FindForUpdate(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Topic, error) {
	return r.find(ctx, exec, `SELECT `+topicColumns+` FROM topics WHERE id = $1 FOR UPDATE`, id)
}

func (r *TopicRepository) find(ctx context.Context, q sqlx.QueryerContext, query, id string) (*models.Topic, error) {
	var topic models.Topic
	if err := sqlx.GetContext(ctx, q, &topic, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find topic: %w", err)
	}
	return &topic, nil
}

// List returns topics matching filter with the total count.
func (r *TopicRepository) List(ctx context.Context, filter models.TopicFilter) ([]models.Topic, int, error) {
	var conditions []string
	var args []interface{}
	add := func(column string, value interface{}) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if filter.SemesterCode != "" {
		add("semester_code", filter.SemesterCode)
	}
	if filter.MajorCode != "" {
		add("major_code", filter.MajorCode)
	}
	if filter.SupervisorID != "" {
		add("supervisor_id", filter.SupervisorID)
	}
	if filter.TeamID != "" {
		add("team_id", filter.TeamID)
	}
	if filter.Status != "" {
		add("status", filter.Status)
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}
	_, size, offset := filter.Normalize()

	query := fmt.Sprintf("SELECT %s FROM topics%s ORDER BY created_at DESC, id LIMIT %d OFFSET %d", topicColumns, where, size, offset)
	var topics []models.Topic
	if err := r.db.SelectContext(ctx, &topics, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list topics: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM topics"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count topics: %w", err)
	}
	return topics, total, nil
}

// Transition writes the new status only while the stored status equals t.From.
// It returns sql.ErrNoRows when the guard did not match.
func (r *TopicRepository) Transition(ctx context.Context, exec sqlx.ExtContext, t models.TopicTransition) error {
	sets := []string{"status = $3", "updated_at = $4", "updated_by = $5"}
	args := []interface{}{t.TopicID, t.From, t.To, t.At, t.Actor}

	switch t.To {
	case models.TopicApproved:
		args = append(args, t.ApprovalNote)
		sets = append(sets, "approved_by = $5", "approved_at = $4", fmt.Sprintf("approval_note = $%d", len(args)))
	case models.TopicRejected:
		args = append(args, t.RejectReason)
		sets = append(sets, "rejected_by = $5", "rejected_at = $4", fmt.Sprintf("reject_reason = $%d", len(args)))
	case models.TopicCompleted:
		sets = append(sets, "completed_at = $4")
	}

	query := "UPDATE topics SET " + strings.Join(sets, ", ") + " WHERE id = $1 AND status = $2"
	res, err := orDB(exec, r.db).ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("transition topic: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SetTeam links the topic to its team.
func (r *TopicRepository) SetTeam(ctx context.Context, exec sqlx.ExtContext, topicID, teamID, actor string) error {
	const query = `UPDATE topics SET team_id = $2, updated_at = $3, updated_by = $4 WHERE id = $1`
	if _, err := exec.ExecContext(ctx, query, topicID, teamID, time.Now().UTC(), actor); err != nil {
		return fmt.Errorf("set topic team: %w", err)
	}
	return nil
}
