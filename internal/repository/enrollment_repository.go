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
	enrollmentColumns = `id, topic_id, student_id, semester_code, midterm_id, final_id, created_at, updated_at, created_by, updated_by`
	teamColumns       = `id, topic_id, semester_code, created_at, updated_at, created_by, updated_by`
)

// EnrollmentRepository persists enrollments and the teams behind them.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository creates an enrollment repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// FindByID loads one enrollment.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	return r.find(ctx, r.db, `SELECT `+enrollmentColumns+` FROM enrollments WHERE id = $1`, id)
}

// FindForUpdate loads one enrollment and row-locks it, serialising grade
// writers of the same enrollment.
func (r *EnrollmentRepository) FindForUpdate(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Enrollment, error) {
	return r.find(ctx, exec, `SELECT `+enrollmentColumns+` FROM enrollments WHERE id = $1 FOR UPDATE`, id)
}

// FindByStudent loads the enrollment a student holds in a semester.
func (r *EnrollmentRepository) FindByStudent(ctx context.Context, studentID, semesterCode string) (*models.Enrollment, error) {
	var enrollment models.Enrollment
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE student_id = $1 AND semester_code = $2`
	if err := r.db.GetContext(ctx, &enrollment, query, studentID, semesterCode); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find enrollment by student: %w", err)
	}
	return &enrollment, nil
}

func (r *EnrollmentRepository) find(ctx context.Context, q sqlx.QueryerContext, query, id string) (*models.Enrollment, error) {
	var enrollment models.Enrollment
	if err := sqlx.GetContext(ctx, q, &enrollment, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find enrollment: %w", err)
	}
	return &enrollment, nil
}

// ListByTopic returns every enrollment of a topic. A nil exec reads outside
// any transaction.
func (r *EnrollmentRepository) ListByTopic(ctx context.Context, exec sqlx.ExtContext, topicID string) ([]models.Enrollment, error) {
	var enrollments []models.Enrollment
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE topic_id = $1 ORDER BY created_at, id`
	if err := sqlx.SelectContext(ctx, orDB(exec, r.db), &enrollments, query, topicID); err != nil {
		return nil, fmt.Errorf("list enrollments by topic: %w", err)
	}
	return enrollments, nil
}

// CreateTeam inserts the team, its members and one enrollment per member.
func (r *EnrollmentRepository) CreateTeam(ctx context.Context, exec sqlx.ExtContext, team *models.Team, actor string) ([]models.Enrollment, error) {
	now := time.Now().UTC()
	if team.ID == "" {
		team.ID = uuid.NewString()
	}
	team.Stamp(actor, now)

	const insertTeam = `INSERT INTO teams (id, topic_id, semester_code, created_at, updated_at, created_by, updated_by)
VALUES (:id, :topic_id, :semester_code, :created_at, :updated_at, :created_by, :updated_by)`
	if _, err := sqlx.NamedExecContext(ctx, exec, insertTeam, team); err != nil {
		return nil, fmt.Errorf("create team: %w", err)
	}

	enrollments := make([]models.Enrollment, 0, len(team.MemberStudentIDs))
	for _, studentID := range team.MemberStudentIDs {
		if _, err := exec.ExecContext(ctx, `INSERT INTO team_members (team_id, student_id) VALUES ($1, $2)`, team.ID, studentID); err != nil {
			return nil, fmt.Errorf("add team member: %w", err)
		}
		enrollment := models.Enrollment{
			ID:           uuid.NewString(),
			TopicID:      team.TopicID,
			StudentID:    studentID,
			SemesterCode: team.SemesterCode,
		}
		enrollment.Stamp(actor, now)
		const insertEnrollment = `INSERT INTO enrollments (id, topic_id, student_id, semester_code, created_at, updated_at, created_by, updated_by)
VALUES (:id, :topic_id, :student_id, :semester_code, :created_at, :updated_at, :created_by, :updated_by)`
		if _, err := sqlx.NamedExecContext(ctx, exec, insertEnrollment, enrollment); err != nil {
			return nil, fmt.Errorf("create enrollment: %w", err)
		}
		enrollments = append(enrollments, enrollment)
	}
	return enrollments, nil
}

// FindTeamByTopic loads the team of a topic with its member ids.
func (r *EnrollmentRepository) FindTeamByTopic(ctx context.Context, topicID string) (*models.Team, error) {
	var team models.Team
	if err := r.db.GetContext(ctx, &team, `SELECT `+teamColumns+` FROM teams WHERE topic_id = $1`, topicID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find team: %w", err)
	}
	if err := r.db.SelectContext(ctx, &team.MemberStudentIDs, `SELECT student_id FROM team_members WHERE team_id = $1 ORDER BY student_id`, team.ID); err != nil {
		return nil, fmt.Errorf("list team members: %w", err)
	}
	return &team, nil
}

// FindTeamIDByStudent returns the team a student belongs to.
func (r *EnrollmentRepository) FindTeamIDByStudent(ctx context.Context, studentID string) (string, error) {
	var teamID string
	if err := r.db.GetContext(ctx, &teamID, `SELECT team_id FROM team_members WHERE student_id = $1`, studentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", err
		}
		return "", fmt.Errorf("find team by student: %w", err)
	}
	return teamID, nil
}

// SetMidterm links a midterm record to the given enrollments.
func (r *EnrollmentRepository) SetMidterm(ctx context.Context, exec sqlx.ExtContext, enrollmentIDs []string, midtermID, actor string) error {
	if len(enrollmentIDs) == 0 {
		return nil
	}
	query, args, err := sqlx.In(`UPDATE enrollments SET midterm_id = ?, updated_at = ?, updated_by = ? WHERE id IN (?)`, midtermID, time.Now().UTC(), actor, enrollmentIDs)
	if err != nil {
		return fmt.Errorf("build midterm link: %w", err)
	}
	if _, err := exec.ExecContext(ctx, sqlx.Rebind(sqlx.DOLLAR, query), args...); err != nil {
		return fmt.Errorf("link midterm: %w", err)
	}
	return nil
}

// SetFinal links a final record to one enrollment.
func (r *EnrollmentRepository) SetFinal(ctx context.Context, exec sqlx.ExtContext, enrollmentID, finalID, actor string) error {
	const query = `UPDATE enrollments SET final_id = $2, updated_at = $3, updated_by = $4 WHERE id = $1`
	if _, err := exec.ExecContext(ctx, query, enrollmentID, finalID, time.Now().UTC(), actor); err != nil {
		return fmt.Errorf("link final: %w", err)
	}
	return nil
}
