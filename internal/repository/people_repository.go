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
	teacherColumns = `id, email, username, gender, major_code, semester_code, created_at, updated_at, created_by, updated_by`
	studentColumns = `id, email, username, phone, gender, major_code, class_code, semester_code, created_at, updated_at, created_by, updated_by`
)

// PeopleRepository persists per-semester teacher and student profiles.
type PeopleRepository struct {
	db *sqlx.DB
}

// NewPeopleRepository creates a people repository.
func NewPeopleRepository(db *sqlx.DB) *PeopleRepository {
	return &PeopleRepository{db: db}
}

// FindTeacherByEmail resolves the teacher profile for one semester.
func (r *PeopleRepository) FindTeacherByEmail(ctx context.Context, email, semesterCode string) (*models.Teacher, error) {
	query := `SELECT ` + teacherColumns + ` FROM teachers WHERE lower(email) = lower($1) AND semester_code = $2`
	var teacher models.Teacher
	if err := r.db.GetContext(ctx, &teacher, query, email, semesterCode); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find teacher by email: %w", err)
	}
	return &teacher, nil
}

// FindTeacherByID loads a teacher profile.
func (r *PeopleRepository) FindTeacherByID(ctx context.Context, id string) (*models.Teacher, error) {
	query := `SELECT ` + teacherColumns + ` FROM teachers WHERE id = $1`
	var teacher models.Teacher
	if err := r.db.GetContext(ctx, &teacher, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find teacher: %w", err)
	}
	return &teacher, nil
}

// FindStudentByEmail resolves the student profile for one semester.
func (r *PeopleRepository) FindStudentByEmail(ctx context.Context, email, semesterCode string) (*models.Student, error) {
	query := `SELECT ` + studentColumns + ` FROM students WHERE lower(email) = lower($1) AND semester_code = $2`
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, email, semesterCode); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find student by email: %w", err)
	}
	return &student, nil
}

// FindStudentsByIDs loads the given student profiles.
func (r *PeopleRepository) FindStudentsByIDs(ctx context.Context, ids []string) ([]models.Student, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`SELECT `+studentColumns+` FROM students WHERE id IN (?) ORDER BY email`, ids)
	if err != nil {
		return nil, fmt.Errorf("build student lookup: %w", err)
	}
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("find students: %w", err)
	}
	return students, nil
}

// ListTeachers pages through the teachers of a semester.
func (r *PeopleRepository) ListTeachers(ctx context.Context, filter models.PeopleFilter) ([]models.Teacher, int, error) {
	where, args := peopleWhere(filter)
	_, size, offset := filter.Normalize()

	var teachers []models.Teacher
	query := fmt.Sprintf("SELECT %s FROM teachers %s ORDER BY email LIMIT %d OFFSET %d", teacherColumns, where, size, offset)
	if err := r.db.SelectContext(ctx, &teachers, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list teachers: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM teachers "+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count teachers: %w", err)
	}
	return teachers, total, nil
}

// ListStudents pages through the students of a semester.
func (r *PeopleRepository) ListStudents(ctx context.Context, filter models.PeopleFilter) ([]models.Student, int, error) {
	where, args := peopleWhere(filter)
	_, size, offset := filter.Normalize()

	var students []models.Student
	query := fmt.Sprintf("SELECT %s FROM students %s ORDER BY email LIMIT %d OFFSET %d", studentColumns, where, size, offset)
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM students "+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}

// CreateTeacher inserts a teacher profile.
func (r *PeopleRepository) CreateTeacher(ctx context.Context, exec sqlx.ExtContext, teacher *models.Teacher, actor string) error {
	if teacher.ID == "" {
		teacher.ID = uuid.NewString()
	}
	teacher.Stamp(actor, time.Now().UTC())
	const query = `INSERT INTO teachers (id, email, username, gender, major_code, semester_code, created_at, updated_at, created_by, updated_by)
VALUES (:id, :email, :username, :gender, :major_code, :semester_code, :created_at, :updated_at, :created_by, :updated_by)`
	if _, err := sqlx.NamedExecContext(ctx, orDB(exec, r.db), query, teacher); err != nil {
		return fmt.Errorf("create teacher: %w", err)
	}
	return nil
}

// CreateStudent inserts a student profile.
func (r *PeopleRepository) CreateStudent(ctx context.Context, exec sqlx.ExtContext, student *models.Student, actor string) error {
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	student.Stamp(actor, time.Now().UTC())
	const query = `INSERT INTO students (id, email, username, phone, gender, major_code, class_code, semester_code, created_at, updated_at, created_by, updated_by)
VALUES (:id, :email, :username, :phone, :gender, :major_code, :class_code, :semester_code, :created_at, :updated_at, :created_by, :updated_by)`
	if _, err := sqlx.NamedExecContext(ctx, orDB(exec, r.db), query, student); err != nil {
		return fmt.Errorf("create student: %w", err)
	}
	return nil
}

// RosterEmails returns the lower-cased emails already on the teacher or
// student roster of a semester.
func (r *PeopleRepository) RosterEmails(ctx context.Context, kind models.AccountKind, semesterCode string) ([]string, error) {
	table := "students"
	if kind == models.AccountTeacher {
		table = "teachers"
	}
	var emails []string
	if err := r.db.SelectContext(ctx, &emails, `SELECT lower(email) FROM `+table+` WHERE semester_code = $1`, semesterCode); err != nil {
		return nil, fmt.Errorf("list %s emails: %w", table, err)
	}
	return emails, nil
}

func peopleWhere(filter models.PeopleFilter) (string, []interface{}) {
	conditions := []string{"semester_code = $1"}
	args := []interface{}{filter.SemesterCode}
	if filter.MajorCode != "" {
		args = append(args, filter.MajorCode)
		conditions = append(conditions, fmt.Sprintf("major_code = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		conditions = append(conditions, fmt.Sprintf("(lower(email) LIKE $%[1]d OR lower(username) LIKE $%[1]d)", len(args)))
	}
	return "WHERE " + strings.Join(conditions, " AND "), args
}
