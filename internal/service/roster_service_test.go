package service

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/cms-lvtn-2025/thesis-api/internal/authz"
	"github.com/cms-lvtn-2025/thesis-api/internal/models"
	appErrors "github.com/cms-lvtn-2025/thesis-api/pkg/errors"
)

type fakeSemesterStore struct {
	semesters map[string]*models.Semester
	deleteErr error
}

func newFakeSemesterStore(codes ...string) *fakeSemesterStore {
	f := &fakeSemesterStore{semesters: map[string]*models.Semester{}}
	for _, code := range codes {
		f.semesters[code] = &models.Semester{ID: "sem-" + code, Code: code, Title: "Semester " + code}
	}
	return f
}

func (f *fakeSemesterStore) FindByCode(ctx context.Context, code string) (*models.Semester, error) {
	s, ok := f.semesters[code]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *s
	return &cp, nil
}

func (f *fakeSemesterStore) Create(ctx context.Context, semester *models.Semester) error {
	if _, ok := f.semesters[semester.Code]; ok {
		return &pq.Error{Code: "23505", Constraint: "semesters_code_key"}
	}
	semester.ID = "sem-" + semester.Code
	cp := *semester
	f.semesters[semester.Code] = &cp
	return nil
}

func (f *fakeSemesterStore) SetActive(ctx context.Context, code string) error {
	if _, ok := f.semesters[code]; !ok {
		return sql.ErrNoRows
	}
	for c, s := range f.semesters {
		s.IsActive = c == code
	}
	return nil
}

func (f *fakeSemesterStore) Delete(ctx context.Context, code string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if _, ok := f.semesters[code]; !ok {
		return sql.ErrNoRows
	}
	delete(f.semesters, code)
	return nil
}

func (f *fakeSemesterStore) ListMajors(ctx context.Context) ([]models.Major, error) {
	return []models.Major{{Code: "SE"}, {Code: "CS"}}, nil
}

type fakeRosterStore struct {
	teachers  []models.Teacher
	students  []models.Student
	insertErr error
	seq       int
}

func (f *fakeRosterStore) RosterEmails(ctx context.Context, kind models.AccountKind, semesterCode string) ([]string, error) {
	var out []string
	if kind == models.AccountTeacher {
		for _, t := range f.teachers {
			if t.SemesterCode == semesterCode {
				out = append(out, strings.ToLower(t.Email))
			}
		}
		return out, nil
	}
	for _, s := range f.students {
		if s.SemesterCode == semesterCode {
			out = append(out, strings.ToLower(s.Email))
		}
	}
	return out, nil
}

func (f *fakeRosterStore) CreateTeacher(ctx context.Context, exec sqlx.ExtContext, teacher *models.Teacher, actor string) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.seq++
	teacher.ID = fmt.Sprintf("teacher-%d", f.seq)
	f.teachers = append(f.teachers, *teacher)
	return nil
}

func (f *fakeRosterStore) CreateStudent(ctx context.Context, exec sqlx.ExtContext, student *models.Student, actor string) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.seq++
	student.ID = fmt.Sprintf("student-%d", f.seq)
	f.students = append(f.students, *student)
	return nil
}

func workbook(t *testing.T, rows ...[]interface{}) *bytes.Buffer {
	t.Helper()
	book := excelize.NewFile()
	defer book.Close() //nolint:errcheck
	sheet := book.GetSheetName(0)
	for i := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, book.SetSheetRow(sheet, cell, &rows[i]))
	}
	buf, err := book.WriteToBuffer()
	require.NoError(t, err)
	return buf
}

type rosterFixture struct {
	svc       *SemesterAdminService
	semesters *fakeSemesterStore
	people    *fakeRosterStore
	roles     *fakeRoleRepo
}

func newRosterFixture(t *testing.T, db *sqlx.DB) rosterFixture {
	t.Helper()
	f := rosterFixture{
		semesters: newFakeSemesterStore(testSemester, "2025B"),
		people: &fakeRosterStore{teachers: []models.Teacher{
			{ID: "t-old", Email: "old@uni.edu", Username: "old", MajorCode: "SE", SemesterCode: "2025B"},
		}},
		roles: &fakeRoleRepo{rows: map[string]*models.RoleSystem{}},
	}
	f.svc = NewSemesterAdminService(f.semesters, f.people, f.roles, db, nil, zap.NewNop())
	return f
}

func rosterStaffCtx() authz.RequestContext {
	return teacherCtx("t-staff", "SE", authz.RoleAcademicAffairsStaff)
}

func TestSemesterAdminCreateAndActivate(t *testing.T) {
	db, _ := newTxDB(t)
	f := newRosterFixture(t, db)

	semester, err := f.svc.Create(context.Background(), rosterStaffCtx(), CreateSemesterRequest{Code: " 2026A ", Title: "Spring 2026"})
	require.NoError(t, err)
	assert.Equal(t, "2026A", semester.Code)
	assert.False(t, semester.IsActive)

	_, err = f.svc.Create(context.Background(), rosterStaffCtx(), CreateSemesterRequest{Code: "2026A", Title: "again"})
	assert.ErrorIs(t, err, appErrors.ErrConflict)

	active, err := f.svc.Activate(context.Background(), rosterStaffCtx(), "2026A")
	require.NoError(t, err)
	assert.True(t, active.IsActive)
	assert.False(t, f.semesters.semesters[testSemester].IsActive)

	_, err = f.svc.Activate(context.Background(), rosterStaffCtx(), "1999Z")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestSemesterAdminRequiresStaff(t *testing.T) {
	db, _ := newTxDB(t)
	f := newRosterFixture(t, db)
	lecturer := teacherCtx("t-1", "SE", authz.RoleDepartmentLecturer)

	_, err := f.svc.Create(context.Background(), lecturer, CreateSemesterRequest{Code: "2026A", Title: "x"})
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
	assert.ErrorIs(t, f.svc.Delete(context.Background(), studentCtx("stu-1"), "2025B"), appErrors.ErrForbidden)
	_, err = f.svc.ImportStudents(context.Background(), lecturer, "2025B", workbook(t, []interface{}{"email", "username"}))
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
}

func TestSemesterAdminDeleteRefusesReferencedSemester(t *testing.T) {
	db, _ := newTxDB(t)
	f := newRosterFixture(t, db)

	assert.ErrorIs(t, f.svc.Delete(context.Background(), rosterStaffCtx(), testSemester), appErrors.ErrConflict)

	f.semesters.deleteErr = fmt.Errorf("delete semester: %w", &pq.Error{Code: "23503", Constraint: "teachers_semester_code_fkey"})
	assert.ErrorIs(t, f.svc.Delete(context.Background(), rosterStaffCtx(), "2025B"), appErrors.ErrConflict)

	f.semesters.deleteErr = nil
	require.NoError(t, f.svc.Delete(context.Background(), rosterStaffCtx(), "2025B"))
	assert.ErrorIs(t, f.svc.Delete(context.Background(), rosterStaffCtx(), "2025B"), appErrors.ErrNotFound)
}

func TestImportTeachersCreatesProfilesAndRoleRows(t *testing.T) {
	db, mock := newTxDB(t)
	f := newRosterFixture(t, db)
	file := workbook(t,
		[]interface{}{"email", "username", "gender", "major_code", "x-academic-affairs-staff", "x-department-lecturer", "x-supervisor-lecturer", "x-reviewer-lecturer"},
		[]interface{}{"lan@uni.edu", "lan", "female", "SE", "", "x", "x", ""},
		[]interface{}{"minh@uni.edu", "minh", "male", "CS", "", "", "X", ""},
		[]interface{}{"", "", "", "", "", "", "", ""},
		[]interface{}{"OLD@uni.edu", "old", "male", "SE", "", "", "x", ""},
		[]interface{}{"nam@uni.edu", "", "male", "SE", "", "", "", ""},
		[]interface{}{"hoa@uni.edu", "hoa", "female", "EE", "", "", "", ""},
		[]interface{}{"lan@uni.edu", "lan again", "female", "SE", "", "", "", ""},
	)
	expectCommit(mock)

	report, err := f.svc.ImportTeachers(context.Background(), rosterStaffCtx(), "2025B", file)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	assert.Equal(t, 6, report.Total)
	assert.Equal(t, 2, report.Imported)
	assert.Equal(t, 3, report.Roles)
	require.Len(t, report.Errors, 4)
	assert.Equal(t, RosterRowError{Row: 5, Email: "OLD@uni.edu", Message: "email already on this semester's roster"}, report.Errors[0])
	assert.Equal(t, 6, report.Errors[1].Row)
	assert.Equal(t, "email and username are required", report.Errors[1].Message)
	assert.Equal(t, "unknown major EE", report.Errors[2].Message)
	assert.Equal(t, 8, report.Errors[3].Row)

	require.Len(t, f.people.teachers, 3)
	lan := f.people.teachers[1]
	assert.Equal(t, "2025B", lan.SemesterCode)
	assert.Equal(t, "female", lan.Gender)

	require.Len(t, f.roles.rows, 3)
	row := f.roles.rows[lan.ID+":"+string(authz.RoleDepartmentLecturer)]
	require.NotNil(t, row)
	assert.True(t, row.Activate)
	assert.Equal(t, "2025B", row.SemesterCode)
	assert.Equal(t, "Department_Lecturer - lan", row.Title)
	assert.NotNil(t, f.roles.rows[f.people.teachers[2].ID+":"+string(authz.RoleSupervisorLecturer)])
}

func TestImportTeachersRollsBackOnConcurrentInsert(t *testing.T) {
	db, mock := newTxDB(t)
	f := newRosterFixture(t, db)
	f.people.insertErr = &pq.Error{Code: "23505", Constraint: "teachers_email_semester_code_key"}
	file := workbook(t,
		[]interface{}{"email", "username", "major_code"},
		[]interface{}{"lan@uni.edu", "lan", "SE"},
	)
	expectRollback(mock)

	_, err := f.svc.ImportTeachers(context.Background(), rosterStaffCtx(), "2025B", file)
	assert.ErrorIs(t, err, appErrors.ErrConflict)
	assert.Empty(t, f.roles.rows)
}

func TestImportStudentsReportsRows(t *testing.T) {
	db, mock := newTxDB(t)
	f := newRosterFixture(t, db)
	file := workbook(t,
		[]interface{}{"Email", "Username", "Phone", "Gender", "Major_Code", "Class_Code"},
		[]interface{}{"an@student.uni.edu", "an", "0901", "male", "SE", "SE01"},
		[]interface{}{"not-an-email", "bao", "", "", "SE", ""},
	)
	expectCommit(mock)

	report, err := f.svc.ImportStudents(context.Background(), rosterStaffCtx(), testSemester, file)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Imported)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, 3, report.Errors[0].Row)
	assert.Equal(t, "email is not valid", report.Errors[0].Message)

	require.Len(t, f.people.students, 1)
	assert.Equal(t, "SE01", f.people.students[0].ClassCode)
	assert.Equal(t, testSemester, f.people.students[0].SemesterCode)
}

func TestImportRejectsUnreadableWorkbooks(t *testing.T) {
	db, _ := newTxDB(t)
	f := newRosterFixture(t, db)

	_, err := f.svc.ImportStudents(context.Background(), rosterStaffCtx(), testSemester, strings.NewReader("email,username\n"))
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = f.svc.ImportStudents(context.Background(), rosterStaffCtx(), testSemester, workbook(t, []interface{}{"email", "username"}))
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = f.svc.ImportStudents(context.Background(), rosterStaffCtx(), testSemester,
		workbook(t, []interface{}{"mail", "name"}, []interface{}{"a@uni.edu", "a"}))
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = f.svc.ImportTeachers(context.Background(), rosterStaffCtx(), "1999Z", workbook(t, []interface{}{"email", "username"}))
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}
