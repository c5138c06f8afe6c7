package service

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/cms-lvtn-2025/thesis-api/internal/authz"
	"github.com/cms-lvtn-2025/thesis-api/internal/models"
	"github.com/cms-lvtn-2025/thesis-api/pkg/database"
	appErrors "github.com/cms-lvtn-2025/thesis-api/pkg/errors"
)

const maxRosterRows = 2000

// Role flag columns of the teacher roster. A cell holding "x" activates the role.
var rosterRoleColumns = []struct {
	column string
	role   authz.Role
}{
	{"x-academic-affairs-staff", authz.RoleAcademicAffairsStaff},
	{"x-department-lecturer", authz.RoleDepartmentLecturer},
	{"x-supervisor-lecturer", authz.RoleSupervisorLecturer},
	{"x-reviewer-lecturer", authz.RoleReviewerLecturer},
}

type semesterStore interface {
	FindByCode(ctx context.Context, code string) (*models.Semester, error)
	Create(ctx context.Context, semester *models.Semester) error
	SetActive(ctx context.Context, code string) error
	Delete(ctx context.Context, code string) error
	ListMajors(ctx context.Context) ([]models.Major, error)
}

type rosterStore interface {
	RosterEmails(ctx context.Context, kind models.AccountKind, semesterCode string) ([]string, error)
	CreateTeacher(ctx context.Context, exec sqlx.ExtContext, teacher *models.Teacher, actor string) error
	CreateStudent(ctx context.Context, exec sqlx.ExtContext, student *models.Student, actor string) error
}

type roleRowWriter interface {
	Upsert(ctx context.Context, exec sqlx.ExtContext, role *models.RoleSystem, actor string) error
}

// CreateSemesterRequest opens a new semester.
type CreateSemesterRequest struct {
	Code  string `json:"code" validate:"required,max=32"`
	Title string `json:"title" validate:"required,max=255"`
}

// RosterRowError explains why one spreadsheet row was skipped.
type RosterRowError struct {
	Row     int    `json:"row"`
	Email   string `json:"email,omitempty"`
	Message string `json:"message"`
}

// RosterReport summarises a roster import.
type RosterReport struct {
	Total    int              `json:"total"`
	Imported int              `json:"imported"`
	Roles    int              `json:"roles"`
	Errors   []RosterRowError `json:"errors"`
}

// SemesterAdminService lets academic affairs staff open, activate and delete
// semesters and load their teacher and student rosters.
type SemesterAdminService struct {
	semesters semesterStore
	people    rosterStore
	roles     roleRowWriter
	tx        txProvider
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSemesterAdminService constructs a SemesterAdminService.
func NewSemesterAdminService(semesters semesterStore, people rosterStore, roles roleRowWriter, tx txProvider, validate *validator.Validate, logger *zap.Logger) *SemesterAdminService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SemesterAdminService{semesters: semesters, people: people, roles: roles, tx: tx, validator: validate, logger: logger}
}

// Create stores a new, inactive semester.
func (s *SemesterAdminService) Create(ctx context.Context, rc authz.RequestContext, req CreateSemesterRequest) (*models.Semester, error) {
	if !authz.CanManageRoles(rc.Principal) {
		return nil, forbidden("only academic affairs staff may manage semesters")
	}
	req.Code = strings.TrimSpace(req.Code)
	req.Title = strings.TrimSpace(req.Title)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationErr(err, "invalid semester payload")
	}
	semester := &models.Semester{Code: req.Code, Title: req.Title}
	if err := s.semesters.Create(ctx, semester); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "semester code already exists")
		}
		return nil, appErrors.Store(err, "failed to create semester")
	}
	s.logger.Info("semester created", zap.String("semester", semester.Code), zap.String("actor", rc.Principal.AccountID))
	return semester, nil
}

// Activate makes code the active semester.
func (s *SemesterAdminService) Activate(ctx context.Context, rc authz.RequestContext, code string) (*models.Semester, error) {
	if !authz.CanManageRoles(rc.Principal) {
		return nil, forbidden("only academic affairs staff may manage semesters")
	}
	if err := s.semesters.SetActive(ctx, code); err != nil {
		return nil, lookupErr(err, "semester")
	}
	semester, err := s.semesters.FindByCode(ctx, code)
	if err != nil {
		return nil, lookupErr(err, "semester")
	}
	s.logger.Info("semester activated", zap.String("semester", code), zap.String("actor", rc.Principal.AccountID))
	return semester, nil
}

// Delete removes a semester that nothing references yet.
func (s *SemesterAdminService) Delete(ctx context.Context, rc authz.RequestContext, code string) error {
	if !authz.CanManageRoles(rc.Principal) {
		return forbidden("only academic affairs staff may manage semesters")
	}
	if code == rc.SemesterCode {
		return appErrors.Clone(appErrors.ErrConflict, "cannot delete the semester you are working in")
	}
	if err := s.semesters.Delete(ctx, code); err != nil {
		if database.IsForeignKeyViolation(err) {
			return appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "semester still has profiles or topics")
		}
		return lookupErr(err, "semester")
	}
	s.logger.Info("semester deleted", zap.String("semester", code), zap.String("actor", rc.Principal.AccountID))
	return nil
}

type teacherRow struct {
	row     int
	teacher models.Teacher
	roles   []authz.Role
}

// ImportTeachers loads a teacher roster workbook into a semester. Rows with
// missing or unknown data are reported and skipped; the rest are stored
// together with their role rows in one transaction.
func (s *SemesterAdminService) ImportTeachers(ctx context.Context, rc authz.RequestContext, code string, file io.Reader) (*RosterReport, error) {
	semester, majors, existing, err := s.prepareImport(ctx, rc, code, models.AccountTeacher)
	if err != nil {
		return nil, err
	}
	sheet, err := readRoster(file)
	if err != nil {
		return nil, err
	}

	report := &RosterReport{Total: len(sheet.rows), Errors: []RosterRowError{}}
	var valid []teacherRow
	for _, r := range sheet.rows {
		teacher := models.Teacher{
			Email:        sheet.cell(r, "email"),
			Username:     sheet.cell(r, "username"),
			Gender:       sheet.cell(r, "gender"),
			MajorCode:    sheet.cell(r, "major_code"),
			SemesterCode: semester.Code,
		}
		if msg := s.checkRow(teacher.Email, teacher.Username, teacher.MajorCode, majors, existing); msg != "" {
			report.Errors = append(report.Errors, RosterRowError{Row: r.number, Email: teacher.Email, Message: msg})
			continue
		}
		existing[strings.ToLower(teacher.Email)] = struct{}{}
		item := teacherRow{row: r.number, teacher: teacher}
		for _, flag := range rosterRoleColumns {
			if strings.EqualFold(sheet.cell(r, flag.column), "x") {
				item.roles = append(item.roles, flag.role)
			}
		}
		valid = append(valid, item)
	}
	if len(valid) == 0 {
		return report, nil
	}

	actor := rc.Principal.AccountID
	err = inTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		for i := range valid {
			item := &valid[i]
			if err := s.people.CreateTeacher(ctx, tx, &item.teacher, actor); err != nil {
				return rosterWriteErr(err, item.row)
			}
			for _, role := range item.roles {
				row := &models.RoleSystem{
					Title:        fmt.Sprintf("%s - %s", role, item.teacher.Username),
					TeacherID:    item.teacher.ID,
					Role:         string(role),
					SemesterCode: semester.Code,
					Activate:     true,
				}
				if err := s.roles.Upsert(ctx, tx, row, actor); err != nil {
					return rosterWriteErr(err, item.row)
				}
				report.Roles++
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	report.Imported = len(valid)
	s.logger.Info("teacher roster imported",
		zap.String("semester", semester.Code),
		zap.Int("imported", report.Imported),
		zap.Int("roles", report.Roles),
		zap.Int("skipped", len(report.Errors)),
	)
	return report, nil
}

// ImportStudents loads a student roster workbook into a semester.
func (s *SemesterAdminService) ImportStudents(ctx context.Context, rc authz.RequestContext, code string, file io.Reader) (*RosterReport, error) {
	semester, majors, existing, err := s.prepareImport(ctx, rc, code, models.AccountStudent)
	if err != nil {
		return nil, err
	}
	sheet, err := readRoster(file)
	if err != nil {
		return nil, err
	}

	report := &RosterReport{Total: len(sheet.rows), Errors: []RosterRowError{}}
	var valid []models.Student
	var rowNumbers []int
	for _, r := range sheet.rows {
		student := models.Student{
			Email:        sheet.cell(r, "email"),
			Username:     sheet.cell(r, "username"),
			Phone:        sheet.cell(r, "phone"),
			Gender:       sheet.cell(r, "gender"),
			MajorCode:    sheet.cell(r, "major_code"),
			ClassCode:    sheet.cell(r, "class_code"),
			SemesterCode: semester.Code,
		}
		if msg := s.checkRow(student.Email, student.Username, student.MajorCode, majors, existing); msg != "" {
			report.Errors = append(report.Errors, RosterRowError{Row: r.number, Email: student.Email, Message: msg})
			continue
		}
		existing[strings.ToLower(student.Email)] = struct{}{}
		valid = append(valid, student)
		rowNumbers = append(rowNumbers, r.number)
	}
	if len(valid) == 0 {
		return report, nil
	}

	err = inTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		for i := range valid {
			if err := s.people.CreateStudent(ctx, tx, &valid[i], rc.Principal.AccountID); err != nil {
				return rosterWriteErr(err, rowNumbers[i])
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	report.Imported = len(valid)
	s.logger.Info("student roster imported",
		zap.String("semester", semester.Code),
		zap.Int("imported", report.Imported),
		zap.Int("skipped", len(report.Errors)),
	)
	return report, nil
}

func (s *SemesterAdminService) prepareImport(ctx context.Context, rc authz.RequestContext, code string, kind models.AccountKind) (*models.Semester, map[string]struct{}, map[string]struct{}, error) {
	if !authz.CanManageRoles(rc.Principal) {
		return nil, nil, nil, forbidden("only academic affairs staff may import rosters")
	}
	semester, err := s.semesters.FindByCode(ctx, code)
	if err != nil {
		return nil, nil, nil, lookupErr(err, "semester")
	}
	majorList, err := s.semesters.ListMajors(ctx)
	if err != nil {
		return nil, nil, nil, appErrors.Store(err, "failed to list majors")
	}
	majors := make(map[string]struct{}, len(majorList))
	for _, m := range majorList {
		majors[m.Code] = struct{}{}
	}
	emails, err := s.people.RosterEmails(ctx, kind, semester.Code)
	if err != nil {
		return nil, nil, nil, appErrors.Store(err, "failed to load roster")
	}
	existing := make(map[string]struct{}, len(emails))
	for _, e := range emails {
		existing[strings.ToLower(e)] = struct{}{}
	}
	return semester, majors, existing, nil
}

func (s *SemesterAdminService) checkRow(email, username, major string, majors, existing map[string]struct{}) string {
	switch {
	case email == "" || username == "":
		return "email and username are required"
	case s.validator.Var(email, "email") != nil:
		return "email is not valid"
	case major == "":
		return "major_code is required"
	}
	if _, ok := majors[major]; !ok {
		return fmt.Sprintf("unknown major %s", major)
	}
	if _, ok := existing[strings.ToLower(email)]; ok {
		return "email already on this semester's roster"
	}
	return ""
}

func rosterWriteErr(err error, row int) error {
	if database.IsUniqueViolation(err) {
		return appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status,
			fmt.Sprintf("row %d was added concurrently; nothing was imported", row))
	}
	return appErrors.Store(err, "failed to store roster")
}

type rosterRow struct {
	number int
	cells  []string
}

type rosterSheet struct {
	columns map[string]int
	rows    []rosterRow
}

func (s rosterSheet) cell(r rosterRow, column string) string {
	idx, ok := s.columns[column]
	if !ok || idx >= len(r.cells) {
		return ""
	}
	return strings.TrimSpace(r.cells[idx])
}

// readRoster reads the first sheet of a workbook. Row 1 is the header;
// blank rows are skipped.
func readRoster(file io.Reader) (rosterSheet, error) {
	book, err := excelize.OpenReader(file)
	if err != nil {
		return rosterSheet{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "file is not a readable xlsx workbook")
	}
	defer book.Close() //nolint:errcheck

	rows, err := book.GetRows(book.GetSheetName(0))
	if err != nil {
		return rosterSheet{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "cannot read the first sheet")
	}
	if len(rows) < 2 {
		return rosterSheet{}, appErrors.Clone(appErrors.ErrValidation, "workbook has no data rows below the header")
	}

	sheet := rosterSheet{columns: map[string]int{}}
	for i, h := range rows[0] {
		sheet.columns[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, required := range []string{"email", "username"} {
		if _, ok := sheet.columns[required]; !ok {
			return rosterSheet{}, appErrors.Clone(appErrors.ErrValidation, "header is missing the "+required+" column")
		}
	}
	for i, cells := range rows[1:] {
		if strings.TrimSpace(strings.Join(cells, "")) == "" {
			continue
		}
		sheet.rows = append(sheet.rows, rosterRow{number: i + 2, cells: cells})
	}
	if len(sheet.rows) == 0 {
		return rosterSheet{}, appErrors.Clone(appErrors.ErrValidation, "workbook has no data rows below the header")
	}
	if len(sheet.rows) > maxRosterRows {
		return rosterSheet{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("workbook exceeds %d rows", maxRosterRows))
	}
	return sheet, nil
}
