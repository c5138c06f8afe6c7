package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cms-lvtn-2025/thesis-api/internal/authz"
	"github.com/cms-lvtn-2025/thesis-api/internal/models"
	appErrors "github.com/cms-lvtn-2025/thesis-api/pkg/errors"
	"github.com/cms-lvtn-2025/thesis-api/pkg/export"
)

// ExportFormat selects the grade sheet encoding.
type ExportFormat string

const (
	FormatCSV  ExportFormat = "csv"
	FormatPDF  ExportFormat = "pdf"
	FormatXLSX ExportFormat = "xlsx"
)

type gradeSheetSource interface {
	GradeSheet(ctx context.Context, semesterCode, majorCode string) ([]models.GradeSheetRow, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type xlsxRenderer interface {
	Render(data export.Dataset, sheetName string) ([]byte, error)
}

type icsRenderer interface {
	Render(name string, events []export.CalendarEvent) ([]byte, error)
}

// ExportFile is a rendered download.
type ExportFile struct {
	Filename    string
	ContentType string
	Body        []byte
}

// ExportService renders grade sheets and council calendars.
type ExportService struct {
	grades    gradeSheetSource
	councils  councilLocker
	schedules councilScheduleLister
	topics    topicFinder
	csv       csvRenderer
	pdf       pdfRenderer
	xlsx      xlsxRenderer
	ics       icsRenderer
	logger    *zap.Logger
}

// NewExportService constructs an ExportService. Nil renderers fall back to pkg/export.
func NewExportService(grades gradeSheetSource, councils councilLocker, schedules councilScheduleLister, topics topicFinder, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer, xlsx xlsxRenderer, ics icsRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	if xlsx == nil {
		xlsx = export.NewXLSXExporter()
	}
	if ics == nil {
		ics = export.NewICSExporter()
	}
	return &ExportService{
		grades:    grades,
		councils:  councils,
		schedules: schedules,
		topics:    topics,
		csv:       csv,
		pdf:       pdf,
		xlsx:      xlsx,
		ics:       ics,
		logger:    logger,
	}
}

var gradeSheetHeaders = []string{"student_email", "student_name", "major", "topic", "midterm", "supervisor", "reviewer", "defense", "final", "status"}

// GradeSheet renders every enrollment of the semester. Department lecturers
// are limited to their own major.
func (s *ExportService) GradeSheet(ctx context.Context, rc authz.RequestContext, majorCode string, format ExportFormat) (*ExportFile, error) {
	perms := rc.Permissions()
	if !rc.Principal.IsTeacher() || !perms.Has(authz.PermExportGrades) {
		return nil, forbidden("grade export requires Academic_affairs_staff or Department_Lecturer")
	}
	if !perms.Has(authz.PermViewSemester) {
		if majorCode != "" && majorCode != rc.Principal.MajorCode {
			return nil, forbidden("grade export is limited to your major")
		}
		majorCode = rc.Principal.MajorCode
	}

	rows, err := s.grades.GradeSheet(ctx, rc.SemesterCode, majorCode)
	if err != nil {
		return nil, appErrors.Store(err, "failed to load grade sheet")
	}
	dataset := export.Dataset{
		Title:   gradeSheetTitle(rc.SemesterCode, majorCode),
		Headers: gradeSheetHeaders,
		Rows:    make([]map[string]string, 0, len(rows)),
	}
	for _, row := range rows {
		status := ""
		if row.FinalStatus != nil {
			status = *row.FinalStatus
		}
		dataset.Rows = append(dataset.Rows, map[string]string{
			"student_email": row.StudentEmail,
			"student_name":  row.StudentName,
			"major":         row.MajorCode,
			"topic":         row.TopicTitle,
			"midterm":       formatGrade(row.MidtermGrade),
			"supervisor":    formatGrade(row.SupervisorGrade),
			"reviewer":      formatGrade(row.ReviewerGrade),
			"defense":       formatGrade(row.DefenseGrade),
			"final":         formatGrade(row.FinalGrade),
			"status":        status,
		})
	}

	base := "grades_" + sanitize(rc.SemesterCode)
	if majorCode != "" {
		base += "_" + sanitize(majorCode)
	}
	var file ExportFile
	switch format {
	case FormatCSV, "":
		file = ExportFile{Filename: base + ".csv", ContentType: "text/csv"}
		file.Body, err = s.csv.Render(dataset)
	case FormatPDF:
		file = ExportFile{Filename: base + ".pdf", ContentType: "application/pdf"}
		file.Body, err = s.pdf.Render(dataset)
	case FormatXLSX:
		file = ExportFile{Filename: base + ".xlsx", ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"}
		file.Body, err = s.xlsx.Render(dataset, "Grades")
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported format %q", format))
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render grade sheet")
	}
	s.logger.Info("grade sheet exported", zap.String("semester", rc.SemesterCode), zap.String("format", string(format)), zap.Int("rows", len(rows)))
	return &file, nil
}

// CouncilCalendar renders a council's defense slots as an iCalendar feed.
func (s *ExportService) CouncilCalendar(ctx context.Context, rc authz.RequestContext, councilID string) (*ExportFile, error) {
	council, err := s.councils.FindByID(ctx, councilID)
	if err != nil {
		return nil, lookupErr(err, "council")
	}
	if council.SemesterCode != rc.SemesterCode || !rc.Principal.IsTeacher() {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "council not found")
	}
	schedules, err := s.schedules.ListByCouncil(ctx, nil, council.ID)
	if err != nil {
		return nil, appErrors.Store(err, "failed to load council schedule")
	}

	events := make([]export.CalendarEvent, 0, len(schedules))
	for _, item := range schedules {
		summary := council.Title
		topic, err := s.topics.FindByID(ctx, item.TopicID)
		if err != nil {
			s.logger.Warn("calendar event without topic title",
				zap.String("council_id", council.ID),
				zap.String("topic_id", item.TopicID),
				zap.Error(err),
			)
		} else {
			summary = fmt.Sprintf("%s: %s", council.Title, topic.Title)
		}
		location := ""
		if item.Location != nil {
			location = *item.Location
		}
		events = append(events, export.CalendarEvent{
			UID:         item.ID + "@thesis-api",
			Summary:     summary,
			Description: "Thesis defense, topic " + item.TopicID,
			Location:    location,
			Start:       item.TimeStart,
			End:         item.TimeEnd,
		})
	}
	body, err := s.ics.Render(council.Title, events)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render calendar")
	}
	return &ExportFile{
		Filename:    "council_" + sanitize(council.Title) + ".ics",
		ContentType: "text/calendar",
		Body:        body,
	}, nil
}

func formatGrade(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', 2, 64)
}

func gradeSheetTitle(semester, major string) string {
	parts := []string{"Thesis grades", semester}
	if major != "" {
		parts = append(parts, major)
	}
	return strings.Join(parts, " - ") + " (" + time.Now().UTC().Format("2006-01-02") + ")"
}
