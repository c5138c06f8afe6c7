package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cms-lvtn-2025/thesis-api/internal/authz"
	"github.com/cms-lvtn-2025/thesis-api/internal/models"
	"github.com/cms-lvtn-2025/thesis-api/internal/service"
	appErrors "github.com/cms-lvtn-2025/thesis-api/pkg/errors"
	"github.com/cms-lvtn-2025/thesis-api/pkg/response"
)

type semesterAdminService interface {
	Create(ctx context.Context, rc authz.RequestContext, req service.CreateSemesterRequest) (*models.Semester, error)
	Activate(ctx context.Context, rc authz.RequestContext, code string) (*models.Semester, error)
	Delete(ctx context.Context, rc authz.RequestContext, code string) error
	ImportTeachers(ctx context.Context, rc authz.RequestContext, code string, file io.Reader) (*service.RosterReport, error)
	ImportStudents(ctx context.Context, rc authz.RequestContext, code string, file io.Reader) (*service.RosterReport, error)
}

// SemesterHandler lets staff manage semesters and upload their rosters.
type SemesterHandler struct {
	service semesterAdminService
}

// NewSemesterHandler constructs the handler.
func NewSemesterHandler(svc semesterAdminService) *SemesterHandler {
	return &SemesterHandler{service: svc}
}

// Create godoc
// @Summary Open a semester
// @Tags Semesters
// @Accept json
// @Produce json
// @Param payload body service.CreateSemesterRequest true "Semester"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /semesters [post]
func (h *SemesterHandler) Create(c *gin.Context) {
	rc, ok := requestContext(c)
	if !ok {
		return
	}
	var req service.CreateSemesterRequest
	if !bindJSON(c, &req, "invalid semester payload") {
		return
	}
	semester, err := h.service.Create(c.Request.Context(), rc, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, semester)
}

// Activate godoc
// @Summary Make a semester the active one
// @Tags Semesters
// @Produce json
// @Param code path string true "Semester code"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /semesters/{code}/activate [put]
func (h *SemesterHandler) Activate(c *gin.Context) {
	rc, ok := requestContext(c)
	if !ok {
		return
	}
	semester, err := h.service.Activate(c.Request.Context(), rc, c.Param("code"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, semester, nil)
}

// Delete godoc
// @Summary Delete an unused semester
// @Tags Semesters
// @Param code path string true "Semester code"
// @Success 204
// @Failure 409 {object} response.Envelope
// @Router /semesters/{code} [delete]
func (h *SemesterHandler) Delete(c *gin.Context) {
	rc, ok := requestContext(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), rc, c.Param("code")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ImportTeachers godoc
// @Summary Import the teacher roster of a semester from xlsx
// @Tags Semesters
// @Accept multipart/form-data
// @Produce json
// @Param code path string true "Semester code"
// @Param file formData file true "Workbook with email, username, gender, major_code and x-* role columns"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /semesters/{code}/teachers/import [post]
func (h *SemesterHandler) ImportTeachers(c *gin.Context) {
	h.importRoster(c, h.service.ImportTeachers)
}

// ImportStudents godoc
// @Summary Import the student roster of a semester from xlsx
// @Tags Semesters
// @Accept multipart/form-data
// @Produce json
// @Param code path string true "Semester code"
// @Param file formData file true "Workbook with email, username, phone, gender, major_code and class_code columns"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /semesters/{code}/students/import [post]
func (h *SemesterHandler) ImportStudents(c *gin.Context) {
	h.importRoster(c, h.service.ImportStudents)
}

func (h *SemesterHandler) importRoster(c *gin.Context,
	run func(ctx context.Context, rc authz.RequestContext, code string, file io.Reader) (*service.RosterReport, error)) {
	rc, ok := requestContext(c)
	if !ok {
		return
	}
	header, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "file is required"))
		return
	}
	file, err := header.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unreadable upload"))
		return
	}
	defer file.Close()

	report, err := run(c.Request.Context(), rc, c.Param("code"), file)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}
