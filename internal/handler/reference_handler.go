package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cms-lvtn-2025/thesis-api/internal/authz"
	"github.com/cms-lvtn-2025/thesis-api/internal/models"
	appErrors "github.com/cms-lvtn-2025/thesis-api/pkg/errors"
	"github.com/cms-lvtn-2025/thesis-api/pkg/response"
)

type referenceService interface {
	List(ctx context.Context) ([]models.Semester, error)
	ListMajors(ctx context.Context) ([]models.Major, error)
	ListTeachers(ctx context.Context, rc authz.RequestContext, filter models.PeopleFilter) ([]models.Teacher, *models.Pagination, error)
	ListStudents(ctx context.Context, rc authz.RequestContext, filter models.PeopleFilter) ([]models.Student, *models.Pagination, error)
}

// ReferenceHandler serves semesters, majors and the people directory.
type ReferenceHandler struct {
	service referenceService
}

// NewReferenceHandler constructs the handler.
func NewReferenceHandler(svc referenceService) *ReferenceHandler {
	return &ReferenceHandler{service: svc}
}

// Semesters godoc
// @Summary List semesters
// @Tags Reference
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /semesters [get]
func (h *ReferenceHandler) Semesters(c *gin.Context) {
	items, err := h.service.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Majors godoc
// @Summary List majors
// @Tags Reference
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /majors [get]
func (h *ReferenceHandler) Majors(c *gin.Context) {
	items, err := h.service.ListMajors(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Teachers godoc
// @Summary List teachers of the semester
// @Tags Reference
// @Produce json
// @Param major query string false "Major code"
// @Param q query string false "Search by name or email"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /teachers [get]
func (h *ReferenceHandler) Teachers(c *gin.Context) {
	rc, filter, ok := h.peopleFilter(c)
	if !ok {
		return
	}
	items, pagination, err := h.service.ListTeachers(c.Request.Context(), rc, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Students godoc
// @Summary List students of the semester
// @Tags Reference
// @Produce json
// @Param major query string false "Major code"
// @Param q query string false "Search by name or email"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /students [get]
func (h *ReferenceHandler) Students(c *gin.Context) {
	rc, filter, ok := h.peopleFilter(c)
	if !ok {
		return
	}
	items, pagination, err := h.service.ListStudents(c.Request.Context(), rc, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Permissions godoc
// @Summary Capabilities of the caller in the selected semester
// @Tags Reference
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /me/permissions [get]
func (h *ReferenceHandler) Permissions(c *gin.Context) {
	rc, ok := requestContext(c)
	if !ok {
		return
	}
	response.JSON(c, http.StatusOK, authz.Summarize(rc.Principal.Roles), nil)
}

func (h *ReferenceHandler) peopleFilter(c *gin.Context) (authz.RequestContext, models.PeopleFilter, bool) {
	rc, ok := requestContext(c)
	if !ok {
		return rc, models.PeopleFilter{}, false
	}
	var page models.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid pagination"))
		return rc, models.PeopleFilter{}, false
	}
	return rc, models.PeopleFilter{
		MajorCode:   c.Query("major"),
		Search:      c.Query("q"),
		PageRequest: page,
	}, true
}
