package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cms-lvtn-2025/thesis-api/internal/authz"
	"github.com/cms-lvtn-2025/thesis-api/internal/models"
	"github.com/cms-lvtn-2025/thesis-api/internal/service"
	"github.com/cms-lvtn-2025/thesis-api/pkg/response"
)

type finalService interface {
	GradeSupervisor(ctx context.Context, rc authz.RequestContext, enrollmentID string, req service.GradeFinalRequest) (*models.Final, error)
	GradeReviewer(ctx context.Context, rc authz.RequestContext, enrollmentID string, req service.GradeFinalRequest) (*models.Final, error)
	Grades(ctx context.Context, rc authz.RequestContext, enrollmentID string) (*models.EnrollmentGrades, error)
}

type committeeService interface {
	Vote(ctx context.Context, rc authz.RequestContext, enrollmentID string, req service.CommitteeVoteRequest) (*service.CommitteeVoteResult, error)
}

// GradingHandler exposes final evaluation of an enrollment.
type GradingHandler struct {
	finals    finalService
	committee committeeService
}

// NewGradingHandler constructs the handler.
func NewGradingHandler(finals finalService, committee committeeService) *GradingHandler {
	return &GradingHandler{finals: finals, committee: committee}
}

// GradeSupervisor godoc
// @Summary Record the supervisor's final grade
// @Tags Grading
// @Accept json
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param payload body service.GradeFinalRequest true "Grade on the 0-100 scale"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /enrollments/{id}/final/supervisor [put]
func (h *GradingHandler) GradeSupervisor(c *gin.Context) {
	h.gradeFinal(c, h.finals.GradeSupervisor)
}

// GradeReviewer godoc
// @Summary Record the reviewer's final grade
// @Tags Grading
// @Accept json
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param payload body service.GradeFinalRequest true "Grade on the 0-100 scale"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /enrollments/{id}/final/reviewer [put]
func (h *GradingHandler) GradeReviewer(c *gin.Context) {
	h.gradeFinal(c, h.finals.GradeReviewer)
}

// CommitteeGrade godoc
// @Summary Record a committee vote
// @Description The caller's council seat decides whether the chair or secretary vote is written.
// @Tags Grading
// @Accept json
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param payload body service.CommitteeVoteRequest true "Vote on the 0-10 scale"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /enrollments/{id}/committee-grade [put]
func (h *GradingHandler) CommitteeGrade(c *gin.Context) {
	rc, ok := requestContext(c)
	if !ok {
		return
	}
	var req service.CommitteeVoteRequest
	if !bindJSON(c, &req, "invalid vote payload") {
		return
	}
	result, err := h.committee.Vote(c.Request.Context(), rc, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Grades godoc
// @Summary Every grade component of an enrollment
// @Tags Grading
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /enrollments/{id}/grades [get]
func (h *GradingHandler) Grades(c *gin.Context) {
	rc, ok := requestContext(c)
	if !ok {
		return
	}
	grades, err := h.finals.Grades(c.Request.Context(), rc, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grades, nil)
}

type gradeFunc func(ctx context.Context, rc authz.RequestContext, enrollmentID string, req service.GradeFinalRequest) (*models.Final, error)

func (h *GradingHandler) gradeFinal(c *gin.Context, grade gradeFunc) {
	rc, ok := requestContext(c)
	if !ok {
		return
	}
	var req service.GradeFinalRequest
	if !bindJSON(c, &req, "invalid grade payload") {
		return
	}
	final, err := grade(c.Request.Context(), rc, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, final, nil)
}
