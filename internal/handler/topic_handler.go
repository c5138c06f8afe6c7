package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cms-lvtn-2025/thesis-api/internal/authz"
	"github.com/cms-lvtn-2025/thesis-api/internal/models"
	"github.com/cms-lvtn-2025/thesis-api/internal/service"
	appErrors "github.com/cms-lvtn-2025/thesis-api/pkg/errors"
	"github.com/cms-lvtn-2025/thesis-api/pkg/response"
)

type topicService interface {
	Submit(ctx context.Context, rc authz.RequestContext, req service.SubmitTopicRequest) (*models.Topic, error)
	List(ctx context.Context, rc authz.RequestContext, filter models.TopicFilter) ([]models.Topic, *models.Pagination, error)
	Get(ctx context.Context, rc authz.RequestContext, id string) (*models.TopicDetail, error)
	Approve(ctx context.Context, rc authz.RequestContext, id string, req service.ApproveTopicRequest) (*models.Topic, error)
	Reject(ctx context.Context, rc authz.RequestContext, id string, req service.RejectTopicRequest) (*models.Topic, error)
	Complete(ctx context.Context, rc authz.RequestContext, id string) (*models.Topic, error)
	AssignStudents(ctx context.Context, rc authz.RequestContext, id string, req service.AssignStudentsRequest) (*models.TopicDetail, error)
	MyDefense(ctx context.Context, rc authz.RequestContext) (*models.DefenseSlot, error)
}

type midtermService interface {
	Grade(ctx context.Context, rc authz.RequestContext, topicID string, req service.GradeMidtermRequest) (*models.Midterm, error)
	Submit(ctx context.Context, rc authz.RequestContext, topicID string, req service.SubmitMidtermRequest) (*models.Midterm, error)
}

// TopicHandler exposes the topic lifecycle and the mid-term phase.
type TopicHandler struct {
	topics   topicService
	midterms midtermService
}

// NewTopicHandler constructs the handler.
func NewTopicHandler(topics topicService, midterms midtermService) *TopicHandler {
	return &TopicHandler{topics: topics, midterms: midterms}
}

// List godoc
// @Summary List topics visible to the caller
// @Tags Topics
// @Produce json
// @Param status query string false "pending|approved|in_progress|completed|rejected"
// @Param major query string false "Major code"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /topics [get]
func (h *TopicHandler) List(c *gin.Context) {
	rc, ok := requestContext(c)
	if !ok {
		return
	}
	var page models.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid pagination"))
		return
	}
	filter := models.TopicFilter{
		MajorCode:   c.Query("major"),
		Status:      models.TopicStatus(c.Query("status")),
		PageRequest: page,
	}
	items, pagination, err := h.topics.List(c.Request.Context(), rc, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Create godoc
// @Summary Submit a topic proposal
// @Tags Topics
// @Accept json
// @Produce json
// @Param payload body service.SubmitTopicRequest true "Topic payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /topics [post]
func (h *TopicHandler) Create(c *gin.Context) {
	rc, ok := requestContext(c)
	if !ok {
		return
	}
	var req service.SubmitTopicRequest
	if !bindJSON(c, &req, "invalid topic payload") {
		return
	}
	topic, err := h.topics.Submit(c.Request.Context(), rc, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, topic)
}

// Get godoc
// @Summary Topic with team, enrollments and midterm
// @Tags Topics
// @Produce json
// @Param id path string true "Topic ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /topics/{id} [get]
func (h *TopicHandler) Get(c *gin.Context) {
	rc, ok := requestContext(c)
	if !ok {
		return
	}
	detail, err := h.topics.Get(c.Request.Context(), rc, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// MyDefense godoc
// @Summary Defense slot of the calling student's topic
// @Tags Topics
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /me/defense [get]
func (h *TopicHandler) MyDefense(c *gin.Context) {
	rc, ok := requestContext(c)
	if !ok {
		return
	}
	slot, err := h.topics.MyDefense(c.Request.Context(), rc)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, slot, nil)
}

// Approve godoc
// @Summary Approve a pending topic
// @Tags Topics
// @Accept json
// @Produce json
// @Param id path string true "Topic ID"
// @Param payload body service.ApproveTopicRequest false "Approval note"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /topics/{id}/approve [post]
func (h *TopicHandler) Approve(c *gin.Context) {
	rc, ok := requestContext(c)
	if !ok {
		return
	}
	var req service.ApproveTopicRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req, "invalid approval payload") {
		return
	}
	topic, err := h.topics.Approve(c.Request.Context(), rc, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, topic, nil)
}

// Reject godoc
// @Summary Reject a pending topic
// @Tags Topics
// @Accept json
// @Produce json
// @Param id path string true "Topic ID"
// @Param payload body service.RejectTopicRequest true "Rejection reason"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /topics/{id}/reject [post]
func (h *TopicHandler) Reject(c *gin.Context) {
	rc, ok := requestContext(c)
	if !ok {
		return
	}
	var req service.RejectTopicRequest
	if !bindJSON(c, &req, "invalid rejection payload") {
		return
	}
	topic, err := h.topics.Reject(c.Request.Context(), rc, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, topic, nil)
}

// Complete godoc
// @Summary Mark a topic completed
// @Tags Topics
// @Produce json
// @Param id path string true "Topic ID"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /topics/{id}/complete [post]
func (h *TopicHandler) Complete(c *gin.Context) {
	rc, ok := requestContext(c)
	if !ok {
		return
	}
	topic, err := h.topics.Complete(c.Request.Context(), rc, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, topic, nil)
}

// AssignStudents godoc
// @Summary Assign the student team of a topic
// @Tags Topics
// @Accept json
// @Produce json
// @Param id path string true "Topic ID"
// @Param payload body service.AssignStudentsRequest true "Student IDs"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /topics/{id}/students [post]
func (h *TopicHandler) AssignStudents(c *gin.Context) {
	rc, ok := requestContext(c)
	if !ok {
		return
	}
	var req service.AssignStudentsRequest
	if !bindJSON(c, &req, "invalid students payload") {
		return
	}
	detail, err := h.topics.AssignStudents(c.Request.Context(), rc, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// GradeMidterm godoc
// @Summary Grade the team's mid-term report
// @Tags Midterm
// @Accept json
// @Produce json
// @Param id path string true "Topic ID"
// @Param payload body service.GradeMidtermRequest true "Grade on the 0-100 scale"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /topics/{id}/midterm [put]
func (h *TopicHandler) GradeMidterm(c *gin.Context) {
	rc, ok := requestContext(c)
	if !ok {
		return
	}
	var req service.GradeMidtermRequest
	if !bindJSON(c, &req, "invalid midterm payload") {
		return
	}
	midterm, err := h.midterms.Grade(c.Request.Context(), rc, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, midterm, nil)
}

// SubmitMidterm godoc
// @Summary Attach the mid-term report
// @Tags Midterm
// @Accept json
// @Produce json
// @Param id path string true "Topic ID"
// @Param payload body service.SubmitMidtermRequest true "Uploaded attachment"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /topics/{id}/midterm/submission [post]
func (h *TopicHandler) SubmitMidterm(c *gin.Context) {
	rc, ok := requestContext(c)
	if !ok {
		return
	}
	var req service.SubmitMidtermRequest
	if !bindJSON(c, &req, "invalid submission payload") {
		return
	}
	midterm, err := h.midterms.Submit(c.Request.Context(), rc, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, midterm, nil)
}
