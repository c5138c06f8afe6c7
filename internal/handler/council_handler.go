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

type councilService interface {
	Create(ctx context.Context, rc authz.RequestContext, req service.CreateCouncilRequest) (*models.CouncilDetail, error)
	List(ctx context.Context, rc authz.RequestContext) ([]models.Council, error)
	Get(ctx context.Context, rc authz.RequestContext, id string) (*models.CouncilDetail, error)
	AddMember(ctx context.Context, rc authz.RequestContext, councilID string, req service.CouncilMemberRequest) (*models.Defence, error)
	RemoveMember(ctx context.Context, rc authz.RequestContext, councilID, defenceID string) error
}

type councilScheduleService interface {
	Create(ctx context.Context, rc authz.RequestContext, councilID string, req service.CreateScheduleRequest) (*models.CouncilSchedule, error)
	Update(ctx context.Context, rc authz.RequestContext, scheduleID string, req service.UpdateScheduleRequest) (*models.CouncilSchedule, error)
	Delete(ctx context.Context, rc authz.RequestContext, scheduleID string) error
	ListByCouncil(ctx context.Context, rc authz.RequestContext, councilID string) ([]models.CouncilSchedule, error)
	ListForTeacher(ctx context.Context, rc authz.RequestContext) ([]models.CouncilSchedule, error)
}

type calendarExporter interface {
	CouncilCalendar(ctx context.Context, rc authz.RequestContext, councilID string) (*service.ExportFile, error)
}

// CouncilHandler exposes councils, their seats and their defense schedule.
type CouncilHandler struct {
	councils  councilService
	schedules councilScheduleService
	calendar  calendarExporter
}

// NewCouncilHandler constructs the handler.
func NewCouncilHandler(councils councilService, schedules councilScheduleService, calendar calendarExporter) *CouncilHandler {
	return &CouncilHandler{councils: councils, schedules: schedules, calendar: calendar}
}

// List godoc
// @Summary List councils visible to the caller
// @Tags Councils
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /councils [get]
func (h *CouncilHandler) List(c *gin.Context) {
	rc, ok := requestContext(c)
	if !ok {
		return
	}
	items, err := h.councils.List(c.Request.Context(), rc)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Create godoc
// @Summary Create a council with its seats
// @Tags Councils
// @Accept json
// @Produce json
// @Param payload body service.CreateCouncilRequest true "Council payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /councils [post]
func (h *CouncilHandler) Create(c *gin.Context) {
	rc, ok := requestContext(c)
	if !ok {
		return
	}
	var req service.CreateCouncilRequest
	if !bindJSON(c, &req, "invalid council payload") {
		return
	}
	detail, err := h.councils.Create(c.Request.Context(), rc, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, detail)
}

// Get godoc
// @Summary Council with seats and schedule
// @Tags Councils
// @Produce json
// @Param id path string true "Council ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /councils/{id} [get]
func (h *CouncilHandler) Get(c *gin.Context) {
	rc, ok := requestContext(c)
	if !ok {
		return
	}
	detail, err := h.councils.Get(c.Request.Context(), rc, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// AddMember godoc
// @Summary Seat a teacher on a council
// @Tags Councils
// @Accept json
// @Produce json
// @Param id path string true "Council ID"
// @Param payload body service.CouncilMemberRequest true "Seat"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /councils/{id}/members [post]
func (h *CouncilHandler) AddMember(c *gin.Context) {
	rc, ok := requestContext(c)
	if !ok {
		return
	}
	var req service.CouncilMemberRequest
	if !bindJSON(c, &req, "invalid member payload") {
		return
	}
	defence, err := h.councils.AddMember(c.Request.Context(), rc, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, defence)
}

// RemoveMember godoc
// @Summary Remove a council seat
// @Tags Councils
// @Param id path string true "Council ID"
// @Param defenceId path string true "Seat ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /councils/{id}/members/{defenceId} [delete]
func (h *CouncilHandler) RemoveMember(c *gin.Context) {
	rc, ok := requestContext(c)
	if !ok {
		return
	}
	if err := h.councils.RemoveMember(c.Request.Context(), rc, c.Param("id"), c.Param("defenceId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ListSchedules godoc
// @Summary Defense slots of a council
// @Tags Schedules
// @Produce json
// @Param id path string true "Council ID"
// @Success 200 {object} response.Envelope
// @Router /councils/{id}/schedules [get]
func (h *CouncilHandler) ListSchedules(c *gin.Context) {
	rc, ok := requestContext(c)
	if !ok {
		return
	}
	items, err := h.schedules.ListByCouncil(c.Request.Context(), rc, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// CreateSchedule godoc
// @Summary Schedule a topic's defense
// @Description Fails with MAJOR_MISMATCH, INVALID_INTERVAL, TIME_CONFLICT or TOPIC_ALREADY_SCHEDULED.
// @Tags Schedules
// @Accept json
// @Produce json
// @Param id path string true "Council ID"
// @Param payload body service.CreateScheduleRequest true "Slot"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /councils/{id}/schedules [post]
func (h *CouncilHandler) CreateSchedule(c *gin.Context) {
	rc, ok := requestContext(c)
	if !ok {
		return
	}
	var req service.CreateScheduleRequest
	if !bindJSON(c, &req, "invalid schedule payload") {
		return
	}
	slot, err := h.schedules.Create(c.Request.Context(), rc, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, slot)
}

// UpdateSchedule godoc
// @Summary Move or relocate a defense slot
// @Tags Schedules
// @Accept json
// @Produce json
// @Param id path string true "Schedule ID"
// @Param payload body service.UpdateScheduleRequest true "Slot"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /schedules/{id} [put]
func (h *CouncilHandler) UpdateSchedule(c *gin.Context) {
	rc, ok := requestContext(c)
	if !ok {
		return
	}
	var req service.UpdateScheduleRequest
	if !bindJSON(c, &req, "invalid schedule payload") {
		return
	}
	slot, err := h.schedules.Update(c.Request.Context(), rc, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, slot, nil)
}

// DeleteSchedule godoc
// @Summary Cancel a defense slot
// @Tags Schedules
// @Param id path string true "Schedule ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /schedules/{id} [delete]
func (h *CouncilHandler) DeleteSchedule(c *gin.Context) {
	rc, ok := requestContext(c)
	if !ok {
		return
	}
	if err := h.schedules.Delete(c.Request.Context(), rc, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// MySchedules godoc
// @Summary Defense slots of councils the caller sits on
// @Tags Schedules
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /me/schedules [get]
func (h *CouncilHandler) MySchedules(c *gin.Context) {
	rc, ok := requestContext(c)
	if !ok {
		return
	}
	items, err := h.schedules.ListForTeacher(c.Request.Context(), rc)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Calendar godoc
// @Summary Council defense calendar
// @Tags Schedules
// @Produce text/calendar
// @Param id path string true "Council ID"
// @Success 200 {file} file
// @Failure 404 {object} response.Envelope
// @Router /councils/{id}/calendar.ics [get]
func (h *CouncilHandler) Calendar(c *gin.Context) {
	rc, ok := requestContext(c)
	if !ok {
		return
	}
	file, err := h.calendar.CouncilCalendar(c.Request.Context(), rc, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.File(c, file.Filename, file.ContentType, file.Body)
}
