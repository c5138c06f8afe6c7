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

type roleSystemService interface {
	List(ctx context.Context, rc authz.RequestContext) ([]models.RoleSystem, error)
	Assign(ctx context.Context, rc authz.RequestContext, req service.AssignRoleRequest) (*models.RoleSystem, error)
	Deactivate(ctx context.Context, rc authz.RequestContext, id string) error
}

// RoleSystemHandler manages teacher role activations.
type RoleSystemHandler struct {
	service roleSystemService
}

// NewRoleSystemHandler constructs the handler.
func NewRoleSystemHandler(svc roleSystemService) *RoleSystemHandler {
	return &RoleSystemHandler{service: svc}
}

// List godoc
// @Summary Role activations of the semester
// @Tags Roles
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /role-systems [get]
func (h *RoleSystemHandler) List(c *gin.Context) {
	rc, ok := requestContext(c)
	if !ok {
		return
	}
	items, err := h.service.List(c.Request.Context(), rc)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Assign godoc
// @Summary Activate a role for a teacher
// @Tags Roles
// @Accept json
// @Produce json
// @Param payload body service.AssignRoleRequest true "Role assignment"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /role-systems [post]
func (h *RoleSystemHandler) Assign(c *gin.Context) {
	rc, ok := requestContext(c)
	if !ok {
		return
	}
	var req service.AssignRoleRequest
	if !bindJSON(c, &req, "invalid role payload") {
		return
	}
	role, err := h.service.Assign(c.Request.Context(), rc, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, role)
}

// Deactivate godoc
// @Summary Deactivate a role assignment
// @Tags Roles
// @Param id path string true "Role system ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /role-systems/{id} [delete]
func (h *RoleSystemHandler) Deactivate(c *gin.Context) {
	rc, ok := requestContext(c)
	if !ok {
		return
	}
	if err := h.service.Deactivate(c.Request.Context(), rc, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
