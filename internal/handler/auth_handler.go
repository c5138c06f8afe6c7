package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cms-lvtn-2025/thesis-api/internal/authz"
	"github.com/cms-lvtn-2025/thesis-api/internal/models"
	"github.com/cms-lvtn-2025/thesis-api/pkg/response"
)

type authService interface {
	Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error)
}

// AuthHandler wires HTTP endpoints to the auth service.
type AuthHandler struct {
	service authService
}

// NewAuthHandler creates a new handler.
func NewAuthHandler(svc authService) *AuthHandler {
	return &AuthHandler{service: svc}
}

// MeResponse describes the caller as resolved for the selected semester.
type MeResponse struct {
	Principal    authz.Principal `json:"principal"`
	Roles        []authz.Role    `json:"roles"`
	SemesterCode string          `json:"semester_code"`
}

// Login godoc
// @Summary Authenticate account
// @Description Authenticate a teacher, student or staff account by email and password
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.LoginRequest true "Login payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if !bindJSON(c, &req, "invalid login payload") {
		return
	}

	res, err := h.service.Login(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, res, nil)
}

// Me godoc
// @Summary Get current principal
// @Description Returns the caller's profile and active roles in the selected semester
// @Tags Authentication
// @Produce json
// @Param X-Semester-Code header string false "Semester code (defaults to the active semester)"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	rc, ok := requestContext(c)
	if !ok {
		return
	}

	response.JSON(c, http.StatusOK, MeResponse{
		Principal:    rc.Principal,
		Roles:        rc.Principal.Roles.Slice(),
		SemesterCode: rc.SemesterCode,
	}, nil)
}
