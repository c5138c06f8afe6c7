package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/cms-lvtn-2025/thesis-api/internal/authz"
	"github.com/cms-lvtn-2025/thesis-api/internal/models"
	appErrors "github.com/cms-lvtn-2025/thesis-api/pkg/errors"
	"github.com/cms-lvtn-2025/thesis-api/pkg/response"
)

const (
	// ContextRequestKey stores the resolved authz.RequestContext.
	ContextRequestKey = "requestContext"
	// SemesterHeader selects the semester a request operates in.
	SemesterHeader = "X-Semester-Code"
)

// ContextResolver turns token claims into a semester-scoped request context.
type ContextResolver interface {
	Resolve(ctx context.Context, claims *models.JWTClaims, semesterCode string) (authz.RequestContext, error)
}

// RequestContext resolves the principal for the selected semester. It must run after JWT.
func RequestContext(resolver ContextResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := Claims(c)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		semester := strings.TrimSpace(c.GetHeader(SemesterHeader))
		if semester == "" {
			semester = strings.TrimSpace(c.Query("semester"))
		}

		rc, err := resolver.Resolve(c.Request.Context(), claims, semester)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Set(ContextRequestKey, rc)
		c.Next()
	}
}

// CurrentContext returns the request context stored by RequestContext.
func CurrentContext(c *gin.Context) (authz.RequestContext, bool) {
	value, exists := c.Get(ContextRequestKey)
	if !exists {
		return authz.RequestContext{}, false
	}
	rc, ok := value.(authz.RequestContext)
	return rc, ok
}
