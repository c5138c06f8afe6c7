package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/cms-lvtn-2025/thesis-api/internal/authz"
	appErrors "github.com/cms-lvtn-2025/thesis-api/pkg/errors"
	"github.com/cms-lvtn-2025/thesis-api/pkg/response"
)

// RequirePermission lets the request through when the principal holds any of the given permissions.
// Entity scoping (major, ownership, seats) stays with the services.
func RequirePermission(perms ...authz.Permission) gin.HandlerFunc {
	return func(c *gin.Context) {
		rc, ok := CurrentContext(c)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		granted := rc.Permissions()
		for _, p := range perms {
			if granted.Has(p) {
				c.Next()
				return
			}
		}

		response.Error(c, appErrors.ErrForbidden)
		c.Abort()
	}
}

// RequireTeacher rejects principals that did not resolve to a teacher profile.
func RequireTeacher() gin.HandlerFunc {
	return func(c *gin.Context) {
		rc, ok := CurrentContext(c)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if !rc.Principal.IsTeacher() {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "teacher account required"))
			c.Abort()
			return
		}
		c.Next()
	}
}
