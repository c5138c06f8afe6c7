package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cms-lvtn-2025/thesis-api/internal/authz"
	"github.com/cms-lvtn-2025/thesis-api/internal/middleware"
	appErrors "github.com/cms-lvtn-2025/thesis-api/pkg/errors"
	"github.com/cms-lvtn-2025/thesis-api/pkg/response"
)

// requestContext fetches the resolved context or answers 401.
func requestContext(c *gin.Context) (authz.RequestContext, bool) {
	rc, ok := middleware.CurrentContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return authz.RequestContext{}, false
	}
	return rc, true
}

func bindJSON(c *gin.Context, dest interface{}, message string) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, message))
		return false
	}
	return true
}
