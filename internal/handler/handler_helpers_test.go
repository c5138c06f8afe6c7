package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/cms-lvtn-2025/thesis-api/internal/authz"
	"github.com/cms-lvtn-2025/thesis-api/internal/middleware"
	"github.com/cms-lvtn-2025/thesis-api/internal/models"
)

func staffContext() authz.RequestContext {
	return authz.RequestContext{
		SemesterCode: "2025A",
		Principal: authz.Principal{
			AccountID: "acc-1",
			ProfileID: "teacher-1",
			Kind:      models.AccountTeacher,
			MajorCode: "SE",
			Roles:     authz.NewRoleSet(authz.RoleAcademicAffairsStaff),
		},
	}
}

func newTestContext(method, target, body string, rc *authz.RequestContext) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	c.Request = req
	if rc != nil {
		c.Set(middleware.ContextRequestKey, *rc)
	}
	return c, w
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string          `json:"code"`
		Message string          `json:"message"`
		Details json.RawMessage `json:"details"`
	} `json:"error"`
	Pagination *models.Pagination `json:"pagination"`
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}
