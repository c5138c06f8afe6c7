package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cms-lvtn-2025/thesis-api/internal/authz"
	"github.com/cms-lvtn-2025/thesis-api/internal/middleware"
	"github.com/cms-lvtn-2025/thesis-api/internal/models"
	"github.com/cms-lvtn-2025/thesis-api/internal/service"
	appErrors "github.com/cms-lvtn-2025/thesis-api/pkg/errors"
)

type semesterAdminMock struct {
	created  *service.CreateSemesterRequest
	code     string
	imported []byte
	kind     string
	err      error
}

func (m *semesterAdminMock) Create(ctx context.Context, rc authz.RequestContext, req service.CreateSemesterRequest) (*models.Semester, error) {
	m.created = &req
	if m.err != nil {
		return nil, m.err
	}
	return &models.Semester{ID: "sem-1", Code: req.Code, Title: req.Title}, nil
}

func (m *semesterAdminMock) Activate(ctx context.Context, rc authz.RequestContext, code string) (*models.Semester, error) {
	m.code = code
	if m.err != nil {
		return nil, m.err
	}
	return &models.Semester{Code: code, IsActive: true}, nil
}

func (m *semesterAdminMock) Delete(ctx context.Context, rc authz.RequestContext, code string) error {
	m.code = code
	return m.err
}

func (m *semesterAdminMock) ImportTeachers(ctx context.Context, rc authz.RequestContext, code string, file io.Reader) (*service.RosterReport, error) {
	return m.importRoster("teachers", code, file)
}

func (m *semesterAdminMock) ImportStudents(ctx context.Context, rc authz.RequestContext, code string, file io.Reader) (*service.RosterReport, error) {
	return m.importRoster("students", code, file)
}

func (m *semesterAdminMock) importRoster(kind, code string, file io.Reader) (*service.RosterReport, error) {
	m.kind, m.code = kind, code
	content, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}
	m.imported = content
	if m.err != nil {
		return nil, m.err
	}
	return &service.RosterReport{Total: 2, Imported: 1, Errors: []service.RosterRowError{{Row: 3, Message: "unknown major EE"}}}, nil
}

func TestSemesterHandlerCreate(t *testing.T) {
	svc := &semesterAdminMock{}
	h := NewSemesterHandler(svc)
	rc := staffContext()
	c, w := newTestContext(http.MethodPost, "/semesters", `{"code":"2026A","title":"Spring 2026"}`, &rc)

	h.Create(c)

	require.Equal(t, http.StatusCreated, w.Code)
	require.NotNil(t, svc.created)
	assert.Equal(t, "2026A", svc.created.Code)
}

func TestSemesterHandlerDeleteMapsConflict(t *testing.T) {
	svc := &semesterAdminMock{err: appErrors.Clone(appErrors.ErrConflict, "semester still has profiles or topics")}
	h := NewSemesterHandler(svc)
	rc := staffContext()
	c, w := newTestContext(http.MethodDelete, "/semesters/2024B", "", &rc)
	c.Params = gin.Params{{Key: "code", Value: "2024B"}}

	h.Delete(c)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "2024B", svc.code)
}

func TestSemesterHandlerImportTeachers(t *testing.T) {
	svc := &semesterAdminMock{}
	h := NewSemesterHandler(svc)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "teachers.xlsx")
	require.NoError(t, err)
	_, err = part.Write([]byte("PK workbook"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/semesters/2025B/teachers/import", &body)
	c.Request.Header.Set("Content-Type", writer.FormDataContentType())
	c.Params = gin.Params{{Key: "code", Value: "2025B"}}
	c.Set(middleware.ContextRequestKey, staffContext())

	h.ImportTeachers(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "teachers", svc.kind)
	assert.Equal(t, "2025B", svc.code)
	assert.Equal(t, "PK workbook", string(svc.imported))

	var report service.RosterReport
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &report))
	assert.Equal(t, 1, report.Imported)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, 3, report.Errors[0].Row)
}

func TestSemesterHandlerImportWithoutFile(t *testing.T) {
	svc := &semesterAdminMock{}
	h := NewSemesterHandler(svc)
	rc := staffContext()
	c, w := newTestContext(http.MethodPost, "/semesters/2025B/students/import", "", &rc)
	c.Params = gin.Params{{Key: "code", Value: "2025B"}}

	h.ImportStudents(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, svc.kind)
}
