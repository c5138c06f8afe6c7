package handler

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
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

type attachmentServiceMock struct {
	upload   *service.AttachmentUpload
	content  []byte
	download *service.AttachmentDownload
	err      error
}

func (m *attachmentServiceMock) Upload(ctx context.Context, rc authz.RequestContext, upload service.AttachmentUpload) (*models.Attachment, error) {
	m.upload = &upload
	m.content, _ = io.ReadAll(upload.Content)
	if m.err != nil {
		return nil, m.err
	}
	return &models.Attachment{ID: "att-1", FileName: upload.Filename, OwnerID: rc.Principal.ProfileID}, nil
}

func (m *attachmentServiceMock) SignedURL(ctx context.Context, rc authz.RequestContext, id string) (*service.SignedAttachmentURL, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &service.SignedAttachmentURL{URL: "/api/v1/attachments/download?token=t", Token: "t"}, nil
}

func (m *attachmentServiceMock) Open(ctx context.Context, token string) (*service.AttachmentDownload, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.download, nil
}

func TestAttachmentHandlerUpload(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &attachmentServiceMock{}
	h := NewAttachmentHandler(svc)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	partHeader := textproto.MIMEHeader{}
	partHeader.Set("Content-Disposition", `form-data; name="file"; filename="report.pdf"`)
	partHeader.Set("Content-Type", "application/pdf")
	part, err := writer.CreatePart(partHeader)
	require.NoError(t, err)
	_, err = part.Write([]byte("%PDF-1.4 midterm"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/attachments", &body)
	c.Request.Header.Set("Content-Type", writer.FormDataContentType())
	c.Set(middleware.ContextRequestKey, staffContext())

	h.Upload(c)

	require.Equal(t, http.StatusCreated, w.Code)
	require.NotNil(t, svc.upload)
	assert.Equal(t, "report.pdf", svc.upload.Filename)
	assert.Equal(t, "application/pdf", svc.upload.MimeType)
	assert.Equal(t, "%PDF-1.4 midterm", string(svc.content))
}

func TestAttachmentHandlerUploadMissingFile(t *testing.T) {
	rc := staffContext()
	c, w := newTestContext(http.MethodPost, "/attachments", `{}`, &rc)

	NewAttachmentHandler(&attachmentServiceMock{}).Upload(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAttachmentHandlerDownload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.pdf")
	require.NoError(t, os.WriteFile(path, []byte("file-body"), 0o600))
	file, err := os.Open(path)
	require.NoError(t, err)

	svc := &attachmentServiceMock{download: &service.AttachmentDownload{File: file, Filename: "report.pdf", MimeType: "application/pdf", Size: 9}}
	c, w := newTestContext(http.MethodGet, "/attachments/download?token=abc", "", nil)

	NewAttachmentHandler(svc).Download(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "file-body", w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Disposition"), "report.pdf")
}

func TestAttachmentHandlerDownloadBadToken(t *testing.T) {
	svc := &attachmentServiceMock{err: appErrors.Clone(appErrors.ErrUnauthorized, "invalid download token")}
	c, w := newTestContext(http.MethodGet, "/attachments/download?token=bad", "", nil)

	NewAttachmentHandler(svc).Download(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)

	c, w = newTestContext(http.MethodGet, "/attachments/download", "", nil)
	NewAttachmentHandler(svc).Download(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

type gradeSheetMock struct {
	major  string
	format service.ExportFormat
}

func (m *gradeSheetMock) GradeSheet(ctx context.Context, rc authz.RequestContext, majorCode string, format service.ExportFormat) (*service.ExportFile, error) {
	m.major, m.format = majorCode, format
	return &service.ExportFile{Filename: "grades.xlsx", ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", Body: []byte("xlsx")}, nil
}

func TestExportHandlerGrades(t *testing.T) {
	svc := &gradeSheetMock{}
	rc := staffContext()
	c, w := newTestContext(http.MethodGet, "/exports/grades?format=XLSX&major=SE", "", &rc)

	NewExportHandler(svc).Grades(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, service.FormatXLSX, svc.format)
	assert.Equal(t, "SE", svc.major)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "grades.xlsx")
}

func TestExportHandlerRejectsUnknownFormat(t *testing.T) {
	svc := &gradeSheetMock{}
	rc := staffContext()
	c, w := newTestContext(http.MethodGet, "/exports/grades?format=docx", "", &rc)

	NewExportHandler(svc).Grades(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, svc.format)
}
