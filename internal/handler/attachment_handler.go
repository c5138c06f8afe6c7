package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cms-lvtn-2025/thesis-api/internal/authz"
	"github.com/cms-lvtn-2025/thesis-api/internal/models"
	"github.com/cms-lvtn-2025/thesis-api/internal/service"
	appErrors "github.com/cms-lvtn-2025/thesis-api/pkg/errors"
	"github.com/cms-lvtn-2025/thesis-api/pkg/response"
)

type attachmentService interface {
	Upload(ctx context.Context, rc authz.RequestContext, upload service.AttachmentUpload) (*models.Attachment, error)
	SignedURL(ctx context.Context, rc authz.RequestContext, id string) (*service.SignedAttachmentURL, error)
	Open(ctx context.Context, token string) (*service.AttachmentDownload, error)
}

// AttachmentHandler accepts report uploads and serves signed downloads.
type AttachmentHandler struct {
	service attachmentService
}

// NewAttachmentHandler constructs the handler.
func NewAttachmentHandler(svc attachmentService) *AttachmentHandler {
	return &AttachmentHandler{service: svc}
}

// Upload godoc
// @Summary Upload a report file
// @Tags Attachments
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Report (pdf, doc, docx or zip)"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /attachments [post]
func (h *AttachmentHandler) Upload(c *gin.Context) {
	rc, ok := requestContext(c)
	if !ok {
		return
	}
	header, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "file is required"))
		return
	}
	file, err := header.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unreadable upload"))
		return
	}
	defer file.Close()

	attachment, err := h.service.Upload(c.Request.Context(), rc, service.AttachmentUpload{
		Filename: header.Filename,
		Size:     header.Size,
		MimeType: header.Header.Get("Content-Type"),
		Content:  file,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, attachment)
}

// URL godoc
// @Summary Issue a signed download link
// @Tags Attachments
// @Produce json
// @Param id path string true "Attachment ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /attachments/{id}/url [get]
func (h *AttachmentHandler) URL(c *gin.Context) {
	rc, ok := requestContext(c)
	if !ok {
		return
	}
	signed, err := h.service.SignedURL(c.Request.Context(), rc, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, signed, nil)
}

// Download godoc
// @Summary Download a file with a signed token
// @Tags Attachments
// @Produce octet-stream
// @Param token query string true "Signed token"
// @Success 200 {file} file
// @Failure 401 {object} response.Envelope
// @Router /attachments/download [get]
func (h *AttachmentHandler) Download(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	download, err := h.service.Open(c.Request.Context(), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer download.File.Close()

	c.DataFromReader(http.StatusOK, download.Size, download.MimeType, download.File, map[string]string{
		"Content-Disposition": fmt.Sprintf("attachment; filename=%q", download.Filename),
		"Cache-Control":       "private, no-store",
	})
}
