package handler

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/cms-lvtn-2025/thesis-api/internal/authz"
	"github.com/cms-lvtn-2025/thesis-api/internal/service"
	appErrors "github.com/cms-lvtn-2025/thesis-api/pkg/errors"
	"github.com/cms-lvtn-2025/thesis-api/pkg/response"
)

type gradeSheetExporter interface {
	GradeSheet(ctx context.Context, rc authz.RequestContext, majorCode string, format service.ExportFormat) (*service.ExportFile, error)
}

// ExportHandler streams grade sheets.
type ExportHandler struct {
	service gradeSheetExporter
}

// NewExportHandler constructs the handler.
func NewExportHandler(svc gradeSheetExporter) *ExportHandler {
	return &ExportHandler{service: svc}
}

// Grades godoc
// @Summary Export the semester grade sheet
// @Tags Exports
// @Produce octet-stream
// @Param format query string false "csv (default), pdf or xlsx"
// @Param major query string false "Major code"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /exports/grades [get]
func (h *ExportHandler) Grades(c *gin.Context) {
	rc, ok := requestContext(c)
	if !ok {
		return
	}
	format := service.ExportFormat(strings.ToLower(c.DefaultQuery("format", string(service.FormatCSV))))
	switch format {
	case service.FormatCSV, service.FormatPDF, service.FormatXLSX:
	default:
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "format must be csv, pdf or xlsx"))
		return
	}

	file, err := h.service.GradeSheet(c.Request.Context(), rc, c.Query("major"), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.File(c, file.Filename, file.ContentType, file.Body)
}
