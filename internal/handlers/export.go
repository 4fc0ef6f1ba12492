package handlers

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/alimgiray/opendev/internal/services"
	"github.com/gin-gonic/gin"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type ExportHandler struct {
	exportService *services.ExportService
}

func NewExportHandler(exportService *services.ExportService) *ExportHandler {
	return &ExportHandler{
		exportService: exportService,
	}
}

// Developers handles GET /ecosystems/:id/developers/export.xlsx
func (h *ExportHandler) Developers(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		badRequest(c, err)
		return
	}
	filter, err := developerFilterFromQuery(c)
	if err != nil {
		badRequest(c, err)
		return
	}

	var buf bytes.Buffer
	if err := h.exportService.WriteDevelopers(&buf, id, filter); err != nil {
		internalError(c, err)
		return
	}
	sendWorkbook(c, fmt.Sprintf("ecosystem-%d-developers.xlsx", id), &buf)
}

// Repos handles GET /ecosystems/:id/repos/export.xlsx
func (h *ExportHandler) Repos(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		badRequest(c, err)
		return
	}
	filter, err := repoFilterFromQuery(c)
	if err != nil {
		badRequest(c, err)
		return
	}

	var buf bytes.Buffer
	if err := h.exportService.WriteRepos(&buf, id, filter); err != nil {
		internalError(c, err)
		return
	}
	sendWorkbook(c, fmt.Sprintf("ecosystem-%d-repos.xlsx", id), &buf)
}

func sendWorkbook(c *gin.Context, filename string, buf *bytes.Buffer) {
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}
