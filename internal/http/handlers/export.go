package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/minischools/academy-backend/internal/http/response"
	"github.com/minischools/academy-backend/internal/services"
)

type ExportHandler struct {
	export services.ExportService
}

func NewExportHandler(export services.ExportService) *ExportHandler {
	return &ExportHandler{export: export}
}

// GET /api/content/:id/export/:format
func (h *ExportHandler) Download(c *gin.Context) {
	id, ok := parseID(c, "id", "invalid_content_id")
	if !ok {
		return
	}
	file, err := h.export.Export(dbcOf(c), creatorOf(c), id, c.Param("format"))
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Filename))
	c.Data(http.StatusOK, file.ContentType, file.Data)
}

// POST /api/content/:id/export/:format/store
func (h *ExportHandler) Store(c *gin.Context) {
	id, ok := envelopeID(c, "id", "invalid_content_id")
	if !ok {
		return
	}
	url, err := h.export.Store(dbcOf(c), creatorOf(c), id, c.Param("format"))
	if err != nil {
		response.FailAPIError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"url": url})
}
