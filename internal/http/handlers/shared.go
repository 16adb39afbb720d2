package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/minischools/academy-backend/internal/http/response"
	"github.com/minischools/academy-backend/internal/services"
)

// sharedCSP lets the inline reader script and styles run and nothing else.
const sharedCSP = "default-src 'none'; img-src https: http: data:; style-src 'unsafe-inline'; script-src 'unsafe-inline'; base-uri 'none'; form-action 'none'"

type SharedHandler struct {
	content services.ContentService
	export  services.ExportService
}

func NewSharedHandler(content services.ContentService, export services.ExportService) *SharedHandler {
	return &SharedHandler{content: content, export: export}
}

// GET /shared/:type/:id
func (h *SharedHandler) Get(c *gin.Context) {
	id, ok := parseID(c, "id", "invalid_content_id")
	if !ok {
		return
	}
	out, err := h.content.GetShared(dbcOf(c), c.Param("type"), id)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, out)
}

// GET /shared/:type/:id/html
func (h *SharedHandler) HTML(c *gin.Context) {
	id, ok := parseID(c, "id", "invalid_content_id")
	if !ok {
		return
	}
	page, err := h.export.SharedHTML(dbcOf(c), c.Param("type"), id)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	c.Header("Content-Security-Policy", sharedCSP)
	c.Header("X-Content-Type-Options", "nosniff")
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(page))
}
