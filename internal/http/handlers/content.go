package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	types "github.com/minischools/academy-backend/internal/domain"
	"github.com/minischools/academy-backend/internal/http/response"
	contentmod "github.com/minischools/academy-backend/internal/modules/content"
	"github.com/minischools/academy-backend/internal/platform/ctxutil"
	"github.com/minischools/academy-backend/internal/platform/dbctx"
	"github.com/minischools/academy-backend/internal/platform/logger"
	"github.com/minischools/academy-backend/internal/services"
)

// LegacyCourse is the persistence wire shape plus the item id.
type LegacyCourse struct {
	ID          uuid.UUID `json:"id"`
	CreatorID   string    `json:"creator_id"`
	CourseTitle string    `json:"course_title"`
	Content     string    `json:"content"`
	Type        string    `json:"type"`
}

type ContentSummary struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type ContentHandler struct {
	log     *logger.Logger
	content services.ContentService
	events  services.ContentNotifier
}

func NewContentHandler(log *logger.Logger, content services.ContentService, events services.ContentNotifier) *ContentHandler {
	return &ContentHandler{log: log.With("handler", "ContentHandler"), content: content, events: events}
}

func dbcOf(c *gin.Context) dbctx.Context {
	return dbctx.Context{Ctx: c.Request.Context()}
}

func creatorOf(c *gin.Context) uuid.UUID {
	return ctxutil.CreatorID(c.Request.Context())
}

func parseID(c *gin.Context, param, code string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, code, err)
		return uuid.Nil, false
	}
	return id, true
}

func legacyView(item *types.ContentItem) LegacyCourse {
	return LegacyCourse{
		ID:          item.ID,
		CreatorID:   item.CreatorID.String(),
		CourseTitle: item.Title,
		Content:     contentmod.SerializeContent(contentmod.EncodeChapters(item.Chapters)),
		Type:        item.Type,
	}
}

func (h *ContentHandler) notify(item *types.ContentItem) {
	if h.events != nil && item != nil {
		h.events.ContentUpdated(item.CreatorID, item.ID, item.Type)
	}
}

// POST /api/addCourse/:type
func (h *ContentHandler) AddCourse(c *gin.Context) {
	var req services.LegacyContent
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	item, err := h.content.AddLegacy(dbcOf(c), creatorOf(c), c.Param("type"), req)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	h.notify(item)
	c.JSON(http.StatusCreated, legacyView(item))
}

// POST /api/updateCourse/:id/:type
func (h *ContentHandler) UpdateCourse(c *gin.Context) {
	id, ok := parseID(c, "id", "invalid_content_id")
	if !ok {
		return
	}
	var req services.LegacyContent
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	item, err := h.content.UpdateLegacy(dbcOf(c), creatorOf(c), id, c.Param("type"), req)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	h.notify(item)
	response.RespondOK(c, legacyView(item))
}

// GET /api/getCourseById/:id/:type
func (h *ContentHandler) GetCourseByID(c *gin.Context) {
	h.getLegacy(c, c.Param("type"))
}

// GET /api/getBookById/:id
func (h *ContentHandler) GetBookByID(c *gin.Context) {
	h.getLegacy(c, types.ContentTypeBook)
}

func (h *ContentHandler) getLegacy(c *gin.Context, contentType string) {
	id, ok := parseID(c, "id", "invalid_content_id")
	if !ok {
		return
	}
	out, err := h.content.GetLegacy(dbcOf(c), creatorOf(c), id, contentType)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, LegacyCourse{
		ID:          id,
		CreatorID:   out.CreatorID,
		CourseTitle: out.CourseTitle,
		Content:     out.Content,
		Type:        contentType,
	})
}

// GET /api/content?type=book|course
func (h *ContentHandler) List(c *gin.Context) {
	items, err := h.content.List(dbcOf(c), creatorOf(c), c.Query("type"))
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	out := make([]ContentSummary, 0, len(items))
	for _, it := range items {
		out = append(out, ContentSummary{ID: it.ID, Title: it.Title, Type: it.Type, CreatedAt: it.CreatedAt, UpdatedAt: it.UpdatedAt})
	}
	response.RespondOK(c, gin.H{"items": out})
}

// DELETE /api/content/:id
func (h *ContentHandler) Delete(c *gin.Context) {
	id, ok := parseID(c, "id", "invalid_content_id")
	if !ok {
		return
	}
	if err := h.content.Delete(dbcOf(c), creatorOf(c), id); err != nil {
		response.RespondAPIError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GET /api/content/:id/chapters
func (h *ContentHandler) Chapters(c *gin.Context) {
	id, ok := parseID(c, "id", "invalid_content_id")
	if !ok {
		return
	}
	item, err := h.content.GetWithChapters(dbcOf(c), creatorOf(c), id)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"item": item})
}

// POST /api/content/:id/chapters/order
func (h *ContentHandler) ReorderChapters(c *gin.Context) {
	id, ok := parseID(c, "id", "invalid_content_id")
	if !ok {
		return
	}
	var req struct {
		ChapterIDs []uuid.UUID `json:"chapter_ids"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	chapters, err := h.content.ReorderChapters(dbcOf(c), creatorOf(c), id, req.ChapterIDs)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	h.notify(&types.ContentItem{ID: id, CreatorID: creatorOf(c)})
	response.RespondOK(c, gin.H{"chapters": chapters})
}

// DELETE /api/chapters/:id
func (h *ContentHandler) DeleteChapter(c *gin.Context) {
	id, ok := parseID(c, "id", "invalid_chapter_id")
	if !ok {
		return
	}
	if err := h.content.DeleteChapter(dbcOf(c), creatorOf(c), id); err != nil {
		response.RespondAPIError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
