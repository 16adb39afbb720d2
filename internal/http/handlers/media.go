package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	types "github.com/minischools/academy-backend/internal/domain"
	"github.com/minischools/academy-backend/internal/http/response"
	contentmod "github.com/minischools/academy-backend/internal/modules/content"
	"github.com/minischools/academy-backend/internal/services"
)

// ChapterView pairs the structured chapter with its stored HTML so clients
// holding the legacy array can splice it in place.
type ChapterView struct {
	Chapter *types.Chapter `json:"chapter"`
	HTML    string         `json:"html"`
}

func chapterView(ch *types.Chapter) ChapterView {
	return ChapterView{Chapter: ch, HTML: contentmod.EncodeChapter(ch)}
}

type MediaHandler struct {
	cover     services.CoverService
	narration services.NarrationService
}

func NewMediaHandler(cover services.CoverService, narration services.NarrationService) *MediaHandler {
	return &MediaHandler{cover: cover, narration: narration}
}

// POST /api/content/:id/cover
func (h *MediaHandler) GenerateCover(c *gin.Context) {
	id, ok := envelopeID(c, "id", "invalid_content_id")
	if !ok {
		return
	}
	var req struct {
		Prompt string `json:"prompt"`
	}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Fail(c, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}
	}
	ch, err := h.cover.Generate(dbcOf(c), creatorOf(c), id, req.Prompt)
	if err != nil {
		response.FailAPIError(c, err)
		return
	}
	response.Success(c, http.StatusOK, chapterView(ch))
}

// PUT /api/content/:id/cover
func (h *MediaHandler) SetCover(c *gin.Context) {
	id, ok := envelopeID(c, "id", "invalid_content_id")
	if !ok {
		return
	}
	var req struct {
		ImageURL string `json:"image_url" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	ch, err := h.cover.Set(dbcOf(c), creatorOf(c), id, req.ImageURL)
	if err != nil {
		response.FailAPIError(c, err)
		return
	}
	response.Success(c, http.StatusOK, chapterView(ch))
}

// POST /api/chapters/:id/narration
func (h *MediaHandler) Narrate(c *gin.Context) {
	id, ok := envelopeID(c, "id", "invalid_chapter_id")
	if !ok {
		return
	}
	var req struct {
		Voice string `json:"voice"`
	}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Fail(c, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}
	}
	ch, err := h.narration.Narrate(dbcOf(c), creatorOf(c), id, req.Voice)
	if err != nil {
		response.FailAPIError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{
		"chapter_id":    ch.ID,
		"narration_url": ch.NarrationURL,
	})
}
