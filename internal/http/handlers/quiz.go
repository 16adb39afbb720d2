package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/minischools/academy-backend/internal/http/response"
	"github.com/minischools/academy-backend/internal/services"
)

type QuizHandler struct {
	quiz services.QuizService
}

func NewQuizHandler(quiz services.QuizService) *QuizHandler {
	return &QuizHandler{quiz: quiz}
}

// POST /api/chapters/:id/quiz
func (h *QuizHandler) Generate(c *gin.Context) {
	id, ok := envelopeID(c, "id", "invalid_chapter_id")
	if !ok {
		return
	}
	var req struct {
		Count int `json:"count"`
	}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Fail(c, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}
	}
	ch, err := h.quiz.Generate(dbcOf(c), creatorOf(c), id, req.Count)
	if err != nil {
		response.FailAPIError(c, err)
		return
	}
	response.Success(c, http.StatusOK, chapterView(ch))
}

// POST /api/chapters/:id/quiz/questions/:index/regenerate
func (h *QuizHandler) Regenerate(c *gin.Context) {
	id, ok := envelopeID(c, "id", "invalid_chapter_id")
	if !ok {
		return
	}
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, "invalid_question_index", err.Error())
		return
	}
	ch, err := h.quiz.RegenerateQuestion(dbcOf(c), creatorOf(c), id, index)
	if err != nil {
		response.FailAPIError(c, err)
		return
	}
	response.Success(c, http.StatusOK, chapterView(ch))
}

// DELETE /api/chapters/:id/quiz
func (h *QuizHandler) Remove(c *gin.Context) {
	id, ok := envelopeID(c, "id", "invalid_chapter_id")
	if !ok {
		return
	}
	ch, err := h.quiz.Remove(dbcOf(c), creatorOf(c), id)
	if err != nil {
		response.FailAPIError(c, err)
		return
	}
	response.Success(c, http.StatusOK, chapterView(ch))
}
