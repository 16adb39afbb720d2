package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/minischools/academy-backend/internal/http/response"
	"github.com/minischools/academy-backend/internal/modules/generation"
	"github.com/minischools/academy-backend/internal/services"
)

type GenerationHandler struct {
	jobs services.GenerationService
}

func NewGenerationHandler(jobs services.GenerationService) *GenerationHandler {
	return &GenerationHandler{jobs: jobs}
}

func envelopeID(c *gin.Context, param, code string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, code, err.Error())
		return uuid.Nil, false
	}
	return id, true
}

// POST /api/generation/jobs
func (h *GenerationHandler) Create(c *gin.Context) {
	var req generation.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	job, err := h.jobs.Enqueue(dbcOf(c), creatorOf(c), req)
	if err != nil {
		response.FailAPIError(c, err)
		return
	}
	response.Success(c, http.StatusAccepted, job)
}

// GET /api/generation/jobs/:id
func (h *GenerationHandler) Get(c *gin.Context) {
	id, ok := envelopeID(c, "id", "invalid_job_id")
	if !ok {
		return
	}
	job, err := h.jobs.Get(dbcOf(c), creatorOf(c), id)
	if err != nil {
		response.FailAPIError(c, err)
		return
	}
	response.Success(c, http.StatusOK, job)
}

// POST /api/generation/jobs/:id/cancel
func (h *GenerationHandler) Cancel(c *gin.Context) {
	id, ok := envelopeID(c, "id", "invalid_job_id")
	if !ok {
		return
	}
	job, err := h.jobs.Cancel(dbcOf(c), creatorOf(c), id)
	if err != nil {
		response.FailAPIError(c, err)
		return
	}
	response.Success(c, http.StatusOK, job)
}

// POST /api/generation/jobs/:id/save
func (h *GenerationHandler) Save(c *gin.Context) {
	id, ok := envelopeID(c, "id", "invalid_job_id")
	if !ok {
		return
	}
	var req services.SaveGenerationInput
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Fail(c, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}
	}
	item, err := h.jobs.SaveAsContent(dbcOf(c), creatorOf(c), id, req)
	if err != nil {
		response.FailAPIError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, legacyView(item))
}
