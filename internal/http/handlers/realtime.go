package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/minischools/academy-backend/internal/http/response"
	"github.com/minischools/academy-backend/internal/platform/logger"
	"github.com/minischools/academy-backend/internal/realtime"
)

type RealtimeHandler struct {
	log *logger.Logger
	hub *realtime.SSEHub
}

func NewRealtimeHandler(log *logger.Logger, hub *realtime.SSEHub) *RealtimeHandler {
	return &RealtimeHandler{log: log.With("handler", "RealtimeHandler"), hub: hub}
}

// GET /api/sse/stream
//
// Every stream joins the creator channel, so all of a creator's tabs see
// their generation progress.
func (h *RealtimeHandler) SSEStream(c *gin.Context) {
	creatorID := creatorOf(c)
	if creatorID == uuid.Nil {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", errNotAuthenticated)
		return
	}
	client := h.hub.NewSSEClient(creatorID)
	h.hub.AddChannel(client, realtime.CreatorChannel(creatorID))
	h.log.Debug("SSE stream open", "client_id", client.ID, "creator_id", creatorID)

	h.hub.ServeHTTP(c.Writer, c.Request, client)

	h.hub.CloseClient(client)
	h.log.Debug("SSE stream closed", "client_id", client.ID)
}
