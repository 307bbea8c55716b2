package handler

import (
	"net/http"

	"taixiu-dealer/internal/core/domain"
	"taixiu-dealer/internal/core/ports"
	"taixiu-dealer/pkg/apperror"
	"taixiu-dealer/pkg/response"

	"github.com/gin-gonic/gin"
)

// EventStream upgrades a request into a player's live event feed.
type EventStream interface {
	ServeWS(w http.ResponseWriter, r *http.Request, username string, initial ...domain.RoundEvent)
}

// StreamHandler serves GET /api/v1/ws.
type StreamHandler struct {
	gameSvc ports.GameService
	stream  EventStream
}

// NewStreamHandler creates a new StreamHandler.
func NewStreamHandler(gameSvc ports.GameService, stream EventStream) *StreamHandler {
	return &StreamHandler{gameSvc: gameSvc, stream: stream}
}

// Stream upgrades the connection. The first event carries the current table
// so a reconnecting client does not have to poll.
func (h *StreamHandler) Stream(c *gin.Context) {
	username, ok := playerName(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	snap, err := h.gameSvc.Table(c.Request.Context(), username)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.stream.ServeWS(c.Writer, c.Request, username,
		domain.NewRoundEvent(domain.EventStateChanged, username, snap))
}
