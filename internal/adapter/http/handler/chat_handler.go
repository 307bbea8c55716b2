package handler

import (
	"taixiu-dealer/internal/adapter/http/dto"
	"taixiu-dealer/internal/core/domain"
	"taixiu-dealer/internal/core/ports"
	"taixiu-dealer/pkg/apperror"
	"taixiu-dealer/pkg/response"

	"github.com/gin-gonic/gin"
)

// ChatHandler serves the dealer transcript.
type ChatHandler struct {
	chatSvc ports.ChatService
}

// NewChatHandler creates a new ChatHandler.
func NewChatHandler(chatSvc ports.ChatService) *ChatHandler {
	return &ChatHandler{chatSvc: chatSvc}
}

// Transcript handles GET /api/v1/chat.
func (h *ChatHandler) Transcript(c *gin.Context) {
	username, ok := playerName(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	msgs, err := h.chatSvc.Transcript(c.Request.Context(), username)
	if err != nil {
		response.Error(c, err)
		return
	}
	if msgs == nil {
		msgs = []domain.ChatMessage{}
	}
	response.OK(c, msgs)
}

// Say handles POST /api/v1/chat.
func (h *ChatHandler) Say(c *gin.Context) {
	username, ok := playerName(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.ChatRequest
	if !bindJSON(c, &req) {
		return
	}

	msg, err := h.chatSvc.Say(c.Request.Context(), username, req.Content)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, msg)
}
