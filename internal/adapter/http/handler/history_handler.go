package handler

import (
	"taixiu-dealer/internal/adapter/http/dto"
	"taixiu-dealer/internal/core/domain"
	"taixiu-dealer/internal/core/ports"
	"taixiu-dealer/pkg/apperror"
	"taixiu-dealer/pkg/response"

	"github.com/gin-gonic/gin"
)

// HistoryHandler serves round history and period statistics.
type HistoryHandler struct {
	gameSvc ports.GameService
}

// NewHistoryHandler creates a new HistoryHandler.
func NewHistoryHandler(gameSvc ports.GameService) *HistoryHandler {
	return &HistoryHandler{gameSvc: gameSvc}
}

// History handles GET /api/v1/history.
func (h *HistoryHandler) History(c *gin.Context) {
	username, ok := playerName(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	history, err := h.gameSvc.History(c.Request.Context(), username)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := []domain.RoundResult(history)
	if items == nil {
		items = []domain.RoundResult{}
	}
	tally := history.Tally()
	response.OK(c, dto.HistoryResponse{
		Items: items,
		Big:   tally.Big,
		Small: tally.Small,
	})
}

// Stats handles GET /api/v1/stats.
func (h *HistoryHandler) Stats(c *gin.Context) {
	username, ok := playerName(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	period := c.DefaultQuery("period", "all")
	stats, err := h.gameSvc.Stats(c.Request.Context(), username, period)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.NewStatsResponse(period, stats))
}
