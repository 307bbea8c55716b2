package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"taixiu-dealer/internal/adapter/http/dto"
	"taixiu-dealer/internal/core/domain"
	"taixiu-dealer/internal/core/ports"
	"taixiu-dealer/pkg/apperror"
	"taixiu-dealer/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const (
	// HeaderIdempotencyKey lets a client retry a roll without committing twice.
	HeaderIdempotencyKey = "Idempotency-Key"
	// HeaderIdempotentReplay marks a response served from the idempotency cache.
	HeaderIdempotentReplay = "Idempotent-Replayed"

	idempotencyTTL          = 10 * time.Minute
	idempotencyWriteTimeout = 2 * time.Second
	maxIdempotencyKey       = 128
)

// cachedRoll is what the idempotency cache stores for a roll.
type cachedRoll struct {
	Status int              `json:"status"`
	Body   dto.RollResponse `json:"body"`
}

// TableHandler handles the round engine endpoints.
type TableHandler struct {
	gameSvc ports.GameService
	idem    ports.IdempotencyCache // nil = Idempotency-Key ignored
	log     zerolog.Logger
}

// NewTableHandler creates a new TableHandler.
func NewTableHandler(gameSvc ports.GameService, idem ports.IdempotencyCache, log zerolog.Logger) *TableHandler {
	return &TableHandler{gameSvc: gameSvc, idem: idem, log: log}
}

// Table handles GET /api/v1/table.
func (h *TableHandler) Table(c *gin.Context) {
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
	response.OK(c, snap)
}

// SelectSide handles PUT /api/v1/table/side.
func (h *TableHandler) SelectSide(c *gin.Context) {
	username, ok := playerName(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.SideRequest
	if !bindJSON(c, &req) {
		return
	}
	side, err := domain.ParseSide(req.Side)
	if err != nil {
		response.Error(c, apperror.InvalidInput(err.Error()))
		return
	}

	snap, err := h.gameSvc.SelectSide(c.Request.Context(), username, side)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, snap)
}

// SelectStake handles PUT /api/v1/table/stake.
func (h *TableHandler) SelectStake(c *gin.Context) {
	username, ok := playerName(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.StakeRequest
	if !bindJSON(c, &req) {
		return
	}

	snap, err := h.gameSvc.SelectStake(c.Request.Context(), username, req.Amount)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, snap)
}

// Roll handles POST /api/v1/table/roll.
//
// The stake is debited before the response is written. Without ?wait=true the
// handler answers 202 while the dice are still rolling and the outcome arrives
// over the WebSocket; with it, the handler blocks until settlement and answers 200.
func (h *TableHandler) Roll(c *gin.Context) {
	username, ok := playerName(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}
	ctx := c.Request.Context()

	wait, _ := strconv.ParseBool(c.DefaultQuery("wait", "false"))

	cacheKey := ""
	if key := strings.TrimSpace(c.GetHeader(HeaderIdempotencyKey)); key != "" && h.idem != nil {
		if len(key) > maxIdempotencyKey {
			response.Error(c, apperror.InvalidInput("Idempotency-Key is too long"))
			return
		}
		cacheKey = fmt.Sprintf("%s:%s", username, key)

		if h.replay(c, cacheKey) {
			return
		}

		claimed, err := h.idem.Claim(ctx, cacheKey, idempotencyTTL)
		switch {
		case err != nil:
			h.log.Warn().Err(err).Str("username", username).Msg("idempotency claim failed, rolling without it")
			cacheKey = ""
		case !claimed:
			// Another request with this key is committing right now.
			response.Error(c, apperror.ErrRoundInProgress())
			return
		}
	}

	snap, settled, err := h.gameSvc.Commit(ctx, username)
	if err != nil {
		if cacheKey != "" {
			relCtx, cancel := detached(c)
			relErr := h.idem.Release(relCtx, cacheKey)
			cancel()
			if relErr != nil {
				h.log.Warn().Err(relErr).Str("username", username).Msg("failed to release idempotency key")
			}
		}
		response.Error(c, err)
		return
	}

	out := cachedRoll{Status: http.StatusAccepted, Body: dto.RollResponse{Table: snap}}
	if wait {
		select {
		case s, ok := <-settled:
			if ok {
				out.Status = http.StatusOK
				out.Body.Settlement = &s
				if after, err := h.gameSvc.Table(ctx, username); err == nil {
					out.Body.Table = after
				}
			}
		case <-ctx.Done():
		}
	}

	if cacheKey != "" {
		h.remember(c, cacheKey, out)
	}
	h.write(c, out)
}

// replay writes a stored response for cacheKey. It returns false when there is none.
func (h *TableHandler) replay(c *gin.Context, cacheKey string) bool {
	raw, err := h.idem.Get(c.Request.Context(), cacheKey)
	if err != nil {
		h.log.Warn().Err(err).Msg("idempotency lookup failed")
		return false
	}
	if raw == nil {
		return false
	}

	var stored cachedRoll
	if err := json.Unmarshal(raw, &stored); err != nil {
		h.log.Warn().Err(err).Msg("discarding unreadable idempotency entry")
		return false
	}

	c.Header(HeaderIdempotentReplay, "true")
	h.write(c, stored)
	return true
}

func (h *TableHandler) remember(c *gin.Context, cacheKey string, out cachedRoll) {
	raw, err := json.Marshal(out)
	if err != nil {
		return
	}
	// The client may have hung up while waiting; the key must still resolve.
	ctx, cancel := detached(c)
	defer cancel()
	if err := h.idem.Set(ctx, cacheKey, raw, idempotencyTTL); err != nil {
		h.log.Warn().Err(err).Msg("failed to store idempotent roll response")
	}
}

// detached keeps the request's values but not its cancellation.
func detached(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(c.Request.Context()), idempotencyWriteTimeout)
}

func (h *TableHandler) write(c *gin.Context, out cachedRoll) {
	if out.Status == http.StatusOK {
		response.OK(c, out.Body)
		return
	}
	response.Accepted(c, out.Body)
}

// TopUp handles POST /api/v1/wallet/topup.
func (h *TableHandler) TopUp(c *gin.Context) {
	username, ok := playerName(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	snap, err := h.gameSvc.TopUp(c.Request.Context(), username)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, snap)
}
