package service

import (
	"context"
	"strings"
	"time"

	"taixiu-dealer/internal/core/ports"

	"github.com/rs/zerolog"
)

const (
	// FallbackEmptyCommentary replaces a blank remark.
	FallbackEmptyCommentary = "Chúc mừng bạn! Bạn có muốn thử vận may ở ván tiếp theo không?"
	// FallbackErrorCommentary replaces a failed remark.
	FallbackErrorCommentary = "Một ván đấu kịch tính! Hãy chuẩn bị cho ván tiếp theo nhé."
)

// CommentaryService asks a Commentator for a remark and never fails.
type CommentaryService struct {
	commentator ports.Commentator
	timeout     time.Duration
	metrics     ports.GameMetrics
	log         zerolog.Logger
}

// NewCommentaryService wraps commentator. A zero timeout leaves the caller's deadline in charge.
func NewCommentaryService(commentator ports.Commentator, timeout time.Duration, metrics ports.GameMetrics, log zerolog.Logger) *CommentaryService {
	if metrics == nil {
		metrics = NopMetrics{}
	}
	return &CommentaryService{
		commentator: commentator,
		timeout:     timeout,
		metrics:     metrics,
		log:         log,
	}
}

// Comment returns the dealer's remark on a settled round, or a fallback line.
func (s *CommentaryService) Comment(ctx context.Context, req ports.CommentaryRequest) string {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	text, err := s.commentator.Comment(ctx, req)
	if err != nil {
		s.log.Warn().Err(err).Str("round_id", req.Result.ID.String()).Msg("commentary failed")
		s.metrics.CommentaryFallback("error")
		return FallbackErrorCommentary
	}

	text = strings.TrimSpace(text)
	if text == "" {
		s.metrics.CommentaryFallback("empty")
		return FallbackEmptyCommentary
	}
	return text
}
