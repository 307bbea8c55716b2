package commentary

import (
	"context"
	"fmt"
	"strings"

	"taixiu-dealer/internal/core/ports"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rs/zerolog"
)

// AnthropicConfig configures the Messages API client.
type AnthropicConfig struct {
	APIKey      string
	Model       string
	MaxTokens   int64
	Temperature float64
	BaseURL     string // optional
}

// AnthropicCommentator asks a Claude model for the dealer's remark.
type AnthropicCommentator struct {
	client anthropic.Client
	cfg    AnthropicConfig
	log    zerolog.Logger
}

// NewAnthropicCommentator creates a commentator backed by the Anthropic Messages API.
func NewAnthropicCommentator(cfg AnthropicConfig, log zerolog.Logger) *AnthropicCommentator {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(1),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &AnthropicCommentator{
		client: anthropic.NewClient(opts...),
		cfg:    cfg,
		log:    log,
	}
}

// Comment implements ports.Commentator. An empty reply is returned as-is.
func (c *AnthropicCommentator) Comment(ctx context.Context, req ports.CommentaryRequest) (string, error) {
	msg, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.cfg.Model),
		MaxTokens: c.cfg.MaxTokens,
		System: []anthropic.TextBlockParam{
			{Text: dealerPersona},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(buildPrompt(req))),
		},
		Temperature: anthropic.Float(c.cfg.Temperature),
	})
	if err != nil {
		return "", fmt.Errorf("anthropic messages: %w", err)
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}

	c.log.Debug().
		Str("model", string(msg.Model)).
		Int64("input_tokens", msg.Usage.InputTokens).
		Int64("output_tokens", msg.Usage.OutputTokens).
		Msg("dealer commentary")

	return strings.TrimSpace(b.String()), nil
}
