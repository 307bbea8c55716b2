package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"taixiu-dealer/internal/core/domain"
	"taixiu-dealer/internal/core/ports"
	"taixiu-dealer/pkg/apperror"

	"github.com/rs/zerolog"
)

// MaxChatLength caps a single player line, in runes.
const MaxChatLength = 500

// ChatServiceImpl implements ports.ChatService.
type ChatServiceImpl struct {
	transcripts ports.TranscriptStore
	log         zerolog.Logger
}

// NewChatService creates a new ChatServiceImpl.
func NewChatService(transcripts ports.TranscriptStore, log zerolog.Logger) *ChatServiceImpl {
	return &ChatServiceImpl{transcripts: transcripts, log: log}
}

// Transcript returns the player's transcript, oldest first.
func (s *ChatServiceImpl) Transcript(ctx context.Context, username string) ([]domain.ChatMessage, error) {
	msgs, err := s.transcripts.List(ctx, username)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list transcript: %w", err))
	}
	return msgs, nil
}

// Say appends a player line. The dealer only speaks after rounds, so nothing answers it.
func (s *ChatServiceImpl) Say(ctx context.Context, username, content string) (*domain.ChatMessage, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperror.InvalidInput("message must not be empty")
	}
	if utf8.RuneCountInString(content) > MaxChatLength {
		return nil, apperror.InvalidInput(fmt.Sprintf("message must be at most %d characters", MaxChatLength))
	}

	msg := domain.ChatMessage{
		Role:      domain.ChatRoleUser,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.transcripts.Append(ctx, username, msg); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("append transcript: %w", err))
	}

	s.log.Debug().Str("username", username).Int("length", len(content)).Msg("player message")
	return &msg, nil
}
