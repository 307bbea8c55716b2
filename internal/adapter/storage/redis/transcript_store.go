package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"taixiu-dealer/internal/core/domain"

	goredis "github.com/redis/go-redis/v9"
)

const defaultTranscriptCap = 100

// TranscriptStore implements ports.TranscriptStore as a capped Redis list, oldest at the head.
type TranscriptStore struct {
	client *goredis.Client
	prefix string
	limit  int
}

// NewTranscriptStore creates a transcript store keeping the last limit lines per player.
func NewTranscriptStore(client *goredis.Client, limit int) *TranscriptStore {
	if limit <= 0 {
		limit = defaultTranscriptCap
	}
	return &TranscriptStore{
		client: client,
		prefix: "chat:",
		limit:  limit,
	}
}

// Append adds msg at the tail and drops the oldest lines past the cap.
func (s *TranscriptStore) Append(ctx context.Context, username string, msg domain.ChatMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal chat message: %w", err)
	}

	key := s.prefix + username
	_, err = s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.RPush(ctx, key, data)
		pipe.LTrim(ctx, key, int64(-s.limit), -1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis transcript append: %w", err)
	}
	return nil
}

// List returns the transcript, oldest first.
func (s *TranscriptStore) List(ctx context.Context, username string) ([]domain.ChatMessage, error) {
	raw, err := s.client.LRange(ctx, s.prefix+username, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis transcript list: %w", err)
	}

	msgs := make([]domain.ChatMessage, 0, len(raw))
	for _, item := range raw {
		var m domain.ChatMessage
		if err := json.Unmarshal([]byte(item), &m); err != nil {
			return nil, fmt.Errorf("unmarshal chat message: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

// Reset clears the transcript.
func (s *TranscriptStore) Reset(ctx context.Context, username string) error {
	if err := s.client.Del(ctx, s.prefix+username).Err(); err != nil {
		return fmt.Errorf("redis transcript reset: %w", err)
	}
	return nil
}
