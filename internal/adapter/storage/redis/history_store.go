package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"taixiu-dealer/internal/core/domain"

	goredis "github.com/redis/go-redis/v9"
)

// HistoryStore implements ports.HistoryStore as a capped Redis list, newest at the head.
type HistoryStore struct {
	client *goredis.Client
	prefix string
	limit  int
}

// NewHistoryStore creates a history store retaining limit results per player.
// A non-positive limit uses domain.DefaultHistoryCap.
func NewHistoryStore(client *goredis.Client, limit int) *HistoryStore {
	if limit <= 0 {
		limit = domain.DefaultHistoryCap
	}
	return &HistoryStore{
		client: client,
		prefix: "history:",
		limit:  limit,
	}
}

// Record prepends result and trims the list in one transaction.
func (s *HistoryStore) Record(ctx context.Context, username string, result domain.RoundResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal round result: %w", err)
	}

	key := s.prefix + username
	_, err = s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.LPush(ctx, key, data)
		pipe.LTrim(ctx, key, 0, int64(s.limit-1))
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis history record: %w", err)
	}
	return nil
}

// List returns the retained results, newest first.
func (s *HistoryStore) List(ctx context.Context, username string) (domain.History, error) {
	raw, err := s.client.LRange(ctx, s.prefix+username, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis history list: %w", err)
	}

	history := make(domain.History, 0, len(raw))
	for _, item := range raw {
		var r domain.RoundResult
		if err := json.Unmarshal([]byte(item), &r); err != nil {
			return nil, fmt.Errorf("unmarshal round result: %w", err)
		}
		history = append(history, r)
	}
	return history, nil
}
