package ports

//go:generate mockgen -source=stores.go -destination=mocks/mock_stores.go -package=mocks

import (
	"context"
	"time"

	"taixiu-dealer/internal/core/domain"
)

// SessionStore holds at most one live session per username.
type SessionStore interface {
	// Start stores the session and ends any previous session of the same user.
	Start(ctx context.Context, session *domain.Session, ttl time.Duration) error
	// Current returns nil, nil when the session is absent or expired.
	Current(ctx context.Context, sessionID string) (*domain.Session, error)
	// RefreshBalance updates the balance of the user's live session, if any.
	RefreshBalance(ctx context.Context, username string, balance int64) error
	End(ctx context.Context, sessionID string) error
}

// HistoryStore persists the capped newest-first round history of each player.
type HistoryStore interface {
	Record(ctx context.Context, username string, result domain.RoundResult) error
	List(ctx context.Context, username string) (domain.History, error)
}

// TranscriptStore persists the dealer chat transcript of each player, oldest first.
type TranscriptStore interface {
	Append(ctx context.Context, username string, msg domain.ChatMessage) error
	List(ctx context.Context, username string) ([]domain.ChatMessage, error)
	Reset(ctx context.Context, username string) error
}

// HealthChecker is implemented by every backing store probed by /health.
type HealthChecker interface {
	Ping(ctx context.Context) error
	Name() string // "postgresql", "redis"
}

// IdempotencyCache remembers responses to retried requests.
type IdempotencyCache interface {
	// Claim marks key as in flight. It returns false when the key is already claimed or completed.
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// Get returns the stored response, or nil when the key is absent or still in flight.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Release(ctx context.Context, key string) error
}
