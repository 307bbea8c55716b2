package ports

//go:generate mockgen -source=repositories.go -destination=mocks/mock_repositories.go -package=mocks

import (
	"context"
	"errors"
	"time"

	"taixiu-dealer/internal/core/domain"
)

// AccountRepository defines persistence operations for player accounts.
type AccountRepository interface {
	Create(ctx context.Context, account *domain.Account) error
	// GetByUsername returns nil, nil when the account does not exist.
	GetByUsername(ctx context.Context, username string) (*domain.Account, error)
	UpdateBalance(ctx context.Context, username string, balance int64) error
}

// RoundRepository keeps the lifetime record of settled rounds.
type RoundRepository interface {
	Create(ctx context.Context, s *domain.Settlement) error
	// Stats aggregates rounds settled at or after since; nil since covers all rounds.
	Stats(ctx context.Context, username string, since *time.Time) (*domain.LifetimeStats, error)
}

// AuditRepository persists audit entries.
type AuditRepository interface {
	Create(ctx context.Context, entry *domain.AuditLog) error
}

// ErrDuplicateKey is returned by repositories when a unique key already exists.
var ErrDuplicateKey = errors.New("duplicate key")
