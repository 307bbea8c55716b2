package postgres

import (
	"context"
	"fmt"
	"time"

	"taixiu-dealer/internal/core/domain"
)

// RoundRepo implements ports.RoundRepository. Unlike the Redis history it keeps every round.
type RoundRepo struct {
	pool Pool
}

// NewRoundRepo creates a new RoundRepo.
func NewRoundRepo(pool Pool) *RoundRepo {
	return &RoundRepo{pool: pool}
}

// Create records a settled round.
func (r *RoundRepo) Create(ctx context.Context, s *domain.Settlement) error {
	query := `INSERT INTO rounds (id, username, side, stake, dice_1, dice_2, dice_3, total, result_side, won, payout, balance_after, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	res := s.Result
	_, err := r.pool.Exec(ctx, query,
		res.ID, s.Username, string(s.Wager.Side), s.Wager.Amount,
		res.Dice[0], res.Dice[1], res.Dice[2], res.Total, string(res.Side),
		s.Won, s.Payout, s.BalanceAfter, res.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert round: %w", err)
	}
	return nil
}

// Stats aggregates the player's rounds. A nil since covers every round.
func (r *RoundRepo) Stats(ctx context.Context, username string, since *time.Time) (*domain.LifetimeStats, error) {
	query := `SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE won),
			COALESCE(SUM(stake), 0),
			COALESCE(SUM(payout), 0)
		FROM rounds
		WHERE username = $1 AND ($2::timestamptz IS NULL OR created_at >= $2)`

	stats := &domain.LifetimeStats{}
	err := r.pool.QueryRow(ctx, query, username, since).Scan(
		&stats.Rounds, &stats.Wins, &stats.Wagered, &stats.PaidOut,
	)
	if err != nil {
		return nil, fmt.Errorf("round stats: %w", err)
	}
	return stats, nil
}
