package postgres

import (
	"context"
	"errors"
	"fmt"

	"taixiu-dealer/internal/core/domain"
	"taixiu-dealer/internal/core/ports"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

// AccountRepo implements ports.AccountRepository.
type AccountRepo struct {
	pool Pool
}

// NewAccountRepo creates a new AccountRepo.
func NewAccountRepo(pool Pool) *AccountRepo {
	return &AccountRepo{pool: pool}
}

// Create inserts a new account. A taken username yields ports.ErrDuplicateKey.
func (r *AccountRepo) Create(ctx context.Context, a *domain.Account) error {
	query := `INSERT INTO accounts (username, password_hash, display_name, balance, avatar_seed, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.pool.Exec(ctx, query,
		a.Username, a.PasswordHash, a.DisplayName, a.Balance,
		a.AvatarSeed, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("insert account %q: %w", a.Username, ports.ErrDuplicateKey)
		}
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

// GetByUsername fetches an account by username.
func (r *AccountRepo) GetByUsername(ctx context.Context, username string) (*domain.Account, error) {
	query := `SELECT username, password_hash, display_name, balance, avatar_seed, created_at, updated_at
		FROM accounts WHERE username = $1`

	a := &domain.Account{}
	err := r.pool.QueryRow(ctx, query, username).Scan(
		&a.Username, &a.PasswordHash, &a.DisplayName, &a.Balance,
		&a.AvatarSeed, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get account by username: %w", err)
	}
	return a, nil
}

// UpdateBalance overwrites the stored balance.
func (r *AccountRepo) UpdateBalance(ctx context.Context, username string, balance int64) error {
	query := `UPDATE accounts SET balance = $1, updated_at = NOW() WHERE username = $2`

	tag, err := r.pool.Exec(ctx, query, balance, username)
	if err != nil {
		return fmt.Errorf("update balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("account %q not found", username)
	}
	return nil
}
