package ports

//go:generate mockgen -source=services.go -destination=mocks/mock_services.go -package=mocks

import (
	"context"
	"time"

	"taixiu-dealer/internal/core/domain"
)

// HashService handles password hashing (Argon2id).
type HashService interface {
	Hash(password string) (string, error)
	Verify(password string, hash string) (bool, error)
}

// TokenService handles JWT token operations.
type TokenService interface {
	Generate(sessionID string, username string) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	SessionID string
	Username  string
}

// DiceRoller produces one three-die roll. It never fails.
type DiceRoller interface {
	Roll() domain.Dice
}

// CommentaryRequest is what the dealer sees when remarking on a round.
type CommentaryRequest struct {
	Result  domain.RoundResult
	Balance int64 // after settlement
}

// Commentator produces a short dealer remark. Implementations may fail; callers substitute a fallback.
type Commentator interface {
	Comment(ctx context.Context, req CommentaryRequest) (string, error)
}

// RoundObserver receives round engine events. Publish must not block.
type RoundObserver interface {
	Publish(event domain.RoundEvent)
}

// GameMetrics records table activity.
type GameMetrics interface {
	RoundCommitted(stake int64)
	RoundSettled(s domain.Settlement, elapsed time.Duration)
	CommentaryFallback(reason string)
	SessionStarted()
	SessionEnded()
}

// --- Service Ports (Business Logic) ---

// AuthService defines registration, login and session lifecycle.
type AuthService interface {
	Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error)
	Login(ctx context.Context, username, password string) (*AuthResponse, error)
	Logout(ctx context.Context, sessionID string) error
	Current(ctx context.Context, sessionID string) (*domain.Session, error)
}

// RegisterRequest holds input for player registration.
type RegisterRequest struct {
	Username    string
	Password    string
	DisplayName string
}

// AuthResponse is returned when a session starts.
type AuthResponse struct {
	Token   string
	Expiry  time.Time
	Session *domain.Session
}

// GameService routes table operations to the player's round engine.
type GameService interface {
	Table(ctx context.Context, username string) (*domain.TableSnapshot, error)
	SelectSide(ctx context.Context, username string, side domain.Side) (*domain.TableSnapshot, error)
	SelectStake(ctx context.Context, username string, amount int64) (*domain.TableSnapshot, error)
	// Commit debits the stake and returns a channel that receives the settlement once the roll resolves.
	Commit(ctx context.Context, username string) (*domain.TableSnapshot, <-chan domain.Settlement, error)
	TopUp(ctx context.Context, username string) (*domain.TableSnapshot, error)
	History(ctx context.Context, username string) (domain.History, error)
	// Stats reports totals over period: day, week, month or all.
	Stats(ctx context.Context, username, period string) (*domain.LifetimeStats, error)
}

// ChatService manages the dealer transcript.
type ChatService interface {
	Transcript(ctx context.Context, username string) ([]domain.ChatMessage, error)
	Say(ctx context.Context, username, content string) (*domain.ChatMessage, error)
}

// AuditService records audit entries asynchronously.
type AuditService interface {
	Log(ctx context.Context, entry *domain.AuditLog)
}
