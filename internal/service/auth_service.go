package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"taixiu-dealer/internal/core/domain"
	"taixiu-dealer/internal/core/ports"
	"taixiu-dealer/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const avatarSeedLen = 6

// AuthSettings holds the account and session rules.
type AuthSettings struct {
	StartingBalance int64
	SessionTTL      time.Duration
}

// AuthServiceImpl implements ports.AuthService.
type AuthServiceImpl struct {
	accounts    ports.AccountRepository
	sessions    ports.SessionStore
	transcripts ports.TranscriptStore
	hashSvc     ports.HashService
	tokenSvc    ports.TokenService
	metrics     ports.GameMetrics
	settings    AuthSettings
	log         zerolog.Logger
}

// NewAuthService creates a new AuthServiceImpl. A nil metrics disables metrics.
func NewAuthService(
	accounts ports.AccountRepository,
	sessions ports.SessionStore,
	transcripts ports.TranscriptStore,
	hashSvc ports.HashService,
	tokenSvc ports.TokenService,
	metrics ports.GameMetrics,
	settings AuthSettings,
	log zerolog.Logger,
) *AuthServiceImpl {
	if metrics == nil {
		metrics = NopMetrics{}
	}
	return &AuthServiceImpl{
		accounts:    accounts,
		sessions:    sessions,
		transcripts: transcripts,
		hashSvc:     hashSvc,
		tokenSvc:    tokenSvc,
		metrics:     metrics,
		settings:    settings,
		log:         log,
	}
}

// Register creates an account with the starting balance and opens a session for it.
func (s *AuthServiceImpl) Register(ctx context.Context, req ports.RegisterRequest) (*ports.AuthResponse, error) {
	username := strings.TrimSpace(req.Username)
	displayName := strings.TrimSpace(req.DisplayName)
	if username == "" || req.Password == "" || displayName == "" {
		return nil, apperror.InvalidInput("username, password and display name are required")
	}

	existing, err := s.accounts.GetByUsername(ctx, username)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("check username: %w", err))
	}
	if existing != nil {
		return nil, apperror.ErrDuplicateUsername()
	}

	passwordHash, err := s.hashSvc.Hash(req.Password)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("hash password: %w", err))
	}

	seed, err := generateAvatarSeed(avatarSeedLen)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("generate avatar seed: %w", err))
	}

	now := time.Now().UTC()
	account := &domain.Account{
		Username:     username,
		PasswordHash: passwordHash,
		DisplayName:  displayName,
		Balance:      s.settings.StartingBalance,
		AvatarSeed:   seed,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.accounts.Create(ctx, account); err != nil {
		// lost a race with a concurrent registration
		if errors.Is(err, ports.ErrDuplicateKey) {
			return nil, apperror.ErrDuplicateUsername()
		}
		return nil, apperror.InternalError(fmt.Errorf("create account: %w", err))
	}

	s.log.Info().
		Str("username", account.Username).
		Int64("balance", account.Balance).
		Msg("account registered")

	return s.startSession(ctx, account)
}

// Login checks credentials and opens a session. Unknown users and wrong
// passwords fail identically.
func (s *AuthServiceImpl) Login(ctx context.Context, username, password string) (*ports.AuthResponse, error) {
	account, err := s.accounts.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("find account: %w", err))
	}
	if account == nil {
		return nil, apperror.ErrInvalidCredentials()
	}

	valid, err := s.hashSvc.Verify(password, account.PasswordHash)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("verify password: %w", err))
	}
	if !valid {
		return nil, apperror.ErrInvalidCredentials()
	}

	return s.startSession(ctx, account)
}

// Logout ends the session.
func (s *AuthServiceImpl) Logout(ctx context.Context, sessionID string) error {
	if err := s.sessions.End(ctx, sessionID); err != nil {
		return apperror.InternalError(fmt.Errorf("end session: %w", err))
	}
	s.metrics.SessionEnded()
	s.log.Info().Str("session_id", sessionID).Msg("session ended")
	return nil
}

// Current returns the live session or ErrInvalidToken when there is none.
func (s *AuthServiceImpl) Current(ctx context.Context, sessionID string) (*domain.Session, error) {
	session, err := s.sessions.Current(ctx, sessionID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("load session: %w", err))
	}
	if session == nil {
		return nil, apperror.ErrInvalidToken()
	}
	return session, nil
}

func (s *AuthServiceImpl) startSession(ctx context.Context, account *domain.Account) (*ports.AuthResponse, error) {
	now := time.Now().UTC()
	session := &domain.Session{
		ID:        uuid.NewString(),
		Profile:   account.Profile(),
		StartedAt: now,
		ExpiresAt: now.Add(s.settings.SessionTTL),
	}

	if err := s.sessions.Start(ctx, session, s.settings.SessionTTL); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("start session: %w", err))
	}

	token, expiry, err := s.tokenSvc.Generate(session.ID, account.Username)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("generate token: %w", err))
	}

	// A fresh session opens a fresh transcript.
	if err := s.transcripts.Reset(ctx, account.Username); err != nil {
		s.log.Warn().Err(err).Str("username", account.Username).Msg("failed to reset transcript")
	} else if err := s.transcripts.Append(ctx, account.Username, domain.ChatMessage{
		Role:      domain.ChatRoleDealer,
		Content:   domain.WelcomeMessage,
		CreatedAt: now,
	}); err != nil {
		s.log.Warn().Err(err).Str("username", account.Username).Msg("failed to seed transcript")
	}

	s.metrics.SessionStarted()
	s.log.Info().
		Str("username", account.Username).
		Str("session_id", session.ID).
		Msg("session started")

	return &ports.AuthResponse{
		Token:   token,
		Expiry:  expiry,
		Session: session,
	}, nil
}

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

// generateAvatarSeed returns n random base36 characters.
func generateAvatarSeed(n int) (string, error) {
	var b strings.Builder
	max := big.NewInt(int64(len(base36)))
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(base36[idx.Int64()])
	}
	return b.String(), nil
}
