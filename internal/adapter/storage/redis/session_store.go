package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"taixiu-dealer/internal/core/domain"

	goredis "github.com/redis/go-redis/v9"
)

// SessionStore implements ports.SessionStore. Each user has at most one live session:
// session:<id> holds the JSON session and session:user:<username> points at it.
type SessionStore struct {
	client *goredis.Client
	prefix string
}

// NewSessionStore creates a new Redis-backed session store.
func NewSessionStore(client *goredis.Client) *SessionStore {
	return &SessionStore{
		client: client,
		prefix: "session:",
	}
}

func (s *SessionStore) sessionKey(id string) string {
	return s.prefix + id
}

func (s *SessionStore) userKey(username string) string {
	return s.prefix + "user:" + username
}

// Start stores the session and ends any previous session of the same user.
func (s *SessionStore) Start(ctx context.Context, session *domain.Session, ttl time.Duration) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	previous, err := s.client.Get(ctx, s.userKey(session.Username)).Result()
	if err != nil && !errors.Is(err, goredis.Nil) {
		return fmt.Errorf("redis session lookup: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		if previous != "" && previous != session.ID {
			pipe.Del(ctx, s.sessionKey(previous))
		}
		pipe.Set(ctx, s.sessionKey(session.ID), data, ttl)
		pipe.Set(ctx, s.userKey(session.Username), session.ID, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis session start: %w", err)
	}
	return nil
}

// Current returns the live session, or nil, nil when it has ended or expired.
func (s *SessionStore) Current(ctx context.Context, sessionID string) (*domain.Session, error) {
	session, err := s.load(ctx, sessionID)
	if err != nil || session == nil {
		return nil, err
	}
	if session.IsExpired(time.Now()) {
		return nil, nil
	}
	return session, nil
}

// RefreshBalance rewrites the balance of the user's live session without touching its TTL.
// It is a no-op when the user has no session.
func (s *SessionStore) RefreshBalance(ctx context.Context, username string, balance int64) error {
	sessionID, err := s.client.Get(ctx, s.userKey(username)).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil
		}
		return fmt.Errorf("redis session lookup: %w", err)
	}

	session, err := s.load(ctx, sessionID)
	if err != nil || session == nil {
		return err
	}
	session.Balance = balance

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	err = s.client.SetArgs(ctx, s.sessionKey(sessionID), data, goredis.SetArgs{
		Mode:    "XX",
		KeepTTL: true,
	}).Err()
	if err != nil && !errors.Is(err, goredis.Nil) {
		return fmt.Errorf("redis session refresh: %w", err)
	}
	return nil
}

// End removes the session. The user pointer is removed only if it still names this session.
func (s *SessionStore) End(ctx context.Context, sessionID string) error {
	session, err := s.load(ctx, sessionID)
	if err != nil {
		return err
	}
	if session == nil {
		return nil
	}

	current, err := s.client.Get(ctx, s.userKey(session.Username)).Result()
	if err != nil && !errors.Is(err, goredis.Nil) {
		return fmt.Errorf("redis session lookup: %w", err)
	}

	keys := []string{s.sessionKey(sessionID)}
	if current == sessionID {
		keys = append(keys, s.userKey(session.Username))
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis session end: %w", err)
	}
	return nil
}

func (s *SessionStore) load(ctx context.Context, sessionID string) (*domain.Session, error) {
	data, err := s.client.Get(ctx, s.sessionKey(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis session get: %w", err)
	}

	var session domain.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &session, nil
}
