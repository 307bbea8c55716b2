package domain

import "time"

// Session is the single active login of one account.
type Session struct {
	ID        string    `json:"id"`
	Profile             // Balance is kept equal to the account after every settlement
	StartedAt time.Time `json:"started_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// IsExpired returns true once the session is past its expiry.
func (s *Session) IsExpired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}
