package dto

import (
	"time"

	"taixiu-dealer/internal/core/domain"
)

// RegisterRequest is the request body for player registration.
type RegisterRequest struct {
	Username    string `json:"username" binding:"required,username"`
	Password    string `json:"password" binding:"required,min=1,max=128" sanitize:"-"`
	DisplayName string `json:"display_name" binding:"required,min=1,max=50"`
}

// LoginRequest is the request body for player login.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required" sanitize:"-"`
}

// SessionResponse is returned when a session starts.
type SessionResponse struct {
	Token   string         `json:"token"`
	Expiry  int64          `json:"expiry"` // Unix timestamp
	Profile domain.Profile `json:"profile"`
}

// MeResponse describes the live session.
type MeResponse struct {
	SessionID string         `json:"session_id"`
	Profile   domain.Profile `json:"profile"`
	StartedAt string         `json:"started_at"`
	ExpiresAt string         `json:"expires_at"`
}

// SideRequest selects the side of the pending wager.
type SideRequest struct {
	Side string `json:"side" binding:"required,side"`
}

// StakeRequest selects the stake of the pending wager.
type StakeRequest struct {
	Amount int64 `json:"amount" binding:"required,gt=0"`
}

// ChatRequest appends a player line to the dealer transcript.
type ChatRequest struct {
	Content string `json:"content" binding:"required"`
}

// HistoryResponse is the capped history with its tallies.
type HistoryResponse struct {
	Items []domain.RoundResult `json:"items"`
	Big   int                  `json:"big"`
	Small int                  `json:"small"`
}

// StatsResponse reports totals over a period.
type StatsResponse struct {
	Period  string  `json:"period"`
	Rounds  int64   `json:"rounds"`
	Wins    int64   `json:"wins"`
	Wagered int64   `json:"wagered"`
	PaidOut int64   `json:"paid_out"`
	Net     int64   `json:"net"`
	WinRate float64 `json:"win_rate"`
}

// RollResponse is returned by a roll. Settlement is set only when the caller waited for it.
type RollResponse struct {
	Table      *domain.TableSnapshot `json:"table"`
	Settlement *domain.Settlement    `json:"settlement,omitempty"`
}

// NewSessionResponse converts a started session.
func NewSessionResponse(token string, expiry time.Time, s *domain.Session) SessionResponse {
	return SessionResponse{
		Token:   token,
		Expiry:  expiry.Unix(),
		Profile: s.Profile,
	}
}

// NewMeResponse converts the live session.
func NewMeResponse(s *domain.Session) MeResponse {
	return MeResponse{
		SessionID: s.ID,
		Profile:   s.Profile,
		StartedAt: s.StartedAt.UTC().Format(time.RFC3339),
		ExpiresAt: s.ExpiresAt.UTC().Format(time.RFC3339),
	}
}

// NewStatsResponse converts period totals.
func NewStatsResponse(period string, s *domain.LifetimeStats) StatsResponse {
	if period == "" {
		period = "all"
	}
	return StatsResponse{
		Period:  period,
		Rounds:  s.Rounds,
		Wins:    s.Wins,
		Wagered: s.Wagered,
		PaidOut: s.PaidOut,
		Net:     s.Net(),
		WinRate: s.WinRate(),
	}
}
