package domain

import "time"

// EventType names a round engine notification.
type EventType string

const (
	EventStateChanged   EventType = "state.changed"
	EventRoundCommitted EventType = "round.committed"
	EventRoundSettled   EventType = "round.settled"
	EventDealerMessage  EventType = "dealer.message"
	EventBalanceUpdated EventType = "balance.updated"
)

// RoundEvent is pushed to observers of a player's table.
type RoundEvent struct {
	Type      EventType   `json:"type"`
	Username  string      `json:"username"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewRoundEvent stamps an event with the current time.
func NewRoundEvent(t EventType, username string, data interface{}) RoundEvent {
	return RoundEvent{Type: t, Username: username, Data: data, Timestamp: time.Now().UTC()}
}
