package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Side is one of the two outcome ranges a wager can target.
type Side string

const (
	SideNone  Side = ""
	SideBig   Side = "BIG"   // TÀI, totals 11-18
	SideSmall Side = "SMALL" // XỈU, totals 3-10
)

// BigThreshold is the smallest total classified as BIG.
const BigThreshold = 11

// Label returns the table label players see.
func (s Side) Label() string {
	switch s {
	case SideBig:
		return "TÀI"
	case SideSmall:
		return "XỈU"
	default:
		return ""
	}
}

// IsValid returns true for BIG and SMALL.
func (s Side) IsValid() bool {
	return s == SideBig || s == SideSmall
}

// ParseSide accepts the canonical names and the table labels, case-insensitively.
func ParseSide(raw string) (Side, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "BIG", "TAI", "TÀI":
		return SideBig, nil
	case "SMALL", "XIU", "XỈU":
		return SideSmall, nil
	}
	return SideNone, fmt.Errorf("unknown side %q", raw)
}

// Dice holds the three faces of one roll, each in [1,6].
type Dice [3]int

// Total returns the sum of the faces.
func (d Dice) Total() int {
	return d[0] + d[1] + d[2]
}

// IsTriple returns true when all three faces match (Bão).
func (d Dice) IsTriple() bool {
	return d[0] == d[1] && d[1] == d[2]
}

// Valid returns true when every face is in [1,6].
func (d Dice) Valid() bool {
	for _, f := range d {
		if f < 1 || f > 6 {
			return false
		}
	}
	return true
}

// RoundResult is an immutable rolled outcome.
type RoundResult struct {
	ID        uuid.UUID `json:"id"`
	Dice      Dice      `json:"dice"`
	Total     int       `json:"total"`
	Side      Side      `json:"side"`
	Timestamp time.Time `json:"timestamp"`
}

// Classify computes the total and side for a roll.
// Triples are not special-cased: they classify by total like any other roll.
func Classify(d Dice, at time.Time) RoundResult {
	total := d.Total()
	side := SideSmall
	if total >= BigThreshold {
		side = SideBig
	}
	return RoundResult{
		ID:        uuid.New(),
		Dice:      d,
		Total:     total,
		Side:      side,
		Timestamp: at,
	}
}

// IsTriple returns true when the result's dice all match.
func (r RoundResult) IsTriple() bool {
	return r.Dice.IsTriple()
}

// RoundState is the round engine's lifecycle state.
type RoundState string

const (
	RoundStateIdle         RoundState = "IDLE"
	RoundStateSideSelected RoundState = "SIDE_SELECTED"
	RoundStateRolling      RoundState = "ROLLING"
)

// Wager is the pending bet. Side is cleared after settlement; Amount is kept as the last choice.
type Wager struct {
	Side   Side  `json:"side,omitempty"`
	Amount int64 `json:"amount"`
}

// Settlement describes how a committed wager resolved.
type Settlement struct {
	Username     string      `json:"username"`
	Wager        Wager       `json:"wager"`
	Result       RoundResult `json:"result"`
	Won          bool        `json:"won"`
	Payout       int64       `json:"payout"` // 2x stake on a win, 0 otherwise
	BalanceAfter int64       `json:"balance_after"`
}

// Settle resolves a wager against a result at even money.
// balanceAfterDebit is the balance once the stake has been taken.
func Settle(username string, w Wager, r RoundResult, balanceAfterDebit int64) Settlement {
	s := Settlement{
		Username:     username,
		Wager:        w,
		Result:       r,
		BalanceAfter: balanceAfterDebit,
	}
	if r.Side == w.Side {
		s.Won = true
		s.Payout = w.Amount * 2
		s.BalanceAfter += s.Payout
	}
	return s
}

// TableSnapshot is a point-in-time view of one player's round engine.
type TableSnapshot struct {
	State   RoundState   `json:"state"`
	Wager   Wager        `json:"wager"`
	Balance int64        `json:"balance"`
	LastWin *int64       `json:"last_win,omitempty"`
	Stakes  []int64      `json:"stakes"`
	Last    *RoundResult `json:"last_result,omitempty"`
}
