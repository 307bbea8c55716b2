package domain

// LifetimeStats aggregates every settled round of one player, unlike History which is capped.
type LifetimeStats struct {
	Rounds  int64 `json:"rounds"`
	Wins    int64 `json:"wins"`
	Wagered int64 `json:"wagered"`
	PaidOut int64 `json:"paid_out"`
}

// Net returns chips won minus chips staked.
func (s LifetimeStats) Net() int64 {
	return s.PaidOut - s.Wagered
}

// WinRate returns the fraction of rounds won, 0 when no rounds were played.
func (s LifetimeStats) WinRate() float64 {
	if s.Rounds == 0 {
		return 0
	}
	return float64(s.Wins) / float64(s.Rounds)
}
