package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestClassify_Boundaries(t *testing.T) {
	tests := []struct {
		name  string
		dice  Dice
		total int
		side  Side
	}{
		{"minimum", Dice{1, 1, 1}, 3, SideSmall},
		{"ten is small", Dice{3, 3, 4}, 10, SideSmall},
		{"eleven is big", Dice{3, 4, 4}, 11, SideBig},
		{"twelve is big", Dice{4, 5, 3}, 12, SideBig},
		{"maximum", Dice{6, 6, 6}, 18, SideBig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Classify(tt.dice, time.Now())
			assert.Equal(t, tt.total, r.Total)
			assert.Equal(t, tt.side, r.Side)
			assert.Equal(t, tt.dice, r.Dice)
		})
	}
}

func TestClassify_Property(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		d := Dice{
			rapid.IntRange(1, 6).Draw(rt, "d1"),
			rapid.IntRange(1, 6).Draw(rt, "d2"),
			rapid.IntRange(1, 6).Draw(rt, "d3"),
		}
		r := Classify(d, time.Now())

		if r.Total != d[0]+d[1]+d[2] {
			rt.Fatalf("total %d != sum of %v", r.Total, d)
		}
		if r.Total < 3 || r.Total > 18 {
			rt.Fatalf("total %d out of [3,18]", r.Total)
		}
		if (r.Total >= 11) != (r.Side == SideBig) {
			rt.Fatalf("total %d classified as %s", r.Total, r.Side)
		}
		if !r.Side.IsValid() {
			rt.Fatalf("side %q is not valid", r.Side)
		}
	})
}

func TestClassify_TriplesAreNotSpecial(t *testing.T) {
	small := Classify(Dice{2, 2, 2}, time.Now())
	big := Classify(Dice{5, 5, 5}, time.Now())

	assert.True(t, small.IsTriple())
	assert.Equal(t, SideSmall, small.Side)
	assert.True(t, big.IsTriple())
	assert.Equal(t, SideBig, big.Side)
}

func TestParseSide(t *testing.T) {
	tests := []struct {
		raw     string
		want    Side
		wantErr bool
	}{
		{"BIG", SideBig, false},
		{"big", SideBig, false},
		{"tai", SideBig, false},
		{"TÀI", SideBig, false},
		{"SMALL", SideSmall, false},
		{" xiu ", SideSmall, false},
		{"XỈU", SideSmall, false},
		{"triple", SideNone, true},
		{"", SideNone, true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseSide(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSide_Label(t *testing.T) {
	assert.Equal(t, "TÀI", SideBig.Label())
	assert.Equal(t, "XỈU", SideSmall.Label())
	assert.Equal(t, "", SideNone.Label())
}

func TestDice_Valid(t *testing.T) {
	assert.True(t, Dice{1, 6, 3}.Valid())
	assert.False(t, Dice{0, 6, 3}.Valid())
	assert.False(t, Dice{1, 7, 3}.Valid())
}

func TestSettle(t *testing.T) {
	result := Classify(Dice{4, 5, 3}, time.Now())

	t.Run("win pays double the stake", func(t *testing.T) {
		// balance 10,000, stake 1,000 on BIG: 9,000 after debit
		s := Settle("alice", Wager{Side: SideBig, Amount: 1000}, result, 9000)
		assert.True(t, s.Won)
		assert.Equal(t, int64(2000), s.Payout)
		assert.Equal(t, int64(11000), s.BalanceAfter)
	})

	t.Run("loss keeps the debit", func(t *testing.T) {
		s := Settle("alice", Wager{Side: SideSmall, Amount: 1000}, result, 9000)
		assert.False(t, s.Won)
		assert.Zero(t, s.Payout)
		assert.Equal(t, int64(9000), s.BalanceAfter)
	})
}

func TestSettle_NetChangeProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		start := rapid.Int64Range(1, 10_000_000).Draw(rt, "start")
		amount := rapid.Int64Range(1, start).Draw(rt, "amount")
		side := rapid.SampledFrom([]Side{SideBig, SideSmall}).Draw(rt, "side")
		d := Dice{
			rapid.IntRange(1, 6).Draw(rt, "d1"),
			rapid.IntRange(1, 6).Draw(rt, "d2"),
			rapid.IntRange(1, 6).Draw(rt, "d3"),
		}

		s := Settle("p", Wager{Side: side, Amount: amount}, Classify(d, time.Now()), start-amount)

		if s.Won && s.BalanceAfter != start+amount {
			rt.Fatalf("win: got %d, want %d", s.BalanceAfter, start+amount)
		}
		if !s.Won && s.BalanceAfter != start-amount {
			rt.Fatalf("loss: got %d, want %d", s.BalanceAfter, start-amount)
		}
	})
}

func TestHistory_RecordCapsAndOrders(t *testing.T) {
	var h History
	var results []RoundResult
	for i := 0; i < 21; i++ {
		r := Classify(Dice{1 + i%6, 2, 3}, time.Unix(int64(i), 0))
		results = append(results, r)
		h = h.Record(r, 20)
	}

	require.Len(t, h, 20)
	assert.Equal(t, results[20].ID, h[0].ID, "newest first")
	assert.Equal(t, results[1].ID, h[19].ID, "oldest retained")
	for _, r := range h {
		assert.NotEqual(t, results[0].ID, r.ID, "first round should be evicted")
	}
}

func TestHistory_RecordDoesNotMutateReceiver(t *testing.T) {
	h := History{Classify(Dice{1, 1, 1}, time.Now())}
	next := h.Record(Classify(Dice{6, 6, 6}, time.Now()), 20)

	assert.Len(t, h, 1)
	assert.Len(t, next, 2)
}

func TestHistory_Property(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(0, 60).Draw(rt, "rounds")
		var h History
		var last RoundResult
		for i := 0; i < n; i++ {
			last = Classify(Dice{
				rapid.IntRange(1, 6).Draw(rt, "d1"),
				rapid.IntRange(1, 6).Draw(rt, "d2"),
				rapid.IntRange(1, 6).Draw(rt, "d3"),
			}, time.Now())
			h = h.Record(last, DefaultHistoryCap)
		}

		if len(h) > DefaultHistoryCap {
			rt.Fatalf("history grew to %d", len(h))
		}
		if len(h) != min(n, DefaultHistoryCap) {
			rt.Fatalf("history len %d after %d rounds", len(h), n)
		}
		if n > 0 && h[0].ID != last.ID {
			rt.Fatalf("newest result is not at index 0")
		}
		tally := h.Tally()
		if tally.Big+tally.Small != len(h) {
			rt.Fatalf("tally %+v does not cover %d entries", tally, len(h))
		}
	})
}

func TestHistory_TallyBySide(t *testing.T) {
	h := History{
		Classify(Dice{6, 6, 1}, time.Now()), // 13 BIG
		Classify(Dice{1, 2, 3}, time.Now()), // 6 SMALL
		Classify(Dice{5, 5, 5}, time.Now()), // 15 BIG
	}

	assert.Equal(t, 2, h.TallyBySide(SideBig))
	assert.Equal(t, 1, h.TallyBySide(SideSmall))
	assert.Equal(t, Tally{Big: 2, Small: 1}, h.Tally())
}

func TestAccount_ProfileAndCanCover(t *testing.T) {
	a := &Account{
		Username:     "alice",
		PasswordHash: "$argon2id$secret",
		DisplayName:  "Alice",
		Balance:      500,
		AvatarSeed:   "k3j9x",
	}

	p := a.Profile()
	assert.Equal(t, Profile{Username: "alice", DisplayName: "Alice", Balance: 500, AvatarSeed: "k3j9x"}, p)

	assert.True(t, a.CanCover(500))
	assert.False(t, a.CanCover(1000))
	assert.False(t, a.CanCover(0))
}

func TestSession_IsExpired(t *testing.T) {
	now := time.Now()
	s := &Session{ExpiresAt: now.Add(time.Minute)}

	assert.False(t, s.IsExpired(now))
	assert.True(t, s.IsExpired(now.Add(2*time.Minute)))
	assert.False(t, (&Session{}).IsExpired(now))
}

func TestLifetimeStats(t *testing.T) {
	s := LifetimeStats{Rounds: 4, Wins: 1, Wagered: 4000, PaidOut: 2000}

	assert.Equal(t, int64(-2000), s.Net())
	assert.InDelta(t, 0.25, s.WinRate(), 1e-9)
	assert.Zero(t, LifetimeStats{}.WinRate())
}
