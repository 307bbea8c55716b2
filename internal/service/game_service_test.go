package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"taixiu-dealer/internal/core/domain"
	"taixiu-dealer/internal/core/ports"
	"taixiu-dealer/internal/core/ports/mocks"
	"taixiu-dealer/internal/game/dice"
	"taixiu-dealer/pkg/apperror"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// recordingObserver captures published events and lets tests wait for them.
type recordingObserver struct {
	mu     sync.Mutex
	events []domain.RoundEvent
	ch     chan domain.RoundEvent
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{ch: make(chan domain.RoundEvent, 64)}
}

func (o *recordingObserver) Publish(ev domain.RoundEvent) {
	o.mu.Lock()
	o.events = append(o.events, ev)
	o.mu.Unlock()
	select {
	case o.ch <- ev:
	default:
	}
}

func (o *recordingObserver) waitFor(t *testing.T, typ domain.EventType) domain.RoundEvent {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev := <-o.ch:
			if ev.Type == typ {
				return ev
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s", typ)
			return domain.RoundEvent{}
		}
	}
}

func (o *recordingObserver) types() []domain.EventType {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]domain.EventType, 0, len(o.events))
	for _, ev := range o.events {
		out = append(out, ev.Type)
	}
	return out
}

type gameDeps struct {
	accounts    *mocks.MockAccountRepository
	rounds      *mocks.MockRoundRepository
	history     *mocks.MockHistoryStore
	transcripts *mocks.MockTranscriptStore
	sessions    *mocks.MockSessionStore
	commentator *mocks.MockCommentator
	observer    *recordingObserver
}

var testGameSettings = GameSettings{
	StartingBalance: 1_000_000,
	Stakes:          []int64{1000, 5000, 10000},
	DefaultStake:    1000,
	SettleDelay:     10 * time.Millisecond,
	EngineIdleTTL:   time.Minute,
}

func setupGameService(t *testing.T, settings GameSettings, faces ...int) (*GameServiceImpl, gameDeps) {
	if len(faces) == 0 {
		faces = []int{1}
	}
	ctrl := gomock.NewController(t)
	deps := gameDeps{
		accounts:    mocks.NewMockAccountRepository(ctrl),
		rounds:      mocks.NewMockRoundRepository(ctrl),
		history:     mocks.NewMockHistoryStore(ctrl),
		transcripts: mocks.NewMockTranscriptStore(ctrl),
		sessions:    mocks.NewMockSessionStore(ctrl),
		commentator: mocks.NewMockCommentator(ctrl),
		observer:    newRecordingObserver(),
	}
	deps.sessions.EXPECT().RefreshBalance(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).AnyTimes()

	svc := NewGameService(GameDeps{
		Accounts:    deps.accounts,
		Rounds:      deps.rounds,
		History:     deps.history,
		Transcripts: deps.transcripts,
		Sessions:    deps.sessions,
		Roller:      dice.NewRoller(dice.NewSequenceSource(faces...)),
		Commentary:  NewCommentaryService(deps.commentator, time.Second, nil, zerolog.Nop()),
		Observer:    deps.observer,
	}, settings, zerolog.Nop())
	return svc, deps
}

// expectEngine wires the lookups made when a player's engine is first created.
func expectEngine(deps gameDeps, username string, balance int64) {
	deps.accounts.EXPECT().GetByUsername(gomock.Any(), username).
		Return(&domain.Account{Username: username, Balance: balance}, nil)
	deps.history.EXPECT().List(gomock.Any(), username).Return(nil, nil)
}

// expectSettlement wires the writes made when a round resolves.
func expectSettlement(deps gameDeps, username, remark string, remarkErr error) {
	deps.history.EXPECT().Record(gomock.Any(), username, gomock.Any()).Return(nil)
	deps.rounds.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil)
	deps.commentator.EXPECT().Comment(gomock.Any(), gomock.Any()).Return(remark, remarkErr)
	deps.transcripts.EXPECT().Append(gomock.Any(), username, gomock.Any()).Return(nil)
}

func waitSettlement(t *testing.T, ch <-chan domain.Settlement) domain.Settlement {
	t.Helper()
	select {
	case s := <-ch:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("round never settled")
		return domain.Settlement{}
	}
}

func TestGameService_Commit_WinPaysDouble(t *testing.T) {
	svc, deps := setupGameService(t, testGameSettings, 4, 5, 3)
	ctx := context.Background()

	expectEngine(deps, "alice", 10_000)
	deps.accounts.EXPECT().UpdateBalance(gomock.Any(), "alice", int64(9_000)).Return(nil)
	deps.accounts.EXPECT().UpdateBalance(gomock.Any(), "alice", int64(11_000)).Return(nil)
	expectSettlement(deps, "alice", "Tài mười hai!", nil)

	_, err := svc.SelectSide(ctx, "alice", domain.SideBig)
	require.NoError(t, err)

	snap, settled, err := svc.Commit(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, domain.RoundStateRolling, snap.State)
	assert.Equal(t, int64(9_000), snap.Balance, "stake is at risk while rolling")

	s := waitSettlement(t, settled)
	assert.True(t, s.Won)
	assert.Equal(t, int64(2_000), s.Payout)
	assert.Equal(t, int64(11_000), s.BalanceAfter)
	assert.Equal(t, 12, s.Result.Total)
	assert.Equal(t, domain.SideBig, s.Result.Side)

	msg := deps.observer.waitFor(t, domain.EventDealerMessage)
	assert.Equal(t, "Tài mười hai!", msg.Data.(domain.ChatMessage).Content)

	table, err := svc.Table(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, domain.RoundStateIdle, table.State)
	assert.Equal(t, domain.SideNone, table.Wager.Side, "side clears after settlement")
	assert.Equal(t, int64(1_000), table.Wager.Amount, "stake is retained")
	require.NotNil(t, table.LastWin)
	assert.Equal(t, int64(2_000), *table.LastWin)
	require.NotNil(t, table.Last)
	assert.Equal(t, s.Result.ID, table.Last.ID)
}

func TestGameService_Commit_LossKeepsDebit(t *testing.T) {
	svc, deps := setupGameService(t, testGameSettings, 4, 5, 3)
	ctx := context.Background()

	expectEngine(deps, "alice", 10_000)
	deps.accounts.EXPECT().UpdateBalance(gomock.Any(), "alice", int64(9_000)).Return(nil)
	expectSettlement(deps, "alice", "Tiếc quá!", nil)

	_, err := svc.SelectSide(ctx, "alice", domain.SideSmall)
	require.NoError(t, err)
	_, settled, err := svc.Commit(ctx, "alice")
	require.NoError(t, err)

	s := waitSettlement(t, settled)
	assert.False(t, s.Won)
	assert.Zero(t, s.Payout)
	assert.Equal(t, int64(9_000), s.BalanceAfter)
	deps.observer.waitFor(t, domain.EventDealerMessage)

	table, err := svc.Table(ctx, "alice")
	require.NoError(t, err)
	assert.Nil(t, table.LastWin)
	assert.Equal(t, int64(9_000), table.Balance)
}

func TestGameService_Commit_InsufficientBalance(t *testing.T) {
	svc, deps := setupGameService(t, testGameSettings)
	ctx := context.Background()

	expectEngine(deps, "alice", 500)

	_, err := svc.SelectSide(ctx, "alice", domain.SideBig)
	require.NoError(t, err)

	_, settled, err := svc.Commit(ctx, "alice")
	require.Error(t, err)
	assert.Nil(t, settled)

	var appErr *apperror.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "GAME_002", appErr.Code)

	table, err := svc.Table(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, domain.RoundStateSideSelected, table.State, "no state change")
	assert.Equal(t, int64(500), table.Balance, "no debit")
	assert.NotContains(t, deps.observer.types(), domain.EventRoundCommitted)
}

func TestGameService_Commit_RequiresSide(t *testing.T) {
	svc, deps := setupGameService(t, testGameSettings)

	expectEngine(deps, "alice", 10_000)

	_, _, err := svc.Commit(context.Background(), "alice")
	assert.True(t, apperror.HasCode(err, "GAME_004"))
}

func TestGameService_Commit_DebitFailure(t *testing.T) {
	svc, deps := setupGameService(t, testGameSettings)
	ctx := context.Background()

	expectEngine(deps, "alice", 10_000)
	deps.accounts.EXPECT().UpdateBalance(gomock.Any(), "alice", int64(9_000)).Return(errors.New("conn reset"))

	_, err := svc.SelectSide(ctx, "alice", domain.SideBig)
	require.NoError(t, err)

	_, _, err = svc.Commit(ctx, "alice")
	assert.True(t, apperror.HasCode(err, "SYS_001"))

	table, err := svc.Table(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, domain.RoundStateSideSelected, table.State)
	assert.Equal(t, int64(10_000), table.Balance)
}

func TestGameService_RollingBlocksEverything(t *testing.T) {
	settings := testGameSettings
	settings.SettleDelay = time.Hour
	svc, deps := setupGameService(t, settings)
	ctx := context.Background()

	expectEngine(deps, "alice", 10_000)
	deps.accounts.EXPECT().UpdateBalance(gomock.Any(), "alice", int64(9_000)).Return(nil)

	_, err := svc.SelectSide(ctx, "alice", domain.SideBig)
	require.NoError(t, err)
	_, _, err = svc.Commit(ctx, "alice")
	require.NoError(t, err)

	_, _, err = svc.Commit(ctx, "alice")
	assert.True(t, apperror.HasCode(err, "GAME_003"), "second commit")

	_, err = svc.SelectSide(ctx, "alice", domain.SideSmall)
	assert.True(t, apperror.HasCode(err, "GAME_003"), "select side")

	_, err = svc.SelectStake(ctx, "alice", 5000)
	assert.True(t, apperror.HasCode(err, "GAME_003"), "select stake")

	_, err = svc.TopUp(ctx, "alice")
	assert.True(t, apperror.HasCode(err, "GAME_003"), "top up")

	table, err := svc.Table(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, domain.RoundStateRolling, table.State)
	assert.Equal(t, domain.SideBig, table.Wager.Side)
	assert.Equal(t, int64(1000), table.Wager.Amount)
	assert.Equal(t, int64(9_000), table.Balance)
}

func TestGameService_SelectSide(t *testing.T) {
	svc, deps := setupGameService(t, testGameSettings)
	ctx := context.Background()

	expectEngine(deps, "alice", 10_000)

	t.Run("invalid side", func(t *testing.T) {
		_, err := svc.SelectSide(ctx, "alice", domain.Side("TRIPLE"))
		assert.True(t, apperror.HasCode(err, "GAME_001"))
	})

	t.Run("idempotent", func(t *testing.T) {
		first, err := svc.SelectSide(ctx, "alice", domain.SideBig)
		require.NoError(t, err)
		second, err := svc.SelectSide(ctx, "alice", domain.SideBig)
		require.NoError(t, err)

		assert.Equal(t, first, second)
		assert.Equal(t, domain.RoundStateSideSelected, second.State)

		changes := 0
		for _, typ := range deps.observer.types() {
			if typ == domain.EventStateChanged {
				changes++
			}
		}
		assert.Equal(t, 1, changes, "repeat selection publishes nothing")
	})
}

func TestGameService_SelectStake(t *testing.T) {
	svc, deps := setupGameService(t, testGameSettings)
	ctx := context.Background()

	expectEngine(deps, "alice", 2_000)

	_, err := svc.SelectStake(ctx, "alice", 2500)
	assert.True(t, apperror.HasCode(err, "GAME_001"), "off menu")

	// Above the balance is accepted; commit enforces the balance.
	snap, err := svc.SelectStake(ctx, "alice", 10000)
	require.NoError(t, err)
	assert.Equal(t, int64(10000), snap.Wager.Amount)
	assert.Equal(t, domain.RoundStateIdle, snap.State, "stake alone does not select a side")
}

func TestGameService_CommentaryFailureDoesNotTouchSettlement(t *testing.T) {
	svc, deps := setupGameService(t, testGameSettings, 6, 6, 6)
	ctx := context.Background()

	expectEngine(deps, "alice", 10_000)
	deps.accounts.EXPECT().UpdateBalance(gomock.Any(), "alice", int64(9_000)).Return(nil)
	deps.accounts.EXPECT().UpdateBalance(gomock.Any(), "alice", int64(11_000)).Return(nil)
	expectSettlement(deps, "alice", "", errors.New("overloaded"))

	_, err := svc.SelectSide(ctx, "alice", domain.SideBig)
	require.NoError(t, err)
	_, settled, err := svc.Commit(ctx, "alice")
	require.NoError(t, err)

	s := waitSettlement(t, settled)
	assert.True(t, s.Won, "a triple six is an ordinary BIG win")
	assert.Equal(t, int64(11_000), s.BalanceAfter)

	msg := deps.observer.waitFor(t, domain.EventDealerMessage)
	assert.Equal(t, FallbackErrorCommentary, msg.Data.(domain.ChatMessage).Content)

	table, err := svc.Table(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(11_000), table.Balance)
}

func TestGameService_SettlementStoreFailuresAreLogged(t *testing.T) {
	svc, deps := setupGameService(t, testGameSettings, 1, 1, 2)
	ctx := context.Background()

	expectEngine(deps, "alice", 10_000)
	deps.accounts.EXPECT().UpdateBalance(gomock.Any(), "alice", int64(9_000)).Return(nil)
	deps.history.EXPECT().Record(gomock.Any(), "alice", gomock.Any()).Return(errors.New("redis down"))
	deps.rounds.EXPECT().Create(gomock.Any(), gomock.Any()).Return(errors.New("pg down"))
	deps.commentator.EXPECT().Comment(gomock.Any(), gomock.Any()).Return("ok", nil)
	deps.transcripts.EXPECT().Append(gomock.Any(), "alice", gomock.Any()).Return(errors.New("redis down"))

	_, err := svc.SelectSide(ctx, "alice", domain.SideSmall)
	require.NoError(t, err)
	_, settled, err := svc.Commit(ctx, "alice")
	require.NoError(t, err)

	s := waitSettlement(t, settled)
	assert.True(t, s.Won)
	deps.observer.waitFor(t, domain.EventDealerMessage)

	table, err := svc.Table(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, domain.RoundStateIdle, table.State)
	assert.Equal(t, int64(11_000), table.Balance)
}

func TestGameService_CommentarySeesSettledBalance(t *testing.T) {
	svc, deps := setupGameService(t, testGameSettings, 2, 2, 2)
	ctx := context.Background()

	expectEngine(deps, "alice", 10_000)
	deps.accounts.EXPECT().UpdateBalance(gomock.Any(), "alice", int64(9_000)).Return(nil)
	deps.accounts.EXPECT().UpdateBalance(gomock.Any(), "alice", int64(11_000)).Return(nil)
	deps.history.EXPECT().Record(gomock.Any(), "alice", gomock.Any()).Return(nil)
	deps.rounds.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil)
	deps.commentator.EXPECT().Comment(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req ports.CommentaryRequest) (string, error) {
			assert.Equal(t, int64(11_000), req.Balance)
			assert.True(t, req.Result.IsTriple())
			return "Bão!", nil
		})
	deps.transcripts.EXPECT().Append(gomock.Any(), "alice", gomock.Any()).Return(nil)

	_, err := svc.SelectSide(ctx, "alice", domain.SideSmall)
	require.NoError(t, err)
	_, settled, err := svc.Commit(ctx, "alice")
	require.NoError(t, err)
	waitSettlement(t, settled)
	deps.observer.waitFor(t, domain.EventDealerMessage)
}

func TestGameService_ConsecutiveRounds(t *testing.T) {
	// BIG win, SMALL loss, SMALL win
	svc, deps := setupGameService(t, testGameSettings, 6, 5, 4, 6, 5, 4, 1, 2, 3)
	ctx := context.Background()

	expectEngine(deps, "alice", 10_000)
	deps.accounts.EXPECT().UpdateBalance(gomock.Any(), "alice", gomock.Any()).Return(nil).Times(5)
	deps.history.EXPECT().Record(gomock.Any(), "alice", gomock.Any()).Return(nil).Times(3)
	deps.rounds.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil).Times(3)
	deps.commentator.EXPECT().Comment(gomock.Any(), gomock.Any()).Return("…", nil).Times(3)
	deps.transcripts.EXPECT().Append(gomock.Any(), "alice", gomock.Any()).Return(nil).Times(3)

	plays := []struct {
		side    domain.Side
		stake   int64
		balance int64
	}{
		{domain.SideBig, 1000, 11_000},
		{domain.SideSmall, 5000, 6_000},
		{domain.SideSmall, 5000, 11_000},
	}

	for _, p := range plays {
		_, err := svc.SelectSide(ctx, "alice", p.side)
		require.NoError(t, err)
		_, err = svc.SelectStake(ctx, "alice", p.stake)
		require.NoError(t, err)
		_, settled, err := svc.Commit(ctx, "alice")
		require.NoError(t, err)

		s := waitSettlement(t, settled)
		assert.Equal(t, p.balance, s.BalanceAfter)
		deps.observer.waitFor(t, domain.EventDealerMessage)
	}
}

func TestGameService_TopUp(t *testing.T) {
	svc, deps := setupGameService(t, testGameSettings)
	ctx := context.Background()

	expectEngine(deps, "alice", 300)
	deps.accounts.EXPECT().UpdateBalance(gomock.Any(), "alice", int64(1_000_000)).Return(nil)

	snap, err := svc.TopUp(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(1_000_000), snap.Balance)
	assert.Contains(t, deps.observer.types(), domain.EventBalanceUpdated)
}

func TestGameService_UnknownAccount(t *testing.T) {
	svc, deps := setupGameService(t, testGameSettings)

	deps.accounts.EXPECT().GetByUsername(gomock.Any(), "ghost").Return(nil, nil)

	_, err := svc.Table(context.Background(), "ghost")
	assert.True(t, apperror.HasCode(err, "GAME_005"))
	assert.Zero(t, svc.ActiveEngines())
}

func TestGameService_EngineRestoresLastResult(t *testing.T) {
	svc, deps := setupGameService(t, testGameSettings)

	last := domain.Classify(domain.Dice{3, 3, 3}, time.Now())
	deps.accounts.EXPECT().GetByUsername(gomock.Any(), "alice").Return(&domain.Account{Username: "alice", Balance: 1}, nil)
	deps.history.EXPECT().List(gomock.Any(), "alice").Return(domain.History{last}, nil)

	table, err := svc.Table(context.Background(), "alice")
	require.NoError(t, err)
	require.NotNil(t, table.Last)
	assert.Equal(t, last.ID, table.Last.ID)
	assert.Equal(t, []int64{1000, 5000, 10000}, table.Stakes)
}

func TestGameService_Reap(t *testing.T) {
	settings := testGameSettings
	settings.SettleDelay = time.Hour
	svc, deps := setupGameService(t, settings)
	ctx := context.Background()

	expectEngine(deps, "idle", 10_000)
	expectEngine(deps, "rolling", 10_000)
	deps.accounts.EXPECT().UpdateBalance(gomock.Any(), "rolling", int64(9_000)).Return(nil)

	_, err := svc.Table(ctx, "idle")
	require.NoError(t, err)
	_, err = svc.SelectSide(ctx, "rolling", domain.SideBig)
	require.NoError(t, err)
	_, _, err = svc.Commit(ctx, "rolling")
	require.NoError(t, err)
	require.Equal(t, 2, svc.ActiveEngines())

	assert.Zero(t, svc.Reap(time.Now()), "nothing idle yet")
	assert.Equal(t, 1, svc.Reap(time.Now().Add(2*time.Minute)))
	assert.Equal(t, 1, svc.ActiveEngines(), "rolling engine survives")
}

func TestGameService_History(t *testing.T) {
	svc, deps := setupGameService(t, testGameSettings)
	ctx := context.Background()

	h := domain.History{domain.Classify(domain.Dice{1, 2, 3}, time.Now())}
	deps.accounts.EXPECT().GetByUsername(gomock.Any(), "alice").Return(&domain.Account{Username: "alice", Balance: 1}, nil)
	deps.history.EXPECT().List(gomock.Any(), "alice").Return(h, nil)

	got, err := svc.History(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, h, got)
}

func TestGameService_HistoryRecordsSettlementsUpToCap(t *testing.T) {
	settings := testGameSettings
	settings.HistoryCap = 2
	svc, deps := setupGameService(t, settings, 1, 1, 1)
	ctx := context.Background()

	older := domain.Classify(domain.Dice{6, 6, 6}, time.Now().Add(-time.Hour))
	deps.accounts.EXPECT().GetByUsername(gomock.Any(), "alice").Return(&domain.Account{Username: "alice", Balance: 10_000}, nil)
	deps.history.EXPECT().List(gomock.Any(), "alice").Return(domain.History{older}, nil)
	deps.accounts.EXPECT().UpdateBalance(gomock.Any(), "alice", gomock.Any()).Return(nil).AnyTimes()
	deps.history.EXPECT().Record(gomock.Any(), "alice", gomock.Any()).Return(nil).Times(2)
	deps.rounds.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil).Times(2)
	deps.commentator.EXPECT().Comment(gomock.Any(), gomock.Any()).Return("ok", nil).Times(2)
	deps.transcripts.EXPECT().Append(gomock.Any(), "alice", gomock.Any()).Return(nil).Times(2)

	var ids []string
	for i := 0; i < 2; i++ {
		_, err := svc.SelectSide(ctx, "alice", domain.SideSmall)
		require.NoError(t, err)
		_, settled, err := svc.Commit(ctx, "alice")
		require.NoError(t, err)
		s := waitSettlement(t, settled)
		ids = append(ids, s.Result.ID.String())
	}
	deps.observer.waitFor(t, domain.EventDealerMessage)
	deps.observer.waitFor(t, domain.EventDealerMessage)

	h, err := svc.History(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, h, 2, "older result evicted")
	assert.Equal(t, ids[1], h[0].ID.String(), "newest first")
	assert.Equal(t, ids[0], h[1].ID.String())
	assert.Equal(t, 2, h.TallyBySide(domain.SideSmall))
}

func TestGameService_Stats_Periods(t *testing.T) {
	tests := []struct {
		period    string
		wantSince bool
		maxAge    time.Duration
	}{
		{"", false, 0},
		{"all", false, 0},
		{"day", true, 25 * time.Hour},
		{"week", true, 8 * 24 * time.Hour},
		{"month", true, 32 * 24 * time.Hour},
	}

	for _, tt := range tests {
		t.Run("period="+tt.period, func(t *testing.T) {
			svc, deps := setupGameService(t, testGameSettings)
			ctx := context.Background()

			deps.rounds.EXPECT().Stats(ctx, "alice", gomock.Any()).DoAndReturn(
				func(_ context.Context, _ string, since *time.Time) (*domain.LifetimeStats, error) {
					if !tt.wantSince {
						assert.Nil(t, since)
					} else {
						require.NotNil(t, since)
						assert.Less(t, time.Since(*since), tt.maxAge)
					}
					return &domain.LifetimeStats{Rounds: 3, Wins: 2}, nil
				})

			stats, err := svc.Stats(ctx, "alice", tt.period)
			require.NoError(t, err)
			assert.Equal(t, int64(3), stats.Rounds)
		})
	}
}

func TestGameService_Stats_InvalidPeriod(t *testing.T) {
	svc, _ := setupGameService(t, testGameSettings)

	_, err := svc.Stats(context.Background(), "alice", "decade")
	assert.True(t, apperror.HasCode(err, "GAME_001"))
}

func TestGameService_ReapedEngineRefusesChanges(t *testing.T) {
	settings := testGameSettings
	settings.SettleDelay = time.Hour
	svc, deps := setupGameService(t, settings)
	ctx := context.Background()

	expectEngine(deps, "alice", 10_000)
	held, err := svc.engine(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, 1, svc.Reap(time.Now().Add(2*time.Minute)))

	_, err = held.SelectSide(domain.SideBig)
	assert.ErrorIs(t, err, errEngineRetired)
	_, _, err = held.Commit(ctx)
	assert.ErrorIs(t, err, errEngineRetired)
	_, err = held.TopUp(ctx)
	assert.ErrorIs(t, err, errEngineRetired)

	// The replacement engine is the only one that can take a round.
	expectEngine(deps, "alice", 10_000)
	deps.accounts.EXPECT().UpdateBalance(gomock.Any(), "alice", int64(9_000)).Return(nil)

	_, err = svc.SelectSide(ctx, "alice", domain.SideBig)
	require.NoError(t, err)
	_, _, err = svc.Commit(ctx, "alice")
	require.NoError(t, err)

	_, _, err = svc.Commit(ctx, "alice")
	assert.True(t, apperror.HasCode(err, "GAME_003"))
	_, err = held.SelectSide(domain.SideSmall)
	assert.ErrorIs(t, err, errEngineRetired)
	assert.Equal(t, 1, svc.ActiveEngines())
}

func TestGameService_WithEngineMovesToReplacement(t *testing.T) {
	svc, deps := setupGameService(t, testGameSettings)
	ctx := context.Background()

	expectEngine(deps, "alice", 10_000)
	expectEngine(deps, "alice", 10_000)

	var seen []*roundEngine
	err := svc.withEngine(ctx, "alice", func(e *roundEngine) error {
		seen = append(seen, e)
		if len(seen) == 1 {
			require.Equal(t, 1, svc.Reap(time.Now().Add(2*time.Minute)))
		}
		_, err := e.SelectSide(domain.SideBig)
		return err
	})
	require.NoError(t, err)
	require.Len(t, seen, 2)
	assert.NotSame(t, seen[0], seen[1])

	table, err := svc.Table(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, domain.RoundStateSideSelected, table.State)
}

func TestGameService_DrainWaitsForPendingRound(t *testing.T) {
	settings := testGameSettings
	settings.SettleDelay = 50 * time.Millisecond
	svc, deps := setupGameService(t, settings, 4, 5, 3)
	ctx := context.Background()

	expectEngine(deps, "alice", 10_000)
	deps.accounts.EXPECT().UpdateBalance(gomock.Any(), "alice", int64(9_000)).Return(nil)
	deps.accounts.EXPECT().UpdateBalance(gomock.Any(), "alice", int64(11_000)).Return(nil)
	expectSettlement(deps, "alice", "Tài!", nil)

	_, err := svc.SelectSide(ctx, "alice", domain.SideBig)
	require.NoError(t, err)
	_, settled, err := svc.Commit(ctx, "alice")
	require.NoError(t, err)

	drainCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	svc.Drain(drainCtx)

	select {
	case s := <-settled:
		assert.Equal(t, int64(11_000), s.BalanceAfter)
	default:
		t.Fatal("drain returned before the round settled")
	}
	assert.Contains(t, deps.observer.types(), domain.EventDealerMessage, "commentary finishes before drain returns")

	_, _, err = svc.Commit(ctx, "alice")
	assert.True(t, apperror.HasCode(err, "SYS_002"))
}

func TestGameService_DrainSettlesEarlyOnDeadline(t *testing.T) {
	settings := testGameSettings
	settings.SettleDelay = time.Hour
	svc, deps := setupGameService(t, settings, 1, 1, 1)
	ctx := context.Background()

	expectEngine(deps, "alice", 10_000)
	deps.accounts.EXPECT().UpdateBalance(gomock.Any(), "alice", int64(9_000)).Return(nil)
	deps.accounts.EXPECT().UpdateBalance(gomock.Any(), "alice", int64(11_000)).Return(nil)
	expectSettlement(deps, "alice", "Xỉu!", nil)

	_, err := svc.SelectSide(ctx, "alice", domain.SideSmall)
	require.NoError(t, err)
	_, settled, err := svc.Commit(ctx, "alice")
	require.NoError(t, err)

	drainCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	start := time.Now()
	svc.Drain(drainCtx)
	assert.Less(t, time.Since(start), time.Minute)

	select {
	case s := <-settled:
		assert.True(t, s.Won)
		assert.Equal(t, int64(11_000), s.BalanceAfter)
	default:
		t.Fatal("rolling round was not settled by drain")
	}
}

func TestGameService_DrainWithNothingPending(t *testing.T) {
	svc, deps := setupGameService(t, testGameSettings)
	expectEngine(deps, "alice", 10_000)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	svc.Drain(ctx)

	_, _, err := svc.Commit(context.Background(), "alice")
	assert.True(t, apperror.HasCode(err, "SYS_002"))
}
