package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"taixiu-dealer/internal/core/domain"
	"taixiu-dealer/internal/core/ports"
	"taixiu-dealer/pkg/apperror"

	"github.com/rs/zerolog"
)

// settleTimeout bounds the store writes made when a round resolves.
const settleTimeout = 5 * time.Second

// errEngineRetired is returned by an engine the reaper has dropped. Callers fetch a fresh one.
var errEngineRetired = errors.New("round engine retired")

// roundEngine runs one player's table. All balance writes for that player pass through it.
type roundEngine struct {
	deps     *engineDeps
	username string

	mu         sync.Mutex
	state      domain.RoundState
	wager      domain.Wager
	balance    int64
	lastWin    *int64
	history    domain.History // newest first, capped at settings.HistoryCap
	lastActive time.Time
	rolledAt   time.Time
	pending    chan domain.Settlement
	timer      *time.Timer
	retired    bool
}

// engineDeps is shared by every engine of a GameServiceImpl.
type engineDeps struct {
	accounts    ports.AccountRepository
	rounds      ports.RoundRepository
	history     ports.HistoryStore
	transcripts ports.TranscriptStore
	sessions    ports.SessionStore
	roller      ports.DiceRoller
	commentary  *CommentaryService
	observer    ports.RoundObserver
	metrics     ports.GameMetrics
	settings    GameSettings
	log         zerolog.Logger
	now         func() time.Time

	// gate orders the draining flag against inflight.Add so Drain's Wait never races an Add.
	gate     sync.RWMutex
	draining bool
	inflight sync.WaitGroup // pending settlements and their commentary
}

// admit registers a round about to be committed. It returns false once draining.
func (d *engineDeps) admit() bool {
	d.gate.RLock()
	defer d.gate.RUnlock()
	if d.draining {
		return false
	}
	d.inflight.Add(1)
	return true
}

func newRoundEngine(ctx context.Context, deps *engineDeps, username string) (*roundEngine, error) {
	account, err := deps.accounts.GetByUsername(ctx, username)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("load account: %w", err))
	}
	if account == nil {
		return nil, apperror.ErrNotFound("account")
	}

	e := &roundEngine{
		deps:       deps,
		username:   username,
		state:      domain.RoundStateIdle,
		wager:      domain.Wager{Amount: deps.settings.DefaultStake},
		balance:    account.Balance,
		lastActive: deps.now(),
	}

	history, err := deps.history.List(ctx, username)
	if err != nil {
		deps.log.Warn().Err(err).Str("username", username).Msg("failed to load history")
	} else {
		e.history = history
	}

	return e, nil
}

// History returns a copy of the retained results, newest first.
func (e *roundEngine) History() domain.History {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append(domain.History(nil), e.history...)
}

func (e *roundEngine) Snapshot() domain.TableSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

func (e *roundEngine) snapshotLocked() domain.TableSnapshot {
	snap := domain.TableSnapshot{
		State:   e.state,
		Wager:   e.wager,
		Balance: e.balance,
		Stakes:  append([]int64(nil), e.deps.settings.Stakes...),
	}
	if e.lastWin != nil {
		w := *e.lastWin
		snap.LastWin = &w
	}
	if len(e.history) > 0 {
		r := e.history[0]
		snap.Last = &r
	}
	return snap
}

// SelectSide sets the pending side. Repeating the current side changes nothing.
func (e *roundEngine) SelectSide(side domain.Side) (domain.TableSnapshot, error) {
	if !side.IsValid() {
		return domain.TableSnapshot{}, apperror.InvalidInput("side must be BIG or SMALL")
	}

	e.mu.Lock()
	if e.retired {
		e.mu.Unlock()
		return domain.TableSnapshot{}, errEngineRetired
	}
	if e.state == domain.RoundStateRolling {
		e.mu.Unlock()
		return domain.TableSnapshot{}, apperror.ErrRoundInProgress()
	}
	changed := e.wager.Side != side || e.state != domain.RoundStateSideSelected
	e.wager.Side = side
	e.state = domain.RoundStateSideSelected
	e.lastActive = e.deps.now()
	snap := e.snapshotLocked()
	e.mu.Unlock()

	if changed {
		e.publish(domain.EventStateChanged, snap)
	}
	return snap, nil
}

// SelectStake sets the pending amount from the stake menu. The balance is checked at commit.
func (e *roundEngine) SelectStake(amount int64) (domain.TableSnapshot, error) {
	if !e.deps.settings.HasStake(amount) {
		return domain.TableSnapshot{}, apperror.InvalidInput(fmt.Sprintf("stake %d is not on the menu", amount))
	}

	e.mu.Lock()
	if e.retired {
		e.mu.Unlock()
		return domain.TableSnapshot{}, errEngineRetired
	}
	if e.state == domain.RoundStateRolling {
		e.mu.Unlock()
		return domain.TableSnapshot{}, apperror.ErrRoundInProgress()
	}
	changed := e.wager.Amount != amount
	e.wager.Amount = amount
	e.lastActive = e.deps.now()
	snap := e.snapshotLocked()
	e.mu.Unlock()

	if changed {
		e.publish(domain.EventStateChanged, snap)
	}
	return snap, nil
}

// Commit debits the stake, enters ROLLING and schedules settlement.
// The returned channel receives exactly one Settlement.
func (e *roundEngine) Commit(ctx context.Context) (domain.TableSnapshot, <-chan domain.Settlement, error) {
	if !e.deps.admit() {
		return domain.TableSnapshot{}, nil, apperror.ErrShuttingDown()
	}
	scheduled := false
	defer func() {
		if !scheduled {
			e.deps.inflight.Done()
		}
	}()

	e.mu.Lock()
	switch {
	case e.retired:
		e.mu.Unlock()
		return domain.TableSnapshot{}, nil, errEngineRetired
	case e.state == domain.RoundStateRolling:
		e.mu.Unlock()
		return domain.TableSnapshot{}, nil, apperror.ErrRoundInProgress()
	case !e.wager.Side.IsValid():
		e.mu.Unlock()
		return domain.TableSnapshot{}, nil, apperror.ErrSideNotSelected()
	case e.balance < e.wager.Amount:
		e.mu.Unlock()
		return domain.TableSnapshot{}, nil, apperror.ErrInsufficientBalance()
	}

	debited := e.balance - e.wager.Amount
	if err := e.deps.accounts.UpdateBalance(ctx, e.username, debited); err != nil {
		e.mu.Unlock()
		return domain.TableSnapshot{}, nil, apperror.ErrDatabaseError(fmt.Errorf("debit stake: %w", err))
	}

	now := e.deps.now()
	e.balance = debited
	e.lastWin = nil
	e.state = domain.RoundStateRolling
	e.rolledAt = now
	e.lastActive = now
	settled := make(chan domain.Settlement, 1)
	e.pending = settled
	e.refreshSession(ctx)
	snap := e.snapshotLocked()
	stake := e.wager.Amount
	e.timer = time.AfterFunc(e.deps.settings.SettleDelay, e.settle)
	scheduled = true
	e.mu.Unlock()

	e.deps.metrics.RoundCommitted(stake)
	e.deps.log.Info().
		Str("username", e.username).
		Str("side", string(snap.Wager.Side)).
		Int64("stake", stake).
		Int64("balance", snap.Balance).
		Msg("round committed")

	e.publish(domain.EventRoundCommitted, snap)
	e.publish(domain.EventBalanceUpdated, balancePayload{Balance: snap.Balance})

	return snap, settled, nil
}

// settle resolves the in-flight round. Runs on the settlement timer, or from
// settleNow once the timer is stopped. Either way it runs once per commit.
func (e *roundEngine) settle() {
	defer e.deps.inflight.Done()

	ctx, cancel := context.WithTimeout(context.Background(), settleTimeout)
	defer cancel()

	e.mu.Lock()
	if e.state != domain.RoundStateRolling {
		e.mu.Unlock()
		return
	}

	now := e.deps.now()
	result := domain.Classify(e.deps.roller.Roll(), now)
	s := domain.Settle(e.username, e.wager, result, e.balance)

	if s.Won {
		// UpdateBalance writes the absolute value, so a failure here heals on the next write.
		if err := e.deps.accounts.UpdateBalance(ctx, e.username, s.BalanceAfter); err != nil {
			e.deps.log.Error().Err(err).Str("username", e.username).Msg("failed to persist payout")
		}
		payout := s.Payout
		e.lastWin = &payout
	}
	e.balance = s.BalanceAfter

	if err := e.deps.history.Record(ctx, e.username, result); err != nil {
		e.deps.log.Warn().Err(err).Str("username", e.username).Msg("failed to record history")
	}
	if err := e.deps.rounds.Create(ctx, &s); err != nil {
		e.deps.log.Warn().Err(err).Str("username", e.username).Msg("failed to persist round")
	}
	e.refreshSession(ctx)

	e.history = e.history.Record(result, e.deps.settings.HistoryCap)
	e.state = domain.RoundStateIdle
	e.wager.Side = domain.SideNone
	e.lastActive = now
	elapsed := now.Sub(e.rolledAt)
	settled := e.pending
	e.pending = nil
	e.timer = nil
	snap := e.snapshotLocked()
	e.mu.Unlock()

	e.deps.metrics.RoundSettled(s, elapsed)
	e.deps.log.Info().
		Str("username", e.username).
		Str("round_id", result.ID.String()).
		Ints("dice", result.Dice[:]).
		Int("total", result.Total).
		Str("result", string(result.Side)).
		Bool("won", s.Won).
		Int64("balance", s.BalanceAfter).
		Msg("round settled")

	settled <- s
	close(settled)

	e.publish(domain.EventRoundSettled, s)
	e.publish(domain.EventBalanceUpdated, balancePayload{Balance: s.BalanceAfter})
	e.publish(domain.EventStateChanged, snap)

	// Counted while this settlement still holds its own slot.
	e.deps.inflight.Add(1)
	go e.comment(s)
}

// settleNow resolves a rolling round without waiting for its timer.
// It returns false when there was nothing left to settle.
func (e *roundEngine) settleNow() bool {
	e.mu.Lock()
	if e.state != domain.RoundStateRolling || e.timer == nil || !e.timer.Stop() {
		e.mu.Unlock()
		return false
	}
	e.mu.Unlock()
	e.settle()
	return true
}

// comment asks the dealer for a remark and appends it to the transcript.
func (e *roundEngine) comment(s domain.Settlement) {
	defer e.deps.inflight.Done()

	ctx := context.Background()
	text := e.deps.commentary.Comment(ctx, ports.CommentaryRequest{
		Result:  s.Result,
		Balance: s.BalanceAfter,
	})

	msg := domain.ChatMessage{
		Role:      domain.ChatRoleDealer,
		Content:   text,
		CreatedAt: e.deps.now(),
	}
	if err := e.deps.transcripts.Append(ctx, e.username, msg); err != nil {
		e.deps.log.Warn().Err(err).Str("username", e.username).Msg("failed to append dealer message")
	}
	e.publish(domain.EventDealerMessage, msg)
}

// TopUp resets the balance to the starting amount.
func (e *roundEngine) TopUp(ctx context.Context) (domain.TableSnapshot, error) {
	e.mu.Lock()
	if e.retired {
		e.mu.Unlock()
		return domain.TableSnapshot{}, errEngineRetired
	}
	if e.state == domain.RoundStateRolling {
		e.mu.Unlock()
		return domain.TableSnapshot{}, apperror.ErrRoundInProgress()
	}

	balance := e.deps.settings.StartingBalance
	if err := e.deps.accounts.UpdateBalance(ctx, e.username, balance); err != nil {
		e.mu.Unlock()
		return domain.TableSnapshot{}, apperror.ErrDatabaseError(fmt.Errorf("top up: %w", err))
	}
	e.balance = balance
	e.lastWin = nil
	e.lastActive = e.deps.now()
	e.refreshSession(ctx)
	snap := e.snapshotLocked()
	e.mu.Unlock()

	e.deps.log.Info().Str("username", e.username).Int64("balance", balance).Msg("balance topped up")
	e.publish(domain.EventBalanceUpdated, balancePayload{Balance: balance})
	return snap, nil
}

// retireIfIdle retires the engine when it has been idle for at least ttl and holds
// no round. A retired engine refuses every later change, so a caller still holding
// it cannot run a round beside the engine that replaces it.
func (e *roundEngine) retireIfIdle(now time.Time, ttl time.Duration) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.retired || e.state == domain.RoundStateRolling || now.Sub(e.lastActive) < ttl {
		return false
	}
	e.retired = true
	return true
}

// refreshSession must be called with e.mu held.
func (e *roundEngine) refreshSession(ctx context.Context) {
	if err := e.deps.sessions.RefreshBalance(ctx, e.username, e.balance); err != nil {
		e.deps.log.Warn().Err(err).Str("username", e.username).Msg("failed to refresh session balance")
	}
}

func (e *roundEngine) publish(t domain.EventType, data interface{}) {
	e.deps.observer.Publish(domain.NewRoundEvent(t, e.username, data))
}

type balancePayload struct {
	Balance int64 `json:"balance"`
}
