package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"taixiu-dealer/internal/core/domain"
	"taixiu-dealer/internal/core/ports"
	"taixiu-dealer/pkg/apperror"

	"github.com/rs/zerolog"
)

// GameSettings holds the table rules every engine plays by.
type GameSettings struct {
	StartingBalance int64
	Stakes          []int64
	DefaultStake    int64
	SettleDelay     time.Duration
	EngineIdleTTL   time.Duration
	HistoryCap      int // non-positive uses domain.DefaultHistoryCap
}

// HasStake reports whether amount is on the stake menu.
func (g GameSettings) HasStake(amount int64) bool {
	return slices.Contains(g.Stakes, amount)
}

// GameDeps groups the collaborators of GameServiceImpl.
type GameDeps struct {
	Accounts    ports.AccountRepository
	Rounds      ports.RoundRepository
	History     ports.HistoryStore
	Transcripts ports.TranscriptStore
	Sessions    ports.SessionStore
	Roller      ports.DiceRoller
	Commentary  *CommentaryService
	Observer    ports.RoundObserver
	Metrics     ports.GameMetrics // optional
}

// GameServiceImpl implements ports.GameService. It owns one round engine per player,
// created on first use.
type GameServiceImpl struct {
	deps *engineDeps

	mu      sync.Mutex
	engines map[string]*roundEngine
}

// NewGameService creates a new GameServiceImpl.
func NewGameService(d GameDeps, settings GameSettings, log zerolog.Logger) *GameServiceImpl {
	metrics := d.Metrics
	if metrics == nil {
		metrics = NopMetrics{}
	}
	return &GameServiceImpl{
		deps: &engineDeps{
			accounts:    d.Accounts,
			rounds:      d.Rounds,
			history:     d.History,
			transcripts: d.Transcripts,
			sessions:    d.Sessions,
			roller:      d.Roller,
			commentary:  d.Commentary,
			observer:    d.Observer,
			metrics:     metrics,
			settings:    settings,
			log:         log,
			now:         func() time.Time { return time.Now().UTC() },
		},
		engines: make(map[string]*roundEngine),
	}
}

func (s *GameServiceImpl) engine(ctx context.Context, username string) (*roundEngine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.engines[username]; ok {
		return e, nil
	}
	e, err := newRoundEngine(ctx, s.deps, username)
	if err != nil {
		return nil, err
	}
	s.engines[username] = e
	return e, nil
}

// withEngine runs fn against the player's engine. If the reaper retired that engine
// in between, fn runs again on the replacement.
func (s *GameServiceImpl) withEngine(ctx context.Context, username string, fn func(e *roundEngine) error) error {
	for {
		e, err := s.engine(ctx, username)
		if err != nil {
			return err
		}
		if err := fn(e); !errors.Is(err, errEngineRetired) {
			return err
		}
	}
}

// Table returns the player's current table snapshot.
func (s *GameServiceImpl) Table(ctx context.Context, username string) (*domain.TableSnapshot, error) {
	e, err := s.engine(ctx, username)
	if err != nil {
		return nil, err
	}
	snap := e.Snapshot()
	return &snap, nil
}

func (s *GameServiceImpl) SelectSide(ctx context.Context, username string, side domain.Side) (*domain.TableSnapshot, error) {
	var snap domain.TableSnapshot
	err := s.withEngine(ctx, username, func(e *roundEngine) (err error) {
		snap, err = e.SelectSide(side)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

func (s *GameServiceImpl) SelectStake(ctx context.Context, username string, amount int64) (*domain.TableSnapshot, error) {
	var snap domain.TableSnapshot
	err := s.withEngine(ctx, username, func(e *roundEngine) (err error) {
		snap, err = e.SelectStake(amount)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// Commit starts a round. The channel yields the settlement once the dice land.
func (s *GameServiceImpl) Commit(ctx context.Context, username string) (*domain.TableSnapshot, <-chan domain.Settlement, error) {
	var (
		snap    domain.TableSnapshot
		settled <-chan domain.Settlement
	)
	err := s.withEngine(ctx, username, func(e *roundEngine) (err error) {
		snap, settled, err = e.Commit(ctx)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return &snap, settled, nil
}

func (s *GameServiceImpl) TopUp(ctx context.Context, username string) (*domain.TableSnapshot, error) {
	var snap domain.TableSnapshot
	err := s.withEngine(ctx, username, func(e *roundEngine) (err error) {
		snap, err = e.TopUp(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// History returns the capped, newest-first round history held by the player's engine.
// A new engine loads it from the history store.
func (s *GameServiceImpl) History(ctx context.Context, username string) (domain.History, error) {
	e, err := s.engine(ctx, username)
	if err != nil {
		return nil, err
	}
	return e.History(), nil
}

// Stats returns totals over the player's settled rounds for period: day, week, month or all.
func (s *GameServiceImpl) Stats(ctx context.Context, username, period string) (*domain.LifetimeStats, error) {
	var since *time.Time

	switch period {
	case "day":
		t := s.deps.now().AddDate(0, 0, -1)
		since = &t
	case "week":
		t := s.deps.now().AddDate(0, 0, -7)
		since = &t
	case "month":
		t := s.deps.now().AddDate(0, -1, 0)
		since = &t
	case "all", "":
		// No time filter
	default:
		return nil, apperror.InvalidInput("invalid period: must be day, week, month, or all")
	}

	stats, err := s.deps.rounds.Stats(ctx, username, since)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("round stats: %w", err))
	}
	return stats, nil
}

// Reap drops engines idle for longer than EngineIdleTTL. Rolling engines are kept.
// It returns the number of engines removed.
func (s *GameServiceImpl) Reap(now time.Time) int {
	ttl := s.deps.settings.EngineIdleTTL
	if ttl <= 0 {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	reaped := 0
	for username, e := range s.engines {
		if e.retireIfIdle(now, ttl) {
			delete(s.engines, username)
			reaped++
		}
	}
	if reaped > 0 {
		s.deps.log.Debug().Int("reaped", reaped).Int("remaining", len(s.engines)).Msg("idle engines reaped")
	}
	return reaped
}

// ActiveEngines returns the number of live engines.
func (s *GameServiceImpl) ActiveEngines() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.engines)
}

// Drain stops new rounds from being committed and waits for pending settlements and
// their commentary. When ctx ends first, rounds still rolling are settled at once.
// Call it before closing the stores the engines write to.
func (s *GameServiceImpl) Drain(ctx context.Context) {
	s.deps.gate.Lock()
	s.deps.draining = true
	s.deps.gate.Unlock()

	done := make(chan struct{})
	go func() {
		s.deps.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.deps.log.Info().Msg("round engines drained")
		return
	case <-ctx.Done():
	}

	s.mu.Lock()
	engines := make([]*roundEngine, 0, len(s.engines))
	for _, e := range s.engines {
		engines = append(engines, e)
	}
	s.mu.Unlock()

	forced := 0
	for _, e := range engines {
		if e.settleNow() {
			forced++
		}
	}
	<-done
	s.deps.log.Warn().Int("forced", forced).Msg("round engines drained, pending rounds settled early")
}
