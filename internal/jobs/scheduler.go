// Package jobs runs background housekeeping on a cron schedule.
package jobs

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Reaper drops idle round engines.
type Reaper interface {
	Reap(now time.Time) int
	ActiveEngines() int
}

// EngineGauge records how many engines remain after a sweep. Optional.
type EngineGauge interface {
	SetActiveEngines(n int)
}

// Scheduler owns the background jobs.
type Scheduler struct {
	cron   *cron.Cron
	reaper Reaper
	gauge  EngineGauge
	log    zerolog.Logger
	now    func() time.Time
}

// NewScheduler creates a scheduler running in UTC.
func NewScheduler(reaper Reaper, gauge EngineGauge, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(cron.WithLocation(time.UTC)),
		reaper: reaper,
		gauge:  gauge,
		log:    log,
		now:    time.Now,
	}
}

// Start registers the jobs and starts the cron loop. reapSpec is a cron spec such as "@every 5m".
func (s *Scheduler) Start(reapSpec string) error {
	if _, err := s.cron.AddFunc(reapSpec, s.reapIdleEngines); err != nil {
		return fmt.Errorf("scheduling engine reaper %q: %w", reapSpec, err)
	}

	s.cron.Start()
	s.log.Info().Str("reap_schedule", reapSpec).Msg("scheduler started")
	return nil
}

// Stop stops the cron loop and waits for a running job to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info().Msg("scheduler stopped")
}

func (s *Scheduler) reapIdleEngines() {
	reaped := s.reaper.Reap(s.now())
	remaining := s.reaper.ActiveEngines()
	if s.gauge != nil {
		s.gauge.SetActiveEngines(remaining)
	}
	s.log.Debug().Int("reaped", reaped).Int("remaining", remaining).Msg("[cron] idle engine sweep")
}
