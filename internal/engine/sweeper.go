package engine

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/pidebot/engine/internal/store"
	logx "github.com/pidebot/engine/pkg/logger"
)

// Sweeper periodically abandons conversations that went quiet. It calls the
// same ExpireStale operation GetOrCreate uses inline, so both paths share
// one threshold semantics and cannot drift apart.
type Sweeper struct {
	store     store.Store
	locker    Locker
	threshold time.Duration
	schedule  string
	cron      *cron.Cron
}

// NewSweeper builds a sweeper with the given cron schedule (for example
// "@hourly") and idle threshold.
func NewSweeper(st store.Store, locker Locker, schedule string, threshold time.Duration) *Sweeper {
	if locker == nil {
		locker = NoopLocker{}
	}
	if schedule == "" {
		schedule = "@hourly"
	}
	return &Sweeper{
		store:     st,
		locker:    locker,
		threshold: threshold,
		schedule:  schedule,
	}
}

// Start registers the cron entry and begins sweeping in the background.
func (s *Sweeper) Start() error {
	s.cron = cron.New()
	if _, err := s.cron.AddFunc(s.schedule, s.Sweep); err != nil {
		return err
	}
	s.cron.Start()
	logx.Info().Str("schedule", s.schedule).Dur("threshold", s.threshold).Msg("sweep scheduled")
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}

// Sweep runs one pass. The leader lock keeps multiple instances from
// sweeping at once; the operation itself is idempotent so a duplicate run
// is wasteful, not harmful.
func (s *Sweeper) Sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	release, ok := s.locker.Acquire(ctx, "sweep", time.Minute)
	if !ok {
		logx.Debug().Msg("another instance is sweeping, skipping")
		return
	}
	defer release()

	n, err := s.store.ExpireStale(ctx, s.threshold)
	if err != nil {
		logx.Error().Err(err).Msg("sweep failed")
		return
	}
	if n > 0 {
		logx.Info().Int64("abandoned", n).Msg("sweep pass finished")
	}
}
