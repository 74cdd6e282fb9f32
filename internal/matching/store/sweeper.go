package store

import (
	"context"
	"time"

	"studymatch-workers/internal/common/logger"
)

// SweepFunc deletes expired snapshots and returns how many were removed.
type SweepFunc func(ctx context.Context) (int64, error)

// Sweeper runs an expired-snapshot sweep on a fixed interval until its
// context is cancelled. The sweep is idempotent, so overlapping with the
// cleanup-snapshots worker is harmless.
type Sweeper struct {
	sweep    SweepFunc
	interval time.Duration
	log      logger.Logger
}

// NewSweeper builds a Sweeper calling sweep every interval.
func NewSweeper(sweep SweepFunc, interval time.Duration, log logger.Logger) *Sweeper {
	return &Sweeper{sweep: sweep, interval: interval, log: log}
}

// Run blocks, sweeping once immediately and then on every tick, until ctx
// is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	s.runOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Sweeper) runOnce(ctx context.Context) {
	deleted, err := s.sweep(ctx)
	if err != nil {
		s.log.Error("snapshot sweep failed", map[string]interface{}{"error": err.Error()})
		return
	}
	if deleted > 0 {
		s.log.Info("snapshot sweep completed", map[string]interface{}{"deleted": deleted})
	}
}
