package store

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"studymatch-workers/internal/common/logger"
)

func TestSweeperRunsOnIntervalUntilCancelled(t *testing.T) {
	var calls int64
	sweep := func(ctx context.Context) (int64, error) {
		atomic.AddInt64(&calls, 1)
		return 2, nil
	}

	sweeper := NewSweeper(sweep, 10*time.Millisecond, logger.NewTestLogger(t))

	ctx, cancel := context.WithTimeout(context.Background(), 55*time.Millisecond)
	defer cancel()
	sweeper.Run(ctx)

	// One immediate sweep plus at least a few ticks.
	assert.GreaterOrEqual(t, atomic.LoadInt64(&calls), int64(3))
}

func TestSweeperSurvivesSweepErrors(t *testing.T) {
	var calls int64
	sweep := func(ctx context.Context) (int64, error) {
		atomic.AddInt64(&calls, 1)
		return 0, assert.AnError
	}

	sweeper := NewSweeper(sweep, 10*time.Millisecond, logger.NewTestLogger(t))

	ctx, cancel := context.WithTimeout(context.Background(), 35*time.Millisecond)
	defer cancel()
	sweeper.Run(ctx)

	assert.GreaterOrEqual(t, atomic.LoadInt64(&calls), int64(2))
}
