package worker

import (
	"context"
	"time"

	"domore/internal/logger"

	"go.uber.org/zap"
)

// Sweeper drops session bookkeeping whose tokens expired before now.
type Sweeper interface {
	Sweep(now time.Time) int
}

// SessionWorker periodically sweeps expired revocations from the identity
// provider so sign-outs do not accumulate for the life of the process.
type SessionWorker struct {
	sweeper  Sweeper
	interval time.Duration
	now      func() time.Time
}

func NewSessionWorker(sweeper Sweeper, interval *time.Duration) *SessionWorker {
	intervalToSet := 5 * time.Minute
	if interval != nil && *interval > 0 {
		intervalToSet = *interval
	}
	return &SessionWorker{
		sweeper:  sweeper,
		interval: intervalToSet,
		now:      time.Now,
	}
}

// Start blocks until ctx is done.
func (w *SessionWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	logger.Info("Worker: session sweeper started", zap.Duration("interval", w.interval))
	for {
		select {
		case <-ticker.C:
			w.Check()
		case <-ctx.Done():
			logger.Info("Worker: session sweeper stopping")
			return
		}
	}
}

// Check runs one sweep and returns how many entries were dropped.
func (w *SessionWorker) Check() int {
	start := time.Now()
	dropped := w.sweeper.Sweep(w.now())
	logger.Info(
		"Worker: session sweep finished",
		zap.Duration("ms", time.Since(start)),
		zap.Int("dropped", dropped),
	)
	return dropped
}
