package hold

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/bookease/bookease-backend/internal/pkg/clock"
)

// Sweeper periodically drops expired holds from a Store.
type Sweeper struct {
	store    Store
	clock    clock.Clock
	interval time.Duration
	log      *zap.Logger
}

func NewSweeper(store Store, clk clock.Clock, interval time.Duration, log *zap.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{store: store, clock: clk, interval: interval, log: log.Named("hold-sweeper")}
}

// Run blocks until ctx is cancelled.
func (w *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.SweepOnce(ctx)
		}
	}
}

func (w *Sweeper) SweepOnce(ctx context.Context) int {
	n, err := w.store.SweepExpired(ctx, w.clock.Now())
	if err != nil {
		w.log.Error("sweep expired holds failed", zap.Error(err))
		return n
	}
	if n > 0 {
		w.log.Info("released expired holds", zap.Int("count", n))
	}
	return n
}
