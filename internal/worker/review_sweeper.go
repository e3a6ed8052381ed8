package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/emmanuel-nwafor/foremade-backend-sub000/internal/observability"
	"github.com/emmanuel-nwafor/foremade-backend-sub000/internal/service"
)

// ReviewSweeper periodically escalates stale in-flight transactions to
// manual review and refreshes the wallet invariant gauges.
type ReviewSweeper struct {
	svc      *service.ReviewService
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewReviewSweeper constructs a sweeper with a default five minute interval.
func NewReviewSweeper(svc *service.ReviewService) *ReviewSweeper {
	return &ReviewSweeper{
		svc:      svc,
		interval: 5 * time.Minute,
		stopCh:   make(chan struct{}),
	}
}

// WithInterval updates the sweep interval.
func (w *ReviewSweeper) WithInterval(interval time.Duration) *ReviewSweeper {
	if interval > 0 {
		w.interval = interval
	}
	return w
}

// Start blocks and sweeps at the configured interval.
func (w *ReviewSweeper) Start(ctx context.Context) {
	zap.L().Info("review sweeper starting", zap.Duration("interval", w.interval))
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	// Run once immediately at startup.
	w.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			zap.L().Info("review sweeper context canceled")
			return
		case <-w.stopCh:
			zap.L().Info("review sweeper stop signal received")
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

// Stop stops the running sweeper loop.
func (w *ReviewSweeper) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
	})
}

// Run starts the sweeper in a goroutine and returns a stop function.
func (w *ReviewSweeper) Run(ctx context.Context) func() {
	go w.Start(ctx)
	return w.Stop
}

func (w *ReviewSweeper) runOnce(ctx context.Context) {
	if err := w.svc.Run(ctx); err != nil {
		observability.IncrementWorkerRun("review_sweeper", "failed")
		zap.L().Error("review sweep failed", zap.Error(err))
		return
	}
	observability.IncrementWorkerRun("review_sweeper", "success")
}
