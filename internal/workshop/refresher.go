package workshop

import (
	"context"
	"time"

	"github.com/example/workshop-booking/internal/logger"
)

// Refresher keeps the upstream lookups warm in the cache.
type Refresher struct {
	Service  *Service
	Interval time.Duration
}

func (r *Refresher) Run(ctx context.Context) error {
	t := time.NewTicker(r.Interval)
	defer t.Stop()

	// kick immediately
	r.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			r.tick(ctx)
		}
	}
}

func (r *Refresher) tick(ctx context.Context) {
	start := time.Now()
	if err := r.Service.Refresh(ctx); err != nil {
		logger.Warn("refresh failed", "err", err)
		return
	}
	logger.Debug("refresh done", "took", time.Since(start))
}
