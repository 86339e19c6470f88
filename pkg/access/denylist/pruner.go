package denylist

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/blulok/blulok-cloud/internal/logger"
	accessmetrics "github.com/blulok/blulok-cloud/pkg/access/metrics"
)

// DefaultPruneInterval is the sweep period when the operator has not
// configured one.
const DefaultPruneInterval = 5 * time.Minute

// ExpiredDeleter is the slice of the store the pruner needs.
type ExpiredDeleter interface {
	DeleteExpiredDenylist(ctx context.Context, now time.Time) (int64, error)
}

// Pruner periodically deletes denylist rows whose expires_at has passed.
// Deletion is silent: locks drop their own entries at the embedded exp, so
// no command is sent.
type Pruner struct {
	store    ExpiredDeleter
	interval time.Duration
	clock    clockwork.Clock
	metrics  accessmetrics.Metrics
}

// NewPruner creates a pruner. A zero interval selects DefaultPruneInterval.
func NewPruner(store ExpiredDeleter, interval time.Duration, clock clockwork.Clock, m accessmetrics.Metrics) *Pruner {
	if interval == 0 {
		interval = DefaultPruneInterval
	}
	if m == nil {
		m = accessmetrics.NewNop()
	}
	return &Pruner{
		store:    store,
		interval: interval,
		clock:    clock,
		metrics:  m,
	}
}

// Sweep deletes all currently expired entries and returns the count
// removed. Exposed as an on-demand operation for administrators.
func (p *Pruner) Sweep(ctx context.Context) (int64, error) {
	removed, err := p.store.DeleteExpiredDenylist(ctx, p.clock.Now())
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		logger.Debug("pruned expired denylist entries", "count", removed)
	}
	p.metrics.EntriesPruned(removed)
	return removed, nil
}

// Run sweeps on the configured interval until the context is cancelled.
// Sweep failures are logged; the next tick retries.
func (p *Pruner) Run(ctx context.Context) {
	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()

	logger.Info("denylist pruner started", "interval", p.interval)
	for {
		select {
		case <-ctx.Done():
			logger.Info("denylist pruner stopped")
			return
		case <-ticker.Chan():
			if _, err := p.Sweep(ctx); err != nil {
				logger.Error("denylist prune sweep failed", "error", err)
			}
		}
	}
}
