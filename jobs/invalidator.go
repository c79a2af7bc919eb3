package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/invoicely/invoicely/internal/ledger"
)

var _ ledger.Invalidator = (*CacheRefresher)(nil)

// Bumper advances the analytics cache version.
type Bumper interface {
	Invalidate(ctx context.Context) error
}

// CacheRefresher invalidates cached analytics after a ledger write and
// schedules a warmup so the next dashboard read is served hot.
type CacheRefresher struct {
	cache    Bumper
	enqueuer Enqueuer
	delay    time.Duration
	logger   *slog.Logger
}

// NewCacheRefresher wires a refresher. enqueuer may be nil, in which case
// writes only invalidate.
func NewCacheRefresher(cache Bumper, enqueuer Enqueuer, delay time.Duration, logger *slog.Logger) *CacheRefresher {
	if logger == nil {
		logger = slog.Default()
	}
	return &CacheRefresher{cache: cache, enqueuer: enqueuer, delay: delay, logger: logger}
}

// Invalidate bumps the cache version. A failed enqueue is logged and not
// returned: the write already succeeded and stale entries are unreachable.
func (c *CacheRefresher) Invalidate(ctx context.Context) error {
	if c == nil {
		return nil
	}
	if c.cache != nil {
		if err := c.cache.Invalidate(ctx); err != nil {
			return err
		}
	}
	if c.enqueuer == nil {
		return nil
	}
	if _, err := c.enqueuer.EnqueueWarmup(ctx, AnalyticsWarmupPayload{Reason: ReasonWrite}, c.delay); err != nil {
		c.logger.Warn("enqueue analytics warmup", slog.Any("error", err))
	}
	return nil
}
