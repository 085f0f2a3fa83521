package app

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/quotedash/streamcache/internal/cache"
	"github.com/quotedash/streamcache/internal/policy"
)

// partitionCategory maps each cache partition onto the data category
// whose cleanup priority governs it. Usage rows are the cheapest to
// lose, quotes next.
var partitionCategory = map[cache.Partition]policy.Category{
	cache.PartitionQuotes:       policy.CategoryQuote,
	cache.PartitionHistorical:   policy.CategoryHistory,
	cache.PartitionFundamentals: policy.CategoryFundamentals,
	cache.PartitionAPITracker:   policy.CategoryNews,
}

// clearOrder lists partitions lowest cleanup priority first.
func clearOrder() []cache.Partition {
	order := make([]cache.Partition, len(cache.Partitions))
	copy(order, cache.Partitions)
	sort.SliceStable(order, func(i, j int) bool {
		return policy.PriorityOf(partitionCategory[order[i]]) < policy.PriorityOf(partitionCategory[order[j]])
	})
	return order
}

// Janitor enforces the total entry quota. When the store grows past
// MaxEntries it sweeps expired rows first, then clears whole partitions
// lowest priority first until back under quota.
type Janitor struct {
	store      cache.Store
	maxEntries int64
	interval   time.Duration
	logger     *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewJanitor creates a quota janitor running at the given interval.
func NewJanitor(store cache.Store, maxEntries int64, interval time.Duration, logger *slog.Logger) *Janitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Janitor{
		store:      store,
		maxEntries: maxEntries,
		interval:   interval,
		logger:     logger,
	}
}

// Start begins the quota check loop.
func (j *Janitor) Start(ctx context.Context) error {
	j.ctx, j.cancel = context.WithCancel(ctx)

	j.wg.Add(1)
	go j.run()

	j.logger.Info("cache janitor started",
		"max_entries", j.maxEntries,
		"interval", j.interval,
	)
	return nil
}

// Stop gracefully shuts down the janitor.
func (j *Janitor) Stop(ctx context.Context) error {
	if j.cancel != nil {
		j.cancel()
	}

	done := make(chan struct{})
	go func() {
		j.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		j.logger.Info("cache janitor stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (j *Janitor) run() {
	defer j.wg.Done()

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-j.ctx.Done():
			return
		case <-ticker.C:
			j.enforceQuota(j.ctx)
		}
	}
}

// enforceQuota runs one quota check.
func (j *Janitor) enforceQuota(ctx context.Context) {
	stats, err := j.store.Stats(ctx)
	if err != nil {
		j.logger.Warn("quota check failed", "error", err)
		return
	}
	if stats.Total <= j.maxEntries {
		return
	}

	j.logger.Warn("cache over quota, reclaiming",
		"total", stats.Total,
		"max_entries", j.maxEntries,
	)

	// Reclaim expired rows before sacrificing live ones.
	remaining := stats.Total
	for _, p := range cache.Partitions {
		n, err := j.store.SweepExpired(ctx, p)
		if err != nil {
			j.logger.Warn("sweep failed", "partition", string(p), "error", err)
			continue
		}
		remaining -= n
	}
	if remaining <= j.maxEntries {
		return
	}

	for _, p := range clearOrder() {
		count, err := j.store.Count(ctx, p)
		if err != nil {
			j.logger.Warn("count failed", "partition", string(p), "error", err)
			continue
		}
		if count == 0 {
			continue
		}

		if err := j.store.Clear(ctx, p); err != nil {
			j.logger.Warn("clear failed", "partition", string(p), "error", err)
			continue
		}
		remaining -= count
		j.logger.Info("cleared partition for quota",
			"partition", string(p),
			"freed", count,
			"remaining", remaining,
		)

		if remaining <= j.maxEntries {
			return
		}
	}
}
