package app

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/quotedash/streamcache/internal/cache"
)

// Sweeper periodically deletes expired cache entries. Expired entries
// are already invisible to reads; the sweep reclaims their storage.
type Sweeper struct {
	store    cache.Store
	interval time.Duration
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSweeper creates a sweeper running at the given interval.
func NewSweeper(store cache.Store, interval time.Duration, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		store:    store,
		interval: interval,
		logger:   logger,
	}
}

// Start begins the sweep loop.
func (s *Sweeper) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go s.run()

	s.logger.Info("cache sweeper started", "interval", s.interval)
	return nil
}

// Stop gracefully shuts down the sweeper.
func (s *Sweeper) Stop(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("cache sweeper stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Sweeper) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// Sweep immediately on start.
	s.sweepAll()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.sweepAll()
		}
	}
}

func (s *Sweeper) sweepAll() {
	start := time.Now()
	var total int64

	for _, p := range cache.Partitions {
		n, err := s.store.SweepExpired(s.ctx, p)
		if err != nil {
			s.logger.Warn("sweep failed", "partition", string(p), "error", err)
			continue
		}
		total += n
	}

	if total > 0 {
		s.logger.Info("sweep completed",
			"deleted", total,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}
