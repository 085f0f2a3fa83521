package app

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/quotedash/streamcache/internal/cache"
)

func newQuotaStore(t *testing.T) *cache.MemoryStore {
	t.Helper()
	store := cache.NewMemoryStore()
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("init store: %v", err)
	}
	return store
}

func fill(t *testing.T, store cache.Store, p cache.Partition, n int, expiresAt time.Time) {
	t.Helper()
	for i := 0; i < n; i++ {
		key := fmt.Sprintf("%s-%d", p, i)
		if err := store.Set(context.Background(), p, key, json.RawMessage(`{}`), expiresAt); err != nil {
			t.Fatalf("fill %s: %v", p, err)
		}
	}
}

func TestEnforceQuotaUnderQuotaIsNoop(t *testing.T) {
	store := newQuotaStore(t)
	live := time.Now().Add(time.Hour)
	fill(t, store, cache.PartitionQuotes, 5, live)

	j := NewJanitor(store, 100, time.Minute, nil)
	j.enforceQuota(context.Background())

	count, err := store.Count(context.Background(), cache.PartitionQuotes)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 5 {
		t.Errorf("quotes count = %d, want 5", count)
	}
}

func TestEnforceQuotaSweepsExpiredBeforeClearing(t *testing.T) {
	store := newQuotaStore(t)
	live := time.Now().Add(time.Hour)
	expired := time.Now().Add(-time.Hour)

	fill(t, store, cache.PartitionQuotes, 10, expired)
	fill(t, store, cache.PartitionFundamentals, 5, live)

	// 15 total, 10 of them expired. Sweeping alone gets under quota.
	j := NewJanitor(store, 8, time.Minute, nil)
	j.enforceQuota(context.Background())

	fundamentals, err := store.Count(context.Background(), cache.PartitionFundamentals)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if fundamentals != 5 {
		t.Errorf("fundamentals count = %d, want 5 (live data must survive a sweep-only reclaim)", fundamentals)
	}

	quotes, err := store.Count(context.Background(), cache.PartitionQuotes)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if quotes != 0 {
		t.Errorf("quotes count = %d, want 0", quotes)
	}
}

func TestEnforceQuotaClearsLowestPriorityFirst(t *testing.T) {
	store := newQuotaStore(t)
	live := time.Now().Add(time.Hour)

	fill(t, store, cache.PartitionQuotes, 5, live)
	fill(t, store, cache.PartitionHistorical, 5, live)
	fill(t, store, cache.PartitionFundamentals, 5, live)
	fill(t, store, cache.PartitionAPITracker, 5, live)

	// 20 live entries, quota 12. Clearing quotes (low) leaves 15, then
	// api_tracker (low) leaves 10. Historical and fundamentals survive.
	j := NewJanitor(store, 12, time.Minute, nil)
	j.enforceQuota(context.Background())

	counts := map[cache.Partition]int64{}
	for _, p := range cache.Partitions {
		n, err := store.Count(context.Background(), p)
		if err != nil {
			t.Fatalf("count %s: %v", p, err)
		}
		counts[p] = n
	}

	if counts[cache.PartitionQuotes] != 0 {
		t.Errorf("quotes count = %d, want 0", counts[cache.PartitionQuotes])
	}
	if counts[cache.PartitionAPITracker] != 0 {
		t.Errorf("api_tracker count = %d, want 0", counts[cache.PartitionAPITracker])
	}
	if counts[cache.PartitionHistorical] != 5 {
		t.Errorf("historical count = %d, want 5", counts[cache.PartitionHistorical])
	}
	if counts[cache.PartitionFundamentals] != 5 {
		t.Errorf("fundamentals count = %d, want 5", counts[cache.PartitionFundamentals])
	}
}

func TestClearOrderLowestPriorityFirst(t *testing.T) {
	order := clearOrder()
	if len(order) != len(cache.Partitions) {
		t.Fatalf("order length = %d, want %d", len(order), len(cache.Partitions))
	}
	// Fundamentals carry the highest priority and must be cleared last.
	if order[len(order)-1] != cache.PartitionFundamentals {
		t.Errorf("last cleared = %s, want %s", order[len(order)-1], cache.PartitionFundamentals)
	}
	if order[0] != cache.PartitionQuotes {
		t.Errorf("first cleared = %s, want %s", order[0], cache.PartitionQuotes)
	}
}

func TestSweeperRemovesExpiredEntries(t *testing.T) {
	store := newQuotaStore(t)
	expired := time.Now().Add(-time.Hour)
	live := time.Now().Add(time.Hour)

	fill(t, store, cache.PartitionQuotes, 3, expired)
	fill(t, store, cache.PartitionHistorical, 2, live)

	s := NewSweeper(store, time.Hour, nil)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start sweeper: %v", err)
	}

	// The initial sweep runs asynchronously right after Start.
	deadline := time.Now().Add(2 * time.Second)
	for {
		n, err := store.Count(context.Background(), cache.PartitionQuotes)
		if err != nil {
			t.Fatalf("count: %v", err)
		}
		if n == 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("expired quotes not swept, %d remain", n)
		}
		time.Sleep(10 * time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("stop sweeper: %v", err)
	}

	liveCount, err := store.Count(context.Background(), cache.PartitionHistorical)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if liveCount != 2 {
		t.Errorf("historical count = %d, want 2", liveCount)
	}
}
