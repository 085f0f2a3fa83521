package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// Errors
var (
	ErrNotFound         = errors.New("cache: entry not found")
	ErrStoreUnavailable = errors.New("cache: store unavailable")
	ErrUnknownPartition = errors.New("cache: unknown partition")
)

// Partition is a named, independently-keyed collection. The set is fixed
// at initialization.
type Partition string

const (
	PartitionQuotes       Partition = "quotes"       // key = ticker
	PartitionHistorical   Partition = "historical"   // key = "<ticker>_<period>"
	PartitionFundamentals Partition = "fundamentals" // key = ticker
	PartitionAPITracker   Partition = "api_tracker"  // key = generated id
)

// Partitions lists every partition in a stable order.
var Partitions = []Partition{
	PartitionQuotes,
	PartitionHistorical,
	PartitionFundamentals,
	PartitionAPITracker,
}

// Valid reports whether p is one of the fixed partitions.
func (p Partition) Valid() bool {
	switch p {
	case PartitionQuotes, PartitionHistorical, PartitionFundamentals, PartitionAPITracker:
		return true
	}
	return false
}

// Entry is a single cached record. Invariant: ExpiresAt >= StoredAt.
// Once now >= ExpiresAt the entry is logically absent even if a sweep
// has not yet deleted it.
type Entry struct {
	Partition Partition
	Key       string
	Payload   json.RawMessage
	StoredAt  time.Time
	ExpiresAt time.Time
}

// Stats reports per-partition entry counts, including rows that are
// expired but not yet swept. Used to trigger quota-driven cleanup.
type Stats struct {
	Counts map[Partition]int64
	Total  int64
}

// Store is a persistent key-value store partitioned by data kind, with
// expiration-aware reads. Implementations must serialize operations on
// the same key; there is no ordering guarantee across distinct keys and
// no cross-partition transaction.
type Store interface {
	// Init opens or creates the partition set. Idempotent.
	Init(ctx context.Context) error

	// Get returns the payload only if the entry exists and has not
	// expired. An expired-but-unswept entry is ErrNotFound.
	Get(ctx context.Context, p Partition, key string) (json.RawMessage, error)

	// Set upserts an entry, fully overwriting any previous payload.
	Set(ctx context.Context, p Partition, key string, payload json.RawMessage, expiresAt time.Time) error

	// Delete removes an entry. Deleting a missing key is not an error.
	Delete(ctx context.Context, p Partition, key string) error

	// SweepExpired deletes every entry with expiresAt <= now and returns
	// the number deleted. Safe to run concurrently with Get/Set.
	SweepExpired(ctx context.Context, p Partition) (int64, error)

	// Clear wipes one partition unconditionally.
	Clear(ctx context.Context, p Partition) error

	// Count returns the number of physically present entries.
	Count(ctx context.Context, p Partition) (int64, error)

	// Stats returns counts for all partitions.
	Stats(ctx context.Context) (Stats, error)
}
