package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store with the same expiration semantics
// as the Postgres implementation. It backs tests and serves as the
// fail-soft fallback when the database cannot be opened.
type MemoryStore struct {
	mu         sync.RWMutex
	partitions map[Partition]map[string]Entry

	// now is swappable for expiry tests.
	now func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now}
}

// Init creates the fixed partition set. Idempotent.
func (m *MemoryStore) Init(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.partitions == nil {
		m.partitions = make(map[Partition]map[string]Entry, len(Partitions))
	}
	for _, p := range Partitions {
		if m.partitions[p] == nil {
			m.partitions[p] = make(map[string]Entry)
		}
	}
	return nil
}

func (m *MemoryStore) partition(p Partition) (map[string]Entry, error) {
	if !p.Valid() {
		return nil, ErrUnknownPartition
	}
	if m.partitions == nil {
		return nil, ErrStoreUnavailable
	}
	return m.partitions[p], nil
}

// Get returns the payload only while the entry is fresh.
func (m *MemoryStore) Get(ctx context.Context, p Partition, key string) (json.RawMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	part, err := m.partition(p)
	if err != nil {
		return nil, err
	}

	ent, ok := part[key]
	if !ok || !ent.ExpiresAt.After(m.now()) {
		return nil, ErrNotFound
	}
	return ent.Payload, nil
}

// Set upserts an entry, fully overwriting any previous payload.
func (m *MemoryStore) Set(ctx context.Context, p Partition, key string, payload json.RawMessage, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	part, err := m.partition(p)
	if err != nil {
		return err
	}

	storedAt := m.now()
	if expiresAt.Before(storedAt) {
		expiresAt = storedAt
	}

	part[key] = Entry{
		Partition: p,
		Key:       key,
		Payload:   payload,
		StoredAt:  storedAt,
		ExpiresAt: expiresAt,
	}
	return nil
}

// Delete removes an entry; missing keys are not an error.
func (m *MemoryStore) Delete(ctx context.Context, p Partition, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	part, err := m.partition(p)
	if err != nil {
		return err
	}
	delete(part, key)
	return nil
}

// SweepExpired deletes every entry with expiresAt <= now.
func (m *MemoryStore) SweepExpired(ctx context.Context, p Partition) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	part, err := m.partition(p)
	if err != nil {
		return 0, err
	}

	now := m.now()
	var deleted int64
	for key, ent := range part {
		if !ent.ExpiresAt.After(now) {
			delete(part, key)
			deleted++
		}
	}
	return deleted, nil
}

// Clear wipes one partition.
func (m *MemoryStore) Clear(ctx context.Context, p Partition) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.partition(p); err != nil {
		return err
	}
	m.partitions[p] = make(map[string]Entry)
	return nil
}

// Count returns the number of physically present entries, expired or not.
func (m *MemoryStore) Count(ctx context.Context, p Partition) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	part, err := m.partition(p)
	if err != nil {
		return 0, err
	}
	return int64(len(part)), nil
}

// Stats returns counts for all partitions.
func (m *MemoryStore) Stats(ctx context.Context) (Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.partitions == nil {
		return Stats{}, ErrStoreUnavailable
	}

	st := Stats{Counts: make(map[Partition]int64, len(Partitions))}
	for _, p := range Partitions {
		n := int64(len(m.partitions[p]))
		st.Counts[p] = n
		st.Total += n
	}
	return st, nil
}
