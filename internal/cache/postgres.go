package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// partition -> table name. Identifiers are fixed here so partition names
// never reach SQL text unvalidated.
var partitionTables = map[Partition]string{
	PartitionQuotes:       "cache_quotes",
	PartitionHistorical:   "cache_historical",
	PartitionFundamentals: "cache_fundamentals",
	PartitionAPITracker:   "cache_api_tracker",
}

// PostgresStore persists cache entries in one table per partition, each
// indexed on expires_at for sweeping. If the store fails to open, every
// call fails with ErrStoreUnavailable until a later Init succeeds.
type PostgresStore struct {
	db     *pgxpool.Pool
	logger *slog.Logger

	mu    sync.RWMutex
	ready bool
}

// NewPostgresStore wraps an existing connection pool. Call Init before use.
func NewPostgresStore(db *pgxpool.Pool, logger *slog.Logger) *PostgresStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresStore{db: db, logger: logger}
}

// Init creates the partition tables and expiry indexes. Idempotent; safe
// under repeated calls. A failed Init leaves the store unavailable.
func (s *PostgresStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.Ping(ctx); err != nil {
		s.ready = false
		return fmt.Errorf("%w: ping: %v", ErrStoreUnavailable, err)
	}

	for _, p := range Partitions {
		table := partitionTables[p]
		ddl := fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %[1]s (
				key        text PRIMARY KEY,
				payload    jsonb NOT NULL,
				stored_at  timestamptz NOT NULL,
				expires_at timestamptz NOT NULL
			);
			CREATE INDEX IF NOT EXISTS %[1]s_expires_at_idx ON %[1]s (expires_at);
		`, table)
		if _, err := s.db.Exec(ctx, ddl); err != nil {
			s.ready = false
			return fmt.Errorf("%w: create %s: %v", ErrStoreUnavailable, table, err)
		}
	}

	// api_tracker rows carry a provider field; index it for the usage views.
	if _, err := s.db.Exec(ctx, `
		CREATE INDEX IF NOT EXISTS cache_api_tracker_provider_idx
		ON cache_api_tracker ((payload->>'provider'), stored_at)
	`); err != nil {
		s.ready = false
		return fmt.Errorf("%w: create provider index: %v", ErrStoreUnavailable, err)
	}

	s.ready = true
	s.logger.Info("cache store initialized", "partitions", len(Partitions))
	return nil
}

func (s *PostgresStore) table(p Partition) (string, error) {
	table, ok := partitionTables[p]
	if !ok {
		return "", ErrUnknownPartition
	}
	s.mu.RLock()
	ready := s.ready
	s.mu.RUnlock()
	if !ready {
		return "", ErrStoreUnavailable
	}
	return table, nil
}

// Get returns the payload only while expires_at is in the future. The
// freshness check happens in the query so an unswept expired row can
// never be served.
func (s *PostgresStore) Get(ctx context.Context, p Partition, key string) (json.RawMessage, error) {
	table, err := s.table(p)
	if err != nil {
		return nil, err
	}

	var payload json.RawMessage
	query := fmt.Sprintf(`SELECT payload FROM %s WHERE key = $1 AND expires_at > now()`, table)
	err = s.db.QueryRow(ctx, query, key).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("cache get %s/%s: %w", p, key, err)
	}
	return payload, nil
}

// Set upserts an entry, fully overwriting any previous payload.
func (s *PostgresStore) Set(ctx context.Context, p Partition, key string, payload json.RawMessage, expiresAt time.Time) error {
	table, err := s.table(p)
	if err != nil {
		return err
	}

	storedAt := time.Now()
	if expiresAt.Before(storedAt) {
		expiresAt = storedAt
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (key, payload, stored_at, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (key) DO UPDATE SET
			payload    = EXCLUDED.payload,
			stored_at  = EXCLUDED.stored_at,
			expires_at = EXCLUDED.expires_at
	`, table)

	if _, err := s.db.Exec(ctx, query, key, payload, storedAt, expiresAt); err != nil {
		return fmt.Errorf("cache set %s/%s: %w", p, key, err)
	}
	return nil
}

// Delete removes an entry; missing keys are not an error.
func (s *PostgresStore) Delete(ctx context.Context, p Partition, key string) error {
	table, err := s.table(p)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`DELETE FROM %s WHERE key = $1`, table)
	if _, err := s.db.Exec(ctx, query, key); err != nil {
		return fmt.Errorf("cache delete %s/%s: %w", p, key, err)
	}
	return nil
}

// SweepExpired deletes every row with expires_at <= now via the expiry
// index and returns the count deleted.
func (s *PostgresStore) SweepExpired(ctx context.Context, p Partition) (int64, error) {
	table, err := s.table(p)
	if err != nil {
		return 0, err
	}

	query := fmt.Sprintf(`DELETE FROM %s WHERE expires_at <= now()`, table)
	ct, err := s.db.Exec(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("cache sweep %s: %w", p, err)
	}
	return ct.RowsAffected(), nil
}

// Clear wipes one partition.
func (s *PostgresStore) Clear(ctx context.Context, p Partition) error {
	table, err := s.table(p)
	if err != nil {
		return err
	}

	if _, err := s.db.Exec(ctx, fmt.Sprintf(`TRUNCATE %s`, table)); err != nil {
		return fmt.Errorf("cache clear %s: %w", p, err)
	}
	return nil
}

// Count returns the number of physically present rows, expired or not.
func (s *PostgresStore) Count(ctx context.Context, p Partition) (int64, error) {
	table, err := s.table(p)
	if err != nil {
		return 0, err
	}

	var n int64
	if err := s.db.QueryRow(ctx, fmt.Sprintf(`SELECT count(*) FROM %s`, table)).Scan(&n); err != nil {
		return 0, fmt.Errorf("cache count %s: %w", p, err)
	}
	return n, nil
}

// Stats returns counts for all partitions.
func (s *PostgresStore) Stats(ctx context.Context) (Stats, error) {
	st := Stats{Counts: make(map[Partition]int64, len(Partitions))}
	for _, p := range Partitions {
		n, err := s.Count(ctx, p)
		if err != nil {
			return Stats{}, err
		}
		st.Counts[p] = n
		st.Total += n
	}
	return st, nil
}
