package store

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
)

// DefaultFuzzyThreshold is the minimum trigram similarity at which two event
// titles in the same city on the same day are considered duplicates.
const DefaultFuzzyThreshold = 0.6

// Options tunes a PostgresStore.
type Options struct {
	MaxConns       int32
	FuzzyThreshold float64
}

// PostgresStore implements Store on a pgx pool.
type PostgresStore struct {
	pool           Pool
	fuzzyThreshold float64
	closeOnce      sync.Once
}

var _ Store = (*PostgresStore)(nil)

// NewPostgres connects a bounded pool to connString and verifies it.
func NewPostgres(ctx context.Context, connString string, opts Options) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	if opts.MaxConns > 0 {
		maxConns = opts.MaxConns
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return New(pool, opts.FuzzyThreshold), nil
}

// New wraps an existing pool. A non-positive threshold uses the default.
func New(pool Pool, fuzzyThreshold float64) *PostgresStore {
	if fuzzyThreshold <= 0 {
		fuzzyThreshold = DefaultFuzzyThreshold
	}
	return &PostgresStore{pool: pool, fuzzyThreshold: fuzzyThreshold}
}

// Pool returns the underlying pool for components that query directly,
// such as the source registry.
func (s *PostgresStore) Pool() Pool {
	return s.pool
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

// Close releases the pool. Later calls are no-ops.
func (s *PostgresStore) Close() {
	s.closeOnce.Do(s.pool.Close)
}
