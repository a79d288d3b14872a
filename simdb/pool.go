// Package simdb is the schema-aware relational database substrate: a
// run-scoped view over PostgreSQL that creates a run-specific schema on
// first use, exposes capability-typed writers (metadata, environment
// cells, organism rows + per-tick states) and a reader used by the
// out-of-scope read API, per SPEC §3/§4.6.
package simdb

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Pool wraps a PostgreSQL connection pool with direct SQL access via pgx,
// adapted from the teacher's PostgresDB (pgx pool wrapper) into the
// resource this package's writers/reader share.
type Pool struct {
	pool         *pgxpool.Pool
	resourceName string
}

// Open creates a pool and verifies connectivity with a ping.
func Open(ctx context.Context, connString, resourceName string) (*Pool, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("simdb: create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("simdb: ping database: %w", err)
	}
	return &Pool{pool: pool, resourceName: resourceName}, nil
}

// Close closes the underlying connection pool.
func (p *Pool) Close() error {
	p.pool.Close()
	return nil
}

// Raw returns the underlying pgxpool.Pool for advanced operations
// (transactions, batch statements) that writers need beyond Exec/Query.
func (p *Pool) Raw() *pgxpool.Pool {
	return p.pool
}
