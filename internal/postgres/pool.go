// Package postgres builds the shared pgx connection pool and its query
// tracing: otelpgx spans plus a structured log line and metrics observer per query.
package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/exaring/otelpgx"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	defaultMaxConns        = 10
	defaultMaxConnIdleTime = 5 * time.Minute
)

// ParseConfig parses databaseURL and installs the query tracer. Pool sizing
// given in the URL (pool_max_conns and friends) is kept.
func ParseConfig(databaseURL string) (*pgxpool.Config, error) {
	pc, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	// pgxpool fills its own defaults, so only the URL can tell us what was set.
	if !strings.Contains(pc.ConnString(), "pool_max_conns") {
		pc.MaxConns = defaultMaxConns
	}
	if !strings.Contains(pc.ConnString(), "pool_max_conn_idle_time") {
		pc.MaxConnIdleTime = defaultMaxConnIdleTime
	}
	pc.ConnConfig.Tracer = wrapQueryTracer(otelpgx.NewTracer())
	return pc, nil
}

// NewPool connects to PostgreSQL and verifies the connection.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pc, err := ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.NewWithConfig: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return pool, nil
}
