// Package dbpool wraps pgxpool.Pool with the scoped-acquisition and
// bootstrap behavior spec.md §4.9/§5 requires: a fixed-range pool, a
// helper that guarantees connection release on every exit path, and a
// per-query timeout bounding tail latency.
package dbpool

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const (
	defaultMinConns = 5
	defaultMaxConns = 20
)

// Config is the subset of configuration the pool needs. Host/port/user/
// password/db assemble the DSN per spec.md §6.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string

	QueryTimeout time.Duration // default 30s, per spec.md §5
}

func (c Config) dsn() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s", c.User, c.Password, c.Host, c.Port, c.Database)
}

// Pool is the connection pool used by every query-executing component.
type Pool struct {
	*pgxpool.Pool
	queryTimeout time.Duration
}

// Open builds the pool, applying the min/max range spec.md §4.9 specifies.
func Open(ctx context.Context, cfg Config) (*Pool, error) {
	return OpenDSN(ctx, cfg.dsn(), cfg.QueryTimeout)
}

// OpenDSN builds the pool from a pre-assembled connection string, for
// callers that already carry one (a test sandbox's schema-scoped DSN, a
// DATABASE_URL-style deployment) instead of discrete host/port/user fields.
func OpenDSN(ctx context.Context, dsn string, queryTimeout time.Duration) (*Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("dbpool: parse config: %w", err)
	}
	poolCfg.MinConns = defaultMinConns
	poolCfg.MaxConns = defaultMaxConns

	timeout := queryTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	raw, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("dbpool: open: %w", err)
	}

	zap.L().Info("dbpool: pool opened",
		zap.Int32("min_conns", poolCfg.MinConns),
		zap.Int32("max_conns", poolCfg.MaxConns),
	)

	return &Pool{Pool: raw, queryTimeout: timeout}, nil
}

// WithConn acquires a connection for the duration of fn and releases it on
// every exit path, including panics propagated from fn. Use this whenever
// a caller needs more than one round-trip on the same connection (C6's
// COUNT-then-SELECT discipline, C7's transaction).
func (p *Pool) WithConn(ctx context.Context, fn func(ctx context.Context, conn *pgxpool.Conn) error) error {
	conn, err := p.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("dbpool: acquire: %w", err)
	}
	defer conn.Release()

	ctx, cancel := context.WithTimeout(ctx, p.queryTimeout)
	defer cancel()

	return fn(ctx, conn)
}

// Close releases the underlying pool's resources.
func (p *Pool) Close() {
	p.Pool.Close()
}
