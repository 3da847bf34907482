package dbpool

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/cern-fcc/datacatalog/internal/apperr"
)

// schemaAdvisoryLockID is the fixed cross-process advisory lock id used to
// serialize DDL application across replicas booting simultaneously, per
// spec.md §4.9. The constant mirrors the original system's
// SCHEMA_ADVISORY_LOCK_ID so operators migrating data see the same lock
// behavior.
const schemaAdvisoryLockID = 1234567890

// sentinelFunction is checked for existence to decide whether the bundled
// DDL has already been applied (spec.md §4.9's "sentinel for whether our
// DDL has been applied").
const sentinelFunction = "jsonb_values_to_text"

// Bootstrap applies ddl exactly once across any number of concurrently
// booting replicas: it takes the advisory lock, checks for the sentinel
// function, and if absent runs ddl inside a transaction before releasing
// the lock. Safe to call from every replica at startup.
func Bootstrap(ctx context.Context, pool *Pool, ddl string) error {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return apperr.Configuration("bootstrap: acquire connection", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", int64(schemaAdvisoryLockID)); err != nil {
		return apperr.Configuration("bootstrap: acquire advisory lock", err)
	}
	defer func() {
		if _, err := conn.Exec(context.Background(), "SELECT pg_advisory_unlock($1)", int64(schemaAdvisoryLockID)); err != nil {
			zap.L().Error("bootstrap: failed to release advisory lock", zap.Error(err))
		}
	}()

	applied, err := schemaApplied(ctx, conn)
	if err != nil {
		return apperr.Configuration("bootstrap: check sentinel function", err)
	}
	if applied {
		zap.L().Info("bootstrap: schema already applied, skipping DDL")
		return nil
	}

	tx, err := conn.Begin(ctx)
	if err != nil {
		return apperr.Configuration("bootstrap: begin transaction", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op once committed

	if _, err := tx.Exec(ctx, ddl); err != nil {
		return apperr.Configuration("bootstrap: apply DDL", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return apperr.Configuration("bootstrap: commit DDL", err)
	}

	zap.L().Info("bootstrap: schema applied")
	return nil
}

func schemaApplied(ctx context.Context, conn *pgxpool.Conn) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM pg_proc WHERE proname = $1)`
	var exists bool
	if err := conn.QueryRow(ctx, query, sentinelFunction).Scan(&exists); err != nil {
		if err == pgx.ErrNoRows {
			return false, nil
		}
		return false, err
	}
	return exists, nil
}
