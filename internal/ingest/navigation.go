package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/cern-fcc/datacatalog/internal/apperr"
)

// querier is satisfied by pgx.Tx, the only executor getOrCreate is called
// with — every navigation resolution in a batch runs inside the batch's
// single transaction, per spec.md §4.7's atomicity requirement.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// getOrCreate resolves name to table's primary key, inserting a new row
// when none exists. extraColumns/extraValues carry additional columns to
// set on insert (detectors additionally carry their resolved
// accelerator_id). When a concurrent ingest has inserted the same name
// first, the INSERT ... ON CONFLICT DO NOTHING returns no row without
// aborting the transaction, and it re-selects and returns the winning
// row's id, per spec.md §4.7.
func getOrCreate(ctx context.Context, q querier, table, pkColumn, name string, extraColumns []string, extraValues []any) (int64, error) {
	if id, err := lookupByName(ctx, q, table, pkColumn, name); err == nil {
		return id, nil
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return 0, apperr.BatchImport(fmt.Sprintf("failed to look up %s %q", table, name)).WithDetail(err.Error())
	}

	columns := append([]string{"name"}, extraColumns...)
	values := append([]any{name}, extraValues...)
	placeholders := make([]string, len(columns))
	for i := range columns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}

	insertSQL := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT DO NOTHING RETURNING %s",
		table, strings.Join(columns, ", "), strings.Join(placeholders, ", "), pkColumn)

	var id int64
	err := q.QueryRow(ctx, insertSQL, values...).Scan(&id)
	if err == nil {
		return id, nil
	}

	var pgErr *pgconn.PgError
	if errors.Is(err, pgx.ErrNoRows) || (errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation) {
		winnerID, lookupErr := lookupByName(ctx, q, table, pkColumn, name)
		if lookupErr != nil {
			return 0, apperr.BatchImport(fmt.Sprintf("lost race creating %s %q but could not find the winner", table, name))
		}
		return winnerID, nil
	}
	return 0, apperr.BatchImport(fmt.Sprintf("failed to create %s %q", table, name)).WithDetail(err.Error())
}

func lookupByName(ctx context.Context, q querier, table, pkColumn, name string) (int64, error) {
	sql := fmt.Sprintf("SELECT %s FROM %s WHERE name ILIKE $1", pkColumn, table)
	var id int64
	err := q.QueryRow(ctx, sql, name).Scan(&id)
	return id, err
}
