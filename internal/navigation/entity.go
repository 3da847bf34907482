package navigation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/cern-fcc/datacatalog/internal/apperr"
	"github.com/cern-fcc/datacatalog/internal/ingest"
	"github.com/cern-fcc/datacatalog/internal/logutil"
	"github.com/cern-fcc/datacatalog/internal/rowutil"
)

// GetEntityByID fetches one main-table row by id, per SPEC_FULL.md
// §4.12's get_entity_by_id.
func (s *Service) GetEntityByID(ctx context.Context, id int64) (map[string]any, error) {
	var row map[string]any
	err := s.Pool.WithConn(ctx, func(ctx context.Context, conn *pgxpool.Conn) error {
		sql := fmt.Sprintf("SELECT %s %s WHERE d.%s = $1", strings.Join(s.Plan.SelectFields, ", "), s.Plan.FromAndJoins, s.Record.MainPrimaryKey)
		zap.L().Debug("navigation: get entity", logutil.SQLDebug(sql, []any{id}))

		rows, err := conn.Query(ctx, sql, id)
		if err != nil {
			return apperr.SearchExecution("failed to fetch entity", err).WithDetail(sql)
		}
		defer rows.Close()

		items, err := rowutil.Flatten(rows, s.MetadataColumn)
		if err != nil {
			return apperr.SearchExecution("failed reading entity", err)
		}
		if len(items) == 0 {
			return apperr.NotFound(fmt.Sprintf("no record with id %d", id))
		}
		row = items[0]
		return nil
	})
	if err != nil {
		if ae, ok := apperr.As(err); ok {
			return nil, ae
		}
		return nil, apperr.SearchExecution("failed to fetch entity", err)
	}
	return row, nil
}

// UpdateEntity applies a lock-aware metadata merge (reusing C7's merge
// logic) against the row identified by id, per SPEC_FULL.md §4.12.
func (s *Service) UpdateEntity(ctx context.Context, id int64, fields map[string]any) error {
	return s.Pool.WithConn(ctx, func(ctx context.Context, conn *pgxpool.Conn) error {
		var raw []byte
		selectSQL := fmt.Sprintf("SELECT %s FROM %s WHERE %s = $1", s.MetadataColumn, s.Record.MainTable, s.Record.MainPrimaryKey)
		if err := conn.QueryRow(ctx, selectSQL, id).Scan(&raw); err != nil {
			if err == pgx.ErrNoRows {
				return apperr.NotFound(fmt.Sprintf("no record with id %d", id))
			}
			return apperr.SearchExecution("failed to read entity for update", err)
		}

		var existing map[string]any
		if err := json.Unmarshal(raw, &existing); err != nil {
			existing = map[string]any{}
		}

		merged := ingest.MergeMetadata(existing, fields)
		mergedJSON, err := json.Marshal(merged)
		if err != nil {
			return apperr.SearchExecution("failed to serialize merged metadata", err)
		}

		updateSQL := fmt.Sprintf("UPDATE %s SET %s = $1, last_edited_at = NOW() WHERE %s = $2",
			s.Record.MainTable, s.MetadataColumn, s.Record.MainPrimaryKey)
		zap.L().Debug("navigation: update entity", logutil.SQLDebug(updateSQL, []any{mergedJSON, id}))

		if _, err := conn.Exec(ctx, updateSQL, mergedJSON, id); err != nil {
			return apperr.SearchExecution("failed to update entity", err)
		}
		return nil
	})
}

// DeleteEntitiesByIDs deletes main-table rows by id. A row still
// referenced by a foreign key refuses with apperr.Conflict instead of
// failing the whole call, per spec.md §3's Lifecycles / §7's Conflict
// mapping.
func (s *Service) DeleteEntitiesByIDs(ctx context.Context, ids []int64) (deleted []int64, refused []int64, err error) {
	if len(ids) == 0 {
		return nil, nil, nil
	}

	err = s.Pool.WithConn(ctx, func(ctx context.Context, conn *pgxpool.Conn) error {
		sql := fmt.Sprintf("DELETE FROM %s WHERE %s = $1", s.Record.MainTable, s.Record.MainPrimaryKey)
		for _, id := range ids {
			_, execErr := conn.Exec(ctx, sql, id)
			if execErr == nil {
				deleted = append(deleted, id)
				continue
			}

			var pgErr *pgconn.PgError
			if errors.As(execErr, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
				refused = append(refused, id)
				continue
			}
			return apperr.SearchExecution(fmt.Sprintf("failed to delete entity %d", id), execErr)
		}
		return nil
	})
	if err != nil {
		if ae, ok := apperr.As(err); ok {
			return deleted, refused, ae
		}
		return deleted, refused, apperr.SearchExecution("delete failed", err)
	}
	if len(refused) > 0 {
		return deleted, refused, apperr.Conflict(fmt.Sprintf("%d record(s) are still referenced and were not deleted", len(refused)))
	}
	return deleted, refused, nil
}
