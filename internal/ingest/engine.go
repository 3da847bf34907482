// Package ingest implements the batch import path: decode a collection of
// free-form records, resolve their path into navigation entities, and
// upsert each into the main table with lock-aware metadata merge, the
// whole batch inside one transaction.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/cern-fcc/datacatalog/internal/apperr"
	"github.com/cern-fcc/datacatalog/internal/catalog"
	"github.com/cern-fcc/datacatalog/internal/dbpool"
	"github.com/cern-fcc/datacatalog/internal/logutil"
)

// maxConflictRetries bounds the name-suffix retry loop of spec.md §4.7.
const maxConflictRetries = 10

// Engine runs ingestion batches against one cached schema analysis.
type Engine struct {
	Pool           *dbpool.Pool
	Record         *catalog.Record
	MetadataColumn string
}

// New builds an Engine bound to one schema analysis.
func New(pool *dbpool.Pool, rec *catalog.Record, metadataColumn string) *Engine {
	return &Engine{Pool: pool, Record: rec, MetadataColumn: metadataColumn}
}

// Import runs the whole batch inside one transaction. Per-record failures
// are counted rather than aborting the batch immediately; if more than
// half of the batch fails, the transaction rolls back and Import returns
// an apperr.BatchImport error carrying the aggregate counts, per
// spec.md §4.7/§7.
func (e *Engine) Import(ctx context.Context, batch Batch) (*Result, error) {
	var result Result

	err := e.Pool.WithConn(ctx, func(ctx context.Context, conn *pgxpool.Conn) error {
		tx, err := conn.Begin(ctx)
		if err != nil {
			return apperr.BatchImport("failed to begin import transaction").WithDetail(err.Error())
		}
		committed := false
		defer func() {
			if !committed {
				tx.Rollback(ctx) //nolint:errcheck // best-effort, connection is released right after
			}
		}()

		for idx, rec := range batch.Processes {
			// Each record runs under its own savepoint, so a failed statement
			// rolls back only that record and leaves the batch transaction usable.
			sp, err := tx.Begin(ctx)
			if err == nil {
				if err = e.importOne(ctx, sp, rec, idx); err != nil {
					sp.Rollback(ctx) //nolint:errcheck // the record is already counted as failed
				} else {
					err = sp.Commit(ctx)
				}
			}
			if err != nil {
				result.Failed++
				result.Errors = append(result.Errors, err.Error())
				zap.L().Warn("ingest: record failed", zap.Int("index", idx), zap.Error(err))
				continue
			}
			result.Processed++
		}

		total := result.Processed + result.Failed
		if total > 0 && result.Failed*2 > total {
			return apperr.BatchImport(fmt.Sprintf("%d of %d records failed, batch rolled back", result.Failed, total))
		}

		if err := tx.Commit(ctx); err != nil {
			return apperr.BatchImport("failed to commit import transaction").WithDetail(err.Error())
		}
		committed = true

		if result.Failed > 0 {
			zap.L().Warn("ingest: batch committed with failures",
				zap.Int("processed", result.Processed), zap.Int("failed", result.Failed))
		} else {
			zap.L().Info("ingest: batch committed", zap.Int("processed", result.Processed))
		}
		return nil
	})
	if err != nil {
		if ae, ok := apperr.As(err); ok {
			return &result, ae
		}
		return &result, apperr.BatchImport(err.Error())
	}

	return &result, nil
}

func (e *Engine) importOne(ctx context.Context, tx pgx.Tx, rec RawRecord, idx int) error {
	name := generateName(rec.ProcessName, idx)

	pc := ParsePath(rec.Path)
	fk, err := e.resolveForeignKeys(ctx, tx, pc)
	if err != nil {
		return err
	}

	return e.upsertMainRow(ctx, tx, name, rec.Metadata, fk)
}

func generateName(processName string, idx int) string {
	if strings.TrimSpace(processName) != "" {
		return processName
	}
	timestamp := time.Now().UTC().Format("20060102_150405")
	shortID := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("unnamed_%s_%s_%d", timestamp, shortID, idx)
}

// resolveForeignKeys resolves each path position present in both the path
// itself and the live schema's discovered navigation entities. A position
// missing from either source leaves the corresponding id nil; detectors
// additionally carry the resolved accelerator id and are only created once
// an accelerator has been resolved, per spec.md §4.7.
func (e *Engine) resolveForeignKeys(ctx context.Context, tx pgx.Tx, pc PathComponents) (ForeignKeys, error) {
	var fk ForeignKeys

	if ent, ok := e.Record.Navigation["accelerator"]; ok {
		if name := pc.AcceleratorName; name != "" {
			id, err := getOrCreate(ctx, tx, ent.TableName, ent.PrimaryKey, name, nil, nil)
			if err != nil {
				return fk, err
			}
			fk.AcceleratorID = &id
		}
	}

	if ent, ok := e.Record.Navigation["stage"]; ok {
		if name := pc.StageName; name != "" {
			id, err := getOrCreate(ctx, tx, ent.TableName, ent.PrimaryKey, name, nil, nil)
			if err != nil {
				return fk, err
			}
			fk.StageID = &id
		}
	}

	if ent, ok := e.Record.Navigation["campaign"]; ok {
		if name := pc.CampaignName; name != "" {
			id, err := getOrCreate(ctx, tx, ent.TableName, ent.PrimaryKey, name, nil, nil)
			if err != nil {
				return fk, err
			}
			fk.CampaignID = &id
		}
	}

	if ent, ok := e.Record.Navigation["detector"]; ok {
		if name := pc.DetectorName; name != "" && fk.AcceleratorID != nil {
			id, err := getOrCreate(ctx, tx, ent.TableName, ent.PrimaryKey, name,
				[]string{"accelerator_id"}, []any{*fk.AcceleratorID})
			if err != nil {
				return fk, err
			}
			fk.DetectorID = &id
		}
	}

	return fk, nil
}

// upsertMainRow implements spec.md §4.7's main-row upsert, including the
// lock-aware metadata merge and the conflict-suffix retry loop.
func (e *Engine) upsertMainRow(ctx context.Context, tx pgx.Tx, name string, metadata map[string]any, fk ForeignKeys) error {
	finalName := name
	for conflictCounter := 1; conflictCounter <= maxConflictRetries+1; conflictCounter++ {
		merged, err := e.mergeWithExisting(ctx, tx, finalName, metadata)
		if err != nil {
			return err
		}

		// Each attempt runs under its own savepoint so a unique violation
		// leaves the enclosing transaction usable for the renamed retry.
		sp, err := tx.Begin(ctx)
		if err != nil {
			return apperr.BatchImport(fmt.Sprintf("failed to upsert %q", finalName)).WithDetail(err.Error())
		}
		err = e.executeUpsert(ctx, sp, finalName, merged, fk)
		if err == nil {
			return sp.Commit(ctx)
		}
		sp.Rollback(ctx) //nolint:errcheck // the error below is what matters

		var pgErr *pgconn.PgError
		if !errors.As(err, &pgErr) || pgErr.Code != pgerrcode.UniqueViolation {
			return apperr.BatchImport(fmt.Sprintf("failed to upsert %q", finalName)).WithDetail(err.Error())
		}

		finalName = fmt.Sprintf("%s_conflict_%d", name, conflictCounter)
	}
	return apperr.BatchImport(fmt.Sprintf("too many name conflicts for %q", name))
}

func (e *Engine) mergeWithExisting(ctx context.Context, tx pgx.Tx, name string, newMetadata map[string]any) (map[string]any, error) {
	sql := fmt.Sprintf("SELECT %s FROM %s WHERE name ILIKE $1", e.MetadataColumn, e.Record.MainTable)

	var raw []byte
	err := tx.QueryRow(ctx, sql, name).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return newMetadata, nil
	}
	if err != nil {
		return nil, apperr.BatchImport(fmt.Sprintf("failed to read existing metadata for %q", name)).WithDetail(err.Error())
	}

	var existing map[string]any
	if err := json.Unmarshal(raw, &existing); err != nil {
		existing = map[string]any{}
	}
	return MergeMetadata(existing, newMetadata), nil
}

func (e *Engine) executeUpsert(ctx context.Context, tx pgx.Tx, name string, metadata map[string]any, fk ForeignKeys) error {
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return apperr.BatchImport(fmt.Sprintf("failed to serialize metadata for %q", name)).WithDetail(err.Error())
	}

	columns := []string{"name", "accelerator_id", "stage_id", "campaign_id", "detector_id", e.MetadataColumn}
	values := []any{name, fk.AcceleratorID, fk.StageID, fk.CampaignID, fk.DetectorID, metadataJSON}

	placeholders := make([]string, len(columns))
	updates := make([]string, 0, len(columns))
	for i, col := range columns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		if col != "name" {
			updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", col, col))
		}
	}
	updates = append(updates, "last_edited_at = NOW()")

	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (name) DO UPDATE SET %s",
		e.Record.MainTable, strings.Join(columns, ", "), strings.Join(placeholders, ", "), strings.Join(updates, ", "))

	zap.L().Debug("ingest: upsert", logutil.SQLDebug(sql, values))

	_, err = tx.Exec(ctx, sql, values...)
	return err
}
