// Package navigation implements the filtered dropdown queries, the
// generic filter+free-text search, and the entity CRUD surface that sit
// alongside the query-language search endpoint, per spec.md §4.8 and
// SPEC_FULL.md §4.12.
package navigation

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/cern-fcc/datacatalog/internal/apperr"
	"github.com/cern-fcc/datacatalog/internal/catalog"
	"github.com/cern-fcc/datacatalog/internal/dbpool"
	"github.com/cern-fcc/datacatalog/internal/joinplan"
	"github.com/cern-fcc/datacatalog/internal/logutil"
	"github.com/cern-fcc/datacatalog/internal/rowutil"
)

// Option is one row of a dropdown result.
type Option struct {
	ID   int64
	Name string
}

// Service answers dropdown and generic-search requests against one cached
// schema analysis.
type Service struct {
	Pool           *dbpool.Pool
	Record         *catalog.Record
	Plan           *joinplan.Plan
	MetadataColumn string
}

// New builds a Service bound to one schema analysis and join plan.
func New(pool *dbpool.Pool, rec *catalog.Record, plan *joinplan.Plan, metadataColumn string) *Service {
	return &Service{Pool: pool, Record: rec, Plan: plan, MetadataColumn: metadataColumn}
}

// Dropdown implements spec.md §4.8's filtered-dropdown query: distinct
// (id, name) pairs for entityKey, optionally narrowed by filter. An
// unknown entityKey is a Validation error; an unresolvable filter value
// (a "_name" filter that matches no row) yields an empty list, not an
// error.
func (s *Service) Dropdown(ctx context.Context, entityKey string, filter map[string]string) ([]Option, error) {
	ent, ok := s.Record.Navigation[entityKey]
	if !ok {
		return nil, apperr.Validation(fmt.Sprintf("unknown navigation entity %q", entityKey))
	}

	var opts []Option
	err := s.Pool.WithConn(ctx, func(ctx context.Context, conn *pgxpool.Conn) error {
		whereSQL, args, empty, err := s.resolveFilter(ctx, conn, filter)
		if err != nil {
			return err
		}
		if empty {
			return nil
		}

		sql := fmt.Sprintf(
			"SELECT DISTINCT t.%s AS id, t.%s AS name FROM %s t INNER JOIN %s d ON d.%s_id = t.%s %s ORDER BY t.%s",
			ent.PrimaryKey, ent.NameColumn, ent.TableName, s.Record.MainTable, entityKey, ent.PrimaryKey,
			whereSQL, ent.NameColumn,
		)

		zap.L().Debug("navigation: dropdown", logutil.SQLDebug(sql, args))

		rows, err := conn.Query(ctx, sql, args...)
		if err != nil {
			return apperr.SearchExecution("dropdown query failed", err).WithDetail(sql)
		}
		defer rows.Close()

		opts, err = scanOptions(rows)
		return err
	})
	if err != nil {
		if ae, ok := apperr.As(err); ok {
			return nil, ae
		}
		return nil, apperr.SearchExecution("dropdown query failed", err)
	}
	return opts, nil
}

// resolveFilter turns a map of "<entity>_name"/"<entity>_id" filter keys
// into a WHERE clause bound against the main table's alias. A "_name"
// filter that resolves to no row makes the whole dropdown empty (empty=
// true), per spec.md §4.8.
func (s *Service) resolveFilter(ctx context.Context, conn *pgxpool.Conn, filter map[string]string) (string, []any, bool, error) {
	if len(filter) == 0 {
		return "", nil, false, nil
	}

	var clauses []string
	var args []any

	for key, value := range filter {
		switch {
		case strings.HasSuffix(key, "_id"):
			args = append(args, value)
			clauses = append(clauses, fmt.Sprintf("d.%s = $%d", key, len(args)))

		case strings.HasSuffix(key, "_name"):
			entKey := strings.TrimSuffix(key, "_name")
			ent, ok := s.Record.Navigation[entKey]
			if !ok {
				return "", nil, true, nil
			}
			id, ok, err := lookupIDByName(ctx, conn, ent, value)
			if err != nil {
				return "", nil, false, apperr.SearchExecution("failed resolving filter", err)
			}
			if !ok {
				return "", nil, true, nil
			}
			args = append(args, id)
			clauses = append(clauses, fmt.Sprintf("d.%s_id = $%d", entKey, len(args)))

		default:
			return "", nil, true, nil
		}
	}

	return "WHERE " + strings.Join(clauses, " AND "), args, false, nil
}

func lookupIDByName(ctx context.Context, conn *pgxpool.Conn, ent catalog.NavigationEntity, name string) (int64, bool, error) {
	sql := fmt.Sprintf("SELECT %s FROM %s WHERE %s ILIKE $1", ent.PrimaryKey, ent.TableName, ent.NameColumn)
	var id int64
	err := conn.QueryRow(ctx, sql, name).Scan(&id)
	if err == pgx.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

func scanOptions(rows pgx.Rows) ([]Option, error) {
	var opts []Option
	for rows.Next() {
		var o Option
		if err := rows.Scan(&o.ID, &o.Name); err != nil {
			return nil, err
		}
		opts = append(opts, o)
	}
	return opts, rows.Err()
}

// GenericSearchOptions are the inputs to GenericSearch, spec.md §4.8 and
// SPEC_FULL.md §4.12's search_datasets_generic counterpart.
type GenericSearchOptions struct {
	Filters map[string]string // "<entity>_name" -> value, ANDed
	Search  string            // free text, ORed across textual main-table columns
	Limit   int
	Offset  int
}

// GenericSearch joins the whole navigation graph, ANDs filter-by-name
// conditions, and ORs ILIKE across every textual column of the main
// table. Pagination matches C6's COUNT-then-SELECT discipline.
func (s *Service) GenericSearch(ctx context.Context, opts GenericSearchOptions) (int64, []map[string]any, error) {
	if opts.Limit <= 0 {
		opts.Limit = 25
	}

	var total int64
	var items []map[string]any

	err := s.Pool.WithConn(ctx, func(ctx context.Context, conn *pgxpool.Conn) error {
		whereSQL, args, empty, err := s.resolveFilter(ctx, conn, opts.Filters)
		if err != nil {
			return err
		}
		if empty {
			return nil
		}

		whereSQL, args = addTextSearch(whereSQL, args, s.textualColumns(), opts.Search)

		countSQL := fmt.Sprintf("SELECT COUNT(DISTINCT d.%s) %s %s", s.Record.MainPrimaryKey, s.Plan.FromAndJoins, whereSQL)
		zap.L().Debug("navigation: generic search count", logutil.SQLDebug(countSQL, args))
		if err := conn.QueryRow(ctx, countSQL, args...).Scan(&total); err != nil {
			return apperr.SearchExecution("generic search count failed", err).WithDetail(countSQL)
		}
		if total == 0 {
			return nil
		}

		selectArgs := append(append([]any{}, args...), opts.Limit, opts.Offset)
		selectSQL := fmt.Sprintf("SELECT DISTINCT %s %s %s ORDER BY d.%s LIMIT $%d OFFSET $%d",
			strings.Join(s.Plan.SelectFields, ", "), s.Plan.FromAndJoins, whereSQL, s.Record.MainPrimaryKey,
			len(selectArgs)-1, len(selectArgs))

		zap.L().Debug("navigation: generic search select", logutil.SQLDebug(selectSQL, selectArgs))

		rows, err := conn.Query(ctx, selectSQL, selectArgs...)
		if err != nil {
			return apperr.SearchExecution("generic search failed", err).WithDetail(selectSQL)
		}
		defer rows.Close()

		items, err = rowutil.Flatten(rows, s.MetadataColumn)
		return err
	})
	if err != nil {
		if ae, ok := apperr.As(err); ok {
			return 0, nil, ae
		}
		return 0, nil, apperr.SearchExecution("generic search failed", err)
	}
	return total, items, nil
}

func (s *Service) textualColumns() []string {
	var cols []string
	for _, c := range s.Record.MainColumns {
		if isTextual(c.DataType) {
			cols = append(cols, "d."+c.Name)
		}
	}
	return cols
}

func isTextual(dataType string) bool {
	switch dataType {
	case "text", "character varying", "varchar", "character", "char":
		return true
	default:
		return false
	}
}

func addTextSearch(whereSQL string, args []any, columns []string, search string) (string, []any) {
	search = strings.TrimSpace(search)
	if search == "" || len(columns) == 0 {
		return whereSQL, args
	}

	args = append(args, search)
	param := fmt.Sprintf("$%d", len(args))

	clauses := make([]string, len(columns))
	for i, col := range columns {
		clauses[i] = fmt.Sprintf("%s ILIKE '%%' || %s || '%%'", col, param)
	}
	textClause := "(" + strings.Join(clauses, " OR ") + ")"

	if whereSQL == "" {
		return "WHERE " + textClause, args
	}
	return whereSQL + " AND " + textClause, args
}

