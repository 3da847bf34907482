// Package search implements the query-language search endpoint: compose
// SELECT + ORDER BY + LIMIT/OFFSET + COUNT from the query-language AST
// (via internal/sqltranslate), run both on one pooled connection, and
// flatten rows into caller-facing maps.
package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/cern-fcc/datacatalog/internal/apperr"
	"github.com/cern-fcc/datacatalog/internal/catalog"
	"github.com/cern-fcc/datacatalog/internal/dbpool"
	"github.com/cern-fcc/datacatalog/internal/joinplan"
	"github.com/cern-fcc/datacatalog/internal/logutil"
	"github.com/cern-fcc/datacatalog/internal/rowutil"
	"github.com/cern-fcc/datacatalog/internal/sqltranslate"
	"github.com/cern-fcc/datacatalog/internal/sqlvalidate"
)

const (
	defaultLimit = 25
	minLimit     = 20
	maxLimit     = 1000
)

// Options are the contract inputs of spec.md §4.6.
type Options struct {
	Query     string
	Limit     int
	Offset    int
	SortBy    string
	SortOrder string
}

// Result is the contract output: a total count and the page of flattened
// row maps.
type Result struct {
	Total int64
	Items []map[string]any
}

// Executor runs search requests against one frozen schema plan.
type Executor struct {
	Pool           *dbpool.Pool
	Record         *catalog.Record
	Plan           *joinplan.Plan
	MetadataColumn string
}

// New builds an Executor for one cached schema analysis and join plan.
func New(pool *dbpool.Pool, rec *catalog.Record, plan *joinplan.Plan, metadataColumn string) *Executor {
	return &Executor{Pool: pool, Record: rec, Plan: plan, MetadataColumn: metadataColumn}
}

// Execute validates opts, builds the WHERE/ORDER BY clauses, and runs the
// COUNT-then-SELECT pair sequentially on one acquired connection, per
// spec.md §4.6's execution discipline.
func (e *Executor) Execute(ctx context.Context, opts Options) (*Result, error) {
	opts = applyDefaults(opts)
	if err := validateOptions(opts); err != nil {
		return nil, err
	}

	translator := sqltranslate.New(e.Record, e.Plan, e.MetadataColumn)
	whereSQL, whereParams, err := translator.TranslateOrRescue(opts.Query)
	if err != nil {
		return nil, apperr.SearchExecution("failed to translate query", err)
	}
	if err := sqlvalidate.ValidateWhereClause(whereSQL); err != nil {
		return nil, err
	}

	sortExpr, err := sqltranslate.ResolveOrderField(e.Record, e.Plan, e.MetadataColumn, opts.SortBy)
	if err != nil {
		return nil, apperr.Validation(fmt.Sprintf("unknown sort field %q", opts.SortBy))
	}
	orderBy := fmt.Sprintf("%s %s, d.%s %s", sortExpr, opts.SortOrder, e.Record.MainPrimaryKey, opts.SortOrder)

	var result Result
	err = e.Pool.WithConn(ctx, func(ctx context.Context, conn *pgxpool.Conn) error {
		total, err := e.runCount(ctx, conn, opts.Query, whereSQL, whereParams)
		if err != nil {
			return err
		}
		result.Total = total

		items, err := e.runSelect(ctx, conn, whereSQL, whereParams, orderBy, opts.Limit, opts.Offset)
		if err != nil {
			return err
		}
		result.Items = items
		return nil
	})
	if err != nil {
		if ae, ok := apperr.As(err); ok {
			return nil, ae
		}
		return nil, apperr.SearchExecution("search query failed", err)
	}

	return &result, nil
}

func applyDefaults(opts Options) Options {
	if opts.Limit == 0 {
		opts.Limit = defaultLimit
	}
	if opts.SortBy == "" {
		opts.SortBy = "last_edited_at"
	}
	if opts.SortOrder == "" {
		opts.SortOrder = "desc"
	}
	return opts
}

func validateOptions(opts Options) error {
	order := strings.ToLower(opts.SortOrder)
	if order != "asc" && order != "desc" {
		return apperr.Validation(fmt.Sprintf("invalid sort_order %q, must be asc or desc", opts.SortOrder))
	}
	if opts.Limit < minLimit || opts.Limit > maxLimit {
		return apperr.Validation(fmt.Sprintf("limit must be between %d and %d", minLimit, maxLimit))
	}
	if opts.Offset < 0 {
		return apperr.Validation("offset must be >= 0")
	}
	return nil
}

// runCount implements spec.md §4.6's count-query rule: no joins when the
// query is empty, otherwise the same FROM/JOIN and WHERE as the SELECT.
func (e *Executor) runCount(ctx context.Context, conn *pgxpool.Conn, rawQuery, whereSQL string, params []any) (int64, error) {
	var sql string
	var args []any
	if strings.TrimSpace(rawQuery) == "" {
		sql = fmt.Sprintf("SELECT COUNT(*) FROM %s", e.Record.MainTable)
	} else {
		sql = fmt.Sprintf("SELECT COUNT(*) %s WHERE %s", e.Plan.FromAndJoins, whereSQL)
		args = params
	}

	zap.L().Debug("search: count", logutil.SQLDebug(sql, args))

	var total int64
	if err := conn.QueryRow(ctx, sql, args...).Scan(&total); err != nil {
		return 0, apperr.SearchExecution("count query failed", err).WithDetail(sql)
	}
	return total, nil
}

func (e *Executor) runSelect(ctx context.Context, conn *pgxpool.Conn, whereSQL string, whereParams []any, orderBy string, limit, offset int) ([]map[string]any, error) {
	args := append(append([]any{}, whereParams...), limit, offset)
	limitIdx := len(args) - 1
	offsetIdx := len(args)

	sql := fmt.Sprintf("SELECT %s %s WHERE %s ORDER BY %s LIMIT $%d OFFSET $%d",
		strings.Join(e.Plan.SelectFields, ", "), e.Plan.FromAndJoins, whereSQL, orderBy, limitIdx, offsetIdx)

	zap.L().Debug("search: select", logutil.SQLDebug(sql, args))

	rows, err := conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, apperr.SearchExecution("select query failed", err).WithDetail(sql)
	}
	defer rows.Close()

	items, err := rowutil.Flatten(rows, e.MetadataColumn)
	if err != nil {
		return nil, apperr.SearchExecution("failed reading search results", err)
	}
	return items, nil
}
