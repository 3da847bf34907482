package catalog

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jinzhu/inflection"
	"go.uber.org/zap"

	"github.com/cern-fcc/datacatalog/internal/apperr"
	"github.com/cern-fcc/datacatalog/internal/logutil"
)

// metadataKeyCap bounds how many distinct metadata keys a single analysis
// will harvest, per table/column, so a pathologically wide metadata column
// cannot blow up startup latency.
const metadataKeyCap = 50

// Inspector produces and caches the schema Record for one main table. It is
// safe for concurrent use; Analyze is idempotent and caches
// the result behind an atomic pointer so request handlers never touch the
// database to read the cached shape.
type Inspector struct {
	pool            *pgxpool.Pool
	mainTable       string
	metadataColumn  string
	navigationOrder []string // optional operator override; nil means column-ordinal order

	cached atomic.Pointer[Record]
}

// New constructs an Inspector for mainTable. navigationOrder, if non-nil,
// overrides the natural column-ordinal ordering of navigation entities
// (spec.md §6, key "navigation.order").
func New(pool *pgxpool.Pool, mainTable, metadataColumn string, navigationOrder []string) *Inspector {
	return &Inspector{
		pool:            pool,
		mainTable:       mainTable,
		metadataColumn:  metadataColumn,
		navigationOrder: navigationOrder,
	}
}

// Cached returns the last successfully produced Record, or nil if Analyze
// has never succeeded.
func (ins *Inspector) Cached() *Record {
	return ins.cached.Load()
}

// Invalidate clears the cached Record, forcing the next Analyze call to
// re-query the database. Manual invalidation hook per spec.md §4.1.
func (ins *Inspector) Invalidate() {
	ins.cached.Store(nil)
}

// Analyze produces a fresh Record and caches it. Call once at startup; call
// again only in response to the manual invalidation hook.
func (ins *Inspector) Analyze(ctx context.Context) (*Record, error) {
	cols, pkByTable, err := ins.fetchColumns(ctx)
	if err != nil {
		return nil, apperr.Configuration("failed to inspect table columns", err).WithDetail(err.Error())
	}

	mainCols, ok := cols[ins.mainTable]
	if !ok {
		return nil, apperr.Configuration(fmt.Sprintf("main table %q not found", ins.mainTable), nil)
	}

	fkEdges, err := ins.fetchForeignKeys(ctx)
	if err != nil {
		return nil, apperr.Configuration("failed to inspect foreign keys", err).WithDetail(err.Error())
	}

	rec := &Record{
		MainTable:      ins.mainTable,
		MainColumns:    mainCols,
		Navigation:     make(map[string]NavigationEntity),
		MetadataKeys:   make(map[string]struct{}),
		MetadataNested: make(map[string]struct{}),
	}

	if pk, ok := pkByTable[ins.mainTable]; ok {
		rec.MainPrimaryKey = pk
	} else {
		rec.MainPrimaryKey = fallbackPrimaryKey(ins.mainTable)
	}

	type fkRef struct {
		entityKey string
		fkColumn  string
		refTable  string
	}
	var mainFKs []fkRef
	for _, e := range fkEdges {
		if e.sourceTable != ins.mainTable {
			continue
		}
		key := deriveEntityKey(e.sourceColumn)
		if key == "" || key == "d" {
			continue
		}
		mainFKs = append(mainFKs, fkRef{entityKey: key, fkColumn: e.sourceColumn, refTable: e.targetTable})
	}

	// navigation_order is by column ordinal position in the main table,
	// unless the operator supplied an explicit override.
	ordinal := make(map[string]int, len(mainCols))
	for i, c := range mainCols {
		ordinal[c.Name] = i
	}
	sort.Slice(mainFKs, func(i, j int) bool {
		return ordinal[mainFKs[i].fkColumn] < ordinal[mainFKs[j].fkColumn]
	})

	for _, ref := range mainFKs {
		tableCols, ok := cols[ref.refTable]
		if !ok {
			continue
		}
		pk, ok := pkByTable[ref.refTable]
		if !ok {
			pk = fallbackPrimaryKey(ref.refTable)
		}
		nameCol := chooseNameColumn(tableCols)
		colNames := make([]string, len(tableCols))
		for i, c := range tableCols {
			colNames[i] = c.Name
		}
		rec.Navigation[ref.entityKey] = NavigationEntity{
			EntityKey:  ref.entityKey,
			TableName:  ref.refTable,
			PrimaryKey: pk,
			NameColumn: nameCol,
			Columns:    colNames,
		}
		rec.NavigationOrder = append(rec.NavigationOrder, ref.entityKey)
	}

	if len(ins.navigationOrder) > 0 {
		rec.NavigationOrder = applyNavigationOrderOverride(rec.NavigationOrder, ins.navigationOrder)
	}

	metaKeys, metaNested, err := ins.fetchMetadataKeys(ctx)
	if err != nil {
		return nil, apperr.Configuration("failed to harvest metadata keys", err).WithDetail(err.Error())
	}
	rec.MetadataKeys = metaKeys
	rec.MetadataNested = metaNested

	ins.cached.Store(rec)
	return rec, nil
}

// applyNavigationOrderOverride reorders discovered entity keys to match the
// operator-supplied order, appending any discovered keys the override
// omitted at the end in their natural order.
func applyNavigationOrderOverride(discovered, override []string) []string {
	seen := make(map[string]bool, len(discovered))
	for _, k := range discovered {
		seen[k] = true
	}
	out := make([]string, 0, len(discovered))
	used := make(map[string]bool, len(override))
	for _, k := range override {
		if seen[k] && !used[k] {
			out = append(out, k)
			used[k] = true
		}
	}
	for _, k := range discovered {
		if !used[k] {
			out = append(out, k)
		}
	}
	return out
}

// deriveEntityKey strips the "_id" suffix from a foreign-key column name,
// the invariant spec.md §3 requires to hold for every navigation entity.
func deriveEntityKey(fkColumn string) string {
	const suffix = "_id"
	if len(fkColumn) <= len(suffix) || fkColumn[len(fkColumn)-len(suffix):] != suffix {
		return ""
	}
	return fkColumn[:len(fkColumn)-len(suffix)]
}

// fallbackPrimaryKey applies the singular(table)+"_id" convention when
// information_schema reports no primary key constraint.
func fallbackPrimaryKey(table string) string {
	return inflection.Singular(table) + "_id"
}

// chooseNameColumn prefers an exact "name" column; otherwise the first
// textual column by ordinal position, per spec.md §4.1.
func chooseNameColumn(cols []Column) string {
	for _, c := range cols {
		if c.Name == "name" {
			return c.Name
		}
	}
	for _, c := range cols {
		if isTextualType(c.DataType) {
			return c.Name
		}
	}
	if len(cols) > 0 {
		return cols[0].Name
	}
	return ""
}

func isTextualType(dataType string) bool {
	switch dataType {
	case "text", "character varying", "character", "varchar", "char":
		return true
	default:
		return false
	}
}

type fkEdge struct {
	sourceTable  string
	sourceColumn string
	targetTable  string
}

func (ins *Inspector) fetchColumns(ctx context.Context) (map[string][]Column, map[string]string, error) {
	const query = `
SELECT c.table_name, c.column_name, c.data_type, c.is_nullable = 'YES' AS nullable,
       c.ordinal_position, (pk.column_name IS NOT NULL) AS is_primary_key
FROM information_schema.columns c
LEFT JOIN (
    SELECT kcu.table_name, kcu.column_name
    FROM information_schema.table_constraints tc
    JOIN information_schema.key_column_usage kcu
      ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
    WHERE tc.constraint_type = 'PRIMARY KEY' AND tc.table_schema = 'public'
) pk ON pk.table_name = c.table_name AND pk.column_name = c.column_name
WHERE c.table_schema = 'public'
ORDER BY c.table_name, c.ordinal_position`

	zap.L().Debug("catalog: fetching columns", logutil.SQLDebug(query, nil))

	rows, err := ins.pool.Query(ctx, query)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	cols := make(map[string][]Column)
	pkByTable := make(map[string]string)
	for rows.Next() {
		var table, name, dataType string
		var nullable, isPK bool
		var ordinal int
		if err := rows.Scan(&table, &name, &dataType, &nullable, &ordinal, &isPK); err != nil {
			return nil, nil, err
		}
		cols[table] = append(cols[table], Column{Name: name, DataType: dataType, Nullable: nullable})
		if isPK {
			pkByTable[table] = name
		}
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	return cols, pkByTable, nil
}

func (ins *Inspector) fetchForeignKeys(ctx context.Context) ([]fkEdge, error) {
	const query = `
SELECT tc.table_name AS source_table, kcu.column_name AS source_column,
       ccu.table_name AS target_table
FROM information_schema.table_constraints tc
JOIN information_schema.key_column_usage kcu
  ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
JOIN information_schema.constraint_column_usage ccu
  ON tc.constraint_name = ccu.constraint_name AND tc.table_schema = ccu.table_schema
WHERE tc.constraint_type = 'FOREIGN KEY' AND tc.table_schema = 'public'`

	zap.L().Debug("catalog: fetching foreign keys", logutil.SQLDebug(query, nil))

	rows, err := ins.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var edges []fkEdge
	for rows.Next() {
		var e fkEdge
		if err := rows.Scan(&e.sourceTable, &e.sourceColumn, &e.targetTable); err != nil {
			return nil, err
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

// fetchMetadataKeys runs the two JSON-key-enumeration queries of spec.md
// §4.1: top-level keys, and one-level-nested "parent.child" keys, each
// capped at metadataKeyCap.
func (ins *Inspector) fetchMetadataKeys(ctx context.Context) (map[string]struct{}, map[string]struct{}, error) {
	topLevelQuery := fmt.Sprintf(`
SELECT key FROM (
    SELECT DISTINCT jsonb_object_keys(%s) AS key FROM %s
) s LIMIT %d`, ins.metadataColumn, ins.mainTable, metadataKeyCap)

	nestedQuery := fmt.Sprintf(`
SELECT parent || '.' || child AS path FROM (
    SELECT DISTINCT t.key AS parent, jsonb_object_keys(t.value) AS child
    FROM %s, jsonb_each(%s) AS t
    WHERE jsonb_typeof(t.value) = 'object'
) s LIMIT %d`, ins.mainTable, ins.metadataColumn, metadataKeyCap)

	top := make(map[string]struct{})
	rows, err := ins.pool.Query(ctx, topLevelQuery)
	if err != nil {
		return nil, nil, err
	}
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			rows.Close()
			return nil, nil, err
		}
		top[k] = struct{}{}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	nested := make(map[string]struct{})
	rows, err = ins.pool.Query(ctx, nestedQuery)
	if err != nil {
		return nil, nil, err
	}
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			rows.Close()
			return nil, nil, err
		}
		nested[p] = struct{}{}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	return top, nested, nil
}
