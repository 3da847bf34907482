// Package joinplan turns a catalog.Record into the precomputed SQL
// fragments every query-executing component shares: the alias table, the
// FROM/JOIN clause, the SELECT projection, and the global-search field
// list.
package joinplan

import (
	"fmt"
	"strings"

	"github.com/cern-fcc/datacatalog/internal/catalog"
)

// mainAlias is reserved for the main table; spec.md §9 requires the
// generator to skip it explicitly if it would otherwise be assigned to a
// navigation entity key.
const mainAlias = "d"

// Plan is the frozen set of SQL fragments derived from one catalog.Record.
// It holds no database handle and no mutable state — build it once after
// catalog.Analyze and share it by reference across concurrent requests.
type Plan struct {
	Record *catalog.Record

	// AliasMap maps entity_key -> table alias. The main table is not
	// present here; it is always "d".
	AliasMap map[string]string

	// FromAndJoins is "FROM <main> d" followed by one LEFT JOIN per
	// navigation entity, in Record.NavigationOrder.
	FromAndJoins string

	// SelectFields is "d.*" followed by "<alias>.<name_col> AS
	// <entity_key>_name" for each navigation entity.
	SelectFields []string

	// GlobalSearchFields is the ordered list consulted by GlobalSearch
	// translation: d.name, jsonb_values_to_text(d.metadata), then every
	// navigation name column.
	GlobalSearchFields []string
}

// Build derives a Plan from rec. metadataColumn is the main table's JSON
// metadata column name (normally "metadata").
func Build(rec *catalog.Record, metadataColumn string) *Plan {
	p := &Plan{
		Record:   rec,
		AliasMap: make(map[string]string, len(rec.NavigationOrder)),
	}

	used := map[string]bool{mainAlias: true}
	for _, key := range rec.NavigationOrder {
		p.AliasMap[key] = generateAlias(key, used)
	}

	var joins strings.Builder
	fmt.Fprintf(&joins, "FROM %s %s", rec.MainTable, mainAlias)
	for _, key := range rec.NavigationOrder {
		ent := rec.Navigation[key]
		alias := p.AliasMap[key]
		fmt.Fprintf(&joins, " LEFT JOIN %s %s ON %s.%s_id = %s.%s",
			ent.TableName, alias, mainAlias, key, alias, ent.PrimaryKey)
	}
	p.FromAndJoins = joins.String()

	p.SelectFields = append(p.SelectFields, mainAlias+".*")
	for _, key := range rec.NavigationOrder {
		ent := rec.Navigation[key]
		alias := p.AliasMap[key]
		p.SelectFields = append(p.SelectFields,
			fmt.Sprintf("%s.%s AS %s_name", alias, ent.NameColumn, key))
	}

	p.GlobalSearchFields = append(p.GlobalSearchFields,
		mainAlias+".name",
		fmt.Sprintf("jsonb_values_to_text(%s.%s)", mainAlias, metadataColumn),
	)
	for _, key := range rec.NavigationOrder {
		ent := rec.Navigation[key]
		alias := p.AliasMap[key]
		p.GlobalSearchFields = append(p.GlobalSearchFields, alias+"."+ent.NameColumn)
	}

	return p
}

// generateAlias implements spec.md §4.2's collision rule: try the first
// three characters of the entity key, then four, then an incrementing
// numeric suffix on the three-character prefix.
func generateAlias(entityKey string, used map[string]bool) string {
	candidates := []string{}
	if len(entityKey) >= 3 {
		candidates = append(candidates, entityKey[:3])
	} else {
		candidates = append(candidates, entityKey)
	}
	if len(entityKey) >= 4 {
		candidates = append(candidates, entityKey[:4])
	}

	for _, c := range candidates {
		if !used[c] {
			used[c] = true
			return c
		}
	}

	base := candidates[0]
	for n := 1; ; n++ {
		c := fmt.Sprintf("%s%d", base, n)
		if !used[c] {
			used[c] = true
			return c
		}
	}
}

// Alias returns the table alias for an entity key, or "" if unknown.
func (p *Plan) Alias(entityKey string) (string, bool) {
	a, ok := p.AliasMap[entityKey]
	return a, ok
}
