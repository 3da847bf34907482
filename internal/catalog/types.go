// Package catalog discovers the live shape of the database — tables,
// columns, primary keys, foreign keys, and the set of metadata keys
// actually present in the main table's JSON column — and freezes it into
// an immutable Record that every SQL-emitting component consults.
package catalog

// Column describes one column of the main table, in ordinal order.
type Column struct {
	Name     string
	DataType string
	Nullable bool
}

// IsTimestamp reports whether the column's declared type is a
// timestamp-family type, used by the translator to decide when to attempt
// date-string coercion.
func (c Column) IsTimestamp() bool {
	switch c.DataType {
	case "timestamp without time zone", "timestamp with time zone", "date":
		return true
	default:
		return false
	}
}

// NavigationEntity describes one table reachable from the main table via a
// single foreign key column named "<entity_key>_id".
type NavigationEntity struct {
	EntityKey  string
	TableName  string
	PrimaryKey string
	NameColumn string
	Columns    []string
}

// Record is the cached, immutable description of the database's shape.
// Once produced it is never mutated in place — Inspector swaps a pointer
// to a fresh Record behind its own synchronization.
type Record struct {
	MainTable      string
	MainPrimaryKey string
	MainColumns    []Column

	Navigation      map[string]NavigationEntity
	NavigationOrder []string

	MetadataKeys   map[string]struct{}
	MetadataNested map[string]struct{}
}

// HasMetadataKey reports whether key was observed as a top-level key of
// the main table's metadata column during the last analysis.
func (r *Record) HasMetadataKey(key string) bool {
	_, ok := r.MetadataKeys[key]
	return ok
}

// HasMetadataNested reports whether "parent.child" was observed one level
// deep inside the metadata column.
func (r *Record) HasMetadataNested(path string) bool {
	_, ok := r.MetadataNested[path]
	return ok
}

// Column looks up a main-table column by name.
func (r *Record) Column(name string) (Column, bool) {
	for _, c := range r.MainColumns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// NavigationByKey looks up a navigation entity, stripping a trailing
// "_name" suffix first since callers frequently address navigation fields
// as "<entity_key>_name" in queries and ORDER BY clauses.
func (r *Record) NavigationByKey(key string) (NavigationEntity, bool) {
	const suffix = "_name"
	trimmed := key
	if len(key) > len(suffix) && key[len(key)-len(suffix):] == suffix {
		trimmed = key[:len(key)-len(suffix)]
	}
	ent, ok := r.Navigation[trimmed]
	return ent, ok
}
