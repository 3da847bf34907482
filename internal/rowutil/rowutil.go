// Package rowutil flattens pgx result rows into caller-facing maps, shared
// by every component that projects an unpredictable, schema-discovered
// column set (internal/search, internal/navigation) instead of a fixed Go
// struct.
package rowutil

import (
	"encoding/json"

	"github.com/jackc/pgx/v5"
)

// Flatten turns each row into a map keyed by column name, decoding
// metadataColumn from its wire form into a nested map.
func Flatten(rows pgx.Rows, metadataColumn string) ([]map[string]any, error) {
	fields := rows.FieldDescriptions()
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = string(f.Name)
	}

	var out []map[string]any
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		row := make(map[string]any, len(names))
		for i, name := range names {
			if name == metadataColumn {
				row[name] = DecodeMetadata(values[i])
				continue
			}
			row[name] = values[i]
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// DecodeMetadata parses a metadata column value from whatever form the
// driver handed back, falling back to an empty map on any decode failure
// rather than failing the caller's whole request.
func DecodeMetadata(v any) map[string]any {
	switch t := v.(type) {
	case map[string]any:
		return t
	case []byte:
		var m map[string]any
		if err := json.Unmarshal(t, &m); err == nil {
			return m
		}
	case string:
		var m map[string]any
		if err := json.Unmarshal([]byte(t), &m); err == nil {
			return m
		}
	}
	return map[string]any{}
}
