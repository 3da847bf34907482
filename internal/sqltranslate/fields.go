package sqltranslate

import (
	"fmt"
	"strings"

	"github.com/cern-fcc/datacatalog/internal/catalog"
	"github.com/cern-fcc/datacatalog/internal/joinplan"
	"github.com/cern-fcc/datacatalog/internal/querylang"
)

// fieldKind classifies a resolved field, because comparison, existence,
// and numeric-cast handling all differ by kind.
type fieldKind int

const (
	kindColumn fieldKind = iota
	kindNavigation
	kindMetadataPath
)

// resolvedField is the outcome of walking spec.md §4.4's field-resolution
// table for one querylang.Field.
type resolvedField struct {
	Kind       fieldKind
	Expr       string   // SQL expression yielding the field's text value
	JSONParts  []string // populated only when Kind == kindMetadataPath
	IsTimestamp bool
}

// resolveField implements the field-resolution table of spec.md §4.4.
func resolveField(rec *catalog.Record, plan *joinplan.Plan, metadataColumn string, f querylang.Field) (resolvedField, error) {
	if len(f.Parts) == 0 {
		return resolvedField{}, fmt.Errorf("empty field")
	}

	if len(f.Parts) == 1 {
		if ent, ok := rec.NavigationByKey(f.Parts[0]); ok {
			alias, ok := plan.Alias(ent.EntityKey)
			if !ok {
				return resolvedField{}, fmt.Errorf("no alias for navigation entity %q", ent.EntityKey)
			}
			return resolvedField{Kind: kindNavigation, Expr: alias + "." + ent.NameColumn}, nil
		}
	}

	if f.Parts[0] == metadataColumn && len(f.Parts) > 1 {
		return resolvedField{
			Kind:      kindMetadataPath,
			Expr:      buildJSONPath(metadataColumn, f.Parts[1:]),
			JSONParts: f.Parts[1:],
		}, nil
	}

	if isAutoDetectedMetadataField(rec, f.Parts) {
		return resolvedField{
			Kind:      kindMetadataPath,
			Expr:      buildJSONPath(metadataColumn, f.Parts),
			JSONParts: f.Parts,
		}, nil
	}

	// Fall-through: d.<parts[0]>; the database rejects unknown columns.
	name := f.Parts[0]
	col, ok := rec.Column(name)
	return resolvedField{
		Kind:        kindColumn,
		Expr:        "d." + name,
		IsTimestamp: ok && col.IsTimestamp(),
	}, nil
}

// isAutoDetectedMetadataField reports whether parts[0] is a known
// top-level metadata key, or the dotted path formed by its first two
// parts is a known one-level-nested metadata key.
func isAutoDetectedMetadataField(rec *catalog.Record, parts []string) bool {
	if rec.HasMetadataKey(parts[0]) {
		return true
	}
	if len(parts) >= 2 && rec.HasMetadataNested(parts[0]+"."+parts[1]) {
		return true
	}
	return false
}

// buildJSONPath renders "<col> -> 'p1' -> … -> 'pN-1' ->> 'pN'", the text
// extraction form used for comparisons; the last hop always uses ->> so
// the result is text, earlier hops use -> to stay JSON.
func buildJSONPath(column string, jsonParts []string) string {
	var b strings.Builder
	b.WriteString("d.")
	b.WriteString(column)
	for i, p := range jsonParts {
		if i == len(jsonParts)-1 {
			fmt.Fprintf(&b, " ->> '%s'", p)
		} else {
			fmt.Fprintf(&b, " -> '%s'", p)
		}
	}
	return b.String()
}

// existenceExpr implements the "field:*" existence test of spec.md §4.4.
func existenceExpr(rf resolvedField, metadataColumn string) string {
	switch rf.Kind {
	case kindMetadataPath:
		if len(rf.JSONParts) == 1 {
			return fmt.Sprintf("d.%s ? '%s'", metadataColumn, rf.JSONParts[0])
		}
		parent := rf.JSONParts[:len(rf.JSONParts)-1]
		last := rf.JSONParts[len(rf.JSONParts)-1]
		return fmt.Sprintf("d.%s #> '{%s}' ? '%s'", metadataColumn, strings.Join(parent, ","), last)
	default:
		return rf.Expr + " IS NOT NULL"
	}
}

// numericCastEligible reports whether a metadata-path comparison against a
// numeric comparand should be wrapped in ::numeric, per spec.md §4.4.
// ":" is deliberately excluded even though the field-resolution table
// lists it alongside the ordering operators: ":" with a value always
// lowers to ILIKE (operator-mapping table), and ILIKE requires a text
// operand, so casting the field to ::numeric there would make the
// generated SQL invalid rather than merely imprecise.
func numericCastEligible(rf resolvedField, op string, value querylang.Value) bool {
	if rf.Kind != kindMetadataPath || !value.IsNumber {
		return false
	}
	switch op {
	case "=", "!=", "<", ">", "<=", ">=":
		return true
	default:
		return false
	}
}
