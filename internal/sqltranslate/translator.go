// Package sqltranslate walks a querylang.Node and emits a parameterized
// WHERE clause plus its bound parameter list, consulting a catalog.Record
// and joinplan.Plan for field resolution. It also implements the hybrid
// rescue path that salvages a partially unparseable query.
package sqltranslate

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cern-fcc/datacatalog/internal/catalog"
	"github.com/cern-fcc/datacatalog/internal/joinplan"
	"github.com/cern-fcc/datacatalog/internal/querylang"
)

// similarityThreshold and wordSimilarityThreshold are the hard-coded
// thresholds spec.md §4.4/§9 names; the spec's Open Questions leave
// per-field configurability undecided and note the source hard-codes
// them, so this implementation does too.
const (
	similarityThreshold     = 0.6
	wordSimilarityThreshold = 0.4
)

// Translator walks one AST and produces a WHERE clause. It holds no state
// between calls — Translate always starts from a fresh parameter list, so
// a single Translator value is safe to reuse sequentially but must not be
// shared across concurrent goroutines without external synchronization
// (spec.md §5).
type Translator struct {
	Record         *catalog.Record
	Plan           *joinplan.Plan
	MetadataColumn string

	params []any
}

// New builds a Translator bound to one schema analysis and join plan.
func New(rec *catalog.Record, plan *joinplan.Plan, metadataColumn string) *Translator {
	return &Translator{Record: rec, Plan: plan, MetadataColumn: metadataColumn}
}

// ResolveOrderField resolves a sort_by field path (e.g. "metadata.energy"
// or "detector") to its SQL expression using the same field-resolution
// rules as WHERE-clause fields, per spec.md §4.6 ("resolve sort_by the
// same way the translator resolves field names"). Unlike a WHERE-clause
// field, a name that falls through to a column is rejected unless it is a
// known main-table column.
func ResolveOrderField(rec *catalog.Record, plan *joinplan.Plan, metadataColumn, fieldPath string) (string, error) {
	parts := strings.Split(fieldPath, ".")
	rf, err := resolveField(rec, plan, metadataColumn, querylang.Field{Parts: parts})
	if err != nil {
		return "", err
	}
	if rf.Kind == kindColumn {
		if _, ok := rec.Column(parts[0]); !ok {
			return "", fmt.Errorf("unknown sort field %q", fieldPath)
		}
	}
	return rf.Expr, nil
}

// reset zeroes the parameter counter and list before a translation, per
// spec.md §4.4's "translator holds no state between queries" contract.
func (t *Translator) reset() {
	t.params = nil
}

func (t *Translator) bind(value any) string {
	t.params = append(t.params, value)
	return fmt.Sprintf("$%d", len(t.params))
}

// Translate walks node and returns (where_sql, params). A nil node (the
// empty-query case) translates to "TRUE" with no parameters.
func (t *Translator) Translate(node querylang.Node) (string, []any, error) {
	t.reset()
	if node == nil {
		return "TRUE", nil, nil
	}
	sql, err := t.walk(node)
	if err != nil {
		return "", nil, err
	}
	return sql, t.params, nil
}

func (t *Translator) walk(node querylang.Node) (string, error) {
	switch n := node.(type) {
	case querylang.Comparison:
		return t.translateComparison(n)
	case querylang.GlobalSearch:
		return t.translateGlobalSearch(n)
	case querylang.Not:
		inner, err := t.walk(n.Term)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("NOT (%s)", inner), nil
	case querylang.And:
		left, err := t.walk(n.Left)
		if err != nil {
			return "", err
		}
		right, err := t.walk(n.Right)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(%s AND %s)", left, right), nil
	case querylang.Or:
		left, err := t.walk(n.Left)
		if err != nil {
			return "", err
		}
		right, err := t.walk(n.Right)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(%s OR %s)", left, right), nil
	default:
		return "", fmt.Errorf("sqltranslate: unknown node type %T", node)
	}
}

func (t *Translator) translateComparison(c querylang.Comparison) (string, error) {
	rf, err := resolveField(t.Record, t.Plan, t.MetadataColumn, c.Field)
	if err != nil {
		return "", err
	}

	switch c.Op {
	case ":":
		if !c.HasValue || c.Value.Raw == "*" {
			return existenceExpr(rf, t.MetadataColumn), nil
		}
		if c.Value.Raw == "" {
			if rf.Kind == kindColumn && rf.IsTimestamp {
				return rf.Expr + " IS NOT NULL", nil
			}
			return existenceExpr(rf, t.MetadataColumn), nil
		}
		// ":" always resolves to a text ILIKE match; the metadata numeric
		// cast never applies here even when the comparand looks numeric,
		// since casting the field to ::numeric would make it unusable
		// with ILIKE.
		return fmt.Sprintf("%s ILIKE '%%' || %s || '%%'", rf.Expr, t.bind(c.Value.Raw)), nil

	case "=~":
		return fmt.Sprintf("%s ~* %s", rf.Expr, t.bind(c.Value.Raw)), nil
	case "!~":
		return fmt.Sprintf("%s !~* %s", rf.Expr, t.bind(c.Value.Raw)), nil

	case "=", "!=", ">", "<", ">=", "<=":
		return t.translateOrderingComparison(rf, c.Op, c.Value)

	default:
		return "", fmt.Errorf("sqltranslate: unsupported operator %q", c.Op)
	}
}

// comparisonExpr applies the numeric cast rule of spec.md §4.4 where
// applicable. Only the ordering-comparison branch uses it; the ":" branch
// always matches on the uncast field.
func (t *Translator) comparisonExpr(rf resolvedField, op string, value querylang.Value) string {
	if numericCastEligible(rf, op, value) {
		return fmt.Sprintf("(%s)::numeric", rf.Expr)
	}
	return rf.Expr
}

// translateOrderingComparison handles =, !=, >, <, >=, <=, including
// timestamp coercion (spec.md §4.4/§9) and the metadata numeric cast.
func (t *Translator) translateOrderingComparison(rf resolvedField, op string, value querylang.Value) (string, error) {
	expr := t.comparisonExpr(rf, op, value)

	if rf.Kind == kindColumn && rf.IsTimestamp {
		if parsed, ok := parseDateString(value.Raw); ok {
			param := t.bind(parsed)
			pred := fmt.Sprintf("%s %s %s", expr, op, param)
			switch op {
			case ">", "<", ">=", "<=", "!=":
				return fmt.Sprintf("(%s IS NOT NULL AND %s)", expr, pred), nil
			default:
				return pred, nil
			}
		}
	}

	var bound any = value.Raw
	if value.IsNumber && numericCastEligible(rf, op, value) {
		if f, err := strconv.ParseFloat(value.Raw, 64); err == nil {
			bound = f
		}
	}
	param := t.bind(bound)
	return fmt.Sprintf("%s %s %s", expr, op, param), nil
}

// translateGlobalSearch implements spec.md §4.4's GlobalSearch rules.
func (t *Translator) translateGlobalSearch(g querylang.GlobalSearch) (string, error) {
	if g.Value == "*" || g.Value == "" {
		return "TRUE", nil
	}

	fields := t.Plan.GlobalSearchFields
	if len(fields) == 0 {
		return "TRUE", nil
	}

	param := t.bind(g.Value)

	clauses := make([]string, 0, len(fields))
	if g.Quoted {
		for _, f := range fields {
			clauses = append(clauses, fmt.Sprintf("%s ILIKE '%%' || %s || '%%'", f, param))
		}
	} else {
		for _, f := range fields {
			if isMetadataBlobField(f) {
				clauses = append(clauses, fmt.Sprintf("word_similarity(%s, %s) > %g", param, f, wordSimilarityThreshold))
			} else {
				clauses = append(clauses, fmt.Sprintf("similarity(%s, %s) > %g", param, f, similarityThreshold))
			}
		}
	}
	return "(" + strings.Join(clauses, " OR ") + ")", nil
}

func isMetadataBlobField(field string) bool {
	return strings.HasPrefix(field, "jsonb_values_to_text(")
}
