package sqltranslate

import (
	"fmt"
	"strings"

	"github.com/cern-fcc/datacatalog/internal/querylang"
)

// splitOnAnd splits raw at every case-insensitive "AND" with surrounding
// whitespace, the split point spec.md §4.5 specifies for the hybrid rescue.
func splitOnAnd(raw string) []string {
	var parts []string
	rest := raw
	for {
		idx, length := findAndKeyword(rest)
		if idx < 0 {
			parts = append(parts, rest)
			break
		}
		parts = append(parts, rest[:idx])
		rest = rest[idx+length:]
	}
	return parts
}

// findAndKeyword locates the first "AND" (case-insensitive) bounded by
// whitespace (or string edges) in s, returning its start index and match
// length, or (-1, 0) if none is found.
func findAndKeyword(s string) (int, int) {
	lower := strings.ToLower(s)
	search := lower
	offset := 0
	for {
		rel := strings.Index(search, "and")
		if rel < 0 {
			return -1, 0
		}
		abs := offset + rel
		leftOK := abs == 0 || isSpace(s[abs-1])
		rightIdx := abs + 3
		rightOK := rightIdx >= len(s) || isSpace(s[rightIdx])
		if leftOK && rightOK {
			return abs, 3
		}
		offset = abs + 3
		search = lower[offset:]
	}
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

// Rescue implements spec.md §4.5: split the raw query on AND, parse and
// translate each part independently, and route whatever remains through
// the GlobalSearch similarity rules as a single residue clause.
func (t *Translator) Rescue(raw string) (string, []any, error) {
	t.reset()

	var clauses []string
	var residueParts []string

	for _, part := range splitOnAnd(raw) {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		node, err := querylang.Parse(trimmed)
		if err != nil {
			residueParts = append(residueParts, trimmed)
			continue
		}
		if node == nil {
			continue
		}
		clauseSQL, err := t.walk(node)
		if err != nil {
			residueParts = append(residueParts, trimmed)
			continue
		}
		clauses = append(clauses, clauseSQL)
	}

	if len(residueParts) > 0 {
		residue := strings.Join(residueParts, " ")
		quoted := containsQuotedSpan(raw)
		clause, err := t.translateGlobalSearch(querylang.GlobalSearch{Value: residue, Quoted: quoted})
		if err != nil {
			return "", nil, err
		}
		clauses = append(clauses, clause)
	}

	if len(clauses) == 0 {
		return "TRUE", nil, nil
	}
	return strings.Join(clauses, " AND "), t.params, nil
}

// containsQuotedSpan reports whether raw contains a single- or
// double-quoted span, used to decide the residue GlobalSearch's Quoted
// flag per spec.md §4.5.
func containsQuotedSpan(raw string) bool {
	return strings.Count(raw, `"`) >= 2 || strings.Count(raw, `'`) >= 2
}

// TranslateOrRescue is the entry point search.Executor calls: it attempts
// a strict parse first and falls back to Rescue on QuerySyntaxError, per
// spec.md's control-flow summary in §2.
func (t *Translator) TranslateOrRescue(raw string) (string, []any, error) {
	node, err := querylang.Parse(raw)
	if err == nil {
		return t.Translate(node)
	}
	if _, ok := err.(*querylang.ParseError); !ok {
		return "", nil, fmt.Errorf("sqltranslate: %w", err)
	}
	return t.Rescue(raw)
}
