package querylang

import "testing"

func TestParseEmptyInputMatchesEverything(t *testing.T) {
	for _, q := range []string{"", "   ", "\t\n"} {
		node, err := Parse(q)
		if err != nil {
			t.Errorf("Parse(%q) returned error: %v", q, err)
		}
		if node != nil {
			t.Errorf("Parse(%q) = %#v, want nil", q, node)
		}
	}
}

func TestParseBareGlobalSearch(t *testing.T) {
	node, err := Parse("IDEA")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	gs, ok := node.(GlobalSearch)
	if !ok {
		t.Fatalf("got %#v, want GlobalSearch", node)
	}
	if gs.Value != "IDEA" || gs.Quoted {
		t.Errorf("got %#v, want {IDEA false}", gs)
	}
}

func TestParseQuotedGlobalSearch(t *testing.T) {
	node, err := Parse(`"IDEA detector"`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	gs, ok := node.(GlobalSearch)
	if !ok || gs.Value != "IDEA detector" || !gs.Quoted {
		t.Fatalf("got %#v", node)
	}
}

func TestParseSimpleComparison(t *testing.T) {
	node, err := Parse("detector:IDEA")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cmp, ok := node.(Comparison)
	if !ok {
		t.Fatalf("got %#v, want Comparison", node)
	}
	if len(cmp.Field.Parts) != 1 || cmp.Field.Parts[0] != "detector" {
		t.Errorf("field = %#v", cmp.Field)
	}
	if cmp.Op != ":" || cmp.Value.Raw != "IDEA" || !cmp.HasValue {
		t.Errorf("comparison = %#v", cmp)
	}
}

func TestParseExistenceTestWithoutValue(t *testing.T) {
	node, err := Parse("last_edited_at:")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cmp, ok := node.(Comparison)
	if !ok {
		t.Fatalf("got %#v", node)
	}
	if cmp.HasValue {
		t.Errorf("expected HasValue=false for bare ':' operator")
	}
}

func TestParseDottedMetadataField(t *testing.T) {
	node, err := Parse("metadata.energy > 100")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cmp, ok := node.(Comparison)
	if !ok {
		t.Fatalf("got %#v", node)
	}
	want := []string{"metadata", "energy"}
	if len(cmp.Field.Parts) != 2 || cmp.Field.Parts[0] != want[0] || cmp.Field.Parts[1] != want[1] {
		t.Errorf("field parts = %v, want %v", cmp.Field.Parts, want)
	}
	if cmp.Op != ">" || !cmp.Value.IsNumber || cmp.Value.Raw != "100" {
		t.Errorf("comparison = %#v", cmp)
	}
}

func TestParseAndOrPrecedence(t *testing.T) {
	// AND binds tighter than OR: "a OR b AND c" == Or(a, And(b, c))
	node, err := Parse("foo OR bar AND baz")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	or, ok := node.(Or)
	if !ok {
		t.Fatalf("got %#v, want Or at top level", node)
	}
	if _, ok := or.Left.(GlobalSearch); !ok {
		t.Errorf("left of Or should be GlobalSearch, got %#v", or.Left)
	}
	and, ok := or.Right.(And)
	if !ok {
		t.Fatalf("right of Or should be And, got %#v", or.Right)
	}
	_ = and
}

func TestParseNotAndParens(t *testing.T) {
	node, err := Parse(`NOT (detector:IDEA AND stage:Test)`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	not, ok := node.(Not)
	if !ok {
		t.Fatalf("got %#v, want Not", node)
	}
	if _, ok := not.Term.(And); !ok {
		t.Fatalf("not.Term = %#v, want And", not.Term)
	}
}

func TestParseComplexQuery(t *testing.T) {
	node, err := Parse(`detector:IDEA AND metadata.energy > 100`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	and, ok := node.(And)
	if !ok {
		t.Fatalf("got %#v, want And", node)
	}
	left, ok := and.Left.(Comparison)
	if !ok || left.Field.Parts[0] != "detector" {
		t.Errorf("left = %#v", and.Left)
	}
	right, ok := and.Right.(Comparison)
	if !ok || right.Field.Parts[0] != "metadata" {
		t.Errorf("right = %#v", and.Right)
	}
}

func TestParseUnparseableInputFails(t *testing.T) {
	cases := []string{
		"foo bar baz",      // bare identifiers with no operator/boolean glue
		"detector:IDEA AND", // dangling AND
		"(detector:IDEA",    // unclosed paren
		`"unterminated`,     // unterminated string
		"metadata.energy >", // operator requiring a value with none given
	}
	for _, q := range cases {
		if _, err := Parse(q); err == nil {
			t.Errorf("Parse(%q) succeeded, want syntax error", q)
		}
	}
}

func TestParseKeywordsCaseSensitive(t *testing.T) {
	// lowercase "and"/"or"/"not" are identifiers, not keywords, per
	// spec.md §4.3 ("case-sensitive uppercase").
	node, err := Parse("and")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	gs, ok := node.(GlobalSearch)
	if !ok || gs.Value != "and" {
		t.Errorf("got %#v, want GlobalSearch{and}", node)
	}
}

func TestParseOperatorVariants(t *testing.T) {
	ops := []string{"=", "!=", ">", "<", ">=", "<=", "=~", "!~"}
	for _, op := range ops {
		q := "field" + op + "value"
		node, err := Parse(q)
		if err != nil {
			t.Fatalf("Parse(%q) error: %v", q, err)
		}
		cmp, ok := node.(Comparison)
		if !ok || cmp.Op != op {
			t.Errorf("Parse(%q) = %#v, want op %q", q, node, op)
		}
	}
}
