package sqltranslate

import (
	"strconv"
	"strings"
	"testing"

	"github.com/cern-fcc/datacatalog/internal/catalog"
	"github.com/cern-fcc/datacatalog/internal/joinplan"
	"github.com/cern-fcc/datacatalog/internal/querylang"
)

func testSetup() (*catalog.Record, *joinplan.Plan) {
	rec := &catalog.Record{
		MainTable:      "processes",
		MainPrimaryKey: "process_id",
		MainColumns: []catalog.Column{
			{Name: "process_id", DataType: "integer"},
			{Name: "name", DataType: "character varying"},
			{Name: "last_edited_at", DataType: "timestamp without time zone"},
		},
		Navigation: map[string]catalog.NavigationEntity{
			"detector": {EntityKey: "detector", TableName: "detectors", PrimaryKey: "detector_id", NameColumn: "name"},
		},
		NavigationOrder: []string{"detector"},
		MetadataKeys:    map[string]struct{}{"energy": {}},
		MetadataNested:  map[string]struct{}{"beam.current": {}},
	}
	plan := joinplan.Build(rec, "metadata")
	return rec, plan
}

func parseAndTranslate(t *testing.T, tr *Translator, q string) (string, []any) {
	t.Helper()
	node, err := querylang.Parse(q)
	if err != nil {
		t.Fatalf("Parse(%q) failed: %v", q, err)
	}
	sql, params, err := tr.Translate(node)
	if err != nil {
		t.Fatalf("Translate(%q) failed: %v", q, err)
	}
	return sql, params
}

func TestTranslateEmptyQueryIsTrue(t *testing.T) {
	rec, plan := testSetup()
	tr := New(rec, plan, "metadata")
	sql, params, err := tr.Translate(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sql != "TRUE" || len(params) != 0 {
		t.Errorf("got (%q, %v), want (TRUE, [])", sql, params)
	}
}

func TestTranslateDetectorAndMetadataComparison(t *testing.T) {
	rec, plan := testSetup()
	tr := New(rec, plan, "metadata")
	sql, params := parseAndTranslate(t, tr, "detector:IDEA AND metadata.energy > 100")

	if !strings.Contains(sql, "det.name ILIKE") {
		t.Errorf("sql = %q, want detector alias ILIKE clause", sql)
	}
	if !strings.Contains(sql, "(d.metadata ->> 'energy')::numeric > $2") {
		t.Errorf("sql = %q, want metadata numeric comparison", sql)
	}
	if len(params) != 2 || params[0] != "IDEA" || params[1] != 100.0 {
		t.Errorf("params = %v, want [IDEA 100]", params)
	}
}

func TestTranslateExistenceTestOnTimestamp(t *testing.T) {
	rec, plan := testSetup()
	tr := New(rec, plan, "metadata")
	sql, params := parseAndTranslate(t, tr, "last_edited_at:")

	if sql != "d.last_edited_at IS NOT NULL" {
		t.Errorf("sql = %q, want IS NOT NULL clause", sql)
	}
	if len(params) != 0 {
		t.Errorf("params = %v, want none", params)
	}
}

func TestTranslateExistenceTestHonorsConfiguredMetadataColumn(t *testing.T) {
	rec, plan := testSetup()
	plan = joinplan.Build(rec, "attrs")
	tr := New(rec, plan, "attrs")
	sql, _ := parseAndTranslate(t, tr, "energy:*")

	if !strings.Contains(sql, "d.attrs ? 'energy'") {
		t.Errorf("sql = %q, want existence test against configured column d.attrs", sql)
	}
	if strings.Contains(sql, "d.metadata") {
		t.Errorf("sql = %q, should not reference the hardcoded default column name", sql)
	}
}

func TestTranslateUnquotedGlobalSearchUsesSimilarity(t *testing.T) {
	rec, plan := testSetup()
	tr := New(rec, plan, "metadata")
	sql, params := parseAndTranslate(t, tr, "foo")

	if !strings.Contains(sql, "similarity($1, d.name) > 0.6") {
		t.Errorf("sql = %q, want similarity clause on d.name", sql)
	}
	if !strings.Contains(sql, "word_similarity($1, jsonb_values_to_text(d.metadata)) > 0.4") {
		t.Errorf("sql = %q, want word_similarity clause on metadata blob", sql)
	}
	if len(params) != 1 || params[0] != "foo" {
		t.Errorf("params = %v, want [foo]", params)
	}
}

func TestTranslateQuotedGlobalSearchUsesILike(t *testing.T) {
	rec, plan := testSetup()
	tr := New(rec, plan, "metadata")
	sql, params := parseAndTranslate(t, tr, `"IDEA detector"`)

	if !strings.Contains(sql, "ILIKE '%' || $1 || '%'") {
		t.Errorf("sql = %q, want ILIKE clause", sql)
	}
	if len(params) != 1 || params[0] != "IDEA detector" {
		t.Errorf("params = %v", params)
	}
}

func TestTranslateRegexOperators(t *testing.T) {
	rec, plan := testSetup()
	tr := New(rec, plan, "metadata")

	sql, _ := parseAndTranslate(t, tr, "name=~foo")
	if !strings.Contains(sql, "~* $1") {
		t.Errorf("sql = %q, want ~* operator", sql)
	}

	sql, _ = parseAndTranslate(t, tr, "name!~foo")
	if !strings.Contains(sql, "!~* $1") {
		t.Errorf("sql = %q, want !~* operator", sql)
	}
}

func TestTranslateBooleanCompositionAlwaysParenthesizes(t *testing.T) {
	rec, plan := testSetup()
	tr := New(rec, plan, "metadata")

	sql, _ := parseAndTranslate(t, tr, "NOT (detector:IDEA AND name=foo)")
	if !strings.HasPrefix(sql, "NOT (") {
		t.Errorf("sql = %q, want NOT(...) wrapping", sql)
	}
}

func TestTranslatePlaceholderCountMatchesParams(t *testing.T) {
	rec, plan := testSetup()
	tr := New(rec, plan, "metadata")

	queries := []string{
		"",
		"detector:IDEA",
		"detector:IDEA AND metadata.energy > 100",
		"foo",
		`"quoted phrase"`,
		"name=foo AND name!=bar OR metadata.energy<=5",
	}
	for _, q := range queries {
		node, err := querylang.Parse(q)
		if err != nil {
			t.Fatalf("Parse(%q): %v", q, err)
		}
		sql, params, err := tr.Translate(node)
		if err != nil {
			t.Fatalf("Translate(%q): %v", q, err)
		}
		count := strings.Count(sql, "$")
		// Shared parameters (GlobalSearch) reuse one placeholder across
		// multiple clauses, so placeholder occurrences can exceed
		// len(params); what must hold is that every placeholder number
		// that appears is <= len(params).
		maxSeen := 0
		for n := 1; n <= count; n++ {
			if strings.Contains(sql, "$"+strconv.Itoa(n)) {
				maxSeen = n
			}
		}
		if maxSeen > len(params) {
			t.Errorf("Translate(%q): sql references $%d but only %d params bound", q, maxSeen, len(params))
		}
	}
}
