package navigation

import (
	"testing"

	"github.com/cern-fcc/datacatalog/internal/apperr"
	"github.com/cern-fcc/datacatalog/internal/catalog"
	"github.com/cern-fcc/datacatalog/internal/joinplan"
)

func testSetup() (*catalog.Record, *joinplan.Plan) {
	rec := &catalog.Record{
		MainTable:      "processes",
		MainPrimaryKey: "id",
		MainColumns: []catalog.Column{
			{Name: "id", DataType: "integer"},
			{Name: "name", DataType: "text"},
			{Name: "metadata", DataType: "jsonb"},
			{Name: "detector_id", DataType: "integer"},
		},
		Navigation: map[string]catalog.NavigationEntity{
			"detector": {EntityKey: "detector", TableName: "detectors", PrimaryKey: "detector_id", NameColumn: "name"},
		},
		NavigationOrder: []string{"detector"},
		MetadataKeys:    map[string]struct{}{},
		MetadataNested:  map[string]struct{}{},
	}
	plan := joinplan.Build(rec, "metadata")
	return rec, plan
}

func TestDropdownRejectsUnknownEntityBeforeTouchingPool(t *testing.T) {
	rec, plan := testSetup()
	svc := New(nil, rec, plan, "metadata")

	_, err := svc.Dropdown(nil, "no_such_entity", nil)
	if err == nil {
		t.Fatal("expected error")
	}
	ae, ok := apperr.As(err)
	if !ok || ae.Kind != apperr.KindValidation {
		t.Fatalf("expected KindValidation, got %v", err)
	}
}

func TestTextualColumns(t *testing.T) {
	rec, plan := testSetup()
	svc := New(nil, rec, plan, "metadata")

	cols := svc.textualColumns()
	if len(cols) != 1 || cols[0] != "d.name" {
		t.Errorf("textualColumns() = %v, want [d.name]", cols)
	}
}

func TestIsTextual(t *testing.T) {
	cases := map[string]bool{
		"text":               true,
		"character varying":  true,
		"varchar":            true,
		"integer":            false,
		"jsonb":              false,
		"timestamp with time zone": false,
	}
	for dt, want := range cases {
		if got := isTextual(dt); got != want {
			t.Errorf("isTextual(%q) = %v, want %v", dt, got, want)
		}
	}
}

func TestAddTextSearchEmptyInputsNoop(t *testing.T) {
	where, args := addTextSearch("WHERE d.x = $1", []any{1}, []string{"d.name"}, "")
	if where != "WHERE d.x = $1" || len(args) != 1 {
		t.Errorf("expected no-op, got where=%q args=%v", where, args)
	}
}

func TestAddTextSearchNoColumnsNoop(t *testing.T) {
	where, args := addTextSearch("", nil, nil, "foo")
	if where != "" || args != nil {
		t.Errorf("expected no-op with no textual columns, got where=%q args=%v", where, args)
	}
}

func TestAddTextSearchAppendsToExistingWhere(t *testing.T) {
	where, args := addTextSearch("WHERE d.detector_id = $1", []any{5}, []string{"d.name"}, "IDEA")
	wantWhere := "WHERE d.detector_id = $1 AND (d.name ILIKE '%' || $2 || '%')"
	if where != wantWhere {
		t.Errorf("where = %q, want %q", where, wantWhere)
	}
	if len(args) != 2 || args[1] != "IDEA" {
		t.Errorf("args = %v", args)
	}
}

func TestAddTextSearchStartsFreshWhere(t *testing.T) {
	where, args := addTextSearch("", nil, []string{"d.name"}, "IDEA")
	wantWhere := "WHERE (d.name ILIKE '%' || $1 || '%')"
	if where != wantWhere {
		t.Errorf("where = %q, want %q", where, wantWhere)
	}
	if len(args) != 1 || args[0] != "IDEA" {
		t.Errorf("args = %v", args)
	}
}

func TestAddTextSearchMultipleColumnsOred(t *testing.T) {
	where, _ := addTextSearch("", nil, []string{"d.name", "d.description"}, "foo")
	wantWhere := "WHERE (d.name ILIKE '%' || $1 || '%' OR d.description ILIKE '%' || $1 || '%')"
	if where != wantWhere {
		t.Errorf("where = %q, want %q", where, wantWhere)
	}
}
