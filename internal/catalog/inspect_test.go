package catalog

import (
	"reflect"
	"testing"
)

func TestDeriveEntityKey(t *testing.T) {
	cases := []struct {
		column string
		want   string
	}{
		{"accelerator_id", "accelerator"},
		{"detector_id", "detector"},
		{"id", ""},
		{"name", ""},
		{"_id", ""},
	}
	for _, tc := range cases {
		if got := deriveEntityKey(tc.column); got != tc.want {
			t.Errorf("deriveEntityKey(%q) = %q, want %q", tc.column, got, tc.want)
		}
	}
}

func TestFallbackPrimaryKey(t *testing.T) {
	cases := []struct {
		table string
		want  string
	}{
		{"categories", "category_id"},
		{"detectors", "detector_id"},
		{"campaigns", "campaign_id"},
		{"processes", "process_id"},
	}
	for _, tc := range cases {
		if got := fallbackPrimaryKey(tc.table); got != tc.want {
			t.Errorf("fallbackPrimaryKey(%q) = %q, want %q", tc.table, got, tc.want)
		}
	}
}

func TestChooseNameColumn(t *testing.T) {
	cases := []struct {
		name string
		cols []Column
		want string
	}{
		{
			name: "prefers exact name column",
			cols: []Column{
				{Name: "accelerator_id", DataType: "integer"},
				{Name: "description", DataType: "text"},
				{Name: "name", DataType: "character varying"},
			},
			want: "name",
		},
		{
			name: "falls back to first textual column",
			cols: []Column{
				{Name: "detector_id", DataType: "integer"},
				{Name: "label", DataType: "text"},
				{Name: "created_at", DataType: "timestamp without time zone"},
			},
			want: "label",
		},
		{
			name: "falls back to first column when nothing textual",
			cols: []Column{
				{Name: "id", DataType: "integer"},
				{Name: "weight", DataType: "numeric"},
			},
			want: "id",
		},
		{
			name: "empty column set",
			cols: nil,
			want: "",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := chooseNameColumn(tc.cols); got != tc.want {
				t.Errorf("chooseNameColumn() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestApplyNavigationOrderOverride(t *testing.T) {
	discovered := []string{"accelerator", "stage", "campaign", "detector"}
	override := []string{"detector", "accelerator"}

	got := applyNavigationOrderOverride(discovered, override)
	want := []string{"detector", "accelerator", "stage", "campaign"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("applyNavigationOrderOverride() = %v, want %v", got, want)
	}
}

func TestRecordNavigationByKeyStripsNameSuffix(t *testing.T) {
	rec := &Record{
		Navigation: map[string]NavigationEntity{
			"detector": {EntityKey: "detector", TableName: "detectors", PrimaryKey: "detector_id", NameColumn: "name"},
		},
	}

	if _, ok := rec.NavigationByKey("detector"); !ok {
		t.Fatal("expected direct lookup to succeed")
	}
	ent, ok := rec.NavigationByKey("detector_name")
	if !ok {
		t.Fatal("expected suffix-stripped lookup to succeed")
	}
	if ent.TableName != "detectors" {
		t.Errorf("got table %q, want detectors", ent.TableName)
	}
	if _, ok := rec.NavigationByKey("unknown"); ok {
		t.Error("expected lookup of unknown entity to fail")
	}
}

func TestRecordMetadataLookups(t *testing.T) {
	rec := &Record{
		MetadataKeys:   map[string]struct{}{"energy": {}},
		MetadataNested: map[string]struct{}{"beam.current": {}},
	}
	if !rec.HasMetadataKey("energy") {
		t.Error("expected energy to be a known metadata key")
	}
	if rec.HasMetadataKey("missing") {
		t.Error("did not expect missing to be a known metadata key")
	}
	if !rec.HasMetadataNested("beam.current") {
		t.Error("expected beam.current to be a known nested metadata key")
	}
}
