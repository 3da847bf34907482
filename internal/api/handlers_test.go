package api

import "testing"

func TestIntParamDefaultsWhenAbsent(t *testing.T) {
	q := map[string][]string{}
	got, err := intParam(q, "limit", 25)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 25 {
		t.Errorf("got %d, want 25", got)
	}
}

func TestIntParamParsesValue(t *testing.T) {
	q := map[string][]string{"limit": {"50"}}
	got, err := intParam(q, "limit", 25)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 50 {
		t.Errorf("got %d, want 50", got)
	}
}

func TestIntParamRejectsGarbage(t *testing.T) {
	q := map[string][]string{"limit": {"not-a-number"}}
	if _, err := intParam(q, "limit", 25); err == nil {
		t.Error("expected error for non-numeric limit")
	}
}

func TestParseJSONFilterEmptyStringIsNil(t *testing.T) {
	filter, err := parseJSONFilter("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if filter != nil {
		t.Errorf("expected nil filter for empty input, got %v", filter)
	}
}

func TestParseJSONFilterDecodesObject(t *testing.T) {
	filter, err := parseJSONFilter(`{"accelerator_name":"LEP"}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if filter["accelerator_name"] != "LEP" {
		t.Errorf("got %v", filter)
	}
}

func TestParseJSONFilterRejectsGarbage(t *testing.T) {
	if _, err := parseJSONFilter("{not json"); err == nil {
		t.Error("expected error for malformed JSON")
	}
}
