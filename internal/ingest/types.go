package ingest

import "encoding/json"

// RawRecord is one element of an ingestion batch. process-name and path are
// pulled out of the JSON object; every other key becomes metadata, per
// spec.md §4.7.
type RawRecord struct {
	ProcessName string
	Path        string
	Metadata    map[string]any
}

func (r *RawRecord) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if v, ok := raw["process-name"].(string); ok {
		r.ProcessName = v
	}
	delete(raw, "process-name")
	if v, ok := raw["path"].(string); ok {
		r.Path = v
	}
	delete(raw, "path")
	r.Metadata = raw
	return nil
}

// Batch is the top-level ingestion request body: { "processes": [...] }.
type Batch struct {
	Processes []RawRecord `json:"processes"`
}

// ForeignKeys holds the four navigation ids resolved from a record's path,
// per spec.md §4.7's candidate record shape. A nil pointer means the
// corresponding path position was absent.
type ForeignKeys struct {
	AcceleratorID *int64
	StageID       *int64
	CampaignID    *int64
	DetectorID    *int64
}

// Result summarizes one Import call, per spec.md §7's BatchImportError
// aggregate counts.
type Result struct {
	Processed int
	Failed    int
	Errors    []string
}
