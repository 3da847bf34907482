package ingest

import "strings"

// PathComponents are the four navigation names extracted from a record's
// path string, per spec.md §4.7.
type PathComponents struct {
	AcceleratorName string
	StageName       string
	CampaignName    string
	DetectorName    string
}

// ParsePath extracts navigation names from an EOS-style path by project
// convention: position 4 is the accelerator, position 6 is the stage
// (with a literal "Events" suffix stripped), position 7 the campaign,
// position 8 the detector. Paths are split on "/" directly rather than the
// host OS separator, since these always name EOS storage locations
// regardless of what platform the ingester runs on — matching the leading
// empty element an absolute path produces mirrors the original's
// pathlib.Path(...).parts indexing, which counts the root as element 0.
// Any missing position leaves the corresponding name empty; ingestion
// still proceeds with a null foreign key for that position.
func ParsePath(path string) PathComponents {
	if path == "" {
		return PathComponents{}
	}
	parts := strings.Split(path, "/")

	var pc PathComponents
	if len(parts) > 4 {
		pc.AcceleratorName = strings.TrimSpace(parts[4])
	}
	if len(parts) > 6 {
		pc.StageName = strings.TrimSpace(strings.TrimSuffix(parts[6], "Events"))
	}
	if len(parts) > 7 {
		pc.CampaignName = strings.TrimSpace(parts[7])
	}
	if len(parts) > 8 {
		pc.DetectorName = strings.TrimSpace(parts[8])
	}
	return pc
}
