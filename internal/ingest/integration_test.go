package ingest_test

import (
	"context"
	"io/fs"
	"os"
	"strings"
	"testing"

	"github.com/cern-fcc/datacatalog/db"
	"github.com/cern-fcc/datacatalog/internal/catalog"
	"github.com/cern-fcc/datacatalog/internal/dbpool"
	"github.com/cern-fcc/datacatalog/internal/ingest"
	"github.com/cern-fcc/datacatalog/pkg/pgfixture"
)

func TestMain(m *testing.M) {
	sub, err := fs.Sub(db.Migrations(), "migrations")
	if err != nil {
		panic(err)
	}
	pgfixture.BootOnce(&testing.T{}, pgfixture.WithGooseUp(sub))
	os.Exit(m.Run())
}

func TestImportResolvesPathAndMergesMetadata(t *testing.T) {
	sbx := pgfixture.NewSandbox(t)
	ctx := context.Background()

	pool, err := dbpool.OpenDSN(ctx, sbx.DSN, 0)
	if err != nil {
		t.Fatalf("OpenDSN: %v", err)
	}
	defer pool.Close()

	rec, err := catalog.New(pool.Pool, "processes", "metadata", nil).Analyze(ctx)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	engine := ingest.New(pool, rec, "metadata")

	batch := ingest.Batch{Processes: []ingest.RawRecord{
		mustUnmarshal(t, `{
			"process-name": "ee_run1",
			"path": "/eos/experiment/fcc/LEP/data/StageEvents/CampaignX/DetectorY",
			"energy": 91.2
		}`),
	}}

	result, err := engine.Import(ctx, batch)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if result.Processed != 1 || result.Failed != 0 {
		t.Fatalf("result = %+v, want 1 processed, 0 failed", result)
	}

	var acceleratorName, stageName, campaignName, detectorName string
	var energy float64
	const query = `
SELECT a.name, s.name, c.name, d.name, (p.metadata->>'energy')::float8
FROM processes p
JOIN accelerators a ON a.accelerator_id = p.accelerator_id
JOIN stages s ON s.stage_id = p.stage_id
JOIN campaigns c ON c.campaign_id = p.campaign_id
JOIN detectors d ON d.detector_id = p.detector_id
WHERE p.name = 'ee_run1'`
	if err := pool.QueryRow(ctx, query).Scan(&acceleratorName, &stageName, &campaignName, &detectorName, &energy); err != nil {
		t.Fatalf("verify row: %v", err)
	}

	if acceleratorName != "LEP" {
		t.Errorf("accelerator = %q, want LEP", acceleratorName)
	}
	if stageName != "Stage" {
		t.Errorf("stage = %q, want Stage", stageName)
	}
	if campaignName != "CampaignX" {
		t.Errorf("campaign = %q, want CampaignX", campaignName)
	}
	if detectorName != "DetectorY" {
		t.Errorf("detector = %q, want DetectorY", detectorName)
	}
	if energy != 91.2 {
		t.Errorf("metadata energy = %v, want 91.2", energy)
	}

	// Re-importing the same process-name merges metadata into the existing row
	// instead of creating a second one, per the upsert contract.
	batch2 := ingest.Batch{Processes: []ingest.RawRecord{
		mustUnmarshal(t, `{"process-name": "ee_run1", "path": "/eos/experiment/fcc/LEP/data/StageEvents/CampaignX/DetectorY", "luminosity": 150}`),
	}}
	if _, err := engine.Import(ctx, batch2); err != nil {
		t.Fatalf("second Import: %v", err)
	}

	var count int
	if err := pool.QueryRow(ctx, `SELECT count(*) FROM processes WHERE name = 'ee_run1'`).Scan(&count); err != nil {
		t.Fatalf("count rows: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected the second import to upsert, found %d rows named ee_run1", count)
	}

	row := pool.QueryRow(ctx, `SELECT metadata FROM processes WHERE name = 'ee_run1'`)
	var raw []byte
	if err := row.Scan(&raw); err != nil {
		t.Fatalf("scan metadata: %v", err)
	}
	if !containsBoth(raw) {
		t.Errorf("expected merged metadata to retain both keys, got %s", raw)
	}
}

func containsBoth(raw []byte) bool {
	s := string(raw)
	return strings.Contains(s, "energy") && strings.Contains(s, "luminosity")
}

func mustUnmarshal(t *testing.T, data string) ingest.RawRecord {
	t.Helper()
	var r ingest.RawRecord
	if err := r.UnmarshalJSON([]byte(data)); err != nil {
		t.Fatalf("unmarshal record: %v", err)
	}
	return r
}
