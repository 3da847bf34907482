package catalog_test

import (
	"context"
	"io/fs"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cern-fcc/datacatalog/db"
	"github.com/cern-fcc/datacatalog/internal/catalog"
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

func TestAnalyzeDiscoversNavigationFromForeignKeys(t *testing.T) {
	sbx := pgfixture.NewSandbox(t)

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, sbx.DSN)
	if err != nil {
		t.Fatalf("pgxpool.New: %v", err)
	}
	defer pool.Close()

	if _, err := pool.Exec(ctx, `INSERT INTO accelerators (name) VALUES ('LEP')`); err != nil {
		t.Fatalf("seed accelerator: %v", err)
	}
	if _, err := pool.Exec(ctx,
		`INSERT INTO processes (name, accelerator_id, metadata) VALUES ($1, 1, $2)`,
		"ee_run1", `{"energy": 91.2, "beam": {"current": 5}}`,
	); err != nil {
		t.Fatalf("seed process: %v", err)
	}

	ins := catalog.New(pool, "processes", "metadata", nil)
	rec, err := ins.Analyze(ctx)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if rec.MainTable != "processes" {
		t.Errorf("MainTable = %q, want processes", rec.MainTable)
	}
	if rec.MainPrimaryKey != "process_id" {
		t.Errorf("MainPrimaryKey = %q, want process_id", rec.MainPrimaryKey)
	}

	ent, ok := rec.Navigation["accelerator"]
	if !ok {
		t.Fatal("expected accelerator navigation entity to be discovered")
	}
	if ent.TableName != "accelerators" {
		t.Errorf("accelerator TableName = %q, want accelerators", ent.TableName)
	}
	if ent.NameColumn != "name" {
		t.Errorf("accelerator NameColumn = %q, want name", ent.NameColumn)
	}

	if _, ok := rec.MetadataKeys["energy"]; !ok {
		t.Errorf("expected top-level metadata key %q, got %v", "energy", rec.MetadataKeys)
	}
	if _, ok := rec.MetadataNested["beam.current"]; !ok {
		t.Errorf("expected nested metadata key %q, got %v", "beam.current", rec.MetadataNested)
	}

	if ins.Cached() != rec {
		t.Error("Analyze should cache its result for Cached() to return")
	}

	ins.Invalidate()
	if ins.Cached() != nil {
		t.Error("Invalidate should clear the cached record")
	}
}
