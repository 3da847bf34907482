// Command datacatalog-ingest runs one offline ingestion batch against the
// configured database, bypassing the HTTP layer — the same path the file
// watcher described in spec.md §6 would drive from outside this repository.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cern-fcc/datacatalog/internal/catalog"
	"github.com/cern-fcc/datacatalog/internal/config"
	"github.com/cern-fcc/datacatalog/internal/dbpool"
	"github.com/cern-fcc/datacatalog/internal/ingest"
	"github.com/cern-fcc/datacatalog/internal/logging"
)

var (
	configPath string
	filePath   string
)

var rootCmd = &cobra.Command{
	Use:   "datacatalog-ingest",
	Short: "Import a batch of process records into the catalog",
	Long: `datacatalog-ingest reads a { "processes": [...] } JSON file and imports
it through the same lock-aware merge and path-resolution logic as
POST /api/ingest, without going through HTTP.`,
	RunE: runIngest,
}

func init() {
	rootCmd.Flags().StringVar(&configPath, "config", "", "path to a TOML/YAML config file (optional)")
	rootCmd.Flags().StringVar(&filePath, "file", "", "path to the processes JSON file")
	_ = rootCmd.MarkFlagRequired("file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func runIngest(cmd *cobra.Command, args []string) error {
	logger, err := logging.New(logging.Options{Development: true})
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx := context.Background()

	pool, err := dbpool.Open(ctx, dbpool.Config{
		Host:         cfg.Database.Host,
		Port:         cfg.Database.Port,
		User:         cfg.Database.User,
		Password:     cfg.Database.Password,
		Database:     cfg.Database.Name,
		QueryTimeout: cfg.Database.QueryTimeout,
	})
	if err != nil {
		return fmt.Errorf("open pool: %w", err)
	}
	defer pool.Close()

	inspector := catalog.New(pool.Pool, cfg.Application.MainTable, cfg.Application.MetadataColumn, cfg.Navigation.Order)
	rec, err := inspector.Analyze(ctx)
	if err != nil {
		return fmt.Errorf("analyze schema: %w", err)
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("read %s: %w", filePath, err)
	}

	var batch ingest.Batch
	if err := json.Unmarshal(data, &batch); err != nil {
		return fmt.Errorf("parse %s: %w", filePath, err)
	}

	engine := ingest.New(pool, rec, cfg.Application.MetadataColumn)
	result, err := engine.Import(ctx, batch)
	if err != nil {
		zap.L().Error("ingestion failed", zap.Error(err))
		return err
	}

	fmt.Printf("processed %d, failed %d\n", result.Processed, result.Failed)
	for _, e := range result.Errors {
		fmt.Println("  -", e)
	}
	return nil
}
