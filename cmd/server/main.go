package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/cern-fcc/datacatalog/db"
	"github.com/cern-fcc/datacatalog/internal/api"
	"github.com/cern-fcc/datacatalog/internal/auth"
	"github.com/cern-fcc/datacatalog/internal/catalog"
	"github.com/cern-fcc/datacatalog/internal/config"
	"github.com/cern-fcc/datacatalog/internal/dbpool"
	"github.com/cern-fcc/datacatalog/internal/ingest"
	"github.com/cern-fcc/datacatalog/internal/joinplan"
	"github.com/cern-fcc/datacatalog/internal/logging"
	"github.com/cern-fcc/datacatalog/internal/navigation"
	"github.com/cern-fcc/datacatalog/internal/search"
)

func main() {
	configPath := flag.String("config", "", "path to a TOML/YAML config file (optional; DATACATALOG_ env vars always apply)")
	addr := flag.String("addr", ":8080", "HTTP listen address")
	flag.Parse()

	logger, err := logging.New(logging.Options{Development: os.Getenv("DATACATALOG_ENV") != "production"})
	if err != nil {
		panic(err)
	}
	defer logger.Sync() //nolint:errcheck

	cfg, err := config.Load(*configPath)
	if err != nil {
		zap.L().Fatal("failed to load configuration", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := dbpool.Open(ctx, dbpool.Config{
		Host:         cfg.Database.Host,
		Port:         cfg.Database.Port,
		User:         cfg.Database.User,
		Password:     cfg.Database.Password,
		Database:     cfg.Database.Name,
		QueryTimeout: cfg.Database.QueryTimeout,
	})
	if err != nil {
		zap.L().Fatal("failed to open database pool", zap.Error(err))
	}
	defer pool.Close()

	if err := dbpool.Bootstrap(ctx, pool, db.Schema()); err != nil {
		zap.L().Fatal("failed to bootstrap schema", zap.Error(err))
	}

	inspector := catalog.New(pool.Pool, cfg.Application.MainTable, cfg.Application.MetadataColumn, cfg.Navigation.Order)
	rec, err := inspector.Analyze(ctx)
	if err != nil {
		zap.L().Fatal("failed to analyze schema", zap.Error(err))
	}
	plan := joinplan.Build(rec, cfg.Application.MetadataColumn)

	// auth.AllowAll is the development stub; production OIDC/JWT wiring is
	// out of scope and plugs in here behind the same Authenticator interface.
	var devRoles []string
	if cfg.General.RequiredCERNRole != "" {
		devRoles = []string{cfg.General.RequiredCERNRole}
	}

	srv := &api.Server{
		Inspector:  inspector,
		Search:     search.New(pool, rec, plan, cfg.Application.MetadataColumn),
		Navigation: navigation.New(pool, rec, plan, cfg.Application.MetadataColumn),
		Ingest:     ingest.New(pool, rec, cfg.Application.MetadataColumn),
		Authn:      auth.AllowAll{Roles: devRoles},
		Config:     cfg,
	}

	httpServer := &http.Server{
		Addr:              *addr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zap.L().Info("server listening", zap.String("addr", *addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zap.L().Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zap.L().Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zap.L().Error("graceful shutdown failed", zap.Error(err))
	}
}
