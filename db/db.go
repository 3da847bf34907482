// Package db bundles the application's DDL: schema.sql for
// dbpool.Bootstrap's one-shot advisory-locked apply, and the goose-managed
// migrations/ directory pkg/pgfixture replays against a fresh
// testcontainer.
package db

import "embed"

//go:embed schema.sql
var schemaSQL string

// Schema returns the bundled production DDL.
func Schema() string { return schemaSQL }

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrations returns the embedded goose migration directory.
func Migrations() embed.FS { return migrationsFS }
