// Package config loads the keys of spec.md §6 via viper (a TOML/YAML file
// plus DATACATALOG_-prefixed environment variables) into a typed struct.
// The core never touches viper directly — it depends only on this
// package's Config/Database/Application/General structs.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Database is the DSN-assembly configuration of spec.md §6.
type Database struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	QueryTimeout time.Duration
}

// Application names which table is "main" and which column holds metadata,
// plus the two frontend-facing display strings the schema endpoint
// forwards verbatim.
type Application struct {
	MainTable         string
	MetadataColumn    string
	Title             string
	SearchPlaceholder string
}

// General holds the role-gating and session-cookie keys.
type General struct {
	RequiredCERNRole string
	CookiePrefix     string
}

// FileWatcher configuration is accepted and passed through unused by the
// core — the watcher itself lives outside this repository, per spec.md §6.
type FileWatcher struct {
	WatchPaths      []string
	PollingInterval time.Duration
	StartupMode     string
	StateFile       string
}

// Navigation carries the optional navigation-order override of spec.md §4.1.
type Navigation struct {
	Order []string
}

// Config is the fully resolved application configuration.
type Config struct {
	Database    Database
	Application Application
	General     General
	FileWatcher FileWatcher
	Navigation  Navigation
}

const envPrefix = "DATACATALOG"

// Load reads configuration from configPath (if non-empty) and environment
// variables prefixed DATACATALOG_, applying the defaults spec.md §4.9/§9
// name (5/20 pool range is a dbpool concern, not configuration here).
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("application.main_table", "processes")
	v.SetDefault("application.metadata_column", "metadata")
	v.SetDefault("application.title", "Data Explorer")
	v.SetDefault("application.search_placeholder", "Search "+v.GetString("application.main_table")+"...")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.query_timeout", "30s")
	v.SetDefault("general.cookie_prefix", "datacatalog")
	v.SetDefault("file_watcher.startup_mode", "ignore")

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	cfg := &Config{
		Database: Database{
			Host:         v.GetString("database.host"),
			Port:         v.GetInt("database.port"),
			User:         v.GetString("database.user"),
			Password:     v.GetString("database.password"),
			Name:         v.GetString("database.db"),
			QueryTimeout: v.GetDuration("database.query_timeout"),
		},
		Application: Application{
			MainTable:         v.GetString("application.main_table"),
			MetadataColumn:    v.GetString("application.metadata_column"),
			Title:             v.GetString("application.title"),
			SearchPlaceholder: v.GetString("application.search_placeholder"),
		},
		General: General{
			RequiredCERNRole: v.GetString("general.required_cern_role"),
			CookiePrefix:     v.GetString("general.cookie_prefix"),
		},
		FileWatcher: FileWatcher{
			WatchPaths:      v.GetStringSlice("file_watcher.watch_paths"),
			PollingInterval: v.GetDuration("file_watcher.polling_interval"),
			StartupMode:     v.GetString("file_watcher.startup_mode"),
			StateFile:       v.GetString("file_watcher.state_file"),
		},
		Navigation: Navigation{
			Order: v.GetStringSlice("navigation.order"),
		},
	}

	return cfg, nil
}
