package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for vetdw.
// Configuration can come from a YAML file (config.yaml) or environment
// variables. Environment variables always override YAML values.
type Config struct {
	// DataDir is the root directory for raw inputs and database files.
	DataDir string `yaml:"data_dir" env:"VETDW_DATA_DIR" env-default:"data"`

	// StagingDB and WarehouseDB are SQLite file paths. Auto-derived from
	// DataDir when empty.
	StagingDB   string `yaml:"staging_db" env:"VETDW_STAGING_DB" env-default:""`
	WarehouseDB string `yaml:"warehouse_db" env:"VETDW_WAREHOUSE_DB" env-default:""`

	// Raw input files produced by the extraction collaborators.
	RawEventsFile    string `yaml:"raw_events_file" env:"VETDW_RAW_EVENTS_FILE" env-default:""`
	RawDogBreedsFile string `yaml:"raw_dog_breeds_file" env:"VETDW_RAW_DOG_BREEDS_FILE" env-default:""`
	RawCatBreedsFile string `yaml:"raw_cat_breeds_file" env:"VETDW_RAW_CAT_BREEDS_FILE" env-default:""`

	// MigrationsPath points at the warehouse schema migrations.
	MigrationsPath string `yaml:"migrations_path" env:"VETDW_MIGRATIONS_PATH" env-default:"migrations"`

	LogLevel string `yaml:"log_level" env:"VETDW_LOG_LEVEL" env-default:"info"`

	// MetricsAddr, when set (e.g. ":9187"), serves Prometheus metrics on
	// /metrics for the duration of a load run.
	MetricsAddr string `yaml:"metrics_addr" env:"VETDW_METRICS_ADDR" env-default:""`
}

// Load reads configuration from path with environment variable overrides.
// A missing config file is not an error; environment variables and
// defaults apply on their own.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	} else {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	}

	cfg.applyDefaults()
	return cfg, nil
}

// applyDefaults derives file paths from DataDir for fields left empty.
func (c *Config) applyDefaults() {
	if c.StagingDB == "" {
		c.StagingDB = filepath.Join(c.DataDir, "staging", "staging.db")
	}
	if c.WarehouseDB == "" {
		c.WarehouseDB = filepath.Join(c.DataDir, "warehouse", "vetdw.db")
	}
	if c.RawEventsFile == "" {
		c.RawEventsFile = filepath.Join(c.DataDir, "raw", "fda_events.jsonl")
	}
	if c.RawDogBreedsFile == "" {
		c.RawDogBreedsFile = filepath.Join(c.DataDir, "raw", "dog_breeds.json")
	}
	if c.RawCatBreedsFile == "" {
		c.RawCatBreedsFile = filepath.Join(c.DataDir, "raw", "cat_breeds.json")
	}
}
