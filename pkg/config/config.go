package config

import (
	"fmt"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for fleetlens-engine.
// Configuration can come from YAML file (config.yaml) or environment
// variables. Environment variables always override YAML values.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8460"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// Database configuration (embedded SQLite)
	Database DatabaseConfig `yaml:"database"`

	// Regularization configuration
	Regularization RegularizationConfig `yaml:"regularization"`

	// Road-wear index configuration
	RoadWear RoadWearConfig `yaml:"road_wear"`

	// Query configuration
	Query QueryConfig `yaml:"query"`
}

// DatabaseConfig holds settings for the embedded store file.
type DatabaseConfig struct {
	// Path is the SQLite database file. ":memory:" is accepted for tests.
	Path string `yaml:"path" env:"FLEETLENS_DB_PATH" env-default:"fleetlens.db"`
	// MaxReaders caps the number of concurrently open read handles.
	MaxReaders int `yaml:"max_readers" env:"FLEETLENS_DB_MAX_READERS" env-default:"16"`
	// BusyTimeoutMS is the SQLite busy_timeout pragma value.
	BusyTimeoutMS int `yaml:"busy_timeout_ms" env:"FLEETLENS_DB_BUSY_TIMEOUT_MS" env-default:"5000"`
}

// RegularizationConfig controls spelling regularization behavior.
type RegularizationConfig struct {
	// CuratedFrom/CuratedUntil bound the years whose categorical spellings
	// are trusted as canonical. The canonical hierarchy is computed only
	// over this window.
	CuratedFrom  int `yaml:"curated_from" env:"FLEETLENS_CURATED_FROM" env-default:"2011"`
	CuratedUntil int `yaml:"curated_until" env:"FLEETLENS_CURATED_UNTIL" env-default:"2024"`

	// Coupling controls whether expanding a regularized model filter also
	// constrains the mapped make (prevents cross-make false positives from
	// identically named models).
	Coupling bool `yaml:"coupling" env:"FLEETLENS_COUPLING" env-default:"true"`

	// IncludeLegacyFuelRecords includes records predating the fuel-type
	// field via triplet mappings; without it those records have no
	// observable fuel type at all.
	IncludeLegacyFuelRecords bool `yaml:"include_legacy_fuel_records" env:"FLEETLENS_INCLUDE_LEGACY_FUEL" env-default:"true"`

	// FuelTypePriorities orders fuel types for the auto-assignment
	// heuristic when a pair exhibits several values in curated data.
	FuelTypePriorities []string `yaml:"fuel_type_priorities" env:"FLEETLENS_FUEL_PRIORITIES" env-separator:"," env-default:"Gasoline,Diesel,Hybrid,Electric"`

	// VehicleTypePriorities is the vehicle-type counterpart.
	VehicleTypePriorities []string `yaml:"vehicle_type_priorities" env:"FLEETLENS_VEHICLE_TYPE_PRIORITIES" env-separator:"," env-default:"Passenger car,Van,Lorry"`
}

// CuratedRangeValid reports whether the curated window is a non-empty
// interval.
func (c *RegularizationConfig) CuratedRangeValid() bool {
	return c.CuratedFrom > 0 && c.CuratedUntil >= c.CuratedFrom
}

// RoadWearConfig points at the user-editable axle weight-distribution
// tables.
type RoadWearConfig struct {
	// WeightTablesPath is a YAML file of axle load distributions per axle
	// count plus per-vehicle-type fallbacks.
	WeightTablesPath string `yaml:"weight_tables_path" env:"FLEETLENS_WEIGHT_TABLES" env-default:"weight_tables.yaml"`
}

// QueryConfig tunes query execution.
type QueryConfig struct {
	// ExplainBeforeRun classifies each query plan before execution and
	// attaches a SlowQueryWarning for full scans. Never blocks execution.
	ExplainBeforeRun bool `yaml:"explain_before_run" env:"FLEETLENS_EXPLAIN_BEFORE_RUN" env-default:"true"`
	// TimeoutSeconds bounds a single aggregate query.
	TimeoutSeconds int `yaml:"timeout_seconds" env:"FLEETLENS_QUERY_TIMEOUT_SECONDS" env-default:"120"`
}

// Load reads configuration from path with environment variable overrides.
// The version parameter is injected at build time and set on the returned
// Config.
func Load(path, version string) (*Config, error) {
	cfg := &Config{Version: version}

	if err := cleanenv.ReadConfig(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path must not be empty")
	}
	if !c.Regularization.CuratedRangeValid() {
		return fmt.Errorf("regularization curated window [%d, %d] is empty",
			c.Regularization.CuratedFrom, c.Regularization.CuratedUntil)
	}
	if c.Query.TimeoutSeconds <= 0 {
		return fmt.Errorf("query.timeout_seconds must be positive")
	}
	return nil
}

// CuratedYears returns the configured curated window as a year range.
func (c *Config) CuratedYears() (from, until int) {
	return c.Regularization.CuratedFrom, c.Regularization.CuratedUntil
}
