package config

import (
	"fmt"
	"runtime"
	"time"
)

// Missing-attribute policies
const (
	OnMissingAbort = "abort"
	OnMissingSkip  = "skip"
)

// Config holds the global configuration for shaping and loading
type Config struct {
	// Input settings
	InputFiles []string

	// Output settings
	OutputDir string
	Format    string // "csv" or "parquet"
	BatchSize int    // Rows per Parquet row group

	// Shaping settings
	TablesFile string // YAML overrides for correction table and field lists
	CheckRows  bool   // Validate every shaped element before writing
	SchemaFile string // YAML validation schema (default schema when empty)
	OnMissing  string // What to do with elements missing required attributes

	// Database settings
	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string
	DBSchema   string

	// Processing settings
	Workers int

	// Logging and metrics
	Verbose         bool
	LogFile         string        // Path to log file (empty = no file logging)
	MetricsInterval time.Duration // Interval for progress and system metrics logging
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		OutputDir:       "./osm_csv",
		Format:          "csv",
		BatchSize:       100000,
		OnMissing:       OnMissingAbort,
		DBHost:          "localhost",
		DBPort:          5432,
		DBName:          "osm",
		DBUser:          "postgres",
		DBSchema:        "public",
		Workers:         runtime.NumCPU(),
		MetricsInterval: 30 * time.Second,
	}
}

// ConnectionString returns a PostgreSQL connection string
func (c *Config) ConnectionString() string {
	connStr := fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s sslmode=disable",
		c.DBHost, c.DBPort, c.DBName, c.DBUser,
	)
	if c.DBPassword != "" {
		connStr += fmt.Sprintf(" password=%s", c.DBPassword)
	}
	return connStr
}

// Validate checks that the configuration for a shaping run is valid
func (c *Config) Validate() error {
	if len(c.InputFiles) == 0 {
		return fmt.Errorf("at least one input file is required")
	}
	if c.OutputDir == "" {
		return fmt.Errorf("output directory is required")
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1")
	}
	switch c.Format {
	case "csv", "parquet":
	default:
		return fmt.Errorf("format must be csv or parquet, got %q", c.Format)
	}
	if c.Format == "parquet" && c.BatchSize < 1 {
		return fmt.Errorf("batch size must be at least 1")
	}
	switch c.OnMissing {
	case OnMissingAbort, OnMissingSkip:
	default:
		return fmt.Errorf("on-missing must be %s or %s, got %q", OnMissingAbort, OnMissingSkip, c.OnMissing)
	}
	if c.SchemaFile != "" && !c.CheckRows {
		return fmt.Errorf("a schema file requires validation to be enabled")
	}
	return nil
}
