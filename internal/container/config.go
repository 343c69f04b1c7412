// Package container provides dependency injection and lifecycle management
// for the bid reconciliation service following Clean Architecture principles.
package container

import (
	"fmt"
	"time"

	"github.com/garyjia/bid-reconciler/internal/application/pipeline"
	"github.com/garyjia/bid-reconciler/internal/infrastructure/sheet"
)

// Config holds all configuration for the Container.
// It aggregates configurations for all subsystems.
type Config struct {
	// Database configuration
	Database DatabaseConfig

	// Pipeline configuration
	Pipeline PipelineConfig

	// Sheet decoding configuration
	Sheet sheet.Config
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// Path to SQLite database file
	Path string

	// MaxOpenConns is the maximum number of open connections
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections
	MaxIdleConns int

	// ConnMaxLifetime is the maximum connection lifetime
	ConnMaxLifetime time.Duration
}

// PipelineConfig holds run settings and the run registry housekeeping.
type PipelineConfig struct {
	// Run settings handed to every new run
	Run pipeline.Config

	// ReferenceTables is an optional YAML file replacing the built-in tables
	ReferenceTables string

	// ClosedRunRetention is how long imported and cancelled runs stay readable
	ClosedRunRetention time.Duration

	// JanitorInterval is how often closed runs are evicted
	JanitorInterval time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:         "data/bids.db",
			MaxOpenConns: 1,
			MaxIdleConns: 1,
		},
		Pipeline: PipelineConfig{
			Run:                pipeline.DefaultConfig(),
			ClosedRunRetention: 15 * time.Minute,
			JanitorInterval:    time.Minute,
		},
		Sheet: sheet.Config{HeaderRows: 1},
	}
}

// Validate checks that required configuration values are present.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Pipeline.Run.BaseCurrency == "" {
		return fmt.Errorf("pipeline.base_currency is required")
	}
	if c.Pipeline.Run.StageTimeout <= 0 {
		return fmt.Errorf("pipeline.stage_timeout must be positive")
	}
	if c.Pipeline.JanitorInterval <= 0 {
		return fmt.Errorf("pipeline.janitor_interval must be positive")
	}
	return nil
}
