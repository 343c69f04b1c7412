package config

import (
	"github.com/garyjia/bid-reconciler/internal/application/pipeline"
	"github.com/garyjia/bid-reconciler/internal/container"
	"github.com/garyjia/bid-reconciler/internal/infrastructure/sheet"
	"github.com/garyjia/bid-reconciler/internal/reconcile"
)

// ToContainerConfig converts the application Config to a container.Config.
// This provides a bridge between the file-based config loaded by viper
// and the container's configuration structure.
func (c *Config) ToContainerConfig() *container.Config {
	return &container.Config{
		Database: container.DatabaseConfig{
			Path:            c.Database.Path,
			MaxOpenConns:    c.Database.MaxOpenConns,
			MaxIdleConns:    c.Database.MaxIdleConns,
			ConnMaxLifetime: c.Database.ConnMaxLifetime,
		},
		Pipeline: container.PipelineConfig{
			Run:                c.RunConfig(),
			ReferenceTables:    c.Pipeline.ReferenceTables,
			ClosedRunRetention: c.Pipeline.ClosedRunRetention,
			JanitorInterval:    c.Pipeline.JanitorInterval,
		},
		Sheet: c.SheetConfig(),
	}
}

// RunConfig returns the settings handed to each run
func (c *Config) RunConfig() pipeline.Config {
	return pipeline.Config{
		BaseCurrency: c.Pipeline.BaseCurrency,
		StageTimeout: c.Pipeline.StageTimeout,
		Matcher: reconcile.MatcherConfig{
			FuzzyThreshold: c.Pipeline.FuzzyThreshold,
			ExtraPrefixes:  c.Pipeline.ExtraPrefixes,
			Workers:        c.Pipeline.MatchWorkers,
		},
		SampleRows: c.Pipeline.SampleRows,
	}
}

// SheetConfig returns the workbook decoding settings
func (c *Config) SheetConfig() sheet.Config {
	return sheet.Config{
		HeaderRows: c.Sheet.HeaderRows,
		SheetName:  c.Sheet.SheetName,
	}
}
