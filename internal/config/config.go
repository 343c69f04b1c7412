package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"

	"github.com/garyjia/bid-reconciler/pkg/utils"
)

// EnvPrefix prefixes every environment override, e.g. BIDRECON_SERVER_PORT
const EnvPrefix = "BIDRECON"

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Logger   LoggerConfig   `mapstructure:"logger"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Sheet    SheetConfig    `mapstructure:"sheet"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	MaxUploadBytes int64         `mapstructure:"max_upload_bytes"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// PipelineConfig tunes the reconciliation runs
type PipelineConfig struct {
	BaseCurrency       string        `mapstructure:"base_currency"`
	StageTimeout       time.Duration `mapstructure:"stage_timeout"`
	FuzzyThreshold     int           `mapstructure:"fuzzy_threshold"`
	ExtraPrefixes      []string      `mapstructure:"extra_prefixes"`
	MatchWorkers       int           `mapstructure:"match_workers"`
	SampleRows         int           `mapstructure:"sample_rows"`
	ReferenceTables    string        `mapstructure:"reference_tables"` // optional YAML file
	ClosedRunRetention time.Duration `mapstructure:"closed_run_retention"`
	JanitorInterval    time.Duration `mapstructure:"janitor_interval"`
}

// SheetConfig controls how uploaded workbooks are read
type SheetConfig struct {
	HeaderRows int    `mapstructure:"header_rows"`
	SheetName  string `mapstructure:"sheet_name"`
}

// Load loads configuration from file, an optional .env file and environment
// variables. A missing config file is not an error; defaults apply.
func Load(configPath, envPath string) (*Config, error) {
	if envPath != "" {
		if err := gotenv.Load(envPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load env file: %w", err)
		}
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvVars(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Pipeline.BaseCurrency = strings.ToUpper(strings.TrimSpace(cfg.Pipeline.BaseCurrency))

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 0)
	v.SetDefault("server.max_upload_bytes", 20<<20)

	// Database defaults
	v.SetDefault("database.path", "data/bids.db")
	v.SetDefault("database.max_open_conns", 1)
	v.SetDefault("database.max_idle_conns", 1)
	v.SetDefault("database.conn_max_lifetime", 0)

	// Logger defaults
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")

	// Pipeline defaults
	v.SetDefault("pipeline.base_currency", "SAR")
	v.SetDefault("pipeline.stage_timeout", 30*time.Second)
	v.SetDefault("pipeline.fuzzy_threshold", 60)
	v.SetDefault("pipeline.extra_prefixes", []string{"EXT", "ADD"})
	v.SetDefault("pipeline.match_workers", 4)
	v.SetDefault("pipeline.sample_rows", 5)
	v.SetDefault("pipeline.reference_tables", "")
	v.SetDefault("pipeline.closed_run_retention", 15*time.Minute)
	v.SetDefault("pipeline.janitor_interval", time.Minute)

	// Sheet defaults
	v.SetDefault("sheet.header_rows", 1)
	v.SetDefault("sheet.sheet_name", "")
}

// bindEnvVars binds the short environment names kept for deployments
func bindEnvVars(v *viper.Viper) {
	_ = v.BindEnv("database.path", EnvPrefix+"_DATABASE_PATH")
	_ = v.BindEnv("pipeline.base_currency", EnvPrefix+"_BASE_CURRENCY")
	_ = v.BindEnv("pipeline.reference_tables", EnvPrefix+"_REFERENCE_TABLES")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if err := utils.ValidateCurrencyCode(c.Pipeline.BaseCurrency); err != nil {
		return fmt.Errorf("pipeline.base_currency: %w", err)
	}
	if c.Pipeline.StageTimeout <= 0 {
		return fmt.Errorf("pipeline.stage_timeout must be positive")
	}
	if c.Pipeline.FuzzyThreshold < 0 || c.Pipeline.FuzzyThreshold > 100 {
		return fmt.Errorf("pipeline.fuzzy_threshold must be between 0 and 100")
	}
	if c.Pipeline.MatchWorkers < 1 {
		return fmt.Errorf("pipeline.match_workers must be at least 1")
	}
	if c.Pipeline.ClosedRunRetention < 0 {
		return fmt.Errorf("pipeline.closed_run_retention must not be negative")
	}

	if c.Sheet.HeaderRows < 0 {
		return fmt.Errorf("sheet.header_rows must not be negative")
	}

	return nil
}
