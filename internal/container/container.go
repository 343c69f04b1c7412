package container

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/garyjia/bid-reconciler/internal/application/dispatcher"
	"github.com/garyjia/bid-reconciler/internal/application/port"
	"github.com/garyjia/bid-reconciler/internal/application/service"
	"github.com/garyjia/bid-reconciler/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/bid-reconciler/internal/infrastructure/sheet"
	"github.com/garyjia/bid-reconciler/internal/infrastructure/worker"
	"github.com/garyjia/bid-reconciler/internal/reference"
)

// Container manages all application dependencies and lifecycle.
// Components are initialized in dependency order and torn down in reverse.
type Container struct {
	config *Config
	logger *zap.Logger

	// Infrastructure - Data
	sqlDB         *sql.DB
	db            *sqlite.DB
	schemaVersion int
	repositories  *RepositoryBundle
	tables        *reference.Tables
	decoder       *sheet.Decoder

	// Application
	dispatcher dispatcher.Dispatcher
	services   *ServiceBundle
	workers    *worker.Manager

	// Lifecycle
	mu     sync.RWMutex
	ctx    context.Context
	cancel context.CancelFunc
	ready  atomic.Bool
	closed atomic.Bool
}

// RepositoryBundle groups all repositories for convenient access.
type RepositoryBundle struct {
	Boq        port.BoqRepository
	Submission port.SubmissionRepository
}

// ServiceBundle groups all application services.
type ServiceBundle struct {
	Import service.ImportService
}

// HealthStatus represents the health of all components.
type HealthStatus struct {
	Overall    bool                       `json:"overall"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth represents health of a single component.
type ComponentHealth struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// NewContainer creates a new container from configuration.
// It does not initialize components - call Start() to initialize.
func NewContainer(cfg *Config, logger *zap.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Container{
		config: cfg,
		logger: logger,
	}, nil
}

// Start initializes all components in dependency order:
// 1. Database and repositories
// 2. Reference tables and sheet decoder
// 3. Event dispatcher
// 4. Application services
// 5. Background workers (closed-run janitor)
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container has been closed")
	}

	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}

	c.ctx, c.cancel = context.WithCancel(ctx)
	c.logger.Info("Starting container initialization")

	// unwind releases what was opened before a failed step
	unwind := func(err error) error {
		c.cancel()
		_ = c.closeDatabase()
		return err
	}

	if err := c.initDatabase(); err != nil {
		return unwind(fmt.Errorf("failed to initialize database: %w", err))
	}
	c.logger.Info("Database initialized", zap.Int("schema_version", c.schemaVersion))

	if err := c.initReference(); err != nil {
		return unwind(fmt.Errorf("failed to initialize reference data: %w", err))
	}

	disp, err := ProvideDispatcher(c.logger)
	if err != nil {
		return unwind(fmt.Errorf("failed to initialize dispatcher: %w", err))
	}
	c.dispatcher = disp

	services, err := ProvideServices(&ServiceDeps{
		Repos:      c.repositories,
		TxManager:  c.db,
		Dispatcher: c.dispatcher,
		Tables:     c.tables,
		Pipeline:   &c.config.Pipeline,
		Logger:     c.logger,
	})
	if err != nil {
		return unwind(fmt.Errorf("failed to initialize services: %w", err))
	}
	c.services = services
	c.logger.Info("Application services initialized")

	c.workers = ProvideWorkers(c.services, &c.config.Pipeline, c.logger)
	if err := c.workers.StartAll(c.ctx); err != nil {
		return unwind(fmt.Errorf("failed to start workers: %w", err))
	}

	c.ready.Store(true)
	c.logger.Info("Container started successfully")

	return nil
}

// Close gracefully shuts down all components in reverse order.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container already closed")
	}

	c.logger.Info("Closing container")

	var errs []error

	if c.workers != nil {
		if err := c.workers.StopAll(); err != nil {
			errs = append(errs, fmt.Errorf("stop workers: %w", err))
		}
	}
	if c.cancel != nil {
		c.cancel()
	}

	if c.dispatcher != nil {
		if err := c.dispatcher.Close(); err != nil {
			c.logger.Error("Failed to close dispatcher", zap.Error(err))
			errs = append(errs, fmt.Errorf("close dispatcher: %w", err))
		}
	}

	if err := c.closeDatabase(); err != nil {
		errs = append(errs, fmt.Errorf("close database: %w", err))
	}

	c.closed.Store(true)
	c.ready.Store(false)

	if len(errs) > 0 {
		c.logger.Error("Container closed with errors", zap.Int("error_count", len(errs)))
		return fmt.Errorf("container closed with %d errors", len(errs))
	}

	c.logger.Info("Container closed successfully")
	return nil
}

// Ready returns true when all components are initialized.
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// Health returns health status of all components.
func (c *Container) Health() *HealthStatus {
	status := &HealthStatus{
		Overall:    true,
		Components: make(map[string]ComponentHealth),
	}

	set := func(name string, healthy bool, msg string) {
		status.Components[name] = ComponentHealth{Healthy: healthy, Message: msg}
		if !healthy {
			status.Overall = false
		}
	}

	switch {
	case c.sqlDB == nil:
		set("database", false, "not initialized")
	default:
		if err := c.sqlDB.Ping(); err != nil {
			set("database", false, fmt.Sprintf("ping failed: %v", err))
		} else {
			set("database", true, fmt.Sprintf("schema version %d", c.schemaVersion))
		}
	}

	if c.tables != nil {
		set("reference_tables", true, "version "+c.tables.Version)
	} else {
		set("reference_tables", false, "not initialized")
	}

	if c.dispatcher != nil {
		set("dispatcher", true, "")
	} else {
		set("dispatcher", false, "not initialized")
	}

	if c.services != nil {
		set("services", true, "")
	} else {
		set("services", false, "not initialized")
	}

	if c.workers != nil && c.workers.IsRunning() {
		set("workers", true, fmt.Sprintf("%d running", c.workers.Count()))
	} else {
		set("workers", false, "not running")
	}

	return status
}

// initDatabase initializes the database and all repositories using providers.
func (c *Container) initDatabase() error {
	dbBundle, err := ProvideDatabase(&c.config.Database, c.logger)
	if err != nil {
		return err
	}

	c.sqlDB = dbBundle.SqlDB
	c.db = dbBundle.TransactionMgr
	c.schemaVersion = dbBundle.SchemaVersion

	repos, err := ProvideRepositories(c.sqlDB, c.logger)
	if err != nil {
		return err
	}

	c.repositories = repos
	return nil
}

// initReference loads the reference tables and builds the workbook decoder.
func (c *Container) initReference() error {
	tables, err := ProvideReferenceTables(c.config.Pipeline.ReferenceTables, c.logger)
	if err != nil {
		return err
	}
	c.tables = tables
	c.decoder = sheet.NewDecoder(c.config.Sheet, c.logger)
	return nil
}

func (c *Container) closeDatabase() error {
	if c.sqlDB == nil {
		return nil
	}
	err := c.sqlDB.Close()
	if err != nil {
		c.logger.Error("Failed to close database", zap.Error(err))
	} else {
		c.logger.Info("Database closed")
	}
	c.sqlDB = nil
	return err
}

// Getters for accessing container components

// DB returns the transaction manager.
func (c *Container) DB() port.TransactionManager {
	return c.db
}

// Repositories returns all repositories.
func (c *Container) Repositories() *RepositoryBundle {
	return c.repositories
}

// Dispatcher returns the event dispatcher.
func (c *Container) Dispatcher() dispatcher.Dispatcher {
	return c.dispatcher
}

// Services returns all application services.
func (c *Container) Services() *ServiceBundle {
	return c.services
}

// Decoder returns the workbook decoder.
func (c *Container) Decoder() *sheet.Decoder {
	return c.decoder
}

// Tables returns the reference tables in use.
func (c *Container) Tables() *reference.Tables {
	return c.tables
}

// Logger returns the container's logger.
func (c *Container) Logger() *zap.Logger {
	return c.logger
}

// Config returns the container's configuration.
func (c *Container) Config() *Config {
	return c.config
}

// LoggerAdapter adapts zap.Logger to the key/value Logger interfaces of
// the dispatcher and the HTTP adapter.
type LoggerAdapter struct {
	logger *zap.Logger
}

// NewLoggerAdapter wraps a zap logger
func NewLoggerAdapter(logger *zap.Logger) *LoggerAdapter {
	return &LoggerAdapter{logger: logger}
}

func (a *LoggerAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.logger.Info(msg, convertToZapFields(keysAndValues...)...)
}

func (a *LoggerAdapter) Error(msg string, keysAndValues ...interface{}) {
	a.logger.Error(msg, convertToZapFields(keysAndValues...)...)
}

// convertToZapFields converts key-value pairs to zap fields.
func convertToZapFields(keysAndValues ...interface{}) []zap.Field {
	fields := make([]zap.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		if err, ok := keysAndValues[i+1].(error); ok {
			fields = append(fields, zap.NamedError(key, err))
			continue
		}
		fields = append(fields, zap.Any(key, keysAndValues[i+1]))
	}
	return fields
}
