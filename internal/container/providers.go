package container

import (
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/bid-reconciler/internal/application/dispatcher"
	"github.com/garyjia/bid-reconciler/internal/application/port"
	"github.com/garyjia/bid-reconciler/internal/application/service"
	"github.com/garyjia/bid-reconciler/internal/infrastructure/persistence/repository"
	"github.com/garyjia/bid-reconciler/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/bid-reconciler/internal/infrastructure/worker"
	"github.com/garyjia/bid-reconciler/internal/reference"
	"github.com/garyjia/bid-reconciler/migrations"
	"github.com/garyjia/bid-reconciler/pkg/database"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	SqlDB          *sql.DB
	TransactionMgr *sqlite.DB
	SchemaVersion  int
}

// ProvideDatabase opens the database and applies pending migrations.
func ProvideDatabase(cfg *DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	db, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, err
	}

	migrator := database.NewMigrator(db, logger)
	if err := migrator.RunMigrations(migrations.FS); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	version, err := migrator.Version()
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &DatabaseBundle{
		SqlDB:          db.DB,
		TransactionMgr: sqlite.NewDB(db.DB, logger),
		SchemaVersion:  version,
	}, nil
}

// ProvideRepositories creates all repositories from a database connection.
func ProvideRepositories(sqlDB *sql.DB, logger *zap.Logger) (*RepositoryBundle, error) {
	if sqlDB == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return &RepositoryBundle{
		Boq:        repository.NewBoqRepository(sqlDB, logger),
		Submission: repository.NewSubmissionRepository(sqlDB, logger),
	}, nil
}

// ProvideReferenceTables loads the configured tables or the built-in ones.
func ProvideReferenceTables(path string, logger *zap.Logger) (*reference.Tables, error) {
	tables, err := reference.LoadOrDefault(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load reference tables: %w", err)
	}

	logger.Info("Reference tables loaded",
		zap.String("path", path),
		zap.String("version", tables.Version))
	return tables, nil
}

// ProvideDispatcher creates the event dispatcher.
func ProvideDispatcher(logger *zap.Logger) (dispatcher.Dispatcher, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return dispatcher.NewDispatcher(
		dispatcher.WithLogger(NewLoggerAdapter(logger)),
	), nil
}

// ServiceDeps holds dependencies required for creating services.
type ServiceDeps struct {
	Repos      *RepositoryBundle
	TxManager  port.TransactionManager
	Dispatcher dispatcher.Dispatcher
	Tables     *reference.Tables
	Pipeline   *PipelineConfig
	Logger     *zap.Logger
}

// ProvideServices creates all application services.
func ProvideServices(deps *ServiceDeps) (*ServiceBundle, error) {
	if deps == nil || deps.Repos == nil {
		return nil, fmt.Errorf("repositories are required")
	}
	if deps.TxManager == nil {
		return nil, fmt.Errorf("transaction manager is required")
	}
	if deps.Pipeline == nil {
		return nil, fmt.Errorf("pipeline config is required")
	}

	return &ServiceBundle{
		Import: service.NewImportService(
			deps.Repos.Boq,
			deps.Repos.Submission,
			deps.TxManager,
			deps.Logger,
			service.WithDispatcher(deps.Dispatcher),
			service.WithTables(deps.Tables),
			service.WithRunConfig(deps.Pipeline.Run),
			service.WithRetention(deps.Pipeline.ClosedRunRetention),
		),
	}, nil
}

// ProvideWorkers registers the background workers. Nothing is started here.
func ProvideWorkers(services *ServiceBundle, pipeline *PipelineConfig, logger *zap.Logger) *worker.Manager {
	m := worker.NewManager(logger)
	m.Register(worker.NewPeriodic("run-janitor", pipeline.JanitorInterval, func(now time.Time) {
		services.Import.EvictClosed(now)
	}))
	return m
}
