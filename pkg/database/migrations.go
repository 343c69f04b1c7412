package database

import (
	"database/sql"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

const migrationsTable = `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
`

// Migration is one numbered SQL file
type Migration struct {
	Version int
	Name    string
	SQL     string
}

// Migrator applies numbered SQL files (NNN_name.sql) in version order
type Migrator struct {
	db     *DB
	logger *zap.Logger
}

// NewMigrator creates a new migrator
func NewMigrator(db *DB, logger *zap.Logger) *Migrator {
	return &Migrator{db: db, logger: logger}
}

// RunMigrations executes all pending migrations found in fsys. Each one
// runs in its own transaction; applied versions are skipped.
func (m *Migrator) RunMigrations(fsys fs.FS) error {
	pending, err := m.Pending(fsys)
	if err != nil {
		return err
	}

	for _, mig := range pending {
		m.logger.Info("Applying migration",
			zap.Int("version", mig.Version),
			zap.String("name", mig.Name))

		if err := m.apply(mig); err != nil {
			return fmt.Errorf("failed to apply migration %d: %w", mig.Version, err)
		}
	}

	m.logger.Info("Database migrations completed", zap.Int("applied", len(pending)))
	return nil
}

// Pending returns the migrations of fsys not yet recorded as applied
func (m *Migrator) Pending(fsys fs.FS) ([]Migration, error) {
	all, err := LoadMigrations(fsys)
	if err != nil {
		return nil, fmt.Errorf("failed to load migrations: %w", err)
	}

	applied, err := m.applied()
	if err != nil {
		return nil, fmt.Errorf("failed to get applied migrations: %w", err)
	}

	pending := all[:0:0]
	for _, mig := range all {
		if !applied[mig.Version] {
			pending = append(pending, mig)
		}
	}
	return pending, nil
}

// Version returns the highest applied migration version, 0 on a fresh
// database
func (m *Migrator) Version() (int, error) {
	if _, err := m.db.Exec(migrationsTable); err != nil {
		return 0, fmt.Errorf("failed to create migrations table: %w", err)
	}

	var version sql.NullInt64
	if err := m.db.QueryRow("SELECT MAX(version) FROM schema_migrations").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return int(version.Int64), nil
}

func (m *Migrator) applied() (map[int]bool, error) {
	if _, err := m.db.Exec(migrationsTable); err != nil {
		return nil, err
	}

	rows, err := m.db.Query("SELECT version FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

func (m *Migrator) apply(mig Migration) error {
	return m.db.WithTransaction(func(tx *sql.Tx) error {
		if _, err := tx.Exec(mig.SQL); err != nil {
			return fmt.Errorf("failed to execute migration SQL: %w", err)
		}
		if _, err := tx.Exec("INSERT INTO schema_migrations (version, name) VALUES (?, ?)", mig.Version, mig.Name); err != nil {
			return fmt.Errorf("failed to record migration: %w", err)
		}
		return nil
	})
}

// LoadMigrations reads every .sql file of fsys, sorted by version
func LoadMigrations(fsys fs.FS) ([]Migration, error) {
	var out []Migration
	seen := make(map[int]string)

	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(p, ".sql") {
			return nil
		}

		mig, err := parseMigrationName(path.Base(p))
		if err != nil {
			return err
		}
		if other, dup := seen[mig.Version]; dup {
			return fmt.Errorf("duplicate migration version %d: %s and %s", mig.Version, other, path.Base(p))
		}
		seen[mig.Version] = path.Base(p)

		content, err := fs.ReadFile(fsys, p)
		if err != nil {
			return fmt.Errorf("failed to read migration file %s: %w", p, err)
		}
		mig.SQL = string(content)

		out = append(out, mig)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

// parseMigrationName splits "001_initial_schema.sql" into version 1 and
// name "initial_schema"
func parseMigrationName(filename string) (Migration, error) {
	base := strings.TrimSuffix(filename, ".sql")
	num, name, _ := strings.Cut(base, "_")

	version, err := strconv.Atoi(num)
	if err != nil || version <= 0 {
		return Migration{}, fmt.Errorf("invalid migration filename format: %s", filename)
	}
	return Migration{Version: version, Name: name}, nil
}
