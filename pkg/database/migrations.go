package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrMigrationMismatch is returned when a recorded version was applied from a
// file with a different name than the one now shipped
var ErrMigrationMismatch = errors.New("applied migration does not match its file")

// Migration is one schema file named NNN_name.sql
type Migration struct {
	Version int
	Name    string
	SQL     string
}

// MigrationStatus reports whether a migration has been applied. AppliedAt is
// nil while the migration is pending.
type MigrationStatus struct {
	Migration
	AppliedAt *time.Time
}

// Migrator applies versioned SQL files and records them in schema_migrations
type Migrator struct {
	db     *DB
	logger *zap.Logger
}

// NewMigrator creates a new migrator
func NewMigrator(db *DB, logger *zap.Logger) *Migrator {
	return &Migrator{
		db:     db,
		logger: logger,
	}
}

type appliedRow struct {
	name string
	at   time.Time
}

func (m *Migrator) applied(ctx context.Context) (map[int]appliedRow, error) {
	if _, err := m.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`); err != nil {
		return nil, fmt.Errorf("failed to create migrations table: %w", err)
	}

	rows, err := m.db.QueryContext(ctx, `SELECT version, name, applied_at FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("failed to read applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]appliedRow)
	for rows.Next() {
		var version int
		var row appliedRow
		if err := rows.Scan(&version, &row.name, &row.at); err != nil {
			return nil, fmt.Errorf("failed to scan applied migration: %w", err)
		}
		applied[version] = row
	}
	return applied, rows.Err()
}

// Status lists every migration in fsys with its applied time
func (m *Migrator) Status(ctx context.Context, fsys fs.FS) ([]MigrationStatus, error) {
	files, err := LoadMigrations(fsys)
	if err != nil {
		return nil, err
	}
	applied, err := m.applied(ctx)
	if err != nil {
		return nil, err
	}

	statuses := make([]MigrationStatus, 0, len(files))
	for _, f := range files {
		st := MigrationStatus{Migration: f}
		if row, ok := applied[f.Version]; ok {
			if row.name != f.Name {
				return nil, fmt.Errorf("%w: version %d recorded as %q, file is %q", ErrMigrationMismatch, f.Version, row.name, f.Name)
			}
			at := row.at
			st.AppliedAt = &at
		}
		statuses = append(statuses, st)
	}
	return statuses, nil
}

// Run applies the pending migrations of fsys, lowest version first, and
// returns the ones it applied
func (m *Migrator) Run(ctx context.Context, fsys fs.FS) ([]Migration, error) {
	statuses, err := m.Status(ctx, fsys)
	if err != nil {
		return nil, err
	}

	var ran []Migration
	for _, st := range statuses {
		if st.AppliedAt != nil {
			continue
		}

		m.logger.Info("Applying migration",
			zap.Int("version", st.Version),
			zap.String("name", st.Name))
		if err := m.apply(ctx, st.Migration); err != nil {
			return ran, fmt.Errorf("failed to apply migration %d: %w", st.Version, err)
		}
		ran = append(ran, st.Migration)
	}

	if len(ran) == 0 {
		m.logger.Debug("Database schema is up to date")
	} else {
		m.logger.Info("Database migrations completed", zap.Int("applied", len(ran)))
	}
	return ran, nil
}

func (m *Migrator) apply(ctx context.Context, migration Migration) error {
	return m.db.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, migration.SQL); err != nil {
			return fmt.Errorf("failed to execute migration SQL: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO schema_migrations (version, name) VALUES (?, ?)`,
			migration.Version, migration.Name,
		); err != nil {
			return fmt.Errorf("failed to record migration: %w", err)
		}
		return nil
	})
}

// LoadMigrations reads the NNN_name.sql files of fsys sorted by version.
// Two files with the same version are an error.
func LoadMigrations(fsys fs.FS) ([]Migration, error) {
	var migrations []Migration
	seen := make(map[int]string)

	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(p, ".sql") {
			return nil
		}

		filename := path.Base(p)
		var version int
		if _, err := fmt.Sscanf(filename, "%d", &version); err != nil {
			return fmt.Errorf("invalid migration filename format: %s", filename)
		}
		if other, dup := seen[version]; dup {
			return fmt.Errorf("duplicate migration version %d: %s and %s", version, other, filename)
		}
		seen[version] = filename

		content, err := fs.ReadFile(fsys, p)
		if err != nil {
			return fmt.Errorf("failed to read migration file %s: %w", p, err)
		}

		var name string
		if _, rest, ok := strings.Cut(filename, "_"); ok {
			name = strings.TrimSuffix(rest, ".sql")
		}
		migrations = append(migrations, Migration{Version: version, Name: name, SQL: string(content)})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}
