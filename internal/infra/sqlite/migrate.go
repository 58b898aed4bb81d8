package sqlite

import (
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
)

// Migration files ship inside the binary. Filenames carry a numeric
// prefix ("001_audit_event.up.sql") that doubles as the version.
//
//go:embed migrations/*.up.sql
var migrationFS embed.FS

// MigrateUp applies every pending migration in version order, one
// transaction each. Calling it on an up-to-date database is a no-op.
func MigrateUp(db *sql.DB) error {
	if err := ensureMigrationsTable(db); err != nil {
		return fmt.Errorf("migrate: ensure migrations table: %w", err)
	}

	pending, err := readMigrations()
	if err != nil {
		return fmt.Errorf("migrate: read migrations: %w", err)
	}

	for _, m := range pending {
		applied, err := isApplied(db, m.version)
		if err != nil {
			return fmt.Errorf("migrate: check version %d: %w", m.version, err)
		}
		if applied {
			continue
		}
		if err := apply(db, m); err != nil {
			return fmt.Errorf("migrate: apply %s: %w", m.name, err)
		}
	}
	return nil
}

// MigrationVersion reports the highest applied version, 0 when the
// database is fresh.
func MigrationVersion(db *sql.DB) (int, error) {
	if err := ensureMigrationsTable(db); err != nil {
		return 0, fmt.Errorf("migrate: ensure migrations table: %w", err)
	}

	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("migrate: query version: %w", err)
	}
	return version, nil
}

type migration struct {
	version int
	name    string
	sql     string
}

func ensureMigrationsTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version     INTEGER NOT NULL PRIMARY KEY,
			name        TEXT    NOT NULL,
			applied_at  TEXT    NOT NULL DEFAULT (datetime('now'))
		)
	`)
	return err
}

// readMigrations loads the embedded *.up.sql files sorted by version.
func readMigrations() ([]migration, error) {
	var out []migration
	err := fs.WalkDir(migrationFS, "migrations", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".up.sql") {
			return nil
		}
		content, err := migrationFS.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		out = append(out, migration{
			version: versionOf(d.Name()),
			name:    d.Name(),
			sql:     string(content),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool { return out[i].version < out[j].version })
	return out, nil
}

// versionOf parses the numeric filename prefix; unparseable names map
// to version 0.
func versionOf(name string) int {
	var v int
	if _, err := fmt.Sscanf(name, "%d_", &v); err != nil {
		return 0
	}
	return v
}

func isApplied(db *sql.DB, version int) (bool, error) {
	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations WHERE version = ?", version).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// apply runs one migration and records it, atomically.
func apply(db *sql.DB, m migration) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(m.sql); err != nil {
		return fmt.Errorf("exec: %w", err)
	}
	if _, err := tx.Exec(
		"INSERT INTO schema_migrations (version, name) VALUES (?, ?)",
		m.version, m.name,
	); err != nil {
		return fmt.Errorf("record: %w", err)
	}
	return tx.Commit()
}
