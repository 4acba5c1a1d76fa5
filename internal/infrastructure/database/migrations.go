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
)

// MigrationsFS holds the *.up.sql / *.down.sql files. The migrations package
// sets it from an embedded filesystem; tests may substitute fstest.MapFS.
var MigrationsFS fs.FS

// MigrationsDir is the directory within MigrationsFS containing migration files.
var MigrationsDir = "."

// ErrMissingDownSQL is returned by MigrateDown when the latest migration
// cannot be reversed.
var ErrMissingDownSQL = errors.New("database: migration has no down SQL")

// Migration is one versioned schema change.
// Files are named YYYYMMDD_HHMMSS_description.{up,down}.sql.
type Migration struct {
	Version string
	Name    string
	UpSQL   string
	DownSQL string
}

// MigrationRecord is a row of schema_migrations.
type MigrationRecord struct {
	Version   string
	AppliedAt time.Time
}

// Migrate applies pending migrations oldest first. Each runs in its own
// transaction, so a failure leaves earlier migrations committed and a
// re-run resumes from the failed one.
func (db *DB) Migrate(ctx context.Context) error {
	_, pending, err := db.MigrationStatus(ctx)
	if err != nil {
		return err
	}

	for _, m := range pending {
		if err := db.inTx(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, m.UpSQL); err != nil {
				return fmt.Errorf("executing SQL: %w", err)
			}
			_, err := tx.ExecContext(ctx,
				"INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)",
				m.Version, time.Now().UTC().Format(time.RFC3339),
			)
			return err
		}); err != nil {
			return fmt.Errorf("applying migration %s (%s): %w", m.Version, m.Name, err)
		}
	}
	return nil
}

// MigrateDown reverts the most recently applied migration.
func (db *DB) MigrateDown(ctx context.Context) error {
	applied, err := db.appliedMigrations(ctx)
	if err != nil {
		return err
	}
	if len(applied) == 0 {
		return nil
	}
	latest := applied[len(applied)-1].Version

	all, err := loadMigrations()
	if err != nil {
		return fmt.Errorf("loading migrations: %w", err)
	}

	idx := sort.Search(len(all), func(i int) bool { return all[i].Version >= latest })
	if idx == len(all) || all[idx].Version != latest {
		return fmt.Errorf("migration %s not found in filesystem", latest)
	}
	m := all[idx]
	if m.DownSQL == "" {
		return fmt.Errorf("migration %s: %w", latest, ErrMissingDownSQL)
	}

	return db.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, m.DownSQL); err != nil {
			return fmt.Errorf("executing down SQL: %w", err)
		}
		_, err := tx.ExecContext(ctx, "DELETE FROM schema_migrations WHERE version = ?", m.Version)
		return err
	})
}

// MigrationStatus reports applied migrations and those still pending.
func (db *DB) MigrationStatus(ctx context.Context) (applied []MigrationRecord, pending []Migration, err error) {
	if err := db.createMigrationsTable(ctx); err != nil {
		return nil, nil, fmt.Errorf("creating migrations table: %w", err)
	}

	applied, err = db.appliedMigrations(ctx)
	if err != nil {
		return nil, nil, err
	}

	all, err := loadMigrations()
	if err != nil {
		return nil, nil, fmt.Errorf("loading migrations: %w", err)
	}

	done := make(map[string]bool, len(applied))
	for _, r := range applied {
		done[r.Version] = true
	}
	for _, m := range all {
		if !done[m.Version] {
			pending = append(pending, m)
		}
	}
	return applied, pending, nil
}

// inTx runs fn inside a transaction, committing when fn returns nil.
func (db *DB) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // No-op after commit

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func (db *DB) createMigrationsTable(ctx context.Context) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TEXT NOT NULL
		)
	`)
	return err
}

func (db *DB) appliedMigrations(ctx context.Context) ([]MigrationRecord, error) {
	rows, err := db.QueryContext(ctx, "SELECT version, applied_at FROM schema_migrations ORDER BY version")
	if err != nil {
		return nil, fmt.Errorf("querying migrations: %w", err)
	}
	defer rows.Close()

	var records []MigrationRecord
	for rows.Next() {
		var r MigrationRecord
		var appliedAt string
		if err := rows.Scan(&r.Version, &appliedAt); err != nil {
			return nil, fmt.Errorf("scanning migration row: %w", err)
		}
		r.AppliedAt, _ = time.Parse(time.RFC3339, appliedAt) //nolint:errcheck // Written by Migrate
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating migrations: %w", err)
	}
	return records, nil
}

// loadMigrations reads and pairs migration files, sorted by version.
// Down files without a matching up file are ignored.
func loadMigrations() ([]Migration, error) {
	if MigrationsFS == nil {
		return nil, nil
	}

	entries, err := fs.ReadDir(MigrationsFS, MigrationsDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	byVersion := make(map[string]*Migration)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		version, isUp, ok := parseMigrationFilename(entry.Name())
		if !ok {
			continue
		}

		body, err := fs.ReadFile(MigrationsFS, path.Join(MigrationsDir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", entry.Name(), err)
		}

		m := byVersion[version]
		if m == nil {
			m = &Migration{Version: version}
			byVersion[version] = m
		}
		if isUp {
			m.UpSQL = string(body)
			m.Name = extractMigrationName(entry.Name())
		} else {
			m.DownSQL = string(body)
		}
	}

	migrations := make([]Migration, 0, len(byVersion))
	for _, m := range byVersion {
		if m.UpSQL == "" {
			continue
		}
		migrations = append(migrations, *m)
	}
	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

// parseMigrationFilename extracts the YYYYMMDD_HHMMSS version and direction.
func parseMigrationFilename(name string) (version string, isUp bool, ok bool) {
	base, found := strings.CutSuffix(name, ".sql")
	if !found {
		return "", false, false
	}

	if b, up := strings.CutSuffix(base, ".up"); up {
		base, isUp = b, true
	} else if b, down := strings.CutSuffix(base, ".down"); down {
		base = b
	} else {
		return "", false, false
	}

	parts := strings.SplitN(base, "_", 3)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", false, false
	}
	return parts[0] + "_" + parts[1], isUp, true
}

// extractMigrationName returns the description part of a migration filename.
// "20261019_120000_entities.up.sql" -> "entities"
func extractMigrationName(filename string) string {
	base := strings.TrimSuffix(filename, ".sql")
	base = strings.TrimSuffix(base, ".up")
	base = strings.TrimSuffix(base, ".down")

	parts := strings.SplitN(base, "_", 3)
	if len(parts) == 3 {
		return parts[2]
	}
	return base
}
