package database

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strconv"
	"strings"
)

//go:embed migrations/*.up.sql
var migrationsFS embed.FS

// Migrations returns the schema migrations shipped with the binary.
func Migrations() fs.FS {
	sub, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

type migration struct {
	version int64
	file    string
}

// pendingOrder lists the *.up.sql files in fsys sorted by version.
// Files whose name does not start with a numeric version are skipped.
func pendingOrder(fsys fs.FS) ([]migration, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("read migrations directory: %w", err)
	}

	var migrations []migration
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".up.sql") {
			continue
		}
		// Extract version (e.g., "000001" from "000001_init_schema.up.sql")
		prefix, _, _ := strings.Cut(entry.Name(), "_")
		version, err := strconv.ParseInt(prefix, 10, 64)
		if err != nil {
			slog.Warn("skipping migration file with invalid version format", "file", entry.Name())
			continue
		}
		migrations = append(migrations, migration{version: version, file: entry.Name()})
	}

	sort.Slice(migrations, func(i, j int) bool { return migrations[i].version < migrations[j].version })
	return migrations, nil
}

// EnsureSchema applies all pending migrations from fsys.
// It creates a schema_migrations table to track applied versions.
func EnsureSchema(ctx context.Context, db *DB, fsys fs.FS) error {
	_, err := db.Pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version BIGINT PRIMARY KEY,
			applied_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		);
	`)
	if err != nil {
		return fmt.Errorf("create schema_migrations table: %w", err)
	}

	migrations, err := pendingOrder(fsys)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		var applied bool
		err = db.Pool.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)", m.version).Scan(&applied)
		if err != nil {
			return fmt.Errorf("check migration version %d: %w", m.version, err)
		}
		if applied {
			continue
		}

		slog.Info("applying migration", "file", m.file, "version", m.version)
		content, err := fs.ReadFile(fsys, m.file)
		if err != nil {
			return fmt.Errorf("read migration file %s: %w", m.file, err)
		}

		tx, err := db.Pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}

		if _, err := tx.Exec(ctx, string(content)); err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				slog.Error("rollback failed", "error", rbErr)
			}
			return fmt.Errorf("execute migration %s: %w", m.file, err)
		}

		if _, err := tx.Exec(ctx, "INSERT INTO schema_migrations (version) VALUES ($1)", m.version); err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				slog.Error("rollback failed", "error", rbErr)
			}
			return fmt.Errorf("record migration %s: %w", m.file, err)
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit migration %s: %w", m.file, err)
		}
	}

	return nil
}
