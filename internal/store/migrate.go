package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// migrationLockID keys the advisory lock held while migrations run, so
// replicas starting together apply each file once.
const migrationLockID = 0x63697663

var migrationName = regexp.MustCompile(`^(\d+)_([a-z0-9_]+)\.(up|down)\.sql$`)

// Migration is one numbered schema step. Version is the up file's base name,
// which is what schema_migrations records.
type Migration struct {
	Version string
	Number  string
	UpPath  string
	// DownPath is empty when no down file exists.
	DownPath string
}

// LoadMigrations pairs the up and down files in dir, ordered by number.
func LoadMigrations(dir string) ([]Migration, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}

	byNumber := map[string]*Migration{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		match := migrationName.FindStringSubmatch(entry.Name())
		if match == nil {
			continue
		}
		number, direction := match[1], match[3]
		m := byNumber[number]
		if m == nil {
			m = &Migration{Number: number}
			byNumber[number] = m
		}
		path := filepath.Join(dir, entry.Name())
		switch direction {
		case "up":
			if m.UpPath != "" {
				return nil, fmt.Errorf("duplicate up migration for %s", number)
			}
			m.UpPath = path
			m.Version = entry.Name()
		case "down":
			if m.DownPath != "" {
				return nil, fmt.Errorf("duplicate down migration for %s", number)
			}
			m.DownPath = path
		}
	}

	migrations := make([]Migration, 0, len(byNumber))
	for number, m := range byNumber {
		if m.UpPath == "" {
			return nil, fmt.Errorf("migration %s has a down file but no up file", number)
		}
		migrations = append(migrations, *m)
	}
	sort.Slice(migrations, func(i, j int) bool { return migrations[i].Number < migrations[j].Number })
	return migrations, nil
}

// ApplyMigrations runs every pending up migration, each in its own transaction.
func ApplyMigrations(ctx context.Context, db *sql.DB, migrationsDir string) error {
	migrations, err := LoadMigrations(migrationsDir)
	if err != nil {
		return err
	}
	return withMigrationLock(ctx, db, func(conn *sql.Conn) error {
		if err := ensureMigrationsTable(ctx, conn); err != nil {
			return err
		}
		for _, m := range migrations {
			applied, err := isMigrated(ctx, conn, m.Version)
			if err != nil {
				return err
			}
			if applied {
				continue
			}
			if err := runMigrationFile(ctx, conn, m.UpPath, `INSERT INTO schema_migrations(version) VALUES($1)`, m.Version); err != nil {
				return err
			}
		}
		return nil
	})
}

// RollbackMigrations reverts up to steps applied migrations, newest first,
// and returns the versions it reverted.
func RollbackMigrations(ctx context.Context, db *sql.DB, migrationsDir string, steps int) ([]string, error) {
	migrations, err := LoadMigrations(migrationsDir)
	if err != nil {
		return nil, err
	}
	var reverted []string
	err = withMigrationLock(ctx, db, func(conn *sql.Conn) error {
		if err := ensureMigrationsTable(ctx, conn); err != nil {
			return err
		}
		for i := len(migrations) - 1; i >= 0 && len(reverted) < steps; i-- {
			m := migrations[i]
			applied, err := isMigrated(ctx, conn, m.Version)
			if err != nil {
				return err
			}
			if !applied {
				continue
			}
			if m.DownPath == "" {
				return fmt.Errorf("migration %s has no down file", m.Version)
			}
			if err := runMigrationFile(ctx, conn, m.DownPath, `DELETE FROM schema_migrations WHERE version=$1`, m.Version); err != nil {
				return err
			}
			reverted = append(reverted, m.Version)
		}
		return nil
	})
	return reverted, err
}

// MigrationStatus reports, for every migration on disk, whether it is applied.
func MigrationStatus(ctx context.Context, db *sql.DB, migrationsDir string) (map[string]bool, []Migration, error) {
	migrations, err := LoadMigrations(migrationsDir)
	if err != nil {
		return nil, nil, err
	}
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close()
	if err := ensureMigrationsTable(ctx, conn); err != nil {
		return nil, nil, err
	}
	status := make(map[string]bool, len(migrations))
	for _, m := range migrations {
		applied, err := isMigrated(ctx, conn, m.Version)
		if err != nil {
			return nil, nil, err
		}
		status[m.Version] = applied
	}
	return status, migrations, nil
}

func withMigrationLock(ctx context.Context, db *sql.DB, fn func(*sql.Conn) error) error {
	conn, err := db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, `SELECT pg_advisory_lock($1)`, migrationLockID); err != nil {
		return fmt.Errorf("acquire migration lock: %w", err)
	}
	defer func() {
		_, _ = conn.ExecContext(context.Background(), `SELECT pg_advisory_unlock($1)`, migrationLockID)
	}()
	return fn(conn)
}

func runMigrationFile(ctx context.Context, conn *sql.Conn, path, record, version string) error {
	contents, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read migration %s: %w", filepath.Base(path), err)
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration tx %s: %w", filepath.Base(path), err)
	}
	if body := strings.TrimSpace(string(contents)); body != "" {
		if _, err := tx.ExecContext(ctx, body); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("execute migration %s: %w", filepath.Base(path), err)
		}
	}
	if _, err := tx.ExecContext(ctx, record, version); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("record migration %s: %w", filepath.Base(path), err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %s: %w", filepath.Base(path), err)
	}
	return nil
}

func ensureMigrationsTable(ctx context.Context, conn *sql.Conn) error {
	_, err := conn.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}
	return nil
}

func isMigrated(ctx context.Context, conn *sql.Conn, version string) (bool, error) {
	var exists bool
	err := conn.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version=$1)`, version).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check migration %s: %w", version, err)
	}
	return exists, nil
}
