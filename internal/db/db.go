package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"os"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DevMode reads migrations from ./internal/db/migrations on disk instead of
// the embedded copy, so schema changes can be iterated on without a rebuild.
var DevMode = false

type DB struct {
	*sql.DB
}

// NewDB opens (creating if needed) the SQLite database at path and brings
// its schema up to the latest migration.
func NewDB(path string) (*DB, error) {
	db, err := OpenDB(path)
	if err != nil {
		return nil, err
	}

	migrations, err := getMigrationsFS()
	if err != nil {
		db.Close()
		return nil, err
	}
	if err := db.MigrateUp(migrations); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// OpenDB opens the database and applies connection pragmas without touching
// the schema. The migrate subcommand uses it so it can inspect a database
// before changing it.
func OpenDB(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %q: %w", path, err)
	}

	if err := applyPragmas(sqlDB); err != nil {
		sqlDB.Close()
		return nil, err
	}

	return &DB{sqlDB}, nil
}

// OpenReadOnly opens an existing database owned by someone else. Every
// pooled connection refuses writes and the journal mode is left alone.
func OpenReadOnly(path string) (*DB, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("failed to open database %q: %w", path, err)
	}
	sqlDB, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=query_only(1)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database %q: %w", path, err)
	}
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to open database %q: %w", path, err)
	}
	return &DB{sqlDB}, nil
}

// MissingTables returns those of names are missing from the schema.
func (db *DB) MissingTables(ctx context.Context, names ...string) ([]string, error) {
	var missing []string
	for _, name := range names {
		var n int
		if err := db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, name).Scan(&n); err != nil {
			return nil, fmt.Errorf("failed to inspect schema: %w", err)
		}
		if n == 0 {
			missing = append(missing, name)
		}
	}
	return missing, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA temp_store=MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// getMigrationsFS returns the migrations directory as an fs.FS rooted at
// the .sql files.
func getMigrationsFS() (fs.FS, error) {
	if DevMode {
		return os.DirFS("internal/db/migrations"), nil
	}
	sub, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}
	return sub, nil
}
