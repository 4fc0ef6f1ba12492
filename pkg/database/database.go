package database

import (
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/alimgiray/opendev/pkg/logger"
	"github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const (
	dialect = "sqlite3"
	// driverName is sqlite3 with the extra SQL functions below
	driverName = "sqlite3_opendev"
)

func init() {
	sql.Register(driverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return conn.RegisterFunc("casefold", casefold, true)
		},
	})
}

// casefold lower-cases s with Unicode rules. SQLite's own lower() and LIKE
// only fold ASCII letters.
func casefold(s string) string {
	return strings.ToLower(s)
}

var DB *sql.DB

// Init opens the database at path into the package level DB
func Init(path string) error {
	db, err := Open(path)
	if err != nil {
		return err
	}
	DB = db
	return nil
}

// Open opens (creating if needed) the SQLite database at path, applies the
// connection pragmas and runs the embedded migrations.
func Open(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data folder: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_synchronous=NORMAL&_foreign_keys=ON&_busy_timeout=30000", path)
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(time.Hour)

	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err = optimizeDatabase(db); err != nil {
		db.Close()
		return nil, err
	}

	if err = Migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	logger.WithField("path", path).Info("Database connected successfully with WAL mode")
	return db, nil
}

// optimizeDatabase configures SQLite for read heavy analytics
func optimizeDatabase(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA cache_size=10000",
		"PRAGMA temp_store=MEMORY",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=30000",
		"PRAGMA mmap_size=268435456", // 256MB
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}
	return nil
}

// Migrate applies the embedded goose migrations. Tables use IF NOT EXISTS so a
// pre-built analytics database is adopted without touching its data.
func Migrate(db *sql.DB) error {
	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(logger.GetLogger())

	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// Close closes the database connection
func Close() error {
	if DB != nil {
		return DB.Close()
	}
	return nil
}
