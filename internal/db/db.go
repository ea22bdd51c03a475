// Package db provides SQLite storage for approvalctl's local state.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/tOgg1/approvalctl/internal/logging"

	_ "modernc.org/sqlite"
)

// DefaultBusyTimeout is used when Config.BusyTimeoutMs is unset.
const DefaultBusyTimeout = 5 * time.Second

// Config holds database connection options.
type Config struct {
	Path          string
	BusyTimeoutMs int
}

// DB wraps *sql.DB with the schema and retry helpers.
type DB struct {
	*sql.DB
	path   string
	logger zerolog.Logger
}

// Open opens (creating if needed) the SQLite database at cfg.Path.
func Open(cfg Config) (*DB, error) {
	if cfg.Path == "" {
		return nil, errors.New("database path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	busy := cfg.BusyTimeoutMs
	if busy <= 0 {
		busy = int(DefaultBusyTimeout / time.Millisecond)
	}
	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=synchronous(NORMAL)", cfg.Path, busy)

	return open(dsn, cfg.Path)
}

// OpenInMemory opens a private in-memory database, mainly for tests.
func OpenInMemory() (*DB, error) {
	return open(":memory:?_pragma=foreign_keys(ON)", ":memory:")
}

func open(dsn, path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps in-memory databases coherent and
	// serializes writers on file databases.
	sqlDB.SetMaxOpenConns(1)
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db := Wrap(sqlDB)
	db.path = path
	return db, nil
}

// Wrap adapts an existing *sql.DB. The caller is responsible for the schema.
func Wrap(sqlDB *sql.DB) *DB {
	return &DB{
		DB:     sqlDB,
		logger: logging.Component("db"),
	}
}

// Path returns the database location.
func (db *DB) Path() string {
	return db.path
}

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS kv (
		id TEXT PRIMARY KEY,
		namespace TEXT NOT NULL,
		key TEXT NOT NULL,
		value TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		UNIQUE (namespace, key)
	)`,
	`CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		timestamp TEXT NOT NULL,
		type TEXT NOT NULL,
		entity_type TEXT NOT NULL,
		entity_id TEXT NOT NULL,
		payload_json TEXT,
		metadata_json TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS events_timestamp_idx ON events(timestamp, id)`,
	`CREATE INDEX IF NOT EXISTS events_entity_idx ON events(entity_type, entity_id)`,
}

// MigrateUp creates any missing tables and returns how many statements ran.
func (db *DB) MigrateUp(ctx context.Context) (int, error) {
	applied := 0
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return applied, fmt.Errorf("failed to initialize schema: %w", err)
		}
		applied++
	}
	db.logger.Debug().Int("statements", applied).Msg("schema ready")
	return applied, nil
}

// Transaction runs fn in a transaction, committing on success.
func (db *DB) Transaction(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			db.logger.Warn().Err(rbErr).Msg("rollback failed")
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
