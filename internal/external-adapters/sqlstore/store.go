// Package sqlstore persists the result cache and the local vulnerability
// database in SQLite (modernc.org/sqlite) or PostgreSQL (lib/pq).
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "github.com/lib/pq"  // PostgreSQL driver
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// ErrNotFound is returned when a key is absent from the store
var ErrNotFound = errors.New("not found")

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// StoreConfig holds configuration for the storage backend
type StoreConfig struct {
	Driver string // "sqlite" or "postgres"
	DSN    string // file path for SQLite, connection string for Postgres
}

// DB is an open store shared by the result cache and the vulnerability store
type DB struct {
	db      *sql.DB
	dialect string
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS result_cache (
		id TEXT PRIMARY KEY,
		findings TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS vuln_records (
		record_key TEXT PRIMARY KEY,
		hash TEXT NOT NULL,
		name TEXT NOT NULL,
		version TEXT NOT NULL,
		title TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS vuln_records_hash ON vuln_records (hash)`,
	`CREATE INDEX IF NOT EXISTS vuln_records_coord ON vuln_records (name, version)`,
	`CREATE TABLE IF NOT EXISTS vuln_cves (
		record_key TEXT NOT NULL,
		cve TEXT NOT NULL,
		PRIMARY KEY (record_key, cve)
	)`,
	`CREATE TABLE IF NOT EXISTS sync_state (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`,
}

// Open connects to the configured backend and applies the schema
func Open(config StoreConfig) (*DB, error) {
	switch strings.ToLower(config.Driver) {
	case "postgres", "postgresql":
		if config.DSN == "" {
			return nil, fmt.Errorf("postgres connection string is required")
		}
		return open(DriverPostgres, config.DSN)
	case "sqlite", "sqlite3", "":
		if config.DSN == "" {
			return nil, fmt.Errorf("sqlite database path is required")
		}
		dsn, err := sqliteDSN(config.DSN)
		if err != nil {
			return nil, err
		}
		return open(DriverSQLite, dsn)
	default:
		return nil, fmt.Errorf("unsupported store driver: %s", config.Driver)
	}
}

func open(dialect, dsn string) (*DB, error) {
	db, err := sql.Open(dialect, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		//nolint:errcheck // Close on failed open
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &DB{db: db, dialect: dialect}
	if err := store.migrate(context.Background()); err != nil {
		//nolint:errcheck // Close on failed migration
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// sqliteDSN creates the parent directory of a file database and enables a
// busy timeout so concurrent readers wait instead of failing
func sqliteDSN(path string) (string, error) {
	if path == ":memory:" || strings.HasPrefix(path, "file:") || strings.Contains(path, "?") {
		return path, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return "", fmt.Errorf("failed to create database directory: %w", err)
	}
	return path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", nil
}

func (s *DB) migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Dialect returns the driver name of the open database
func (s *DB) Dialect() string {
	return s.dialect
}

// Close closes the database connection
func (s *DB) Close() error {
	return s.db.Close()
}

// ResultCache returns the result cache view of the store
func (s *DB) ResultCache() *ResultCache {
	return &ResultCache{store: s}
}

// VulnerabilityStore returns the vulnerability database view of the store
func (s *DB) VulnerabilityStore() *VulnerabilityStore {
	return &VulnerabilityStore{store: s}
}

// rebind rewrites ? placeholders to $n for PostgreSQL
func (s *DB) rebind(query string) string {
	if s.dialect != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
