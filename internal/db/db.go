// Package db manages the on-disk bucket count cache.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"

	// Import modernc.org/sqlite as a blank import to register the driver
	_ "modernc.org/sqlite"
)

// ErrCacheUnavailable is returned when the cache file cannot be created or opened.
var ErrCacheUnavailable = errors.New("metrics cache unavailable")

// DB wraps the SQL database connection with cache-specific methods.
type DB struct {
	*sql.DB
	path      string
	closeOnce sync.Once
	closeErr  error
}

// New opens the cache at path, creating the file and schema if needed.
// There is no in-memory fallback: any failure is returned wrapped in
// ErrCacheUnavailable.
func New(path string) (*DB, error) {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("%w: failed to create cache directory: %w", ErrCacheUnavailable, err)
		}
	}

	sqlDB, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open cache: %w", ErrCacheUnavailable, err)
	}

	// Test connection
	if err := sqlDB.PingContext(context.Background()); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("%w: failed to connect to cache: %w", ErrCacheUnavailable, err)
	}

	db := &DB{
		DB:   sqlDB,
		path: path,
	}

	if err := db.configure(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: failed to configure cache: %w", ErrCacheUnavailable, err)
	}

	if err := db.createSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: failed to create schema: %w", ErrCacheUnavailable, err)
	}

	return db, nil
}

// dsn builds a connection string whose pragmas apply to every pooled connection.
// synchronous=FULL makes each committed write durable before Set returns.
func dsn(path string) string {
	q := url.Values{}
	q.Add("_pragma", "busy_timeout(5000)")
	q.Add("_pragma", "synchronous(FULL)")
	q.Add("_pragma", "temp_store(MEMORY)")
	return "file:" + path + "?" + q.Encode()
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// configure sets database-wide pragmas.
func (db *DB) configure() error {
	if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
		return fmt.Errorf("failed to enable WAL: %w", err)
	}
	return nil
}

func (db *DB) createSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS metrics_cache (
		key TEXT PRIMARY KEY,
		value INTEGER NOT NULL,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_metrics_cache_timestamp ON metrics_cache(timestamp);
	`
	_, err := db.ExecContext(context.Background(), query)
	return err
}

// Close checkpoints the WAL and closes the connection. Calling it more than
// once is safe and returns the result of the first call.
func (db *DB) Close() error {
	db.closeOnce.Do(func() {
		_, _ = db.ExecContext(context.Background(), "PRAGMA wal_checkpoint(TRUNCATE)")
		db.closeErr = db.DB.Close()
	})
	return db.closeErr
}

// Vacuum performs database maintenance to reclaim space.
func (db *DB) Vacuum() error {
	_, err := db.ExecContext(context.Background(), "VACUUM")
	return err
}
