package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/plexus-ai/plexus-metrics/internal/models"
)

var timeFormats = []string{
	"2006-01-02 15:04:05",
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
}

func parseTimeString(s string) (time.Time, bool) {
	for _, format := range timeFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Get returns the cached value for key. A missing key yields found=false and
// a nil error.
func (db *DB) Get(ctx context.Context, key string) (value int64, found bool, err error) {
	err = db.QueryRowContext(ctx, "SELECT value FROM metrics_cache WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to read cache entry: %w", err)
	}
	return value, true, nil
}

// Set inserts or overwrites the value for key. The write is committed before
// Set returns.
func (db *DB) Set(ctx context.Context, key string, value int64) error {
	query := `
		INSERT INTO metrics_cache (key, value, timestamp)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			timestamp = excluded.timestamp
	`
	if _, err := db.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	return nil
}

// GetEntry returns the full cache entry for key, or nil when absent.
func (db *DB) GetEntry(ctx context.Context, key string) (*models.CacheEntry, error) {
	var entry models.CacheEntry
	var ts sql.NullString
	err := db.QueryRowContext(ctx,
		"SELECT key, value, CAST(timestamp AS TEXT) FROM metrics_cache WHERE key = ?", key,
	).Scan(&entry.Key, &entry.Value, &ts)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache entry: %w", err)
	}
	if ts.Valid {
		entry.Timestamp, _ = parseTimeString(ts.String)
	}
	return &entry, nil
}

// Delete removes a single entry.
func (db *DB) Delete(ctx context.Context, key string) error {
	if _, err := db.ExecContext(ctx, "DELETE FROM metrics_cache WHERE key = ?", key); err != nil {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}
	return nil
}

// Stats returns the entry count and the oldest and newest write times.
func (db *DB) Stats(ctx context.Context) (*models.CacheStats, error) {
	query := `
		SELECT
			COUNT(*),
			CAST(MIN(timestamp) AS TEXT),
			CAST(MAX(timestamp) AS TEXT)
		FROM metrics_cache
	`

	stats := &models.CacheStats{Path: db.path}
	var oldest, newest sql.NullString
	if err := db.QueryRowContext(ctx, query).Scan(&stats.Entries, &oldest, &newest); err != nil {
		return nil, fmt.Errorf("failed to query cache stats: %w", err)
	}
	if oldest.Valid {
		stats.Oldest, _ = parseTimeString(oldest.String)
	}
	if newest.Valid {
		stats.Newest, _ = parseTimeString(newest.String)
	}
	return stats, nil
}

// Prune deletes entries last written before cutoff and returns how many were removed.
func (db *DB) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := db.ExecContext(ctx,
		"DELETE FROM metrics_cache WHERE timestamp < ?",
		cutoff.UTC().Format("2006-01-02 15:04:05"),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to prune cache: %w", err)
	}
	return result.RowsAffected()
}

// Clear deletes every entry and returns how many were removed.
func (db *DB) Clear(ctx context.Context) (int64, error) {
	result, err := db.ExecContext(ctx, "DELETE FROM metrics_cache")
	if err != nil {
		return 0, fmt.Errorf("failed to clear cache: %w", err)
	}
	return result.RowsAffected()
}
