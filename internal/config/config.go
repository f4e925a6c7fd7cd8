// Package config contains everything related to configuration
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/plexus-ai/plexus-metrics/internal/timebucket"
)

var (
	// ErrMissingEndpoint is returned when PLEXUS_API_URL is not set.
	ErrMissingEndpoint = errors.New("PLEXUS_API_URL is required")
	// ErrMissingAPIKey is returned when PLEXUS_API_KEY is not set.
	ErrMissingAPIKey = errors.New("PLEXUS_API_KEY is required")
)

// Config holds the application configuration.
type Config struct {
	Location           *time.Location
	APIURL             string
	APIKey             string
	AccountKey         string
	CachePath          string
	AccountsPath       string
	ListenAddr         string
	LogLevel           string
	LogFormat          string
	RequestTimeout     time.Duration
	RefreshInterval    time.Duration
	BucketWidthMinutes int
	PageSize           int
	MaxPages           int
	FetchConcurrency   int
	SummaryHours       int
	Notify             bool
}

// Default values
const (
	defaultPageSize         = 1000
	defaultMaxPages         = 100
	defaultRequestTimeout   = 60 * time.Second
	defaultRefreshInterval  = 5 * time.Minute
	defaultFetchConcurrency = 1
	defaultSummaryHours     = 24
	defaultListenAddr       = "127.0.0.1:8089"
	cacheFileName           = "metrics_cache.db"
)

// Load reads configuration from .env files and environment variables.
// Explicit env files are loaded first and must exist; without them the
// usual locations are searched and the first one found is used.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) > 0 {
		if err := godotenv.Load(envFiles...); err != nil {
			return nil, fmt.Errorf("failed to load env file: %w", err)
		}
	} else {
		for _, path := range getEnvPaths() {
			if _, err := os.Stat(path); err == nil {
				_ = godotenv.Load(path)
				break
			}
		}
	}

	cfg := &Config{
		APIURL:             strings.TrimSpace(os.Getenv("PLEXUS_API_URL")),
		APIKey:             strings.TrimSpace(os.Getenv("PLEXUS_API_KEY")),
		AccountKey:         getEnvString("PLEXUS_ACCOUNT_KEY", ""),
		CachePath:          getEnvString("PLEXUS_CACHE_PATH", ""),
		AccountsPath:       getEnvString("PLEXUS_ACCOUNTS_PATH", getDefaultAccountsPath()),
		ListenAddr:         getEnvString("PLEXUS_LISTEN_ADDR", defaultListenAddr),
		LogLevel:           getEnvString("PLEXUS_LOG_LEVEL", "info"),
		LogFormat:          getEnvString("PLEXUS_LOG_FORMAT", "text"),
		RequestTimeout:     getEnvDuration("PLEXUS_REQUEST_TIMEOUT", defaultRequestTimeout),
		RefreshInterval:    getEnvDuration("PLEXUS_REFRESH_INTERVAL", defaultRefreshInterval),
		BucketWidthMinutes: getEnvInt("PLEXUS_BUCKET_WIDTH_MINUTES", timebucket.DefaultWidthMinutes),
		PageSize:           getEnvInt("PLEXUS_PAGE_SIZE", defaultPageSize),
		MaxPages:           getEnvInt("PLEXUS_MAX_PAGES", defaultMaxPages),
		FetchConcurrency:   getEnvInt("PLEXUS_FETCH_CONCURRENCY", defaultFetchConcurrency),
		SummaryHours:       getEnvInt("PLEXUS_SUMMARY_HOURS", defaultSummaryHours),
		Notify:             getEnvBool("PLEXUS_NOTIFY", true),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	loc, err := time.LoadLocation(getEnvString("PLEXUS_TIMEZONE", "UTC"))
	if err != nil {
		return nil, fmt.Errorf("invalid PLEXUS_TIMEZONE: %w", err)
	}
	cfg.Location = loc

	if cfg.CachePath == "" {
		cfg.CachePath = DefaultCachePath()
	}

	// Ensure accounts directory exists
	if err := ensureDir(filepath.Dir(cfg.AccountsPath)); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks required settings and value ranges.
func (c *Config) Validate() error {
	if c.APIURL == "" {
		return ErrMissingEndpoint
	}
	if c.APIKey == "" {
		return ErrMissingAPIKey
	}
	if !strings.HasPrefix(c.APIURL, "http://") && !strings.HasPrefix(c.APIURL, "https://") {
		return fmt.Errorf("PLEXUS_API_URL must be an http(s) URL, got %q", c.APIURL)
	}
	if err := timebucket.ValidateWidth(c.BucketWidthMinutes); err != nil {
		return fmt.Errorf("invalid PLEXUS_BUCKET_WIDTH_MINUTES: %w", err)
	}
	if c.PageSize < 1 {
		return fmt.Errorf("PLEXUS_PAGE_SIZE must be positive, got %d", c.PageSize)
	}
	if c.MaxPages < 1 {
		return fmt.Errorf("PLEXUS_MAX_PAGES must be positive, got %d", c.MaxPages)
	}
	if c.FetchConcurrency < 1 {
		c.FetchConcurrency = defaultFetchConcurrency
	}
	if c.SummaryHours < 0 {
		return fmt.Errorf("PLEXUS_SUMMARY_HOURS must not be negative, got %d", c.SummaryHours)
	}
	return nil
}

// DefaultCachePath returns the cache file location. The system temp directory
// is preferred; a local tmp directory is used when it is not writable.
func DefaultCachePath() string {
	dir := filepath.Join(os.TempDir(), "plexus")
	if isWritableDir(dir) {
		return filepath.Join(dir, cacheFileName)
	}
	return filepath.Join("tmp", cacheFileName)
}

// getEnvPaths returns a list of paths to check for .env files.
func getEnvPaths() []string {
	var paths []string

	// Current directory
	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(cwd, ".env"))
	}

	// Home directory locations
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths,
			filepath.Join(home, ".config", "plexus", ".env"),
			filepath.Join(home, ".plexus", ".env"),
		)
	}

	// Parent directories (useful for development)
	if cwd, err := os.Getwd(); err == nil {
		parent := filepath.Dir(cwd)
		paths = append(paths, filepath.Join(parent, ".env"))
	}

	return paths
}

// getDefaultAccountsPath returns the default path for the tracked accounts file.
func getDefaultAccountsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "plexus-accounts.json"
	}
	return filepath.Join(home, ".config", "plexus", "accounts.json")
}

// getEnvString retrieves a string environment variable or returns the default.
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns the default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return n
		}
	}
	return defaultValue
}

// getEnvBool retrieves a boolean environment variable or returns the default.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvDuration retrieves a duration environment variable or returns the default.
// Accepts values like "30s", "1m", "500ms".
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		// Try parsing as seconds if no unit specified
		if secs, err := strconv.Atoi(value); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultValue
}

// ensureDir creates a directory and all parent directories if they don't exist.
func ensureDir(path string) error {
	if path == "" || path == "." {
		return nil
	}
	return os.MkdirAll(path, 0o750)
}

func isWritableDir(dir string) bool {
	if err := ensureDir(dir); err != nil {
		return false
	}
	f, err := os.CreateTemp(dir, ".probe-*")
	if err != nil {
		return false
	}
	name := f.Name()
	_ = f.Close()
	_ = os.Remove(name)
	return true
}
