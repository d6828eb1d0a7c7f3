// Package config contains everything related to configuration
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the application configuration.
type Config struct {
	Upload UploadConfig
	UI     UIConfig
	Data   DataConfig
	Notify NotifyConfig

	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
}

// UploadConfig configures the call-upload listener.
type UploadConfig struct {
	Port int
	Bind string
	// TmpDir receives attachments while a call is being processed.
	TmpDir string
	// APIKey enables the X-API-Key gate when non-empty.
	APIKey string
	// RateLimit is the number of uploads per minute per client IP; 0 disables it.
	RateLimit int
	// MaxMemory bounds the in-memory part of a multipart body.
	MaxMemory int64
}

// UIConfig configures the dashboard and stats listener.
type UIConfig struct {
	Port        int
	Bind        string
	PublicDir   string
	CORSOrigins []string
}

// DataConfig locates the data sources.
type DataConfig struct {
	TalkgroupsCSV string
	DatabasePath  string
}

// NotifyConfig holds notification feature flags.
type NotifyConfig struct {
	Enabled bool
}

// Default values
const (
	defaultUploadPort      = 3000
	defaultUIPort          = 3001
	defaultBind            = "0.0.0.0"
	defaultTmpDir          = "tmp"
	defaultPublicDir       = "public"
	defaultTalkgroupsCSV   = "talkgroups.csv"
	defaultDatabasePath    = "./stats.db"
	defaultMaxMemory       = 32 << 20
	defaultShutdownTimeout = 10 * time.Second
)

// Load reads configuration from .env files and environment variables.
func Load() (*Config, error) {
	// Try loading .env from multiple locations
	for _, path := range getEnvPaths() {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			break
		}
	}

	cfg := &Config{
		Upload: UploadConfig{
			Port:      getEnvInt("UPLOAD_PORT", defaultUploadPort),
			Bind:      getEnvString("UPLOAD_BIND", defaultBind),
			TmpDir:    getEnvString("UPLOAD_TMP_DIR", defaultTmpDir),
			APIKey:    getEnvString("UPLOAD_API_KEY", ""),
			RateLimit: getEnvInt("UPLOAD_RATE_LIMIT", 0),
			MaxMemory: int64(getEnvInt("UPLOAD_MAX_MEMORY", defaultMaxMemory)),
		},
		UI: UIConfig{
			Port:        getEnvInt("UI_PORT", defaultUIPort),
			Bind:        getEnvString("UI_BIND", defaultBind),
			PublicDir:   getEnvString("UI_PUBLIC_DIR", defaultPublicDir),
			CORSOrigins: getEnvList("UI_CORS_ORIGINS", []string{"*"}),
		},
		Data: DataConfig{
			TalkgroupsCSV: getEnvString("TALKGROUPS_CSV", defaultTalkgroupsCSV),
			DatabasePath:  getEnvString("DATABASE_PATH", defaultDatabasePath),
		},
		Notify: NotifyConfig{
			Enabled: getEnvBool("NOTIFY_ENABLED", true),
		},
		LogLevel:        getEnvString("LOG_LEVEL", "info"),
		LogFormat:       getEnvString("LOG_FORMAT", "text"),
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", defaultShutdownTimeout),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Ensure database directory exists
	if err := ensureDir(filepath.Dir(cfg.Data.DatabasePath)); err != nil {
		return nil, err
	}

	// Ensure attachment directory exists
	if err := ensureDir(cfg.Upload.TmpDir); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the configuration for values the server cannot start with.
func (c *Config) Validate() error {
	if err := validatePort("UPLOAD_PORT", c.Upload.Port); err != nil {
		return err
	}
	if err := validatePort("UI_PORT", c.UI.Port); err != nil {
		return err
	}
	if c.Upload.Port == c.UI.Port && c.Upload.Bind == c.UI.Bind {
		return fmt.Errorf("UPLOAD_PORT and UI_PORT must differ (both %d)", c.UI.Port)
	}
	if c.Data.DatabasePath == "" {
		return fmt.Errorf("DATABASE_PATH is required")
	}
	if c.Upload.TmpDir == "" {
		return fmt.Errorf("UPLOAD_TMP_DIR is required")
	}
	if c.Upload.RateLimit < 0 {
		return fmt.Errorf("UPLOAD_RATE_LIMIT must not be negative")
	}
	if c.Upload.MaxMemory <= 0 {
		return fmt.Errorf("UPLOAD_MAX_MEMORY must be positive")
	}
	return nil
}

func validatePort(name string, port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("%s must be between 1 and 65535, got %d", name, port)
	}
	return nil
}

// getEnvPaths returns a list of paths to check for .env files.
func getEnvPaths() []string {
	var paths []string

	// Current directory
	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(cwd, ".env"))
	}

	// Home directory location
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "rdio-stats", ".env"))
	}

	// Parent directory (useful for development)
	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(filepath.Dir(cwd), ".env"))
	}

	return paths
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
// Accepts the values understood by strconv.ParseBool.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvList retrieves a comma-separated environment variable or returns the default.
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return defaultValue
	}
	return items
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
