// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir  string // Base directory for all databases (always absolute)
	Port     int
	LogLevel string
	DevMode  bool

	// Orchestration bounds. Outer limits how many securities run at once,
	// inner limits how many dimension tasks run per security. The ceiling
	// on concurrent external calls is Outer*Inner.
	OuterConcurrency int
	InnerConcurrency int

	// ProgressInterval is the publisher tick cadence.
	ProgressInterval time.Duration

	// External collaborators
	MarketDataURL    string
	MarketDataAPIKey string
	GenerativeURL    string
	GenerativeModel  string

	// ResearchCron, when non-empty, schedules a recurring research run over
	// the whole universe (cron expression with seconds field).
	ResearchCron string

	Archive *ArchiveConfig
}

// ArchiveConfig holds report archive (S3-compatible storage) configuration
type ArchiveConfig struct {
	Enabled   bool
	Endpoint  string // S3-compatible endpoint (e.g. Cloudflare R2)
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("LOOKOUT_DATA_DIR", "")
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to determine home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".lookout")
	}

	// Always resolve to absolute path
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:          absDataDir,
		Port:             getEnvAsInt("LOOKOUT_PORT", 8010),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		DevMode:          getEnvAsBool("DEV_MODE", false),
		OuterConcurrency: getEnvAsInt("LOOKOUT_OUTER_CONCURRENCY", 3),
		InnerConcurrency: getEnvAsInt("LOOKOUT_INNER_CONCURRENCY", 4),
		ProgressInterval: getEnvAsDuration("LOOKOUT_PROGRESS_INTERVAL", time.Second),
		MarketDataURL:    getEnv("MARKETDATA_URL", "https://www.alphavantage.co"),
		MarketDataAPIKey: getEnv("MARKETDATA_API_KEY", ""),
		GenerativeURL:    getEnv("GENERATIVE_URL", "http://localhost:11434"),
		GenerativeModel:  getEnv("GENERATIVE_MODEL", "research-analyst"),
		ResearchCron:     getEnv("LOOKOUT_RESEARCH_CRON", ""),
		Archive:          loadArchiveConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadArchiveConfig() *ArchiveConfig {
	return &ArchiveConfig{
		Enabled:   getEnvAsBool("ARCHIVE_ENABLED", false),
		Endpoint:  getEnv("ARCHIVE_ENDPOINT", ""),
		Region:    getEnv("ARCHIVE_REGION", "auto"),
		Bucket:    getEnv("ARCHIVE_BUCKET", "lookout-reports"),
		AccessKey: getEnv("ARCHIVE_ACCESS_KEY", ""),
		SecretKey: getEnv("ARCHIVE_SECRET_KEY", ""),
	}
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.OuterConcurrency < 1 {
		return fmt.Errorf("outer concurrency must be at least 1, got %d", c.OuterConcurrency)
	}
	if c.InnerConcurrency < 1 {
		return fmt.Errorf("inner concurrency must be at least 1, got %d", c.InnerConcurrency)
	}
	if c.Archive.Enabled {
		if c.Archive.Endpoint == "" || c.Archive.AccessKey == "" || c.Archive.SecretKey == "" {
			return fmt.Errorf("archive enabled but endpoint/credentials missing")
		}
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
