// Package config handles application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// Server settings
	Port    int
	BaseURL string

	// Database
	DatabaseURL string

	// CORS
	CORSOrigins []string

	// Browser automation
	ChromePath         string        // Optional custom Chrome/Chromium binary
	BrowserPoolSize    int           // Max concurrent browser instances
	BrowserMaxAge      time.Duration // Recycle browsers older than this
	BrowserMaxRequests int           // Recycle browsers after this many sessions
	BrowserIdleTimeout time.Duration // Close browsers idle longer than this

	// Crawler
	Crawler CrawlerConfig

	// Summarizer backends
	Summarizer SummarizerConfig

	// Attachment archive (S3-compatible object storage)
	StorageEnabled   bool
	StorageEndpoint  string
	StorageAccessKey string
	StorageSecretKey string
	StorageBucket    string
	StorageRegion    string

	// Attachments
	AttachmentDir         string        // Local directory for downloaded review photos
	AttachmentConcurrency int           // Downloads in flight per review
	AttachmentMaxBytes    int64         // Per-file byte ceiling
	AttachmentTimeout     time.Duration // Per-file download timeout

	// Worker / jobs
	JobRetireTimeout time.Duration // How long Start waits for a retired job to stop
	StaleJobCutoff   time.Duration // Running jobs older than this are failed on boot

	// Idle shutdown settings (for scale-to-zero deployments)
	IdleTimeout time.Duration // Time before shutting down when idle (0 = disabled)
}

// CrawlerConfig holds settings for the extraction agent.
type CrawlerConfig struct {
	NavigationTimeout time.Duration // Whole-page navigation budget
	StepTimeout       time.Duration // Per-iteration DOM wait budget
	SessionTimeout    time.Duration // Whole browser session ceiling
	MaxLoadMore       int           // Max "reveal more" iterations
	StableWindow      time.Duration // Trailing fingerprint must hold this long to stop
	MaxStepErrors     int           // Transient DOM errors tolerated before failing
}

// BackendConfig describes one generative backend endpoint.
type BackendConfig struct {
	URL        string        // Base URL, e.g. http://localhost:11434
	Model      string        // Model name for /api/generate
	Timeout    time.Duration // Per-call timeout
	Credential string        // Bearer token (cloud only)
}

// SummarizerConfig holds the resolved generative backend settings.
type SummarizerConfig struct {
	Cloud       BackendConfig // Hosted backend; parallel-capable. Disabled when URL is empty.
	Local       BackendConfig // On-prem backend; strictly sequential.
	Parallelism int           // Concurrent requests per cloud dispatch group
	ChunkSize   int           // Reviews per summarization sweep chunk
	ContextSize int           // num_ctx passed to the backend
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnvInt("PORT", 8080),
		BaseURL:     getEnv("BASE_URL", "http://localhost:8080"),
		DatabaseURL: getEnv("DATABASE_URL", "file:placefeed.db?_journal=WAL&_timeout=5000"),
		CORSOrigins: getEnvSlice("CORS_ORIGINS", []string{"*"}),

		ChromePath:         getEnv("CHROME_PATH", ""),
		BrowserPoolSize:    getEnvInt("BROWSER_POOL_SIZE", 3),
		BrowserMaxAge:      getEnvDuration("BROWSER_MAX_AGE", 30*time.Minute),
		BrowserMaxRequests: getEnvInt("BROWSER_MAX_REQUESTS", 50),
		BrowserIdleTimeout: getEnvDuration("BROWSER_IDLE_TIMEOUT", 10*time.Minute),

		Crawler: CrawlerConfig{
			NavigationTimeout: getEnvDuration("CRAWL_NAV_TIMEOUT", 30*time.Second),
			StepTimeout:       getEnvDuration("CRAWL_STEP_TIMEOUT", 4*time.Second),
			SessionTimeout:    getEnvDuration("CRAWL_SESSION_TIMEOUT", 10*time.Minute),
			MaxLoadMore:       getEnvInt("CRAWL_MAX_LOAD_MORE", 100),
			StableWindow:      getEnvDuration("CRAWL_STABLE_WINDOW", 5*time.Second),
			MaxStepErrors:     getEnvInt("CRAWL_MAX_STEP_ERRORS", 3),
		},

		Summarizer: SummarizerConfig{
			Cloud: BackendConfig{
				URL:        getEnv("SUMMARIZER_CLOUD_URL", ""),
				Model:      getEnv("SUMMARIZER_CLOUD_MODEL", "gpt-oss:120b-cloud"),
				Timeout:    getEnvDuration("SUMMARIZER_CLOUD_TIMEOUT", 60*time.Second),
				Credential: getEnv("SUMMARIZER_CLOUD_KEY", ""),
			},
			Local: BackendConfig{
				URL:     getEnv("SUMMARIZER_LOCAL_URL", "http://localhost:11434"),
				Model:   getEnv("SUMMARIZER_LOCAL_MODEL", "qwen2.5:3b"),
				Timeout: getEnvDuration("SUMMARIZER_LOCAL_TIMEOUT", 120*time.Second),
			},
			Parallelism: getEnvInt("SUMMARIZER_PARALLELISM", 5),
			ChunkSize:   getEnvInt("SUMMARIZER_CHUNK_SIZE", 10),
			ContextSize: getEnvInt("SUMMARIZER_CONTEXT_SIZE", 8192),
		},

		StorageEnabled:   getEnv("STORAGE_BUCKET", "") != "",
		StorageEndpoint:  getEnv("STORAGE_ENDPOINT", ""),
		StorageAccessKey: getEnvWithFallback("STORAGE_ACCESS_KEY", "AWS_ACCESS_KEY_ID", ""),
		StorageSecretKey: getEnvWithFallback("STORAGE_SECRET_KEY", "AWS_SECRET_ACCESS_KEY", ""),
		StorageBucket:    getEnv("STORAGE_BUCKET", ""),
		StorageRegion:    getEnv("STORAGE_REGION", "auto"),

		AttachmentDir:         getEnv("ATTACHMENT_DIR", "data/attachments"),
		AttachmentConcurrency: getEnvInt("ATTACHMENT_CONCURRENCY", 3),
		AttachmentMaxBytes:    int64(getEnvInt("ATTACHMENT_MAX_BYTES", 10*1024*1024)),
		AttachmentTimeout:     getEnvDuration("ATTACHMENT_TIMEOUT", 30*time.Second),

		JobRetireTimeout: getEnvDuration("JOB_RETIRE_TIMEOUT", 5*time.Second),
		StaleJobCutoff:   getEnvDuration("STALE_JOB_CUTOFF", 1*time.Hour),

		IdleTimeout: getEnvDuration("IDLE_TIMEOUT", 0),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid PORT: %d", c.Port)
	}
	if c.Summarizer.Local.URL == "" && c.Summarizer.Cloud.URL == "" {
		return fmt.Errorf("at least one summarizer backend must be configured")
	}
	if c.Summarizer.Cloud.URL != "" && c.Summarizer.Cloud.Credential == "" {
		return fmt.Errorf("SUMMARIZER_CLOUD_KEY is required when SUMMARIZER_CLOUD_URL is set")
	}
	if c.Summarizer.Parallelism < 1 {
		return fmt.Errorf("SUMMARIZER_PARALLELISM must be at least 1")
	}
	if c.BrowserPoolSize < 1 {
		return fmt.Errorf("BROWSER_POOL_SIZE must be at least 1")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return defaultValue
}

func getEnvWithFallback(primary, fallback, defaultValue string) string {
	if value := os.Getenv(primary); value != "" {
		return value
	}
	if value := os.Getenv(fallback); value != "" {
		return value
	}
	return defaultValue
}
