// Package config loads the control-surface defaults for the daemon and
// CLI from environment variables, following the same godotenv +
// os.Getenv pattern as the rest of the stack.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config is the process-wide control surface. Every field has a
// documented default so the process runs sensibly with zero
// configuration.
type Config struct {
	// Database.
	DatabaseURL string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string
	DBSSLMode   string

	// Persistent cache (SQLite).
	PersistentCachePath       string
	PersistentCacheMaxEntries int
	PersistentCacheMaxBytes   int64

	// In-process memory cache.
	MemoryCacheCapacity int

	// Sidecar files.
	SidecarEnabled bool

	// Extraction pipeline.
	Workers         int
	QueueCapacity   int
	EnqueueTimeout  time.Duration
	JobDeadline     time.Duration
	MaxRetries      int

	// Remote analyzer (optional; empty means local-only).
	RemoteAnalyzerURL     string
	RemoteAnalyzerTimeout time.Duration
	HealthCheckTimeout    time.Duration
	HealthCheckCacheTTL   time.Duration

	// Logging.
	LogLevel string
	LogFile  string

	// Observability.
	OTELEnabled      bool
	OTELServiceName  string
	OTELEnvironment  string
	OTELEndpoint     string
	OTELSamplingRate float64

	// Daemon HTTP surface.
	HTTPAddr string
}

// Load reads configuration from the environment, applying defaults for
// anything unset. Call godotenv.Load() before this in main() if a .env
// file should be honored.
func Load() *Config {
	return &Config{
		DatabaseURL: os.Getenv("DATABASE_URL"),
		DBHost:      getEnvOrDefault("DB_HOST", "localhost"),
		DBPort:      getEnvOrDefault("DB_PORT", "5432"),
		DBUser:      getEnvOrDefault("DB_USER", "postgres"),
		DBPassword:  getEnvOrDefault("DB_PASSWORD", ""),
		DBName:      getEnvOrDefault("DB_NAME", "auralis_fingerprints"),
		DBSSLMode:   getEnvOrDefault("DB_SSLMODE", "disable"),

		PersistentCachePath:       getEnvOrDefault("PERSISTENT_CACHE_PATH", "fingerprint_cache.db"),
		PersistentCacheMaxEntries: getEnvInt("PERSISTENT_CACHE_MAX_ENTRIES", 100_000),
		PersistentCacheMaxBytes:   getEnvInt64("PERSISTENT_CACHE_MAX_BYTES", 1<<30), // 1 GiB

		MemoryCacheCapacity: getEnvInt("MEMORY_CACHE_CAPACITY", 1000),

		SidecarEnabled: getEnvBool("SIDECAR_ENABLED", true),

		Workers:        getEnvInt("PIPELINE_WORKERS", 12),
		QueueCapacity:  getEnvInt("PIPELINE_QUEUE_CAPACITY", 25),
		EnqueueTimeout: getEnvDuration("PIPELINE_ENQUEUE_TIMEOUT", 30*time.Second),
		JobDeadline:    getEnvDuration("PIPELINE_JOB_DEADLINE", 60*time.Second),
		MaxRetries:     getEnvInt("PIPELINE_MAX_RETRIES", 3),

		RemoteAnalyzerURL:     os.Getenv("REMOTE_ANALYZER_URL"),
		RemoteAnalyzerTimeout: getEnvDuration("REMOTE_ANALYZER_TIMEOUT", 30*time.Second),
		HealthCheckTimeout:    getEnvDuration("REMOTE_ANALYZER_HEALTH_TIMEOUT", 1*time.Second),
		HealthCheckCacheTTL:   getEnvDuration("REMOTE_ANALYZER_HEALTH_CACHE_TTL", 5*time.Second),

		LogLevel: getEnvOrDefault("LOG_LEVEL", "info"),
		LogFile:  getEnvOrDefault("LOG_FILE", "fingerprintd.log"),

		OTELEnabled:      getEnvBool("OTEL_ENABLED", false),
		OTELServiceName:  getEnvOrDefault("OTEL_SERVICE_NAME", "fingerprintd"),
		OTELEnvironment:  getEnvOrDefault("OTEL_ENVIRONMENT", "development"),
		OTELEndpoint:     getEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
		OTELSamplingRate: getEnvFloat("OTEL_TRACE_SAMPLER_RATE", 1.0),

		HTTPAddr: getEnvOrDefault("HTTP_ADDR", ":8090"),
	}
}

func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
