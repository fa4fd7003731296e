package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration
type Config struct {
	// Application
	AppEnv   string `envconfig:"APP_ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// Local cache layout
	DataDir     string `envconfig:"DATA_DIR" default:"data"`
	CatalogPath string `envconfig:"CATALOG_PATH" default:"config/catalog.yaml"`

	// Politeness delay before every period fetch
	PacingMin time.Duration `envconfig:"PACING_MIN" default:"1s"`
	PacingMax time.Duration `envconfig:"PACING_MAX" default:"5s"`

	// Provider API
	ProviderBaseURL   string        `envconfig:"PROVIDER_BASE_URL"`
	ProviderAPIKey    string        `envconfig:"PROVIDER_API_KEY"`
	ProviderTimeout   time.Duration `envconfig:"PROVIDER_TIMEOUT" default:"30s"`
	ProviderRateLimit float64       `envconfig:"PROVIDER_RATE_LIMIT" default:"1"`
	ProviderBurst     int           `envconfig:"PROVIDER_BURST" default:"1"`

	// Database
	DatabaseHost     string `envconfig:"DATABASE_HOST" default:"localhost"`
	DatabasePort     int    `envconfig:"DATABASE_PORT" default:"5432"`
	DatabaseName     string `envconfig:"DATABASE_NAME" default:"baseball"`
	DatabaseUser     string `envconfig:"DATABASE_USER" default:"baseball"`
	DatabasePassword string `envconfig:"DATABASE_PASSWORD"`
	DatabaseSSLMode  string `envconfig:"DATABASE_SSL_MODE" default:"disable"`

	// Redis run lock
	RedisEnabled  bool          `envconfig:"REDIS_ENABLED" default:"false"`
	RedisHost     string        `envconfig:"REDIS_HOST" default:"localhost"`
	RedisPort     int           `envconfig:"REDIS_PORT" default:"6379"`
	RedisPassword string        `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int           `envconfig:"REDIS_DB" default:"0"`
	LockTTL       time.Duration `envconfig:"LOCK_TTL" default:"6h"`

	// Scheduler
	EnableScheduler bool   `envconfig:"ENABLE_SCHEDULER" default:"false"`
	RefreshCron     string `envconfig:"REFRESH_CRON" default:"0 6 * * *"`

	// Monitoring
	EnableMetrics bool `envconfig:"ENABLE_METRICS" default:"true"`
	MetricsPort   int  `envconfig:"METRICS_PORT" default:"9090"`
}

// Load loads configuration from environment variables
// It first attempts to load from .env file if present
func Load() (*Config, error) {
	// Try to load .env file (ignore error if doesn't exist)
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment config: %w", err)
	}

	// Validate
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("DATA_DIR is required")
	}

	if c.CatalogPath == "" {
		return fmt.Errorf("CATALOG_PATH is required")
	}

	if c.PacingMin < 0 || c.PacingMax < 0 {
		return fmt.Errorf("PACING_MIN and PACING_MAX must not be negative")
	}

	if c.PacingMin > c.PacingMax {
		return fmt.Errorf("PACING_MIN (%s) must not exceed PACING_MAX (%s)", c.PacingMin, c.PacingMax)
	}

	if c.ProviderRateLimit < 0 {
		return fmt.Errorf("PROVIDER_RATE_LIMIT must not be negative")
	}

	if c.RedisEnabled && c.LockTTL <= 0 {
		return fmt.Errorf("LOCK_TTL must be positive when REDIS_ENABLED is set")
	}

	if c.EnableScheduler && c.RefreshCron == "" {
		return fmt.Errorf("REFRESH_CRON is required when ENABLE_SCHEDULER is set")
	}

	return nil
}

// RequireDatabase checks the settings only the loader needs
func (c *Config) RequireDatabase() error {
	if c.DatabasePassword == "" {
		return fmt.Errorf("DATABASE_PASSWORD is required")
	}
	return nil
}

// RedisAddr returns the Redis address
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// MustLoad loads configuration or exits on error
// Use this in main() where we want to fail fast
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	return cfg
}
