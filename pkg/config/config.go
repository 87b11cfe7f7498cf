package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
// Every environment variable is read here and nowhere else.
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// Analytics defaults, injected into the performance calculations
	// instead of being compiled-in constants.
	Analytics AnalyticsConfig

	// Quote provider (external market data source)
	Provider ProviderConfig

	// Scheduler
	Scheduler SchedulerConfig

	// Logging
	LogLevel  string
	LogFormat string

	// Monitoring
	MetricsEnabled bool
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	URL string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool

	// TTL for cached performance summaries
	SummaryTTL time.Duration
}

// AnalyticsConfig holds the numeric defaults for return/risk analytics.
type AnalyticsConfig struct {
	RiskFreeRate       float64 // annual, e.g. 0.02
	TradingDaysPerYear int     // e.g. 252
}

// ProviderConfig holds the external quote page configuration.
type ProviderConfig struct {
	BaseURL        string
	RequestsPerSec float64
	MaxConcurrency int
	Timeout        time.Duration
}

// SchedulerConfig holds the rebalance scheduler configuration.
type SchedulerConfig struct {
	Enabled bool
	// Cron specs (with seconds) for the daily jobs.
	RebalanceSpec string
	RefreshSpec   string
}

// Load reads configuration from environment variables.
// Only this function calls os.Getenv().
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		Port: getEnv("PORT", "8080"),
		Env:  getEnv("ENV", "development"),

		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 25),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 5),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		Redis: RedisConfig{
			Host:       getEnv("REDIS_HOST", "localhost"),
			Port:       getEnv("REDIS_PORT", "6379"),
			Password:   getEnv("REDIS_PASSWORD", ""),
			DB:         getEnvAsInt("REDIS_DB", 0),
			Enabled:    getEnvAsBool("REDIS_ENABLED", true),
			SummaryTTL: getEnvAsDuration("REDIS_SUMMARY_TTL", "5m"),
		},

		Analytics: AnalyticsConfig{
			RiskFreeRate:       getEnvAsFloat("RISK_FREE_RATE", 0.02),
			TradingDaysPerYear: getEnvAsInt("TRADING_DAYS_PER_YEAR", 252),
		},

		Provider: ProviderConfig{
			BaseURL:        getEnv("PROVIDER_BASE_URL", ""),
			RequestsPerSec: getEnvAsFloat("PROVIDER_RATE_LIMIT", 5),
			MaxConcurrency: getEnvAsInt("PROVIDER_MAX_CONCURRENCY", 4),
			Timeout:        getEnvAsDuration("PROVIDER_TIMEOUT", "30s"),
		},

		Scheduler: SchedulerConfig{
			Enabled:       getEnvAsBool("SCHEDULER_ENABLED", false),
			RebalanceSpec: getEnv("SCHEDULER_REBALANCE_SPEC", "0 30 17 * * MON-FRI"),
			RefreshSpec:   getEnv("SCHEDULER_REFRESH_SPEC", "0 0 17 * * MON-FRI"),
		},

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set.
func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.Analytics.TradingDaysPerYear <= 0 {
		return fmt.Errorf("TRADING_DAYS_PER_YEAR must be positive")
	}

	return nil
}

// loadEnvFile tries to load .env from multiple locations.
func loadEnvFile() {
	paths := []string{
		".env",
	}

	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
