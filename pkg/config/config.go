package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// ⭐ SSOT: every environment variable is read here and nowhere else
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// External sources
	Yahoo    YahooConfig
	Holdings HoldingsConfig

	// Engine
	Analysis AnalysisConfig
	Refresh  RefreshConfig

	// Model presets (YAML)
	ModelsFile string

	// Logging
	LogLevel  string
	LogFormat string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// YahooConfig holds the live quote source configuration
type YahooConfig struct {
	BaseURL   string
	RateLimit int // requests per second, shared by all live fetches
	Timeout   time.Duration
}

// HoldingsConfig holds the holdings file storage configuration
type HoldingsConfig struct {
	Bucket string
	Region string
	Dir    string // local directory used for file:// addresses

	// listed for every user alongside their own portfolios; empty disables it
	DemoPortfolioID string
}

// AnalysisConfig holds factor model engine parameters
type AnalysisConfig struct {
	MaxConcurrency     int           // cap on concurrent live fetches per request
	Timeout            time.Duration // per-request deadline
	MinObservations    int           // aligner floor (raised to k+2 automatically)
	ConditionThreshold float64       // design matrix condition number limit
	FetchAttempts      int           // live fetch attempts before DataUnavailable
	LookbackDays       int           // default window when a request omits dates
	ReconcileTolerance float64       // attribution reconciliation tolerance (relative)
	Weighting          string        // value (per period) or fixed
	CacheTTL           time.Duration // live price history cache TTL
}

// RefreshConfig holds the archive refresh job configuration
type RefreshConfig struct {
	Schedule     string
	LookbackDays int
}

// Load reads configuration from environment variables
// ⭐ SSOT: the only function that calls os.Getenv()
func Load() (*Config, error) {
	// Try multiple paths for .env file
	loadEnvFile()

	cfg := &Config{
		// Server
		Port: getEnv("PORT", "8000"),
		Env:  getEnv("ENV", "development"),

		// Database
		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 2),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		// Redis
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},

		Yahoo: YahooConfig{
			BaseURL:   getEnv("YAHOO_BASE_URL", "https://query1.finance.yahoo.com"),
			RateLimit: getEnvAsInt("YAHOO_RATE_LIMIT", 5),
			Timeout:   getEnvAsDuration("YAHOO_TIMEOUT", "15s"),
		},

		Holdings: HoldingsConfig{
			Bucket: getEnv("HOLDINGS_BUCKET", ""),
			Region: getEnv("HOLDINGS_REGION", "us-east-1"),
			Dir:    getEnv("HOLDINGS_DIR", "./portfolios"),

			DemoPortfolioID: getEnv("DEMO_PORTFOLIO_ID", ""),
		},

		Analysis: AnalysisConfig{
			MaxConcurrency:     getEnvAsInt("ANALYSIS_MAX_CONCURRENCY", 4),
			Timeout:            getEnvAsDuration("ANALYSIS_TIMEOUT", "60s"),
			MinObservations:    getEnvAsInt("ANALYSIS_MIN_OBSERVATIONS", 0),
			ConditionThreshold: getEnvAsFloat("ANALYSIS_CONDITION_THRESHOLD", 1e10),
			FetchAttempts:      getEnvAsInt("ANALYSIS_FETCH_ATTEMPTS", 3),
			LookbackDays:       getEnvAsInt("ANALYSIS_LOOKBACK_DAYS", 365),
			ReconcileTolerance: getEnvAsFloat("ANALYSIS_RECONCILE_TOLERANCE", 1e-6),
			Weighting:          getEnv("ANALYSIS_WEIGHTING", "value"),
			CacheTTL:           getEnvAsDuration("ANALYSIS_CACHE_TTL", "6h"),
		},

		Refresh: RefreshConfig{
			Schedule:     getEnv("REFRESH_SCHEDULE", "0 0 22 * * MON-FRI"),
			LookbackDays: getEnvAsInt("REFRESH_LOOKBACK_DAYS", 730),
		},

		ModelsFile: getEnv("MODELS_FILE", "config/models.yaml"),

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	// Database URL is required
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	// Validate environment
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.Analysis.Weighting != "value" && c.Analysis.Weighting != "fixed" {
		return fmt.Errorf("ANALYSIS_WEIGHTING must be one of: value, fixed")
	}

	if c.Analysis.MaxConcurrency <= 0 {
		return fmt.Errorf("ANALYSIS_MAX_CONCURRENCY must be > 0")
	}

	if c.Analysis.FetchAttempts <= 0 {
		return fmt.Errorf("ANALYSIS_FETCH_ATTEMPTS must be > 0")
	}

	return nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	// Try paths in order of priority
	paths := []string{
		".env",         // Current directory
		"backend/.env", // From project root
	}

	// Also try relative to executable
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
		// Fallback to default
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
