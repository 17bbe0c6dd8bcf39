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
// All environment variables are read here and nowhere else.
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// Market data
	MarketData MarketDataConfig

	// Universe providers
	Universe UniverseConfig

	// Scan tuning
	Scan ScanConfig

	// Position monitor
	Monitor MonitorConfig

	// Logging
	LogLevel  string
	LogFormat string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL string

	// Connection pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// MarketDataConfig holds chart data provider configuration
type MarketDataConfig struct {
	BaseURL        string
	BenchmarkIndex string // regime benchmark, e.g. ^GSPC
	RequestsPerSec int
	CacheTTL       time.Duration
}

// UniverseConfig holds universe provider configuration
type UniverseConfig struct {
	ScreenerURL string // primary JSON screener API
	ScrapeURL   string // HTML fallback page
}

// ScanConfig holds screening pipeline tuning
type ScanConfig struct {
	FetchWorkers  int           // batch enrichment pool size
	GateWorkers   int           // stage2 pool size
	LookbackDays  int           // history window fetched per ticker
	TopN          int           // ranked results kept per strategy
	StageTimeout  time.Duration // wall clock budget per stage
	MaxConcurrent int           // simultaneous scan jobs
	StrategyDir   string        // YAML strategy config directory
}

// MonitorConfig holds position monitor tuning
type MonitorConfig struct {
	CheckInterval time.Duration
	AutoNotify    bool
}

// Load reads configuration from environment variables.
// This is the only function that calls os.Getenv().
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		Port: getEnv("PORT", "8090"),
		Env:  getEnv("ENV", "development"),

		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 16),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 2),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},

		MarketData: MarketDataConfig{
			BaseURL:        getEnv("CHART_BASE_URL", "https://query1.finance.yahoo.com"),
			BenchmarkIndex: getEnv("BENCHMARK_INDEX", "^GSPC"),
			RequestsPerSec: getEnvAsInt("CHART_REQUESTS_PER_SEC", 8),
			CacheTTL:       getEnvAsDuration("CHART_CACHE_TTL", "30m"),
		},

		Universe: UniverseConfig{
			ScreenerURL: getEnv("SCREENER_URL", "https://query1.finance.yahoo.com/v1/finance/screener"),
			ScrapeURL:   getEnv("SCREENER_SCRAPE_URL", "https://stockanalysis.com/stocks/screener/"),
		},

		Scan: ScanConfig{
			FetchWorkers:  getEnvAsInt("SCAN_FETCH_WORKERS", 8),
			GateWorkers:   getEnvAsInt("SCAN_GATE_WORKERS", 4),
			LookbackDays:  getEnvAsInt("SCAN_LOOKBACK_DAYS", 300),
			TopN:          getEnvAsInt("SCAN_TOP_N", 20),
			StageTimeout:  getEnvAsDuration("SCAN_STAGE_TIMEOUT", "10m"),
			MaxConcurrent: getEnvAsInt("SCAN_MAX_CONCURRENT", 1),
			StrategyDir:   getEnv("STRATEGY_CONFIG_DIR", "config/strategy"),
		},

		Monitor: MonitorConfig{
			CheckInterval: getEnvAsDuration("MONITOR_CHECK_INTERVAL", "5m"),
			AutoNotify:    getEnvAsBool("MONITOR_AUTO_NOTIFY", true),
		},

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.Scan.FetchWorkers < 1 || c.Scan.GateWorkers < 1 {
		return fmt.Errorf("scan worker counts must be >= 1")
	}

	if c.Scan.MaxConcurrent < 1 {
		return fmt.Errorf("SCAN_MAX_CONCURRENT must be >= 1")
	}

	return nil
}

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{
		".env",
		"backend/.env",
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
