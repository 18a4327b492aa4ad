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
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// Reference data (sector / volume)
	RefData RefDataConfig

	// Risk engine
	Risk RiskConfig

	// Scheduler
	Scheduler SchedulerConfig

	// Logging
	LogLevel  string
	LogFormat string

	// Monitoring
	MetricsEnabled bool
	MetricsPort    string
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
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	URL      string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// Enabled DB 사용 여부 (DATABASE_URL 이 있을 때만)
func (d DatabaseConfig) Enabled() bool {
	return d.URL != ""
}

// RefDataConfig holds reference data API configuration
type RefDataConfig struct {
	BaseURL   string
	APIKey    string
	RateLimit float64 // 초당 요청 수
	Burst     int
	Timeout   time.Duration
	CacheTTL  time.Duration
}

// RiskConfig holds risk engine defaults
type RiskConfig struct {
	ProfilePath     string  // YAML 리스크 프로파일 경로
	ConfidenceLevel float64 // VaR 신뢰수준
	LotSize         int     // 매매 단위
	GateMode        string  // enforce, shadow, off
	Simulations     int     // Monte Carlo 시뮬레이션 수
	Seed            int64
}

// SchedulerConfig holds cron specs for scheduled jobs
type SchedulerConfig struct {
	Enabled           bool
	RiskSnapshotSpec  string
	StopLossSweepSpec string
}

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	// Try multiple paths for .env file
	loadEnvFile()

	cfg := &Config{
		// Server
		Port: getEnv("PORT", "8089"),
		Env:  getEnv("ENV", "development"),

		// Database
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			Name:            getEnv("DB_NAME", "stockrisk"),
			User:            getEnv("DB_USER", "stockrisk"),
			Password:        getEnv("DB_PASSWORD", ""),
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 25),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 5),
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

		RefData: RefDataConfig{
			BaseURL:   getEnv("REFDATA_BASE_URL", ""),
			APIKey:    getEnv("REFDATA_API_KEY", ""),
			RateLimit: getEnvAsFloat("REFDATA_RATE_LIMIT", 5),
			Burst:     getEnvAsInt("REFDATA_BURST", 5),
			Timeout:   getEnvAsDuration("REFDATA_TIMEOUT", "10s"),
			CacheTTL:  getEnvAsDuration("REFDATA_CACHE_TTL", "24h"),
		},

		Risk: RiskConfig{
			ProfilePath:     getEnv("RISK_PROFILE", "configs/risk_profile.yaml"),
			ConfidenceLevel: getEnvAsFloat("RISK_CONFIDENCE_LEVEL", 0.95),
			LotSize:         getEnvAsInt("RISK_LOT_SIZE", 1),
			GateMode:        getEnv("RISK_GATE_MODE", "enforce"),
			Simulations:     getEnvAsInt("RISK_MC_SIMULATIONS", 10000),
			Seed:            int64(getEnvAsInt("RISK_MC_SEED", 42)),
		},

		Scheduler: SchedulerConfig{
			Enabled:           getEnvAsBool("SCHEDULER_ENABLED", true),
			RiskSnapshotSpec:  getEnv("SCHEDULER_RISK_SNAPSHOT", "0 30 15 * * 1-5"),
			StopLossSweepSpec: getEnv("SCHEDULER_STOPLOSS_SWEEP", "0 */5 9-15 * * 1-5"),
		},

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "debug"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		// Monitoring
		MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
		MetricsPort:    getEnv("METRICS_PORT", "9090"),
	}

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	// Validate environment
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	// Production needs persistence
	if c.Env == "production" && c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required in production")
	}

	if c.Risk.ConfidenceLevel <= 0 || c.Risk.ConfidenceLevel >= 1 {
		return fmt.Errorf("RISK_CONFIDENCE_LEVEL must be in (0, 1), got %v", c.Risk.ConfidenceLevel)
	}

	if c.Risk.LotSize < 1 {
		return fmt.Errorf("RISK_LOT_SIZE must be >= 1, got %d", c.Risk.LotSize)
	}

	switch c.Risk.GateMode {
	case "enforce", "shadow", "off":
	default:
		return fmt.Errorf("RISK_GATE_MODE must be one of: enforce, shadow, off")
	}

	return nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	// Try paths in order of priority
	paths := []string{
		".env", // Current directory
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
