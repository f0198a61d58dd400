package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/kapu/bandhub-sync-go/internal/constants"
	"github.com/kapu/bandhub-sync-go/internal/util"
)

// Config: everything the sync service needs to run.
type Config struct {
	Server   ServerConfig
	YouTube  YouTubeConfig
	Quota    QuotaConfig
	Sync     SyncConfig
	Valkey   ValkeyConfig
	Postgres PostgresConfig
	Logging  LoggingConfig
	Version  string
}

// ServerConfig: HTTP API server settings.
type ServerConfig struct {
	Port       int
	APIKey     string // shared key for mutating endpoints, empty disables auth
	EnableH2C  bool
	CORSOrigin []string
}

// YouTubeConfig: YouTube Data API settings.
type YouTubeConfig struct {
	APIKey string
}

// QuotaConfig: daily quota budget and alerting settings.
type QuotaConfig struct {
	DailyLimit         int64
	WarningThreshold   float64
	CriticalThreshold  float64
	DepletedThreshold  float64
	EmergencyThreshold float64
	EmergencyTTL       time.Duration
}

// SyncConfig: scheduler cadence and orchestration settings.
type SyncConfig struct {
	Enabled          bool
	Interval         time.Duration
	BudgetFloor      int64
	MaxJobsPerCycle  int
	FullSyncReminder time.Duration
}

// ValkeyConfig: connection settings for the quota ledger and flags.
type ValkeyConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// PostgresConfig: main database connection settings.
type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
}

// LoggingConfig: log level, directory, and rotation policy.
type LoggingConfig struct {
	Level      string
	Dir        string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// Load: builds a Config from the .env file and environment, applying defaults.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:       getEnvInt("SERVER_PORT", 30101),
			APIKey:     getEnv("API_KEY", ""),
			EnableH2C:  getEnvBool("ENABLE_H2C", false),
			CORSOrigin: parseCommaSeparated(getEnv("CORS_ORIGINS", "")),
		},
		YouTube: YouTubeConfig{
			APIKey: getEnv("YOUTUBE_API_KEY", ""),
		},
		Quota: QuotaConfig{
			DailyLimit:         int64(getEnvInt("QUOTA_DAILY_LIMIT", int(constants.QuotaDefaults.DailyLimit))),
			WarningThreshold:   getEnvFloat("QUOTA_WARNING_THRESHOLD", constants.QuotaDefaults.WarningThreshold),
			CriticalThreshold:  getEnvFloat("QUOTA_CRITICAL_THRESHOLD", constants.QuotaDefaults.CriticalThreshold),
			DepletedThreshold:  getEnvFloat("QUOTA_DEPLETED_THRESHOLD", constants.QuotaDefaults.DepletedThreshold),
			EmergencyThreshold: getEnvFloat("QUOTA_EMERGENCY_THRESHOLD", constants.QuotaDefaults.EmergencyThreshold),
			EmergencyTTL:       getEnvDuration("QUOTA_EMERGENCY_TTL", constants.QuotaDefaults.EmergencyTTL),
		},
		Sync: SyncConfig{
			Enabled:          getEnvBool("SYNC_ENABLED", true),
			Interval:         getEnvDuration("SYNC_INTERVAL", constants.SyncDefaults.Interval),
			BudgetFloor:      int64(getEnvInt("SYNC_BUDGET_FLOOR", int(constants.SyncDefaults.BudgetFloor))),
			MaxJobsPerCycle:  getEnvInt("SYNC_MAX_JOBS_PER_CYCLE", constants.SyncDefaults.MaxJobsPerCycle),
			FullSyncReminder: getEnvDuration("SYNC_FULL_SYNC_REMINDER", constants.SyncDefaults.FullSyncReminder),
		},
		Valkey: ValkeyConfig{
			Host:     getEnv("CACHE_HOST", "localhost"),
			Port:     getEnvInt("CACHE_PORT", 6379),
			Password: getEnv("CACHE_PASSWORD", ""),
			DB:       getEnvInt("CACHE_DB", 0),
		},
		Postgres: PostgresConfig{
			Host:     getEnv("POSTGRES_HOST", "localhost"),
			Port:     getEnvInt("POSTGRES_PORT", 5432),
			User:     getEnv("POSTGRES_USER", "bandhub"),
			Password: getEnv("POSTGRES_PASSWORD", ""),
			Database: getEnv("POSTGRES_DB", "bandhub"),
		},
		Logging: LoggingConfig{
			Level:      getEnv("LOG_LEVEL", "info"),
			Dir:        getEnv("LOG_DIR", "logs"),
			MaxSizeMB:  getEnvInt("LOG_MAX_SIZE_MB", 100),
			MaxBackups: getEnvInt("LOG_MAX_BACKUPS", 5),
			MaxAgeDays: getEnvInt("LOG_MAX_AGE_DAYS", 30),
			Compress:   getEnvBool("LOG_COMPRESS", true),
		},
		Version: util.TrimSpace(getEnv("APP_VERSION", "1.0.0")),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate: checks required settings and threshold ordering.
func (c *Config) Validate() error {
	if c.Server.Port == 0 {
		return fmt.Errorf("SERVER_PORT is required")
	}
	if c.YouTube.APIKey == "" {
		return fmt.Errorf("YOUTUBE_API_KEY is required")
	}
	if c.Quota.DailyLimit <= 0 {
		return fmt.Errorf("QUOTA_DAILY_LIMIT must be positive")
	}
	thresholds := []float64{
		c.Quota.WarningThreshold,
		c.Quota.CriticalThreshold,
		c.Quota.DepletedThreshold,
		c.Quota.EmergencyThreshold,
	}
	for i, t := range thresholds {
		if t <= 0 || t > 1 {
			return fmt.Errorf("quota thresholds must be in (0, 1]")
		}
		if i > 0 && t <= thresholds[i-1] {
			return fmt.Errorf("quota thresholds must be strictly increasing")
		}
	}
	if c.Sync.Interval <= 0 {
		return fmt.Errorf("SYNC_INTERVAL must be positive")
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
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func parseCommaSeparated(value string) []string {
	if value == "" {
		return []string{}
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := util.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
