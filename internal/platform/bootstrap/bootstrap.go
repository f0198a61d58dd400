package bootstrap

import (
	"fmt"
	"log/slog"

	"github.com/kapu/bandhub-sync-go/internal/config"
	"github.com/kapu/bandhub-sync-go/internal/service/cache"
	"github.com/kapu/bandhub-sync-go/internal/service/database"
	"github.com/kapu/bandhub-sync-go/internal/util"
)

// CacheResources: an initialized cache service bundled with its Close function.
type CacheResources struct {
	Service *cache.Service
	Close   func()
}

// DatabaseResources: an initialized database service bundled with its Close function.
type DatabaseResources struct {
	Service *database.PostgresService
	Close   func()
}

// NewLogger: creates the slog logger from config.
func NewLogger(cfg *config.Config) (*slog.Logger, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	logger, err := util.EnableFileLoggingWithLevel(util.LogConfig{
		Dir:        cfg.Logging.Dir,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
	}, "syncd.log", cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	return logger, nil
}

// NewCacheResources: initializes the Valkey cache service that backs the
// quota ledger.
func NewCacheResources(cfg config.ValkeyConfig, logger *slog.Logger) (*CacheResources, error) {
	cacheSvc, err := cache.NewCacheService(cache.Config{
		Host:     cfg.Host,
		Port:     cfg.Port,
		Password: cfg.Password,
		DB:       cfg.DB,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache service: %w", err)
	}

	return &CacheResources{
		Service: cacheSvc,
		Close: func() {
			_ = cacheSvc.Close()
		},
	}, nil
}

// NewDatabaseResources: initializes the PostgreSQL service that holds the
// audit trail and the catalog.
func NewDatabaseResources(cfg config.PostgresConfig, logger *slog.Logger) (*DatabaseResources, error) {
	dbSvc, err := database.NewPostgresService(database.PostgresConfig{
		Host:     cfg.Host,
		Port:     cfg.Port,
		User:     cfg.User,
		Password: cfg.Password,
		Database: cfg.Database,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres service: %w", err)
	}

	return &DatabaseResources{
		Service: dbSvc,
		Close: func() {
			_ = dbSvc.Close()
		},
	}, nil
}
