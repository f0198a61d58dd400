package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/kapu/bandhub-sync-go/internal/config"
	"github.com/kapu/bandhub-sync-go/internal/platform/bootstrap"
	"github.com/kapu/bandhub-sync-go/internal/server"
	"github.com/kapu/bandhub-sync-go/internal/service/cache"
	"github.com/kapu/bandhub-sync-go/internal/service/catalog"
	"github.com/kapu/bandhub-sync-go/internal/service/database"
	"github.com/kapu/bandhub-sync-go/internal/service/quota"
	"github.com/kapu/bandhub-sync-go/internal/service/sync"
	"github.com/kapu/bandhub-sync-go/internal/service/system"
	"github.com/kapu/bandhub-sync-go/internal/service/videosource"
)

// ProvideValkeyConfig: extracts the Valkey section from the config.
func ProvideValkeyConfig(cfg *config.Config) config.ValkeyConfig {
	return cfg.Valkey
}

// ProvidePostgresConfig: extracts the PostgreSQL section from the config.
func ProvidePostgresConfig(cfg *config.Config) config.PostgresConfig {
	return cfg.Postgres
}

// ProvideQuotaConfig: extracts the quota section from the config.
func ProvideQuotaConfig(cfg *config.Config) config.QuotaConfig {
	return cfg.Quota
}

// ProvideSyncConfig: extracts the sync section from the config.
func ProvideSyncConfig(cfg *config.Config) config.SyncConfig {
	return cfg.Sync
}

// ProvideCacheResources: creates the Valkey cache resources with their cleanup.
func ProvideCacheResources(cfg config.ValkeyConfig, logger *slog.Logger) (*bootstrap.CacheResources, func(), error) {
	resources, err := bootstrap.NewCacheResources(cfg, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create cache resources: %w", err)
	}
	return resources, resources.Close, nil
}

// ProvideCacheService: extracts the service from the cache resources.
func ProvideCacheService(resources *bootstrap.CacheResources) *cache.Service {
	return resources.Service
}

// ProvideDatabaseResources: creates the database resources with their cleanup.
func ProvideDatabaseResources(cfg config.PostgresConfig, logger *slog.Logger) (*bootstrap.DatabaseResources, func(), error) {
	resources, err := bootstrap.NewDatabaseResources(cfg, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create database resources: %w", err)
	}
	return resources, resources.Close, nil
}

// ProvidePostgresService: extracts the service from the database resources.
func ProvidePostgresService(resources *bootstrap.DatabaseResources) *database.PostgresService {
	return resources.Service
}

// ProvideGormDB: the ORM handle shared by the catalog and job repositories.
func ProvideGormDB(postgres *database.PostgresService) *gorm.DB {
	return postgres.GetGormDB()
}

// ProvideQuotaRepository: creates the audit-trail repository and its schema.
func ProvideQuotaRepository(ctx context.Context, postgres *database.PostgresService, logger *slog.Logger) (*quota.Repository, error) {
	repo, err := quota.NewRepository(ctx, postgres, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize quota repository: %w", err)
	}
	return repo, nil
}

// ProvideLedger: creates the Valkey-backed usage ledger.
func ProvideLedger(cacheSvc *cache.Service, logger *slog.Logger) *quota.Ledger {
	return quota.NewLedger(cacheSvc, logger)
}

// ProvideGovernor: creates the quota governor. The cleanup drains pending
// audit writes before the stores go away.
func ProvideGovernor(ledger *quota.Ledger, repo *quota.Repository, cfg config.QuotaConfig, logger *slog.Logger) (*quota.Governor, func()) {
	governor := quota.NewGovernor(ledger, repo, cfg, logger)
	return governor, governor.Close
}

// ProvideAnalytics: creates the usage analytics service.
func ProvideAnalytics(repo *quota.Repository, governor *quota.Governor, cfg config.QuotaConfig, logger *slog.Logger) *quota.Analytics {
	return quota.NewAnalytics(repo, governor, cfg.DailyLimit, logger)
}

// ProvideCatalogRepository: creates the band catalog and runs its migrations.
func ProvideCatalogRepository(ctx context.Context, db *gorm.DB, logger *slog.Logger) (*catalog.Repository, error) {
	repo := catalog.NewRepository(db, logger)
	if err := repo.AutoMigrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to migrate catalog: %w", err)
	}
	return repo, nil
}

// ProvideJobRepository: creates the sync job store and runs its migrations.
func ProvideJobRepository(ctx context.Context, db *gorm.DB, logger *slog.Logger) (*sync.JobRepository, error) {
	repo := sync.NewJobRepository(db, logger)
	if err := repo.AutoMigrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to migrate sync jobs: %w", err)
	}
	return repo, nil
}

// ProvideVideoSource: creates the governed YouTube source.
func ProvideVideoSource(ctx context.Context, cfg *config.Config, governor *quota.Governor, logger *slog.Logger) (videosource.Source, error) {
	source, err := videosource.NewYouTubeSource(ctx, cfg.YouTube.APIKey, governor, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize video source: %w", err)
	}
	return source, nil
}

// ProvideOrchestrator: creates the per-band sync orchestrator.
func ProvideOrchestrator(source videosource.Source, catalogRepo *catalog.Repository, jobs *sync.JobRepository, governor *quota.Governor, logger *slog.Logger) *sync.Orchestrator {
	return sync.NewOrchestrator(source, catalogRepo, jobs, governor, logger)
}

// ProvideScheduler: creates the periodic sync scheduler.
func ProvideScheduler(orchestrator *sync.Orchestrator, catalogRepo *catalog.Repository, governor *quota.Governor, cfg config.SyncConfig, logger *slog.Logger) *sync.Scheduler {
	return sync.NewScheduler(orchestrator, catalogRepo, governor, cfg, logger)
}

// ProvideSystemCollector: creates the host metrics collector.
func ProvideSystemCollector() *system.Collector {
	return system.NewCollector()
}

// ProvideQuotaStream: creates the WebSocket quota broadcast hub.
func ProvideQuotaStream(governor *quota.Governor, logger *slog.Logger) *server.QuotaStream {
	return server.NewQuotaStream(governor, logger)
}

// ProvideAPIHandler: binds the service graph to the HTTP handler.
func ProvideAPIHandler(
	governor *quota.Governor,
	analytics *quota.Analytics,
	quotaRepo *quota.Repository,
	orchestrator *sync.Orchestrator,
	scheduler *sync.Scheduler,
	jobs *sync.JobRepository,
	catalogRepo *catalog.Repository,
	systemStats *system.Collector,
	stream *server.QuotaStream,
	logger *slog.Logger,
) *server.APIHandler {
	return server.NewAPIHandler(
		governor,
		analytics,
		quotaRepo,
		orchestrator,
		scheduler,
		jobs,
		catalogRepo,
		systemStats,
		stream,
		logger,
	)
}

// ProvideAPIRouter: builds the gin engine with all routes and middleware.
func ProvideAPIRouter(ctx context.Context, cfg *config.Config, logger *slog.Logger, handler *server.APIHandler) *gin.Engine {
	return newAPIRouter(ctx, cfg, logger, handler)
}

// ProvideAPIServer: wraps the router in the h2c-enabled HTTP server.
func ProvideAPIServer(cfg *config.Config, router *gin.Engine) *http.Server {
	return newAPIServer(cfg, router)
}
