//go:build wireinject

package app

import "github.com/google/wire"

// InfrastructureSet holds the external connections and their config slices.
var InfrastructureSet = wire.NewSet(
	ProvideValkeyConfig,
	ProvidePostgresConfig,
	ProvideCacheResources,
	ProvideCacheService,
	ProvideDatabaseResources,
	ProvidePostgresService,
	ProvideGormDB,
)

// QuotaSet holds budget governance: ledger, governor, audit, analytics.
var QuotaSet = wire.NewSet(
	ProvideQuotaConfig,
	ProvideQuotaRepository,
	ProvideLedger,
	ProvideGovernor,
	ProvideAnalytics,
)

// SyncSet holds the catalog, the video source, and the sync machinery.
var SyncSet = wire.NewSet(
	ProvideSyncConfig,
	ProvideCatalogRepository,
	ProvideJobRepository,
	ProvideVideoSource,
	ProvideOrchestrator,
	ProvideScheduler,
)

// ServerSet holds the HTTP and WebSocket surface.
var ServerSet = wire.NewSet(
	ProvideSystemCollector,
	ProvideQuotaStream,
	ProvideAPIHandler,
	ProvideAPIRouter,
	ProvideAPIServer,
)

// RuntimeSet assembles the whole daemon.
var RuntimeSet = wire.NewSet(
	InfrastructureSet,
	QuotaSet,
	SyncSet,
	ServerSet,
	wire.Struct(
		new(Runtime),
		"Config",
		"Logger",
		"Scheduler",
		"Stream",
		"Server",
	),
)
