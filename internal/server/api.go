package server

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kapu/bandhub-sync-go/internal/service/catalog"
	"github.com/kapu/bandhub-sync-go/internal/service/quota"
	"github.com/kapu/bandhub-sync-go/internal/service/sync"
	"github.com/kapu/bandhub-sync-go/internal/service/system"
)

// APIHandler: serves the quota and sync operator API.
// Handler methods are split by domain:
//   - api_quota.go: quota status, analytics, estimates, alerts, emergency mode
//   - api_sync.go: sync triggers, job history, backlog
//   - api_system.go: process and host resource stats
//   - stream.go: WebSocket quota stream
type APIHandler struct {
	governor     *quota.Governor
	analytics    *quota.Analytics
	quotaRepo    *quota.Repository
	orchestrator *sync.Orchestrator
	scheduler    *sync.Scheduler
	jobs         *sync.JobRepository
	catalog      *catalog.Repository
	systemStats  *system.Collector
	stream       *QuotaStream
	logger       *slog.Logger
	startTime    time.Time
}

// NewAPIHandler: creates the API handler.
func NewAPIHandler(
	governor *quota.Governor,
	analytics *quota.Analytics,
	quotaRepo *quota.Repository,
	orchestrator *sync.Orchestrator,
	scheduler *sync.Scheduler,
	jobs *sync.JobRepository,
	catalogRepo *catalog.Repository,
	systemStats *system.Collector,
	stream *QuotaStream,
	logger *slog.Logger,
) *APIHandler {
	return &APIHandler{
		governor:     governor,
		analytics:    analytics,
		quotaRepo:    quotaRepo,
		orchestrator: orchestrator,
		scheduler:    scheduler,
		jobs:         jobs,
		catalog:      catalogRepo,
		systemStats:  systemStats,
		stream:       stream,
		logger:       logger,
		startTime:    time.Now(),
	}
}

// StreamQuota: upgrades the request onto the live quota WebSocket.
func (h *APIHandler) StreamQuota(c *gin.Context) {
	h.stream.HandleWS(c)
}
