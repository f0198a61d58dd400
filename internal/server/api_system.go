package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/kapu/bandhub-sync-go/internal/domain"
)

// GetSystemStats: process and host resource usage.
func (h *APIHandler) GetSystemStats(c *gin.Context) {
	stats, err := h.systemStats.CurrentStats(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to collect system stats", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "stats_failed",
			"message": "could not collect system stats",
		})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// GetOverview: a one-call dashboard summary combining quota, jobs, and uptime.
func (h *APIHandler) GetOverview(c *gin.Context) {
	var (
		status       *domain.QuotaStatus
		running      int64
		backlogCount int
	)

	// The ledger read is the only hard dependency; job and backlog counts
	// degrade to -1 when their stores are unavailable.
	group, ctx := errgroup.WithContext(c.Request.Context())
	group.Go(func() error {
		var err error
		status, err = h.governor.Status(ctx)
		return err
	})
	group.Go(func() error {
		count, err := h.jobs.CountRunning(ctx)
		if err != nil {
			h.logger.Error("Failed to count running jobs", slog.Any("error", err))
			count = -1
		}
		running = count
		return nil
	})
	group.Go(func() error {
		backlog, err := h.catalog.ListNeverFullSynced(ctx)
		if err != nil {
			backlogCount = -1
			return nil
		}
		backlogCount = len(backlog)
		return nil
	})
	if err := group.Wait(); err != nil {
		h.logger.Error("Failed to read quota status", slog.Any("error", err))
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "ledger_unavailable",
			"message": "quota ledger unreachable",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"quota":        status,
		"running_jobs": running,
		"backlog":      backlogCount,
		"uptime":       time.Since(h.startTime).Round(time.Second).String(),
	})
}
