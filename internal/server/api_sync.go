package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kapu/bandhub-sync-go/internal/domain"
	"github.com/kapu/bandhub-sync-go/internal/service/sync"
	errs "github.com/kapu/bandhub-sync-go/pkg/errors"
)

type triggerSyncRequest struct {
	Type            string     `json:"type"`                       // "full" or "incremental", empty infers
	Priority        string     `json:"priority"`                   // empty infers from the band
	PublishedAfter  *time.Time `json:"published_after,omitempty"`  // RFC 3339, omit for no lower bound
	PublishedBefore *time.Time `json:"published_before,omitempty"` // RFC 3339, omit for no upper bound
	MaxItems        int        `json:"max_items"`                  // 0 means no cap
	ForceApprove    bool       `json:"force_approve"`
}

// TriggerBandSync: runs one sync job for one band, synchronously.
func (h *APIHandler) TriggerBandSync(c *gin.Context) {
	bandID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_band_id",
			"message": "band id must be an integer",
		})
		return
	}

	var req triggerSyncRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_request",
				"message": err.Error(),
			})
			return
		}
	}

	syncReq := sync.SyncRequest{
		BandID:       bandID,
		Type:         domain.JobType(req.Type),
		Priority:     domain.Priority(req.Priority),
		MaxItems:     req.MaxItems,
		ForceApprove: req.ForceApprove,
	}
	if req.PublishedAfter != nil {
		syncReq.PublishedAfter = *req.PublishedAfter
	}
	if req.PublishedBefore != nil {
		syncReq.PublishedBefore = *req.PublishedBefore
	}

	result, err := h.orchestrator.SyncBand(c.Request.Context(), syncReq)
	if err != nil {
		var validationErr *errs.ValidationError
		if errors.As(err, &validationErr) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "invalid_band",
				"message": validationErr.Error(),
			})
			return
		}
		h.logger.Error("Band sync failed", slog.Int64("band_id", bandID), slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "sync_failed",
			"message": "sync run could not be completed",
		})
		return
	}

	status := http.StatusOK
	if !result.Approved {
		// The run was refused budget; surface that distinctly.
		status = http.StatusTooManyRequests
	}
	c.JSON(status, result)
}

// TriggerSyncCycle: starts a full scheduler cycle off-schedule. The cycle
// runs in the background; overlap with a scheduled cycle is prevented by the
// scheduler itself.
func (h *APIHandler) TriggerSyncCycle(c *gin.Context) {
	go h.scheduler.RunCycle(context.WithoutCancel(c.Request.Context()))
	c.JSON(http.StatusAccepted, gin.H{"status": "cycle_started"})
}

// GetSyncJob: one job by its ID.
func (h *APIHandler) GetSyncJob(c *gin.Context) {
	job, err := h.jobs.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.logger.Error("Failed to fetch job", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "query_failed",
			"message": "could not fetch the job",
		})
		return
	}
	if job == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "not_found",
			"message": "job not found",
		})
		return
	}
	c.JSON(http.StatusOK, job)
}

// ListSyncJobs: recent jobs, optionally filtered by status.
func (h *APIHandler) ListSyncJobs(c *gin.Context) {
	status := domain.JobStatus(c.Query("status"))
	limit := parseLimit(c, 50, 200)

	jobs, err := h.jobs.List(c.Request.Context(), status, limit)
	if err != nil {
		h.logger.Error("Failed to list jobs", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "query_failed",
			"message": "could not list jobs",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": jobs, "count": len(jobs)})
}

// ListBandSyncJobs: a band's job history.
func (h *APIHandler) ListBandSyncJobs(c *gin.Context) {
	bandID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_band_id",
			"message": "band id must be an integer",
		})
		return
	}

	jobs, err := h.jobs.ListForBand(c.Request.Context(), bandID, parseLimit(c, 20, 100))
	if err != nil {
		h.logger.Error("Failed to list band jobs", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "query_failed",
			"message": "could not list band jobs",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": jobs, "count": len(jobs)})
}

// GetSyncBacklog: bands still waiting for their first full sync.
func (h *APIHandler) GetSyncBacklog(c *gin.Context) {
	bands, err := h.catalog.ListNeverFullSynced(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to list backlog", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "query_failed",
			"message": "could not list the sync backlog",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"bands": bands, "count": len(bands)})
}
