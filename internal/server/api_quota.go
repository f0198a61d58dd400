package server

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kapu/bandhub-sync-go/internal/domain"
	"github.com/kapu/bandhub-sync-go/internal/service/quota"
)

// GetQuotaStatus: the current day's budget snapshot.
func (h *APIHandler) GetQuotaStatus(c *gin.Context) {
	status, err := h.governor.Status(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to read quota status", slog.Any("error", err))
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "ledger_unavailable",
			"message": "quota ledger unreachable",
		})
		return
	}
	c.JSON(http.StatusOK, status)
}

// GetQuotaAnalytics: today's snapshot plus the 7- and 30-day usage reports,
// with an efficiency breakdown and a forecast.
func (h *APIHandler) GetQuotaAnalytics(c *gin.Context) {
	overview, err := h.analytics.Overview(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to build analytics overview", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "report_failed",
			"message": "could not build the analytics overview",
		})
		return
	}
	c.JSON(http.StatusOK, overview)
}

type estimateRequest struct {
	VideoCount   int  `json:"video_count" binding:"min=0"`
	UseSearch    bool `json:"use_search"`
	SearchCount  int  `json:"search_count" binding:"min=0"`
	HasChannelID bool `json:"has_channel_id"`
}

// EstimateQuota: projects the unit cost of a hypothetical fetch.
func (h *APIHandler) EstimateQuota(c *gin.Context) {
	var req estimateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": err.Error(),
		})
		return
	}

	estimate := quota.Estimate(quota.EstimateRequest{
		VideoCount:   req.VideoCount,
		UseSearch:    req.UseSearch,
		SearchCount:  req.SearchCount,
		HasChannelID: req.HasChannelID,
	})
	c.JSON(http.StatusOK, estimate)
}

type approveRequest struct {
	JobID         string `json:"job_id"`
	BandID        int64  `json:"band_id"`
	Priority      string `json:"priority" binding:"required"`
	EstimatedCost int64  `json:"estimated_cost" binding:"required,min=1"`
	ForceApprove  bool   `json:"force_approve"`
}

// ApproveQuota: runs an admission check without spending any quota. The
// returned plan says whether a job with this cost and priority would be
// allowed to start right now.
func (h *APIHandler) ApproveQuota(c *gin.Context) {
	var req approveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": err.Error(),
		})
		return
	}

	priority := domain.Priority(req.Priority)
	if !priority.IsValid() {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_priority",
			"message": "priority must be one of critical, high, medium, low",
		})
		return
	}

	plan, err := h.governor.ApproveSyncJob(c.Request.Context(), quota.ApprovalRequest{
		JobID:         req.JobID,
		BandID:        req.BandID,
		Priority:      priority,
		EstimatedCost: req.EstimatedCost,
		ForceApprove:  req.ForceApprove,
	})
	if err != nil {
		h.logger.Error("Failed to run approval check", slog.Any("error", err))
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "ledger_unavailable",
			"message": "quota ledger unreachable",
		})
		return
	}
	c.JSON(http.StatusOK, plan)
}

// GetUsageRecords: the recent audit trail of tracked API calls.
func (h *APIHandler) GetUsageRecords(c *gin.Context) {
	limit := parseLimit(c, 100, 500)
	since := time.Now().Add(-24 * time.Hour)
	if raw := c.Query("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_since",
				"message": "since must be RFC 3339",
			})
			return
		}
		since = parsed
	}

	records, err := h.quotaRepo.ListUsageRecords(c.Request.Context(), since, limit)
	if err != nil {
		h.logger.Error("Failed to list usage records", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "query_failed",
			"message": "could not list usage records",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": records, "count": len(records)})
}

// GetAlerts: recent threshold alerts, optionally only unacknowledged ones.
func (h *APIHandler) GetAlerts(c *gin.Context) {
	onlyUnacknowledged := c.Query("unacknowledged") == "true"
	limit := parseLimit(c, 50, 200)

	alerts, err := h.quotaRepo.ListAlerts(c.Request.Context(), onlyUnacknowledged, limit)
	if err != nil {
		h.logger.Error("Failed to list alerts", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "query_failed",
			"message": "could not list alerts",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"alerts": alerts, "count": len(alerts)})
}

type acknowledgeRequest struct {
	AcknowledgedBy string `json:"acknowledged_by" binding:"required"`
}

// AcknowledgeAlert: marks one alert as acknowledged.
func (h *APIHandler) AcknowledgeAlert(c *gin.Context) {
	alertID := c.Param("id")

	var req acknowledgeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": err.Error(),
		})
		return
	}

	acknowledged, err := h.quotaRepo.AcknowledgeAlert(c.Request.Context(), alertID, req.AcknowledgedBy)
	if err != nil {
		h.logger.Error("Failed to acknowledge alert", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "update_failed",
			"message": "could not acknowledge the alert",
		})
		return
	}
	if !acknowledged {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "not_found",
			"message": "alert not found or already acknowledged",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ActivateEmergency: raises the quota kill switch.
func (h *APIHandler) ActivateEmergency(c *gin.Context) {
	if err := h.governor.ActivateEmergency(c.Request.Context()); err != nil {
		h.logger.Error("Failed to activate emergency mode", slog.Any("error", err))
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "ledger_unavailable",
			"message": "could not activate emergency mode",
		})
		return
	}
	h.logger.Warn("Emergency mode activated via API", slog.String("ip", c.ClientIP()))
	c.JSON(http.StatusOK, gin.H{"status": "ok", "emergency_mode": true})
}

// DeactivateEmergency: clears the quota kill switch.
func (h *APIHandler) DeactivateEmergency(c *gin.Context) {
	if err := h.governor.DeactivateEmergency(c.Request.Context()); err != nil {
		h.logger.Error("Failed to deactivate emergency mode", slog.Any("error", err))
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "ledger_unavailable",
			"message": "could not deactivate emergency mode",
		})
		return
	}
	h.logger.Info("Emergency mode deactivated via API", slog.String("ip", c.ClientIP()))
	c.JSON(http.StatusOK, gin.H{"status": "ok", "emergency_mode": false})
}

// parseLimit: reads the "limit" query param with a default and a cap.
func parseLimit(c *gin.Context, def, max int) int {
	raw := c.Query("limit")
	if raw == "" {
		return def
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed < 1 {
		return def
	}
	if parsed > max {
		return max
	}
	return parsed
}
