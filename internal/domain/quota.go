package domain

import "time"

// OperationKind: kind of paid YouTube Data API operation tracked against the quota.
type OperationKind string

// OperationKind constants.
const (
	// OpSearch is the expensive one: 100 units per call.
	OpSearch            OperationKind = "search"
	OpVideosList        OperationKind = "videos.list"
	OpChannelsList      OperationKind = "channels.list"
	OpPlaylistItemsList OperationKind = "playlistItems.list"
)

func (o OperationKind) String() string {
	return string(o)
}

// IsValid reports whether the operation kind is one the cost table knows.
func (o OperationKind) IsValid() bool {
	switch o {
	case OpSearch, OpVideosList, OpChannelsList, OpPlaylistItemsList:
		return true
	default:
		return false
	}
}

// Priority: priority class of a sync job. Each class owns a fixed share of the
// remaining daily budget; critical may borrow across the whole remainder.
type Priority string

// Priority constants, highest first.
const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

func (p Priority) String() string {
	return string(p)
}

// IsValid reports whether the priority is a known class.
func (p Priority) IsValid() bool {
	switch p {
	case PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow:
		return true
	default:
		return false
	}
}

// AlertLevel: usage severity derived from the percentage of the daily budget spent.
type AlertLevel string

// AlertLevel constants, ordered by severity.
const (
	AlertLevelNormal    AlertLevel = "normal"    // < 50%
	AlertLevelWarning   AlertLevel = "warning"   // >= 50%
	AlertLevelCritical  AlertLevel = "critical"  // >= 75%
	AlertLevelDepleted  AlertLevel = "depleted"  // >= 90%
	AlertLevelEmergency AlertLevel = "emergency" // >= 95%, also flips emergency mode
)

func (l AlertLevel) String() string {
	return string(l)
}

// Rank: numeric severity for ordering comparisons (normal=0 .. emergency=4).
func (l AlertLevel) Rank() int {
	switch l {
	case AlertLevelWarning:
		return 1
	case AlertLevelCritical:
		return 2
	case AlertLevelDepleted:
		return 3
	case AlertLevelEmergency:
		return 4
	default:
		return 0
	}
}

// UsageRecord: one tracked external call attempt. Append-only; written for every
// call whether it succeeded, failed, or was served from cache.
type UsageRecord struct {
	ID           string         `json:"id"`
	Operation    OperationKind  `json:"operation"`
	Cost         int64          `json:"cost"` // 0 for cache hits and failed calls
	Timestamp    time.Time      `json:"timestamp"`
	BandID       *int64         `json:"band_id,omitempty"`
	BandName     string         `json:"band_name,omitempty"`
	JobID        string         `json:"job_id,omitempty"`
	Success      bool           `json:"success"`
	CacheHit     bool           `json:"cache_hit"`
	ErrorMessage string         `json:"error_message,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// DailySummary: archived total for one quota day, written once at reset time.
type DailySummary struct {
	Date           string  `json:"date"` // date key in the API's operating timezone, e.g. "2025-01-01"
	TotalUsage     int64   `json:"total_usage"`
	Limit          int64   `json:"limit"`
	PercentageUsed float64 `json:"percentage_used"`
}

// Alert: persisted record of a threshold crossing or emergency activation.
type Alert struct {
	ID             string     `json:"id"`
	Level          AlertLevel `json:"level"`
	Message        string     `json:"message"`
	UsageAtTime    int64      `json:"usage_at_time"`
	Timestamp      time.Time  `json:"timestamp"`
	Acknowledged   bool       `json:"acknowledged"`
	AcknowledgedBy string     `json:"acknowledged_by,omitempty"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"`
}

// AllocationPlan: decision record for one sync-approval request. Ephemeral; the
// orchestrator consumes it immediately.
type AllocationPlan struct {
	JobID          string    `json:"job_id"`
	BandID         int64     `json:"band_id"`
	Priority       Priority  `json:"priority"`
	EstimatedCost  int64     `json:"estimated_cost"`
	AllocatedQuota int64     `json:"allocated_quota"` // remaining * priority share
	Approved       bool      `json:"approved"`
	Reason         string    `json:"reason,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// QuotaStatus: point-in-time snapshot of the day's budget.
type QuotaStatus struct {
	CurrentUsage    int64      `json:"current_usage"`
	Limit           int64      `json:"limit"`
	Remaining       int64      `json:"remaining"`
	PercentageUsed  float64    `json:"percentage_used"`
	AlertLevel      AlertLevel `json:"alert_level"`
	ResetTime       time.Time  `json:"reset_time"` // next Pacific midnight
	IsEmergencyMode bool       `json:"is_emergency_mode"`
	LastUpdated     time.Time  `json:"last_updated"`
}
