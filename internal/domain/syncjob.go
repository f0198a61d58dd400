package domain

import "time"

// JobType: full re-ingestion vs incremental catch-up.
type JobType string

// JobType constants.
const (
	JobTypeFull        JobType = "full"
	JobTypeIncremental JobType = "incremental"
)

// JobStatus: lifecycle state of a sync job. Completed and failed are terminal.
type JobStatus string

// JobStatus constants.
const (
	JobStatusPending    JobStatus = "pending"
	JobStatusInProgress JobStatus = "in_progress"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// IsTerminal reports whether the status allows no further transitions.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// SyncJob: one ingestion run for one band.
type SyncJob struct {
	ID       string    `json:"id"`
	BandID   int64     `json:"band_id"`
	BandName string    `json:"band_name,omitempty"`
	Type     JobType   `json:"type"`
	Status   JobStatus `json:"status"`

	VideosFound   int      `json:"videos_found"`
	VideosAdded   int      `json:"videos_added"`
	VideosUpdated int      `json:"videos_updated"`
	Errors        []string `json:"errors,omitempty"`

	EstimatedCost int `json:"estimated_cost"`
	ActualCost    int `json:"actual_cost"`

	Priority       Priority `json:"priority"`
	Approved       bool     `json:"approved"`
	ApprovalReason string   `json:"approval_reason,omitempty"`

	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// SyncResult: outcome of one orchestrated sync run, returned to the caller.
type SyncResult struct {
	JobID         string    `json:"job_id"`
	BandID        int64     `json:"band_id"`
	Status        JobStatus `json:"status"`
	VideosFound   int       `json:"videos_found"`
	VideosAdded   int       `json:"videos_added"`
	VideosUpdated int       `json:"videos_updated"`
	Errors        []string  `json:"errors,omitempty"`
	EstimatedCost int       `json:"estimated_cost"`
	ActualCost    int       `json:"actual_cost"`
	Approved      bool      `json:"approved"`
	Reason        string    `json:"reason,omitempty"`
	Duration      string    `json:"duration,omitempty"`
}
