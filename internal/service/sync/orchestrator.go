package sync

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kapu/bandhub-sync-go/internal/constants"
	"github.com/kapu/bandhub-sync-go/internal/domain"
	"github.com/kapu/bandhub-sync-go/internal/service/catalog"
	"github.com/kapu/bandhub-sync-go/internal/service/quota"
	"github.com/kapu/bandhub-sync-go/internal/service/videosource"
	"github.com/kapu/bandhub-sync-go/internal/util"
	errs "github.com/kapu/bandhub-sync-go/pkg/errors"
)

// Orchestrator: drives one band's sync end to end.
//
// Every run follows the same shape: load the band, pick the job type and
// priority, ask the governor for budget, then fetch and upsert under the
// granted allocation. A rejection is a normal outcome, recorded as a failed
// job, never an error.
type Orchestrator struct {
	source   videosource.Source
	catalog  *catalog.Repository
	jobs     *JobRepository
	governor *quota.Governor
	logger   *slog.Logger
}

// NewOrchestrator: creates the sync orchestrator.
func NewOrchestrator(
	source videosource.Source,
	catalogRepo *catalog.Repository,
	jobs *JobRepository,
	governor *quota.Governor,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		source:   source,
		catalog:  catalogRepo,
		jobs:     jobs,
		governor: governor,
		logger:   logger,
	}
}

// SyncRequest: parameters of one sync run. Zero values mean "infer" or
// "unbounded".
type SyncRequest struct {
	BandID          int64
	Type            domain.JobType  // empty: full when never fully synced, else incremental
	Priority        domain.Priority // empty: inferred from the band
	PublishedAfter  time.Time       // zero: no lower publication bound
	PublishedBefore time.Time       // zero: no upper publication bound
	MaxItems        int             // 0: no cap on collected videos
	ForceApprove    bool
}

// SyncBand: runs one sync job for one band and returns its outcome.
func (o *Orchestrator) SyncBand(ctx context.Context, req SyncRequest) (*domain.SyncResult, error) {
	band, err := o.catalog.GetBand(ctx, req.BandID)
	if err != nil {
		return nil, err
	}
	if band == nil {
		return nil, errs.NewValidationError(fmt.Sprintf("band %d not found", req.BandID), "band_id")
	}
	if !band.Active {
		return nil, errs.NewValidationError(fmt.Sprintf("band %d is inactive", req.BandID), "band_id")
	}

	jobType := req.Type
	if jobType == "" {
		jobType = domain.JobTypeIncremental
		if band.LastFullSyncAt == nil {
			jobType = domain.JobTypeFull
		}
	}

	priority := req.Priority
	if priority == "" {
		priority = inferPriority(band, jobType)
	}

	estimate := o.estimate(band, jobType)

	job := &domain.SyncJob{
		ID:            uuid.NewString(),
		BandID:        band.ID,
		BandName:      band.Name,
		Type:          jobType,
		Status:        domain.JobStatusPending,
		EstimatedCost: int(estimate),
		Priority:      priority,
		StartedAt:     time.Now(),
	}

	plan, err := o.governor.ApproveSyncJob(ctx, quota.ApprovalRequest{
		JobID:         job.ID,
		BandID:        band.ID,
		Priority:      priority,
		EstimatedCost: estimate,
		ForceApprove:  req.ForceApprove,
	})
	if err != nil {
		return nil, err
	}

	job.Approved = plan.Approved
	job.ApprovalReason = plan.Reason

	if !plan.Approved {
		job.Status = domain.JobStatusFailed
		now := time.Now()
		job.CompletedAt = &now
		if err := o.jobs.Create(ctx, job); err != nil {
			o.logger.Error("Failed to persist rejected job", slog.Any("error", err))
		}
		o.logger.Warn("Sync job rejected",
			slog.String("job_id", job.ID),
			slog.String("band", band.Name),
			slog.String("reason", plan.Reason),
		)
		return resultOf(job), nil
	}

	job.Status = domain.JobStatusInProgress
	if err := o.jobs.Create(ctx, job); err != nil {
		return nil, err
	}

	o.logger.Info("Sync job started",
		slog.String("job_id", job.ID),
		slog.String("band", band.Name),
		slog.String("type", string(jobType)),
		slog.String("priority", string(priority)),
		slog.Int64("allocated", plan.AllocatedQuota),
	)

	o.execute(ctx, band, job, plan.AllocatedQuota, req)

	now := time.Now()
	job.CompletedAt = &now
	if err := o.jobs.Update(ctx, job); err != nil {
		o.logger.Error("Failed to persist finished job", slog.Any("error", err))
	}

	if job.Status == domain.JobStatusCompleted {
		if err := o.catalog.RecordSyncCompleted(ctx, band.ID, jobType, now); err != nil {
			o.logger.Error("Failed to stamp band sync", slog.Any("error", err))
		}
	}

	o.logger.Info("Sync job finished",
		slog.String("job_id", job.ID),
		slog.String("status", string(job.Status)),
		slog.Int("found", job.VideosFound),
		slog.Int("added", job.VideosAdded),
		slog.Int("updated", job.VideosUpdated),
		slog.Int("actual_cost", job.ActualCost),
	)

	return resultOf(job), nil
}

// execute: the fetch-and-upsert phase. Mutates the job with counts, cost, and
// final status. Partial progress survives mid-run failures: whatever was
// upserted stays.
func (o *Orchestrator) execute(ctx context.Context, band *domain.Band, job *domain.SyncJob, allocated int64, req SyncRequest) {
	meta := videosource.CallMeta{
		BandID:   &band.ID,
		BandName: band.Name,
		JobID:    job.ID,
	}

	var videoIDs []string
	var cost int64

	if band.HasChannel() {
		videoIDs, cost = o.collectFromChannel(ctx, band, job, meta, allocated, req.MaxItems)
	} else {
		videoIDs, cost = o.collectFromSearch(ctx, band, job, meta)
	}
	if req.MaxItems > 0 && len(videoIDs) > req.MaxItems {
		videoIDs = videoIDs[:req.MaxItems]
	}
	job.ActualCost = int(cost)
	job.VideosFound = len(videoIDs)

	if len(videoIDs) == 0 {
		if len(job.Errors) > 0 {
			job.Status = domain.JobStatusFailed
		} else {
			job.Status = domain.JobStatusCompleted
		}
		return
	}

	videos, err := o.source.VideoDetails(ctx, videoIDs, meta)
	if err != nil {
		job.Errors = append(job.Errors, fmt.Sprintf("video details: %v", err))
		// Failed batches are not charged; count only the ones that returned.
		job.ActualCost += util.CeilDiv(len(videos), int(constants.SyncDefaults.PageSize))
	} else {
		job.ActualCost += util.CeilDiv(len(videoIDs), int(constants.SyncDefaults.PageSize))
	}

	videos = filterPublished(videos, req.PublishedAfter, req.PublishedBefore)

	if len(videos) > 0 {
		added, updated, upsertErr := o.catalog.UpsertVideos(ctx, band.ID, videos)
		if upsertErr != nil {
			job.Errors = append(job.Errors, fmt.Sprintf("catalog upsert: %v", upsertErr))
			job.Status = domain.JobStatusFailed
			return
		}
		job.VideosAdded = added
		job.VideosUpdated = updated
	}

	if len(videos) == 0 && len(job.Errors) > 0 {
		job.Status = domain.JobStatusFailed
		return
	}
	job.Status = domain.JobStatusCompleted
}

// collectFromChannel: enumerates the band's uploads playlist. Full syncs page
// until the playlist or the allocation runs out; incremental syncs read one
// page. Each page costs one unit now and one more later for its details call,
// so paging stops while both still fit.
func (o *Orchestrator) collectFromChannel(ctx context.Context, band *domain.Band, job *domain.SyncJob, meta videosource.CallMeta, allocated int64, maxItems int) ([]string, int64) {
	info, err := o.source.ResolveChannel(ctx, *band.ChannelID, meta)
	if err != nil {
		job.Errors = append(job.Errors, fmt.Sprintf("channel resolution: %v", err))
		return nil, 0
	}
	cost := constants.OperationCosts.ChannelsList

	maxPages := 1
	if job.Type == domain.JobTypeFull {
		budgetPages := (allocated - cost) / (constants.OperationCosts.PlaylistItemsList + constants.OperationCosts.VideosList)
		maxPages = int(util.MaxInt64(budgetPages, 1))
	}

	var videoIDs []string
	pageToken := ""
	for page := 0; page < maxPages; page++ {
		uploads, err := o.source.ListUploads(ctx, info.UploadsPlaylistID, pageToken, meta)
		if err != nil {
			job.Errors = append(job.Errors, fmt.Sprintf("uploads page %d: %v", page+1, err))
			break
		}
		cost += constants.OperationCosts.PlaylistItemsList
		videoIDs = append(videoIDs, uploads.VideoIDs...)

		if maxItems > 0 && len(videoIDs) >= maxItems {
			break
		}
		pageToken = uploads.NextPageToken
		if pageToken == "" {
			break
		}
	}

	return videoIDs, cost
}

// collectFromSearch: keyword discovery for bands without a channel. Queries
// combine the band's name with its school and common performance terms.
func (o *Orchestrator) collectFromSearch(ctx context.Context, band *domain.Band, job *domain.SyncJob, meta videosource.CallMeta) ([]string, int64) {
	queries := searchQueries(band)

	var cost int64
	seen := make(map[string]struct{})
	var videoIDs []string

	for _, query := range queries {
		ids, err := o.source.SearchVideos(ctx, query, constants.SyncDefaults.PageSize, meta)
		if err != nil {
			job.Errors = append(job.Errors, fmt.Sprintf("search %q: %v", query, err))
			continue
		}
		cost += constants.OperationCosts.Search
		for _, id := range ids {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			videoIDs = append(videoIDs, id)
		}
	}

	return videoIDs, cost
}

// filterPublished: keeps videos inside the requested publication window.
// Zero bounds are open ends.
func filterPublished(videos []*domain.Video, after, before time.Time) []*domain.Video {
	if after.IsZero() && before.IsZero() {
		return videos
	}
	kept := videos[:0]
	for _, video := range videos {
		if !after.IsZero() && video.PublishedAt.Before(after) {
			continue
		}
		if !before.IsZero() && video.PublishedAt.After(before) {
			continue
		}
		kept = append(kept, video)
	}
	return kept
}

func searchQueries(band *domain.Band) []string {
	queries := []string{
		fmt.Sprintf("%s marching band", band.Name),
	}
	if band.School != "" {
		queries = append(queries, fmt.Sprintf("%s %s", band.School, band.Name))
	}
	queries = append(queries, fmt.Sprintf("%s halftime show", band.Name))

	if len(queries) > constants.SyncDefaults.SearchQueryCount {
		queries = queries[:constants.SyncDefaults.SearchQueryCount]
	}
	return queries
}

// estimate: projects a job's unit cost before approval. The real upload count
// is unknown until the channel is resolved, so full syncs assume a deep
// catalog and incremental syncs one page.
func (o *Orchestrator) estimate(band *domain.Band, jobType domain.JobType) int64 {
	expected := constants.SyncDefaults.ExpectedVideosIncremental
	if jobType == domain.JobTypeFull {
		expected = constants.SyncDefaults.ExpectedVideosFull
	}

	return quota.EstimateCost(quota.EstimateRequest{
		VideoCount:   expected,
		UseSearch:    !band.HasChannel(),
		SearchCount:  constants.SyncDefaults.SearchQueryCount,
		HasChannelID: band.HasChannel(),
	})
}

// inferPriority: bands with a stable channel id or a featured flag are
// critical; first full ingestions rank high; routine catch-ups rank medium.
func inferPriority(band *domain.Band, jobType domain.JobType) domain.Priority {
	switch {
	case band.HasChannel() || band.Featured:
		return domain.PriorityCritical
	case jobType == domain.JobTypeFull:
		return domain.PriorityHigh
	default:
		return domain.PriorityMedium
	}
}

func resultOf(job *domain.SyncJob) *domain.SyncResult {
	result := &domain.SyncResult{
		JobID:         job.ID,
		BandID:        job.BandID,
		Status:        job.Status,
		VideosFound:   job.VideosFound,
		VideosAdded:   job.VideosAdded,
		VideosUpdated: job.VideosUpdated,
		Errors:        job.Errors,
		EstimatedCost: job.EstimatedCost,
		ActualCost:    job.ActualCost,
		Approved:      job.Approved,
		Reason:        job.ApprovalReason,
	}
	if job.CompletedAt != nil {
		result.Duration = job.CompletedAt.Sub(job.StartedAt).Round(time.Millisecond).String()
	}
	return result
}
