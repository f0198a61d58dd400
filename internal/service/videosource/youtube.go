package videosource

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"github.com/kapu/bandhub-sync-go/internal/constants"
	"github.com/kapu/bandhub-sync-go/internal/domain"
	"github.com/kapu/bandhub-sync-go/internal/service/quota"
	"github.com/kapu/bandhub-sync-go/internal/util"
	errs "github.com/kapu/bandhub-sync-go/pkg/errors"
)

// YouTubeSource: the production Source backed by the YouTube Data API.
//
// Every call is admitted by the quota governor first and tracked after.
// Failed calls are recorded in the audit trail at zero cost; only confirmed
// successes consume budget. A circuit breaker sits in front of the API; quota and
// rate-limit rejections trip it with a long timeout since retrying sooner
// cannot help.
type YouTubeSource struct {
	service  *youtube.Service
	governor *quota.Governor
	breaker  *util.CircuitBreaker
	logger   *slog.Logger
}

// NewYouTubeSource: creates the YouTube-backed source.
func NewYouTubeSource(ctx context.Context, apiKey string, governor *quota.Governor, logger *slog.Logger) (*YouTubeSource, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("YouTube API key is required")
	}

	service, err := youtube.NewService(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create YouTube service: %w", err)
	}

	breaker := util.NewCircuitBreaker(
		constants.CircuitBreakerConfig.FailureThreshold,
		constants.CircuitBreakerConfig.ResetTimeout,
		constants.CircuitBreakerConfig.HealthCheckInterval,
		nil,
		logger,
	)

	logger.Info("YouTube video source initialized")

	return &YouTubeSource{
		service:  service,
		governor: governor,
		breaker:  breaker,
		logger:   logger,
	}, nil
}

// BreakerStatus: exposes the circuit breaker state for monitoring.
func (s *YouTubeSource) BreakerStatus() util.CircuitBreakerStatus {
	return s.breaker.GetStatus()
}

// admit: pre-call gate shared by every operation.
func (s *YouTubeSource) admit(ctx context.Context, op domain.OperationKind) error {
	if !s.breaker.CanExecute() {
		return &errs.CircuitOpenError{RetryAfterMs: constants.CircuitBreakerConfig.ResetTimeout.Milliseconds()}
	}
	return s.governor.CheckAvailable(ctx, quota.Cost(op))
}

// settle: post-call bookkeeping shared by every operation.
func (s *YouTubeSource) settle(ctx context.Context, op domain.OperationKind, meta CallMeta, callErr error) {
	opts := quota.TrackOptions{
		BandID:   meta.BandID,
		BandName: meta.BandName,
		JobID:    meta.JobID,
		Success:  callErr == nil,
	}
	if callErr != nil {
		opts.ErrorMessage = callErr.Error()
	}
	if err := s.governor.TrackOperation(ctx, op, opts); err != nil {
		s.logger.Error("Failed to track operation",
			slog.String("operation", string(op)),
			slog.Any("error", err),
		)
	}

	if callErr == nil {
		s.breaker.RecordSuccess()
		return
	}

	timeout := time.Duration(0)
	apiErr := &googleapi.Error{}
	if errors.As(callErr, &apiErr) && (apiErr.Code == 403 || apiErr.Code == 429) {
		timeout = constants.CircuitBreakerConfig.RateLimitTimeout
	}
	s.breaker.RecordFailure(timeout)
}

// ResolveChannel: one channels.list call resolving the uploads playlist.
func (s *YouTubeSource) ResolveChannel(ctx context.Context, channelID string, meta CallMeta) (*ChannelInfo, error) {
	if err := s.admit(ctx, domain.OpChannelsList); err != nil {
		return nil, err
	}

	response, err := s.service.Channels.List([]string{"snippet", "contentDetails", "statistics"}).
		Id(channelID).
		Context(ctx).Do()
	s.settle(ctx, domain.OpChannelsList, meta, err)
	if err != nil {
		return nil, errs.NewAPIError("channels.list", statusCode(err), err)
	}

	if len(response.Items) == 0 {
		return nil, errs.NewAPIError("channels.list", 404, fmt.Errorf("channel %s not found", channelID))
	}

	item := response.Items[0]
	info := &ChannelInfo{
		ID:    item.Id,
		Title: item.Snippet.Title,
	}
	if item.ContentDetails != nil && item.ContentDetails.RelatedPlaylists != nil {
		info.UploadsPlaylistID = item.ContentDetails.RelatedPlaylists.Uploads
	}
	if item.Statistics != nil {
		info.VideoCount = int64(item.Statistics.VideoCount)
	}

	if info.UploadsPlaylistID == "" {
		return nil, errs.NewAPIError("channels.list", 0, fmt.Errorf("channel %s has no uploads playlist", channelID))
	}

	return info, nil
}

// ListUploads: one playlistItems.list call for a page of up to 50 video IDs.
func (s *YouTubeSource) ListUploads(ctx context.Context, playlistID, pageToken string, meta CallMeta) (*UploadsPage, error) {
	if err := s.admit(ctx, domain.OpPlaylistItemsList); err != nil {
		return nil, err
	}

	call := s.service.PlaylistItems.List([]string{"contentDetails"}).
		PlaylistId(playlistID).
		MaxResults(constants.SyncDefaults.PageSize)
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}

	response, err := call.Context(ctx).Do()
	s.settle(ctx, domain.OpPlaylistItemsList, meta, err)
	if err != nil {
		return nil, errs.NewAPIError("playlistItems.list", statusCode(err), err)
	}

	page := &UploadsPage{
		VideoIDs:      make([]string, 0, len(response.Items)),
		NextPageToken: response.NextPageToken,
	}
	for _, item := range response.Items {
		if item.ContentDetails != nil && item.ContentDetails.VideoId != "" {
			page.VideoIDs = append(page.VideoIDs, item.ContentDetails.VideoId)
		}
	}

	return page, nil
}

// SearchVideos: one search.list call. Expensive (100 units), used only for
// bands with no known channel.
func (s *YouTubeSource) SearchVideos(ctx context.Context, query string, maxResults int64, meta CallMeta) ([]string, error) {
	if err := s.admit(ctx, domain.OpSearch); err != nil {
		return nil, err
	}

	if maxResults <= 0 || maxResults > constants.SyncDefaults.PageSize {
		maxResults = constants.SyncDefaults.PageSize
	}

	response, err := s.service.Search.List([]string{"id"}).
		Q(query).
		Type("video").
		MaxResults(maxResults).
		Order("date").
		Context(ctx).Do()
	s.settle(ctx, domain.OpSearch, meta, err)
	if err != nil {
		return nil, errs.NewAPIError("search.list", statusCode(err), err)
	}

	ids := make([]string, 0, len(response.Items))
	for _, item := range response.Items {
		if item.Id != nil && item.Id.VideoId != "" {
			ids = append(ids, item.Id.VideoId)
		}
	}

	return ids, nil
}

// VideoDetails: full metadata for the given IDs, one videos.list call per
// batch of 50.
func (s *YouTubeSource) VideoDetails(ctx context.Context, videoIDs []string, meta CallMeta) ([]*domain.Video, error) {
	videos := make([]*domain.Video, 0, len(videoIDs))

	for start := 0; start < len(videoIDs); start += int(constants.SyncDefaults.PageSize) {
		end := util.Min(start+int(constants.SyncDefaults.PageSize), len(videoIDs))
		batch := videoIDs[start:end]

		if err := s.admit(ctx, domain.OpVideosList); err != nil {
			return videos, err
		}

		response, err := s.service.Videos.List([]string{"snippet", "contentDetails", "statistics"}).
			Id(batch...).
			Context(ctx).Do()
		s.settle(ctx, domain.OpVideosList, meta, err)
		if err != nil {
			return videos, errs.NewAPIError("videos.list", statusCode(err), err)
		}

		for _, item := range response.Items {
			videos = append(videos, videoFromItem(item))
		}
	}

	return videos, nil
}

func videoFromItem(item *youtube.Video) *domain.Video {
	video := &domain.Video{
		ExternalID: item.Id,
	}
	if item.Snippet != nil {
		video.Title = item.Snippet.Title
		video.Description = item.Snippet.Description
		video.ChannelID = item.Snippet.ChannelId
		video.ChannelTitle = item.Snippet.ChannelTitle
		video.Thumbnail = extractThumbnail(item.Snippet.Thumbnails)
		if item.Snippet.PublishedAt != "" {
			if publishedAt, err := time.Parse(time.RFC3339, item.Snippet.PublishedAt); err == nil {
				video.PublishedAt = publishedAt
			}
		}
	}
	if item.ContentDetails != nil {
		video.Duration = item.ContentDetails.Duration
	}
	if item.Statistics != nil {
		video.ViewCount = item.Statistics.ViewCount
		video.LikeCount = item.Statistics.LikeCount
	}
	return video
}

func extractThumbnail(thumbnails *youtube.ThumbnailDetails) *string {
	if thumbnails == nil {
		return nil
	}

	if thumbnails.Maxres != nil && thumbnails.Maxres.Url != "" {
		return &thumbnails.Maxres.Url
	}
	if thumbnails.High != nil && thumbnails.High.Url != "" {
		return &thumbnails.High.Url
	}
	if thumbnails.Medium != nil && thumbnails.Medium.Url != "" {
		return &thumbnails.Medium.Url
	}
	if thumbnails.Default != nil && thumbnails.Default.Url != "" {
		return &thumbnails.Default.Url
	}

	return nil
}

func statusCode(err error) int {
	apiErr := &googleapi.Error{}
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return 0
}
