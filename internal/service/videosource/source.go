package videosource

import (
	"context"

	"github.com/kapu/bandhub-sync-go/internal/domain"
)

// CallMeta: attribution attached to every upstream call so the quota audit
// trail can tie units back to a band and job.
type CallMeta struct {
	BandID   *int64
	BandName string
	JobID    string
}

// ChannelInfo: the resolved identity of a channel, including the uploads
// playlist that lists every public video.
type ChannelInfo struct {
	ID                string
	Title             string
	UploadsPlaylistID string
	VideoCount        int64
}

// UploadsPage: one page of video IDs from an uploads playlist.
type UploadsPage struct {
	VideoIDs      []string
	NextPageToken string
}

// Source: a provider of band video data. The production implementation talks
// to the YouTube Data API; tests substitute fakes.
type Source interface {
	// ResolveChannel: resolves a channel ID to its uploads playlist.
	ResolveChannel(ctx context.Context, channelID string, meta CallMeta) (*ChannelInfo, error)

	// ListUploads: fetches one page (up to 50 IDs) of an uploads playlist.
	// An empty pageToken starts from the beginning.
	ListUploads(ctx context.Context, playlistID, pageToken string, meta CallMeta) (*UploadsPage, error)

	// SearchVideos: keyword discovery for bands with no known channel.
	SearchVideos(ctx context.Context, query string, maxResults int64, meta CallMeta) ([]string, error)

	// VideoDetails: full metadata for the given video IDs, batching upstream
	// calls as needed.
	VideoDetails(ctx context.Context, videoIDs []string, meta CallMeta) ([]*domain.Video, error)
}
