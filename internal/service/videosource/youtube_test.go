package videosource

import (
	"testing"

	"google.golang.org/api/youtube/v3"
)

func TestExtractThumbnailPrefersHighestResolution(t *testing.T) {
	thumbnails := &youtube.ThumbnailDetails{
		Default: &youtube.Thumbnail{Url: "default"},
		Medium:  &youtube.Thumbnail{Url: "medium"},
		High:    &youtube.Thumbnail{Url: "high"},
	}

	got := extractThumbnail(thumbnails)
	if got == nil || *got != "high" {
		t.Fatalf("extractThumbnail = %v, expected high", got)
	}

	if extractThumbnail(nil) != nil {
		t.Fatal("expected nil for missing thumbnails")
	}

	empty := extractThumbnail(&youtube.ThumbnailDetails{})
	if empty != nil {
		t.Fatalf("expected nil for empty thumbnails, got %v", *empty)
	}
}

func TestVideoFromItem(t *testing.T) {
	item := &youtube.Video{
		Id: "vid-1",
		Snippet: &youtube.VideoSnippet{
			Title:        "Halftime Show 2025",
			Description:  "Full performance",
			ChannelId:    "UC123",
			ChannelTitle: "Marching Storm",
			PublishedAt:  "2025-11-02T18:00:00Z",
		},
		ContentDetails: &youtube.VideoContentDetails{Duration: "PT9M30S"},
		Statistics:     &youtube.VideoStatistics{ViewCount: 12345, LikeCount: 678},
	}

	video := videoFromItem(item)
	if video.ExternalID != "vid-1" || video.Title != "Halftime Show 2025" {
		t.Fatalf("unexpected video: %+v", video)
	}
	if video.PublishedAt.IsZero() {
		t.Fatal("expected published time to parse")
	}
	if video.Duration != "PT9M30S" || video.ViewCount != 12345 || video.LikeCount != 678 {
		t.Fatalf("unexpected metadata: %+v", video)
	}
}
