package domain

import "time"

// Video: one ingested YouTube video, keyed by its external id.
type Video struct {
	ID           int64     `json:"id"`
	ExternalID   string    `json:"external_id"`
	BandID       int64     `json:"band_id"`
	Title        string    `json:"title"`
	Description  string    `json:"description,omitempty"`
	ChannelID    string    `json:"channel_id"`
	ChannelTitle string    `json:"channel_title,omitempty"`
	PublishedAt  time.Time `json:"published_at"`
	Thumbnail    *string   `json:"thumbnail,omitempty"`
	Duration     string    `json:"duration,omitempty"` // ISO 8601 as returned by the API
	ViewCount    uint64    `json:"view_count"`
	LikeCount    uint64    `json:"like_count"`
}
