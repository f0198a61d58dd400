package catalog

import (
	"time"

	"github.com/kapu/bandhub-sync-go/internal/domain"
)

// BandModel: GORM model for the bands table.
type BandModel struct {
	ID             int64      `gorm:"primaryKey;column:id"`
	Slug           string     `gorm:"column:slug;uniqueIndex"`
	Name           string     `gorm:"column:name"`
	School         string     `gorm:"column:school"`
	State          string     `gorm:"column:state"`
	ChannelID      *string    `gorm:"column:channel_id"`
	Featured       bool       `gorm:"column:featured"`
	Active         bool       `gorm:"column:active"`
	LastSyncedAt   *time.Time `gorm:"column:last_synced_at"`
	FirstSyncedAt  *time.Time `gorm:"column:first_synced_at"`
	LastFullSyncAt *time.Time `gorm:"column:last_full_sync_at"`
}

// TableName: maps BandModel to the "bands" table.
func (BandModel) TableName() string {
	return "bands"
}

func (m *BandModel) toDomain() *domain.Band {
	return &domain.Band{
		ID:             m.ID,
		Slug:           m.Slug,
		Name:           m.Name,
		School:         m.School,
		State:          m.State,
		ChannelID:      m.ChannelID,
		Featured:       m.Featured,
		Active:         m.Active,
		LastSyncedAt:   m.LastSyncedAt,
		FirstSyncedAt:  m.FirstSyncedAt,
		LastFullSyncAt: m.LastFullSyncAt,
	}
}

func bandModelFrom(band *domain.Band) *BandModel {
	return &BandModel{
		ID:             band.ID,
		Slug:           band.Slug,
		Name:           band.Name,
		School:         band.School,
		State:          band.State,
		ChannelID:      band.ChannelID,
		Featured:       band.Featured,
		Active:         band.Active,
		LastSyncedAt:   band.LastSyncedAt,
		FirstSyncedAt:  band.FirstSyncedAt,
		LastFullSyncAt: band.LastFullSyncAt,
	}
}

// VideoModel: GORM model for the videos table.
type VideoModel struct {
	ID           int64     `gorm:"primaryKey;autoIncrement;column:id"`
	ExternalID   string    `gorm:"column:external_id;uniqueIndex"`
	BandID       int64     `gorm:"column:band_id;index"`
	Title        string    `gorm:"column:title"`
	Description  string    `gorm:"column:description"`
	ChannelID    string    `gorm:"column:channel_id"`
	ChannelTitle string    `gorm:"column:channel_title"`
	PublishedAt  time.Time `gorm:"column:published_at"`
	Thumbnail    *string   `gorm:"column:thumbnail"`
	Duration     string    `gorm:"column:duration"`
	ViewCount    int64     `gorm:"column:view_count"`
	LikeCount    int64     `gorm:"column:like_count"`
}

// TableName: maps VideoModel to the "videos" table.
func (VideoModel) TableName() string {
	return "videos"
}

func (m *VideoModel) toDomain() *domain.Video {
	return &domain.Video{
		ID:           m.ID,
		ExternalID:   m.ExternalID,
		BandID:       m.BandID,
		Title:        m.Title,
		Description:  m.Description,
		ChannelID:    m.ChannelID,
		ChannelTitle: m.ChannelTitle,
		PublishedAt:  m.PublishedAt,
		Thumbnail:    m.Thumbnail,
		Duration:     m.Duration,
		ViewCount:    uint64(m.ViewCount),
		LikeCount:    uint64(m.LikeCount),
	}
}

func videoModelFrom(video *domain.Video) *VideoModel {
	return &VideoModel{
		ID:           video.ID,
		ExternalID:   video.ExternalID,
		BandID:       video.BandID,
		Title:        video.Title,
		Description:  video.Description,
		ChannelID:    video.ChannelID,
		ChannelTitle: video.ChannelTitle,
		PublishedAt:  video.PublishedAt,
		Thumbnail:    video.Thumbnail,
		Duration:     video.Duration,
		ViewCount:    int64(video.ViewCount),
		LikeCount:    int64(video.LikeCount),
	}
}
