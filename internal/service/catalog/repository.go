package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kapu/bandhub-sync-go/internal/domain"
	"github.com/kapu/bandhub-sync-go/internal/util"
)

// Repository: database access for the band and video catalog.
type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewRepository: creates the catalog repository.
func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// AutoMigrate: creates or updates the bands and videos tables.
func (r *Repository) AutoMigrate(ctx context.Context) error {
	if err := r.db.WithContext(ctx).AutoMigrate(&BandModel{}, &VideoModel{}); err != nil {
		return fmt.Errorf("failed to migrate catalog tables: %w", err)
	}
	return nil
}

// GetBand: fetches one band by ID. Returns (nil, nil) when it does not exist.
func (r *Repository) GetBand(ctx context.Context, id int64) (*domain.Band, error) {
	var model BandModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query band: %w", err)
	}
	return model.toDomain(), nil
}

// GetBandBySlug: fetches one band by slug. Returns (nil, nil) when it does
// not exist.
func (r *Repository) GetBandBySlug(ctx context.Context, slug string) (*domain.Band, error) {
	var model BandModel
	err := r.db.WithContext(ctx).First(&model, "slug = ?", slug).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query band by slug: %w", err)
	}
	return model.toDomain(), nil
}

// SaveBand: inserts or updates a band. An empty slug is derived from the name.
func (r *Repository) SaveBand(ctx context.Context, band *domain.Band) error {
	if band.Slug == "" {
		band.Slug = util.Slugify(band.Name)
	}
	model := bandModelFrom(band)
	if err := r.db.WithContext(ctx).Save(model).Error; err != nil {
		return fmt.Errorf("failed to save band: %w", err)
	}
	band.ID = model.ID
	return nil
}

// ListStaleBands: active bands ordered by how long ago they were synced,
// never-synced bands first. Limit caps the result.
func (r *Repository) ListStaleBands(ctx context.Context, limit int) ([]*domain.Band, error) {
	var models []BandModel
	err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Order("last_synced_at ASC NULLS FIRST").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query stale bands: %w", err)
	}
	return toBands(models), nil
}

// ListNeverFullSynced: active bands that have never completed a full sync.
func (r *Repository) ListNeverFullSynced(ctx context.Context) ([]*domain.Band, error) {
	var models []BandModel
	err := r.db.WithContext(ctx).
		Where("active = ? AND last_full_sync_at IS NULL", true).
		Order("featured DESC, id ASC").
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query never-full-synced bands: %w", err)
	}
	return toBands(models), nil
}

func toBands(models []BandModel) []*domain.Band {
	bands := make([]*domain.Band, 0, len(models))
	for i := range models {
		bands = append(bands, models[i].toDomain())
	}
	return bands
}

// CountVideos: the number of catalogued videos for one band.
func (r *Repository) CountVideos(ctx context.Context, bandID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&VideoModel{}).
		Where("band_id = ?", bandID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count videos: %w", err)
	}
	return count, nil
}

// UpsertVideos: writes a batch of videos keyed by external ID and reports how
// many were new versus refreshed. Metadata of existing rows is overwritten;
// the row identity and band assignment stay put.
func (r *Repository) UpsertVideos(ctx context.Context, bandID int64, videos []*domain.Video) (added, updated int, err error) {
	if len(videos) == 0 {
		return 0, 0, nil
	}

	externalIDs := make([]string, 0, len(videos))
	for _, video := range videos {
		externalIDs = append(externalIDs, video.ExternalID)
	}

	var existing []string
	err = r.db.WithContext(ctx).
		Model(&VideoModel{}).
		Where("external_id IN ?", externalIDs).
		Pluck("external_id", &existing).Error
	if err != nil {
		return 0, 0, fmt.Errorf("failed to query existing videos: %w", err)
	}
	existingSet := make(map[string]struct{}, len(existing))
	for _, id := range existing {
		existingSet[id] = struct{}{}
	}

	models := make([]*VideoModel, 0, len(videos))
	for _, video := range videos {
		model := videoModelFrom(video)
		model.ID = 0
		model.BandID = bandID
		models = append(models, model)
	}

	err = r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "external_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"title", "description", "channel_id", "channel_title",
				"published_at", "thumbnail", "duration", "view_count", "like_count",
			}),
		}).
		Create(&models).Error
	if err != nil {
		return 0, 0, fmt.Errorf("failed to upsert videos: %w", err)
	}

	for _, video := range videos {
		if _, ok := existingSet[video.ExternalID]; ok {
			updated++
		} else {
			added++
		}
	}

	r.logger.Debug("Videos upserted",
		slog.Int64("band_id", bandID),
		slog.Int("added", added),
		slog.Int("updated", updated),
	)
	return added, updated, nil
}

// ListVideos: the catalogued videos of one band, newest first.
func (r *Repository) ListVideos(ctx context.Context, bandID int64, limit int) ([]*domain.Video, error) {
	var models []VideoModel
	err := r.db.WithContext(ctx).
		Where("band_id = ?", bandID).
		Order("published_at DESC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query videos: %w", err)
	}

	videos := make([]*domain.Video, 0, len(models))
	for i := range models {
		videos = append(videos, models[i].toDomain())
	}
	return videos, nil
}

// RecordSyncCompleted: stamps a band's sync bookkeeping after a job finishes.
// The first-synced stamp is written once; the full-sync stamp only for full
// jobs.
func (r *Repository) RecordSyncCompleted(ctx context.Context, bandID int64, jobType domain.JobType, at time.Time) error {
	updates := map[string]any{
		"last_synced_at": at,
	}
	if jobType == domain.JobTypeFull {
		updates["last_full_sync_at"] = at
	}

	tx := r.db.WithContext(ctx).
		Model(&BandModel{}).
		Where("id = ?", bandID).
		Updates(updates)
	if tx.Error != nil {
		return fmt.Errorf("failed to record sync completion: %w", tx.Error)
	}

	err := r.db.WithContext(ctx).
		Model(&BandModel{}).
		Where("id = ? AND first_synced_at IS NULL", bandID).
		Update("first_synced_at", at).Error
	if err != nil {
		return fmt.Errorf("failed to record first sync: %w", err)
	}
	return nil
}
