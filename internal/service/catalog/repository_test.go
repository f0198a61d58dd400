package catalog

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/kapu/bandhub-sync-go/internal/domain"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := NewRepository(db, logger)
	if err := repo.AutoMigrate(context.Background()); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return repo
}

func seedBand(t *testing.T, repo *Repository, band *domain.Band) *domain.Band {
	t.Helper()
	if err := repo.SaveBand(context.Background(), band); err != nil {
		t.Fatalf("failed to seed band: %v", err)
	}
	return band
}

func strPtr(s string) *string { return &s }

func TestRepositoryGetBand(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	band := seedBand(t, repo, &domain.Band{
		ID: 1, Slug: "marching-storm", Name: "Marching Storm",
		School: "Prairie View A&M", State: "TX",
		ChannelID: strPtr("UC123"), Active: true,
	})

	got, err := repo.GetBand(ctx, band.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got == nil || got.Slug != "marching-storm" || !got.HasChannel() {
		t.Fatalf("unexpected band: %+v", got)
	}

	missing, err := repo.GetBand(ctx, 999)
	if err != nil {
		t.Fatalf("get missing failed: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil for missing band, got %+v", missing)
	}

	bySlug, err := repo.GetBandBySlug(ctx, "marching-storm")
	if err != nil {
		t.Fatalf("get by slug failed: %v", err)
	}
	if bySlug == nil || bySlug.ID != band.ID {
		t.Fatalf("unexpected band by slug: %+v", bySlug)
	}
}

func TestRepositoryListStaleBands(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	recent := time.Now().Add(-1 * time.Hour)
	old := time.Now().Add(-30 * 24 * time.Hour)

	seedBand(t, repo, &domain.Band{ID: 1, Slug: "fresh", Name: "Fresh", Active: true, LastSyncedAt: &recent})
	seedBand(t, repo, &domain.Band{ID: 2, Slug: "stale", Name: "Stale", Active: true, LastSyncedAt: &old})
	seedBand(t, repo, &domain.Band{ID: 3, Slug: "never", Name: "Never", Active: true})
	seedBand(t, repo, &domain.Band{ID: 4, Slug: "inactive", Name: "Inactive", Active: false})

	bands, err := repo.ListStaleBands(ctx, 10)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(bands) != 3 {
		t.Fatalf("expected 3 active bands, got %d", len(bands))
	}
	if bands[0].Slug != "never" {
		t.Fatalf("expected never-synced band first, got %s", bands[0].Slug)
	}
	if bands[1].Slug != "stale" || bands[2].Slug != "fresh" {
		t.Fatalf("unexpected order: %s, %s", bands[1].Slug, bands[2].Slug)
	}

	limited, err := repo.ListStaleBands(ctx, 1)
	if err != nil {
		t.Fatalf("limited list failed: %v", err)
	}
	if len(limited) != 1 {
		t.Fatalf("expected limit to apply, got %d", len(limited))
	}
}

func TestRepositoryListNeverFullSynced(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	full := time.Now().Add(-10 * 24 * time.Hour)
	seedBand(t, repo, &domain.Band{ID: 1, Slug: "done", Name: "Done", Active: true, LastFullSyncAt: &full})
	seedBand(t, repo, &domain.Band{ID: 2, Slug: "pending", Name: "Pending", Active: true})
	seedBand(t, repo, &domain.Band{ID: 3, Slug: "starred", Name: "Starred", Active: true, Featured: true})

	bands, err := repo.ListNeverFullSynced(ctx)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(bands) != 2 {
		t.Fatalf("expected 2 bands, got %d", len(bands))
	}
	if bands[0].Slug != "starred" {
		t.Fatalf("expected featured band first, got %s", bands[0].Slug)
	}
}

func TestRepositoryUpsertVideos(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	seedBand(t, repo, &domain.Band{ID: 1, Slug: "band", Name: "Band", Active: true})

	first := []*domain.Video{
		{ExternalID: "v1", Title: "Halftime 2024", PublishedAt: time.Now().Add(-48 * time.Hour), ViewCount: 100},
		{ExternalID: "v2", Title: "Battle of the Bands", PublishedAt: time.Now().Add(-24 * time.Hour), ViewCount: 50},
	}
	added, updated, err := repo.UpsertVideos(ctx, 1, first)
	if err != nil {
		t.Fatalf("first upsert failed: %v", err)
	}
	if added != 2 || updated != 0 {
		t.Fatalf("first upsert = (%d added, %d updated), expected (2, 0)", added, updated)
	}

	second := []*domain.Video{
		{ExternalID: "v2", Title: "Battle of the Bands", PublishedAt: time.Now().Add(-24 * time.Hour), ViewCount: 500},
		{ExternalID: "v3", Title: "Homecoming", PublishedAt: time.Now(), ViewCount: 10},
	}
	added, updated, err = repo.UpsertVideos(ctx, 1, second)
	if err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}
	if added != 1 || updated != 1 {
		t.Fatalf("second upsert = (%d added, %d updated), expected (1, 1)", added, updated)
	}

	count, err := repo.CountVideos(ctx, 1)
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 3 {
		t.Fatalf("count = %d, expected 3", count)
	}

	videos, err := repo.ListVideos(ctx, 1, 10)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(videos) != 3 {
		t.Fatalf("expected 3 videos, got %d", len(videos))
	}
	if videos[0].ExternalID != "v3" {
		t.Fatalf("expected newest first, got %s", videos[0].ExternalID)
	}
	for _, video := range videos {
		if video.ExternalID == "v2" && video.ViewCount != 500 {
			t.Fatalf("expected view count refreshed, got %d", video.ViewCount)
		}
	}
}

func TestRepositoryRecordSyncCompleted(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	seedBand(t, repo, &domain.Band{ID: 1, Slug: "band", Name: "Band", Active: true})

	firstSync := time.Now().Add(-time.Hour)
	if err := repo.RecordSyncCompleted(ctx, 1, domain.JobTypeIncremental, firstSync); err != nil {
		t.Fatalf("record failed: %v", err)
	}

	band, err := repo.GetBand(ctx, 1)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if band.LastSyncedAt == nil || band.FirstSyncedAt == nil {
		t.Fatalf("expected sync stamps, got %+v", band)
	}
	if band.LastFullSyncAt != nil {
		t.Fatal("incremental sync must not stamp last_full_sync_at")
	}
	firstStamp := *band.FirstSyncedAt

	secondSync := time.Now()
	if err := repo.RecordSyncCompleted(ctx, 1, domain.JobTypeFull, secondSync); err != nil {
		t.Fatalf("second record failed: %v", err)
	}

	band, err = repo.GetBand(ctx, 1)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if band.LastFullSyncAt == nil {
		t.Fatal("full sync must stamp last_full_sync_at")
	}
	if !band.FirstSyncedAt.Equal(firstStamp) {
		t.Fatal("first_synced_at must be written once")
	}
}
