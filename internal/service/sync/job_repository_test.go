package sync

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/kapu/bandhub-sync-go/internal/domain"
)

func newTestJobRepository(t *testing.T) *JobRepository {
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
	t.Cleanup(func() { _ = sqlDB.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := NewJobRepository(db, logger)
	if err := repo.AutoMigrate(context.Background()); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return repo
}

func sampleJob(id string, bandID int64, status domain.JobStatus) *domain.SyncJob {
	return &domain.SyncJob{
		ID:            id,
		BandID:        bandID,
		BandName:      "Sonic Boom of the South",
		Type:          domain.JobTypeFull,
		Status:        status,
		Priority:      domain.PriorityHigh,
		Approved:      true,
		EstimatedCost: 21,
		StartedAt:     time.Now(),
	}
}

func TestJobRepositoryCreateGetUpdate(t *testing.T) {
	repo := newTestJobRepository(t)
	ctx := context.Background()

	job := sampleJob("job-1", 1, domain.JobStatusInProgress)
	if err := repo.Create(ctx, job); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	got, err := repo.Get(ctx, "job-1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got == nil || got.Status != domain.JobStatusInProgress || got.BandName != job.BandName {
		t.Fatalf("unexpected job: %+v", got)
	}

	job.Status = domain.JobStatusCompleted
	job.VideosFound = 120
	job.VideosAdded = 118
	job.VideosUpdated = 2
	job.ActualCost = 7
	job.Errors = []string{"uploads page 3: timeout"}
	now := time.Now()
	job.CompletedAt = &now
	if err := repo.Update(ctx, job); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	got, err = repo.Get(ctx, "job-1")
	if err != nil {
		t.Fatalf("get after update failed: %v", err)
	}
	if got.Status != domain.JobStatusCompleted || got.VideosFound != 120 || got.ActualCost != 7 {
		t.Fatalf("update not persisted: %+v", got)
	}
	if len(got.Errors) != 1 || got.Errors[0] != "uploads page 3: timeout" {
		t.Fatalf("errors not round-tripped: %v", got.Errors)
	}
	if got.CompletedAt == nil {
		t.Fatal("completed_at not persisted")
	}
}

func TestJobRepositoryGetMissing(t *testing.T) {
	repo := newTestJobRepository(t)

	got, err := repo.Get(context.Background(), "nope")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil for missing job, got %+v", got)
	}
}

func TestJobRepositoryListFiltersAndOrders(t *testing.T) {
	repo := newTestJobRepository(t)
	ctx := context.Background()

	statuses := []domain.JobStatus{
		domain.JobStatusCompleted,
		domain.JobStatusFailed,
		domain.JobStatusCompleted,
		domain.JobStatusInProgress,
	}
	for i, status := range statuses {
		job := sampleJob(fmt.Sprintf("job-%d", i), int64(i%2)+1, status)
		if err := repo.Create(ctx, job); err != nil {
			t.Fatalf("create %d failed: %v", i, err)
		}
		time.Sleep(2 * time.Millisecond) // distinct created_at for ordering
	}

	all, err := repo.List(ctx, "", 10)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("listed %d jobs, expected 4", len(all))
	}
	if all[0].ID != "job-3" {
		t.Fatalf("expected newest first, got %s", all[0].ID)
	}

	completed, err := repo.List(ctx, domain.JobStatusCompleted, 10)
	if err != nil {
		t.Fatalf("filtered list failed: %v", err)
	}
	if len(completed) != 2 {
		t.Fatalf("listed %d completed jobs, expected 2", len(completed))
	}

	limited, err := repo.List(ctx, "", 2)
	if err != nil {
		t.Fatalf("limited list failed: %v", err)
	}
	if len(limited) != 2 {
		t.Fatalf("limit ignored, got %d jobs", len(limited))
	}

	band1, err := repo.ListForBand(ctx, 1, 10)
	if err != nil {
		t.Fatalf("band list failed: %v", err)
	}
	if len(band1) != 2 {
		t.Fatalf("listed %d jobs for band 1, expected 2", len(band1))
	}
	for _, job := range band1 {
		if job.BandID != 1 {
			t.Fatalf("wrong band in results: %+v", job)
		}
	}
}

func TestJobRepositoryCountRunning(t *testing.T) {
	repo := newTestJobRepository(t)
	ctx := context.Background()

	for i, status := range []domain.JobStatus{
		domain.JobStatusInProgress,
		domain.JobStatusInProgress,
		domain.JobStatusCompleted,
	} {
		if err := repo.Create(ctx, sampleJob(fmt.Sprintf("job-%d", i), 1, status)); err != nil {
			t.Fatalf("create failed: %v", err)
		}
	}

	count, err := repo.CountRunning(ctx)
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 2 {
		t.Fatalf("running = %d, expected 2", count)
	}
}
