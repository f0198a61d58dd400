package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/kapu/bandhub-sync-go/internal/domain"
)

// JobModel: GORM model for the sync_jobs table.
type JobModel struct {
	ID             string                      `gorm:"primaryKey;column:id"`
	BandID         int64                       `gorm:"column:band_id;index"`
	BandName       string                      `gorm:"column:band_name"`
	Type           string                      `gorm:"column:type"`
	Status         string                      `gorm:"column:status;index"`
	VideosFound    int                         `gorm:"column:videos_found"`
	VideosAdded    int                         `gorm:"column:videos_added"`
	VideosUpdated  int                         `gorm:"column:videos_updated"`
	Errors         datatypes.JSONSlice[string] `gorm:"column:errors"`
	EstimatedCost  int                         `gorm:"column:estimated_cost"`
	ActualCost     int                         `gorm:"column:actual_cost"`
	Priority       string                      `gorm:"column:priority"`
	Approved       bool                        `gorm:"column:approved"`
	ApprovalReason string                      `gorm:"column:approval_reason"`
	CreatedAt      time.Time                   `gorm:"column:created_at"`
	StartedAt      time.Time                   `gorm:"column:started_at"`
	CompletedAt    *time.Time                  `gorm:"column:completed_at"`
}

// TableName: maps JobModel to the "sync_jobs" table.
func (JobModel) TableName() string {
	return "sync_jobs"
}

func (m *JobModel) toDomain() *domain.SyncJob {
	return &domain.SyncJob{
		ID:             m.ID,
		BandID:         m.BandID,
		BandName:       m.BandName,
		Type:           domain.JobType(m.Type),
		Status:         domain.JobStatus(m.Status),
		VideosFound:    m.VideosFound,
		VideosAdded:    m.VideosAdded,
		VideosUpdated:  m.VideosUpdated,
		Errors:         []string(m.Errors),
		EstimatedCost:  m.EstimatedCost,
		ActualCost:     m.ActualCost,
		Priority:       domain.Priority(m.Priority),
		Approved:       m.Approved,
		ApprovalReason: m.ApprovalReason,
		StartedAt:      m.StartedAt,
		CompletedAt:    m.CompletedAt,
	}
}

func jobModelFrom(job *domain.SyncJob) *JobModel {
	return &JobModel{
		ID:             job.ID,
		BandID:         job.BandID,
		BandName:       job.BandName,
		Type:           string(job.Type),
		Status:         string(job.Status),
		VideosFound:    job.VideosFound,
		VideosAdded:    job.VideosAdded,
		VideosUpdated:  job.VideosUpdated,
		Errors:         datatypes.JSONSlice[string](job.Errors),
		EstimatedCost:  job.EstimatedCost,
		ActualCost:     job.ActualCost,
		Priority:       string(job.Priority),
		Approved:       job.Approved,
		ApprovalReason: job.ApprovalReason,
		StartedAt:      job.StartedAt,
		CompletedAt:    job.CompletedAt,
	}
}

// JobRepository: database access for sync job records.
type JobRepository struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewJobRepository: creates the sync job repository.
func NewJobRepository(db *gorm.DB, logger *slog.Logger) *JobRepository {
	return &JobRepository{
		db:     db,
		logger: logger,
	}
}

// AutoMigrate: creates or updates the sync_jobs table.
func (r *JobRepository) AutoMigrate(ctx context.Context) error {
	if err := r.db.WithContext(ctx).AutoMigrate(&JobModel{}); err != nil {
		return fmt.Errorf("failed to migrate sync_jobs: %w", err)
	}
	return nil
}

// Create: persists a new job record.
func (r *JobRepository) Create(ctx context.Context, job *domain.SyncJob) error {
	if err := r.db.WithContext(ctx).Create(jobModelFrom(job)).Error; err != nil {
		return fmt.Errorf("failed to create sync job: %w", err)
	}
	return nil
}

// Update: overwrites a job record with its current state.
func (r *JobRepository) Update(ctx context.Context, job *domain.SyncJob) error {
	if err := r.db.WithContext(ctx).Save(jobModelFrom(job)).Error; err != nil {
		return fmt.Errorf("failed to update sync job: %w", err)
	}
	return nil
}

// Get: fetches one job by ID. Returns (nil, nil) when it does not exist.
func (r *JobRepository) Get(ctx context.Context, jobID string) (*domain.SyncJob, error) {
	var model JobModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", jobID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query sync job: %w", err)
	}
	return model.toDomain(), nil
}

// List: recent jobs, newest first, optionally filtered by status.
func (r *JobRepository) List(ctx context.Context, status domain.JobStatus, limit int) ([]*domain.SyncJob, error) {
	tx := r.db.WithContext(ctx).Order("created_at DESC").Limit(limit)
	if status != "" {
		tx = tx.Where("status = ?", string(status))
	}

	var models []JobModel
	if err := tx.Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list sync jobs: %w", err)
	}

	jobs := make([]*domain.SyncJob, 0, len(models))
	for i := range models {
		jobs = append(jobs, models[i].toDomain())
	}
	return jobs, nil
}

// ListForBand: a band's job history, newest first.
func (r *JobRepository) ListForBand(ctx context.Context, bandID int64, limit int) ([]*domain.SyncJob, error) {
	var models []JobModel
	err := r.db.WithContext(ctx).
		Where("band_id = ?", bandID).
		Order("created_at DESC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list band jobs: %w", err)
	}

	jobs := make([]*domain.SyncJob, 0, len(models))
	for i := range models {
		jobs = append(jobs, models[i].toDomain())
	}
	return jobs, nil
}

// CountRunning: jobs currently marked in progress.
func (r *JobRepository) CountRunning(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&JobModel{}).
		Where("status = ?", string(domain.JobStatusInProgress)).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count running jobs: %w", err)
	}
	return count, nil
}
