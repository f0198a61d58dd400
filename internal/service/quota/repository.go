package quota

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kapu/bandhub-sync-go/internal/domain"
	"github.com/kapu/bandhub-sync-go/internal/service/database"
)

// Repository: durable audit trail of quota activity (usage records, daily
// summaries, alerts). The Valkey ledger stays authoritative for admission
// decisions; these tables exist for analytics and operator review.
type Repository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewRepository: creates the repository and bootstraps its tables.
func NewRepository(ctx context.Context, postgres *database.PostgresService, logger *slog.Logger) (*Repository, error) {
	r := &Repository{
		db:     postgres.GetDB(),
		logger: logger,
	}
	if err := r.createTablesIfNotExist(ctx); err != nil {
		return nil, fmt.Errorf("failed to create quota tables: %w", err)
	}
	return r, nil
}

func (r *Repository) createTablesIfNotExist(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS usage_records (
			id VARCHAR(36) PRIMARY KEY,
			operation VARCHAR(32) NOT NULL,
			cost BIGINT NOT NULL,
			occurred_at TIMESTAMPTZ NOT NULL,
			band_id BIGINT,
			band_name TEXT,
			job_id VARCHAR(36),
			success BOOLEAN NOT NULL DEFAULT TRUE,
			cache_hit BOOLEAN NOT NULL DEFAULT FALSE,
			error_message TEXT,
			metadata JSONB
		)`,
		`CREATE INDEX IF NOT EXISTS idx_usage_records_occurred_at ON usage_records (occurred_at)`,
		`CREATE INDEX IF NOT EXISTS idx_usage_records_job_id ON usage_records (job_id)`,
		`CREATE TABLE IF NOT EXISTS daily_summaries (
			date VARCHAR(10) PRIMARY KEY,
			total_usage BIGINT NOT NULL,
			quota_limit BIGINT NOT NULL,
			percentage_used DOUBLE PRECISION NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS quota_alerts (
			id VARCHAR(36) PRIMARY KEY,
			level VARCHAR(16) NOT NULL,
			message TEXT NOT NULL,
			usage_at_time BIGINT NOT NULL,
			occurred_at TIMESTAMPTZ NOT NULL,
			acknowledged BOOLEAN NOT NULL DEFAULT FALSE,
			acknowledged_by TEXT,
			acknowledged_at TIMESTAMPTZ
		)`,
	}
	for _, stmt := range statements {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// InsertUsageRecord: appends one usage record to the audit trail.
func (r *Repository) InsertUsageRecord(ctx context.Context, record *domain.UsageRecord) error {
	var metadata []byte
	if record.Metadata != nil {
		data, err := json.Marshal(record.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal usage metadata: %w", err)
		}
		metadata = data
	}

	query := `
		INSERT INTO usage_records
			(id, operation, cost, occurred_at, band_id, band_name, job_id, success, cache_hit, error_message, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.db.ExecContext(ctx, query,
		record.ID,
		string(record.Operation),
		record.Cost,
		record.Timestamp,
		record.BandID,
		nullString(record.BandName),
		nullString(record.JobID),
		record.Success,
		record.CacheHit,
		nullString(record.ErrorMessage),
		metadata,
	)
	if err != nil {
		return fmt.Errorf("failed to insert usage record: %w", err)
	}
	return nil
}

// ListUsageRecords: usage records since a point in time, newest first.
func (r *Repository) ListUsageRecords(ctx context.Context, since time.Time, limit int) ([]*domain.UsageRecord, error) {
	query := `
		SELECT id, operation, cost, occurred_at, band_id, band_name, job_id, success, cache_hit, error_message, metadata
		FROM usage_records
		WHERE occurred_at >= $1
		ORDER BY occurred_at DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query usage records: %w", err)
	}
	defer rows.Close()

	return scanUsageRecords(rows)
}

// ListUsageRecordsForJob: the usage records attributed to one sync job.
func (r *Repository) ListUsageRecordsForJob(ctx context.Context, jobID string) ([]*domain.UsageRecord, error) {
	query := `
		SELECT id, operation, cost, occurred_at, band_id, band_name, job_id, success, cache_hit, error_message, metadata
		FROM usage_records
		WHERE job_id = $1
		ORDER BY occurred_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to query usage records for job: %w", err)
	}
	defer rows.Close()

	return scanUsageRecords(rows)
}

func scanUsageRecords(rows *sql.Rows) ([]*domain.UsageRecord, error) {
	var records []*domain.UsageRecord
	for rows.Next() {
		var (
			record       domain.UsageRecord
			operation    string
			bandID       sql.NullInt64
			bandName     sql.NullString
			jobID        sql.NullString
			errorMessage sql.NullString
			metadata     []byte
		)
		if err := rows.Scan(
			&record.ID,
			&operation,
			&record.Cost,
			&record.Timestamp,
			&bandID,
			&bandName,
			&jobID,
			&record.Success,
			&record.CacheHit,
			&errorMessage,
			&metadata,
		); err != nil {
			return nil, fmt.Errorf("failed to scan usage record: %w", err)
		}
		record.Operation = domain.OperationKind(operation)
		if bandID.Valid {
			record.BandID = &bandID.Int64
		}
		record.BandName = bandName.String
		record.JobID = jobID.String
		record.ErrorMessage = errorMessage.String
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &record.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal usage metadata: %w", err)
			}
		}
		records = append(records, &record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("usage record iteration failed: %w", err)
	}
	return records, nil
}

// AggregateByOperation: total cost per operation kind since a point in time.
func (r *Repository) AggregateByOperation(ctx context.Context, since time.Time) (map[domain.OperationKind]int64, error) {
	query := `
		SELECT operation, COALESCE(SUM(cost), 0)
		FROM usage_records
		WHERE occurred_at >= $1
		GROUP BY operation
	`

	rows, err := r.db.QueryContext(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate usage: %w", err)
	}
	defer rows.Close()

	result := make(map[domain.OperationKind]int64)
	for rows.Next() {
		var operation string
		var total int64
		if err := rows.Scan(&operation, &total); err != nil {
			return nil, fmt.Errorf("failed to scan aggregate row: %w", err)
		}
		result[domain.OperationKind(operation)] = total
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("aggregate iteration failed: %w", err)
	}
	return result, nil
}

// CacheHitStats: how many usage records since a point in time were served
// from cache, alongside the total record count.
func (r *Repository) CacheHitStats(ctx context.Context, since time.Time) (hits, total int64, err error) {
	query := `
		SELECT COALESCE(SUM(CASE WHEN cache_hit THEN 1 ELSE 0 END), 0), COUNT(*)
		FROM usage_records
		WHERE occurred_at >= $1
	`

	if err := r.db.QueryRowContext(ctx, query, since).Scan(&hits, &total); err != nil {
		return 0, 0, fmt.Errorf("failed to aggregate cache hits: %w", err)
	}
	return hits, total, nil
}

// UpsertDailySummary: stores the archived total for one quota day.
func (r *Repository) UpsertDailySummary(ctx context.Context, summary *domain.DailySummary) error {
	query := `
		INSERT INTO daily_summaries (date, total_usage, quota_limit, percentage_used)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (date) DO UPDATE
		SET total_usage = EXCLUDED.total_usage,
		    quota_limit = EXCLUDED.quota_limit,
		    percentage_used = EXCLUDED.percentage_used
	`

	_, err := r.db.ExecContext(ctx, query,
		summary.Date,
		summary.TotalUsage,
		summary.Limit,
		summary.PercentageUsed,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert daily summary: %w", err)
	}
	return nil
}

// ListDailySummaries: the most recent daily summaries, oldest first.
func (r *Repository) ListDailySummaries(ctx context.Context, days int) ([]*domain.DailySummary, error) {
	query := `
		SELECT date, total_usage, quota_limit, percentage_used
		FROM (
			SELECT date, total_usage, quota_limit, percentage_used
			FROM daily_summaries
			ORDER BY date DESC
			LIMIT $1
		) recent
		ORDER BY date ASC
	`

	rows, err := r.db.QueryContext(ctx, query, days)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily summaries: %w", err)
	}
	defer rows.Close()

	var summaries []*domain.DailySummary
	for rows.Next() {
		var summary domain.DailySummary
		if err := rows.Scan(
			&summary.Date,
			&summary.TotalUsage,
			&summary.Limit,
			&summary.PercentageUsed,
		); err != nil {
			return nil, fmt.Errorf("failed to scan daily summary: %w", err)
		}
		summaries = append(summaries, &summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("daily summary iteration failed: %w", err)
	}
	return summaries, nil
}

// InsertAlert: records a threshold-crossing alert.
func (r *Repository) InsertAlert(ctx context.Context, alert *domain.Alert) error {
	if alert.ID == "" {
		alert.ID = uuid.NewString()
	}

	query := `
		INSERT INTO quota_alerts (id, level, message, usage_at_time, occurred_at, acknowledged)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.ExecContext(ctx, query,
		alert.ID,
		string(alert.Level),
		alert.Message,
		alert.UsageAtTime,
		alert.Timestamp,
		alert.Acknowledged,
	)
	if err != nil {
		return fmt.Errorf("failed to insert alert: %w", err)
	}
	return nil
}

// ListAlerts: recent alerts, optionally only unacknowledged ones.
func (r *Repository) ListAlerts(ctx context.Context, onlyUnacknowledged bool, limit int) ([]*domain.Alert, error) {
	query := `
		SELECT id, level, message, usage_at_time, occurred_at, acknowledged, acknowledged_by, acknowledged_at
		FROM quota_alerts
		WHERE ($1 = FALSE OR acknowledged = FALSE)
		ORDER BY occurred_at DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, onlyUnacknowledged, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	var alerts []*domain.Alert
	for rows.Next() {
		var (
			alert          domain.Alert
			level          string
			acknowledgedBy sql.NullString
			acknowledgedAt sql.NullTime
		)
		if err := rows.Scan(
			&alert.ID,
			&level,
			&alert.Message,
			&alert.UsageAtTime,
			&alert.Timestamp,
			&alert.Acknowledged,
			&acknowledgedBy,
			&acknowledgedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		alert.Level = domain.AlertLevel(level)
		alert.AcknowledgedBy = acknowledgedBy.String
		if acknowledgedAt.Valid {
			t := acknowledgedAt.Time
			alert.AcknowledgedAt = &t
		}
		alerts = append(alerts, &alert)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("alert iteration failed: %w", err)
	}
	return alerts, nil
}

// AcknowledgeAlert: marks one alert as acknowledged. Returns false when the
// alert does not exist or was already acknowledged.
func (r *Repository) AcknowledgeAlert(ctx context.Context, alertID, acknowledgedBy string) (bool, error) {
	query := `
		UPDATE quota_alerts
		SET acknowledged = TRUE, acknowledged_by = $2, acknowledged_at = $3
		WHERE id = $1 AND acknowledged = FALSE
	`

	result, err := r.db.ExecContext(ctx, query, alertID, acknowledgedBy, time.Now())
	if err != nil {
		return false, fmt.Errorf("failed to acknowledge alert: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read acknowledge result: %w", err)
	}
	return affected > 0, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
