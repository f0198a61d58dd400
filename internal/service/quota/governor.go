package quota

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"

	"github.com/kapu/bandhub-sync-go/internal/config"
	"github.com/kapu/bandhub-sync-go/internal/constants"
	"github.com/kapu/bandhub-sync-go/internal/domain"
	"github.com/kapu/bandhub-sync-go/internal/util"
	errs "github.com/kapu/bandhub-sync-go/pkg/errors"
)

// AuditStore: the durable side of quota tracking. Satisfied by *Repository.
type AuditStore interface {
	InsertUsageRecord(ctx context.Context, record *domain.UsageRecord) error
	InsertAlert(ctx context.Context, alert *domain.Alert) error
	UpsertDailySummary(ctx context.Context, summary *domain.DailySummary) error
}

// AlertListener: receives every threshold alert the governor emits.
type AlertListener func(alert domain.Alert)

// Governor: admission control for the shared daily API budget.
//
// The Valkey ledger is the single source of truth for the running total;
// Postgres only receives the audit trail, asynchronously, so a slow database
// never delays API calls. Admission checks fail closed: if the ledger cannot
// be read, nothing is approved.
type Governor struct {
	ledger *Ledger
	audit  AuditStore
	cfg    config.QuotaConfig
	logger *slog.Logger

	persistPool *pool.Pool
	closeOnce   sync.Once

	mu        sync.RWMutex
	listeners []AlertListener
}

// NewGovernor: creates the quota governor.
func NewGovernor(ledger *Ledger, audit AuditStore, cfg config.QuotaConfig, logger *slog.Logger) *Governor {
	return &Governor{
		ledger:      ledger,
		audit:       audit,
		cfg:         cfg,
		logger:      logger,
		persistPool: pool.New().WithMaxGoroutines(4),
	}
}

// AddAlertListener: registers a listener for threshold alerts.
func (g *Governor) AddAlertListener(listener AlertListener) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.listeners = append(g.listeners, listener)
}

// Status: the current quota picture (usage, remaining, level, reset time).
func (g *Governor) Status(ctx context.Context) (*domain.QuotaStatus, error) {
	usage, err := g.ledger.CurrentUsage(ctx)
	if err != nil {
		return nil, err
	}
	emergency, err := g.ledger.IsEmergencyMode(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	pct := percentage(usage, g.cfg.DailyLimit)

	return &domain.QuotaStatus{
		CurrentUsage:    usage,
		Limit:           g.cfg.DailyLimit,
		Remaining:       util.MaxInt64(g.cfg.DailyLimit-usage, 0),
		PercentageUsed:  pct,
		AlertLevel:      g.levelFor(pct, emergency),
		ResetTime:       util.NextPacificMidnight(now),
		IsEmergencyMode: emergency,
		LastUpdated:     now,
	}, nil
}

// CheckAvailable: reports whether cost units can be spent right now.
// Fails closed on ledger errors and refuses everything in emergency mode.
func (g *Governor) CheckAvailable(ctx context.Context, cost int64) error {
	emergency, err := g.ledger.IsEmergencyMode(ctx)
	if err != nil {
		return err
	}
	if emergency {
		return errs.NewQuotaRefusedError("check", cost, 0, "emergency mode active")
	}

	usage, err := g.ledger.CurrentUsage(ctx)
	if err != nil {
		return err
	}
	remaining := g.cfg.DailyLimit - usage
	if cost > remaining {
		return errs.NewQuotaRefusedError("check", cost, util.MaxInt64(remaining, 0), "daily budget exhausted")
	}
	return nil
}

// TrackOptions: attribution attached to a tracked operation.
type TrackOptions struct {
	BandID       *int64
	BandName     string
	JobID        string
	Success      bool
	CacheHit     bool
	ErrorMessage string
	Metadata     map[string]any
}

// TrackOperation: records one API call against the budget.
//
// Only confirmed successful, non-cached calls cost quota. Cache hits and
// failed calls are recorded for the audit trail at zero cost and never touch
// the ledger. Successful calls are consumed atomically; threshold crossings
// detected from the atomic increment fire exactly one alert per threshold
// per day.
func (g *Governor) TrackOperation(ctx context.Context, op domain.OperationKind, opts TrackOptions) error {
	cost := Cost(op)
	if opts.CacheHit || !opts.Success {
		cost = 0
	}

	var newTotal, prevTotal int64
	if cost > 0 {
		var err error
		newTotal, prevTotal, err = g.ledger.Consume(ctx, cost)
		if err != nil {
			return err
		}
	}

	record := &domain.UsageRecord{
		ID:           uuid.NewString(),
		Operation:    op,
		Cost:         cost,
		Timestamp:    time.Now(),
		BandID:       opts.BandID,
		BandName:     opts.BandName,
		JobID:        opts.JobID,
		Success:      opts.Success,
		CacheHit:     opts.CacheHit,
		ErrorMessage: opts.ErrorMessage,
		Metadata:     opts.Metadata,
	}
	g.persistAsync(record)

	if cost > 0 {
		if err := g.emitCrossings(ctx, prevTotal, newTotal); err != nil {
			return err
		}
	}

	return nil
}

// persistAsync: writes the usage record off the hot path. A failed write is
// logged and dropped; the ledger already holds the authoritative count.
func (g *Governor) persistAsync(record *domain.UsageRecord) {
	g.persistPool.Go(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := g.audit.InsertUsageRecord(ctx, record); err != nil {
			g.logger.Error("Failed to persist usage record",
				slog.String("operation", string(record.Operation)),
				slog.Any("error", err),
			)
		}
	})
}

type thresholdLevel struct {
	threshold float64
	level     domain.AlertLevel
}

func (g *Governor) thresholds() []thresholdLevel {
	return []thresholdLevel{
		{g.cfg.WarningThreshold, domain.AlertLevelWarning},
		{g.cfg.CriticalThreshold, domain.AlertLevelCritical},
		{g.cfg.DepletedThreshold, domain.AlertLevelDepleted},
		{g.cfg.EmergencyThreshold, domain.AlertLevelEmergency},
	}
}

// emitCrossings: fires an alert for every threshold inside (prev, new].
// The interval comes from the atomic increment, so concurrent consumers
// cannot double-fire the same threshold. Crossing the emergency boundary
// also flips the emergency flag before the alert goes out, so no approval
// can slip through between the crossing and the activation.
func (g *Governor) emitCrossings(ctx context.Context, prevTotal, newTotal int64) error {
	prevPct := percentage(prevTotal, g.cfg.DailyLimit)
	newPct := percentage(newTotal, g.cfg.DailyLimit)

	for _, tl := range g.thresholds() {
		boundary := tl.threshold * 100
		if prevPct < boundary && newPct >= boundary {
			if tl.level == domain.AlertLevelEmergency {
				if err := g.ledger.ActivateEmergency(ctx, g.cfg.EmergencyTTL); err != nil {
					return fmt.Errorf("activate emergency mode: %w", err)
				}
			}
			g.raiseAlert(tl.level, newTotal, newPct)
		}
	}

	return nil
}

func (g *Governor) raiseAlert(level domain.AlertLevel, usage int64, pct float64) {
	alert := domain.Alert{
		ID:          uuid.NewString(),
		Level:       level,
		Message:     fmt.Sprintf("quota usage reached %.1f%% (%d/%d units)", pct, usage, g.cfg.DailyLimit),
		UsageAtTime: usage,
		Timestamp:   time.Now(),
	}

	g.logger.Warn("Quota threshold crossed",
		slog.String("level", string(level)),
		slog.Int64("usage", usage),
		slog.Float64("percentage", pct),
	)

	alertCopy := alert
	g.persistPool.Go(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := g.audit.InsertAlert(ctx, &alertCopy); err != nil {
			g.logger.Error("Failed to persist alert", slog.Any("error", err))
		}
	})

	g.mu.RLock()
	listeners := make([]AlertListener, len(g.listeners))
	copy(listeners, g.listeners)
	g.mu.RUnlock()

	for _, listener := range listeners {
		listener(alert)
	}
}

// ApprovalRequest: a sync job asking for budget.
type ApprovalRequest struct {
	JobID         string
	BandID        int64
	Priority      domain.Priority
	EstimatedCost int64
	ForceApprove  bool
}

// ApproveSyncJob: decides whether a sync job may run.
//
// The job's priority tier is granted a fixed share of whatever remains today.
// Critical jobs whose slice is too small may borrow the full remainder.
// ForceApprove is an operator override that skips the slice check but never
// emergency mode: a forced job still cannot run while the kill switch is on.
func (g *Governor) ApproveSyncJob(ctx context.Context, req ApprovalRequest) (*domain.AllocationPlan, error) {
	emergency, err := g.ledger.IsEmergencyMode(ctx)
	if err != nil {
		return nil, err
	}

	plan := &domain.AllocationPlan{
		JobID:         req.JobID,
		BandID:        req.BandID,
		Priority:      req.Priority,
		EstimatedCost: req.EstimatedCost,
		Timestamp:     time.Now(),
	}

	if emergency {
		plan.Reason = "emergency mode active"
		g.logApproval(plan)
		return plan, nil
	}

	usage, err := g.ledger.CurrentUsage(ctx)
	if err != nil {
		return nil, err
	}
	remaining := util.MaxInt64(g.cfg.DailyLimit-usage, 0)

	// The allocated slice is always remaining * share, whatever the verdict.
	slice := int64(priorityShare(req.Priority) * float64(remaining))
	plan.AllocatedQuota = slice

	if req.EstimatedCost > remaining {
		plan.Reason = fmt.Sprintf("estimated cost %d exceeds remaining budget %d", req.EstimatedCost, remaining)
		g.logApproval(plan)
		return plan, nil
	}

	if req.ForceApprove {
		plan.Approved = true
		plan.Reason = "force approved by operator"
		g.logApproval(plan)
		return plan, nil
	}

	switch {
	case req.EstimatedCost <= slice:
		plan.Approved = true
		plan.Reason = fmt.Sprintf("within %s tier slice (%d units)", req.Priority, slice)
	case req.Priority == domain.PriorityCritical:
		// Critical work may borrow past its slice, up to the full remainder.
		plan.Approved = true
		plan.Reason = fmt.Sprintf("critical tier borrowed past slice (%d of %d remaining)", req.EstimatedCost, remaining)
	default:
		plan.Reason = fmt.Sprintf("estimated cost %d exceeds %s tier slice (%d units)", req.EstimatedCost, req.Priority, slice)
	}

	g.logApproval(plan)
	return plan, nil
}

func (g *Governor) logApproval(plan *domain.AllocationPlan) {
	g.logger.Info("Sync job approval decision",
		slog.String("job_id", plan.JobID),
		slog.Int64("band_id", plan.BandID),
		slog.String("priority", string(plan.Priority)),
		slog.Int64("estimated_cost", plan.EstimatedCost),
		slog.Bool("approved", plan.Approved),
		slog.String("reason", plan.Reason),
	)
}

func priorityShare(p domain.Priority) float64 {
	switch p {
	case domain.PriorityCritical:
		return constants.PriorityShares.Critical
	case domain.PriorityHigh:
		return constants.PriorityShares.High
	case domain.PriorityMedium:
		return constants.PriorityShares.Medium
	default:
		return constants.PriorityShares.Low
	}
}

// ActivateEmergency: raises the kill switch. All approvals and availability
// checks refuse until deactivated or the TTL failsafe clears the flag.
func (g *Governor) ActivateEmergency(ctx context.Context) error {
	return g.ledger.ActivateEmergency(ctx, g.cfg.EmergencyTTL)
}

// DeactivateEmergency: clears the kill switch.
func (g *Governor) DeactivateEmergency(ctx context.Context) error {
	return g.ledger.DeactivateEmergency(ctx)
}

// PerformDailyReset: archives the finished quota day and records the rollover.
// Usage keys are date-scoped, so the running counter rolls over by itself;
// this archives yesterday's total into the summary table and stamps the reset
// so a restart can tell whether the boundary was already handled.
func (g *Governor) PerformDailyReset(ctx context.Context) error {
	now := time.Now()
	yesterdayKey := util.PacificDateKey(util.ToPacific(now).AddDate(0, 0, -1))

	usage, err := g.ledger.UsageFor(ctx, yesterdayKey)
	if err != nil {
		return err
	}

	summary := &domain.DailySummary{
		Date:           yesterdayKey,
		TotalUsage:     usage,
		Limit:          g.cfg.DailyLimit,
		PercentageUsed: percentage(usage, g.cfg.DailyLimit),
	}
	if err := g.audit.UpsertDailySummary(ctx, summary); err != nil {
		return err
	}

	if err := g.ledger.MarkReset(ctx); err != nil {
		return err
	}
	if err := g.ledger.ExpireUsage(ctx, yesterdayKey, 48*time.Hour); err != nil {
		g.logger.Warn("Failed to expire archived usage counter",
			slog.String("date", yesterdayKey),
			slog.Any("error", err),
		)
	}

	g.logger.Info("Daily quota reset complete",
		slog.String("archived_date", yesterdayKey),
		slog.Int64("archived_usage", usage),
	)
	return nil
}

// LastResetDate: exposes the ledger's recorded reset date for reconciliation.
func (g *Governor) LastResetDate(ctx context.Context) (string, error) {
	return g.ledger.LastResetDate(ctx)
}

// Close: drains the async persistence pool. Safe to call more than once, but
// no operations may be tracked afterwards.
func (g *Governor) Close() {
	g.closeOnce.Do(g.persistPool.Wait)
}

func (g *Governor) levelFor(pct float64, emergency bool) domain.AlertLevel {
	if emergency {
		return domain.AlertLevelEmergency
	}
	switch {
	case pct >= g.cfg.EmergencyThreshold*100:
		return domain.AlertLevelEmergency
	case pct >= g.cfg.DepletedThreshold*100:
		return domain.AlertLevelDepleted
	case pct >= g.cfg.CriticalThreshold*100:
		return domain.AlertLevelCritical
	case pct >= g.cfg.WarningThreshold*100:
		return domain.AlertLevelWarning
	default:
		return domain.AlertLevelNormal
	}
}

func percentage(usage, limit int64) float64 {
	if limit <= 0 {
		return 0
	}
	return float64(usage) / float64(limit) * 100
}
