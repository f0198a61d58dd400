package quota

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/kapu/bandhub-sync-go/internal/config"
	"github.com/kapu/bandhub-sync-go/internal/domain"
	errs "github.com/kapu/bandhub-sync-go/pkg/errors"
)

type fakeAuditStore struct {
	mu        sync.Mutex
	records   []*domain.UsageRecord
	alerts    []*domain.Alert
	summaries []*domain.DailySummary
}

func (f *fakeAuditStore) InsertUsageRecord(_ context.Context, record *domain.UsageRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, record)
	return nil
}

func (f *fakeAuditStore) InsertAlert(_ context.Context, alert *domain.Alert) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts = append(f.alerts, alert)
	return nil
}

func (f *fakeAuditStore) UpsertDailySummary(_ context.Context, summary *domain.DailySummary) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.summaries = append(f.summaries, summary)
	return nil
}

func (f *fakeAuditStore) alertLevels() []domain.AlertLevel {
	f.mu.Lock()
	defer f.mu.Unlock()
	levels := make([]domain.AlertLevel, 0, len(f.alerts))
	for _, alert := range f.alerts {
		levels = append(levels, alert.Level)
	}
	return levels
}

func testQuotaConfig() config.QuotaConfig {
	return config.QuotaConfig{
		DailyLimit:         10000,
		WarningThreshold:   0.50,
		CriticalThreshold:  0.75,
		DepletedThreshold:  0.90,
		EmergencyThreshold: 0.95,
		EmergencyTTL:       24 * time.Hour,
	}
}

func newTestGovernor(t *testing.T) (*Governor, *fakeAuditStore) {
	t.Helper()

	ledger, _ := newTestLedger(t)
	audit := &fakeAuditStore{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	gov := NewGovernor(ledger, audit, testQuotaConfig(), logger)

	t.Cleanup(gov.Close)
	return gov, audit
}

func TestGovernorStatus(t *testing.T) {
	gov, _ := newTestGovernor(t)
	ctx := context.Background()

	for i := 0; i < 52; i++ {
		if err := gov.TrackOperation(ctx, domain.OpSearch, TrackOptions{Success: true}); err != nil {
			t.Fatalf("track failed: %v", err)
		}
	}
	gov.Close() // drain async writes

	status, err := gov.Status(ctx)
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if status.CurrentUsage != 5200 {
		t.Fatalf("usage = %d, expected 5200", status.CurrentUsage)
	}
	if status.Remaining != 4800 {
		t.Fatalf("remaining = %d, expected 4800", status.Remaining)
	}
	if status.AlertLevel != domain.AlertLevelWarning {
		t.Fatalf("level = %s, expected warning", status.AlertLevel)
	}
	if !status.ResetTime.After(time.Now()) {
		t.Fatalf("reset time %v not in the future", status.ResetTime)
	}
}

func TestGovernorTrackOperationCrossesEachThresholdOnce(t *testing.T) {
	gov, audit := newTestGovernor(t)
	ctx := context.Background()

	// 100 searches push usage from 0 to 10000, crossing every threshold.
	for i := 0; i < 100; i++ {
		if err := gov.TrackOperation(ctx, domain.OpSearch, TrackOptions{Success: true}); err != nil {
			t.Fatalf("track %d failed: %v", i, err)
		}
	}
	gov.Close()

	levels := audit.alertLevels()
	if len(levels) != 4 {
		t.Fatalf("expected 4 alerts, got %d (%v)", len(levels), levels)
	}
	expected := []domain.AlertLevel{
		domain.AlertLevelWarning,
		domain.AlertLevelCritical,
		domain.AlertLevelDepleted,
		domain.AlertLevelEmergency,
	}
	for i, level := range expected {
		if levels[i] != level {
			t.Fatalf("alert %d = %s, expected %s", i, levels[i], level)
		}
	}
}

func TestGovernorTrackOperationCacheHitIsFree(t *testing.T) {
	gov, audit := newTestGovernor(t)
	ctx := context.Background()

	if err := gov.TrackOperation(ctx, domain.OpVideosList, TrackOptions{Success: true, CacheHit: true}); err != nil {
		t.Fatalf("track failed: %v", err)
	}
	gov.Close()

	status, err := gov.Status(ctx)
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if status.CurrentUsage != 0 {
		t.Fatalf("cache hit consumed quota: usage = %d", status.CurrentUsage)
	}

	audit.mu.Lock()
	defer audit.mu.Unlock()
	if len(audit.records) != 1 {
		t.Fatalf("expected 1 audit record, got %d", len(audit.records))
	}
	if audit.records[0].Cost != 0 || !audit.records[0].CacheHit {
		t.Fatalf("unexpected record: %+v", audit.records[0])
	}
}

func TestGovernorTrackOperationFailedCallIsNotCharged(t *testing.T) {
	gov, audit := newTestGovernor(t)
	ctx := context.Background()

	err := gov.TrackOperation(ctx, domain.OpSearch, TrackOptions{
		Success:      false,
		ErrorMessage: "quotaExceeded",
	})
	if err != nil {
		t.Fatalf("track failed: %v", err)
	}
	gov.Close()

	status, err := gov.Status(ctx)
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if status.CurrentUsage != 0 {
		t.Fatalf("failed call consumed quota: usage = %d", status.CurrentUsage)
	}

	audit.mu.Lock()
	defer audit.mu.Unlock()
	if len(audit.records) != 1 {
		t.Fatalf("expected 1 audit record, got %d", len(audit.records))
	}
	if audit.records[0].Cost != 0 || audit.records[0].Success {
		t.Fatalf("unexpected record: %+v", audit.records[0])
	}
}

func TestGovernorCheckAvailable(t *testing.T) {
	gov, _ := newTestGovernor(t)
	ctx := context.Background()

	if err := gov.CheckAvailable(ctx, 9999); err != nil {
		t.Fatalf("expected availability, got %v", err)
	}

	for i := 0; i < 99; i++ {
		if err := gov.TrackOperation(ctx, domain.OpSearch, TrackOptions{Success: true}); err != nil {
			t.Fatalf("track failed: %v", err)
		}
	}

	// Crossing 95% flipped the emergency flag; clear it so the remaining
	// budget math is what decides below.
	if err := gov.DeactivateEmergency(ctx); err != nil {
		t.Fatalf("deactivate failed: %v", err)
	}

	err := gov.CheckAvailable(ctx, 200)
	if err == nil {
		t.Fatal("expected refusal near the limit")
	}
	var refused *errs.QuotaRefusedError
	if !errors.As(err, &refused) {
		t.Fatalf("expected QuotaRefusedError, got %T: %v", err, err)
	}
	if refused.Remaining != 100 {
		t.Fatalf("remaining = %d, expected 100", refused.Remaining)
	}

	if err := gov.CheckAvailable(ctx, 100); err != nil {
		t.Fatalf("expected exact-fit cost to pass, got %v", err)
	}
}

func TestGovernorEmergencyModeRefusesEverything(t *testing.T) {
	gov, _ := newTestGovernor(t)
	ctx := context.Background()

	if err := gov.ActivateEmergency(ctx); err != nil {
		t.Fatalf("activate failed: %v", err)
	}

	if err := gov.CheckAvailable(ctx, 1); err == nil {
		t.Fatal("expected refusal in emergency mode")
	}

	plan, err := gov.ApproveSyncJob(ctx, ApprovalRequest{
		JobID:         "job-1",
		Priority:      domain.PriorityCritical,
		EstimatedCost: 1,
		ForceApprove:  true,
	})
	if err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	if plan.Approved {
		t.Fatal("force approval must not bypass emergency mode")
	}

	if err := gov.DeactivateEmergency(ctx); err != nil {
		t.Fatalf("deactivate failed: %v", err)
	}
	if err := gov.CheckAvailable(ctx, 1); err != nil {
		t.Fatalf("expected availability after deactivation, got %v", err)
	}
}

func TestGovernorEmergencyActivatesOnThresholdCrossing(t *testing.T) {
	gov, _ := newTestGovernor(t)
	ctx := context.Background()

	// 96 searches push usage to 9600, past the 95% boundary.
	for i := 0; i < 96; i++ {
		if err := gov.TrackOperation(ctx, domain.OpSearch, TrackOptions{Success: true}); err != nil {
			t.Fatalf("track failed: %v", err)
		}
	}

	status, err := gov.Status(ctx)
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if !status.IsEmergencyMode {
		t.Fatal("crossing the emergency threshold must activate emergency mode")
	}

	plan, err := gov.ApproveSyncJob(ctx, ApprovalRequest{
		JobID: "job-e", Priority: domain.PriorityCritical, EstimatedCost: 100,
	})
	if err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	if plan.Approved {
		t.Fatalf("critical job approved past the emergency threshold: %+v", plan)
	}
}

func TestGovernorApproveSyncJobSlices(t *testing.T) {
	gov, _ := newTestGovernor(t)
	ctx := context.Background()

	// Burn half the budget so remaining = 5000.
	for i := 0; i < 50; i++ {
		if err := gov.TrackOperation(ctx, domain.OpSearch, TrackOptions{Success: true}); err != nil {
			t.Fatalf("track failed: %v", err)
		}
	}

	t.Run("within tier slice approves", func(t *testing.T) {
		// Medium slice = 20% of 5000 = 1000.
		plan, err := gov.ApproveSyncJob(ctx, ApprovalRequest{
			JobID: "job-m", Priority: domain.PriorityMedium, EstimatedCost: 900,
		})
		if err != nil {
			t.Fatalf("approve failed: %v", err)
		}
		if !plan.Approved || plan.AllocatedQuota != 1000 {
			t.Fatalf("unexpected plan: %+v", plan)
		}
	})

	t.Run("over tier slice rejects", func(t *testing.T) {
		plan, err := gov.ApproveSyncJob(ctx, ApprovalRequest{
			JobID: "job-m2", Priority: domain.PriorityMedium, EstimatedCost: 1100,
		})
		if err != nil {
			t.Fatalf("approve failed: %v", err)
		}
		if plan.Approved {
			t.Fatalf("expected rejection, got %+v", plan)
		}
		if plan.AllocatedQuota != 1000 {
			t.Fatalf("refusal must still report the tier slice, got %d", plan.AllocatedQuota)
		}
	})

	t.Run("critical borrows past its slice", func(t *testing.T) {
		// Critical slice = 30% of 5000 = 1500; cost 4000 still fits remaining.
		plan, err := gov.ApproveSyncJob(ctx, ApprovalRequest{
			JobID: "job-c", Priority: domain.PriorityCritical, EstimatedCost: 4000,
		})
		if err != nil {
			t.Fatalf("approve failed: %v", err)
		}
		if !plan.Approved {
			t.Fatalf("expected critical borrow approval, got %+v", plan)
		}
	})

	t.Run("nothing exceeds the remaining budget", func(t *testing.T) {
		plan, err := gov.ApproveSyncJob(ctx, ApprovalRequest{
			JobID: "job-x", Priority: domain.PriorityCritical, EstimatedCost: 6000, ForceApprove: true,
		})
		if err != nil {
			t.Fatalf("approve failed: %v", err)
		}
		if plan.Approved {
			t.Fatalf("expected rejection beyond remaining budget, got %+v", plan)
		}
	})

	t.Run("force approve bypasses the slice check", func(t *testing.T) {
		plan, err := gov.ApproveSyncJob(ctx, ApprovalRequest{
			JobID: "job-f", Priority: domain.PriorityLow, EstimatedCost: 3000, ForceApprove: true,
		})
		if err != nil {
			t.Fatalf("approve failed: %v", err)
		}
		if !plan.Approved {
			t.Fatalf("expected force approval, got %+v", plan)
		}
	})
}

func TestGovernorAlertListeners(t *testing.T) {
	gov, _ := newTestGovernor(t)
	ctx := context.Background()

	var mu sync.Mutex
	var received []domain.Alert
	gov.AddAlertListener(func(alert domain.Alert) {
		mu.Lock()
		defer mu.Unlock()
		received = append(received, alert)
	})

	for i := 0; i < 51; i++ {
		if err := gov.TrackOperation(ctx, domain.OpSearch, TrackOptions{Success: true}); err != nil {
			t.Fatalf("track failed: %v", err)
		}
	}
	gov.Close()

	mu.Lock()
	defer mu.Unlock()
	if len(received) != 1 {
		t.Fatalf("expected 1 listener alert, got %d", len(received))
	}
	if received[0].Level != domain.AlertLevelWarning {
		t.Fatalf("level = %s, expected warning", received[0].Level)
	}
}

func TestGovernorPerformDailyReset(t *testing.T) {
	gov, audit := newTestGovernor(t)
	ctx := context.Background()

	if err := gov.PerformDailyReset(ctx); err != nil {
		t.Fatalf("reset failed: %v", err)
	}

	audit.mu.Lock()
	defer audit.mu.Unlock()
	if len(audit.summaries) != 1 {
		t.Fatalf("expected 1 archived summary, got %d", len(audit.summaries))
	}
	if audit.summaries[0].Limit != 10000 {
		t.Fatalf("unexpected summary: %+v", audit.summaries[0])
	}

	date, err := gov.LastResetDate(ctx)
	if err != nil {
		t.Fatalf("last reset date failed: %v", err)
	}
	if date == "" {
		t.Fatal("expected reset date to be stamped")
	}
}
