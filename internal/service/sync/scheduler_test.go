package sync

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/kapu/bandhub-sync-go/internal/config"
	"github.com/kapu/bandhub-sync-go/internal/domain"
	"github.com/kapu/bandhub-sync-go/internal/service/quota"
)

func newTestScheduler(t *testing.T, h *harness) *Scheduler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewScheduler(h.orchestrator, h.catalog, h.governor, config.SyncConfig{
		Enabled:         true,
		Interval:        12 * time.Hour,
		BudgetFloor:     200,
		MaxJobsPerCycle: 20,
	}, logger)
}

func TestRunCycleSyncsStaleBands(t *testing.T) {
	source := channelSource(10)
	h := newHarness(t, source)
	scheduler := newTestScheduler(t, h)
	band := seedBand(t, h, &domain.Band{
		ID: 1, Slug: "storm", Name: "Marching Storm", Active: true,
		ChannelID: strPtr("UC123"),
	})

	scheduler.RunCycle(context.Background())

	updated, err := h.catalog.GetBand(context.Background(), band.ID)
	if err != nil {
		t.Fatalf("get band failed: %v", err)
	}
	if updated.LastSyncedAt == nil {
		t.Fatal("cycle did not sync the stale band")
	}

	jobs, err := h.jobs.List(context.Background(), domain.JobStatusCompleted, 10)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("completed jobs = %d, expected 1", len(jobs))
	}
}

func TestRunCycleSkipsInEmergencyMode(t *testing.T) {
	source := channelSource(10)
	h := newHarness(t, source)
	scheduler := newTestScheduler(t, h)
	seedBand(t, h, &domain.Band{
		ID: 1, Slug: "storm", Name: "Marching Storm", Active: true,
		ChannelID: strPtr("UC123"),
	})

	if err := h.governor.ActivateEmergency(context.Background()); err != nil {
		t.Fatalf("activate failed: %v", err)
	}

	scheduler.RunCycle(context.Background())

	if source.resolveCalls != 0 {
		t.Fatal("cycle must not touch the API in emergency mode")
	}
	jobs, err := h.jobs.List(context.Background(), "", 10)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(jobs) != 0 {
		t.Fatalf("jobs = %d, expected none", len(jobs))
	}
}

func TestRunCycleSkipsBelowBudgetFloor(t *testing.T) {
	source := channelSource(10)
	h := newHarness(t, source)
	scheduler := newTestScheduler(t, h)
	seedBand(t, h, &domain.Band{
		ID: 1, Slug: "storm", Name: "Marching Storm", Active: true,
		ChannelID: strPtr("UC123"),
	})

	// Burn the budget down to 100 remaining, below the 200 floor. The burn
	// crosses the emergency boundary too; clear that so the floor check is
	// the one under test.
	ctx := context.Background()
	for i := 0; i < 99; i++ {
		if err := h.governor.TrackOperation(ctx, domain.OpSearch, quota.TrackOptions{Success: true}); err != nil {
			t.Fatalf("track failed: %v", err)
		}
	}
	if err := h.governor.DeactivateEmergency(ctx); err != nil {
		t.Fatalf("deactivate failed: %v", err)
	}

	scheduler.RunCycle(ctx)

	if source.resolveCalls != 0 {
		t.Fatal("cycle must not run below the budget floor")
	}
}

func TestRunCycleAbortsMidCycleBelowFloor(t *testing.T) {
	source := channelSource(10)
	h := newHarness(t, source)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	scheduler := NewScheduler(h.orchestrator, h.catalog, h.governor, config.SyncConfig{
		Enabled:         true,
		Interval:        12 * time.Hour,
		BudgetFloor:     2000,
		MaxJobsPerCycle: 20,
	}, logger)
	seedBand(t, h, &domain.Band{
		ID: 1, Slug: "storm", Name: "Marching Storm", Active: true,
		ChannelID: strPtr("UC123"),
	})
	seedBand(t, h, &domain.Band{
		ID: 2, Slug: "sonic", Name: "Sonic Boom", Active: true,
		ChannelID: strPtr("UC123"),
	})

	// The first band's sync drains the budget under the floor, so the
	// second band must never reach the API.
	ctx := context.Background()
	source.onResolve = func() {
		for i := 0; i < 81; i++ {
			if err := h.governor.TrackOperation(ctx, domain.OpSearch, quota.TrackOptions{Success: true}); err != nil {
				t.Errorf("track failed: %v", err)
			}
		}
		source.onResolve = nil
	}

	scheduler.RunCycle(ctx)

	if source.resolveCalls != 1 {
		t.Fatalf("resolve calls = %d, expected the cycle to stop after the first band", source.resolveCalls)
	}
}

func TestRunCycleAbortsMidCycleOnEmergency(t *testing.T) {
	source := channelSource(10)
	h := newHarness(t, source)
	scheduler := newTestScheduler(t, h)
	seedBand(t, h, &domain.Band{
		ID: 1, Slug: "storm", Name: "Marching Storm", Active: true,
		ChannelID: strPtr("UC123"),
	})
	seedBand(t, h, &domain.Band{
		ID: 2, Slug: "sonic", Name: "Sonic Boom", Active: true,
		ChannelID: strPtr("UC123"),
	})

	ctx := context.Background()
	source.onResolve = func() {
		if err := h.governor.ActivateEmergency(ctx); err != nil {
			t.Errorf("activate failed: %v", err)
		}
		source.onResolve = nil
	}

	scheduler.RunCycle(ctx)

	if source.resolveCalls != 1 {
		t.Fatalf("resolve calls = %d, expected the cycle to stop after the first band", source.resolveCalls)
	}
}

func TestRunCycleSingleFlight(t *testing.T) {
	source := channelSource(10)
	h := newHarness(t, source)
	scheduler := newTestScheduler(t, h)
	seedBand(t, h, &domain.Band{
		ID: 1, Slug: "storm", Name: "Marching Storm", Active: true,
		ChannelID: strPtr("UC123"),
	})

	scheduler.running.Store(true)
	scheduler.RunCycle(context.Background())

	if source.resolveCalls != 0 {
		t.Fatal("overlapping cycle must be skipped")
	}
	scheduler.running.Store(false)
}
