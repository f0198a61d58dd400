package quota

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/valkey-io/valkey-go"

	"github.com/kapu/bandhub-sync-go/internal/service/cache"
	"github.com/kapu/bandhub-sync-go/internal/util"
)

func newTestLedger(t *testing.T) (*Ledger, *miniredis.Miniredis) {
	t.Helper()

	mini := miniredis.RunT(t)
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress:       []string{mini.Addr()},
		DisableCache:      true,
		DisableRetry:      true,
		ForceSingleClient: true,
	})
	if err != nil {
		t.Fatalf("failed to create valkey client: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := cache.NewWithClient(client, logger)

	t.Cleanup(func() {
		_ = svc.Close()
		mini.Close()
	})

	return NewLedger(svc, logger), mini
}

func TestLedgerConsumeReturnsDisjointIntervals(t *testing.T) {
	ledger, _ := newTestLedger(t)
	ctx := context.Background()

	newTotal, prevTotal, err := ledger.Consume(ctx, 100)
	if err != nil {
		t.Fatalf("consume failed: %v", err)
	}
	if prevTotal != 0 || newTotal != 100 {
		t.Fatalf("first consume = (%d, %d), expected (100, 0)", newTotal, prevTotal)
	}

	newTotal, prevTotal, err = ledger.Consume(ctx, 7)
	if err != nil {
		t.Fatalf("second consume failed: %v", err)
	}
	if prevTotal != 100 || newTotal != 107 {
		t.Fatalf("second consume = (%d, %d), expected (107, 100)", newTotal, prevTotal)
	}

	usage, err := ledger.CurrentUsage(ctx)
	if err != nil {
		t.Fatalf("current usage failed: %v", err)
	}
	if usage != 107 {
		t.Fatalf("current usage = %d, expected 107", usage)
	}
}

func TestLedgerFailsClosedWhenStoreIsDown(t *testing.T) {
	ledger, mini := newTestLedger(t)
	ctx := context.Background()

	mini.Close()

	if _, _, err := ledger.Consume(ctx, 1); err == nil {
		t.Fatal("expected consume to fail when store is unreachable")
	}
	if _, err := ledger.CurrentUsage(ctx); err == nil {
		t.Fatal("expected usage read to fail when store is unreachable")
	}
	if _, err := ledger.IsEmergencyMode(ctx); err == nil {
		t.Fatal("expected emergency check to fail when store is unreachable")
	}
}

func TestLedgerEmergencyFlag(t *testing.T) {
	ledger, mini := newTestLedger(t)
	ctx := context.Background()

	emergency, err := ledger.IsEmergencyMode(ctx)
	if err != nil {
		t.Fatalf("emergency check failed: %v", err)
	}
	if emergency {
		t.Fatal("expected emergency mode off initially")
	}

	if err := ledger.ActivateEmergency(ctx, time.Hour); err != nil {
		t.Fatalf("activate failed: %v", err)
	}
	emergency, err = ledger.IsEmergencyMode(ctx)
	if err != nil {
		t.Fatalf("emergency check failed: %v", err)
	}
	if !emergency {
		t.Fatal("expected emergency mode on after activation")
	}

	// The TTL failsafe clears a forgotten flag.
	mini.FastForward(2 * time.Hour)
	emergency, err = ledger.IsEmergencyMode(ctx)
	if err != nil {
		t.Fatalf("emergency check failed: %v", err)
	}
	if emergency {
		t.Fatal("expected emergency flag to expire via TTL")
	}

	if err := ledger.ActivateEmergency(ctx, time.Hour); err != nil {
		t.Fatalf("activate failed: %v", err)
	}
	if err := ledger.DeactivateEmergency(ctx); err != nil {
		t.Fatalf("deactivate failed: %v", err)
	}
	emergency, err = ledger.IsEmergencyMode(ctx)
	if err != nil {
		t.Fatalf("emergency check failed: %v", err)
	}
	if emergency {
		t.Fatal("expected emergency mode off after deactivation")
	}
}

func TestLedgerResetAndMarkReset(t *testing.T) {
	ledger, _ := newTestLedger(t)
	ctx := context.Background()

	if _, _, err := ledger.Consume(ctx, 500); err != nil {
		t.Fatalf("consume failed: %v", err)
	}

	if err := ledger.Reset(ctx); err != nil {
		t.Fatalf("reset failed: %v", err)
	}

	usage, err := ledger.CurrentUsage(ctx)
	if err != nil {
		t.Fatalf("usage read failed: %v", err)
	}
	if usage != 0 {
		t.Fatalf("usage after reset = %d, expected 0", usage)
	}

	date, err := ledger.LastResetDate(ctx)
	if err != nil {
		t.Fatalf("last reset date failed: %v", err)
	}
	if date != util.PacificDateKey(time.Now()) {
		t.Fatalf("last reset date = %q, expected today's Pacific date", date)
	}

	// MarkReset stamps the date without touching the counter.
	if _, _, err := ledger.Consume(ctx, 42); err != nil {
		t.Fatalf("consume failed: %v", err)
	}
	if err := ledger.MarkReset(ctx); err != nil {
		t.Fatalf("markreset failed: %v", err)
	}
	usage, err = ledger.CurrentUsage(ctx)
	if err != nil {
		t.Fatalf("usage read failed: %v", err)
	}
	if usage != 42 {
		t.Fatalf("usage after markreset = %d, expected 42", usage)
	}
}
