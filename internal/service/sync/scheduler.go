package sync

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/kapu/bandhub-sync-go/internal/config"
	"github.com/kapu/bandhub-sync-go/internal/constants"
	"github.com/kapu/bandhub-sync-go/internal/domain"
	"github.com/kapu/bandhub-sync-go/internal/service/catalog"
	"github.com/kapu/bandhub-sync-go/internal/service/quota"
	"github.com/kapu/bandhub-sync-go/internal/util"
)

// Scheduler: runs periodic sync cycles and the daily quota rollover.
//
// A cycle walks the stalest active bands and syncs each in turn, pacing the
// walk with a rate limiter so a long cycle never bursts the upstream API. A
// single-flight flag guarantees that overlapping ticks (or a manual trigger
// during a cycle) cannot run two cycles at once.
type Scheduler struct {
	orchestrator *Orchestrator
	catalog      *catalog.Repository
	governor     *quota.Governor
	cfg          config.SyncConfig
	logger       *slog.Logger

	ticker  *time.Ticker
	stopCh  chan struct{}
	running atomic.Bool
	limiter *rate.Limiter
}

// NewScheduler: creates the sync scheduler.
func NewScheduler(
	orchestrator *Orchestrator,
	catalogRepo *catalog.Repository,
	governor *quota.Governor,
	cfg config.SyncConfig,
	logger *slog.Logger,
) *Scheduler {
	return &Scheduler{
		orchestrator: orchestrator,
		catalog:      catalogRepo,
		governor:     governor,
		cfg:          cfg,
		logger:       logger,
		stopCh:       make(chan struct{}),
		limiter:      rate.NewLimiter(rate.Every(constants.SyncDefaults.InterBandInterval), 1),
	}
}

// Start: launches the cycle loop and the daily rollover loop.
func (s *Scheduler) Start(ctx context.Context) {
	s.reconcileReset(ctx)

	if !s.cfg.Enabled {
		s.logger.Info("Sync scheduler disabled; only daily rollover will run")
	} else {
		s.ticker = time.NewTicker(s.cfg.Interval)
		s.logger.Info("Sync scheduler started",
			slog.Duration("interval", s.cfg.Interval),
			slog.Int64("budget_floor", s.cfg.BudgetFloor),
			slog.Int("max_jobs_per_cycle", s.cfg.MaxJobsPerCycle),
		)

		go func() {
			for {
				select {
				case <-s.ticker.C:
					s.RunCycle(ctx)
				case <-s.stopCh:
					return
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go s.resetLoop(ctx)
}

// Stop: halts all loops.
func (s *Scheduler) Stop() {
	if s.ticker != nil {
		s.ticker.Stop()
	}
	close(s.stopCh)
	s.logger.Info("Sync scheduler stopped")
}

// RunCycle: one pass over the stalest bands. Exported so an operator endpoint
// can trigger a cycle off-schedule; the single-flight flag makes that safe.
func (s *Scheduler) RunCycle(ctx context.Context) {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Warn("Sync cycle already running, skipping")
		return
	}
	defer s.running.Store(false)

	status, err := s.governor.Status(ctx)
	if err != nil {
		s.logger.Error("Sync cycle aborted: quota status unavailable", slog.Any("error", err))
		return
	}
	if status.IsEmergencyMode {
		s.logger.Warn("Sync cycle skipped: emergency mode active")
		return
	}
	if status.Remaining < s.cfg.BudgetFloor {
		s.logger.Warn("Sync cycle skipped: remaining budget below floor",
			slog.Int64("remaining", status.Remaining),
			slog.Int64("floor", s.cfg.BudgetFloor),
		)
		return
	}

	bands, err := s.catalog.ListStaleBands(ctx, s.cfg.MaxJobsPerCycle)
	if err != nil {
		s.logger.Error("Sync cycle aborted: failed to list bands", slog.Any("error", err))
		return
	}
	if len(bands) == 0 {
		s.logger.Info("Sync cycle: no active bands")
		return
	}

	s.logger.Info("Sync cycle started",
		slog.Int("bands", len(bands)),
		slog.Int64("remaining_budget", status.Remaining),
	)

	completed, rejected, failed := 0, 0, 0
	for _, band := range bands {
		if err := s.limiter.Wait(ctx); err != nil {
			s.logger.Info("Sync cycle cancelled", slog.Any("error", err))
			return
		}

		// Earlier bands in the batch spend quota, so the budget must be
		// re-read before every entity rather than once up front.
		status, err = s.governor.Status(ctx)
		if err != nil {
			s.logger.Error("Sync cycle aborted: quota status unavailable", slog.Any("error", err))
			return
		}
		if status.IsEmergencyMode {
			s.logger.Warn("Sync cycle aborted early: emergency mode active")
			break
		}
		if status.Remaining < s.cfg.BudgetFloor {
			s.logger.Warn("Sync cycle aborted early: remaining budget below floor",
				slog.Int64("remaining", status.Remaining),
				slog.Int64("floor", s.cfg.BudgetFloor),
			)
			break
		}

		result, err := s.orchestrator.SyncBand(ctx, SyncRequest{BandID: band.ID})
		if err != nil {
			failed++
			s.logger.Error("Sync cycle: band sync errored",
				slog.String("band", band.Name),
				slog.Any("error", err),
			)
			continue
		}
		switch {
		case !result.Approved:
			rejected++
		case result.Status == domain.JobStatusCompleted:
			completed++
		default:
			failed++
		}
	}

	s.checkFullSyncReminder(ctx)

	s.logger.Info("Sync cycle finished",
		slog.Int("completed", completed),
		slog.Int("rejected", rejected),
		slog.Int("failed", failed),
	)
}

// checkFullSyncReminder: surfaces bands whose full ingestion is overdue so
// operators see the backlog before it grows stale.
func (s *Scheduler) checkFullSyncReminder(ctx context.Context) {
	bands, err := s.catalog.ListNeverFullSynced(ctx)
	if err != nil {
		s.logger.Error("Full-sync reminder check failed", slog.Any("error", err))
		return
	}
	if len(bands) == 0 {
		return
	}

	names := make([]string, 0, util.Min(len(bands), 5))
	for i, band := range bands {
		if i >= 5 {
			break
		}
		names = append(names, band.Name)
	}

	s.logger.Warn("Bands awaiting their first full sync",
		slog.Int("count", len(bands)),
		slog.Any("sample", names),
	)
}

// resetLoop: sleeps until each Pacific midnight and performs the rollover.
func (s *Scheduler) resetLoop(ctx context.Context) {
	for {
		next := util.NextPacificMidnight(time.Now())
		timer := time.NewTimer(time.Until(next))

		select {
		case <-timer.C:
			if err := s.governor.PerformDailyReset(ctx); err != nil {
				s.logger.Error("Daily quota rollover failed", slog.Any("error", err))
			}
		case <-s.stopCh:
			timer.Stop()
			return
		case <-ctx.Done():
			timer.Stop()
			return
		}
	}
}

// reconcileReset: catches a missed rollover after downtime. If the recorded
// reset date is not today's Pacific date, the boundary passed while the
// process was down and the archive still needs writing.
func (s *Scheduler) reconcileReset(ctx context.Context) {
	lastReset, err := s.governor.LastResetDate(ctx)
	if err != nil {
		s.logger.Error("Reset reconciliation failed", slog.Any("error", err))
		return
	}

	today := util.PacificDateKey(time.Now())
	if lastReset == today {
		return
	}

	s.logger.Info("Reconciling missed daily rollover",
		slog.String("last_reset", lastReset),
		slog.String("today", today),
	)
	if err := s.governor.PerformDailyReset(ctx); err != nil {
		s.logger.Error("Reset reconciliation failed", slog.Any("error", err))
	}
}
