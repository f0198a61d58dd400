package quota

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/kapu/bandhub-sync-go/internal/constants"
	"github.com/kapu/bandhub-sync-go/internal/service/cache"
	"github.com/kapu/bandhub-sync-go/internal/util"
	"github.com/kapu/bandhub-sync-go/pkg/errors"
)

// Ledger: the authoritative daily usage counter, backed by Valkey.
//
// All bookkeeping is keyed by the Pacific-time date so the counter rolls over
// exactly when the upstream quota does. Every method fails closed: when the
// store is unreachable an error comes back and callers must refuse work rather
// than guess.
type Ledger struct {
	cache  *cache.Service
	logger *slog.Logger
}

// NewLedger: creates a usage ledger over the given cache service.
func NewLedger(cacheService *cache.Service, logger *slog.Logger) *Ledger {
	return &Ledger{
		cache:  cacheService,
		logger: logger,
	}
}

func usageKey(t time.Time) string {
	return constants.ValkeyKeys.UsagePrefix + util.PacificDateKey(t)
}

// Consume: atomically adds cost units to today's counter and returns the
// totals before and after. The previous total is derived from the INCRBY
// result, so concurrent consumers each see a disjoint (prev, new] interval.
func (l *Ledger) Consume(ctx context.Context, cost int64) (newTotal, prevTotal int64, err error) {
	key := usageKey(time.Now())
	newTotal, err = l.cache.IncrBy(ctx, key, cost)
	if err != nil {
		return 0, 0, errors.NewLedgerError("incr", key, err)
	}
	return newTotal, newTotal - cost, nil
}

// CurrentUsage: today's total so far. A missing key means zero usage.
func (l *Ledger) CurrentUsage(ctx context.Context) (int64, error) {
	key := usageKey(time.Now())
	usage, err := l.cache.GetInt64(ctx, key)
	if err != nil {
		return 0, errors.NewLedgerError("read", key, err)
	}
	return usage, nil
}

// UsageFor: the recorded total for an arbitrary Pacific date key ("2006-01-02").
func (l *Ledger) UsageFor(ctx context.Context, dateKey string) (int64, error) {
	key := constants.ValkeyKeys.UsagePrefix + dateKey
	usage, err := l.cache.GetInt64(ctx, key)
	if err != nil {
		return 0, errors.NewLedgerError("read", key, err)
	}
	return usage, nil
}

// Reset: zeroes today's counter and records the reset date. The counter key
// is deleted rather than set to zero so stale keys do not accumulate. Meant
// for operator-forced resets; the daily rollover uses MarkReset instead.
func (l *Ledger) Reset(ctx context.Context) error {
	now := time.Now()
	key := usageKey(now)
	if err := l.cache.Del(ctx, key); err != nil {
		return errors.NewLedgerError("reset", key, err)
	}
	if err := l.cache.SetString(ctx, constants.ValkeyKeys.LastResetDate, util.PacificDateKey(now), 0); err != nil {
		return errors.NewLedgerError("reset", constants.ValkeyKeys.LastResetDate, err)
	}
	l.logger.Info("Quota ledger reset", slog.String("date", util.PacificDateKey(now)))
	return nil
}

// MarkReset: records that the daily rollover for today has been handled.
// Counter keys are date-scoped, so the running total rolls over on its own;
// only the stamp needs writing. Today's key is left alone so a late rollover
// (after a restart) cannot wipe usage already accrued today.
func (l *Ledger) MarkReset(ctx context.Context) error {
	if err := l.cache.SetString(ctx, constants.ValkeyKeys.LastResetDate, util.PacificDateKey(time.Now()), 0); err != nil {
		return errors.NewLedgerError("reset", constants.ValkeyKeys.LastResetDate, err)
	}
	return nil
}

// ExpireUsage: puts a TTL on an old date-scoped counter key so archived
// counters eventually leave the store.
func (l *Ledger) ExpireUsage(ctx context.Context, dateKey string, ttl time.Duration) error {
	key := constants.ValkeyKeys.UsagePrefix + dateKey
	exists, err := l.cache.Exists(ctx, key)
	if err != nil {
		return errors.NewLedgerError("expire", key, err)
	}
	if !exists {
		return nil
	}
	if err := l.cache.Expire(ctx, key, ttl); err != nil {
		return errors.NewLedgerError("expire", key, err)
	}
	return nil
}

// LastResetDate: the Pacific date key of the last recorded reset, or "" when
// none has been recorded.
func (l *Ledger) LastResetDate(ctx context.Context) (string, error) {
	value, found, err := l.cache.GetString(ctx, constants.ValkeyKeys.LastResetDate)
	if err != nil {
		return "", errors.NewLedgerError("read", constants.ValkeyKeys.LastResetDate, err)
	}
	if !found {
		return "", nil
	}
	return value, nil
}

// ActivateEmergency: raises the emergency flag with a TTL failsafe so a missed
// deactivation cannot freeze syncing forever.
func (l *Ledger) ActivateEmergency(ctx context.Context, ttl time.Duration) error {
	if err := l.cache.SetString(ctx, constants.ValkeyKeys.EmergencyFlag,
		strconv.FormatInt(time.Now().Unix(), 10), ttl); err != nil {
		return errors.NewLedgerError("emergency", constants.ValkeyKeys.EmergencyFlag, err)
	}
	l.logger.Warn("Emergency mode activated", slog.Duration("ttl", ttl))
	return nil
}

// DeactivateEmergency: clears the emergency flag.
func (l *Ledger) DeactivateEmergency(ctx context.Context) error {
	if err := l.cache.Del(ctx, constants.ValkeyKeys.EmergencyFlag); err != nil {
		return errors.NewLedgerError("emergency", constants.ValkeyKeys.EmergencyFlag, err)
	}
	l.logger.Info("Emergency mode deactivated")
	return nil
}

// IsEmergencyMode: reports whether the emergency flag is set. Errors propagate
// so callers can fail closed.
func (l *Ledger) IsEmergencyMode(ctx context.Context) (bool, error) {
	exists, err := l.cache.Exists(ctx, constants.ValkeyKeys.EmergencyFlag)
	if err != nil {
		return false, errors.NewLedgerError("emergency", constants.ValkeyKeys.EmergencyFlag, err)
	}
	return exists, nil
}
