package quota

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kapu/bandhub-sync-go/internal/constants"
	"github.com/kapu/bandhub-sync-go/internal/domain"
)

// AnalyticsStore: the read side of the audit trail. Satisfied by *Repository.
type AnalyticsStore interface {
	ListDailySummaries(ctx context.Context, days int) ([]*domain.DailySummary, error)
	AggregateByOperation(ctx context.Context, since time.Time) (map[domain.OperationKind]int64, error)
	CacheHitStats(ctx context.Context, since time.Time) (hits, total int64, err error)
}

// StatusSource: the live snapshot of today's budget. Satisfied by *Governor.
type StatusSource interface {
	Status(ctx context.Context) (*domain.QuotaStatus, error)
}

// Trend: the direction daily usage is moving across the analysis window.
type Trend string

// Trend values.
const (
	TrendIncreasing Trend = "increasing"
	TrendDecreasing Trend = "decreasing"
	TrendStable     Trend = "stable"
)

// RiskLevel: how close average daily usage sits to the budget.
type RiskLevel string

// RiskLevel values.
const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// UsageReport: aggregated view of recent quota consumption.
type UsageReport struct {
	WindowDays        int                            `json:"window_days"`
	AverageDailyUsage float64                        `json:"average_daily_usage"`
	PeakUsage         int64                          `json:"peak_usage"`
	PeakDate          string                         `json:"peak_date"`
	Trend             Trend                          `json:"trend"`
	RiskLevel         RiskLevel                      `json:"risk_level"`
	ByOperation       map[domain.OperationKind]int64 `json:"by_operation"`
	CacheHitRate      float64                        `json:"cache_hit_rate"`
	Recommendations   []string                       `json:"recommendations"`
}

// Efficiency: how much of the spend was avoidable.
type Efficiency struct {
	CacheHitRate    float64 `json:"cache_hit_rate"`
	SearchCostShare float64 `json:"search_cost_share"`
}

// Forecast: where usage is heading and what to do about it.
type Forecast struct {
	ProjectedDailyAverage float64   `json:"projected_daily_average"`
	RiskLevel             RiskLevel `json:"risk_level"`
	Trend                 Trend     `json:"trend"`
	Recommendations       []string  `json:"recommendations"`
}

// Overview: the full analytics picture, from the live day back through two
// fixed trailing windows.
type Overview struct {
	Today      *domain.QuotaStatus `json:"today"`
	Last7Days  *UsageReport        `json:"last_7_days"`
	Last30Days *UsageReport        `json:"last_30_days"`
	Efficiency *Efficiency         `json:"efficiency"`
	Forecast   *Forecast           `json:"forecast"`
}

// Analytics: turns archived summaries and usage records into operator-facing
// reports.
type Analytics struct {
	store  AnalyticsStore
	status StatusSource
	limit  int64
	logger *slog.Logger
}

// NewAnalytics: creates the analytics service.
func NewAnalytics(store AnalyticsStore, status StatusSource, dailyLimit int64, logger *slog.Logger) *Analytics {
	return &Analytics{
		store:  store,
		status: status,
		limit:  dailyLimit,
		logger: logger,
	}
}

// Overview: combines today's live snapshot with the 7- and 30-day reports.
// The forecast projects the recent average forward and carries the longer
// window's trend, so a quiet week inside a busy month still reads as busy.
func (a *Analytics) Overview(ctx context.Context) (*Overview, error) {
	today, err := a.status.Status(ctx)
	if err != nil {
		return nil, err
	}

	last7, err := a.Report(ctx, 7)
	if err != nil {
		return nil, err
	}
	last30, err := a.Report(ctx, 30)
	if err != nil {
		return nil, err
	}

	return &Overview{
		Today:      today,
		Last7Days:  last7,
		Last30Days: last30,
		Efficiency: &Efficiency{
			CacheHitRate:    last7.CacheHitRate,
			SearchCostShare: searchCostShare(last7.ByOperation),
		},
		Forecast: &Forecast{
			ProjectedDailyAverage: last7.AverageDailyUsage,
			RiskLevel:             last7.RiskLevel,
			Trend:                 last30.Trend,
			Recommendations:       last7.Recommendations,
		},
	}, nil
}

func searchCostShare(byOperation map[domain.OperationKind]int64) float64 {
	var total int64
	for _, cost := range byOperation {
		total += cost
	}
	if total == 0 {
		return 0
	}
	return float64(byOperation[domain.OpSearch]) / float64(total)
}

// Report: builds a usage report over the last windowDays archived days.
// A zero or negative window falls back to the default.
func (a *Analytics) Report(ctx context.Context, windowDays int) (*UsageReport, error) {
	if windowDays <= 0 {
		windowDays = constants.AnalyticsConfig.DefaultWindowDays
	}

	summaries, err := a.store.ListDailySummaries(ctx, windowDays)
	if err != nil {
		return nil, err
	}

	since := time.Now().AddDate(0, 0, -windowDays)
	byOperation, err := a.store.AggregateByOperation(ctx, since)
	if err != nil {
		return nil, err
	}

	hits, calls, err := a.store.CacheHitStats(ctx, since)
	if err != nil {
		return nil, err
	}

	report := &UsageReport{
		WindowDays:  windowDays,
		Trend:       TrendStable,
		RiskLevel:   RiskLow,
		ByOperation: byOperation,
	}
	if calls > 0 {
		report.CacheHitRate = float64(hits) / float64(calls)
	}

	if len(summaries) == 0 {
		report.Recommendations = []string{"no archived usage yet; reports improve after the first daily rollover"}
		return report, nil
	}

	var total int64
	for _, summary := range summaries {
		total += summary.TotalUsage
		if summary.TotalUsage >= report.PeakUsage {
			report.PeakUsage = summary.TotalUsage
			report.PeakDate = summary.Date
		}
	}
	report.AverageDailyUsage = float64(total) / float64(len(summaries))

	report.Trend = trendOf(summaries)
	report.RiskLevel = a.riskOf(report.AverageDailyUsage)
	report.Recommendations = a.recommend(report, calls)

	return report, nil
}

// trendOf: compares the average of the older half of the window with the
// newer half. Summaries arrive oldest first.
func trendOf(summaries []*domain.DailySummary) Trend {
	if len(summaries) < 2 {
		return TrendStable
	}

	mid := len(summaries) / 2
	older := averageUsage(summaries[:mid])
	newer := averageUsage(summaries[mid:])

	if older == 0 {
		if newer > 0 {
			return TrendIncreasing
		}
		return TrendStable
	}

	change := (newer - older) / older
	deadband := constants.AnalyticsConfig.TrendDeadbandRatio
	switch {
	case change > deadband:
		return TrendIncreasing
	case change < -deadband:
		return TrendDecreasing
	default:
		return TrendStable
	}
}

func averageUsage(summaries []*domain.DailySummary) float64 {
	if len(summaries) == 0 {
		return 0
	}
	var total int64
	for _, summary := range summaries {
		total += summary.TotalUsage
	}
	return float64(total) / float64(len(summaries))
}

func (a *Analytics) riskOf(averageDaily float64) RiskLevel {
	if a.limit <= 0 {
		return RiskLow
	}
	ratio := averageDaily / float64(a.limit)
	switch {
	case ratio < constants.AnalyticsConfig.LowRiskBelow:
		return RiskLow
	case ratio < constants.AnalyticsConfig.MediumRiskBelow:
		return RiskMedium
	default:
		return RiskHigh
	}
}

func (a *Analytics) recommend(report *UsageReport, cacheableCalls int64) []string {
	var recommendations []string

	if report.RiskLevel == RiskHigh {
		recommendations = append(recommendations,
			"average daily usage is close to the budget; lower the sync frequency or tighten per-tier allocations")
	}
	if report.Trend == TrendIncreasing {
		recommendations = append(recommendations,
			"daily usage is trending up; review recently added bands and their sync priorities")
	}

	searchCost := report.ByOperation[domain.OpSearch]
	var totalCost int64
	for _, cost := range report.ByOperation {
		totalCost += cost
	}
	if totalCost > 0 && float64(searchCost)/float64(totalCost) > 0.5 {
		recommendations = append(recommendations, fmt.Sprintf(
			"search calls account for %d of %d units; resolving channel IDs for more bands would replace searches with cheap playlist reads",
			searchCost, totalCost))
	}
	if cacheableCalls > 0 && report.CacheHitRate < 0.5 {
		recommendations = append(recommendations, fmt.Sprintf(
			"cache hit rate is %.0f%%; raising response cache TTLs would cut repeat API calls",
			report.CacheHitRate*100))
	}

	if len(recommendations) == 0 {
		recommendations = append(recommendations, "usage is healthy; no action needed")
	}
	return recommendations
}
