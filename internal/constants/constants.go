package constants

import "time"

// QuotaDefaults holds the YouTube Data API quota budget and alerting defaults.
// The daily limit matches the free tier; the reset happens at midnight Pacific.
var QuotaDefaults = struct {
	DailyLimit         int64
	WarningThreshold   float64
	CriticalThreshold  float64
	DepletedThreshold  float64
	EmergencyThreshold float64
	EmergencyTTL       time.Duration
	HighCostThreshold  int64 // estimates at or above this are flagged for review
}{
	DailyLimit:         10000,
	WarningThreshold:   0.50,
	CriticalThreshold:  0.75,
	DepletedThreshold:  0.90,
	EmergencyThreshold: 0.95,
	EmergencyTTL:       24 * time.Hour, // failsafe: flag self-clears if deactivation is missed
	HighCostThreshold:  500,
}

// OperationCosts holds the per-call unit cost of each YouTube Data API
// operation kind.
var OperationCosts = struct {
	Search            int64
	VideosList        int64
	ChannelsList      int64
	PlaylistItemsList int64
}{
	Search:            100,
	VideosList:        1,
	ChannelsList:      1,
	PlaylistItemsList: 1,
}

// PriorityShares holds the fraction of the remaining daily quota each sync
// priority tier may claim. Critical jobs may additionally borrow the full
// remainder when their slice is too small.
var PriorityShares = struct {
	Critical float64
	High     float64
	Medium   float64
	Low      float64
}{
	Critical: 0.30,
	High:     0.40,
	Medium:   0.20,
	Low:      0.10,
}

// SyncDefaults holds the sync scheduler and orchestrator defaults.
var SyncDefaults = struct {
	Interval          time.Duration
	BudgetFloor       int64
	PageSize          int64
	SearchQueryCount  int
	FullSyncReminder  time.Duration
	MaxJobsPerCycle   int
	InterBandInterval time.Duration

	// Pre-flight estimates when the real upload count is unknown.
	ExpectedVideosFull        int
	ExpectedVideosIncremental int
}{
	Interval:          12 * time.Hour,
	BudgetFloor:       200, // skip a scheduled cycle when less quota than this remains
	PageSize:          50,  // videos.list and playlistItems.list hard cap
	SearchQueryCount:  3,
	FullSyncReminder:  90 * 24 * time.Hour,
	MaxJobsPerCycle:   20,
	InterBandInterval: 2 * time.Second,

	ExpectedVideosFull:        500,
	ExpectedVideosIncremental: 50,
}

// ValkeyKeys holds the key layout of the quota ledger and flags.
var ValkeyKeys = struct {
	UsagePrefix   string // usage counter per Pacific date, appended "<date>"
	EmergencyFlag string
	LastResetDate string
}{
	UsagePrefix:   "quota:usage:",
	EmergencyFlag: "quota:emergency",
	LastResetDate: "quota:last_reset",
}

// ValkeyConfig holds client pool settings.
var ValkeyConfig = struct {
	ReadyTimeout      time.Duration
	BlockingPoolSize  int
	PipelineMultiplex int
}{
	ReadyTimeout:      5 * time.Second,
	BlockingPoolSize:  100,
	PipelineMultiplex: 4,
}

// DatabaseConfig holds connection pool settings.
var DatabaseConfig = struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	PingTimeout     time.Duration
}{
	MaxOpenConns:    25,
	MaxIdleConns:    5,
	ConnMaxLifetime: 5 * time.Minute,
	PingTimeout:     5 * time.Second,
}

// CircuitBreakerConfig holds the upstream API breaker settings.
var CircuitBreakerConfig = struct {
	FailureThreshold    int
	ResetTimeout        time.Duration
	RateLimitTimeout    time.Duration
	HealthCheckInterval time.Duration
}{
	FailureThreshold:    3,
	ResetTimeout:        30 * time.Second,
	RateLimitTimeout:    1 * time.Hour, // 403 quotaExceeded and 429 wait much longer
	HealthCheckInterval: 10 * time.Minute,
}

// ServerConfig holds HTTP server timeouts.
var ServerConfig = struct {
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}{
	ReadTimeout:     15 * time.Second,
	WriteTimeout:    30 * time.Second,
	IdleTimeout:     60 * time.Second,
	ShutdownTimeout: 10 * time.Second,
}

// WebSocketConfig holds quota stream socket settings.
var WebSocketConfig = struct {
	WriteWait      time.Duration
	PongWait       time.Duration
	PingPeriod     time.Duration
	SendBufferSize int
	BroadcastEvery time.Duration
}{
	WriteWait:      10 * time.Second,
	PongWait:       60 * time.Second,
	PingPeriod:     54 * time.Second, // must be less than PongWait
	SendBufferSize: 16,
	BroadcastEvery: 15 * time.Second,
}

// AnalyticsConfig holds usage analytics windows and risk cutoffs.
var AnalyticsConfig = struct {
	DefaultWindowDays  int
	TrendDeadbandRatio float64
	MediumRiskBelow    float64
	LowRiskBelow       float64
}{
	DefaultWindowDays:  7,
	TrendDeadbandRatio: 0.10, // half-window averages within 10% count as stable
	LowRiskBelow:       0.50,
	MediumRiskBelow:    0.75,
}
