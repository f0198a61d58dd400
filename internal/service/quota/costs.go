package quota

import (
	"github.com/kapu/bandhub-sync-go/internal/constants"
	"github.com/kapu/bandhub-sync-go/internal/domain"
	"github.com/kapu/bandhub-sync-go/internal/util"
)

// Cost: the unit cost of one YouTube Data API call of the given kind.
// Unknown kinds are charged at the search rate so a miscategorized call can
// never sneak under the budget.
func Cost(op domain.OperationKind) int64 {
	switch op {
	case domain.OpSearch:
		return constants.OperationCosts.Search
	case domain.OpVideosList:
		return constants.OperationCosts.VideosList
	case domain.OpChannelsList:
		return constants.OperationCosts.ChannelsList
	case domain.OpPlaylistItemsList:
		return constants.OperationCosts.PlaylistItemsList
	default:
		return constants.OperationCosts.Search
	}
}

// EstimateRequest: the expected API surface of a prospective sync job.
type EstimateRequest struct {
	VideoCount   int  // expected number of videos to fetch details for
	UseSearch    bool // whether keyword search is needed (no channel known)
	SearchCount  int  // number of search queries when UseSearch is set
	HasChannelID bool // whether the band has a known channel
}

// SyncMethod constants for cost estimates.
const (
	SyncMethodChannel = "channel"
	SyncMethodSearch  = "search"
)

// CostEstimate: a projected job cost with its per-operation breakdown.
type CostEstimate struct {
	EstimatedCost int64            `json:"estimated_cost"`
	Breakdown     map[string]int64 `json:"breakdown"`
	SyncMethod    string           `json:"sync_method"`
	IsHighCost    bool             `json:"is_high_cost"`
}

// Estimate: projects the unit cost of a sync job before it runs.
//
// A channel-based sync resolves the channel (channels.list, 1 unit) and pages
// its uploads playlist (playlistItems.list, 1 unit per page of 50). Video
// details always cost one videos.list page per 50 videos. Keyword discovery
// costs 100 units per search query.
func Estimate(req EstimateRequest) *CostEstimate {
	estimate := &CostEstimate{
		Breakdown:  make(map[string]int64),
		SyncMethod: SyncMethodChannel,
	}

	if req.UseSearch {
		estimate.SyncMethod = SyncMethodSearch
		searches := req.SearchCount
		if searches <= 0 {
			searches = constants.SyncDefaults.SearchQueryCount
		}
		estimate.Breakdown[string(domain.OpSearch)] = int64(searches) * constants.OperationCosts.Search
	}

	pages := int64(util.CeilDiv(req.VideoCount, int(constants.SyncDefaults.PageSize)))

	if req.HasChannelID {
		estimate.Breakdown[string(domain.OpChannelsList)] = constants.OperationCosts.ChannelsList
		estimate.Breakdown[string(domain.OpPlaylistItemsList)] = pages * constants.OperationCosts.PlaylistItemsList
	}

	if pages > 0 {
		estimate.Breakdown[string(domain.OpVideosList)] = pages * constants.OperationCosts.VideosList
	}

	for _, cost := range estimate.Breakdown {
		estimate.EstimatedCost += cost
	}
	estimate.IsHighCost = estimate.EstimatedCost >= constants.QuotaDefaults.HighCostThreshold

	return estimate
}

// EstimateCost: the total of Estimate, for callers that only admit on cost.
func EstimateCost(req EstimateRequest) int64 {
	return Estimate(req).EstimatedCost
}
