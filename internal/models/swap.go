// ============================================================================
// models/swap.go
// ============================================================================
package models

import "time"

// SwapEvent is one validated row of the swap feed.
type SwapEvent struct {
	TokenSoldAddress   string    `json:"token_sold_address"`
	TokenBoughtAddress string    `json:"token_bought_address"`
	TokenSoldSymbol    string    `json:"token_sold_symbol,omitempty"`
	TokenBoughtSymbol  string    `json:"token_bought_symbol,omitempty"`
	AmountUSD          float64   `json:"amount_usd"`
	BlockTime          time.Time `json:"block_time"`
	TokenPair          string    `json:"token_pair"`
	TxHash             string    `json:"tx_hash,omitempty"`
	Project            string    `json:"project,omitempty"` // e.g. "uniswap", "aerodrome"
}

// SwapAggregate holds per-token swap activity built from one collection pass.
type SwapAggregate struct {
	Buys           int64               `json:"buys"`
	Sells          int64               `json:"sells"`
	TotalVolumeUSD float64             `json:"total_volume_usd"`
	LastSwapTime   *time.Time          `json:"last_swap_time,omitempty"`
	DistinctPairs  map[string]struct{} `json:"-"`
}

// PairCount returns the number of distinct pairs the token traded in.
func (a *SwapAggregate) PairCount() int {
	if a == nil {
		return 0
	}
	return len(a.DistinctPairs)
}
