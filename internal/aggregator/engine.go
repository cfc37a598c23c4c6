// Package aggregator merges metadata, swap aggregates and price lookups into
// the per-token records served to readers.
package aggregator

import (
	"github.com/aman-zulfiqar/token-aggregator/internal/models"
)

// Engine builds TokenRecords. The zero value keeps every address.
type Engine struct {
	// FilterEmpty drops addresses with no price data and no swap activity.
	FilterEmpty bool
}

func NewEngine(filterEmpty bool) *Engine {
	return &Engine{FilterEmpty: filterEmpty}
}

// Aggregate returns one record per address in addrs order, plus the number
// of records in each attribution class. Addresses are normalized; a repeated
// address yields one record. Counts cover the returned records only.
func (e *Engine) Aggregate(
	addrs []string,
	meta map[string]models.TokenMetadata,
	swaps map[string]models.SwapAggregate,
	prices map[string]models.PriceInfo,
) ([]models.TokenRecord, models.SourceCounts) {
	out := make([]models.TokenRecord, 0, len(addrs))
	counts := models.SourceCounts{}
	seen := make(map[string]struct{}, len(addrs))

	for _, raw := range addrs {
		addr := models.NormalizeAddress(raw)
		if addr == "" {
			continue
		}
		if _, dup := seen[addr]; dup {
			continue
		}
		seen[addr] = struct{}{}

		swap, hasSwap := swaps[addr]
		hasSwap = hasSwap && swap.Buys+swap.Sells > 0
		price, ok := prices[addr]
		if !ok {
			price = models.NoPrice()
		}

		attr := classify(hasSwap, price)
		if e.FilterEmpty && attr == models.AttributionNone {
			continue
		}

		out = append(out, buildRecord(addr, meta[addr], swap, price, attr))
		counts[attr]++
	}

	return out, counts
}

// classify reports which sources contributed. A price source that answered
// with pair activity but no USD value still counts as a contribution.
func classify(hasSwap bool, price models.PriceInfo) models.Attribution {
	var priced models.Attribution
	switch price.Source {
	case models.PriceSourcePrimary:
		priced = models.AttributionPricePrimary
	case models.PriceSourceFallback:
		priced = models.AttributionPriceFallback
	}

	switch {
	case hasSwap && priced != "":
		return models.AttributionBoth
	case priced != "":
		return priced
	case hasSwap:
		return models.AttributionSwapOnly
	default:
		return models.AttributionNone
	}
}

func buildRecord(addr string, meta models.TokenMetadata, swap models.SwapAggregate, price models.PriceInfo, attr models.Attribution) models.TokenRecord {
	source := price.Source
	if source == "" {
		source = models.PriceSourceNone
	}

	rec := models.TokenRecord{
		Address:        addr,
		Name:           meta.Name,
		Symbol:         meta.Symbol,
		Decimals:       meta.Decimals,
		CurrentPrice:   copyFloat(price.USD),
		PriceChange24h: copyFloat(price.Change24h),
		PriceSource:    source,
		Attribution:    attr,
		Info: models.TokenInfo{
			Buys:          nonNegative(price.Buys) + nonNegative(swap.Buys),
			Sells:         nonNegative(price.Sells) + nonNegative(swap.Sells),
			Volume24h:     price.Volume24h,
			SwapVolumeUSD: swap.TotalVolumeUSD,
			PairCount:     swap.PairCount(),
		},
	}
	if swap.LastSwapTime != nil {
		t := *swap.LastSwapTime
		rec.Info.LastSwapTime = &t
	}
	return rec
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func nonNegative(n int64) int64 {
	if n < 0 {
		return 0
	}
	return n
}
