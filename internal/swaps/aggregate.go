package swaps

import "github.com/aman-zulfiqar/token-aggregator/internal/models"

// Aggregate groups events per token address. The sold token of an event
// gets a sell and the bought token a buy; both legs add the event's volume,
// pair and time.
func Aggregate(events []models.SwapEvent) map[string]models.SwapAggregate {
	aggs := make(map[string]*models.SwapAggregate)

	get := func(addr string) *models.SwapAggregate {
		a, ok := aggs[addr]
		if !ok {
			a = &models.SwapAggregate{DistinctPairs: make(map[string]struct{})}
			aggs[addr] = a
		}
		return a
	}

	for i := range events {
		ev := &events[i]
		sold := models.NormalizeAddress(ev.TokenSoldAddress)
		bought := models.NormalizeAddress(ev.TokenBoughtAddress)

		s := get(sold)
		s.Sells++
		touch(s, ev)

		b := get(bought)
		b.Buys++
		if bought != sold {
			touch(b, ev)
		}
	}

	out := make(map[string]models.SwapAggregate, len(aggs))
	for addr, a := range aggs {
		out[addr] = *a
	}
	return out
}

func touch(a *models.SwapAggregate, ev *models.SwapEvent) {
	a.TotalVolumeUSD += ev.AmountUSD
	if a.LastSwapTime == nil || ev.BlockTime.After(*a.LastSwapTime) {
		t := ev.BlockTime
		a.LastSwapTime = &t
	}
	if ev.TokenPair != "" {
		a.DistinctPairs[ev.TokenPair] = struct{}{}
	}
}
