package server

import (
	"sort"
	"strings"

	"github.com/aman-zulfiqar/token-aggregator/internal/models"
)

// sortKeys maps the sort query parameter to a record comparison. Records
// without a value for the key sort last in either order.
var sortKeys = map[string]func(a, b models.TokenRecord) (cmp int, ok bool){
	"price":       func(a, b models.TokenRecord) (int, bool) { return cmpOptional(a.CurrentPrice, b.CurrentPrice) },
	"change":      func(a, b models.TokenRecord) (int, bool) { return cmpOptional(a.PriceChange24h, b.PriceChange24h) },
	"buys":        func(a, b models.TokenRecord) (int, bool) { return cmpInt(a.Info.Buys, b.Info.Buys), true },
	"sells":       func(a, b models.TokenRecord) (int, bool) { return cmpInt(a.Info.Sells, b.Info.Sells), true },
	"volume":      func(a, b models.TokenRecord) (int, bool) { return cmpFloat(a.Info.Volume24h, b.Info.Volume24h), true },
	"swap_volume": func(a, b models.TokenRecord) (int, bool) { return cmpFloat(a.Info.SwapVolumeUSD, b.Info.SwapVolumeUSD), true },
	"activity": func(a, b models.TokenRecord) (int, bool) {
		return cmpInt(a.Info.Buys+a.Info.Sells, b.Info.Buys+b.Info.Sells), true
	},
	"last_swap": func(a, b models.TokenRecord) (int, bool) {
		switch {
		case a.Info.LastSwapTime == nil && b.Info.LastSwapTime == nil:
			return 0, true
		case a.Info.LastSwapTime == nil || b.Info.LastSwapTime == nil:
			return nilLast(a.Info.LastSwapTime == nil), false
		}
		return a.Info.LastSwapTime.Compare(*b.Info.LastSwapTime), true
	},
	"symbol": func(a, b models.TokenRecord) (int, bool) {
		return strings.Compare(strings.ToLower(a.Symbol), strings.ToLower(b.Symbol)), true
	},
	"name": func(a, b models.TokenRecord) (int, bool) {
		return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)), true
	},
}

// sortRecords sorts recs in place. It keeps snapshot order for ties.
func sortRecords(recs []models.TokenRecord, key string, desc bool) {
	compare := sortKeys[key]
	if compare == nil {
		return
	}
	sort.SliceStable(recs, func(i, j int) bool {
		c, ok := compare(recs[i], recs[j])
		if !ok {
			// one side is missing; c already puts it last
			return c < 0
		}
		if desc {
			return c > 0
		}
		return c < 0
	})
}

func cmpOptional(a, b *float64) (int, bool) {
	switch {
	case a == nil && b == nil:
		return 0, true
	case a == nil || b == nil:
		return nilLast(a == nil), false
	}
	return cmpFloat(*a, *b), true
}

// nilLast orders a missing left-hand value after the right-hand one.
func nilLast(leftMissing bool) int {
	if leftMissing {
		return 1
	}
	return -1
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func cmpInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
