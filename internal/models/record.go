package models

import "time"

// Attribution classifies which sources contributed to a TokenRecord.
type Attribution string

const (
	AttributionNone          Attribution = "none"
	AttributionSwapOnly      Attribution = "swap_only"
	AttributionPricePrimary  Attribution = "price_primary"
	AttributionPriceFallback Attribution = "price_fallback"
	AttributionBoth          Attribution = "both"
)

// TokenInfo carries the activity figures of a TokenRecord.
type TokenInfo struct {
	Buys          int64      `json:"buys"`
	Sells         int64      `json:"sells"`
	Volume24h     float64    `json:"volume24h"`
	SwapVolumeUSD float64    `json:"swapVolumeUsd"`
	LastSwapTime  *time.Time `json:"lastSwapTime"`
	PairCount     int        `json:"pairCount"`
}

// TokenRecord is the externally visible per-token view.
type TokenRecord struct {
	Address        string      `json:"address"`
	Name           string      `json:"name"`
	Symbol         string      `json:"symbol"`
	Decimals       int         `json:"decimals"`
	CurrentPrice   *float64    `json:"currentPrice"`
	PriceChange24h *float64    `json:"priceChange24h"`
	PriceSource    PriceSource `json:"priceSource"`
	Attribution    Attribution `json:"attribution"`
	Info           TokenInfo   `json:"info"`
}
