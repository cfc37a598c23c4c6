package models

// PriceSource identifies which price source produced a PriceInfo.
type PriceSource string

const (
	PriceSourceNone     PriceSource = "none"
	PriceSourcePrimary  PriceSource = "primary"
	PriceSourceFallback PriceSource = "fallback"
)

// PriceInfo is the price view of one token for the current cycle.
// USD and Change24h are nil when the source had no value; a zero price is a
// real price.
type PriceInfo struct {
	USD       *float64    `json:"usd"`
	Change24h *float64    `json:"change_24h"`
	Buys      int64       `json:"buys"`
	Sells     int64       `json:"sells"`
	Volume24h float64     `json:"volume_24h"`
	Source    PriceSource `json:"source"`
}

// HasPrice reports whether a USD price is present.
func (p PriceInfo) HasPrice() bool {
	return p.USD != nil
}

// NoPrice is the PriceInfo for a token no source could price.
func NoPrice() PriceInfo {
	return PriceInfo{Source: PriceSourceNone}
}

// Float64Ptr returns a pointer to v.
func Float64Ptr(v float64) *float64 {
	return &v
}
