package coingecko

// Coin is one entry of /coins/list?include_platform=true.
type Coin struct {
	ID        string            `json:"id"`
	Symbol    string            `json:"symbol"`
	Name      string            `json:"name"`
	Platforms map[string]string `json:"platforms"` // platform id -> contract address
}

// SimplePrice is the per-id value of /simple/price.
type SimplePrice struct {
	USD          *float64 `json:"usd"`
	USD24hChange *float64 `json:"usd_24h_change"`
}
