package constants

import "time"

// Redis keys
const (
	RedisKeySnapshot = "tokens:snapshot"
)

// Redis Pub/Sub channels
const (
	PubSubChannelRefreshed = "tokens:refreshed"
)

// Cache lifetimes
const (
	IdentifierMappingTTL = 12 * time.Hour
	PriceEntryTTL        = 5 * time.Minute
	SnapshotTTL          = 10 * time.Minute
)

// Primary price source limits
const (
	PrimaryMaxIDsPerRequest = 50
	PrimaryChunkDelay       = 1500 * time.Millisecond // Spacing between /simple/price chunks
	PrimaryMaxRetries       = 3
	PrimaryBaseBackoff      = 2 * time.Second
	PrimaryMaxBackoff       = 30 * time.Second
)

// Fallback price source limits
const (
	FallbackMaxAddressesPerRequest = 30
	FallbackBatchDelay             = 250 * time.Millisecond
)

// Swap feed
const (
	SwapPageSize        = 10000
	SwapPageMaxRetries  = 3
	SwapPageRetryDelay  = 2 * time.Second
	SwapEmptyPagesLimit = 2
)

// Default upstream endpoints
const (
	DefaultCoinGeckoBaseURL   = "https://api.coingecko.com/api/v3"
	DefaultDexScreenerBaseURL = "https://api.dexscreener.com"
	DefaultDuneBaseURL        = "https://api.dune.com"
	DefaultPlatform           = "ethereum"
)
