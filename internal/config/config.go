package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aman-zulfiqar/token-aggregator/internal/constants"
	"gopkg.in/yaml.v3"
)

type Config struct {
	// API settings
	APIAddr  string `yaml:"api_addr"`
	APIKey   string `yaml:"api_key"`
	DevMode  bool   `yaml:"dev_mode"`
	LogLevel string `yaml:"log_level"`

	RefreshWait      time.Duration `yaml:"refresh_wait"`       // How long POST /v1/refresh blocks
	RefreshRateLimit float64       `yaml:"refresh_rate_limit"` // POST /v1/refresh requests per second per client

	// Metadata
	MetadataPath string `yaml:"metadata_path"`

	// Snapshot settings
	SnapshotTTL        time.Duration `yaml:"snapshot_ttl"`
	RefreshOnRead      bool          `yaml:"refresh_on_read"`
	FilterEmptyTokens  bool          `yaml:"filter_empty_tokens"`
	RefreshTimeout     time.Duration `yaml:"refresh_timeout"`
	MaxSwapEvents      int           `yaml:"max_swap_events"`
	IdentifierTTL      time.Duration `yaml:"identifier_ttl"`
	PriceTTL           time.Duration `yaml:"price_ttl"`
	HTTPTimeout        time.Duration `yaml:"http_timeout"`
	Platform           string        `yaml:"platform"`
	FallbackChain      string        `yaml:"fallback_chain"`
	PrimaryChunkSize   int           `yaml:"primary_chunk_size"`
	PrimaryChunkDelay  time.Duration `yaml:"primary_chunk_delay"`
	PrimaryMaxRetries  int           `yaml:"primary_max_retries"`
	PrimaryBaseBackoff time.Duration `yaml:"primary_base_backoff"`
	PrimaryMaxBackoff  time.Duration `yaml:"primary_max_backoff"`
	FallbackBatchSize  int           `yaml:"fallback_batch_size"`
	FallbackBatchDelay time.Duration `yaml:"fallback_batch_delay"`

	// Primary price source (CoinGecko API)
	CoinGeckoBaseURL string `yaml:"coingecko_base_url"`
	CoinGeckoAPIKey  string `yaml:"coingecko_api_key"`

	// Fallback price source (DexScreener API)
	DexScreenerBaseURL string `yaml:"dexscreener_base_url"`

	// Swap feed
	SwapSource          string        `yaml:"swap_source"` // "dune" or "clickhouse"
	DuneBaseURL         string        `yaml:"dune_base_url"`
	DuneAPIKey          string        `yaml:"dune_api_key"`
	DuneQueryID         string        `yaml:"dune_query_id"`
	SwapPageSize        int           `yaml:"swap_page_size"`
	SwapPageMaxRetries  int           `yaml:"swap_page_max_retries"`
	SwapPageRetryDelay  time.Duration `yaml:"swap_page_retry_delay"`
	ClickHouseAddr      string        `yaml:"clickhouse_addr"`
	ClickHouseDatabase  string        `yaml:"clickhouse_database"`
	ClickHouseUsername  string        `yaml:"clickhouse_username"`
	ClickHousePassword  string        `yaml:"clickhouse_password"`
	ClickHouseSwapTable string        `yaml:"clickhouse_swap_table"`

	// Redis settings (optional snapshot mirror)
	RedisAddr string `yaml:"redis_addr"`
}

// Defaults returns the configuration used when neither a file nor the
// environment sets a value.
func Defaults() *Config {
	return &Config{
		APIAddr:  ":8090",
		LogLevel: "info",

		RefreshWait:      30 * time.Second,
		RefreshRateLimit: 0.1,

		MetadataPath: "data/tokens.csv",

		SnapshotTTL:        constants.SnapshotTTL,
		RefreshOnRead:      true,
		FilterEmptyTokens:  true,
		RefreshTimeout:     15 * time.Minute,
		IdentifierTTL:      constants.IdentifierMappingTTL,
		PriceTTL:           constants.PriceEntryTTL,
		HTTPTimeout:        30 * time.Second,
		Platform:           constants.DefaultPlatform,
		FallbackChain:      constants.DefaultPlatform,
		PrimaryChunkSize:   constants.PrimaryMaxIDsPerRequest,
		PrimaryChunkDelay:  constants.PrimaryChunkDelay,
		PrimaryMaxRetries:  constants.PrimaryMaxRetries,
		PrimaryBaseBackoff: constants.PrimaryBaseBackoff,
		PrimaryMaxBackoff:  constants.PrimaryMaxBackoff,
		FallbackBatchSize:  constants.FallbackMaxAddressesPerRequest,
		FallbackBatchDelay: constants.FallbackBatchDelay,

		CoinGeckoBaseURL:   constants.DefaultCoinGeckoBaseURL,
		DexScreenerBaseURL: constants.DefaultDexScreenerBaseURL,

		SwapSource:          "dune",
		DuneBaseURL:         constants.DefaultDuneBaseURL,
		SwapPageSize:        constants.SwapPageSize,
		SwapPageMaxRetries:  constants.SwapPageMaxRetries,
		SwapPageRetryDelay:  constants.SwapPageRetryDelay,
		ClickHouseAddr:      "localhost:9000",
		ClickHouseDatabase:  "dex",
		ClickHouseUsername:  "default",
		ClickHouseSwapTable: "trades",
	}
}

// Load builds the configuration from defaults, then the YAML file named by
// CONFIG_FILE (if any), then environment variables.
func Load() (*Config, error) {
	cfg := Defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	// API
	c.APIAddr = getEnv("API_ADDR", c.APIAddr)
	c.APIKey = getEnv("API_KEY", c.APIKey)
	c.DevMode = getBoolEnv("DEV_MODE", c.DevMode)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.RefreshWait = getDurationEnv("REFRESH_WAIT", c.RefreshWait)
	c.RefreshRateLimit = getFloatEnv("REFRESH_RATE_LIMIT", c.RefreshRateLimit)

	c.MetadataPath = getEnv("METADATA_PATH", c.MetadataPath)

	// Snapshot
	c.SnapshotTTL = getDurationEnv("SNAPSHOT_TTL", c.SnapshotTTL)
	c.RefreshOnRead = getBoolEnv("REFRESH_ON_READ", c.RefreshOnRead)
	c.FilterEmptyTokens = getBoolEnv("FILTER_EMPTY_TOKENS", c.FilterEmptyTokens)
	c.RefreshTimeout = getDurationEnv("REFRESH_TIMEOUT", c.RefreshTimeout)
	c.MaxSwapEvents = getIntEnv("MAX_SWAP_EVENTS", c.MaxSwapEvents)
	c.IdentifierTTL = getDurationEnv("IDENTIFIER_TTL", c.IdentifierTTL)
	c.PriceTTL = getDurationEnv("PRICE_TTL", c.PriceTTL)
	c.HTTPTimeout = getDurationEnv("HTTP_TIMEOUT", c.HTTPTimeout)
	c.Platform = getEnv("PLATFORM", c.Platform)
	c.FallbackChain = getEnv("FALLBACK_CHAIN", c.FallbackChain)
	c.PrimaryChunkSize = getIntEnv("PRIMARY_CHUNK_SIZE", c.PrimaryChunkSize)
	c.PrimaryChunkDelay = getDurationEnv("PRIMARY_CHUNK_DELAY", c.PrimaryChunkDelay)
	c.PrimaryMaxRetries = getIntEnv("PRIMARY_MAX_RETRIES", c.PrimaryMaxRetries)
	c.PrimaryBaseBackoff = getDurationEnv("PRIMARY_BASE_BACKOFF", c.PrimaryBaseBackoff)
	c.PrimaryMaxBackoff = getDurationEnv("PRIMARY_MAX_BACKOFF", c.PrimaryMaxBackoff)
	c.FallbackBatchSize = getIntEnv("FALLBACK_BATCH_SIZE", c.FallbackBatchSize)
	c.FallbackBatchDelay = getDurationEnv("FALLBACK_BATCH_DELAY", c.FallbackBatchDelay)

	// Price sources
	c.CoinGeckoBaseURL = getEnv("COINGECKO_BASE_URL", c.CoinGeckoBaseURL)
	c.CoinGeckoAPIKey = getEnv("COINGECKO_API_KEY", c.CoinGeckoAPIKey)
	c.DexScreenerBaseURL = getEnv("DEXSCREENER_BASE_URL", c.DexScreenerBaseURL)

	// Swaps
	c.SwapSource = getEnv("SWAP_SOURCE", c.SwapSource)
	c.DuneBaseURL = getEnv("DUNE_BASE_URL", c.DuneBaseURL)
	c.DuneAPIKey = getEnv("DUNE_API_KEY", c.DuneAPIKey)
	c.DuneQueryID = getEnv("DUNE_QUERY_ID", c.DuneQueryID)
	c.SwapPageSize = getIntEnv("SWAP_PAGE_SIZE", c.SwapPageSize)
	c.SwapPageMaxRetries = getIntEnv("SWAP_PAGE_MAX_RETRIES", c.SwapPageMaxRetries)
	c.SwapPageRetryDelay = getDurationEnv("SWAP_PAGE_RETRY_DELAY", c.SwapPageRetryDelay)
	c.ClickHouseAddr = getEnv("CLICKHOUSE_ADDR", c.ClickHouseAddr)
	c.ClickHouseDatabase = getEnv("CLICKHOUSE_DATABASE", c.ClickHouseDatabase)
	c.ClickHouseUsername = getEnv("CLICKHOUSE_USERNAME", c.ClickHouseUsername)
	c.ClickHousePassword = getEnv("CLICKHOUSE_PASSWORD", c.ClickHousePassword)
	c.ClickHouseSwapTable = getEnv("CLICKHOUSE_SWAP_TABLE", c.ClickHouseSwapTable)

	// Redis
	c.RedisAddr = getEnv("REDIS_ADDR", c.RedisAddr)
}

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.APIAddr) == "" {
		return fmt.Errorf("API_ADDR is required")
	}
	if c.SnapshotTTL <= 0 {
		return fmt.Errorf("SNAPSHOT_TTL must be positive")
	}
	if c.PrimaryChunkSize <= 0 || c.FallbackBatchSize <= 0 || c.SwapPageSize <= 0 {
		return fmt.Errorf("chunk, batch and page sizes must be positive")
	}
	if c.RefreshRateLimit <= 0 {
		return fmt.Errorf("REFRESH_RATE_LIMIT must be positive")
	}
	if c.MaxSwapEvents < 0 {
		return fmt.Errorf("MAX_SWAP_EVENTS must not be negative")
	}
	switch c.SwapSource {
	case "dune":
		if c.DuneQueryID == "" {
			return fmt.Errorf("DUNE_QUERY_ID is required when SWAP_SOURCE=dune")
		}
	case "clickhouse":
		if c.ClickHouseAddr == "" {
			return fmt.Errorf("CLICKHOUSE_ADDR is required when SWAP_SOURCE=clickhouse")
		}
	default:
		return fmt.Errorf("unknown SWAP_SOURCE: %q", c.SwapSource)
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getIntEnv(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getFloatEnv(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getBoolEnv(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getDurationEnv(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
