package prices

import (
	"context"
	"errors"
	"time"

	"github.com/aman-zulfiqar/token-aggregator/internal/cache"
	"github.com/aman-zulfiqar/token-aggregator/internal/coingecko"
	"github.com/aman-zulfiqar/token-aggregator/internal/constants"
	"github.com/aman-zulfiqar/token-aggregator/internal/dexscreener"
	"github.com/aman-zulfiqar/token-aggregator/internal/metrics"
	"github.com/aman-zulfiqar/token-aggregator/internal/models"
	"github.com/aman-zulfiqar/token-aggregator/internal/retry"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// IDResolver maps addresses to primary-source ids.
type IDResolver interface {
	Resolve(ctx context.Context, addresses []string) map[string]string
}

// PriceLookup is the batched price endpoint of the primary source.
type PriceLookup interface {
	SimplePrice(ctx context.Context, ids []string) (map[string]coingecko.SimplePrice, error)
}

// PairLookup is the batched address endpoint of the fallback source.
type PairLookup interface {
	TokenPairs(ctx context.Context, chain string, addresses []string) ([]dexscreener.Pair, error)
}

// FetcherConfig holds configuration for the price fetcher
type FetcherConfig struct {
	Resolver IDResolver
	Primary  PriceLookup
	// Fallback is optional; without it unresolved addresses have no price.
	Fallback      PairLookup
	FallbackChain string

	// Cache holds per-address results. A 5 minute cache is created when nil.
	Cache *cache.EntryCache[models.PriceInfo]

	ChunkSize         int
	ChunkDelay        time.Duration
	FallbackBatchSize int
	FallbackDelay     time.Duration

	// RateLimitRetry is applied to 429 responses of either source.
	RateLimitRetry retry.Loop

	Logger *logrus.Logger
}

// Fetcher resolves current prices for token addresses, primary source
// first, fallback source for whatever the primary could not price.
type Fetcher struct {
	resolver      IDResolver
	primary       PriceLookup
	fallback      PairLookup
	fallbackChain string
	cache         *cache.EntryCache[models.PriceInfo]

	chunkSize         int
	chunkDelay        time.Duration
	fallbackBatchSize int
	fallbackDelay     time.Duration
	rateLimitRetry    retry.Loop

	logger *logrus.Logger
}

// NewFetcher creates a price fetcher
func NewFetcher(cfg FetcherConfig) *Fetcher {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.Cache == nil {
		cfg.Cache = cache.NewEntryCache[models.PriceInfo](constants.PriceEntryTTL)
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = constants.PrimaryMaxIDsPerRequest
	}
	if cfg.FallbackBatchSize <= 0 {
		cfg.FallbackBatchSize = constants.FallbackMaxAddressesPerRequest
	}
	if cfg.FallbackChain == "" {
		cfg.FallbackChain = constants.DefaultPlatform
	}
	return &Fetcher{
		resolver:          cfg.Resolver,
		primary:           cfg.Primary,
		fallback:          cfg.Fallback,
		fallbackChain:     cfg.FallbackChain,
		cache:             cfg.Cache,
		chunkSize:         cfg.ChunkSize,
		chunkDelay:        cfg.ChunkDelay,
		fallbackBatchSize: cfg.FallbackBatchSize,
		fallbackDelay:     cfg.FallbackDelay,
		rateLimitRetry:    cfg.RateLimitRetry,
		logger:            cfg.Logger,
	}
}

// FetchPrices returns a PriceInfo for every distinct requested address.
// Upstream failures degrade to stale or empty prices; the only error
// returned is the context's.
func (f *Fetcher) FetchPrices(ctx context.Context, addresses []string) (map[string]models.PriceInfo, error) {
	ordered := dedupe(addresses)
	out := make(map[string]models.PriceInfo, len(ordered))

	var lookups []string
	for _, a := range ordered {
		if info, ok := f.cache.Get(a); ok {
			out[a] = info
			continue
		}
		lookups = append(lookups, a)
	}
	metrics.RecordPriceOutcome("cache", "hit", len(ordered)-len(lookups))

	if len(lookups) == 0 {
		return out, nil
	}

	primary, err := f.primaryPass(ctx, lookups)
	if err != nil {
		return out, err
	}

	var pending []string
	for _, a := range lookups {
		l := primary[a]
		if l.Outcome == Found {
			out[a] = l.Info
			if !l.Stale {
				f.cache.Put(a, l.Info)
			}
			continue
		}
		pending = append(pending, a)
	}

	fallback, err := f.fallbackPass(ctx, pending)
	if err != nil {
		return out, err
	}

	for _, a := range pending {
		l := fallback[a]
		switch l.Outcome {
		case Found:
			out[a] = l.Info
			if !l.Stale {
				f.cache.Put(a, l.Info)
			}
		case NotFound:
			out[a] = models.NoPrice()
			// only a definitive answer from both sources is worth caching
			if primary[a].Outcome == NotFound {
				f.cache.Put(a, out[a])
			}
		default:
			out[a] = models.NoPrice()
		}
	}

	f.logger.WithFields(logrus.Fields{
		"requested": len(ordered),
		"cached":    len(ordered) - len(lookups),
		"looked_up": len(lookups),
		"fallback":  len(pending),
	}).Info("fetched prices")

	return out, nil
}

// primaryPass looks every address up against the primary source. Addresses
// without an id come back NotFound.
func (f *Fetcher) primaryPass(ctx context.Context, addresses []string) (map[string]Lookup, error) {
	res := make(map[string]Lookup, len(addresses))
	if f.primary == nil || f.resolver == nil {
		for _, a := range addresses {
			res[a] = Lookup{Outcome: NotFound}
		}
		return res, nil
	}

	ids := f.resolver.Resolve(ctx, addresses)

	byID := make(map[string][]string, len(ids))
	var idList []string
	for _, a := range addresses {
		id, ok := ids[a]
		if !ok {
			res[a] = Lookup{Outcome: NotFound}
			continue
		}
		if _, seen := byID[id]; !seen {
			idList = append(idList, id)
		}
		byID[id] = append(byID[id], a)
	}
	metrics.RecordPriceOutcome("coingecko", "unresolved", len(addresses)-len(ids))

	limiter := newLimiter(f.chunkDelay)
	chunks := chunk(idList, f.chunkSize)
	for i, ch := range chunks {
		if err := limiter.Wait(ctx); err != nil {
			return res, err
		}

		var prices map[string]coingecko.SimplePrice
		loop := f.rateLimitRetry.If(coingecko.IsRateLimited).WithNotify(f.notify("coingecko", i, len(chunks)))
		_, err := loop.Run(ctx, func(ctx context.Context) error {
			var err error
			prices, err = f.primary.SimplePrice(ctx, ch)
			return err
		})
		if err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			f.failChunk(res, ch, byID, err, i, len(chunks))
			continue
		}

		var found int
		for _, id := range ch {
			p, ok := prices[id]
			for _, a := range byID[id] {
				if !ok || p.USD == nil {
					res[a] = Lookup{Outcome: NotFound}
					continue
				}
				res[a] = Lookup{
					Outcome: Found,
					Info: models.PriceInfo{
						USD:       p.USD,
						Change24h: p.USD24hChange,
						Source:    models.PriceSourcePrimary,
					},
				}
				found++
			}
		}
		metrics.RecordPriceOutcome("coingecko", "found", found)
	}

	return res, nil
}

// failChunk records a failed primary chunk. Rate-limited addresses fall back
// to their expired cache entry when there is one.
func (f *Fetcher) failChunk(res map[string]Lookup, ids []string, byID map[string][]string, err error, idx, total int) {
	rateLimited := errors.Is(err, retry.ErrExhausted) && coingecko.IsRateLimited(err)

	var stale int
	for _, id := range ids {
		for _, a := range byID[id] {
			if rateLimited {
				if e, ok := f.cache.GetStale(a); ok {
					res[a] = Lookup{Outcome: Found, Info: e.Value, Stale: true}
					stale++
					continue
				}
			}
			res[a] = Lookup{Outcome: Failed, Err: err}
		}
	}

	metrics.RecordPriceOutcome("coingecko", "stale", stale)
	f.logger.WithError(err).WithFields(logrus.Fields{
		"chunk":        idx + 1,
		"chunks":       total,
		"ids":          len(ids),
		"rate_limited": rateLimited,
		"stale_used":   stale,
	}).Warn("primary price chunk failed")
}

// fallbackPass asks the fallback source about addresses in batches. A
// failed batch leaves its addresses Failed (or stale, see failBatch); they
// are not retried in this call.
func (f *Fetcher) fallbackPass(ctx context.Context, addresses []string) (map[string]Lookup, error) {
	res := make(map[string]Lookup, len(addresses))
	if len(addresses) == 0 {
		return res, nil
	}
	if f.fallback == nil {
		for _, a := range addresses {
			res[a] = Lookup{Outcome: NotFound}
		}
		return res, nil
	}

	limiter := newLimiter(f.fallbackDelay)
	batches := chunk(addresses, f.fallbackBatchSize)
	for i, batch := range batches {
		if err := limiter.Wait(ctx); err != nil {
			return res, err
		}

		var pairs []dexscreener.Pair
		loop := f.rateLimitRetry.If(dexscreener.IsRateLimited).WithNotify(f.notify("dexscreener", i, len(batches)))
		_, err := loop.Run(ctx, func(ctx context.Context) error {
			var err error
			pairs, err = f.fallback.TokenPairs(ctx, f.fallbackChain, batch)
			return err
		})
		if err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			f.failBatch(res, batch, err, i, len(batches))
			continue
		}

		merged := mergePairs(batch, pairs)
		for _, a := range batch {
			if info, ok := merged[a]; ok {
				res[a] = Lookup{Outcome: Found, Info: info}
			} else {
				res[a] = Lookup{Outcome: NotFound}
			}
		}
		metrics.RecordPriceOutcome("dexscreener", "found", len(merged))
	}

	return res, nil
}

// failBatch records a failed fallback batch. As with failChunk, rate-limited
// addresses keep serving their expired cache entry when there is one.
func (f *Fetcher) failBatch(res map[string]Lookup, batch []string, err error, idx, total int) {
	rateLimited := errors.Is(err, retry.ErrExhausted) && dexscreener.IsRateLimited(err)

	var stale int
	for _, a := range batch {
		if rateLimited {
			if e, ok := f.cache.GetStale(a); ok {
				res[a] = Lookup{Outcome: Found, Info: e.Value, Stale: true}
				stale++
				continue
			}
		}
		res[a] = Lookup{Outcome: Failed, Err: err}
	}

	metrics.RecordPriceOutcome("dexscreener", "stale", stale)
	metrics.RecordPriceOutcome("dexscreener", "failed", len(batch)-stale)
	f.logger.WithError(err).WithFields(logrus.Fields{
		"batch":        idx + 1,
		"batches":      total,
		"addresses":    len(batch),
		"rate_limited": rateLimited,
		"stale_used":   stale,
	}).Warn("fallback price batch failed, skipping")
}

// mergePairs folds the pair records of one batch into one PriceInfo per
// requested base token. The first priced pair sets price and change; counts
// and volume add up over every pair of the token.
func mergePairs(batch []string, pairs []dexscreener.Pair) map[string]models.PriceInfo {
	wanted := make(map[string]struct{}, len(batch))
	for _, a := range batch {
		wanted[a] = struct{}{}
	}

	out := make(map[string]models.PriceInfo)
	for _, p := range pairs {
		a := models.NormalizeAddress(p.BaseToken.Address)
		if _, ok := wanted[a]; !ok {
			continue
		}
		info, seen := out[a]
		if !seen {
			info.Source = models.PriceSourceFallback
		}
		if info.USD == nil {
			if usd := p.USD(); usd != nil {
				info.USD = usd
				info.Change24h = p.PriceChange.H24
			}
		}
		info.Buys += p.Txns.H24.Buys
		info.Sells += p.Txns.H24.Sells
		info.Volume24h += p.Volume.H24
		out[a] = info
	}
	return out
}

func (f *Fetcher) notify(source string, idx, total int) retry.Notify {
	return func(n int, d time.Duration, err error) {
		metrics.IncrementRetries(source)
		f.logger.WithFields(logrus.Fields{
			"source":  source,
			"batch":   idx + 1,
			"batches": total,
			"retry":   n,
			"backoff": d,
		}).WithError(err).Warn("rate limited, backing off")
	}
}

// newLimiter spaces successive requests by delay; the first one is free.
func newLimiter(delay time.Duration) *rate.Limiter {
	if delay <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(delay), 1)
}

func chunk(items []string, size int) [][]string {
	if size <= 0 {
		size = len(items)
	}
	var out [][]string
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		out = append(out, items[start:end])
	}
	return out
}

func dedupe(addresses []string) []string {
	seen := make(map[string]struct{}, len(addresses))
	out := make([]string, 0, len(addresses))
	for _, a := range addresses {
		a = models.NormalizeAddress(a)
		if a == "" {
			continue
		}
		if _, ok := seen[a]; ok {
			continue
		}
		seen[a] = struct{}{}
		out = append(out, a)
	}
	return out
}
