package prices

import (
	"context"
	"time"

	"github.com/aman-zulfiqar/token-aggregator/internal/cache"
	"github.com/aman-zulfiqar/token-aggregator/internal/coingecko"
	"github.com/aman-zulfiqar/token-aggregator/internal/constants"
	"github.com/aman-zulfiqar/token-aggregator/internal/metrics"
	"github.com/aman-zulfiqar/token-aggregator/internal/models"
	"github.com/aman-zulfiqar/token-aggregator/internal/retry"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// CoinLister is the bulk listing endpoint of the primary source.
type CoinLister interface {
	CoinsList(ctx context.Context) ([]coingecko.Coin, error)
}

// ResolverConfig holds configuration for the identifier resolver
type ResolverConfig struct {
	Lister   CoinLister
	Platform string
	// Cache holds the address -> coin id mapping. A 12h cache is created
	// when nil.
	Cache  *cache.UnitCache[map[string]string]
	Retry  retry.Loop
	Logger *logrus.Logger
}

// Resolver maps token addresses to primary-source coin ids.
type Resolver struct {
	lister   CoinLister
	platform string
	mapping  *cache.UnitCache[map[string]string]
	retry    retry.Loop
	logger   *logrus.Logger

	group singleflight.Group
}

// NewResolver creates a resolver
func NewResolver(cfg ResolverConfig) *Resolver {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.Cache == nil {
		cfg.Cache = cache.NewUnitCache[map[string]string](constants.IdentifierMappingTTL)
	}
	if cfg.Platform == "" {
		cfg.Platform = constants.DefaultPlatform
	}
	return &Resolver{
		lister:   cfg.Lister,
		platform: cfg.Platform,
		mapping:  cfg.Cache,
		retry:    cfg.Retry,
		logger:   cfg.Logger,
	}
}

// Resolve returns the coin id of every address the primary source knows.
// Unknown addresses are absent from the result. A failed listing falls back
// to the last good mapping, or to an empty one.
func (r *Resolver) Resolve(ctx context.Context, addresses []string) map[string]string {
	m := r.current(ctx)

	out := make(map[string]string, len(addresses))
	for _, a := range addresses {
		a = models.NormalizeAddress(a)
		if id, ok := m[a]; ok {
			out[a] = id
		}
	}
	return out
}

// Invalidate forces the next Resolve to reload the listing.
func (r *Resolver) Invalidate() {
	r.mapping.Invalidate()
}

func (r *Resolver) current(ctx context.Context) map[string]string {
	if m, ok := r.mapping.Get(); ok {
		return m
	}

	// concurrent refreshes share one listing call
	v, _, _ := r.group.Do("coins-list", func() (interface{}, error) {
		if m, ok := r.mapping.Get(); ok {
			return m, nil
		}
		return r.reload(ctx), nil
	})
	return v.(map[string]string)
}

func (r *Resolver) reload(ctx context.Context) map[string]string {
	start := time.Now()

	var coins []coingecko.Coin
	loop := r.retry.If(coingecko.IsRateLimited).WithNotify(func(n int, d time.Duration, err error) {
		metrics.IncrementRetries("coingecko")
		r.logger.WithFields(logrus.Fields{
			"retry":   n,
			"backoff": d,
		}).WithError(err).Warn("coin listing rate limited, backing off")
	})
	_, err := loop.Run(ctx, func(ctx context.Context) error {
		var err error
		coins, err = r.lister.CoinsList(ctx)
		return err
	})
	if err != nil {
		last, ok := r.mapping.Last()
		r.logger.WithError(err).WithField("have_previous", ok).Warn("coin listing failed, keeping previous mapping")
		if ok {
			return last.Value
		}
		return map[string]string{}
	}

	m := make(map[string]string, len(coins)/4)
	for _, c := range coins {
		addr := models.NormalizeAddress(c.Platforms[r.platform])
		if addr == "" || c.ID == "" {
			continue
		}
		if _, dup := m[addr]; dup {
			continue
		}
		m[addr] = c.ID
	}
	r.mapping.Put(m)

	r.logger.WithFields(logrus.Fields{
		"platform": r.platform,
		"coins":    len(coins),
		"mapped":   len(m),
		"took":     time.Since(start).Round(time.Millisecond),
	}).Info("rebuilt identifier mapping")
	return m
}
