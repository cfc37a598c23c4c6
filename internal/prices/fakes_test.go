package prices

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/aman-zulfiqar/token-aggregator/internal/coingecko"
	"github.com/aman-zulfiqar/token-aggregator/internal/dexscreener"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type fakeLister struct {
	mu    sync.Mutex
	calls int
	fn    func(call int) ([]coingecko.Coin, error)
}

func (l *fakeLister) CoinsList(ctx context.Context) ([]coingecko.Coin, error) {
	l.mu.Lock()
	l.calls++
	n := l.calls
	l.mu.Unlock()
	return l.fn(n)
}

func (l *fakeLister) Calls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

// staticResolver resolves from a fixed map.
type staticResolver map[string]string

func (s staticResolver) Resolve(_ context.Context, addresses []string) map[string]string {
	out := make(map[string]string)
	for _, a := range addresses {
		if id, ok := s[a]; ok {
			out[a] = id
		}
	}
	return out
}

type fakePrimary struct {
	mu    sync.Mutex
	calls [][]string
	times []time.Time
	fn    func(ids []string) (map[string]coingecko.SimplePrice, error)
}

func (p *fakePrimary) SimplePrice(_ context.Context, ids []string) (map[string]coingecko.SimplePrice, error) {
	p.mu.Lock()
	p.calls = append(p.calls, append([]string(nil), ids...))
	p.times = append(p.times, time.Now())
	p.mu.Unlock()
	return p.fn(ids)
}

func (p *fakePrimary) Calls() [][]string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

type fakeFallback struct {
	mu    sync.Mutex
	calls [][]string
	fn    func(addresses []string) ([]dexscreener.Pair, error)
}

func (f *fakeFallback) TokenPairs(_ context.Context, _ string, addresses []string) ([]dexscreener.Pair, error) {
	f.mu.Lock()
	f.calls = append(f.calls, append([]string(nil), addresses...))
	f.mu.Unlock()
	return f.fn(addresses)
}

func (f *fakeFallback) Calls() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func usd(v float64) *float64 { return &v }

func priceMap(prices map[string]float64) func([]string) (map[string]coingecko.SimplePrice, error) {
	return func(ids []string) (map[string]coingecko.SimplePrice, error) {
		out := make(map[string]coingecko.SimplePrice)
		for _, id := range ids {
			if p, ok := prices[id]; ok {
				out[id] = coingecko.SimplePrice{USD: usd(p)}
			}
		}
		return out, nil
	}
}

var (
	errCGRateLimited = &coingecko.HTTPError{StatusCode: http.StatusTooManyRequests}
	errDSServer      = &dexscreener.HTTPError{StatusCode: http.StatusInternalServerError}
	errDSRateLimited = &dexscreener.HTTPError{StatusCode: http.StatusTooManyRequests}
)
