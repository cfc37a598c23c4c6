package dexscreener

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aman-zulfiqar/token-aggregator/internal/constants"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

// ErrRateLimited is matched by errors.Is on an *HTTPError with status 429.
var ErrRateLimited = errors.New("dexscreener rate limited")

// ErrCircuitOpen is returned while the breaker rejects calls.
var ErrCircuitOpen = gobreaker.ErrOpenState

type Client struct {
	BaseURL string
	HTTP    *http.Client

	breaker *gobreaker.CircuitBreaker
}

type HTTPError struct {
	StatusCode int
	Body       []byte
}

func (e *HTTPError) Error() string {
	b := strings.TrimSpace(string(e.Body))
	if b == "" {
		return fmt.Sprintf("dexscreener http %d", e.StatusCode)
	}
	return fmt.Sprintf("dexscreener http %d: %s", e.StatusCode, b)
}

func (e *HTTPError) Unwrap() error {
	if e.StatusCode == http.StatusTooManyRequests {
		return ErrRateLimited
	}
	return nil
}

// IsRateLimited reports whether err is a 429 from the API.
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

// NewClient creates a client whose calls go through a circuit breaker: after
// repeated hard failures it stops calling the API for a minute.
func NewClient(baseURL string, timeout time.Duration, logger *logrus.Logger) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = constants.DefaultDexScreenerBaseURL
	}
	if timeout <= 0 {
		timeout = 12 * time.Second
	}
	if logger == nil {
		logger = logrus.New()
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "dexscreener",
		MaxRequests: 1,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			// a 429 means the API is up; retries handle it
			return err == nil || IsRateLimited(err)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("circuit breaker state changed")
		},
	})

	return &Client{
		BaseURL: baseURL,
		HTTP:    &http.Client{Timeout: timeout},
		breaker: breaker,
	}
}

// TokenPairs returns every pair whose base or quote token is one of
// addresses on chain.
func (c *Client) TokenPairs(ctx context.Context, chain string, addresses []string) ([]Pair, error) {
	if len(addresses) == 0 {
		return []Pair{}, nil
	}
	if strings.TrimSpace(chain) == "" {
		return nil, fmt.Errorf("chain is required")
	}

	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.tokenPairs(ctx, chain, addresses)
	})
	if err != nil {
		return nil, err
	}
	return out.([]Pair), nil
}

func (c *Client) tokenPairs(ctx context.Context, chain string, addresses []string) ([]Pair, error) {
	escaped := make([]string, len(addresses))
	for i, a := range addresses {
		escaped[i] = url.PathEscape(a)
	}
	u := fmt.Sprintf("%s/tokens/v1/%s/%s", c.BaseURL, url.PathEscape(chain), strings.Join(escaped, ","))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("accept", "application/json")

	res, err := c.HTTP.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	body, _ := io.ReadAll(res.Body)
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, &HTTPError{StatusCode: res.StatusCode, Body: body}
	}

	var pairs []Pair
	if err := json.Unmarshal(body, &pairs); err != nil {
		return nil, fmt.Errorf("failed to decode dexscreener response: %w", err)
	}
	return pairs, nil
}
