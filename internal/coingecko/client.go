package coingecko

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
)

// ErrRateLimited is matched by errors.Is on an *HTTPError with status 429.
var ErrRateLimited = errors.New("coingecko rate limited")

type Client struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = constants.DefaultCoinGeckoBaseURL
	}
	if timeout <= 0 {
		timeout = 12 * time.Second
	}
	return &Client{
		BaseURL: baseURL,
		APIKey:  strings.TrimSpace(apiKey),
		HTTP: &http.Client{
			Timeout: timeout,
		},
	}
}

type HTTPError struct {
	StatusCode int
	Body       []byte
}

func (e *HTTPError) Error() string {
	b := strings.TrimSpace(string(e.Body))
	if b == "" {
		return fmt.Sprintf("coingecko http %d", e.StatusCode)
	}
	return fmt.Sprintf("coingecko http %d: %s", e.StatusCode, b)
}

// Unwrap lets errors.Is(err, ErrRateLimited) see through a 429.
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

// CoinsList returns every listed coin together with its contract addresses
// per platform.
func (c *Client) CoinsList(ctx context.Context) ([]Coin, error) {
	q := url.Values{}
	q.Set("include_platform", "true")

	var out []Coin
	if err := c.get(ctx, "/coins/list", q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SimplePrice returns USD price and 24h change for ids. The response only
// carries ids the API knows; fields may be missing or null.
func (c *Client) SimplePrice(ctx context.Context, ids []string) (map[string]SimplePrice, error) {
	if len(ids) == 0 {
		return map[string]SimplePrice{}, nil
	}

	q := url.Values{}
	q.Set("ids", strings.Join(ids, ","))
	q.Set("vs_currencies", "usd")
	q.Set("include_24hr_change", "true")

	out := make(map[string]SimplePrice, len(ids))
	if err := c.get(ctx, "/simple/price", q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	u := c.BaseURL + path + "?" + q.Encode()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	httpReq.Header.Set("accept", "application/json")
	if c.APIKey != "" {
		httpReq.Header.Set("x-cg-demo-api-key", c.APIKey)
	}

	res, err := c.HTTP.Do(httpReq)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	body, _ := io.ReadAll(res.Body)
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return &HTTPError{StatusCode: res.StatusCode, Body: body}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode coingecko %s response: %w", path, err)
	}
	return nil
}
