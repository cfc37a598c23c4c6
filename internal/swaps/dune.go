package swaps

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/aman-zulfiqar/token-aggregator/internal/constants"
)

// HTTPSource reads swap rows from a saved query's results endpoint
// (Dune API v1).
type HTTPSource struct {
	BaseURL string
	APIKey  string
	QueryID string
	HTTP    *http.Client
}

func NewHTTPSource(baseURL, apiKey, queryID string, timeout time.Duration) *HTTPSource {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = constants.DefaultDuneBaseURL
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &HTTPSource{
		BaseURL: baseURL,
		APIKey:  strings.TrimSpace(apiKey),
		QueryID: strings.TrimSpace(queryID),
		HTTP:    &http.Client{Timeout: timeout},
	}
}

type HTTPError struct {
	StatusCode int
	Body       []byte
}

func (e *HTTPError) Error() string {
	b := strings.TrimSpace(string(e.Body))
	if b == "" {
		return fmt.Sprintf("swap feed http %d", e.StatusCode)
	}
	return fmt.Sprintf("swap feed http %d: %s", e.StatusCode, b)
}

type resultsResponse struct {
	Result struct {
		Rows []Row `json:"rows"`
	} `json:"result"`
}

// FetchPage returns up to limit rows starting at offset.
func (s *HTTPSource) FetchPage(ctx context.Context, offset, limit int) ([]Row, error) {
	if s.QueryID == "" {
		return nil, fmt.Errorf("query id is required")
	}

	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))

	u := fmt.Sprintf("%s/api/v1/query/%s/results?%s", s.BaseURL, url.PathEscape(s.QueryID), q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("accept", "application/json")
	if s.APIKey != "" {
		req.Header.Set("X-Dune-API-Key", s.APIKey)
	}

	res, err := s.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	body, _ := io.ReadAll(res.Body)
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, &HTTPError{StatusCode: res.StatusCode, Body: body}
	}

	var out resultsResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to decode swap feed page: %w", err)
	}
	return out.Result.Rows, nil
}
