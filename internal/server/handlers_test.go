package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/aman-zulfiqar/token-aggregator/internal/models"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSnapshots struct {
	mu        sync.Mutex
	snap      models.Snapshot
	status    models.Status
	triggered int
}

func (f *fakeSnapshots) GetSnapshot(context.Context) models.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap.Clone()
}

func (f *fakeSnapshots) TriggerRefresh(context.Context) models.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.triggered++
	return f.snap.Clone()
}

func (f *fakeSnapshots) Status() models.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

func record(addr, symbol string, price *float64, buys int64) models.TokenRecord {
	return models.TokenRecord{
		Address:      addr,
		Symbol:       symbol,
		CurrentPrice: price,
		PriceSource:  models.PriceSourcePrimary,
		Info:         models.TokenInfo{Buys: buys},
	}
}

func newTestServer(t *testing.T, svc *fakeSnapshots, cfg ServerConfig) *echo.Echo {
	t.Helper()
	e := echo.New()
	RegisterRoutes(e, &Handlers{Snapshots: svc, RefreshWait: time.Second}, cfg)
	return e
}

func do(e *echo.Echo, method, target string, hdr map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func sampleService() *fakeSnapshots {
	built := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return &fakeSnapshots{
		snap: models.Snapshot{
			Records: []models.TokenRecord{
				record("0xaa", "AA", models.Float64Ptr(1.5), 3),
				record("0xbb", "BB", nil, 10),
				record("0xcc", "CC", models.Float64Ptr(9), 1),
			},
			BuiltAt: built,
			Success: true,
		},
		status: models.Status{State: models.StateServing, BuiltAt: &built, TTLState: models.TTLStateFresh, RecordCount: 3},
	}
}

func TestHealth(t *testing.T) {
	e := newTestServer(t, sampleService(), ServerConfig{})
	rec := do(e, http.MethodGet, "/v1/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}

func TestTokens_Paging(t *testing.T) {
	e := newTestServer(t, sampleService(), ServerConfig{})

	rec := do(e, http.MethodGet, "/v1/tokens?page=2&limit=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp TokensResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.Total)
	assert.Equal(t, 2, resp.Page)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, "0xcc", resp.Items[0].Address)
	assert.True(t, resp.Success)
	require.NotNil(t, resp.BuiltAt)

	rec = do(e, http.MethodGet, "/v1/tokens?page=9", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Empty(t, resp.Items)
}

func TestTokens_HugePageIsEmpty(t *testing.T) {
	e := newTestServer(t, sampleService(), ServerConfig{})

	// (page-1)*limit wraps to a negative int64 here
	rec := do(e, http.MethodGet, "/v1/tokens?page=4611686018427387905&limit=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp TokensResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.Total)
	assert.Empty(t, resp.Items)
}

func TestTokens_Sort(t *testing.T) {
	e := newTestServer(t, sampleService(), ServerConfig{})

	addrs := func(target string) []string {
		rec := do(e, http.MethodGet, target, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var resp TokensResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		var out []string
		for _, r := range resp.Items {
			out = append(out, r.Address)
		}
		return out
	}

	assert.Equal(t, []string{"0xcc", "0xaa", "0xbb"}, addrs("/v1/tokens?sort=price"))
	assert.Equal(t, []string{"0xaa", "0xcc", "0xbb"}, addrs("/v1/tokens?sort=price&order=asc"))
	assert.Equal(t, []string{"0xbb", "0xaa", "0xcc"}, addrs("/v1/tokens?sort=buys"))
	assert.Equal(t, []string{"0xaa", "0xbb", "0xcc"}, addrs("/v1/tokens"))
}

func TestTokens_InvalidParams(t *testing.T) {
	e := newTestServer(t, sampleService(), ServerConfig{})
	for _, target := range []string{
		"/v1/tokens?page=0",
		"/v1/tokens?page=x",
		"/v1/tokens?limit=0",
		"/v1/tokens?limit=501",
		"/v1/tokens?sort=market_cap",
		"/v1/tokens?order=up",
	} {
		rec := do(e, http.MethodGet, target, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestToken(t *testing.T) {
	e := newTestServer(t, sampleService(), ServerConfig{})

	rec := do(e, http.MethodGet, "/v1/tokens/0xAA", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var r models.TokenRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &r))
	assert.Equal(t, "AA", r.Symbol)
	require.NotNil(t, r.CurrentPrice)
	assert.Equal(t, 1.5, *r.CurrentPrice)

	rec = do(e, http.MethodGet, "/v1/tokens/0xbb", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"currentPrice":null`)

	rec = do(e, http.MethodGet, "/v1/tokens/0xdead", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatus(t *testing.T) {
	e := newTestServer(t, sampleService(), ServerConfig{})
	rec := do(e, http.MethodGet, "/v1/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var st models.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, models.StateServing, st.State)
	assert.Equal(t, models.TTLStateFresh, st.TTLState)
	assert.Equal(t, 3, st.RecordCount)
}

func TestRefresh_RateLimited(t *testing.T) {
	svc := sampleService()
	e := newTestServer(t, svc, ServerConfig{})

	rec := do(e, http.MethodPost, "/v1/refresh", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp RefreshResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.RecordCount)

	rec = do(e, http.MethodPost, "/v1/refresh", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, 1, svc.triggered)
}

func TestRefresh_AcceptedWhileRefreshing(t *testing.T) {
	svc := sampleService()
	svc.status.State = models.StateRefreshing
	e := newTestServer(t, svc, ServerConfig{})

	rec := do(e, http.MethodPost, "/v1/refresh", nil)
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestAPIKey(t *testing.T) {
	e := newTestServer(t, sampleService(), ServerConfig{APIKey: "s3cret"})

	assert.Equal(t, http.StatusOK, do(e, http.MethodGet, "/v1/health", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, do(e, http.MethodGet, "/v1/status", map[string]string{"X-API-Key": "nope"}).Code)
	assert.Equal(t, http.StatusOK, do(e, http.MethodGet, "/v1/status", map[string]string{"X-API-Key": "s3cret"}).Code)
}

func TestNotFound(t *testing.T) {
	e := newTestServer(t, sampleService(), ServerConfig{})
	rec := do(e, http.MethodGet, "/v2/nothing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"not found","code":404}`, rec.Body.String())
}

func TestErrorHandler(t *testing.T) {
	e := echo.New()
	h := &Handlers{Snapshots: sampleService(), RefreshWait: time.Second}
	RegisterRoutes(e, h, ServerConfig{APIKey: "s3cret"})
	e.GET("/boom", func(echo.Context) error { return errors.New("clickhouse: connection refused") })
	auth := map[string]string{"X-API-Key": "s3cret"}

	rec := do(e, http.MethodGet, "/boom", auth)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal server error","code":500}`, rec.Body.String())

	rec = do(e, http.MethodGet, "/v1/status", map[string]string{"X-API-Key": "nope"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"unauthorized","code":401}`, rec.Body.String())
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	h.DevMode = true
	rec = do(e, http.MethodGet, "/boom", auth)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "connection refused")
}

func TestServerShutdownTwice(t *testing.T) {
	srv, err := NewServer(ServerDeps{
		Handlers: &Handlers{Snapshots: sampleService()},
		Config:   ServerConfig{Addr: "127.0.0.1:0"},
	})
	require.NoError(t, err)

	require.NoError(t, srv.Shutdown(context.Background()))
	require.NoError(t, srv.Shutdown(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, srv.WaitClosed(ctx))
}

func TestMetrics(t *testing.T) {
	e := newTestServer(t, sampleService(), ServerConfig{})
	rec := do(e, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
