package coingecko

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoinsList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/coins/list", r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("include_platform"))
		assert.Equal(t, "key", r.Header.Get("x-cg-demo-api-key"))
		_, _ = w.Write([]byte(`[
			{"id":"token-a","symbol":"aa","name":"Token A","platforms":{"ethereum":"0xAA"}},
			{"id":"bitcoin","symbol":"btc","name":"Bitcoin","platforms":{}}
		]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key", time.Second)
	coins, err := c.CoinsList(context.Background())
	require.NoError(t, err)
	require.Len(t, coins, 2)
	assert.Equal(t, "token-a", coins[0].ID)
	assert.Equal(t, "0xAA", coins[0].Platforms["ethereum"])
}

func TestSimplePrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/simple/price", r.URL.Path)
		assert.Equal(t, "a,b", r.URL.Query().Get("ids"))
		assert.Equal(t, "usd", r.URL.Query().Get("vs_currencies"))
		_, _ = w.Write([]byte(`{"a":{"usd":1.5,"usd_24h_change":-2.5},"b":{"usd":0}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", time.Second)
	out, err := c.SimplePrice(context.Background(), []string{"a", "b"})
	require.NoError(t, err)

	require.NotNil(t, out["a"].USD)
	assert.Equal(t, 1.5, *out["a"].USD)
	assert.Equal(t, -2.5, *out["a"].USD24hChange)
	require.NotNil(t, out["b"].USD, "zero is a price")
	assert.Equal(t, 0.0, *out["b"].USD)
	assert.Nil(t, out["b"].USD24hChange)
}

func TestSimplePrice_Empty(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", "", time.Second)
	out, err := c.SimplePrice(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestRateLimitedError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"status":{"error_code":429}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", time.Second)
	_, err := c.SimplePrice(context.Background(), []string{"a"})
	require.Error(t, err)
	assert.True(t, IsRateLimited(err))

	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusTooManyRequests, httpErr.StatusCode)
}

func TestServerErrorIsNotRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", time.Second)
	_, err := c.CoinsList(context.Background())
	require.Error(t, err)
	assert.False(t, IsRateLimited(err))
	assert.Equal(t, "coingecko http 502", err.Error())
}
