package marketdata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/lookout/internal/clientdata"
	"github.com/aristath/lookout/internal/database"
)

func setupCache(t *testing.T) *clientdata.Repository {
	t.Helper()

	db, err := database.New(database.Config{
		Path:    "file:" + t.Name() + "?mode=memory&cache=shared",
		Profile: database.ProfileCache,
		Name:    "cache",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repo := clientdata.NewRepository(db.Conn())
	require.NoError(t, repo.EnsureSchema())
	return repo
}

func TestGetOverview(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/overview", r.URL.Path)
		assert.Equal(t, "ASML", r.URL.Query().Get("symbol"))
		assert.Equal(t, "test-key", r.URL.Query().Get("apikey"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"symbol":"ASML","name":"ASML Holding","sector":"Technology","pe_ratio":32.5}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key", nil, zerolog.Nop())

	overview, err := client.GetOverview(context.Background(), "ASML")
	require.NoError(t, err)
	assert.Equal(t, "ASML Holding", overview.Name)
	assert.InDelta(t, 32.5, overview.PERatio, 0.001)
}

func TestCacheFirstSecondCallSkipsAPI(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"symbol":"ASML","name":"ASML Holding"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key", setupCache(t), zerolog.Nop())

	_, err := client.GetOverview(context.Background(), "ASML")
	require.NoError(t, err)
	_, err = client.GetOverview(context.Background(), "ASML")
	require.NoError(t, err)

	assert.Equal(t, int32(1), calls.Load())
}

func TestStaleFallbackWhenAPIDown(t *testing.T) {
	cache := setupCache(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"symbol":"ASML","name":"ASML Holding"}`))
	}))

	client := NewClient(server.URL, "test-key", cache, zerolog.Nop())
	_, err := client.GetOverview(context.Background(), "ASML")
	require.NoError(t, err)

	// Expire the cached row, then kill the API.
	require.NoError(t, cache.Store("marketdata_overview", "ASML",
		Overview{Symbol: "ASML", Name: "ASML Holding"}, -1))
	server.Close()

	overview, err := client.GetOverview(context.Background(), "ASML")
	require.NoError(t, err)
	assert.Equal(t, "ASML Holding", overview.Name)
}

func TestAPIErrorStatusSurfaced(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key", nil, zerolog.Nop())

	_, err := client.GetOverview(context.Background(), "ASML")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestGetDailyPricesOrderedAndLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[
			{"date":"2026-08-27","close":710.0,"volume":100},
			{"date":"2026-08-25","close":700.0,"volume":100},
			{"date":"2026-08-26","close":705.0,"volume":100}
		]`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key", nil, zerolog.Nop())

	prices, err := client.GetDailyPrices(context.Background(), "ASML", 2)
	require.NoError(t, err)
	require.Len(t, prices, 2)
	assert.Equal(t, "2026-08-26", prices[0].Date)
	assert.Equal(t, "2026-08-27", prices[1].Date)
}

func TestSearchSymbol(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "asml holding", r.URL.Query().Get("keywords"))
		_, _ = w.Write([]byte(`[{"symbol":"ASML","name":"ASML Holding NV","exchange":"NASDAQ","currency":"USD","type":"EQUITY"}]`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key", nil, zerolog.Nop())

	matches, err := client.SearchSymbol(context.Background(), "asml holding")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "ASML", matches[0].Symbol)
}
