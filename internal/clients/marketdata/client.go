// Package marketdata provides the external market data API client used by
// the dimension collectors. Responses are cached persistently (cache-first
// with stale fallback) because the upstream API is rate limited and most of
// this data changes slowly.
package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/lookout/internal/clientdata"
)

// Client for the market data HTTP API.
type Client struct {
	baseURL   string
	apiKey    string
	client    *http.Client
	log       zerolog.Logger
	cacheRepo *clientdata.Repository
}

// NewClient creates a new market data client.
// cacheRepo is optional - if nil, caching is disabled.
func NewClient(baseURL, apiKey string, cacheRepo *clientdata.Repository, log zerolog.Logger) *Client {
	return &Client{
		baseURL:   baseURL,
		apiKey:    apiKey,
		client:    &http.Client{Timeout: 30 * time.Second},
		log:       log.With().Str("client", "marketdata").Logger(),
		cacheRepo: cacheRepo,
	}
}

// Overview is the company overview record.
type Overview struct {
	Symbol            string  `json:"symbol" msgpack:"symbol"`
	Name              string  `json:"name" msgpack:"name"`
	Exchange          string  `json:"exchange" msgpack:"exchange"`
	Currency          string  `json:"currency" msgpack:"currency"`
	Sector            string  `json:"sector" msgpack:"sector"`
	Industry          string  `json:"industry" msgpack:"industry"`
	MarketCap         float64 `json:"market_cap" msgpack:"market_cap"`
	PERatio           float64 `json:"pe_ratio" msgpack:"pe_ratio"`
	PriceToBook       float64 `json:"price_to_book" msgpack:"price_to_book"`
	EVToEBITDA        float64 `json:"ev_to_ebitda" msgpack:"ev_to_ebitda"`
	ProfitMargin      float64 `json:"profit_margin" msgpack:"profit_margin"`
	ReturnOnEquity    float64 `json:"return_on_equity" msgpack:"return_on_equity"`
	DebtToEquity      float64 `json:"debt_to_equity" msgpack:"debt_to_equity"`
	DividendYield     float64 `json:"dividend_yield" msgpack:"dividend_yield"`
	PayoutRatio       float64 `json:"payout_ratio" msgpack:"payout_ratio"`
	EPS               float64 `json:"eps" msgpack:"eps"`
	Beta              float64 `json:"beta" msgpack:"beta"`
	RevenueGrowthYOY  float64 `json:"revenue_growth_yoy" msgpack:"revenue_growth_yoy"`
	EarningsGrowthYOY float64 `json:"earnings_growth_yoy" msgpack:"earnings_growth_yoy"`
}

// EarningsReport is one quarterly earnings record.
type EarningsReport struct {
	FiscalDateEnding  string  `json:"fiscal_date_ending" msgpack:"fiscal_date_ending"`
	ReportedEPS       float64 `json:"reported_eps" msgpack:"reported_eps"`
	EstimatedEPS      float64 `json:"estimated_eps" msgpack:"estimated_eps"`
	SurprisePercent   float64 `json:"surprise_percent" msgpack:"surprise_percent"`
}

// Dividend is one dividend payment record.
type Dividend struct {
	ExDate string  `json:"ex_date" msgpack:"ex_date"`
	Amount float64 `json:"amount" msgpack:"amount"`
}

// DailyPrice is one daily close record.
type DailyPrice struct {
	Date   string  `json:"date" msgpack:"date"`
	Close  float64 `json:"close" msgpack:"close"`
	Volume int64   `json:"volume" msgpack:"volume"`
}

// NewsItem is one news headline with upstream sentiment annotation.
type NewsItem struct {
	Title          string  `json:"title" msgpack:"title"`
	Source         string  `json:"source" msgpack:"source"`
	PublishedAt    string  `json:"published_at" msgpack:"published_at"`
	Sentiment      string  `json:"sentiment" msgpack:"sentiment"`
	SentimentScore float64 `json:"sentiment_score" msgpack:"sentiment_score"`
}

// SymbolMatch is one symbol search result.
type SymbolMatch struct {
	Symbol   string `json:"symbol" msgpack:"symbol"`
	Name     string `json:"name" msgpack:"name"`
	Exchange string `json:"exchange" msgpack:"exchange"`
	Currency string `json:"currency" msgpack:"currency"`
	Type     string `json:"type" msgpack:"type"`
}

// GetOverview fetches the company overview for a symbol.
func (c *Client) GetOverview(ctx context.Context, symbol string) (*Overview, error) {
	var overview Overview
	err := c.cachedGet(ctx, "marketdata_overview", symbol, clientdata.TTLOverview, &overview,
		"overview", url.Values{"symbol": {symbol}})
	if err != nil {
		return nil, err
	}
	return &overview, nil
}

// GetEarnings fetches quarterly earnings history, most recent first.
func (c *Client) GetEarnings(ctx context.Context, symbol string) ([]EarningsReport, error) {
	var reports []EarningsReport
	err := c.cachedGet(ctx, "marketdata_earnings", symbol, clientdata.TTLEarnings, &reports,
		"earnings", url.Values{"symbol": {symbol}})
	if err != nil {
		return nil, err
	}
	return reports, nil
}

// GetDividends fetches dividend payment history, most recent first.
func (c *Client) GetDividends(ctx context.Context, symbol string) ([]Dividend, error) {
	var dividends []Dividend
	err := c.cachedGet(ctx, "marketdata_dividends", symbol, clientdata.TTLDividends, &dividends,
		"dividends", url.Values{"symbol": {symbol}})
	if err != nil {
		return nil, err
	}
	return dividends, nil
}

// GetDailyPrices fetches up to limit daily closes, oldest first (the order
// the technical indicator functions expect).
func (c *Client) GetDailyPrices(ctx context.Context, symbol string, limit int) ([]DailyPrice, error) {
	var prices []DailyPrice
	err := c.cachedGet(ctx, "marketdata_daily_prices", symbol, clientdata.TTLDailyPrices, &prices,
		"daily", url.Values{"symbol": {symbol}})
	if err != nil {
		return nil, err
	}

	sort.Slice(prices, func(i, j int) bool { return prices[i].Date < prices[j].Date })
	if limit > 0 && len(prices) > limit {
		prices = prices[len(prices)-limit:]
	}
	return prices, nil
}

// GetNews fetches recent news items for a symbol, most recent first.
func (c *Client) GetNews(ctx context.Context, symbol string, limit int) ([]NewsItem, error) {
	var items []NewsItem
	err := c.cachedGet(ctx, "marketdata_news", symbol, clientdata.TTLNews, &items,
		"news", url.Values{"symbol": {symbol}})
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

// SearchSymbol finds securities matching a free-form name or ticker.
func (c *Client) SearchSymbol(ctx context.Context, keywords string) ([]SymbolMatch, error) {
	var matches []SymbolMatch
	err := c.cachedGet(ctx, "marketdata_symbol_search", keywords, clientdata.TTLSymbolSearch, &matches,
		"search", url.Values{"keywords": {keywords}})
	if err != nil {
		return nil, err
	}
	return matches, nil
}

// cachedGet implements the cache-first fetch: fresh cache hit wins, then the
// API, then stale cache as a fallback when the API is unreachable.
func (c *Client) cachedGet(ctx context.Context, table, key string, ttl time.Duration, dest interface{}, endpoint string, params url.Values) error {
	if c.cacheRepo != nil {
		found, err := c.cacheRepo.GetIfFresh(table, key, dest)
		if err == nil && found {
			c.log.Debug().Str("table", table).Str("key", key).Msg("Cache hit")
			return nil
		}
	}

	if err := c.fetch(ctx, endpoint, params, dest); err != nil {
		// API failed - stale data beats no data.
		if c.cacheRepo != nil {
			found, cacheErr := c.cacheRepo.Get(table, key, dest)
			if cacheErr == nil && found {
				c.log.Warn().Err(err).Str("table", table).Str("key", key).
					Msg("API failed, using stale cached data")
				return nil
			}
		}
		return err
	}

	if c.cacheRepo != nil {
		if err := c.cacheRepo.Store(table, key, dest, ttl); err != nil {
			c.log.Warn().Err(err).Str("table", table).Str("key", key).
				Msg("Failed to cache API response")
		}
	}

	return nil
}

// fetch performs one API call and decodes the JSON response into dest.
func (c *Client) fetch(ctx context.Context, endpoint string, params url.Values, dest interface{}) error {
	params.Set("apikey", c.apiKey)
	reqURL := fmt.Sprintf("%s/api/v1/%s?%s", c.baseURL, endpoint, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	c.log.Debug().Str("endpoint", endpoint).Msg("Fetching market data")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("API returned status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("failed to parse API response: %w", err)
	}

	return nil
}
