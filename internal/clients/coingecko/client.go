// Package coingecko provides market data fetching and caching for the
// CoinGecko REST API.
package coingecko

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/aristath/coindeck/internal/clientdata"
	"github.com/aristath/coindeck/internal/domain"
)

// Config holds CoinGecko client configuration
type Config struct {
	BaseURL string
	APIKey  string
	ProTier bool
}

// Client for the CoinGecko API
type Client struct {
	baseURL   string
	apiKey    string
	keyParam  string
	client    *http.Client
	limiter   *rate.Limiter
	log       zerolog.Logger
	cacheRepo *clientdata.Repository
}

// NewClient creates a new CoinGecko client.
// cacheRepo is optional - if nil, caching is disabled.
// The rate limiter stays under the free-tier allowance (roughly 30
// calls/min); pro keys get a higher budget.
func NewClient(cfg Config, cacheRepo *clientdata.Repository, log zerolog.Logger) *Client {
	keyParam := "x_cg_demo_api_key"
	limit := rate.Every(3 * time.Second)
	burst := 3
	if cfg.ProTier {
		keyParam = "x_cg_pro_api_key"
		limit = rate.Every(150 * time.Millisecond)
		burst = 10
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.coingecko.com/api/v3"
	}

	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    cfg.APIKey,
		keyParam:  keyParam,
		client:    &http.Client{Timeout: 10 * time.Second},
		limiter:   rate.NewLimiter(limit, burst),
		log:       log.With().Str("client", "coingecko").Logger(),
		cacheRepo: cacheRepo,
	}
}

// marketRow is the wire shape of one /coins/markets entry.
type marketRow struct {
	ID           string   `json:"id"`
	Symbol       string   `json:"symbol"`
	Name         string   `json:"name"`
	CurrentPrice float64  `json:"current_price"`
	Change24h    float64  `json:"price_change_percentage_24h"`
	Change7d     *float64 `json:"price_change_percentage_7d_in_currency"`
	Change30d    *float64 `json:"price_change_percentage_30d_in_currency"`
	MarketCap    float64  `json:"market_cap"`
	TotalVolume  float64  `json:"total_volume"`
	Image        string   `json:"image"`
	Sparkline    *struct {
		Price []float64 `json:"price"`
	} `json:"sparkline_in_7d"`
}

func (m marketRow) toSnapshot() domain.PriceSnapshot {
	s := domain.PriceSnapshot{
		CoinID:       m.ID,
		Symbol:       m.Symbol,
		Name:         m.Name,
		CurrentPrice: m.CurrentPrice,
		Change24h:    m.Change24h,
		Change7d:     m.Change7d,
		Change30d:    m.Change30d,
		MarketCap:    m.MarketCap,
		TotalVolume:  m.TotalVolume,
		Image:        m.Image,
	}
	if m.Sparkline != nil {
		s.Sparkline7d = m.Sparkline.Price
	}
	return s
}

// GetPrices fetches snapshots for the given coin IDs with cache.
// If the API fails, returns stale cached data if available (stale data > no data).
func (c *Client) GetPrices(ctx context.Context, coinIDs []string) ([]domain.PriceSnapshot, error) {
	if len(coinIDs) == 0 {
		return []domain.PriceSnapshot{}, nil
	}

	// Sorted IDs give a stable cache key regardless of caller order
	sorted := append([]string(nil), coinIDs...)
	sort.Strings(sorted)
	cacheKey := strings.Join(sorted, ",")

	endpoint := fmt.Sprintf(
		"/coins/markets?vs_currency=usd&ids=%s&order=market_cap_desc&sparkline=true&price_change_percentage=24h,7d,30d",
		url.QueryEscape(strings.Join(coinIDs, ",")),
	)

	return c.fetchMarkets(ctx, "coingecko_prices", cacheKey, endpoint, clientdata.TTLCurrentPrice)
}

// GetTopMarkets fetches the top coins by market cap with cache.
func (c *Client) GetTopMarkets(ctx context.Context, limit int) ([]domain.PriceSnapshot, error) {
	if limit <= 0 {
		limit = 100
	}
	cacheKey := fmt.Sprintf("top:%d", limit)
	endpoint := fmt.Sprintf(
		"/coins/markets?vs_currency=usd&order=market_cap_desc&per_page=%d&page=1&sparkline=true&price_change_percentage=24h,7d,30d",
		limit,
	)

	return c.fetchMarkets(ctx, "coingecko_markets", cacheKey, endpoint, clientdata.TTLMarkets)
}

// fetchMarkets runs the shared cache-first flow for market list endpoints.
func (c *Client) fetchMarkets(ctx context.Context, table, cacheKey, endpoint string, ttl time.Duration) ([]domain.PriceSnapshot, error) {
	// Check persistent cache for fresh data
	if c.cacheRepo != nil {
		data, err := c.cacheRepo.GetIfFresh(table, cacheKey)
		if err == nil && data != nil {
			var rows []marketRow
			if err := json.Unmarshal(data, &rows); err == nil {
				c.log.Debug().Str("table", table).Str("key", cacheKey).Msg("Cache hit")
				return rowsToSnapshots(rows), nil
			}
		}
	}

	var rows []marketRow
	if err := c.fetchJSON(ctx, endpoint, &rows); err != nil {
		// API failed - try stale cached data as fallback
		if stale, ok := c.getStaleRows(table, cacheKey); ok {
			c.log.Warn().Err(err).Str("key", cacheKey).Msg("API failed, using stale cached markets")
			return rowsToSnapshots(stale), nil
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrExternalFetch, err)
	}

	if c.cacheRepo != nil {
		if err := c.cacheRepo.Store(table, cacheKey, rows, ttl); err != nil {
			c.log.Warn().Err(err).Str("key", cacheKey).Msg("Failed to cache market data")
		}
	}

	c.log.Debug().Str("key", cacheKey).Int("coins", len(rows)).Msg("Fetched market data")
	return rowsToSnapshots(rows), nil
}

// SearchCoins searches the CoinGecko coin catalog.
func (c *Client) SearchCoins(ctx context.Context, query string) ([]domain.CoinSearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []domain.CoinSearchResult{}, nil
	}

	cacheKey := strings.ToLower(query)

	if c.cacheRepo != nil {
		data, err := c.cacheRepo.GetIfFresh("coingecko_search", cacheKey)
		if err == nil && data != nil {
			var cached []domain.CoinSearchResult
			if err := json.Unmarshal(data, &cached); err == nil {
				return cached, nil
			}
		}
	}

	var result struct {
		Coins []struct {
			ID     string `json:"id"`
			Name   string `json:"name"`
			Symbol string `json:"symbol"`
			Thumb  string `json:"thumb"`
			Large  string `json:"large"`
		} `json:"coins"`
	}
	endpoint := "/search?query=" + url.QueryEscape(query)
	if err := c.fetchJSON(ctx, endpoint, &result); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrExternalFetch, err)
	}

	results := make([]domain.CoinSearchResult, 0, len(result.Coins))
	for _, coin := range result.Coins {
		results = append(results, domain.CoinSearchResult{
			CoinID: coin.ID,
			Name:   coin.Name,
			Symbol: coin.Symbol,
			Thumb:  coin.Thumb,
			Large:  coin.Large,
		})
	}

	if c.cacheRepo != nil {
		if err := c.cacheRepo.Store("coingecko_search", cacheKey, results, clientdata.TTLSearch); err != nil {
			c.log.Warn().Err(err).Str("query", query).Msg("Failed to cache search results")
		}
	}

	return results, nil
}

// GetMarketChart fetches the historical price series for one coin.
// days is typically 1, 7 or 30. Returns [timestamp_ms, price] pairs.
func (c *Client) GetMarketChart(ctx context.Context, coinID string, days int) ([][2]float64, error) {
	if days <= 0 {
		days = 7
	}
	cacheKey := fmt.Sprintf("%s:%d", coinID, days)

	if c.cacheRepo != nil {
		data, err := c.cacheRepo.GetIfFresh("coingecko_charts", cacheKey)
		if err == nil && data != nil {
			var cached [][2]float64
			if err := json.Unmarshal(data, &cached); err == nil {
				return cached, nil
			}
		}
	}

	var result struct {
		Prices [][2]float64 `json:"prices"`
	}
	endpoint := fmt.Sprintf("/coins/%s/market_chart?vs_currency=usd&days=%d", url.PathEscape(coinID), days)
	if err := c.fetchJSON(ctx, endpoint, &result); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrExternalFetch, err)
	}

	if c.cacheRepo != nil {
		if err := c.cacheRepo.Store("coingecko_charts", cacheKey, result.Prices, clientdata.TTLChart); err != nil {
			c.log.Warn().Err(err).Str("coin", coinID).Msg("Failed to cache market chart")
		}
	}

	return result.Prices, nil
}

// fetchJSON performs a rate-limited GET against the API and decodes the body.
func (c *Client) fetchJSON(ctx context.Context, endpoint string, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait: %w", err)
	}

	reqURL := c.buildURL(endpoint)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	return nil
}

// buildURL appends the API key parameter when a key is configured.
func (c *Client) buildURL(endpoint string) string {
	full := c.baseURL + endpoint
	if c.apiKey == "" {
		return full
	}
	separator := "?"
	if strings.Contains(endpoint, "?") {
		separator = "&"
	}
	return full + separator + c.keyParam + "=" + url.QueryEscape(c.apiKey)
}

// getStaleRows retrieves cached rows even if expired.
// Use this as a fallback when API calls fail - stale data is better than no data.
func (c *Client) getStaleRows(table, cacheKey string) ([]marketRow, bool) {
	if c.cacheRepo == nil {
		return nil, false
	}

	data, err := c.cacheRepo.Get(table, cacheKey)
	if err != nil || data == nil {
		return nil, false
	}

	var rows []marketRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, false
	}

	return rows, true
}

func rowsToSnapshots(rows []marketRow) []domain.PriceSnapshot {
	snapshots := make([]domain.PriceSnapshot, 0, len(rows))
	for _, row := range rows {
		snapshots = append(snapshots, row.toSnapshot())
	}
	return snapshots
}
