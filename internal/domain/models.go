package domain

// Price-source-agnostic types shared across modules.
// These types abstract away provider-specific payloads (CoinGecko, etc.).

// PriceSnapshot represents the latest market data for one coin.
// Percentage fields beyond 24h are optional: the free CoinGecko tier
// omits them, so consumers must fall back explicitly (see movers).
type PriceSnapshot struct {
	CoinID       string    `json:"id"`
	Symbol       string    `json:"symbol"`
	Name         string    `json:"name"`
	CurrentPrice float64   `json:"current_price"`
	Change24h    float64   `json:"price_change_percentage_24h"`
	Change7d     *float64  `json:"price_change_percentage_7d_in_currency,omitempty"`
	Change30d    *float64  `json:"price_change_percentage_30d_in_currency,omitempty"`
	Sparkline7d  []float64 `json:"sparkline_7d,omitempty"`
	MarketCap    float64   `json:"market_cap"`
	TotalVolume  float64   `json:"total_volume"`
	Image        string    `json:"image,omitempty"`
}

// CoinSearchResult is one hit from a coin catalog search.
type CoinSearchResult struct {
	CoinID string `json:"id"`
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
	Thumb  string `json:"thumb,omitempty"`
	Large  string `json:"large,omitempty"`
}

// PriceMap indexes snapshots by coin ID for lookup during aggregation.
type PriceMap map[string]PriceSnapshot

// BuildPriceMap converts a snapshot list into a lookup map.
// Later duplicates win, matching last-write semantics of the source feed.
func BuildPriceMap(snapshots []PriceSnapshot) PriceMap {
	m := make(PriceMap, len(snapshots))
	for _, s := range snapshots {
		m[s.CoinID] = s
	}
	return m
}
