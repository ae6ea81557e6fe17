package clientdata

import "time"

// TTL constants for different data types.
// These are added to time.Now() when storing to calculate expires_at.
const (
	// Coin catalog search results change rarely
	TTLSearch = 24 * time.Hour

	// Market listings move with the market but tolerate short staleness
	TTLMarkets = 5 * time.Minute

	// Current prices for held coins, short-lived by design
	TTLCurrentPrice = 30 * time.Second

	// Historical chart series, append-only after the fact
	TTLChart = time.Hour
)
