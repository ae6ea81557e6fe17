package domain

import "context"

// PriceSource defines the contract for fetching market data.
// Implementations may serve cached or stale data; callers must treat
// results as optionally absent and degrade to cost-basis figures.
type PriceSource interface {
	// GetPrices returns snapshots for the given coin IDs. Coins unknown
	// to the provider are simply missing from the result.
	GetPrices(ctx context.Context, coinIDs []string) ([]PriceSnapshot, error)

	// GetTopMarkets returns the top coins by market cap.
	GetTopMarkets(ctx context.Context, limit int) ([]PriceSnapshot, error)

	// SearchCoins searches the provider's coin catalog.
	SearchCoins(ctx context.Context, query string) ([]CoinSearchResult, error)
}

// BalanceProvider defines the cash operations the portfolio service needs.
// Defined here to break the import cycle between portfolio and balance.
type BalanceProvider interface {
	// Balance returns the current cash balance.
	Balance() float64

	// Deposit credits the balance. Amount must be positive.
	Deposit(amount float64) error

	// Withdraw debits the balance atomically. Returns false without
	// mutating state when funds are insufficient.
	Withdraw(amount float64) (bool, error)
}
