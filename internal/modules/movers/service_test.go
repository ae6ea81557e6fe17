package movers

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/coindeck/internal/domain"
	"github.com/aristath/coindeck/internal/modules/portfolio"
	"github.com/aristath/coindeck/internal/storage"
	testingpkg "github.com/aristath/coindeck/internal/testing"
)

// stubPrices serves fixed market data.
type stubPrices struct {
	markets []domain.PriceSnapshot
	quotes  map[string]float64
}

func (s *stubPrices) GetPrices(_ context.Context, coinIDs []string) ([]domain.PriceSnapshot, error) {
	var out []domain.PriceSnapshot
	for _, id := range coinIDs {
		if price, ok := s.quotes[id]; ok {
			out = append(out, domain.PriceSnapshot{CoinID: id, CurrentPrice: price})
		}
	}
	return out, nil
}

func (s *stubPrices) GetTopMarkets(_ context.Context, _ int) ([]domain.PriceSnapshot, error) {
	return s.markets, nil
}

func (s *stubPrices) SearchCoins(_ context.Context, _ string) ([]domain.CoinSearchResult, error) {
	return nil, nil
}

func floatPtr(v float64) *float64 { return &v }

func TestChangeForPeriod_1dAlwaysUses24h(t *testing.T) {
	snap := domain.PriceSnapshot{Change24h: -3.5}
	assert.InDelta(t, -3.5, ChangeForPeriod(snap, Period1d), 1e-9)
}

func TestChangeForPeriod_7dPrefersNativeField(t *testing.T) {
	snap := domain.PriceSnapshot{
		Change7d:    floatPtr(12.5),
		Sparkline7d: []float64{100, 110},
	}
	assert.InDelta(t, 12.5, ChangeForPeriod(snap, Period7d), 1e-9)
}

func TestChangeForPeriod_7dSparklineFallback(t *testing.T) {
	snap := domain.PriceSnapshot{Sparkline7d: []float64{100, 105, 110}}
	assert.InDelta(t, 10.0, ChangeForPeriod(snap, Period7d), 1e-9)
}

func TestChangeForPeriod_7dUnusableSourcesCountAsFlat(t *testing.T) {
	// No 7d field and no sparkline
	assert.InDelta(t, 0.0, ChangeForPeriod(domain.PriceSnapshot{Change24h: 1}, Period7d), 1e-9)

	// A one-point sparkline cannot produce a percentage
	assert.InDelta(t, 0.0, ChangeForPeriod(domain.PriceSnapshot{Sparkline7d: []float64{100}}, Period7d), 1e-9)

	// Neither can a series starting at zero
	assert.InDelta(t, 0.0, ChangeForPeriod(domain.PriceSnapshot{Sparkline7d: []float64{0, 10}}, Period7d), 1e-9)
}

func TestChangeForPeriod_30dChain(t *testing.T) {
	// Native 30d wins
	pct := ChangeForPeriod(domain.PriceSnapshot{
		Change30d: floatPtr(40),
		Change7d:  floatPtr(10),
	}, Period30d)
	assert.InDelta(t, 40.0, pct, 1e-9)

	// Falls back to 7d
	pct = ChangeForPeriod(domain.PriceSnapshot{Change7d: floatPtr(10)}, Period30d)
	assert.InDelta(t, 10.0, pct, 1e-9)

	// Then to the sparkline
	pct = ChangeForPeriod(domain.PriceSnapshot{Sparkline7d: []float64{100, 120}}, Period30d)
	assert.InDelta(t, 20.0, pct, 1e-9)

	// And finally to 24h, which always exists
	pct = ChangeForPeriod(domain.PriceSnapshot{Change24h: -2}, Period30d)
	assert.InDelta(t, -2.0, pct, 1e-9)
}

func TestParsePeriodAndDirection(t *testing.T) {
	period, err := ParsePeriod("")
	require.NoError(t, err)
	assert.Equal(t, Period1d, period)

	_, err = ParsePeriod("90d")
	assert.True(t, domain.IsValidation(err))

	direction, err := ParseDirection("")
	require.NoError(t, err)
	assert.Equal(t, Gainers, direction)

	_, err = ParseDirection("sideways")
	assert.True(t, domain.IsValidation(err))
}

func marketSnap(id string, change24h float64) domain.PriceSnapshot {
	return domain.PriceSnapshot{CoinID: id, Symbol: id[:3], Name: id, Change24h: change24h}
}

func TestTopMovers_RanksAndCaps(t *testing.T) {
	prices := &stubPrices{markets: []domain.PriceSnapshot{
		marketSnap("coin-a", 5),
		marketSnap("coin-b", -8),
		marketSnap("coin-c", 12),
		marketSnap("coin-d", 0),
		marketSnap("coin-e", 3),
		marketSnap("coin-f", 7),
		marketSnap("coin-g", 1),
		marketSnap("coin-h", 9),
		marketSnap("coin-i", 2),
	}}
	svc := NewService(prices, nil, 100, zerolog.Nop())

	gainers, err := svc.TopMovers(context.Background(), Period1d, Gainers)
	require.NoError(t, err)
	require.Len(t, gainers, 5)
	assert.Equal(t, "coin-c", gainers[0].CoinID)
	assert.Equal(t, "coin-h", gainers[1].CoinID)
	assert.InDelta(t, 12.0, gainers[0].ChangePct, 1e-9)

	// Losers are the bottom of the same ranking, most negative first
	losers, err := svc.TopMovers(context.Background(), Period1d, Losers)
	require.NoError(t, err)
	require.Len(t, losers, 5)
	assert.Equal(t, "coin-b", losers[0].CoinID)
	assert.Equal(t, "coin-d", losers[1].CoinID)
	assert.InDelta(t, -8.0, losers[0].ChangePct, 1e-9)
}

func TestTopMovers_AllNegativeMarketStillRanksGainers(t *testing.T) {
	prices := &stubPrices{markets: []domain.PriceSnapshot{
		marketSnap("coin-a", -1),
		marketSnap("coin-b", -2),
		marketSnap("coin-c", -3),
	}}
	svc := NewService(prices, nil, 100, zerolog.Nop())

	gainers, err := svc.TopMovers(context.Background(), Period1d, Gainers)
	require.NoError(t, err)
	require.Len(t, gainers, 3)
	assert.Equal(t, "coin-a", gainers[0].CoinID)
	assert.Equal(t, "coin-c", gainers[2].CoinID)
}

func setupPortfolio(t *testing.T, prices domain.PriceSource) (*portfolio.Service, func()) {
	t.Helper()
	db, cleanup := testingpkg.NewTestDB(t, "portfolio")

	store := storage.NewRepository(db.Conn(), zerolog.Nop())
	lotRepo, err := portfolio.NewLotRepository(store, zerolog.Nop())
	require.NoError(t, err)

	return portfolio.NewService(lotRepo, &fundedBalance{balance: 1e9}, prices, nil, zerolog.Nop()), cleanup
}

type fundedBalance struct{ balance float64 }

func (b *fundedBalance) Balance() float64 { return b.balance }
func (b *fundedBalance) Deposit(amount float64) error {
	b.balance += amount
	return nil
}
func (b *fundedBalance) Withdraw(amount float64) (bool, error) {
	if b.balance < amount {
		return false, nil
	}
	b.balance -= amount
	return true, nil
}

func TestHoldingsMovers_RankedByAbsoluteProfit(t *testing.T) {
	prices := &stubPrices{quotes: map[string]float64{
		"bitcoin":  150, // +50 on 1 unit @ 100
		"ethereum": 80,  // -200 on 10 units @ 100
		"solana":   101, // +5 on 5 units @ 100
	}}
	pf, cleanup := setupPortfolio(t, prices)
	defer cleanup()

	buys := []struct {
		coin   string
		amount float64
	}{
		{"bitcoin", 1},
		{"ethereum", 10},
		{"solana", 5},
	}
	for _, b := range buys {
		_, err := pf.Buy(context.Background(), portfolio.BuyRequest{
			CoinID:    b.coin,
			Amount:    b.amount,
			UnitPrice: floatPtr(100),
		})
		require.NoError(t, err)
	}

	svc := NewService(prices, pf, 100, zerolog.Nop())

	gainers, err := svc.HoldingsMovers(context.Background(), Gainers)
	require.NoError(t, err)
	require.Len(t, gainers, 2)
	assert.Equal(t, "bitcoin", gainers[0].CoinID)
	assert.Equal(t, "solana", gainers[1].CoinID)
	assert.InDelta(t, 50.0, gainers[0].ProfitLoss, 1e-9)

	losers, err := svc.HoldingsMovers(context.Background(), Losers)
	require.NoError(t, err)
	require.Len(t, losers, 1)
	assert.Equal(t, "ethereum", losers[0].CoinID)
	assert.InDelta(t, -200.0, losers[0].ProfitLoss, 1e-9)
}

func TestHoldingsMovers_EmptyPortfolio(t *testing.T) {
	pf, cleanup := setupPortfolio(t, &stubPrices{})
	defer cleanup()

	svc := NewService(&stubPrices{}, pf, 100, zerolog.Nop())
	ranked, err := svc.HoldingsMovers(context.Background(), Gainers)
	require.NoError(t, err)
	assert.Empty(t, ranked)
}
