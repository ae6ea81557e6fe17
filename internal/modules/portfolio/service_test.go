package portfolio

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/coindeck/internal/domain"
	"github.com/aristath/coindeck/internal/events"
	"github.com/aristath/coindeck/internal/storage"
	testingpkg "github.com/aristath/coindeck/internal/testing"
)

// stubBalance is an in-memory BalanceProvider.
type stubBalance struct {
	balance float64
}

func (s *stubBalance) Balance() float64 { return s.balance }

func (s *stubBalance) Deposit(amount float64) error {
	if amount <= 0 {
		return domain.NewValidationError("amount", "amount must be positive")
	}
	s.balance += amount
	return nil
}

func (s *stubBalance) Withdraw(amount float64) (bool, error) {
	if amount <= 0 {
		return false, domain.NewValidationError("amount", "amount must be positive")
	}
	if s.balance < amount {
		return false, nil
	}
	s.balance -= amount
	return true, nil
}

// stubPrices serves quotes from a fixed map.
type stubPrices struct {
	quotes map[string]float64
	fail   bool
}

func (s *stubPrices) GetPrices(_ context.Context, coinIDs []string) ([]domain.PriceSnapshot, error) {
	if s.fail {
		return nil, fmt.Errorf("quote fetch: %w", domain.ErrExternalFetch)
	}
	var out []domain.PriceSnapshot
	for _, id := range coinIDs {
		if price, ok := s.quotes[id]; ok {
			out = append(out, domain.PriceSnapshot{CoinID: id, CurrentPrice: price})
		}
	}
	return out, nil
}

func (s *stubPrices) GetTopMarkets(_ context.Context, _ int) ([]domain.PriceSnapshot, error) {
	return nil, nil
}

func (s *stubPrices) SearchCoins(_ context.Context, _ string) ([]domain.CoinSearchResult, error) {
	return nil, nil
}

func setupService(t *testing.T, bal *stubBalance, prices *stubPrices) (*Service, func()) {
	t.Helper()
	db, cleanup := testingpkg.NewTestDB(t, "portfolio")

	store := storage.NewRepository(db.Conn(), zerolog.Nop())
	lotRepo, err := NewLotRepository(store, zerolog.Nop())
	require.NoError(t, err)

	return NewService(lotRepo, bal, prices, nil, zerolog.Nop()), cleanup
}

func floatPtr(v float64) *float64 { return &v }

func TestBuyThenSell_BalanceFlow(t *testing.T) {
	bal := &stubBalance{balance: 1000}
	prices := &stubPrices{quotes: map[string]float64{"bitcoin": 150}}
	svc, cleanup := setupService(t, bal, prices)
	defer cleanup()

	buy, err := svc.Buy(context.Background(), BuyRequest{
		CoinID:    "bitcoin",
		Symbol:    "btc",
		Name:      "Bitcoin",
		Amount:    2,
		UnitPrice: floatPtr(100),
	})
	require.NoError(t, err)
	assert.InDelta(t, 200.0, buy.Cost, 1e-9)
	assert.InDelta(t, 800.0, bal.balance, 1e-9)

	sale, err := svc.Sell(context.Background(), "bitcoin", 1)
	require.NoError(t, err)
	assert.InDelta(t, 150.0, sale.SellPrice, 1e-9)
	assert.InDelta(t, 150.0, sale.Proceeds, 1e-9)
	assert.InDelta(t, 950.0, bal.balance, 1e-9)
}

func TestBuy_InsufficientFunds(t *testing.T) {
	bal := &stubBalance{balance: 50}
	svc, cleanup := setupService(t, bal, &stubPrices{})
	defer cleanup()

	_, err := svc.Buy(context.Background(), BuyRequest{
		CoinID:    "bitcoin",
		Amount:    1,
		UnitPrice: floatPtr(100),
	})
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)
	assert.InDelta(t, 50.0, bal.balance, 1e-9)
	assert.Empty(t, svc.Lots(""))
}

func TestBuy_UsesLivePriceWhenUnpriced(t *testing.T) {
	bal := &stubBalance{balance: 1000}
	prices := &stubPrices{quotes: map[string]float64{"bitcoin": 200}}
	svc, cleanup := setupService(t, bal, prices)
	defer cleanup()

	buy, err := svc.Buy(context.Background(), BuyRequest{CoinID: "bitcoin", Amount: 2})
	require.NoError(t, err)
	assert.InDelta(t, 400.0, buy.Cost, 1e-9)
	assert.InDelta(t, 200.0, buy.Lot.BuyPrice, 1e-9)
}

func TestBuy_RejectedWithoutAnyPrice(t *testing.T) {
	bal := &stubBalance{balance: 1000}
	svc, cleanup := setupService(t, bal, &stubPrices{quotes: map[string]float64{}})
	defer cleanup()

	_, err := svc.Buy(context.Background(), BuyRequest{CoinID: "bitcoin", Amount: 2})
	assert.True(t, domain.IsValidation(err))
	assert.InDelta(t, 1000.0, bal.balance, 1e-9)
}

func TestBuy_Validation(t *testing.T) {
	svc, cleanup := setupService(t, &stubBalance{balance: 1000}, &stubPrices{})
	defer cleanup()

	_, err := svc.Buy(context.Background(), BuyRequest{Amount: 1, UnitPrice: floatPtr(1)})
	assert.True(t, domain.IsValidation(err), "missing coin id")

	_, err = svc.Buy(context.Background(), BuyRequest{CoinID: "bitcoin", Amount: 0, UnitPrice: floatPtr(1)})
	assert.True(t, domain.IsValidation(err), "zero amount")

	_, err = svc.Buy(context.Background(), BuyRequest{CoinID: "bitcoin", Amount: 1, UnitPrice: floatPtr(-5)})
	assert.True(t, domain.IsValidation(err), "negative unit price")
}

func TestSell_RejectsMoreThanHeld(t *testing.T) {
	bal := &stubBalance{balance: 1000}
	svc, cleanup := setupService(t, bal, &stubPrices{quotes: map[string]float64{"bitcoin": 100}})
	defer cleanup()

	_, err := svc.Buy(context.Background(), BuyRequest{CoinID: "bitcoin", Amount: 3, UnitPrice: floatPtr(100)})
	require.NoError(t, err)

	_, err = svc.Sell(context.Background(), "bitcoin", 5)
	assert.True(t, domain.IsValidation(err))

	// Nothing changed
	assert.Len(t, svc.Lots("bitcoin"), 1)
	assert.InDelta(t, 700.0, bal.balance, 1e-9)
}

func TestSell_FIFOConsumesOldestFirst(t *testing.T) {
	bal := &stubBalance{balance: 1000}
	svc, cleanup := setupService(t, bal, &stubPrices{quotes: map[string]float64{"bitcoin": 100}})
	defer cleanup()

	older := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := older.AddDate(0, 0, 5)

	first, err := svc.Buy(context.Background(), BuyRequest{
		CoinID: "bitcoin", Amount: 1, UnitPrice: floatPtr(100), BuyDate: older,
	})
	require.NoError(t, err)
	second, err := svc.Buy(context.Background(), BuyRequest{
		CoinID: "bitcoin", Amount: 3, UnitPrice: floatPtr(100), BuyDate: newer,
	})
	require.NoError(t, err)

	sale, err := svc.Sell(context.Background(), "bitcoin", 1.5)
	require.NoError(t, err)
	assert.Equal(t, 1, sale.LotsRemoved)
	assert.Equal(t, 1, sale.LotsModified)

	remaining := svc.Lots("bitcoin")
	require.Len(t, remaining, 1)
	assert.Equal(t, second.Lot.ID, remaining[0].ID)
	assert.NotEqual(t, first.Lot.ID, remaining[0].ID)
	assert.InDelta(t, 2.5, remaining[0].Amount, 1e-9)
}

func TestSell_ExactAmountRemovesLot(t *testing.T) {
	bal := &stubBalance{balance: 1000}
	svc, cleanup := setupService(t, bal, &stubPrices{quotes: map[string]float64{"bitcoin": 100}})
	defer cleanup()

	_, err := svc.Buy(context.Background(), BuyRequest{CoinID: "bitcoin", Amount: 2, UnitPrice: floatPtr(100)})
	require.NoError(t, err)

	sale, err := svc.Sell(context.Background(), "bitcoin", 2)
	require.NoError(t, err)
	assert.Equal(t, 1, sale.LotsRemoved)
	assert.Equal(t, 0, sale.LotsModified)
	assert.Empty(t, svc.Lots("bitcoin"))
}

func TestSell_FallsBackToAvgCostWithoutLivePrice(t *testing.T) {
	bal := &stubBalance{balance: 1000}
	svc, cleanup := setupService(t, bal, &stubPrices{quotes: map[string]float64{"bitcoin": 100}})
	defer cleanup()

	_, err := svc.Buy(context.Background(), BuyRequest{CoinID: "bitcoin", Amount: 1, UnitPrice: floatPtr(100)})
	require.NoError(t, err)
	_, err = svc.Buy(context.Background(), BuyRequest{CoinID: "bitcoin", Amount: 3, UnitPrice: floatPtr(200)})
	require.NoError(t, err)

	// Feed goes dark: sale is priced at the weighted average cost (175)
	svc.prices.(*stubPrices).fail = true

	sale, err := svc.Sell(context.Background(), "bitcoin", 2)
	require.NoError(t, err)
	assert.InDelta(t, 175.0, sale.SellPrice, 1e-9)
	assert.InDelta(t, 350.0, sale.Proceeds, 1e-9)
}

func TestRecentPurchases(t *testing.T) {
	bal := &stubBalance{balance: 10000}
	svc, cleanup := setupService(t, bal, &stubPrices{})
	defer cleanup()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		_, err := svc.Buy(context.Background(), BuyRequest{
			CoinID:    fmt.Sprintf("coin-%d", i),
			Amount:    1,
			UnitPrice: floatPtr(10),
			BuyDate:   base.AddDate(0, 0, i),
		})
		require.NoError(t, err)
	}

	recent := svc.RecentPurchases(0)
	require.Len(t, recent, 2)
	assert.Equal(t, "coin-3", recent[0].CoinID)
	assert.Equal(t, "coin-2", recent[1].CoinID)
}

func TestUpdateAndDeleteLot(t *testing.T) {
	bal := &stubBalance{balance: 1000}
	svc, cleanup := setupService(t, bal, &stubPrices{})
	defer cleanup()

	buy, err := svc.Buy(context.Background(), BuyRequest{CoinID: "bitcoin", Amount: 2, UnitPrice: floatPtr(100)})
	require.NoError(t, err)

	notes := "cold wallet"
	updated, err := svc.UpdateLot(buy.Lot.ID, floatPtr(1.5), &notes)
	require.NoError(t, err)
	assert.InDelta(t, 1.5, updated.Amount, 1e-9)
	assert.Equal(t, "cold wallet", updated.Notes)

	require.NoError(t, svc.DeleteLot(buy.Lot.ID))
	assert.ErrorIs(t, svc.DeleteLot(buy.Lot.ID), domain.ErrLotNotFound)
}

func TestUpdateLot_PublishesTypedEvent(t *testing.T) {
	db, cleanup := testingpkg.NewTestDB(t, "portfolio")
	defer cleanup()

	store := storage.NewRepository(db.Conn(), zerolog.Nop())
	lotRepo, err := NewLotRepository(store, zerolog.Nop())
	require.NoError(t, err)

	bus := events.NewBus(zerolog.Nop())
	var got []*events.Event
	bus.Subscribe(events.LotUpdated, func(e *events.Event) { got = append(got, e) })

	svc := NewService(lotRepo, &stubBalance{balance: 1000}, &stubPrices{}, bus, zerolog.Nop())

	buy, err := svc.Buy(context.Background(), BuyRequest{CoinID: "bitcoin", Amount: 2, UnitPrice: floatPtr(100)})
	require.NoError(t, err)

	_, err = svc.UpdateLot(buy.Lot.ID, floatPtr(1.5), nil)
	require.NoError(t, err)

	require.Len(t, got, 1)
	data, ok := got[0].Data.(*events.LotUpdatedData)
	require.True(t, ok)
	assert.Equal(t, buy.Lot.ID, data.LotID)
	assert.InDelta(t, 1.5, data.Amount, 1e-9)
}

func TestHeldCoinIDs_FirstPurchaseOrder(t *testing.T) {
	bal := &stubBalance{balance: 10000}
	svc, cleanup := setupService(t, bal, &stubPrices{})
	defer cleanup()

	for _, coin := range []string{"ethereum", "bitcoin", "ethereum"} {
		_, err := svc.Buy(context.Background(), BuyRequest{CoinID: coin, Amount: 1, UnitPrice: floatPtr(10)})
		require.NoError(t, err)
	}

	assert.Equal(t, []string{"ethereum", "bitcoin"}, svc.HeldCoinIDs())
}
