package portfolio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/coindeck/internal/domain"
)

func makeLot(coinID string, amount, buyPrice float64, buyDate time.Time) Lot {
	return Lot{
		ID:       coinID + buyDate.String(),
		CoinID:   coinID,
		Symbol:   coinID[:3],
		Name:     coinID,
		Amount:   amount,
		BuyPrice: buyPrice,
		BuyDate:  buyDate,
	}
}

func TestAggregate_WeightedAverageCost(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	lots := []Lot{
		makeLot("bitcoin", 1, 100, base),
		makeLot("bitcoin", 3, 200, base.AddDate(0, 0, 1)),
	}

	positions := Aggregate(lots, domain.PriceMap{
		"bitcoin": {CoinID: "bitcoin", CurrentPrice: 250},
	})

	require.Len(t, positions, 1)
	pos := positions[0]
	assert.InDelta(t, 4.0, pos.TotalAmount, 1e-9)
	assert.InDelta(t, 175.0, pos.WeightedAvgCost, 1e-9)
	assert.InDelta(t, 700.0, pos.CostBasis, 1e-9)
	assert.InDelta(t, 1000.0, pos.CurrentValue, 1e-9)
	assert.InDelta(t, 300.0, pos.ProfitLoss, 1e-9)
	assert.InDelta(t, 300.0/700.0*100, pos.ProfitLossPct, 1e-9)
	assert.True(t, pos.PriceAvailable)
}

func TestAggregate_NoPriceValuesAtCost(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	lots := []Lot{makeLot("bitcoin", 2, 100, base)}

	positions := Aggregate(lots, domain.PriceMap{})

	require.Len(t, positions, 1)
	pos := positions[0]
	assert.False(t, pos.PriceAvailable)
	assert.InDelta(t, 100.0, pos.CurrentPrice, 1e-9)
	assert.InDelta(t, 200.0, pos.CurrentValue, 1e-9)
	assert.InDelta(t, 0.0, pos.ProfitLoss, 1e-9)
	assert.InDelta(t, 0.0, pos.ProfitLossPct, 1e-9)
}

func TestAggregate_ZeroCostBasisYieldsZeroPct(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	// Free coins: airdrop recorded at zero cost
	lots := []Lot{makeLot("bitcoin", 5, 0, base)}

	positions := Aggregate(lots, domain.PriceMap{
		"bitcoin": {CoinID: "bitcoin", CurrentPrice: 10},
	})

	require.Len(t, positions, 1)
	pos := positions[0]
	assert.InDelta(t, 50.0, pos.ProfitLoss, 1e-9)
	assert.Equal(t, 0.0, pos.ProfitLossPct)
}

func TestAggregate_GroupsByCoinInFirstSeenOrder(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	lots := []Lot{
		makeLot("ethereum", 1, 50, base),
		makeLot("bitcoin", 1, 100, base),
		makeLot("ethereum", 1, 60, base.AddDate(0, 0, 1)),
	}

	positions := Aggregate(lots, domain.PriceMap{})

	require.Len(t, positions, 2)
	assert.Equal(t, "ethereum", positions[0].CoinID)
	assert.Equal(t, "bitcoin", positions[1].CoinID)
	assert.Len(t, positions[0].Lots, 2)
}

func TestAggregate_Idempotent(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	lots := []Lot{
		makeLot("bitcoin", 1, 100, base),
		makeLot("ethereum", 2, 50, base),
	}
	prices := domain.PriceMap{
		"bitcoin": {CoinID: "bitcoin", CurrentPrice: 150},
	}

	first := Aggregate(lots, prices)
	second := Aggregate(lots, prices)
	assert.Equal(t, first, second)
}

func TestTotals(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	lots := []Lot{
		makeLot("bitcoin", 1, 100, base),
		makeLot("ethereum", 2, 50, base),
	}

	totals := Totals(lots, domain.PriceMap{
		"bitcoin":  {CoinID: "bitcoin", CurrentPrice: 150},
		"ethereum": {CoinID: "ethereum", CurrentPrice: 40},
	})

	assert.InDelta(t, 200.0, totals.CostBasis, 1e-9)
	assert.InDelta(t, 230.0, totals.CurrentValue, 1e-9)
	assert.InDelta(t, 30.0, totals.ProfitLoss, 1e-9)
	assert.InDelta(t, 15.0, totals.ProfitLossPct, 1e-9)
}

func TestTotals_EmptyPortfolio(t *testing.T) {
	totals := Totals(nil, domain.PriceMap{})

	assert.Equal(t, 0.0, totals.CostBasis)
	assert.Equal(t, 0.0, totals.CurrentValue)
	assert.Equal(t, 0.0, totals.ProfitLossPct)
}

func TestPositionFor(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	lots := []Lot{
		makeLot("bitcoin", 1, 100, base),
		makeLot("ethereum", 2, 50, base),
	}

	pos, ok := PositionFor(lots, "ethereum", domain.PriceMap{})
	require.True(t, ok)
	assert.Equal(t, "ethereum", pos.CoinID)
	assert.InDelta(t, 2.0, pos.TotalAmount, 1e-9)

	_, ok = PositionFor(lots, "solana", domain.PriceMap{})
	assert.False(t, ok)
}

func TestSortLotsFIFO_StableOnEqualDates(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	a := makeLot("bitcoin", 1, 100, base)
	a.ID = "first"
	b := makeLot("bitcoin", 1, 110, base)
	b.ID = "second"
	c := makeLot("bitcoin", 1, 120, base.AddDate(0, 0, -1))
	c.ID = "oldest"

	lots := []Lot{a, b, c}
	sortLotsFIFO(lots)

	assert.Equal(t, "oldest", lots[0].ID)
	assert.Equal(t, "first", lots[1].ID)
	assert.Equal(t, "second", lots[2].ID)
}
