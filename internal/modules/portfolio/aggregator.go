package portfolio

import (
	"gonum.org/v1/gonum/floats"

	"github.com/aristath/coindeck/internal/domain"
)

// AggregatedPosition is the derived per-coin summary. It is recomputed on
// demand from the current lot set and never persisted.
type AggregatedPosition struct {
	CoinID          string  `json:"coin_id"`
	Symbol          string  `json:"symbol"`
	Name            string  `json:"name"`
	Image           string  `json:"image,omitempty"`
	TotalAmount     float64 `json:"total_amount"`
	WeightedAvgCost float64 `json:"weighted_avg_cost"`
	CostBasis       float64 `json:"cost_basis"`
	CurrentPrice    float64 `json:"current_price"`
	PriceAvailable  bool    `json:"price_available"`
	CurrentValue    float64 `json:"current_value"`
	ProfitLoss      float64 `json:"profit_loss"`
	ProfitLossPct   float64 `json:"profit_loss_pct"`
	Change24h       float64 `json:"change_24h"`
	Lots            []Lot   `json:"lots"`
}

// TotalsSummary is the portfolio-wide rollup of all positions.
type TotalsSummary struct {
	TotalAmount   float64 `json:"total_amount"`
	CostBasis     float64 `json:"cost_basis"`
	CurrentValue  float64 `json:"current_value"`
	ProfitLoss    float64 `json:"profit_loss"`
	ProfitLossPct float64 `json:"profit_loss_pct"`
}

// Aggregate groups lots by coin and computes each position's weighted
// average cost and live valuation. Pure function of its inputs: safe to
// call on every price refresh.
//
// Positions appear in order of each coin's first lot. Groups whose total
// amount is zero are omitted rather than dividing by zero; the lot
// lifecycle rule makes them impossible, but a corrupt persisted payload
// must not crash valuation.
//
// When no live price is available the position is valued at cost so
// profit/loss reads as zero instead of a spurious total loss.
func Aggregate(lots []Lot, prices domain.PriceMap) []AggregatedPosition {
	order := make([]string, 0)
	groups := make(map[string][]Lot)
	for _, lot := range lots {
		if _, seen := groups[lot.CoinID]; !seen {
			order = append(order, lot.CoinID)
		}
		groups[lot.CoinID] = append(groups[lot.CoinID], lot)
	}

	positions := make([]AggregatedPosition, 0, len(order))
	for _, coinID := range order {
		group := groups[coinID]

		amounts := make([]float64, len(group))
		costs := make([]float64, len(group))
		for i, lot := range group {
			amounts[i] = lot.Amount
			costs[i] = lot.CostBasis()
		}
		totalAmount := floats.Sum(amounts)
		costBasis := floats.Sum(costs)

		if totalAmount == 0 {
			continue
		}

		pos := AggregatedPosition{
			CoinID:          coinID,
			Symbol:          group[0].Symbol,
			Name:            group[0].Name,
			TotalAmount:     totalAmount,
			WeightedAvgCost: costBasis / totalAmount,
			CostBasis:       costBasis,
			Lots:            group,
		}

		if snap, ok := prices[coinID]; ok {
			pos.PriceAvailable = true
			pos.CurrentPrice = snap.CurrentPrice
			pos.Change24h = snap.Change24h
			pos.Image = snap.Image
			pos.CurrentValue = snap.CurrentPrice * totalAmount
		} else {
			// No live price: value at cost so P/L reads as zero
			pos.CurrentPrice = pos.WeightedAvgCost
			pos.CurrentValue = costBasis
		}

		pos.ProfitLoss = pos.CurrentValue - costBasis
		if costBasis != 0 {
			pos.ProfitLossPct = pos.ProfitLoss / costBasis * 100
		}

		positions = append(positions, pos)
	}

	return positions
}

// Totals sums all positions into the portfolio-wide summary.
// ProfitLossPct is zero when the total cost basis is zero, never NaN.
func Totals(lots []Lot, prices domain.PriceMap) TotalsSummary {
	positions := Aggregate(lots, prices)

	amounts := make([]float64, len(positions))
	costs := make([]float64, len(positions))
	values := make([]float64, len(positions))
	for i, pos := range positions {
		amounts[i] = pos.TotalAmount
		costs[i] = pos.CostBasis
		values[i] = pos.CurrentValue
	}

	summary := TotalsSummary{
		TotalAmount:  floats.Sum(amounts),
		CostBasis:    floats.Sum(costs),
		CurrentValue: floats.Sum(values),
	}
	summary.ProfitLoss = summary.CurrentValue - summary.CostBasis
	if summary.CostBasis != 0 {
		summary.ProfitLossPct = summary.ProfitLoss / summary.CostBasis * 100
	}

	return summary
}

// PositionFor aggregates the lots of a single coin. Returns false when
// the coin has no lots.
func PositionFor(lots []Lot, coinID string, prices domain.PriceMap) (AggregatedPosition, bool) {
	var filtered []Lot
	for _, lot := range lots {
		if lot.CoinID == coinID {
			filtered = append(filtered, lot)
		}
	}
	positions := Aggregate(filtered, prices)
	if len(positions) == 0 {
		return AggregatedPosition{}, false
	}
	return positions[0], true
}
