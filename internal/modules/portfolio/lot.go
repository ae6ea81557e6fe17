// Package portfolio implements the lot-accounting core: the lot store,
// weighted-average aggregation and FIFO liquidation.
package portfolio

import (
	"sort"
	"time"
)

// Lot is one immutable purchase record of a quantity of a coin at a
// specific price and time. Amount only decreases through partial
// liquidation; a lot driven to zero is removed from the store entirely.
type Lot struct {
	ID        string    `json:"id"`
	CoinID    string    `json:"coinId"`
	Symbol    string    `json:"symbol"`
	Name      string    `json:"name"`
	Amount    float64   `json:"amount"`
	BuyPrice  float64   `json:"buyPrice"`
	BuyDate   time.Time `json:"buyDate"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CostBasis returns the total paid for this lot.
func (l Lot) CostBasis() float64 {
	return l.Amount * l.BuyPrice
}

// amountEpsilon is the tolerance used when comparing lot amounts during
// liquidation, so accumulated float error cannot strand a dust-sized lot.
const amountEpsilon = 1e-9

// sortLotsFIFO orders lots ascending by buy date, earliest first.
// The sort is stable: lots bought at the same instant keep their
// insertion order, which makes liquidation deterministic.
func sortLotsFIFO(lots []Lot) {
	sort.SliceStable(lots, func(i, j int) bool {
		return lots[i].BuyDate.Before(lots[j].BuyDate)
	})
}
