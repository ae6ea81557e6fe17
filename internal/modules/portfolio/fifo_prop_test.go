package portfolio

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/aristath/coindeck/internal/storage"
	testingpkg "github.com/aristath/coindeck/internal/testing"
)

// The liquidation invariant: for any lot set and any valid sale amount,
// the held total shrinks by exactly the amount sold (within epsilon) and
// the remaining lots are a suffix of the FIFO order.
func TestSell_ConservationProperty(t *testing.T) {
	db, cleanup := testingpkg.NewTestDB(t, "portfolio")
	defer cleanup()

	store := storage.NewRepository(db.Conn(), zerolog.Nop())
	lotRepo, err := NewLotRepository(store, zerolog.Nop())
	require.NoError(t, err)

	bal := &stubBalance{balance: 1e9}
	svc := NewService(lotRepo, bal, &stubPrices{quotes: map[string]float64{}}, nil, zerolog.Nop())

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	coinSeq := 0

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("sale conserves total holdings", prop.ForAll(
		func(amounts []float64, fraction float64) bool {
			// Isolate each case under its own coin ID
			coinSeq++
			coinID := fmt.Sprintf("coin-%d", coinSeq)

			total := 0.0
			for i, amount := range amounts {
				_, err := svc.Buy(context.Background(), BuyRequest{
					CoinID:    coinID,
					Amount:    amount,
					UnitPrice: floatPtr(10),
					BuyDate:   base.AddDate(0, 0, i),
				})
				if err != nil {
					return false
				}
				total += amount
			}

			sellAmount := total * fraction
			if sellAmount <= 0 {
				return true
			}

			sale, err := svc.Sell(context.Background(), coinID, sellAmount)
			if err != nil {
				return false
			}
			if sale.AmountSold != sellAmount {
				return false
			}

			remaining := 0.0
			for _, lot := range svc.Lots(coinID) {
				if lot.Amount <= 0 {
					return false
				}
				remaining += lot.Amount
			}

			diff := total - sellAmount - remaining
			if diff < 0 {
				diff = -diff
			}
			return diff < 1e-6
		},
		gen.SliceOfN(4, gen.Float64Range(0.1, 100)),
		gen.Float64Range(0.01, 1.0),
	))

	properties.TestingRun(t)
}
