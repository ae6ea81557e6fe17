package market

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/coindeck/internal/domain"
	"github.com/aristath/coindeck/internal/events"
)

// CoinLister supplies the coin IDs a refresh should cover.
type CoinLister interface {
	CoinIDs() []string
}

// CoinListerFunc adapts a plain function to CoinLister.
type CoinListerFunc func() []string

// CoinIDs calls the underlying function.
func (f CoinListerFunc) CoinIDs() []string { return f() }

// RefreshJob periodically re-fetches prices for every coin the user
// holds or watches, so the cache stays warm and the event stream carries
// fresh quotes without any request traffic.
type RefreshJob struct {
	prices  domain.PriceSource
	sources []CoinLister
	bus     *events.Bus
	timeout time.Duration
	log     zerolog.Logger
}

// NewRefreshJob creates a price refresh job. Each source contributes
// coin IDs; duplicates across sources are fetched once.
func NewRefreshJob(prices domain.PriceSource, bus *events.Bus, log zerolog.Logger, sources ...CoinLister) *RefreshJob {
	return &RefreshJob{
		prices:  prices,
		sources: sources,
		bus:     bus,
		timeout: 30 * time.Second,
		log:     log.With().Str("job", "price_refresh").Logger(),
	}
}

// Name identifies the job in scheduler logs.
func (j *RefreshJob) Name() string { return "price_refresh" }

// Run fetches fresh prices for all tracked coins and publishes a
// PriceUpdated event with the refreshed IDs.
func (j *RefreshJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	seen := make(map[string]bool)
	var coinIDs []string
	for _, src := range j.sources {
		for _, id := range src.CoinIDs() {
			if !seen[id] {
				seen[id] = true
				coinIDs = append(coinIDs, id)
			}
		}
	}

	if len(coinIDs) == 0 {
		j.log.Debug().Msg("No tracked coins, skipping price refresh")
		return nil
	}

	snapshots, err := j.prices.GetPrices(ctx, coinIDs)
	if err != nil {
		return err
	}

	j.log.Debug().Int("requested", len(coinIDs)).Int("received", len(snapshots)).Msg("Prices refreshed")

	if j.bus != nil {
		j.bus.Publish(events.PriceUpdated, &events.PriceUpdatedData{
			CoinIDs: coinIDs,
			Count:   len(snapshots),
		})
	}
	return nil
}
