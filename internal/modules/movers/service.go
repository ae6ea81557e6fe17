// Package movers ranks coins by price movement over a period, both
// across the broad market and within the user's own holdings.
package movers

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/aristath/coindeck/internal/domain"
	"github.com/aristath/coindeck/internal/modules/portfolio"
)

// Period selects the movement window.
type Period string

const (
	Period1d  Period = "1d"
	Period7d  Period = "7d"
	Period30d Period = "30d"
)

// Direction selects which side of the ranking to return.
type Direction string

const (
	Gainers Direction = "gainers"
	Losers  Direction = "losers"
)

// moversLimit caps every ranking at the top five entries.
const moversLimit = 5

// Mover is one ranked market entry.
type Mover struct {
	CoinID       string  `json:"coin_id"`
	Symbol       string  `json:"symbol"`
	Name         string  `json:"name"`
	Image        string  `json:"image,omitempty"`
	CurrentPrice float64 `json:"current_price"`
	ChangePct    float64 `json:"change_pct"`
}

// HoldingMover is one ranked portfolio position.
type HoldingMover struct {
	CoinID        string  `json:"coin_id"`
	Symbol        string  `json:"symbol"`
	Name          string  `json:"name"`
	Image         string  `json:"image,omitempty"`
	CurrentValue  float64 `json:"current_value"`
	ProfitLoss    float64 `json:"profit_loss"`
	ProfitLossPct float64 `json:"profit_loss_pct"`
}

// Service computes market and holdings movers from the price feed.
type Service struct {
	prices       domain.PriceSource
	portfolio    *portfolio.Service
	marketsLimit int
	log          zerolog.Logger
}

// NewService creates a movers service. marketsLimit bounds how many top
// market entries are considered for the market ranking.
func NewService(prices domain.PriceSource, pf *portfolio.Service, marketsLimit int, log zerolog.Logger) *Service {
	if marketsLimit <= 0 {
		marketsLimit = 100
	}
	return &Service{
		prices:       prices,
		portfolio:    pf,
		marketsLimit: marketsLimit,
		log:          log.With().Str("service", "movers").Logger(),
	}
}

// ParsePeriod validates a period string from the API surface.
func ParsePeriod(raw string) (Period, error) {
	switch Period(raw) {
	case Period1d, Period7d, Period30d:
		return Period(raw), nil
	case "":
		return Period1d, nil
	default:
		return "", domain.NewValidationError("period", "period must be one of 1d, 7d, 30d")
	}
}

// ParseDirection validates a direction string from the API surface.
func ParseDirection(raw string) (Direction, error) {
	switch Direction(raw) {
	case Gainers, Losers:
		return Direction(raw), nil
	case "":
		return Gainers, nil
	default:
		return "", domain.NewValidationError("direction", "direction must be gainers or losers")
	}
}

// ChangeForPeriod resolves a snapshot's percentage change for a period,
// walking the fallback chain for fields the free price tier omits:
//
//	1d:  24h change, always present
//	7d:  7d field, else the 7d sparkline, else 0
//	30d: 30d field, else 7d field, else sparkline, else 24h change
//
// A coin with no usable source counts as flat rather than vanishing
// from the ranking.
func ChangeForPeriod(snap domain.PriceSnapshot, period Period) float64 {
	switch period {
	case Period7d:
		if snap.Change7d != nil {
			return *snap.Change7d
		}
		pct, _ := sparklineChange(snap.Sparkline7d)
		return pct
	case Period30d:
		if snap.Change30d != nil {
			return *snap.Change30d
		}
		if snap.Change7d != nil {
			return *snap.Change7d
		}
		if pct, ok := sparklineChange(snap.Sparkline7d); ok {
			return pct
		}
		return snap.Change24h
	default:
		return snap.Change24h
	}
}

// sparklineChange derives a percentage change from a price series as
// (last-first)/first. Unusable when the series is too short or starts
// at zero.
func sparklineChange(points []float64) (float64, bool) {
	if len(points) < 2 {
		return 0, false
	}
	first := points[0]
	last := points[len(points)-1]
	if first == 0 {
		return 0, false
	}
	return (last - first) / first * 100, true
}

// TopMovers ranks the broad market by percentage change over the period.
// Every supplied coin is ranked: gainers are the top of the descending
// order, losers the top of the ascending order. In an all-negative
// market the gainers list holds the least-negative coins.
func (s *Service) TopMovers(ctx context.Context, period Period, direction Direction) ([]Mover, error) {
	snapshots, err := s.prices.GetTopMarkets(ctx, s.marketsLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch market data: %w", err)
	}

	movers := make([]Mover, 0, len(snapshots))
	for _, snap := range snapshots {
		movers = append(movers, Mover{
			CoinID:       snap.CoinID,
			Symbol:       snap.Symbol,
			Name:         snap.Name,
			Image:        snap.Image,
			CurrentPrice: snap.CurrentPrice,
			ChangePct:    ChangeForPeriod(snap, period),
		})
	}

	sort.SliceStable(movers, func(i, j int) bool {
		if direction == Losers {
			return movers[i].ChangePct < movers[j].ChangePct
		}
		return movers[i].ChangePct > movers[j].ChangePct
	})

	if len(movers) > moversLimit {
		movers = movers[:moversLimit]
	}
	return movers, nil
}

// HoldingsMovers ranks the user's positions by the size of their
// unrealized profit or loss in dollars, not percent: a small position
// with a huge percentage swing matters less than a large one drifting.
func (s *Service) HoldingsMovers(ctx context.Context, direction Direction) ([]HoldingMover, error) {
	coinIDs := s.portfolio.HeldCoinIDs()
	if len(coinIDs) == 0 {
		return []HoldingMover{}, nil
	}

	snapshots, err := s.prices.GetPrices(ctx, coinIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch holding prices: %w", err)
	}

	positions := s.portfolio.Positions(domain.BuildPriceMap(snapshots))

	ranked := make([]HoldingMover, 0, len(positions))
	for _, pos := range positions {
		if direction == Gainers && pos.ProfitLoss <= 0 {
			continue
		}
		if direction == Losers && pos.ProfitLoss >= 0 {
			continue
		}
		ranked = append(ranked, HoldingMover{
			CoinID:        pos.CoinID,
			Symbol:        pos.Symbol,
			Name:          pos.Name,
			Image:         pos.Image,
			CurrentValue:  pos.CurrentValue,
			ProfitLoss:    pos.ProfitLoss,
			ProfitLossPct: pos.ProfitLossPct,
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		li := ranked[i].ProfitLoss
		lj := ranked[j].ProfitLoss
		if li < 0 {
			li = -li
		}
		if lj < 0 {
			lj = -lj
		}
		return li > lj
	})

	if len(ranked) > moversLimit {
		ranked = ranked[:moversLimit]
	}
	return ranked, nil
}
