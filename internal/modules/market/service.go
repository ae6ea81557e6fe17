// Package market exposes coin catalog and price lookups to the API
// layer and keeps prices warm in the background.
package market

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/coindeck/internal/domain"
)

// ChartSource fetches historical price series. Split from
// domain.PriceSource because only this module needs charts.
type ChartSource interface {
	GetMarketChart(ctx context.Context, coinID string, days int) ([][2]float64, error)
}

// Service wraps the price client for the API layer.
type Service struct {
	prices domain.PriceSource
	charts ChartSource
	log    zerolog.Logger
}

// NewService creates a market service.
func NewService(prices domain.PriceSource, charts ChartSource, log zerolog.Logger) *Service {
	return &Service{
		prices: prices,
		charts: charts,
		log:    log.With().Str("service", "market").Logger(),
	}
}

// PricesFor returns the latest snapshots for the given coins.
func (s *Service) PricesFor(ctx context.Context, coinIDs []string) ([]domain.PriceSnapshot, error) {
	if len(coinIDs) == 0 {
		return []domain.PriceSnapshot{}, nil
	}
	return s.prices.GetPrices(ctx, coinIDs)
}

// TopMarkets returns the top coins by market cap.
func (s *Service) TopMarkets(ctx context.Context, limit int) ([]domain.PriceSnapshot, error) {
	return s.prices.GetTopMarkets(ctx, limit)
}

// Search queries the coin catalog.
func (s *Service) Search(ctx context.Context, query string) ([]domain.CoinSearchResult, error) {
	if query == "" {
		return nil, domain.NewValidationError("query", "query is required")
	}
	return s.prices.SearchCoins(ctx, query)
}

// Chart returns (timestamp, price) pairs for one coin over N days.
func (s *Service) Chart(ctx context.Context, coinID string, days int) ([][2]float64, error) {
	if coinID == "" {
		return nil, domain.NewValidationError("coin_id", "coin id is required")
	}
	if days <= 0 {
		days = 7
	}
	points, err := s.charts.GetMarketChart(ctx, coinID, days)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch chart for %s: %w", coinID, err)
	}
	return points, nil
}
