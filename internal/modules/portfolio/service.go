package portfolio

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/coindeck/internal/domain"
	"github.com/aristath/coindeck/internal/events"
)

// Service orchestrates purchases and sales against the lot store and the
// cash balance. All mutating operations run under one mutex: buys and
// sells against the same store must never interleave, or two concurrent
// sells could both consume the same lot.
type Service struct {
	mu      sync.Mutex
	lotRepo *LotRepository
	balance domain.BalanceProvider
	prices  domain.PriceSource
	bus     *events.Bus
	log     zerolog.Logger
}

// NewService creates a new portfolio service.
func NewService(
	lotRepo *LotRepository,
	balance domain.BalanceProvider,
	prices domain.PriceSource,
	bus *events.Bus,
	log zerolog.Logger,
) *Service {
	return &Service{
		lotRepo: lotRepo,
		balance: balance,
		prices:  prices,
		bus:     bus,
		log:     log.With().Str("service", "portfolio").Logger(),
	}
}

// BuyRequest describes a purchase. UnitPrice may be nil, in which case
// the live market price is used; a purchase cannot proceed without one.
type BuyRequest struct {
	CoinID    string
	Symbol    string
	Name      string
	Amount    float64
	UnitPrice *float64
	BuyDate   time.Time
	Notes     string
}

// BuyResult reports a completed purchase.
type BuyResult struct {
	Lot        Lot     `json:"lot"`
	Cost       float64 `json:"cost"`
	NewBalance float64 `json:"new_balance"`
}

// SaleResult reports a completed FIFO liquidation.
type SaleResult struct {
	CoinID       string  `json:"coin_id"`
	AmountSold   float64 `json:"amount_sold"`
	SellPrice    float64 `json:"sell_price"`
	Proceeds     float64 `json:"proceeds"`
	LotsRemoved  int     `json:"lots_removed"`
	LotsModified int     `json:"lots_modified"`
	NewBalance   float64 `json:"new_balance"`
}

// Buy validates the request, debits the cash balance and appends a lot.
// The withdrawal and the append are atomic from the caller's view: a
// failed append re-credits the balance before returning.
func (s *Service) Buy(ctx context.Context, req BuyRequest) (BuyResult, error) {
	if req.CoinID == "" {
		return BuyResult{}, domain.NewValidationError("coin_id", "coin id is required")
	}
	if req.Amount <= 0 {
		return BuyResult{}, domain.NewValidationError("amount", "amount must be positive")
	}
	if req.UnitPrice != nil && *req.UnitPrice <= 0 {
		return BuyResult{}, domain.NewValidationError("unit_price", "unit price must be positive")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	unitPrice, err := s.resolveUnitPrice(ctx, req)
	if err != nil {
		return BuyResult{}, err
	}

	cost := unitPrice * req.Amount
	ok, err := s.balance.Withdraw(cost)
	if err != nil {
		return BuyResult{}, fmt.Errorf("failed to withdraw purchase cost: %w", err)
	}
	if !ok {
		return BuyResult{}, domain.ErrInsufficientFunds
	}

	buyDate := req.BuyDate
	if buyDate.IsZero() {
		buyDate = time.Now().UTC()
	}

	lot, err := s.lotRepo.Add(req.CoinID, req.Symbol, req.Name, req.Amount, unitPrice, buyDate, req.Notes)
	if err != nil {
		// Re-credit the withdrawal so the failed purchase has no effect
		if depErr := s.balance.Deposit(cost); depErr != nil {
			s.log.Error().Err(depErr).Float64("cost", cost).Msg("Failed to re-credit balance after failed lot append")
		}
		return BuyResult{}, fmt.Errorf("failed to append lot: %w", err)
	}

	s.log.Info().
		Str("coin", req.CoinID).
		Float64("amount", req.Amount).
		Float64("unit_price", unitPrice).
		Float64("cost", cost).
		Msg("Purchase recorded")

	if s.bus != nil {
		s.bus.Publish(events.LotAdded, &events.LotAddedData{
			LotID:  lot.ID,
			CoinID: lot.CoinID,
			Amount: lot.Amount,
			Cost:   cost,
		})
	}

	return BuyResult{Lot: lot, Cost: cost, NewBalance: s.balance.Balance()}, nil
}

// resolveUnitPrice returns the explicit unit price or falls back to the
// live market price. A purchase without either is rejected: unlike a
// sale, there is no cost basis to value it at.
func (s *Service) resolveUnitPrice(ctx context.Context, req BuyRequest) (float64, error) {
	if req.UnitPrice != nil {
		return *req.UnitPrice, nil
	}

	snapshots, err := s.prices.GetPrices(ctx, []string{req.CoinID})
	if err != nil {
		return 0, fmt.Errorf("cannot price purchase of %s: %w", req.CoinID, err)
	}
	for _, snap := range snapshots {
		if snap.CoinID == req.CoinID && snap.CurrentPrice > 0 {
			return snap.CurrentPrice, nil
		}
	}
	return 0, domain.NewValidationError("unit_price", "no live price available, unit price required")
}

// Sell liquidates the requested amount of one coin, oldest lots first,
// and credits the proceeds to the cash balance.
//
// Preconditions are checked before any state changes: a rejected sale
// leaves both stores untouched. On success the lot mutations land in one
// persisted write, then the balance is credited.
func (s *Service) Sell(ctx context.Context, coinID string, amount float64) (SaleResult, error) {
	if coinID == "" {
		return SaleResult{}, domain.NewValidationError("coin_id", "coin id is required")
	}
	if amount <= 0 {
		return SaleResult{}, domain.NewValidationError("amount", "amount must be positive")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	lots := s.lotRepo.ListByCoin(coinID)
	var totalAmount, costBasis float64
	for _, lot := range lots {
		totalAmount += lot.Amount
		costBasis += lot.CostBasis()
	}

	if amount > totalAmount+amountEpsilon {
		return SaleResult{}, domain.NewValidationError("amount", "amount exceeds holdings")
	}

	// Walk the lots oldest-first, deleting exhausted lots and reducing
	// the last one in place.
	sortLotsFIFO(lots)

	var removedIDs []string
	var updated *Lot
	remaining := amount
	for i := range lots {
		if remaining <= 0 {
			break
		}
		if lots[i].Amount <= remaining+amountEpsilon {
			removedIDs = append(removedIDs, lots[i].ID)
			remaining -= lots[i].Amount
		} else {
			reduced := lots[i]
			reduced.Amount -= remaining
			reduced.UpdatedAt = time.Now().UTC()
			updated = &reduced
			remaining = 0
		}
	}

	// Price the sale at the live market price; fall back to the
	// weighted average cost when the feed is unavailable so the sale
	// always produces a number.
	sellPrice := s.liveSellPrice(ctx, coinID)
	if sellPrice == 0 && totalAmount > 0 {
		sellPrice = costBasis / totalAmount
	}
	proceeds := sellPrice * amount

	if err := s.lotRepo.ApplySale(removedIDs, updated); err != nil {
		return SaleResult{}, fmt.Errorf("failed to apply sale: %w", err)
	}

	if proceeds > 0 {
		if err := s.balance.Deposit(proceeds); err != nil {
			// The lots are already reduced; surface the inconsistency
			// loudly instead of silently dropping the proceeds.
			return SaleResult{}, fmt.Errorf("lots liquidated but balance credit failed: %w", err)
		}
	}

	result := SaleResult{
		CoinID:       coinID,
		AmountSold:   amount,
		SellPrice:    sellPrice,
		Proceeds:     proceeds,
		LotsRemoved:  len(removedIDs),
		NewBalance:   s.balance.Balance(),
	}
	if updated != nil {
		result.LotsModified = 1
	}

	s.log.Info().
		Str("coin", coinID).
		Float64("amount", amount).
		Float64("proceeds", proceeds).
		Int("lots_removed", result.LotsRemoved).
		Msg("Sale completed")

	if s.bus != nil {
		s.bus.Publish(events.LotSold, &events.LotSoldData{
			CoinID:       coinID,
			Amount:       amount,
			Proceeds:     proceeds,
			LotsRemoved:  result.LotsRemoved,
			LotsModified: result.LotsModified,
		})
	}

	return result, nil
}

// liveSellPrice fetches the current market price, returning 0 when the
// price source fails or has no quote. Fetch failures are expected and
// logged at debug only.
func (s *Service) liveSellPrice(ctx context.Context, coinID string) float64 {
	snapshots, err := s.prices.GetPrices(ctx, []string{coinID})
	if err != nil {
		s.log.Debug().Err(err).Str("coin", coinID).Msg("No live price for sale, falling back to cost basis")
		return 0
	}
	for _, snap := range snapshots {
		if snap.CoinID == coinID {
			return snap.CurrentPrice
		}
	}
	return 0
}

// Positions aggregates all lots against the given price map.
func (s *Service) Positions(prices domain.PriceMap) []AggregatedPosition {
	return Aggregate(s.lotRepo.List(), prices)
}

// Totals computes the portfolio-wide summary against the given price map.
func (s *Service) Totals(prices domain.PriceMap) TotalsSummary {
	return Totals(s.lotRepo.List(), prices)
}

// HeldCoinIDs returns the distinct coin IDs present in the lot store,
// in order of first purchase.
func (s *Service) HeldCoinIDs() []string {
	var order []string
	seen := make(map[string]bool)
	for _, lot := range s.lotRepo.List() {
		if !seen[lot.CoinID] {
			seen[lot.CoinID] = true
			order = append(order, lot.CoinID)
		}
	}
	return order
}

// RecentPurchases returns the latest lots by buy date.
func (s *Service) RecentPurchases(limit int) []Lot {
	if limit <= 0 {
		limit = 2
	}
	lots := s.lotRepo.List()
	sort.SliceStable(lots, func(i, j int) bool {
		return lots[i].BuyDate.After(lots[j].BuyDate)
	})
	if len(lots) > limit {
		lots = lots[:limit]
	}
	return lots
}

// Lots returns all lots, optionally filtered by coin.
func (s *Service) Lots(coinID string) []Lot {
	if coinID == "" {
		return s.lotRepo.List()
	}
	return s.lotRepo.ListByCoin(coinID)
}

// UpdateLot mutates a lot's amount and/or notes.
func (s *Service) UpdateLot(id string, amount *float64, notes *string) (Lot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lot, err := s.lotRepo.Get(id)
	if err != nil {
		return Lot{}, err
	}

	if amount != nil {
		lot, err = s.lotRepo.UpdateAmount(id, *amount)
		if err != nil {
			return Lot{}, err
		}
	}
	if notes != nil {
		lot, err = s.lotRepo.UpdateNotes(id, *notes)
		if err != nil {
			return Lot{}, err
		}
	}

	if s.bus != nil {
		s.bus.Publish(events.LotUpdated, &events.LotUpdatedData{
			LotID:  lot.ID,
			CoinID: lot.CoinID,
			Amount: lot.Amount,
		})
	}
	return lot, nil
}

// DeleteLot removes a lot without touching the balance. This is the
// bookkeeping escape hatch, not a sale.
func (s *Service) DeleteLot(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lotRepo.Delete(id)
}
