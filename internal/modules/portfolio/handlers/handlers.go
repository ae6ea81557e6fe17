// Package handlers exposes the portfolio module over HTTP.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/coindeck/internal/domain"
	"github.com/aristath/coindeck/internal/modules/portfolio"
)

// Handler handles portfolio HTTP requests
type Handler struct {
	service *portfolio.Service
	prices  domain.PriceSource
	log     zerolog.Logger
}

// NewHandler creates a new portfolio handler
func NewHandler(service *portfolio.Service, prices domain.PriceSource, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		prices:  prices,
		log:     log.With().Str("handler", "portfolio").Logger(),
	}
}

// RegisterRoutes mounts the portfolio routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.HandleGetPortfolio)
	r.Get("/totals", h.HandleGetTotals)
	r.Post("/buy", h.HandleBuy)
	r.Post("/sell", h.HandleSell)
	r.Get("/lots", h.HandleGetLots)
	r.Put("/lots/{id}", h.HandleUpdateLot)
	r.Delete("/lots/{id}", h.HandleDeleteLot)
	r.Get("/recent", h.HandleGetRecent)
}

// portfolioResponse bundles positions with the portfolio-wide totals.
type portfolioResponse struct {
	Positions []portfolio.AggregatedPosition `json:"positions"`
	Totals    portfolio.TotalsSummary        `json:"totals"`
}

// HandleGetPortfolio handles GET / - aggregated positions and totals
func (h *Handler) HandleGetPortfolio(w http.ResponseWriter, r *http.Request) {
	prices := h.fetchPrices(r)

	writeJSON(w, h.log, http.StatusOK, portfolioResponse{
		Positions: h.service.Positions(prices),
		Totals:    h.service.Totals(prices),
	})
}

// HandleGetTotals handles GET /totals - portfolio-wide summary
func (h *Handler) HandleGetTotals(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.log, http.StatusOK, h.service.Totals(h.fetchPrices(r)))
}

// buyRequest is the wire shape of a purchase.
type buyRequest struct {
	CoinID    string   `json:"coin_id"`
	Symbol    string   `json:"symbol"`
	Name      string   `json:"name"`
	Amount    float64  `json:"amount"`
	UnitPrice *float64 `json:"unit_price,omitempty"`
	BuyDate   string   `json:"buy_date,omitempty"`
	Notes     string   `json:"notes,omitempty"`
}

// HandleBuy handles POST /buy - record a purchase
func (h *Handler) HandleBuy(w http.ResponseWriter, r *http.Request) {
	var req buyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	var buyDate time.Time
	if req.BuyDate != "" {
		parsed, err := time.Parse(time.RFC3339, req.BuyDate)
		if err != nil {
			http.Error(w, "Invalid buy_date. Use RFC 3339", http.StatusBadRequest)
			return
		}
		buyDate = parsed
	}

	result, err := h.service.Buy(r.Context(), portfolio.BuyRequest{
		CoinID:    req.CoinID,
		Symbol:    req.Symbol,
		Name:      req.Name,
		Amount:    req.Amount,
		UnitPrice: req.UnitPrice,
		BuyDate:   buyDate,
		Notes:     req.Notes,
	})
	if err != nil {
		h.writeDomainError(w, err, "Failed to record purchase")
		return
	}

	writeJSON(w, h.log, http.StatusCreated, result)
}

// sellRequest is the wire shape of a sale.
type sellRequest struct {
	CoinID string  `json:"coin_id"`
	Amount float64 `json:"amount"`
}

// HandleSell handles POST /sell - liquidate holdings oldest-first
func (h *Handler) HandleSell(w http.ResponseWriter, r *http.Request) {
	var req sellRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	result, err := h.service.Sell(r.Context(), req.CoinID, req.Amount)
	if err != nil {
		h.writeDomainError(w, err, "Failed to record sale")
		return
	}

	writeJSON(w, h.log, http.StatusOK, result)
}

// HandleGetLots handles GET /lots - list lots, optionally by coin
func (h *Handler) HandleGetLots(w http.ResponseWriter, r *http.Request) {
	lots := h.service.Lots(r.URL.Query().Get("coin"))
	if lots == nil {
		lots = []portfolio.Lot{}
	}
	writeJSON(w, h.log, http.StatusOK, lots)
}

// updateLotRequest carries the mutable lot fields. Absent fields are
// left unchanged.
type updateLotRequest struct {
	Amount *float64 `json:"amount,omitempty"`
	Notes  *string  `json:"notes,omitempty"`
}

// HandleUpdateLot handles PUT /lots/{id} - edit amount or notes
func (h *Handler) HandleUpdateLot(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req updateLotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Amount == nil && req.Notes == nil {
		http.Error(w, "Nothing to update", http.StatusBadRequest)
		return
	}

	lot, err := h.service.UpdateLot(id, req.Amount, req.Notes)
	if err != nil {
		h.writeDomainError(w, err, "Failed to update lot")
		return
	}

	writeJSON(w, h.log, http.StatusOK, lot)
}

// HandleDeleteLot handles DELETE /lots/{id} - remove a lot outright
func (h *Handler) HandleDeleteLot(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.service.DeleteLot(id); err != nil {
		h.writeDomainError(w, err, "Failed to delete lot")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleGetRecent handles GET /recent - latest purchases
func (h *Handler) HandleGetRecent(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		l, err := strconv.Atoi(limitStr)
		if err != nil || l < 1 || l > 100 {
			http.Error(w, "Invalid limit. Must be 1-100", http.StatusBadRequest)
			return
		}
		limit = l
	}

	lots := h.service.RecentPurchases(limit)
	if lots == nil {
		lots = []portfolio.Lot{}
	}
	writeJSON(w, h.log, http.StatusOK, lots)
}

// fetchPrices loads quotes for all held coins. Valuation degrades to
// cost basis when the feed is down, so fetch errors are not fatal.
func (h *Handler) fetchPrices(r *http.Request) domain.PriceMap {
	coinIDs := h.service.HeldCoinIDs()
	if len(coinIDs) == 0 {
		return domain.PriceMap{}
	}

	snapshots, err := h.prices.GetPrices(r.Context(), coinIDs)
	if err != nil {
		h.log.Warn().Err(err).Msg("Price fetch failed, valuing portfolio at cost")
		return domain.PriceMap{}
	}
	return domain.BuildPriceMap(snapshots)
}
