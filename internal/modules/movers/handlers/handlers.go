// Package handlers exposes the movers rankings over HTTP.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/coindeck/internal/domain"
	"github.com/aristath/coindeck/internal/modules/movers"
)

// Handler handles movers HTTP requests
type Handler struct {
	service *movers.Service
	log     zerolog.Logger
}

// NewHandler creates a new movers handler
func NewHandler(service *movers.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "movers").Logger(),
	}
}

// RegisterRoutes mounts the movers routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/market", h.HandleMarketMovers)
	r.Get("/holdings", h.HandleHoldingsMovers)
}

// marketMoversResponse carries both sides of the market ranking.
type marketMoversResponse struct {
	Period  movers.Period  `json:"period"`
	Gainers []movers.Mover `json:"gainers"`
	Losers  []movers.Mover `json:"losers"`
}

// HandleMarketMovers handles GET /market?period= - global gainers and losers
func (h *Handler) HandleMarketMovers(w http.ResponseWriter, r *http.Request) {
	period, err := movers.ParsePeriod(r.URL.Query().Get("period"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	gainers, err := h.service.TopMovers(r.Context(), period, movers.Gainers)
	if err != nil {
		h.writeFetchError(w, err, "Failed to rank market movers")
		return
	}
	losers, err := h.service.TopMovers(r.Context(), period, movers.Losers)
	if err != nil {
		h.writeFetchError(w, err, "Failed to rank market movers")
		return
	}

	h.writeJSON(w, http.StatusOK, marketMoversResponse{
		Period:  period,
		Gainers: gainers,
		Losers:  losers,
	})
}

// holdingsMoversResponse carries both sides of the holdings ranking.
type holdingsMoversResponse struct {
	Gainers []movers.HoldingMover `json:"gainers"`
	Losers  []movers.HoldingMover `json:"losers"`
}

// HandleHoldingsMovers handles GET /holdings - positions ranked by USD profit
func (h *Handler) HandleHoldingsMovers(w http.ResponseWriter, r *http.Request) {
	gainers, err := h.service.HoldingsMovers(r.Context(), movers.Gainers)
	if err != nil {
		h.writeFetchError(w, err, "Failed to rank holdings movers")
		return
	}
	losers, err := h.service.HoldingsMovers(r.Context(), movers.Losers)
	if err != nil {
		h.writeFetchError(w, err, "Failed to rank holdings movers")
		return
	}

	h.writeJSON(w, http.StatusOK, holdingsMoversResponse{
		Gainers: gainers,
		Losers:  losers,
	})
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeFetchError maps price-feed failures to 502, everything else to 500.
func (h *Handler) writeFetchError(w http.ResponseWriter, err error, fallback string) {
	if errors.Is(err, domain.ErrExternalFetch) {
		http.Error(w, "Price feed unavailable", http.StatusBadGateway)
		return
	}
	h.log.Error().Err(err).Msg(fallback)
	http.Error(w, fallback, http.StatusInternalServerError)
}
