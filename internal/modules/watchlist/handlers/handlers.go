// Package handlers exposes the watchlist module over HTTP.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/coindeck/internal/domain"
	"github.com/aristath/coindeck/internal/modules/watchlist"
)

// Handler handles watchlist HTTP requests
type Handler struct {
	store  *watchlist.Store
	prices domain.PriceSource
	log    zerolog.Logger
}

// NewHandler creates a new watchlist handler
func NewHandler(store *watchlist.Store, prices domain.PriceSource, log zerolog.Logger) *Handler {
	return &Handler{
		store:  store,
		prices: prices,
		log:    log.With().Str("handler", "watchlist").Logger(),
	}
}

// RegisterRoutes mounts the watchlist routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.HandleList)
	r.Post("/", h.HandleAdd)
	r.Delete("/{id}", h.HandleRemove)
}

// watchedCoin is a watchlist entry joined with its latest quote.
type watchedCoin struct {
	watchlist.Item
	CurrentPrice   float64 `json:"current_price,omitempty"`
	Change24h      float64 `json:"change_24h,omitempty"`
	PriceAvailable bool    `json:"price_available"`
}

// HandleList handles GET / - watchlist entries with live quotes
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	items := h.store.List()

	prices := domain.PriceMap{}
	if len(items) > 0 {
		snapshots, err := h.prices.GetPrices(r.Context(), h.store.CoinIDs())
		if err != nil {
			h.log.Warn().Err(err).Msg("Price fetch failed, returning watchlist without quotes")
		} else {
			prices = domain.BuildPriceMap(snapshots)
		}
	}

	out := make([]watchedCoin, 0, len(items))
	for _, item := range items {
		wc := watchedCoin{Item: item}
		if snap, ok := prices[item.CoinID]; ok {
			wc.CurrentPrice = snap.CurrentPrice
			wc.Change24h = snap.Change24h
			wc.PriceAvailable = true
		}
		out = append(out, wc)
	}

	h.writeJSON(w, http.StatusOK, out)
}

// addRequest is the wire shape of a new watchlist entry.
type addRequest struct {
	CoinID string `json:"coin_id"`
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
	Image  string `json:"image,omitempty"`
}

// HandleAdd handles POST / - watch a coin
func (h *Handler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	var req addRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	item, err := h.store.Add(req.CoinID, req.Symbol, req.Name, req.Image)
	if err != nil {
		if domain.IsValidation(err) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.log.Error().Err(err).Msg("Failed to add watchlist entry")
		http.Error(w, "Failed to add watchlist entry", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusCreated, item)
}

// HandleRemove handles DELETE /{id} - stop watching a coin
func (h *Handler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.store.Remove(id); err != nil {
		if domain.IsValidation(err) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		h.log.Error().Err(err).Msg("Failed to remove watchlist entry")
		http.Error(w, "Failed to remove watchlist entry", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
