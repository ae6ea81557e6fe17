// Package handlers exposes coin catalog and price lookups over HTTP.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/coindeck/internal/domain"
	"github.com/aristath/coindeck/internal/modules/market"
)

// Handler handles coin catalog HTTP requests
type Handler struct {
	service *market.Service
	log     zerolog.Logger
}

// NewHandler creates a new market handler
func NewHandler(service *market.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "market").Logger(),
	}
}

// RegisterRoutes mounts the coin routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/search", h.HandleSearch)
	r.Get("/prices", h.HandlePrices)
	r.Get("/{id}/chart", h.HandleChart)
}

// HandleSearch handles GET /search?query= - coin catalog search
func (h *Handler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	if query == "" {
		http.Error(w, "query is required", http.StatusBadRequest)
		return
	}

	results, err := h.service.Search(r.Context(), query)
	if err != nil {
		h.writeFetchError(w, err, "Failed to search coins")
		return
	}
	if results == nil {
		results = []domain.CoinSearchResult{}
	}

	h.writeJSON(w, http.StatusOK, results)
}

// HandlePrices handles GET /prices?ids=a,b,c - latest quotes
func (h *Handler) HandlePrices(w http.ResponseWriter, r *http.Request) {
	idsParam := r.URL.Query().Get("ids")
	if idsParam == "" {
		http.Error(w, "ids is required", http.StatusBadRequest)
		return
	}

	var coinIDs []string
	for _, id := range strings.Split(idsParam, ",") {
		if id = strings.TrimSpace(id); id != "" {
			coinIDs = append(coinIDs, id)
		}
	}

	snapshots, err := h.service.PricesFor(r.Context(), coinIDs)
	if err != nil {
		h.writeFetchError(w, err, "Failed to fetch prices")
		return
	}

	h.writeJSON(w, http.StatusOK, snapshots)
}

// HandleChart handles GET /{id}/chart?days= - historical price series
func (h *Handler) HandleChart(w http.ResponseWriter, r *http.Request) {
	coinID := chi.URLParam(r, "id")

	days := 7
	if daysStr := r.URL.Query().Get("days"); daysStr != "" {
		d, err := strconv.Atoi(daysStr)
		if err != nil || d < 1 || d > 365 {
			http.Error(w, "Invalid days. Must be 1-365", http.StatusBadRequest)
			return
		}
		days = d
	}

	points, err := h.service.Chart(r.Context(), coinID, days)
	if err != nil {
		h.writeFetchError(w, err, "Failed to fetch chart")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"coin_id": coinID,
		"days":    days,
		"prices":  points,
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

// writeFetchError maps errors from the price client to HTTP statuses.
func (h *Handler) writeFetchError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case domain.IsValidation(err):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrExternalFetch):
		http.Error(w, "Price feed unavailable", http.StatusBadGateway)
	default:
		h.log.Error().Err(err).Msg(fallback)
		http.Error(w, fallback, http.StatusInternalServerError)
	}
}
