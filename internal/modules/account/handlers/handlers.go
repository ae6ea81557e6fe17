// Package handlers exposes the combined account snapshot over HTTP.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/coindeck/internal/domain"
	"github.com/aristath/coindeck/internal/modules/portfolio"
	"github.com/aristath/coindeck/pkg/money"
)

// Handler handles account snapshot HTTP requests
type Handler struct {
	balance   domain.BalanceProvider
	portfolio *portfolio.Service
	prices    domain.PriceSource
	log       zerolog.Logger
}

// NewHandler creates a new account handler
func NewHandler(balance domain.BalanceProvider, pf *portfolio.Service, prices domain.PriceSource, log zerolog.Logger) *Handler {
	return &Handler{
		balance:   balance,
		portfolio: pf,
		prices:    prices,
		log:       log.With().Str("handler", "account").Logger(),
	}
}

// RegisterRoutes mounts the account routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.HandleGetAccount)
}

// accountResponse pairs the cash balance with the portfolio totals so
// dashboards render the whole account from one request.
type accountResponse struct {
	Balance          float64                 `json:"balance"`
	BalanceFormatted string                  `json:"balance_formatted"`
	Totals           portfolio.TotalsSummary `json:"totals"`
}

// HandleGetAccount handles GET / - balance plus portfolio totals
func (h *Handler) HandleGetAccount(w http.ResponseWriter, r *http.Request) {
	prices := domain.PriceMap{}
	if coinIDs := h.portfolio.HeldCoinIDs(); len(coinIDs) > 0 {
		snapshots, err := h.prices.GetPrices(r.Context(), coinIDs)
		if err != nil {
			h.log.Warn().Err(err).Msg("Price fetch failed, valuing totals at cost")
		} else {
			prices = domain.BuildPriceMap(snapshots)
		}
	}

	bal := h.balance.Balance()
	resp := accountResponse{
		Balance:          bal,
		BalanceFormatted: money.FormatUSD(bal),
		Totals:           h.portfolio.Totals(prices),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
