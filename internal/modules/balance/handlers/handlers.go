// Package handlers exposes the balance module over HTTP.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/coindeck/internal/domain"
	"github.com/aristath/coindeck/internal/modules/balance"
	"github.com/aristath/coindeck/pkg/money"
)

// Handler handles balance HTTP requests
type Handler struct {
	store *balance.Store
	log   zerolog.Logger
}

// NewHandler creates a new balance handler
func NewHandler(store *balance.Store, log zerolog.Logger) *Handler {
	return &Handler{
		store: store,
		log:   log.With().Str("handler", "balance").Logger(),
	}
}

// RegisterRoutes mounts the balance routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.HandleGetBalance)
	r.Post("/deposit", h.HandleDeposit)
	r.Post("/withdraw", h.HandleWithdraw)
	r.Post("/reset", h.HandleReset)
}

// balanceResponse is the wire shape of the cash balance.
type balanceResponse struct {
	Balance   float64 `json:"balance"`
	Formatted string  `json:"formatted"`
}

func (h *Handler) balanceBody() balanceResponse {
	bal := h.store.Balance()
	return balanceResponse{Balance: bal, Formatted: money.FormatUSD(bal)}
}

// HandleGetBalance handles GET / - current cash balance
func (h *Handler) HandleGetBalance(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.balanceBody())
}

// amountRequest carries a single dollar amount.
type amountRequest struct {
	Amount float64 `json:"amount"`
}

// HandleDeposit handles POST /deposit - credit the balance
func (h *Handler) HandleDeposit(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.store.Deposit(req.Amount); err != nil {
		h.writeStoreError(w, err, "Failed to deposit")
		return
	}

	h.writeJSON(w, http.StatusOK, h.balanceBody())
}

// HandleWithdraw handles POST /withdraw - debit the balance
func (h *Handler) HandleWithdraw(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	ok, err := h.store.Withdraw(req.Amount)
	if err != nil {
		h.writeStoreError(w, err, "Failed to withdraw")
		return
	}
	if !ok {
		http.Error(w, "Insufficient funds", http.StatusBadRequest)
		return
	}

	h.writeJSON(w, http.StatusOK, h.balanceBody())
}

// HandleReset handles POST /reset - zero the balance
func (h *Handler) HandleReset(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Reset(); err != nil {
		h.writeStoreError(w, err, "Failed to reset balance")
		return
	}

	h.writeJSON(w, http.StatusOK, h.balanceBody())
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeStoreError maps store errors to HTTP status codes.
func (h *Handler) writeStoreError(w http.ResponseWriter, err error, fallback string) {
	if domain.IsValidation(err) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.log.Error().Err(err).Msg(fallback)
	http.Error(w, fallback, http.StatusInternalServerError)
}
