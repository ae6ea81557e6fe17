package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/aristath/coindeck/internal/domain"
)

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, log zerolog.Logger, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeDomainError maps domain errors to HTTP status codes. Unexpected
// errors are logged and hidden behind the fallback message.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case domain.IsValidation(err):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrInsufficientFunds):
		http.Error(w, "Insufficient funds", http.StatusBadRequest)
	case errors.Is(err, domain.ErrLotNotFound):
		http.Error(w, "Lot not found", http.StatusNotFound)
	case errors.Is(err, domain.ErrExternalFetch):
		http.Error(w, "Price feed unavailable", http.StatusBadGateway)
	default:
		h.log.Error().Err(err).Msg(fallback)
		http.Error(w, fallback, http.StatusInternalServerError)
	}
}
