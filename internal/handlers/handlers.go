package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"openvault/internal/middleware"
	"openvault/internal/models"

	"go.uber.org/zap"
)

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// writeServiceError is the single place where ledger error kinds become
// HTTP statuses.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var insufficient *models.InsufficientFundsError
	switch {
	case errors.As(err, &insufficient):
		respondJSON(w, http.StatusUnprocessableEntity, map[string]string{
			"error":   "insufficient_funds",
			"message": err.Error(),
			"balance": insufficient.Balance.String(),
		})
	case errors.Is(err, models.ErrInsufficientFunds):
		respondError(w, http.StatusUnprocessableEntity, "insufficient_funds")
	case errors.Is(err, models.ErrInvalidAmount):
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_amount", "message": err.Error()})
	case errors.Is(err, models.ErrInvalidOperation):
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_operation", "message": err.Error()})
	case errors.Is(err, models.ErrNotFound):
		respondError(w, http.StatusNotFound, "not_found")
	case errors.Is(err, models.ErrUnauthorized):
		respondError(w, http.StatusForbidden, "access_denied")
	case errors.Is(err, models.ErrAccountInactive):
		respondError(w, http.StatusConflict, "account_inactive")
	case errors.Is(err, models.ErrConcurrentModification):
		respondError(w, http.StatusConflict, "concurrent_modification")
	default:
		h.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		respondError(w, http.StatusInternalServerError, "internal_error")
	}
}

func (h *Handler) requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
	}
	return userID, ok
}

// decodeJSON reports amount errors through writeServiceError so that a
// malformed amount reads the same as one the ledger refused.
func (h *Handler) decodeJSON(w http.ResponseWriter, r *http.Request, dest any) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := decoder.Decode(dest); err != nil {
		if errors.Is(err, models.ErrInvalidAmount) {
			h.writeServiceError(w, r, err)
			return false
		}
		respondError(w, http.StatusBadRequest, "invalid payload")
		return false
	}
	return true
}
