package handlers

import (
	"net/http"

	"openvault/internal/models"

	"github.com/go-chi/chi/v5"
)

type openAccountRequest struct {
	Type string `json:"type"`
}

func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	accounts, err := h.accounts.ListActive(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if accounts == nil {
		accounts = []models.Account{}
	}
	respondJSON(w, http.StatusOK, accounts)
}

func (h *Handler) OpenAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	var req openAccountRequest
	if r.ContentLength != 0 && !h.decodeJSON(w, r, &req) {
		return
	}
	accountType, err := models.ParseAccountType(req.Type)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	account, err := h.accounts.Open(r.Context(), userID, accountType)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, account)
}

func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	account, err := h.accounts.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, account)
}

// CloseAccount deactivates an empty account. Its history stays readable.
func (h *Handler) CloseAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	account, err := h.accounts.Deactivate(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, account)
}

func (h *Handler) TotalBalance(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	total, err := h.accounts.TotalBalance(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"total_balance": total})
}

func (h *Handler) SelfCheck(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	checks, err := h.accounts.SelfCheck(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	consistent := true
	for _, check := range checks {
		if !check.Difference.IsZero() {
			consistent = false
		}
	}
	if checks == nil {
		checks = []models.BalanceCheck{}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"consistent": consistent,
		"accounts":   checks,
	})
}
