package handlers

import (
	"net/http"

	"openvault/internal/money"
	"openvault/internal/services"
)

type transferRequest struct {
	FromAccountID string      `json:"from_account_id"`
	ToIBAN        string      `json:"to_iban"`
	Amount        money.Money `json:"amount"`
	Description   string      `json:"description"`
}

type movementRequest struct {
	AccountID   string      `json:"account_id"`
	Amount      money.Money `json:"amount"`
	Description string      `json:"description"`
}

func (h *Handler) Transfer(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	var req transferRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	if req.FromAccountID == "" || req.ToIBAN == "" {
		respondError(w, http.StatusBadRequest, "from_account_id and to_iban are required")
		return
	}
	txn, err := h.ledger.Transfer(r.Context(), services.TransferRequest{
		UserID:        userID,
		FromAccountID: req.FromAccountID,
		ToIBAN:        req.ToIBAN,
		Amount:        req.Amount,
		Description:   req.Description,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, txn)
}

func (h *Handler) Deposit(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	var req movementRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	if req.AccountID == "" {
		respondError(w, http.StatusBadRequest, "account_id is required")
		return
	}
	txn, err := h.ledger.Deposit(r.Context(), services.DepositRequest{
		UserID:      userID,
		AccountID:   req.AccountID,
		Amount:      req.Amount,
		Description: req.Description,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, txn)
}

func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	var req movementRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	if req.AccountID == "" {
		respondError(w, http.StatusBadRequest, "account_id is required")
		return
	}
	txn, err := h.ledger.Withdraw(r.Context(), services.WithdrawRequest{
		UserID:      userID,
		AccountID:   req.AccountID,
		Amount:      req.Amount,
		Description: req.Description,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, txn)
}
