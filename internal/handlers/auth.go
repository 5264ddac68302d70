package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"openvault/internal/auth"
	"openvault/internal/db"
	"openvault/internal/models"
	"openvault/internal/validator"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

type registerRequest struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phone_number"`
	Password    string `json:"password"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	for _, check := range []error{
		validator.ValidateName(req.FirstName),
		validator.ValidateName(req.LastName),
		validator.ValidateEmail(req.Email),
		validator.ValidatePassword(req.Password),
	} {
		if check != nil {
			respondError(w, http.StatusBadRequest, check.Error())
			return
		}
	}
	var phone *string
	if strings.TrimSpace(req.PhoneNumber) != "" {
		if err := validator.ValidatePhone(req.PhoneNumber); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		normalized := validator.NormalizePhone(req.PhoneNumber)
		phone = &normalized
	}
	passwordHash, err := auth.HashPassword(req.Password)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to secure password")
		return
	}
	user := models.User{
		ID:           uuid.NewString(),
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		Email:        req.Email,
		PhoneNumber:  phone,
		PasswordHash: passwordHash,
	}
	err = h.txRunner.WithTx(r.Context(), func(tx *sqlx.Tx) error {
		return h.users.Create(r.Context(), tx, user)
	})
	if err != nil {
		if db.IsUniqueViolation(err) {
			respondError(w, http.StatusConflict, duplicateField(err)+" already registered")
			return
		}
		h.logger.Error("registration failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "registration failed")
		return
	}
	h.logAudit(r, user.ID, "user.register")
	token, err := auth.GenerateToken(h.cfg.JWTSecret, user.ID, h.cfg.TokenTTL)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to generate token")
		return
	}
	payload := map[string]any{"token": token}
	// The user row is already committed here. If the default account cannot
	// be opened the user keeps the registration and opens one with
	// POST /accounts.
	account, err := h.accounts.Open(r.Context(), user.ID, models.AccountChecking)
	if err != nil {
		h.logger.Error("default account not opened", zap.String("user_id", user.ID), zap.Error(err))
	} else {
		payload["account"] = account
	}
	respondJSON(w, http.StatusCreated, payload)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	user, err := h.users.GetByEmail(r.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			respondError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		h.logger.Error("login lookup failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "login failed")
		return
	}
	if !auth.CheckPassword(user.PasswordHash, req.Password) {
		respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	h.logAudit(r, user.ID, "user.login")
	token, err := auth.GenerateToken(h.cfg.JWTSecret, user.ID, h.cfg.TokenTTL)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to generate token")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"token": token,
	})
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	user, err := h.users.GetByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			respondError(w, http.StatusNotFound, "user not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "unable to load user")
		return
	}
	respondJSON(w, http.StatusOK, user)
}

// Activity lists the caller's own audit trail, newest first.
func (h *Handler) Activity(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	limit, offset, err := pageParams(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	entries, err := h.audit.ListByActor(r.Context(), userID, limit, offset)
	if err != nil {
		h.logger.Error("activity lookup failed", zap.String("user_id", userID), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "unable to load activity")
		return
	}
	respondJSON(w, http.StatusOK, entries)
}

func (h *Handler) logAudit(r *http.Request, userID, action string) {
	data, _ := json.Marshal(map[string]string{
		"ip":         r.RemoteAddr,
		"user_agent": r.UserAgent(),
	})
	if err := h.audit.Log(r.Context(), userID, action, "user", userID, string(data)); err != nil {
		h.logger.Warn("audit write failed", zap.String("action", action), zap.Error(err))
	}
}

func duplicateField(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && strings.Contains(pqErr.Constraint, "phone") {
		return "phone number"
	}
	return "email"
}
