package handlers

import (
	"net/http"
	"strings"

	"openvault/internal/auth"
	"openvault/internal/websocket"
)

// WSBalances upgrades to a balance stream. Browsers cannot set headers on a
// websocket handshake, so the token may also arrive as ?token=.
func (h *Handler) WSBalances(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		authHeader := r.Header.Get("Authorization")
		if strings.HasPrefix(authHeader, "Bearer ") {
			token = strings.TrimPrefix(authHeader, "Bearer ")
		}
	}
	if token == "" {
		respondError(w, http.StatusUnauthorized, "missing token")
		return
	}
	claims, err := auth.ParseToken(h.cfg.JWTSecret, token)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "invalid token")
		return
	}
	websocket.ServeWS(w, r, h.upgrader, h.hub, claims.UserID)
}
