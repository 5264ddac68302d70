package handlers

import (
	"net/http"
	"time"

	"openvault/internal/config"
	"openvault/internal/db"
	"openvault/internal/middleware"
	"openvault/internal/websocket"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	gorillaws "github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type Handler struct {
	txRunner db.TxRunner
	cfg      config.Config
	logger   *zap.Logger
	users    UserStore
	audit    AuditStore
	ledger   LedgerService
	accounts AccountService
	history  HistoryService
	hub      *websocket.Hub
	upgrader gorillaws.Upgrader
	now      func() time.Time
}

func New(txRunner db.TxRunner, cfg config.Config, logger *zap.Logger, users UserStore, audit AuditStore, ledger LedgerService, accounts AccountService, history HistoryService, hub *websocket.Hub) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		txRunner: txRunner,
		cfg:      cfg,
		logger:   logger,
		users:    users,
		audit:    audit,
		ledger:   ledger,
		accounts: accounts,
		history:  history,
		hub:      hub,
		upgrader: websocket.NewUpgrader(cfg.AllowedOrigins),
		now:      time.Now,
	}
}

func (h *Handler) Routes() http.Handler {
	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(middleware.RequestLogger(h.logger))
	router.Use(chimiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   h.cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	requireAuth := middleware.Auth(h.cfg.JWTSecret)

	router.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
		r.With(requireAuth).Get("/me", h.Me)
		r.With(requireAuth).Get("/activity", h.Activity)
	})
	router.Route("/accounts", func(r chi.Router) {
		r.Use(requireAuth)
		r.Get("/", h.ListAccounts)
		r.Post("/", h.OpenAccount)
		r.Get("/total-balance", h.TotalBalance)
		r.Get("/self-check", h.SelfCheck)
		r.Get("/{id}", h.GetAccount)
		r.Delete("/{id}", h.CloseAccount)
	})
	router.Route("/transfers", func(r chi.Router) {
		r.Use(requireAuth)
		r.Post("/", h.Transfer)
		r.Post("/deposit", h.Deposit)
		r.Post("/withdraw", h.Withdraw)
	})
	router.Route("/transactions", func(r chi.Router) {
		r.Use(requireAuth)
		r.Get("/account/{id}", h.ListAccountTransactions)
		r.Get("/account/{id}/stats", h.AccountStats)
		r.Get("/{id}", h.GetTransaction)
	})
	router.Get("/ws/balances", h.WSBalances)

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return router
}
