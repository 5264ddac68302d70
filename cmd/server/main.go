package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"openvault/internal/config"
	"openvault/internal/db"
	"openvault/internal/handlers"
	"openvault/internal/logging"
	"openvault/internal/money"
	"openvault/internal/services"
	"openvault/internal/store"
	"openvault/internal/websocket"

	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()
	logger, err := logging.New(cfg.AppEnv, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to connect database", zap.Error(err))
	}
	defer database.Close()

	users := store.NewUserStore(database)
	accounts := store.NewAccountStore(database)
	transactions := store.NewTransactionStore(database)
	audit := store.NewAuditStore(database)

	txRunner := db.NewTxRunner(database, db.Options{MaxAttempts: cfg.TxMaxAttempts})
	// Serialization failures and deadlocks are replayed from the start of the
	// scope; lock timeouts and business errors are not.
	ledgerRunner := db.NewTxRunner(database, db.Options{MaxAttempts: cfg.LedgerMaxAttempts, LockTimeout: cfg.LockTimeout})
	scopes := store.NewSQLScopeRunner(ledgerRunner, accounts, transactions)

	hub := websocket.NewHub(logger.Named("ws"))
	ledger := services.NewLedgerService(scopes, accounts, hub, logger.Named("ledger"), services.LedgerConfig{
		Limits:      money.Limits{Max: cfg.MaxTransaction},
		LockTimeout: cfg.LockTimeout,
	})
	accountService := services.NewAccountService(scopes, accounts, audit, logger.Named("accounts"), cfg.MaxAccountsPerUser)
	history := services.NewHistoryService(accounts, transactions, logger.Named("history"))

	handler := handlers.New(txRunner, cfg, logger.Named("http"), users, audit, ledger, accountService, history, hub)
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("openvault API listening", zap.String("addr", server.Addr), zap.String("env", cfg.AppEnv))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	<-shutdown

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
		return
	}
	logger.Info("server stopped")
}
