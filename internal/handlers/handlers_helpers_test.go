package handlers

import (
	"bytes"
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"openvault/internal/auth"
	"openvault/internal/config"
	"openvault/internal/models"
	"openvault/internal/money"
	"openvault/internal/services"
	"openvault/internal/store"
	"openvault/internal/websocket"

	"github.com/jmoiron/sqlx"
)

const testSecret = "secret"

type fakeTxRunner struct {
	withTxFn func(ctx context.Context, fn func(*sqlx.Tx) error) error
}

func (f fakeTxRunner) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	if f.withTxFn != nil {
		return f.withTxFn(ctx, fn)
	}
	return fn(nil)
}

type stubUserStore struct {
	createFn     func(ctx context.Context, tx store.Execer, user models.User) error
	getByEmailFn func(ctx context.Context, email string) (models.User, error)
	getByIDFn    func(ctx context.Context, userID string) (models.User, error)
}

func (s stubUserStore) Create(ctx context.Context, tx store.Execer, user models.User) error {
	if s.createFn == nil {
		return nil
	}
	return s.createFn(ctx, tx, user)
}

func (s stubUserStore) GetByEmail(ctx context.Context, email string) (models.User, error) {
	if s.getByEmailFn == nil {
		return models.User{}, models.ErrNotFound
	}
	return s.getByEmailFn(ctx, email)
}

func (s stubUserStore) GetByID(ctx context.Context, userID string) (models.User, error) {
	if s.getByIDFn == nil {
		return models.User{}, models.ErrNotFound
	}
	return s.getByIDFn(ctx, userID)
}

type stubAuditStore struct {
	logFn  func(ctx context.Context, actorID, action, entityType, entityID, data string) error
	listFn func(ctx context.Context, actorID string, limit, offset int) ([]store.AuditEntry, error)
}

func (s stubAuditStore) Log(ctx context.Context, actorID, action, entityType, entityID, data string) error {
	if s.logFn == nil {
		return nil
	}
	return s.logFn(ctx, actorID, action, entityType, entityID, data)
}

func (s stubAuditStore) ListByActor(ctx context.Context, actorID string, limit, offset int) ([]store.AuditEntry, error) {
	if s.listFn == nil {
		return nil, nil
	}
	return s.listFn(ctx, actorID, limit, offset)
}

type stubLedger struct {
	transferFn func(ctx context.Context, req services.TransferRequest) (models.Transaction, error)
	depositFn  func(ctx context.Context, req services.DepositRequest) (models.Transaction, error)
	withdrawFn func(ctx context.Context, req services.WithdrawRequest) (models.Transaction, error)
}

func (s stubLedger) Transfer(ctx context.Context, req services.TransferRequest) (models.Transaction, error) {
	return s.transferFn(ctx, req)
}

func (s stubLedger) Deposit(ctx context.Context, req services.DepositRequest) (models.Transaction, error) {
	return s.depositFn(ctx, req)
}

func (s stubLedger) Withdraw(ctx context.Context, req services.WithdrawRequest) (models.Transaction, error) {
	return s.withdrawFn(ctx, req)
}

type stubAccounts struct {
	openFn       func(ctx context.Context, userID string, accountType models.AccountType) (models.Account, error)
	getFn        func(ctx context.Context, userID, accountID string) (models.Account, error)
	listFn       func(ctx context.Context, userID string) ([]models.Account, error)
	totalFn      func(ctx context.Context, userID string) (money.Money, error)
	selfCheckFn  func(ctx context.Context, userID string) ([]models.BalanceCheck, error)
	deactivateFn func(ctx context.Context, userID, accountID string) (models.Account, error)
}

func (s stubAccounts) Open(ctx context.Context, userID string, accountType models.AccountType) (models.Account, error) {
	return s.openFn(ctx, userID, accountType)
}

func (s stubAccounts) Get(ctx context.Context, userID, accountID string) (models.Account, error) {
	return s.getFn(ctx, userID, accountID)
}

func (s stubAccounts) ListActive(ctx context.Context, userID string) ([]models.Account, error) {
	return s.listFn(ctx, userID)
}

func (s stubAccounts) TotalBalance(ctx context.Context, userID string) (money.Money, error) {
	return s.totalFn(ctx, userID)
}

func (s stubAccounts) SelfCheck(ctx context.Context, userID string) ([]models.BalanceCheck, error) {
	return s.selfCheckFn(ctx, userID)
}

func (s stubAccounts) Deactivate(ctx context.Context, userID, accountID string) (models.Account, error) {
	return s.deactivateFn(ctx, userID, accountID)
}

type stubHistory struct {
	listFn  func(ctx context.Context, userID, accountID string, filter store.TransactionFilter) (services.TransactionPage, error)
	getFn   func(ctx context.Context, userID, transactionID string) (models.Transaction, error)
	statsFn func(ctx context.Context, userID, accountID string, now time.Time) (models.Stats, error)
}

func (s stubHistory) List(ctx context.Context, userID, accountID string, filter store.TransactionFilter) (services.TransactionPage, error) {
	return s.listFn(ctx, userID, accountID, filter)
}

func (s stubHistory) Get(ctx context.Context, userID, transactionID string) (models.Transaction, error) {
	return s.getFn(ctx, userID, transactionID)
}

func (s stubHistory) Stats(ctx context.Context, userID, accountID string, now time.Time) (models.Stats, error) {
	return s.statsFn(ctx, userID, accountID, now)
}

type testDeps struct {
	txRunner fakeTxRunner
	users    stubUserStore
	audit    stubAuditStore
	ledger   stubLedger
	accounts stubAccounts
	history  stubHistory
}

func newTestHandler(deps testDeps) *Handler {
	cfg := config.Config{
		AppEnv:         "test",
		Port:           "0",
		JWTSecret:      testSecret,
		TokenTTL:       time.Minute,
		AllowedOrigins: []string{"*"},
	}
	return New(deps.txRunner, cfg, nil, deps.users, deps.audit, deps.ledger, deps.accounts, deps.history, websocket.NewHub(nil))
}

// serve routes the request through the full router, authenticated as
// userID when it is not empty.
func serve(t *testing.T, handler *Handler, method, target, body, userID string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != "" {
		token, err := auth.GenerateToken(testSecret, userID, time.Minute)
		if err != nil {
			t.Fatalf("failed to generate token: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	handler.Routes().ServeHTTP(rr, req)
	return rr
}

func stringPtr(value string) *string {
	return &value
}
