package services

import (
	"context"
	"iter"
	"sync"
	"testing"
	"time"

	"openvault/internal/models"
	"openvault/internal/money"
	"openvault/internal/store"
	"openvault/internal/store/memstore"
	"openvault/internal/websocket"

	"github.com/lib/pq"
	"github.com/stretchr/testify/require"
)

const (
	ibanA = "FR7630006000011234567890189"
	ibanB = "FR7630006000011234567890270"
)

type stubHub struct {
	mu    sync.Mutex
	calls map[string][]websocket.BalanceUpdate
}

func (s *stubHub) BroadcastBalance(userID string, update websocket.BalanceUpdate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.calls == nil {
		s.calls = map[string][]websocket.BalanceUpdate{}
	}
	s.calls[userID] = append(s.calls[userID], update)
}

func (s *stubHub) updates(userID string) []websocket.BalanceUpdate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[userID]
}

type stubScopeRunner struct {
	inScopeFn func(ctx context.Context, fn func(store.Scope) error) error
}

func (s stubScopeRunner) InScope(ctx context.Context, fn func(store.Scope) error) error {
	return s.inScopeFn(ctx, fn)
}

type stubAccountReader struct {
	getByIDFn   func(ctx context.Context, accountID string) (models.Account, error)
	getByIBANFn func(ctx context.Context, iban string) (models.Account, error)
	listFn      func(ctx context.Context, userID string) ([]models.Account, error)
	countFn     func(ctx context.Context, userID string) (int, error)
	existsFn    func(ctx context.Context, iban string) (bool, error)
	selfCheckFn func(ctx context.Context, userID string) ([]models.BalanceCheck, error)
}

func (s stubAccountReader) GetByID(ctx context.Context, accountID string) (models.Account, error) {
	return s.getByIDFn(ctx, accountID)
}

func (s stubAccountReader) GetByIBAN(ctx context.Context, iban string) (models.Account, error) {
	return s.getByIBANFn(ctx, iban)
}

func (s stubAccountReader) ListActiveByUser(ctx context.Context, userID string) ([]models.Account, error) {
	return s.listFn(ctx, userID)
}

func (s stubAccountReader) CountByUser(ctx context.Context, userID string) (int, error) {
	return s.countFn(ctx, userID)
}

func (s stubAccountReader) ExistsByIBAN(ctx context.Context, iban string) (bool, error) {
	return s.existsFn(ctx, iban)
}

func (s stubAccountReader) SelfCheck(ctx context.Context, userID string) ([]models.BalanceCheck, error) {
	return s.selfCheckFn(ctx, userID)
}

type stubTransactionReader struct {
	findByIDFn      func(ctx context.Context, transactionID string) (models.Transaction, error)
	findByAccountFn func(ctx context.Context, accountID string, filter store.TransactionFilter) iter.Seq2[models.Transaction, error]
	countFn         func(ctx context.Context, accountID string, filter store.TransactionFilter) (int, error)
}

func (s stubTransactionReader) FindByID(ctx context.Context, transactionID string) (models.Transaction, error) {
	return s.findByIDFn(ctx, transactionID)
}

func (s stubTransactionReader) FindByAccount(ctx context.Context, accountID string, filter store.TransactionFilter) iter.Seq2[models.Transaction, error] {
	return s.findByAccountFn(ctx, accountID, filter)
}

func (s stubTransactionReader) CountByAccount(ctx context.Context, accountID string, filter store.TransactionFilter) (int, error) {
	return s.countFn(ctx, accountID, filter)
}

type stubAudit struct {
	mu      sync.Mutex
	actions []string
}

func (s *stubAudit) Log(_ context.Context, _, action, _, _, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actions = append(s.actions, action)
	return nil
}

// failingScopes hands out scopes whose SaveAccount always fails.
type failingScopes struct {
	inner   *memstore.Store
	saveErr error
}

func (f failingScopes) InScope(ctx context.Context, fn func(store.Scope) error) error {
	return f.inner.InScope(ctx, func(scope store.Scope) error {
		return fn(failingScope{Scope: scope, saveErr: f.saveErr})
	})
}

type failingScope struct {
	store.Scope
	saveErr error
}

func (f failingScope) SaveAccount(context.Context, models.Account) error {
	return f.saveErr
}

func newAccount(id, userID, iban, balance string) models.Account {
	return models.Account{
		ID:        id,
		IBAN:      iban,
		UserID:    userID,
		Balance:   money.MustParse(balance),
		Type:      models.AccountChecking,
		Active:    true,
		Version:   1,
		CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func newMemLedger(t *testing.T, accounts ...models.Account) (*LedgerService, *memstore.Store, *stubHub) {
	t.Helper()
	mem := memstore.New()
	require.NoError(t, mem.Seed(accounts...))
	hub := &stubHub{}
	return NewLedgerService(mem, mem, hub, nil, LedgerConfig{}), mem, hub
}

func balanceOf(t *testing.T, mem *memstore.Store, accountID string) string {
	t.Helper()
	acc, err := mem.GetByID(context.Background(), accountID)
	require.NoError(t, err)
	return acc.Balance.String()
}

// replayingScopes runs fn once against a scope that is then rolled back with
// a serialization conflict, calls between, and runs fn again for real. It
// mimics the ledger runner replaying a scope.
type replayingScopes struct {
	inner   *memstore.Store
	between func()
	runs    int
}

func (r *replayingScopes) InScope(ctx context.Context, fn func(store.Scope) error) error {
	r.runs++
	if r.runs == 1 {
		_ = r.inner.InScope(ctx, func(scope store.Scope) error {
			if err := fn(scope); err != nil {
				return err
			}
			return &pq.Error{Code: "40001"}
		})
		if r.between != nil {
			r.between()
		}
	}
	return r.inner.InScope(ctx, fn)
}
