// Package memstore keeps accounts and the transaction log in process memory.
// It honours the same scope contract as the Postgres stores: per-account
// exclusive locks held until the scope ends, all-or-nothing commit, version
// checked saves and unique transaction references.
package memstore

import (
	"context"
	"fmt"
	"iter"
	"slices"
	"sync"

	"openvault/internal/models"
	"openvault/internal/money"
	"openvault/internal/store"
)

type Store struct {
	mu           sync.RWMutex
	accounts     map[string]models.Account
	ibans        map[string]string
	transactions []models.Transaction
	txByID       map[string]int
	references   map[string]struct{}

	lockMu sync.Mutex
	locks  map[string]chan struct{}
}

func New() *Store {
	return &Store{
		accounts:   map[string]models.Account{},
		ibans:      map[string]string{},
		txByID:     map[string]int{},
		references: map[string]struct{}{},
		locks:      map[string]chan struct{}{},
	}
}

// Seed inserts accounts directly, bypassing scopes.
func (s *Store) Seed(accounts ...models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, account := range accounts {
		if err := s.checkNewAccount(account); err != nil {
			return err
		}
		s.accounts[account.ID] = account
		s.ibans[account.IBAN] = account.ID
	}
	return nil
}

func (s *Store) InScope(ctx context.Context, fn func(store.Scope) error) error {
	sc := &scope{
		store:  s,
		held:   map[string]struct{}{},
		saves:  map[string]models.Account{},
		refs:   map[string]struct{}{},
		newIDs: map[string]struct{}{},
	}
	defer sc.release()
	if err := ctx.Err(); err != nil {
		return lockWaitError(err)
	}
	if err := fn(sc); err != nil {
		return err
	}
	return s.commit(sc)
}

func (s *Store) GetByID(_ context.Context, accountID string) (models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	account, ok := s.accounts[accountID]
	if !ok {
		return models.Account{}, models.ErrNotFound
	}
	return account, nil
}

func (s *Store) GetByIBAN(_ context.Context, iban string) (models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.ibans[iban]
	if !ok {
		return models.Account{}, models.ErrNotFound
	}
	return s.accounts[id], nil
}

func (s *Store) ListActiveByUser(_ context.Context, userID string) ([]models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.Account{}
	for _, account := range s.accounts {
		if account.UserID == userID && account.Active {
			out = append(out, account)
		}
	}
	slices.SortFunc(out, func(a, b models.Account) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return compareStrings(a.ID, b.ID)
	})
	return out, nil
}

func (s *Store) CountByUser(_ context.Context, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, account := range s.accounts {
		if account.UserID == userID {
			count++
		}
	}
	return count, nil
}

func (s *Store) ExistsByIBAN(_ context.Context, iban string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.ibans[iban]
	return ok, nil
}

func (s *Store) SelfCheck(_ context.Context, userID string) ([]models.BalanceCheck, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.BalanceCheck{}
	for _, account := range s.accounts {
		if account.UserID != userID {
			continue
		}
		sum := money.Zero()
		for _, txn := range s.transactions {
			if txn.Status != models.StatusCompleted {
				continue
			}
			if txn.IsIncoming(account.ID) {
				sum = sum.Add(txn.Amount)
			}
			if txn.IsOutgoing(account.ID) {
				sum = sum.Sub(txn.Amount)
			}
		}
		out = append(out, models.BalanceCheck{
			AccountID:      account.ID,
			IBAN:           account.IBAN,
			AccountBalance: account.Balance,
			LedgerSum:      sum,
			Difference:     account.Balance.Sub(sum),
		})
	}
	slices.SortFunc(out, func(a, b models.BalanceCheck) int { return compareStrings(a.IBAN, b.IBAN) })
	return out, nil
}

func (s *Store) FindByID(_ context.Context, transactionID string) (models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.txByID[transactionID]
	if !ok {
		return models.Transaction{}, models.ErrNotFound
	}
	return s.transactions[idx], nil
}

// FindByAccount ranges over a snapshot taken when iteration starts, newest
// first.
func (s *Store) FindByAccount(_ context.Context, accountID string, filter store.TransactionFilter) iter.Seq2[models.Transaction, error] {
	return func(yield func(models.Transaction, error) bool) {
		matches := s.matching(accountID, filter)
		offset := max(filter.Offset, 0)
		if offset >= len(matches) {
			return
		}
		matches = matches[offset:]
		if filter.Limit > 0 && filter.Limit < len(matches) {
			matches = matches[:filter.Limit]
		}
		for _, txn := range matches {
			if !yield(txn, nil) {
				return
			}
		}
	}
}

func (s *Store) CountByAccount(_ context.Context, accountID string, filter store.TransactionFilter) (int, error) {
	return len(s.matching(accountID, filter)), nil
}

func (s *Store) matching(accountID string, filter store.TransactionFilter) []models.Transaction {
	s.mu.RLock()
	out := make([]models.Transaction, 0)
	for _, txn := range s.transactions {
		if !txn.Touches(accountID) {
			continue
		}
		if !filter.From.IsZero() && txn.Timestamp.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && !txn.Timestamp.Before(filter.To) {
			continue
		}
		if filter.Type != "" && txn.Type != filter.Type {
			continue
		}
		out = append(out, txn)
	}
	s.mu.RUnlock()
	slices.SortStableFunc(out, func(a, b models.Transaction) int {
		if c := b.Timestamp.Compare(a.Timestamp); c != 0 {
			return c
		}
		return compareStrings(b.ID, a.ID)
	})
	return out
}

// Transactions returns a copy of the whole log in append order.
func (s *Store) Transactions() []models.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.transactions)
}

func (s *Store) commit(sc *scope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, account := range sc.inserts {
		if err := s.checkNewAccount(account); err != nil {
			return err
		}
	}
	for id, account := range sc.saves {
		if _, isNew := sc.newIDs[id]; isNew {
			continue
		}
		current, ok := s.accounts[id]
		if !ok {
			return models.ErrNotFound
		}
		if current.Version != account.Version {
			return models.ErrConcurrentModification
		}
	}
	for _, txn := range sc.appends {
		if _, dup := s.references[txn.Reference]; dup {
			return models.ErrDuplicateReference
		}
		if _, dup := s.txByID[txn.ID]; dup {
			return fmt.Errorf("%w: transaction %s already recorded", models.ErrPersistenceFailure, txn.ID)
		}
	}

	for _, account := range sc.inserts {
		s.accounts[account.ID] = account
		s.ibans[account.IBAN] = account.ID
	}
	for id, account := range sc.saves {
		if _, isNew := sc.newIDs[id]; isNew {
			s.accounts[id] = account
			continue
		}
		account.Version++
		s.accounts[id] = account
	}
	for _, txn := range sc.appends {
		s.txByID[txn.ID] = len(s.transactions)
		s.transactions = append(s.transactions, txn)
		s.references[txn.Reference] = struct{}{}
	}
	return nil
}

func (s *Store) checkNewAccount(account models.Account) error {
	if _, exists := s.accounts[account.ID]; exists {
		return fmt.Errorf("%w: account %s already exists", models.ErrPersistenceFailure, account.ID)
	}
	if _, exists := s.ibans[account.IBAN]; exists {
		return fmt.Errorf("%w: iban %s already exists", models.ErrPersistenceFailure, account.IBAN)
	}
	return nil
}

func (s *Store) lockFor(accountID string) chan struct{} {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	ch, ok := s.locks[accountID]
	if !ok {
		ch = make(chan struct{}, 1)
		s.locks[accountID] = ch
	}
	return ch
}

func compareStrings(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func lockWaitError(err error) error {
	return fmt.Errorf("%w: lock wait: %v", models.ErrConcurrentModification, err)
}
