package memstore

import (
	"context"

	"openvault/internal/models"
)

type scope struct {
	store   *Store
	held    map[string]struct{}
	order   []string
	saves   map[string]models.Account
	inserts []models.Account
	newIDs  map[string]struct{}
	appends []models.Transaction
	refs    map[string]struct{}
}

// LockAccount blocks until the account lock is free or ctx is done. Locking
// an account twice in one scope returns the staged copy.
func (sc *scope) LockAccount(ctx context.Context, accountID string) (models.Account, error) {
	if _, ok := sc.held[accountID]; ok {
		if staged, ok := sc.saves[accountID]; ok {
			return staged, nil
		}
		return sc.store.GetByID(ctx, accountID)
	}
	if _, err := sc.store.GetByID(ctx, accountID); err != nil {
		return models.Account{}, err
	}
	lock := sc.store.lockFor(accountID)
	select {
	case lock <- struct{}{}:
	case <-ctx.Done():
		return models.Account{}, lockWaitError(ctx.Err())
	}
	sc.held[accountID] = struct{}{}
	sc.order = append(sc.order, accountID)
	return sc.store.GetByID(ctx, accountID)
}

func (sc *scope) SaveAccount(_ context.Context, account models.Account) error {
	if _, isNew := sc.newIDs[account.ID]; !isNew {
		if _, err := sc.store.GetByID(context.Background(), account.ID); err != nil {
			return err
		}
	}
	sc.saves[account.ID] = account
	return nil
}

func (sc *scope) InsertAccount(_ context.Context, account models.Account) error {
	sc.inserts = append(sc.inserts, account)
	sc.newIDs[account.ID] = struct{}{}
	return nil
}

func (sc *scope) CountUserAccounts(ctx context.Context, userID string) (int, error) {
	key := "user:" + userID
	if _, ok := sc.held[key]; !ok {
		lock := sc.store.lockFor(key)
		select {
		case lock <- struct{}{}:
		case <-ctx.Done():
			return 0, lockWaitError(ctx.Err())
		}
		sc.held[key] = struct{}{}
		sc.order = append(sc.order, key)
	}
	count, err := sc.store.CountByUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	for _, account := range sc.inserts {
		if account.UserID == userID {
			count++
		}
	}
	return count, nil
}

func (sc *scope) AppendTransaction(_ context.Context, txn models.Transaction) error {
	if _, dup := sc.refs[txn.Reference]; dup {
		return models.ErrDuplicateReference
	}
	sc.store.mu.RLock()
	_, dup := sc.store.references[txn.Reference]
	sc.store.mu.RUnlock()
	if dup {
		return models.ErrDuplicateReference
	}
	sc.refs[txn.Reference] = struct{}{}
	sc.appends = append(sc.appends, txn)
	return nil
}

func (sc *scope) release() {
	for i := len(sc.order) - 1; i >= 0; i-- {
		<-sc.store.lockFor(sc.order[i])
	}
	sc.order = nil
}
