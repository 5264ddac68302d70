package store

import (
	"context"

	"openvault/internal/db"
	"openvault/internal/models"

	"github.com/jmoiron/sqlx"
)

// Scope is one atomic unit of work. Accounts locked through it stay locked
// until the scope ends, and its writes become visible only if fn returns nil.
type Scope interface {
	LockAccount(ctx context.Context, accountID string) (models.Account, error)
	SaveAccount(ctx context.Context, account models.Account) error
	InsertAccount(ctx context.Context, account models.Account) error
	// CountUserAccounts serialises on the owner and counts their accounts,
	// including ones inserted earlier in this scope.
	CountUserAccounts(ctx context.Context, userID string) (int, error)
	AppendTransaction(ctx context.Context, txn models.Transaction) error
}

type ScopeRunner interface {
	InScope(ctx context.Context, fn func(Scope) error) error
}

type SQLScopeRunner struct {
	runner       db.TxRunner
	accounts     *AccountStore
	transactions *TransactionStore
}

func NewSQLScopeRunner(runner db.TxRunner, accounts *AccountStore, transactions *TransactionStore) *SQLScopeRunner {
	return &SQLScopeRunner{runner: runner, accounts: accounts, transactions: transactions}
}

// InScope runs fn inside one database transaction. Driver errors are mapped
// onto the ledger taxonomy; errors fn raises itself pass through.
func (r *SQLScopeRunner) InScope(ctx context.Context, fn func(Scope) error) error {
	err := r.runner.WithTx(ctx, func(tx *sqlx.Tx) error {
		return fn(&sqlScope{tx: tx, accounts: r.accounts, transactions: r.transactions})
	})
	return db.ClassifyError(err)
}

type sqlScope struct {
	tx           Tx
	accounts     *AccountStore
	transactions *TransactionStore
}

func (s *sqlScope) LockAccount(ctx context.Context, accountID string) (models.Account, error) {
	return s.accounts.GetForUpdate(ctx, s.tx, accountID)
}

func (s *sqlScope) SaveAccount(ctx context.Context, account models.Account) error {
	return s.accounts.Save(ctx, s.tx, account)
}

func (s *sqlScope) InsertAccount(ctx context.Context, account models.Account) error {
	return s.accounts.Create(ctx, s.tx, account)
}

func (s *sqlScope) CountUserAccounts(ctx context.Context, userID string) (int, error) {
	return s.accounts.CountByUserForUpdate(ctx, s.tx, userID)
}

func (s *sqlScope) AppendTransaction(ctx context.Context, txn models.Transaction) error {
	return s.transactions.Append(ctx, s.tx, txn)
}
