package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"openvault/internal/db"
	"openvault/internal/iban"
	"openvault/internal/models"
	"openvault/internal/money"
	"openvault/internal/reference"
	"openvault/internal/store"
	"openvault/internal/websocket"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const DefaultLockTimeout = 5 * time.Second

type LedgerConfig struct {
	Limits      money.Limits
	LockTimeout time.Duration
	References  ReferenceSource
}

// LedgerService moves money between accounts. Every call runs in its own
// scope, never retries, and leaves either both balance changes and a
// COMPLETED record or no balance change at all.
type LedgerService struct {
	scopes      ScopeRunner
	accounts    AccountReader
	hub         BalanceHub
	logger      *zap.Logger
	limits      money.Limits
	lockTimeout time.Duration
	refs        ReferenceSource
	now         clock
	newID       func() string
}

func NewLedgerService(scopes ScopeRunner, accounts AccountReader, hub BalanceHub, logger *zap.Logger, cfg LedgerConfig) *LedgerService {
	if hub == nil {
		hub = noopHub{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Limits.Max.IsZero() {
		cfg.Limits = money.DefaultLimits()
	}
	if cfg.LockTimeout <= 0 {
		cfg.LockTimeout = DefaultLockTimeout
	}
	if cfg.References == nil {
		cfg.References = reference.NewGenerator()
	}
	return &LedgerService{
		scopes:      scopes,
		accounts:    accounts,
		hub:         hub,
		logger:      logger,
		limits:      cfg.Limits,
		lockTimeout: cfg.LockTimeout,
		refs:        cfg.References,
		now:         time.Now,
		newID:       uuid.NewString,
	}
}

type TransferRequest struct {
	UserID        string
	FromAccountID string
	ToIBAN        string
	Amount        money.Money
	Description   string
}

type DepositRequest struct {
	// UserID, when set, must own the account.
	UserID      string
	AccountID   string
	Amount      money.Money
	Description string
}

type WithdrawRequest struct {
	UserID      string
	AccountID   string
	Amount      money.Money
	Description string
}

func (s *LedgerService) Transfer(ctx context.Context, req TransferRequest) (models.Transaction, error) {
	op := s.begin(models.TransactionTransfer,
		zap.String("user_id", req.UserID),
		zap.String("from_account_id", req.FromAccountID),
		zap.String("to_iban", req.ToIBAN),
		zap.Stringer("amount", req.Amount),
	)
	if err := s.validate(req.Amount, req.Description); err != nil {
		return models.Transaction{}, op.fail(err)
	}
	destination, err := s.accounts.GetByIBAN(ctx, iban.Normalize(req.ToIBAN))
	if err != nil {
		return models.Transaction{}, op.fail(db.ClassifyError(err))
	}

	ctx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	defer cancel()

	var (
		pending  *models.Transaction
		from, to models.Account
		result   models.Transaction
	)
	op.advance(stateLocking)
	err = s.scopes.InScope(ctx, func(scope store.Scope) error {
		// The runner may replay this function after a serialization conflict.
		pending = nil
		src, dst, err := lockTwoAccounts(ctx, scope, req.FromAccountID, destination.ID)
		if err != nil {
			return err
		}
		if !src.OwnedBy(req.UserID) {
			return models.ErrUnauthorized
		}
		if src.ID == dst.ID {
			return fmt.Errorf("%w: cannot transfer to the same account", models.ErrInvalidOperation)
		}
		if !src.Active || !dst.Active {
			return models.ErrAccountInactive
		}
		if src.Balance.LessThan(req.Amount) {
			return &models.InsufficientFundsError{Balance: src.Balance, Requested: req.Amount}
		}

		txn := models.NewTransaction(s.newID(), models.TransactionTransfer, src.ID, dst.ID, req.Amount, req.Description, s.refs.Next(), s.now())
		pending = &txn
		op.advance(stateMutating, zap.String("reference", txn.Reference))

		if err := src.Debit(req.Amount); err != nil {
			return err
		}
		if err := dst.Credit(req.Amount); err != nil {
			return err
		}
		if err := scope.SaveAccount(ctx, src); err != nil {
			return err
		}
		if err := scope.SaveAccount(ctx, dst); err != nil {
			return err
		}
		completed := txn
		if err := completed.Complete(); err != nil {
			return err
		}
		if err := scope.AppendTransaction(ctx, completed); err != nil {
			return err
		}
		from, to, result = src, dst, completed
		return nil
	})
	if err != nil {
		return models.Transaction{}, op.fail(s.recordFailure(ctx, pending, err))
	}
	op.commit(result)
	s.broadcast(from, result)
	s.broadcast(to, result)
	return result, nil
}

func (s *LedgerService) Deposit(ctx context.Context, req DepositRequest) (models.Transaction, error) {
	op := s.begin(models.TransactionDeposit,
		zap.String("user_id", req.UserID),
		zap.String("account_id", req.AccountID),
		zap.Stringer("amount", req.Amount),
	)
	if err := s.validate(req.Amount, req.Description); err != nil {
		return models.Transaction{}, op.fail(err)
	}
	return s.single(ctx, op, req.UserID, req.AccountID, req.Amount, req.Description)
}

func (s *LedgerService) Withdraw(ctx context.Context, req WithdrawRequest) (models.Transaction, error) {
	op := s.begin(models.TransactionWithdrawal,
		zap.String("user_id", req.UserID),
		zap.String("account_id", req.AccountID),
		zap.Stringer("amount", req.Amount),
	)
	if err := s.validate(req.Amount, req.Description); err != nil {
		return models.Transaction{}, op.fail(err)
	}
	return s.single(ctx, op, req.UserID, req.AccountID, req.Amount, req.Description)
}

// single runs a deposit or withdrawal against one account.
func (s *LedgerService) single(ctx context.Context, op *operation, userID, accountID string, amount money.Money, description string) (models.Transaction, error) {
	ctx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	defer cancel()

	var (
		pending *models.Transaction
		account models.Account
		result  models.Transaction
	)
	op.advance(stateLocking)
	err := s.scopes.InScope(ctx, func(scope store.Scope) error {
		pending = nil
		locked, err := scope.LockAccount(ctx, accountID)
		if err != nil {
			return err
		}
		if userID != "" && !locked.OwnedBy(userID) {
			return models.ErrUnauthorized
		}
		if !locked.Active {
			return models.ErrAccountInactive
		}
		if op.kind == models.TransactionWithdrawal && locked.Balance.LessThan(amount) {
			return &models.InsufficientFundsError{Balance: locked.Balance, Requested: amount}
		}

		var fromID, toID string
		if op.kind == models.TransactionWithdrawal {
			fromID = locked.ID
		} else {
			toID = locked.ID
		}
		txn := models.NewTransaction(s.newID(), op.kind, fromID, toID, amount, description, s.refs.Next(), s.now())
		pending = &txn
		op.advance(stateMutating, zap.String("reference", txn.Reference))

		if op.kind == models.TransactionWithdrawal {
			err = locked.Debit(amount)
		} else {
			err = locked.Credit(amount)
		}
		if err != nil {
			return err
		}
		if err := scope.SaveAccount(ctx, locked); err != nil {
			return err
		}
		completed := txn
		if err := completed.Complete(); err != nil {
			return err
		}
		if err := scope.AppendTransaction(ctx, completed); err != nil {
			return err
		}
		account, result = locked, completed
		return nil
	})
	if err != nil {
		return models.Transaction{}, op.fail(s.recordFailure(ctx, pending, err))
	}
	op.commit(result)
	s.broadcast(account, result)
	return result, nil
}

func (s *LedgerService) validate(amount money.Money, description string) error {
	if err := s.limits.Validate(amount); err != nil {
		return err
	}
	return models.ValidateDescription(description)
}

// recordFailure appends the FAILED counterpart of pending in a scope of its
// own, after the failed scope has rolled back. The triggering error is
// returned in every case.
func (s *LedgerService) recordFailure(ctx context.Context, pending *models.Transaction, cause error) error {
	cause = db.ClassifyError(cause)
	if pending == nil {
		return cause
	}
	failed := *pending
	if err := failed.Fail(cause.Error()); err != nil {
		s.logger.Error("mark transaction failed", zap.String("reference", failed.Reference), zap.Error(err))
		return cause
	}
	if errors.Is(cause, models.ErrDuplicateReference) {
		failed.Reference = s.refs.Next()
	}

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.lockTimeout)
	defer cancel()
	err := s.scopes.InScope(writeCtx, func(scope store.Scope) error {
		return scope.AppendTransaction(writeCtx, failed)
	})
	if err != nil {
		s.logger.Error("record failed transaction",
			zap.String("transaction_id", failed.ID),
			zap.String("reference", failed.Reference),
			zap.NamedError("cause", cause),
			zap.Error(err),
		)
	}
	return cause
}

func (s *LedgerService) broadcast(account models.Account, txn models.Transaction) {
	if account.UserID == "" {
		return
	}
	s.hub.BroadcastBalance(account.UserID, websocket.BalanceUpdate{
		AccountID: account.ID,
		IBAN:      account.IBAN,
		Balance:   account.Balance.String(),
		Reference: txn.Reference,
		Type:      string(txn.Type),
	})
}

// lockTwoAccounts locks in ascending id order whatever the direction of the
// transfer, so that two opposite transfers cannot deadlock.
func lockTwoAccounts(ctx context.Context, scope store.Scope, firstID, secondID string) (models.Account, models.Account, error) {
	if firstID == secondID {
		account, err := scope.LockAccount(ctx, firstID)
		return account, account, err
	}
	leftID, rightID := orderedIDs(firstID, secondID)
	leftAccount, err := scope.LockAccount(ctx, leftID)
	if err != nil {
		return models.Account{}, models.Account{}, err
	}
	rightAccount, err := scope.LockAccount(ctx, rightID)
	if err != nil {
		return models.Account{}, models.Account{}, err
	}
	if firstID == leftID {
		return leftAccount, rightAccount, nil
	}
	return rightAccount, leftAccount, nil
}

func orderedIDs(firstID, secondID string) (string, string) {
	if firstID <= secondID {
		return firstID, secondID
	}
	return secondID, firstID
}
