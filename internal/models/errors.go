package models

import (
	"errors"
	"fmt"

	"openvault/internal/money"
)

var (
	ErrInvalidAmount          = money.ErrInvalidAmount
	ErrNotFound               = errors.New("not found")
	ErrUnauthorized           = errors.New("account does not belong to user")
	ErrInvalidOperation       = errors.New("invalid operation")
	ErrAccountInactive        = errors.New("account is inactive")
	ErrInsufficientFunds      = errors.New("insufficient funds")
	ErrConcurrentModification = errors.New("concurrent modification")
	ErrPersistenceFailure     = errors.New("persistence failure")

	ErrDuplicateReference   = errors.New("duplicate transaction reference")
	ErrImmutableTransaction = errors.New("transaction is no longer pending")
	ErrNonZeroBalance       = fmt.Errorf("%w: account balance must be zero", ErrInvalidOperation)
	ErrAccountLimitReached  = fmt.Errorf("%w: account limit reached", ErrInvalidOperation)
)

// InsufficientFundsError carries the balance seen when the debit was refused.
type InsufficientFundsError struct {
	Balance   money.Money
	Requested money.Money
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: current balance %s, requested %s", e.Balance, e.Requested)
}

func (e *InsufficientFundsError) Is(target error) bool {
	return target == ErrInsufficientFunds
}

// IsKnown reports whether err already belongs to the ledger error taxonomy.
func IsKnown(err error) bool {
	for _, kind := range []error{
		ErrInvalidAmount, ErrNotFound, ErrUnauthorized, ErrInvalidOperation,
		ErrAccountInactive, ErrInsufficientFunds, ErrConcurrentModification,
		ErrPersistenceFailure,
	} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}
