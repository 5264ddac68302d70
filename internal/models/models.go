package models

import (
	"fmt"
	"strings"
	"time"

	"openvault/internal/money"
)

type User struct {
	ID           string    `db:"id" json:"id"`
	FirstName    string    `db:"first_name" json:"first_name"`
	LastName     string    `db:"last_name" json:"last_name"`
	Email        string    `db:"email" json:"email"`
	PhoneNumber  *string   `db:"phone_number" json:"phone_number,omitempty"`
	PasswordHash string    `db:"password_hash" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

type AccountType string

const (
	AccountChecking AccountType = "CHECKING"
	AccountSavings  AccountType = "SAVINGS"
	AccountBusiness AccountType = "BUSINESS"
)

func ParseAccountType(raw string) (AccountType, error) {
	switch t := AccountType(strings.ToUpper(strings.TrimSpace(raw))); t {
	case AccountChecking, AccountSavings, AccountBusiness:
		return t, nil
	case "":
		return AccountChecking, nil
	default:
		return "", fmt.Errorf("%w: unknown account type %q", ErrInvalidOperation, raw)
	}
}

// Account is a balance holder. Version is the optimistic-concurrency token:
// it is read together with the row and must still match when the row is
// written back.
type Account struct {
	ID        string      `db:"id" json:"id"`
	IBAN      string      `db:"iban" json:"iban"`
	UserID    string      `db:"user_id" json:"user_id"`
	Balance   money.Money `db:"balance" json:"balance"`
	Type      AccountType `db:"type" json:"type"`
	Active    bool        `db:"active" json:"active"`
	Version   int64       `db:"version" json:"version"`
	CreatedAt time.Time   `db:"created_at" json:"created_at"`
}

func (a *Account) Credit(amount money.Money) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: credit must be positive", ErrInvalidAmount)
	}
	a.Balance = a.Balance.Add(amount)
	return nil
}

func (a *Account) Debit(amount money.Money) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: debit must be positive", ErrInvalidAmount)
	}
	if a.Balance.LessThan(amount) {
		return &InsufficientFundsError{Balance: a.Balance, Requested: amount}
	}
	a.Balance = a.Balance.Sub(amount)
	return nil
}

// Deactivate closes the account. Only an empty account can be closed and
// nothing in this module opens it again.
func (a *Account) Deactivate() error {
	if !a.Active {
		return fmt.Errorf("%w: account already inactive", ErrInvalidOperation)
	}
	if !a.Balance.IsZero() {
		return ErrNonZeroBalance
	}
	a.Active = false
	return nil
}

func (a Account) OwnedBy(userID string) bool {
	return userID != "" && a.UserID == userID
}

type Stats struct {
	TotalTransactions int         `json:"total_transactions"`
	TotalIncoming     money.Money `json:"total_incoming"`
	TotalOutgoing     money.Money `json:"total_outgoing"`
	CurrentBalance    money.Money `json:"current_balance"`
}

type BalanceCheck struct {
	AccountID      string      `db:"account_id" json:"account_id"`
	IBAN           string      `db:"iban" json:"iban"`
	AccountBalance money.Money `db:"account_balance" json:"account_balance"`
	LedgerSum      money.Money `db:"ledger_sum" json:"ledger_sum"`
	Difference     money.Money `db:"difference" json:"difference"`
}
