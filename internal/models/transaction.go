package models

import (
	"fmt"
	"time"
	"unicode/utf8"

	"openvault/internal/money"
)

const MaxDescriptionLength = 500

type TransactionType string

const (
	TransactionTransfer   TransactionType = "TRANSFER"
	TransactionDeposit    TransactionType = "DEPOSIT"
	TransactionWithdrawal TransactionType = "WITHDRAWAL"
)

func (t TransactionType) Valid() bool {
	switch t {
	case TransactionTransfer, TransactionDeposit, TransactionWithdrawal:
		return true
	}
	return false
}

type TransactionStatus string

const (
	StatusPending   TransactionStatus = "PENDING"
	StatusCompleted TransactionStatus = "COMPLETED"
	StatusFailed    TransactionStatus = "FAILED"
	// StatusCancelled is reserved for an external cancellation path.
	StatusCancelled TransactionStatus = "CANCELLED"
)

func (s TransactionStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

type Transaction struct {
	ID            string            `db:"id" json:"id"`
	FromAccountID *string           `db:"from_account_id" json:"from_account_id,omitempty"`
	ToAccountID   *string           `db:"to_account_id" json:"to_account_id,omitempty"`
	Amount        money.Money       `db:"amount" json:"amount"`
	Type          TransactionType   `db:"type" json:"type"`
	Description   string            `db:"description" json:"description,omitempty"`
	Timestamp     time.Time         `db:"timestamp" json:"timestamp"`
	Status        TransactionStatus `db:"status" json:"status"`
	Reference     string            `db:"reference" json:"reference"`
	FailureReason string            `db:"failure_reason" json:"failure_reason,omitempty"`
}

// NewTransaction returns a PENDING record stamped with now.
func NewTransaction(id string, txType TransactionType, fromID, toID string, amount money.Money, description, reference string, now time.Time) Transaction {
	return Transaction{
		ID:            id,
		FromAccountID: optional(fromID),
		ToAccountID:   optional(toID),
		Amount:        amount,
		Type:          txType,
		Description:   description,
		Timestamp:     now.UTC(),
		Status:        StatusPending,
		Reference:     reference,
	}
}

func (t Transaction) Validate() error {
	if !t.Amount.IsPositive() {
		return fmt.Errorf("%w: transaction amount must be positive", ErrInvalidAmount)
	}
	if err := ValidateDescription(t.Description); err != nil {
		return err
	}
	from, to := deref(t.FromAccountID), deref(t.ToAccountID)
	switch t.Type {
	case TransactionTransfer:
		if from == "" || to == "" {
			return fmt.Errorf("%w: transfer needs a source and a destination", ErrInvalidOperation)
		}
		if from == to {
			return fmt.Errorf("%w: cannot transfer to the same account", ErrInvalidOperation)
		}
	case TransactionDeposit:
		if to == "" || from != "" {
			return fmt.Errorf("%w: deposit needs only a destination", ErrInvalidOperation)
		}
	case TransactionWithdrawal:
		if from == "" || to != "" {
			return fmt.Errorf("%w: withdrawal needs only a source", ErrInvalidOperation)
		}
	default:
		return fmt.Errorf("%w: unknown transaction type %q", ErrInvalidOperation, t.Type)
	}
	return nil
}

func (t *Transaction) Complete() error {
	if t.Status != StatusPending {
		return fmt.Errorf("%w: %s", ErrImmutableTransaction, t.Status)
	}
	t.Status = StatusCompleted
	return nil
}

func (t *Transaction) Fail(reason string) error {
	if t.Status != StatusPending {
		return fmt.Errorf("%w: %s", ErrImmutableTransaction, t.Status)
	}
	t.Status = StatusFailed
	t.FailureReason = truncate(reason, MaxDescriptionLength)
	return nil
}

func (t Transaction) IsIncoming(accountID string) bool {
	return deref(t.ToAccountID) == accountID
}

func (t Transaction) IsOutgoing(accountID string) bool {
	return deref(t.FromAccountID) == accountID
}

func (t Transaction) Touches(accountID string) bool {
	return t.IsIncoming(accountID) || t.IsOutgoing(accountID)
}

func ValidateDescription(description string) error {
	if utf8.RuneCountInString(description) > MaxDescriptionLength {
		return fmt.Errorf("%w: description longer than %d characters", ErrInvalidOperation, MaxDescriptionLength)
	}
	return nil
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func truncate(value string, limit int) string {
	if utf8.RuneCountInString(value) <= limit {
		return value
	}
	return string([]rune(value)[:limit])
}
