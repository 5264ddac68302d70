package money

import "fmt"

// DefaultMaxAmount caps a single deposit, withdrawal or transfer.
var DefaultMaxAmount = FromMinor(100_000_00)

type Limits struct {
	Max Money
}

func DefaultLimits() Limits {
	return Limits{Max: DefaultMaxAmount}
}

// Validate reports ErrInvalidAmount unless 0 < amount <= Max.
func (l Limits) Validate(amount Money) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: amount must be greater than zero", ErrInvalidAmount)
	}
	if l.Max.IsPositive() && amount.GreaterThan(l.Max) {
		return fmt.Errorf("%w: amount exceeds maximum of %s", ErrInvalidAmount, l.Max)
	}
	return nil
}

func (l Limits) ParseAmount(raw string) (Money, error) {
	amount, err := Parse(raw)
	if err != nil {
		return Money{}, err
	}
	if err := l.Validate(amount); err != nil {
		return Money{}, err
	}
	return amount, nil
}
