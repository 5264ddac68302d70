// Package money implements a fixed-point currency amount with exactly two
// decimal places. Values are backed by shopspring/decimal and never pass
// through binary floating point.
package money

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const Scale = 2

var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrTooManyDecimals = fmt.Errorf("%w: amount has too many decimal places", ErrInvalidAmount)
)

// Money is an immutable amount with scale 2. The zero value is 0.00.
type Money struct {
	d decimal.Decimal
}

func Zero() Money {
	return Money{}
}

func FromMinor(minor int64) Money {
	return Money{d: decimal.New(minor, -Scale)}
}

// New accepts d when it carries at most two decimal places.
func New(d decimal.Decimal) (Money, error) {
	if d.Exponent() < -Scale {
		return Money{}, ErrTooManyDecimals
	}
	return Money{d: d.Round(Scale)}, nil
}

// Parse reads a plain decimal string such as "250.50". Scientific notation,
// NaN and infinities are rejected.
func Parse(input string) (Money, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" || !isPlainDecimal(trimmed) {
		return Money{}, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(trimmed)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	return New(d)
}

func MustParse(input string) Money {
	m, err := Parse(input)
	if err != nil {
		panic(fmt.Sprintf("money: %q: %v", input, err))
	}
	return m
}

func (m Money) Add(other Money) Money {
	return Money{d: m.d.Add(other.d)}
}

// Sub returns m - other. The result may be negative; callers that hold a
// balance enforce their own floor.
func (m Money) Sub(other Money) Money {
	return Money{d: m.d.Sub(other.d)}
}

func (m Money) Cmp(other Money) int {
	return m.d.Cmp(other.d)
}

func (m Money) Equal(other Money) bool {
	return m.d.Equal(other.d)
}

func (m Money) LessThan(other Money) bool {
	return m.d.LessThan(other.d)
}

func (m Money) GreaterThan(other Money) bool {
	return m.d.GreaterThan(other.d)
}

func (m Money) IsPositive() bool {
	return m.d.IsPositive()
}

func (m Money) IsZero() bool {
	return m.d.IsZero()
}

func (m Money) IsNegative() bool {
	return m.d.IsNegative()
}

func (m Money) Decimal() decimal.Decimal {
	return m.d
}

// Minor returns the amount in cents.
func (m Money) Minor() int64 {
	return m.d.Shift(Scale).IntPart()
}

func (m Money) String() string {
	return m.d.StringFixed(Scale)
}

func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON accepts "12.50" as well as 12.50; numbers are read from
// their literal text, not through float64.
func (m *Money) UnmarshalJSON(data []byte) error {
	raw := bytes.TrimSpace(data)
	if bytes.Equal(raw, []byte("null")) {
		return ErrInvalidAmount
	}
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return ErrInvalidAmount
		}
		raw = []byte(s)
	}
	parsed, err := Parse(string(raw))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

func (m *Money) Scan(value any) error {
	var d decimal.Decimal
	if err := d.Scan(value); err != nil {
		return fmt.Errorf("scan money: %w", err)
	}
	m.d = d.Round(Scale)
	return nil
}

func (m Money) Value() (driver.Value, error) {
	return m.String(), nil
}

func isPlainDecimal(value string) bool {
	digits := 0
	dots := 0
	for i, r := range value {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '.':
			dots++
		case (r == '-' || r == '+') && i == 0:
		default:
			return false
		}
	}
	return digits > 0 && dots <= 1
}
