// Package iban generates and checks French-format account identifiers
// (FRkk BBBB BGGG GGCC CCCC CCCC CKK, 27 characters).
package iban

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"unicode"
)

const (
	CountryCode = "FR"
	BankCode    = "10278"
	Length      = 27
)

var pattern = regexp.MustCompile(`^[A-Z]{2}\d{25}$`)

type Generator struct {
	digits func(n int) string
}

func NewGenerator() *Generator {
	return &Generator{digits: randomDigits}
}

// Generate returns a normalized IBAN (no spaces) with valid check digits.
func (g *Generator) Generate() string {
	bban := BankCode + g.digits(5) + g.digits(11) + g.digits(2)
	return CountryCode + checkDigits(CountryCode, bban) + bban
}

func Valid(value string) bool {
	clean := Normalize(value)
	if len(clean) != Length || !pattern.MatchString(clean) {
		return false
	}
	return mod97(numeric(clean[4:]+clean[:4])) == 1
}

func Normalize(value string) string {
	return strings.ToUpper(strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, value))
}

// Format groups a normalized IBAN in blocks of four for display.
func Format(value string) string {
	clean := Normalize(value)
	var b strings.Builder
	for i, r := range clean {
		if i > 0 && i%4 == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func checkDigits(country, bban string) string {
	return fmt.Sprintf("%02d", 98-mod97(numeric(bban+country+"00")))
}

// numeric expands letters to their two-digit values (A=10 ... Z=35).
func numeric(value string) string {
	var b strings.Builder
	for _, r := range value {
		if r >= 'A' && r <= 'Z' {
			fmt.Fprintf(&b, "%d", r-'A'+10)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func mod97(digits string) int {
	remainder := 0
	for _, r := range digits {
		remainder = (remainder*10 + int(r-'0')) % 97
	}
	return remainder
}

func randomDigits(n int) string {
	var b strings.Builder
	ten := big.NewInt(10)
	for i := 0; i < n; i++ {
		d, err := rand.Int(rand.Reader, ten)
		if err != nil {
			panic(fmt.Sprintf("iban: entropy source failed: %v", err))
		}
		b.WriteByte(byte('0' + d.Int64()))
	}
	return b.String()
}
