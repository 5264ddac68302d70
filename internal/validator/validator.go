package validator

import (
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	ErrInvalidEmail    = errors.New("invalid email")
	ErrInvalidName     = errors.New("invalid name")
	ErrInvalidPassword = errors.New("password must be 8 to 72 characters")
	ErrInvalidPhone    = errors.New("invalid phone number")
)

var (
	emailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	nameRegex  = regexp.MustCompile(`^[\p{L}][\p{L}' -]{0,49}$`)
	phoneRegex = regexp.MustCompile(`^\+?[0-9]{6,15}$`)
)

func ValidateEmail(email string) error {
	if len(email) > 254 || !emailRegex.MatchString(email) {
		return ErrInvalidEmail
	}
	return nil
}

func ValidateName(name string) error {
	if !nameRegex.MatchString(strings.TrimSpace(name)) {
		return ErrInvalidName
	}
	return nil
}

// ValidatePassword enforces bcrypt's 72 byte input limit as well as a
// minimum length.
func ValidatePassword(password string) error {
	if utf8.RuneCountInString(password) < 8 || len(password) > 72 {
		return ErrInvalidPassword
	}
	return nil
}

// NormalizePhone drops spaces, dots and dashes used as separators.
func NormalizePhone(phone string) string {
	return strings.NewReplacer(" ", "", ".", "", "-", "").Replace(strings.TrimSpace(phone))
}

// ValidatePhone accepts 6 to 15 digits with an optional leading +, after
// normalization.
func ValidatePhone(phone string) error {
	if !phoneRegex.MatchString(NormalizePhone(phone)) {
		return ErrInvalidPhone
	}
	return nil
}
