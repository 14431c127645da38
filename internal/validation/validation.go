// Package validation holds input checks shared by handlers and services.
package validation

import (
	"errors"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	minPasswordLength = 12
	maxPasswordLength = 128
	maxEmailLength    = 254
)

var (
	usernameRegex = regexp.MustCompile(`^[A-Za-z0-9](?:[A-Za-z0-9_-]{1,28})[A-Za-z0-9]$`)
	emailRegex    = regexp.MustCompile(`^[A-Za-z0-9._%+\-]+@[A-Za-z0-9](?:[A-Za-z0-9\-]*[A-Za-z0-9])?(?:\.[A-Za-z0-9](?:[A-Za-z0-9\-]*[A-Za-z0-9])?)+$`)
)

// ValidatePassword requires 12-128 characters with upper, lower, digit and special characters.
func ValidatePassword(password string) error {
	n := utf8.RuneCountInString(password)
	if n < minPasswordLength {
		return errors.New("password must be at least 12 characters")
	}
	if n > maxPasswordLength {
		return errors.New("password must be at most 128 characters")
	}

	var upper, lower, digit, special bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			special = true
		}
	}
	if !upper || !lower || !digit || !special {
		return errors.New("password must contain upper and lower case letters, a digit and a special character")
	}
	return nil
}

// ValidateUsername allows 3-30 letters, digits, underscores and hyphens,
// starting and ending with a letter or digit.
func ValidateUsername(username string) error {
	if !usernameRegex.MatchString(username) {
		return errors.New("username must be 3-30 characters of letters, digits, '_' or '-' and start and end with a letter or digit")
	}
	return nil
}

// ValidateEmail checks the address shape and the 254 character limit.
func ValidateEmail(email string) error {
	if len(email) > maxEmailLength {
		return errors.New("email is too long")
	}
	if !emailRegex.MatchString(email) {
		return errors.New("email is invalid")
	}
	return nil
}

// NormalizeEmail lowercases and trims an address before lookup or storage.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
