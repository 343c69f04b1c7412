package utils

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	currencyCodeRegex = regexp.MustCompile(`^[A-Z]{3}$`)
	identifierRegex   = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.:/\-]*$`)
	controlCharRegex  = regexp.MustCompile(`[\x00-\x08\x0b\x0c\x0e-\x1f\x7f]`)
)

// MaxIdentifierLength bounds tender and bidder identifiers
const MaxIdentifierLength = 64

// ValidateCurrencyCode validates an upper-case ISO 4217 style code
func ValidateCurrencyCode(code string) error {
	if !currencyCodeRegex.MatchString(code) {
		return fmt.Errorf("invalid currency code: %q", code)
	}
	return nil
}

// ValidateIdentifier validates an external identifier such as a tender id
func ValidateIdentifier(id string) error {
	if id == "" {
		return fmt.Errorf("identifier is empty")
	}
	if len(id) > MaxIdentifierLength {
		return fmt.Errorf("identifier longer than %d characters: %q", MaxIdentifierLength, id)
	}
	if !identifierRegex.MatchString(id) {
		return fmt.Errorf("identifier has invalid characters: %q", id)
	}
	return nil
}

// SanitizeString removes control characters and collapses surrounding space.
// Tabs and newlines inside the text are kept.
func SanitizeString(s string) string {
	return strings.TrimSpace(controlCharRegex.ReplaceAllString(s, ""))
}
