package utils

import (
	"regexp"
	"strings"
)

// KRA PINs are one letter (P for persons under the main registry, A for
// agents), nine digits, one check letter.
var pinPattern = regexp.MustCompile(`^[PA]\d{9}[A-Z]$`)

// CleanPIN uppercases and strips whitespace from a raw PIN value.
func CleanPIN(pin string) string {
	return strings.ToUpper(strings.Join(strings.Fields(pin), ""))
}

// IsValidPIN reports whether the cleaned value is a well-formed KRA PIN.
func IsValidPIN(pin string) bool {
	return pinPattern.MatchString(pin)
}

// HasLedgerPrefix reports whether the PIN carries a prefix the ledger
// screens accept. Anything else is skipped before touching the portal.
func HasLedgerPrefix(pin string) bool {
	return strings.HasPrefix(pin, "P") || strings.HasPrefix(pin, "A")
}
