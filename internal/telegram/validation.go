package telegram

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	// minDigits is the shortest number accepted locally (excluding +). The
	// protocol is authoritative on whether the number exists.
	minDigits = 4

	// e164MaxLength is the maximum length of an E.164 number (excluding +).
	e164MaxLength = 15

	// positionOffset is added to character index for user-friendly position.
	positionOffset = 2
)

// e164Regex validates the basic E.164 format.
var e164Regex = regexp.MustCompile(`^\+[1-9]\d{3,14}$`)

// NormalizePhoneNumber strips the formatting characters users commonly type
// (spaces, dashes, dots, parentheses).
func NormalizePhoneNumber(phone string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '.', '(', ')':
			return -1
		}
		return r
	}, strings.TrimSpace(phone))
}

// ValidatePhoneNumber validates that a phone number looks like E.164: a
// leading '+', a country code that does not start with 0, and at most 15
// digits in total.
func ValidatePhoneNumber(phoneNumber string) error {
	if phoneNumber == "" {
		return fmt.Errorf("phone number cannot be empty")
	}

	if !strings.HasPrefix(phoneNumber, "+") {
		return fmt.Errorf("phone number must start with '+' (E.164 format required)")
	}

	if !e164Regex.MatchString(phoneNumber) {
		return validatePhoneNumberDetails(phoneNumber)
	}

	return nil
}

// validatePhoneNumberDetails provides detailed validation errors.
func validatePhoneNumberDetails(phoneNumber string) error {
	if len(phoneNumber) == 1 {
		return fmt.Errorf("phone number must include country code and number after '+'")
	}

	for i, r := range phoneNumber[1:] {
		if r < '0' || r > '9' {
			return fmt.Errorf("phone number contains invalid character '%c' at position %d", r, i+positionOffset)
		}
	}

	if phoneNumber[1] == '0' {
		return fmt.Errorf("country code cannot start with 0")
	}

	digitCount := len(phoneNumber) - 1
	if digitCount < minDigits {
		return fmt.Errorf("phone number too short: %d digits (minimum %d required)", digitCount, minDigits)
	}
	if digitCount > e164MaxLength {
		return fmt.Errorf("phone number too long: %d digits (maximum %d allowed)", digitCount, e164MaxLength)
	}

	return fmt.Errorf("invalid phone number format")
}
