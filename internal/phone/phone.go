// Package phone validates and formats Cambodian phone numbers as typed by staff.
package phone

import (
	"errors"
	"strings"
)

const (
	// MinDigits is the shortest accepted phone number.
	MinDigits = 7
	// MaxDigits is the longest accepted phone number.
	MaxDigits = 10
	// displayDigits is the only length that gets grouped for display.
	displayDigits = 9
)

var (
	// ErrEmptyPhone is returned when the input has no digits at all.
	ErrEmptyPhone = errors.New("phone: empty")
	// ErrInvalidLength is returned when the digit count is outside [MinDigits, MaxDigits].
	ErrInvalidLength = errors.New("phone: invalid length")
)

// Clean strips every rune that is not an ASCII digit.
func Clean(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Validate checks the digit count of s.
func Validate(s string) error {
	digits := Clean(s)
	switch {
	case digits == "":
		return ErrEmptyPhone
	case len(digits) < MinDigits || len(digits) > MaxDigits:
		return ErrInvalidLength
	}
	return nil
}

// Valid reports whether Validate accepts s.
func Valid(s string) bool {
	return Validate(s) == nil
}

// FormatForDisplay groups a 9-digit number as "DDD DDD DDD". Any other input
// is returned unchanged.
func FormatForDisplay(s string) string {
	digits := Clean(s)
	if len(digits) != displayDigits {
		return s
	}
	return digits[:3] + " " + digits[3:6] + " " + digits[6:]
}

// FormatInput formats a keystroke in the phone field. Input carrying more than
// MaxDigits digits is rejected and previous is kept.
func FormatInput(previous, input string) string {
	digits := Clean(input)
	if len(digits) > MaxDigits {
		return previous
	}
	return FormatForDisplay(digits)
}

// Display renders a stored phone number in tables; missing values become "-".
func Display(s string) string {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" || strings.EqualFold(trimmed, "N/A") {
		return "-"
	}
	return FormatForDisplay(trimmed)
}

// Live formats the field value and returns the validation error to show while
// typing. Numbers shorter than MinDigits are still being typed and get no error.
func Live(input string) (string, error) {
	formatted := FormatForDisplay(Clean(input))
	if len(Clean(input)) < MinDigits {
		return formatted, nil
	}
	return formatted, Validate(input)
}
