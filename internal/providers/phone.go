package providers

import (
	"errors"
	"strings"
)

// ErrInvalidPhone is returned when a number cannot be turned into a Tanzanian
// mobile number.
var ErrInvalidPhone = errors.New("invalid phone number")

const countryCode = "255"

// NormalizePhone strips everything but digits and rewrites local forms
// (0712345678, 712345678) to the international 255XXXXXXXXX form. It is the only
// place a payer phone is validated; callers reject the request on error.
func NormalizePhone(raw string) (string, error) {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()

	switch {
	case strings.HasPrefix(digits, "00"+countryCode):
		digits = digits[2:]
	case len(digits) == 10 && strings.HasPrefix(digits, "0"):
		digits = countryCode + digits[1:]
	case len(digits) == 9:
		digits = countryCode + digits
	}

	if len(digits) != 12 || !strings.HasPrefix(digits, countryCode) {
		return "", ErrInvalidPhone
	}
	if lead := digits[3]; lead != '6' && lead != '7' {
		return "", ErrInvalidPhone
	}
	return digits, nil
}
