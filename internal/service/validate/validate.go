package validate

import (
	"errors"
	"regexp"
	"strings"
)

const (
	MinPhoneDigits = 10
	MinPinLength   = 4
	MaxPinLength   = 6
)

var tipIDPattern = regexp.MustCompile(`^TIP-[A-Z0-9]{6}$`)

// Phone accepts numbers with at least 10 digits
// Spaces, dashes, brackets and a leading '+' are allowed as separators
func Phone(phone string) error {
	digits := 0
	for i, r := range phone {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '+' && i == 0:
		case r == ' ' || r == '-' || r == '(' || r == ')':
		default:
			return errors.New("phone contains invalid characters")
		}
	}

	if digits < MinPhoneDigits {
		return errors.New("phone must contain at least 10 digits")
	}
	return nil
}

// NormalizePhone keeps digits and a leading '+'
func NormalizePhone(phone string) string {
	var b strings.Builder
	for i, r := range strings.TrimSpace(phone) {
		if (r >= '0' && r <= '9') || (r == '+' && i == 0) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func Pin(pin string) error {
	if len(pin) < MinPinLength || len(pin) > MaxPinLength {
		return errors.New("pin must be 4 to 6 digits")
	}
	for i := 0; i < len(pin); i++ {
		if pin[i] < '0' || pin[i] > '9' {
			return errors.New("pin must contain digits only")
		}
	}
	return nil
}

func TipID(tipID string) error {
	if !tipIDPattern.MatchString(tipID) {
		return errors.New("tip id must look like TIP-XXXXXX")
	}
	return nil
}
