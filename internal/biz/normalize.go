package biz

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/meikanc/mpesa-backend/internal/constants"
	"github.com/meikanc/mpesa-backend/internal/errors"
)

// safaricomPhonePattern matches a normalized payer number: country code 254,
// a 1 or 7 network digit, then eight digits.
var safaricomPhonePattern = regexp.MustCompile(`^254[17]\d{8}$`)

var nonDigits = regexp.MustCompile(`\D`)

// NormalizeMpesaPhone strips non-digit characters, converts a national
// leading zero into the 254 country code and validates the result.
func NormalizeMpesaPhone(raw string) (string, error) {
	digits := nonDigits.ReplaceAllString(raw, "")
	if digits == "" {
		return "", errors.Validation("phone number is required for mpesa payments")
	}
	if strings.HasPrefix(digits, "0") {
		digits = constants.KenyaCountryCode + digits[1:]
	}
	if !safaricomPhonePattern.MatchString(digits) {
		return "", errors.Validation("phone number %q is not a valid Safaricom number", raw)
	}
	return digits, nil
}

// ParseAmount parses a positive decimal amount into cents without going
// through floating point. At most two decimal places are accepted.
func ParseAmount(raw string) (Cents, error) {
	c, err := parseCents(raw)
	if err != nil {
		return 0, err
	}
	if c <= 0 {
		return 0, errors.Validation("amount must be positive, got %q", raw)
	}
	return c, nil
}

// ParsePrice parses a non-negative decimal unit price into cents.
func ParsePrice(raw string) (Cents, error) {
	c, err := parseCents(raw)
	if err != nil {
		return 0, err
	}
	if c < 0 {
		return 0, errors.Validation("price must not be negative, got %q", raw)
	}
	return c, nil
}

func parseCents(raw string) (Cents, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, errors.Validation("amount is required")
	}
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}
	whole := s
	frac := ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		whole, frac = s[:i], s[i+1:]
	}
	if whole == "" && frac == "" {
		return 0, errors.Validation("amount %q is not a number", raw)
	}
	if len(frac) > 2 {
		return 0, errors.Validation("amount %q has more than two decimal places", raw)
	}
	var cents int64
	if whole != "" {
		w, err := strconv.ParseInt(whole, 10, 64)
		if err != nil {
			return 0, errors.Validation("amount %q is not a number", raw)
		}
		cents = w * 100
	}
	if frac != "" {
		for len(frac) < 2 {
			frac += "0"
		}
		f, err := strconv.ParseInt(frac, 10, 64)
		if err != nil {
			return 0, errors.Validation("amount %q is not a number", raw)
		}
		cents += f
	}
	if neg {
		cents = -cents
	}
	return Cents(cents), nil
}

// CartItem is one validated cart entry.
type CartItem struct {
	ProductID uint64
	Quantity  int
	Price     Cents
}

// ValidateCart checks the cart rules: non-empty, positive quantities,
// non-negative prices.
func ValidateCart(items []*CartItem) error {
	if len(items) == 0 {
		return errors.Validation("cart must not be empty")
	}
	for i, item := range items {
		if item.Quantity <= 0 {
			return errors.Validation("cart item %d quantity must be positive", i)
		}
		if item.Price < 0 {
			return errors.Validation("cart item %d price must not be negative", i)
		}
	}
	return nil
}

// CartTotal sums quantity times unit price over the cart.
func CartTotal(items []*CartItem) Cents {
	var total Cents
	for _, item := range items {
		total += item.Price * Cents(item.Quantity)
	}
	return total
}
