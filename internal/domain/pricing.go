package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

// DefaultCurrency is used when configuration does not name a currency.
const DefaultCurrency = "USD"

// maxAmountExponent bounds the base-10 exponent of amounts accepted by
// ToMinor. Rescaling a decimal costs time proportional to its exponent, so
// inputs such as 1e30000000 are refused before any arithmetic runs.
const maxAmountExponent = 18

var (
	// ErrInvalidAmount is returned for amounts that cannot be represented.
	ErrInvalidAmount = errors.New("money: invalid amount")
	// ErrAmountOverflow is returned when an amount does not fit in int64 minor units.
	ErrAmountOverflow = errors.New("money: amount overflow")
)

// Currency describes the ISO 4217 unit monetary fields are stored in. Scale is
// the number of minor-unit digits (2 for EUR, 0 for JPY).
type Currency struct {
	Code  string
	Scale int32
}

// LookupCurrency resolves an ISO 4217 code and its standard minor-unit scale.
func LookupCurrency(code string) (Currency, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		code = DefaultCurrency
	}
	unit, err := currency.ParseISO(code)
	if err != nil {
		return Currency{}, fmt.Errorf("money: unknown currency %q: %w", code, err)
	}
	scale, _ := currency.Standard.Rounding(unit)
	return Currency{Code: unit.String(), Scale: int32(scale)}, nil
}

// MustCurrency is LookupCurrency for compile-time constants; it panics on unknown codes.
func MustCurrency(code string) Currency {
	c, err := LookupCurrency(code)
	if err != nil {
		panic(err)
	}
	return c
}

// ToMinor converts a decimal amount to minor units, rounding half away from
// zero. For the non-negative amounts the API accepts this is round-half-up.
// Amounts whose exponent lies outside ±18 yield ErrInvalidAmount.
func (c Currency) ToMinor(amount decimal.Decimal) (int64, error) {
	if exp := amount.Exponent(); exp > maxAmountExponent || exp < -maxAmountExponent {
		return 0, fmt.Errorf("%w: exponent %d out of range", ErrInvalidAmount, exp)
	}
	shifted := amount.Shift(c.Scale).Round(0)
	big := shifted.BigInt()
	if !big.IsInt64() {
		return 0, fmt.Errorf("%w: %s", ErrAmountOverflow, amount.String())
	}
	return big.Int64(), nil
}

// ParseMinor parses a decimal string such as "19.99" into minor units.
func (c Currency) ParseMinor(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidAmount)
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}
	return c.ToMinor(amount)
}

// FromMinor converts minor units back to a decimal amount.
func (c Currency) FromMinor(minor int64) decimal.Decimal {
	return decimal.New(minor, -c.Scale)
}

// Format renders minor units with the currency's fixed precision, e.g. "26.50".
func (c Currency) Format(minor int64) string {
	return c.FromMinor(minor).StringFixed(c.Scale)
}
