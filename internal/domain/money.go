package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// DefaultCurrencyExponent is the number of subunit digits (cents).
const DefaultCurrencyExponent int32 = 2

// ToDecimal converts integer subunits to a decimal amount.
func ToDecimal(subunits int64, exponent int32) decimal.Decimal {
	return decimal.New(subunits, -exponent)
}

// FromDecimal converts a decimal amount to integer subunits.
// It rejects amounts finer than one subunit instead of rounding.
func FromDecimal(d decimal.Decimal, exponent int32) (int64, error) {
	shifted := d.Shift(exponent)
	if !shifted.IsInteger() {
		return 0, fmt.Errorf("amount %s has more than %d decimal places", d.String(), exponent)
	}
	if !shifted.BigInt().IsInt64() {
		return 0, fmt.Errorf("amount %s out of range", d.String())
	}
	return shifted.IntPart(), nil
}

// ParseAmount parses a decimal string such as "12.50" into subunits.
func ParseAmount(s string, exponent int32) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return FromDecimal(d, exponent)
}

// FormatAmount renders subunits with a fixed number of decimal places.
func FormatAmount(subunits int64, exponent int32) string {
	return ToDecimal(subunits, exponent).StringFixed(exponent)
}
