package core

import (
	"fmt"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// unitDecimals is the number of decimals of the quote and unit assets.
const unitDecimals int32 = 18

// ParseUnits converts a human decimal amount ("0.001") into base units
// (1e15). Amounts with more than 18 fractional digits or negative amounts are
// rejected.
func ParseUnits(s string) (*uint256.Int, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("parse amount %q: %w", s, err)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("amount %q is negative", s)
	}

	scaled := d.Shift(unitDecimals)
	if !scaled.IsInteger() {
		return nil, fmt.Errorf("amount %q has more than %d decimals", s, unitDecimals)
	}

	amount, err := uint256.FromDecimal(scaled.String())
	if err != nil {
		return nil, fmt.Errorf("amount %q out of range: %w", s, err)
	}
	return amount, nil
}

// FormatUnits renders base units as a human decimal amount ("0.001").
func FormatUnits(amount *uint256.Int) string {
	if amount == nil {
		return "0"
	}
	return decimal.RequireFromString(amount.Dec()).Shift(-unitDecimals).String()
}

// ParseAmount parses a base-unit decimal string as carried on the wire.
// The empty string is zero.
func ParseAmount(s string) (*uint256.Int, error) {
	if s == "" {
		return new(uint256.Int), nil
	}
	amount, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return amount, nil
}
