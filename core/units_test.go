package core

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
)

func TestParseUnits(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{input: "0.001", expected: "1000000000000000"},
		{input: "1", expected: "1000000000000000000"},
		{input: "2.5", expected: "2500000000000000000"},
		{input: "0.000000000000000001", expected: "1"},
		{input: "0", expected: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			amount, err := ParseUnits(tt.input)
			assert.NoError(t, err)
			check.Equal(t, tt.expected, amount.Dec())
		})
	}
}

func TestParseUnits_Invalid(t *testing.T) {
	for _, input := range []string{"", "abc", "-1", "0.0000000000000000001"} {
		t.Run(input, func(t *testing.T) {
			_, err := ParseUnits(input)
			check.Error(t, err)
		})
	}
}

func TestFormatUnits(t *testing.T) {
	check.Equal(t, "0.001", FormatUnits(uint256.NewInt(1_000_000_000_000_000)))
	check.Equal(t, "2", FormatUnits(uint256.NewInt(2_000_000_000_000_000_000)))
	check.Equal(t, "0", FormatUnits(nil))
}

func TestParseAmount(t *testing.T) {
	amount, err := ParseAmount("")
	assert.NoError(t, err)
	check.True(t, amount.IsZero())

	amount, err = ParseAmount("12345")
	assert.NoError(t, err)
	check.Equal(t, uint64(12345), amount.Uint64())

	_, err = ParseAmount("0x10")
	check.Error(t, err)
}
