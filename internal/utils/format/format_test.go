package format

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUSD(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0.00"},
		{12.5, "12.50"},
		{999.999, "1,000.00"},
		{1234567.891, "1,234,567.89"},
		{-4200, "-4,200.00"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, USD(tt.in))
	}
}

func TestAmount(t *testing.T) {
	assert.Equal(t, "1,000,000", Amount(1_000_000, 2))
	assert.Equal(t, "1,234.57", Amount(1234.5678, 2))
	assert.Equal(t, "0.000123", Amount(0.000123, 6))
}
