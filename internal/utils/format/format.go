package format

import (
	"strings"

	"github.com/shopspring/decimal"
)

// USD renders v with two decimals and thousands separators, e.g. 1234567.891 => "1,234,567.89".
func USD(v float64) string {
	return Grouped(decimal.NewFromFloat(v).StringFixed(2))
}

// Amount renders v with up to places decimals and thousands separators.
func Amount(v float64, places int32) string {
	d := decimal.NewFromFloat(v).Round(places)
	return Grouped(d.String())
}

// Grouped inserts thousands separators into a plain decimal string.
func Grouped(s string) string {
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	intPart, frac, hasFrac := strings.Cut(s, ".")
	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if hasFrac {
		b.WriteByte('.')
		b.WriteString(frac)
	}
	return b.String()
}
