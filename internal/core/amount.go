// Amount parsing and percentage helpers.
//
// The write path is responsible for validating monetary input; by the time
// values reach this package they are assumed numeric. Where that assumption
// fails (legacy rows, hand-edited imports) the value coerces to zero so the
// report still renders. Availability is favored over strict validation here.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount converts a stored decimal string into an amount. It accepts
// both dot and comma decimal separators and an optional leading sign. Any
// string that does not parse as a number coerces to zero; this function
// never returns an error.
func ParseAmount(s string) decimal.Decimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero
	}
	s = strings.ReplaceAll(s, ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// Percent returns part/whole as a percentage, or 0 when whole is not
// positive. Every ratio in this package goes through this guard so no
// report figure can come out as NaN or infinity.
func Percent(part, whole decimal.Decimal) float64 {
	if !whole.IsPositive() {
		return 0
	}
	f, _ := part.Div(whole).Float64()
	return f * 100
}

// ClampPercent bounds a percentage to the 0..100 range used by progress
// bars and gauges.
func ClampPercent(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// ApplyRate returns base × ratePercent / 100. The rate is deliberately
// unclamped: rates above 100 and negative bases both flow through.
func ApplyRate(base decimal.Decimal, ratePercent float64) decimal.Decimal {
	return base.Mul(decimal.NewFromFloat(ratePercent)).Div(decimal.NewFromInt(100))
}
