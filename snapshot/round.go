package snapshot

import "github.com/shopspring/decimal"

// Round2 rounds v half away from zero to two decimal places.
func Round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// Ratio returns num/den*scale rounded to two places, or 0 when den is zero.
func Ratio(num, den, scale float64) float64 {
	if den == 0 {
		return 0
	}
	r := decimal.NewFromFloat(num).
		Mul(decimal.NewFromFloat(scale)).
		Div(decimal.NewFromFloat(den))
	return r.Round(2).InexactFloat64()
}
