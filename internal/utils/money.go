package utils

import "github.com/shopspring/decimal"

// Money math runs on decimals and rounds half-up to two places at every
// aggregation step, so repeated sums cannot accumulate float drift.

// Round2 rounds an amount to two decimal places, half-up.
func Round2(amount float64) float64 {
	f, _ := decimal.NewFromFloat(amount).Round(2).Float64()
	return f
}

// LineTotal returns price × quantity rounded to two places.
func LineTotal(price float64, quantity int) float64 {
	f, _ := decimal.NewFromFloat(price).
		Mul(decimal.NewFromInt(int64(quantity))).
		Round(2).
		Float64()
	return f
}

// Sum2 adds amounts and rounds the result to two places.
func Sum2(amounts ...float64) float64 {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(decimal.NewFromFloat(a))
	}
	f, _ := total.Round(2).Float64()
	return f
}

// CodSplit divides a total into the cash-on-delivery advance (one third,
// charged now) and the remainder due on delivery. The two parts always sum
// to the total exactly: the remainder is computed by subtraction, not by
// rounding the fraction twice.
func CodSplit(total float64) (advance, remaining float64) {
	t := decimal.NewFromFloat(total)
	adv := t.Div(decimal.NewFromInt(3)).Round(2)
	rem := t.Sub(adv).Round(2)
	a, _ := adv.Float64()
	r, _ := rem.Float64()
	return a, r
}

// MinorUnits converts an amount to integer minor currency units (paise).
func MinorUnits(amount float64) int64 {
	return decimal.NewFromFloat(amount).Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}
