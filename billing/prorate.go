package billing

import "github.com/shopspring/decimal"

// =============================================================================
// PRORATION - Fixed 30-day baseline
// =============================================================================

// prorationBaseline is the contractual divisor. The contract prorates every
// month against a nominal 30 days, NOT the actual month length: a fully
// covered 31-day month bills slightly above the monthly rate and February
// slightly below. Do not "fix" this to days-in-month.
var prorationBaseline = decimal.NewFromInt(30)

// Prorate scales a full-month rate to the given number of active days and
// rounds half-up to a whole currency unit.
//
//	Prorate(1500, 17) = round(1500 * 17 / 30) = 850
//	Prorate(2500, 17) = round(1416.67)        = 1417
//	Prorate(rate, 30) = rate
func Prorate(monthlyRate decimal.Decimal, activeDays int) decimal.Decimal {
	if activeDays <= 0 {
		return decimal.Zero
	}
	days := decimal.NewFromInt(int64(activeDays))
	// decimal's Round is half-away-from-zero; rates are non-negative so this
	// is exactly round-half-up.
	return monthlyRate.Mul(days).Div(prorationBaseline).Round(0)
}
