package claim

import "github.com/shopspring/decimal"

// Band start amounts. Each start is inclusive: an amount equal to a start
// belongs to the higher band.
var (
	MediumBandStart   = decimal.NewFromInt(5_000)
	HighBandStart     = decimal.NewFromInt(25_000)
	CriticalBandStart = decimal.NewFromInt(75_000)
)

// SeverityForAmount maps a claim amount to its severity band:
//
//	< 5,000   low
//	< 25,000  medium
//	< 75,000  high
//	>= 75,000 critical
//
// The mapping is monotonic in amount.
func SeverityForAmount(amount decimal.Decimal) Severity {
	switch {
	case amount.LessThan(MediumBandStart):
		return SeverityLow
	case amount.LessThan(HighBandStart):
		return SeverityMedium
	case amount.LessThan(CriticalBandStart):
		return SeverityHigh
	default:
		return SeverityCritical
	}
}
