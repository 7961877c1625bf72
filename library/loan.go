package library

import (
	"github.com/shopspring/decimal"
)

// Returned reports whether the loan has been closed.
func (l Loan) Returned() bool {
	return l.ActualReturn != nil || l.Status == LoanReturned
}

// IsLate is true while the loan is open and today is past the expected return.
func (l Loan) IsLate(today Date) bool {
	return !l.Returned() && today.After(l.ExpectedReturn)
}

// EffectiveStatus recomputes the status for today, ignoring the stored snapshot
// unless the loan is returned.
func (l Loan) EffectiveStatus(today Date) LoanStatus {
	switch {
	case l.Returned():
		return LoanReturned
	case l.IsLate(today):
		return LoanOverdue
	default:
		return LoanActive
	}
}

// DaysLate is 0 unless the loan is late.
func (l Loan) DaysLate(today Date) int {
	if !l.IsLate(today) {
		return 0
	}
	return DaysBetween(l.ExpectedReturn, today)
}

// DaysRemaining is signed (negative when late) and 0 once returned.
func (l Loan) DaysRemaining(today Date) int {
	if l.Returned() {
		return 0
	}
	return DaysBetween(today, l.ExpectedReturn)
}

// LateFee is DaysLate charged at ratePerDay.
func (l Loan) LateFee(today Date, ratePerDay decimal.Decimal) decimal.Decimal {
	return ratePerDay.Mul(decimal.NewFromInt(int64(l.DaysLate(today))))
}
