package domain

import (
	"time"

	"github.com/shopspring/decimal"

	claimsdomain "github.com/acmehealth/claimsight/internal/claims/domain"
	settlementdomain "github.com/acmehealth/claimsight/internal/settlement/domain"
)

// Totals is the pure claim-grain fold over activity settlements.
type Totals struct {
	TotalSubmitted  decimal.Decimal
	TotalPaid       decimal.Decimal
	TotalRejected   decimal.Decimal
	TotalTakenBack  decimal.Decimal
	PendingAmount   decimal.Decimal
	PendingClamped  bool
	PaymentStatus   claimsdomain.PaymentStatus
	RemittanceCount int
	LastSettledAt   *time.Time
}

// Fold sums the claim's activity settlements. The remittance count is
// the max across activities, not the sum, because one batch usually
// touches several activities. A negative pending amount means the
// ledger rejected or paid more than was billed; it is clamped to zero
// and flagged so callers can surface the data-quality signal.
func Fold(settlements []settlementdomain.ActivitySettlement) Totals {
	t := Totals{
		TotalSubmitted: decimal.Zero,
		TotalPaid:      decimal.Zero,
		TotalRejected:  decimal.Zero,
		TotalTakenBack: decimal.Zero,
		PendingAmount:  decimal.Zero,
	}

	for _, s := range settlements {
		t.TotalSubmitted = t.TotalSubmitted.Add(s.SubmittedAmount)
		t.TotalPaid = t.TotalPaid.Add(s.PaidAmount)
		t.TotalRejected = t.TotalRejected.Add(s.DeniedAmount)
		t.TotalTakenBack = t.TotalTakenBack.Add(s.TakenBackAmount)
		if s.RemittanceCount > t.RemittanceCount {
			t.RemittanceCount = s.RemittanceCount
		}
		if s.LastSettledAt != nil && (t.LastSettledAt == nil || s.LastSettledAt.After(*t.LastSettledAt)) {
			settled := *s.LastSettledAt
			t.LastSettledAt = &settled
		}
	}

	t.PendingAmount = t.TotalSubmitted.Sub(t.TotalPaid).Sub(t.TotalRejected)
	if t.PendingAmount.IsNegative() {
		t.PendingAmount = decimal.Zero
		t.PendingClamped = true
	}

	switch {
	case t.TotalSubmitted.IsPositive() && t.TotalPaid.GreaterThanOrEqual(t.TotalSubmitted):
		t.PaymentStatus = claimsdomain.PaymentFullyPaid
	case t.TotalPaid.IsPositive():
		t.PaymentStatus = claimsdomain.PaymentPartiallyPaid
	case t.TotalRejected.IsPositive():
		t.PaymentStatus = claimsdomain.PaymentRejected
	default:
		t.PaymentStatus = claimsdomain.PaymentPending
	}
	return t
}
