package domain

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	claimsdomain "github.com/acmehealth/claimsight/internal/claims/domain"
)

// Outcome is the pure result of folding an activity's remittance lines.
type Outcome struct {
	SubmittedAmount decimal.Decimal
	PaidAmount      decimal.Decimal
	DeniedAmount    decimal.Decimal
	TakenBackAmount decimal.Decimal
	DenialCodes     []string
	RemittanceCount int
	ActivityStatus  claimsdomain.ActivityStatus
	LastSettledAt   *time.Time
}

// Calculate folds every remittance line ever recorded for one activity
// into a single outcome. Payments accumulate across batches but are
// capped at the billed amount; only the latest line's denial counts
// toward the denied amount; negative payments are tallied separately
// as takebacks. Lines on the same settlement date tie-break by row id,
// highest id latest.
func Calculate(submitted decimal.Decimal, lines []claimsdomain.RemittanceLine) Outcome {
	ordered := make([]claimsdomain.RemittanceLine, len(lines))
	copy(ordered, lines)
	sort.SliceStable(ordered, func(i, j int) bool {
		di, dj := ordered[i].EffectiveDate(), ordered[j].EffectiveDate()
		if !di.Equal(dj) {
			return di.Before(dj)
		}
		return ordered[i].LineID < ordered[j].LineID
	})

	out := Outcome{
		SubmittedAmount: submitted,
		PaidAmount:      decimal.Zero,
		DeniedAmount:    decimal.Zero,
		TakenBackAmount: decimal.Zero,
		ActivityStatus:  claimsdomain.ActivityPending,
	}

	grossPaid := decimal.Zero
	batches := make(map[int64]struct{})
	for _, line := range ordered {
		if line.PaymentAmount.IsPositive() {
			grossPaid = grossPaid.Add(line.PaymentAmount)
		}
		if line.PaymentAmount.IsNegative() {
			out.TakenBackAmount = out.TakenBackAmount.Add(line.PaymentAmount.Neg())
		}
		batches[int64(line.RemittanceID)] = struct{}{}
	}
	out.RemittanceCount = len(batches)

	// Latest-first denial codes.
	for i := len(ordered) - 1; i >= 0; i-- {
		if ordered[i].DenialCode != "" {
			out.DenialCodes = append(out.DenialCodes, ordered[i].DenialCode)
		}
	}

	if len(ordered) > 0 {
		last := ordered[len(ordered)-1]
		settled := last.EffectiveDate()
		out.LastSettledAt = &settled

		out.PaidAmount = decimal.Min(submitted, grossPaid)
		if out.PaidAmount.IsNegative() {
			out.PaidAmount = decimal.Zero
		}

		// Latest-denial-wins: a denial followed by payment shows paid,
		// never both paid-and-denied.
		if last.DenialCode != "" && !last.PaymentAmount.IsPositive() {
			out.DeniedAmount = submitted.Sub(out.PaidAmount)
			if out.DeniedAmount.IsNegative() {
				out.DeniedAmount = decimal.Zero
			}
		}
	}

	out.ActivityStatus = deriveStatus(out, grossPaid)
	return out
}

func deriveStatus(out Outcome, grossPaid decimal.Decimal) claimsdomain.ActivityStatus {
	if out.TakenBackAmount.IsPositive() {
		if grossPaid.Sub(out.TakenBackAmount).IsPositive() {
			return claimsdomain.ActivityPartiallyTakenBack
		}
		return claimsdomain.ActivityTakenBack
	}
	switch {
	case out.SubmittedAmount.IsPositive() && out.PaidAmount.GreaterThanOrEqual(out.SubmittedAmount):
		return claimsdomain.ActivityFullyPaid
	case out.PaidAmount.IsPositive():
		return claimsdomain.ActivityPartiallyPaid
	case out.DeniedAmount.IsPositive():
		return claimsdomain.ActivityRejected
	default:
		return claimsdomain.ActivityPending
	}
}
