package domain

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	claimsdomain "github.com/acmehealth/claimsight/internal/claims/domain"
	rollupdomain "github.com/acmehealth/claimsight/internal/rollup/domain"
)

var hundred = decimal.NewFromInt(100)

// MonthBucket truncates a timestamp to the first day of its calendar
// month in UTC.
func MonthBucket(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// MonthBuckets enumerates the month buckets spanned by [from, to]
// inclusive.
func MonthBuckets(from, to time.Time) []time.Time {
	var buckets []time.Time
	for cursor := MonthBucket(from); !cursor.After(MonthBucket(to)); cursor = cursor.AddDate(0, 1, 0) {
		buckets = append(buckets, cursor)
	}
	return buckets
}

// ClaimMonth is the month bucket a claim lands in: its latest
// settlement date when settled, submission date otherwise.
func ClaimMonth(p rollupdomain.ClaimPayment) time.Time {
	if p.LastSettledAt != nil {
		return MonthBucket(*p.LastSettledAt)
	}
	return MonthBucket(p.SubmittedAt)
}

// Rate returns num/den as a percentage rounded to two decimals, and 0
// when the denominator is zero.
func Rate(num, den decimal.Decimal) decimal.Decimal {
	if den.IsZero() {
		return decimal.Zero
	}
	return num.Div(den).Mul(hundred).Round(2)
}

// ActivityFact is one activity settlement joined with its claim's
// dimensions, the doctor-denial grain.
type ActivityFact struct {
	MonthBucket time.Time
	FacilityID  string
	Clinician   string
	Submitted   decimal.Decimal
	Paid        decimal.Decimal
	Denied      decimal.Decimal
	Rejected    bool
}

type summaryKey struct {
	month         time.Time
	facility      string
	payer         string
	encounterType string
}

// BuildClaimSummary groups claim payments into the monthly summary
// grain. The input is already one row per claim, so a claim with many
// remittance batches in one month contributes its amounts exactly
// once.
func BuildClaimSummary(payments []rollupdomain.ClaimPayment, refreshedAt time.Time) []ClaimSummaryRow {
	groups := make(map[summaryKey]*ClaimSummaryRow)
	for _, p := range payments {
		key := summaryKey{ClaimMonth(p), p.FacilityID, p.PayerID, p.EncounterType}
		row, ok := groups[key]
		if !ok {
			row = &ClaimSummaryRow{
				MonthBucket:     key.month,
				FacilityID:      key.facility,
				PayerID:         key.payer,
				EncounterType:   key.encounterType,
				ClaimAmount:     decimal.Zero,
				PaidAmount:      decimal.Zero,
				RejectedAmount:  decimal.Zero,
				PendingAmount:   decimal.Zero,
				TakenBackAmount: decimal.Zero,
				RefreshedAt:     refreshedAt,
			}
			groups[key] = row
		}
		row.ClaimCount++
		row.ResubmissionCount += p.ResubmissionCount
		row.ClaimAmount = row.ClaimAmount.Add(p.TotalSubmitted)
		row.PaidAmount = row.PaidAmount.Add(p.TotalPaid)
		row.RejectedAmount = row.RejectedAmount.Add(p.TotalRejected)
		row.PendingAmount = row.PendingAmount.Add(p.PendingAmount)
		row.TakenBackAmount = row.TakenBackAmount.Add(p.TotalTakenBack)
	}

	rows := make([]ClaimSummaryRow, 0, len(groups))
	for _, row := range groups {
		row.CollectionRate = Rate(row.PaidAmount, row.ClaimAmount)
		row.RejectionRate = Rate(row.RejectedAmount, row.ClaimAmount)
		rows = append(rows, *row)
	}
	sort.Slice(rows, func(i, j int) bool { return lessSummary(rows[i], rows[j]) })
	return rows
}

func lessSummary(a, b ClaimSummaryRow) bool {
	if !a.MonthBucket.Equal(b.MonthBucket) {
		return a.MonthBucket.Before(b.MonthBucket)
	}
	if a.FacilityID != b.FacilityID {
		return a.FacilityID < b.FacilityID
	}
	if a.PayerID != b.PayerID {
		return a.PayerID < b.PayerID
	}
	return a.EncounterType < b.EncounterType
}

type rejectedKey struct {
	month    time.Time
	facility string
	payer    string
}

// BuildRejectedClaims groups claim payments into the monthly rejection
// grain. A claim counts as rejected when its payment status is
// REJECTED or it carries a rejected amount.
func BuildRejectedClaims(payments []rollupdomain.ClaimPayment, refreshedAt time.Time) []RejectedClaimsRow {
	groups := make(map[rejectedKey]*RejectedClaimsRow)
	for _, p := range payments {
		key := rejectedKey{ClaimMonth(p), p.FacilityID, p.PayerID}
		row, ok := groups[key]
		if !ok {
			row = &RejectedClaimsRow{
				MonthBucket:     key.month,
				FacilityID:      key.facility,
				PayerID:         key.payer,
				SubmittedAmount: decimal.Zero,
				RejectedAmount:  decimal.Zero,
				RefreshedAt:     refreshedAt,
			}
			groups[key] = row
		}
		row.TotalClaims++
		row.ResubmissionCount += p.ResubmissionCount
		row.SubmittedAmount = row.SubmittedAmount.Add(p.TotalSubmitted)
		if p.PaymentStatus == claimsdomain.PaymentRejected || p.TotalRejected.IsPositive() {
			row.RejectedClaims++
			row.RejectedAmount = row.RejectedAmount.Add(p.TotalRejected)
		}
	}

	rows := make([]RejectedClaimsRow, 0, len(groups))
	for _, row := range groups {
		row.RejectionRate = Rate(decimal.NewFromInt(int64(row.RejectedClaims)), decimal.NewFromInt(int64(row.TotalClaims)))
		rows = append(rows, *row)
	}
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if !a.MonthBucket.Equal(b.MonthBucket) {
			return a.MonthBucket.Before(b.MonthBucket)
		}
		if a.FacilityID != b.FacilityID {
			return a.FacilityID < b.FacilityID
		}
		return a.PayerID < b.PayerID
	})
	return rows
}

// AgingBucketFor maps days outstanding onto the fixed aging buckets.
func AgingBucketFor(days int) string {
	switch {
	case days <= 30:
		return "0-30"
	case days <= 60:
		return "31-60"
	case days <= 90:
		return "61-90"
	default:
		return "90+"
	}
}

type agingKey struct {
	month    time.Time
	facility string
	payer    string
	bucket   string
}

// BuildBalanceAging groups claims still carrying an unresolved balance
// by aging bucket. Aging counts from the encounter start date, falling
// back to the submission date when the encounter is missing.
func BuildBalanceAging(payments []rollupdomain.ClaimPayment, asOf, refreshedAt time.Time) []BalanceAgingRow {
	groups := make(map[agingKey]*BalanceAgingRow)
	for _, p := range payments {
		if !p.PendingAmount.IsPositive() {
			continue
		}
		anchor := p.SubmittedAt
		if p.EncounterStartAt != nil {
			anchor = *p.EncounterStartAt
		}
		days := int(asOf.Sub(anchor).Hours() / 24)
		if days < 0 {
			days = 0
		}
		key := agingKey{ClaimMonth(p), p.FacilityID, p.PayerID, AgingBucketFor(days)}
		row, ok := groups[key]
		if !ok {
			row = &BalanceAgingRow{
				MonthBucket:       key.month,
				FacilityID:        key.facility,
				PayerID:           key.payer,
				AgingBucket:       key.bucket,
				SubmittedAmount:   decimal.Zero,
				OutstandingAmount: decimal.Zero,
				RefreshedAt:       refreshedAt,
			}
			groups[key] = row
		}
		row.ClaimCount++
		row.SubmittedAmount = row.SubmittedAmount.Add(p.TotalSubmitted)
		row.OutstandingAmount = row.OutstandingAmount.Add(p.PendingAmount)
	}

	rows := make([]BalanceAgingRow, 0, len(groups))
	for _, row := range groups {
		rows = append(rows, *row)
	}
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if !a.MonthBucket.Equal(b.MonthBucket) {
			return a.MonthBucket.Before(b.MonthBucket)
		}
		if a.FacilityID != b.FacilityID {
			return a.FacilityID < b.FacilityID
		}
		if a.PayerID != b.PayerID {
			return a.PayerID < b.PayerID
		}
		return a.AgingBucket < b.AgingBucket
	})
	return rows
}

type denialKey struct {
	month     time.Time
	facility  string
	clinician string
}

// BuildDoctorDenial groups activity facts into the clinician denial
// grain. Rates are zero-guarded so a clinician with only zero-amount
// activities reports 0, never a division error.
func BuildDoctorDenial(facts []ActivityFact, refreshedAt time.Time) []DoctorDenialRow {
	groups := make(map[denialKey]*DoctorDenialRow)
	for _, f := range facts {
		key := denialKey{MonthBucket(f.MonthBucket), f.FacilityID, f.Clinician}
		row, ok := groups[key]
		if !ok {
			row = &DoctorDenialRow{
				MonthBucket:     key.month,
				FacilityID:      key.facility,
				Clinician:       key.clinician,
				SubmittedAmount: decimal.Zero,
				PaidAmount:      decimal.Zero,
				DeniedAmount:    decimal.Zero,
				RefreshedAt:     refreshedAt,
			}
			groups[key] = row
		}
		row.TotalActivities++
		if f.Rejected {
			row.DeniedActivities++
		}
		row.SubmittedAmount = row.SubmittedAmount.Add(f.Submitted)
		row.PaidAmount = row.PaidAmount.Add(f.Paid)
		row.DeniedAmount = row.DeniedAmount.Add(f.Denied)
	}

	rows := make([]DoctorDenialRow, 0, len(groups))
	for _, row := range groups {
		row.DenialRate = Rate(decimal.NewFromInt(int64(row.DeniedActivities)), decimal.NewFromInt(int64(row.TotalActivities)))
		row.CollectionRate = Rate(row.PaidAmount, row.SubmittedAmount)
		rows = append(rows, *row)
	}
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if !a.MonthBucket.Equal(b.MonthBucket) {
			return a.MonthBucket.Before(b.MonthBucket)
		}
		if a.FacilityID != b.FacilityID {
			return a.FacilityID < b.FacilityID
		}
		return a.Clinician < b.Clinician
	})
	return rows
}
