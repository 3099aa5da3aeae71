package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	claimsdomain "github.com/acmehealth/claimsight/internal/claims/domain"
	rollupdomain "github.com/acmehealth/claimsight/internal/rollup/domain"
)

func dec(t *testing.T, v string) decimal.Decimal {
	t.Helper()
	return decimal.RequireFromString(v)
}

func date(t *testing.T, v string) time.Time {
	t.Helper()
	parsed, err := time.Parse("2006-01-02", v)
	if err != nil {
		t.Fatalf("parse date %q: %v", v, err)
	}
	return parsed
}

func TestMonthBucketsSpansInclusive(t *testing.T) {
	buckets := MonthBuckets(date(t, "2024-01-15"), date(t, "2024-03-31"))
	if len(buckets) != 3 {
		t.Fatalf("expected 3 buckets, got %d", len(buckets))
	}
	if !buckets[0].Equal(date(t, "2024-01-01")) || !buckets[2].Equal(date(t, "2024-03-01")) {
		t.Fatalf("unexpected buckets: %v", buckets)
	}
}

func TestRateZeroGuard(t *testing.T) {
	if got := Rate(dec(t, "50"), decimal.Zero); !got.IsZero() {
		t.Fatalf("expected 0 for zero denominator, got %s", got)
	}
	if got := Rate(dec(t, "50"), dec(t, "200")); !got.Equal(dec(t, "25")) {
		t.Fatalf("expected 25, got %s", got)
	}
}

func TestAgingBucketThresholds(t *testing.T) {
	cases := map[int]string{0: "0-30", 30: "0-30", 31: "31-60", 60: "31-60", 61: "61-90", 90: "61-90", 91: "90+", 400: "90+"}
	for days, want := range cases {
		if got := AgingBucketFor(days); got != want {
			t.Fatalf("days %d: expected %s, got %s", days, want, got)
		}
	}
}

func payment(t *testing.T, facility, payer string, settled string, submitted, paid, rejected, pending string) rollupdomain.ClaimPayment {
	t.Helper()
	p := rollupdomain.ClaimPayment{
		FacilityID:     facility,
		PayerID:        payer,
		EncounterType:  "1",
		TotalSubmitted: dec(t, submitted),
		TotalPaid:      dec(t, paid),
		TotalRejected:  dec(t, rejected),
		TotalTakenBack: decimal.Zero,
		PendingAmount:  dec(t, pending),
		SubmittedAt:    date(t, "2024-01-02"),
	}
	if settled != "" {
		at := date(t, settled)
		p.LastSettledAt = &at
	}
	switch {
	case p.TotalSubmitted.IsPositive() && p.TotalPaid.GreaterThanOrEqual(p.TotalSubmitted):
		p.PaymentStatus = claimsdomain.PaymentFullyPaid
	case p.TotalPaid.IsPositive():
		p.PaymentStatus = claimsdomain.PaymentPartiallyPaid
	case p.TotalRejected.IsPositive():
		p.PaymentStatus = claimsdomain.PaymentRejected
	default:
		p.PaymentStatus = claimsdomain.PaymentPending
	}
	return p
}

func TestBuildClaimSummaryGroupsAndRates(t *testing.T) {
	payments := []rollupdomain.ClaimPayment{
		payment(t, "FAC-1", "PAYER-A", "2024-02-10", "100", "100", "0", "0"),
		payment(t, "FAC-1", "PAYER-A", "2024-02-20", "100", "50", "50", "0"),
		payment(t, "FAC-2", "PAYER-A", "2024-02-20", "80", "0", "80", "0"),
		payment(t, "FAC-1", "PAYER-A", "2024-03-05", "60", "60", "0", "0"),
	}

	rows := BuildClaimSummary(payments, time.Now())
	if len(rows) != 3 {
		t.Fatalf("expected 3 grouped rows, got %d", len(rows))
	}

	feb := rows[0]
	if !feb.MonthBucket.Equal(date(t, "2024-02-01")) || feb.FacilityID != "FAC-1" {
		t.Fatalf("unexpected first row: %+v", feb)
	}
	if feb.ClaimCount != 2 {
		t.Fatalf("expected 2 claims in Feb FAC-1, got %d", feb.ClaimCount)
	}
	if !feb.ClaimAmount.Equal(dec(t, "200")) || !feb.PaidAmount.Equal(dec(t, "150")) {
		t.Fatalf("unexpected sums: amount=%s paid=%s", feb.ClaimAmount, feb.PaidAmount)
	}
	if !feb.CollectionRate.Equal(dec(t, "75")) {
		t.Fatalf("expected collection rate 75, got %s", feb.CollectionRate)
	}
	if !feb.RejectionRate.Equal(dec(t, "25")) {
		t.Fatalf("expected rejection rate 25, got %s", feb.RejectionRate)
	}
}

func TestBuildClaimSummaryFallsBackToSubmissionMonth(t *testing.T) {
	rows := BuildClaimSummary([]rollupdomain.ClaimPayment{
		payment(t, "FAC-1", "PAYER-A", "", "100", "0", "0", "100"),
	}, time.Now())
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if !rows[0].MonthBucket.Equal(date(t, "2024-01-01")) {
		t.Fatalf("expected January bucket from submission date, got %s", rows[0].MonthBucket)
	}
}

func TestBuildRejectedClaimsCountsAndRate(t *testing.T) {
	payments := []rollupdomain.ClaimPayment{
		payment(t, "FAC-1", "PAYER-A", "2024-02-10", "100", "100", "0", "0"),
		payment(t, "FAC-1", "PAYER-A", "2024-02-15", "50", "0", "50", "0"),
	}
	rows := BuildRejectedClaims(payments, time.Now())
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	row := rows[0]
	if row.TotalClaims != 2 || row.RejectedClaims != 1 {
		t.Fatalf("expected 2 total / 1 rejected, got %d/%d", row.TotalClaims, row.RejectedClaims)
	}
	if !row.RejectionRate.Equal(dec(t, "50")) {
		t.Fatalf("expected rejection rate 50, got %s", row.RejectionRate)
	}
}

func TestBuildBalanceAgingSkipsSettledClaims(t *testing.T) {
	encStart := date(t, "2024-01-01")
	pending := payment(t, "FAC-1", "PAYER-A", "", "100", "0", "0", "100")
	pending.EncounterStartAt = &encStart
	settled := payment(t, "FAC-1", "PAYER-A", "2024-02-01", "100", "100", "0", "0")

	rows := BuildBalanceAging([]rollupdomain.ClaimPayment{pending, settled},
		date(t, "2024-02-15"), time.Now())
	if len(rows) != 1 {
		t.Fatalf("expected only the unresolved claim, got %d rows", len(rows))
	}
	row := rows[0]
	if row.AgingBucket != "31-60" {
		t.Fatalf("expected bucket 31-60 at 45 days, got %s", row.AgingBucket)
	}
	if !row.OutstandingAmount.Equal(dec(t, "100")) {
		t.Fatalf("expected outstanding 100, got %s", row.OutstandingAmount)
	}
}

func TestBuildDoctorDenialZeroGuard(t *testing.T) {
	facts := []ActivityFact{
		{MonthBucket: date(t, "2024-02-01"), FacilityID: "FAC-1", Clinician: "DOC-1",
			Submitted: decimal.Zero, Paid: decimal.Zero, Denied: decimal.Zero},
	}
	rows := BuildDoctorDenial(facts, time.Now())
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if !rows[0].CollectionRate.IsZero() || !rows[0].DenialRate.IsZero() {
		t.Fatalf("expected zero-guarded rates, got collection=%s denial=%s",
			rows[0].CollectionRate, rows[0].DenialRate)
	}
}

func TestBuildDoctorDenialRates(t *testing.T) {
	facts := []ActivityFact{
		{MonthBucket: date(t, "2024-02-05"), FacilityID: "FAC-1", Clinician: "DOC-1",
			Submitted: dec(t, "100"), Paid: dec(t, "100")},
		{MonthBucket: date(t, "2024-02-07"), FacilityID: "FAC-1", Clinician: "DOC-1",
			Submitted: dec(t, "100"), Denied: dec(t, "100"), Rejected: true},
	}
	rows := BuildDoctorDenial(facts, time.Now())
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	row := rows[0]
	if row.TotalActivities != 2 || row.DeniedActivities != 1 {
		t.Fatalf("expected 2 total / 1 denied, got %d/%d", row.TotalActivities, row.DeniedActivities)
	}
	if !row.DenialRate.Equal(dec(t, "50")) || !row.CollectionRate.Equal(dec(t, "50")) {
		t.Fatalf("expected 50/50 rates, got denial=%s collection=%s", row.DenialRate, row.CollectionRate)
	}
}
