package domain

import (
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"

	claimsdomain "github.com/acmehealth/claimsight/internal/claims/domain"
)

func day(t *testing.T, value string) time.Time {
	t.Helper()
	ts, err := time.Parse("2006-01-02", value)
	if err != nil {
		t.Fatalf("parse date %q: %v", value, err)
	}
	return ts
}

func line(id, batch int64, payment string, denial string, settled time.Time) claimsdomain.RemittanceLine {
	d := settled
	return claimsdomain.RemittanceLine{
		LineID:         snowflake.ID(id),
		RemittanceID:   snowflake.ID(batch),
		PaymentAmount:  decimal.RequireFromString(payment),
		DenialCode:     denial,
		SettlementDate: &d,
		BatchTxAt:      settled,
	}
}

func TestCalculateDenyThenFullPayment(t *testing.T) {
	lines := []claimsdomain.RemittanceLine{
		line(1, 10, "0", "CO-1", day(t, "2024-01-01")),
		line(2, 11, "100", "", day(t, "2024-02-01")),
	}
	out := Calculate(decimal.RequireFromString("100"), lines)

	if !out.PaidAmount.Equal(decimal.RequireFromString("100")) {
		t.Fatalf("expected paid 100, got %s", out.PaidAmount)
	}
	if !out.DeniedAmount.IsZero() {
		t.Fatalf("expected denied 0, got %s", out.DeniedAmount)
	}
	if out.ActivityStatus != claimsdomain.ActivityFullyPaid {
		t.Fatalf("expected FULLY_PAID, got %s", out.ActivityStatus)
	}
	if out.RemittanceCount != 2 {
		t.Fatalf("expected remittance_count 2, got %d", out.RemittanceCount)
	}
	if len(out.DenialCodes) != 1 || out.DenialCodes[0] != "CO-1" {
		t.Fatalf("expected denial codes [CO-1], got %v", out.DenialCodes)
	}
}

func TestCalculateTwoPartialPayments(t *testing.T) {
	lines := []claimsdomain.RemittanceLine{
		line(1, 10, "50", "", day(t, "2024-01-01")),
		line(2, 11, "50", "", day(t, "2024-01-15")),
	}
	out := Calculate(decimal.RequireFromString("200"), lines)

	if !out.PaidAmount.Equal(decimal.RequireFromString("100")) {
		t.Fatalf("expected paid 100, got %s", out.PaidAmount)
	}
	if out.ActivityStatus != claimsdomain.ActivityPartiallyPaid {
		t.Fatalf("expected PARTIALLY_PAID, got %s", out.ActivityStatus)
	}
}

func TestCalculateCapsAtSubmitted(t *testing.T) {
	// N batches each paying submitted/N must land exactly on submitted.
	submitted := decimal.RequireFromString("300")
	var lines []claimsdomain.RemittanceLine
	for i := int64(0); i < 3; i++ {
		lines = append(lines, line(i+1, i+10, "100", "", day(t, "2024-01-01").AddDate(0, 0, int(i))))
	}
	// One anomalous duplicate payment on top.
	lines = append(lines, line(9, 19, "100", "", day(t, "2024-02-01")))

	out := Calculate(submitted, lines)
	if !out.PaidAmount.Equal(submitted) {
		t.Fatalf("expected paid capped at %s, got %s", submitted, out.PaidAmount)
	}
	if out.ActivityStatus != claimsdomain.ActivityFullyPaid {
		t.Fatalf("expected FULLY_PAID, got %s", out.ActivityStatus)
	}
	if out.RemittanceCount != 4 {
		t.Fatalf("expected remittance_count 4, got %d", out.RemittanceCount)
	}
}

func TestCalculateLatestDenialRejects(t *testing.T) {
	lines := []claimsdomain.RemittanceLine{
		line(1, 10, "0", "MNEC-4", day(t, "2024-03-01")),
	}
	out := Calculate(decimal.RequireFromString("80"), lines)

	if !out.DeniedAmount.Equal(decimal.RequireFromString("80")) {
		t.Fatalf("expected denied 80, got %s", out.DeniedAmount)
	}
	if out.ActivityStatus != claimsdomain.ActivityRejected {
		t.Fatalf("expected REJECTED, got %s", out.ActivityStatus)
	}
}

func TestCalculatePartialThenDenialOfRemainder(t *testing.T) {
	lines := []claimsdomain.RemittanceLine{
		line(1, 10, "60", "", day(t, "2024-01-05")),
		line(2, 11, "0", "PRCE-1", day(t, "2024-02-05")),
	}
	out := Calculate(decimal.RequireFromString("100"), lines)

	if !out.PaidAmount.Equal(decimal.RequireFromString("60")) {
		t.Fatalf("expected paid 60, got %s", out.PaidAmount)
	}
	if !out.DeniedAmount.Equal(decimal.RequireFromString("40")) {
		t.Fatalf("expected denied 40, got %s", out.DeniedAmount)
	}
	if out.ActivityStatus != claimsdomain.ActivityPartiallyPaid {
		t.Fatalf("expected PARTIALLY_PAID, got %s", out.ActivityStatus)
	}
}

func TestCalculateNoLinesIsPending(t *testing.T) {
	out := Calculate(decimal.RequireFromString("100"), nil)

	if !out.PaidAmount.IsZero() || !out.DeniedAmount.IsZero() {
		t.Fatalf("expected zero amounts, got paid=%s denied=%s", out.PaidAmount, out.DeniedAmount)
	}
	if out.ActivityStatus != claimsdomain.ActivityPending {
		t.Fatalf("expected PENDING, got %s", out.ActivityStatus)
	}
	if out.LastSettledAt != nil {
		t.Fatalf("expected no settlement date, got %v", out.LastSettledAt)
	}
}

func TestCalculateZeroSubmittedStaysSane(t *testing.T) {
	lines := []claimsdomain.RemittanceLine{
		line(1, 10, "25", "", day(t, "2024-01-01")),
	}
	out := Calculate(decimal.Zero, lines)

	if !out.PaidAmount.IsZero() {
		t.Fatalf("expected paid clamped to 0, got %s", out.PaidAmount)
	}
	if out.PaidAmount.IsNegative() || out.DeniedAmount.IsNegative() {
		t.Fatalf("amounts must never go negative: paid=%s denied=%s", out.PaidAmount, out.DeniedAmount)
	}
}

func TestCalculateTakebackOverlay(t *testing.T) {
	fullClawback := []claimsdomain.RemittanceLine{
		line(1, 10, "100", "", day(t, "2024-01-01")),
		line(2, 11, "-100", "", day(t, "2024-02-01")),
	}
	out := Calculate(decimal.RequireFromString("100"), fullClawback)
	if !out.TakenBackAmount.Equal(decimal.RequireFromString("100")) {
		t.Fatalf("expected taken back 100, got %s", out.TakenBackAmount)
	}
	if out.ActivityStatus != claimsdomain.ActivityTakenBack {
		t.Fatalf("expected TAKEN_BACK, got %s", out.ActivityStatus)
	}

	partial := []claimsdomain.RemittanceLine{
		line(1, 10, "100", "", day(t, "2024-01-01")),
		line(2, 11, "-40", "", day(t, "2024-02-01")),
	}
	out = Calculate(decimal.RequireFromString("100"), partial)
	if !out.TakenBackAmount.Equal(decimal.RequireFromString("40")) {
		t.Fatalf("expected taken back 40, got %s", out.TakenBackAmount)
	}
	if out.ActivityStatus != claimsdomain.ActivityPartiallyTakenBack {
		t.Fatalf("expected PARTIALLY_TAKEN_BACK, got %s", out.ActivityStatus)
	}
	// Takebacks never reduce the capped paid amount itself.
	if !out.PaidAmount.Equal(decimal.RequireFromString("100")) {
		t.Fatalf("expected paid 100, got %s", out.PaidAmount)
	}
}

func TestCalculateSameDateTieBreaksByRowID(t *testing.T) {
	settled := day(t, "2024-04-01")
	// Same settlement date: the highest row id is the latest line, so
	// the denial on row 2 wins over the payment on row 1.
	lines := []claimsdomain.RemittanceLine{
		line(2, 11, "0", "AUTH-1", settled),
		line(1, 10, "0", "", settled),
	}
	out := Calculate(decimal.RequireFromString("100"), lines)
	if out.ActivityStatus != claimsdomain.ActivityRejected {
		t.Fatalf("expected REJECTED from latest row, got %s", out.ActivityStatus)
	}

	// Reversed insertion order must produce the identical outcome.
	reversed := []claimsdomain.RemittanceLine{lines[1], lines[0]}
	again := Calculate(decimal.RequireFromString("100"), reversed)
	if again.ActivityStatus != out.ActivityStatus || !again.DeniedAmount.Equal(out.DeniedAmount) {
		t.Fatalf("tie-break not deterministic: %s/%s vs %s/%s",
			out.ActivityStatus, out.DeniedAmount, again.ActivityStatus, again.DeniedAmount)
	}
}
