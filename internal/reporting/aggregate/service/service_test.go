package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	claimsdomain "github.com/acmehealth/claimsight/internal/claims/domain"
	claimsrepo "github.com/acmehealth/claimsight/internal/claims/repository"
	"github.com/acmehealth/claimsight/internal/clock"
	"github.com/acmehealth/claimsight/internal/reporting/aggregate/domain"
	rollupdomain "github.com/acmehealth/claimsight/internal/rollup/domain"
	rollupservice "github.com/acmehealth/claimsight/internal/rollup/service"
	settlementdomain "github.com/acmehealth/claimsight/internal/settlement/domain"
	settlementservice "github.com/acmehealth/claimsight/internal/settlement/service"
	"github.com/acmehealth/claimsight/pkg/db"
)

type env struct {
	db    *gorm.DB
	node  *snowflake.Node
	clock *clock.FakeClock
	svc   domain.Service
}

func setupEnv(t *testing.T) *env {
	t.Helper()

	dbConn, err := db.NewTest()
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	err = dbConn.AutoMigrate(
		&claimsdomain.ClaimKey{},
		&claimsdomain.Claim{},
		&claimsdomain.Encounter{},
		&claimsdomain.Activity{},
		&claimsdomain.ClaimEvent{},
		&claimsdomain.ClaimResubmission{},
		&claimsdomain.ClaimStatusTimeline{},
		&claimsdomain.Remittance{},
		&claimsdomain.RemittanceClaim{},
		&claimsdomain.RemittanceActivity{},
		&settlementdomain.ActivitySettlement{},
		&rollupdomain.ClaimPayment{},
		&domain.ClaimSummaryRow{},
		&domain.RejectedClaimsRow{},
		&domain.BalanceAgingRow{},
		&domain.DoctorDenialRow{},
		&domain.RefreshRun{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}

	claims := claimsrepo.New(claimsrepo.Params{DB: dbConn, Log: zap.NewNop()})
	settlements := settlementservice.NewService(settlementservice.Params{
		DB: dbConn, Log: zap.NewNop(), GenID: node, Claims: claims,
	})
	rollups := rollupservice.NewService(rollupservice.Params{
		DB: dbConn, Log: zap.NewNop(), GenID: node,
		Claims: claims, Settlements: settlements,
	})
	fake := clock.NewFakeClock(mustDate(t, "2024-04-15"))
	svc := NewService(Params{
		DB: dbConn, Log: zap.NewNop(), GenID: node, Clock: fake,
		Claims: claims, Settlements: settlements, Rollups: rollups,
	})

	return &env{db: dbConn, node: node, clock: fake, svc: svc}
}

func mustDate(t *testing.T, v string) time.Time {
	t.Helper()
	parsed, err := time.Parse("2006-01-02", v)
	if err != nil {
		t.Fatalf("parse date %q: %v", v, err)
	}
	return parsed
}

func mustDec(t *testing.T, v string) decimal.Decimal {
	t.Helper()
	return decimal.RequireFromString(v)
}

// seedClaim creates one claim with a single activity and the given
// remittance batches as (settlementDate, payment, denialCode) triples.
func (e *env) seedClaim(t *testing.T, externalID, facility, payer, clinician string, net string, submitted string, batches [][3]string) snowflake.ID {
	t.Helper()

	key := claimsdomain.ClaimKey{ID: e.node.Generate(), ClaimID: externalID}
	if err := e.db.Create(&key).Error; err != nil {
		t.Fatalf("seed key: %v", err)
	}
	claim := claimsdomain.Claim{
		ID:         e.node.Generate(),
		ClaimKeyID: key.ID,
		PayerID:    payer,
		Net:        mustDec(t, net),
		TxAt:       mustDate(t, submitted),
	}
	if err := e.db.Create(&claim).Error; err != nil {
		t.Fatalf("seed claim: %v", err)
	}
	encStart := mustDate(t, submitted)
	encounter := claimsdomain.Encounter{
		ID: e.node.Generate(), ClaimID: claim.ID,
		FacilityID: facility, Type: "1", StartAt: &encStart,
	}
	if err := e.db.Create(&encounter).Error; err != nil {
		t.Fatalf("seed encounter: %v", err)
	}
	activity := claimsdomain.Activity{
		ID: e.node.Generate(), ClaimID: claim.ID, ClaimKeyID: key.ID,
		ActivityID: "1", Net: mustDec(t, net), Clinician: clinician,
	}
	if err := e.db.Create(&activity).Error; err != nil {
		t.Fatalf("seed activity: %v", err)
	}
	event := claimsdomain.ClaimEvent{
		ID: e.node.Generate(), ClaimKeyID: key.ID,
		Type: claimsdomain.EventSubmission, EventTime: mustDate(t, submitted),
	}
	if err := e.db.Create(&event).Error; err != nil {
		t.Fatalf("seed event: %v", err)
	}

	for _, batch := range batches {
		e.addRemittance(t, key.ID, facility, batch[0], batch[1], batch[2])
	}
	return key.ID
}

func (e *env) addRemittance(t *testing.T, keyID snowflake.ID, facility, settled, payment, denial string) {
	t.Helper()

	rem := claimsdomain.Remittance{ID: e.node.Generate(), TxAt: mustDate(t, settled)}
	if err := e.db.Create(&rem).Error; err != nil {
		t.Fatalf("seed remittance: %v", err)
	}
	settledAt := mustDate(t, settled)
	section := claimsdomain.RemittanceClaim{
		ID: e.node.Generate(), RemittanceID: rem.ID, ClaimKeyID: keyID,
		FacilityID: facility, DateSettlement: &settledAt, DenialCode: denial,
	}
	if err := e.db.Create(&section).Error; err != nil {
		t.Fatalf("seed remittance claim: %v", err)
	}
	line := claimsdomain.RemittanceActivity{
		ID: e.node.Generate(), RemittanceClaimID: section.ID,
		ActivityID: "1", PaymentAmount: mustDec(t, payment), DenialCode: denial,
	}
	if err := e.db.Create(&line).Error; err != nil {
		t.Fatalf("seed remittance line: %v", err)
	}
}

func TestRefreshRangeRejectsInvalidRange(t *testing.T) {
	e := setupEnv(t)
	err := e.svc.RefreshRange(context.Background(), mustDate(t, "2024-03-01"), mustDate(t, "2024-01-01"))

	var refreshErr *domain.RefreshError
	if !errors.As(err, &refreshErr) {
		t.Fatalf("expected RefreshError, got %v", err)
	}
}

func TestRefreshRangeMonthDedup(t *testing.T) {
	e := setupEnv(t)
	// Three partial payments landing in the same month: the claim's
	// net must count once, not three times.
	e.seedClaim(t, "CLM-1", "FAC-1", "PAYER-A", "DOC-1", "300", "2024-01-05", [][3]string{
		{"2024-02-03", "100", ""},
		{"2024-02-12", "100", ""},
		{"2024-02-25", "100", ""},
	})

	if err := e.svc.RefreshRange(context.Background(), mustDate(t, "2024-01-01"), mustDate(t, "2024-03-31")); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	var rows []domain.ClaimSummaryRow
	if err := e.db.Find(&rows).Error; err != nil {
		t.Fatalf("load summary: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected one summary row, got %d", len(rows))
	}
	row := rows[0]
	if !row.MonthBucket.Equal(mustDate(t, "2024-02-01")) {
		t.Fatalf("expected February bucket, got %s", row.MonthBucket)
	}
	if row.ClaimCount != 1 {
		t.Fatalf("expected claim counted once, got %d", row.ClaimCount)
	}
	if !row.ClaimAmount.Equal(mustDec(t, "300")) {
		t.Fatalf("expected amount 300 (no fan-out), got %s", row.ClaimAmount)
	}
	if !row.PaidAmount.Equal(mustDec(t, "300")) {
		t.Fatalf("expected paid 300, got %s", row.PaidAmount)
	}
}

func TestRefreshRangeIsIdempotent(t *testing.T) {
	e := setupEnv(t)
	e.seedClaim(t, "CLM-1", "FAC-1", "PAYER-A", "DOC-1", "100", "2024-01-05", [][3]string{
		{"2024-02-03", "100", ""},
	})
	e.seedClaim(t, "CLM-2", "FAC-1", "PAYER-A", "DOC-2", "80", "2024-01-06", [][3]string{
		{"2024-02-04", "0", "CO-97"},
	})
	ctx := context.Background()
	from, to := mustDate(t, "2024-01-01"), mustDate(t, "2024-03-31")

	if err := e.svc.RefreshRange(ctx, from, to); err != nil {
		t.Fatalf("first refresh: %v", err)
	}
	first := loadSummaries(t, e.db)

	if err := e.svc.RefreshRange(ctx, from, to); err != nil {
		t.Fatalf("second refresh: %v", err)
	}
	second := loadSummaries(t, e.db)

	if len(first) != len(second) {
		t.Fatalf("row count changed across refreshes: %d vs %d", len(first), len(second))
	}
	for i := range first {
		a, b := first[i], second[i]
		if !a.MonthBucket.Equal(b.MonthBucket) || a.FacilityID != b.FacilityID ||
			a.PayerID != b.PayerID || a.ClaimCount != b.ClaimCount ||
			!a.ClaimAmount.Equal(b.ClaimAmount) || !a.PaidAmount.Equal(b.PaidAmount) ||
			!a.RejectedAmount.Equal(b.RejectedAmount) || !a.CollectionRate.Equal(b.CollectionRate) {
			t.Fatalf("row %d differs across refreshes:\n%+v\n%+v", i, a, b)
		}
	}
}

func loadSummaries(t *testing.T, dbConn *gorm.DB) []domain.ClaimSummaryRow {
	t.Helper()
	var rows []domain.ClaimSummaryRow
	if err := dbConn.Order("month_bucket, facility_id, payer_id, encounter_type").Find(&rows).Error; err != nil {
		t.Fatalf("load summaries: %v", err)
	}
	return rows
}

func TestRefreshThenLiveParity(t *testing.T) {
	e := setupEnv(t)
	e.seedClaim(t, "CLM-1", "FAC-1", "PAYER-A", "DOC-1", "100", "2024-01-05", [][3]string{
		{"2024-02-03", "60", ""},
	})
	e.seedClaim(t, "CLM-2", "FAC-2", "PAYER-B", "DOC-2", "50", "2024-01-08", [][3]string{
		{"2024-02-10", "0", "AUTH-1"},
	})
	ctx := context.Background()

	if err := e.svc.RefreshRange(ctx, mustDate(t, "2024-01-01"), mustDate(t, "2024-03-31")); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	var persisted []domain.ClaimSummaryRow
	err := e.db.
		Where("month_bucket = ?", mustDate(t, "2024-02-01")).
		Order("facility_id, payer_id").
		Find(&persisted).Error
	if err != nil {
		t.Fatalf("load persisted: %v", err)
	}

	live, err := e.svc.LiveClaimSummary(ctx, mustDate(t, "2024-02-01"), mustDate(t, "2024-02-29"))
	if err != nil {
		t.Fatalf("live summary: %v", err)
	}

	if len(persisted) != len(live) {
		t.Fatalf("aggregate/live row counts differ: %d vs %d", len(persisted), len(live))
	}
	for i := range persisted {
		p, l := persisted[i], live[i]
		if p.FacilityID != l.FacilityID || p.ClaimCount != l.ClaimCount ||
			!p.ClaimAmount.Equal(l.ClaimAmount) || !p.PaidAmount.Equal(l.PaidAmount) ||
			!p.RejectedAmount.Equal(l.RejectedAmount) {
			t.Fatalf("row %d diverges between store and live:\n%+v\n%+v", i, p, l)
		}
	}
}

func TestLiveModeSeesUnrefreshedRemittances(t *testing.T) {
	e := setupEnv(t)
	key := e.seedClaim(t, "CLM-1", "FAC-1", "PAYER-A", "DOC-1", "100", "2024-01-05", [][3]string{
		{"2024-02-03", "60", ""},
	})
	ctx := context.Background()

	if err := e.svc.RefreshRange(ctx, mustDate(t, "2024-01-01"), mustDate(t, "2024-03-31")); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	// A second payment lands after the refresh.
	e.addRemittance(t, key, "FAC-1", "2024-02-20", "40", "")

	live, err := e.svc.LiveClaimSummary(ctx, mustDate(t, "2024-02-01"), mustDate(t, "2024-02-29"))
	if err != nil {
		t.Fatalf("live summary: %v", err)
	}
	if len(live) != 1 {
		t.Fatalf("expected one live row, got %d", len(live))
	}
	if !live[0].PaidAmount.Equal(mustDec(t, "100")) {
		t.Fatalf("expected live paid 100 including the new remittance, got %s", live[0].PaidAmount)
	}

	var persisted []domain.ClaimSummaryRow
	if err := e.db.Find(&persisted).Error; err != nil {
		t.Fatalf("load persisted: %v", err)
	}
	if len(persisted) != 1 || !persisted[0].PaidAmount.Equal(mustDec(t, "60")) {
		t.Fatalf("persisted rows must stay at the last refresh: %+v", persisted)
	}

	// A denial ingested after the refresh shows up in the live doctor
	// report too.
	e.seedClaim(t, "CLM-2", "FAC-1", "PAYER-A", "DOC-2", "80", "2024-01-06", [][3]string{
		{"2024-02-25", "0", "CO-97"},
	})
	denials, err := e.svc.LiveDoctorDenial(ctx, mustDate(t, "2024-02-01"), mustDate(t, "2024-02-29"))
	if err != nil {
		t.Fatalf("live doctor denial: %v", err)
	}
	found := false
	for _, row := range denials {
		if row.Clinician == "DOC-2" {
			found = true
			if row.DeniedActivities != 1 {
				t.Fatalf("expected 1 denied activity for DOC-2, got %d", row.DeniedActivities)
			}
		}
	}
	if !found {
		t.Fatal("live doctor denial is missing the unrefreshed denial")
	}
}

func TestRefreshRecordsRunsPerTable(t *testing.T) {
	e := setupEnv(t)
	if err := e.svc.RefreshRange(context.Background(), mustDate(t, "2024-01-01"), mustDate(t, "2024-01-31")); err != nil {
		t.Fatalf("refresh empty range: %v", err)
	}

	runs, err := e.svc.LastRuns(context.Background())
	if err != nil {
		t.Fatalf("last runs: %v", err)
	}
	if len(runs) != 4 {
		t.Fatalf("expected one run per report table, got %d", len(runs))
	}
	for _, run := range runs {
		if run.Status != domain.RunStatusSucceeded {
			t.Fatalf("table %s: expected SUCCEEDED, got %s (%s)", run.Table, run.Status, run.Error)
		}
		if run.RowCount != 0 {
			t.Fatalf("table %s: expected empty bucket to write 0 rows, got %d", run.Table, run.RowCount)
		}
		if run.EndedAt == nil {
			t.Fatalf("table %s: missing ended_at", run.Table)
		}
		if !run.StartedAt.Equal(e.clock.Now()) {
			t.Fatalf("table %s: started_at must come from the injected clock, got %s", run.Table, run.StartedAt)
		}
		if !run.EndedAt.Equal(e.clock.Now()) {
			t.Fatalf("table %s: ended_at must come from the injected clock, got %s", run.Table, run.EndedAt)
		}
	}
}

func TestRefreshRangeDoctorDenial(t *testing.T) {
	e := setupEnv(t)
	e.seedClaim(t, "CLM-1", "FAC-1", "PAYER-A", "DOC-9", "100", "2024-01-05", [][3]string{
		{"2024-02-03", "0", "MNEC-4"},
	})
	ctx := context.Background()

	if err := e.svc.RefreshRange(ctx, mustDate(t, "2024-02-01"), mustDate(t, "2024-02-28")); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	var rows []domain.DoctorDenialRow
	if err := e.db.Find(&rows).Error; err != nil {
		t.Fatalf("load doctor denial: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	row := rows[0]
	if row.Clinician != "DOC-9" || row.DeniedActivities != 1 {
		t.Fatalf("unexpected row: %+v", row)
	}
	if !row.DenialRate.Equal(mustDec(t, "100")) {
		t.Fatalf("expected denial rate 100, got %s", row.DenialRate)
	}
}
