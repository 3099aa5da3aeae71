package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	claimsdomain "github.com/acmehealth/claimsight/internal/claims/domain"
	claimsrepo "github.com/acmehealth/claimsight/internal/claims/repository"
	ingestdomain "github.com/acmehealth/claimsight/internal/ingest/domain"
	"github.com/acmehealth/claimsight/pkg/db"
)

func setupIngest(t *testing.T) (ingestdomain.Service, claimsdomain.Repository, *gorm.DB) {
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
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	svc := NewService(Params{DB: dbConn, Log: zap.NewNop(), GenID: node})
	repo := claimsrepo.New(claimsrepo.Params{DB: dbConn, Log: zap.NewNop()})
	return svc, repo, dbConn
}

func when(t *testing.T, v string) time.Time {
	t.Helper()
	parsed, err := time.Parse("2006-01-02", v)
	if err != nil {
		t.Fatalf("parse time %q: %v", v, err)
	}
	return parsed
}

func submission(t *testing.T, claimID string, at string) ingestdomain.Submission {
	t.Helper()
	return ingestdomain.Submission{
		ClaimID: claimID,
		PayerID: "PAYER-A",
		Net:     decimal.RequireFromString("150"),
		TxAt:    when(t, at),
		Encounter: ingestdomain.Encounter{
			FacilityID: "FAC-1",
			Type:       "1",
		},
		Activities: []ingestdomain.Activity{
			{ActivityID: "1", Net: decimal.RequireFromString("100"), Clinician: "DOC-1"},
			{ActivityID: "2", Net: decimal.RequireFromString("50"), Clinician: "DOC-2"},
		},
	}
}

func TestPersistSubmissionWritesGraph(t *testing.T) {
	svc, repo, _ := setupIngest(t)
	ctx := context.Background()

	keyID, err := svc.PersistSubmission(ctx, submission(t, "CLM-1", "2024-01-02"))
	if err != nil {
		t.Fatalf("persist submission: %v", err)
	}

	header, err := repo.Header(ctx, keyID)
	if err != nil {
		t.Fatalf("header: %v", err)
	}
	if header.ClaimKey.ClaimID != "CLM-1" || header.Encounter.FacilityID != "FAC-1" {
		t.Fatalf("unexpected header: %+v", header)
	}

	activities, err := repo.Activities(ctx, keyID)
	if err != nil {
		t.Fatalf("activities: %v", err)
	}
	if len(activities) != 2 {
		t.Fatalf("expected 2 activities, got %d", len(activities))
	}

	status, err := repo.CurrentStatus(ctx, keyID)
	if err != nil {
		t.Fatalf("current status: %v", err)
	}
	if status != claimsdomain.StatusSubmitted {
		t.Fatalf("expected SUBMITTED, got %s", status)
	}
}

func TestPersistSubmissionValidation(t *testing.T) {
	svc, _, _ := setupIngest(t)
	ctx := context.Background()

	in := submission(t, "", "2024-01-02")
	if _, err := svc.PersistSubmission(ctx, in); err != ingestdomain.ErrMissingClaimID {
		t.Fatalf("expected ErrMissingClaimID, got %v", err)
	}

	in = submission(t, "CLM-1", "2024-01-02")
	in.Activities = nil
	if _, err := svc.PersistSubmission(ctx, in); err != ingestdomain.ErrMissingActivity {
		t.Fatalf("expected ErrMissingActivity, got %v", err)
	}
}

func TestResubmissionReusesClaimKey(t *testing.T) {
	svc, repo, _ := setupIngest(t)
	ctx := context.Background()

	first, err := svc.PersistSubmission(ctx, submission(t, "CLM-1", "2024-01-02"))
	if err != nil {
		t.Fatalf("persist submission: %v", err)
	}

	resub := submission(t, "CLM-1", "2024-02-15")
	resub.Resubmission = &ingestdomain.Resubmission{Type: "correction", Comment: "fixed code"}
	second, err := svc.PersistSubmission(ctx, resub)
	if err != nil {
		t.Fatalf("persist resubmission: %v", err)
	}
	if first != second {
		t.Fatalf("resubmission must anchor to the same claim key: %s vs %s", first, second)
	}

	events, err := repo.Events(ctx, first)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	last := events[len(events)-1]
	if last.Event.Type != claimsdomain.EventResubmission {
		t.Fatalf("expected RESUBMISSION event, got %s", last.Event.Type)
	}
	if last.Resubmission == nil || last.Resubmission.Comment != "fixed code" {
		t.Fatalf("expected resubmission detail, got %+v", last.Resubmission)
	}

	status, err := repo.CurrentStatus(ctx, first)
	if err != nil {
		t.Fatalf("current status: %v", err)
	}
	if status != claimsdomain.StatusResubmitted {
		t.Fatalf("expected RESUBMITTED, got %s", status)
	}
}

func TestPersistRemittanceBeforeSubmission(t *testing.T) {
	svc, repo, _ := setupIngest(t)
	ctx := context.Background()

	settled := when(t, "2024-02-01")
	batchID, err := svc.PersistRemittance(ctx, ingestdomain.RemittanceBatch{
		PaymentReference: "PAY-9",
		TxAt:             settled,
		Claims: []ingestdomain.RemittanceClaim{{
			ClaimID:        "CLM-ORPHAN",
			FacilityID:     "FAC-1",
			DateSettlement: &settled,
			Activities: []ingestdomain.RemittanceActivity{
				{ActivityID: "1", PaymentAmount: decimal.RequireFromString("75")},
			},
		}},
	})
	if err != nil {
		t.Fatalf("persist remittance: %v", err)
	}
	if batchID == 0 {
		t.Fatal("expected batch id")
	}

	key, err := repo.ClaimKeyByExternalID(ctx, "CLM-ORPHAN")
	if err != nil {
		t.Fatalf("claim key: %v", err)
	}
	lines, err := repo.RemittanceLines(ctx, key.ID, "1")
	if err != nil {
		t.Fatalf("remittance lines: %v", err)
	}
	if len(lines) != 1 || !lines[0].PaymentAmount.Equal(decimal.RequireFromString("75")) {
		t.Fatalf("unexpected lines: %+v", lines)
	}

	status, err := repo.CurrentStatus(ctx, key.ID)
	if err != nil {
		t.Fatalf("current status: %v", err)
	}
	if status != claimsdomain.StatusPaid {
		t.Fatalf("expected PAID, got %s", status)
	}
}

func TestPersistRemittanceDerivesStatus(t *testing.T) {
	svc, repo, _ := setupIngest(t)
	ctx := context.Background()

	keyID, err := svc.PersistSubmission(ctx, submission(t, "CLM-1", "2024-01-02"))
	if err != nil {
		t.Fatalf("persist submission: %v", err)
	}

	settled := when(t, "2024-02-01")
	_, err = svc.PersistRemittance(ctx, ingestdomain.RemittanceBatch{
		TxAt: settled,
		Claims: []ingestdomain.RemittanceClaim{{
			ClaimID:        "CLM-1",
			DateSettlement: &settled,
			Activities: []ingestdomain.RemittanceActivity{
				{ActivityID: "1", PaymentAmount: decimal.RequireFromString("100")},
				{ActivityID: "2", PaymentAmount: decimal.Zero, DenialCode: "CO-97"},
			},
		}},
	})
	if err != nil {
		t.Fatalf("persist remittance: %v", err)
	}

	status, err := repo.CurrentStatus(ctx, keyID)
	if err != nil {
		t.Fatalf("current status: %v", err)
	}
	if status != claimsdomain.StatusPartiallyPaid {
		t.Fatalf("expected PARTIALLY_PAID, got %s", status)
	}
}
