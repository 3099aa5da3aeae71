package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

var (
	ErrMissingClaimID  = errors.New("ingest: claim id is required")
	ErrMissingActivity = errors.New("ingest: submission needs at least one activity")
	ErrEmptyRemittance = errors.New("ingest: remittance batch has no claims")
)

// Submission is one claim document to persist. A resubmission carries
// the same external claim id plus the Resubmission detail.
type Submission struct {
	ClaimID      string
	MemberID     string
	EmiratesID   string
	PayerID      string
	ProviderID   string
	Gross        decimal.Decimal
	PatientShare decimal.Decimal
	Net          decimal.Decimal
	Comments     string
	TxAt         time.Time

	Encounter    Encounter
	Activities   []Activity
	Resubmission *Resubmission
}

type Encounter struct {
	FacilityID string
	Type       string
	PatientID  string
	StartAt    *time.Time
	EndAt      *time.Time
	StartType  string
	EndType    string
}

type Activity struct {
	ActivityID  string
	StartAt     *time.Time
	Type        string
	Code        string
	Quantity    decimal.Decimal
	Net         decimal.Decimal
	Clinician   string
	PriorAuthID string
}

type Resubmission struct {
	Type    string
	Comment string
}

// RemittanceBatch is one payer response file.
type RemittanceBatch struct {
	PaymentReference string
	TxAt             time.Time
	Claims           []RemittanceClaim
}

type RemittanceClaim struct {
	ClaimID          string
	IDPayer          string
	ProviderID       string
	FacilityID       string
	PaymentReference string
	DenialCode       string
	DateSettlement   *time.Time
	Activities       []RemittanceActivity
}

type RemittanceActivity struct {
	ActivityID    string
	StartAt       *time.Time
	Type          string
	Code          string
	Quantity      decimal.Decimal
	Net           decimal.Decimal
	ListPrice     decimal.Decimal
	Gross         decimal.Decimal
	PatientShare  decimal.Decimal
	PaymentAmount decimal.Decimal
	DenialCode    string
	Clinician     string
}

// Service persists lifecycle facts into the event store. Everything is
// append-only: a resubmission adds a claim revision, a remittance adds
// settlement lines, nothing is rewritten.
type Service interface {
	PersistSubmission(ctx context.Context, in Submission) (snowflake.ID, error)
	PersistRemittance(ctx context.Context, in RemittanceBatch) (snowflake.ID, error)
}
