package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// ClaimKey is the identity row for an external claim id. Every submission,
// resubmission and remittance for the same external id hangs off one key.
type ClaimKey struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	ClaimID   string       `gorm:"size:64;uniqueIndex:ux_claim_key_claim_id;not null"`
	CreatedAt time.Time
}

func (ClaimKey) TableName() string { return "claim_keys" }

// Claim is one submitted claim document. A resubmission produces a new
// Claim row under the same ClaimKey.
type Claim struct {
	ID           snowflake.ID `gorm:"primaryKey"`
	ClaimKeyID   snowflake.ID `gorm:"index:ix_claims_claim_key;not null"`
	MemberID     string       `gorm:"size:64"`
	EmiratesID   string       `gorm:"size:32"`
	PayerID      string       `gorm:"size:64;index:ix_claims_payer"`
	ProviderID   string       `gorm:"size:64"`
	Gross        decimal.Decimal `gorm:"type:numeric(14,2)"`
	PatientShare decimal.Decimal `gorm:"type:numeric(14,2)"`
	Net          decimal.Decimal `gorm:"type:numeric(14,2)"`
	Comments     string          `gorm:"type:text"`
	TxAt         time.Time       `gorm:"index:ix_claims_tx_at;not null"`
	CreatedAt    time.Time
}

func (Claim) TableName() string { return "claims" }

// Encounter is the visit a claim bills for.
type Encounter struct {
	ID         snowflake.ID `gorm:"primaryKey"`
	ClaimID    snowflake.ID `gorm:"index:ix_encounters_claim;not null"`
	FacilityID string       `gorm:"size:64;index:ix_encounters_facility"`
	Type       string       `gorm:"size:16"`
	PatientID  string       `gorm:"size:64"`
	StartAt    *time.Time
	EndAt      *time.Time
	StartType  string `gorm:"size:16"`
	EndType    string `gorm:"size:16"`
	CreatedAt  time.Time
}

func (Encounter) TableName() string { return "encounters" }

// Activity is a billed service line on a claim. ActivityID is the
// external line identifier and is unique within the claim.
type Activity struct {
	ID          snowflake.ID `gorm:"primaryKey"`
	ClaimID     snowflake.ID `gorm:"uniqueIndex:ux_activities_claim_line;not null"`
	ClaimKeyID  snowflake.ID `gorm:"index:ix_activities_claim_key;not null"`
	ActivityID  string       `gorm:"size:64;uniqueIndex:ux_activities_claim_line;not null"`
	StartAt     *time.Time
	Type        string          `gorm:"size:16"`
	Code        string          `gorm:"size:32"`
	Quantity    decimal.Decimal `gorm:"type:numeric(10,2)"`
	Net         decimal.Decimal `gorm:"type:numeric(14,2)"`
	Clinician   string          `gorm:"size:64;index:ix_activities_clinician"`
	PriorAuthID string          `gorm:"size:64"`
	CreatedAt   time.Time
}

func (Activity) TableName() string { return "activities" }

// ClaimEvent is an append-only lifecycle fact for a claim key.
type ClaimEvent struct {
	ID         snowflake.ID   `gorm:"primaryKey"`
	ClaimKeyID snowflake.ID   `gorm:"index:ix_claim_events_claim_key;not null"`
	Type       ClaimEventType `gorm:"not null"`
	EventTime  time.Time      `gorm:"index:ix_claim_events_time;not null"`
	CreatedAt  time.Time
}

func (ClaimEvent) TableName() string { return "claim_events" }

// ClaimResubmission carries the detail of a RESUBMISSION event.
type ClaimResubmission struct {
	ID           snowflake.ID `gorm:"primaryKey"`
	ClaimEventID snowflake.ID `gorm:"uniqueIndex:ux_resubmissions_event;not null"`
	Type         string       `gorm:"size:32"`
	Comment      string       `gorm:"type:text"`
	CreatedAt    time.Time
}

func (ClaimResubmission) TableName() string { return "claim_resubmissions" }

// ClaimStatusTimeline records every status a claim key has held.
// The current status is the row with the latest (status_time, id).
type ClaimStatusTimeline struct {
	ID           snowflake.ID `gorm:"primaryKey"`
	ClaimKeyID   snowflake.ID `gorm:"index:ix_status_timeline_claim_key;not null"`
	ClaimEventID snowflake.ID `gorm:"index:ix_status_timeline_event"`
	Status       ClaimStatus  `gorm:"not null"`
	StatusTime   time.Time    `gorm:"not null"`
	CreatedAt    time.Time
}

func (ClaimStatusTimeline) TableName() string { return "claim_status_timeline" }

// Remittance is one remittance advice batch from a payer.
type Remittance struct {
	ID               snowflake.ID `gorm:"primaryKey"`
	PaymentReference string       `gorm:"size:64"`
	TxAt             time.Time    `gorm:"index:ix_remittances_tx_at;not null"`
	CreatedAt        time.Time
}

func (Remittance) TableName() string { return "remittances" }

// RemittanceClaim is the per-claim section of a remittance batch.
type RemittanceClaim struct {
	ID               snowflake.ID `gorm:"primaryKey"`
	RemittanceID     snowflake.ID `gorm:"index:ix_remittance_claims_remittance;not null"`
	ClaimKeyID       snowflake.ID `gorm:"index:ix_remittance_claims_claim_key;not null"`
	IDPayer          string       `gorm:"size:64"`
	ProviderID       string       `gorm:"size:64"`
	FacilityID       string       `gorm:"size:64"`
	PaymentReference string       `gorm:"size:64"`
	DenialCode       string       `gorm:"size:16"`
	DateSettlement   *time.Time   `gorm:"index:ix_remittance_claims_settlement"`
	CreatedAt        time.Time
}

func (RemittanceClaim) TableName() string { return "remittance_claims" }

// RemittanceActivity is one settlement line for an activity. An activity
// can accumulate many of these across batches; negative PaymentAmount is
// a takeback.
type RemittanceActivity struct {
	ID                snowflake.ID `gorm:"primaryKey"`
	RemittanceClaimID snowflake.ID `gorm:"index:ix_remittance_activities_claim;not null"`
	ActivityID        string       `gorm:"size:64;index:ix_remittance_activities_line;not null"`
	StartAt           *time.Time
	Type              string          `gorm:"size:16"`
	Code              string          `gorm:"size:32"`
	Quantity          decimal.Decimal `gorm:"type:numeric(10,2)"`
	Net               decimal.Decimal `gorm:"type:numeric(14,2)"`
	ListPrice         decimal.Decimal `gorm:"type:numeric(14,2)"`
	Gross             decimal.Decimal `gorm:"type:numeric(14,2)"`
	PatientShare      decimal.Decimal `gorm:"type:numeric(14,2)"`
	PaymentAmount     decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	DenialCode        string          `gorm:"size:16"`
	Clinician         string          `gorm:"size:64"`
	CreatedAt         time.Time
}

func (RemittanceActivity) TableName() string { return "remittance_activities" }

// RemittanceLine is the read model the settlement calculator consumes:
// one settlement line for an activity, joined with its batch metadata.
type RemittanceLine struct {
	LineID         snowflake.ID
	RemittanceID   snowflake.ID
	PaymentAmount  decimal.Decimal
	DenialCode     string
	SettlementDate *time.Time
	BatchTxAt      time.Time
}

// EffectiveDate is the settlement date used for ordering and month
// bucketing: the claim-section settlement date when present, otherwise
// the batch transaction time.
func (l RemittanceLine) EffectiveDate() time.Time {
	if l.SettlementDate != nil {
		return *l.SettlementDate
	}
	return l.BatchTxAt
}
