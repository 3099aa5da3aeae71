package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"

	claimsdomain "github.com/acmehealth/claimsight/internal/claims/domain"
	settlementdomain "github.com/acmehealth/claimsight/internal/settlement/domain"
)

// ClaimPayment is the claim-grain financial rollup: one row per claim
// key, rebuilt from the activity settlements plus lifecycle metadata.
// Facility and payer are denormalized here so the dimensional
// aggregators never have to re-join the raw event tables.
type ClaimPayment struct {
	ID         snowflake.ID `gorm:"primaryKey"`
	ClaimKeyID snowflake.ID `gorm:"uniqueIndex:ux_claim_payment_key;not null"`
	ClaimID    string       `gorm:"size:64;not null"`

	FacilityID    string `gorm:"size:64;index:ix_claim_payment_facility"`
	PayerID       string `gorm:"size:64;index:ix_claim_payment_payer"`
	ProviderID    string `gorm:"size:64"`
	EncounterType string `gorm:"size:16"`

	ClaimNet       decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	TotalSubmitted decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	TotalPaid      decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	TotalRejected  decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	TotalTakenBack decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	PendingAmount  decimal.Decimal `gorm:"type:numeric(14,2);not null"`

	PaymentStatus     claimsdomain.PaymentStatus `gorm:"size:32;not null"`
	LifecycleStatus   claimsdomain.ClaimStatus   `gorm:"not null"`
	DenialCode        string                     `gorm:"size:16"`
	RemittanceCount   int                        `gorm:"not null"`
	ResubmissionCount int                        `gorm:"not null"`

	SubmittedAt        time.Time `gorm:"index:ix_claim_payment_submitted;not null"`
	EncounterStartAt   *time.Time
	FirstSettledAt     *time.Time
	LastSettledAt      *time.Time `gorm:"index:ix_claim_payment_settled"`
	DaysToFirstPayment int        `gorm:"not null"`
	ComputedAt         time.Time  `gorm:"not null"`
}

func (ClaimPayment) TableName() string { return "claim_payments" }

// Service rebuilds claim payments from settlements and lifecycle facts.
type Service interface {
	// RollupClaim rebuilds and persists the ClaimPayment for one key.
	RollupClaim(ctx context.Context, claimKeyID snowflake.ID) (ClaimPayment, error)

	// Preview assembles the ClaimPayment from the given settlement rows
	// without writing claim_payments; live report reads use it.
	Preview(ctx context.Context, claimKeyID snowflake.ID, settlements []settlementdomain.ActivitySettlement) (ClaimPayment, error)

	// Payment returns the persisted rollup row for a claim key.
	Payment(ctx context.Context, claimKeyID snowflake.ID) (ClaimPayment, error)
}
