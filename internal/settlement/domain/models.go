package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	claimsdomain "github.com/acmehealth/claimsight/internal/claims/domain"
)

// ActivitySettlement is the materialized financial outcome for one
// (claim key, activity) pair. It is recomputed from the full remittance
// history on every run, never mutated incrementally.
type ActivitySettlement struct {
	ID              snowflake.ID `gorm:"primaryKey"`
	ClaimKeyID      snowflake.ID `gorm:"uniqueIndex:ux_activity_summary_key_line;not null"`
	ActivityID      string       `gorm:"size:64;uniqueIndex:ux_activity_summary_key_line;not null"`
	SubmittedAmount decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	PaidAmount      decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	DeniedAmount    decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	TakenBackAmount decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	DenialCodes     datatypes.JSONSlice[string]
	RemittanceCount int                         `gorm:"not null"`
	ActivityStatus  claimsdomain.ActivityStatus `gorm:"size:32;not null"`
	LastSettledAt   *time.Time
	ComputedAt      time.Time `gorm:"not null"`
}

func (ActivitySettlement) TableName() string { return "claim_activity_summary" }

// Service recomputes and persists activity settlements.
type Service interface {
	// Recompute rebuilds every settlement row of a claim key from its
	// remittance history and returns the fresh rows.
	Recompute(ctx context.Context, claimKeyID snowflake.ID) ([]ActivitySettlement, error)

	// Compute folds the same remittance history without writing
	// claim_activity_summary; live report reads use it.
	Compute(ctx context.Context, claimKeyID snowflake.ID) ([]ActivitySettlement, error)

	// Settlements returns the persisted rows for a claim key ordered
	// by activity id.
	Settlements(ctx context.Context, claimKeyID snowflake.ID) ([]ActivitySettlement, error)
}
