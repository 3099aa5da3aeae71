package domain

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// ClaimSummaryRow is the monthly claim summary grain: one row per
// (month, facility, payer, encounter type).
type ClaimSummaryRow struct {
	ID            snowflake.ID `gorm:"primaryKey"`
	MonthBucket   time.Time    `gorm:"uniqueIndex:ux_claim_summary_dims;not null"`
	FacilityID    string       `gorm:"size:64;uniqueIndex:ux_claim_summary_dims;not null"`
	PayerID       string       `gorm:"size:64;uniqueIndex:ux_claim_summary_dims;not null"`
	EncounterType string       `gorm:"size:16;uniqueIndex:ux_claim_summary_dims;not null"`

	ClaimCount        int `gorm:"not null"`
	ResubmissionCount int `gorm:"not null"`

	ClaimAmount     decimal.Decimal `gorm:"type:numeric(16,2);not null"`
	PaidAmount      decimal.Decimal `gorm:"type:numeric(16,2);not null"`
	RejectedAmount  decimal.Decimal `gorm:"type:numeric(16,2);not null"`
	PendingAmount   decimal.Decimal `gorm:"type:numeric(16,2);not null"`
	TakenBackAmount decimal.Decimal `gorm:"type:numeric(16,2);not null"`

	CollectionRate decimal.Decimal `gorm:"type:numeric(7,2);not null"`
	RejectionRate  decimal.Decimal `gorm:"type:numeric(7,2);not null"`

	RefreshedAt time.Time `gorm:"not null"`
}

func (ClaimSummaryRow) TableName() string { return "report_claim_summary" }

// RejectedClaimsRow is the monthly rejection grain per (month,
// facility, payer).
type RejectedClaimsRow struct {
	ID          snowflake.ID `gorm:"primaryKey"`
	MonthBucket time.Time    `gorm:"uniqueIndex:ux_rejected_claims_dims;not null"`
	FacilityID  string       `gorm:"size:64;uniqueIndex:ux_rejected_claims_dims;not null"`
	PayerID     string       `gorm:"size:64;uniqueIndex:ux_rejected_claims_dims;not null"`

	TotalClaims       int `gorm:"not null"`
	RejectedClaims    int `gorm:"not null"`
	ResubmissionCount int `gorm:"not null"`

	SubmittedAmount decimal.Decimal `gorm:"type:numeric(16,2);not null"`
	RejectedAmount  decimal.Decimal `gorm:"type:numeric(16,2);not null"`
	RejectionRate   decimal.Decimal `gorm:"type:numeric(7,2);not null"`

	RefreshedAt time.Time `gorm:"not null"`
}

func (RejectedClaimsRow) TableName() string { return "report_rejected_claims" }

// BalanceAgingRow is the outstanding-balance grain per (month,
// facility, payer, aging bucket).
type BalanceAgingRow struct {
	ID          snowflake.ID `gorm:"primaryKey"`
	MonthBucket time.Time    `gorm:"uniqueIndex:ux_balance_aging_dims;not null"`
	FacilityID  string       `gorm:"size:64;uniqueIndex:ux_balance_aging_dims;not null"`
	PayerID     string       `gorm:"size:64;uniqueIndex:ux_balance_aging_dims;not null"`
	AgingBucket string       `gorm:"size:8;uniqueIndex:ux_balance_aging_dims;not null"`

	ClaimCount        int             `gorm:"not null"`
	SubmittedAmount   decimal.Decimal `gorm:"type:numeric(16,2);not null"`
	OutstandingAmount decimal.Decimal `gorm:"type:numeric(16,2);not null"`

	RefreshedAt time.Time `gorm:"not null"`
}

func (BalanceAgingRow) TableName() string { return "report_balance_aging" }

// DoctorDenialRow is the clinician denial grain per (month, facility,
// clinician).
type DoctorDenialRow struct {
	ID          snowflake.ID `gorm:"primaryKey"`
	MonthBucket time.Time    `gorm:"uniqueIndex:ux_doctor_denial_dims;not null"`
	FacilityID  string       `gorm:"size:64;uniqueIndex:ux_doctor_denial_dims;not null"`
	Clinician   string       `gorm:"size:64;uniqueIndex:ux_doctor_denial_dims;not null"`

	TotalActivities  int `gorm:"not null"`
	DeniedActivities int `gorm:"not null"`

	SubmittedAmount decimal.Decimal `gorm:"type:numeric(16,2);not null"`
	PaidAmount      decimal.Decimal `gorm:"type:numeric(16,2);not null"`
	DeniedAmount    decimal.Decimal `gorm:"type:numeric(16,2);not null"`

	DenialRate     decimal.Decimal `gorm:"type:numeric(7,2);not null"`
	CollectionRate decimal.Decimal `gorm:"type:numeric(7,2);not null"`

	RefreshedAt time.Time `gorm:"not null"`
}

func (DoctorDenialRow) TableName() string { return "report_doctor_denial" }

// RefreshRun is one bookkeeping record per table per refresh.
type RefreshRun struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	Table     string       `gorm:"column:table_name;size:64;index:ix_refresh_runs_table;not null"`
	RangeFrom time.Time    `gorm:"not null"`
	RangeTo   time.Time    `gorm:"not null"`
	Status    string       `gorm:"size:16;not null"`
	RowCount  int          `gorm:"not null"`
	Error     string       `gorm:"type:text"`
	StartedAt time.Time    `gorm:"not null"`
	EndedAt   *time.Time
}

func (RefreshRun) TableName() string { return "report_refresh_runs" }

const (
	RunStatusRunning   = "RUNNING"
	RunStatusSucceeded = "SUCCEEDED"
	RunStatusFailed    = "FAILED"
)

// RefreshError reports an invalid refresh request.
type RefreshError struct {
	From time.Time
	To   time.Time
	Msg  string
}

func (e *RefreshError) Error() string {
	return fmt.Sprintf("aggregate: refresh [%s, %s]: %s",
		e.From.Format("2006-01-02"), e.To.Format("2006-01-02"), e.Msg)
}

// Service materializes the report tables and serves live
// recomputations of the same shapes.
type Service interface {
	// RefreshRange rebuilds every report table for the month buckets
	// spanned by [from, to]. Each table refreshes in its own
	// transaction; one table failing does not roll back the others.
	RefreshRange(ctx context.Context, from, to time.Time) error

	// LastRuns returns the most recent refresh run per table.
	LastRuns(ctx context.Context) ([]RefreshRun, error)

	// Live recomputations over the current base tables, same shapes as
	// the persisted rows but never written.
	LiveClaimSummary(ctx context.Context, from, to time.Time) ([]ClaimSummaryRow, error)
	LiveRejectedClaims(ctx context.Context, from, to time.Time) ([]RejectedClaimsRow, error)
	LiveBalanceAging(ctx context.Context, from, to time.Time) ([]BalanceAgingRow, error)
	LiveDoctorDenial(ctx context.Context, from, to time.Time) ([]DoctorDenialRow, error)
}
