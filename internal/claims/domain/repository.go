package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrClaimKeyNotFound = errors.New("claims: claim key not found")
	ErrClaimNotFound    = errors.New("claims: claim not found")
)

// ClaimHeader is the denormalized view of a claim key: the latest
// submitted claim document with its encounter.
type ClaimHeader struct {
	ClaimKey  ClaimKey
	Claim     Claim
	Encounter Encounter
}

// EventWithDetail pairs a claim event with its resubmission detail
// where one exists.
type EventWithDetail struct {
	Event        ClaimEvent
	Resubmission *ClaimResubmission
}

// Repository is the read side of the claim event store. Facts are
// append-only; readers see every settlement line ever recorded.
type Repository interface {
	// ClaimKeyByExternalID resolves an external claim id to its key row.
	ClaimKeyByExternalID(ctx context.Context, claimID string) (ClaimKey, error)

	// Header returns the latest claim document and encounter for a key.
	Header(ctx context.Context, claimKeyID snowflake.ID) (ClaimHeader, error)

	// Activities returns the billed lines of the latest claim document.
	Activities(ctx context.Context, claimKeyID snowflake.ID) ([]Activity, error)

	// RemittanceLines returns every settlement line recorded for one
	// activity across all remittance batches, ordered by effective
	// settlement date then line id.
	RemittanceLines(ctx context.Context, claimKeyID snowflake.ID, activityID string) ([]RemittanceLine, error)

	// RemittanceLinesByClaimKey returns all settlement lines for a key
	// grouped per external activity id, each group ordered as in
	// RemittanceLines.
	RemittanceLinesByClaimKey(ctx context.Context, claimKeyID snowflake.ID) (map[string][]RemittanceLine, error)

	// Events returns the lifecycle events of a key in event-time order.
	Events(ctx context.Context, claimKeyID snowflake.ID) ([]EventWithDetail, error)

	// StatusTimeline returns the status history of a key ordered by
	// (status_time, id) ascending.
	StatusTimeline(ctx context.Context, claimKeyID snowflake.ID) ([]ClaimStatusTimeline, error)

	// CurrentStatus returns the latest status of a key, or
	// StatusUnknown when the timeline is empty.
	CurrentStatus(ctx context.Context, claimKeyID snowflake.ID) (ClaimStatus, error)

	// DenialMeta returns the claim-section denial code and settlement
	// date of the latest remittance section for a key.
	DenialMeta(ctx context.Context, claimKeyID snowflake.ID) (denialCode string, settledAt *time.Time, err error)

	// SettlementSpan returns the first and last effective settlement
	// dates across every remittance section of a key; both nil when
	// nothing has settled yet.
	SettlementSpan(ctx context.Context, claimKeyID snowflake.ID) (first, last *time.Time, err error)

	// KeysTouchedBetween returns the ids of claim keys with a
	// submission or a settlement falling inside [from, to).
	KeysTouchedBetween(ctx context.Context, from, to time.Time) ([]snowflake.ID, error)
}
