package query

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/acmehealth/claimsight/pkg/db/pagination"
)

// Mode selects where a report reads from.
type Mode string

const (
	// ModeAggregate reads the persisted report tables.
	ModeAggregate Mode = "aggregate"
	// ModeLive recomputes from the settlement grain without persisting.
	ModeLive Mode = "live"
)

var (
	ErrInvalidMode  = errors.New("query: mode must be aggregate or live")
	ErrInvalidRange = errors.New("query: from must not be after to")
)

// InvalidSortError reports a sort column outside the report's
// whitelist.
type InvalidSortError struct {
	Report string
	Column string
}

func (e *InvalidSortError) Error() string {
	return fmt.Sprintf("query: %s: sort column %q not allowed", e.Report, e.Column)
}

// Filters are the shared report parameters. All values reach SQL
// through gorm parameter binding only.
type Filters struct {
	From time.Time
	To   time.Time

	FacilityID string
	PayerID    string
	Clinician  string

	Mode      Mode
	SortBy    string
	SortDesc  bool
	Page      pagination.Page
}

// Sort whitelists per report. Everything else is rejected before any
// SQL is built.
var (
	claimSummarySort = map[string]string{
		"month_bucket":    "month_bucket",
		"facility_id":     "facility_id",
		"payer_id":        "payer_id",
		"claim_count":     "claim_count",
		"claim_amount":    "claim_amount",
		"paid_amount":     "paid_amount",
		"rejected_amount": "rejected_amount",
		"collection_rate": "collection_rate",
	}
	rejectedClaimsSort = map[string]string{
		"month_bucket":    "month_bucket",
		"facility_id":     "facility_id",
		"payer_id":        "payer_id",
		"total_claims":    "total_claims",
		"rejected_claims": "rejected_claims",
		"rejected_amount": "rejected_amount",
		"rejection_rate":  "rejection_rate",
	}
	balanceAgingSort = map[string]string{
		"month_bucket":       "month_bucket",
		"facility_id":        "facility_id",
		"payer_id":           "payer_id",
		"aging_bucket":       "aging_bucket",
		"claim_count":        "claim_count",
		"outstanding_amount": "outstanding_amount",
	}
	doctorDenialSort = map[string]string{
		"month_bucket":    "month_bucket",
		"facility_id":     "facility_id",
		"clinician":       "clinician",
		"denial_rate":     "denial_rate",
		"collection_rate": "collection_rate",
		"denied_amount":   "denied_amount",
	}
)

func (f Filters) validate(report string, whitelist map[string]string) (string, error) {
	switch f.Mode {
	case "", ModeAggregate, ModeLive:
	default:
		return "", ErrInvalidMode
	}
	if !f.From.IsZero() && !f.To.IsZero() && f.From.After(f.To) {
		return "", ErrInvalidRange
	}
	sort := strings.TrimSpace(f.SortBy)
	if sort == "" {
		return "month_bucket", nil
	}
	column, ok := whitelist[sort]
	if !ok {
		return "", &InvalidSortError{Report: report, Column: sort}
	}
	return column, nil
}

func (f Filters) mode() Mode {
	if f.Mode == "" {
		return ModeAggregate
	}
	return f.Mode
}

func (f Filters) orderClause(column string) string {
	if f.SortDesc {
		return column + " DESC"
	}
	return column + " ASC"
}

// window defaults the date range to the trailing year when unset.
func (f Filters) window(now time.Time) (time.Time, time.Time) {
	from, to := f.From, f.To
	if to.IsZero() {
		to = now
	}
	if from.IsZero() {
		from = to.AddDate(-1, 0, 0)
	}
	return from, to
}
