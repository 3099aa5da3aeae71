package query

import (
	"sort"

	aggdomain "github.com/acmehealth/claimsight/internal/reporting/aggregate/domain"
)

// Live-mode results are sorted in memory with the same whitelisted
// columns the aggregate tables use. Unknown columns never reach these
// functions; validate rejects them first.

func applySort[T any](rows []T, desc bool, less func(a, b T) bool) {
	sort.SliceStable(rows, func(i, j int) bool {
		if desc {
			return less(rows[j], rows[i])
		}
		return less(rows[i], rows[j])
	})
}

func sortClaimSummary(rows []aggdomain.ClaimSummaryRow, column string, desc bool) {
	applySort(rows, desc, func(a, b aggdomain.ClaimSummaryRow) bool {
		switch column {
		case "facility_id":
			return a.FacilityID < b.FacilityID
		case "payer_id":
			return a.PayerID < b.PayerID
		case "claim_count":
			return a.ClaimCount < b.ClaimCount
		case "claim_amount":
			return a.ClaimAmount.LessThan(b.ClaimAmount)
		case "paid_amount":
			return a.PaidAmount.LessThan(b.PaidAmount)
		case "rejected_amount":
			return a.RejectedAmount.LessThan(b.RejectedAmount)
		case "collection_rate":
			return a.CollectionRate.LessThan(b.CollectionRate)
		default:
			return a.MonthBucket.Before(b.MonthBucket)
		}
	})
}

func sortRejectedClaims(rows []aggdomain.RejectedClaimsRow, column string, desc bool) {
	applySort(rows, desc, func(a, b aggdomain.RejectedClaimsRow) bool {
		switch column {
		case "facility_id":
			return a.FacilityID < b.FacilityID
		case "payer_id":
			return a.PayerID < b.PayerID
		case "total_claims":
			return a.TotalClaims < b.TotalClaims
		case "rejected_claims":
			return a.RejectedClaims < b.RejectedClaims
		case "rejected_amount":
			return a.RejectedAmount.LessThan(b.RejectedAmount)
		case "rejection_rate":
			return a.RejectionRate.LessThan(b.RejectionRate)
		default:
			return a.MonthBucket.Before(b.MonthBucket)
		}
	})
}

func sortBalanceAging(rows []aggdomain.BalanceAgingRow, column string, desc bool) {
	applySort(rows, desc, func(a, b aggdomain.BalanceAgingRow) bool {
		switch column {
		case "facility_id":
			return a.FacilityID < b.FacilityID
		case "payer_id":
			return a.PayerID < b.PayerID
		case "aging_bucket":
			return a.AgingBucket < b.AgingBucket
		case "claim_count":
			return a.ClaimCount < b.ClaimCount
		case "outstanding_amount":
			return a.OutstandingAmount.LessThan(b.OutstandingAmount)
		default:
			return a.MonthBucket.Before(b.MonthBucket)
		}
	})
}

func sortDoctorDenial(rows []aggdomain.DoctorDenialRow, column string, desc bool) {
	applySort(rows, desc, func(a, b aggdomain.DoctorDenialRow) bool {
		switch column {
		case "facility_id":
			return a.FacilityID < b.FacilityID
		case "clinician":
			return a.Clinician < b.Clinician
		case "denial_rate":
			return a.DenialRate.LessThan(b.DenialRate)
		case "collection_rate":
			return a.CollectionRate.LessThan(b.CollectionRate)
		case "denied_amount":
			return a.DeniedAmount.LessThan(b.DeniedAmount)
		default:
			return a.MonthBucket.Before(b.MonthBucket)
		}
	})
}
