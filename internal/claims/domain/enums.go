package domain

// ClaimEventType identifies a lifecycle fact on a claim key.
type ClaimEventType int16

const (
	EventSubmission   ClaimEventType = 1
	EventResubmission ClaimEventType = 2
	EventRemittance   ClaimEventType = 3
)

func (t ClaimEventType) String() string {
	switch t {
	case EventSubmission:
		return "SUBMISSION"
	case EventResubmission:
		return "RESUBMISSION"
	case EventRemittance:
		return "REMITTANCE"
	default:
		return "UNKNOWN"
	}
}

// ClaimStatus is a lifecycle status on the claim status timeline.
type ClaimStatus int16

const (
	StatusSubmitted     ClaimStatus = 1
	StatusResubmitted   ClaimStatus = 2
	StatusPaid          ClaimStatus = 3
	StatusPartiallyPaid ClaimStatus = 4
	StatusRejected      ClaimStatus = 5
	StatusUnknown       ClaimStatus = 6
)

func (s ClaimStatus) String() string {
	switch s {
	case StatusSubmitted:
		return "SUBMITTED"
	case StatusResubmitted:
		return "RESUBMITTED"
	case StatusPaid:
		return "PAID"
	case StatusPartiallyPaid:
		return "PARTIALLY_PAID"
	case StatusRejected:
		return "REJECTED"
	default:
		return "UNKNOWN"
	}
}

// PaymentStatus is the claim-level financial outcome.
type PaymentStatus string

const (
	PaymentFullyPaid     PaymentStatus = "FULLY_PAID"
	PaymentPartiallyPaid PaymentStatus = "PARTIALLY_PAID"
	PaymentRejected      PaymentStatus = "REJECTED"
	PaymentPending       PaymentStatus = "PENDING"
)

// ActivityStatus is the per-activity financial outcome.
type ActivityStatus string

const (
	ActivityFullyPaid          ActivityStatus = "FULLY_PAID"
	ActivityPartiallyPaid      ActivityStatus = "PARTIALLY_PAID"
	ActivityRejected           ActivityStatus = "REJECTED"
	ActivityPending            ActivityStatus = "PENDING"
	ActivityTakenBack          ActivityStatus = "TAKEN_BACK"
	ActivityPartiallyTakenBack ActivityStatus = "PARTIALLY_TAKEN_BACK"
)
