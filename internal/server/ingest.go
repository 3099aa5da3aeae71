package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	ingestdomain "github.com/acmehealth/claimsight/internal/ingest/domain"
)

type submissionRequest struct {
	ClaimID      string          `json:"claim_id"`
	MemberID     string          `json:"member_id"`
	EmiratesID   string          `json:"emirates_id"`
	PayerID      string          `json:"payer_id"`
	ProviderID   string          `json:"provider_id"`
	Gross        decimal.Decimal `json:"gross"`
	PatientShare decimal.Decimal `json:"patient_share"`
	Net          decimal.Decimal `json:"net"`
	Comments     string          `json:"comments"`
	TxAt         time.Time       `json:"tx_at"`

	Encounter    encounterRequest    `json:"encounter"`
	Activities   []activityRequest   `json:"activities"`
	Resubmission *resubmissionRequest `json:"resubmission,omitempty"`
}

type encounterRequest struct {
	FacilityID string     `json:"facility_id"`
	Type       string     `json:"type"`
	PatientID  string     `json:"patient_id"`
	StartAt    *time.Time `json:"start_at,omitempty"`
	EndAt      *time.Time `json:"end_at,omitempty"`
	StartType  string     `json:"start_type"`
	EndType    string     `json:"end_type"`
}

type activityRequest struct {
	ActivityID  string          `json:"activity_id"`
	StartAt     *time.Time      `json:"start_at,omitempty"`
	Type        string          `json:"type"`
	Code        string          `json:"code"`
	Quantity    decimal.Decimal `json:"quantity"`
	Net         decimal.Decimal `json:"net"`
	Clinician   string          `json:"clinician"`
	PriorAuthID string          `json:"prior_auth_id"`
}

type resubmissionRequest struct {
	Type    string `json:"type"`
	Comment string `json:"comment"`
}

type remittanceRequest struct {
	PaymentReference string                   `json:"payment_reference"`
	TxAt             time.Time                `json:"tx_at"`
	Claims           []remittanceClaimRequest `json:"claims"`
}

type remittanceClaimRequest struct {
	ClaimID          string                      `json:"claim_id"`
	IDPayer          string                      `json:"id_payer"`
	ProviderID       string                      `json:"provider_id"`
	FacilityID       string                      `json:"facility_id"`
	PaymentReference string                      `json:"payment_reference"`
	DenialCode       string                      `json:"denial_code"`
	DateSettlement   *time.Time                  `json:"date_settlement,omitempty"`
	Activities       []remittanceActivityRequest `json:"activities"`
}

type remittanceActivityRequest struct {
	ActivityID    string          `json:"activity_id"`
	StartAt       *time.Time      `json:"start_at,omitempty"`
	Type          string          `json:"type"`
	Code          string          `json:"code"`
	Quantity      decimal.Decimal `json:"quantity"`
	Net           decimal.Decimal `json:"net"`
	ListPrice     decimal.Decimal `json:"list_price"`
	Gross         decimal.Decimal `json:"gross"`
	PatientShare  decimal.Decimal `json:"patient_share"`
	PaymentAmount decimal.Decimal `json:"payment_amount"`
	DenialCode    string          `json:"denial_code"`
	Clinician     string          `json:"clinician"`
}

func (s *Server) PostSubmission(c *gin.Context) {
	var req submissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	in := ingestdomain.Submission{
		ClaimID:      strings.TrimSpace(req.ClaimID),
		MemberID:     strings.TrimSpace(req.MemberID),
		EmiratesID:   strings.TrimSpace(req.EmiratesID),
		PayerID:      strings.TrimSpace(req.PayerID),
		ProviderID:   strings.TrimSpace(req.ProviderID),
		Gross:        req.Gross,
		PatientShare: req.PatientShare,
		Net:          req.Net,
		Comments:     req.Comments,
		TxAt:         req.TxAt,
		Encounter: ingestdomain.Encounter{
			FacilityID: strings.TrimSpace(req.Encounter.FacilityID),
			Type:       strings.TrimSpace(req.Encounter.Type),
			PatientID:  strings.TrimSpace(req.Encounter.PatientID),
			StartAt:    req.Encounter.StartAt,
			EndAt:      req.Encounter.EndAt,
			StartType:  strings.TrimSpace(req.Encounter.StartType),
			EndType:    strings.TrimSpace(req.Encounter.EndType),
		},
	}
	for _, a := range req.Activities {
		in.Activities = append(in.Activities, ingestdomain.Activity{
			ActivityID:  strings.TrimSpace(a.ActivityID),
			StartAt:     a.StartAt,
			Type:        strings.TrimSpace(a.Type),
			Code:        strings.TrimSpace(a.Code),
			Quantity:    a.Quantity,
			Net:         a.Net,
			Clinician:   strings.TrimSpace(a.Clinician),
			PriorAuthID: strings.TrimSpace(a.PriorAuthID),
		})
	}
	if req.Resubmission != nil {
		in.Resubmission = &ingestdomain.Resubmission{
			Type:    strings.TrimSpace(req.Resubmission.Type),
			Comment: req.Resubmission.Comment,
		}
	}

	claimKeyID, err := s.ingestSvc.PersistSubmission(c.Request.Context(), in)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": gin.H{
		"claim_key_id": claimKeyID,
		"claim_id":     in.ClaimID,
	}})
}

func (s *Server) PostRemittance(c *gin.Context) {
	var req remittanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	in := ingestdomain.RemittanceBatch{
		PaymentReference: strings.TrimSpace(req.PaymentReference),
		TxAt:             req.TxAt,
	}
	for _, rc := range req.Claims {
		claim := ingestdomain.RemittanceClaim{
			ClaimID:          strings.TrimSpace(rc.ClaimID),
			IDPayer:          strings.TrimSpace(rc.IDPayer),
			ProviderID:       strings.TrimSpace(rc.ProviderID),
			FacilityID:       strings.TrimSpace(rc.FacilityID),
			PaymentReference: strings.TrimSpace(rc.PaymentReference),
			DenialCode:       strings.TrimSpace(rc.DenialCode),
			DateSettlement:   rc.DateSettlement,
		}
		for _, ra := range rc.Activities {
			claim.Activities = append(claim.Activities, ingestdomain.RemittanceActivity{
				ActivityID:    strings.TrimSpace(ra.ActivityID),
				StartAt:       ra.StartAt,
				Type:          strings.TrimSpace(ra.Type),
				Code:          strings.TrimSpace(ra.Code),
				Quantity:      ra.Quantity,
				Net:           ra.Net,
				ListPrice:     ra.ListPrice,
				Gross:         ra.Gross,
				PatientShare:  ra.PatientShare,
				PaymentAmount: ra.PaymentAmount,
				DenialCode:    strings.TrimSpace(ra.DenialCode),
				Clinician:     strings.TrimSpace(ra.Clinician),
			})
		}
		in.Claims = append(in.Claims, claim)
	}

	remittanceID, err := s.ingestSvc.PersistRemittance(c.Request.Context(), in)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": gin.H{
		"remittance_id": remittanceID,
		"claims":        len(in.Claims),
	}})
}
