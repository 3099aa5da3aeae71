package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	claimsdomain "github.com/acmehealth/claimsight/internal/claims/domain"
	"github.com/acmehealth/claimsight/internal/ingest/domain"
	"github.com/acmehealth/claimsight/pkg/db"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
}

func NewService(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("ingest.service"),
		genID: p.GenID,
	}
}

func (s *Service) PersistSubmission(ctx context.Context, in domain.Submission) (snowflake.ID, error) {
	claimID := strings.TrimSpace(in.ClaimID)
	if claimID == "" {
		return 0, domain.ErrMissingClaimID
	}
	if len(in.Activities) == 0 {
		return 0, domain.ErrMissingActivity
	}

	var keyID snowflake.ID
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		key, err := s.ensureClaimKey(tx, claimID)
		if err != nil {
			return err
		}
		keyID = key.ID

		claim := claimsdomain.Claim{
			ID:           s.genID.Generate(),
			ClaimKeyID:   key.ID,
			MemberID:     in.MemberID,
			EmiratesID:   in.EmiratesID,
			PayerID:      in.PayerID,
			ProviderID:   in.ProviderID,
			Gross:        in.Gross,
			PatientShare: in.PatientShare,
			Net:          in.Net,
			Comments:     in.Comments,
			TxAt:         in.TxAt,
		}
		if err := tx.Create(&claim).Error; err != nil {
			return err
		}

		encounter := claimsdomain.Encounter{
			ID:         s.genID.Generate(),
			ClaimID:    claim.ID,
			FacilityID: in.Encounter.FacilityID,
			Type:       in.Encounter.Type,
			PatientID:  in.Encounter.PatientID,
			StartAt:    in.Encounter.StartAt,
			EndAt:      in.Encounter.EndAt,
			StartType:  in.Encounter.StartType,
			EndType:    in.Encounter.EndType,
		}
		if err := tx.Create(&encounter).Error; err != nil {
			return err
		}

		activities := make([]claimsdomain.Activity, 0, len(in.Activities))
		for _, a := range in.Activities {
			activities = append(activities, claimsdomain.Activity{
				ID:          s.genID.Generate(),
				ClaimID:     claim.ID,
				ClaimKeyID:  key.ID,
				ActivityID:  a.ActivityID,
				StartAt:     a.StartAt,
				Type:        a.Type,
				Code:        a.Code,
				Quantity:    a.Quantity,
				Net:         a.Net,
				Clinician:   a.Clinician,
				PriorAuthID: a.PriorAuthID,
			})
		}
		if err := tx.Create(&activities).Error; err != nil {
			return err
		}

		eventType := claimsdomain.EventSubmission
		status := claimsdomain.StatusSubmitted
		if in.Resubmission != nil {
			eventType = claimsdomain.EventResubmission
			status = claimsdomain.StatusResubmitted
		}
		event := claimsdomain.ClaimEvent{
			ID:         s.genID.Generate(),
			ClaimKeyID: key.ID,
			Type:       eventType,
			EventTime:  in.TxAt,
		}
		if err := tx.Create(&event).Error; err != nil {
			return err
		}
		if in.Resubmission != nil {
			detail := claimsdomain.ClaimResubmission{
				ID:           s.genID.Generate(),
				ClaimEventID: event.ID,
				Type:         in.Resubmission.Type,
				Comment:      in.Resubmission.Comment,
			}
			if err := tx.Create(&detail).Error; err != nil {
				return err
			}
		}

		timeline := claimsdomain.ClaimStatusTimeline{
			ID:           s.genID.Generate(),
			ClaimKeyID:   key.ID,
			ClaimEventID: event.ID,
			Status:       status,
			StatusTime:   in.TxAt,
		}
		return tx.Create(&timeline).Error
	})
	if err != nil {
		return 0, err
	}

	s.log.Info("persisted submission",
		zap.String("claim_id", claimID),
		zap.String("claim_key_id", keyID.String()),
		zap.Bool("resubmission", in.Resubmission != nil),
		zap.Int("activities", len(in.Activities)))
	return keyID, nil
}

func (s *Service) PersistRemittance(ctx context.Context, in domain.RemittanceBatch) (snowflake.ID, error) {
	if len(in.Claims) == 0 {
		return 0, domain.ErrEmptyRemittance
	}

	batchID := s.genID.Generate()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		batch := claimsdomain.Remittance{
			ID:               batchID,
			PaymentReference: in.PaymentReference,
			TxAt:             in.TxAt,
		}
		if err := tx.Create(&batch).Error; err != nil {
			return err
		}

		for _, rc := range in.Claims {
			claimID := strings.TrimSpace(rc.ClaimID)
			if claimID == "" {
				return domain.ErrMissingClaimID
			}
			// A remittance can land before its submission; the key is
			// created on first sight either way.
			key, err := s.ensureClaimKey(tx, claimID)
			if err != nil {
				return err
			}

			section := claimsdomain.RemittanceClaim{
				ID:               s.genID.Generate(),
				RemittanceID:     batch.ID,
				ClaimKeyID:       key.ID,
				IDPayer:          rc.IDPayer,
				ProviderID:       rc.ProviderID,
				FacilityID:       rc.FacilityID,
				PaymentReference: rc.PaymentReference,
				DenialCode:       rc.DenialCode,
				DateSettlement:   rc.DateSettlement,
			}
			if err := tx.Create(&section).Error; err != nil {
				return err
			}

			for _, ra := range rc.Activities {
				line := claimsdomain.RemittanceActivity{
					ID:                s.genID.Generate(),
					RemittanceClaimID: section.ID,
					ActivityID:        ra.ActivityID,
					StartAt:           ra.StartAt,
					Type:              ra.Type,
					Code:              ra.Code,
					Quantity:          ra.Quantity,
					Net:               ra.Net,
					ListPrice:         ra.ListPrice,
					Gross:             ra.Gross,
					PatientShare:      ra.PatientShare,
					PaymentAmount:     ra.PaymentAmount,
					DenialCode:        ra.DenialCode,
					Clinician:         ra.Clinician,
				}
				if err := tx.Create(&line).Error; err != nil {
					return err
				}
			}

			eventTime := in.TxAt
			if rc.DateSettlement != nil {
				eventTime = *rc.DateSettlement
			}
			event := claimsdomain.ClaimEvent{
				ID:         s.genID.Generate(),
				ClaimKeyID: key.ID,
				Type:       claimsdomain.EventRemittance,
				EventTime:  eventTime,
			}
			if err := tx.Create(&event).Error; err != nil {
				return err
			}

			timeline := claimsdomain.ClaimStatusTimeline{
				ID:           s.genID.Generate(),
				ClaimKeyID:   key.ID,
				ClaimEventID: event.ID,
				Status:       remittanceStatus(rc),
				StatusTime:   eventTime,
			}
			if err := tx.Create(&timeline).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.log.Info("persisted remittance batch",
		zap.String("remittance_id", batchID.String()),
		zap.Int("claims", len(in.Claims)))
	return batchID, nil
}

// remittanceStatus derives the lifecycle status a batch implies for a
// claim from its own lines. The financial truth still comes from the
// settlement calculator over the full history; this is the timeline
// entry only.
func remittanceStatus(rc domain.RemittanceClaim) claimsdomain.ClaimStatus {
	paid, denied := 0, 0
	for _, line := range rc.Activities {
		if line.DenialCode != "" && !line.PaymentAmount.IsPositive() {
			denied++
			continue
		}
		if line.PaymentAmount.IsPositive() {
			paid++
		}
	}
	switch {
	case paid > 0 && denied == 0:
		return claimsdomain.StatusPaid
	case paid > 0:
		return claimsdomain.StatusPartiallyPaid
	case denied > 0:
		return claimsdomain.StatusRejected
	default:
		return claimsdomain.StatusUnknown
	}
}

func (s *Service) ensureClaimKey(tx *gorm.DB, claimID string) (claimsdomain.ClaimKey, error) {
	var key claimsdomain.ClaimKey
	err := tx.Where("claim_id = ?", claimID).First(&key).Error
	if err == nil {
		return key, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return claimsdomain.ClaimKey{}, err
	}

	key = claimsdomain.ClaimKey{ID: s.genID.Generate(), ClaimID: claimID}
	if err := tx.Create(&key).Error; err != nil {
		if db.IsDuplicateKeyErr(err) {
			// Lost the race to a concurrent ingester; read theirs.
			readErr := tx.Where("claim_id = ?", claimID).First(&key).Error
			return key, readErr
		}
		return claimsdomain.ClaimKey{}, err
	}
	return key, nil
}
