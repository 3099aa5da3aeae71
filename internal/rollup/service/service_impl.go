package service

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	claimsdomain "github.com/acmehealth/claimsight/internal/claims/domain"
	obsmetrics "github.com/acmehealth/claimsight/internal/observability/metrics"
	"github.com/acmehealth/claimsight/internal/rollup/domain"
	settlementdomain "github.com/acmehealth/claimsight/internal/settlement/domain"
)

var ErrPaymentNotFound = errors.New("rollup: claim payment not found")

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Claims      claimsdomain.Repository
	Settlements settlementdomain.Service
	ObsMetrics  *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	claims      claimsdomain.Repository
	settlements settlementdomain.Service
	obsMetrics  *obsmetrics.Metrics
}

func NewService(p Params) domain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("rollup.service"),
		genID:       p.GenID,
		claims:      p.Claims,
		settlements: p.Settlements,
		obsMetrics:  p.ObsMetrics,
	}
}

func (s *Service) RollupClaim(ctx context.Context, claimKeyID snowflake.ID) (domain.ClaimPayment, error) {
	settlements, err := s.settlements.Settlements(ctx, claimKeyID)
	if err != nil {
		return domain.ClaimPayment{}, err
	}
	payment, err := s.assemble(ctx, claimKeyID, settlements)
	if err != nil {
		return domain.ClaimPayment{}, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("claim_key_id = ?", claimKeyID).
			Delete(&domain.ClaimPayment{}).Error; err != nil {
			return err
		}
		return tx.Create(&payment).Error
	})
	if err != nil {
		return domain.ClaimPayment{}, err
	}
	return payment, nil
}

// Preview assembles the rollup from caller-supplied settlement rows and
// never writes it. Live report reads pair it with a fresh settlement
// fold so remittances ingested after the last refresh are counted.
func (s *Service) Preview(ctx context.Context, claimKeyID snowflake.ID, settlements []settlementdomain.ActivitySettlement) (domain.ClaimPayment, error) {
	return s.assemble(ctx, claimKeyID, settlements)
}

func (s *Service) assemble(ctx context.Context, claimKeyID snowflake.ID, settlements []settlementdomain.ActivitySettlement) (domain.ClaimPayment, error) {
	header, err := s.claims.Header(ctx, claimKeyID)
	if err != nil {
		return domain.ClaimPayment{}, err
	}
	status, err := s.claims.CurrentStatus(ctx, claimKeyID)
	if err != nil {
		return domain.ClaimPayment{}, err
	}
	events, err := s.claims.Events(ctx, claimKeyID)
	if err != nil {
		return domain.ClaimPayment{}, err
	}
	denialCode, _, err := s.claims.DenialMeta(ctx, claimKeyID)
	if err != nil {
		return domain.ClaimPayment{}, err
	}
	firstSettled, _, err := s.claims.SettlementSpan(ctx, claimKeyID)
	if err != nil {
		return domain.ClaimPayment{}, err
	}

	resubmissions := 0
	for _, ev := range events {
		if ev.Event.Type == claimsdomain.EventResubmission {
			resubmissions++
		}
	}

	totals := domain.Fold(settlements)
	if totals.PendingClamped {
		s.log.Warn("pending amount clamped to zero",
			zap.String("claim_key_id", claimKeyID.String()),
			zap.String("total_submitted", totals.TotalSubmitted.String()),
			zap.String("total_paid", totals.TotalPaid.String()),
			zap.String("total_rejected", totals.TotalRejected.String()))
		if s.obsMetrics != nil {
			s.obsMetrics.IncDataQualityWarning("negative_pending_amount")
		}
	}

	payment := domain.ClaimPayment{
		ID:         s.genID.Generate(),
		ClaimKeyID: claimKeyID,
		ClaimID:    header.ClaimKey.ClaimID,

		FacilityID:    header.Encounter.FacilityID,
		PayerID:       header.Claim.PayerID,
		ProviderID:    header.Claim.ProviderID,
		EncounterType: header.Encounter.Type,

		ClaimNet:       header.Claim.Net,
		TotalSubmitted: totals.TotalSubmitted,
		TotalPaid:      totals.TotalPaid,
		TotalRejected:  totals.TotalRejected,
		TotalTakenBack: totals.TotalTakenBack,
		PendingAmount:  totals.PendingAmount,

		PaymentStatus:     totals.PaymentStatus,
		LifecycleStatus:   status,
		DenialCode:        denialCode,
		RemittanceCount:   totals.RemittanceCount,
		ResubmissionCount: resubmissions,

		SubmittedAt:      header.Claim.TxAt,
		EncounterStartAt: header.Encounter.StartAt,
		FirstSettledAt:   firstSettled,
		LastSettledAt:    totals.LastSettledAt,
		ComputedAt:       time.Now().UTC(),
	}
	if firstSettled != nil {
		days := int(firstSettled.Sub(header.Claim.TxAt).Hours() / 24)
		if days < 0 {
			days = 0
		}
		payment.DaysToFirstPayment = days
	}
	return payment, nil
}

func (s *Service) Payment(ctx context.Context, claimKeyID snowflake.ID) (domain.ClaimPayment, error) {
	var payment domain.ClaimPayment
	err := s.db.WithContext(ctx).
		Where("claim_key_id = ?", claimKeyID).
		First(&payment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ClaimPayment{}, ErrPaymentNotFound
	}
	return payment, err
}
