package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	claimsdomain "github.com/acmehealth/claimsight/internal/claims/domain"
	"github.com/acmehealth/claimsight/internal/settlement/domain"
)

type Params struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	GenID  *snowflake.Node
	Claims claimsdomain.Repository
}

type Service struct {
	db     *gorm.DB
	log    *zap.Logger
	genID  *snowflake.Node
	claims claimsdomain.Repository
}

func NewService(p Params) domain.Service {
	return &Service{
		db:     p.DB,
		log:    p.Log.Named("settlement.service"),
		genID:  p.GenID,
		claims: p.Claims,
	}
}

// Recompute rebuilds the claim_activity_summary rows for a claim key.
// The settlement of every activity is a pure function of its remittance
// history, so the rebuild is a delete+insert inside one transaction.
func (s *Service) Recompute(ctx context.Context, claimKeyID snowflake.ID) ([]domain.ActivitySettlement, error) {
	rows, err := s.Compute(ctx, claimKeyID)
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("claim_key_id = ?", claimKeyID).
			Delete(&domain.ActivitySettlement{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.Create(&rows).Error
	})
	if err != nil {
		return nil, err
	}

	s.log.Debug("recomputed activity settlements",
		zap.String("claim_key_id", claimKeyID.String()),
		zap.Int("activities", len(rows)))
	return rows, nil
}

// Compute folds the remittance history into settlement rows without
// touching the table.
func (s *Service) Compute(ctx context.Context, claimKeyID snowflake.ID) ([]domain.ActivitySettlement, error) {
	activities, err := s.claims.Activities(ctx, claimKeyID)
	if err != nil && !errors.Is(err, claimsdomain.ErrClaimNotFound) {
		return nil, err
	}
	linesByActivity, err := s.claims.RemittanceLinesByClaimKey(ctx, claimKeyID)
	if err != nil {
		return nil, err
	}

	// Settlement lines can reference activity ids the latest claim
	// document no longer carries (resubmission with dropped lines).
	// Those still get a row, with a zero submitted amount.
	submitted := make(map[string]claimsdomain.Activity, len(activities))
	ids := make([]string, 0, len(activities)+len(linesByActivity))
	for _, act := range activities {
		submitted[act.ActivityID] = act
		ids = append(ids, act.ActivityID)
	}
	for id := range linesByActivity {
		if _, ok := submitted[id]; !ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	now := time.Now().UTC()
	rows := make([]domain.ActivitySettlement, 0, len(ids))
	for _, id := range ids {
		outcome := domain.Calculate(submitted[id].Net, linesByActivity[id])
		rows = append(rows, domain.ActivitySettlement{
			ID:              s.genID.Generate(),
			ClaimKeyID:      claimKeyID,
			ActivityID:      id,
			SubmittedAmount: outcome.SubmittedAmount,
			PaidAmount:      outcome.PaidAmount,
			DeniedAmount:    outcome.DeniedAmount,
			TakenBackAmount: outcome.TakenBackAmount,
			DenialCodes:     datatypes.NewJSONSlice(outcome.DenialCodes),
			RemittanceCount: outcome.RemittanceCount,
			ActivityStatus:  outcome.ActivityStatus,
			LastSettledAt:   outcome.LastSettledAt,
			ComputedAt:      now,
		})
	}
	return rows, nil
}

func (s *Service) Settlements(ctx context.Context, claimKeyID snowflake.ID) ([]domain.ActivitySettlement, error) {
	var rows []domain.ActivitySettlement
	err := s.db.WithContext(ctx).
		Where("claim_key_id = ?", claimKeyID).
		Order("activity_id ASC").
		Find(&rows).Error
	return rows, err
}
