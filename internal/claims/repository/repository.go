package repository

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/acmehealth/claimsight/internal/claims/domain"
)

type Params struct {
	fx.In

	DB  *gorm.DB
	Log *zap.Logger
}

type Repository struct {
	db  *gorm.DB
	log *zap.Logger
}

func New(p Params) domain.Repository {
	return &Repository{
		db:  p.DB,
		log: p.Log.Named("claims.repository"),
	}
}

func (r *Repository) ClaimKeyByExternalID(ctx context.Context, claimID string) (domain.ClaimKey, error) {
	var key domain.ClaimKey
	err := r.db.WithContext(ctx).Where("claim_id = ?", claimID).First(&key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ClaimKey{}, domain.ErrClaimKeyNotFound
	}
	return key, err
}

func (r *Repository) Header(ctx context.Context, claimKeyID snowflake.ID) (domain.ClaimHeader, error) {
	var header domain.ClaimHeader
	if err := r.db.WithContext(ctx).First(&header.ClaimKey, "id = ?", claimKeyID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ClaimHeader{}, domain.ErrClaimKeyNotFound
		}
		return domain.ClaimHeader{}, err
	}

	err := r.db.WithContext(ctx).
		Where("claim_key_id = ?", claimKeyID).
		Order("tx_at DESC, id DESC").
		First(&header.Claim).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ClaimHeader{}, domain.ErrClaimNotFound
	}
	if err != nil {
		return domain.ClaimHeader{}, err
	}

	err = r.db.WithContext(ctx).
		Where("claim_id = ?", header.Claim.ID).
		First(&header.Encounter).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ClaimHeader{}, err
	}
	return header, nil
}

func (r *Repository) Activities(ctx context.Context, claimKeyID snowflake.ID) ([]domain.Activity, error) {
	var claim domain.Claim
	err := r.db.WithContext(ctx).
		Where("claim_key_id = ?", claimKeyID).
		Order("tx_at DESC, id DESC").
		First(&claim).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrClaimNotFound
	}
	if err != nil {
		return nil, err
	}

	var activities []domain.Activity
	err = r.db.WithContext(ctx).
		Where("claim_id = ?", claim.ID).
		Order("activity_id ASC").
		Find(&activities).Error
	return activities, err
}

// lineRow is the join projection for settlement lines. The effective
// date is resolved in SQL so ordering matches month bucketing.
type lineRow struct {
	LineID         snowflake.ID
	RemittanceID   snowflake.ID
	ActivityID     string
	PaymentAmount  decimal.Decimal
	DenialCode     string
	SettlementDate *time.Time
	BatchTxAt      time.Time
}

const lineSelect = `
SELECT
  ra.id AS line_id,
  rc.remittance_id AS remittance_id,
  ra.activity_id AS activity_id,
  ra.payment_amount AS payment_amount,
  ra.denial_code AS denial_code,
  rc.date_settlement AS settlement_date,
  r.tx_at AS batch_tx_at
FROM remittance_activities ra
JOIN remittance_claims rc ON rc.id = ra.remittance_claim_id
JOIN remittances r ON r.id = rc.remittance_id
WHERE rc.claim_key_id = ?`

func (r *Repository) RemittanceLines(ctx context.Context, claimKeyID snowflake.ID, activityID string) ([]domain.RemittanceLine, error) {
	var rows []lineRow
	err := r.db.WithContext(ctx).
		Raw(lineSelect+` AND ra.activity_id = ?
ORDER BY COALESCE(rc.date_settlement, r.tx_at) ASC, ra.id ASC`, claimKeyID, activityID).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	lines := make([]domain.RemittanceLine, 0, len(rows))
	for _, row := range rows {
		lines = append(lines, toLine(row))
	}
	return lines, nil
}

func (r *Repository) RemittanceLinesByClaimKey(ctx context.Context, claimKeyID snowflake.ID) (map[string][]domain.RemittanceLine, error) {
	var rows []lineRow
	err := r.db.WithContext(ctx).
		Raw(lineSelect+`
ORDER BY COALESCE(rc.date_settlement, r.tx_at) ASC, ra.id ASC`, claimKeyID).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	grouped := make(map[string][]domain.RemittanceLine)
	for _, row := range rows {
		grouped[row.ActivityID] = append(grouped[row.ActivityID], toLine(row))
	}
	return grouped, nil
}

func (r *Repository) Events(ctx context.Context, claimKeyID snowflake.ID) ([]domain.EventWithDetail, error) {
	var events []domain.ClaimEvent
	err := r.db.WithContext(ctx).
		Where("claim_key_id = ?", claimKeyID).
		Order("event_time ASC, id ASC").
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, nil
	}

	eventIDs := make([]snowflake.ID, 0, len(events))
	for _, ev := range events {
		eventIDs = append(eventIDs, ev.ID)
	}

	var resubmissions []domain.ClaimResubmission
	err = r.db.WithContext(ctx).
		Where("claim_event_id IN ?", eventIDs).
		Find(&resubmissions).Error
	if err != nil {
		return nil, err
	}
	byEvent := make(map[snowflake.ID]*domain.ClaimResubmission, len(resubmissions))
	for i := range resubmissions {
		byEvent[resubmissions[i].ClaimEventID] = &resubmissions[i]
	}

	out := make([]domain.EventWithDetail, 0, len(events))
	for _, ev := range events {
		out = append(out, domain.EventWithDetail{Event: ev, Resubmission: byEvent[ev.ID]})
	}
	return out, nil
}

func (r *Repository) StatusTimeline(ctx context.Context, claimKeyID snowflake.ID) ([]domain.ClaimStatusTimeline, error) {
	var timeline []domain.ClaimStatusTimeline
	err := r.db.WithContext(ctx).
		Where("claim_key_id = ?", claimKeyID).
		Order("status_time ASC, id ASC").
		Find(&timeline).Error
	return timeline, err
}

func (r *Repository) CurrentStatus(ctx context.Context, claimKeyID snowflake.ID) (domain.ClaimStatus, error) {
	var row domain.ClaimStatusTimeline
	err := r.db.WithContext(ctx).
		Where("claim_key_id = ?", claimKeyID).
		Order("status_time DESC, id DESC").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.StatusUnknown, nil
	}
	if err != nil {
		return domain.StatusUnknown, err
	}
	return row.Status, nil
}

func (r *Repository) DenialMeta(ctx context.Context, claimKeyID snowflake.ID) (string, *time.Time, error) {
	var row struct {
		DenialCode     string
		SettlementDate *time.Time
	}
	err := r.db.WithContext(ctx).
		Raw(`
SELECT rc.denial_code AS denial_code, rc.date_settlement AS settlement_date
FROM remittance_claims rc
JOIN remittances r ON r.id = rc.remittance_id
WHERE rc.claim_key_id = ?
ORDER BY COALESCE(rc.date_settlement, r.tx_at) DESC, rc.id DESC
LIMIT 1`, claimKeyID).
		Scan(&row).Error
	if err != nil {
		return "", nil, err
	}
	return row.DenialCode, row.SettlementDate, nil
}

// SettlementSpan returns the earliest and latest effective settlement
// dates of a claim key. The min/max fold over the effective date runs
// in Go: sqlite reports expression results as TEXT, which does not
// scan into time.Time.
func (r *Repository) SettlementSpan(ctx context.Context, claimKeyID snowflake.ID) (*time.Time, *time.Time, error) {
	var rows []struct {
		SettlementDate *time.Time
		BatchTxAt      time.Time
	}
	err := r.db.WithContext(ctx).
		Raw(`
SELECT rc.date_settlement AS settlement_date, r.tx_at AS batch_tx_at
FROM remittance_claims rc
JOIN remittances r ON r.id = rc.remittance_id
WHERE rc.claim_key_id = ?`, claimKeyID).
		Scan(&rows).Error
	if err != nil {
		return nil, nil, err
	}

	var first, last *time.Time
	for _, row := range rows {
		at := row.BatchTxAt
		if row.SettlementDate != nil {
			at = *row.SettlementDate
		}
		if first == nil || at.Before(*first) {
			settled := at
			first = &settled
		}
		if last == nil || at.After(*last) {
			settled := at
			last = &settled
		}
	}
	return first, last, nil
}

func (r *Repository) KeysTouchedBetween(ctx context.Context, from, to time.Time) ([]snowflake.ID, error) {
	var submitted []snowflake.ID
	err := r.db.WithContext(ctx).
		Model(&domain.Claim{}).
		Where("tx_at >= ? AND tx_at < ?", from, to).
		Distinct().
		Pluck("claim_key_id", &submitted).Error
	if err != nil {
		return nil, err
	}

	var settled []snowflake.ID
	err = r.db.WithContext(ctx).
		Raw(`
SELECT DISTINCT rc.claim_key_id
FROM remittance_claims rc
JOIN remittances r ON r.id = rc.remittance_id
WHERE COALESCE(rc.date_settlement, r.tx_at) >= ?
  AND COALESCE(rc.date_settlement, r.tx_at) < ?`, from, to).
		Scan(&settled).Error
	if err != nil {
		return nil, err
	}

	seen := make(map[snowflake.ID]struct{}, len(submitted)+len(settled))
	keys := make([]snowflake.ID, 0, len(submitted)+len(settled))
	for _, id := range append(submitted, settled...) {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		keys = append(keys, id)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys, nil
}

func toLine(row lineRow) domain.RemittanceLine {
	return domain.RemittanceLine{
		LineID:         row.LineID,
		RemittanceID:   row.RemittanceID,
		PaymentAmount:  row.PaymentAmount,
		DenialCode:     row.DenialCode,
		SettlementDate: row.SettlementDate,
		BatchTxAt:      row.BatchTxAt,
	}
}
