package service

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	claimsdomain "github.com/acmehealth/claimsight/internal/claims/domain"
	"github.com/acmehealth/claimsight/internal/clock"
	obsmetrics "github.com/acmehealth/claimsight/internal/observability/metrics"
	"github.com/acmehealth/claimsight/internal/reporting/aggregate/domain"
	rollupdomain "github.com/acmehealth/claimsight/internal/rollup/domain"
	settlementdomain "github.com/acmehealth/claimsight/internal/settlement/domain"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Claims      claimsdomain.Repository
	Settlements settlementdomain.Service
	Rollups     rollupdomain.Service
	ObsMetrics  *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	claims      claimsdomain.Repository
	settlements settlementdomain.Service
	rollups     rollupdomain.Service
	obsMetrics  *obsmetrics.Metrics
	locks       *monthLock
}

func NewService(p Params) domain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("aggregate.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		claims:      p.Claims,
		settlements: p.Settlements,
		rollups:     p.Rollups,
		obsMetrics:  p.ObsMetrics,
		locks:       newMonthLock(),
	}
}

// RefreshRange rebuilds every report table for the month buckets
// spanned by [from, to]. Settlements and claim rollups are recomputed
// first so every table reads the same collapsed grain, then each table
// is rebuilt in its own transaction; failures are isolated per table
// and joined into one error.
func (s *Service) RefreshRange(ctx context.Context, from, to time.Time) error {
	if from.IsZero() || to.IsZero() {
		return &domain.RefreshError{From: from, To: to, Msg: "missing range bound"}
	}
	if from.After(to) {
		return &domain.RefreshError{From: from, To: to, Msg: "from is after to"}
	}

	months := domain.MonthBuckets(from, to)
	rangeStart := months[0]
	rangeEnd := months[len(months)-1].AddDate(0, 1, 0)

	s.locks.acquire(months)
	defer s.locks.release(months)

	log := s.log.With(
		zap.Time("range_from", rangeStart),
		zap.Time("range_to", rangeEnd),
		zap.Int("month_buckets", len(months)))
	log.Info("refreshing report tables")

	var errs []error
	if err := s.recomputeBase(ctx, rangeStart, rangeEnd); err != nil {
		errs = append(errs, err)
	}

	payments, err := s.paymentsInRange(ctx, rangeStart, rangeEnd)
	if err != nil {
		return errors.Join(append(errs, err)...)
	}
	facts, err := s.activityFactsInRange(ctx, rangeStart, rangeEnd)
	if err != nil {
		return errors.Join(append(errs, err)...)
	}

	now := s.clock.Now().UTC()
	tables := []struct {
		name string
		run  func(tx *gorm.DB) (int, error)
	}{
		{domain.ClaimSummaryRow{}.TableName(), func(tx *gorm.DB) (int, error) {
			rows := domain.BuildClaimSummary(payments, now)
			for i := range rows {
				rows[i].ID = s.genID.Generate()
			}
			return len(rows), replaceRows(tx, &domain.ClaimSummaryRow{}, months, rows)
		}},
		{domain.RejectedClaimsRow{}.TableName(), func(tx *gorm.DB) (int, error) {
			rows := domain.BuildRejectedClaims(payments, now)
			for i := range rows {
				rows[i].ID = s.genID.Generate()
			}
			return len(rows), replaceRows(tx, &domain.RejectedClaimsRow{}, months, rows)
		}},
		{domain.BalanceAgingRow{}.TableName(), func(tx *gorm.DB) (int, error) {
			rows := domain.BuildBalanceAging(payments, now, now)
			for i := range rows {
				rows[i].ID = s.genID.Generate()
			}
			return len(rows), replaceRows(tx, &domain.BalanceAgingRow{}, months, rows)
		}},
		{domain.DoctorDenialRow{}.TableName(), func(tx *gorm.DB) (int, error) {
			rows := domain.BuildDoctorDenial(facts, now)
			for i := range rows {
				rows[i].ID = s.genID.Generate()
			}
			return len(rows), replaceRows(tx, &domain.DoctorDenialRow{}, months, rows)
		}},
	}

	for _, table := range tables {
		if err := s.refreshTable(ctx, table.name, rangeStart, rangeEnd, table.run); err != nil {
			log.Error("table refresh failed", zap.String("table", table.name), zap.Error(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// recomputeBase rebuilds settlements and rollups for every claim key
// touched inside the window. One bad claim never aborts the rest.
func (s *Service) recomputeBase(ctx context.Context, from, to time.Time) error {
	keys, err := s.claims.KeysTouchedBetween(ctx, from, to)
	if err != nil {
		return err
	}

	var errs []error
	for _, key := range keys {
		if _, err := s.settlements.Recompute(ctx, key); err != nil {
			errs = append(errs, err)
			continue
		}
		if _, err := s.rollups.RollupClaim(ctx, key); err != nil {
			// Remittances can land before their submission; those keys
			// have no claim document yet and roll up on a later run.
			if errors.Is(err, claimsdomain.ErrClaimNotFound) {
				continue
			}
			errs = append(errs, err)
		}
	}
	s.log.Debug("recomputed base grain", zap.Int("claims", len(keys)), zap.Int("failures", len(errs)))
	return errors.Join(errs...)
}

func (s *Service) refreshTable(ctx context.Context, name string, from, to time.Time, run func(tx *gorm.DB) (int, error)) error {
	runRow := domain.RefreshRun{
		ID:        s.genID.Generate(),
		Table:     name,
		RangeFrom: from,
		RangeTo:   to,
		Status:    domain.RunStatusRunning,
		StartedAt: s.clock.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&runRow).Error; err != nil {
		return err
	}

	started := s.clock.Now()
	var rowCount int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		n, err := run(tx)
		rowCount = n
		return err
	})
	elapsed := s.clock.Now().Sub(started)

	ended := s.clock.Now().UTC()
	runRow.EndedAt = &ended
	runRow.RowCount = rowCount
	if err != nil {
		runRow.Status = domain.RunStatusFailed
		runRow.Error = err.Error()
	} else {
		runRow.Status = domain.RunStatusSucceeded
	}
	if saveErr := s.db.WithContext(ctx).Save(&runRow).Error; saveErr != nil {
		err = errors.Join(err, saveErr)
	}

	if s.obsMetrics != nil {
		result := "success"
		if err != nil {
			result = "error"
		}
		s.obsMetrics.IncRefreshRun(name, result)
		s.obsMetrics.ObserveRefreshDuration(name, elapsed)
		if err == nil {
			s.obsMetrics.SetRefreshRows(name, rowCount)
			s.obsMetrics.MarkRefreshSuccess(name, ended)
		}
	}
	return err
}

// replaceRows deletes the months being rebuilt and inserts the fresh
// rows, all inside the caller's transaction.
func replaceRows[T any](tx *gorm.DB, model *T, months []time.Time, rows []T) error {
	if err := tx.Where("month_bucket IN ?", months).Delete(model).Error; err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	return tx.Create(&rows).Error
}

func (s *Service) LastRuns(ctx context.Context) ([]domain.RefreshRun, error) {
	var runs []domain.RefreshRun
	err := s.db.WithContext(ctx).
		Raw(`
SELECT r.*
FROM report_refresh_runs r
JOIN (
  SELECT table_name, MAX(started_at) AS started_at
  FROM report_refresh_runs
  GROUP BY table_name
) latest ON latest.table_name = r.table_name AND latest.started_at = r.started_at
ORDER BY r.table_name`).
		Scan(&runs).Error
	return runs, err
}

func (s *Service) LiveClaimSummary(ctx context.Context, from, to time.Time) ([]domain.ClaimSummaryRow, error) {
	payments, err := s.liveWindow(ctx, from, to)
	if err != nil {
		return nil, err
	}
	return domain.BuildClaimSummary(payments, s.clock.Now().UTC()), nil
}

func (s *Service) LiveRejectedClaims(ctx context.Context, from, to time.Time) ([]domain.RejectedClaimsRow, error) {
	payments, err := s.liveWindow(ctx, from, to)
	if err != nil {
		return nil, err
	}
	return domain.BuildRejectedClaims(payments, s.clock.Now().UTC()), nil
}

func (s *Service) LiveBalanceAging(ctx context.Context, from, to time.Time) ([]domain.BalanceAgingRow, error) {
	payments, err := s.liveWindow(ctx, from, to)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now().UTC()
	return domain.BuildBalanceAging(payments, now, now), nil
}

func (s *Service) LiveDoctorDenial(ctx context.Context, from, to time.Time) ([]domain.DoctorDenialRow, error) {
	if from.After(to) {
		return nil, &domain.RefreshError{From: from, To: to, Msg: "from is after to"}
	}
	months := domain.MonthBuckets(from, to)
	_, facts, err := s.liveGrain(ctx, months[0], months[len(months)-1].AddDate(0, 1, 0))
	if err != nil {
		return nil, err
	}
	return domain.BuildDoctorDenial(facts, s.clock.Now().UTC()), nil
}

func (s *Service) liveWindow(ctx context.Context, from, to time.Time) ([]rollupdomain.ClaimPayment, error) {
	if from.After(to) {
		return nil, &domain.RefreshError{From: from, To: to, Msg: "from is after to"}
	}
	months := domain.MonthBuckets(from, to)
	payments, _, err := s.liveGrain(ctx, months[0], months[len(months)-1].AddDate(0, 1, 0))
	return payments, err
}

// liveGrain folds the payments and activity facts for every claim key
// touched inside [from, to) straight from the event tables, without
// writing claim_activity_summary or claim_payments. Remittances
// ingested after the last refresh are visible here immediately.
func (s *Service) liveGrain(ctx context.Context, from, to time.Time) ([]rollupdomain.ClaimPayment, []domain.ActivityFact, error) {
	keys, err := s.claims.KeysTouchedBetween(ctx, from, to)
	if err != nil {
		return nil, nil, err
	}

	var payments []rollupdomain.ClaimPayment
	var facts []domain.ActivityFact
	for _, key := range keys {
		settlements, err := s.settlements.Compute(ctx, key)
		if err != nil {
			return nil, nil, err
		}
		payment, err := s.rollups.Preview(ctx, key, settlements)
		if errors.Is(err, claimsdomain.ErrClaimNotFound) {
			// Remittance-before-submission orphan; no claim document yet.
			continue
		}
		if err != nil {
			return nil, nil, err
		}

		at := payment.SubmittedAt
		if payment.LastSettledAt != nil {
			at = *payment.LastSettledAt
		}
		if at.Before(from) || !at.Before(to) {
			continue
		}
		payments = append(payments, payment)

		// Clinicians come from the latest claim revision; lines it no
		// longer carries keep an empty clinician, matching the refresh
		// path's left join.
		activities, err := s.claims.Activities(ctx, key)
		if err != nil && !errors.Is(err, claimsdomain.ErrClaimNotFound) {
			return nil, nil, err
		}
		clinicians := make(map[string]string, len(activities))
		for _, act := range activities {
			clinicians[act.ActivityID] = act.Clinician
		}
		for _, row := range settlements {
			facts = append(facts, domain.ActivityFact{
				MonthBucket: at,
				FacilityID:  payment.FacilityID,
				Clinician:   clinicians[row.ActivityID],
				Submitted:   row.SubmittedAmount,
				Paid:        row.PaidAmount,
				Denied:      row.DeniedAmount,
				Rejected:    row.ActivityStatus == claimsdomain.ActivityRejected,
			})
		}
	}
	return payments, facts, nil
}

func (s *Service) paymentsInRange(ctx context.Context, from, to time.Time) ([]rollupdomain.ClaimPayment, error) {
	var payments []rollupdomain.ClaimPayment
	err := s.db.WithContext(ctx).
		Where("COALESCE(last_settled_at, submitted_at) >= ? AND COALESCE(last_settled_at, submitted_at) < ?", from, to).
		Order("claim_key_id ASC").
		Find(&payments).Error
	return payments, err
}

// activityFactsInRange joins the settled activity grain with the
// clinician on the billed line and the claim's dimensions. Only the
// latest claim revision contributes lines, so a resubmission never
// doubles an activity.
func (s *Service) activityFactsInRange(ctx context.Context, from, to time.Time) ([]domain.ActivityFact, error) {
	// The effective date is scanned as its two typed columns and
	// coalesced in Go; sqlite returns expression results as TEXT.
	var rows []struct {
		LastSettledAt *time.Time
		SubmittedAt   time.Time
		FacilityID    string
		Clinician     string
		Submitted     decimal.Decimal
		Paid          decimal.Decimal
		Denied        decimal.Decimal
		Status        string
	}
	err := s.db.WithContext(ctx).
		Raw(`
SELECT
  p.last_settled_at AS last_settled_at,
  p.submitted_at AS submitted_at,
  p.facility_id AS facility_id,
  COALESCE(a.clinician, '') AS clinician,
  cas.submitted_amount AS submitted,
  cas.paid_amount AS paid,
  cas.denied_amount AS denied,
  cas.activity_status AS status
FROM claim_activity_summary cas
JOIN claim_payments p ON p.claim_key_id = cas.claim_key_id
LEFT JOIN activities a
  ON a.claim_key_id = cas.claim_key_id AND a.activity_id = cas.activity_id
  AND a.claim_id = (
    SELECT c.id FROM claims c
    WHERE c.claim_key_id = cas.claim_key_id
    ORDER BY c.tx_at DESC, c.id DESC
    LIMIT 1
  )
WHERE COALESCE(p.last_settled_at, p.submitted_at) >= ?
  AND COALESCE(p.last_settled_at, p.submitted_at) < ?
ORDER BY cas.claim_key_id, cas.activity_id`, from, to).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	facts := make([]domain.ActivityFact, 0, len(rows))
	for _, row := range rows {
		bucketAt := row.SubmittedAt
		if row.LastSettledAt != nil {
			bucketAt = *row.LastSettledAt
		}
		facts = append(facts, domain.ActivityFact{
			MonthBucket: bucketAt,
			FacilityID:  row.FacilityID,
			Clinician:   row.Clinician,
			Submitted:   row.Submitted,
			Paid:        row.Paid,
			Denied:      row.Denied,
			Rejected:    claimsdomain.ActivityStatus(row.Status) == claimsdomain.ActivityRejected,
		})
	}
	return facts, nil
}
