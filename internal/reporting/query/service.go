package query

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	claimsdomain "github.com/acmehealth/claimsight/internal/claims/domain"
	"github.com/acmehealth/claimsight/internal/clock"
	obsmetrics "github.com/acmehealth/claimsight/internal/observability/metrics"
	aggdomain "github.com/acmehealth/claimsight/internal/reporting/aggregate/domain"
	rollupdomain "github.com/acmehealth/claimsight/internal/rollup/domain"
	settlementdomain "github.com/acmehealth/claimsight/internal/settlement/domain"
	"github.com/acmehealth/claimsight/pkg/db/pagination"
)

// Result is one page of report rows.
type Result[T any] struct {
	Rows []T                 `json:"rows"`
	Page pagination.PageInfo `json:"page"`
}

// ClaimDetail is the per-claim drill-down: the rollup, its activity
// settlements and the lifecycle history.
type ClaimDetail struct {
	ClaimID     string                              `json:"claim_id"`
	Payment     rollupdomain.ClaimPayment           `json:"payment"`
	Settlements []settlementdomain.ActivitySettlement `json:"settlements"`
	Timeline    []claimsdomain.ClaimStatusTimeline  `json:"timeline"`
	Events      []claimsdomain.EventWithDetail      `json:"events"`
}

// FilterOptions are the distinct dimension values reports can filter
// on.
type FilterOptions struct {
	Facilities []string `json:"facilities"`
	Payers     []string `json:"payers"`
	Clinicians []string `json:"clinicians"`
}

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	Clock       clock.Clock
	Claims      claimsdomain.Repository
	Settlements settlementdomain.Service
	Rollups     rollupdomain.Service
	Aggregates  aggdomain.Service
	ObsMetrics  *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	clock       clock.Clock
	claims      claimsdomain.Repository
	settlements settlementdomain.Service
	rollups     rollupdomain.Service
	aggregates  aggdomain.Service
	obsMetrics  *obsmetrics.Metrics
}

func New(p Params) *Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("reporting.query"),
		clock:       p.Clock,
		claims:      p.Claims,
		settlements: p.Settlements,
		rollups:     p.Rollups,
		aggregates:  p.Aggregates,
		obsMetrics:  p.ObsMetrics,
	}
}

func (s *Service) observe(report string, mode Mode, started time.Time) {
	if s.obsMetrics == nil {
		return
	}
	s.obsMetrics.IncReportQuery(report, string(mode))
	s.obsMetrics.ObserveReportDuration(report, string(mode), time.Since(started))
}

func (s *Service) ClaimSummary(ctx context.Context, f Filters) (Result[aggdomain.ClaimSummaryRow], error) {
	started := time.Now()
	defer s.observe("claim_summary", f.mode(), started)

	column, err := f.validate("claim_summary", claimSummarySort)
	if err != nil {
		return Result[aggdomain.ClaimSummaryRow]{}, err
	}
	from, to := f.window(s.clock.Now())

	if f.mode() == ModeLive {
		rows, err := s.aggregates.LiveClaimSummary(ctx, from, to)
		if err != nil {
			return Result[aggdomain.ClaimSummaryRow]{}, err
		}
		rows = filterInMemory(rows, func(r aggdomain.ClaimSummaryRow) bool {
			return matches(f.FacilityID, r.FacilityID) && matches(f.PayerID, r.PayerID)
		})
		sortClaimSummary(rows, column, f.SortDesc)
		return page(rows, f.Page), nil
	}

	q := s.reportScope(ctx, &aggdomain.ClaimSummaryRow{}, f, from, to)
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return Result[aggdomain.ClaimSummaryRow]{}, err
	}
	var rows []aggdomain.ClaimSummaryRow
	err = q.Order(f.orderClause(column)).
		Limit(f.Page.Normalize().Size).
		Offset(f.Page.Offset()).
		Find(&rows).Error
	if err != nil {
		return Result[aggdomain.ClaimSummaryRow]{}, err
	}
	return Result[aggdomain.ClaimSummaryRow]{Rows: rows, Page: f.Page.Info(total)}, nil
}

func (s *Service) RejectedClaims(ctx context.Context, f Filters) (Result[aggdomain.RejectedClaimsRow], error) {
	started := time.Now()
	defer s.observe("rejected_claims", f.mode(), started)

	column, err := f.validate("rejected_claims", rejectedClaimsSort)
	if err != nil {
		return Result[aggdomain.RejectedClaimsRow]{}, err
	}
	from, to := f.window(s.clock.Now())

	if f.mode() == ModeLive {
		rows, err := s.aggregates.LiveRejectedClaims(ctx, from, to)
		if err != nil {
			return Result[aggdomain.RejectedClaimsRow]{}, err
		}
		rows = filterInMemory(rows, func(r aggdomain.RejectedClaimsRow) bool {
			return matches(f.FacilityID, r.FacilityID) && matches(f.PayerID, r.PayerID)
		})
		sortRejectedClaims(rows, column, f.SortDesc)
		return page(rows, f.Page), nil
	}

	q := s.reportScope(ctx, &aggdomain.RejectedClaimsRow{}, f, from, to)
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return Result[aggdomain.RejectedClaimsRow]{}, err
	}
	var rows []aggdomain.RejectedClaimsRow
	err = q.Order(f.orderClause(column)).
		Limit(f.Page.Normalize().Size).
		Offset(f.Page.Offset()).
		Find(&rows).Error
	if err != nil {
		return Result[aggdomain.RejectedClaimsRow]{}, err
	}
	return Result[aggdomain.RejectedClaimsRow]{Rows: rows, Page: f.Page.Info(total)}, nil
}

func (s *Service) BalanceAging(ctx context.Context, f Filters) (Result[aggdomain.BalanceAgingRow], error) {
	started := time.Now()
	defer s.observe("balance_aging", f.mode(), started)

	column, err := f.validate("balance_aging", balanceAgingSort)
	if err != nil {
		return Result[aggdomain.BalanceAgingRow]{}, err
	}
	from, to := f.window(s.clock.Now())

	if f.mode() == ModeLive {
		rows, err := s.aggregates.LiveBalanceAging(ctx, from, to)
		if err != nil {
			return Result[aggdomain.BalanceAgingRow]{}, err
		}
		rows = filterInMemory(rows, func(r aggdomain.BalanceAgingRow) bool {
			return matches(f.FacilityID, r.FacilityID) && matches(f.PayerID, r.PayerID)
		})
		sortBalanceAging(rows, column, f.SortDesc)
		return page(rows, f.Page), nil
	}

	q := s.reportScope(ctx, &aggdomain.BalanceAgingRow{}, f, from, to)
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return Result[aggdomain.BalanceAgingRow]{}, err
	}
	var rows []aggdomain.BalanceAgingRow
	err = q.Order(f.orderClause(column)).
		Limit(f.Page.Normalize().Size).
		Offset(f.Page.Offset()).
		Find(&rows).Error
	if err != nil {
		return Result[aggdomain.BalanceAgingRow]{}, err
	}
	return Result[aggdomain.BalanceAgingRow]{Rows: rows, Page: f.Page.Info(total)}, nil
}

func (s *Service) DoctorDenial(ctx context.Context, f Filters) (Result[aggdomain.DoctorDenialRow], error) {
	started := time.Now()
	defer s.observe("doctor_denial", f.mode(), started)

	column, err := f.validate("doctor_denial", doctorDenialSort)
	if err != nil {
		return Result[aggdomain.DoctorDenialRow]{}, err
	}
	from, to := f.window(s.clock.Now())

	if f.mode() == ModeLive {
		rows, err := s.aggregates.LiveDoctorDenial(ctx, from, to)
		if err != nil {
			return Result[aggdomain.DoctorDenialRow]{}, err
		}
		rows = filterInMemory(rows, func(r aggdomain.DoctorDenialRow) bool {
			return matches(f.FacilityID, r.FacilityID) && matches(f.Clinician, r.Clinician)
		})
		sortDoctorDenial(rows, column, f.SortDesc)
		return page(rows, f.Page), nil
	}

	q := s.db.WithContext(ctx).Model(&aggdomain.DoctorDenialRow{}).
		Where("month_bucket >= ? AND month_bucket <= ?",
			aggdomain.MonthBucket(from), aggdomain.MonthBucket(to))
	if f.FacilityID != "" {
		q = q.Where("facility_id = ?", f.FacilityID)
	}
	if f.Clinician != "" {
		q = q.Where("clinician = ?", f.Clinician)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return Result[aggdomain.DoctorDenialRow]{}, err
	}
	var rows []aggdomain.DoctorDenialRow
	err = q.Order(f.orderClause(column)).
		Limit(f.Page.Normalize().Size).
		Offset(f.Page.Offset()).
		Find(&rows).Error
	if err != nil {
		return Result[aggdomain.DoctorDenialRow]{}, err
	}
	return Result[aggdomain.DoctorDenialRow]{Rows: rows, Page: f.Page.Info(total)}, nil
}

// RemittanceDetail resolves an external claim id into its full
// financial story: rollup, per-activity settlements, lifecycle.
func (s *Service) RemittanceDetail(ctx context.Context, claimID string) (ClaimDetail, error) {
	started := time.Now()
	defer s.observe("remittance_detail", ModeAggregate, started)

	key, err := s.claims.ClaimKeyByExternalID(ctx, claimID)
	if err != nil {
		return ClaimDetail{}, err
	}
	payment, err := s.rollups.Payment(ctx, key.ID)
	if err != nil {
		return ClaimDetail{}, err
	}
	settlements, err := s.settlements.Settlements(ctx, key.ID)
	if err != nil {
		return ClaimDetail{}, err
	}
	timeline, err := s.claims.StatusTimeline(ctx, key.ID)
	if err != nil {
		return ClaimDetail{}, err
	}
	events, err := s.claims.Events(ctx, key.ID)
	if err != nil {
		return ClaimDetail{}, err
	}
	return ClaimDetail{
		ClaimID:     claimID,
		Payment:     payment,
		Settlements: settlements,
		Timeline:    timeline,
		Events:      events,
	}, nil
}

// Options lists the distinct filterable dimension values.
func (s *Service) Options(ctx context.Context) (FilterOptions, error) {
	var opts FilterOptions
	err := s.db.WithContext(ctx).Model(&rollupdomain.ClaimPayment{}).
		Where("facility_id <> ''").
		Distinct().Order("facility_id").
		Pluck("facility_id", &opts.Facilities).Error
	if err != nil {
		return FilterOptions{}, err
	}
	err = s.db.WithContext(ctx).Model(&rollupdomain.ClaimPayment{}).
		Where("payer_id <> ''").
		Distinct().Order("payer_id").
		Pluck("payer_id", &opts.Payers).Error
	if err != nil {
		return FilterOptions{}, err
	}
	err = s.db.WithContext(ctx).Model(&claimsdomain.Activity{}).
		Where("clinician <> ''").
		Distinct().Order("clinician").
		Pluck("clinician", &opts.Clinicians).Error
	if err != nil {
		return FilterOptions{}, err
	}
	return opts, nil
}

// reportScope applies the shared month-bucket and dimension filters
// for the facility/payer grain tables.
func (s *Service) reportScope(ctx context.Context, model any, f Filters, from, to time.Time) *gorm.DB {
	q := s.db.WithContext(ctx).Model(model).
		Where("month_bucket >= ? AND month_bucket <= ?",
			aggdomain.MonthBucket(from), aggdomain.MonthBucket(to))
	if f.FacilityID != "" {
		q = q.Where("facility_id = ?", f.FacilityID)
	}
	if f.PayerID != "" {
		q = q.Where("payer_id = ?", f.PayerID)
	}
	return q
}

func matches(filter, value string) bool {
	return filter == "" || filter == value
}

func filterInMemory[T any](rows []T, keep func(T) bool) []T {
	out := rows[:0:0]
	for _, row := range rows {
		if keep(row) {
			out = append(out, row)
		}
	}
	return out
}

func page[T any](rows []T, p pagination.Page) Result[T] {
	return Result[T]{
		Rows: pagination.Slice(rows, p),
		Page: p.Info(int64(len(rows))),
	}
}
