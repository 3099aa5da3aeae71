package migration

import (
	"go.uber.org/fx"
	"gorm.io/gorm"

	claimsdomain "github.com/acmehealth/claimsight/internal/claims/domain"
	"github.com/acmehealth/claimsight/internal/config"
	refdatadomain "github.com/acmehealth/claimsight/internal/refdata/domain"
	aggdomain "github.com/acmehealth/claimsight/internal/reporting/aggregate/domain"
	rollupdomain "github.com/acmehealth/claimsight/internal/rollup/domain"
	settlementdomain "github.com/acmehealth/claimsight/internal/settlement/domain"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType != "postgres" {
			// mysql and sqlite are dev conveniences, let gorm manage them.
			return autoMigrate(conn)
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}),
)

func autoMigrate(conn *gorm.DB) error {
	return conn.AutoMigrate(
		&claimsdomain.ClaimKey{},
		&claimsdomain.Claim{},
		&claimsdomain.Encounter{},
		&claimsdomain.Activity{},
		&claimsdomain.ClaimEvent{},
		&claimsdomain.ClaimResubmission{},
		&claimsdomain.ClaimStatusTimeline{},
		&claimsdomain.Remittance{},
		&claimsdomain.RemittanceClaim{},
		&claimsdomain.RemittanceActivity{},
		&settlementdomain.ActivitySettlement{},
		&rollupdomain.ClaimPayment{},
		&aggdomain.ClaimSummaryRow{},
		&aggdomain.RejectedClaimsRow{},
		&aggdomain.BalanceAgingRow{},
		&aggdomain.DoctorDenialRow{},
		&aggdomain.RefreshRun{},
		&refdatadomain.ReferenceItem{},
	)
}
