package aggregate

import (
	"go.uber.org/fx"

	"github.com/acmehealth/claimsight/internal/reporting/aggregate/service"
)

var Module = fx.Module("aggregate.service",
	fx.Provide(service.NewService),
)
