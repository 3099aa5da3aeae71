package rollup

import (
	"go.uber.org/fx"

	"github.com/acmehealth/claimsight/internal/rollup/service"
)

var Module = fx.Module("rollup.service",
	fx.Provide(service.NewService),
)
