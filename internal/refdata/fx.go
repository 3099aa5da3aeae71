package refdata

import (
	"go.uber.org/fx"

	"github.com/acmehealth/claimsight/internal/refdata/service"
)

var Module = fx.Module("refdata.service",
	fx.Provide(service.NewService),
)
