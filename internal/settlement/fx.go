package settlement

import (
	"go.uber.org/fx"

	"github.com/acmehealth/claimsight/internal/settlement/service"
)

var Module = fx.Module("settlement.service",
	fx.Provide(service.NewService),
)
