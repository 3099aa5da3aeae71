package claims

import (
	"go.uber.org/fx"

	"github.com/acmehealth/claimsight/internal/claims/repository"
)

var Module = fx.Module("claims.repository",
	fx.Provide(repository.New),
)
