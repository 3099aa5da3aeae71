package query

import "go.uber.org/fx"

var Module = fx.Module("reporting.query",
	fx.Provide(New),
)
