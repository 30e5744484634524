package paysession

import "go.uber.org/fx"

var Module = fx.Module("paysession",
	fx.Provide(New),
)
