package daraja

import (
	"github.com/wakilihq/paygate/internal/daraja/service"
	"go.uber.org/fx"
)

var Module = fx.Module("daraja.service",
	fx.Provide(service.New),
)
