package liquidation

import (
	"github.com/smallbiznis/colegio/internal/liquidation/service"
	"go.uber.org/fx"
)

var Module = fx.Module("liquidation.service",
	fx.Provide(service.New),
)
