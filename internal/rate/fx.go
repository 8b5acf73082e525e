package rate

import (
	"github.com/smallbiznis/colegio/internal/rate/repository"
	"github.com/smallbiznis/colegio/internal/rate/service"
	"go.uber.org/fx"
)

var Module = fx.Module("rate.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
