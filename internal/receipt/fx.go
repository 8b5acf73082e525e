package receipt

import (
	"github.com/smallbiznis/colegio/internal/receipt/repository"
	"github.com/smallbiznis/colegio/internal/receipt/service"
	"go.uber.org/fx"
)

var Module = fx.Module("receipt.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
