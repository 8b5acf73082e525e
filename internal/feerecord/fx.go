package feerecord

import (
	"github.com/smallbiznis/colegio/internal/feerecord/repository"
	"github.com/smallbiznis/colegio/internal/feerecord/service"
	"go.uber.org/fx"
)

var Module = fx.Module("feerecord.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
