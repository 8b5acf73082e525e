package payment

import (
	"github.com/smallbiznis/colegio/internal/config"
	"github.com/smallbiznis/colegio/internal/payment/adapters"
	"github.com/smallbiznis/colegio/internal/payment/adapters/bolsa"
	"github.com/smallbiznis/colegio/internal/payment/adapters/mercadopago"
	paymentdomain "github.com/smallbiznis/colegio/internal/payment/domain"
	"github.com/smallbiznis/colegio/internal/payment/security"
	"github.com/smallbiznis/colegio/internal/payment/webhook"
	"go.uber.org/fx"
)

var Module = fx.Module("payment.service",
	security.Module,
	fx.Provide(func(cfg config.Config) paymentdomain.StatusClient {
		return mercadopago.NewClient(mercadopago.ClientConfig{
			AccessToken: cfg.MercadoPago.AccessToken,
			BaseURL:     cfg.MercadoPago.BaseURL,
			Timeout:     cfg.MercadoPago.Timeout,
		})
	}),
	fx.Provide(mercadopago.NewAdapter),
	fx.Provide(bolsa.NewAdapter),
	fx.Provide(func(mp *mercadopago.Adapter, bcm *bolsa.Adapter) *adapters.Registry {
		return adapters.NewRegistry(mp, bcm)
	}),
	fx.Provide(webhook.NewService),
)
