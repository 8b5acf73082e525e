package notification

import (
	outboxdomain "github.com/smallbiznis/colegio/internal/outbox/domain"
	"go.uber.org/fx"
)

var Module = fx.Module("notification",
	fx.Provide(
		fx.Annotate(
			NewReceiptPaidHandler,
			fx.As(new(outboxdomain.Handler)),
			fx.ResultTags(`group:"outbox.handlers"`),
		),
	),
)
