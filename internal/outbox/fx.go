package outbox

import (
	"context"

	outboxdomain "github.com/smallbiznis/colegio/internal/outbox/domain"
	"github.com/smallbiznis/colegio/internal/outbox/repository"
	"go.uber.org/fx"
)

// StoreModule lets a process enqueue messages without delivering them.
var StoreModule = fx.Module("outbox.store",
	fx.Provide(repository.Provide),
)

var Module = fx.Module("outbox",
	StoreModule,
	fx.Provide(ProvideConfig),
	fx.Provide(New),
	fx.Provide(func(d *Dispatcher) outboxdomain.Waker { return d }),
	fx.Invoke(RunDispatcher),
)

func RunDispatcher(lc fx.Lifecycle, d *Dispatcher) {
	var cancel context.CancelFunc
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			var ctx context.Context
			ctx, cancel = context.WithCancel(context.Background())
			go func() {
				defer close(done)
				d.RunForever(ctx)
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if cancel == nil {
				return nil
			}
			cancel()
			select {
			case <-done:
			case <-ctx.Done():
			}
			return nil
		},
	})
}
