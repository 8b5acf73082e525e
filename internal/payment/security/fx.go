package security

import (
	"context"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/colegio/internal/clock"
	paymentdomain "github.com/smallbiznis/colegio/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const sweepInterval = time.Minute

var Module = fx.Module("payment.security",
	fx.Provide(NewNonceStore),
	fx.Provide(NewVerifier),
	fx.Provide(func(v *Verifier) paymentdomain.Verifier { return v }),
)

type NonceStoreParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Clock     clock.Clock
	Log       *zap.Logger
	Redis     *redis.Client `optional:"true"`
}

// NewNonceStore uses redis when a client is configured, else an in-process
// store swept in the background.
func NewNonceStore(p NonceStoreParams) NonceStore {
	log := p.Log.Named("payment.security")
	if p.Redis != nil {
		log.Info("webhook nonces stored in redis")
		return NewRedisNonceStore(p.Redis)
	}

	log.Warn("webhook nonces kept in process memory; replays across instances are not detected")
	store := NewMemoryNonceStore(p.Clock)

	var cancel context.CancelFunc
	p.Lifecycle.Append(fx.Hook{
		OnStart: func(context.Context) error {
			var ctx context.Context
			ctx, cancel = context.WithCancel(context.Background())
			go store.RunSweeper(ctx, sweepInterval)
			return nil
		},
		OnStop: func(context.Context) error {
			if cancel != nil {
				cancel()
			}
			return nil
		},
	})
	return store
}
