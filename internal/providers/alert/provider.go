package alert

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Provider delivers operator alerts.
type Provider interface {
	Notify(ctx context.Context, message string) error
}

type NoOpProvider struct{}

func (p *NoOpProvider) Notify(ctx context.Context, message string) error {
	return nil
}

const raiseTimeout = 10 * time.Second

// Raise sends message in the background. Failures are logged and dropped.
func Raise(p Provider, log *zap.Logger, message string) {
	if p == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), raiseTimeout)
		defer cancel()
		if err := p.Notify(ctx, message); err != nil && log != nil {
			log.Warn("alert delivery failed", zap.Error(err))
		}
	}()
}
