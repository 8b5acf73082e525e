package outbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/smallbiznis/colegio/internal/clock"
	"github.com/smallbiznis/colegio/internal/observability/metrics"
	outboxdomain "github.com/smallbiznis/colegio/internal/outbox/domain"
	"github.com/smallbiznis/colegio/internal/providers/alert"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrInvalidConfig = errors.New("outbox_invalid_config")

const maxErrorLength = 1000

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Clock    clock.Clock
	Repo     outboxdomain.Repository
	Handlers []outboxdomain.Handler `group:"outbox.handlers"`
	Config   Config                 `optional:"true"`
	Alert    alert.Provider         `optional:"true"`
	Metrics  *metrics.Metrics       `optional:"true"`
}

// Dispatcher delivers outbox messages at least once. Delivery runs outside
// the transaction that enqueued the message.
type Dispatcher struct {
	db       *gorm.DB
	log      *zap.Logger
	cfg      Config
	clock    clock.Clock
	repo     outboxdomain.Repository
	handlers map[string]outboxdomain.Handler
	alert    alert.Provider
	metrics  *metrics.Metrics
	wake     chan struct{}
}

func New(p Params) (*Dispatcher, error) {
	if p.DB == nil || p.Log == nil || p.Clock == nil || p.Repo == nil {
		return nil, ErrInvalidConfig
	}
	handlers := make(map[string]outboxdomain.Handler, len(p.Handlers))
	for _, h := range p.Handlers {
		if h == nil {
			continue
		}
		if _, exists := handlers[h.Kind()]; exists {
			return nil, fmt.Errorf("%w: duplicate handler for %s", ErrInvalidConfig, h.Kind())
		}
		handlers[h.Kind()] = h
	}

	return &Dispatcher{
		db:       p.DB,
		log:      p.Log.Named("outbox.dispatcher"),
		cfg:      p.Config.withDefaults(),
		clock:    p.Clock,
		repo:     p.Repo,
		handlers: handlers,
		alert:    p.Alert,
		metrics:  p.Metrics,
		wake:     make(chan struct{}, 1),
	}, nil
}

// Wake requests an immediate poll. It never blocks.
func (d *Dispatcher) Wake() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// RunOnce claims one batch of due messages and delivers it. It returns the
// number of messages claimed.
func (d *Dispatcher) RunOnce(ctx context.Context) (int, error) {
	now := d.clock.Now()
	claimed, err := d.repo.ClaimDue(ctx, d.db, now, d.cfg.Lease, d.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("claim outbox messages: %w", err)
	}

	var errs []error
	for _, msg := range claimed {
		if err := d.deliver(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return len(claimed), errors.Join(errs...)
}

func (d *Dispatcher) RunForever(ctx context.Context) {
	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()

	for {
		d.drain(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-d.wake:
		}
	}
}

func (d *Dispatcher) drain(ctx context.Context) {
	for ctx.Err() == nil {
		claimed, err := d.RunOnce(ctx)
		if err != nil {
			d.log.Warn("outbox run failed", zap.Error(err))
			return
		}
		if claimed < d.cfg.BatchSize {
			return
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, msg outboxdomain.Message) error {
	log := d.log.With(
		zap.String("message_id", msg.ID.String()),
		zap.String("kind", msg.Kind),
		zap.Int("attempt", msg.Attempts+1),
	)

	handler, ok := d.handlers[msg.Kind]
	var handleErr error
	if !ok {
		handleErr = fmt.Errorf("%w: %s", outboxdomain.ErrPermanent, outboxdomain.ErrUnknownKind)
	} else {
		hctx, cancel := context.WithTimeout(ctx, d.cfg.HandlerTimeout)
		handleErr = handler.Handle(hctx, msg)
		cancel()
	}

	now := d.clock.Now()
	if handleErr == nil {
		if err := d.repo.MarkDelivered(ctx, d.db, msg.ID, now); err != nil {
			return fmt.Errorf("mark delivered %s: %w", msg.ID, err)
		}
		d.metrics.RecordOutboxDelivery(ctx, msg.Kind, "delivered")
		log.Info("outbox message delivered")
		return nil
	}

	attempts := msg.Attempts + 1
	lastErr := truncate(handleErr.Error(), maxErrorLength)

	if errors.Is(handleErr, outboxdomain.ErrPermanent) || attempts >= d.cfg.MaxAttempts {
		if err := d.repo.MarkDead(ctx, d.db, msg.ID, attempts, lastErr, now); err != nil {
			return fmt.Errorf("mark dead %s: %w", msg.ID, err)
		}
		d.metrics.RecordOutboxDelivery(ctx, msg.Kind, "dead")
		log.Error("outbox message abandoned", zap.Error(handleErr))
		alert.Raise(d.alert, d.log, fmt.Sprintf(
			"Outbox message abandoned\nkind: %s\nid: %s\nattempts: %d\nerror: %s",
			msg.Kind, msg.ID, attempts, lastErr,
		))
		return nil
	}

	next := now.Add(Backoff(msg.Attempts, d.cfg.BaseBackoff, d.cfg.MaxBackoff))
	if err := d.repo.MarkRetry(ctx, d.db, msg.ID, attempts, next, lastErr, now); err != nil {
		return fmt.Errorf("mark retry %s: %w", msg.ID, err)
	}
	d.metrics.RecordOutboxDelivery(ctx, msg.Kind, "retry")
	log.Warn("outbox delivery failed", zap.Time("next_attempt_at", next), zap.Error(handleErr))
	return nil
}

// Backoff returns base * 2^attempt capped at ceiling, attempt counting
// failures before the current one.
func Backoff(attempt int, base, ceiling time.Duration) time.Duration {
	delay := base
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= ceiling {
			return ceiling
		}
	}
	if delay > ceiling {
		return ceiling
	}
	return delay
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
