package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/colegio/internal/clock"
	obsmetrics "github.com/smallbiznis/colegio/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/colegio/internal/payment/domain"
	"github.com/smallbiznis/colegio/internal/ratelimit"
	receiptdomain "github.com/smallbiznis/colegio/internal/receipt/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const JobPendingRecheck = "pending_recheck"

var ErrInvalidConfig = errors.New("invalid_scheduler_config")

// JobLocker keeps a job to one instance per run.
type JobLocker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error)
	Release(ctx context.Context, key, token string) error
}

type Params struct {
	fx.In

	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	PaymentSvc paymentdomain.Service
	ReceiptSvc receiptdomain.Service
	Config     Config                       `optional:"true"`
	Locker     *ratelimit.Locker            `optional:"true"`
	Metrics    *obsmetrics.SchedulerMetrics `optional:"true"`
}

type Scheduler struct {
	log        *zap.Logger
	cfg        Config
	genID      *snowflake.Node
	clock      clock.Clock
	paymentSvc paymentdomain.Service
	receiptSvc receiptdomain.Service
	locker     JobLocker
	metrics    *obsmetrics.SchedulerMetrics
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.GenID == nil || p.Clock == nil || p.PaymentSvc == nil || p.ReceiptSvc == nil {
		return nil, ErrInvalidConfig
	}
	s := &Scheduler{
		log:        p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:        p.Config.withDefaults(),
		genID:      p.GenID,
		clock:      p.Clock,
		paymentSvc: p.PaymentSvc,
		receiptSvc: p.ReceiptSvc,
		metrics:    p.Metrics,
	}
	if p.Locker != nil {
		s.locker = p.Locker
	}
	return s, nil
}

// SetLocker replaces the per-job lock.
func (s *Scheduler) SetLocker(l JobLocker) {
	s.locker = l
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	batchSize int,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	release, ok := s.acquire(ctx, name)
	if !ok {
		s.log.Debug("job held by another instance", zap.String("job", name))
		return nil
	}
	defer release()

	ctx, run := s.startJobRun(ctx, name, batchSize)
	s.logJobStart(ctx, run)
	s.metrics.IncJobRun(name)

	err := fn(ctx)
	s.metrics.ObserveJobDuration(name, s.clock.Now().Sub(start))
	if err != nil && run.errorCount == 0 {
		run.IncError()
	}
	s.logJobFinish(ctx, run)
	if err == nil {
		return nil
	}

	// A deadline is a soft timeout; the next tick resumes the batch.
	isTimeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
	s.metrics.IncJobError(name, err)
	if isTimeout {
		s.metrics.IncJobTimeout(name)
		s.logger(ctx).Warn("job timed out",
			zap.String("job", name),
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	return fmt.Errorf("%s: %w", name, err)
}

func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error

	jobs := []struct {
		Name string
		Run  func(context.Context) error
	}{
		{JobPendingRecheck, func(ctx context.Context) error {
			return s.runJob(ctx, JobPendingRecheck, s.cfg.BatchSize, s.cfg.JobTimeout, s.RecheckPendingJob)
		}},
	}

	for _, job := range jobs {
		if s.isJobEnabled(job.Name) {
			err = errors.Join(err, job.Run(parent))
		}
	}
	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) isJobEnabled(jobName string) bool {
	// An empty list enables every job.
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(enabled, jobName) {
			return true
		}
	}
	return false
}

// acquire takes the job lock. Without a locker, or when the lock store is
// down, the job runs anyway: every job is idempotent.
func (s *Scheduler) acquire(ctx context.Context, job string) (func(), bool) {
	noop := func() {}
	if s.locker == nil {
		return noop, true
	}

	key := "colegio:scheduler:" + job
	token, ok, err := s.locker.TryLock(ctx, key, s.cfg.LockTTL)
	switch {
	case err != nil:
		s.log.Warn("scheduler lock unavailable", zap.String("job", job), zap.Error(err))
		return noop, true
	case !ok:
		return noop, false
	}
	return func() {
		if err := s.locker.Release(context.Background(), key, token); err != nil {
			s.log.Warn("release scheduler lock", zap.String("job", job), zap.Error(err))
		}
	}, true
}
