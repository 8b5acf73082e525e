package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/smallbiznis/colegio/internal/clock"
	obsmetrics "github.com/smallbiznis/colegio/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/colegio/internal/payment/domain"
	receiptdomain "github.com/smallbiznis/colegio/internal/receipt/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubReceipts struct {
	receiptdomain.Service
	pending []receiptdomain.Receipt
	filter  receiptdomain.PendingFilter
}

func (s *stubReceipts) ListPending(ctx context.Context, filter receiptdomain.PendingFilter) ([]receiptdomain.Receipt, error) {
	s.filter = filter
	return s.pending, nil
}

type stubPayments struct {
	paymentdomain.Service
	mu      sync.Mutex
	checked []string
	fail    map[string]error
}

func (s *stubPayments) RecheckPayment(ctx context.Context, paymentID string) (*paymentdomain.WebhookResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checked = append(s.checked, paymentID)
	if err := s.fail[paymentID]; err != nil {
		return nil, err
	}
	return &paymentdomain.WebhookResult{
		Provider: paymentdomain.ProviderMercadoPago,
		Outcome:  receiptdomain.OutcomeUpdated,
		Receipt:  &receiptdomain.Receipt{ReceiptNumber: "REC-" + paymentID, Status: receiptdomain.StatusPaid},
	}, nil
}

type stubLocker struct {
	ok       bool
	err      error
	released int
}

func (l *stubLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	return "token", l.ok, l.err
}

func (l *stubLocker) Release(ctx context.Context, key, token string) error {
	l.released++
	return nil
}

func newTestScheduler(t *testing.T, cfg Config) (*Scheduler, *stubReceipts, *stubPayments, *clock.FakeClock) {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	clk := clock.NewFakeClock(time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC))
	receipts := &stubReceipts{}
	payments := &stubPayments{fail: map[string]error{}}
	s, err := New(Params{
		Log:        zap.NewNop(),
		GenID:      node,
		Clock:      clk,
		PaymentSvc: payments,
		ReceiptSvc: receipts,
		Config:     cfg,
		Metrics:    obsmetrics.NewSchedulerMetricsWithRegisterer(prometheus.NewRegistry()),
	})
	require.NoError(t, err)
	return s, receipts, payments, clk
}

func TestNewRequiresDependencies(t *testing.T) {
	_, err := New(Params{Log: zap.NewNop()})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestRecheckPendingJobQueriesStaleMercadoPagoReceipts(t *testing.T) {
	s, receipts, payments, clk := newTestScheduler(t, Config{BatchSize: 10})
	receipts.pending = []receiptdomain.Receipt{
		{ID: 1, PaymentID: "101"},
		{ID: 2, PaymentID: "102"},
		{ID: 3, PaymentID: "103"},
	}
	payments.fail["102"] = paymentdomain.ErrProviderUnavailable

	require.NoError(t, s.RunOnce(context.Background()))

	assert.Equal(t, []string{"101", "102", "103"}, payments.checked)
	assert.Equal(t, "Mercado Pago", receipts.filter.MethodPrefix)
	assert.Equal(t, 10, receipts.filter.Limit)
	assert.Equal(t, clk.Now().Add(-15*time.Minute), receipts.filter.UpdatedBefore)
	assert.Equal(t, clk.Now().Add(-72*time.Hour), receipts.filter.UpdatedAfter)
}

func TestRecheckPendingJobCountsProcessed(t *testing.T) {
	s, receipts, _, _ := newTestScheduler(t, Config{})
	receipts.pending = []receiptdomain.Receipt{{ID: 1, PaymentID: "1"}, {ID: 2, PaymentID: "2"}}

	ctx, run := s.startJobRun(context.Background(), JobPendingRecheck, 50)
	require.NoError(t, s.RecheckPendingJob(ctx))
	assert.Equal(t, 2, run.processedCount)
	assert.Equal(t, 0, run.errorCount)
}

func TestRecheckPendingJobStopsOnDeadline(t *testing.T) {
	s, receipts, payments, _ := newTestScheduler(t, Config{})
	receipts.pending = []receiptdomain.Receipt{{ID: 1, PaymentID: "1"}, {ID: 2, PaymentID: "2"}}
	payments.fail["1"] = context.DeadlineExceeded

	err := s.RecheckPendingJob(context.Background())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, []string{"1"}, payments.checked)
}

func TestRunJobTimeoutIsSoft(t *testing.T) {
	s, _, _, _ := newTestScheduler(t, Config{})

	err := s.runJob(context.Background(), "timeout_job", 0, 5*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	require.NoError(t, err)
	assert.Equal(t, float64(1), testutil.ToFloat64(s.metrics.TimeoutsFor("timeout_job")))
}

func TestRunJobWrapsFailures(t *testing.T) {
	s, _, _, _ := newTestScheduler(t, Config{})
	boom := errors.New("boom")

	err := s.runJob(context.Background(), "failing_job", 0, time.Second, func(ctx context.Context) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "failing_job")
}

func TestRunOnceSkipsJobHeldElsewhere(t *testing.T) {
	s, receipts, payments, _ := newTestScheduler(t, Config{})
	receipts.pending = []receiptdomain.Receipt{{ID: 1, PaymentID: "1"}}
	locker := &stubLocker{ok: false}
	s.SetLocker(locker)

	require.NoError(t, s.RunOnce(context.Background()))
	assert.Empty(t, payments.checked)
	assert.Zero(t, locker.released)
}

func TestRunOnceRunsWhenLockStoreIsDown(t *testing.T) {
	s, receipts, payments, _ := newTestScheduler(t, Config{})
	receipts.pending = []receiptdomain.Receipt{{ID: 1, PaymentID: "1"}}
	s.SetLocker(&stubLocker{err: errors.New("redis: connection refused")})

	require.NoError(t, s.RunOnce(context.Background()))
	assert.Equal(t, []string{"1"}, payments.checked)
}

func TestRunOnceReleasesLock(t *testing.T) {
	s, _, _, _ := newTestScheduler(t, Config{})
	locker := &stubLocker{ok: true}
	s.SetLocker(locker)

	require.NoError(t, s.RunOnce(context.Background()))
	assert.Equal(t, 1, locker.released)
}

func TestRunOnceHonoursEnabledJobs(t *testing.T) {
	s, receipts, payments, _ := newTestScheduler(t, Config{EnabledJobs: []string{"something_else"}})
	receipts.pending = []receiptdomain.Receipt{{ID: 1, PaymentID: "1"}}

	require.NoError(t, s.RunOnce(context.Background()))
	assert.Empty(t, payments.checked)

	s.cfg.EnabledJobs = []string{"PENDING_RECHECK"}
	require.NoError(t, s.RunOnce(context.Background()))
	assert.Equal(t, []string{"1"}, payments.checked)
}
