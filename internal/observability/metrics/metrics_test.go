package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
)

func TestFilterAttributesDropsHighCardinalityLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("provider", "bolsa"),
		attribute.String("payment_id", "1234567890"),
		attribute.String("fee_record_id", "42"),
		attribute.String("result", "updated"),
	)
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(attrs))
	}
	for _, attr := range attrs {
		if attr.Key == "payment_id" || attr.Key == "fee_record_id" {
			t.Fatalf("unexpected label %s", attr.Key)
		}
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.RecordWebhook(context.Background(), "bolsa", "ok")
	m.RecordReceiptTransition(context.Background(), "created")
	m.RecordSecurityRejection(context.Background(), "bolsa", "signature")
	m.RecordOutboxDelivery(context.Background(), "receipt.paid", "delivered")
}

func TestNewWithNoopProvider(t *testing.T) {
	m, err := New(Config{ServiceName: "colegio-test"}, noop.NewMeterProvider())
	if err != nil {
		t.Fatalf("new metrics: %v", err)
	}
	m.RecordWebhook(context.Background(), "mercadopago", "ignored")
}

func TestSchedulerMetricsClassifyReasons(t *testing.T) {
	cases := map[error]string{
		context.DeadlineExceeded: SchedulerJobReasonDeadlineExceeded,
		context.Canceled:         SchedulerJobReasonCanceled,
		errors.New("boom"):       SchedulerJobReasonError,
	}
	for err, want := range cases {
		if got := ClassifySchedulerErrorReason(err); got != want {
			t.Fatalf("reason for %v: got %s, want %s", err, got, want)
		}
	}

	var m *SchedulerMetrics
	m.IncJobRun("job")
	m.IncJobError("job", errors.New("boom"))
	m.ObserveJobDuration("job", time.Second)
}
