package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	SchedulerJobReasonDeadlineExceeded = "deadline_exceeded"
	SchedulerJobReasonCanceled         = "canceled"
	SchedulerJobReasonError            = "error"
)

// SchedulerMetrics tracks background job runs by job name.
type SchedulerMetrics struct {
	runs     *prometheus.CounterVec
	errors   *prometheus.CounterVec
	timeouts *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func NewSchedulerMetrics() *SchedulerMetrics {
	return NewSchedulerMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func NewSchedulerMetricsWithRegisterer(reg prometheus.Registerer) *SchedulerMetrics {
	m := &SchedulerMetrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "colegio",
			Subsystem: "scheduler",
			Name:      "job_runs_total",
			Help:      "Scheduler job executions.",
		}, []string{"job"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "colegio",
			Subsystem: "scheduler",
			Name:      "job_errors_total",
			Help:      "Scheduler job failures by reason.",
		}, []string{"job", "reason"}),
		timeouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "colegio",
			Subsystem: "scheduler",
			Name:      "job_timeouts_total",
			Help:      "Scheduler jobs that hit their deadline.",
		}, []string{"job"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "colegio",
			Subsystem: "scheduler",
			Name:      "job_duration_seconds",
			Help:      "Scheduler job latency.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		}, []string{"job"}),
	}
	if reg != nil {
		m.runs = registerOrExisting(reg, m.runs).(*prometheus.CounterVec)
		m.errors = registerOrExisting(reg, m.errors).(*prometheus.CounterVec)
		m.timeouts = registerOrExisting(reg, m.timeouts).(*prometheus.CounterVec)
		m.duration = registerOrExisting(reg, m.duration).(*prometheus.HistogramVec)
	}
	return m
}

func (m *SchedulerMetrics) IncJobRun(job string) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(job).Inc()
}

func (m *SchedulerMetrics) IncJobTimeout(job string) {
	if m == nil {
		return
	}
	m.timeouts.WithLabelValues(job).Inc()
}

func (m *SchedulerMetrics) IncJobError(job string, err error) {
	if m == nil || err == nil {
		return
	}
	m.errors.WithLabelValues(job, ClassifySchedulerErrorReason(err)).Inc()
}

func (m *SchedulerMetrics) ObserveJobDuration(job string, d time.Duration) {
	if m == nil {
		return
	}
	m.duration.WithLabelValues(job).Observe(d.Seconds())
}

// TimeoutsFor exposes the timeout counter of one job.
func (m *SchedulerMetrics) TimeoutsFor(job string) prometheus.Counter {
	return m.timeouts.WithLabelValues(job)
}

func ClassifySchedulerErrorReason(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return SchedulerJobReasonDeadlineExceeded
	case errors.Is(err, context.Canceled):
		return SchedulerJobReasonCanceled
	default:
		return SchedulerJobReasonError
	}
}
