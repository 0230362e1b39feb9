// Package metrics provides the Prometheus-backed operation and handler
// metrics shared by all modules. Metrics are labeled by module and operation
// (or handler) rather than duplicated per module.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OperationMetrics records service-level operation outcomes.
type OperationMetrics interface {
	RecordOperationAttempt(ctx context.Context, operation, module string)
	RecordOperationSuccess(ctx context.Context, operation, module string)
	RecordOperationFailure(ctx context.Context, operation, module string)
	RecordOperationDuration(ctx context.Context, operation, module string, duration time.Duration)
}

// Operations is the production OperationMetrics implementation.
type Operations struct {
	attempts  *prometheus.CounterVec
	successes *prometheus.CounterVec
	failures  *prometheus.CounterVec
	durations *prometheus.HistogramVec
}

var _ OperationMetrics = (*Operations)(nil)

// NewOperations registers the operation metric family on reg.
func NewOperations(reg prometheus.Registerer, namespace string) *Operations {
	labels := []string{"module", "operation"}
	o := &Operations{
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operation_attempts_total",
			Help:      "Service operations started.",
		}, labels),
		successes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operation_successes_total",
			Help:      "Service operations completed without error.",
		}, labels),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operation_failures_total",
			Help:      "Service operations that returned an error or panicked.",
		}, labels),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Service operation latency.",
			Buckets:   prometheus.DefBuckets,
		}, labels),
	}
	reg.MustRegister(o.attempts, o.successes, o.failures, o.durations)
	return o
}

func (o *Operations) RecordOperationAttempt(_ context.Context, operation, module string) {
	o.attempts.WithLabelValues(module, operation).Inc()
}

func (o *Operations) RecordOperationSuccess(_ context.Context, operation, module string) {
	o.successes.WithLabelValues(module, operation).Inc()
}

func (o *Operations) RecordOperationFailure(_ context.Context, operation, module string) {
	o.failures.WithLabelValues(module, operation).Inc()
}

func (o *Operations) RecordOperationDuration(_ context.Context, operation, module string, duration time.Duration) {
	o.durations.WithLabelValues(module, operation).Observe(duration.Seconds())
}

// Handlers records router handler outcomes; it satisfies the handler
// wrapper's ReturningMetrics.
type Handlers struct {
	attempts  *prometheus.CounterVec
	successes *prometheus.CounterVec
	failures  *prometheus.CounterVec
	durations *prometheus.HistogramVec
}

// NewHandlers registers the handler metric family on reg.
func NewHandlers(reg prometheus.Registerer, namespace string) *Handlers {
	labels := []string{"handler"}
	h := &Handlers{
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handler_attempts_total",
			Help:      "Messages entering a handler.",
		}, labels),
		successes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handler_successes_total",
			Help:      "Messages handled successfully.",
		}, labels),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handler_failures_total",
			Help:      "Messages whose handler failed.",
		}, labels),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "handler_duration_seconds",
			Help:      "Handler latency.",
			Buckets:   prometheus.DefBuckets,
		}, labels),
	}
	reg.MustRegister(h.attempts, h.successes, h.failures, h.durations)
	return h
}

func (h *Handlers) RecordHandlerAttempt(_ context.Context, handlerName string) {
	h.attempts.WithLabelValues(handlerName).Inc()
}

func (h *Handlers) RecordHandlerSuccess(_ context.Context, handlerName string) {
	h.successes.WithLabelValues(handlerName).Inc()
}

func (h *Handlers) RecordHandlerFailure(_ context.Context, handlerName string) {
	h.failures.WithLabelValues(handlerName).Inc()
}

func (h *Handlers) RecordHandlerDuration(_ context.Context, handlerName string, duration time.Duration) {
	h.durations.WithLabelValues(handlerName).Observe(duration.Seconds())
}

// Noop discards all recordings; used in tests.
type Noop struct{}

var _ OperationMetrics = Noop{}

func (Noop) RecordOperationAttempt(context.Context, string, string)                {}
func (Noop) RecordOperationSuccess(context.Context, string, string)                {}
func (Noop) RecordOperationFailure(context.Context, string, string)                {}
func (Noop) RecordOperationDuration(context.Context, string, string, time.Duration) {}
