// Package metrics exposes record store counters in the Prometheus format.
//
// Every method is safe on a nil *Metrics so callers never need to check whether metrics
// are enabled.
package metrics

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/common/expfmt"
)

const namespace = "recdb"

// Metrics holds the collectors of one store.
type Metrics struct {
	registry   *prometheus.Registry
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	validation *prometheus.CounterVec
	listeners  *prometheus.CounterVec
	skipped    *prometheus.CounterVec
	records    *prometheus.GaugeVec
}

// New creates the collectors on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Store operations by source, operation and status.",
		}, []string{"source", "operation", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Latency of store operations.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}, []string{"operation"}),
		validation: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validation_failures_total",
			Help:      "Records rejected by validation.",
		}, []string{"source"}),
		listeners: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "listener_failures_total",
			Help:      "Change listeners that returned an error or panicked.",
		}, []string{"source"}),
		skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "import_skipped_total",
			Help:      "Rows skipped during imports.",
		}, []string{"source"}),
		records: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "records",
			Help:      "Number of cached records per source.",
		}, []string{"source"}),
	}
	m.registry.MustRegister(m.operations, m.duration, m.validation, m.listeners, m.skipped, m.records)
	return m
}

// Observe records the outcome of one operation.
func (m *Metrics) Observe(_ context.Context, source, operation string, err error, d time.Duration) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.operations.WithLabelValues(source, operation, status).Inc()
	m.duration.WithLabelValues(operation).Observe(d.Seconds())
}

// ValidationFailed counts a rejected record.
func (m *Metrics) ValidationFailed(source string) {
	if m == nil {
		return
	}
	m.validation.WithLabelValues(source).Inc()
}

// ListenerFailed counts a failed change listener.
func (m *Metrics) ListenerFailed(source string) {
	if m == nil {
		return
	}
	m.listeners.WithLabelValues(source).Inc()
}

// ImportSkipped counts rows dropped by an import.
func (m *Metrics) ImportSkipped(source string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.skipped.WithLabelValues(source).Add(float64(n))
}

// SetRecords publishes the record count of a source.
func (m *Metrics) SetRecords(source string, n int) {
	if m == nil {
		return
	}
	m.records.WithLabelValues(source).Set(float64(n))
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the collectors over HTTP.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// WriteText writes every collector in the Prometheus text format.
func (m *Metrics) WriteText(w io.Writer) error {
	families, err := m.registry.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("failed to write metrics: %w", err)
		}
	}
	return nil
}
