// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package netmetrics turns the dispatcher's request notifications into
// Prometheus metrics. A [Collector] subscribes to the same bus as the
// network log and owns a private registry, so several consoles (or
// tests) in one process never collide on metric names.
package netmetrics

import (
	"fmt"
	"io"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"github.com/bureau-foundation/matrix-console/lib/notify"
	"github.com/bureau-foundation/matrix-console/messaging"
)

// Outcome labels besides the HTTP status class ("2xx" ... "5xx").
const (
	OutcomeTransport = "transport"
	OutcomeNotJSON   = "not_json"
	OutcomeDryRun    = "dry_run"
)

// Collector records request counts, latencies, and in-flight requests.
// Safe for concurrent use.
type Collector struct {
	registry *prometheus.Registry

	// RequestsTotal counts finished requests.
	// Labels:
	//   - method: HTTP method
	//   - outcome: "2xx".."5xx", "transport", "not_json", "dry_run"
	RequestsTotal *prometheus.CounterVec

	// RequestDuration measures time from start to finish. Matrix calls
	// range from a few milliseconds to long admin operations such as
	// room purges.
	RequestDuration *prometheus.HistogramVec

	// RequestsInFlight is the number of started, unfinished requests.
	RequestsInFlight prometheus.Gauge

	mu      sync.Mutex
	pending map[uint64]messaging.RequestStarted
}

// NewCollector creates a Collector with its own registry.
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)
	return &Collector{
		registry: registry,
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "matrix_console_requests_total",
				Help: "Total number of homeserver requests by method and outcome",
			},
			[]string{"method", "outcome"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "matrix_console_request_duration_seconds",
				Help:    "Duration of homeserver requests in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"method"},
		),
		RequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "matrix_console_requests_in_flight",
				Help: "Number of homeserver requests started but not finished",
			},
		),
		pending: make(map[uint64]messaging.RequestStarted),
	}
}

// Attach subscribes the collector to a dispatcher bus. The returned
// function detaches it.
func (c *Collector) Attach(bus *notify.Bus[messaging.Notification]) (detach func()) {
	return bus.Subscribe(c.Observe)
}

// Observe applies one notification.
func (c *Collector) Observe(notification messaging.Notification) {
	switch n := notification.(type) {
	case messaging.RequestStarted:
		c.mu.Lock()
		c.pending[n.RequestID] = n
		c.mu.Unlock()
		c.RequestsInFlight.Inc()

	case messaging.RequestFinished:
		c.mu.Lock()
		started, ok := c.pending[n.RequestID]
		delete(c.pending, n.RequestID)
		c.mu.Unlock()
		if !ok {
			return
		}
		c.RequestsInFlight.Dec()

		method := started.Request.Method
		c.RequestsTotal.WithLabelValues(method, Outcome(n)).Inc()
		if !n.DryRun && !n.ReceivedAt.IsZero() && !started.SentAt.IsZero() {
			c.RequestDuration.WithLabelValues(method).Observe(n.ReceivedAt.Sub(started.SentAt).Seconds())
		}
	}
}

// Outcome classifies a finished request for the outcome label.
func Outcome(finished messaging.RequestFinished) string {
	switch {
	case finished.DryRun:
		return OutcomeDryRun
	case finished.NotJSON:
		return OutcomeNotJSON
	case !finished.HasStatus():
		return OutcomeTransport
	default:
		return fmt.Sprintf("%dxx", finished.Status/100)
	}
}

// Registry returns the collector's registry, for serving or gathering.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Gather returns the current metric families.
func (c *Collector) Gather() ([]*dto.MetricFamily, error) {
	return c.registry.Gather()
}

// WriteSummary writes the gathered families in the Prometheus text
// exposition format, for printing at the end of a CLI run:
//
//	# TYPE matrix_console_requests_total counter
//	matrix_console_requests_total{method="POST",outcome="4xx"} 1
//
// Histograms include their buckets, _sum and _count series.
func (c *Collector) WriteSummary(w io.Writer) error {
	families, err := c.Gather()
	if err != nil {
		return fmt.Errorf("netmetrics: gathering: %w", err)
	}
	for _, family := range families {
		if _, err := expfmt.MetricFamilyToText(w, family); err != nil {
			return fmt.Errorf("netmetrics: writing %s: %w", family.GetName(), err)
		}
	}
	return nil
}
