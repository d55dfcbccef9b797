// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides Prometheus metrics for the alignment service.
//
// # Description
//
// Metrics cover three things:
//   - Computations (count by status, duration, in-flight gauge, last value)
//   - Sampled paths (count by outcome, per-path duration)
//   - Session patches (count by field and status, session version)
//
// # Integration
//
// Metrics are exposed via the /metrics endpoint when enabled in the server
// configuration.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
// Every method is a no-op on a nil *AlignmentMetrics, so callers can pass
// nil when metrics are disabled.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Metric Definitions
// =============================================================================

// Namespace for all metrics
const metricsNamespace = "valalign"

// Subsystems
const (
	alignmentSubsystem = "alignment"
	sessionSubsystem   = "session"
)

// Status label values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Patch field label values.
const (
	FieldNorms      = "norms"
	FieldPathLength = "path_length"
	FieldPathSample = "path_sample"
)

// AlignmentMetrics holds all Prometheus metrics for the alignment service.
//
// # Fields
//
//   - ComputationsTotal: Counter of GET /algn computations by status
//   - ComputationDuration: Histogram of computation wall time
//   - ComputationsInFlight: Gauge of computations currently running
//   - LastAlignment: Gauge of the most recent successful estimate
//   - PathsTotal: Counter of sampled paths by outcome
//   - PathDuration: Histogram of single-path evaluation time
//   - PatchesTotal: Counter of session patches by field and status
//   - SessionVersion: Gauge of the session version after the last patch
type AlignmentMetrics struct {
	// ComputationsTotal counts alignment computations.
	// Labels: status (success, error)
	ComputationsTotal *prometheus.CounterVec

	// ComputationDuration measures whole-computation latency.
	ComputationDuration prometheus.Histogram

	// ComputationsInFlight tracks running computations.
	ComputationsInFlight prometheus.Gauge

	// LastAlignment is the value of the last successful computation.
	LastAlignment prometheus.Gauge

	// PathsTotal counts evaluated paths.
	// Labels: outcome (success, error)
	PathsTotal *prometheus.CounterVec

	// PathDuration measures single-path latency.
	PathDuration prometheus.Histogram

	// PatchesTotal counts configuration patches.
	// Labels: field (norms, path_length, path_sample), status (success, error)
	PatchesTotal *prometheus.CounterVec

	// SessionVersion is the session version after the last patch.
	SessionVersion prometheus.Gauge
}

// NewAlignmentMetrics creates and registers the alignment metrics.
//
// # Inputs
//
//   - reg: Registerer to register with. Use prometheus.DefaultRegisterer in
//     production and a fresh prometheus.NewRegistry() in tests.
//
// # Outputs
//
//   - *AlignmentMetrics: Ready for use.
//
// # Limitations
//
//   - Panics if the metrics are already registered with reg.
func NewAlignmentMetrics(reg prometheus.Registerer) *AlignmentMetrics {
	factory := promauto.With(reg)

	return &AlignmentMetrics{
		ComputationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: alignmentSubsystem,
				Name:      "computations_total",
				Help:      "Total number of alignment computations by status",
			},
			[]string{"status"},
		),

		ComputationDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: alignmentSubsystem,
				Name:      "computation_duration_seconds",
				Help:      "Alignment computation duration in seconds",
				Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
			},
		),

		ComputationsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: alignmentSubsystem,
				Name:      "computations_in_flight",
				Help:      "Number of alignment computations currently running",
			},
		),

		LastAlignment: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: alignmentSubsystem,
				Name:      "last_value",
				Help:      "Most recent successfully computed alignment",
			},
		),

		PathsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: alignmentSubsystem,
				Name:      "paths_total",
				Help:      "Total number of evaluated paths by outcome",
			},
			[]string{"outcome"},
		),

		PathDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: alignmentSubsystem,
				Name:      "path_duration_seconds",
				Help:      "Single path evaluation duration in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
			},
		),

		PatchesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: sessionSubsystem,
				Name:      "patches_total",
				Help:      "Total number of session patches by field and status",
			},
			[]string{"field", "status"},
		),

		SessionVersion: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: sessionSubsystem,
				Name:      "version",
				Help:      "Session version after the last successful patch",
			},
		),
	}
}

// =============================================================================
// Helper Methods
// =============================================================================

// ComputationStarted increments the in-flight gauge. Pair with
// ComputationFinished.
func (m *AlignmentMetrics) ComputationStarted() {
	if m == nil {
		return
	}
	m.ComputationsInFlight.Inc()
}

// ComputationFinished records a completed computation.
//
// # Inputs
//
//   - duration: Wall time of the computation.
//   - alignment: The estimate. Ignored when err is non-nil.
//   - err: The computation error, if any.
func (m *AlignmentMetrics) ComputationFinished(duration time.Duration, alignment float64, err error) {
	if m == nil {
		return
	}
	m.ComputationsInFlight.Dec()
	m.ComputationDuration.Observe(duration.Seconds())
	if err != nil {
		m.ComputationsTotal.WithLabelValues(StatusError).Inc()
		return
	}
	m.ComputationsTotal.WithLabelValues(StatusSuccess).Inc()
	m.LastAlignment.Set(alignment)
}

// ObservePath records one evaluated path. It satisfies sampling.Observer.
func (m *AlignmentMetrics) ObservePath(_ int, duration time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := StatusSuccess
	if err != nil {
		outcome = StatusError
	}
	m.PathsTotal.WithLabelValues(outcome).Inc()
	m.PathDuration.Observe(duration.Seconds())
}

// RecordPatch records a session patch attempt.
//
// # Inputs
//
//   - field: FieldNorms, FieldPathLength or FieldPathSample.
//   - version: Session version after the patch. Ignored on error.
//   - err: The patch error, if any.
func (m *AlignmentMetrics) RecordPatch(field string, version uint64, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.PatchesTotal.WithLabelValues(field, StatusError).Inc()
		return
	}
	m.PatchesTotal.WithLabelValues(field, StatusSuccess).Inc()
	m.SessionVersion.Set(float64(version))
}
