// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability defines the metrics the preset pipeline emits.
//
// # Description
//
// The pipeline depends on the Recorder interface, never on package-level
// collectors, so tests can use an isolated registry or NoopRecorder.
package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Fallback reasons.
const (
	ReasonDisabled         = "disabled"
	ReasonSkeletonFailed   = "skeleton_failed"
	ReasonExpandFailed     = "expand_failed"
	ReasonLowCompleteness  = "low_completeness"
	ReasonValidationFailed = "validation_failed"
	ReasonInvalidInput     = "invalid_input"
	ReasonPolicyBlocked    = "policy_blocked"
	ReasonPanic            = "panic"
)

// Run outcomes.
const (
	OutcomeCacheHit  = "cache_hit"
	OutcomeGenerated = "generated"
	OutcomeFallback  = "fallback"
)

// Recorder receives pipeline events.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type Recorder interface {
	// RecordAttempt counts one pipeline invocation.
	RecordAttempt()

	// RecordSuccess counts a run that accepted a generated preset.
	RecordSuccess()

	// RecordFallback counts a run that returned the Fallback Preset.
	RecordFallback(reason string)

	// RecordCacheHit counts a run served from cache.
	RecordCacheHit()

	// RecordExpandAttempt counts one expand call at the given temperature.
	RecordExpandAttempt(temperature float64)

	// ObserveDuration records total run time by outcome.
	ObserveDuration(outcome string, d time.Duration)
}

// =============================================================================
// Prometheus Recorder
// =============================================================================

// PrometheusRecorder implements Recorder with client_golang collectors.
type PrometheusRecorder struct {
	attempts       prometheus.Counter
	successes      prometheus.Counter
	fallbacks      *prometheus.CounterVec
	cacheHits      prometheus.Counter
	expandAttempts *prometheus.CounterVec
	duration       *prometheus.HistogramVec
}

// NewPrometheusRecorder registers the pipeline collectors with reg.
//
// # Inputs
//
//   - reg: Target registry. Use prometheus.DefaultRegisterer in the
//     service and prometheus.NewRegistry() in tests.
//
// # Limitations
//
// Registering twice with the same registry panics, as with promauto.
func NewPrometheusRecorder(reg prometheus.Registerer) *PrometheusRecorder {
	factory := promauto.With(reg)
	return &PrometheusRecorder{
		attempts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "preset",
			Subsystem: "pipeline",
			Name:      "attempts_total",
			Help:      "Total preset pipeline invocations",
		}),
		successes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "preset",
			Subsystem: "pipeline",
			Name:      "success_total",
			Help:      "Total runs that accepted a generated preset",
		}),
		// Labels: reason (see the Reason constants)
		fallbacks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "preset",
			Subsystem: "pipeline",
			Name:      "fallback_total",
			Help:      "Total runs that returned the fallback preset",
		}, []string{"reason"}),
		cacheHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "preset",
			Subsystem: "pipeline",
			Name:      "cache_hits_total",
			Help:      "Total runs served from cache",
		}),
		// Labels: temperature
		expandAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "preset",
			Subsystem: "pipeline",
			Name:      "expand_attempts_total",
			Help:      "Total expand backend calls by temperature",
		}, []string{"temperature"}),
		// Labels: outcome (cache_hit, generated, fallback)
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "preset",
			Subsystem: "pipeline",
			Name:      "duration_seconds",
			Help:      "Pipeline run duration in seconds",
			Buckets:   []float64{0.005, 0.05, 0.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
		}, []string{"outcome"}),
	}
}

// RecordAttempt implements Recorder.
func (r *PrometheusRecorder) RecordAttempt() { r.attempts.Inc() }

// RecordSuccess implements Recorder.
func (r *PrometheusRecorder) RecordSuccess() { r.successes.Inc() }

// RecordFallback implements Recorder.
func (r *PrometheusRecorder) RecordFallback(reason string) {
	r.fallbacks.WithLabelValues(reason).Inc()
}

// RecordCacheHit implements Recorder.
func (r *PrometheusRecorder) RecordCacheHit() { r.cacheHits.Inc() }

// RecordExpandAttempt implements Recorder.
func (r *PrometheusRecorder) RecordExpandAttempt(temperature float64) {
	r.expandAttempts.WithLabelValues(strconv.FormatFloat(temperature, 'f', 1, 64)).Inc()
}

// ObserveDuration implements Recorder.
func (r *PrometheusRecorder) ObserveDuration(outcome string, d time.Duration) {
	r.duration.WithLabelValues(outcome).Observe(d.Seconds())
}

// =============================================================================
// Noop Recorder
// =============================================================================

// NoopRecorder discards every event.
type NoopRecorder struct{}

func (NoopRecorder) RecordAttempt() {}
func (NoopRecorder) RecordSuccess() {}
func (NoopRecorder) RecordFallback(string) {}
func (NoopRecorder) RecordCacheHit() {}
func (NoopRecorder) RecordExpandAttempt(float64) {}
func (NoopRecorder) ObserveDuration(string, time.Duration) {}

var (
	_ Recorder = (*PrometheusRecorder)(nil)
	_ Recorder = NoopRecorder{}
)
