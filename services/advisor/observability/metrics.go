// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides Prometheus metrics for the advisor.
//
// # Description
//
// Metrics cover the analysis pipeline end to end:
//   - Request counters by status
//   - Per-stage and whole-pipeline duration histograms
//   - Active pipeline gauge
//   - Upload size histogram
//   - LLM retry and error counters
//
// # Integration
//
// Metrics are exposed via the /metrics endpoint. All operations are
// thread-safe via Prometheus's internal locking.
package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "aleutian"
const advisorSubsystem = "advisor"

// ErrorCode categorizes failures for the errors_total counter.
type ErrorCode string

const (
	ErrorCodeValidation ErrorCode = "validation"
	ErrorCodeParse      ErrorCode = "parse_error"
	ErrorCodeLLM        ErrorCode = "llm_error"
	ErrorCodeTimeout    ErrorCode = "timeout"
	ErrorCodeNotFound   ErrorCode = "not_found"
	ErrorCodeInternal   ErrorCode = "internal"
)

// AdvisorMetrics holds all Prometheus metrics for the analysis pipeline.
type AdvisorMetrics struct {
	// PipelineRequestsTotal counts pipeline runs by final status.
	// Labels: status (success, error)
	PipelineRequestsTotal *prometheus.CounterVec

	// PipelineDurationSeconds measures whole-run duration.
	// Labels: status (success, error)
	PipelineDurationSeconds *prometheus.HistogramVec

	// StageDurationSeconds measures per-stage duration.
	// Labels: stage, status (completed, failed)
	StageDurationSeconds *prometheus.HistogramVec

	// ActivePipelines tracks concurrently running pipelines.
	ActivePipelines prometheus.Gauge

	// UploadBytes measures accepted dataset upload sizes.
	UploadBytes prometheus.Histogram

	// LLMRetriesTotal counts retried inference calls.
	LLMRetriesTotal prometheus.Counter

	// ErrorsTotal counts failures by category.
	// Labels: error_code
	ErrorsTotal *prometheus.CounterVec
}

// DefaultMetrics is the singleton instance, set by InitMetrics().
var (
	DefaultMetrics *AdvisorMetrics
	initOnce       sync.Once
)

// InitMetrics creates and registers all metrics on the default registry.
// Safe to call more than once; only the first call registers.
func InitMetrics() *AdvisorMetrics {
	initOnce.Do(func() {
		DefaultMetrics = newMetrics(promauto.With(prometheus.DefaultRegisterer))
	})
	return DefaultMetrics
}

// NewMetricsWithRegistry creates metrics bound to a caller-owned
// registry. Used by tests to avoid global registry conflicts.
func NewMetricsWithRegistry(reg prometheus.Registerer) *AdvisorMetrics {
	return newMetrics(promauto.With(reg))
}

func newMetrics(factory promauto.Factory) *AdvisorMetrics {
	return &AdvisorMetrics{
		PipelineRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: advisorSubsystem,
				Name:      "pipeline_requests_total",
				Help:      "Total pipeline runs by final status",
			},
			[]string{"status"},
		),

		PipelineDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: advisorSubsystem,
				Name:      "pipeline_duration_seconds",
				Help:      "Whole pipeline duration in seconds",
				Buckets:   []float64{1, 5, 10, 30, 60, 120, 300},
			},
			[]string{"status"},
		),

		StageDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: advisorSubsystem,
				Name:      "stage_duration_seconds",
				Help:      "Per-agent stage duration in seconds",
				Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"stage", "status"},
		),

		ActivePipelines: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: advisorSubsystem,
				Name:      "active_pipelines",
				Help:      "Number of pipeline runs currently in flight",
			},
		),

		UploadBytes: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: advisorSubsystem,
				Name:      "upload_bytes",
				Help:      "Accepted dataset upload sizes in bytes",
				Buckets:   prometheus.ExponentialBuckets(1024, 4, 9), // 1KiB .. 64MiB
			},
		),

		LLMRetriesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: advisorSubsystem,
				Name:      "llm_retries_total",
				Help:      "Total retried inference calls",
			},
		),

		ErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: advisorSubsystem,
				Name:      "errors_total",
				Help:      "Total failures by category",
			},
			[]string{"error_code"},
		),
	}
}

// =============================================================================
// Helper Methods
// =============================================================================

// RecordPipeline records a finished run's status and duration.
func (m *AdvisorMetrics) RecordPipeline(success bool, elapsed time.Duration) {
	status := "success"
	if !success {
		status = "error"
	}
	m.PipelineRequestsTotal.WithLabelValues(status).Inc()
	m.PipelineDurationSeconds.WithLabelValues(status).Observe(elapsed.Seconds())
}

// RecordStage records one agent stage's outcome and duration.
func (m *AdvisorMetrics) RecordStage(stage, status string, elapsed time.Duration) {
	m.StageDurationSeconds.WithLabelValues(stage, status).Observe(elapsed.Seconds())
}

// RecordError increments the error counter for a category.
func (m *AdvisorMetrics) RecordError(code ErrorCode) {
	m.ErrorsTotal.WithLabelValues(string(code)).Inc()
}

// RecordUpload observes an accepted upload's size.
func (m *AdvisorMetrics) RecordUpload(sizeBytes int64) {
	m.UploadBytes.Observe(float64(sizeBytes))
}

// RecordRetry increments the LLM retry counter.
func (m *AdvisorMetrics) RecordRetry() {
	m.LLMRetriesTotal.Inc()
}
