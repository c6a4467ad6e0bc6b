// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package reason

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// reasonTracerName is the shared OTel tracer name for the reasoning service.
const reasonTracerName = "shopmind.reason"

// Recovery outcome label values for recoveryOutcomesTotal.
const (
	outcomeParsed   = "parsed"
	outcomeRepaired = "repaired"
	outcomeFallback = "fallback"
)

// Package-level Prometheus metrics for the reasoning pipeline.
// Auto-registered via promauto so no explicit registry wiring is needed.
var (
	// reasonRequestDuration measures end-to-end request handling per endpoint.
	//
	// Labels:
	//   - endpoint: "reason", "app_reason", "reason_image"
	//   - status: "success" or "error"
	reasonRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "shopmind",
			Subsystem: "reason",
			Name:      "request_duration_seconds",
			Help:      "Duration of reasoning requests in seconds.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"endpoint", "status"},
	)

	// recoveryOutcomesTotal counts how each model output was recovered.
	//
	// Labels:
	//   - outcome: "parsed" (valid as emitted), "repaired" (completion
	//     repair succeeded), "fallback" (unrecoverable; hardcoded plan)
	recoveryOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "shopmind",
			Subsystem: "reason",
			Name:      "recovery_outcomes_total",
			Help:      "Model output recovery outcomes.",
		},
		[]string{"outcome"},
	)

	// oracleCallDuration measures individual model runtime calls.
	//
	// Labels:
	//   - kind: "completion" or "caption"
	//   - status: "success" or "error"
	oracleCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "shopmind",
			Subsystem: "reason",
			Name:      "oracle_call_duration_seconds",
			Help:      "Duration of model runtime calls in seconds.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"kind", "status"},
	)

	// cacheEventsTotal counts completion cache activity.
	//
	// Labels:
	//   - event: "hit", "miss", "error"
	cacheEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "shopmind",
			Subsystem: "reason",
			Name:      "cache_events_total",
			Help:      "Completion cache hits, misses, and errors.",
		},
		[]string{"event"},
	)
)

// recordRequestMetrics records one completed request.
func recordRequestMetrics(endpoint string, started time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	reasonRequestDuration.WithLabelValues(endpoint, status).Observe(time.Since(started).Seconds())
}

// recordOracleCall records one model runtime call.
func recordOracleCall(kind string, started time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	oracleCallDuration.WithLabelValues(kind, status).Observe(time.Since(started).Seconds())
}

// truncateForLog bounds raw model output in log lines. Model output can be
// arbitrarily long and is not trusted; logs get a prefix only.
func truncateForLog(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
