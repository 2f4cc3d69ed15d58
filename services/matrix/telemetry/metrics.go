// Copyright (C) 2025 Every Labs (eng@everylabs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package telemetry

import (
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

// Metrics contains the pre-defined instruments for matrixd. All metrics
// use the "matrix_" prefix. Safe for concurrent use after creation.
type Metrics struct {
	// AssignmentsTotal counts assignment resolutions by persona, goal,
	// and chosen app.
	AssignmentsTotal metric.Int64Counter

	// EventsIngestedTotal counts analytics events accepted by type.
	EventsIngestedTotal metric.Int64Counter

	// OptimizeRunsTotal counts optimization runs by heuristic.
	OptimizeRunsTotal metric.Int64Counter

	// OptimizeDuration records optimization run duration in seconds.
	OptimizeDuration metric.Float64Histogram

	// ConfigUpdatesTotal counts accepted config writes by source.
	ConfigUpdatesTotal metric.Int64Counter

	// StatsRequestsTotal counts significance and sample-size computations
	// by kind and status.
	StatsRequestsTotal metric.Int64Counter
}

// NewMetrics registers all matrixd instruments with the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.AssignmentsTotal, err = meter.Int64Counter(
		"matrix_assignments_total",
		metric.WithDescription("Total assignment resolutions"),
		metric.WithUnit("{assignment}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create assignments_total: %w", err)
	}

	m.EventsIngestedTotal, err = meter.Int64Counter(
		"matrix_events_ingested_total",
		metric.WithDescription("Total analytics events accepted"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create events_ingested_total: %w", err)
	}

	m.OptimizeRunsTotal, err = meter.Int64Counter(
		"matrix_optimize_runs_total",
		metric.WithDescription("Total matrix optimization runs"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create optimize_runs_total: %w", err)
	}

	m.OptimizeDuration, err = meter.Float64Histogram(
		"matrix_optimize_duration_seconds",
		metric.WithDescription("Matrix optimization duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5),
	)
	if err != nil {
		return nil, fmt.Errorf("create optimize_duration: %w", err)
	}

	m.ConfigUpdatesTotal, err = meter.Int64Counter(
		"matrix_config_updates_total",
		metric.WithDescription("Total accepted config writes"),
		metric.WithUnit("{update}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create config_updates_total: %w", err)
	}

	m.StatsRequestsTotal, err = meter.Int64Counter(
		"matrix_stats_requests_total",
		metric.WithDescription("Total statistical computations served"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create stats_requests_total: %w", err)
	}

	return m, nil
}
