// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Package-level tracer and meter for graph operations.
var (
	tracer = otel.Tracer("callflow.graph")
	meter  = otel.Meter("callflow.graph")
)

// Metrics for graph building and transforms.
var (
	buildLatency      metric.Float64Histogram
	buildTotal        metric.Int64Counter
	nodesCreated      metric.Int64Histogram
	edgesCreated      metric.Int64Histogram
	ambiguousCalls    metric.Int64Counter
	transformLatency  metric.Float64Histogram
	transformRemovals metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		buildLatency, err = meter.Float64Histogram(
			"graph_build_duration_seconds",
			metric.WithDescription("Duration of graph build operations"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		buildTotal, err = meter.Int64Counter(
			"graph_build_total",
			metric.WithDescription("Total number of graph build operations"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		nodesCreated, err = meter.Int64Histogram(
			"graph_nodes_created",
			metric.WithDescription("Number of nodes created per build"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		edgesCreated, err = meter.Int64Histogram(
			"graph_edges_created",
			metric.WithDescription("Number of edges created per build"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		ambiguousCalls, err = meter.Int64Counter(
			"graph_ambiguous_calls_total",
			metric.WithDescription("Call sites left unlinked because of multiple candidates"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		transformLatency, err = meter.Float64Histogram(
			"graph_transform_duration_seconds",
			metric.WithDescription("Duration of scope-limiting transforms"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		transformRemovals, err = meter.Int64Counter(
			"graph_transform_removed_nodes_total",
			metric.WithDescription("Nodes removed by scope-limiting transforms"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// recordBuildMetrics records metrics for a build operation.
func recordBuildMetrics(ctx context.Context, duration time.Duration, stats BuildStats, success bool) {
	if err := initMetrics(); err != nil {
		return
	}

	attrs := metric.WithAttributes(attribute.Bool("success", success))

	buildLatency.Record(ctx, duration.Seconds(), attrs)
	buildTotal.Add(ctx, 1, attrs)

	if success {
		nodesCreated.Record(ctx, int64(stats.NodesCreated))
		edgesCreated.Record(ctx, int64(stats.EdgesCreated))
		ambiguousCalls.Add(ctx, int64(stats.AmbiguousCalls))
	}
}

// recordTransformMetrics records metrics for a transform.
func recordTransformMetrics(ctx context.Context, transform string, duration time.Duration, removed int) {
	if err := initMetrics(); err != nil {
		return
	}

	attrs := metric.WithAttributes(attribute.String("transform", transform))
	transformLatency.Record(ctx, duration.Seconds(), attrs)
	transformRemovals.Add(ctx, int64(removed), attrs)
}

// startBuildSpan creates a span for a build operation.
func startBuildSpan(ctx context.Context, fileCount int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "GraphBuilder.Build",
		trace.WithAttributes(
			attribute.Int("graph.file_count", fileCount),
		),
	)
}

// setBuildSpanResult sets the result attributes on a build span.
func setBuildSpanResult(span trace.Span, stats BuildStats) {
	span.SetAttributes(
		attribute.Int("graph.node_count", stats.NodesCreated),
		attribute.Int("graph.edge_count", stats.EdgesCreated),
		attribute.Int("graph.ambiguous_calls", stats.AmbiguousCalls),
	)
}

// startTransformSpan creates a span for a transform such as "Graph.Subset".
func startTransformSpan(ctx context.Context, name string, nodeCount int) (context.Context, trace.Span) {
	return tracer.Start(ctx, name,
		trace.WithAttributes(
			attribute.Int("graph.node_count", nodeCount),
		),
	)
}
