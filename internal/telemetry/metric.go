//
// Tencent is pleased to support the open source community by making trpc-flow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-flow-go is licensed under the Apache License Version 2.0.
//
//

package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Meter and metric names.
const (
	MeterNameFlow = "trpc_flow_go.flow"

	MetricNodeInvokeCnt   = "trpc_flow_go.node.invoke.count"
	MetricNodeErrorCnt    = "trpc_flow_go.node.error.count"
	MetricNodeDuration    = "trpc_flow_go.node.duration"
	MetricTriggerFireCnt  = "trpc_flow_go.trigger.fire.count"
	MetricFlowCanceledCnt = "trpc_flow_go.flow.canceled.count"
)

var (
	MeterProvider metric.MeterProvider = noop.NewMeterProvider()

	FlowMeter                metric.Meter            = MeterProvider.Meter(MeterNameFlow)
	FlowMetricNodeInvokeCnt  metric.Int64Counter     = noop.Int64Counter{}
	FlowMetricNodeErrorCnt   metric.Int64Counter     = noop.Int64Counter{}
	FlowMetricNodeDuration   metric.Float64Histogram = noop.Float64Histogram{}
	FlowMetricTriggerFireCnt metric.Int64Counter     = noop.Int64Counter{}
	FlowMetricCanceledCnt    metric.Int64Counter     = noop.Int64Counter{}
)

// RecordNodeInvoke records one node invocation with its outcome.
func RecordNodeInvoke(ctx context.Context, flow, method, state string, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String(KeyFlowName, flow),
		attribute.String(KeyFlowMethod, method),
		attribute.String(KeyFlowState, state),
	)
	FlowMetricNodeInvokeCnt.Add(ctx, 1, attrs)
	FlowMetricNodeDuration.Record(ctx, duration.Seconds(), attrs)
}

// IncNodeErrorCnt counts a node that took the Error branch.
func IncNodeErrorCnt(ctx context.Context, flow, method string) {
	FlowMetricNodeErrorCnt.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String(KeyFlowName, flow),
			attribute.String(KeyFlowMethod, method),
		))
}

// IncTriggerFireCnt counts a global trigger firing.
func IncTriggerFireCnt(ctx context.Context, flow, nodeID string) {
	FlowMetricTriggerFireCnt.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String(KeyFlowName, flow),
			attribute.String(KeyFlowNodeID, nodeID),
		))
}

// IncFlowCanceledCnt counts a traversal cut short by cancellation.
func IncFlowCanceledCnt(ctx context.Context, flow string) {
	FlowMetricCanceledCnt.Add(ctx, 1,
		metric.WithAttributes(attribute.String(KeyFlowName, flow)))
}
