//
// Tencent is pleased to support the open source community by making trpc-flow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-flow-go is licensed under the Apache License Version 2.0.
//
//

// Package metric exports flow engine metrics over OTLP.
package metric

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"

	itelemetry "trpc.group/trpc-go/trpc-flow-go/internal/telemetry"
)

// DefaultExportInterval is how often collected metrics are pushed.
const DefaultExportInterval = 30 * time.Second

type int64Counter struct {
	name, desc string
	dst        *metric.Int64Counter
}

func counters() []int64Counter {
	return []int64Counter{
		{itelemetry.MetricNodeInvokeCnt, "Node invocations", &itelemetry.FlowMetricNodeInvokeCnt},
		{itelemetry.MetricNodeErrorCnt, "Node invocations that took the error branch", &itelemetry.FlowMetricNodeErrorCnt},
		{itelemetry.MetricTriggerFireCnt, "Global trigger firings", &itelemetry.FlowMetricTriggerFireCnt},
		{itelemetry.MetricFlowCanceledCnt, "Traversals cut short by cancellation", &itelemetry.FlowMetricCanceledCnt},
	}
}

// InitMeterProvider makes mp the source of the engine's instruments.
func InitMeterProvider(mp metric.MeterProvider) error {
	if mp == nil {
		return errors.New("meter provider is nil")
	}
	meter := mp.Meter(itelemetry.MeterNameFlow)
	for _, c := range counters() {
		inst, err := meter.Int64Counter(c.name, metric.WithDescription(c.desc), metric.WithUnit("1"))
		if err != nil {
			return fmt.Errorf("create %s: %w", c.name, err)
		}
		*c.dst = inst
	}
	hist, err := meter.Float64Histogram(itelemetry.MetricNodeDuration,
		metric.WithDescription("Node invocation latency"), metric.WithUnit("s"))
	if err != nil {
		return fmt.Errorf("create %s: %w", itelemetry.MetricNodeDuration, err)
	}
	itelemetry.FlowMetricNodeDuration = hist
	itelemetry.MeterProvider = mp
	itelemetry.FlowMeter = meter
	return nil
}

// GetMeterProvider returns the installed meter provider.
func GetMeterProvider() metric.MeterProvider {
	return itelemetry.MeterProvider
}

// Start builds an OTLP meter provider, installs it and returns the
// function that flushes and shuts it down.
func Start(ctx context.Context, opts ...Option) (clean func() error, err error) {
	mp, err := NewMeterProvider(ctx, opts...)
	if err != nil {
		return nil, err
	}
	if err := InitMeterProvider(mp); err != nil {
		return nil, errors.Join(err, mp.Shutdown(ctx))
	}
	return func() error {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return mp.Shutdown(sctx)
	}, nil
}

// NewMeterProvider creates a meter provider pushing to an OTLP collector.
// Without WithEndpoint the endpoint comes from
// OTEL_EXPORTER_OTLP_METRICS_ENDPOINT, then OTEL_EXPORTER_OTLP_ENDPOINT.
func NewMeterProvider(ctx context.Context, opts ...Option) (*sdkmetric.MeterProvider, error) {
	o := &options{
		serviceName: itelemetry.ServiceName,
		protocol:    itelemetry.ProtocolGRPC,
		interval:    DefaultExportInterval,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.endpoint == "" {
		o.endpoint = metricsEndpoint(o.protocol)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNamespace(itelemetry.ServiceNamespace),
			semconv.ServiceName(o.serviceName),
			semconv.ServiceVersion(itelemetry.ServiceVersion),
		),
		resource.WithFromEnv(),
		resource.WithTelemetrySDK(),
	)
	if err != nil {
		return nil, fmt.Errorf("metric resource: %w", err)
	}

	var exp sdkmetric.Exporter
	if o.protocol == itelemetry.ProtocolHTTP {
		exp, err = otlpmetrichttp.New(ctx,
			otlpmetrichttp.WithEndpoint(o.endpoint),
			otlpmetrichttp.WithInsecure())
	} else {
		exp, err = newGRPCExporter(ctx, o.endpoint)
	}
	if err != nil {
		return nil, fmt.Errorf("metric exporter: %w", err)
	}

	readerOpts := []sdkmetric.PeriodicReaderOption{sdkmetric.WithInterval(o.interval)}
	return sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp, readerOpts...)),
		sdkmetric.WithResource(res),
	), nil
}

func newGRPCExporter(ctx context.Context, endpoint string) (sdkmetric.Exporter, error) {
	conn, err := itelemetry.NewGRPCConn(endpoint)
	if err != nil {
		return nil, err
	}
	return otlpmetricgrpc.New(ctx, otlpmetricgrpc.WithGRPCConn(conn))
}

func metricsEndpoint(protocol string) string {
	for _, key := range []string{"OTEL_EXPORTER_OTLP_METRICS_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT"} {
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	if protocol == itelemetry.ProtocolHTTP {
		return "localhost:4318"
	}
	return "localhost:4317"
}

// Option configures NewMeterProvider.
type Option func(*options)

type options struct {
	endpoint    string
	protocol    string
	serviceName string
	interval    time.Duration
}

// WithEndpoint sets the collector host and port.
func WithEndpoint(endpoint string) Option {
	return func(o *options) { o.endpoint = endpoint }
}

// WithProtocol selects "grpc" (default) or "http".
func WithProtocol(protocol string) Option {
	return func(o *options) { o.protocol = protocol }
}

// WithServiceName overrides the service.name resource attribute.
func WithServiceName(name string) Option {
	return func(o *options) { o.serviceName = name }
}

// WithExportInterval sets the push period. Non-positive values keep the
// default.
func WithExportInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.interval = d
		}
	}
}
