//
// Tencent is pleased to support the open source community by making trpc-flow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-flow-go is licensed under the Apache License Version 2.0.
//
//

// Package telemetry holds the shared tracing and metric state of the flow engine.
package telemetry

import (
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// grpcDial is a package-level variable to allow test injection of a custom dialer.
var grpcDial = grpc.Dial

// telemetry service constants.
const (
	ServiceName      = "telemetry"
	ServiceVersion   = "v0.1.0"
	ServiceNamespace = "trpc-go-flow"
	InstrumentName   = "trpc.flow.go"

	OperationInvokeNode = "invoke_node"
	OperationRunFlow    = "run_flow"
)

const (
	// ProtocolGRPC uses gRPC protocol for OTLP exporter.
	ProtocolGRPC string = "grpc"
	// ProtocolHTTP uses HTTP protocol for OTLP exporter.
	ProtocolHTTP string = "http"
)

// Span and metric attribute keys.
const (
	KeyFlowName     = "trpc.flow.name"
	KeyFlowRunID    = "trpc.flow.run_id"
	KeyFlowNodeID   = "trpc.flow.node_id"
	KeyFlowMethod   = "trpc.flow.method"
	KeyFlowVia      = "trpc.flow.via"
	KeyFlowPrevious = "trpc.flow.previous_node_id"
	KeyFlowState    = "trpc.flow.state"
)

// NewInvokeNodeSpanName returns the span name of one node invocation.
func NewInvokeNodeSpanName(nodeID string) string {
	return fmt.Sprintf("%s %s", OperationInvokeNode, nodeID)
}

// NewRunFlowSpanName returns the span name of one traversal.
func NewRunFlowSpanName(flow string) string {
	if flow == "" {
		return OperationRunFlow
	}
	return fmt.Sprintf("%s %s", OperationRunFlow, flow)
}

// NewGRPCConn creates a gRPC connection to the OpenTelemetry collector.
func NewGRPCConn(endpoint string) (*grpc.ClientConn, error) {
	conn, err := grpcDial(endpoint,
		// Note the use of insecure transport here. TLS is recommended in production.
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC connection to collector: %w", err)
	}
	return conn, nil
}
