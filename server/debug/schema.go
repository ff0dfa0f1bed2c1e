//
// Tencent is pleased to support the open source community by making trpc-flow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-flow-go is licensed under the Apache License Version 2.0.
//
//

package debug

// FlowInfo summarizes a loaded flow.
type FlowInfo struct {
	Name        string   `json:"name"`
	StartNodeID string   `json:"startNodeId,omitempty"`
	Triggers    []string `json:"triggers,omitempty"`
	NodeCount   int      `json:"nodeCount"`
}

// NodeInfo is the debug state of a node.
type NodeInfo struct {
	ID                string `json:"id"`
	Method            string `json:"method,omitempty"`
	Enabled           bool   `json:"enabled"`
	Interrupted       bool   `json:"interrupted"`
	ProtectParameters bool   `json:"protectParameters"`
	Public            bool   `json:"public"`
}

// NodeUpdate changes the debug settings of a node. Nil fields are left
// as they are.
type NodeUpdate struct {
	Enabled           *bool `json:"enabled,omitempty"`
	ProtectParameters *bool `json:"protectParameters,omitempty"`
}

// InvokeRequest is the body of an invoke call.
type InvokeRequest struct {
	Args map[string]any `json:"args"`
}

// InvokeResponse carries the value an invoked node returned.
type InvokeResponse struct {
	Value any `json:"value"`
}

// ErrorResponse is written for every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Span is an exported span of a traced run.
type Span struct {
	Name         string         `json:"name"`
	SpanID       string         `json:"span_id"`
	TraceID      string         `json:"trace_id"`
	ParentSpanID string         `json:"parent_span_id"`
	StartTime    int64          `json:"start_time"`
	EndTime      int64          `json:"end_time"`
	Attributes   map[string]any `json:"attributes"`
}
