//
// Tencent is pleased to support the open source community by making trpc-flow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-flow-go is licensed under the Apache License Version 2.0.
//
//

package graph

import (
	"context"
	"time"
)

// DefaultMaxInvokeLogRuns is the number of runs an in-process invoke log
// keeps before the oldest are dropped.
const DefaultMaxInvokeLogRuns = 100

// InvokeInfo records one node invocation of a traced run.
type InvokeInfo struct {
	ID             string               `json:"id"`
	RunID          string               `json:"runId"`
	PreviousNodeID string               `json:"previousNodeId,omitempty"`
	NodeID         string               `json:"nodeId"`
	Via            ConnectionInvokeType `json:"via"`
	State          InvokeState          `json:"state"`
	Value          any                  `json:"value,omitempty"`
	Err            string               `json:"error,omitempty"`
	Start          time.Time            `json:"start"`
	End            time.Time            `json:"end"`
}

// Duration returns how long the invocation took.
func (i *InvokeInfo) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

// InvokeLogSaver persists the invoke infos of traced runs.
type InvokeLogSaver interface {
	// Save appends infos to the log of runID.
	Save(ctx context.Context, runID string, infos []*InvokeInfo) error
	// List returns the log of runID in call order.
	List(ctx context.Context, runID string) ([]*InvokeInfo, error)
	// Runs returns the IDs of the stored runs, most recent first.
	Runs(ctx context.Context, limit int) ([]string, error)
	// Delete removes the log of runID.
	Delete(ctx context.Context, runID string) error
}
