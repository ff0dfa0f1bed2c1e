//
// Tencent is pleased to support the open source community by making trpc-flow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-flow-go is licensed under the Apache License Version 2.0.
//
//

package runner

import (
	"context"
	"fmt"

	"trpc.group/trpc-go/trpc-flow-go/graph"
)

func (r *runner) publicNode(nodeID string) (*flow, *graph.Node, bool) {
	for _, f := range r.flows {
		if n, ok := f.graph.Node(nodeID); ok && n.Public {
			return f, n, true
		}
	}
	return nil, nil, false
}

// Invoke runs the public node nodeID to completion on a fresh context.
// The runner does not need to be started. args must name every parameter
// of the node exactly once; slots of a variadic tail are named as
// AlignParams names them. The value of
// the last executed node is returned; a run that ends on a node error
// returns ErrInvokeFailed.
func (r *runner) Invoke(ctx context.Context, nodeID string, args map[string]any) (any, error) {
	f, node, ok := r.publicNode(nodeID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotPublic, nodeID)
	}
	params := node.Method.Params
	if len(args) != len(params) {
		return nil, fmt.Errorf("%w: %s expects %d arguments, got %d",
			ErrArgumentCountMismatch, nodeID, len(params), len(args))
	}
	names := make(map[string]bool, len(params))
	for _, p := range params {
		names[p.Name] = true
	}
	for name := range args {
		if !names[name] {
			return nil, fmt.Errorf("%w: %s has no parameter %q", ErrUnknownArgument, nodeID, name)
		}
	}

	if err := r.prepareFlow(f); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvokeFailed, nodeID, err)
	}

	fc := r.executor.NewContext()
	for name, v := range args {
		fc.Inject(nodeID, name, v)
	}
	res, err := r.executor.Run(ctx, fc, f.graph, node)
	if err != nil {
		return nil, err
	}
	if fc.NextOrientation() == graph.ConnectionError && fc.Err() != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvokeFailed, nodeID, fc.Err())
	}
	if res == nil {
		return nil, nil
	}
	return res.Value, nil
}

// InvokeAs invokes nodeID and casts the result to T.
func InvokeAs[T any](ctx context.Context, r Runner, nodeID string, args map[string]any) (T, error) {
	var zero T
	v, err := r.Invoke(ctx, nodeID, args)
	if err != nil {
		return zero, err
	}
	if v == nil && any(zero) == nil {
		return zero, nil
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %s returned %T, want %T", ErrTypeMismatch, nodeID, v, zero)
	}
	return t, nil
}
