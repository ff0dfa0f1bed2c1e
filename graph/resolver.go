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
	"fmt"

	"golang.org/x/sync/errgroup"
)

// resolveArgs builds the argument array of node. Fixed parameters resolve
// concurrently, then the variadic tail resolves as a second batch and is
// packed into one trailing []any.
func (e *Executor) resolveArgs(ctx context.Context, fc *Context, g *Graph, node *Node) ([]any, error) {
	md := node.Method
	if len(md.Params) == 0 {
		return []any{}, nil
	}
	protect := node.ProtectParameters()
	if protect {
		if cached, ok := node.cachedArgs(); ok {
			return cached, nil
		}
	}

	fixed, err := e.resolveBatch(ctx, fc, g, node, md.FixedParams())
	if err != nil {
		return nil, err
	}
	args := fixed
	if md.HasParamsArg {
		tail, err := e.resolveBatch(ctx, fc, g, node, md.VariadicParams())
		if err != nil {
			return nil, err
		}
		args = append(args, tail)
	}
	if protect {
		node.cacheArgs(args)
	}
	return args, nil
}

func (e *Executor) resolveBatch(ctx context.Context, fc *Context, g *Graph, node *Node,
	params []*ParameterDetails) ([]any, error) {
	values := make([]any, len(params))
	if len(params) == 0 {
		return values, nil
	}
	eg, egCtx := errgroup.WithContext(ctx)
	for i, p := range params {
		i, p := i, p
		eg.Go(func() error {
			v, err := e.resolveParam(egCtx, fc, g, node, p)
			if err != nil {
				return err
			}
			values[i] = v
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return values, nil
}

func (e *Executor) resolveParam(ctx context.Context, fc *Context, g *Graph, node *Node,
	p *ParameterDetails) (any, error) {
	v, ok, err := e.lookupParam(ctx, fc, g, node, p)
	if err != nil {
		return nil, fmt.Errorf("resolve %s.%s: %w", node.ID, p.Name, err)
	}
	if !ok || v == nil {
		if p.Nullable {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %s.%s (%s)", ErrArgumentMissing, node.ID, p.Name, p.ArgSource)
	}
	converted, err := Convert(v, p.Type)
	if err != nil {
		return nil, fmt.Errorf("resolve %s.%s: %w", node.ID, p.Name, err)
	}
	return converted, nil
}

func (e *Executor) lookupParam(ctx context.Context, fc *Context, g *Graph, node *Node,
	p *ParameterDetails) (any, bool, error) {
	if v, ok := fc.injectedArg(node.ID, p.Name); ok {
		return v, true, nil
	}
	if p.Explicit {
		return p.Value, true, nil
	}
	switch p.ArgSource {
	case ArgSourcePreviousNodeData:
		prev := fc.Previous(node.ID)
		if prev == "" {
			return nil, false, nil
		}
		v, ok := fc.Result(prev)
		return v, ok, nil
	case ArgSourceOtherNodeData:
		v, ok := fc.Result(p.SourceNodeID)
		return v, ok, nil
	case ArgSourceOtherNodeDataOfInvoke:
		return e.invokeSource(ctx, fc, g, p.SourceNodeID)
	default:
		return p.Value, true, nil
	}
}

// invokeSource runs the source node once and uses its fresh value.
func (e *Executor) invokeSource(ctx context.Context, fc *Context, g *Graph, sourceID string) (any, bool, error) {
	if g == nil {
		return nil, false, fmt.Errorf("%w: %s", ErrNodeNotFound, sourceID)
	}
	src, ok := g.Node(sourceID)
	if !ok {
		return nil, false, fmt.Errorf("%w: %s", ErrNodeNotFound, sourceID)
	}
	res := e.InvokeNode(ctx, fc, g, src)
	switch res.Kind {
	case ResultErrored, ResultFailed:
		reason := res.Err
		if reason == nil {
			reason = ErrSourceFailed
		}
		return nil, false, fmt.Errorf("invoke source %s: %w", sourceID, reason)
	}
	return res.Value, true, nil
}
