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
	"errors"
	"fmt"
)

// ResultKind tags the outcome of a node callable.
type ResultKind int

// Result kinds.
const (
	ResultOk ResultKind = iota
	ResultFailed
	ResultErrored
	ResultHold
)

// Result is the tagged value returned by a node callable.
type Result struct {
	Kind  ResultKind
	Value any
	// Err carries the failure reason or the error cause.
	Err error
}

// Ok reports success.
func Ok(v any) Result { return Result{Kind: ResultOk, Value: v} }

// Failed reports an expected failure; the Fail branch is taken.
func Failed(reason error) Result { return Result{Kind: ResultFailed, Err: reason} }

// Errored reports an unexpected error; the Error branch is taken.
func Errored(cause error) Result { return Result{Kind: ResultErrored, Err: cause} }

// Hold reports a value without advancing to any outcome successor.
func Hold(v any) Result { return Result{Kind: ResultHold, Value: v} }

// Orientation maps the result to the connection kind taken next.
func (r Result) Orientation() ConnectionInvokeType {
	switch r.Kind {
	case ResultOk:
		return ConnectionSucceed
	case ResultFailed:
		return ConnectionFail
	case ResultErrored:
		return ConnectionError
	default:
		return ConnectionNone
	}
}

// State maps the result to the recorded invoke state.
func (r Result) State() InvokeState {
	switch r.Kind {
	case ResultOk:
		return InvokeStateSucceed
	case ResultFailed:
		return InvokeStateFail
	case ResultErrored:
		return InvokeStateError
	default:
		return InvokeStateHold
	}
}

// FlowResult is the value produced by a node, as returned from a run.
type FlowResult struct {
	NodeID string
	Value  any
}

// MethodFunc is the callable behind a node. instance is the owner object
// from the dependency container, or nil for owners without state.
type MethodFunc func(ctx context.Context, fc *Context, instance any, args []any) Result

// Func adapts a plain function. A non-nil error becomes Errored.
func Func(fn func(ctx context.Context, args []any) (any, error)) MethodFunc {
	return func(ctx context.Context, _ *Context, _ any, args []any) Result {
		v, err := fn(ctx, args)
		if err != nil {
			return Errored(err)
		}
		return Ok(v)
	}
}

// call invokes fn and turns a panic into an Errored result.
func call(ctx context.Context, fn MethodFunc, fc *Context, instance any, args []any) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			if err, ok := r.(error); ok {
				res = Errored(fmt.Errorf("%w: %w", ErrNodePanic, err))
				return
			}
			res = Errored(fmt.Errorf("%w: %v", ErrNodePanic, r))
		}
	}()
	return fn(ctx, fc, instance, args)
}

// isTriggerCanceled reports whether the result ends an embedded trigger.
func (r Result) isTriggerCanceled() bool {
	return r.Kind == ResultErrored && errors.Is(r.Err, ErrTriggerCanceled)
}
