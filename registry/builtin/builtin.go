//
// Tencent is pleased to support the open source community by making trpc-flow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-flow-go is licensed under the Apache License Version 2.0.
//
//

// Package builtin registers the stock node methods shipped with the
// engine.
package builtin

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"trpc.group/trpc-go/trpc-flow-go/graph"
	"trpc.group/trpc-go/trpc-flow-go/log"
	"trpc.group/trpc-go/trpc-flow-go/registry"
)

// Owners registered by Module.
const (
	OwnerConsole = "console"
	OwnerMath    = "math"
	OwnerFlow    = "flow"
	OwnerData    = "data"
	OwnerTimer   = "timer"
	OwnerSignal  = "signal"
	OwnerCounter = "counter"
)

// Module returns the builtin module.
func Module() registry.Module {
	return registry.ModuleFunc(register)
}

type method struct {
	md *graph.MethodDetails
	fn graph.MethodFunc
}

func newMethod(owner, name, returnType string, fn graph.MethodFunc, params ...*graph.ParameterDetails) method {
	return method{
		md: &graph.MethodDetails{Owner: owner, Name: name, ReturnType: returnType, Params: params},
		fn: fn,
	}
}

func param(name, typ string) *graph.ParameterDetails {
	return &graph.ParameterDetails{Name: name, Type: typ}
}

func variadic(name, typ string) *graph.ParameterDetails {
	return &graph.ParameterDetails{Name: name, Type: typ, IsParams: true}
}

func register(r *registry.Registry) error {
	owners := []struct {
		name string
		ctor registry.Constructor
	}{
		{OwnerConsole, nil},
		{OwnerMath, nil},
		{OwnerFlow, nil},
		{OwnerData, nil},
		{OwnerTimer, nil},
		{OwnerSignal, func() (any, error) { return NewSignals(), nil }},
		{OwnerCounter, func() (any, error) { return &Counter{}, nil }},
	}
	for _, o := range owners {
		if err := r.RegisterOwner(o.name, o.ctor); err != nil {
			return err
		}
	}
	methods := []method{
		newMethod(OwnerConsole, "print", "any", consolePrint, param("message", "any")),
		newMethod(OwnerMath, "add", "float64", add, variadic("values", "float64")),
		newMethod(OwnerMath, "multiply", "float64", multiply, variadic("values", "float64")),
		newMethod(OwnerMath, "greater", "bool", greater, param("a", "float64"), param("b", "float64")),
		newMethod(OwnerMath, "equals", "bool", equals, param("a", "any"), param("b", "any")),
		newMethod(OwnerFlow, "delay", "", delay, param("duration", "duration")),
		newMethod(OwnerFlow, "complete", "any", complete, param("value", "any")),
		newMethod(OwnerFlow, "hold", "any", hold, param("value", "any")),
		newMethod(OwnerFlow, "fail", "", fail, param("reason", "string")),
		newMethod(OwnerData, "set", "any", dataSet, param("key", "string"), param("value", "any")),
		newMethod(OwnerData, "get", "any", dataGet, param("key", "string")),
		newMethod(OwnerData, "delete", "", dataDelete, param("key", "string")),
		newMethod(OwnerTimer, "tick", "time", tick, param("interval", "duration")),
		newMethod(OwnerSignal, "wait", "any", signalWait, param("name", "string")),
		newMethod(OwnerSignal, "fire", "bool", signalFire, param("name", "string"), param("value", "any")),
		newMethod(OwnerCounter, "increment", "int64", increment),
	}
	for _, m := range methods {
		if err := r.RegisterMethod(m.md, m.fn); err != nil {
			return err
		}
	}
	return nil
}

func consolePrint(_ context.Context, _ *graph.Context, _ any, args []any) graph.Result {
	log.Infof("%v", args[0])
	return graph.Ok(args[0])
}

func floats(arg any) []float64 {
	items, _ := arg.([]any)
	values := make([]float64, 0, len(items))
	for _, item := range items {
		if f, ok := item.(float64); ok {
			values = append(values, f)
		}
	}
	return values
}

func add(_ context.Context, _ *graph.Context, _ any, args []any) graph.Result {
	var sum float64
	for _, v := range floats(args[0]) {
		sum += v
	}
	return graph.Ok(sum)
}

func multiply(_ context.Context, _ *graph.Context, _ any, args []any) graph.Result {
	product := 1.0
	for _, v := range floats(args[0]) {
		product *= v
	}
	return graph.Ok(product)
}

func greater(_ context.Context, _ *graph.Context, _ any, args []any) graph.Result {
	a, b := args[0].(float64), args[1].(float64)
	if a > b {
		return graph.Ok(true)
	}
	return graph.Failed(fmt.Errorf("%v is not greater than %v", a, b))
}

func equals(_ context.Context, _ *graph.Context, _ any, args []any) graph.Result {
	if reflect.DeepEqual(args[0], args[1]) {
		return graph.Ok(true)
	}
	return graph.Failed(fmt.Errorf("%v does not equal %v", args[0], args[1]))
}

func delay(ctx context.Context, _ *graph.Context, _ any, args []any) graph.Result {
	timer := time.NewTimer(args[0].(time.Duration))
	defer timer.Stop()
	select {
	case <-timer.C:
		return graph.Ok(nil)
	case <-ctx.Done():
		return graph.Errored(ctx.Err())
	}
}

func complete(_ context.Context, fc *graph.Context, _ any, args []any) graph.Result {
	fc.Complete()
	return graph.Ok(args[0])
}

func hold(_ context.Context, _ *graph.Context, _ any, args []any) graph.Result {
	return graph.Hold(args[0])
}

func fail(_ context.Context, _ *graph.Context, _ any, args []any) graph.Result {
	return graph.Failed(fmt.Errorf("%s", args[0]))
}

func dataSet(ctx context.Context, fc *graph.Context, _ any, args []any) graph.Result {
	store := fc.Store()
	if store == nil {
		return graph.Errored(errNoStore)
	}
	if err := store.Set(ctx, args[0].(string), args[1]); err != nil {
		return graph.Errored(err)
	}
	return graph.Ok(args[1])
}

func dataGet(ctx context.Context, fc *graph.Context, _ any, args []any) graph.Result {
	store := fc.Store()
	if store == nil {
		return graph.Errored(errNoStore)
	}
	key := args[0].(string)
	v, ok, err := store.Get(ctx, key)
	if err != nil {
		return graph.Errored(err)
	}
	if !ok {
		return graph.Failed(fmt.Errorf("key %q not set", key))
	}
	return graph.Ok(v)
}

func dataDelete(ctx context.Context, fc *graph.Context, _ any, args []any) graph.Result {
	store := fc.Store()
	if store == nil {
		return graph.Errored(errNoStore)
	}
	if err := store.Delete(ctx, args[0].(string)); err != nil {
		return graph.Errored(err)
	}
	return graph.Ok(nil)
}

var errNoStore = errors.New("no data store attached to run")

// tick is a trigger that fires once per interval until its context ends.
func tick(ctx context.Context, _ *graph.Context, _ any, args []any) graph.Result {
	timer := time.NewTimer(args[0].(time.Duration))
	defer timer.Stop()
	select {
	case now := <-timer.C:
		return graph.Ok(now)
	case <-ctx.Done():
		return graph.Errored(graph.ErrTriggerCanceled)
	}
}

func signalWait(ctx context.Context, _ *graph.Context, instance any, args []any) graph.Result {
	sigs, ok := instance.(*Signals)
	if !ok {
		return graph.Errored(fmt.Errorf("signal owner instance is %T", instance))
	}
	return sigs.Get(args[0].(string)).Wait(ctx)
}

func signalFire(_ context.Context, _ *graph.Context, instance any, args []any) graph.Result {
	sigs, ok := instance.(*Signals)
	if !ok {
		return graph.Errored(fmt.Errorf("signal owner instance is %T", instance))
	}
	if !sigs.Get(args[0].(string)).TryFire(graph.Ok(args[1])) {
		return graph.Failed(fmt.Errorf("no trigger waiting on %q", args[0]))
	}
	return graph.Ok(true)
}

func increment(_ context.Context, _ *graph.Context, instance any, _ []any) graph.Result {
	c, ok := instance.(*Counter)
	if !ok {
		return graph.Errored(fmt.Errorf("counter owner instance is %T", instance))
	}
	return graph.Ok(c.Increment())
}

// Signals holds named trigger signals.
type Signals struct {
	mu      sync.Mutex
	signals map[string]*graph.Signal
}

// NewSignals creates an empty signal set.
func NewSignals() *Signals {
	return &Signals{signals: make(map[string]*graph.Signal)}
}

// Get returns the signal called name, creating it on first use.
func (s *Signals) Get(name string) *graph.Signal {
	s.mu.Lock()
	defer s.mu.Unlock()
	sig, ok := s.signals[name]
	if !ok {
		sig = graph.NewSignal()
		s.signals[name] = sig
	}
	return sig
}

// CancelAll cancels every signal.
func (s *Signals) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sig := range s.signals {
		sig.Cancel()
	}
}

// Counter is a shared counter.
type Counter struct {
	n atomic.Int64
}

// Increment adds one and returns the new value.
func (c *Counter) Increment() int64 {
	return c.n.Add(1)
}
