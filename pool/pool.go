//
// Tencent is pleased to support the open source community by making trpc-flow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-flow-go is licensed under the Apache License Version 2.0.
//
//

// Package pool provides a bounded, concurrency safe cache of reusable objects.
//
// The engine borrows execution contexts and traversal stacks from a Pool
// around every run. An instance belongs to exactly one borrower between
// Allocate and Free.
package pool

import "sync"

// DefaultMaxIdle is the default number of idle instances kept for reuse.
const DefaultMaxIdle = 64

// Pool caches reusable instances of T.
type Pool[T any] struct {
	mu      sync.Mutex
	idle    []T
	live    int
	newFn   func() T
	resetFn func(T)
	maxIdle int
}

// Option configures a Pool.
type Option[T any] func(*Pool[T])

// WithReset sets the function applied to an instance when it is freed.
func WithReset[T any](reset func(T)) Option[T] {
	return func(p *Pool[T]) {
		p.resetFn = reset
	}
}

// WithMaxIdle bounds the number of idle instances retained.
// Non-positive values fall back to DefaultMaxIdle.
func WithMaxIdle[T any](n int) Option[T] {
	return func(p *Pool[T]) {
		if n <= 0 {
			n = DefaultMaxIdle
		}
		p.maxIdle = n
	}
}

// New creates a pool that builds fresh instances with newFn.
func New[T any](newFn func() T, opts ...Option[T]) *Pool[T] {
	p := &Pool[T]{
		newFn:   newFn,
		maxIdle: DefaultMaxIdle,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Allocate returns an idle instance or a newly constructed one.
func (p *Pool[T]) Allocate() T {
	p.mu.Lock()
	p.live++
	if n := len(p.idle); n > 0 {
		v := p.idle[n-1]
		var zero T
		p.idle[n-1] = zero
		p.idle = p.idle[:n-1]
		p.mu.Unlock()
		return v
	}
	p.mu.Unlock()
	return p.newFn()
}

// Free resets v and returns it for reuse. Instances beyond the idle
// bound are dropped for the garbage collector.
func (p *Pool[T]) Free(v T) {
	if p.resetFn != nil {
		p.resetFn(v)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.live > 0 {
		p.live--
	}
	if len(p.idle) < p.maxIdle {
		p.idle = append(p.idle, v)
	}
}

// Idle reports the number of cached instances.
func (p *Pool[T]) Idle() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.idle)
}

// Live reports the number of borrowed instances.
func (p *Pool[T]) Live() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.live
}
