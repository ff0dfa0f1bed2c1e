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
	"sync"
)

// Signal is the arm/fire primitive behind trigger nodes. A trigger
// callable waits on its signal; whoever fires it decides the result the
// trigger returns. A signal can fire any number of times until canceled.
type Signal struct {
	ch       chan Result
	once     sync.Once
	canceled chan struct{}
}

// NewSignal creates a signal.
func NewSignal() *Signal {
	return &Signal{
		ch:       make(chan Result),
		canceled: make(chan struct{}),
	}
}

// Wait blocks until the signal fires. It returns Errored(ErrTriggerCanceled)
// when the signal is canceled or ctx ends.
func (s *Signal) Wait(ctx context.Context) Result {
	select {
	case r := <-s.ch:
		return r
	case <-s.canceled:
		return Errored(ErrTriggerCanceled)
	case <-ctx.Done():
		return Errored(ErrTriggerCanceled)
	}
}

// Fire hands r to a waiter, blocking until one arrives.
func (s *Signal) Fire(ctx context.Context, r Result) error {
	select {
	case s.ch <- r:
		return nil
	case <-s.canceled:
		return ErrTriggerCanceled
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryFire hands r to a waiter only if one is already waiting.
func (s *Signal) TryFire(r Result) bool {
	select {
	case s.ch <- r:
		return true
	default:
		return false
	}
}

// Cancel releases every current and future waiter.
func (s *Signal) Cancel() {
	s.once.Do(func() { close(s.canceled) })
}

// Canceled reports whether Cancel was called.
func (s *Signal) Canceled() bool {
	select {
	case <-s.canceled:
		return true
	default:
		return false
	}
}
