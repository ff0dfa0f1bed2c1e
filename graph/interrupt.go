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

// debugSetting holds the per-node switches an operator can flip while a
// flow is running.
type debugSetting struct {
	mu          sync.Mutex
	enabled     bool
	interrupted bool
	protect     bool
	// resume is closed when an interrupted node is released.
	resume chan struct{}
}

// Enabled reports whether the node takes part in traversals.
func (n *Node) Enabled() bool {
	n.debug.mu.Lock()
	defer n.debug.mu.Unlock()
	return n.debug.enabled
}

// SetEnabled enables or disables the node.
func (n *Node) SetEnabled(enabled bool) {
	n.debug.mu.Lock()
	n.debug.enabled = enabled
	n.debug.mu.Unlock()
}

// ProtectParameters reports whether the first resolved argument array is
// reused for later invocations.
func (n *Node) ProtectParameters() bool {
	n.debug.mu.Lock()
	defer n.debug.mu.Unlock()
	return n.debug.protect
}

// SetProtectParameters toggles argument protection. Turning it off drops
// the cached arguments.
func (n *Node) SetProtectParameters(protect bool) {
	n.debug.mu.Lock()
	n.debug.protect = protect
	n.debug.mu.Unlock()
	if !protect {
		n.cacheArgs(nil)
	}
}

// Interrupted reports whether the node holds its successors until resumed.
func (n *Node) Interrupted() bool {
	n.debug.mu.Lock()
	defer n.debug.mu.Unlock()
	return n.debug.interrupted
}

// Interrupt makes the node pause before its successors are dispatched.
// Calling it on an interrupted node keeps the pending pause.
func (n *Node) Interrupt() {
	n.debug.mu.Lock()
	defer n.debug.mu.Unlock()
	if n.debug.interrupted {
		return
	}
	n.debug.interrupted = true
	n.debug.resume = make(chan struct{})
}

// Resume releases every run waiting on the node and clears the interrupt.
// It reports whether the node was interrupted.
func (n *Node) Resume() bool {
	n.debug.mu.Lock()
	defer n.debug.mu.Unlock()
	if !n.debug.interrupted {
		return false
	}
	n.debug.interrupted = false
	close(n.debug.resume)
	n.debug.resume = nil
	return true
}

// WaitResume blocks while the node is interrupted. It returns ctx.Err()
// when the context ends first.
func (n *Node) WaitResume(ctx context.Context) error {
	n.debug.mu.Lock()
	ch := n.debug.resume
	interrupted := n.debug.interrupted
	n.debug.mu.Unlock()
	if !interrupted || ch == nil {
		return nil
	}
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
