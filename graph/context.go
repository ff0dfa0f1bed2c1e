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
	"maps"
	"slices"
	"sync"

	"github.com/google/uuid"

	"trpc.group/trpc-go/trpc-flow-go/datastore"
)

// Context is the mutable state of one logical run. A context is owned by a
// single run; it may be read concurrently while arguments resolve.
type Context struct {
	mu sync.RWMutex

	runID           string
	results         map[string]any
	previous        map[string]string
	nextOrientation ConnectionInvokeType
	runState        RunState
	err             error
	trace           bool
	invokes         []*InvokeInfo
	injected        map[string]map[string]any
	store           datastore.Store
}

// NewContext creates a context with a fresh run ID.
func NewContext() *Context {
	return &Context{
		runID:           uuid.NewString(),
		results:         make(map[string]any),
		previous:        make(map[string]string),
		injected:        make(map[string]map[string]any),
		nextOrientation: ConnectionSucceed,
	}
}

// Reset clears every field so the context can be reused.
func (c *Context) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.runID = ""
	clear(c.results)
	clear(c.previous)
	clear(c.injected)
	c.nextOrientation = ConnectionSucceed
	c.runState = RunStateRunning
	c.err = nil
	c.trace = false
	c.invokes = nil
	c.store = nil
}

// RunID returns the identifier of the run owning the context.
func (c *Context) RunID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.runID
}

func (c *Context) prepare(store datastore.Store, trace bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.runID = uuid.NewString()
	c.store = store
	c.trace = trace
}

// Store returns the shared data store, or nil when the run has none.
func (c *Context) Store() datastore.Store {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.store
}

// SetStore attaches the shared data store.
func (c *Context) SetStore(store datastore.Store) {
	c.mu.Lock()
	c.store = store
	c.mu.Unlock()
}

// SetResult records the last value produced by a node.
func (c *Context) SetResult(nodeID string, value any) {
	c.mu.Lock()
	c.results[nodeID] = value
	c.mu.Unlock()
}

// Result returns the last value produced by a node.
func (c *Context) Result(nodeID string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.results[nodeID]
	return v, ok
}

// Results returns a copy of every recorded result.
func (c *Context) Results() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return maps.Clone(c.results)
}

// SetPrevious records which node last invoked nodeID.
func (c *Context) SetPrevious(nodeID, previousID string) {
	c.mu.Lock()
	c.previous[nodeID] = previousID
	c.mu.Unlock()
}

// Previous returns the node that last invoked nodeID.
func (c *Context) Previous(nodeID string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.previous[nodeID]
}

// NextOrientation returns the connection kind chosen after the most
// recently executed node.
func (c *Context) NextOrientation() ConnectionInvokeType {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.nextOrientation
}

// SetNextOrientation overrides the chosen connection kind.
func (c *Context) SetNextOrientation(kind ConnectionInvokeType) {
	c.mu.Lock()
	c.nextOrientation = kind
	c.mu.Unlock()
}

// RunState returns the run state.
func (c *Context) RunState() RunState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.runState
}

// Complete asks the traversal to stop after the current node and return
// its result.
func (c *Context) Complete() {
	c.mu.Lock()
	c.runState = RunStateCompletion
	c.mu.Unlock()
}

func (c *Context) setRunning() {
	c.mu.Lock()
	c.runState = RunStateRunning
	c.mu.Unlock()
}

// Err returns the error captured from the last failing node.
func (c *Context) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.err
}

// SetErr captures err.
func (c *Context) SetErr(err error) {
	c.mu.Lock()
	c.err = err
	c.mu.Unlock()
}

// Trace reports whether invoke infos are recorded.
func (c *Context) Trace() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.trace
}

// SetTrace enables or disables invoke info recording.
func (c *Context) SetTrace(trace bool) {
	c.mu.Lock()
	c.trace = trace
	c.mu.Unlock()
}

// InvokeInfos returns the recorded invocations in call order.
func (c *Context) InvokeInfos() []*InvokeInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.invokes)
}

func (c *Context) appendInvoke(info *InvokeInfo) {
	c.mu.Lock()
	c.invokes = append(c.invokes, info)
	c.mu.Unlock()
}

func (c *Context) invokesSince(mark int) []*InvokeInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if mark >= len(c.invokes) {
		return nil
	}
	return slices.Clone(c.invokes[mark:])
}

func (c *Context) invokeCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.invokes)
}

// Inject supplies a named argument for nodeID. Injected arguments take
// precedence over every other parameter source.
func (c *Context) Inject(nodeID, name string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	args, ok := c.injected[nodeID]
	if !ok {
		args = make(map[string]any)
		c.injected[nodeID] = args
	}
	args[name] = value
}

func (c *Context) injectedArg(nodeID, name string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.injected[nodeID][name]
	return v, ok
}
