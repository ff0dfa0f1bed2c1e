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
	"errors"
	"fmt"
	"sort"
	"time"

	"trpc.group/trpc-go/trpc-flow-go/graph"
	itelemetry "trpc.group/trpc-go/trpc-flow-go/internal/telemetry"
	"trpc.group/trpc-go/trpc-flow-go/log"
)

// triggerHandle controls one trigger loop. Loops run under the runner's
// context and also end with the ctx they were started with.
type triggerHandle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func (r *runner) StartGlobalTrigger(ctx context.Context, flowName, nodeID string) error {
	f, ok := r.flow(flowName)
	if !ok {
		return fmt.Errorf("%w: %s", ErrFlowNotFound, flowName)
	}
	node, ok := f.graph.Node(nodeID)
	if !ok {
		return fmt.Errorf("flow %s: %w: %s", flowName, graph.ErrNodeNotFound, nodeID)
	}
	if !node.IsGlobalTrigger() {
		return fmt.Errorf("flow %s: %w: %s", flowName, ErrNotGlobalTrigger, nodeID)
	}

	if err := r.prepareFlow(f); err != nil {
		return fmt.Errorf("flow %s: start trigger %s: %w", flowName, nodeID, err)
	}

	r.mu.Lock()
	if _, running := r.triggers[nodeID]; running {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrTriggerRunning, nodeID)
	}
	parent := r.base
	if r.ctx != nil {
		parent = r.ctx
	}
	tctx, cancel := context.WithCancel(parent)
	stop := context.AfterFunc(ctx, cancel)
	h := &triggerHandle{cancel: cancel, done: make(chan struct{})}
	r.triggers[nodeID] = h
	r.mu.Unlock()

	r.loops.Add(1)
	err := r.pool.Submit(func() {
		defer r.loops.Done()
		defer stop()
		r.triggerLoop(tctx, f, node, h)
	})
	if err != nil {
		r.loops.Done()
		stop()
		r.removeTrigger(nodeID, h)
		cancel()
		return fmt.Errorf("flow %s: start trigger %s: %w", flowName, nodeID, err)
	}
	log.Flow(flowName).Debugf("trigger %s started", nodeID)
	return nil
}

func (r *runner) removeTrigger(nodeID string, h *triggerHandle) {
	r.mu.Lock()
	if r.triggers[nodeID] == h {
		delete(r.triggers, nodeID)
	}
	r.mu.Unlock()
}

// triggerLoop fires the trigger until it is canceled. Unexpected errors are
// logged and retried after the backoff.
func (r *runner) triggerLoop(ctx context.Context, f *flow, node *graph.Node, h *triggerHandle) {
	defer close(h.done)
	defer r.removeTrigger(node.ID, h)
	for ctx.Err() == nil {
		if !node.Enabled() {
			if !sleep(ctx, r.opts.triggerBackoff) {
				return
			}
			continue
		}
		err := r.fireTrigger(ctx, f, node)
		if err == nil {
			continue
		}
		if ctx.Err() != nil || errors.Is(err, graph.ErrTriggerCanceled) {
			return
		}
		r.sink.WriteError(fmt.Errorf("flow %s: trigger %s failed, retrying in %v: %w",
			f.name, node.ID, r.opts.triggerBackoff, err))
		if !sleep(ctx, r.opts.triggerBackoff) {
			return
		}
	}
}

// fireTrigger waits for the trigger once and runs its Upstream successors,
// then its outcome successors, each as a traversal that starts with the
// trigger as previous node.
func (r *runner) fireTrigger(ctx context.Context, f *flow, node *graph.Node) error {
	fc := r.executor.AcquireContext()
	defer r.executor.ReleaseContext(fc)

	res := r.executor.InvokeNode(ctx, fc, f.graph, node)
	if res.Kind == graph.ResultErrored {
		return res.Err
	}
	orientation := fc.NextOrientation()
	if orientation == graph.ConnectionNone {
		return nil
	}
	itelemetry.IncTriggerFireCnt(ctx, f.name, node.ID)

	succs := graph.EnabledSuccessors(f.graph, node, graph.ConnectionUpstream)
	if orientation != graph.ConnectionUpstream {
		succs = append(succs, graph.EnabledSuccessors(f.graph, node, orientation)...)
	}
	for _, succ := range succs {
		fc.SetPrevious(succ.ID, node.ID)
		if _, err := r.executor.Run(ctx, fc, f.graph, succ); err != nil {
			if graph.IsCanceled(err) {
				return err
			}
			r.sink.WriteError(err)
		}
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func (r *runner) TerminateGlobalTrigger(nodeID string) bool {
	r.mu.Lock()
	h, ok := r.triggers[nodeID]
	if ok {
		delete(r.triggers, nodeID)
	}
	r.mu.Unlock()
	if !ok {
		return false
	}
	h.cancel()
	return true
}

func (r *runner) TerminateAllGlobalTriggers() {
	r.mu.Lock()
	handles := r.triggers
	r.triggers = make(map[string]*triggerHandle)
	r.mu.Unlock()
	for _, h := range handles {
		h.cancel()
	}
}

func (r *runner) RunningTriggers() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.triggers))
	for id := range r.triggers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
