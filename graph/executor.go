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
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"

	"trpc.group/trpc-go/trpc-flow-go/datastore"
	itelemetry "trpc.group/trpc-go/trpc-flow-go/internal/telemetry"
	"trpc.group/trpc-go/trpc-flow-go/log"
	"trpc.group/trpc-go/trpc-flow-go/pool"
	"trpc.group/trpc-go/trpc-flow-go/telemetry/trace"
)

// MethodResolver looks up the callable behind a method descriptor.
type MethodResolver interface {
	TryGetCallable(owner, name string) (MethodFunc, *MethodDetails, bool)
}

// InstanceProvider returns the owner object a callable is invoked on.
type InstanceProvider interface {
	Get(owner string) (any, error)
}

const (
	// DefaultContextPoolSize is the number of idle contexts kept for reuse.
	DefaultContextPoolSize = 64
	defaultStackCapacity   = 16
)

// Executor walks flow graphs. It is safe for concurrent use; every run
// borrows its own context and stack.
type Executor struct {
	methods   MethodResolver
	instances InstanceProvider
	store     datastore.Store
	sink      log.Sink
	trace     bool
	saver     InvokeLogSaver
	maxSteps  int

	contexts *pool.Pool[*Context]
	stacks   *pool.Pool[*stack]
}

// ExecutorOption is a function that configures an Executor.
type ExecutorOption func(*ExecutorOptions)

// ExecutorOptions contains configuration options for creating an Executor.
type ExecutorOptions struct {
	// Instances supplies owner objects. Without it callables get nil.
	Instances InstanceProvider
	// Store is attached to every pooled context.
	Store datastore.Store
	// Sink receives node failures.
	Sink log.Sink
	// Trace records invoke infos and node spans.
	Trace bool
	// Saver persists invoke infos of traced runs.
	Saver InvokeLogSaver
	// MaxSteps bounds the nodes one run may execute (0 = unlimited).
	MaxSteps int
	// ContextPoolSize is the number of idle contexts kept (default: 64).
	ContextPoolSize int
}

// WithInstanceProvider sets the owner object provider.
func WithInstanceProvider(p InstanceProvider) ExecutorOption {
	return func(opts *ExecutorOptions) {
		opts.Instances = p
	}
}

// WithDataStore sets the shared data store.
func WithDataStore(s datastore.Store) ExecutorOption {
	return func(opts *ExecutorOptions) {
		opts.Store = s
	}
}

// WithSink sets the diagnostic sink.
func WithSink(s log.Sink) ExecutorOption {
	return func(opts *ExecutorOptions) {
		opts.Sink = s
	}
}

// WithTrace enables invoke info recording.
func WithTrace(enabled bool) ExecutorOption {
	return func(opts *ExecutorOptions) {
		opts.Trace = enabled
	}
}

// WithInvokeLogSaver persists invoke infos when tracing is enabled.
func WithInvokeLogSaver(s InvokeLogSaver) ExecutorOption {
	return func(opts *ExecutorOptions) {
		opts.Saver = s
	}
}

// WithMaxSteps bounds the number of nodes one run executes.
func WithMaxSteps(n int) ExecutorOption {
	return func(opts *ExecutorOptions) {
		opts.MaxSteps = n
	}
}

// WithContextPoolSize sets the number of idle contexts kept for reuse.
func WithContextPoolSize(n int) ExecutorOption {
	return func(opts *ExecutorOptions) {
		opts.ContextPoolSize = n
	}
}

// NewExecutor creates a new executor.
func NewExecutor(methods MethodResolver, opts ...ExecutorOption) *Executor {
	options := ExecutorOptions{ContextPoolSize: DefaultContextPoolSize}
	for _, opt := range opts {
		opt(&options)
	}
	return &Executor{
		methods:   methods,
		instances: options.Instances,
		store:     options.Store,
		sink:      log.Safe(options.Sink),
		trace:     options.Trace,
		saver:     options.Saver,
		maxSteps:  options.MaxSteps,
		contexts: pool.New(NewContext,
			pool.WithReset((*Context).Reset),
			pool.WithMaxIdle[*Context](options.ContextPoolSize)),
		stacks: pool.New(newStack,
			pool.WithReset((*stack).reset),
			pool.WithMaxIdle[*stack](options.ContextPoolSize)),
	}
}

// Sink returns the diagnostic sink of the executor.
func (e *Executor) Sink() log.Sink {
	return e.sink
}

// AcquireContext borrows a context prepared with the executor's store and
// trace setting. It must be returned with ReleaseContext.
func (e *Executor) AcquireContext() *Context {
	fc := e.contexts.Allocate()
	fc.prepare(e.store, e.trace)
	return fc
}

// ReleaseContext returns a borrowed context. It must not be used afterwards.
func (e *Executor) ReleaseContext(fc *Context) {
	if fc != nil {
		e.contexts.Free(fc)
	}
}

// NewContext creates an unpooled context prepared like AcquireContext.
func (e *Executor) NewContext() *Context {
	fc := NewContext()
	fc.prepare(e.store, e.trace)
	return fc
}

type frame struct {
	nodeID   string
	previous string
	via      ConnectionInvokeType
}

type stack struct {
	frames []frame
}

func newStack() *stack {
	return &stack{frames: make([]frame, 0, defaultStackCapacity)}
}

func (s *stack) reset() {
	s.frames = s.frames[:0]
}

func (s *stack) push(f frame) {
	s.frames = append(s.frames, f)
}

func (s *stack) pop() frame {
	f := s.frames[len(s.frames)-1]
	s.frames = s.frames[:len(s.frames)-1]
	return f
}

func (s *stack) empty() bool {
	return len(s.frames) == 0
}

// Run walks g from start until no eligible successor is left, the context
// is completed or ctx ends. Node failures never abort the walk; they take
// the Error branch. A canceled run returns the last result together with
// an error wrapping ErrFlowCanceled.
func (e *Executor) Run(ctx context.Context, fc *Context, g *Graph, start *Node) (*FlowResult, error) {
	if start == nil {
		return nil, ErrNoStartNode
	}
	if !start.Enabled() {
		return &FlowResult{NodeID: start.ID}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, e.canceled(ctx, g, err)
	}

	ctx, span := trace.Tracer.Start(ctx, itelemetry.NewRunFlowSpanName(g.Name))
	defer span.End()
	span.SetAttributes(attribute.String(itelemetry.KeyFlowRunID, fc.RunID()))

	mark := fc.invokeCount()
	defer e.saveInvokes(ctx, fc, mark)

	fc.setRunning()
	st := e.stacks.Allocate()
	defer e.stacks.Free(st)

	st.push(frame{nodeID: start.ID, previous: fc.Previous(start.ID), via: ConnectionNone})
	var current *FlowResult
	for steps := 1; ; steps++ {
		f := st.pop()
		node, ok := g.Node(f.nodeID)
		if !ok {
			e.sink.WriteError(fmt.Errorf("flow %s: %w: %s", g.Name, ErrNodeNotFound, f.nodeID))
			if st.empty() {
				return current, nil
			}
			continue
		}
		if e.maxSteps > 0 && steps > e.maxSteps {
			return current, fmt.Errorf("flow %s: %w (%d)", g.Name, ErrMaxStepsExceeded, e.maxSteps)
		}

		res := e.execute(ctx, fc, g, node, f)
		current = &FlowResult{NodeID: node.ID, Value: res.Value}

		if fc.RunState() == RunStateCompletion {
			return current, nil
		}
		if err := node.WaitResume(ctx); err != nil {
			return current, e.canceled(ctx, g, err)
		}
		e.pushSuccessors(g, st, node, fc.NextOrientation())

		if st.empty() {
			return current, nil
		}
		if err := ctx.Err(); err != nil {
			return current, e.canceled(ctx, g, err)
		}
	}
}

func (e *Executor) canceled(ctx context.Context, g *Graph, cause error) error {
	itelemetry.IncFlowCanceledCnt(context.WithoutCancel(ctx), g.Name)
	return fmt.Errorf("flow %s: %w: %w", g.Name, ErrFlowCanceled, cause)
}

// pushSuccessors schedules the enabled outcome successors and then the
// enabled Upstream successors, each in reverse order so that the first
// declared successor runs next. ConnectionNone schedules nothing.
func (e *Executor) pushSuccessors(g *Graph, st *stack, node *Node, orientation ConnectionInvokeType) {
	if !orientation.isEdgeKind() {
		return
	}
	push := func(kind ConnectionInvokeType) {
		succs := EnabledSuccessors(g, node, kind)
		for i := len(succs) - 1; i >= 0; i-- {
			st.push(frame{nodeID: succs[i].ID, previous: node.ID, via: kind})
		}
	}
	if orientation != ConnectionUpstream {
		push(orientation)
	}
	push(ConnectionUpstream)
}

// EnabledSuccessors returns the enabled successors of node for kind, in
// declaration order.
func EnabledSuccessors(g *Graph, node *Node, kind ConnectionInvokeType) []*Node {
	var nodes []*Node
	for _, id := range node.Successors(kind) {
		if succ, ok := g.Node(id); ok && succ.Enabled() {
			nodes = append(nodes, succ)
		}
	}
	return nodes
}

// execute runs one node and records its outcome in fc. Disabled nodes are
// skipped and produce a Hold result with no value.
func (e *Executor) execute(ctx context.Context, fc *Context, g *Graph, node *Node, f frame) Result {
	if !node.Enabled() {
		fc.SetNextOrientation(ConnectionNone)
		return Hold(nil)
	}
	if f.previous != "" {
		fc.SetPrevious(node.ID, f.previous)
	}
	fc.SetNextOrientation(ConnectionSucceed)

	var info *InvokeInfo
	tracing := fc.Trace()
	if tracing {
		info = &InvokeInfo{
			ID:             uuid.NewString(),
			RunID:          fc.RunID(),
			PreviousNodeID: f.previous,
			NodeID:         node.ID,
			Via:            f.via,
			Start:          time.Now(),
		}
	}
	method := ""
	if node.Method != nil {
		method = node.Method.Key()
	}

	spanCtx, span := trace.Tracer.Start(ctx, itelemetry.NewInvokeNodeSpanName(node.ID),
		oteltrace.WithAttributes(
			attribute.String(itelemetry.KeyFlowNodeID, node.ID),
			attribute.String(itelemetry.KeyFlowMethod, method),
			attribute.String(itelemetry.KeyFlowPrevious, f.previous),
			attribute.String(itelemetry.KeyFlowVia, f.via.String()),
		))
	start := time.Now()
	res := e.invoke(spanCtx, fc, g, node)
	elapsed := time.Since(start)

	if res.Kind == ResultErrored {
		fc.SetErr(res.Err)
		res.Value = nil
		if res.isTriggerCanceled() {
			fc.Complete()
		} else {
			e.sink.WriteError(fmt.Errorf("node %s (%s): %w", node.ID, method, res.Err))
			itelemetry.IncNodeErrorCnt(ctx, g.Name, method)
		}
		span.RecordError(res.Err)
		span.SetStatus(codes.Error, res.Err.Error())
	}
	fc.SetNextOrientation(res.Orientation())
	fc.SetResult(node.ID, res.Value)

	state := res.State()
	span.SetAttributes(attribute.String(itelemetry.KeyFlowState, string(state)))
	span.End()
	itelemetry.RecordNodeInvoke(ctx, g.Name, method, string(state), elapsed)

	if tracing {
		info.End = time.Now()
		info.State = state
		info.Value = res.Value
		if res.Err != nil {
			info.Err = res.Err.Error()
		}
		fc.appendInvoke(info)
	}
	return res
}

func (e *Executor) invoke(ctx context.Context, fc *Context, g *Graph, node *Node) Result {
	md := node.Method
	if md == nil {
		return Errored(fmt.Errorf("%w: %s", ErrNoMethod, node.ID))
	}
	fn, _, ok := e.methods.TryGetCallable(md.Owner, md.Name)
	if !ok {
		return Errored(fmt.Errorf("%w: %s", ErrMethodNotFound, md.Key()))
	}
	instance, err := e.instance(md.Owner)
	if err != nil {
		return Errored(err)
	}
	args, err := e.resolveArgs(ctx, fc, g, node)
	if err != nil {
		return Errored(err)
	}
	return call(ctx, fn, fc, instance, args)
}

func (e *Executor) instance(owner string) (any, error) {
	if e.instances == nil {
		return nil, nil
	}
	inst, err := e.instances.Get(owner)
	if err != nil {
		return nil, fmt.Errorf("get instance of %s: %w", owner, err)
	}
	return inst, nil
}

// InvokeNode executes node once without scheduling its successors. The
// outcome is recorded in fc like any traversal step.
func (e *Executor) InvokeNode(ctx context.Context, fc *Context, g *Graph, node *Node) Result {
	return e.execute(ctx, fc, g, node, frame{nodeID: node.ID, previous: fc.Previous(node.ID), via: ConnectionNone})
}

// InvokeMethod invokes a bare method descriptor, as used for lifecycle
// callbacks. Only literal and injected parameters can be resolved.
func (e *Executor) InvokeMethod(ctx context.Context, fc *Context, md *MethodDetails) Result {
	node := NewNode(md.Key(), NodeControlAction, md)
	return e.invoke(ctx, fc, nil, node)
}

func (e *Executor) saveInvokes(ctx context.Context, fc *Context, mark int) {
	if e.saver == nil || !fc.Trace() {
		return
	}
	infos := fc.invokesSince(mark)
	if len(infos) == 0 {
		return
	}
	if err := e.saver.Save(context.WithoutCancel(ctx), fc.RunID(), infos); err != nil {
		e.sink.WriteError(fmt.Errorf("save invoke log of run %s: %w", fc.RunID(), err))
	}
}

// IsCanceled reports whether err ends a run because of cancellation.
func IsCanceled(err error) bool {
	return errors.Is(err, ErrFlowCanceled) || errors.Is(err, ErrTriggerCanceled)
}
