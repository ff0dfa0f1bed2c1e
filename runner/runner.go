//
// Tencent is pleased to support the open source community by making trpc-flow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-flow-go is licensed under the Apache License Version 2.0.
//
//

// Package runner owns the lifecycle of a set of flows: type registration,
// init and load hooks, the flow runs themselves, global trigger loops and
// the exit sequence.
package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"trpc.group/trpc-go/trpc-flow-go/container"
	"trpc.group/trpc-go/trpc-flow-go/datastore"
	"trpc.group/trpc-go/trpc-flow-go/graph"
	"trpc.group/trpc-go/trpc-flow-go/log"
)

const (
	// DefaultPoolSize is the number of goroutines available to background
	// flows and trigger loops.
	DefaultPoolSize = 1024
	// DefaultTriggerBackoff is the pause before a failed trigger is retried.
	DefaultTriggerBackoff = 100 * time.Millisecond
)

// MethodRegistry resolves callables and owner constructors, as
// *registry.Registry does.
type MethodRegistry interface {
	graph.MethodResolver
	container.Constructors
}

// FlowSpec describes one flow to run.
type FlowSpec struct {
	// Name identifies the flow. It defaults to the graph name.
	Name string
	// Graph is the flow graph.
	Graph *graph.Graph
	// Background runs the flow without waiting for it.
	Background bool
}

// Option is a function that configures a Runner.
type Option func(*Options)

// Options is the options for the Runner.
type Options struct {
	flows          []FlowSpec
	initHooks      []*graph.MethodDetails
	loadHooks      []*graph.MethodDetails
	exitHooks      []*graph.MethodDetails
	store          datastore.Store
	sink           log.Sink
	trace          bool
	saver          graph.InvokeLogSaver
	maxSteps       int
	poolSize       int
	triggerBackoff time.Duration
	releasers      []func() error
}

// WithFlow adds a flow. Flows run in the order they are added.
func WithFlow(flow FlowSpec) Option {
	return func(opts *Options) {
		opts.flows = append(opts.flows, flow)
	}
}

// WithInitHooks adds methods invoked once during the Init phase.
func WithInitHooks(hooks ...*graph.MethodDetails) Option {
	return func(opts *Options) {
		opts.initHooks = append(opts.initHooks, hooks...)
	}
}

// WithLoadHooks adds methods invoked once during the Load phase.
func WithLoadHooks(hooks ...*graph.MethodDetails) Option {
	return func(opts *Options) {
		opts.loadHooks = append(opts.loadHooks, hooks...)
	}
}

// WithExitHooks adds methods invoked once during Exit.
func WithExitHooks(hooks ...*graph.MethodDetails) Option {
	return func(opts *Options) {
		opts.exitHooks = append(opts.exitHooks, hooks...)
	}
}

// WithDataStore sets the shared data store. It is initialized at startup
// and cleared at exit.
func WithDataStore(store datastore.Store) Option {
	return func(opts *Options) {
		opts.store = store
	}
}

// WithSink sets the diagnostic sink.
func WithSink(sink log.Sink) Option {
	return func(opts *Options) {
		opts.sink = sink
	}
}

// WithTrace enables invoke info recording.
func WithTrace(enabled bool) Option {
	return func(opts *Options) {
		opts.trace = enabled
	}
}

// WithInvokeLogSaver persists invoke infos of traced runs.
func WithInvokeLogSaver(saver graph.InvokeLogSaver) Option {
	return func(opts *Options) {
		opts.saver = saver
	}
}

// WithMaxSteps bounds the nodes one traversal may execute.
func WithMaxSteps(n int) Option {
	return func(opts *Options) {
		opts.maxSteps = n
	}
}

// WithPoolSize sets the size of the goroutine pool.
func WithPoolSize(size int) Option {
	return func(opts *Options) {
		opts.poolSize = size
	}
}

// WithTriggerBackoff sets the pause before a failed trigger is retried.
func WithTriggerBackoff(d time.Duration) Option {
	return func(opts *Options) {
		opts.triggerBackoff = d
	}
}

// WithReleaser adds a function called last during Exit, for resources
// owned outside the engine.
func WithReleaser(release func() error) Option {
	return func(opts *Options) {
		opts.releasers = append(opts.releasers, release)
	}
}

func newOptions(opt ...Option) Options {
	opts := Options{
		poolSize:       DefaultPoolSize,
		triggerBackoff: DefaultTriggerBackoff,
	}
	for _, o := range opt {
		o(&opts)
	}
	return opts
}

// Runner runs flows.
type Runner interface {
	// Start performs type registration, Init, Load and Run. It returns once
	// every foreground flow has finished; background flows and trigger
	// loops keep running until Exit.
	Start(ctx context.Context) error
	// Run starts the runner, waits until every trigger loop has ended, ctx
	// is done or Stop is called, and then exits. Background flows are not
	// waited for.
	Run(ctx context.Context) error
	// Stop makes Run proceed to Exit.
	Stop()
	// Exit runs the exit hooks, stops every trigger, clears the data store
	// and calls the releasers.
	Exit(ctx context.Context) error

	// StartGlobalTrigger starts the loop of a global trigger node.
	StartGlobalTrigger(ctx context.Context, flow, nodeID string) error
	// TerminateGlobalTrigger stops one trigger loop and reports whether it
	// was running.
	TerminateGlobalTrigger(nodeID string) bool
	// TerminateAllGlobalTriggers stops every trigger loop.
	TerminateAllGlobalTriggers()
	// RunningTriggers returns the IDs of the running trigger nodes.
	RunningTriggers() []string

	// Invoke runs a public node as a subroutine with named arguments.
	Invoke(ctx context.Context, nodeID string, args map[string]any) (any, error)

	// Flows returns the flow names in run order.
	Flows() []string
	// Graph returns the graph of a flow.
	Graph(flow string) (*graph.Graph, bool)
	// FindNode looks up a node in every flow.
	FindNode(nodeID string) (*graph.Node, bool)
	// Executor returns the executor shared by every run.
	Executor() *graph.Executor

	// Close releases the goroutine pool. It's safe to call Close multiple
	// times.
	Close() error
}

type flow struct {
	name       string
	graph      *graph.Graph
	background bool
}

type runner struct {
	opts      Options
	methods   MethodRegistry
	container *container.Container
	executor  *graph.Executor
	sink      log.Sink
	pool      *ants.Pool
	flows     []*flow

	// base bounds everything started before Start; ctx takes over after.
	base       context.Context
	baseCancel context.CancelFunc

	mu       sync.Mutex
	started  bool
	ctx      context.Context
	cancel   context.CancelFunc
	triggers map[string]*triggerHandle

	loops     sync.WaitGroup
	stopOnce  sync.Once
	stopCh    chan struct{}
	exitOnce  sync.Once
	exitErr   error
	closeOnce sync.Once
}

// New creates a new Runner.
func New(methods MethodRegistry, opts ...Option) (Runner, error) {
	if methods == nil {
		return nil, errors.New("runner: method registry is nil")
	}
	options := newOptions(opts...)
	pool, err := ants.NewPool(options.poolSize, ants.WithNonblocking(true))
	if err != nil {
		return nil, fmt.Errorf("runner: create pool: %w", err)
	}
	c := container.New(methods)
	sink := log.Safe(options.sink)
	r := &runner{
		opts:      options,
		methods:   methods,
		container: c,
		sink:      sink,
		pool:      pool,
		triggers:  make(map[string]*triggerHandle),
		stopCh:    make(chan struct{}),
		executor: graph.NewExecutor(methods,
			graph.WithInstanceProvider(c),
			graph.WithDataStore(options.store),
			graph.WithSink(sink),
			graph.WithTrace(options.trace),
			graph.WithInvokeLogSaver(options.saver),
			graph.WithMaxSteps(options.maxSteps),
		),
	}
	r.base, r.baseCancel = context.WithCancel(context.Background())
	seen := make(map[string]bool)
	for _, spec := range options.flows {
		if spec.Graph == nil {
			_ = r.Close()
			return nil, errors.New("runner: flow without graph")
		}
		name := spec.Name
		if name == "" {
			name = spec.Graph.Name
		}
		if seen[name] {
			_ = r.Close()
			return nil, fmt.Errorf("runner: duplicate flow %q", name)
		}
		seen[name] = true
		r.flows = append(r.flows, &flow{name: name, graph: spec.Graph, background: spec.Background})
	}
	return r, nil
}

func (r *runner) Executor() *graph.Executor {
	return r.executor
}

func (r *runner) Flows() []string {
	names := make([]string, len(r.flows))
	for i, f := range r.flows {
		names[i] = f.name
	}
	return names
}

func (r *runner) Graph(name string) (*graph.Graph, bool) {
	f, ok := r.flow(name)
	if !ok {
		return nil, false
	}
	return f.graph, true
}

func (r *runner) flow(name string) (*flow, bool) {
	for _, f := range r.flows {
		if f.name == name {
			return f, true
		}
	}
	return nil, false
}

func (r *runner) FindNode(nodeID string) (*graph.Node, bool) {
	for _, f := range r.flows {
		if n, ok := f.graph.Node(nodeID); ok {
			return n, true
		}
	}
	return nil, false
}

func (r *runner) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return ErrAlreadyStarted
	}
	r.started = true
	r.ctx, r.cancel = context.WithCancel(ctx)
	context.AfterFunc(r.base, r.cancel)
	r.mu.Unlock()
	ctx = r.ctx

	if err := r.registerTypes(); err != nil {
		return err
	}
	if r.opts.store != nil {
		if err := r.opts.store.Init(ctx); err != nil {
			return fmt.Errorf("%w: init data store: %w", ErrStartup, err)
		}
	}
	if err := r.runHooks(ctx, "init", r.opts.initHooks); err != nil {
		return err
	}
	if err := r.runHooks(ctx, "load", r.opts.loadHooks); err != nil {
		return err
	}
	for _, f := range r.flows {
		if err := r.startFlow(ctx, f); err != nil {
			return err
		}
	}
	return nil
}

// registerTypes registers the owner of every node and hook method with
// the container and builds it.
func (r *runner) registerTypes() error {
	for _, f := range r.flows {
		if err := r.registerFlow(f); err != nil {
			return fmt.Errorf("%w: %w", ErrStartup, err)
		}
	}
	for _, hooks := range [][]*graph.MethodDetails{r.opts.initHooks, r.opts.loadHooks, r.opts.exitHooks} {
		for _, md := range hooks {
			if err := r.registerOwner(md); err != nil {
				return fmt.Errorf("%w: hook: %w", ErrStartup, err)
			}
		}
	}
	if err := r.container.Build(); err != nil {
		return fmt.Errorf("%w: %w", ErrStartup, err)
	}
	return nil
}

func (r *runner) registerOwner(md *graph.MethodDetails) error {
	if md == nil {
		return graph.ErrNoMethod
	}
	if _, _, ok := r.methods.TryGetCallable(md.Owner, md.Name); !ok {
		return fmt.Errorf("%w: %s", graph.ErrMethodNotFound, md.Key())
	}
	return r.container.Register(md.Owner)
}

func (r *runner) registerFlow(f *flow) error {
	for _, n := range f.graph.Nodes() {
		if err := r.registerOwner(n.Method); err != nil {
			return fmt.Errorf("flow %s node %s: %w", f.name, n.ID, err)
		}
	}
	return nil
}

// prepareFlow makes the owner instances of f available, so its nodes can
// run on a runner that has not been started. Owners already built are
// kept.
func (r *runner) prepareFlow(f *flow) error {
	if err := r.registerFlow(f); err != nil {
		return err
	}
	return r.container.Build()
}

// runHooks invokes each hook with its own pooled context, then rebuilds
// the container.
func (r *runner) runHooks(ctx context.Context, phase string, hooks []*graph.MethodDetails) error {
	for _, md := range hooks {
		fc := r.executor.AcquireContext()
		res := r.executor.InvokeMethod(ctx, fc, md)
		r.executor.ReleaseContext(fc)
		if res.Kind == graph.ResultErrored || res.Kind == graph.ResultFailed {
			return fmt.Errorf("%w: %s hook %s: %w", ErrStartup, phase, md.Key(), res.Err)
		}
		log.Debugf("%s hook %s done", phase, md.Key())
	}
	if err := r.container.Build(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrStartup, phase, err)
	}
	return nil
}

func (r *runner) startFlow(ctx context.Context, f *flow) error {
	if start := f.graph.Start(); start != nil {
		if f.background {
			err := r.pool.Submit(func() {
				_ = r.runFlow(ctx, f, start)
			})
			if err != nil {
				r.sink.WriteError(fmt.Errorf("flow %s: submit background run: %w", f.name, err))
			}
		} else if err := r.runFlow(ctx, f, start); err != nil && graph.IsCanceled(err) {
			return err
		}
	}
	for _, trig := range f.graph.GlobalTriggers() {
		if err := r.StartGlobalTrigger(ctx, f.name, trig.ID); err != nil {
			r.sink.WriteError(err)
		}
	}
	return nil
}

func (r *runner) runFlow(ctx context.Context, f *flow, start *graph.Node) error {
	fc := r.executor.AcquireContext()
	defer r.executor.ReleaseContext(fc)
	res, err := r.executor.Run(ctx, fc, f.graph, start)
	if err != nil {
		r.sink.WriteError(err)
		return err
	}
	if res != nil {
		log.Flow(f.name).Debugf("finished at node %s", res.NodeID)
	}
	return nil
}

func (r *runner) Run(ctx context.Context) error {
	if err := r.Start(ctx); err != nil {
		return err
	}
	idle := make(chan struct{})
	go func() {
		r.loops.Wait()
		close(idle)
	}()
	select {
	case <-idle:
	case <-r.stopCh:
	case <-r.ctx.Done():
	}
	return r.Exit(context.WithoutCancel(ctx))
}

func (r *runner) Stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })
}

func (r *runner) Exit(ctx context.Context) error {
	r.exitOnce.Do(func() {
		var errs []error
		for _, md := range r.opts.exitHooks {
			fc := r.executor.AcquireContext()
			res := r.executor.InvokeMethod(ctx, fc, md)
			r.executor.ReleaseContext(fc)
			if res.Kind == graph.ResultErrored || res.Kind == graph.ResultFailed {
				r.sink.WriteError(fmt.Errorf("exit hook %s: %w", md.Key(), res.Err))
			}
		}
		r.TerminateAllGlobalTriggers()
		r.loops.Wait()
		r.mu.Lock()
		if r.cancel != nil {
			r.cancel()
		}
		r.mu.Unlock()
		if r.opts.store != nil {
			if err := r.opts.store.Clear(ctx); err != nil {
				errs = append(errs, fmt.Errorf("clear data store: %w", err))
			}
		}
		for _, release := range r.opts.releasers {
			if err := release(); err != nil {
				errs = append(errs, err)
			}
		}
		r.exitErr = errors.Join(errs...)
	})
	return r.exitErr
}

func (r *runner) Close() error {
	r.closeOnce.Do(func() {
		r.mu.Lock()
		if r.cancel != nil {
			r.cancel()
		}
		r.mu.Unlock()
		r.baseCancel()
		r.pool.Release()
	})
	return nil
}
