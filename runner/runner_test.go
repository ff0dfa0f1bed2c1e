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
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/trpc-flow-go/datastore/inmemory"
	"trpc.group/trpc-go/trpc-flow-go/graph"
	"trpc.group/trpc-go/trpc-flow-go/registry"
)

const owner = "t"

var errBoom = errors.New("boom")

// journal is the owner instance of the test methods.
type journal struct {
	mu      sync.Mutex
	entries []string
	signals map[string]*graph.Signal
	flaky   atomic.Int64
}

func (j *journal) add(entry string) {
	j.mu.Lock()
	j.entries = append(j.entries, entry)
	j.mu.Unlock()
}

func (j *journal) list() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return slices.Clone(j.entries)
}

func (j *journal) signal(name string) *graph.Signal {
	j.mu.Lock()
	defer j.mu.Unlock()
	sig, ok := j.signals[name]
	if !ok {
		sig = graph.NewSignal()
		j.signals[name] = sig
	}
	return sig
}

type testEnv struct {
	t    *testing.T
	reg  *registry.Registry
	j    *journal
	sink *captureSink
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	j := &journal{signals: make(map[string]*graph.Signal)}
	reg := registry.New()
	require.NoError(t, reg.RegisterOwner(owner, func() (any, error) { return j, nil }))
	require.NoError(t, reg.RegisterOwner("broken", func() (any, error) { return nil, errBoom }))

	record := func(_ context.Context, _ *graph.Context, inst any, args []any) graph.Result {
		inst.(*journal).add(args[0].(string))
		return graph.Ok(args[0])
	}
	methods := []struct {
		name   string
		fn     graph.MethodFunc
		params []*graph.ParameterDetails
	}{
		{"record", record, []*graph.ParameterDetails{{Name: "label", Type: "string"}}},
		{"fail", func(context.Context, *graph.Context, any, []any) graph.Result {
			return graph.Errored(errBoom)
		}, nil},
		{"wait", func(ctx context.Context, _ *graph.Context, inst any, args []any) graph.Result {
			return inst.(*journal).signal(args[0].(string)).Wait(ctx)
		}, []*graph.ParameterDetails{{Name: "name", Type: "string"}}},
		{"flaky", func(_ context.Context, _ *graph.Context, inst any, _ []any) graph.Result {
			j := inst.(*journal)
			if j.flaky.Add(1) < 3 {
				return graph.Errored(errBoom)
			}
			return graph.Errored(graph.ErrTriggerCanceled)
		}, nil},
		{"sum", func(_ context.Context, _ *graph.Context, _ any, args []any) graph.Result {
			return graph.Ok(args[0].(int) + args[1].(int))
		}, []*graph.ParameterDetails{{Name: "a", Type: "int"}, {Name: "b", Type: "int"}}},
	}
	for _, m := range methods {
		require.NoError(t, reg.RegisterMethod(&graph.MethodDetails{Owner: owner, Name: m.name, Params: m.params}, m.fn))
	}
	require.NoError(t, reg.RegisterMethod(&graph.MethodDetails{Owner: owner, Name: "join", Params: []*graph.ParameterDetails{
		{Name: "sep", Type: "string"},
		{Name: "items", Type: "string", IsParams: true},
	}}, func(_ context.Context, _ *graph.Context, _ any, args []any) graph.Result {
		items := args[1].([]any)
		parts := make([]string, len(items))
		for i, it := range items {
			parts[i] = it.(string)
		}
		return graph.Ok(strings.Join(parts, args[0].(string)))
	}))
	require.NoError(t, reg.RegisterMethod(&graph.MethodDetails{Owner: "broken", Name: "noop"},
		func(context.Context, *graph.Context, any, []any) graph.Result { return graph.Ok(nil) }))
	return &testEnv{t: t, reg: reg, j: j, sink: &captureSink{}}
}

// node adds a node running t.<method> with explicit argument values.
func (e *testEnv) node(g *graph.Graph, id string, control graph.NodeControlType, method string, values ...any) *graph.Node {
	n, err := e.reg.NewNode(id, control, owner, method)
	require.NoError(e.t, err)
	for i, v := range values {
		n.Method.Params[i].Explicit = true
		n.Method.Params[i].Value = v
	}
	require.NoError(e.t, g.AddNode(n))
	return n
}

func (e *testEnv) hook(method string, values ...any) *graph.MethodDetails {
	_, md, ok := e.reg.TryGetCallable(owner, method)
	require.True(e.t, ok)
	for i, v := range values {
		md.Params[i].Explicit = true
		md.Params[i].Value = v
	}
	return md
}

func (e *testEnv) runner(opts ...Option) Runner {
	opts = append([]Option{WithSink(e.sink), WithTriggerBackoff(time.Millisecond)}, opts...)
	r, err := New(e.reg, opts...)
	require.NoError(e.t, err)
	e.t.Cleanup(func() { _ = r.Close() })
	return r
}

// linear builds a flow of record nodes labelled by their ids.
func (e *testEnv) linear(name string, ids ...string) *graph.Graph {
	g := graph.New(name)
	for i, id := range ids {
		e.node(g, id, graph.NodeControlAction, "record", id)
		if i > 0 {
			require.NoError(e.t, g.Connect(ids[i-1], id, graph.ConnectionSucceed))
		}
	}
	require.NoError(e.t, g.SetStart(ids[0]))
	return g
}

type captureSink struct {
	mu   sync.Mutex
	errs []error
}

func (s *captureSink) WriteLine(string, string) {}

func (s *captureSink) WriteError(err error) {
	s.mu.Lock()
	s.errs = append(s.errs, err)
	s.mu.Unlock()
}

func (s *captureSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.errs)
}

func TestRunner_LifecycleOrder(t *testing.T) {
	e := newTestEnv(t)
	r := e.runner(
		WithFlow(FlowSpec{Graph: e.linear("first", "A", "B")}),
		WithFlow(FlowSpec{Graph: e.linear("second", "C")}),
		WithInitHooks(e.hook("record", "init")),
		WithLoadHooks(e.hook("record", "load")),
		WithExitHooks(e.hook("record", "exit")),
	)
	require.NoError(t, r.Run(context.Background()))
	assert.Equal(t, []string{"init", "load", "A", "B", "C", "exit"}, e.j.list())
	assert.Equal(t, []string{"first", "second"}, r.Flows())
}

func TestRunner_StartupFailures(t *testing.T) {
	tests := []struct {
		name  string
		setup func(e *testEnv) []Option
	}{
		{
			name: "unknown method",
			setup: func(e *testEnv) []Option {
				g := e.linear("f", "A")
				require.NoError(t, g.AddNode(graph.NewNode("ghost", graph.NodeControlAction,
					&graph.MethodDetails{Owner: owner, Name: "missing"})))
				return []Option{WithFlow(FlowSpec{Graph: g})}
			},
		},
		{
			name: "failing constructor",
			setup: func(e *testEnv) []Option {
				g := e.linear("f", "A")
				n, err := e.reg.NewNode("b", graph.NodeControlAction, "broken", "noop")
				require.NoError(t, err)
				require.NoError(t, g.AddNode(n))
				return []Option{WithFlow(FlowSpec{Graph: g})}
			},
		},
		{
			name: "failing init hook",
			setup: func(e *testEnv) []Option {
				return []Option{
					WithFlow(FlowSpec{Graph: e.linear("f", "A")}),
					WithInitHooks(e.hook("fail")),
					WithLoadHooks(e.hook("record", "load")),
				}
			},
		},
		{
			name: "unknown hook",
			setup: func(e *testEnv) []Option {
				return []Option{
					WithFlow(FlowSpec{Graph: e.linear("f", "A")}),
					WithExitHooks(&graph.MethodDetails{Owner: "nobody", Name: "x"}),
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEnv(t)
			r := e.runner(tt.setup(e)...)
			err := r.Run(context.Background())
			assert.ErrorIs(t, err, ErrStartup)
			assert.Empty(t, e.j.list())
		})
	}
}

func TestRunner_StartTwice(t *testing.T) {
	e := newTestEnv(t)
	r := e.runner()
	require.NoError(t, r.Start(context.Background()))
	assert.ErrorIs(t, r.Start(context.Background()), ErrAlreadyStarted)
	require.NoError(t, r.Exit(context.Background()))
}

func TestRunner_DuplicateFlow(t *testing.T) {
	e := newTestEnv(t)
	_, err := New(e.reg,
		WithFlow(FlowSpec{Graph: e.linear("same", "A")}),
		WithFlow(FlowSpec{Graph: e.linear("same", "B")}))
	assert.Error(t, err)
}

func TestRunner_BackgroundFlowNotAwaited(t *testing.T) {
	e := newTestEnv(t)
	g := graph.New("bg")
	e.node(g, "W", graph.NodeControlAction, "wait", "go")
	e.node(g, "after", graph.NodeControlAction, "record", "after")
	require.NoError(t, g.Connect("W", "after", graph.ConnectionSucceed))
	require.NoError(t, g.SetStart("W"))

	r := e.runner(
		WithFlow(FlowSpec{Graph: g, Background: true}),
		WithFlow(FlowSpec{Graph: e.linear("fg", "F")}),
		WithExitHooks(e.hook("record", "exit")),
	)
	done := make(chan error, 1)
	go func() { done <- r.Run(context.Background()) }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("run waited for the background flow")
	}
	// Exit cancels the pending background wait, so its Succeed successor
	// never runs.
	assert.Equal(t, []string{"F", "exit"}, e.j.list())
}

func TestRunner_BackgroundFlowRunsWhileTriggersLive(t *testing.T) {
	e := newTestEnv(t)
	g := e.triggerFlow("bg", "T")
	e.node(g, "W", graph.NodeControlAction, "wait", "go")
	e.node(g, "after", graph.NodeControlAction, "record", "after")
	require.NoError(t, g.Connect("W", "after", graph.ConnectionSucceed))
	require.NoError(t, g.SetStart("W"))

	r := e.runner(WithFlow(FlowSpec{Graph: g, Background: true}))
	done := make(chan error, 1)
	go func() { done <- r.Run(context.Background()) }()

	assert.Eventually(t, func() bool { return len(r.RunningTriggers()) == 1 }, time.Second, time.Millisecond)
	require.NoError(t, e.j.signal("go").Fire(context.Background(), graph.Ok(nil)))
	assert.Eventually(t, func() bool { return slices.Contains(e.j.list(), "after") }, time.Second, time.Millisecond)

	r.Stop()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("run did not stop")
	}
}

// triggerFlow builds, per trigger T, T -> T-S (Succeed) and T -> T-U
// (Upstream). Every trigger is a global trigger waiting on its own signal.
func (e *testEnv) triggerFlow(name string, triggers ...string) *graph.Graph {
	g := graph.New(name)
	for _, trig := range triggers {
		e.node(g, trig, graph.NodeControlFlipflop, "wait", trig)
		e.node(g, trig+"-S", graph.NodeControlAction, "record", trig+"-S")
		e.node(g, trig+"-U", graph.NodeControlAction, "record", trig+"-U")
		require.NoError(e.t, g.Connect(trig, trig+"-S", graph.ConnectionSucceed))
		require.NoError(e.t, g.Connect(trig, trig+"-U", graph.ConnectionUpstream))
	}
	return g
}

func TestRunner_GlobalTriggerFires(t *testing.T) {
	e := newTestEnv(t)
	g := e.triggerFlow("trig", "T")
	r := e.runner(WithFlow(FlowSpec{Graph: g}))
	require.NoError(t, r.Start(context.Background()))
	assert.Equal(t, []string{"T"}, r.RunningTriggers())

	sig := e.j.signal("T")
	for i := 0; i < 2; i++ {
		require.NoError(t, sig.Fire(context.Background(), graph.Ok(i)))
	}
	assert.Eventually(t, func() bool { return len(e.j.list()) == 4 }, time.Second, time.Millisecond)
	assert.Equal(t, []string{"T-U", "T-S", "T-U", "T-S"}, e.j.list())

	require.NoError(t, r.Exit(context.Background()))
	assert.Empty(t, r.RunningTriggers())
}

func TestRunner_TriggerHoldDoesNotAdvance(t *testing.T) {
	e := newTestEnv(t)
	g := e.triggerFlow("trig", "T")
	r := e.runner(WithFlow(FlowSpec{Graph: g}))
	require.NoError(t, r.Start(context.Background()))
	defer r.Exit(context.Background())

	sig := e.j.signal("T")
	require.NoError(t, sig.Fire(context.Background(), graph.Hold(nil)))
	require.NoError(t, sig.Fire(context.Background(), graph.Failed(errBoom)))
	assert.Eventually(t, func() bool { return len(e.j.list()) == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, []string{"T-U"}, e.j.list())
}

func TestRunner_TerminateTriggerIsolated(t *testing.T) {
	e := newTestEnv(t)
	g := e.triggerFlow("trig", "T1", "T2")
	r := e.runner(WithFlow(FlowSpec{Graph: g}))
	require.NoError(t, r.Start(context.Background()))
	defer r.Exit(context.Background())
	assert.Equal(t, []string{"T1", "T2"}, r.RunningTriggers())

	assert.True(t, r.TerminateGlobalTrigger("T1"))
	assert.False(t, r.TerminateGlobalTrigger("T1"))
	assert.Equal(t, []string{"T2"}, r.RunningTriggers())

	require.NoError(t, e.j.signal("T2").Fire(context.Background(), graph.Ok(nil)))
	assert.Eventually(t, func() bool { return len(e.j.list()) == 2 }, time.Second, time.Millisecond)
	assert.Equal(t, []string{"T2-U", "T2-S"}, e.j.list())

	r.TerminateAllGlobalTriggers()
	r.TerminateAllGlobalTriggers()
	assert.Empty(t, r.RunningTriggers())
}

func TestRunner_CloseStopsTriggerStartedWithoutCancel(t *testing.T) {
	e := newTestEnv(t)
	r := e.runner(WithFlow(FlowSpec{Graph: e.triggerFlow("trig", "T")}))

	require.NoError(t, r.StartGlobalTrigger(context.WithoutCancel(context.Background()), "trig", "T"))
	assert.Equal(t, []string{"T"}, r.RunningTriggers())
	require.NoError(t, r.Close())
	assert.Eventually(t, func() bool { return len(r.RunningTriggers()) == 0 }, time.Second, time.Millisecond)
}

func TestRunner_TriggerEndsWithCallerContext(t *testing.T) {
	e := newTestEnv(t)
	r := e.runner(WithFlow(FlowSpec{Graph: e.triggerFlow("trig", "T")}))
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, r.StartGlobalTrigger(ctx, "trig", "T"))
	cancel()
	assert.Eventually(t, func() bool { return len(r.RunningTriggers()) == 0 }, time.Second, time.Millisecond)
}

func TestRunner_TriggerBeforeStartFires(t *testing.T) {
	e := newTestEnv(t)
	r := e.runner(WithFlow(FlowSpec{Graph: e.triggerFlow("trig", "T")}))

	require.NoError(t, r.StartGlobalTrigger(context.Background(), "trig", "T"))
	require.NoError(t, e.j.signal("T").Fire(context.Background(), graph.Ok(nil)))
	assert.Eventually(t, func() bool { return len(e.j.list()) == 2 }, time.Second, time.Millisecond)
	assert.Equal(t, []string{"T-U", "T-S"}, e.j.list())
}

func TestRunner_StartGlobalTriggerErrors(t *testing.T) {
	e := newTestEnv(t)
	g := e.triggerFlow("trig", "T")
	r := e.runner(WithFlow(FlowSpec{Graph: g}))
	ctx := context.Background()

	assert.ErrorIs(t, r.StartGlobalTrigger(ctx, "nope", "T"), ErrFlowNotFound)
	assert.ErrorIs(t, r.StartGlobalTrigger(ctx, "trig", "ghost"), graph.ErrNodeNotFound)
	assert.ErrorIs(t, r.StartGlobalTrigger(ctx, "trig", "T-S"), ErrNotGlobalTrigger)

	require.NoError(t, r.Start(ctx))
	defer r.Exit(ctx)
	assert.ErrorIs(t, r.StartGlobalTrigger(ctx, "trig", "T"), ErrTriggerRunning)
}

func TestRunner_TriggerRetriesAfterError(t *testing.T) {
	e := newTestEnv(t)
	g := graph.New("flaky")
	e.node(g, "F", graph.NodeControlFlipflop, "flaky")
	r := e.runner(WithFlow(FlowSpec{Graph: g}))
	require.NoError(t, r.Start(context.Background()))
	defer r.Exit(context.Background())

	// Two failures are retried, the third attempt cancels the loop.
	assert.Eventually(t, func() bool { return len(r.RunningTriggers()) == 0 }, time.Second, time.Millisecond)
	assert.Equal(t, int64(3), e.j.flaky.Load())
	assert.GreaterOrEqual(t, e.sink.count(), 2)
}

func TestRunner_RunStopsOnStop(t *testing.T) {
	e := newTestEnv(t)
	store := inmemory.New()
	var released atomic.Bool
	r := e.runner(
		WithFlow(FlowSpec{Graph: e.triggerFlow("trig", "T")}),
		WithDataStore(store),
		WithReleaser(func() error {
			released.Store(true)
			return nil
		}),
	)
	require.NoError(t, store.Set(context.Background(), "k", "v"))

	done := make(chan error, 1)
	go func() { done <- r.Run(context.Background()) }()
	assert.Eventually(t, func() bool { return len(r.RunningTriggers()) == 1 }, time.Second, time.Millisecond)

	r.Stop()
	r.Stop()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("run did not stop")
	}
	assert.Empty(t, r.RunningTriggers())
	assert.True(t, released.Load())
	keys, err := store.Keys(context.Background())
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestRunner_RunStopsOnContext(t *testing.T) {
	e := newTestEnv(t)
	r := e.runner(WithFlow(FlowSpec{Graph: e.triggerFlow("trig", "T")}))
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.NoError(t, r.Run(ctx))
	assert.Empty(t, r.RunningTriggers())
}

func TestRunner_ExitJoinsErrors(t *testing.T) {
	e := newTestEnv(t)
	errA, errB := errors.New("a"), errors.New("b")
	r := e.runner(
		WithReleaser(func() error { return errA }),
		WithReleaser(func() error { return errB }),
	)
	require.NoError(t, r.Start(context.Background()))
	err := r.Exit(context.Background())
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errB)
	// Exit runs once.
	assert.Equal(t, err, r.Exit(context.Background()))
}

func (e *testEnv) subroutineFlow() *graph.Graph {
	g := graph.New("sub")
	n := e.node(g, "add", graph.NodeControlAction, "sum")
	n.Public = true
	e.node(g, "private", graph.NodeControlAction, "record", "private")
	require.NoError(e.t, g.Connect("add", "private", graph.ConnectionError))
	require.NoError(e.t, g.SetStart("add"))
	return g
}

func TestRunner_Invoke(t *testing.T) {
	e := newTestEnv(t)
	r := e.runner(WithFlow(FlowSpec{Graph: e.subroutineFlow()}))
	ctx := context.Background()

	v, err := r.Invoke(ctx, "add", map[string]any{"a": 1, "b": "2"})
	require.NoError(t, err)
	assert.Equal(t, 3, v)

	n, err := InvokeAs[int](ctx, r, "add", map[string]any{"a": 4, "b": 5})
	require.NoError(t, err)
	assert.Equal(t, 9, n)

	_, err = InvokeAs[string](ctx, r, "add", map[string]any{"a": 4, "b": 5})
	assert.ErrorIs(t, err, ErrTypeMismatch)
}

func TestRunner_InvokeVariadic(t *testing.T) {
	e := newTestEnv(t)
	g := graph.New("text")
	n, err := e.reg.NewNode("join", graph.NodeControlAction, owner, "join")
	require.NoError(t, err)
	require.NoError(t, n.Method.AlignParams(3))
	n.Public = true
	require.NoError(t, g.AddNode(n))
	r := e.runner(WithFlow(FlowSpec{Graph: g}))
	ctx := context.Background()

	v, err := r.Invoke(ctx, "join", map[string]any{"sep": "-", "items": "a", "items[1]": "b"})
	require.NoError(t, err)
	assert.Equal(t, "a-b", v)

	_, err = r.Invoke(ctx, "join", map[string]any{"sep": "-", "items": "a"})
	assert.ErrorIs(t, err, ErrArgumentCountMismatch)
	_, err = r.Invoke(ctx, "join", map[string]any{"sep": "-", "items": "a", "x": "b"})
	assert.ErrorIs(t, err, ErrUnknownArgument)
}

func TestRunner_InvokeBeforeStartBuildsOwners(t *testing.T) {
	e := newTestEnv(t)
	g := graph.New("broken")
	n, err := e.reg.NewNode("b", graph.NodeControlAction, "broken", "noop")
	require.NoError(t, err)
	n.Public = true
	require.NoError(t, g.AddNode(n))
	r := e.runner(WithFlow(FlowSpec{Graph: e.subroutineFlow()}), WithFlow(FlowSpec{Graph: g}))
	ctx := context.Background()

	v, err := r.Invoke(ctx, "add", map[string]any{"a": 1, "b": 2})
	require.NoError(t, err)
	assert.Equal(t, 3, v)

	_, err = r.Invoke(ctx, "b", map[string]any{})
	assert.ErrorIs(t, err, ErrInvokeFailed)
	assert.ErrorIs(t, err, errBoom)
}

func TestRunner_InvokeArgumentCountMismatch(t *testing.T) {
	e := newTestEnv(t)
	var invoked atomic.Bool
	g := e.subroutineFlow()
	r := e.runner(WithFlow(FlowSpec{Graph: g}),
		WithSink(sinkFunc(func(error) { invoked.Store(true) })))

	_, err := r.Invoke(context.Background(), "add", map[string]any{"a": 1})
	assert.ErrorIs(t, err, ErrArgumentCountMismatch)
	_, err = r.Invoke(context.Background(), "add", map[string]any{"a": 1, "b": 2, "c": 3})
	assert.ErrorIs(t, err, ErrArgumentCountMismatch)
	assert.False(t, invoked.Load())
	assert.Empty(t, e.j.list())
}

func TestRunner_InvokeRejections(t *testing.T) {
	e := newTestEnv(t)
	r := e.runner(WithFlow(FlowSpec{Graph: e.subroutineFlow()}))
	ctx := context.Background()

	_, err := r.Invoke(ctx, "add", map[string]any{"a": 1, "c": 2})
	assert.ErrorIs(t, err, ErrUnknownArgument)
	_, err = r.Invoke(ctx, "private", map[string]any{"label": "x"})
	assert.ErrorIs(t, err, ErrNodeNotPublic)
	_, err = r.Invoke(ctx, "missing", nil)
	assert.ErrorIs(t, err, ErrNodeNotPublic)
	assert.Empty(t, e.j.list())
}

func TestRunner_InvokeConversionFailureTakesErrorBranch(t *testing.T) {
	e := newTestEnv(t)
	r := e.runner(WithFlow(FlowSpec{Graph: e.subroutineFlow()}))

	v, err := r.Invoke(context.Background(), "add", map[string]any{"a": "x", "b": 2})
	require.NoError(t, err)
	assert.Equal(t, "private", v)
	assert.Equal(t, []string{"private"}, e.j.list())
}

func TestRunner_Lookups(t *testing.T) {
	e := newTestEnv(t)
	g := e.subroutineFlow()
	r := e.runner(WithFlow(FlowSpec{Name: "named", Graph: g}))

	got, ok := r.Graph("named")
	assert.True(t, ok)
	assert.Same(t, g, got)
	_, ok = r.Graph("sub")
	assert.False(t, ok)

	n, ok := r.FindNode("private")
	assert.True(t, ok)
	assert.Equal(t, "private", n.ID)
	assert.NotNil(t, r.Executor())
}

type sinkFunc func(error)

func (f sinkFunc) WriteLine(string, string) {}
func (f sinkFunc) WriteError(err error)     { f(err) }
