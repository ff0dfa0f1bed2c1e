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
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

const testOwner = "test"

type methodEntry struct {
	fn MethodFunc
	md *MethodDetails
}

// methodTable is a minimal MethodResolver for tests.
type methodTable struct {
	mu      sync.Mutex
	entries map[string]methodEntry
}

func newMethodTable() *methodTable {
	return &methodTable{entries: make(map[string]methodEntry)}
}

func (m *methodTable) TryGetCallable(owner, name string) (MethodFunc, *MethodDetails, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[owner+"."+name]
	return e.fn, e.md, ok
}

func (m *methodTable) add(name string, fn MethodFunc, params ...*ParameterDetails) *MethodDetails {
	md := &MethodDetails{Owner: testOwner, Name: name, ParamsArgIndex: NoParamsArg}
	for i, p := range params {
		p.Index = i
		md.Params = append(md.Params, p)
	}
	m.mu.Lock()
	m.entries[md.Key()] = methodEntry{fn: fn, md: md}
	m.mu.Unlock()
	return md
}

// recorder remembers the order in which nodes ran.
type recorder struct {
	mu     sync.Mutex
	visits []string
}

func (r *recorder) visit(id string) {
	r.mu.Lock()
	r.visits = append(r.visits, id)
	r.mu.Unlock()
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.visits)
}

// fixture builds graphs whose nodes record their visit and return a
// configured result.
type fixture struct {
	t       *testing.T
	methods *methodTable
	rec     *recorder
	g       *Graph
}

func newFixture(t *testing.T) *fixture {
	return &fixture{
		t:       t,
		methods: newMethodTable(),
		rec:     &recorder{},
		g:       New("test-flow"),
	}
}

// node adds an action node returning res.
func (f *fixture) node(id string, res Result, params ...*ParameterDetails) *Node {
	return f.nodeFunc(id, func(context.Context, *Context, any, []any) Result { return res }, params...)
}

// nodeFunc adds an action node running fn.
func (f *fixture) nodeFunc(id string, fn MethodFunc, params ...*ParameterDetails) *Node {
	md := f.methods.add(id, func(ctx context.Context, fc *Context, inst any, args []any) Result {
		f.rec.visit(id)
		return fn(ctx, fc, inst, args)
	}, params...)
	n := NewNode(id, NodeControlAction, md.Clone())
	require.NoError(f.t, f.g.AddNode(n))
	return n
}

func (f *fixture) connect(from, to string, kind ConnectionInvokeType) {
	require.NoError(f.t, f.g.Connect(from, to, kind))
}

func (f *fixture) start(id string) {
	require.NoError(f.t, f.g.SetStart(id))
}

func (f *fixture) executor(opts ...ExecutorOption) *Executor {
	return NewExecutor(f.methods, opts...)
}

func (f *fixture) run(opts ...ExecutorOption) (*FlowResult, *Context, error) {
	e := f.executor(opts...)
	fc := e.NewContext()
	res, err := e.Run(context.Background(), fc, f.g, f.g.Start())
	return res, fc, err
}

func explicit(name string, v any) *ParameterDetails {
	return &ParameterDetails{Name: name, Explicit: true, Value: v}
}

func fromPrevious(name string) *ParameterDetails {
	return &ParameterDetails{Name: name, ArgSource: ArgSourcePreviousNodeData}
}

func fromNode(name, source string) *ParameterDetails {
	return &ParameterDetails{Name: name, ArgSource: ArgSourceOtherNodeData, SourceNodeID: source}
}

var errBoom = errors.New("boom")

// captureSink collects sink output.
type captureSink struct {
	mu    sync.Mutex
	lines []string
	errs  []error
}

func (s *captureSink) WriteLine(level, msg string) {
	s.mu.Lock()
	s.lines = append(s.lines, level+": "+msg)
	s.mu.Unlock()
}

func (s *captureSink) WriteError(err error) {
	s.mu.Lock()
	s.errs = append(s.errs, err)
	s.mu.Unlock()
}

func (s *captureSink) errors() []error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.errs)
}
