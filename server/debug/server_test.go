//
// Tencent is pleased to support the open source community by making trpc-flow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-flow-go is licensed under the Apache License Version 2.0.
//
//

package debug

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/trpc-flow-go/graph"
	"trpc.group/trpc-go/trpc-flow-go/graph/invokelog/inmemory"
	"trpc.group/trpc-go/trpc-flow-go/registry"
	"trpc.group/trpc-go/trpc-flow-go/runner"
	atrace "trpc.group/trpc-go/trpc-flow-go/telemetry/trace"
)

type fixture struct {
	runner runner.Runner
	saver  *inmemory.Saver
	server *Server
	signal *graph.Signal
}

// newFixture loads flow "calc": add (public) -> double, plus a global
// trigger "tick" in flow "events".
func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	sig := graph.NewSignal()
	reg := registry.New()
	require.NoError(t, reg.RegisterOwner("calc", nil))
	require.NoError(t, reg.RegisterMethod(&graph.MethodDetails{
		Owner: "calc", Name: "add",
		Params: []*graph.ParameterDetails{{Name: "a", Type: "int"}, {Name: "b", Type: "int"}},
	}, graph.Func(func(_ context.Context, args []any) (any, error) {
		return args[0].(int) + args[1].(int), nil
	})))
	require.NoError(t, reg.RegisterMethod(&graph.MethodDetails{
		Owner: "calc", Name: "double",
		Params: []*graph.ParameterDetails{{Name: "v", Type: "int", ArgSource: graph.ArgSourcePreviousNodeData}},
	}, graph.Func(func(_ context.Context, args []any) (any, error) {
		return args[0].(int) * 2, nil
	})))
	require.NoError(t, reg.RegisterMethod(&graph.MethodDetails{Owner: "calc", Name: "wait"},
		func(ctx context.Context, _ *graph.Context, _ any, _ []any) graph.Result { return sig.Wait(ctx) }))

	calc := graph.New("calc")
	add, err := reg.NewNode("add", graph.NodeControlAction, "calc", "add")
	require.NoError(t, err)
	add.Public = true
	require.NoError(t, calc.AddNode(add))
	double, err := reg.NewNode("double", graph.NodeControlAction, "calc", "double")
	require.NoError(t, err)
	require.NoError(t, calc.AddNode(double))
	require.NoError(t, calc.Connect("add", "double", graph.ConnectionSucceed))

	events := graph.New("events")
	tick, err := reg.NewNode("tick", graph.NodeControlFlipflop, "calc", "wait")
	require.NoError(t, err)
	require.NoError(t, events.AddNode(tick))

	saver := inmemory.NewSaver()
	r, err := runner.New(reg,
		runner.WithFlow(runner.FlowSpec{Graph: calc}),
		runner.WithFlow(runner.FlowSpec{Graph: events}),
		runner.WithTrace(true),
		runner.WithInvokeLogSaver(saver),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = r.Exit(context.Background())
		_ = r.Close()
	})
	opts = append([]Option{WithInvokeLogSaver(saver)}, opts...)
	return &fixture{runner: r, saver: saver, server: New(r, opts...), signal: sig}
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

func TestListAndGetFlows(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/flows", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	flows := decode[[]FlowInfo](t, rec)
	require.Len(t, flows, 2)
	assert.Equal(t, FlowInfo{Name: "calc", NodeCount: 2}, flows[0])
	assert.Equal(t, FlowInfo{Name: "events", Triggers: []string{"tick"}, NodeCount: 1}, flows[1])

	rec = f.do(t, http.MethodGet, "/flows/calc", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	p := decode[graph.Project](t, rec)
	assert.Equal(t, "calc", p.Name)
	assert.Len(t, p.Nodes, 2)

	rec = f.do(t, http.MethodGet, "/flows/none", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestInvoke(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/nodes/add/invoke", InvokeRequest{Args: map[string]any{"a": 2, "b": 3}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[InvokeResponse](t, rec)
	assert.Equal(t, float64(10), resp.Value)

	tests := []struct {
		name string
		path string
		args map[string]any
		code int
	}{
		{"count mismatch", "/nodes/add/invoke", map[string]any{"a": 1}, http.StatusBadRequest},
		{"unknown argument", "/nodes/add/invoke", map[string]any{"a": 1, "c": 2}, http.StatusBadRequest},
		{"not public", "/nodes/double/invoke", map[string]any{"v": 1}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, tt.path, InvokeRequest{Args: tt.args})
			assert.Equal(t, tt.code, rec.Code)
			assert.NotEmpty(t, decode[ErrorResponse](t, rec).Error)
		})
	}

	req := httptest.NewRequest(http.MethodPost, "/nodes/add/invoke", bytes.NewBufferString("{"))
	rec = httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestNodeSettings(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/nodes/double", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, NodeInfo{ID: "double", Method: "calc.double", Enabled: true}, decode[NodeInfo](t, rec))

	off := false
	rec = f.do(t, http.MethodPut, "/nodes/double", NodeUpdate{Enabled: &off})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[NodeInfo](t, rec).Enabled)

	// A disabled successor is skipped, so the run ends on add.
	rec = f.do(t, http.MethodPost, "/nodes/add/invoke", InvokeRequest{Args: map[string]any{"a": 2, "b": 3}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(5), decode[InvokeResponse](t, rec).Value)

	rec = f.do(t, http.MethodGet, "/nodes/ghost", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestInterruptResume(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/nodes/double/resume", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, http.MethodPost, "/nodes/double/interrupt", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[NodeInfo](t, rec).Interrupted)

	rec = f.do(t, http.MethodPost, "/nodes/double/resume", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[NodeInfo](t, rec).Interrupted)
}

func TestTriggers(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/triggers", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]string](t, rec))

	rec = f.do(t, http.MethodPost, "/flows/events/triggers/tick", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []string{"tick"}, decode[[]string](t, rec))

	rec = f.do(t, http.MethodPost, "/flows/events/triggers/tick", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	rec = f.do(t, http.MethodPost, "/flows/calc/triggers/add", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = f.do(t, http.MethodPost, "/flows/nope/triggers/tick", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodDelete, "/triggers/tick", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = f.do(t, http.MethodDelete, "/triggers/tick", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodDelete, "/triggers", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, f.runner.RunningTriggers())
}

func TestTriggerStartedOverHTTPStopsOnClose(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/flows/events/triggers/tick", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	require.NoError(t, f.runner.Close())
	assert.Eventually(t, func() bool { return len(f.runner.RunningTriggers()) == 0 },
		time.Second, time.Millisecond)
}

func TestRuns(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/runs", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]string](t, rec))

	rec = f.do(t, http.MethodPost, "/nodes/add/invoke", InvokeRequest{Args: map[string]any{"a": 1, "b": 1}})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/runs?limit=10", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	runs := decode[[]string](t, rec)
	require.Len(t, runs, 1)

	rec = f.do(t, http.MethodGet, "/runs/"+runs[0], nil)
	require.Equal(t, http.StatusOK, rec.Code)
	infos := decode[[]graph.InvokeInfo](t, rec)
	require.Len(t, infos, 2)
	assert.Equal(t, "add", infos[0].NodeID)
	assert.Equal(t, "double", infos[1].NodeID)
	assert.Equal(t, "add", infos[1].PreviousNodeID)

	rec = f.do(t, http.MethodGet, "/runs?limit=x", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodDelete, "/runs/"+runs[0], nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = f.do(t, http.MethodGet, "/runs/"+runs[0], nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRunsWithoutSaver(t *testing.T) {
	f := newFixture(t)
	f.server = New(f.runner)
	rec := f.do(t, http.MethodGet, "/runs", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRunTrace(t *testing.T) {
	provider, tracer := atrace.TracerProvider, atrace.Tracer
	t.Cleanup(func() {
		atrace.TracerProvider, atrace.Tracer = provider, tracer
	})
	f := newFixture(t, WithSpanCapture(true))

	rec := f.do(t, http.MethodPost, "/nodes/add/invoke", InvokeRequest{Args: map[string]any{"a": 1, "b": 1}})
	require.Equal(t, http.StatusOK, rec.Code)
	runs, err := f.saver.Runs(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)

	rec = f.do(t, http.MethodGet, "/debug/trace/run/"+runs[0], nil)
	require.Equal(t, http.StatusOK, rec.Code)
	spans := decode[[]Span](t, rec)
	// One run span plus one span per node.
	assert.Len(t, spans, 3)

	rec = f.do(t, http.MethodGet, "/debug/trace/run/unknown", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]Span](t, rec))
}

func TestCORSPreflight(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodOptions, "/nodes/add/invoke", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	assert.Contains(t, []int{http.StatusOK, http.StatusNoContent}, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
