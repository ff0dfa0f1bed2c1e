//
// Tencent is pleased to support the open source community by making trpc-flow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-flow-go is licensed under the Apache License Version 2.0.
//
//

// Package debug provides a HTTP server for inspecting and steering a
// running flow engine.
package debug

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"trpc.group/trpc-go/trpc-flow-go/graph"
	itelemetry "trpc.group/trpc-go/trpc-flow-go/internal/telemetry"
	"trpc.group/trpc-go/trpc-flow-go/log"
	"trpc.group/trpc-go/trpc-flow-go/runner"
	atrace "trpc.group/trpc-go/trpc-flow-go/telemetry/trace"
)

// defaultRunsLimit caps /runs when no limit is given.
const defaultRunsLimit = 50

// Server exposes HTTP endpoints for flow debugging.
type Server struct {
	runner runner.Runner
	router *mux.Router

	saver       graph.InvokeLogSaver
	captureSpan bool
	exporter    *inMemoryExporter
}

// Option configures the Server instance.
type Option func(*Server)

// WithInvokeLogSaver serves the invoke log of traced runs from s.
// Without it the /runs endpoints answer 404.
func WithInvokeLogSaver(s graph.InvokeLogSaver) Option {
	return func(srv *Server) { srv.saver = s }
}

// WithSpanCapture keeps finished flow spans in memory so they can be
// fetched per run.
func WithSpanCapture(enabled bool) Option {
	return func(s *Server) { s.captureSpan = enabled }
}

// New creates a new debug server for r.
func New(r runner.Runner, opts ...Option) *Server {
	s := &Server{
		runner:   r,
		router:   mux.NewRouter(),
		exporter: newInMemoryExporter(),
	}
	for _, opt := range opts {
		opt(s)
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"Content-Length", "Content-Type"},
	})
	s.router.Use(c.Handler)
	s.registerRoutes()
	if s.captureSpan {
		s.installExporter()
	}
	return s
}

// installExporter registers the in-memory exporter on the global tracer
// provider, replacing a no-op provider with an SDK one.
func (s *Server) installExporter() {
	var tp *sdktrace.TracerProvider
	if _, ok := atrace.TracerProvider.(noop.TracerProvider); ok {
		tp = sdktrace.NewTracerProvider()
	} else if tp, ok = atrace.TracerProvider.(*sdktrace.TracerProvider); !ok {
		log.Errorf("debug: %T provider is not the type of sdktrace.TracerProvider", atrace.TracerProvider)
		return
	}
	tp.RegisterSpanProcessor(sdktrace.NewSimpleSpanProcessor(s.exporter))
	atrace.TracerProvider = tp
	atrace.Tracer = atrace.TracerProvider.Tracer(itelemetry.InstrumentName)
}

// Handler returns the http.Handler for the server.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) registerRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	// Flow APIs.
	s.router.HandleFunc("/flows", s.handleListFlows).Methods(http.MethodGet)
	s.router.HandleFunc("/flows/{flow}", s.handleGetFlow).Methods(http.MethodGet)
	s.router.HandleFunc("/flows/{flow}/triggers/{nodeId}", s.handleStartTrigger).Methods(http.MethodPost)

	// Node APIs.
	s.router.HandleFunc("/nodes/{nodeId}", s.handleGetNode).Methods(http.MethodGet)
	s.router.HandleFunc("/nodes/{nodeId}", s.handleUpdateNode).Methods(http.MethodPut)
	s.router.HandleFunc("/nodes/{nodeId}/invoke", s.handleInvoke).Methods(http.MethodPost)
	s.router.HandleFunc("/nodes/{nodeId}/interrupt", s.handleInterrupt).Methods(http.MethodPost)
	s.router.HandleFunc("/nodes/{nodeId}/resume", s.handleResume).Methods(http.MethodPost)

	// Trigger APIs.
	s.router.HandleFunc("/triggers", s.handleListTriggers).Methods(http.MethodGet)
	s.router.HandleFunc("/triggers", s.handleTerminateAll).Methods(http.MethodDelete)
	s.router.HandleFunc("/triggers/{nodeId}", s.handleTerminateTrigger).Methods(http.MethodDelete)

	// Invoke log APIs.
	s.router.HandleFunc("/runs", s.handleListRuns).Methods(http.MethodGet)
	s.router.HandleFunc("/runs/{runId}", s.handleGetRun).Methods(http.MethodGet)
	s.router.HandleFunc("/runs/{runId}", s.handleDeleteRun).Methods(http.MethodDelete)

	// Debug APIs.
	s.router.HandleFunc("/debug/trace/run/{runId}", s.handleRunTrace).Methods(http.MethodGet)

	preflight := func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}
	s.router.HandleFunc("/nodes/{nodeId}/invoke", preflight).Methods(http.MethodOptions)
	s.router.HandleFunc("/nodes/{nodeId}", preflight).Methods(http.MethodOptions)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListFlows(w http.ResponseWriter, r *http.Request) {
	log.Debugf("handleListFlows called: path=%s", r.URL.Path)
	flows := make([]FlowInfo, 0)
	for _, name := range s.runner.Flows() {
		g, ok := s.runner.Graph(name)
		if !ok {
			continue
		}
		info := FlowInfo{Name: name, NodeCount: len(g.Nodes())}
		if start := g.Start(); start != nil {
			info.StartNodeID = start.ID
		}
		for _, trig := range g.GlobalTriggers() {
			info.Triggers = append(info.Triggers, trig.ID)
		}
		flows = append(flows, info)
	}
	s.writeJSON(w, http.StatusOK, flows)
}

func (s *Server) handleGetFlow(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["flow"]
	g, ok := s.runner.Graph(name)
	if !ok {
		s.writeError(w, http.StatusNotFound, runner.ErrFlowNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, graph.NewProject(g))
}

func (s *Server) node(w http.ResponseWriter, r *http.Request) (*graph.Node, bool) {
	id := mux.Vars(r)["nodeId"]
	n, ok := s.runner.FindNode(id)
	if !ok {
		s.writeError(w, http.StatusNotFound, graph.ErrNodeNotFound)
		return nil, false
	}
	return n, true
}

func nodeInfo(n *graph.Node) NodeInfo {
	info := NodeInfo{
		ID:                n.ID,
		Enabled:           n.Enabled(),
		Interrupted:       n.Interrupted(),
		ProtectParameters: n.ProtectParameters(),
		Public:            n.Public,
	}
	if n.Method != nil {
		info.Method = n.Method.Key()
	}
	return info
}

func (s *Server) handleGetNode(w http.ResponseWriter, r *http.Request) {
	n, ok := s.node(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, nodeInfo(n))
}

func (s *Server) handleUpdateNode(w http.ResponseWriter, r *http.Request) {
	n, ok := s.node(w, r)
	if !ok {
		return
	}
	var req NodeUpdate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Enabled != nil {
		n.SetEnabled(*req.Enabled)
	}
	if req.ProtectParameters != nil {
		n.SetProtectParameters(*req.ProtectParameters)
	}
	s.writeJSON(w, http.StatusOK, nodeInfo(n))
}

func (s *Server) handleInterrupt(w http.ResponseWriter, r *http.Request) {
	n, ok := s.node(w, r)
	if !ok {
		return
	}
	n.Interrupt()
	log.Infof("node %s interrupted", n.ID)
	s.writeJSON(w, http.StatusOK, nodeInfo(n))
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	n, ok := s.node(w, r)
	if !ok {
		return
	}
	if !n.Resume() {
		s.writeError(w, http.StatusConflict, errors.New("node is not interrupted"))
		return
	}
	log.Infof("node %s resumed", n.ID)
	s.writeJSON(w, http.StatusOK, nodeInfo(n))
}

func (s *Server) handleInvoke(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["nodeId"]
	var req InvokeRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, err)
			return
		}
	}
	v, err := s.runner.Invoke(r.Context(), id, req.Args)
	if err != nil {
		s.writeError(w, invokeStatus(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, InvokeResponse{Value: v})
}

func invokeStatus(err error) int {
	switch {
	case errors.Is(err, runner.ErrNodeNotPublic):
		return http.StatusNotFound
	case errors.Is(err, runner.ErrArgumentCountMismatch), errors.Is(err, runner.ErrUnknownArgument):
		return http.StatusBadRequest
	case errors.Is(err, runner.ErrInvokeFailed):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleListTriggers(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.runner.RunningTriggers())
}

func (s *Server) handleStartTrigger(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	// Trigger loops outlive the request.
	ctx := context.WithoutCancel(r.Context())
	err := s.runner.StartGlobalTrigger(ctx, vars["flow"], vars["nodeId"])
	switch {
	case err == nil:
		s.writeJSON(w, http.StatusOK, s.runner.RunningTriggers())
	case errors.Is(err, runner.ErrFlowNotFound), errors.Is(err, graph.ErrNodeNotFound):
		s.writeError(w, http.StatusNotFound, err)
	case errors.Is(err, runner.ErrTriggerRunning):
		s.writeError(w, http.StatusConflict, err)
	case errors.Is(err, runner.ErrNotGlobalTrigger):
		s.writeError(w, http.StatusBadRequest, err)
	default:
		s.writeError(w, http.StatusInternalServerError, err)
	}
}

func (s *Server) handleTerminateTrigger(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["nodeId"]
	if !s.runner.TerminateGlobalTrigger(id) {
		s.writeError(w, http.StatusNotFound, errors.New("trigger is not running"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTerminateAll(w http.ResponseWriter, r *http.Request) {
	s.runner.TerminateAllGlobalTriggers()
	w.WriteHeader(http.StatusNoContent)
}

var errNoInvokeLog = errors.New("invoke log is not configured")

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.saver == nil {
		s.writeError(w, http.StatusNotFound, errNoInvokeLog)
		return
	}
	limit := defaultRunsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			s.writeError(w, http.StatusBadRequest, errors.New("limit must be a non-negative integer"))
			return
		}
		limit = n
	}
	runs, err := s.saver.Runs(r.Context(), limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if runs == nil {
		runs = []string{}
	}
	s.writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if s.saver == nil {
		s.writeError(w, http.StatusNotFound, errNoInvokeLog)
		return
	}
	infos, err := s.saver.List(r.Context(), mux.Vars(r)["runId"])
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if len(infos) == 0 {
		s.writeError(w, http.StatusNotFound, errors.New("run not found"))
		return
	}
	s.writeJSON(w, http.StatusOK, infos)
}

func (s *Server) handleDeleteRun(w http.ResponseWriter, r *http.Request) {
	if s.saver == nil {
		s.writeError(w, http.StatusNotFound, errNoInvokeLog)
		return
	}
	if err := s.saver.Delete(r.Context(), mux.Vars(r)["runId"]); err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRunTrace(w http.ResponseWriter, r *http.Request) {
	runID := mux.Vars(r)["runId"]
	spans := make([]Span, 0)
	for _, span := range s.exporter.finishedSpans(runID) {
		spans = append(spans, Span{
			Name:         span.Name(),
			SpanID:       span.SpanContext().SpanID().String(),
			TraceID:      span.SpanContext().TraceID().String(),
			ParentSpanID: span.Parent().SpanID().String(),
			StartTime:    span.StartTime().UnixNano(),
			EndTime:      span.EndTime().UnixNano(),
			Attributes:   buildTraceAttributes(attribute.NewSet(span.Attributes()...)),
		})
	}
	s.writeJSON(w, http.StatusOK, spans)
}

func buildTraceAttributes(attributes attribute.Set) map[string]any {
	result := make(map[string]any)
	for iter := attributes.Iter(); iter.Next(); {
		attr := iter.Attribute()
		result[string(attr.Key)] = attr.Value.Emit()
	}
	return result
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	log.Debugf("debug server: %d: %v", status, err)
	s.writeJSON(w, status, ErrorResponse{Error: err.Error()})
}

// inMemoryExporter keeps finished spans grouped by the trace of each run.
type inMemoryExporter struct {
	mu        sync.Mutex
	runTraces map[string]string // key: run_id, value: trace_id
	spans     []sdktrace.ReadOnlySpan
}

func newInMemoryExporter() *inMemoryExporter {
	return &inMemoryExporter{runTraces: make(map[string]string)}
}

func (e *inMemoryExporter) ExportSpans(_ context.Context, spans []sdktrace.ReadOnlySpan) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, span := range spans {
		for _, attr := range span.Attributes() {
			if attr.Key == itelemetry.KeyFlowRunID {
				e.runTraces[attr.Value.AsString()] = span.SpanContext().TraceID().String()
				break
			}
		}
	}
	e.spans = append(e.spans, spans...)
	return nil
}

func (e *inMemoryExporter) Shutdown(_ context.Context) error {
	return nil
}

func (e *inMemoryExporter) finishedSpans(runID string) []sdktrace.ReadOnlySpan {
	e.mu.Lock()
	defer e.mu.Unlock()
	traceID, ok := e.runTraces[runID]
	if !ok {
		return nil
	}
	var spans []sdktrace.ReadOnlySpan
	for _, s := range e.spans {
		if s.SpanContext().TraceID().String() == traceID {
			spans = append(spans, s)
		}
	}
	return spans
}
