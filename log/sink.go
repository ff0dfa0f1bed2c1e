//
// Tencent is pleased to support the open source community by making trpc-flow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-flow-go is licensed under the Apache License Version 2.0.
//
//

package log

// Sink receives diagnostics emitted by the flow engine.
// Calls are fire-and-forget: a misbehaving sink must never stop a run,
// so engine code wraps every sink with Safe.
type Sink interface {
	// WriteLine writes a message at the given level ("debug", "info", ...).
	WriteLine(level string, msg string)
	// WriteError writes an error.
	WriteError(err error)
}

// DefaultSink writes diagnostics through the package logger.
var DefaultSink Sink = loggerSink{}

type loggerSink struct{}

func (loggerSink) WriteLine(level string, msg string) {
	switch level {
	case LevelDebug:
		Debug(msg)
	case LevelWarn:
		Warn(msg)
	case LevelError, LevelFatal:
		Error(msg)
	default:
		Info(msg)
	}
}

func (loggerSink) WriteError(err error) {
	if err == nil {
		return
	}
	Errorf("%v", err)
}

// Safe wraps a sink so that panics raised by it are swallowed.
// A nil sink yields DefaultSink.
func Safe(s Sink) Sink {
	if s == nil {
		s = DefaultSink
	}
	if _, ok := s.(safeSink); ok {
		return s
	}
	return safeSink{inner: s}
}

type safeSink struct {
	inner Sink
}

func (s safeSink) WriteLine(level string, msg string) {
	defer func() { _ = recover() }()
	s.inner.WriteLine(level, msg)
}

func (s safeSink) WriteError(err error) {
	defer func() { _ = recover() }()
	s.inner.WriteError(err)
}
