//
// Tencent is pleased to support the open source community by making trpc-flow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-flow-go is licensed under the Apache License Version 2.0.
//
//

// Package log provides logging utilities for the flow engine.
package log

import (
	"io"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log level constants
const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
	LevelFatal = "fatal"
)

// Output formats.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// KeyFlow is the field Flow loggers tag their lines with.
const KeyFlow = "flow"

var (
	zapLevel = zap.NewAtomicLevelAt(zapcore.InfoLevel)

	mu     sync.Mutex
	format = FormatConsole
	output = zapcore.AddSync(os.Stdout)
	base   = newZapLogger(format, output)
)

// Default borrows logging utilities from zap.
// You may replace it with whatever logger you like as long as it implements log.Logger interface.
var Default Logger = base.WithOptions(zap.AddCallerSkip(1)).Sugar()

func newZapLogger(format string, out zapcore.WriteSyncer) *zap.Logger {
	enc := zapcore.NewConsoleEncoder(encoderConfig)
	if format == FormatJSON {
		cfg := encoderConfig
		cfg.EncodeLevel = zapcore.LowercaseLevelEncoder
		enc = zapcore.NewJSONEncoder(cfg)
	}
	return zap.New(zapcore.NewCore(enc, out, zapLevel), zap.AddCaller())
}

// SetLevel sets the log level to the specified level.
// Valid levels are: "debug", "info", "warn", "error", "fatal"
func SetLevel(level string) {
	zapLevel.SetLevel(parseLevel(level))
}

// SetFormat switches between console and JSON lines. Unknown formats
// fall back to console.
func SetFormat(f string) {
	if f != FormatJSON {
		f = FormatConsole
	}
	mu.Lock()
	defer mu.Unlock()
	format = f
	rebuild()
}

// SetOutput redirects the default logger to w.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = zapcore.AddSync(w)
	rebuild()
}

func rebuild() {
	base = newZapLogger(format, output)
	Default = base.WithOptions(zap.AddCallerSkip(1)).Sugar()
}

// Flow returns a logger whose lines carry the flow name. When Default
// has been replaced by a custom logger, Flow returns Default.
func Flow(name string) Logger {
	if _, ok := Default.(*zap.SugaredLogger); !ok {
		return Default
	}
	mu.Lock()
	defer mu.Unlock()
	return base.Sugar().With(KeyFlow, name)
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelInfo:
		return zapcore.InfoLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	case LevelFatal:
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

var encoderConfig = zapcore.EncoderConfig{
	TimeKey:        "ts",
	LevelKey:       "lvl",
	NameKey:        "name",
	CallerKey:      "caller",
	MessageKey:     "message",
	StacktraceKey:  "stacktrace",
	LineEnding:     zapcore.DefaultLineEnding,
	EncodeLevel:    zapcore.CapitalColorLevelEncoder,
	EncodeTime:     zapcore.RFC3339TimeEncoder,
	EncodeDuration: zapcore.SecondsDurationEncoder,
	EncodeCaller:   zapcore.ShortCallerEncoder,
}

// Logger is the logging interface of the engine. The f variants take a
// fmt.Printf format.
type Logger interface {
	Debug(args ...any)
	Debugf(format string, args ...any)
	Info(args ...any)
	Infof(format string, args ...any)
	Warn(args ...any)
	Warnf(format string, args ...any)
	Error(args ...any)
	Errorf(format string, args ...any)
	Fatal(args ...any)
	Fatalf(format string, args ...any)
}

// Debug logs at debug level.
func Debug(args ...any) { Default.Debug(args...) }

// Debugf logs at debug level.
func Debugf(format string, args ...any) { Default.Debugf(format, args...) }

// Info logs at info level.
func Info(args ...any) { Default.Info(args...) }

// Infof logs at info level.
func Infof(format string, args ...any) { Default.Infof(format, args...) }

// Warn logs at warn level.
func Warn(args ...any) { Default.Warn(args...) }

// Warnf logs at warn level.
func Warnf(format string, args ...any) { Default.Warnf(format, args...) }

// Error logs at error level.
func Error(args ...any) { Default.Error(args...) }

// Errorf logs at error level.
func Errorf(format string, args ...any) { Default.Errorf(format, args...) }

// Fatalf logs at fatal level and exits.
func Fatalf(format string, args ...any) { Default.Fatalf(format, args...) }
