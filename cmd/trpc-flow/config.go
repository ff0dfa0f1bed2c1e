//
// Tencent is pleased to support the open source community by making trpc-flow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-flow-go is licensed under the Apache License Version 2.0.
//
//

package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"trpc.group/trpc-go/trpc-flow-go/graph"
	"trpc.group/trpc-go/trpc-flow-go/log"
	"trpc.group/trpc-go/trpc-flow-go/runner"
)

// Store and invoke log backends.
const (
	backendNone   = "none"
	backendMemory = "memory"
	backendRedis  = "redis"
	backendSQLite = "sqlite"
)

// Config is the run configuration file.
type Config struct {
	Flows     []FlowConfig    `yaml:"flows"`
	Hooks     HooksConfig     `yaml:"hooks"`
	DataStore DataStoreConfig `yaml:"datastore"`
	InvokeLog InvokeLogConfig `yaml:"invokeLog"`
	Runner    RunnerConfig    `yaml:"runner"`
	Debug     DebugConfig     `yaml:"debug"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	LogLevel  string          `yaml:"logLevel"`
	LogFormat string          `yaml:"logFormat"`

	// dir is the directory project paths are relative to.
	dir string
}

// FlowConfig points at one saved project.
type FlowConfig struct {
	Project    string `yaml:"project"`
	Name       string `yaml:"name"`
	Background bool   `yaml:"background"`
}

// HooksConfig lists the lifecycle hooks.
type HooksConfig struct {
	Init []HookConfig `yaml:"init"`
	Load []HookConfig `yaml:"load"`
	Exit []HookConfig `yaml:"exit"`
}

// HookConfig names a registered method and its literal arguments.
type HookConfig struct {
	Owner string `yaml:"owner"`
	Name  string `yaml:"name"`
	Args  []any  `yaml:"args"`
}

// DataStoreConfig selects the shared data store.
type DataStoreConfig struct {
	Type      string        `yaml:"type"`
	URL       string        `yaml:"url"`
	Instance  string        `yaml:"instance"`
	KeyPrefix string        `yaml:"keyPrefix"`
	TTL       time.Duration `yaml:"ttl"`
}

// InvokeLogConfig selects where traced runs are saved.
type InvokeLogConfig struct {
	Type    string `yaml:"type"`
	Path    string `yaml:"path"`
	MaxRuns int    `yaml:"maxRuns"`
}

// RunnerConfig tunes the runner.
type RunnerConfig struct {
	Trace          bool          `yaml:"trace"`
	MaxSteps       int           `yaml:"maxSteps"`
	PoolSize       int           `yaml:"poolSize"`
	TriggerBackoff time.Duration `yaml:"triggerBackoff"`
}

// DebugConfig enables the debug HTTP server.
type DebugConfig struct {
	Addr        string `yaml:"addr"`
	CaptureSpan bool   `yaml:"captureSpan"`
}

// TelemetryConfig enables OTLP export. Empty endpoints leave telemetry
// off.
type TelemetryConfig struct {
	TracesEndpoint  string        `yaml:"tracesEndpoint"`
	MetricsEndpoint string        `yaml:"metricsEndpoint"`
	Protocol        string        `yaml:"protocol"`
	ServiceName     string        `yaml:"serviceName"`
	MetricsInterval time.Duration `yaml:"metricsInterval"`
}

var errNoFlows = errors.New("config has no flows")

func loadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := &Config{
		DataStore: DataStoreConfig{Type: backendMemory},
		InvokeLog: InvokeLogConfig{Type: backendNone, MaxRuns: graph.DefaultMaxInvokeLogRuns},
		Runner: RunnerConfig{
			PoolSize:       runner.DefaultPoolSize,
			TriggerBackoff: runner.DefaultTriggerBackoff,
		},
		LogLevel:  log.LevelInfo,
		LogFormat: log.FormatConsole,
		dir:       filepath.Dir(path),
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if len(c.Flows) == 0 {
		return errNoFlows
	}
	for i, f := range c.Flows {
		if f.Project == "" {
			return fmt.Errorf("flow %d: project path is empty", i)
		}
	}
	switch c.LogFormat {
	case log.FormatConsole, log.FormatJSON:
	default:
		return fmt.Errorf("unknown logFormat %q", c.LogFormat)
	}
	switch c.DataStore.Type {
	case backendNone, backendMemory, backendRedis:
	default:
		return fmt.Errorf("unknown datastore type %q", c.DataStore.Type)
	}
	switch c.InvokeLog.Type {
	case backendNone, backendMemory:
	case backendSQLite:
		if c.InvokeLog.Path == "" {
			return errors.New("sqlite invoke log needs a path")
		}
	default:
		return fmt.Errorf("unknown invokeLog type %q", c.InvokeLog.Type)
	}
	for _, hooks := range [][]HookConfig{c.Hooks.Init, c.Hooks.Load, c.Hooks.Exit} {
		for _, h := range hooks {
			if h.Owner == "" || h.Name == "" {
				return errors.New("hook needs owner and name")
			}
		}
	}
	return nil
}

// resolve makes p relative to the config directory.
func (c *Config) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.dir, p)
}

// method builds the descriptor of a hook with its arguments as literals.
func (h HookConfig) method(methods graph.MethodResolver) (*graph.MethodDetails, error) {
	_, declared, ok := methods.TryGetCallable(h.Owner, h.Name)
	if !ok {
		return nil, fmt.Errorf("hook %s.%s: %w", h.Owner, h.Name, graph.ErrMethodNotFound)
	}
	md := declared.Clone()
	if err := md.AlignParams(len(h.Args)); err != nil {
		return nil, fmt.Errorf("hook %s: %w", md.Key(), err)
	}
	for i, v := range h.Args {
		md.Params[i].Explicit = true
		md.Params[i].Value = v
	}
	return md, nil
}
