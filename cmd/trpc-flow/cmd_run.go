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
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/spf13/cobra"

	"trpc.group/trpc-go/trpc-flow-go/datastore"
	"trpc.group/trpc-go/trpc-flow-go/datastore/inmemory"
	redisstore "trpc.group/trpc-go/trpc-flow-go/datastore/redis"
	"trpc.group/trpc-go/trpc-flow-go/graph"
	memlog "trpc.group/trpc-go/trpc-flow-go/graph/invokelog/inmemory"
	sqlitelog "trpc.group/trpc-go/trpc-flow-go/graph/invokelog/sqlite"
	"trpc.group/trpc-go/trpc-flow-go/log"
	"trpc.group/trpc-go/trpc-flow-go/registry"
	"trpc.group/trpc-go/trpc-flow-go/registry/builtin"
	"trpc.group/trpc-go/trpc-flow-go/runner"
	"trpc.group/trpc-go/trpc-flow-go/server/debug"
	"trpc.group/trpc-go/trpc-flow-go/telemetry/metric"
	"trpc.group/trpc-go/trpc-flow-go/telemetry/trace"
)

const shutdownTimeout = 5 * time.Second

func newRunCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the flows of a config file until they finish or a signal arrives",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "run.yaml", "run configuration file")
	return cmd
}

func newRegistry() (*registry.Registry, error) {
	reg := registry.New()
	if err := reg.Use(builtin.Module()); err != nil {
		return nil, err
	}
	return reg, nil
}

// app holds what run builds from a config.
type app struct {
	runner  runner.Runner
	saver   graph.InvokeLogSaver
	closers []func() error
}

func (a *app) close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func run(ctx context.Context, cfg *Config) error {
	log.SetLevel(cfg.LogLevel)
	log.SetFormat(cfg.LogFormat)
	a, err := build(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.close(); err != nil {
			log.Errorf("close: %v", err)
		}
	}()

	if cfg.Debug.Addr != "" {
		srv := &http.Server{
			Addr:    cfg.Debug.Addr,
			Handler: debug.New(a.runner, debug.WithInvokeLogSaver(a.saver), debug.WithSpanCapture(cfg.Debug.CaptureSpan)).Handler(),
		}
		go func() {
			log.Infof("debug server listening on %s", cfg.Debug.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Errorf("debug server: %v", err)
			}
		}()
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			_ = srv.Shutdown(sctx)
		}()
	}
	return a.runner.Run(ctx)
}

// build wires the registry, stores, telemetry and runner described by cfg.
// On failure everything opened so far is closed again.
func build(ctx context.Context, cfg *Config) (*app, error) {
	a := &app{}
	if err := a.wire(ctx, cfg); err != nil {
		if cerr := a.close(); cerr != nil {
			log.Errorf("close after failed build: %v", cerr)
		}
		return nil, err
	}
	return a, nil
}

func (a *app) wire(ctx context.Context, cfg *Config) error {
	if err := startTelemetry(ctx, cfg.Telemetry, a); err != nil {
		return err
	}
	reg, err := newRegistry()
	if err != nil {
		return err
	}

	opts := []runner.Option{
		runner.WithTrace(cfg.Runner.Trace),
		runner.WithMaxSteps(cfg.Runner.MaxSteps),
		runner.WithPoolSize(cfg.Runner.PoolSize),
		runner.WithTriggerBackoff(cfg.Runner.TriggerBackoff),
	}
	for _, fc := range cfg.Flows {
		data, err := os.ReadFile(cfg.resolve(fc.Project))
		if err != nil {
			return fmt.Errorf("read project: %w", err)
		}
		g, err := graph.LoadProject(data, reg)
		if err != nil {
			return fmt.Errorf("load project %s: %w", fc.Project, err)
		}
		opts = append(opts, runner.WithFlow(runner.FlowSpec{Name: fc.Name, Graph: g, Background: fc.Background}))
	}
	hookSets := []struct {
		hooks []HookConfig
		with  func(...*graph.MethodDetails) runner.Option
	}{
		{cfg.Hooks.Init, runner.WithInitHooks},
		{cfg.Hooks.Load, runner.WithLoadHooks},
		{cfg.Hooks.Exit, runner.WithExitHooks},
	}
	for _, set := range hookSets {
		for _, h := range set.hooks {
			md, err := h.method(reg)
			if err != nil {
				return err
			}
			opts = append(opts, set.with(md))
		}
	}

	store, err := newDataStore(cfg.DataStore, a)
	if err != nil {
		return err
	}
	if store != nil {
		opts = append(opts, runner.WithDataStore(store))
	}
	if a.saver, err = newInvokeLog(cfg, a); err != nil {
		return err
	}
	if a.saver != nil {
		opts = append(opts, runner.WithInvokeLogSaver(a.saver))
	}

	if a.runner, err = runner.New(reg, opts...); err != nil {
		return err
	}
	a.closers = append(a.closers, a.runner.Close)
	return nil
}

func newDataStore(cfg DataStoreConfig, a *app) (datastore.Store, error) {
	switch cfg.Type {
	case backendMemory:
		return inmemory.New(), nil
	case backendRedis:
		s, err := redisstore.New(
			redisstore.WithRedisClientURL(cfg.URL),
			redisstore.WithRedisInstance(cfg.Instance),
			redisstore.WithKeyPrefix(cfg.KeyPrefix),
			redisstore.WithTTL(cfg.TTL),
		)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, s.Close)
		return s, nil
	default:
		return nil, nil
	}
}

func newInvokeLog(cfg *Config, a *app) (graph.InvokeLogSaver, error) {
	switch cfg.InvokeLog.Type {
	case backendMemory:
		return memlog.NewSaver().WithMaxRuns(cfg.InvokeLog.MaxRuns), nil
	case backendSQLite:
		db, err := sql.Open("sqlite3", cfg.resolve(cfg.InvokeLog.Path))
		if err != nil {
			return nil, fmt.Errorf("open invoke log: %w", err)
		}
		db.SetMaxOpenConns(1)
		s, err := sqlitelog.NewSaver(db)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		a.closers = append(a.closers, s.Close)
		return s, nil
	default:
		return nil, nil
	}
}

func startTelemetry(ctx context.Context, cfg TelemetryConfig, a *app) error {
	if cfg.TracesEndpoint != "" {
		opts := []trace.Option{trace.WithEndpoint(cfg.TracesEndpoint)}
		if cfg.Protocol != "" {
			opts = append(opts, trace.WithProtocol(cfg.Protocol))
		}
		if cfg.ServiceName != "" {
			opts = append(opts, trace.WithServiceName(cfg.ServiceName))
		}
		clean, err := trace.Start(ctx, opts...)
		if err != nil {
			return fmt.Errorf("start tracing: %w", err)
		}
		a.closers = append(a.closers, clean)
	}
	if cfg.MetricsEndpoint != "" {
		opts := []metric.Option{
			metric.WithEndpoint(cfg.MetricsEndpoint),
			metric.WithExportInterval(cfg.MetricsInterval),
		}
		if cfg.Protocol != "" {
			opts = append(opts, metric.WithProtocol(cfg.Protocol))
		}
		if cfg.ServiceName != "" {
			opts = append(opts, metric.WithServiceName(cfg.ServiceName))
		}
		clean, err := metric.Start(ctx, opts...)
		if err != nil {
			return fmt.Errorf("start metrics: %w", err)
		}
		a.closers = append(a.closers, clean)
	}
	return nil
}
