//
// Tencent is pleased to support the open source community by making trpc-flow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-flow-go is licensed under the Apache License Version 2.0.
//
//

// Package redis provides a Redis backed datastore.Store. Values are stored
// as JSON, so numbers read back as float64 and objects as map[string]any.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"

	"trpc.group/trpc-go/trpc-flow-go/datastore"
	"trpc.group/trpc-go/trpc-flow-go/log"
	storage "trpc.group/trpc-go/trpc-flow-go/storage/redis"
)

var _ datastore.Store = (*Store)(nil)

// Store is the redis datastore.
type Store struct {
	opts   Options
	client redis.UniversalClient
	once   sync.Once
}

// New creates a store.
func New(options ...Option) (*Store, error) {
	opts := defaultOptions
	for _, option := range options {
		option(&opts)
	}

	builderOpts := []storage.ClientBuilderOpt{
		storage.WithClientBuilderURL(opts.url),
		storage.WithExtraOptions(opts.extraOptions...),
	}
	if opts.url == "" && opts.instanceName != "" {
		var ok bool
		if builderOpts, ok = storage.GetRedisInstance(opts.instanceName); !ok {
			return nil, fmt.Errorf("redis instance %s not found", opts.instanceName)
		}
	}

	client, err := storage.GetClientBuilder()(builderOpts...)
	if err != nil {
		return nil, fmt.Errorf("create redis client failed: %w", err)
	}
	return &Store{opts: opts, client: client}, nil
}

func (s *Store) key(k string) string {
	return s.opts.keyPrefix + k
}

// Init checks that the server is reachable.
func (s *Store) Init(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis datastore ping: %w", err)
	}
	return nil
}

// Get implements datastore.Store.
func (s *Store) Get(ctx context.Context, key string) (any, bool, error) {
	raw, err := s.client.Get(ctx, s.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis datastore get %s: %w", key, err)
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, false, fmt.Errorf("redis datastore decode %s: %w", key, err)
	}
	return v, true, nil
}

// Set implements datastore.Store.
func (s *Store) Set(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("redis datastore encode %s: %w", key, err)
	}
	if err := s.client.Set(ctx, s.key(key), raw, s.opts.ttl).Err(); err != nil {
		return fmt.Errorf("redis datastore set %s: %w", key, err)
	}
	return nil
}

// Delete implements datastore.Store.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("redis datastore delete %s: %w", key, err)
	}
	return nil
}

// Keys implements datastore.Store.
func (s *Store) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	err := s.scan(ctx, func(batch []string) error {
		for _, k := range batch {
			keys = append(keys, strings.TrimPrefix(k, s.opts.keyPrefix))
		}
		return nil
	})
	return keys, err
}

// Clear removes every key under the store prefix.
func (s *Store) Clear(ctx context.Context) error {
	return s.scan(ctx, func(batch []string) error {
		if len(batch) == 0 {
			return nil
		}
		if err := s.client.Del(ctx, batch...).Err(); err != nil {
			return fmt.Errorf("redis datastore clear: %w", err)
		}
		return nil
	})
}

func (s *Store) scan(ctx context.Context, fn func([]string) error) error {
	var cursor uint64
	for {
		batch, next, err := s.client.Scan(ctx, cursor, s.opts.keyPrefix+"*", s.opts.scanCount).Result()
		if err != nil {
			return fmt.Errorf("redis datastore scan: %w", err)
		}
		if err := fn(batch); err != nil {
			return err
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

// Close closes the redis client. It is safe to call more than once.
func (s *Store) Close() error {
	var err error
	s.once.Do(func() {
		if err = s.client.Close(); err != nil {
			log.Errorf("close redis datastore: %v", err)
		}
	})
	return err
}
