//
// Tencent is pleased to support the open source community by making trpc-flow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-flow-go is licensed under the Apache License Version 2.0.
//
//

package redis

import "time"

const (
	defaultKeyPrefix = "trpc_flow:data:"
	defaultScanCount = 256
)

var defaultOptions = Options{
	keyPrefix: defaultKeyPrefix,
	scanCount: defaultScanCount,
}

// Options is the options for the redis datastore.
type Options struct {
	url          string
	instanceName string
	extraOptions []any
	keyPrefix    string
	ttl          time.Duration
	scanCount    int64
}

// Option is the option for the redis datastore.
type Option func(*Options)

// WithRedisClientURL creates a redis client from URL.
func WithRedisClientURL(url string) Option {
	return func(opts *Options) {
		opts.url = url
	}
}

// WithRedisInstance uses a redis instance registered in storage/redis.
// WithRedisClientURL takes precedence when both are set.
func WithRedisInstance(instanceName string) Option {
	return func(opts *Options) {
		opts.instanceName = instanceName
	}
}

// WithExtraOptions sets options passed to a customized client builder.
func WithExtraOptions(extraOptions ...any) Option {
	return func(opts *Options) {
		opts.extraOptions = append(opts.extraOptions, extraOptions...)
	}
}

// WithKeyPrefix namespaces the keys of one store, so several runners can
// share a redis instance.
func WithKeyPrefix(prefix string) Option {
	return func(opts *Options) {
		if prefix == "" {
			prefix = defaultKeyPrefix
		}
		opts.keyPrefix = prefix
	}
}

// WithTTL expires values after ttl. Zero keeps them until Clear.
func WithTTL(ttl time.Duration) Option {
	return func(opts *Options) {
		if ttl < 0 {
			ttl = 0
		}
		opts.ttl = ttl
	}
}
