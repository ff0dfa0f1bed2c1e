//
// Tencent is pleased to support the open source community by making trpc-flow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-flow-go is licensed under the Apache License Version 2.0.
//
//

// Package datastore defines the shared key/value data that running nodes
// read and write. A store is owned by the runner, initialized before the
// first flow starts and cleared on exit. Concurrent writes to one key are
// last-write-wins.
package datastore

import "context"

// Store is the process-wide data cache shared by every running node.
type Store interface {
	// Init prepares the store. It is called once before flows run.
	Init(ctx context.Context) error
	// Get returns the value stored under key.
	Get(ctx context.Context, key string) (any, bool, error)
	// Set stores value under key.
	Set(ctx context.Context, key string, value any) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Keys returns the stored keys in no particular order.
	Keys(ctx context.Context) ([]string, error)
	// Clear removes every key.
	Clear(ctx context.Context) error
}
