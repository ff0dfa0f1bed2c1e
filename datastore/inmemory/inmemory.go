//
// Tencent is pleased to support the open source community by making trpc-flow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-flow-go is licensed under the Apache License Version 2.0.
//
//

// Package inmemory provides a map backed datastore.Store.
package inmemory

import (
	"context"
	"sync"

	"trpc.group/trpc-go/trpc-flow-go/datastore"
)

var _ datastore.Store = (*Store)(nil)

// Store keeps values in a map guarded by a RWMutex.
type Store struct {
	mu   sync.RWMutex
	data map[string]any
}

// New creates an empty store.
func New() *Store {
	return &Store{data: make(map[string]any)}
}

// Init implements datastore.Store.
func (s *Store) Init(context.Context) error {
	return nil
}

// Get implements datastore.Store.
func (s *Store) Get(_ context.Context, key string) (any, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	return v, ok, nil
}

// Set implements datastore.Store.
func (s *Store) Set(_ context.Context, key string, value any) error {
	s.mu.Lock()
	s.data[key] = value
	s.mu.Unlock()
	return nil
}

// Delete implements datastore.Store.
func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.data, key)
	s.mu.Unlock()
	return nil
}

// Keys implements datastore.Store.
func (s *Store) Keys(context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	return keys, nil
}

// Clear implements datastore.Store.
func (s *Store) Clear(context.Context) error {
	s.mu.Lock()
	clear(s.data)
	s.mu.Unlock()
	return nil
}
