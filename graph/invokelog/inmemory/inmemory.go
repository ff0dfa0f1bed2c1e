//
// Tencent is pleased to support the open source community by making trpc-flow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-flow-go is licensed under the Apache License Version 2.0.
//
//

// Package inmemory provides an in-process invoke log.
package inmemory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"trpc.group/trpc-go/trpc-flow-go/graph"
)

type runLog struct {
	infos []graph.InvokeInfo
	// seq orders runs by their last write.
	seq uint64
}

// Saver provides an in-memory implementation of InvokeLogSaver.
// This is suitable for testing and debugging but not for production use.
type Saver struct {
	mu      sync.RWMutex
	storage map[string]*runLog // runID -> log
	seq     uint64
	// maxRuns limits the number of runs kept.
	maxRuns int
}

// NewSaver creates a new in-memory invoke log.
func NewSaver() *Saver {
	return &Saver{
		storage: make(map[string]*runLog),
		maxRuns: graph.DefaultMaxInvokeLogRuns,
	}
}

// WithMaxRuns sets the maximum number of runs kept.
func (s *Saver) WithMaxRuns(max int) *Saver {
	s.maxRuns = max
	return s
}

// Save appends infos to the log of runID.
func (s *Saver) Save(_ context.Context, runID string, infos []*graph.InvokeInfo) error {
	if runID == "" {
		return errors.New("run id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	log, ok := s.storage[runID]
	if !ok {
		log = &runLog{}
		s.storage[runID] = log
	}
	for _, info := range infos {
		if info != nil {
			log.infos = append(log.infos, *info)
		}
	}
	s.seq++
	log.seq = s.seq
	s.cleanupOldRuns()
	return nil
}

// List returns the log of runID in call order. Unknown runs have an
// empty log.
func (s *Saver) List(_ context.Context, runID string) ([]*graph.InvokeInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	log, ok := s.storage[runID]
	if !ok {
		return nil, nil
	}
	infos := make([]*graph.InvokeInfo, len(log.infos))
	for i := range log.infos {
		info := log.infos[i]
		infos[i] = &info
	}
	return infos, nil
}

// Runs returns the stored run IDs, most recently written first. A
// non-positive limit returns every run.
func (s *Saver) Runs(_ context.Context, limit int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.sortedRuns()
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

// Delete removes the log of runID.
func (s *Saver) Delete(_ context.Context, runID string) error {
	if runID == "" {
		return errors.New("run id is required")
	}
	s.mu.Lock()
	delete(s.storage, runID)
	s.mu.Unlock()
	return nil
}

func (s *Saver) sortedRuns() []string {
	ids := make([]string, 0, len(s.storage))
	for id := range s.storage {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return s.storage[ids[i]].seq > s.storage[ids[j]].seq
	})
	return ids
}

// cleanupOldRuns drops the least recently written runs beyond maxRuns.
// Must be called with the lock held.
func (s *Saver) cleanupOldRuns() {
	if s.maxRuns <= 0 || len(s.storage) <= s.maxRuns {
		return
	}
	ids := s.sortedRuns()
	for _, id := range ids[s.maxRuns:] {
		delete(s.storage, id)
	}
}
