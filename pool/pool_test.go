//
// Tencent is pleased to support the open source community by making trpc-flow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-flow-go is licensed under the Apache License Version 2.0.
//
//

package pool

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type item struct {
	id    int
	value string
	owner atomic.Int32
}

func TestPool_RoundTripReuses(t *testing.T) {
	var created int
	p := New(func() *item {
		created++
		return &item{id: created}
	}, WithReset(func(it *item) { it.value = "" }))

	for i := 0; i < 100; i++ {
		it := p.Allocate()
		it.value = "dirty"
		p.Free(it)
	}
	assert.Equal(t, 1, created)
	assert.Equal(t, 1, p.Idle())
	assert.Equal(t, 0, p.Live())

	it := p.Allocate()
	assert.Empty(t, it.value, "reset must run before reuse")
}

func TestPool_IdleIsBounded(t *testing.T) {
	p := New(func() *item { return &item{} }, WithMaxIdle[*item](2))
	borrowed := make([]*item, 0, 5)
	for i := 0; i < 5; i++ {
		borrowed = append(borrowed, p.Allocate())
	}
	assert.Equal(t, 5, p.Live())
	for _, it := range borrowed {
		p.Free(it)
	}
	assert.Equal(t, 2, p.Idle())
	assert.Equal(t, 0, p.Live())
}

func TestPool_ZeroMaxIdleFallsBack(t *testing.T) {
	p := New(func() *item { return &item{} }, WithMaxIdle[*item](0))
	assert.Equal(t, DefaultMaxIdle, p.maxIdle)
}

func TestPool_ConcurrentBorrowersNeverShare(t *testing.T) {
	p := New(func() *item { return &item{} })
	const workers = 32
	const rounds = 200

	var wg sync.WaitGroup
	var shared atomic.Bool
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int32) {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				it := p.Allocate()
				if !it.owner.CompareAndSwap(0, w+1) {
					shared.Store(true)
				}
				it.owner.Store(0)
				p.Free(it)
			}
		}(int32(w))
	}
	wg.Wait()

	require.False(t, shared.Load(), "an instance was handed to two borrowers")
	assert.LessOrEqual(t, p.Idle(), workers)
	assert.Equal(t, 0, p.Live())
}
