//
// Tencent is pleased to support the open source community by making trpc-flow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-flow-go is licensed under the Apache License Version 2.0.
//
//

package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/trpc-flow-go/graph"
)

func newTestSaver(t *testing.T) *Saver {
	t.Helper()
	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "invoke.db"))
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	saver, err := NewSaver(db)
	require.NoError(t, err)
	t.Cleanup(func() { _ = saver.Close() })
	return saver
}

func TestNewSaverRequiresDB(t *testing.T) {
	_, err := NewSaver(nil)
	assert.Error(t, err)
}

func TestSQLiteSaveAndList(t *testing.T) {
	saver := newTestSaver(t)
	ctx := context.Background()
	start := time.Unix(1700000000, 123)
	end := start.Add(5 * time.Millisecond)

	require.NoError(t, saver.Save(ctx, "run-1", []*graph.InvokeInfo{
		{ID: "i1", NodeID: "A", State: graph.InvokeStateSucceed, Value: map[string]any{"n": 1}, Start: start, End: end},
	}))
	require.NoError(t, saver.Save(ctx, "run-1", []*graph.InvokeInfo{
		{ID: "i2", NodeID: "B", PreviousNodeID: "A", Via: graph.ConnectionError,
			State: graph.InvokeStateError, Err: "boom", Start: end, End: end},
	}))

	infos, err := saver.List(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, infos, 2)

	a := infos[0]
	assert.Equal(t, "i1", a.ID)
	assert.Equal(t, "run-1", a.RunID)
	assert.Equal(t, graph.ConnectionNone, a.Via)
	assert.Equal(t, map[string]any{"n": float64(1)}, a.Value)
	assert.True(t, a.Start.Equal(start))
	assert.Equal(t, 5*time.Millisecond, a.Duration())

	b := infos[1]
	assert.Equal(t, "B", b.NodeID)
	assert.Equal(t, "A", b.PreviousNodeID)
	assert.Equal(t, graph.ConnectionError, b.Via)
	assert.Equal(t, graph.InvokeStateError, b.State)
	assert.Equal(t, "boom", b.Err)
	assert.Nil(t, b.Value)
}

func TestSQLiteRunsAndDelete(t *testing.T) {
	saver := newTestSaver(t)
	ctx := context.Background()
	for _, id := range []string{"r1", "r2", "r3"} {
		require.NoError(t, saver.Save(ctx, id, []*graph.InvokeInfo{{NodeID: "A"}}))
	}

	runs, err := saver.Runs(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"r3", "r2", "r1"}, runs)

	runs, err = saver.Runs(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"r3"}, runs)

	require.NoError(t, saver.Delete(ctx, "r3"))
	runs, err = saver.Runs(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"r2", "r1"}, runs)

	infos, err := saver.List(ctx, "r3")
	require.NoError(t, err)
	assert.Empty(t, infos)
}

func TestSQLiteRejectsUnmarshalableValue(t *testing.T) {
	saver := newTestSaver(t)
	err := saver.Save(context.Background(), "r", []*graph.InvokeInfo{{NodeID: "A", Value: make(chan int)}})
	assert.Error(t, err)

	infos, err := saver.List(context.Background(), "r")
	require.NoError(t, err)
	assert.Empty(t, infos)
}

func TestSQLiteRequiresRunID(t *testing.T) {
	saver := newTestSaver(t)
	assert.Error(t, saver.Save(context.Background(), "", []*graph.InvokeInfo{{NodeID: "A"}}))
	assert.Error(t, saver.Delete(context.Background(), ""))
}
