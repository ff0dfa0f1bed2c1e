//
// Tencent is pleased to support the open source community by making trpc-flow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-flow-go is licensed under the Apache License Version 2.0.
//
//

// Package sqlite provides a SQLite-backed invoke log.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"trpc.group/trpc-go/trpc-flow-go/graph"
)

const (
	sqliteCreateInvokeLogs = "CREATE TABLE IF NOT EXISTS invoke_logs (" +
		"run_id TEXT NOT NULL, " +
		"seq INTEGER NOT NULL, " +
		"id TEXT NOT NULL, " +
		"previous_node_id TEXT NOT NULL, " +
		"node_id TEXT NOT NULL, " +
		"via TEXT NOT NULL, " +
		"state TEXT NOT NULL, " +
		"value_json BLOB, " +
		"err TEXT NOT NULL, " +
		"start_ns INTEGER NOT NULL, " +
		"end_ns INTEGER NOT NULL, " +
		"saved_ns INTEGER NOT NULL, " +
		"PRIMARY KEY (run_id, seq)" +
		")"

	sqliteNextSeq = "SELECT COALESCE(MAX(seq), -1) + 1 FROM invoke_logs WHERE run_id = ?"

	sqliteInsertInvoke = "INSERT INTO invoke_logs (" +
		"run_id, seq, id, previous_node_id, node_id, via, state, value_json, err, " +
		"start_ns, end_ns, saved_ns) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"

	sqliteSelectInvokes = "SELECT id, previous_node_id, node_id, via, state, value_json, err, " +
		"start_ns, end_ns FROM invoke_logs WHERE run_id = ? ORDER BY seq ASC"

	// SQLite treats a negative LIMIT as no limit.
	sqliteSelectRuns = "SELECT run_id FROM invoke_logs GROUP BY run_id " +
		"ORDER BY MAX(saved_ns) DESC, MAX(rowid) DESC LIMIT ?"

	sqliteDeleteRun = "DELETE FROM invoke_logs WHERE run_id = ?"
)

// Saver is a SQLite-backed implementation of InvokeLogSaver.
// It expects an initialized *sql.DB and will create the required schema.
// Node values are stored as JSON, so numbers read back as float64.
type Saver struct {
	db *sql.DB
}

// NewSaver creates a new saver using the provided DB.
// The DB must use a SQLite driver. The constructor creates tables if needed.
func NewSaver(db *sql.DB) (*Saver, error) {
	if db == nil {
		return nil, errors.New("db is nil")
	}
	if _, err := db.Exec(sqliteCreateInvokeLogs); err != nil {
		return nil, fmt.Errorf("create invoke_logs table: %w", err)
	}
	return &Saver{db: db}, nil
}

// Save appends infos to the log of runID in a single transaction.
func (s *Saver) Save(ctx context.Context, runID string, infos []*graph.InvokeInfo) error {
	if runID == "" {
		return errors.New("run id is required")
	}
	if len(infos) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var seq int64
	if err := tx.QueryRowContext(ctx, sqliteNextSeq, runID).Scan(&seq); err != nil {
		return fmt.Errorf("next sequence: %w", err)
	}
	saved := time.Now().UnixNano()
	for _, info := range infos {
		if info == nil {
			continue
		}
		valueJSON, err := json.Marshal(info.Value)
		if err != nil {
			return fmt.Errorf("marshal value of %s: %w", info.NodeID, err)
		}
		_, err = tx.ExecContext(
			ctx,
			sqliteInsertInvoke,
			runID,
			seq,
			info.ID,
			info.PreviousNodeID,
			info.NodeID,
			info.Via.String(),
			string(info.State),
			valueJSON,
			info.Err,
			info.Start.UnixNano(),
			info.End.UnixNano(),
			saved,
		)
		if err != nil {
			return fmt.Errorf("insert invoke: %w", err)
		}
		seq++
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// List returns the log of runID in call order.
func (s *Saver) List(ctx context.Context, runID string) ([]*graph.InvokeInfo, error) {
	rows, err := s.db.QueryContext(ctx, sqliteSelectInvokes, runID)
	if err != nil {
		return nil, fmt.Errorf("select invokes: %w", err)
	}
	defer rows.Close()
	var infos []*graph.InvokeInfo
	for rows.Next() {
		var (
			info           = &graph.InvokeInfo{RunID: runID}
			via, state     string
			valueJSON      []byte
			startNs, endNs int64
		)
		if err := rows.Scan(&info.ID, &info.PreviousNodeID, &info.NodeID, &via, &state,
			&valueJSON, &info.Err, &startNs, &endNs); err != nil {
			return nil, fmt.Errorf("scan invoke: %w", err)
		}
		if err := info.Via.UnmarshalText([]byte(via)); err != nil {
			return nil, fmt.Errorf("decode via: %w", err)
		}
		info.State = graph.InvokeState(state)
		if len(valueJSON) > 0 {
			if err := json.Unmarshal(valueJSON, &info.Value); err != nil {
				return nil, fmt.Errorf("unmarshal value: %w", err)
			}
		}
		info.Start = time.Unix(0, startNs)
		info.End = time.Unix(0, endNs)
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iter invokes: %w", err)
	}
	return infos, nil
}

// Runs returns the stored run IDs, most recently written first. A
// non-positive limit returns every run.
func (s *Saver) Runs(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, sqliteSelectRuns, limit)
	if err != nil {
		return nil, fmt.Errorf("select runs: %w", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iter runs: %w", err)
	}
	return ids, nil
}

// Delete removes the log of runID.
func (s *Saver) Delete(ctx context.Context, runID string) error {
	if runID == "" {
		return errors.New("run id is required")
	}
	if _, err := s.db.ExecContext(ctx, sqliteDeleteRun, runID); err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	return nil
}

// Close releases resources held by the saver.
func (s *Saver) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
