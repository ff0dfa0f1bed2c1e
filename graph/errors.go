//
// Tencent is pleased to support the open source community by making trpc-flow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-flow-go is licensed under the Apache License Version 2.0.
//
//

package graph

import (
	"errors"
	"fmt"
)

var (
	ErrNodeIDEmpty        = errors.New("node id cannot be empty")
	ErrDuplicateNode      = errors.New("node already exists")
	ErrNodeNotFound       = errors.New("node not found")
	ErrNodeConnected      = errors.New("node still has connections")
	ErrDuplicateEdge      = errors.New("connection already exists")
	ErrEdgeNotFound       = errors.New("connection not found")
	ErrInvalidConnection  = errors.New("invalid connection kind")
	ErrNoStartNode        = errors.New("graph has no start node")
	ErrOrphanNode         = errors.New("node is unreachable")
	ErrNoMethod           = errors.New("node has no method")
	ErrParamsMismatch     = errors.New("parameter count mismatch")
	ErrMethodNotFound     = errors.New("method not found")
	ErrArgumentMissing    = errors.New("argument has no value")
	ErrArgumentConversion = errors.New("argument conversion failed")
	ErrSourceFailed       = errors.New("source node failed")
	ErrFlowCanceled       = errors.New("flow canceled")
	ErrMaxStepsExceeded   = errors.New("max steps exceeded")
	ErrTriggerCanceled    = errors.New("trigger canceled")
	ErrNodePanic          = errors.New("node panicked")
)

// ValidationError reports a structural problem found while validating a graph.
type ValidationError struct {
	// Op is the check that failed.
	Op string
	// Node is the ID of the node involved (if any).
	Node string
	// Err is the underlying error.
	Err error
}

func (e *ValidationError) Error() string {
	if e.Node != "" {
		return fmt.Sprintf("validation failed: %s: node '%s': %v", e.Op, e.Node, e.Err)
	}
	return fmt.Sprintf("validation failed: %s: %v", e.Op, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func newValidationError(op, node string, err error) error {
	return &ValidationError{Op: op, Node: node, Err: err}
}
