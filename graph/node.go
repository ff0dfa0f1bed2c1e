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
	"slices"
	"sync"
)

// Position is the editor location of a node. The engine only round-trips it.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Node is a vertex of a flow graph. Edges are stored on both endpoints as
// node IDs, one ordered list per connection kind; the order is call order.
type Node struct {
	// ID is the stable identifier of the node.
	ID string
	// ControlType is the behavioural kind of the node.
	ControlType NodeControlType
	// Method describes the callable. Each node owns its copy.
	Method *MethodDetails
	// Position is the editor location.
	Position Position
	// Public exposes the node to subroutine calls.
	Public bool
	// ContainerID is the parent container, if any.
	ContainerID string
	// Children are the IDs of nested nodes.
	Children []string

	edgeMu       sync.RWMutex
	successors   map[ConnectionInvokeType][]string
	predecessors map[ConnectionInvokeType][]string

	debug debugSetting

	argsMu        sync.Mutex
	protectedArgs []any
}

// NewNode creates an enabled node.
func NewNode(id string, control NodeControlType, method *MethodDetails) *Node {
	n := &Node{
		ID:           id,
		ControlType:  control,
		Method:       method,
		successors:   make(map[ConnectionInvokeType][]string),
		predecessors: make(map[ConnectionInvokeType][]string),
	}
	n.debug.enabled = true
	return n
}

// Successors returns a copy of the successor IDs for kind.
func (n *Node) Successors(kind ConnectionInvokeType) []string {
	n.edgeMu.RLock()
	defer n.edgeMu.RUnlock()
	return slices.Clone(n.successors[kind])
}

// Predecessors returns a copy of the predecessor IDs for kind.
func (n *Node) Predecessors(kind ConnectionInvokeType) []string {
	n.edgeMu.RLock()
	defer n.edgeMu.RUnlock()
	return slices.Clone(n.predecessors[kind])
}

// HasPredecessor reports whether any connection kind points at the node.
func (n *Node) HasPredecessor() bool {
	n.edgeMu.RLock()
	defer n.edgeMu.RUnlock()
	for _, kind := range ConnectionKinds {
		if len(n.predecessors[kind]) > 0 {
			return true
		}
	}
	return false
}

// IsRoot reports whether the node has no predecessor at all.
func (n *Node) IsRoot() bool {
	return !n.HasPredecessor()
}

func (n *Node) hasConnections() bool {
	n.edgeMu.RLock()
	defer n.edgeMu.RUnlock()
	for _, kind := range ConnectionKinds {
		if len(n.predecessors[kind]) > 0 || len(n.successors[kind]) > 0 {
			return true
		}
	}
	return false
}

// IsGlobalTrigger reports whether the node is a trigger that no
// traversal reaches and therefore needs its own loop.
func (n *Node) IsGlobalTrigger() bool {
	return n.ControlType == NodeControlFlipflop && n.IsRoot()
}

func appendUnique(list []string, id string) ([]string, bool) {
	if slices.Contains(list, id) {
		return list, false
	}
	return append(list, id), true
}

func removeID(list []string, id string) ([]string, bool) {
	i := slices.Index(list, id)
	if i < 0 {
		return list, false
	}
	return slices.Delete(list, i, i+1), true
}

// cachedArgs returns the argument array kept for protected parameters.
func (n *Node) cachedArgs() ([]any, bool) {
	n.argsMu.Lock()
	defer n.argsMu.Unlock()
	return n.protectedArgs, n.protectedArgs != nil
}

func (n *Node) cacheArgs(args []any) {
	n.argsMu.Lock()
	n.protectedArgs = args
	n.argsMu.Unlock()
}
