//
// Tencent is pleased to support the open source community by making trpc-flow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-flow-go is licensed under the Apache License Version 2.0.
//
//

// Package graph provides the flow graph model and the engine that walks it.
package graph

import (
	"fmt"
	"slices"
	"sync"
)

// Graph is an arena of nodes. Nodes reference each other by ID only.
type Graph struct {
	// Name identifies the flow.
	Name string

	mu      sync.RWMutex
	nodes   map[string]*Node
	order   []string
	startID string
}

// New creates an empty graph.
func New(name string) *Graph {
	return &Graph{
		Name:  name,
		nodes: make(map[string]*Node),
	}
}

// AddNode adds a node to the graph.
func (g *Graph) AddNode(node *Node) error {
	if node == nil || node.ID == "" {
		return ErrNodeIDEmpty
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, exists := g.nodes[node.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateNode, node.ID)
	}
	g.nodes[node.ID] = node
	g.order = append(g.order, node.ID)
	return nil
}

// Node returns the node with the given ID.
func (g *Graph) Node(id string) (*Node, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	node, ok := g.nodes[id]
	return node, ok
}

// Nodes returns all nodes in insertion order.
func (g *Graph) Nodes() []*Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	nodes := make([]*Node, 0, len(g.order))
	for _, id := range g.order {
		nodes = append(nodes, g.nodes[id])
	}
	return nodes
}

// SetStart sets the entry node.
func (g *Graph) SetStart(id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.nodes[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	g.startID = id
	return nil
}

// Start returns the entry node, or nil when none is set.
func (g *Graph) Start() *Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.nodes[g.startID]
}

// Connect adds an edge of the given kind. The successor list of from and
// the predecessor list of to are updated together.
func (g *Graph) Connect(from, to string, kind ConnectionInvokeType) error {
	if !kind.isEdgeKind() {
		return fmt.Errorf("%w: %s", ErrInvalidConnection, kind)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	src, dst, err := g.endpoints(from, to)
	if err != nil {
		return err
	}
	unlock := lockPair(src, dst)
	defer unlock()
	if slices.Contains(src.successors[kind], to) {
		return fmt.Errorf("%w: %s -[%s]-> %s", ErrDuplicateEdge, from, kind, to)
	}
	src.successors[kind], _ = appendUnique(src.successors[kind], to)
	dst.predecessors[kind], _ = appendUnique(dst.predecessors[kind], from)
	return nil
}

// Disconnect removes an edge of the given kind from both endpoints.
func (g *Graph) Disconnect(from, to string, kind ConnectionInvokeType) error {
	if !kind.isEdgeKind() {
		return fmt.Errorf("%w: %s", ErrInvalidConnection, kind)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	src, dst, err := g.endpoints(from, to)
	if err != nil {
		return err
	}
	unlock := lockPair(src, dst)
	defer unlock()
	var removed bool
	src.successors[kind], removed = removeID(src.successors[kind], to)
	if !removed {
		return fmt.Errorf("%w: %s -[%s]-> %s", ErrEdgeNotFound, from, kind, to)
	}
	dst.predecessors[kind], _ = removeID(dst.predecessors[kind], from)
	return nil
}

// DetachNode removes every connection touching the node, on both sides.
func (g *Graph) DetachNode(id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	node, ok := g.nodes[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	for _, kind := range ConnectionKinds {
		for _, succ := range node.Successors(kind) {
			if other, ok := g.nodes[succ]; ok {
				g.unlink(node, other, kind)
			}
		}
		for _, pred := range node.Predecessors(kind) {
			if other, ok := g.nodes[pred]; ok {
				g.unlink(other, node, kind)
			}
		}
	}
	return nil
}

// RemoveNode deletes a node. Its connections must be removed first.
func (g *Graph) RemoveNode(id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	node, ok := g.nodes[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	if node.hasConnections() {
		return fmt.Errorf("%w: %s", ErrNodeConnected, id)
	}
	delete(g.nodes, id)
	g.order, _ = removeID(g.order, id)
	if g.startID == id {
		g.startID = ""
	}
	if parent, ok := g.nodes[node.ContainerID]; ok {
		parent.Children, _ = removeID(parent.Children, id)
	}
	return nil
}

// AddChild nests child inside the container node parent.
func (g *Graph) AddChild(parent, child string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	p, c, err := g.endpoints(parent, child)
	if err != nil {
		return err
	}
	p.Children, _ = appendUnique(p.Children, child)
	c.ContainerID = parent
	return nil
}

// GlobalTriggers returns the enabled trigger nodes that no connection
// reaches, in insertion order.
func (g *Graph) GlobalTriggers() []*Node {
	var triggers []*Node
	for _, node := range g.Nodes() {
		if node.IsGlobalTrigger() && node.Enabled() {
			triggers = append(triggers, node)
		}
	}
	return triggers
}

// Validate checks the structure of the graph.
func (g *Graph) Validate() error {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.startID == "" {
		return newValidationError("start", "", ErrNoStartNode)
	}
	if _, ok := g.nodes[g.startID]; !ok {
		return newValidationError("start", g.startID, ErrNodeNotFound)
	}
	for _, id := range g.order {
		node := g.nodes[id]
		if node.Method == nil || node.Method.Name == "" {
			return newValidationError("method", id, ErrNoMethod)
		}
		for _, kind := range ConnectionKinds {
			for _, ref := range append(node.Successors(kind), node.Predecessors(kind)...) {
				if _, ok := g.nodes[ref]; !ok {
					return newValidationError("connection", id,
						fmt.Errorf("%w: %s", ErrNodeNotFound, ref))
				}
			}
		}
		if node.ContainerID != "" {
			if _, ok := g.nodes[node.ContainerID]; !ok {
				return newValidationError("container", id,
					fmt.Errorf("%w: %s", ErrNodeNotFound, node.ContainerID))
			}
			continue
		}
		if id == g.startID || node.ControlType == NodeControlFlipflop ||
			node.ControlType == NodeControlContainer {
			continue
		}
		if node.IsRoot() {
			return newValidationError("reachability", id, ErrOrphanNode)
		}
	}
	return nil
}

func (g *Graph) endpoints(from, to string) (*Node, *Node, error) {
	src, ok := g.nodes[from]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrNodeNotFound, from)
	}
	dst, ok := g.nodes[to]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrNodeNotFound, to)
	}
	return src, dst, nil
}

// unlink drops one edge. g.mu must be held.
func (g *Graph) unlink(src, dst *Node, kind ConnectionInvokeType) {
	unlock := lockPair(src, dst)
	defer unlock()
	src.successors[kind], _ = removeID(src.successors[kind], dst.ID)
	dst.predecessors[kind], _ = removeID(dst.predecessors[kind], src.ID)
}

// lockPair write-locks the edge lists of two nodes in ID order.
func lockPair(a, b *Node) func() {
	if a == b {
		a.edgeMu.Lock()
		return a.edgeMu.Unlock
	}
	if a.ID > b.ID {
		a, b = b, a
	}
	a.edgeMu.Lock()
	b.edgeMu.Lock()
	return func() {
		b.edgeMu.Unlock()
		a.edgeMu.Unlock()
	}
}
