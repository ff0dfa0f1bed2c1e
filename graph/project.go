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
	"encoding/json"
	"fmt"
	"slices"
)

// Project is the saved form of a graph, as exchanged with the editor.
type Project struct {
	Name        string       `json:"name"`
	StartNodeID string       `json:"startNodeId"`
	Nodes       []*SavedNode `json:"nodes"`
}

// SavedNode is the saved form of a node.
type SavedNode struct {
	ID                string                            `json:"id"`
	ControlType       NodeControlType                   `json:"controlType"`
	Position          Position                          `json:"position"`
	Enabled           bool                              `json:"enabled"`
	Interrupted       bool                              `json:"interrupted,omitempty"`
	ProtectParameters bool                              `json:"protectParameters,omitempty"`
	Public            bool                              `json:"public,omitempty"`
	Method            *MethodDetails                    `json:"method"`
	ContainerID       string                            `json:"containerId,omitempty"`
	Children          []string                          `json:"children,omitempty"`
	Successors        map[ConnectionInvokeType][]string `json:"successors,omitempty"`
	Predecessors      map[ConnectionInvokeType][]string `json:"predecessors,omitempty"`
}

// NewProject captures g in its saved form.
func NewProject(g *Graph) *Project {
	p := &Project{Name: g.Name}
	if start := g.Start(); start != nil {
		p.StartNodeID = start.ID
	}
	for _, n := range g.Nodes() {
		sn := &SavedNode{
			ID:                n.ID,
			ControlType:       n.ControlType,
			Position:          n.Position,
			Enabled:           n.Enabled(),
			Interrupted:       n.Interrupted(),
			ProtectParameters: n.ProtectParameters(),
			Public:            n.Public,
			Method:            n.Method.Clone(),
			ContainerID:       n.ContainerID,
			Children:          slices.Clone(n.Children),
			Successors:        edgeMap(n.Successors),
			Predecessors:      edgeMap(n.Predecessors),
		}
		p.Nodes = append(p.Nodes, sn)
	}
	return p
}

func edgeMap(list func(ConnectionInvokeType) []string) map[ConnectionInvokeType][]string {
	var m map[ConnectionInvokeType][]string
	for _, kind := range ConnectionKinds {
		ids := list(kind)
		if len(ids) == 0 {
			continue
		}
		if m == nil {
			m = make(map[ConnectionInvokeType][]string)
		}
		m[kind] = ids
	}
	return m
}

// SaveProject encodes g as project JSON.
func SaveProject(g *Graph) ([]byte, error) {
	return json.MarshalIndent(NewProject(g), "", "  ")
}

// LoadProject decodes project JSON and builds a validated graph.
func LoadProject(data []byte, methods MethodResolver) (*Graph, error) {
	var p Project
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode project: %w", err)
	}
	return p.Build(methods)
}

// Build turns the saved form back into a graph. When methods is set, each
// saved descriptor is laid over the registered one, so the parameter array
// follows the saved length and the registered types. The result is
// validated.
func (p *Project) Build(methods MethodResolver) (*Graph, error) {
	g := New(p.Name)
	for _, sn := range p.Nodes {
		md, err := restoreMethod(sn, methods)
		if err != nil {
			return nil, err
		}
		n := NewNode(sn.ID, sn.ControlType, md)
		n.Position = sn.Position
		n.Public = sn.Public
		n.ContainerID = sn.ContainerID
		n.Children = slices.Clone(sn.Children)
		n.SetEnabled(sn.Enabled)
		n.SetProtectParameters(sn.ProtectParameters)
		if sn.Interrupted {
			n.Interrupt()
		}
		if err := restoreEdges(sn.ID, sn.Successors, n.successors); err != nil {
			return nil, err
		}
		if err := restoreEdges(sn.ID, sn.Predecessors, n.predecessors); err != nil {
			return nil, err
		}
		if err := g.AddNode(n); err != nil {
			return nil, err
		}
	}
	if err := checkEdgeSymmetry(g); err != nil {
		return nil, err
	}
	if p.StartNodeID != "" {
		if err := g.SetStart(p.StartNodeID); err != nil {
			return nil, newValidationError("start", p.StartNodeID, err)
		}
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

// restoreEdges copies saved edge lists into dst. Each kind may list a
// node only once.
func restoreEdges(nodeID string, saved, dst map[ConnectionInvokeType][]string) error {
	for kind, ids := range saved {
		if !kind.isEdgeKind() {
			return newValidationError("connection", nodeID, fmt.Errorf("%w: %s", ErrInvalidConnection, kind))
		}
		seen := make(map[string]bool, len(ids))
		for _, id := range ids {
			if seen[id] {
				return newValidationError("connection", nodeID,
					fmt.Errorf("%w: %s -[%s]- %s listed twice", ErrDuplicateEdge, nodeID, kind, id))
			}
			seen[id] = true
		}
		dst[kind] = slices.Clone(ids)
	}
	return nil
}

func restoreMethod(sn *SavedNode, methods MethodResolver) (*MethodDetails, error) {
	if sn.Method == nil {
		return nil, newValidationError("method", sn.ID, ErrNoMethod)
	}
	if methods == nil {
		return sn.Method.Clone(), nil
	}
	_, declared, ok := methods.TryGetCallable(sn.Method.Owner, sn.Method.Name)
	if !ok {
		return nil, newValidationError("method", sn.ID, fmt.Errorf("%w: %s", ErrMethodNotFound, sn.Method.Key()))
	}
	md := declared.Clone()
	if md.Alias == "" {
		md.Alias = sn.Method.Alias
	}
	if err := md.AlignParams(len(sn.Method.Params)); err != nil {
		return nil, newValidationError("params", sn.ID, err)
	}
	for i, saved := range sn.Method.Params {
		slot := md.Params[i]
		slot.Explicit = saved.Explicit
		slot.Value = saved.Value
		slot.ArgSource = saved.ArgSource
		slot.SourceNodeID = saved.SourceNodeID
		slot.Index = i
	}
	return md, nil
}

// checkEdgeSymmetry verifies that every saved edge is present on both ends.
func checkEdgeSymmetry(g *Graph) error {
	for _, n := range g.Nodes() {
		for _, kind := range ConnectionKinds {
			for _, id := range n.Successors(kind) {
				other, ok := g.Node(id)
				if !ok {
					return newValidationError("connection", n.ID, fmt.Errorf("%w: %s", ErrNodeNotFound, id))
				}
				if !slices.Contains(other.Predecessors(kind), n.ID) {
					return newValidationError("connection", n.ID,
						fmt.Errorf("%w: %s -[%s]-> %s missing on target", ErrInvalidConnection, n.ID, kind, id))
				}
			}
			for _, id := range n.Predecessors(kind) {
				other, ok := g.Node(id)
				if !ok {
					return newValidationError("connection", n.ID, fmt.Errorf("%w: %s", ErrNodeNotFound, id))
				}
				if !slices.Contains(other.Successors(kind), n.ID) {
					return newValidationError("connection", n.ID,
						fmt.Errorf("%w: %s -[%s]-> %s missing on source", ErrInvalidConnection, id, kind, n.ID))
				}
			}
		}
	}
	return nil
}
