//
// Tencent is pleased to support the open source community by making trpc-flow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-flow-go is licensed under the Apache License Version 2.0.
//
//

package graph

import "fmt"

// ConnectionInvokeType classifies a directed edge between two nodes.
type ConnectionInvokeType int

const (
	// ConnectionNone means "do not advance".
	ConnectionNone ConnectionInvokeType = iota
	// ConnectionUpstream is a continuation scheduled regardless of the outcome.
	ConnectionUpstream
	// ConnectionSucceed is taken when the node succeeded.
	ConnectionSucceed
	// ConnectionFail is taken when the node reported a failure.
	ConnectionFail
	// ConnectionError is taken when the node raised an error.
	ConnectionError
)

// ConnectionKinds lists the connection kinds that can carry edges, in the
// order they are stored on a node.
var ConnectionKinds = []ConnectionInvokeType{
	ConnectionUpstream,
	ConnectionSucceed,
	ConnectionFail,
	ConnectionError,
}

var connectionNames = map[ConnectionInvokeType]string{
	ConnectionNone:     "None",
	ConnectionUpstream: "Upstream",
	ConnectionSucceed:  "IsSucceed",
	ConnectionFail:     "IsFail",
	ConnectionError:    "IsError",
}

// String returns the saved-project name of the kind.
func (c ConnectionInvokeType) String() string {
	if name, ok := connectionNames[c]; ok {
		return name
	}
	return fmt.Sprintf("ConnectionInvokeType(%d)", int(c))
}

// MarshalText implements encoding.TextMarshaler.
func (c ConnectionInvokeType) MarshalText() ([]byte, error) {
	if _, ok := connectionNames[c]; !ok {
		return nil, fmt.Errorf("unknown connection kind %d", int(c))
	}
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *ConnectionInvokeType) UnmarshalText(text []byte) error {
	for k, name := range connectionNames {
		if name == string(text) {
			*c = k
			return nil
		}
	}
	return fmt.Errorf("unknown connection kind %q", string(text))
}

// isEdgeKind reports whether edges of kind c can be stored.
func (c ConnectionInvokeType) isEdgeKind() bool {
	return c >= ConnectionUpstream && c <= ConnectionError
}

// ConnectionArgSourceType tells the resolver where an argument comes from.
type ConnectionArgSourceType int

const (
	// ArgSourceExplicit uses the literal stored on the parameter.
	ArgSourceExplicit ConnectionArgSourceType = iota
	// ArgSourcePreviousNodeData reads the result of the node that invoked this one.
	ArgSourcePreviousNodeData
	// ArgSourceOtherNodeData reads the last result of a configured node.
	ArgSourceOtherNodeData
	// ArgSourceOtherNodeDataOfInvoke invokes a configured node and uses that result.
	ArgSourceOtherNodeDataOfInvoke
)

var argSourceNames = map[ConnectionArgSourceType]string{
	ArgSourceExplicit:              "Explicit",
	ArgSourcePreviousNodeData:      "GetPreviousNodeData",
	ArgSourceOtherNodeData:         "GetOtherNodeData",
	ArgSourceOtherNodeDataOfInvoke: "GetOtherNodeDataOfInvoke",
}

// String returns the saved-project name of the source type.
func (s ConnectionArgSourceType) String() string {
	if name, ok := argSourceNames[s]; ok {
		return name
	}
	return fmt.Sprintf("ConnectionArgSourceType(%d)", int(s))
}

// MarshalText implements encoding.TextMarshaler.
func (s ConnectionArgSourceType) MarshalText() ([]byte, error) {
	if _, ok := argSourceNames[s]; !ok {
		return nil, fmt.Errorf("unknown argument source %d", int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *ConnectionArgSourceType) UnmarshalText(text []byte) error {
	for k, name := range argSourceNames {
		if name == string(text) {
			*s = k
			return nil
		}
	}
	return fmt.Errorf("unknown argument source %q", string(text))
}

// NodeControlType is the behavioural kind of a node.
type NodeControlType int

const (
	// NodeControlAction is an ordinary node.
	NodeControlAction NodeControlType = iota
	// NodeControlFlipflop is a trigger node. Without predecessors it is
	// driven by a global loop, otherwise it suspends inside a traversal.
	NodeControlFlipflop
	// NodeControlUI is bound to a UI element.
	NodeControlUI
	// NodeControlContainer groups child nodes.
	NodeControlContainer
)

var controlNames = map[NodeControlType]string{
	NodeControlAction:    "Action",
	NodeControlFlipflop:  "Flipflop",
	NodeControlUI:        "UI",
	NodeControlContainer: "Container",
}

// String returns the saved-project name of the control type.
func (t NodeControlType) String() string {
	if name, ok := controlNames[t]; ok {
		return name
	}
	return fmt.Sprintf("NodeControlType(%d)", int(t))
}

// MarshalText implements encoding.TextMarshaler.
func (t NodeControlType) MarshalText() ([]byte, error) {
	if _, ok := controlNames[t]; !ok {
		return nil, fmt.Errorf("unknown control type %d", int(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *NodeControlType) UnmarshalText(text []byte) error {
	for k, name := range controlNames {
		if name == string(text) {
			*t = k
			return nil
		}
	}
	return fmt.Errorf("unknown control type %q", string(text))
}

// RunState is the run-level state of an execution context.
type RunState int

const (
	// RunStateRunning is the normal state.
	RunStateRunning RunState = iota
	// RunStateCompletion asks the traversal to stop after the current node.
	RunStateCompletion
)

// InvokeState is the outcome recorded for one node invocation.
type InvokeState string

// Invoke states.
const (
	InvokeStateSucceed InvokeState = "succeed"
	InvokeStateFail    InvokeState = "fail"
	InvokeStateError   InvokeState = "error"
	InvokeStateHold    InvokeState = "hold"
)
