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

// NoParamsArg is the ParamsArgIndex of a method without a variadic tail.
const NoParamsArg = -1

// MethodDetails describes the callable behind a node.
type MethodDetails struct {
	// Owner identifies the type that provides the method. It is the key
	// used for the method registry and the dependency container.
	Owner string `json:"owner"`
	// Name is the method name.
	Name string `json:"name"`
	// Alias is the display name.
	Alias string `json:"alias,omitempty"`
	// ReturnType is the declared return type.
	ReturnType string `json:"returnType,omitempty"`
	// HasParamsArg reports whether the method ends with a variadic tail.
	HasParamsArg bool `json:"hasParamsArg,omitempty"`
	// ParamsArgIndex is the index of the variadic tail, NoParamsArg otherwise.
	ParamsArgIndex int `json:"paramsArgIndex"`
	// Params are the formal arguments.
	Params []*ParameterDetails `json:"params,omitempty"`
}

// ParameterDetails describes one formal argument and how it is resolved.
type ParameterDetails struct {
	// Name is the parameter name.
	Name string `json:"name"`
	// Type is the declared type, looked up in the conversion table.
	Type string `json:"type,omitempty"`
	// Explicit marks a literal value.
	Explicit bool `json:"explicit"`
	// Value is the literal value.
	Value any `json:"value,omitempty"`
	// ArgSource selects the resolution strategy for non-literal values.
	ArgSource ConnectionArgSourceType `json:"argSource"`
	// SourceNodeID is the node read by the "other node" sources.
	SourceNodeID string `json:"sourceNodeId,omitempty"`
	// Index is the position in the parameter array.
	Index int `json:"index"`
	// IsParams marks a slot of the variadic tail.
	IsParams bool `json:"isParams,omitempty"`
	// Nullable allows the parameter to resolve to no value.
	Nullable bool `json:"nullable,omitempty"`
}

// Key returns "owner.name".
func (m *MethodDetails) Key() string {
	return m.Owner + "." + m.Name
}

// Clone deep copies the descriptor. Nodes own their descriptor copy so that
// parameter edits never leak between nodes sharing a method.
func (m *MethodDetails) Clone() *MethodDetails {
	if m == nil {
		return nil
	}
	c := *m
	c.Params = make([]*ParameterDetails, len(m.Params))
	for i, p := range m.Params {
		c.Params[i] = p.Clone()
	}
	return &c
}

// Clone copies the parameter descriptor.
func (p *ParameterDetails) Clone() *ParameterDetails {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}

// FixedParams returns the parameters before the variadic tail, or all of
// them when the method is not variadic.
func (m *MethodDetails) FixedParams() []*ParameterDetails {
	if !m.HasParamsArg || m.ParamsArgIndex < 0 || m.ParamsArgIndex > len(m.Params) {
		return m.Params
	}
	return m.Params[:m.ParamsArgIndex]
}

// VariadicParams returns the slots of the variadic tail.
func (m *MethodDetails) VariadicParams() []*ParameterDetails {
	if !m.HasParamsArg || m.ParamsArgIndex < 0 || m.ParamsArgIndex >= len(m.Params) {
		return nil
	}
	return m.Params[m.ParamsArgIndex:]
}

// AlignParams makes the parameter array n slots long. Variadic methods
// grow by cloning the last tail slot as a template, or shrink down to a
// single tail slot; existing slots keep their values. Added slots get
// distinct names from VariadicSlotName. Methods without a
// tail only accept their declared arity.
func (m *MethodDetails) AlignParams(n int) error {
	if !m.HasParamsArg {
		if n != len(m.Params) {
			return fmt.Errorf("%w: %s expects %d params, got %d",
				ErrParamsMismatch, m.Key(), len(m.Params), n)
		}
		return nil
	}
	if m.ParamsArgIndex < 0 || m.ParamsArgIndex >= len(m.Params) {
		return fmt.Errorf("%w: %s has invalid params index %d",
			ErrParamsMismatch, m.Key(), m.ParamsArgIndex)
	}
	if n < m.ParamsArgIndex+1 {
		return fmt.Errorf("%w: %s needs at least %d params, got %d",
			ErrParamsMismatch, m.Key(), m.ParamsArgIndex+1, n)
	}
	if n <= len(m.Params) {
		m.Params = m.Params[:n]
		return nil
	}
	template := m.Params[len(m.Params)-1]
	base := m.Params[m.ParamsArgIndex].Name
	for i := len(m.Params); i < n; i++ {
		slot := template.Clone()
		slot.Name = VariadicSlotName(base, i-m.ParamsArgIndex)
		slot.Index = i
		slot.IsParams = true
		slot.Value = nil
		slot.SourceNodeID = ""
		m.Params = append(m.Params, slot)
	}
	return nil
}

// VariadicSlotName names slot k of the variadic tail called base. The
// first slot keeps the plain name, later ones read "items[1]", "items[2]".
func VariadicSlotName(base string, k int) string {
	if k == 0 {
		return base
	}
	return fmt.Sprintf("%s[%d]", base, k)
}
