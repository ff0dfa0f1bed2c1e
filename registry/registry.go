//
// Tencent is pleased to support the open source community by making trpc-flow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-flow-go is licensed under the Apache License Version 2.0.
//
//

// Package registry maps method descriptors to the callables behind them.
// Modules register owners and their methods; the executor looks them up
// with TryGetCallable.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"trpc.group/trpc-go/trpc-flow-go/graph"
	"trpc.group/trpc-go/trpc-flow-go/log"
)

var (
	ErrDuplicateOwner  = errors.New("owner already registered")
	ErrDuplicateMethod = errors.New("method already registered")
	ErrUnknownOwner    = errors.New("owner not registered")
	ErrInvalidMethod   = errors.New("invalid method")
)

// Constructor builds the instance of an owner. Owners without state
// register a nil constructor and their callables receive a nil instance.
type Constructor func() (any, error)

// Module is implemented by packages that contribute methods.
type Module interface {
	Register(r *Registry) error
}

// ModuleFunc adapts a function to a Module.
type ModuleFunc func(r *Registry) error

// Register implements Module.
func (f ModuleFunc) Register(r *Registry) error {
	return f(r)
}

type registeredMethod struct {
	fn graph.MethodFunc
	md *graph.MethodDetails
}

// Registry holds the registered owners and methods. It is safe for
// concurrent use.
type Registry struct {
	mu      sync.RWMutex
	owners  map[string]Constructor
	methods map[string]*registeredMethod
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		owners:  make(map[string]Constructor),
		methods: make(map[string]*registeredMethod),
	}
}

// Use registers every module in order and stops at the first failure.
func (r *Registry) Use(modules ...Module) error {
	for _, m := range modules {
		if err := m.Register(r); err != nil {
			return err
		}
	}
	return nil
}

// RegisterOwner registers an owner and its constructor.
func (r *Registry) RegisterOwner(owner string, ctor Constructor) error {
	if owner == "" {
		return fmt.Errorf("%w: empty owner", ErrInvalidMethod)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.owners[owner]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateOwner, owner)
	}
	log.Debugf("registering owner %s", owner)
	r.owners[owner] = ctor
	return nil
}

// RegisterMethod registers fn as the callable of md. The owner must be
// registered first. Parameter indexes are renumbered, and a trailing run
// of IsParams slots becomes the variadic tail.
func (r *Registry) RegisterMethod(md *graph.MethodDetails, fn graph.MethodFunc) error {
	if md == nil || md.Name == "" || fn == nil {
		return fmt.Errorf("%w: method needs a name and a callable", ErrInvalidMethod)
	}
	md = md.Clone()
	if err := normalize(md); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.owners[md.Owner]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownOwner, md.Owner)
	}
	key := md.Key()
	if _, exists := r.methods[key]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateMethod, key)
	}
	log.Debugf("registering method %s", key)
	r.methods[key] = &registeredMethod{fn: fn, md: md}
	return nil
}

func normalize(md *graph.MethodDetails) error {
	md.HasParamsArg = false
	md.ParamsArgIndex = graph.NoParamsArg
	for i, p := range md.Params {
		if p == nil {
			return fmt.Errorf("%w: %s has a nil parameter at %d", ErrInvalidMethod, md.Key(), i)
		}
		p.Index = i
		if p.IsParams && !md.HasParamsArg {
			md.HasParamsArg = true
			md.ParamsArgIndex = i
		}
		if !p.IsParams && md.HasParamsArg {
			return fmt.Errorf("%w: %s has a fixed parameter after its variadic tail", ErrInvalidMethod, md.Key())
		}
	}
	return nil
}

// TryGetCallable returns the callable and a copy of the descriptor
// registered for owner and name.
func (r *Registry) TryGetCallable(owner, name string) (graph.MethodFunc, *graph.MethodDetails, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.methods[owner+"."+name]
	if !ok {
		return nil, nil, false
	}
	return m.fn, m.md.Clone(), true
}

// Constructor returns the constructor of owner.
func (r *Registry) Constructor(owner string) (Constructor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ctor, ok := r.owners[owner]
	return ctor, ok
}

// Owners returns the registered owners, sorted.
func (r *Registry) Owners() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	owners := make([]string, 0, len(r.owners))
	for owner := range r.owners {
		owners = append(owners, owner)
	}
	sort.Strings(owners)
	return owners
}

// Methods returns copies of every registered descriptor, sorted by key.
func (r *Registry) Methods() []*graph.MethodDetails {
	r.mu.RLock()
	defer r.mu.RUnlock()
	mds := make([]*graph.MethodDetails, 0, len(r.methods))
	for _, m := range r.methods {
		mds = append(mds, m.md.Clone())
	}
	sort.Slice(mds, func(i, j int) bool { return mds[i].Key() < mds[j].Key() })
	return mds
}

// NewNode creates a node whose descriptor is a copy of the registered
// owner.name method.
func (r *Registry) NewNode(id string, control graph.NodeControlType, owner, name string) (*graph.Node, error) {
	_, md, ok := r.TryGetCallable(owner, name)
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", graph.ErrMethodNotFound, owner, name)
	}
	return graph.NewNode(id, control, md), nil
}
