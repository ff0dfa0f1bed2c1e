//
// Tencent is pleased to support the open source community by making trpc-flow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-flow-go is licensed under the Apache License Version 2.0.
//
//

// Package container holds the owner instances callables are invoked on.
package container

import (
	"errors"
	"fmt"
	"sync"

	"trpc.group/trpc-go/trpc-flow-go/registry"
)

var (
	ErrUnknownOwner  = errors.New("owner has no constructor")
	ErrNotRegistered = errors.New("owner not registered in container")
	ErrNotBuilt      = errors.New("owner instance not built")
	ErrBuild         = errors.New("build owner instance failed")
)

// Constructors looks up owner constructors, as provided by
// *registry.Registry.
type Constructors interface {
	Constructor(owner string) (registry.Constructor, bool)
}

// Container builds one instance per registered owner. Register and Build
// may be called again after a build; already built instances are kept.
// Get is safe for concurrent use.
type Container struct {
	ctors Constructors

	mu        sync.RWMutex
	order     []string
	instances map[string]any
	built     map[string]bool
}

// New creates an empty container.
func New(ctors Constructors) *Container {
	return &Container{
		ctors:     ctors,
		instances: make(map[string]any),
		built:     make(map[string]bool),
	}
}

// Register adds owner. Registering an owner twice is a no-op.
func (c *Container) Register(owner string) error {
	if _, ok := c.ctors.Constructor(owner); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownOwner, owner)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.built[owner]; ok {
		return nil
	}
	c.built[owner] = false
	c.order = append(c.order, owner)
	return nil
}

// Build constructs every registered owner that has no instance yet, in
// registration order. It stops at the first failing constructor.
func (c *Container) Build() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, owner := range c.order {
		if c.built[owner] {
			continue
		}
		ctor, _ := c.ctors.Constructor(owner)
		var inst any
		if ctor != nil {
			var err error
			if inst, err = ctor(); err != nil {
				return fmt.Errorf("%w: %s: %w", ErrBuild, owner, err)
			}
		}
		c.instances[owner] = inst
		c.built[owner] = true
	}
	return nil
}

// Get returns the instance of owner.
func (c *Container) Get(owner string) (any, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	built, ok := c.built[owner]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotRegistered, owner)
	}
	if !built {
		return nil, fmt.Errorf("%w: %s", ErrNotBuilt, owner)
	}
	return c.instances[owner], nil
}

// Owners returns the registered owners in registration order.
func (c *Container) Owners() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.order...)
}
