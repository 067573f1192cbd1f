// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package shell

import (
	"sort"
	"sync"
)

// Func is a host function callable from the shell with "call".
type Func func(args []string) (any, error)

// Context is the name-to-value mapping shared by the host and every
// shell session. It is safe for concurrent use; see the package
// documentation for what that does and does not guarantee.
type Context struct {
	mu     sync.RWMutex
	values map[string]any
}

// NewContext returns a Context holding a copy of initial. Plain
// func(args []string) (any, error) values are stored as Func.
func NewContext(initial map[string]any) *Context {
	c := &Context{values: make(map[string]any, len(initial))}
	for name, value := range initial {
		c.values[name] = normalize(value)
	}
	return c
}

// Get returns the value bound to name.
func (c *Context) Get(name string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	value, ok := c.values[name]
	return value, ok
}

// Set binds name to value, replacing any earlier binding.
func (c *Context) Set(name string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[name] = normalize(value)
}

// Delete removes name and reports whether it was bound.
func (c *Context) Delete(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.values[name]
	delete(c.values, name)
	return ok
}

// Names returns the bound names in sorted order.
func (c *Context) Names() []string {
	c.mu.RLock()
	names := make([]string, 0, len(c.values))
	for name := range c.values {
		names = append(names, name)
	}
	c.mu.RUnlock()
	sort.Strings(names)
	return names
}

// Update applies fn to the current value of name under the write lock
// and stores the result. It is the one way to read-modify-write
// without racing other sessions.
func (c *Context) Update(name string, fn func(current any, ok bool) any) any {
	c.mu.Lock()
	defer c.mu.Unlock()
	current, ok := c.values[name]
	next := normalize(fn(current, ok))
	c.values[name] = next
	return next
}

func normalize(value any) any {
	if fn, ok := value.(func([]string) (any, error)); ok {
		return Func(fn)
	}
	return value
}
