// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package tck

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// Deps are the collaborators handed to a test at construction.
type Deps struct {
	Logger    *slog.Logger
	Reporter  Reporter
	Decoder   PayloadDecoder
	Namespace string
	Recorder  Recorder
}

// Factory builds a test from its string parameters.
type Factory func(params []string, deps Deps) (Test, error)

// Registry maps test names to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory under name, replacing any previous one.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

// New builds the test registered under name.
func (r *Registry) New(name string, params []string, deps Deps) (Test, error) {
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTest, name)
	}
	return f(params, deps)
}

// Names returns the registered test names in lexical order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
