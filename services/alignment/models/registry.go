// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package models provides the named model and value-function registry.
//
// # Description
//
// A computation distributed over workers can only be reproduced on each
// worker if every worker builds models the same way. The registry turns a
// serializable descriptor (ModelSpec: name plus constructor arguments) into
// a sampling.Factory, and a value name into a sampling.ValueFunc. The
// descriptor is what lives in configuration files; closures never do.
//
// # Thread Safety
//
// Registry is safe for concurrent use. Factories returned by Factory are
// safe for concurrent NewModel calls.
package models

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/AleutianAI/valalign/pkg/sampling"
)

var (
	// ErrUnknownModel is returned when a ModelSpec names no registered model.
	ErrUnknownModel = errors.New("unknown model")

	// ErrUnknownValue is returned when a value name is not registered.
	ErrUnknownValue = errors.New("unknown value function")
)

// ModelSpec is the serializable description of a model factory.
type ModelSpec struct {
	Name   string         `yaml:"name" json:"name" validate:"required"`
	Args   []any          `yaml:"args,omitempty" json:"args,omitempty"`
	Kwargs map[string]any `yaml:"kwargs,omitempty" json:"kwargs,omitempty"`
}

// Constructor builds one model instance from its parameters.
type Constructor func(p Params) (sampling.Model, error)

// Registry maps model and value names to their implementations.
type Registry struct {
	mu     sync.RWMutex
	models map[string]Constructor
	values map[string]sampling.ValueFunc
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		models: make(map[string]Constructor),
		values: make(map[string]sampling.ValueFunc),
	}
}

// Default returns a registry holding the built-in models and values.
func Default() *Registry {
	r := NewRegistry()
	registerCounter(r)
	registerWealth(r)
	return r
}

// RegisterModel adds or replaces a model constructor.
func (r *Registry) RegisterModel(name string, c Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.models[name] = c
}

// RegisterValue adds or replaces a value function.
func (r *Registry) RegisterValue(name string, v sampling.ValueFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values[name] = v
}

// Factory resolves spec into a factory.
//
// # Description
//
// Builds one probe instance before returning so that bad arguments are
// reported at configuration time rather than on the first path. The probe
// is discarded. spec is deep-copied, so later changes to its Args or Kwargs
// do not reach the factory. Each NewModel call gets its own copy of the
// arguments and the path index.
//
// # Outputs
//
//   - sampling.Factory: Safe for concurrent use.
//   - error: Wraps ErrUnknownModel, or the constructor's error.
func (r *Registry) Factory(spec ModelSpec) (sampling.Factory, error) {
	r.mu.RLock()
	ctor, ok := r.models[spec.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownModel, spec.Name)
	}

	f := &specFactory{ctor: ctor, spec: spec.clone()}
	if _, err := f.NewModel(0); err != nil {
		return nil, fmt.Errorf("model %q: %w", spec.Name, err)
	}
	return f, nil
}

// Value resolves a value function by name.
func (r *Registry) Value(name string) (sampling.ValueFunc, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.values[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownValue, name)
	}
	return v, nil
}

// Models returns the registered model names, sorted.
func (r *Registry) Models() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.models))
}

// Values returns the registered value names, sorted.
func (r *Registry) Values() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.values))
}

type specFactory struct {
	ctor Constructor
	spec ModelSpec
}

func (f *specFactory) NewModel(path int) (sampling.Model, error) {
	args := f.spec.clone()
	return f.ctor(Params{
		Args:   args.Args,
		Kwargs: args.Kwargs,
		Path:   path,
	})
}

// clone deep-copies the arguments, including nested maps and slices.
func (s ModelSpec) clone() ModelSpec {
	out := ModelSpec{Name: s.Name}
	if s.Args != nil {
		out.Args = sampling.CloneValue(s.Args).([]any)
	}
	if s.Kwargs != nil {
		out.Kwargs = sampling.CloneValue(s.Kwargs).(map[string]any)
	}
	return out
}
