// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package sampling estimates the alignment of a normative system by Monte
// Carlo sampling.
//
// # Description
//
// A path is one independent rollout: a fresh Model is built, stepped
// pathLength times under the same Norms, and scored by a ValueFunc. The
// alignment is the arithmetic mean of pathSample such scores.
//
//	algn, err := sampling.Alignment(ctx, factory, norms, value, 10, 500)
//
// # Thread Safety
//
// Alignment runs paths on a bounded pool of goroutines. Each path owns its
// model instance and its own copy of the norms, so Model implementations
// need no locking. Factory and ValueFunc implementations are called from
// several goroutines at once and must be safe for concurrent use.
package sampling

// =============================================================================
// Capability Contracts
// =============================================================================

// Model is an evolving system governed by norms.
//
// Step advances the model by one step. It may mutate the receiver freely
// but must treat norms as read-only.
type Model interface {
	Step(norms Norms) error
}

// Factory builds fresh, independent Model instances, one per path.
//
// path is the index of the path the instance will run, in [0, pathSample).
// Stochastic models should derive their random stream from it so that a
// computation is reproducible regardless of scheduling or how many
// computations the factory has served before.
//
// Implementations must never hand out the same instance twice. Factories
// that close over unshareable state (open files, shared RNG without
// locking) are a configuration error.
type Factory interface {
	NewModel(path int) (Model, error)
}

// FactoryFunc adapts a plain function to the Factory interface.
type FactoryFunc func(path int) (Model, error)

// NewModel calls f.
func (f FactoryFunc) NewModel(path int) (Model, error) {
	return f(path)
}

// ValueFunc scores the final state of a path.
//
// Evaluate must be a pure function of the model state. It is called
// concurrently from every worker.
type ValueFunc interface {
	Evaluate(m Model) (float64, error)
}

// ValueFuncOf adapts a plain function to the ValueFunc interface.
type ValueFuncOf func(m Model) (float64, error)

// Evaluate calls f.
func (f ValueFuncOf) Evaluate(m Model) (float64, error) {
	return f(m)
}
