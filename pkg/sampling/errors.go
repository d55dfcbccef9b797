// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package sampling

import (
	"errors"
	"fmt"
)

// =============================================================================
// Sentinel Errors
// =============================================================================

var (
	// ErrNilFactory is returned when no model factory is supplied.
	ErrNilFactory = errors.New("model factory is nil")

	// ErrNilValue is returned when no value function is supplied.
	ErrNilValue = errors.New("value function is nil")

	// ErrNilModel is returned when a factory yields a nil model.
	ErrNilModel = errors.New("factory returned a nil model")

	// ErrNonFiniteValue is returned when a value function yields NaN or Inf.
	ErrNonFiniteValue = errors.New("value function returned a non-finite number")

	// ErrIncomplete is reported when a computation stopped before every
	// path was evaluated without a more specific cause.
	ErrIncomplete = errors.New("not every path was evaluated")
)

// =============================================================================
// Typed Errors
// =============================================================================

// InvalidParameterError reports a sampling parameter outside its domain.
type InvalidParameterError struct {
	// Name is the parameter name, e.g. "path_length".
	Name string

	// Value is the rejected value.
	Value int

	// Reason describes the constraint, e.g. "must be positive".
	Reason string
}

func (e *InvalidParameterError) Error() string {
	return fmt.Sprintf("invalid %s %d: %s", e.Name, e.Value, e.Reason)
}

// Stage identifies where a path evaluation failed.
type Stage string

const (
	// StageConstruct is the model construction stage.
	StageConstruct Stage = "construct"

	// StageStep is the rollout stage.
	StageStep Stage = "step"

	// StageValue is the valuation stage.
	StageValue Stage = "value"
)

// PathEvaluationError is a failure while evaluating one sampled path.
//
// Paths run concurrently, so the error carries the index of the failing
// path and, for step failures, the index of the failing step.
type PathEvaluationError struct {
	// Path is the zero-based index of the failing path.
	Path int

	// Stage is where the failure happened.
	Stage Stage

	// Step is the zero-based step index. Only meaningful for StageStep.
	Step int

	// Err is the underlying cause.
	Err error
}

func (e *PathEvaluationError) Error() string {
	if e.Stage == StageStep {
		return fmt.Sprintf("path %d: step %d failed: %v", e.Path, e.Step, e.Err)
	}
	return fmt.Sprintf("path %d: %s failed: %v", e.Path, e.Stage, e.Err)
}

func (e *PathEvaluationError) Unwrap() error {
	return e.Err
}

// AggregationError aborts a whole alignment computation.
//
// No partial mean accompanies an AggregationError.
type AggregationError struct {
	// Path is the index of the path that failed, or -1 when the
	// computation was stopped by context cancellation.
	Path int

	// Completed is the number of paths that finished successfully before
	// the computation was aborted.
	Completed int

	// Total is the requested sample size.
	Total int

	// Err is the cause: a *PathEvaluationError, or the context error.
	Err error
}

func (e *AggregationError) Error() string {
	return fmt.Sprintf("alignment aborted after %d/%d paths: %v", e.Completed, e.Total, e.Err)
}

func (e *AggregationError) Unwrap() error {
	return e.Err
}
