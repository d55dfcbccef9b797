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
	"fmt"
	"math"
)

// EvaluatePath rolls out and scores a single path.
//
// # Description
//
// Builds one model from factory, calls Step(norms) exactly pathLength times
// with the same norms value, then applies value to the final state. With
// pathLength 0 the fresh model is scored directly.
//
// # Inputs
//
//   - path: Index of this path, used only to tag errors.
//   - factory: Source of the fresh model instance. Must not be nil.
//   - norms: Norms threaded through every step. Not modified.
//   - value: Scores the final state. Must not be nil.
//   - pathLength: Number of steps. Must be >= 0.
//
// # Outputs
//
//   - float64: The path's score.
//   - error: *InvalidParameterError for a negative pathLength, otherwise a
//     *PathEvaluationError tagged with path. Panics raised by the model or
//     the value function are recovered into a PathEvaluationError.
//
// # Assumptions
//
//   - Side effects are confined to the model instance built here.
func EvaluatePath(path int, factory Factory, norms Norms, value ValueFunc, pathLength int) (score float64, err error) {
	if pathLength < 0 {
		return 0, &InvalidParameterError{Name: "path_length", Value: pathLength, Reason: "must not be negative"}
	}
	if factory == nil {
		return 0, ErrNilFactory
	}
	if value == nil {
		return 0, ErrNilValue
	}

	stage, step := StageConstruct, 0
	defer func() {
		if r := recover(); r != nil {
			score = 0
			err = &PathEvaluationError{Path: path, Stage: stage, Step: step, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	mdl, err := factory.NewModel(path)
	if err != nil {
		return 0, &PathEvaluationError{Path: path, Stage: StageConstruct, Err: err}
	}
	if mdl == nil {
		return 0, &PathEvaluationError{Path: path, Stage: StageConstruct, Err: ErrNilModel}
	}

	stage = StageStep
	for step = 0; step < pathLength; step++ {
		if stepErr := mdl.Step(norms); stepErr != nil {
			return 0, &PathEvaluationError{Path: path, Stage: StageStep, Step: step, Err: stepErr}
		}
	}

	stage = StageValue
	v, err := value.Evaluate(mdl)
	if err != nil {
		return 0, &PathEvaluationError{Path: path, Stage: StageValue, Err: err}
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, &PathEvaluationError{Path: path, Stage: StageValue, Err: fmt.Errorf("%w: %v", ErrNonFiniteValue, v)}
	}
	return v, nil
}
