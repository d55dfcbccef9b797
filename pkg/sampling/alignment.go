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
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Alignment estimates the alignment of norms with respect to value.
//
// # Description
//
// Evaluates pathSample independent paths of pathLength steps on a worker
// pool of WorkerCount(workers, pathSample) goroutines and returns the mean
// score. Every path gets its own model instance and its own deep copy of
// norms. Scores are stored by path index and summed in index order, so the
// result does not depend on the worker count or on scheduling.
//
// The context is checked between path dispatches. Paths already running
// when the context is cancelled run to completion.
//
// # Inputs
//
//   - ctx: Cancels dispatch of further paths.
//   - factory: Builds one model per path. Must not be nil.
//   - norms: The normative system. Not modified.
//   - value: Scores final states. Must not be nil.
//   - pathLength: Steps per path. Must be >= 0.
//   - pathSample: Number of paths. Must be >= 1.
//   - opts: WithWorkers, WithTracer, WithObserver.
//
// # Outputs
//
//   - float64: Mean score across all paths.
//   - error: *InvalidParameterError for bad parameters; *AggregationError
//     if any path fails or the context is cancelled. No mean is returned
//     alongside an error.
//
// # Examples
//
//	algn, err := sampling.Alignment(ctx, factory, norms, value, 10, 500,
//	    sampling.WithWorkers(4))
//	var aggErr *sampling.AggregationError
//	if errors.As(err, &aggErr) {
//	    slog.Error("path failed", "path", aggErr.Path, "error", aggErr.Err)
//	}
func Alignment(
	ctx context.Context,
	factory Factory,
	norms Norms,
	value ValueFunc,
	pathLength, pathSample int,
	opts ...Option,
) (float64, error) {
	if factory == nil {
		return 0, ErrNilFactory
	}
	if value == nil {
		return 0, ErrNilValue
	}
	if pathLength < 0 {
		return 0, &InvalidParameterError{Name: "path_length", Value: pathLength, Reason: "must not be negative"}
	}
	if pathSample < 1 {
		return 0, &InvalidParameterError{Name: "path_sample", Value: pathSample, Reason: "must be positive"}
	}

	o := buildOptions(opts)
	workers := WorkerCount(o.workers, pathSample)

	ctx, span := o.tracer.Start(ctx, "sampling.Alignment", trace.WithAttributes(
		attribute.Int("path_length", pathLength),
		attribute.Int("path_sample", pathSample),
		attribute.Int("workers", workers),
	))
	defer span.End()

	results := make([]float64, pathSample)
	var completed atomic.Int64

	p := acquirePool(ctx, workers, func(path int) error {
		start := time.Now()
		score, err := EvaluatePath(path, factory, norms.Clone(), value, pathLength)
		o.observer.ObservePath(path, time.Since(start), err)
		if err != nil {
			return err
		}
		results[path] = score
		completed.Add(1)
		return nil
	})
	defer p.release()

	for path := 0; path < pathSample; path++ {
		if !p.dispatch(path) {
			break
		}
	}
	err := p.release()

	done := int(completed.Load())
	if err == nil && done != pathSample {
		err = context.Cause(ctx)
		if err == nil {
			err = ErrIncomplete
		}
	}
	if err != nil {
		aggErr := &AggregationError{Path: -1, Completed: done, Total: pathSample, Err: err}
		var pathErr *PathEvaluationError
		if errors.As(err, &pathErr) {
			aggErr.Path = pathErr.Path
		}
		span.RecordError(aggErr)
		span.SetStatus(codes.Error, "alignment aborted")
		return 0, aggErr
	}

	var sum float64
	for _, score := range results {
		sum += score
	}
	algn := sum / float64(pathSample)

	span.SetAttributes(attribute.Float64("alignment", algn))
	return algn, nil
}
