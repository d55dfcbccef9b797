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
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// tracerName is the instrumentation scope for sampling spans.
const tracerName = "valalign.sampling"

// Observer receives the outcome of every evaluated path.
//
// ObservePath is called from worker goroutines and must be safe for
// concurrent use. It must not block.
type Observer interface {
	ObservePath(path int, duration time.Duration, err error)
}

type nopObserver struct{}

func (nopObserver) ObservePath(int, time.Duration, error) {}

// Option configures a single Alignment call.
type Option func(*options)

type options struct {
	workers  int
	tracer   trace.Tracer
	observer Observer
}

// WithWorkers caps the number of concurrent workers. The effective pool
// size is still min(n, pathSample). n <= 0 means runtime.GOMAXPROCS(0).
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}

// WithTracer sets the tracer used for the computation span. Default: the
// global tracer provider's "valalign.sampling" tracer.
func WithTracer(t trace.Tracer) Option {
	return func(o *options) {
		if t != nil {
			o.tracer = t
		}
	}
}

// WithObserver registers an Observer for per-path outcomes.
func WithObserver(obs Observer) Option {
	return func(o *options) {
		if obs != nil {
			o.observer = obs
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{
		tracer:   otel.Tracer(tracerName),
		observer: nopObserver{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}
