// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package session holds the live-mutable alignment configuration.
//
// # Description
//
// A Session is a guarded state cell with three fields: the norms, the path
// length and the path sample size. Concurrent callers interact with it only
// through Snapshot (atomic copy-out) and the Patch methods (atomic
// all-or-nothing update). ComputeAlignment takes one snapshot at the start
// and never looks at the live state again, so patches that land while a
// computation is running do not affect it.
//
// # Thread Safety
//
// All methods are safe for concurrent use. Patches hold the write lock only
// for the duration of the field update; they never wait for computations.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/AleutianAI/valalign/pkg/sampling"
)

// =============================================================================
// Types
// =============================================================================

// Snapshot is a caller-owned copy of the session state.
//
// Modifying a Snapshot never affects the Session it came from.
type Snapshot struct {
	Norms      sampling.Norms
	PathLength int
	PathSample int

	// Version counts successful patches since the session was created.
	Version uint64
}

// Result is the outcome of ComputeAlignment.
type Result struct {
	// Alignment is the mean path score.
	Alignment float64

	// Snapshot is the configuration the computation ran against.
	Snapshot Snapshot

	// Duration is the wall time of the computation.
	Duration time.Duration
}

// Config is the initial configuration of a Session.
type Config struct {
	// Factory builds one model per path. Required.
	Factory sampling.Factory

	// Value scores final states. Required.
	Value sampling.ValueFunc

	// Norms is the initial normative system. Deep-copied by New.
	Norms sampling.Norms

	// PathLength is the initial number of steps per path. Must be > 0.
	PathLength int

	// PathSample is the initial number of paths. Must be > 0.
	PathSample int

	// Options are passed to every sampling.Alignment call.
	Options []sampling.Option
}

// Session is the mutable alignment configuration shared by request
// handlers.
type Session struct {
	factory sampling.Factory
	value   sampling.ValueFunc
	opts    []sampling.Option

	mu         sync.RWMutex
	norms      sampling.Norms
	pathLength int
	pathSample int
	version    uint64
}

// =============================================================================
// Constructor
// =============================================================================

// New creates a Session from its initial configuration.
//
// # Inputs
//
//   - cfg: Initial configuration. Factory and Value are required;
//     PathLength and PathSample must be positive.
//
// # Outputs
//
//   - *Session: Ready for concurrent use.
//   - error: sampling.ErrNilFactory, sampling.ErrNilValue or
//     *sampling.InvalidParameterError.
func New(cfg Config) (*Session, error) {
	if cfg.Factory == nil {
		return nil, sampling.ErrNilFactory
	}
	if cfg.Value == nil {
		return nil, sampling.ErrNilValue
	}
	if err := checkPositive("path_length", cfg.PathLength); err != nil {
		return nil, err
	}
	if err := checkPositive("path_sample", cfg.PathSample); err != nil {
		return nil, err
	}

	return &Session{
		factory:    cfg.Factory,
		value:      cfg.Value,
		opts:       append([]sampling.Option(nil), cfg.Options...),
		norms:      cfg.Norms.Clone(),
		pathLength: cfg.PathLength,
		pathSample: cfg.PathSample,
	}, nil
}

// =============================================================================
// Read Path
// =============================================================================

// Snapshot returns a consistent, independently usable copy of the state.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Snapshot{
		Norms:      s.norms.Clone(),
		PathLength: s.pathLength,
		PathSample: s.pathSample,
		Version:    s.version,
	}
}

// Version returns the number of patches applied so far without copying
// the norms.
func (s *Session) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// ComputeAlignment estimates the alignment for the current configuration.
//
// # Description
//
// Takes a single snapshot, then delegates to sampling.Alignment using only
// that snapshot. Blocks until every dispatched path has finished or one has
// failed.
//
// # Inputs
//
//   - ctx: Cancels dispatch of further paths.
//
// # Outputs
//
//   - Result: Alignment value and the snapshot it was computed from.
//   - error: *sampling.AggregationError when any path fails. The Result
//     still carries the snapshot but its Alignment is zero.
func (s *Session) ComputeAlignment(ctx context.Context) (Result, error) {
	snap := s.Snapshot()
	start := time.Now()

	algn, err := sampling.Alignment(ctx, s.factory, snap.Norms, s.value,
		snap.PathLength, snap.PathSample, s.opts...)
	res := Result{Snapshot: snap, Duration: time.Since(start)}
	if err != nil {
		slog.Debug("alignment computation failed",
			"version", snap.Version,
			"path_length", snap.PathLength,
			"path_sample", snap.PathSample,
			"error", err)
		return res, fmt.Errorf("compute alignment: %w", err)
	}

	res.Alignment = algn
	return res, nil
}

// =============================================================================
// Write Path
// =============================================================================

// PatchNorms merges field updates into existing norm definitions.
//
// # Description
//
// For each norm id in updates, the given fields are merged into the
// existing definition; fields not named are kept. Every id must already
// exist: the whole patch is rejected, with no field written, if any id is
// unknown. An empty updates map is a successful no-op.
//
// # Inputs
//
//   - updates: norm id to partial definition. Values are deep-copied.
//
// # Outputs
//
//   - error: *UnknownNormError naming the first unknown id in sorted order.
//
// # Examples
//
//	// norms: {"n1": {"threshold": 0.2, "weight": 1}}
//	err := s.PatchNorms(map[string]sampling.Norm{"n1": {"threshold": 0.5}})
//	// norms: {"n1": {"threshold": 0.5, "weight": 1}}
func (s *Session) PatchNorms(updates map[string]sampling.Norm) error {
	if len(updates) == 0 {
		return nil
	}
	ids := sampling.Norms(updates).IDs()

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range ids {
		if _, ok := s.norms[id]; !ok {
			return &UnknownNormError{ID: id}
		}
	}
	for _, id := range ids {
		target := s.norms[id]
		if target == nil {
			target = sampling.Norm{}
			s.norms[id] = target
		}
		for field, v := range updates[id].Clone() {
			target[field] = v
		}
	}
	s.version++
	return nil
}

// PatchPathLength replaces the number of steps per path.
//
// Returns *sampling.InvalidParameterError if n <= 0; the stored value is
// then unchanged.
func (s *Session) PatchPathLength(n int) error {
	if err := checkPositive("path_length", n); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.pathLength = n
	s.version++
	return nil
}

// PatchPathSample replaces the number of sampled paths.
//
// Returns *sampling.InvalidParameterError if n <= 0; the stored value is
// then unchanged.
func (s *Session) PatchPathSample(n int) error {
	if err := checkPositive("path_sample", n); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.pathSample = n
	s.version++
	return nil
}

// =============================================================================
// Errors
// =============================================================================

// UnknownNormError is returned when a patch names a norm id that does not
// exist in the session.
type UnknownNormError struct {
	ID string
}

func (e *UnknownNormError) Error() string {
	return fmt.Sprintf("unknown norm %q", e.ID)
}

// IsUnknownNorm reports whether err is or wraps an *UnknownNormError.
func IsUnknownNorm(err error) bool {
	var target *UnknownNormError
	return errors.As(err, &target)
}

func checkPositive(name string, n int) error {
	if n <= 0 {
		return &sampling.InvalidParameterError{Name: name, Value: n, Reason: "must be positive"}
	}
	return nil
}
