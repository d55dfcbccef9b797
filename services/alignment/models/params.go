// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package models

import (
	"fmt"
	"math"

	"github.com/AleutianAI/valalign/pkg/sampling"
)

// Params are the constructor arguments for one model instance.
type Params struct {
	// Args are positional arguments from the ModelSpec.
	Args []any

	// Kwargs are keyword arguments from the ModelSpec.
	Kwargs map[string]any

	// Path is the index of the path the instance will run. Constructors
	// derive per-path seeds from it.
	Path int
}

// Int returns the integer argument named key, falling back to position pos
// (when pos >= 0), then to def. Whole floats are accepted since JSON and
// YAML decoders may produce them.
func (p Params) Int(key string, pos int, def int) (int, error) {
	raw, ok := p.lookup(key, pos)
	if !ok {
		return def, nil
	}
	switch v := raw.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case uint64:
		return int(v), nil
	case float64:
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("argument %q: %v is not an integer", key, v)
		}
		return int(v), nil
	default:
		return 0, fmt.Errorf("argument %q: expected integer, got %T", key, raw)
	}
}

// Float returns the numeric argument named key, falling back to position
// pos (when pos >= 0), then to def.
func (p Params) Float(key string, pos int, def float64) (float64, error) {
	raw, ok := p.lookup(key, pos)
	if !ok {
		return def, nil
	}
	return toFloat(key, raw)
}

// Seed returns the "seed" keyword argument and whether it was set.
func (p Params) Seed() (uint64, bool, error) {
	if _, ok := p.Kwargs["seed"]; !ok {
		return 0, false, nil
	}
	n, err := p.Int("seed", -1, 0)
	if err != nil {
		return 0, false, err
	}
	return uint64(n), true, nil
}

func (p Params) lookup(key string, pos int) (any, bool) {
	if v, ok := p.Kwargs[key]; ok {
		return v, true
	}
	if pos >= 0 && pos < len(p.Args) {
		return p.Args[pos], true
	}
	return nil, false
}

// normFloat reads a numeric field of a norm. A missing norm or field yields
// def.
func normFloat(norms sampling.Norms, id, field string, def float64) (float64, error) {
	raw, ok := norms[id][field]
	if !ok {
		return def, nil
	}
	return toFloat(id+"."+field, raw)
}

func toFloat(name string, raw any) (float64, error) {
	switch v := raw.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("%s: expected number, got %T", name, raw)
	}
}
