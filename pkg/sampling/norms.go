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

import "sort"

// Norm is one norm definition: a mapping of field name to value.
//
// Values are the JSON/YAML scalar types (bool, string, numbers) or nested
// []any / map[string]any built from them.
type Norm map[string]any

// Norms is the normative system: norm identifier to norm definition.
type Norms map[string]Norm

// Clone returns a deep copy of the norms. A nil receiver yields an empty,
// non-nil Norms.
func (n Norms) Clone() Norms {
	out := make(Norms, len(n))
	for id, norm := range n {
		out[id] = norm.Clone()
	}
	return out
}

// IDs returns the norm identifiers in sorted order.
func (n Norms) IDs() []string {
	ids := make([]string, 0, len(n))
	for id := range n {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Clone returns a deep copy of the norm definition.
func (n Norm) Clone() Norm {
	out := make(Norm, len(n))
	for k, v := range n {
		out[k] = CloneValue(v)
	}
	return out
}

// CloneValue deep-copies the container types produced by JSON and YAML
// decoders (maps, slices and Norm). Scalars are returned as is.
func CloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, inner := range t {
			out[k] = CloneValue(inner)
		}
		return out
	case Norm:
		return t.Clone()
	case []any:
		out := make([]any, len(t))
		for i, inner := range t {
			out[i] = CloneValue(inner)
		}
		return out
	default:
		return v
	}
}
