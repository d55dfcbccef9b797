// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes provides the request and response bodies of the
// alignment HTTP API.
package datatypes

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/AleutianAI/valalign/pkg/sampling"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// MaxBodyBytes bounds PATCH request bodies.
	MaxBodyBytes = 1 << 20

	// MaxPatchedNorms bounds the number of norm ids in one PATCH /norms.
	MaxPatchedNorms = 1024
)

var apiValidate = validator.New()

// =============================================================================
// Errors
// =============================================================================

// ValidationError reports a malformed request body.
//
// It is produced only at the transport boundary; the session never sees
// bodies that failed to parse.
type ValidationError struct {
	// Field names the offending part of the request, e.g. "body" or a norm id.
	Field string

	// Message describes the problem.
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// =============================================================================
// Response Types
// =============================================================================

// AlignmentResponse is the body of a successful GET /algn.
type AlignmentResponse struct {
	Algn float64 `json:"algn"`
}

// ErrorResponse is the body of every failed request.
//
// Path is set when the failure came from a specific sampled path.
type ErrorResponse struct {
	Error string `json:"error"`
	Path  *int   `json:"path,omitempty"`
}

// ConfigResponse is the body of GET /config.
type ConfigResponse struct {
	Norms      sampling.Norms `json:"norms"`
	PathLength int            `json:"path_length" validate:"gt=0"`
	PathSample int            `json:"path_sample" validate:"gt=0"`
	Version    uint64         `json:"version"`
}

// Validate checks the response invariants before it is sent.
func (r *ConfigResponse) Validate() error {
	return apiValidate.Struct(r)
}

// =============================================================================
// Request Parsing
// =============================================================================

// ParseNormsPatch decodes a PATCH /norms body.
//
// # Description
//
// The body must be a JSON object whose values are themselves JSON objects:
// norm id to the fields to merge. Numbers are decoded as float64, as the
// standard JSON decoder does. Whether each id exists is not checked here.
//
// # Outputs
//
//   - map[string]sampling.Norm: The decoded patch. Empty for "{}".
//   - error: *ValidationError on malformed or wrongly shaped bodies.
func ParseNormsPatch(body []byte) (map[string]sampling.Norm, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, &ValidationError{Field: "body", Message: "empty request body"}
	}
	if trimmed[0] != '{' {
		return nil, &ValidationError{Field: "body", Message: "norms must be passed as an object"}
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return nil, &ValidationError{Field: "body", Message: fmt.Sprintf("invalid JSON: %v", err)}
	}
	if len(raw) > MaxPatchedNorms {
		return nil, &ValidationError{Field: "body", Message: fmt.Sprintf("too many norms (max %d)", MaxPatchedNorms)}
	}

	updates := make(map[string]sampling.Norm, len(raw))
	for id, msg := range raw {
		value := bytes.TrimSpace(msg)
		if len(value) == 0 || value[0] != '{' {
			return nil, &ValidationError{Field: id, Message: "norm update must be an object"}
		}
		var fields sampling.Norm
		if err := json.Unmarshal(value, &fields); err != nil {
			return nil, &ValidationError{Field: id, Message: fmt.Sprintf("invalid norm update: %v", err)}
		}
		updates[id] = fields
	}
	return updates, nil
}

// ParseIntBody decodes a raw integer body such as "25" or " 25\n".
//
// Surrounding whitespace is ignored; a leading sign is accepted. The sign
// of the result is not checked here.
func ParseIntBody(field string, body []byte) (int, error) {
	text := strings.TrimSpace(string(body))
	if text == "" {
		return 0, &ValidationError{Field: field, Message: "empty request body"}
	}
	n, err := strconv.Atoi(text)
	if err != nil {
		return 0, &ValidationError{Field: field, Message: fmt.Sprintf("%q is not an integer", text)}
	}
	return n, nil
}
