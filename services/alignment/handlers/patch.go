// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/codes"

	"github.com/AleutianAI/valalign/services/alignment/datatypes"
	"github.com/AleutianAI/valalign/services/alignment/middleware"
	"github.com/AleutianAI/valalign/services/alignment/observability"
)

// HandlePatchNorms serves PATCH /norms.
//
// # Description
//
// The body must be a JSON object mapping existing norm ids to the fields to
// merge into them. The patch is applied entirely or not at all.
//
// # Responses
//
//   - 200 {}: patch applied (also for an empty object).
//   - 415: Content-Type is not JSON.
//   - 400: body is not an object of objects, or names an unknown norm.
func HandlePatchNorms(s AlignmentSession, m *observability.AlignmentMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		_, span := handlerTracer.Start(c.Request.Context(), "HandlePatchNorms")
		defer span.End()

		if !isJSONContentType(c.ContentType()) {
			span.SetStatus(codes.Error, "unsupported media type")
			c.JSON(http.StatusUnsupportedMediaType, datatypes.ErrorResponse{Error: "Request must be JSON"})
			return
		}

		body, err := readBody(c)
		if err != nil {
			respondError(c, err)
			return
		}
		updates, err := datatypes.ParseNormsPatch(body)
		if err == nil {
			err = s.PatchNorms(updates)
		}
		m.RecordPatch(observability.FieldNorms, s.Version(), err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "patch rejected")
			slog.Warn("Norms patch rejected",
				"request_id", middleware.GetRequestID(c),
				"error", err)
			respondError(c, err)
			return
		}

		slog.Info("Norms patched",
			"request_id", middleware.GetRequestID(c),
			"norms", len(updates))
		c.JSON(http.StatusOK, gin.H{})
	}
}

// HandlePatchPathLength serves PATCH /path_length. The body is a raw
// integer, e.g. "25".
func HandlePatchPathLength(s AlignmentSession, m *observability.AlignmentMetrics) gin.HandlerFunc {
	return handlePatchInt(observability.FieldPathLength, s.PatchPathLength, s, m)
}

// HandlePatchPathSample serves PATCH /path_sample. The body is a raw
// integer, e.g. "100".
func HandlePatchPathSample(s AlignmentSession, m *observability.AlignmentMetrics) gin.HandlerFunc {
	return handlePatchInt(observability.FieldPathSample, s.PatchPathSample, s, m)
}

func handlePatchInt(field string, apply func(int) error, s AlignmentSession, m *observability.AlignmentMetrics) gin.HandlerFunc {
	spanName := "HandlePatch_" + field
	return func(c *gin.Context) {
		_, span := handlerTracer.Start(c.Request.Context(), spanName)
		defer span.End()

		body, err := readBody(c)
		if err != nil {
			respondError(c, err)
			return
		}
		n, err := datatypes.ParseIntBody(field, body)
		if err == nil {
			err = apply(n)
		}
		m.RecordPatch(field, s.Version(), err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "patch rejected")
			slog.Warn("Parameter patch rejected",
				"request_id", middleware.GetRequestID(c),
				"field", field,
				"error", err)
			respondError(c, err)
			return
		}

		slog.Info("Parameter patched",
			"request_id", middleware.GetRequestID(c),
			"field", field,
			"value", n)
		c.JSON(http.StatusOK, gin.H{})
	}
}

func readBody(c *gin.Context) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, datatypes.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, &datatypes.ValidationError{Field: "body", Message: "request body too large"}
		}
		return nil, &datatypes.ValidationError{Field: "body", Message: "failed to read request body"}
	}
	return body, nil
}

// isJSONContentType accepts application/json and application/*+json.
func isJSONContentType(mime string) bool {
	mime = strings.ToLower(mime)
	if mime == "application/json" {
		return true
	}
	return strings.HasPrefix(mime, "application/") && strings.HasSuffix(mime, "+json")
}
