// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package handlers implements the alignment HTTP endpoints.
//
// # Endpoints
//
//   - GET   /algn         compute the alignment for the current configuration
//   - PATCH /norms        merge field updates into existing norms
//   - PATCH /path_length  replace the path length (raw integer body)
//   - PATCH /path_sample  replace the path sample size (raw integer body)
//   - GET   /config       current configuration snapshot
//   - GET   /health       liveness
//
// Every failure is answered with an ErrorResponse body. Handlers never
// return a partial alignment.
package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/AleutianAI/valalign/pkg/sampling"
	"github.com/AleutianAI/valalign/services/alignment/datatypes"
	"github.com/AleutianAI/valalign/services/alignment/middleware"
	"github.com/AleutianAI/valalign/services/alignment/observability"
	"github.com/AleutianAI/valalign/services/alignment/session"
)

var handlerTracer = otel.Tracer("valalign.alignment.handlers")

// AlignmentSession is the session surface the handlers need.
//
// *session.Session satisfies it.
type AlignmentSession interface {
	ComputeAlignment(ctx context.Context) (session.Result, error)
	Snapshot() session.Snapshot
	Version() uint64
	PatchNorms(updates map[string]sampling.Norm) error
	PatchPathLength(n int) error
	PatchPathSample(n int) error
}

// HandleGetAlignment serves GET /algn.
//
// # Description
//
// Runs one alignment computation against a snapshot of the session and
// answers {"algn": <float>}. Any failure is answered with 400 and an
// ErrorResponse; when a specific path failed, its index is included.
//
// # Inputs
//
//   - s: The session. Must not be nil.
//   - m: Metrics sink. May be nil.
func HandleGetAlignment(s AlignmentSession, m *observability.AlignmentMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := handlerTracer.Start(c.Request.Context(), "HandleGetAlignment")
		defer span.End()

		m.ComputationStarted()
		res, err := s.ComputeAlignment(ctx)
		m.ComputationFinished(res.Duration, res.Alignment, err)

		span.SetAttributes(
			attribute.Int64("session.version", int64(res.Snapshot.Version)),
			attribute.Int("path_length", res.Snapshot.PathLength),
			attribute.Int("path_sample", res.Snapshot.PathSample),
		)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "alignment failed")
			slog.Warn("Alignment computation failed",
				"request_id", middleware.GetRequestID(c),
				"version", res.Snapshot.Version,
				"error", err)
			respondError(c, err)
			return
		}

		slog.Info("Alignment computed",
			"request_id", middleware.GetRequestID(c),
			"algn", res.Alignment,
			"version", res.Snapshot.Version,
			"path_length", res.Snapshot.PathLength,
			"path_sample", res.Snapshot.PathSample,
			"duration_ms", res.Duration.Milliseconds())
		c.JSON(http.StatusOK, datatypes.AlignmentResponse{Algn: res.Alignment})
	}
}

// HandleGetConfig serves GET /config with the current snapshot.
func HandleGetConfig(s AlignmentSession) gin.HandlerFunc {
	return func(c *gin.Context) {
		snap := s.Snapshot()
		resp := datatypes.ConfigResponse{
			Norms:      snap.Norms,
			PathLength: snap.PathLength,
			PathSample: snap.PathSample,
			Version:    snap.Version,
		}
		if err := resp.Validate(); err != nil {
			slog.Error("Session snapshot violates invariants", "error", err)
			c.JSON(http.StatusInternalServerError, datatypes.ErrorResponse{Error: "inconsistent session state"})
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

// HealthCheck serves GET /health.
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
