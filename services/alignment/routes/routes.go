// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AleutianAI/valalign/services/alignment/handlers"
	"github.com/AleutianAI/valalign/services/alignment/observability"
)

// Options controls optional routes.
type Options struct {
	// Metrics is passed to handlers. May be nil.
	Metrics *observability.AlignmentMetrics

	// MetricsGatherer, when non-nil, is served at GET /metrics.
	MetricsGatherer prometheus.Gatherer
}

// SetupRoutes registers the alignment API on router.
func SetupRoutes(router *gin.Engine, s handlers.AlignmentSession, opts Options) {
	router.GET("/health", handlers.HealthCheck)
	if opts.MetricsGatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.MetricsGatherer, promhttp.HandlerOpts{})))
	}

	router.GET("/algn", handlers.HandleGetAlignment(s, opts.Metrics))
	router.GET("/config", handlers.HandleGetConfig(s))
	router.PATCH("/norms", handlers.HandlePatchNorms(s, opts.Metrics))
	router.PATCH("/path_length", handlers.HandlePatchPathLength(s, opts.Metrics))
	router.PATCH("/path_sample", handlers.HandlePatchPathSample(s, opts.Metrics))

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})
}
