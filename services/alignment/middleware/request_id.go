// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package middleware provides HTTP middleware for the alignment service.
//
// # Request Flow
//
//	Request
//	   │
//	   ▼
//	RequestID      ─► reuse or mint X-Request-ID, store in context
//	   │
//	   ▼
//	RequestLogger  ─► one slog record per request
//	   │
//	   ▼
//	Handler        (retrieves the ID via GetRequestID)
package middleware

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// =============================================================================
// Constants
// =============================================================================

// RequestIDHeader is the header carrying the request correlation ID.
const RequestIDHeader = "X-Request-ID"

// requestIDKey is the Gin context key for the request ID.
const requestIDKey = "valalign_request_id"

// maxRequestIDLength bounds client-supplied IDs.
const maxRequestIDLength = 128

// =============================================================================
// Context Helpers
// =============================================================================

// GetRequestID returns the request ID stored by RequestID, or "" when the
// middleware did not run.
func GetRequestID(c *gin.Context) string {
	if c == nil {
		return ""
	}
	return c.GetString(requestIDKey)
}

// =============================================================================
// Middleware
// =============================================================================

// RequestID tags every request with a correlation ID.
//
// # Description
//
// Reuses the client's X-Request-ID when present and at most 128 bytes,
// otherwise generates a UUID v4. The ID is stored in the Gin context and
// echoed in the response header.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" || len(id) > maxRequestIDLength {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// RequestLogger logs one structured record per completed request.
//
// Server errors log at error level, client errors at warn, everything else
// at info.
func RequestLogger(logger *slog.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		level := slog.LevelInfo
		switch {
		case status >= 500:
			level = slog.LevelError
		case status >= 400:
			level = slog.LevelWarn
		}
		logger.LogAttrs(c.Request.Context(), level, "HTTP request",
			slog.String("request_id", GetRequestID(c)),
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			slog.Int("status", status),
			slog.Duration("latency", time.Since(start)),
			slog.String("client_ip", c.ClientIP()),
		)
	}
}
