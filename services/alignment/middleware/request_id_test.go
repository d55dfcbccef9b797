// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(logger *slog.Logger) (*gin.Engine, *string) {
	var seen string
	router := gin.New()
	router.Use(RequestID(), RequestLogger(logger))
	router.GET("/ping", func(c *gin.Context) {
		seen = GetRequestID(c)
		c.Status(http.StatusOK)
	})
	router.GET("/missing", func(c *gin.Context) {
		c.Status(http.StatusBadRequest)
	})
	return router, &seen
}

func TestRequestID_GeneratesUUID(t *testing.T) {
	router, seen := newRouter(nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))

	id := w.Header().Get(RequestIDHeader)
	_, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, id, *seen)
}

func TestRequestID_ReusesClientHeader(t *testing.T) {
	router, seen := newRouter(nil)

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(RequestIDHeader, "client-abc")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, "client-abc", w.Header().Get(RequestIDHeader))
	assert.Equal(t, "client-abc", *seen)
}

func TestRequestID_ReplacesOversizedHeader(t *testing.T) {
	router, seen := newRouter(nil)

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(RequestIDHeader, strings.Repeat("x", maxRequestIDLength+1))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	_, err := uuid.Parse(*seen)
	assert.NoError(t, err)
}

func TestGetRequestID_WithoutMiddleware(t *testing.T) {
	assert.Equal(t, "", GetRequestID(nil))

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Equal(t, "", GetRequestID(c))
}

func TestRequestLogger_WritesRecord(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	router, _ := newRouter(logger)

	req := httptest.NewRequest(http.MethodGet, "/missing", nil)
	req.Header.Set(RequestIDHeader, "req-1")
	router.ServeHTTP(httptest.NewRecorder(), req)

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "HTTP request", record["msg"])
	assert.Equal(t, "WARN", record["level"])
	assert.Equal(t, "req-1", record["request_id"])
	assert.Equal(t, "/missing", record["path"])
	assert.Equal(t, float64(http.StatusBadRequest), record["status"])
}
