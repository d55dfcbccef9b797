// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Level Tests
// =============================================================================

func TestLevel_String(t *testing.T) {
	tests := []struct {
		level Level
		want  string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{Level(42), "UNKNOWN"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.level.String())
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"", LevelInfo, false},
		{" warning ", LevelWarn, false},
		{"error", LevelError, false},
		{"verbose", LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLevel_toSlogLevel_UnknownDefaultsToInfo(t *testing.T) {
	assert.Equal(t, slog.LevelInfo, Level(-3).toSlogLevel())
	assert.Equal(t, slog.LevelDebug, LevelDebug.toSlogLevel())
}

// =============================================================================
// File Logging Tests
// =============================================================================

func TestNew_WritesJSONFile(t *testing.T) {
	dir := t.TempDir()
	logger := New(Config{Level: LevelDebug, LogDir: dir, Service: "test-svc", Quiet: true})

	logger.Info("alignment computed", "algn", 5.0)
	require.NoError(t, logger.Close())

	files, err := filepath.Glob(filepath.Join(dir, "test-svc_*.log"))
	require.NoError(t, err)
	require.Len(t, files, 1)

	data, err := os.ReadFile(files[0])
	require.NoError(t, err)

	var record map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(data), &record))
	assert.Equal(t, "alignment computed", record["msg"])
	assert.Equal(t, "test-svc", record["service"])
	assert.Equal(t, 5.0, record["algn"])
}

func TestNew_LevelFiltersFileOutput(t *testing.T) {
	dir := t.TempDir()
	logger := New(Config{Level: LevelWarn, LogDir: dir, Quiet: true})

	logger.Debug("hidden")
	logger.Info("hidden")
	logger.Warn("shown")
	require.NoError(t, logger.Close())

	files, _ := filepath.Glob(filepath.Join(dir, "valalign_*.log"))
	require.Len(t, files, 1)
	data, err := os.ReadFile(files[0])
	require.NoError(t, err)

	assert.NotContains(t, string(data), "hidden")
	assert.Contains(t, string(data), "shown")
}

func TestLogger_CloseIsIdempotent(t *testing.T) {
	logger := New(Config{LogDir: t.TempDir(), Quiet: true})
	require.NoError(t, logger.Close())
	require.NoError(t, logger.Close())
}

func TestLogger_WithAddsAttributes(t *testing.T) {
	dir := t.TempDir()
	root := New(Config{LogDir: dir, Quiet: true})
	root.With("request_id", "req-1").Info("patched")
	require.NoError(t, root.Close())

	files, _ := filepath.Glob(filepath.Join(dir, "*.log"))
	require.Len(t, files, 1)
	data, _ := os.ReadFile(files[0])
	assert.True(t, strings.Contains(string(data), `"request_id":"req-1"`))
}

func TestLogger_ClosingChildKeepsFileOpen(t *testing.T) {
	dir := t.TempDir()
	root := New(Config{LogDir: dir, Quiet: true})
	child := root.With("request_id", "req-2")

	require.NoError(t, child.Close())
	child.Info("after child close")
	root.Info("root still writing")
	require.NoError(t, root.Close())
	require.NoError(t, child.Close())

	files, _ := filepath.Glob(filepath.Join(dir, "*.log"))
	require.Len(t, files, 1)
	data, err := os.ReadFile(files[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), "after child close")
	assert.Contains(t, string(data), "root still writing")
}

// =============================================================================
// multiHandler Tests
// =============================================================================

func TestMultiHandler_FansOut(t *testing.T) {
	var a, b bytes.Buffer
	h := &multiHandler{handlers: []slog.Handler{
		slog.NewTextHandler(&a, nil),
		slog.NewJSONHandler(&b, &slog.HandlerOptions{Level: slog.LevelError}),
	}}
	logger := slog.New(h)

	logger.Info("info only in text")
	logger.Error("error in both")

	assert.Contains(t, a.String(), "info only in text")
	assert.Contains(t, a.String(), "error in both")
	assert.NotContains(t, b.String(), "info only in text")
	assert.Contains(t, b.String(), "error in both")
	assert.True(t, h.Enabled(context.Background(), slog.LevelInfo))
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, "logs"), expandPath("~/logs"))
	assert.Equal(t, "/var/log", expandPath("/var/log"))
	assert.Equal(t, "relative", expandPath("relative"))
}
