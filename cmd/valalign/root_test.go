// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/valalign/services/alignment/config"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "valalign.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

// =============================================================================
// compute
// =============================================================================

func TestCompute_DefaultCounterModel(t *testing.T) {
	out, err := execute(t, "compute", "--log-level", "error", "--path-sample", "8")
	require.NoError(t, err)
	assert.JSONEq(t, `{"algn": 10}`, out)
}

func TestCompute_ReadsConfigFile(t *testing.T) {
	path := writeConfig(t, `
alignment:
  model:
    name: counter
    args: [0, 2]
  value: counter
  path_length: 3
  path_sample: 4
`)
	out, err := execute(t, "compute", "-c", path, "--log-level", "error")
	require.NoError(t, err)
	assert.JSONEq(t, `{"algn": 6}`, out)
}

func TestCompute_Precedence(t *testing.T) {
	path := writeConfig(t, `
alignment:
  model:
    name: counter
  value: counter
  path_length: 3
  path_sample: 2
`)

	t.Run("file", func(t *testing.T) {
		out, err := execute(t, "compute", "-c", path, "--log-level", "error")
		require.NoError(t, err)
		assert.JSONEq(t, `{"algn": 3}`, out)
	})

	t.Run("env over file", func(t *testing.T) {
		t.Setenv("VALALIGN_ALIGNMENT_PATH_LENGTH", "7")
		out, err := execute(t, "compute", "-c", path, "--log-level", "error")
		require.NoError(t, err)
		assert.JSONEq(t, `{"algn": 7}`, out)
	})

	t.Run("flag over env", func(t *testing.T) {
		t.Setenv("VALALIGN_ALIGNMENT_PATH_LENGTH", "7")
		out, err := execute(t, "compute", "-c", path, "--log-level", "error", "--path-length", "5")
		require.NoError(t, err)
		assert.JSONEq(t, `{"algn": 5}`, out)
	})
}

func TestCompute_RejectsNonPositiveOverride(t *testing.T) {
	_, err := execute(t, "compute", "--log-level", "error", "--path-sample", "0")
	assert.Error(t, err)
}

func TestCompute_UnknownModel(t *testing.T) {
	path := writeConfig(t, `
alignment:
  model:
    name: nope
  value: counter
`)
	_, err := execute(t, "compute", "-c", path, "--log-level", "error")
	assert.ErrorContains(t, err, "nope")
}

func TestCompute_MissingConfigFile(t *testing.T) {
	_, err := execute(t, "compute", "-c", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

// =============================================================================
// models
// =============================================================================

func TestModels_ListsBuiltins(t *testing.T) {
	out, err := execute(t, "models")
	require.NoError(t, err)
	assert.Equal(t, "Models:\n  counter\n  wealth\nValues:\n  counter\n  equality\n  mean_wealth\n", out)
}

// =============================================================================
// loadConfig
// =============================================================================

func TestLoadConfig_ServeFlagsAndEnv(t *testing.T) {
	t.Setenv("VALALIGN_SERVER_GIN_MODE", "test")
	t.Setenv("VALALIGN_SERVER_WORKERS", "3")
	t.Setenv("VALALIGN_SERVER_ENABLE_METRICS", "false")
	t.Setenv("VALALIGN_SERVER_SHUTDOWN_TIMEOUT", "750ms")

	c := newCLI()
	root := c.rootCmd()
	serve, _, err := root.Find([]string{"serve"})
	require.NoError(t, err)
	require.NoError(t, root.PersistentFlags().Parse([]string{"--log-json"}))
	require.NoError(t, serve.Flags().Parse([]string{"--port", "9001", "--trace-exporter", "stdout"}))

	cfg, err := c.loadConfig()
	require.NoError(t, err)

	assert.Equal(t, 9001, cfg.Server.Port)
	assert.Equal(t, "stdout", cfg.Server.TraceExporter)
	assert.Equal(t, "test", cfg.Server.GinMode)
	assert.Equal(t, 3, cfg.Server.Workers)
	assert.True(t, cfg.Server.Log.JSON)
	assert.False(t, cfg.Server.MetricsEnabled())
	assert.Equal(t, 750*time.Millisecond, cfg.Server.ShutdownTimeout)
	assert.Equal(t, config.DefaultPathLength, cfg.Alignment.PathLength)
}
