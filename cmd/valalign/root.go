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
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/AleutianAI/valalign/pkg/logging"
	"github.com/AleutianAI/valalign/services/alignment/config"
)

const envPrefix = "VALALIGN"

// Viper keys that may override the configuration file.
const (
	keyPort          = "server.port"
	keyWorkers       = "server.workers"
	keyTraceExporter = "server.trace_exporter"
	keyOTelEndpoint  = "server.otel_endpoint"
	keyGinMode       = "server.gin_mode"
	keyMetrics       = "server.enable_metrics"
	keyShutdown      = "server.shutdown_timeout"
	keyLogLevel      = "server.log.level"
	keyLogJSON       = "server.log.json"
	keyLogDir        = "server.log.dir"
	keyPathLength    = "alignment.path_length"
	keyPathSample    = "alignment.path_sample"
)

// cli holds state shared by all subcommands of one invocation.
type cli struct {
	v          *viper.Viper
	configPath string
}

func newCLI() *cli {
	c := &cli{v: viper.New()}
	c.v.SetEnvPrefix(envPrefix)
	c.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	c.v.AutomaticEnv()
	return c
}

func newRootCmd() *cobra.Command {
	return newCLI().rootCmd()
}

func (c *cli) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "valalign",
		Short: "Estimate how well a normative system aligns with a value",
		Long: `valalign estimates the alignment of a normative system with respect to a
value by Monte Carlo sampling of model evolution paths. It runs either as an
HTTP service whose configuration can be patched live, or as a one-shot
computation.`,
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&c.configPath, "config", "c", "", "path to valalign.yaml (defaults apply when omitted)")
	pf.String("log-level", config.DefaultLogLevel, "log level: debug, info, warn, error")
	pf.Bool("log-json", false, "log as JSON")
	pf.String("log-dir", "", "also write JSON logs to this directory")
	pf.Int("workers", 0, "sampling worker cap (0 means GOMAXPROCS)")
	pf.Int("path-length", 0, "override the configured path length")
	pf.Int("path-sample", 0, "override the configured path sample size")
	c.bind(keyLogLevel, pf.Lookup("log-level"))
	c.bind(keyLogJSON, pf.Lookup("log-json"))
	c.bind(keyLogDir, pf.Lookup("log-dir"))
	c.bind(keyWorkers, pf.Lookup("workers"))
	c.bind(keyPathLength, pf.Lookup("path-length"))
	c.bind(keyPathSample, pf.Lookup("path-sample"))

	root.AddCommand(c.newServeCmd(), c.newComputeCmd(), c.newModelsCmd())
	return root
}

func (c *cli) bind(key string, flag *pflag.Flag) {
	// BindPFlag only fails for a nil flag.
	if err := c.v.BindPFlag(key, flag); err != nil {
		panic(err)
	}
}

// loadConfig reads the configuration file (if any) and applies flag and
// environment overrides on top.
//
// Precedence, highest first: changed flags, VALALIGN_* environment
// variables, the configuration file, built-in defaults. Viper reports a
// bound flag as set only when it was given on the command line.
//
// Only the scalar keys listed above are overridable. The model, value and
// initial norms come from the file alone.
func (c *cli) loadConfig() (config.Config, error) {
	cfg := config.DefaultConfig()
	if c.configPath != "" {
		var err error
		cfg, err = config.Load(c.configPath)
		if err != nil {
			return config.Config{}, err
		}
	}

	v := c.v
	if v.IsSet(keyPort) {
		cfg.Server.Port = v.GetInt(keyPort)
	}
	if v.IsSet(keyGinMode) {
		cfg.Server.GinMode = v.GetString(keyGinMode)
	}
	if v.IsSet(keyTraceExporter) {
		cfg.Server.TraceExporter = v.GetString(keyTraceExporter)
	}
	if v.IsSet(keyOTelEndpoint) {
		cfg.Server.OTelEndpoint = v.GetString(keyOTelEndpoint)
	}
	if v.IsSet(keyMetrics) {
		enabled := v.GetBool(keyMetrics)
		cfg.Server.EnableMetrics = &enabled
	}
	if v.IsSet(keyShutdown) {
		cfg.Server.ShutdownTimeout = v.GetDuration(keyShutdown)
	}
	if v.IsSet(keyWorkers) {
		cfg.Server.Workers = v.GetInt(keyWorkers)
	}
	if v.IsSet(keyLogLevel) {
		cfg.Server.Log.Level = v.GetString(keyLogLevel)
	}
	if v.IsSet(keyLogJSON) {
		cfg.Server.Log.JSON = v.GetBool(keyLogJSON)
	}
	if v.IsSet(keyLogDir) {
		cfg.Server.Log.Dir = v.GetString(keyLogDir)
	}
	if v.IsSet(keyPathLength) {
		cfg.Alignment.PathLength = v.GetInt(keyPathLength)
	}
	if v.IsSet(keyPathSample) {
		cfg.Alignment.PathSample = v.GetInt(keyPathSample)
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// newLogger builds the process logger from the server log settings.
func newLogger(cfg config.Config) (*logging.Logger, error) {
	level, err := logging.ParseLevel(cfg.Server.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	return logging.New(logging.Config{
		Level:   level,
		JSON:    cfg.Server.Log.JSON,
		LogDir:  cfg.Server.Log.Dir,
		Service: "valalign",
	}), nil
}
