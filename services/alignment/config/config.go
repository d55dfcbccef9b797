// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config defines the valalign service configuration file.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/AleutianAI/valalign/pkg/sampling"
	"github.com/AleutianAI/valalign/services/alignment/models"
)

// Defaults applied by ApplyDefaults.
const (
	DefaultPort            = 12230
	DefaultGinMode         = "release"
	DefaultTraceExporter   = "none"
	DefaultOTelEndpoint    = "localhost:4317"
	DefaultShutdownTimeout = 5 * time.Second
	DefaultLogLevel        = "info"
	DefaultPathLength      = 10
	DefaultPathSample      = 500
)

var configValidate = validator.New()

// Config is the root of valalign.yaml.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Alignment AlignmentConfig `yaml:"alignment"`
}

// ServerConfig holds the HTTP and telemetry settings.
type ServerConfig struct {
	Port    int    `yaml:"port" validate:"gte=1,lte=65535"`
	GinMode string `yaml:"gin_mode" validate:"oneof=debug release test"`

	// TraceExporter selects where spans go: "otlp" (gRPC to OTelEndpoint),
	// "stdout", or "none".
	TraceExporter string `yaml:"trace_exporter" validate:"oneof=otlp stdout none"`
	OTelEndpoint  string `yaml:"otel_endpoint" validate:"required_if=TraceExporter otlp"`

	// EnableMetrics exposes GET /metrics. Nil means true.
	EnableMetrics *bool `yaml:"enable_metrics,omitempty"`

	// Workers caps the sampling pool size. 0 means GOMAXPROCS.
	Workers int `yaml:"workers" validate:"gte=0"`

	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"gte=0"`

	Log LogConfig `yaml:"log"`
}

// LogConfig configures pkg/logging.
type LogConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn warning error"`
	JSON  bool   `yaml:"json"`
	Dir   string `yaml:"dir,omitempty"`
}

// AlignmentConfig is the initial state of the alignment session.
type AlignmentConfig struct {
	Model      models.ModelSpec `yaml:"model"`
	Value      string           `yaml:"value" validate:"required"`
	Norms      sampling.Norms   `yaml:"norms"`
	PathLength int              `yaml:"path_length" validate:"gt=0"`
	PathSample int              `yaml:"path_sample" validate:"gt=0"`
}

// DefaultConfig returns a configuration that runs the counter model.
func DefaultConfig() Config {
	enabled := true
	return Config{
		Server: ServerConfig{
			Port:            DefaultPort,
			GinMode:         DefaultGinMode,
			TraceExporter:   DefaultTraceExporter,
			OTelEndpoint:    DefaultOTelEndpoint,
			EnableMetrics:   &enabled,
			ShutdownTimeout: DefaultShutdownTimeout,
			Log:             LogConfig{Level: DefaultLogLevel},
		},
		Alignment: AlignmentConfig{
			Model:      models.ModelSpec{Name: "counter"},
			Value:      "counter",
			Norms:      sampling.Norms{},
			PathLength: DefaultPathLength,
			PathSample: DefaultPathSample,
		},
	}
}

// ApplyDefaults fills zero-valued fields with their defaults.
func (c *Config) ApplyDefaults() {
	s := &c.Server
	if s.Port == 0 {
		s.Port = DefaultPort
	}
	if s.GinMode == "" {
		s.GinMode = DefaultGinMode
	}
	if s.TraceExporter == "" {
		s.TraceExporter = DefaultTraceExporter
	}
	if s.OTelEndpoint == "" {
		s.OTelEndpoint = DefaultOTelEndpoint
	}
	if s.ShutdownTimeout == 0 {
		s.ShutdownTimeout = DefaultShutdownTimeout
	}
	if s.Log.Level == "" {
		s.Log.Level = DefaultLogLevel
	}

	a := &c.Alignment
	if a.Model.Name == "" && a.Value == "" {
		a.Model = models.ModelSpec{Name: "counter"}
		a.Value = "counter"
	}
	if a.PathLength == 0 {
		a.PathLength = DefaultPathLength
	}
	if a.PathSample == 0 {
		a.PathSample = DefaultPathSample
	}
	if a.Norms == nil {
		a.Norms = sampling.Norms{}
	}
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := configValidate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// MetricsEnabled reports whether GET /metrics should be served.
func (s ServerConfig) MetricsEnabled() bool {
	return s.EnableMetrics == nil || *s.EnableMetrics
}

// Addr is the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf(":%d", s.Port)
}
