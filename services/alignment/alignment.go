// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package alignment provides the valalign HTTP service.
//
// This package wires the components of the service together: the model
// registry, the alignment session, HTTP routing, Prometheus metrics and
// OpenTelemetry tracing.
//
// # Usage
//
//	cfg, err := config.Load("valalign.yaml")
//	if err != nil {
//	    return err
//	}
//	svc, err := alignment.New(cfg, nil)
//	if err != nil {
//	    return err
//	}
//	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
//	defer stop()
//	return svc.Run(ctx)
package alignment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/valalign/pkg/sampling"
	"github.com/AleutianAI/valalign/services/alignment/config"
	"github.com/AleutianAI/valalign/services/alignment/middleware"
	"github.com/AleutianAI/valalign/services/alignment/models"
	"github.com/AleutianAI/valalign/services/alignment/observability"
	"github.com/AleutianAI/valalign/services/alignment/routes"
	"github.com/AleutianAI/valalign/services/alignment/session"
)

// =============================================================================
// Interface Definition
// =============================================================================

// Service defines the contract for the alignment service.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use. Run blocks and should
// only be called once per instance.
type Service interface {
	// Run serves HTTP until ctx is cancelled or the server fails.
	//
	// On cancellation the server stops accepting connections, waits up to
	// the configured shutdown timeout for in-flight requests, then flushes
	// the tracer. Returns nil after a clean shutdown.
	Run(ctx context.Context) error

	// Router returns the configured Gin engine, primarily for tests.
	Router() *gin.Engine

	// Session returns the live alignment session.
	Session() *session.Session
}

// =============================================================================
// Options
// =============================================================================

// Options injects dependencies. Every field is optional.
type Options struct {
	// Registry resolves the configured model and value. Default:
	// models.Default().
	Registry *models.Registry

	// Registry for Prometheus metrics. Default: a fresh registry with the
	// Go and process collectors.
	MetricsRegistry *prometheus.Registry

	// Logger for service events. Default: slog.Default().
	Logger *slog.Logger

	// Listener to serve on instead of listening on the configured port.
	Listener net.Listener

	// TraceOutput receives spans when the stdout exporter is selected.
	// Default: os.Stdout.
	TraceOutput io.Writer
}

// =============================================================================
// Implementation
// =============================================================================

type service struct {
	config  config.Config
	logger  *slog.Logger
	router  *gin.Engine
	session *session.Session
	metrics *observability.AlignmentMetrics
	tracing *tracing

	listener net.Listener
}

// New creates the alignment service.
//
// # Description
//
// New initializes all components:
//  1. Applies defaults and validates cfg
//  2. Resolves the model factory and value function from the registry
//  3. Initializes tracing for the configured exporter
//  4. Initializes Prometheus metrics when enabled
//  5. Creates the session from the initial alignment configuration
//  6. Sets up the router with middleware and routes
//
// # Inputs
//
//   - cfg: Service configuration. Zero values take config defaults.
//   - opts: Dependency overrides. May be nil.
//
// # Outputs
//
//   - Service: Ready to Run.
//   - error: Invalid configuration, unknown model or value, or tracer
//     setup failure.
func New(cfg config.Config, opts *Options) (Service, error) {
	if opts == nil {
		opts = &Options{}
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &service{
		config:   cfg,
		logger:   opts.Logger,
		listener: opts.Listener,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	registry := opts.Registry
	if registry == nil {
		registry = models.Default()
	}
	factory, err := registry.Factory(cfg.Alignment.Model)
	if err != nil {
		return nil, fmt.Errorf("failed to build model factory: %w", err)
	}
	value, err := registry.Value(cfg.Alignment.Value)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve value function: %w", err)
	}

	s.tracing, err = initTracing(context.Background(), cfg.Server.TraceExporter, cfg.Server.OTelEndpoint, opts.TraceOutput)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}

	var reg *prometheus.Registry
	if cfg.Server.MetricsEnabled() {
		reg = opts.MetricsRegistry
		if reg == nil {
			reg = prometheus.NewRegistry()
			reg.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)
		}
		s.metrics = observability.NewAlignmentMetrics(reg)
	}

	sampleOpts := []sampling.Option{
		sampling.WithWorkers(cfg.Server.Workers),
		sampling.WithObserver(s.metrics),
	}
	if s.tracing.enabled() {
		sampleOpts = append(sampleOpts, sampling.WithTracer(s.tracing.provider.Tracer("valalign.sampling")))
	}

	s.session, err = session.New(session.Config{
		Factory:    factory,
		Value:      value,
		Norms:      cfg.Alignment.Norms,
		PathLength: cfg.Alignment.PathLength,
		PathSample: cfg.Alignment.PathSample,
		Options:    sampleOpts,
	})
	if err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	s.initRouter(reg)

	s.logger.Info("Alignment service initialized",
		"model", cfg.Alignment.Model.Name,
		"value", cfg.Alignment.Value,
		"norms", len(cfg.Alignment.Norms),
		"path_length", cfg.Alignment.PathLength,
		"path_sample", cfg.Alignment.PathSample,
		"workers", sampling.WorkerCount(cfg.Server.Workers, cfg.Alignment.PathSample),
		"trace_exporter", cfg.Server.TraceExporter,
		"metrics", cfg.Server.MetricsEnabled())
	return s, nil
}

// =============================================================================
// Service Interface Methods
// =============================================================================

func (s *service) Run(ctx context.Context) error {
	defer s.cleanup()

	srv := &http.Server{
		Addr:              s.config.Server.Addr(),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if s.listener != nil {
			s.logger.Info("Starting alignment server", "addr", s.listener.Addr().String())
			err = srv.Serve(s.listener)
		} else {
			s.logger.Info("Starting alignment server", "addr", srv.Addr)
			err = srv.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
		defer cancel()
		s.logger.Info("Shutting down alignment server")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	})
	return g.Wait()
}

func (s *service) Router() *gin.Engine {
	return s.router
}

func (s *service) Session() *session.Session {
	return s.session
}

// =============================================================================
// Private Initialization Methods
// =============================================================================

func (s *service) initRouter(reg *prometheus.Registry) {
	gin.SetMode(s.config.Server.GinMode)

	s.router = gin.New()
	s.router.Use(gin.Recovery())
	if s.tracing.enabled() {
		s.router.Use(otelgin.Middleware(ServiceName, otelgin.WithTracerProvider(s.tracing.provider)))
	}
	s.router.Use(middleware.RequestID(), middleware.RequestLogger(s.logger))

	opts := routes.Options{Metrics: s.metrics}
	if reg != nil {
		opts.MetricsGatherer = reg
	}
	routes.SetupRoutes(s.router, s.session, opts)
}

// cleanup flushes the tracer. Called when Run exits or on initialization
// failure.
func (s *service) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), config.DefaultShutdownTimeout)
	defer cancel()
	if err := s.tracing.shutdown(ctx); err != nil {
		s.logger.Error("failed to shutdown tracer", "error", err)
	}
}
