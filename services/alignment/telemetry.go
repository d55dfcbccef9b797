// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package alignment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// ServiceName identifies this service in traces and logs.
const ServiceName = "valalign"

// ErrUnknownExporter is returned for an unsupported trace exporter name.
var ErrUnknownExporter = errors.New("unknown trace exporter")

// tracing owns the tracer provider and whatever the exporter holds open.
type tracing struct {
	provider *sdktrace.TracerProvider
	conn     *grpc.ClientConn
}

// initTracing builds a tracer provider for exporter.
//
// # Description
//
// "otlp" exports over an insecure gRPC connection to endpoint; "stdout"
// pretty-prints spans to out; "none" returns a tracing with no provider,
// leaving the global no-op provider in place. When a provider is built it
// is also installed as the global provider together with the W3C trace
// context propagator.
//
// # Outputs
//
//   - *tracing: Never nil on success. Call shutdown on exit.
//   - error: ErrUnknownExporter or an exporter setup failure.
func initTracing(ctx context.Context, exporter, endpoint string, out io.Writer) (*tracing, error) {
	t := &tracing{}

	var spanExporter sdktrace.SpanExporter
	switch exporter {
	case "", "none":
		return t, nil

	case "otlp":
		conn, err := grpc.NewClient(endpoint,
			grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			return nil, fmt.Errorf("failed to create gRPC connection: %w", err)
		}
		t.conn = conn
		spanExporter, err = otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
		if err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("failed to create trace exporter: %w", err)
		}

	case "stdout":
		if out == nil {
			out = os.Stdout
		}
		var err error
		spanExporter, err = stdouttrace.New(stdouttrace.WithWriter(out), stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("failed to create trace exporter: %w", err)
		}

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownExporter, exporter)
	}

	res := resource.NewWithAttributes("",
		attribute.String("service.name", ServiceName),
	)
	t.provider = sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(spanExporter),
	)

	otel.SetTracerProvider(t.provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))
	return t, nil
}

// enabled reports whether spans are exported.
func (t *tracing) enabled() bool {
	return t != nil && t.provider != nil
}

// shutdown flushes pending spans and releases the exporter connection.
func (t *tracing) shutdown(ctx context.Context) error {
	if t == nil {
		return nil
	}
	var errs []error
	if t.provider != nil {
		if err := t.provider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider: %w", err))
		}
	}
	if t.conn != nil {
		if err := t.conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("gRPC connection: %w", err))
		}
	}
	return errors.Join(errs...)
}
