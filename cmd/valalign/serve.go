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
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/valalign/services/alignment"
)

func (c *cli) newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the alignment HTTP service",
		Long: `Serve GET /algn, GET /config and the PATCH endpoints for norms, path_length
and path_sample. The service shuts down gracefully on SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer logger.Close()
			slog.SetDefault(logger.Slog())

			svc, err := alignment.New(cfg, &alignment.Options{Logger: logger.Slog()})
			if err != nil {
				return fmt.Errorf("failed to create alignment service: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return svc.Run(ctx)
		},
	}

	f := cmd.Flags()
	f.Int("port", 0, "HTTP port (default 12230)")
	f.String("trace-exporter", "", "trace exporter: otlp, stdout or none")
	f.String("otel-endpoint", "", "OTLP gRPC collector address")
	c.bind(keyPort, f.Lookup("port"))
	c.bind(keyTraceExporter, f.Lookup("trace-exporter"))
	c.bind(keyOTelEndpoint, f.Lookup("otel-endpoint"))
	return cmd
}

