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
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/valalign/pkg/sampling"
	"github.com/AleutianAI/valalign/services/alignment/datatypes"
	"github.com/AleutianAI/valalign/services/alignment/models"
)

func (c *cli) newComputeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "compute",
		Short: "Run one alignment computation and print the result",
		Long: `Compute the alignment of the configured model, norms and value once and
print {"algn": <value>} to stdout. Path failures exit non-zero with the
failing path in the error.`,
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

			registry := models.Default()
			factory, err := registry.Factory(cfg.Alignment.Model)
			if err != nil {
				return err
			}
			value, err := registry.Value(cfg.Alignment.Value)
			if err != nil {
				return err
			}

			start := time.Now()
			algn, err := sampling.Alignment(cmd.Context(), factory, cfg.Alignment.Norms, value,
				cfg.Alignment.PathLength, cfg.Alignment.PathSample,
				sampling.WithWorkers(cfg.Server.Workers))
			if err != nil {
				return fmt.Errorf("compute alignment: %w", err)
			}
			logger.Debug("Alignment computed",
				"model", cfg.Alignment.Model.Name,
				"value", cfg.Alignment.Value,
				"path_length", cfg.Alignment.PathLength,
				"path_sample", cfg.Alignment.PathSample,
				"duration", time.Since(start))

			enc := json.NewEncoder(cmd.OutOrStdout())
			return enc.Encode(datatypes.AlignmentResponse{Algn: algn})
		},
	}
}
