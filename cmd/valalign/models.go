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

	"github.com/spf13/cobra"

	"github.com/AleutianAI/valalign/services/alignment/models"
)

func (c *cli) newModelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the registered models and value functions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg := models.Default()
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Models:")
			for _, name := range reg.Models() {
				fmt.Fprintf(out, "  %s\n", name)
			}
			fmt.Fprintln(out, "Values:")
			for _, name := range reg.Values() {
				fmt.Fprintf(out, "  %s\n", name)
			}
			return nil
		},
	}
}
