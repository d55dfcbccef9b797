// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command valalign serves and computes value alignment estimates.
//
// # Commands
//
//   - serve:   run the HTTP service (GET /algn, PATCH /norms, ...)
//   - compute: run one alignment computation and print {"algn": ...}
//   - models:  list the registered models and value functions
//
// # Environment Variables
//
// The scalar keys of the configuration file can be overridden with a
// VALALIGN_ variable, dots replaced by underscores. The model, value and
// norms are read from the file only.
//
//   - VALALIGN_SERVER_PORT: HTTP server port (default: 12230)
//   - VALALIGN_SERVER_WORKERS: sampling worker cap (default: GOMAXPROCS)
//   - VALALIGN_SERVER_TRACE_EXPORTER: otlp, stdout or none (default: none)
//   - VALALIGN_SERVER_OTEL_ENDPOINT: OTLP collector (default: localhost:4317)
//   - VALALIGN_SERVER_GIN_MODE: debug, release or test (default: release)
//   - VALALIGN_SERVER_ENABLE_METRICS: serve /metrics (default: true)
//   - VALALIGN_SERVER_SHUTDOWN_TIMEOUT: graceful shutdown bound (default: 5s)
//   - VALALIGN_SERVER_LOG_LEVEL, _LOG_JSON, _LOG_DIR: logging
//   - VALALIGN_ALIGNMENT_PATH_LENGTH: initial path length (default: 10)
//   - VALALIGN_ALIGNMENT_PATH_SAMPLE: initial path sample (default: 500)
//
// # Usage
//
//	# Build
//	go build -o valalign ./cmd/valalign
//
//	# Run
//	./valalign serve --config configs/valalign.yaml
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
