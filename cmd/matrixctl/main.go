// Copyright (C) 2025 Every Labs (eng@everylabs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// matrixctl is the operator CLI for the assignment-matrix service: run
// optimization proposals against an exported event log and size
// experiments before launching them.
package main

import (
	"log"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "matrixctl",
	Short: "Operator tooling for the adaptive assignment matrix",
	Long: `matrixctl works on local JSON exports, no running service needed.

Examples:
  matrixctl optimize --events events.json --heuristic escape_minimizing
  matrixctl samplesize --baseline 0.24 --mde 0.2 --daily 500`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error executing command: %v", err)
	}
}
