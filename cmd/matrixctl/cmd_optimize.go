// Copyright (C) 2025 Every Labs (eng@everylabs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/everylabs/matrixd/pkg/logging"
	"github.com/everylabs/matrixd/services/matrix/datatypes"
	"github.com/everylabs/matrixd/services/matrix/heuristics"
	"github.com/everylabs/matrixd/services/matrix/store"
	"github.com/everylabs/matrixd/services/matrix/validation"
)

var (
	optimizeEventsPath string // JSON array of analytics events
	optimizeConfigPath string // optional current config; packaged default otherwise
	optimizeHeuristic  string // weighting policy name
	optimizeJSONOutput bool   // emit the full proposal as JSON
)

var optimizeCmd = &cobra.Command{
	Use:   "optimize",
	Short: "Propose an optimized matrix from an exported event log",
	Long: `Aggregates an exported event log under a weighting policy and prints
the proposed cell changes with a summary. Nothing is committed: pipe the
--json proposal to POST /v1/matrix/optimize/apply to adopt it.

Examples:
  matrixctl optimize --events events.json
  matrixctl optimize --events events.json --heuristic conversion_weighted
  matrixctl optimize --events events.json --config current.json --json`,
	RunE: runOptimizeCommand,
}

func init() {
	optimizeCmd.Flags().StringVar(&optimizeEventsPath, "events", "", "path to a JSON array of events (required)")
	optimizeCmd.Flags().StringVar(&optimizeConfigPath, "config", "", "path to the current config JSON (default: packaged matrix)")
	optimizeCmd.Flags().StringVar(&optimizeHeuristic, "heuristic", string(datatypes.HeuristicEscapeMinimizing), "weighting policy: escape_minimizing, conversion_weighted, retention_weighted, balanced")
	optimizeCmd.Flags().BoolVar(&optimizeJSONOutput, "json", false, "print the full proposal as JSON")
	_ = optimizeCmd.MarkFlagRequired("events")
	rootCmd.AddCommand(optimizeCmd)
}

func runOptimizeCommand(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(optimizeEventsPath)
	if err != nil {
		return fmt.Errorf("read events file: %w", err)
	}
	var events []datatypes.Event
	if err := json.Unmarshal(data, &events); err != nil {
		return fmt.Errorf("parse events file: %w", err)
	}

	logger := logging.New(logging.Config{Level: logging.LevelWarn, Service: "matrixctl"})
	matrixStore := store.New(store.WithLogger(logger))

	if optimizeConfigPath != "" {
		raw, err := os.ReadFile(optimizeConfigPath)
		if err != nil {
			return fmt.Errorf("read config file: %w", err)
		}
		cfg, err := validation.ValidateConfig(raw)
		if err != nil {
			return fmt.Errorf("validate config file: %w", err)
		}
		matrixStore.Set(cfg)
	}

	current := matrixStore.GetSync()
	opt := heuristics.NewOptimizer(matrixStore, logger, nil)
	proposal, err := opt.ComputeOptimizedMatrix(events, datatypes.HeuristicType(optimizeHeuristic))
	if err != nil {
		return err
	}

	if optimizeJSONOutput {
		out, err := json.MarshalIndent(proposal, "", "  ")
		if err != nil {
			return fmt.Errorf("encode proposal: %w", err)
		}
		fmt.Println(string(out))
		return nil
	}

	diffs := heuristics.CompareMatrices(current, proposal)
	summary := heuristics.Summarize(proposal)

	fmt.Printf("Proposal %s (%s -> %s, heuristic %s)\n",
		proposal.ProposalID, current.Version, proposal.Version, optimizeHeuristic)
	if len(diffs) == 0 {
		fmt.Println("No cell changes proposed.")
	}
	for _, d := range diffs {
		fmt.Printf("  %s/%s: %s -> %s (confidence %.2f -> %.2f) %s\n",
			d.Persona, d.Goal, d.CurrentApp, d.ProposedApp,
			d.CurrentConfidence, d.ProposedConfidence, d.Reason)
	}
	fmt.Printf("Summary: %d/%d cells with data, avg confidence %.2f, avg escape rate %.3f\n",
		summary.CellsWithData, summary.TotalCells, summary.AvgConfidence, summary.AvgEscapeRate)
	return nil
}
