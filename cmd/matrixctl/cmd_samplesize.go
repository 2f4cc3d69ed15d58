// Copyright (C) 2025 Every Labs (eng@everylabs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/everylabs/matrixd/services/matrix/stats"
)

var (
	sampleBaseline float64 // baseline conversion rate
	sampleMDE      float64 // minimum detectable effect, relative
	samplePower    float64
	sampleAlpha    float64
	sampleDaily    float64 // daily signups across both arms
)

var samplesizeCmd = &cobra.Command{
	Use:   "samplesize",
	Short: "Compute the required sample size for a two-proportion test",
	Long: `Computes the per-variant sample needed to detect a relative lift over
a baseline conversion rate, and the days to collect it at a given signup
rate.

Examples:
  matrixctl samplesize --baseline 0.24 --mde 0.2
  matrixctl samplesize --baseline 0.24 --mde 0.2 --daily 500`,
	RunE: runSamplesizeCommand,
}

func init() {
	samplesizeCmd.Flags().Float64Var(&sampleBaseline, "baseline", 0, "baseline conversion rate in (0,1) (required)")
	samplesizeCmd.Flags().Float64Var(&sampleMDE, "mde", 0, "minimum detectable relative effect, e.g. 0.2 for +20% (required)")
	samplesizeCmd.Flags().Float64Var(&samplePower, "power", stats.DefaultPower, "statistical power")
	samplesizeCmd.Flags().Float64Var(&sampleAlpha, "alpha", stats.DefaultAlpha, "significance level")
	samplesizeCmd.Flags().Float64Var(&sampleDaily, "daily", 0, "daily signups across both arms (adds a duration estimate)")
	_ = samplesizeCmd.MarkFlagRequired("baseline")
	_ = samplesizeCmd.MarkFlagRequired("mde")
	rootCmd.AddCommand(samplesizeCmd)
}

func runSamplesizeCommand(cmd *cobra.Command, args []string) error {
	perVariant, err := stats.RequiredSampleSize(sampleBaseline, sampleMDE, samplePower, sampleAlpha)
	if err != nil {
		return err
	}

	fmt.Printf("Baseline %.1f%%, detecting %.1f%% relative lift (power %.0f%%, alpha %.2f)\n",
		sampleBaseline*100, sampleMDE*100, samplePower*100, sampleAlpha)
	fmt.Printf("Required sample: %d per variant (%d total)\n", perVariant, perVariant*2)

	if sampleDaily > 0 {
		days, err := stats.ExperimentDuration(perVariant, sampleDaily)
		if err != nil {
			return err
		}
		fmt.Printf("At %.0f signups/day: about %d days\n", sampleDaily, days)
	}
	return nil
}
