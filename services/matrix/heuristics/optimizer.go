// Copyright (C) 2025 Every Labs (eng@everylabs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package heuristics

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/everylabs/matrixd/pkg/logging"
	"github.com/everylabs/matrixd/services/matrix/datatypes"
	"github.com/everylabs/matrixd/services/matrix/store"
)

// StabilityMargin is the weighted-score improvement a challenger must show
// over the incumbent before a cell switches applications. Differences below
// it are treated as noise so the matrix does not thrash.
const StabilityMargin = 0.1

// AppMetrics holds the smoothed rates for one application in one cell.
type AppMetrics struct {
	ConversionRate float64
	RetentionRate  float64
	EscapeRate     float64
	SampleSize     int
}

// Optimizer proposes revised matrix configs from historical events. It
// reads the incumbent config from the store but never writes back; applying
// a proposal is a separate, reviewed step.
type Optimizer struct {
	store  *store.Store
	logger *logging.Logger
	clock  store.Clock
}

// NewOptimizer creates an Optimizer. A nil logger uses the package default;
// a nil clock uses system time.
func NewOptimizer(s *store.Store, logger *logging.Logger, clock store.Clock) *Optimizer {
	if logger == nil {
		logger = logging.Default()
	}
	if clock == nil {
		clock = store.SystemClock{}
	}
	return &Optimizer{store: s, logger: logger, clock: clock}
}

// ComputeOptimizedMatrix proposes a new config from the event stream under
// the given heuristic. Missing or insufficient data degrades to keeping the
// incumbent cell; the only failure is an unknown heuristic name.
//
// The proposal carries source "computed", a patch-incremented version, and
// a fresh proposal ID. Secondary preferences and feature overrides pass
// through unchanged.
func (o *Optimizer) ComputeOptimizedMatrix(events []datatypes.Event, heuristicType datatypes.HeuristicType) (*datatypes.MatrixConfig, error) {
	config, ok := datatypes.HeuristicConfigs[heuristicType]
	if !ok {
		return nil, fmt.Errorf("unknown heuristic %q", heuristicType)
	}

	current := o.store.GetSync()
	cellData, skipped := AggregateCellData(events)
	now := datatypes.Timestamp(o.clock.Now())

	optimized := make(map[datatypes.Persona]map[datatypes.Goal]datatypes.MatrixCell, len(datatypes.Personas()))
	changed := 0

	for _, persona := range datatypes.Personas() {
		row := make(map[datatypes.Goal]datatypes.MatrixCell, len(datatypes.Goals()))
		for _, goal := range datatypes.Goals() {
			key := CellKey{persona, goal}
			currentCell, _ := current.Cell(persona, goal)
			total := cellData.TotalAssignments(key)

			if total >= config.MinSampleSize {
				cell := computeOptimalCell(persona, goal, cellData[key], config, currentCell, now)
				if cell.App != currentCell.App {
					changed++
				}
				row[goal] = cell
				continue
			}

			// Keep the incumbent. Refresh the sample-size metadata when
			// there is partial data; with none at all the cell passes
			// through untouched.
			kept := currentCell
			if total > 0 {
				md := datatypes.CellMetadata{}
				if kept.Metadata != nil {
					md = *kept.Metadata
				}
				md.SampleSize = total
				md.LastUpdated = now
				kept.Metadata = &md
			}
			row[goal] = kept
		}
		optimized[persona] = row
	}

	proposal := &datatypes.MatrixConfig{
		Version:              incrementVersion(current.Version),
		CreatedAt:            now,
		UpdatedAt:            now,
		Source:               datatypes.SourceComputed,
		Heuristic:            heuristicType,
		PrimaryMatrix:        optimized,
		SecondaryPreferences: current.SecondaryPreferences,
		FeatureOverrides:     current.FeatureOverrides,
		ProposalID:           uuid.NewString(),
	}

	o.logger.Info("matrix optimization proposal computed",
		"heuristic", string(heuristicType),
		"base_version", current.Version,
		"proposed_version", proposal.Version,
		"proposal_id", proposal.ProposalID,
		"cells_changed", changed,
		"events", len(events),
		"skipped", skipped,
	)
	return proposal, nil
}

type scoredApp struct {
	app     datatypes.App
	score   float64
	metrics AppMetrics
	data    *CellAppData
}

func computeOptimalCell(
	persona datatypes.Persona,
	goal datatypes.Goal,
	appData map[datatypes.App]*CellAppData,
	config datatypes.HeuristicConfig,
	currentCell datatypes.MatrixCell,
	now string,
) datatypes.MatrixCell {
	scores := make([]scoredApp, 0, 4)
	for _, app := range datatypes.Apps() {
		data := appData[app]
		metrics := computeAppMetrics(data, config)
		scores = append(scores, scoredApp{
			app:     app,
			score:   computeScore(metrics, config.Weights),
			metrics: metrics,
			data:    data,
		})
	}

	sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })
	best := scores[0]

	totalAssignments := 0
	for _, data := range appData {
		totalAssignments += data.Assignments
	}

	// Stability rule: switch only on a clear improvement over the incumbent.
	currentScore := 0.0
	for _, s := range scores {
		if s.app == currentCell.App {
			currentScore = s.score
			break
		}
	}

	chosenApp := currentCell.App
	if best.score-currentScore > StabilityMargin {
		chosenApp = best.app
	}
	var chosen scoredApp
	for _, s := range scores {
		if s.app == chosenApp {
			chosen = s
			break
		}
	}

	return datatypes.MatrixCell{
		App:        chosenApp,
		Confidence: computeConfidence(chosen.data, totalAssignments, config),
		Reason:     assignmentReason(persona, goal, config.Type, chosen.metrics),
		Metadata: &datatypes.CellMetadata{
			ConversionRate: chosen.metrics.ConversionRate,
			RetentionRate:  chosen.metrics.RetentionRate,
			EscapeRate:     chosen.metrics.EscapeRate,
			SampleSize:     totalAssignments,
			LastUpdated:    now,
		},
	}
}

// computeAppMetrics converts raw counts to Bayesian-smoothed rates. An
// application with zero assignments gets neutral priors instead of smoothed
// zero, so never-tried applications are neither structurally favored nor
// penalized by noise.
func computeAppMetrics(data *CellAppData, config datatypes.HeuristicConfig) AppMetrics {
	if data == nil || data.Assignments == 0 {
		return AppMetrics{
			ConversionRate: 0.5,
			RetentionRate:  0.5,
			EscapeRate:     0.1,
			SampleSize:     0,
		}
	}

	k := config.SmoothingFactor
	n := float64(data.Assignments)

	return AppMetrics{
		ConversionRate: (float64(data.Conversions) + k*0.5) / (n + k),
		RetentionRate:  (float64(data.Retentions) + k*0.3) / (n + k),
		EscapeRate:     (float64(data.Escapes) + k*0.1) / (n + k),
		SampleSize:     data.Assignments,
	}
}

// computeScore applies the heuristic's weight triple. Escape rate is
// inverted: lower is better.
func computeScore(metrics AppMetrics, weights datatypes.HeuristicWeights) float64 {
	return weights.Conversion*metrics.ConversionRate +
		weights.Retention*metrics.RetentionRate +
		weights.Escape*(1-metrics.EscapeRate)
}

// computeConfidence scales with sample size: 0.3 below the minimum, then
// linearly from 0.5 to 0.9 as total assignments grow to three times the
// minimum.
func computeConfidence(data *CellAppData, totalAssignments int, config datatypes.HeuristicConfig) float64 {
	if data == nil || totalAssignments < config.MinSampleSize {
		return 0.3
	}
	sampleFactor := float64(totalAssignments) / float64(config.MinSampleSize*3)
	if sampleFactor > 1 {
		sampleFactor = 1
	}
	return 0.5 + sampleFactor*0.4
}

var heuristicLabels = map[datatypes.HeuristicType]string{
	datatypes.HeuristicEscapeMinimizing:   "lowest escape rate",
	datatypes.HeuristicConversionWeighted: "highest conversion",
	datatypes.HeuristicRetentionWeighted:  "best retention",
	datatypes.HeuristicBalanced:           "balanced score",
}

func assignmentReason(persona datatypes.Persona, goal datatypes.Goal, heuristic datatypes.HeuristicType, metrics AppMetrics) string {
	if metrics.SampleSize == 0 {
		return "Default assignment (no data yet)"
	}
	return fmt.Sprintf("%s for %s/%s (n=%d)", heuristicLabels[heuristic], persona, goal, metrics.SampleSize)
}

// incrementVersion bumps the patch component of a semantic version.
// Unparseable components count as zero so a bad incumbent version still
// yields a usable proposal version.
func incrementVersion(version string) string {
	parts := strings.Split(version, ".")
	nums := [3]int{}
	for i := 0; i < 3 && i < len(parts); i++ {
		n, err := strconv.Atoi(parts[i])
		if err == nil {
			nums[i] = n
		}
	}
	nums[2]++
	return fmt.Sprintf("%d.%d.%d", nums[0], nums[1], nums[2])
}
