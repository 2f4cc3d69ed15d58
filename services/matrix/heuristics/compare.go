// Copyright (C) 2025 Every Labs (eng@everylabs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package heuristics

import (
	"github.com/everylabs/matrixd/services/matrix/datatypes"
)

// MatrixDiff describes one cell whose application differs between the
// current config and a proposal. Used for human review before applying.
type MatrixDiff struct {
	Persona            datatypes.Persona `json:"persona"`
	Goal               datatypes.Goal    `json:"goal"`
	CurrentApp         datatypes.App     `json:"currentApp"`
	ProposedApp        datatypes.App     `json:"proposedApp"`
	CurrentConfidence  float64           `json:"currentConfidence"`
	ProposedConfidence float64           `json:"proposedConfidence"`
	Reason             string            `json:"reason"`
}

// CompareMatrices lists the cells where the proposed config routes to a
// different application than the current one, in canonical matrix order.
// Identical configs yield an empty list.
func CompareMatrices(current, proposed *datatypes.MatrixConfig) []MatrixDiff {
	diffs := []MatrixDiff{}
	for _, persona := range datatypes.Personas() {
		for _, goal := range datatypes.Goals() {
			currentCell, _ := current.Cell(persona, goal)
			proposedCell, _ := proposed.Cell(persona, goal)
			if currentCell.App == proposedCell.App {
				continue
			}
			diffs = append(diffs, MatrixDiff{
				Persona:            persona,
				Goal:               goal,
				CurrentApp:         currentCell.App,
				ProposedApp:        proposedCell.App,
				CurrentConfidence:  currentCell.Confidence,
				ProposedConfidence: proposedCell.Confidence,
				Reason:             proposedCell.Reason,
			})
		}
	}
	return diffs
}

// MatrixSummary is an aggregate health snapshot of one config.
type MatrixSummary struct {
	TotalCells    int     `json:"totalCells"`
	CellsWithData int     `json:"cellsWithData"`
	AvgConfidence float64 `json:"avgConfidence"`
	AvgEscapeRate float64 `json:"avgEscapeRate"`
}

// Summarize computes the health snapshot for a config. A fresh default
// config, carrying no metadata anywhere, reports zero cells with data.
func Summarize(cfg *datatypes.MatrixConfig) MatrixSummary {
	const totalCells = 20

	cellsWithData := 0
	totalConfidence := 0.0
	totalEscapeRate := 0.0
	cellsWithEscapeData := 0

	for _, persona := range datatypes.Personas() {
		for _, goal := range datatypes.Goals() {
			cell, ok := cfg.Cell(persona, goal)
			if !ok {
				continue
			}
			totalConfidence += cell.Confidence

			if cell.Metadata == nil {
				continue
			}
			if cell.Metadata.SampleSize > 0 {
				cellsWithData++
			}
			totalEscapeRate += cell.Metadata.EscapeRate
			cellsWithEscapeData++
		}
	}

	summary := MatrixSummary{
		TotalCells:    totalCells,
		CellsWithData: cellsWithData,
		AvgConfidence: totalConfidence / totalCells,
	}
	if cellsWithEscapeData > 0 {
		summary.AvgEscapeRate = totalEscapeRate / float64(cellsWithEscapeData)
	}
	return summary
}
