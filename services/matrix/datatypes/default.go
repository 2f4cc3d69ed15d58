// Copyright (C) 2025 Every Labs (eng@everylabs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import "time"

// The static hypothesis matrix. Assignments come from product intuition,
// N=12 qualitative interviews, and beta usage patterns; the experiment tests
// single-path routing against multi-choice, not the matrix content itself.
var defaultAssignments = map[Persona]map[Goal]App{
	PersonaFounder: {
		GoalProductive: AppCora,      // founders drowning in email need triage
		GoalAutomate:   AppCora,      // email workflows are high-leverage
		GoalWrite:      AppSpiral,    // investor updates, blog posts, memos
		GoalTrends:     AppMonologue, // capture ideas while multitasking
	},
	PersonaBuilder: {
		GoalProductive: AppSparkle,   // engineers have messy project folders
		GoalAutomate:   AppSparkle,   // auto-organize build artifacts, repos
		GoalWrite:      AppSpiral,    // documentation, READMEs, RFCs
		GoalTrends:     AppMonologue, // voice notes while coding
	},
	PersonaWriter: {
		GoalProductive: AppMonologue, // dictate drafts faster than typing
		GoalAutomate:   AppSpiral,    // AI writing workflows
		GoalWrite:      AppSpiral,    // core use case
		GoalTrends:     AppSpiral,    // stay ahead with AI-assisted writing
	},
	PersonaDesigner: {
		GoalProductive: AppSparkle,   // organize design assets and versions
		GoalAutomate:   AppSparkle,   // auto-organize project files
		GoalWrite:      AppSpiral,    // case studies, proposals, portfolios
		GoalTrends:     AppMonologue, // voice memos for design ideas
	},
	PersonaCurious: {
		GoalProductive: AppMonologue, // low barrier, just talk
		GoalAutomate:   AppCora,      // email is a universal pain point
		GoalWrite:      AppSpiral,    // everyone writes something
		GoalTrends:     AppMonologue, // easy way to try AI
	},
}

// DefaultSecondaryPairings is the fixed cross-sell fallback table used when
// a config carries no secondary entry for an application.
var DefaultSecondaryPairings = map[App][]App{
	AppCora:      {AppSparkle, AppSpiral, AppMonologue},
	AppSparkle:   {AppCora, AppMonologue, AppSpiral},
	AppSpiral:    {AppMonologue, AppCora, AppSparkle},
	AppMonologue: {AppSpiral, AppCora, AppSparkle},
}

// DefaultMatrixVersion is the version of the packaged hypothesis matrix.
const DefaultMatrixVersion = "1.0.0"

// DefaultMatrixConfig builds the packaged static routing policy.
//
// Every call returns a fresh document stamped at now, so callers may mutate
// the result freely. All 20 cells are populated (totality invariant) with
// hypothesis-level confidence and a persona/goal provenance string.
func DefaultMatrixConfig(now time.Time) *MatrixConfig {
	ts := Timestamp(now)

	primary := make(map[Persona]map[Goal]MatrixCell, len(defaultAssignments))
	for _, persona := range Personas() {
		row := make(map[Goal]MatrixCell, 4)
		for _, goal := range Goals() {
			row[goal] = MatrixCell{
				App:        defaultAssignments[persona][goal],
				Confidence: 0.5,
				Reason:     "hypothesis assignment for " + string(persona) + "/" + string(goal),
			}
		}
		primary[persona] = row
	}

	secondary := make(map[App]SecondaryPreferences, len(DefaultSecondaryPairings))
	for app, ordered := range DefaultSecondaryPairings {
		cp := make([]App, len(ordered))
		copy(cp, ordered)
		secondary[app] = SecondaryPreferences{Ordered: cp}
	}

	return &MatrixConfig{
		Version:              DefaultMatrixVersion,
		CreatedAt:            ts,
		UpdatedAt:            ts,
		Source:               SourceDefault,
		PrimaryMatrix:        primary,
		SecondaryPreferences: secondary,
	}
}
