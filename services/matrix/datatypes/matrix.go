// Copyright (C) 2025 Every Labs (eng@everylabs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package datatypes defines the shared domain model for the assignment-matrix
// service: the persona/goal/app enumerations, the versioned MatrixConfig
// routing policy, and the analytics event envelope consumed by the optimizer.
package datatypes

import "time"

// Persona is one of the five survey-derived audience segments.
type Persona string

const (
	PersonaFounder  Persona = "founder"
	PersonaBuilder  Persona = "builder"
	PersonaWriter   Persona = "writer"
	PersonaDesigner Persona = "designer"
	PersonaCurious  Persona = "curious"
)

// Goal is one of the four survey-derived intent axes.
type Goal string

const (
	GoalProductive Goal = "productive"
	GoalAutomate   Goal = "automate"
	GoalWrite      Goal = "write"
	GoalTrends     Goal = "trends"
)

// App identifies one of the four products a user can be routed to.
type App string

const (
	AppCora      App = "cora"
	AppSparkle   App = "sparkle"
	AppSpiral    App = "spiral"
	AppMonologue App = "monologue"
)

// Personas returns all personas in canonical matrix order.
func Personas() []Persona {
	return []Persona{PersonaFounder, PersonaBuilder, PersonaWriter, PersonaDesigner, PersonaCurious}
}

// Goals returns all goals in canonical matrix order.
func Goals() []Goal {
	return []Goal{GoalProductive, GoalAutomate, GoalWrite, GoalTrends}
}

// Apps returns all candidate applications in canonical order.
func Apps() []App {
	return []App{AppCora, AppSparkle, AppSpiral, AppMonologue}
}

// ValidPersona reports whether p is one of the five known personas.
func ValidPersona(p Persona) bool {
	switch p {
	case PersonaFounder, PersonaBuilder, PersonaWriter, PersonaDesigner, PersonaCurious:
		return true
	}
	return false
}

// ValidGoal reports whether g is one of the four known goals.
func ValidGoal(g Goal) bool {
	switch g {
	case GoalProductive, GoalAutomate, GoalWrite, GoalTrends:
		return true
	}
	return false
}

// ValidApp reports whether a is one of the four known applications.
func ValidApp(a App) bool {
	switch a {
	case AppCora, AppSparkle, AppSpiral, AppMonologue:
		return true
	}
	return false
}

// MatrixSource tags the provenance of a MatrixConfig. It is always set
// explicitly, never inferred.
type MatrixSource string

const (
	// SourceDefault marks the packaged static hypothesis matrix.
	SourceDefault MatrixSource = "default"
	// SourceAPI marks a config accepted from the external config endpoint.
	SourceAPI MatrixSource = "api"
	// SourceComputed marks a config proposed by the heuristic optimizer.
	SourceComputed MatrixSource = "computed"
)

// CellMetadata holds the observed rates behind a computed cell assignment.
//
// For SourceComputed configs, SampleSize reflects the aggregation window used
// to produce the cell; for default configs metadata is absent entirely.
type CellMetadata struct {
	ConversionRate float64 `json:"conversionRate,omitempty"`
	RetentionRate  float64 `json:"retentionRate,omitempty"`
	EscapeRate     float64 `json:"escapeRate,omitempty"`
	SampleSize     int     `json:"sampleSize"`
	LastUpdated    string  `json:"lastUpdated,omitempty"`
}

// MatrixCell is one (persona, goal) -> application routing decision.
type MatrixCell struct {
	App App `json:"app" validate:"required,oneof=cora sparkle spiral monologue"`

	// Confidence is in [0,1].
	Confidence float64 `json:"confidence" validate:"gte=0,lte=1"`

	// Reason is a human-readable provenance string for the assignment.
	Reason string `json:"reason"`

	Metadata *CellMetadata `json:"metadata,omitempty"`
}

// SecondaryPreferences is the ordered fallback list for one application.
// The list must never contain the key application itself.
type SecondaryPreferences struct {
	Ordered []App `json:"ordered"`
}

// OverrideOperator compares a context field against a rule value.
type OverrideOperator string

const (
	OpEquals      OverrideOperator = "equals"
	OpNotEquals   OverrideOperator = "not_equals"
	OpIn          OverrideOperator = "in"
	OpGreaterThan OverrideOperator = "greater_than"
	OpLessThan    OverrideOperator = "less_than"
)

// OverrideCondition is one (field-path, operator, value) triple. Conditions
// on a rule are AND-combined.
type OverrideCondition struct {
	Field    string           `json:"field"`
	Operator OverrideOperator `json:"operator"`
	Value    any              `json:"value"`
}

// OverrideActionType selects what a matched FeatureOverride does.
type OverrideActionType string

const (
	ActionOverridePrimary  OverrideActionType = "override_primary"
	ActionReorderSecondary OverrideActionType = "reorder_secondary"
	ActionBoostConfidence  OverrideActionType = "boost_confidence"
)

// OverrideAction is the effect of a matched FeatureOverride rule.
type OverrideAction struct {
	Type OverrideActionType `json:"type"`

	// App is set for override_primary.
	App App `json:"app,omitempty"`

	// Ordered is set for reorder_secondary.
	Ordered []App `json:"ordered,omitempty"`

	// ConfidenceDelta is set for boost_confidence.
	ConfidenceDelta float64 `json:"confidenceDelta,omitempty"`
}

// FeatureOverride is a priority-ordered conditional rule layered on top of
// the primary matrix. Rules are represented and validated but not evaluated
// at assignment time; they are carried through optimization untouched.
type FeatureOverride struct {
	ID         string              `json:"id"`
	Conditions []OverrideCondition `json:"conditions"`
	Action     OverrideAction      `json:"action"`

	// Priority orders evaluation; higher first.
	Priority int `json:"priority"`
}

// HeuristicType names one of the four optimizer weighting policies.
type HeuristicType string

const (
	HeuristicEscapeMinimizing   HeuristicType = "escape_minimizing"
	HeuristicConversionWeighted HeuristicType = "conversion_weighted"
	HeuristicRetentionWeighted  HeuristicType = "retention_weighted"
	HeuristicBalanced           HeuristicType = "balanced"
)

// ValidHeuristic reports whether h names a known heuristic.
func ValidHeuristic(h HeuristicType) bool {
	_, ok := HeuristicConfigs[h]
	return ok
}

// HeuristicWeights is the (conversion, retention, escape) weight triple for
// a heuristic. The escape weight applies to the inverted escape rate, so a
// high escape weight rewards apps users do not bail out of.
type HeuristicWeights struct {
	Conversion float64 `json:"conversion"`
	Retention  float64 `json:"retention"`
	Escape     float64 `json:"escape"`
}

// HeuristicConfig bundles the tunables of one weighting policy.
type HeuristicConfig struct {
	Type    HeuristicType    `json:"type"`
	Weights HeuristicWeights `json:"weights"`

	// MinSampleSize is the per-cell assignment count below which the
	// optimizer keeps the incumbent and only refreshes metadata.
	MinSampleSize int `json:"minSampleSize"`

	// SmoothingFactor is the Bayesian pseudo-count k used when converting
	// raw counts to rates.
	SmoothingFactor float64 `json:"smoothingFactor"`
}

// DefaultMinSampleSize aligns the optimizer's per-cell gate with the stats
// engine's per-variant significance gate.
const DefaultMinSampleSize = 30

// DefaultSmoothingFactor is the pseudo-count k added to every cell's rates.
const DefaultSmoothingFactor = 10.0

// HeuristicConfigs holds the four predefined weighting policies.
var HeuristicConfigs = map[HeuristicType]HeuristicConfig{
	HeuristicEscapeMinimizing: {
		Type:            HeuristicEscapeMinimizing,
		Weights:         HeuristicWeights{Conversion: 0.2, Retention: 0.2, Escape: 0.6},
		MinSampleSize:   DefaultMinSampleSize,
		SmoothingFactor: DefaultSmoothingFactor,
	},
	HeuristicConversionWeighted: {
		Type:            HeuristicConversionWeighted,
		Weights:         HeuristicWeights{Conversion: 0.6, Retention: 0.2, Escape: 0.2},
		MinSampleSize:   DefaultMinSampleSize,
		SmoothingFactor: DefaultSmoothingFactor,
	},
	HeuristicRetentionWeighted: {
		Type:            HeuristicRetentionWeighted,
		Weights:         HeuristicWeights{Conversion: 0.2, Retention: 0.6, Escape: 0.2},
		MinSampleSize:   DefaultMinSampleSize,
		SmoothingFactor: DefaultSmoothingFactor,
	},
	HeuristicBalanced: {
		Type:            HeuristicBalanced,
		Weights:         HeuristicWeights{Conversion: 0.33, Retention: 0.33, Escape: 0.34},
		MinSampleSize:   DefaultMinSampleSize,
		SmoothingFactor: DefaultSmoothingFactor,
	},
}

// MatrixConfig is the versioned routing policy document.
//
// Invariants:
//   - primaryMatrix is total: every persona maps every goal to a cell.
//   - secondaryPreferences lists never contain their key application.
//   - source is explicit; heuristic is set only when source is "computed".
type MatrixConfig struct {
	// Version is a semantic version string, patch-incremented on every
	// computed proposal.
	Version string `json:"version" validate:"required"`

	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`

	Source MatrixSource `json:"source" validate:"required,oneof=default api computed"`

	// Heuristic records the weighting policy for computed configs.
	Heuristic HeuristicType `json:"heuristic,omitempty"`

	PrimaryMatrix map[Persona]map[Goal]MatrixCell `json:"primaryMatrix" validate:"required"`

	SecondaryPreferences map[App]SecondaryPreferences `json:"secondaryPreferences" validate:"required"`

	FeatureOverrides []FeatureOverride `json:"featureOverrides,omitempty"`

	// ProposalID is assigned to optimizer proposals for review bookkeeping.
	ProposalID string `json:"proposalId,omitempty"`
}

// Cell returns the routing decision for (persona, goal). The second return
// is false when the persona or goal is absent, which violates the totality
// invariant and should only happen on configs that bypassed validation.
func (c *MatrixConfig) Cell(persona Persona, goal Goal) (MatrixCell, bool) {
	row, ok := c.PrimaryMatrix[persona]
	if !ok {
		return MatrixCell{}, false
	}
	cell, ok := row[goal]
	return cell, ok
}

// Clone returns a deep copy of the config. Store reads hand out clones so
// callers can never mutate the cached document.
func (c *MatrixConfig) Clone() *MatrixConfig {
	out := *c
	out.PrimaryMatrix = make(map[Persona]map[Goal]MatrixCell, len(c.PrimaryMatrix))
	for p, row := range c.PrimaryMatrix {
		cp := make(map[Goal]MatrixCell, len(row))
		for g, cell := range row {
			if cell.Metadata != nil {
				md := *cell.Metadata
				cell.Metadata = &md
			}
			cp[g] = cell
		}
		out.PrimaryMatrix[p] = cp
	}
	out.SecondaryPreferences = make(map[App]SecondaryPreferences, len(c.SecondaryPreferences))
	for a, prefs := range c.SecondaryPreferences {
		ordered := make([]App, len(prefs.Ordered))
		copy(ordered, prefs.Ordered)
		out.SecondaryPreferences[a] = SecondaryPreferences{Ordered: ordered}
	}
	if c.FeatureOverrides != nil {
		out.FeatureOverrides = make([]FeatureOverride, len(c.FeatureOverrides))
		copy(out.FeatureOverrides, c.FeatureOverrides)
	}
	return &out
}

// Timestamp formats t the way config documents store times.
func Timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
