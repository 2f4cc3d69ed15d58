// Copyright (C) 2025 Every Labs (eng@everylabs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package validation checks externally supplied matrix configs before they
// are accepted. Struct-level rules run through go-playground/validator;
// matrix totality (every persona, every goal, a valid app in every cell)
// needs explicit checks because validator cannot express "this map must
// cover a fixed key set".
package validation

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/everylabs/matrixd/services/matrix/datatypes"
)

// ErrInvalidConfig is the sentinel wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid matrix config")

// ValidationError names the offending field so API clients can repair the
// document. Never partially applied: a config either validates whole or is
// rejected whole.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error implements error.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Unwrap ties every ValidationError to ErrInvalidConfig.
func (e *ValidationError) Unwrap() error { return ErrInvalidConfig }

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidateConfig decodes and validates a raw config document. On success
// the returned config is fully populated and safe to store; on failure the
// error is a *ValidationError naming the first missing or invalid field.
func ValidateConfig(raw json.RawMessage) (*datatypes.MatrixConfig, error) {
	var cfg datatypes.MatrixConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, &ValidationError{Field: "body", Message: "not a valid config document: " + err.Error()}
	}
	if err := Check(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Check validates an already-decoded config in place.
func Check(cfg *datatypes.MatrixConfig) error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			f := verrs[0]
			return &ValidationError{
				Field:   f.Namespace(),
				Message: fmt.Sprintf("failed %q validation", f.Tag()),
			}
		}
		return &ValidationError{Field: "config", Message: err.Error()}
	}

	if cfg.Source == datatypes.SourceComputed && !datatypes.ValidHeuristic(cfg.Heuristic) {
		return &ValidationError{
			Field:   "heuristic",
			Message: fmt.Sprintf("computed configs must name a known heuristic, got %q", cfg.Heuristic),
		}
	}

	// Totality: all 5 personas x 4 goals present, each with a valid app.
	for _, persona := range datatypes.Personas() {
		row, ok := cfg.PrimaryMatrix[persona]
		if !ok {
			return &ValidationError{
				Field:   "primaryMatrix." + string(persona),
				Message: "missing persona",
			}
		}
		for _, goal := range datatypes.Goals() {
			cell, ok := row[goal]
			if !ok || cell.App == "" {
				return &ValidationError{
					Field:   fmt.Sprintf("primaryMatrix.%s.%s", persona, goal),
					Message: "missing or invalid cell",
				}
			}
			if !datatypes.ValidApp(cell.App) {
				return &ValidationError{
					Field:   fmt.Sprintf("primaryMatrix.%s.%s.app", persona, goal),
					Message: fmt.Sprintf("unknown application %q", cell.App),
				}
			}
			if cell.Confidence < 0 || cell.Confidence > 1 {
				return &ValidationError{
					Field:   fmt.Sprintf("primaryMatrix.%s.%s.confidence", persona, goal),
					Message: fmt.Sprintf("confidence %v outside [0,1]", cell.Confidence),
				}
			}
		}
	}

	for app, prefs := range cfg.SecondaryPreferences {
		if !datatypes.ValidApp(app) {
			return &ValidationError{
				Field:   "secondaryPreferences." + string(app),
				Message: "unknown application",
			}
		}
		for _, fallback := range prefs.Ordered {
			if fallback == app {
				return &ValidationError{
					Field:   "secondaryPreferences." + string(app),
					Message: "fallback list must not contain the key application",
				}
			}
			if !datatypes.ValidApp(fallback) {
				return &ValidationError{
					Field:   "secondaryPreferences." + string(app),
					Message: fmt.Sprintf("unknown fallback application %q", fallback),
				}
			}
		}
	}

	for i, rule := range cfg.FeatureOverrides {
		if err := checkOverride(i, rule); err != nil {
			return err
		}
	}

	return nil
}

func checkOverride(i int, rule datatypes.FeatureOverride) error {
	field := fmt.Sprintf("featureOverrides[%d]", i)
	switch rule.Action.Type {
	case datatypes.ActionOverridePrimary:
		if !datatypes.ValidApp(rule.Action.App) {
			return &ValidationError{Field: field + ".action.app", Message: "override_primary needs a valid app"}
		}
	case datatypes.ActionReorderSecondary:
		if len(rule.Action.Ordered) == 0 {
			return &ValidationError{Field: field + ".action.ordered", Message: "reorder_secondary needs a non-empty list"}
		}
	case datatypes.ActionBoostConfidence:
		// Any delta is representable; clamping happens at application time.
	default:
		return &ValidationError{
			Field:   field + ".action.type",
			Message: fmt.Sprintf("unknown action %q", rule.Action.Type),
		}
	}
	if len(rule.Conditions) == 0 {
		return &ValidationError{Field: field + ".conditions", Message: "override rules need at least one condition"}
	}
	return nil
}
