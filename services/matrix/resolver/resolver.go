// Copyright (C) 2025 Every Labs (eng@everylabs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package resolver is the query surface routing users to applications: it
// answers "which app for this persona/goal" against the active matrix
// config and buckets users into experiment arms.
package resolver

import (
	"context"
	"unicode/utf16"

	"github.com/everylabs/matrixd/services/matrix/datatypes"
	"github.com/everylabs/matrixd/services/matrix/store"
)

// AssignmentContext bundles everything a client needs to act on an
// assignment and tag its analytics events.
type AssignmentContext struct {
	Persona       datatypes.Persona `json:"persona"`
	Goal          datatypes.Goal    `json:"goal"`
	App           datatypes.App     `json:"app"`
	SecondaryApp  datatypes.App     `json:"secondaryApp"`
	Confidence    float64           `json:"confidence"`
	Reason        string            `json:"reason"`
	MatrixVersion string            `json:"matrixVersion"`

	// Device is optionally attached by the caller for override rules and
	// event tagging; the matrix lookup itself never depends on it.
	Device *datatypes.DeviceInfo `json:"device,omitempty"`
}

// Resolver answers assignment queries against the store's active config.
type Resolver struct {
	store *store.Store
}

// New creates a Resolver backed by s.
func New(s *store.Store) *Resolver {
	return &Resolver{store: s}
}

// PrimaryApp returns the application assigned to (persona, goal).
func (r *Resolver) PrimaryApp(ctx context.Context, persona datatypes.Persona, goal datatypes.Goal) (datatypes.App, error) {
	cell, err := r.PrimaryAppCell(ctx, persona, goal)
	if err != nil {
		return "", err
	}
	return cell.App, nil
}

// PrimaryAppCell returns the full routing cell for (persona, goal),
// including confidence and reason.
func (r *Resolver) PrimaryAppCell(ctx context.Context, persona datatypes.Persona, goal datatypes.Goal) (datatypes.MatrixCell, error) {
	cfg := r.store.Load(ctx)
	return store.PrimaryCell(cfg, persona, goal)
}

// SecondaryApp returns the first-choice fallback application for app. When
// the active config has no secondary entry, the fixed default pairing table
// answers instead, so this never fails.
func (r *Resolver) SecondaryApp(ctx context.Context, app datatypes.App) datatypes.App {
	ordered := r.SecondaryApps(ctx, app)
	if len(ordered) == 0 {
		return ""
	}
	return ordered[0]
}

// SecondaryApps returns the ordered fallback list for app, from the active
// config when present and the default pairing table otherwise.
func (r *Resolver) SecondaryApps(ctx context.Context, app datatypes.App) []datatypes.App {
	cfg := r.store.Load(ctx)
	if ordered := store.SecondaryApps(cfg, app); len(ordered) > 0 {
		return ordered
	}
	fallback := datatypes.DefaultSecondaryPairings[app]
	out := make([]datatypes.App, len(fallback))
	copy(out, fallback)
	return out
}

// RecommendedApps returns exactly two applications for the control arm's
// multi-choice surface: the primary assignment plus its first secondary.
func (r *Resolver) RecommendedApps(ctx context.Context, persona datatypes.Persona, goal datatypes.Goal) ([2]datatypes.App, error) {
	primary, err := r.PrimaryApp(ctx, persona, goal)
	if err != nil {
		return [2]datatypes.App{}, err
	}
	return [2]datatypes.App{primary, r.SecondaryApp(ctx, primary)}, nil
}

// AssignmentContext resolves the full assignment bundle for event tagging.
func (r *Resolver) AssignmentContext(ctx context.Context, persona datatypes.Persona, goal datatypes.Goal) (AssignmentContext, error) {
	cfg := r.store.Load(ctx)
	cell, err := store.PrimaryCell(cfg, persona, goal)
	if err != nil {
		return AssignmentContext{}, err
	}

	secondary := datatypes.App("")
	if ordered := store.SecondaryApps(cfg, cell.App); len(ordered) > 0 {
		secondary = ordered[0]
	} else if fallback := datatypes.DefaultSecondaryPairings[cell.App]; len(fallback) > 0 {
		secondary = fallback[0]
	}

	return AssignmentContext{
		Persona:       persona,
		Goal:          goal,
		App:           cell.App,
		SecondaryApp:  secondary,
		Confidence:    cell.Confidence,
		Reason:        cell.Reason,
		MatrixVersion: cfg.Version,
	}, nil
}

// Variant deterministically buckets a user into control or treatment by
// string hash: even hashes are control, odd are treatment. The same user ID
// always lands in the same arm.
func Variant(userID string) datatypes.Variant {
	if hashCode(userID)%2 == 0 {
		return datatypes.VariantControl
	}
	return datatypes.VariantTreatment
}

// hashCode is the classic 31x string hash over UTF-16 code units with
// 32-bit wraparound, kept bit-compatible with the web client so both sides
// bucket a user identically.
func hashCode(s string) uint32 {
	var hash int32
	for _, unit := range utf16.Encode([]rune(s)) {
		hash = (hash << 5) - hash + int32(unit)
	}
	if hash < 0 {
		return uint32(-hash)
	}
	return uint32(hash)
}
