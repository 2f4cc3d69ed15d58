// Copyright (C) 2025 Every Labs (eng@everylabs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package heuristics aggregates historical analytics events into per-cell,
// per-application metrics and proposes revised matrix configs under one of
// four weighting policies.
package heuristics

import (
	"github.com/everylabs/matrixd/services/matrix/datatypes"
)

// CellKey identifies one (persona, goal) cell of the matrix.
type CellKey struct {
	Persona datatypes.Persona
	Goal    datatypes.Goal
}

// CellAppData holds the raw event counts for one application within a cell.
type CellAppData struct {
	Assignments int
	Escapes     int
	Conversions int

	// Retentions counts users whose distinct completed-application set
	// reached two or more.
	Retentions int
}

// CellData maps each observed cell to its per-application counts.
type CellData map[CellKey]map[datatypes.App]*CellAppData

// TotalAssignments sums assignment counts across all applications in a cell.
func (d CellData) TotalAssignments(key CellKey) int {
	total := 0
	for _, data := range d[key] {
		total += data.Assignments
	}
	return total
}

type assignment struct {
	persona datatypes.Persona
	goal    datatypes.Goal
	app     datatypes.App
}

// AggregateCellData folds the event stream into per-cell counts.
//
// Attribution rules:
//   - Assignments come from assignment events carrying persona, goal, and
//     app. The same pass builds a user-to-assignment map (last assignment
//     wins) used to attribute later signals.
//   - Escapes are attributed to the application escaped FROM.
//   - Conversions are first-win completions in the treatment arm,
//     attributed via the user-to-assignment map.
//   - Retentions count users who completed first wins in two or more
//     distinct applications, same attribution.
//
// Events with malformed or incomplete payloads are skipped, never counted
// and never fatal; the skipped count is returned for logging.
func AggregateCellData(events []datatypes.Event) (CellData, int) {
	cellData := make(CellData)
	userAssignments := make(map[string]assignment)
	skipped := 0

	ensure := func(key CellKey, app datatypes.App) *CellAppData {
		apps, ok := cellData[key]
		if !ok {
			apps = make(map[datatypes.App]*CellAppData)
			cellData[key] = apps
		}
		data, ok := apps[app]
		if !ok {
			data = &CellAppData{}
			apps[app] = data
		}
		return data
	}

	for i := range events {
		e := &events[i]
		if e.Type != datatypes.EventAppAssigned && e.Type != datatypes.EventPrimaryAppAssigned {
			continue
		}
		payload, err := e.DecodePayload()
		if err != nil {
			skipped++
			continue
		}
		p := payload.(*datatypes.AssignmentPayload)
		app := p.AssignedApp()
		if p.Persona == "" || p.Goal == "" || app == "" {
			skipped++
			continue
		}

		userAssignments[e.UserID] = assignment{persona: p.Persona, goal: p.Goal, app: app}
		ensure(CellKey{p.Persona, p.Goal}, app).Assignments++
	}

	for i := range events {
		e := &events[i]
		if e.Type != datatypes.EventEscapeHatchClicked {
			continue
		}
		payload, err := e.DecodePayload()
		if err != nil {
			skipped++
			continue
		}
		p := payload.(*datatypes.EscapeHatchPayload)
		if p.Persona == "" || p.Goal == "" || p.FromApp == "" {
			skipped++
			continue
		}

		// Only count escapes from applications we saw assignments for;
		// otherwise the escape has no denominator.
		if data, ok := cellData[CellKey{p.Persona, p.Goal}][p.FromApp]; ok {
			data.Escapes++
		}
	}

	for i := range events {
		e := &events[i]
		if e.Type != datatypes.EventFirstWinCompleted || e.Variant != datatypes.VariantTreatment {
			continue
		}
		a, ok := userAssignments[e.UserID]
		if !ok {
			continue
		}
		if data, ok := cellData[CellKey{a.persona, a.goal}][a.app]; ok {
			data.Conversions++
		}
	}

	userCompletions := make(map[string]map[datatypes.App]struct{})
	for i := range events {
		e := &events[i]
		if e.Type != datatypes.EventFirstWinCompleted {
			continue
		}
		payload, err := e.DecodePayload()
		if err != nil {
			skipped++
			continue
		}
		p := payload.(*datatypes.FirstWinPayload)
		if p.App == "" {
			skipped++
			continue
		}
		apps, ok := userCompletions[e.UserID]
		if !ok {
			apps = make(map[datatypes.App]struct{})
			userCompletions[e.UserID] = apps
		}
		apps[p.App] = struct{}{}
	}

	for userID, apps := range userCompletions {
		if len(apps) < 2 {
			continue
		}
		a, ok := userAssignments[userID]
		if !ok {
			continue
		}
		if data, ok := cellData[CellKey{a.persona, a.goal}][a.app]; ok {
			data.Retentions++
		}
	}

	return cellData, skipped
}
