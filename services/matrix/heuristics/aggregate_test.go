// Copyright (C) 2025 Every Labs (eng@everylabs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package heuristics

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/everylabs/matrixd/services/matrix/datatypes"
)

func assignEvent(user string, persona datatypes.Persona, goal datatypes.Goal, app datatypes.App) datatypes.Event {
	payload, _ := json.Marshal(datatypes.AssignmentPayload{Persona: persona, Goal: goal, App: app})
	return datatypes.Event{
		UserID:  user,
		Variant: datatypes.VariantTreatment,
		Type:    datatypes.EventAppAssigned,
		Payload: payload,
	}
}

func escapeEvent(user string, persona datatypes.Persona, goal datatypes.Goal, from datatypes.App) datatypes.Event {
	payload, _ := json.Marshal(datatypes.EscapeHatchPayload{Persona: persona, Goal: goal, FromApp: from})
	return datatypes.Event{
		UserID:  user,
		Variant: datatypes.VariantTreatment,
		Type:    datatypes.EventEscapeHatchClicked,
		Payload: payload,
	}
}

func winEvent(user string, app datatypes.App, variant datatypes.Variant) datatypes.Event {
	payload, _ := json.Marshal(datatypes.FirstWinPayload{App: app})
	return datatypes.Event{
		UserID:  user,
		Variant: variant,
		Type:    datatypes.EventFirstWinCompleted,
		Payload: payload,
	}
}

func TestAggregateCellDataAssignments(t *testing.T) {
	events := []datatypes.Event{
		assignEvent("u1", datatypes.PersonaFounder, datatypes.GoalProductive, datatypes.AppCora),
		assignEvent("u2", datatypes.PersonaFounder, datatypes.GoalProductive, datatypes.AppCora),
		assignEvent("u3", datatypes.PersonaFounder, datatypes.GoalProductive, datatypes.AppSparkle),
		assignEvent("u4", datatypes.PersonaWriter, datatypes.GoalWrite, datatypes.AppSpiral),
	}

	data, skipped := AggregateCellData(events)
	assert.Zero(t, skipped)

	founder := CellKey{datatypes.PersonaFounder, datatypes.GoalProductive}
	require.Contains(t, data, founder)
	assert.Equal(t, 2, data[founder][datatypes.AppCora].Assignments)
	assert.Equal(t, 1, data[founder][datatypes.AppSparkle].Assignments)
	assert.Equal(t, 3, data.TotalAssignments(founder))

	writer := CellKey{datatypes.PersonaWriter, datatypes.GoalWrite}
	assert.Equal(t, 1, data.TotalAssignments(writer))
}

func TestAggregateCellDataLegacyPayloadKey(t *testing.T) {
	payload := json.RawMessage(`{"persona":"builder","goal":"automate","primary_app":"sparkle"}`)
	events := []datatypes.Event{{
		UserID:  "u1",
		Variant: datatypes.VariantTreatment,
		Type:    datatypes.EventPrimaryAppAssigned,
		Payload: payload,
	}}

	data, skipped := AggregateCellData(events)
	assert.Zero(t, skipped)
	key := CellKey{datatypes.PersonaBuilder, datatypes.GoalAutomate}
	assert.Equal(t, 1, data[key][datatypes.AppSparkle].Assignments)
}

func TestAggregateCellDataEscapeAttribution(t *testing.T) {
	key := CellKey{datatypes.PersonaFounder, datatypes.GoalProductive}
	events := []datatypes.Event{
		assignEvent("u1", datatypes.PersonaFounder, datatypes.GoalProductive, datatypes.AppCora),
		escapeEvent("u1", datatypes.PersonaFounder, datatypes.GoalProductive, datatypes.AppCora),
		// Escape from an app never assigned in the cell has no denominator
		// and is dropped.
		escapeEvent("u2", datatypes.PersonaFounder, datatypes.GoalProductive, datatypes.AppMonologue),
	}

	data, skipped := AggregateCellData(events)
	assert.Zero(t, skipped)
	assert.Equal(t, 1, data[key][datatypes.AppCora].Escapes)
	assert.NotContains(t, data[key], datatypes.AppMonologue)
}

func TestAggregateCellDataConversionsAreTreatmentOnly(t *testing.T) {
	key := CellKey{datatypes.PersonaFounder, datatypes.GoalProductive}
	events := []datatypes.Event{
		assignEvent("u1", datatypes.PersonaFounder, datatypes.GoalProductive, datatypes.AppCora),
		assignEvent("u2", datatypes.PersonaFounder, datatypes.GoalProductive, datatypes.AppCora),
		winEvent("u1", datatypes.AppCora, datatypes.VariantTreatment),
		winEvent("u2", datatypes.AppCora, datatypes.VariantControl),
		// No assignment on record for u9; the completion cannot be attributed.
		winEvent("u9", datatypes.AppCora, datatypes.VariantTreatment),
	}

	data, _ := AggregateCellData(events)
	assert.Equal(t, 1, data[key][datatypes.AppCora].Conversions)
}

func TestAggregateCellDataRetention(t *testing.T) {
	key := CellKey{datatypes.PersonaFounder, datatypes.GoalProductive}
	events := []datatypes.Event{
		assignEvent("u1", datatypes.PersonaFounder, datatypes.GoalProductive, datatypes.AppCora),
		assignEvent("u2", datatypes.PersonaFounder, datatypes.GoalProductive, datatypes.AppCora),
		// u1 completes first wins in two distinct apps: retained.
		winEvent("u1", datatypes.AppCora, datatypes.VariantTreatment),
		winEvent("u1", datatypes.AppSpiral, datatypes.VariantTreatment),
		// u2 completes the same app twice: not retained.
		winEvent("u2", datatypes.AppCora, datatypes.VariantTreatment),
		winEvent("u2", datatypes.AppCora, datatypes.VariantTreatment),
	}

	data, _ := AggregateCellData(events)
	assert.Equal(t, 1, data[key][datatypes.AppCora].Retentions)
}

func TestAggregateCellDataLastAssignmentWins(t *testing.T) {
	events := []datatypes.Event{
		assignEvent("u1", datatypes.PersonaFounder, datatypes.GoalProductive, datatypes.AppCora),
		assignEvent("u1", datatypes.PersonaFounder, datatypes.GoalProductive, datatypes.AppSparkle),
		winEvent("u1", datatypes.AppSparkle, datatypes.VariantTreatment),
	}

	data, _ := AggregateCellData(events)
	key := CellKey{datatypes.PersonaFounder, datatypes.GoalProductive}

	// Both assignment events count, but the conversion follows the latest.
	assert.Equal(t, 1, data[key][datatypes.AppCora].Assignments)
	assert.Equal(t, 1, data[key][datatypes.AppSparkle].Assignments)
	assert.Zero(t, data[key][datatypes.AppCora].Conversions)
	assert.Equal(t, 1, data[key][datatypes.AppSparkle].Conversions)
}

func TestAggregateCellDataSkipsMalformedEvents(t *testing.T) {
	events := []datatypes.Event{
		assignEvent("u1", datatypes.PersonaFounder, datatypes.GoalProductive, datatypes.AppCora),
		// Missing persona.
		{UserID: "u2", Type: datatypes.EventAppAssigned, Payload: json.RawMessage(`{"goal":"write","app":"spiral"}`)},
		// Unparseable payload.
		{UserID: "u3", Type: datatypes.EventAppAssigned, Payload: json.RawMessage(`{"app":`)},
		// Escape without a from_app.
		{UserID: "u4", Type: datatypes.EventEscapeHatchClicked, Payload: json.RawMessage(`{"persona":"founder","goal":"productive"}`)},
	}

	data, skipped := AggregateCellData(events)
	assert.Equal(t, 3, skipped)
	assert.Equal(t, 1, data.TotalAssignments(CellKey{datatypes.PersonaFounder, datatypes.GoalProductive}))
}

func TestAggregateCellDataEmptyStream(t *testing.T) {
	data, skipped := AggregateCellData(nil)
	assert.Empty(t, data)
	assert.Zero(t, skipped)
}

// bulkEvents builds count users assigned to app in the cell, with the given
// number of escapes and treatment conversions among them.
func bulkEvents(prefix string, persona datatypes.Persona, goal datatypes.Goal, app datatypes.App, count, escapes, conversions int) []datatypes.Event {
	events := make([]datatypes.Event, 0, count+escapes+conversions)
	for i := 0; i < count; i++ {
		events = append(events, assignEvent(fmt.Sprintf("%s-%d", prefix, i), persona, goal, app))
	}
	for i := 0; i < escapes; i++ {
		events = append(events, escapeEvent(fmt.Sprintf("%s-%d", prefix, i), persona, goal, app))
	}
	for i := 0; i < conversions; i++ {
		events = append(events, winEvent(fmt.Sprintf("%s-%d", prefix, i), app, datatypes.VariantTreatment))
	}
	return events
}
