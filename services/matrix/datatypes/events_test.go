// Copyright (C) 2025 Every Labs (eng@everylabs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodePayload(t *testing.T) {
	tests := []struct {
		name    string
		event   Event
		check   func(t *testing.T, p EventPayload)
	}{
		{
			name: "assignment with modern app key",
			event: Event{
				Type:    EventAppAssigned,
				Payload: json.RawMessage(`{"persona":"founder","goal":"write","app":"spiral"}`),
			},
			check: func(t *testing.T, p EventPayload) {
				ap, ok := p.(*AssignmentPayload)
				require.True(t, ok)
				assert.Equal(t, PersonaFounder, ap.Persona)
				assert.Equal(t, GoalWrite, ap.Goal)
				assert.Equal(t, AppSpiral, ap.AssignedApp())
			},
		},
		{
			name: "assignment with legacy primary_app key",
			event: Event{
				Type:    EventPrimaryAppAssigned,
				Payload: json.RawMessage(`{"persona":"builder","goal":"automate","primary_app":"sparkle"}`),
			},
			check: func(t *testing.T, p EventPayload) {
				ap, ok := p.(*AssignmentPayload)
				require.True(t, ok)
				assert.Equal(t, AppSparkle, ap.AssignedApp())
			},
		},
		{
			name: "escape hatch",
			event: Event{
				Type:    EventEscapeHatchClicked,
				Payload: json.RawMessage(`{"persona":"writer","goal":"write","from_app":"spiral","to_app":"monologue"}`),
			},
			check: func(t *testing.T, p EventPayload) {
				ep, ok := p.(*EscapeHatchPayload)
				require.True(t, ok)
				assert.Equal(t, AppSpiral, ep.FromApp)
				assert.Equal(t, AppMonologue, ep.ToApp)
			},
		},
		{
			name: "first win",
			event: Event{
				Type:    EventFirstWinCompleted,
				Payload: json.RawMessage(`{"app":"cora","time_to_value_seconds":95}`),
			},
			check: func(t *testing.T, p EventPayload) {
				fp, ok := p.(*FirstWinPayload)
				require.True(t, ok)
				assert.Equal(t, AppCora, fp.App)
				assert.Equal(t, 95, fp.TimeToValueSeconds)
			},
		},
		{
			name:  "empty payload decodes to zero value",
			event: Event{Type: EventSurveyStarted},
			check: func(t *testing.T, p EventPayload) {
				sp, ok := p.(*SurveyPayload)
				require.True(t, ok)
				assert.Empty(t, sp.Persona)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := tt.event.DecodePayload()
			require.NoError(t, err)
			tt.check(t, p)
		})
	}
}

func TestDecodePayloadUnknownType(t *testing.T) {
	e := Event{Type: "page_scrolled"}
	_, err := e.DecodePayload()
	assert.ErrorIs(t, err, ErrUnknownEventType)
}

func TestDecodePayloadMalformedJSON(t *testing.T) {
	e := Event{Type: EventAppAssigned, Payload: json.RawMessage(`{"app":`)}
	_, err := e.DecodePayload()
	assert.Error(t, err)
}

func TestAssignedAppPrefersModernKey(t *testing.T) {
	p := AssignmentPayload{App: AppCora, PrimaryApp: AppSpiral}
	assert.Equal(t, AppCora, p.AssignedApp())

	p = AssignmentPayload{PrimaryApp: AppSpiral}
	assert.Equal(t, AppSpiral, p.AssignedApp())
}
