// Copyright (C) 2025 Every Labs (eng@everylabs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Variant is the experiment arm a user was bucketed into.
type Variant string

const (
	VariantControl   Variant = "control"
	VariantTreatment Variant = "treatment"
)

// ValidVariant reports whether v is a known experiment arm.
func ValidVariant(v Variant) bool {
	return v == VariantControl || v == VariantTreatment
}

// EventType enumerates every analytics event kind the demo emits.
type EventType string

const (
	EventSignupCompleted             EventType = "signup_completed"
	EventSurveyStarted               EventType = "survey_started"
	EventSurveyCompleted             EventType = "survey_completed"
	EventPrimaryAppAssigned          EventType = "primary_app_assigned"
	EventAppAssigned                 EventType = "app_assigned"
	EventOnboardingViewed            EventType = "onboarding_viewed"
	EventChecklistItemClicked        EventType = "checklist_item_clicked"
	EventFirstWinStarted             EventType = "first_win_started"
	EventFirstWinCompleted           EventType = "first_win_completed"
	EventCrossActivationPromptShown  EventType = "cross_activation_prompt_shown"
	EventCrossActivationClicked      EventType = "cross_activation_clicked"
	EventSecondAppActivated          EventType = "second_app_activated"
	EventReturnSession               EventType = "return_session"
	EventCoreAction                  EventType = "core_action"
	EventHelpRequested               EventType = "help_requested"
	EventErrorOccurred               EventType = "error_occurred"
	EventEscapeHatchClicked          EventType = "escape_hatch_clicked"
)

// ErrUnknownEventType is returned by DecodePayload for event kinds this
// build does not know about.
var ErrUnknownEventType = errors.New("unknown event type")

// Event is the envelope shared by every analytics event. The payload shape
// depends on Type; use DecodePayload to get the typed variant.
type Event struct {
	EventID   string          `json:"event_id,omitempty"`
	Timestamp string          `json:"timestamp,omitempty"`
	UserID    string          `json:"user_id"`
	SessionID string          `json:"session_id,omitempty"`
	Variant   Variant         `json:"variant"`
	Type      EventType       `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// EventPayload is the closed union of per-kind payload shapes.
type EventPayload interface {
	eventPayload()
}

// SignupPayload accompanies signup_completed.
type SignupPayload struct {
	EntryPoint  string `json:"entry_point"`
	UTMSource   string `json:"utm_source,omitempty"`
	UTMCampaign string `json:"utm_campaign,omitempty"`
}

// SurveyPayload accompanies survey_started (empty) and survey_completed.
type SurveyPayload struct {
	Persona          Persona `json:"persona,omitempty"`
	Goal             Goal    `json:"goal,omitempty"`
	SkippedQuestions int     `json:"skipped_questions,omitempty"`
}

// AssignmentPayload accompanies app_assigned and primary_app_assigned.
// Older clients emit the application under "primary_app"; use AssignedApp.
type AssignmentPayload struct {
	Persona          Persona `json:"persona,omitempty"`
	Goal             Goal    `json:"goal,omitempty"`
	App              App     `json:"app,omitempty"`
	PrimaryApp       App     `json:"primary_app,omitempty"`
	AssignmentReason string  `json:"assignment_reason,omitempty"`
}

// AssignedApp returns the application this assignment refers to, preferring
// the "app" key over the legacy "primary_app" key.
func (p AssignmentPayload) AssignedApp() App {
	if p.App != "" {
		return p.App
	}
	return p.PrimaryApp
}

// OnboardingPayload accompanies onboarding_viewed.
type OnboardingPayload struct {
	Screen string `json:"screen"`
}

// ChecklistPayload accompanies checklist_item_clicked.
type ChecklistPayload struct {
	ItemID       string `json:"item_id"`
	ItemCategory string `json:"item_category,omitempty"`
}

// FirstWinPayload accompanies first_win_started and first_win_completed.
type FirstWinPayload struct {
	App                App    `json:"app"`
	TimeToValueSeconds int    `json:"time_to_value_seconds,omitempty"`
	TaskType           string `json:"task_type,omitempty"`
}

// CrossActivationPayload accompanies cross_activation_prompt_shown,
// cross_activation_clicked, and second_app_activated.
type CrossActivationPayload struct {
	FromApp           App    `json:"from_app,omitempty"`
	ToApp             App    `json:"to_app,omitempty"`
	App               App    `json:"app,omitempty"`
	TriggerType       string `json:"trigger_type,omitempty"`
	DaysSinceFirstWin int    `json:"days_since_first_win,omitempty"`
}

// SessionPayload accompanies return_session and core_action.
type SessionPayload struct {
	DayOffset  int    `json:"day_offset,omitempty"`
	AppsUsed   []App  `json:"apps_used,omitempty"`
	App        App    `json:"app,omitempty"`
	ActionType string `json:"action_type,omitempty"`
}

// SupportPayload accompanies help_requested and error_occurred.
type SupportPayload struct {
	Screen       string `json:"screen,omitempty"`
	ErrorCode    string `json:"error_code,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
	HelpType     string `json:"help_type,omitempty"`
}

// EscapeHatchPayload accompanies escape_hatch_clicked. The escape is a
// negative signal attributed to FromApp, the application escaped from.
type EscapeHatchPayload struct {
	Persona       Persona `json:"persona,omitempty"`
	Goal          Goal    `json:"goal,omitempty"`
	FromApp       App     `json:"from_app"`
	ToApp         App     `json:"to_app,omitempty"`
	TriggerScreen string  `json:"trigger_screen,omitempty"`
}

func (SignupPayload) eventPayload()          {}
func (SurveyPayload) eventPayload()          {}
func (AssignmentPayload) eventPayload()      {}
func (OnboardingPayload) eventPayload()      {}
func (ChecklistPayload) eventPayload()       {}
func (FirstWinPayload) eventPayload()        {}
func (CrossActivationPayload) eventPayload() {}
func (SessionPayload) eventPayload()         {}
func (SupportPayload) eventPayload()         {}
func (EscapeHatchPayload) eventPayload()     {}

// DecodePayload unmarshals the raw payload into its typed variant. The
// switch is exhaustive over EventType: adding an event kind without a case
// here fails every consumer at this single point instead of silently
// producing an untyped map downstream.
func (e *Event) DecodePayload() (EventPayload, error) {
	raw := e.Payload
	if len(raw) == 0 {
		raw = json.RawMessage(`{}`)
	}

	decode := func(dst EventPayload) (EventPayload, error) {
		if err := json.Unmarshal(raw, dst); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", e.Type, err)
		}
		return dst, nil
	}

	switch e.Type {
	case EventSignupCompleted:
		return decode(&SignupPayload{})
	case EventSurveyStarted, EventSurveyCompleted:
		return decode(&SurveyPayload{})
	case EventAppAssigned, EventPrimaryAppAssigned:
		return decode(&AssignmentPayload{})
	case EventOnboardingViewed:
		return decode(&OnboardingPayload{})
	case EventChecklistItemClicked:
		return decode(&ChecklistPayload{})
	case EventFirstWinStarted, EventFirstWinCompleted:
		return decode(&FirstWinPayload{})
	case EventCrossActivationPromptShown, EventCrossActivationClicked, EventSecondAppActivated:
		return decode(&CrossActivationPayload{})
	case EventReturnSession, EventCoreAction:
		return decode(&SessionPayload{})
	case EventHelpRequested, EventErrorOccurred:
		return decode(&SupportPayload{})
	case EventEscapeHatchClicked:
		return decode(&EscapeHatchPayload{})
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEventType, e.Type)
	}
}
