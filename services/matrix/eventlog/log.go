// Copyright (C) 2025 Every Labs (eng@everylabs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package eventlog is the in-memory analytics event store feeding the
// optimizer and the significance dashboard. Append-only with an explicit
// Clear; persistence is out of scope for the demo deployment.
package eventlog

import (
	"sync"

	"github.com/google/uuid"

	"github.com/everylabs/matrixd/services/matrix/datatypes"
)

// Log is a mutex-guarded append-only event list. Safe for concurrent use.
type Log struct {
	mu     sync.RWMutex
	events []datatypes.Event
}

// New creates an empty Log.
func New() *Log {
	return &Log{}
}

// Append stores an event, assigning an event ID when the client sent none,
// and returns the stored copy.
func (l *Log) Append(e datatypes.Event) datatypes.Event {
	if e.EventID == "" {
		e.EventID = uuid.NewString()
	}

	l.mu.Lock()
	l.events = append(l.events, e)
	l.mu.Unlock()
	return e
}

// All returns a copy of the stored events in append order.
func (l *Log) All() []datatypes.Event {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]datatypes.Event, len(l.events))
	copy(out, l.events)
	return out
}

// Len returns the number of stored events.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.events)
}

// Clear drops all stored events.
func (l *Log) Clear() {
	l.mu.Lock()
	l.events = nil
	l.mu.Unlock()
}
