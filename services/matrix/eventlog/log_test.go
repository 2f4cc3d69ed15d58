// Copyright (C) 2025 Every Labs (eng@everylabs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package eventlog

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/everylabs/matrixd/services/matrix/datatypes"
)

func TestAppendAssignsEventID(t *testing.T) {
	l := New()

	stored := l.Append(datatypes.Event{UserID: "u1", Type: datatypes.EventSignupCompleted})
	require.NotEmpty(t, stored.EventID)
	_, err := uuid.Parse(stored.EventID)
	assert.NoError(t, err)

	// Client-supplied IDs are kept.
	stored = l.Append(datatypes.Event{EventID: "evt-7", UserID: "u2", Type: datatypes.EventSignupCompleted})
	assert.Equal(t, "evt-7", stored.EventID)

	assert.Equal(t, 2, l.Len())
}

func TestAllReturnsCopyInOrder(t *testing.T) {
	l := New()
	l.Append(datatypes.Event{UserID: "u1", Type: datatypes.EventSurveyStarted})
	l.Append(datatypes.Event{UserID: "u2", Type: datatypes.EventSurveyCompleted})

	all := l.All()
	require.Len(t, all, 2)
	assert.Equal(t, "u1", all[0].UserID)
	assert.Equal(t, "u2", all[1].UserID)

	// Mutating the snapshot must not reach the log.
	all[0].UserID = "hacked"
	assert.Equal(t, "u1", l.All()[0].UserID)
}

func TestClear(t *testing.T) {
	l := New()
	l.Append(datatypes.Event{UserID: "u1", Type: datatypes.EventSignupCompleted})
	l.Clear()
	assert.Zero(t, l.Len())
	assert.Empty(t, l.All())
}

func TestConcurrentAppend(t *testing.T) {
	l := New()
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				l.Append(datatypes.Event{UserID: "u", Type: datatypes.EventCoreAction})
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1000, l.Len())
}
