// Copyright (C) 2025 Every Labs (eng@everylabs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package features

import (
	"sync"

	"github.com/everylabs/matrixd/services/matrix/datatypes"
)

// AcquisitionStore keeps per-session acquisition contexts. The referrer
// is only meaningful on the first page load of a session, so writes are
// first-wins: a stored context is never overwritten.
type AcquisitionStore struct {
	mu       sync.RWMutex
	sessions map[string]datatypes.AcquisitionContext
}

// NewAcquisitionStore creates an empty store.
func NewAcquisitionStore() *AcquisitionStore {
	return &AcquisitionStore{
		sessions: make(map[string]datatypes.AcquisitionContext),
	}
}

// CaptureOnce stores ctx for sessionID unless a context already exists.
// It returns the stored context, which is the original one when the
// write was a no-op.
func (s *AcquisitionStore) CaptureOnce(sessionID string, ctx datatypes.AcquisitionContext) datatypes.AcquisitionContext {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.sessions[sessionID]; ok {
		return existing
	}
	s.sessions[sessionID] = ctx
	return ctx
}

// Get returns the stored context for sessionID.
func (s *AcquisitionStore) Get(sessionID string) (datatypes.AcquisitionContext, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ctx, ok := s.sessions[sessionID]
	return ctx, ok
}

// Clear removes all stored sessions.
func (s *AcquisitionStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = make(map[string]datatypes.AcquisitionContext)
}
