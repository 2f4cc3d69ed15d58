// Copyright (C) 2025 Every Labs (eng@everylabs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package store owns the active MatrixConfig: a TTL-cached, mutex-guarded
// single source of truth with a layered resolution order (cache, external
// API, packaged default) and explicit set/invalidate semantics.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/everylabs/matrixd/pkg/logging"
	"github.com/everylabs/matrixd/services/matrix/datatypes"
)

// ErrOutOfRange marks a lookup with a persona or goal outside the fixed
// enumerations. Unreachable through the typed API surface, but the contract
// holds for callers constructing values from external input.
var ErrOutOfRange = errors.New("out of range")

// DefaultCacheTTL is how long a loaded config is served before the store
// re-resolves against the external endpoint.
const DefaultCacheTTL = 5 * time.Minute

// Fetcher retrieves a matrix config from an external source. A nil config
// with a nil error means no source is configured.
type Fetcher interface {
	Fetch(ctx context.Context) (*datatypes.MatrixConfig, error)
}

// Store is the single source of truth for the active MatrixConfig.
//
// Reads hand out deep clones so callers can never mutate the cached
// document; Set is the only mutation path. All methods are safe for
// concurrent use. Last write wins when proposals race: there is no merge.
type Store struct {
	mu       sync.RWMutex
	cached   *datatypes.MatrixConfig
	cachedAt time.Time

	ttl     time.Duration
	clock   Clock
	fetcher Fetcher
	logger  *logging.Logger
}

// Option customizes a Store.
type Option func(*Store)

// WithTTL overrides the cache TTL. Primarily for tests.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) { s.ttl = ttl }
}

// WithClock injects a clock. Primarily for tests.
func WithClock(clock Clock) Option {
	return func(s *Store) { s.clock = clock }
}

// WithFetcher sets the external config source consulted on cache misses.
func WithFetcher(f Fetcher) Option {
	return func(s *Store) { s.fetcher = f }
}

// WithLogger sets the logger used for fetch-fallback warnings.
func WithLogger(l *logging.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// New creates an empty Store. The first read seeds the cache with the
// packaged default.
func New(opts ...Option) *Store {
	s := &Store{
		ttl:    DefaultCacheTTL,
		clock:  SystemClock{},
		logger: logging.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load resolves the active config: cached value while fresh, then the
// external endpoint, then the packaged default.
//
// Load never fails. Fetch errors (network, timeout, validation) are logged
// at Warn and recovered by falling back, so callers need no failure branch
// for this path.
func (s *Store) Load(ctx context.Context) *datatypes.MatrixConfig {
	now := s.clock.Now()

	s.mu.RLock()
	if s.cached != nil && now.Sub(s.cachedAt) < s.ttl {
		defer s.mu.RUnlock()
		return s.cached.Clone()
	}
	s.mu.RUnlock()

	if s.fetcher != nil {
		cfg, err := s.fetcher.Fetch(ctx)
		switch {
		case err != nil:
			s.logger.Warn("matrix config fetch failed, falling back to default",
				"error", err.Error(),
			)
		case cfg != nil:
			s.mu.Lock()
			s.cached = cfg
			s.cachedAt = s.clock.Now()
			s.mu.Unlock()
			return cfg.Clone()
		}
	}

	return s.seedDefault()
}

// GetSync returns the cached config without touching the network, seeding
// the cache with the packaged default when empty. Never fails.
func (s *Store) GetSync() *datatypes.MatrixConfig {
	s.mu.RLock()
	if s.cached != nil {
		defer s.mu.RUnlock()
		return s.cached.Clone()
	}
	s.mu.RUnlock()

	return s.seedDefault()
}

// Set overwrites the cached config and refreshes the cache timestamp. This
// is the only mutation path; there are no partial updates.
func (s *Store) Set(cfg *datatypes.MatrixConfig) {
	now := s.clock.Now()
	stored := cfg.Clone()
	stored.UpdatedAt = datatypes.Timestamp(now)

	s.mu.Lock()
	s.cached = stored
	s.cachedAt = now
	s.mu.Unlock()

	s.logger.Info("matrix config updated",
		"version", stored.Version,
		"source", string(stored.Source),
	)
}

// Invalidate clears the cache, forcing the next Load to re-resolve.
func (s *Store) Invalidate() {
	s.mu.Lock()
	s.cached = nil
	s.cachedAt = time.Time{}
	s.mu.Unlock()
}

// Reset replaces the active config with the packaged default.
func (s *Store) Reset() *datatypes.MatrixConfig {
	cfg := datatypes.DefaultMatrixConfig(s.clock.Now())
	s.Set(cfg)
	return cfg
}

// Version returns the active config's version string.
func (s *Store) Version() string {
	return s.GetSync().Version
}

// Source returns the active config's provenance tag.
func (s *Store) Source() datatypes.MatrixSource {
	return s.GetSync().Source
}

func (s *Store) seedDefault() *datatypes.MatrixConfig {
	now := s.clock.Now()
	cfg := datatypes.DefaultMatrixConfig(now)

	s.mu.Lock()
	s.cached = cfg
	s.cachedAt = now
	s.mu.Unlock()

	return cfg.Clone()
}

// PrimaryCell is a pure lookup of the routing decision for (persona, goal)
// in the given config. Fails with ErrOutOfRange when the persona or goal is
// not among the fixed enumerations.
func PrimaryCell(cfg *datatypes.MatrixConfig, persona datatypes.Persona, goal datatypes.Goal) (datatypes.MatrixCell, error) {
	if !datatypes.ValidPersona(persona) {
		return datatypes.MatrixCell{}, fmt.Errorf("%w: persona %q", ErrOutOfRange, persona)
	}
	if !datatypes.ValidGoal(goal) {
		return datatypes.MatrixCell{}, fmt.Errorf("%w: goal %q", ErrOutOfRange, goal)
	}
	cell, ok := cfg.Cell(persona, goal)
	if !ok {
		return datatypes.MatrixCell{}, fmt.Errorf("%w: no cell for %s/%s", ErrOutOfRange, persona, goal)
	}
	return cell, nil
}

// SecondaryApps returns the ordered fallback list for app in the given
// config, or an empty list when the config has no entry.
func SecondaryApps(cfg *datatypes.MatrixConfig, app datatypes.App) []datatypes.App {
	prefs, ok := cfg.SecondaryPreferences[app]
	if !ok {
		return nil
	}
	out := make([]datatypes.App, len(prefs.Ordered))
	copy(out, prefs.Ordered)
	return out
}
