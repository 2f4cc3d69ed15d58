// Copyright (C) 2025 Every Labs (eng@everylabs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/everylabs/matrixd/services/matrix/datatypes"
)

// fakeClock is a settable Clock for exercising TTL behavior.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// stubFetcher returns a canned config or error and counts calls.
type stubFetcher struct {
	mu    sync.Mutex
	cfg   *datatypes.MatrixConfig
	err   error
	calls int
}

func (f *stubFetcher) Fetch(ctx context.Context) (*datatypes.MatrixConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.cfg, f.err
}

func (f *stubFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestLoadSeedsDefault(t *testing.T) {
	s := New(WithClock(newFakeClock()))
	cfg := s.Load(context.Background())
	require.NotNil(t, cfg)
	assert.Equal(t, datatypes.DefaultMatrixVersion, cfg.Version)
	assert.Equal(t, datatypes.SourceDefault, cfg.Source)
}

func TestLoadServesCacheWhileFresh(t *testing.T) {
	clock := newFakeClock()
	fetcher := &stubFetcher{err: errors.New("unreachable")}
	s := New(WithClock(clock), WithFetcher(fetcher))

	s.Load(context.Background())
	calls := fetcher.callCount()

	clock.Advance(DefaultCacheTTL / 2)
	s.Load(context.Background())
	assert.Equal(t, calls, fetcher.callCount(), "fresh cache must not hit the fetcher")

	clock.Advance(DefaultCacheTTL)
	s.Load(context.Background())
	assert.Greater(t, fetcher.callCount(), calls, "stale cache must re-resolve")
}

func TestLoadAdoptsFetchedConfig(t *testing.T) {
	clock := newFakeClock()
	remote := datatypes.DefaultMatrixConfig(clock.Now())
	remote.Version = "2.3.0"
	remote.Source = datatypes.SourceAPI
	fetcher := &stubFetcher{cfg: remote}
	s := New(WithClock(clock), WithFetcher(fetcher))

	cfg := s.Load(context.Background())
	assert.Equal(t, "2.3.0", cfg.Version)
	assert.Equal(t, datatypes.SourceAPI, cfg.Source)
}

func TestLoadFallsBackOnFetchError(t *testing.T) {
	fetcher := &stubFetcher{err: errors.New("boom")}
	s := New(WithClock(newFakeClock()), WithFetcher(fetcher))

	// Load never fails; a broken endpoint degrades to the packaged default.
	cfg := s.Load(context.Background())
	require.NotNil(t, cfg)
	assert.Equal(t, datatypes.SourceDefault, cfg.Source)
}

func TestSetStampsUpdatedAtAndClones(t *testing.T) {
	clock := newFakeClock()
	s := New(WithClock(clock))

	cfg := datatypes.DefaultMatrixConfig(clock.Now())
	cfg.Version = "1.1.0"
	s.Set(cfg)

	// Mutating the caller's copy after Set must not leak into the store.
	cfg.PrimaryMatrix[datatypes.PersonaFounder][datatypes.GoalWrite] = datatypes.MatrixCell{App: datatypes.AppCora}

	got := s.GetSync()
	assert.Equal(t, "1.1.0", got.Version)
	assert.Equal(t, datatypes.Timestamp(clock.Now()), got.UpdatedAt)
	assert.Equal(t, datatypes.AppSpiral, got.PrimaryMatrix[datatypes.PersonaFounder][datatypes.GoalWrite].App)
}

func TestGetSyncNeverTouchesFetcher(t *testing.T) {
	fetcher := &stubFetcher{err: errors.New("unreachable")}
	s := New(WithClock(newFakeClock()), WithFetcher(fetcher))

	cfg := s.GetSync()
	require.NotNil(t, cfg)
	assert.Zero(t, fetcher.callCount())
}

func TestInvalidateForcesReResolve(t *testing.T) {
	clock := newFakeClock()
	fetcher := &stubFetcher{}
	s := New(WithClock(clock), WithFetcher(fetcher))

	s.Load(context.Background())
	before := fetcher.callCount()

	s.Invalidate()
	s.Load(context.Background())
	assert.Greater(t, fetcher.callCount(), before)
}

func TestReset(t *testing.T) {
	clock := newFakeClock()
	s := New(WithClock(clock))

	custom := datatypes.DefaultMatrixConfig(clock.Now())
	custom.Version = "9.9.9"
	custom.Source = datatypes.SourceAPI
	s.Set(custom)
	require.Equal(t, "9.9.9", s.Version())

	got := s.Reset()
	assert.Equal(t, datatypes.DefaultMatrixVersion, got.Version)
	assert.Equal(t, datatypes.DefaultMatrixVersion, s.Version())
	assert.Equal(t, datatypes.SourceDefault, s.Source())
}

func TestPrimaryCell(t *testing.T) {
	cfg := datatypes.DefaultMatrixConfig(time.Now())

	cell, err := PrimaryCell(cfg, datatypes.PersonaWriter, datatypes.GoalWrite)
	require.NoError(t, err)
	assert.Equal(t, datatypes.AppSpiral, cell.App)

	_, err = PrimaryCell(cfg, "alien", datatypes.GoalWrite)
	assert.ErrorIs(t, err, ErrOutOfRange)

	_, err = PrimaryCell(cfg, datatypes.PersonaWriter, "sleep")
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestSecondaryApps(t *testing.T) {
	cfg := datatypes.DefaultMatrixConfig(time.Now())

	apps := SecondaryApps(cfg, datatypes.AppCora)
	assert.Equal(t, []datatypes.App{datatypes.AppSparkle, datatypes.AppSpiral, datatypes.AppMonologue}, apps)

	// The returned slice is a copy.
	apps[0] = datatypes.AppMonologue
	assert.Equal(t, datatypes.AppSparkle, cfg.SecondaryPreferences[datatypes.AppCora].Ordered[0])

	delete(cfg.SecondaryPreferences, datatypes.AppSpiral)
	assert.Nil(t, SecondaryApps(cfg, datatypes.AppSpiral))
}

func TestConcurrentReadsAndWrites(t *testing.T) {
	clock := newFakeClock()
	s := New(WithClock(clock))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = s.GetSync()
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				s.Set(datatypes.DefaultMatrixConfig(clock.Now()))
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, datatypes.DefaultMatrixVersion, s.Version())
}
