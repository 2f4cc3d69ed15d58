// Copyright (C) 2025 Every Labs (eng@everylabs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package store

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/everylabs/matrixd/services/matrix/datatypes"
)

func TestHTTPFetcherEmptyEndpoint(t *testing.T) {
	f := NewHTTPFetcher("")
	cfg, err := f.Fetch(context.Background())
	assert.NoError(t, err)
	assert.Nil(t, cfg)
}

func TestHTTPFetcherSuccess(t *testing.T) {
	want := datatypes.DefaultMatrixConfig(time.Now())
	want.Version = "3.1.4"
	want.Source = datatypes.SourceAPI

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		_ = json.NewEncoder(w).Encode(want)
	}))
	defer srv.Close()

	cfg, err := NewHTTPFetcher(srv.URL).Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "3.1.4", cfg.Version)
	assert.Equal(t, datatypes.SourceAPI, cfg.Source)
	assert.Len(t, cfg.PrimaryMatrix, 5)
}

func TestHTTPFetcherNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewHTTPFetcher(srv.URL).Fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestHTTPFetcherRejectsInvalidConfig(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Valid JSON, but the matrix is empty: totality fails.
		_, _ = w.Write([]byte(`{"version":"1.0.0","source":"api","primaryMatrix":{},"secondaryPreferences":{}}`))
	}))
	defer srv.Close()

	_, err := NewHTTPFetcher(srv.URL).Fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validate fetched matrix config")
}

func TestHTTPFetcherUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	_, err := NewHTTPFetcher(srv.URL).Fetch(context.Background())
	assert.Error(t, err)
}
