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
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/everylabs/matrixd/services/matrix/datatypes"
	"github.com/everylabs/matrixd/services/matrix/validation"
)

// FetchTimeout bounds the external config request so a slow endpoint never
// blocks an assignment path for more than this.
const FetchTimeout = 2 * time.Second

// maxConfigBytes caps the accepted response size; a full 20-cell config with
// metadata and overrides is a few KB.
const maxConfigBytes = 1 << 20

// HTTPFetcher retrieves a MatrixConfig from a remote endpoint with a short
// timeout and schema validation.
type HTTPFetcher struct {
	endpoint string
	client   *http.Client
}

// NewHTTPFetcher creates a fetcher for the given endpoint. An empty
// endpoint yields a fetcher that reports no source configured.
func NewHTTPFetcher(endpoint string) *HTTPFetcher {
	return &HTTPFetcher{
		endpoint: endpoint,
		client:   &http.Client{Timeout: FetchTimeout},
	}
}

// Fetch retrieves and validates the remote config. Returns (nil, nil) when
// no endpoint is configured.
func (f *HTTPFetcher) Fetch(ctx context.Context) (*datatypes.MatrixConfig, error) {
	if f.endpoint == "" {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, FetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build matrix config request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch matrix config: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("matrix config endpoint returned %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxConfigBytes))
	if err != nil {
		return nil, fmt.Errorf("read matrix config response: %w", err)
	}

	var raw json.RawMessage = body
	cfg, err := validation.ValidateConfig(raw)
	if err != nil {
		return nil, fmt.Errorf("validate fetched matrix config: %w", err)
	}
	return cfg, nil
}
