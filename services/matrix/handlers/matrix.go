// Copyright (C) 2025 Every Labs (eng@everylabs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/everylabs/matrixd/services/matrix/datatypes"
	"github.com/everylabs/matrixd/services/matrix/heuristics"
	"github.com/everylabs/matrixd/services/matrix/store"
	"github.com/everylabs/matrixd/services/matrix/telemetry"
	"github.com/everylabs/matrixd/services/matrix/validation"
)

// maxBodyBytes caps accepted request bodies. A full config with metadata
// and overrides is a few KB.
const maxBodyBytes = 1 << 20

// GetMatrix returns the active config verbatim.
func GetMatrix(s *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, s.Load(c.Request.Context()))
	}
}

// SetMatrix validates and stores an externally submitted config. Invalid
// documents are rejected whole with the offending field named; nothing is
// partially applied. An absent source defaults to "api".
func SetMatrix(s *store.Store, m *telemetry.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
			return
		}

		cfg, verr := validateWithDefaultSource(body)
		if verr != nil {
			respondValidationError(c, verr)
			return
		}

		s.Set(cfg)
		if m != nil {
			m.ConfigUpdatesTotal.Add(c.Request.Context(), 1,
				metric.WithAttributes(attribute.String("source", string(cfg.Source))))
		}
		slog.Info("matrix config accepted", "version", cfg.Version, "source", string(cfg.Source))
		c.JSON(http.StatusOK, gin.H{"status": "ok", "version": cfg.Version})
	}
}

// ResetMatrix restores the packaged static default.
func ResetMatrix(s *store.Store, m *telemetry.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		cfg := s.Reset()
		if m != nil {
			m.ConfigUpdatesTotal.Add(c.Request.Context(), 1,
				metric.WithAttributes(attribute.String("source", string(datatypes.SourceDefault))))
		}
		slog.Info("matrix config reset to default", "version", cfg.Version)
		c.JSON(http.StatusOK, cfg)
	}
}

// GetMatrixSummary returns the aggregate health snapshot of the active
// config.
func GetMatrixSummary(s *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		cfg := s.Load(c.Request.Context())
		c.JSON(http.StatusOK, heuristics.Summarize(cfg))
	}
}

// validateWithDefaultSource decodes and validates a config document,
// defaulting an absent source to "api" before the schema check runs.
func validateWithDefaultSource(body []byte) (*datatypes.MatrixConfig, error) {
	var cfg datatypes.MatrixConfig
	if err := json.Unmarshal(body, &cfg); err != nil {
		return nil, &validation.ValidationError{Field: "body", Message: "not a valid config document: " + err.Error()}
	}
	if cfg.Source == "" {
		cfg.Source = datatypes.SourceAPI
	}
	if err := validation.Check(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func respondValidationError(c *gin.Context, err error) {
	var verr *validation.ValidationError
	if errors.As(err, &verr) {
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Message, "field": verr.Field})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}
