// Copyright (C) 2025 Every Labs (eng@everylabs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/everylabs/matrixd/services/matrix/datatypes"
	"github.com/everylabs/matrixd/services/matrix/eventlog"
	"github.com/everylabs/matrixd/services/matrix/heuristics"
	"github.com/everylabs/matrixd/services/matrix/store"
	"github.com/everylabs/matrixd/services/matrix/telemetry"
)

// OptimizeRequest selects the weighting policy for a proposal run.
type OptimizeRequest struct {
	Heuristic datatypes.HeuristicType `json:"heuristic"`
}

// OptimizeResponse carries a proposal and its review material. Nothing is
// committed; applying is a separate call.
type OptimizeResponse struct {
	Proposal *datatypes.MatrixConfig  `json:"proposal"`
	Diffs    []heuristics.MatrixDiff  `json:"diffs"`
	Summary  heuristics.MatrixSummary `json:"summary"`
}

// Optimize aggregates the event log under the requested heuristic and
// returns the proposal with cell diffs for operator review. An absent
// heuristic defaults to escape_minimizing.
func Optimize(opt *heuristics.Optimizer, log *eventlog.Log, s *store.Store, m *telemetry.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req OptimizeRequest
		if err := c.ShouldBindJSON(&req); err != nil && err != io.EOF {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if req.Heuristic == "" {
			req.Heuristic = datatypes.HeuristicEscapeMinimizing
		}

		current := s.GetSync()
		start := time.Now()
		proposal, err := opt.ComputeOptimizedMatrix(log.All(), req.Heuristic)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		if m != nil {
			attrs := metric.WithAttributes(attribute.String("heuristic", string(req.Heuristic)))
			m.OptimizeRunsTotal.Add(c.Request.Context(), 1, attrs)
			m.OptimizeDuration.Record(c.Request.Context(), time.Since(start).Seconds(), attrs)
		}

		c.JSON(http.StatusOK, OptimizeResponse{
			Proposal: proposal,
			Diffs:    heuristics.CompareMatrices(current, proposal),
			Summary:  heuristics.Summarize(proposal),
		})
	}
}

// ApplyProposal validates a proposal config and commits it as the active
// config. Last write wins when proposals race; there is no merge.
func ApplyProposal(s *store.Store, m *telemetry.Metrics) gin.HandlerFunc {
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
		slog.Info("optimization proposal applied",
			"version", cfg.Version,
			"proposal_id", cfg.ProposalID,
			"heuristic", string(cfg.Heuristic),
		)
		c.JSON(http.StatusOK, gin.H{"status": "ok", "version": cfg.Version})
	}
}
