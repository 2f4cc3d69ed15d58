// Copyright (C) 2025 Every Labs (eng@everylabs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/everylabs/matrixd/services/matrix/datatypes"
	"github.com/everylabs/matrixd/services/matrix/features"
	"github.com/everylabs/matrixd/services/matrix/resolver"
	"github.com/everylabs/matrixd/services/matrix/store"
	"github.com/everylabs/matrixd/services/matrix/telemetry"
)

// AssignmentResponse is the full routing answer for one user.
type AssignmentResponse struct {
	resolver.AssignmentContext

	// Variant is present when the caller supplied a user_id.
	Variant datatypes.Variant `json:"variant,omitempty"`

	// RecommendedApps is the control arm's two-app surface: primary plus
	// first secondary.
	RecommendedApps []datatypes.App `json:"recommendedApps"`
}

// GetAssignment resolves persona and goal query params to an assignment
// context. With a user_id it also buckets the user into an experiment arm;
// the User-Agent header feeds device extraction for event tagging.
func GetAssignment(r *resolver.Resolver, m *telemetry.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		persona := datatypes.Persona(c.Query("persona"))
		goal := datatypes.Goal(c.Query("goal"))

		ctx, err := r.AssignmentContext(c.Request.Context(), persona, goal)
		if err != nil {
			if errors.Is(err, store.ErrOutOfRange) {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		if ua := c.GetHeader("User-Agent"); ua != "" {
			device := features.ExtractDeviceInfo(ua)
			ctx.Device = &device
		}

		resp := AssignmentResponse{
			AssignmentContext: ctx,
			RecommendedApps:   []datatypes.App{ctx.App, ctx.SecondaryApp},
		}
		if userID := c.Query("user_id"); userID != "" {
			resp.Variant = resolver.Variant(userID)
		}

		if m != nil {
			m.AssignmentsTotal.Add(c.Request.Context(), 1, metric.WithAttributes(
				attribute.String("persona", string(persona)),
				attribute.String("goal", string(goal)),
				attribute.String("app", string(ctx.App)),
			))
		}
		c.JSON(http.StatusOK, resp)
	}
}
