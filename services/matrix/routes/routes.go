// Copyright (C) 2025 Every Labs (eng@everylabs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/everylabs/matrixd/services/matrix/eventlog"
	"github.com/everylabs/matrixd/services/matrix/handlers"
	"github.com/everylabs/matrixd/services/matrix/heuristics"
	"github.com/everylabs/matrixd/services/matrix/resolver"
	"github.com/everylabs/matrixd/services/matrix/store"
	"github.com/everylabs/matrixd/services/matrix/telemetry"
)

// Deps bundles the shared components the HTTP surface serves.
type Deps struct {
	Store     *store.Store
	Events    *eventlog.Log
	Optimizer *heuristics.Optimizer
	Resolver  *resolver.Resolver

	// Metrics may be nil when telemetry is disabled.
	Metrics *telemetry.Metrics
}

// SetupRoutes registers all matrixd endpoints on the router.
func SetupRoutes(router *gin.Engine, deps Deps) {
	router.GET("/health", handlers.HealthCheck(deps.Store))

	if h := telemetry.MetricsHandler(); h != nil {
		router.GET("/metrics", gin.WrapH(h))
	}

	// API version 1 group
	v1 := router.Group("/v1")
	{
		matrix := v1.Group("/matrix")
		{
			matrix.GET("", handlers.GetMatrix(deps.Store))
			matrix.POST("", handlers.SetMatrix(deps.Store, deps.Metrics))
			matrix.DELETE("", handlers.ResetMatrix(deps.Store, deps.Metrics))
			matrix.GET("/summary", handlers.GetMatrixSummary(deps.Store))
			matrix.POST("/optimize", handlers.Optimize(deps.Optimizer, deps.Events, deps.Store, deps.Metrics))
			matrix.POST("/optimize/apply", handlers.ApplyProposal(deps.Store, deps.Metrics))
		}

		v1.GET("/assignment", handlers.GetAssignment(deps.Resolver, deps.Metrics))

		events := v1.Group("/events")
		{
			events.POST("", handlers.PostEvent(deps.Events, deps.Metrics))
			events.DELETE("", handlers.ClearEvents(deps.Events))
			events.GET("/count", handlers.CountEvents(deps.Events))
		}

		statsGroup := v1.Group("/stats")
		{
			statsGroup.POST("/samplesize", handlers.SampleSize(deps.Metrics))
			statsGroup.POST("/proportion", handlers.Proportion(deps.Metrics))
			statsGroup.POST("/continuous", handlers.Continuous(deps.Metrics))
		}
	}
}
