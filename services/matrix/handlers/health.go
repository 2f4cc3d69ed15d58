// Copyright (C) 2025 Every Labs (eng@everylabs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package handlers implements the gin HTTP handlers for the matrix
// service: config management, optimization proposals, assignment queries,
// event ingestion, and significance computations.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/everylabs/matrixd/services/matrix/store"
)

// HealthCheck reports service liveness plus the active matrix version.
func HealthCheck(s *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":         "ok",
			"service":        "matrixd",
			"matrix_version": s.Version(),
			"matrix_source":  string(s.Source()),
		})
	}
}
