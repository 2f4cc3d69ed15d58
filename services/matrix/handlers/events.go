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
	"github.com/everylabs/matrixd/services/matrix/eventlog"
	"github.com/everylabs/matrixd/services/matrix/telemetry"
)

// PostEvent appends one analytics event to the log. The event type must be
// known and the payload must decode for that type; user_id and variant are
// required. A missing event_id gets a server-generated uuid.
func PostEvent(log *eventlog.Log, m *telemetry.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		var event datatypes.Event
		if err := c.ShouldBindJSON(&event); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event body"})
			return
		}
		if event.UserID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
			return
		}
		if !datatypes.ValidVariant(event.Variant) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "variant must be control or treatment"})
			return
		}
		if _, err := event.DecodePayload(); err != nil {
			if errors.Is(err, datatypes.ErrUnknownEventType) {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		stored := log.Append(event)
		if m != nil {
			m.EventsIngestedTotal.Add(c.Request.Context(), 1,
				metric.WithAttributes(attribute.String("type", string(event.Type))))
		}
		c.JSON(http.StatusCreated, gin.H{"status": "ok", "event_id": stored.EventID})
	}
}

// CountEvents returns the number of stored events.
func CountEvents(log *eventlog.Log) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"count": log.Len()})
	}
}

// ClearEvents drops the event log.
func ClearEvents(log *eventlog.Log) gin.HandlerFunc {
	return func(c *gin.Context) {
		cleared := log.Len()
		log.Clear()
		c.JSON(http.StatusOK, gin.H{"status": "ok", "cleared": cleared})
	}
}
