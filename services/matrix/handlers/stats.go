// Copyright (C) 2025 Every Labs (eng@everylabs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/everylabs/matrixd/services/matrix/stats"
	"github.com/everylabs/matrixd/services/matrix/telemetry"
)

// SampleSizeRequest asks how many users an experiment needs.
type SampleSizeRequest struct {
	BaselineRate        float64 `json:"baselineRate"`
	MinDetectableEffect float64 `json:"minDetectableEffect"`
	Power               float64 `json:"power,omitempty"`
	Alpha               float64 `json:"alpha,omitempty"`

	// DailySignups, when positive, adds an estimated duration in days.
	DailySignups float64 `json:"dailySignups,omitempty"`
}

// SampleSizeResponse reports the required sample and optional duration.
type SampleSizeResponse struct {
	PerVariant   int  `json:"perVariant"`
	Total        int  `json:"total"`
	DurationDays *int `json:"durationDays,omitempty"`
}

// SampleSize computes the required per-variant sample for a two-proportion
// test, optionally with the days needed at a given signup rate. Invalid
// arguments (rates outside (0,1), non-positive effect) fail fast with 400.
func SampleSize(m *telemetry.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req SampleSizeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if req.Power == 0 {
			req.Power = stats.DefaultPower
		}
		if req.Alpha == 0 {
			req.Alpha = stats.DefaultAlpha
		}

		perVariant, err := stats.RequiredSampleSize(req.BaselineRate, req.MinDetectableEffect, req.Power, req.Alpha)
		if err != nil {
			recordStats(c, m, "samplesize", "invalid")
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		resp := SampleSizeResponse{PerVariant: perVariant, Total: perVariant * 2}
		if req.DailySignups > 0 {
			days, err := stats.ExperimentDuration(perVariant, req.DailySignups)
			if err == nil {
				resp.DurationDays = &days
			}
		}

		recordStats(c, m, "samplesize", "ok")
		c.JSON(http.StatusOK, resp)
	}
}

// ProportionRequest compares conversion counts between arms.
type ProportionRequest struct {
	ControlN           int     `json:"controlN"`
	ControlSuccesses   int     `json:"controlSuccesses"`
	TreatmentN         int     `json:"treatmentN"`
	TreatmentSuccesses int     `json:"treatmentSuccesses"`
	Confidence         float64 `json:"confidence,omitempty"`
	MinSampleSize      int     `json:"minSampleSize,omitempty"`
}

// Proportion runs the two-proportion z-test. Data insufficiency is not an
// error: the result carries status insufficient_data with NaN bounds
// (serialized as null).
func Proportion(m *telemetry.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ProportionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if req.Confidence == 0 {
			req.Confidence = stats.DefaultConfidence
		}
		if req.MinSampleSize == 0 {
			req.MinSampleSize = stats.DefaultMinSampleSize
		}

		result := stats.ProportionSignificance(
			req.ControlN, req.ControlSuccesses,
			req.TreatmentN, req.TreatmentSuccesses,
			req.Confidence, req.MinSampleSize,
		)
		recordStats(c, m, "proportion", string(result.Status))
		c.JSON(http.StatusOK, sanitizeProportion(result))
	}
}

// ContinuousRequest compares a continuous metric between arms.
type ContinuousRequest struct {
	Control       []float64 `json:"control"`
	Treatment     []float64 `json:"treatment"`
	Confidence    float64   `json:"confidence,omitempty"`
	MinSampleSize int       `json:"minSampleSize,omitempty"`
}

// Continuous runs Welch's t-test on raw per-user values.
func Continuous(m *telemetry.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ContinuousRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if req.Confidence == 0 {
			req.Confidence = stats.DefaultConfidence
		}
		if req.MinSampleSize == 0 {
			req.MinSampleSize = stats.DefaultMinSampleSize
		}

		result := stats.ContinuousSignificance(req.Control, req.Treatment, req.Confidence, req.MinSampleSize)
		recordStats(c, m, "continuous", string(result.Status))
		c.JSON(http.StatusOK, sanitizeContinuous(result))
	}
}

func recordStats(c *gin.Context, m *telemetry.Metrics, kind, status string) {
	if m == nil {
		return
	}
	m.StatsRequestsTotal.Add(c.Request.Context(), 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("status", status),
	))
}
