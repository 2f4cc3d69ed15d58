// Copyright (C) 2025 Every Labs (eng@everylabs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"math"

	"github.com/everylabs/matrixd/services/matrix/stats"
)

// encoding/json rejects NaN, and the insufficient-data gate reports NaN
// interval bounds and p-value on purpose. These wire mirrors carry those
// as null instead.

// ProportionResponse is SignificanceResult with nullable numerics.
type ProportionResponse struct {
	ControlRate        float64          `json:"controlRate"`
	TreatmentRate      float64          `json:"treatmentRate"`
	AbsoluteDiff       float64          `json:"absoluteDiff"`
	RelativeLift       float64          `json:"relativeLift"`
	ConfidenceInterval nullableInterval `json:"confidenceInterval"`
	PValue             *float64         `json:"pValue"`
	Significant        bool             `json:"significant"`
	Status             stats.Status     `json:"status"`
}

// ContinuousResponse is ContinuousSignificanceResult with nullable
// numerics.
type ContinuousResponse struct {
	ControlMean        float64          `json:"controlMean"`
	TreatmentMean      float64          `json:"treatmentMean"`
	AbsoluteDiff       float64          `json:"absoluteDiff"`
	PercentChange      float64          `json:"percentChange"`
	ConfidenceInterval nullableInterval `json:"confidenceInterval"`
	PValue             *float64         `json:"pValue"`
	DegreesOfFreedom   *float64         `json:"degreesOfFreedom"`
	Significant        bool             `json:"significant"`
	Status             stats.Status     `json:"status"`
}

type nullableInterval struct {
	Lower *float64 `json:"lower"`
	Upper *float64 `json:"upper"`
}

func nullable(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func sanitizeProportion(r stats.SignificanceResult) ProportionResponse {
	return ProportionResponse{
		ControlRate:   r.ControlRate,
		TreatmentRate: r.TreatmentRate,
		AbsoluteDiff:  r.AbsoluteDiff,
		RelativeLift:  r.RelativeLift,
		ConfidenceInterval: nullableInterval{
			Lower: nullable(r.ConfidenceInterval.Lower),
			Upper: nullable(r.ConfidenceInterval.Upper),
		},
		PValue:      nullable(r.PValue),
		Significant: r.Significant,
		Status:      r.Status,
	}
}

func sanitizeContinuous(r stats.ContinuousSignificanceResult) ContinuousResponse {
	return ContinuousResponse{
		ControlMean:   r.ControlMean,
		TreatmentMean: r.TreatmentMean,
		AbsoluteDiff:  r.AbsoluteDiff,
		PercentChange: r.PercentChange,
		ConfidenceInterval: nullableInterval{
			Lower: nullable(r.ConfidenceInterval.Lower),
			Upper: nullable(r.ConfidenceInterval.Upper),
		},
		PValue:           nullable(r.PValue),
		DegreesOfFreedom: nullable(r.DegreesOfFreedom),
		Significant:      r.Significant,
		Status:           r.Status,
	}
}
