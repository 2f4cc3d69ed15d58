// Copyright (C) 2025 Every Labs (eng@everylabs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package stats implements the hypothesis-testing calculators behind the
// experiment dashboard: normal-distribution approximations, two-proportion
// z-tests, Welch's t-test, and sample-size planning.
//
// Everything here is pure and deterministic. Data insufficiency is a
// first-class result status, not an error; errors are reserved for
// programmer-input precondition violations (probabilities outside (0,1),
// non-positive effect sizes).
package stats

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidArgument marks a statistical precondition violation. These are
// programmer-input errors and are not recovered.
var ErrInvalidArgument = errors.New("invalid argument")

// Default test parameters.
const (
	DefaultPower         = 0.80
	DefaultAlpha         = 0.05
	DefaultConfidence    = 0.95
	DefaultMinSampleSize = 30
)

// Status communicates how a significance result should be read.
type Status string

const (
	StatusSignificant      Status = "significant"
	StatusNotSignificant   Status = "not_significant"
	StatusInsufficientData Status = "insufficient_data"
)

// ConfidenceInterval is a two-sided interval for a difference estimate.
// Bounds are NaN when the result is insufficient_data.
type ConfidenceInterval struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// NormalCDF evaluates the standard normal cumulative distribution function
// using the Abramowitz and Stegun polynomial approximation (formula 7.1.26,
// maximum absolute error ~1.5e-7).
func NormalCDF(x float64) float64 {
	const (
		a1 = 0.254829592
		a2 = -0.284496736
		a3 = 1.421413741
		a4 = -1.453152027
		a5 = 1.061405429
		p  = 0.3275911
	)

	sign := 1.0
	if x < 0 {
		sign = -1.0
	}
	x = math.Abs(x) / math.Sqrt2

	t := 1.0 / (1.0 + p*x)
	y := 1.0 - ((((a5*t+a4)*t+a3)*t+a2)*t+a1)*t*math.Exp(-x*x)

	return 0.5 * (1.0 + sign*y)
}

// Acklam's rational approximation coefficients for the inverse normal CDF.
var (
	aqCoef = [6]float64{
		-3.969683028665376e1, 2.209460984245205e2, -2.759285104469687e2,
		1.383577518672690e2, -3.066479806614716e1, 2.506628277459239,
	}
	bqCoef = [5]float64{
		-5.447609879822406e1, 1.615858368580409e2, -1.556989798598866e2,
		6.680131188771972e1, -1.328068155288572e1,
	}
	cqCoef = [6]float64{
		-7.784894002430293e-3, -3.223964580411365e-1, -2.400758277161838,
		-2.549732539343734, 4.374664141464968, 2.938163982698783,
	}
	dqCoef = [4]float64{
		7.784695709041462e-3, 3.224671290700398e-1, 2.445134137142996,
		3.754408661907416,
	}
)

// NormalQuantile evaluates the inverse standard normal CDF using Acklam's
// rational approximation. Valid for p in (0,1) exclusive; out-of-range
// inputs fail with ErrInvalidArgument.
func NormalQuantile(p float64) (float64, error) {
	if p <= 0 || p >= 1 {
		return 0, fmt.Errorf("%w: p must be in (0,1), got %v", ErrInvalidArgument, p)
	}

	const pLow = 0.02425
	const pHigh = 1 - pLow

	a, b, c, d := aqCoef, bqCoef, cqCoef, dqCoef

	switch {
	case p < pLow:
		q := math.Sqrt(-2 * math.Log(p))
		return (((((c[0]*q+c[1])*q+c[2])*q+c[3])*q+c[4])*q + c[5]) /
			((((d[0]*q+d[1])*q+d[2])*q+d[3])*q + 1), nil
	case p <= pHigh:
		q := p - 0.5
		r := q * q
		return (((((a[0]*r+a[1])*r+a[2])*r+a[3])*r+a[4])*r + a[5]) * q /
			(((((b[0]*r+b[1])*r+b[2])*r+b[3])*r+b[4])*r + 1), nil
	default:
		q := math.Sqrt(-2 * math.Log(1-p))
		return -(((((c[0]*q+c[1])*q+c[2])*q+c[3])*q+c[4])*q + c[5]) /
			((((d[0]*q+d[1])*q+d[2])*q+d[3])*q + 1), nil
	}
}

// RequiredSampleSize returns the per-variant sample size needed to detect a
// relative lift of minDetectableEffect over baselineRate with the given
// power and two-tailed alpha, using the pooled-variance two-proportion
// z-test formula, rounded up.
//
// Fails with ErrInvalidArgument when baselineRate is outside (0,1), the
// effect is non-positive, or the implied treatment rate reaches 100%.
func RequiredSampleSize(baselineRate, minDetectableEffect, power, alpha float64) (int, error) {
	if baselineRate <= 0 || baselineRate >= 1 {
		return 0, fmt.Errorf("%w: baseline rate must be in (0,1), got %v", ErrInvalidArgument, baselineRate)
	}
	if minDetectableEffect <= 0 {
		return 0, fmt.Errorf("%w: minimum detectable effect must be positive, got %v", ErrInvalidArgument, minDetectableEffect)
	}

	treatmentRate := baselineRate * (1 + minDetectableEffect)
	if treatmentRate >= 1 {
		return 0, fmt.Errorf("%w: treatment rate %v would exceed 100%%", ErrInvalidArgument, treatmentRate)
	}

	pooled := (baselineRate + treatmentRate) / 2

	zAlpha, err := NormalQuantile(1 - alpha/2)
	if err != nil {
		return 0, err
	}
	zBeta, err := NormalQuantile(power)
	if err != nil {
		return 0, err
	}

	numerator := 2 * pooled * (1 - pooled) * math.Pow(zAlpha+zBeta, 2)
	denominator := math.Pow(treatmentRate-baselineRate, 2)

	return int(math.Ceil(numerator / denominator)), nil
}

// ExperimentDuration returns the number of days needed to collect the given
// per-variant sample across both arms at the given daily signup rate.
func ExperimentDuration(samplePerVariant int, dailySignups float64) (int, error) {
	if dailySignups <= 0 {
		return 0, fmt.Errorf("%w: daily signups must be positive, got %v", ErrInvalidArgument, dailySignups)
	}
	total := float64(samplePerVariant) * 2
	return int(math.Ceil(total / dailySignups)), nil
}

// SignificanceResult reports a two-proportion comparison.
type SignificanceResult struct {
	ControlRate        float64            `json:"controlRate"`
	TreatmentRate      float64            `json:"treatmentRate"`
	AbsoluteDiff       float64            `json:"absoluteDiff"`
	RelativeLift       float64            `json:"relativeLift"`
	ConfidenceInterval ConfidenceInterval `json:"confidenceInterval"`
	PValue             float64            `json:"pValue"`
	Significant        bool               `json:"significant"`
	Status             Status             `json:"status"`
}

// ProportionSignificance compares conversion proportions between control and
// treatment arms.
//
// The p-value uses the pooled standard error (variance under the null);
// the confidence interval uses the unpooled standard error (variance of the
// observed estimate). The asymmetry is standard practice: the CI describes
// the estimate while the p-value tests the null.
//
// Below minSampleSize in either arm the result is insufficient_data with
// NaN interval bounds and p-value; rates are still reported (0 when the
// denominator is 0).
func ProportionSignificance(controlN, controlSuccesses, treatmentN, treatmentSuccesses int, confidence float64, minSampleSize int) SignificanceResult {
	controlRate := 0.0
	if controlN > 0 {
		controlRate = float64(controlSuccesses) / float64(controlN)
	}
	treatmentRate := 0.0
	if treatmentN > 0 {
		treatmentRate = float64(treatmentSuccesses) / float64(treatmentN)
	}
	absoluteDiff := treatmentRate - controlRate
	relativeLift := 0.0
	if controlRate > 0 {
		relativeLift = absoluteDiff / controlRate
	}

	if controlN < minSampleSize || treatmentN < minSampleSize {
		return SignificanceResult{
			ControlRate:        controlRate,
			TreatmentRate:      treatmentRate,
			AbsoluteDiff:       absoluteDiff,
			RelativeLift:       relativeLift,
			ConfidenceInterval: ConfidenceInterval{Lower: math.NaN(), Upper: math.NaN()},
			PValue:             math.NaN(),
			Status:             StatusInsufficientData,
		}
	}

	cn := float64(controlN)
	tn := float64(treatmentN)

	pooled := float64(controlSuccesses+treatmentSuccesses) / (cn + tn)
	se := math.Sqrt(pooled * (1 - pooled) * (1/cn + 1/tn))

	z := 0.0
	if se > 0 {
		z = absoluteDiff / se
	}
	pValue := 2 * (1 - NormalCDF(math.Abs(z)))

	seUnpooled := math.Sqrt(controlRate*(1-controlRate)/cn + treatmentRate*(1-treatmentRate)/tn)
	// Confidence is validated by the gate above the quantile's domain: any
	// confidence in (0,1) keeps the argument in (0.5, 1).
	zCritical, _ := NormalQuantile(1 - (1-confidence)/2)
	margin := zCritical * seUnpooled

	alpha := 1 - confidence
	significant := pValue < alpha

	status := StatusNotSignificant
	if significant {
		status = StatusSignificant
	}

	return SignificanceResult{
		ControlRate:        controlRate,
		TreatmentRate:      treatmentRate,
		AbsoluteDiff:       absoluteDiff,
		RelativeLift:       relativeLift,
		ConfidenceInterval: ConfidenceInterval{Lower: absoluteDiff - margin, Upper: absoluteDiff + margin},
		PValue:             pValue,
		Significant:        significant,
		Status:             status,
	}
}

// ContinuousSignificanceResult reports a Welch's t-test comparison of a
// continuous metric (e.g. time to first value).
type ContinuousSignificanceResult struct {
	ControlMean        float64            `json:"controlMean"`
	TreatmentMean      float64            `json:"treatmentMean"`
	AbsoluteDiff       float64            `json:"absoluteDiff"`
	PercentChange      float64            `json:"percentChange"`
	ConfidenceInterval ConfidenceInterval `json:"confidenceInterval"`
	PValue             float64            `json:"pValue"`
	DegreesOfFreedom   float64            `json:"degreesOfFreedom"`
	Significant        bool               `json:"significant"`
	Status             Status             `json:"status"`
}

// ContinuousSignificance compares a continuous metric between arms using
// Welch's t-test (separate variances per arm).
//
// The Welch-Satterthwaite degrees of freedom are computed and returned, but
// the p-value is approximated with the standard normal CDF rather than the
// t-distribution. With the minSampleSize gate at 30+ per arm the normal
// approximation is adequate; it understates p slightly for small N.
func ContinuousSignificance(controlValues, treatmentValues []float64, confidence float64, minSampleSize int) ContinuousSignificanceResult {
	controlN := len(controlValues)
	treatmentN := len(treatmentValues)

	controlMean := mean(controlValues)
	treatmentMean := mean(treatmentValues)
	absoluteDiff := treatmentMean - controlMean
	percentChange := 0.0
	if controlMean != 0 {
		percentChange = absoluteDiff / controlMean
	}

	if controlN < minSampleSize || treatmentN < minSampleSize {
		return ContinuousSignificanceResult{
			ControlMean:        controlMean,
			TreatmentMean:      treatmentMean,
			AbsoluteDiff:       absoluteDiff,
			PercentChange:      percentChange,
			ConfidenceInterval: ConfidenceInterval{Lower: math.NaN(), Upper: math.NaN()},
			PValue:             math.NaN(),
			Status:             StatusInsufficientData,
		}
	}

	controlVar := sampleVariance(controlValues, controlMean)
	treatmentVar := sampleVariance(treatmentValues, treatmentMean)

	cn := float64(controlN)
	tn := float64(treatmentN)

	se := math.Sqrt(controlVar/cn + treatmentVar/tn)
	t := 0.0
	if se > 0 {
		t = absoluteDiff / se
	}

	// Welch-Satterthwaite degrees of freedom.
	num := math.Pow(controlVar/cn+treatmentVar/tn, 2)
	denom := math.Pow(controlVar/cn, 2)/(cn-1) + math.Pow(treatmentVar/tn, 2)/(tn-1)
	df := 1.0
	if denom > 0 {
		df = num / denom
	}

	pValue := 2 * (1 - NormalCDF(math.Abs(t)))

	zCritical, _ := NormalQuantile(1 - (1-confidence)/2)
	margin := zCritical * se

	alpha := 1 - confidence
	significant := pValue < alpha

	status := StatusNotSignificant
	if significant {
		status = StatusSignificant
	}

	return ContinuousSignificanceResult{
		ControlMean:        controlMean,
		TreatmentMean:      treatmentMean,
		AbsoluteDiff:       absoluteDiff,
		PercentChange:      percentChange,
		ConfidenceInterval: ConfidenceInterval{Lower: absoluteDiff - margin, Upper: absoluteDiff + margin},
		PValue:             pValue,
		DegreesOfFreedom:   df,
		Significant:        significant,
		Status:             status,
	}
}

// mean returns the arithmetic mean, 0 for an empty slice. The zero default
// is safe because every caller gates on minSampleSize before relying on it.
func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// sampleVariance returns the Bessel-corrected sample variance, 0 for fewer
// than two values.
func sampleVariance(values []float64, m float64) float64 {
	if len(values) < 2 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		d := v - m
		sum += d * d
	}
	return sum / float64(len(values)-1)
}
