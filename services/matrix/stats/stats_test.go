// Copyright (C) 2025 Every Labs (eng@everylabs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package stats

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalCDF(t *testing.T) {
	tests := []struct {
		name string
		x    float64
		want float64
		tol  float64
	}{
		{"zero", 0, 0.5, 1e-7},
		{"one sigma", 1, 0.8413, 1e-3},
		{"two sigma", 2, 0.9772, 1e-3},
		{"minus one sigma", -1, 0.1587, 1e-3},
		{"far left tail", -6, 0, 1e-4},
		{"far right tail", 6, 1, 1e-4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, NormalCDF(tt.x), tt.tol)
		})
	}
}

func TestNormalCDFSymmetry(t *testing.T) {
	for _, x := range []float64{0.1, 0.5, 1, 1.96, 3} {
		assert.InDelta(t, 1.0, NormalCDF(x)+NormalCDF(-x), 1e-6, "x=%v", x)
	}
}

func TestNormalQuantile(t *testing.T) {
	t.Run("known values", func(t *testing.T) {
		q, err := NormalQuantile(0.975)
		require.NoError(t, err)
		assert.InDelta(t, 1.9600, q, 1e-3)

		q, err = NormalQuantile(0.5)
		require.NoError(t, err)
		assert.InDelta(t, 0, q, 1e-6)

		q, err = NormalQuantile(0.025)
		require.NoError(t, err)
		assert.InDelta(t, -1.9600, q, 1e-3)
	})

	t.Run("rejects out-of-range probabilities", func(t *testing.T) {
		for _, p := range []float64{0, 1, -0.1, 1.5} {
			_, err := NormalQuantile(p)
			assert.ErrorIs(t, err, ErrInvalidArgument, "p=%v", p)
		}
	})
}

func TestNormalRoundTrip(t *testing.T) {
	// CDF(Quantile(p)) must recover p across the supported range.
	for p := 0.001; p < 0.999; p += 0.007 {
		q, err := NormalQuantile(p)
		require.NoError(t, err)
		assert.InDelta(t, p, NormalCDF(q), 1e-4, "p=%v", p)
	}
}

func TestRequiredSampleSize(t *testing.T) {
	t.Run("positive and plausible", func(t *testing.T) {
		n, err := RequiredSampleSize(0.24, 0.2, DefaultPower, DefaultAlpha)
		require.NoError(t, err)
		assert.Greater(t, n, 0)
		// ~0.24 vs ~0.288 at 80%/5% needs on the order of a thousand per arm.
		assert.Greater(t, n, 500)
		assert.Less(t, n, 3000)
	})

	t.Run("doubling the effect shrinks the sample", func(t *testing.T) {
		small, err := RequiredSampleSize(0.2, 0.1, DefaultPower, DefaultAlpha)
		require.NoError(t, err)
		large, err := RequiredSampleSize(0.2, 0.2, DefaultPower, DefaultAlpha)
		require.NoError(t, err)
		assert.Less(t, large, small)
	})

	t.Run("invalid arguments fail fast", func(t *testing.T) {
		cases := []struct {
			name               string
			baseline, mde      float64
			power, alpha       float64
		}{
			{"zero baseline", 0, 0.2, DefaultPower, DefaultAlpha},
			{"baseline one", 1, 0.2, DefaultPower, DefaultAlpha},
			{"zero effect", 0.2, 0, DefaultPower, DefaultAlpha},
			{"treatment rate above one", 0.9, 0.5, DefaultPower, DefaultAlpha},
		}
		for _, tt := range cases {
			t.Run(tt.name, func(t *testing.T) {
				_, err := RequiredSampleSize(tt.baseline, tt.mde, tt.power, tt.alpha)
				assert.ErrorIs(t, err, ErrInvalidArgument)
			})
		}
	})
}

func TestExperimentDuration(t *testing.T) {
	days, err := ExperimentDuration(1000, 500)
	require.NoError(t, err)
	assert.Equal(t, 4, days)

	days, err = ExperimentDuration(100, 1000)
	require.NoError(t, err)
	assert.Equal(t, 1, days)

	_, err = ExperimentDuration(100, 0)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestProportionSignificanceInsufficientData(t *testing.T) {
	// Below the gate in either arm: insufficient_data with NaN bounds,
	// regardless of how extreme the counts look.
	r := ProportionSignificance(10, 9, 10, 1, DefaultConfidence, DefaultMinSampleSize)
	assert.Equal(t, StatusInsufficientData, r.Status)
	assert.True(t, math.IsNaN(r.PValue))
	assert.True(t, math.IsNaN(r.ConfidenceInterval.Lower))
	assert.True(t, math.IsNaN(r.ConfidenceInterval.Upper))
	assert.False(t, r.Significant)

	r = ProportionSignificance(1000, 500, 10, 1, DefaultConfidence, DefaultMinSampleSize)
	assert.Equal(t, StatusInsufficientData, r.Status)
}

func TestProportionSignificanceIdenticalRates(t *testing.T) {
	r := ProportionSignificance(100, 50, 100, 50, DefaultConfidence, DefaultMinSampleSize)
	assert.Equal(t, StatusNotSignificant, r.Status)
	assert.InDelta(t, 0, r.AbsoluteDiff, 1e-12)
	assert.InDelta(t, 1, r.PValue, 1e-6)
	assert.False(t, r.Significant)
}

func TestProportionSignificanceClearEffect(t *testing.T) {
	// 20% vs 30% at n=1000 per arm is decisively significant.
	r := ProportionSignificance(1000, 200, 1000, 300, DefaultConfidence, DefaultMinSampleSize)
	assert.Equal(t, StatusSignificant, r.Status)
	assert.True(t, r.Significant)
	assert.Less(t, r.PValue, 0.001)
	assert.InDelta(t, 0.1, r.AbsoluteDiff, 1e-12)
	assert.InDelta(t, 0.5, r.RelativeLift, 1e-12)

	// CI brackets the observed difference and excludes zero.
	assert.Greater(t, r.ConfidenceInterval.Lower, 0.0)
	assert.Less(t, r.ConfidenceInterval.Lower, r.AbsoluteDiff)
	assert.Greater(t, r.ConfidenceInterval.Upper, r.AbsoluteDiff)
}

func TestProportionSignificanceRatesWithZeroDenominator(t *testing.T) {
	r := ProportionSignificance(0, 0, 0, 0, DefaultConfidence, DefaultMinSampleSize)
	assert.Equal(t, StatusInsufficientData, r.Status)
	assert.Zero(t, r.ControlRate)
	assert.Zero(t, r.TreatmentRate)
}

func TestContinuousSignificance(t *testing.T) {
	t.Run("insufficient data", func(t *testing.T) {
		r := ContinuousSignificance([]float64{1, 2, 3}, []float64{4, 5, 6}, DefaultConfidence, DefaultMinSampleSize)
		assert.Equal(t, StatusInsufficientData, r.Status)
		assert.True(t, math.IsNaN(r.PValue))
	})

	t.Run("clear separation", func(t *testing.T) {
		control := make([]float64, 60)
		treatment := make([]float64, 60)
		for i := range control {
			control[i] = 100 + float64(i%7)
			treatment[i] = 60 + float64(i%7)
		}
		r := ContinuousSignificance(control, treatment, DefaultConfidence, DefaultMinSampleSize)
		assert.Equal(t, StatusSignificant, r.Status)
		assert.Less(t, r.PValue, 0.001)
		assert.Less(t, r.AbsoluteDiff, 0.0)
		assert.Greater(t, r.DegreesOfFreedom, 0.0)
	})

	t.Run("identical samples", func(t *testing.T) {
		values := make([]float64, 40)
		for i := range values {
			values[i] = 10 + float64(i%5)
		}
		r := ContinuousSignificance(values, values, DefaultConfidence, DefaultMinSampleSize)
		assert.Equal(t, StatusNotSignificant, r.Status)
		assert.InDelta(t, 0, r.AbsoluteDiff, 1e-12)
		assert.InDelta(t, 1, r.PValue, 1e-6)
	})
}
