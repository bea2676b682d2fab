// math/stats.go
// Copyright(c) 2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package math

import (
	gomath "math"
)

// Z95 is the two-sided normal quantile for a 95% confidence interval.
const Z95 = 1.96

// Interval is a symmetric confidence interval around Mean.
type Interval struct {
	Mean float64 `json:"mean"`
	Low  float64 `json:"low"`
	High float64 `json:"high"`
	N    int     `json:"n"`
}

func finite(s []float64) []float64 {
	var f []float64
	for _, v := range s {
		if !gomath.IsNaN(v) {
			f = append(f, v)
		}
	}
	return f
}

// Mean returns the mean of the values in s, ignoring NaNs. NaN is
// returned if there are no values.
func Mean(s []float64) float64 {
	f := finite(s)
	if len(f) == 0 {
		return gomath.NaN()
	}
	var sum float64
	for _, v := range f {
		sum += v
	}
	return sum / float64(len(f))
}

// SampleStdDev returns the sample (n-1) standard deviation of s, ignoring
// NaNs. It is zero when fewer than two values are available.
func SampleStdDev(s []float64) float64 {
	f := finite(s)
	if len(f) < 2 {
		return 0
	}
	m := Mean(f)
	var ss float64
	for _, v := range f {
		ss += Sqr(v - m)
	}
	return gomath.Sqrt(ss / float64(len(f)-1))
}

// CI95 returns the mean of s with a normal-approximation 95% confidence
// interval. NaN values are dropped first; with no values all fields are
// NaN.
func CI95(s []float64) Interval {
	f := finite(s)
	if len(f) == 0 {
		nan := gomath.NaN()
		return Interval{Mean: nan, Low: nan, High: nan}
	}
	m := Mean(f)
	h := Z95 * SampleStdDev(f) / gomath.Sqrt(float64(len(f)))
	return Interval{Mean: m, Low: m - h, High: m + h, N: len(f)}
}

// SafeDiv returns a/b, or NaN when b is zero.
func SafeDiv(a, b float64) float64 {
	if b == 0 {
		return gomath.NaN()
	}
	return a / b
}
