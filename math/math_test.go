// math/math_test.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package math

import (
	"math"
	"testing"
)

func TestClamp(t *testing.T) {
	tests := []struct {
		x, lo, hi, want float64
	}{
		{5, 0, 10, 5},
		{-1, 0, 10, 0},
		{11, 0, 10, 10},
		{480, 300, 500, 480},
		{520, 300, 500, 500},
	}
	for _, tc := range tests {
		if got := Clamp(tc.x, tc.lo, tc.hi); got != tc.want {
			t.Errorf("Clamp(%g, %g, %g): got %g, want %g", tc.x, tc.lo, tc.hi, got, tc.want)
		}
	}
	if got := Clamp(7, 1, 3); got != 3 {
		t.Errorf("Clamp int: got %d, want 3", got)
	}
}

func TestMeanIgnoresNaN(t *testing.T) {
	s := []float64{1, math.NaN(), 3}
	if m := Mean(s); m != 2 {
		t.Errorf("Mean: got %g, want 2", m)
	}
	if m := Mean([]float64{math.NaN()}); !math.IsNaN(m) {
		t.Errorf("Mean of all-NaN: got %g, want NaN", m)
	}
	if m := Mean(nil); !math.IsNaN(m) {
		t.Errorf("Mean of empty: got %g, want NaN", m)
	}
}

func TestSampleStdDev(t *testing.T) {
	// Sample variance of {2,4,4,4,5,5,7,9} is 32/7.
	s := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	want := math.Sqrt(32. / 7.)
	if got := SampleStdDev(s); math.Abs(got-want) > 1e-12 {
		t.Errorf("SampleStdDev: got %g, want %g", got, want)
	}
	if got := SampleStdDev([]float64{3}); got != 0 {
		t.Errorf("SampleStdDev single value: got %g, want 0", got)
	}
}

func TestCI95(t *testing.T) {
	s := []float64{2, 4, 4, 4, 5, 5, 7, 9, math.NaN()}
	ci := CI95(s)
	if ci.N != 8 {
		t.Errorf("CI95 count: got %d, want 8", ci.N)
	}
	if ci.Mean != 5 {
		t.Errorf("CI95 mean: got %g, want 5", ci.Mean)
	}
	h := 1.96 * math.Sqrt(32./7.) / math.Sqrt(8)
	if math.Abs(ci.High-ci.Mean-h) > 1e-12 || math.Abs(ci.Mean-ci.Low-h) > 1e-12 {
		t.Errorf("CI95 half width: got [%g, %g], want +/- %g", ci.Low, ci.High, h)
	}

	empty := CI95(nil)
	if !math.IsNaN(empty.Mean) || !math.IsNaN(empty.Low) || !math.IsNaN(empty.High) {
		t.Errorf("CI95 of empty: got %+v, want NaNs", empty)
	}
}

func TestApproxEqual(t *testing.T) {
	if !ApproxEqual(1, 1+1e-9, 1e-6) {
		t.Errorf("expected approximately equal")
	}
	if ApproxEqual(1, 1.1, 1e-6) {
		t.Errorf("expected not equal")
	}
	if !ApproxEqual(math.Inf(1), math.Inf(1), 1e-6) {
		t.Errorf("expected +Inf == +Inf")
	}
	if IsFinite(math.Inf(1)) || IsFinite(math.NaN()) || !IsFinite(3) {
		t.Errorf("IsFinite mismatch")
	}
}
