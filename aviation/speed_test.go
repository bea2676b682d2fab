// aviation/speed_test.go
// Copyright(c) 2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package aviation

import (
	"math"
	"strings"
	"testing"

	"github.com/mmp/arrivals/util"
)

func TestSpeedBandLimits(t *testing.T) {
	sb := DefaultSpeedBands()
	tests := []struct {
		d          float64
		vmin, vmax float64
	}{
		{250, 300, 500},
		{100, 300, 500},
		{99.99, 250, 300},
		{50, 250, 300},
		{49.5, 200, 250},
		{15, 200, 250},
		{14.2, 150, 200},
		{5, 150, 200},
		{4.9, 120, 150},
		{0, 120, 150},
		{-3, 300, 500}, // matches no band
	}
	for _, tc := range tests {
		vmin, vmax := sb.Limits(tc.d)
		if vmin != tc.vmin || vmax != tc.vmax {
			t.Errorf("Limits(%g): got [%g, %g], want [%g, %g]", tc.d, vmin, vmax, tc.vmin, tc.vmax)
		}
	}

	if v := sb.ClampSpeed(30, 480); v != 250 {
		t.Errorf("ClampSpeed(30, 480): got %g, want 250", v)
	}
	if v := sb.ClampSpeed(30, 100); v != 200 {
		t.Errorf("ClampSpeed(30, 100): got %g, want 200", v)
	}
	if !math.IsInf(sb.Ceiling(0), 1) || sb.Ceiling(1) != 100 {
		t.Errorf("Ceiling mismatch")
	}
}

func TestSpeedBandValidate(t *testing.T) {
	var e util.ErrorLogger
	DefaultSpeedBands().Validate(&e)
	if e.HaveErrors() {
		t.Errorf("default bands: unexpected errors %s", e.String())
	}

	tests := []struct {
		name  string
		bands SpeedBands
		want  string
	}{
		{"empty", SpeedBands{}, "at least one band"},
		{"unordered", SpeedBands{{FloorNM: 10, MinKts: 100, MaxKts: 200}, {FloorNM: 20, MinKts: 100, MaxKts: 200},
			{FloorNM: 0, MinKts: 100, MaxKts: 200}}, "less than the preceding"},
		{"no zero", SpeedBands{{FloorNM: 10, MinKts: 100, MaxKts: 200}}, "must start at 0"},
		{"min>max", SpeedBands{{FloorNM: 0, MinKts: 300, MaxKts: 200}}, "at least min_kts"},
		{"zero speed", SpeedBands{{FloorNM: 0, MinKts: 0, MaxKts: 200}}, "must be positive"},
		{"nan", SpeedBands{{FloorNM: math.NaN(), MinKts: 100, MaxKts: 200}, {FloorNM: 0, MinKts: 100, MaxKts: 200}},
			"finite non-negative"},
	}
	for _, tc := range tests {
		var e util.ErrorLogger
		tc.bands.Validate(&e)
		if !e.HaveErrors() {
			t.Errorf("%s: expected validation error", tc.name)
		} else if !strings.Contains(e.String(), tc.want) {
			t.Errorf("%s: got %q, want it to mention %q", tc.name, e.String(), tc.want)
		}
	}
}

func TestMinutesToTouchdown(t *testing.T) {
	sb := DefaultSpeedBands()
	tests := []struct {
		d, kts float64
		want   float64
		tol    float64
	}{
		// Within the innermost band the given speed is flown all the way.
		{3, 150, 1.2, 1e-12},
		{3, 120, 1.5, 1e-12},
		// 20 nm at 300, then 35 nm at 250, 10 nm at 200, 5 nm at 150.
		{70, 300, 4 + 8.4 + 3 + 2, 1e-5},
		// Starting on a floor: the given speed covers 50-100, then the
		// same carried-forward schedule.
		{100, 300, 10 + 8.4 + 3 + 2, 1e-5},
		{100, 500, 6 + 8.4 + 3 + 2, 1e-5},
		// Beyond 100 nm, the given speed to 100 nm, then 300 kt.
		{110, 600, 1 + 10 + 8.4 + 3 + 2, 1e-5},
		{0, 300, 0, 0},
		{-2, 300, 0, 0},
	}
	for _, tc := range tests {
		got := sb.MinutesToTouchdown(tc.d, tc.kts)
		if math.Abs(got-tc.want) > tc.tol {
			t.Errorf("MinutesToTouchdown(%g, %g): got %.9f, want %.9f", tc.d, tc.kts, got, tc.want)
		}
	}

	if got := sb.MinutesToTouchdown(40, 0); !math.IsInf(got, 1) {
		t.Errorf("zero speed: got %g, want +Inf", got)
	}
	if got := sb.MinutesToTouchdown(40, -10); !math.IsInf(got, 1) {
		t.Errorf("negative speed: got %g, want +Inf", got)
	}
}

func TestMinutesToTouchdownMonotone(t *testing.T) {
	// Slower commanded speed never yields an earlier arrival, and a
	// farther aircraft at the same speed never arrives earlier.
	sb := DefaultSpeedBands()
	for d := 1.0; d <= 100; d += 3.7 {
		vmin, vmax := sb.Limits(d)
		fast, slow := sb.MinutesToTouchdown(d, vmax), sb.MinutesToTouchdown(d, vmin)
		if fast > slow {
			t.Errorf("d=%g: fast %g > slow %g", d, fast, slow)
		}
		if far := sb.MinutesToTouchdown(d+1, vmax); far < fast {
			t.Errorf("d=%g: farther aircraft arrives earlier (%g < %g)", d, far, fast)
		}
	}
}

func TestConstantSpeedMinutes(t *testing.T) {
	if got := ConstantSpeedMinutes(100, 300); got != 20 {
		t.Errorf("got %g, want 20", got)
	}
	if got := ConstantSpeedMinutes(100, 0); !math.IsInf(got, 1) {
		t.Errorf("zero speed: got %g, want +Inf", got)
	}
	if got := ConstantSpeedMinutes(0, 300); got != 0 {
		t.Errorf("zero distance: got %g, want 0", got)
	}
}

func TestEstimator(t *testing.T) {
	sb := DefaultSpeedBands()
	for _, m := range []ETAModel{BandedETA, ConstantETA, ""} {
		if est, err := sb.Estimator(m); err != nil || est == nil {
			t.Errorf("%q: unexpected error %v", m, err)
		}
	}
	if _, err := sb.Estimator("warp"); err == nil {
		t.Errorf("expected error for unknown model")
	}

	est, _ := sb.Estimator(ConstantETA)
	if got := est(50, 300); got != 10 {
		t.Errorf("constant estimator: got %g, want 10", got)
	}
}

func TestFreeFlowMinutes(t *testing.T) {
	sb := DefaultSpeedBands()
	// 1 minute at 500 kt, 9 at 300, 8 at 250, 3 at 200, then 3.333 nm at
	// 150 kt: 22 whole minutes plus 1/3.
	want := 22 + 1.0/3
	if got := sb.FreeFlowMinutes(100); math.Abs(got-want) > 1e-9 {
		t.Errorf("FreeFlowMinutes(100): got %.12f, want %.12f", got, want)
	}
	if got := sb.FreeFlowMinutes(2.5); math.Abs(got-1) > 1e-12 {
		t.Errorf("FreeFlowMinutes(2.5): got %g, want 1", got)
	}
	if got := sb.FreeFlowMinutes(0); got != 0 {
		t.Errorf("FreeFlowMinutes(0): got %g, want 0", got)
	}
}
