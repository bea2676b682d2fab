// aviation/speed.go
// Copyright(c) 2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// Package aviation holds the approach speed bands and the touchdown time
// estimates derived from them.
package aviation

import (
	"fmt"
	gomath "math"

	"github.com/mmp/arrivals/math"
	"github.com/mmp/arrivals/util"
)

// SpeedBand gives the legal speed range for distances at or beyond
// FloorNM and short of the floor of the preceding (farther) band.
type SpeedBand struct {
	FloorNM float64 `json:"floor_nm"`
	MinKts  float64 `json:"min_kts"`
	MaxKts  float64 `json:"max_kts"`
}

// SpeedBands is an ordered partition of [0, inf) by distance from the
// airport, outermost band first. The first band is unbounded above and
// the last band's floor is zero.
type SpeedBands []SpeedBand

// DefaultSpeedBands returns the approach speed schedule:
//
//	>= 100 nm   300-500 kt
//	50-100 nm   250-300 kt
//	15-50 nm    200-250 kt
//	5-15 nm     150-200 kt
//	0-5 nm      120-150 kt
func DefaultSpeedBands() SpeedBands {
	return SpeedBands{
		{FloorNM: 100, MinKts: 300, MaxKts: 500},
		{FloorNM: 50, MinKts: 250, MaxKts: 300},
		{FloorNM: 15, MinKts: 200, MaxKts: 250},
		{FloorNM: 5, MinKts: 150, MaxKts: 200},
		{FloorNM: 0, MinKts: 120, MaxKts: 150},
	}
}

func (sb SpeedBands) Validate(e *util.ErrorLogger) {
	e.Push("speed_bands")
	defer e.Pop()

	if len(sb) == 0 {
		e.ErrorString("at least one band must be specified")
		return
	}

	for i, b := range sb {
		e.Push(fmt.Sprintf("[%d]", i))
		if !math.IsFinite(b.FloorNM) || b.FloorNM < 0 {
			e.ErrorString("floor_nm %g must be a finite non-negative distance", b.FloorNM)
		}
		if i > 0 && b.FloorNM >= sb[i-1].FloorNM {
			e.ErrorString("floor_nm %g must be less than the preceding band's floor %g",
				b.FloorNM, sb[i-1].FloorNM)
		}
		if !(b.MinKts > 0) || gomath.IsInf(b.MinKts, 0) {
			e.ErrorString("min_kts %g must be positive and finite", b.MinKts)
		}
		if !(b.MaxKts >= b.MinKts) || gomath.IsInf(b.MaxKts, 0) {
			e.ErrorString("max_kts %g must be finite and at least min_kts %g", b.MaxKts, b.MinKts)
		}
		e.Pop()
	}

	if last := sb[len(sb)-1]; last.FloorNM != 0 {
		e.ErrorString("innermost band must start at 0 nm, not %g", last.FloorNM)
	}
}

// Ceiling returns the exclusive upper distance bound of the i'th band.
func (sb SpeedBands) Ceiling(i int) float64 {
	if i == 0 {
		return gomath.Inf(1)
	}
	return sb[i-1].FloorNM
}

// Index returns the index of the band whose [floor, ceiling) interval
// contains d. Distances that fall in no band (negative or NaN) are
// treated as being in the outermost band.
func (sb SpeedBands) Index(d float64) int {
	for i, b := range sb {
		if d >= b.FloorNM && d < sb.Ceiling(i) {
			return i
		}
	}
	return 0
}

// Limits returns the legal minimum and maximum speeds at distance d.
func (sb SpeedBands) Limits(d float64) (vmin, vmax float64) {
	b := sb[sb.Index(d)]
	return b.MinKts, b.MaxKts
}

func (sb SpeedBands) MaxSpeed(d float64) float64 {
	return sb[sb.Index(d)].MaxKts
}

// ClampSpeed restricts kts to the legal range at distance d.
func (sb SpeedBands) ClampSpeed(d, kts float64) float64 {
	vmin, vmax := sb.Limits(d)
	return math.Clamp(kts, vmin, vmax)
}

// KnotsToNMPerMinute converts a speed in knots to nautical miles per
// minute.
func KnotsToNMPerMinute(kts float64) float64 {
	return kts / 60
}
