// aviation/eta.go
// Copyright(c) 2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package aviation

import (
	"fmt"
	gomath "math"
)

// boundaryNudge is the distance skipped, untimed, when a band-by-band
// integration lands exactly on a band floor.
const boundaryNudge = 1e-6

// Estimator returns the minutes to touchdown from distance d flying at
// kts knots.
type Estimator func(d, kts float64) float64

// ETAModel names an Estimator.
type ETAModel string

const (
	// BandedETA integrates across band boundaries; see
	// SpeedBands.MinutesToTouchdown.
	BandedETA ETAModel = "banded"
	// ConstantETA assumes the given speed all the way in.
	ConstantETA ETAModel = "constant"
)

// Estimator returns the estimator for the given model.
func (sb SpeedBands) Estimator(model ETAModel) (Estimator, error) {
	switch model {
	case BandedETA, "":
		return sb.MinutesToTouchdown, nil
	case ConstantETA:
		return ConstantSpeedMinutes, nil
	default:
		return nil, fmt.Errorf("%q: unknown ETA model", model)
	}
}

// ConstantSpeedMinutes returns d/(kts/60); +Inf if kts is not positive.
func ConstantSpeedMinutes(d, kts float64) float64 {
	if kts <= 0 {
		return gomath.Inf(1)
	}
	if d <= 0 {
		return 0
	}
	return d / KnotsToNMPerMinute(kts)
}

// MinutesToTouchdown integrates flight time band by band. The given speed
// is flown down to the floor of the band containing d; from there on, each
// band is flown at the minimum speed of the band just left, which is the
// entry speed carried into the next, slower band. Landing exactly on a
// floor skips the boundaryNudge distance into the next band without
// timing it.
func (sb SpeedBands) MinutesToTouchdown(d, kts float64) float64 {
	if gomath.IsNaN(d) || gomath.IsNaN(kts) {
		return gomath.NaN()
	}
	if kts <= 0 {
		return gomath.Inf(1)
	}

	var t float64
	v := kts
	for d > 0 {
		i := sb.Index(d)
		span := d - sb[i].FloorNM
		if span <= 0 {
			d -= boundaryNudge
			continue
		}
		t += span / KnotsToNMPerMinute(v)
		d = sb[i].FloorNM
		v = sb[i].MinKts
	}
	return t
}

// FreeFlowMinutes returns the unimpeded flight time from the given entry
// distance as the simulation would fly it: whole-minute steps at the
// maximum speed of the band occupied at the start of each minute, with
// the final partial minute interpolated.
func (sb SpeedBands) FreeFlowMinutes(entry float64) float64 {
	var t float64
	d := entry
	for d > 0 {
		adv := KnotsToNMPerMinute(sb.MaxSpeed(d))
		if d-adv <= 0 {
			t += d / adv
			break
		}
		d -= adv
		t++
	}
	return t
}
