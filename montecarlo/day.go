// montecarlo/day.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// Package montecarlo runs many simulated days per arrival rate and
// summarizes congestion, delay, and diversions with confidence intervals.
package montecarlo

import (
	"log/slog"

	"github.com/mmp/arrivals/log"
	"github.com/mmp/arrivals/math"
	"github.com/mmp/arrivals/sim"
)

// DayResult holds the raw tallies from one simulated day.
type DayResult struct {
	Seed     int64
	Arrivals int
	Landed   int
	Diverted int

	// Aircraft-minutes spent in the active lane, and the subset of those
	// flown below the band maximum.
	ApproachMinutes  int
	CongestedMinutes int

	// Delay of each landed aircraft relative to an unimpeded flight.
	Delays []float64

	Ejections    int
	Reinsertions int
	GoArounds    int
}

func (r DayResult) CongestionRate() float64 {
	return math.SafeDiv(float64(r.CongestedMinutes), float64(r.ApproachMinutes))
}

// AverageDelay is NaN if nothing landed.
func (r DayResult) AverageDelay() float64 {
	return math.Mean(r.Delays)
}

func (r DayResult) DiversionRate() float64 {
	return math.SafeDiv(float64(r.Diverted), float64(r.Arrivals))
}

// RunDay simulates one day of config with the given seed.
func RunDay(config sim.Config, seed int64, lg *log.Logger) (DayResult, error) {
	config.Seed = seed
	s, err := sim.NewSim(config, lg)
	if err != nil {
		return DayResult{}, err
	}

	sub := s.Events().Subscribe()
	defer sub.Unsubscribe()

	r := DayResult{Seed: seed}
	err = s.Run(func(tick int) {
		active, congested := s.CongestionSample()
		r.ApproachMinutes += active
		r.CongestedMinutes += congested

		for _, ev := range sub.Get() {
			if ev.Type == sim.LandedEvent {
				r.Delays = append(r.Delays, ev.Delay)
			}
		}
	})
	if err != nil {
		return DayResult{}, err
	}

	r.Arrivals = s.Counters.Created
	r.Landed = s.Counters.Landed
	r.Diverted = s.Counters.Diverted
	r.Ejections = s.Counters.Ejections
	r.Reinsertions = s.Counters.Reinsertions
	r.GoArounds = s.Counters.GoArounds

	lg.Debug("simulated day", slog.Int64("seed", seed), slog.Float64("arrival_rate", config.ArrivalRate),
		slog.Int("arrivals", r.Arrivals), slog.Int("landed", r.Landed), slog.Int("diverted", r.Diverted))

	return r, nil
}
