// sim/scenario.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package sim

import (
	"log/slog"
	"slices"

	"github.com/mmp/arrivals/rand"
)

// Scenario hooks let disruptions such as runway closures or go-arounds
// intervene at fixed points of a tick without the controller knowing
// about them.
type Scenario interface {
	// Admit is called for each new arrival once it is in the active lane.
	Admit(s *Sim, ac *Aircraft, tick int)
	// BeforeControl runs after arrivals and before separation control.
	BeforeControl(s *Sim, tick int)
	// CanReinsert may veto reinsertion of a held aircraft this tick.
	CanReinsert(s *Sim, ac *Aircraft, tick int) bool
	// RunwayOpen reports whether aircraft may touch down this tick.
	RunwayOpen(s *Sim, tick int) bool
}

// NewScenario returns the scenarios enabled in the configuration.
func NewScenario(config Config) Scenario {
	var sc Scenarios
	if config.Closure != nil {
		sc = append(sc, &RunwayClosure{Config: *config.Closure})
	}
	if config.GoAround != nil {
		sc = append(sc, NewGoAround(*config.GoAround, config.Seed))
	}
	if len(sc) == 0 {
		return Nominal{}
	}
	if len(sc) == 1 {
		return sc[0]
	}
	return sc
}

// Nominal is a day without disruptions.
type Nominal struct{}

func (Nominal) Admit(*Sim, *Aircraft, int)            {}
func (Nominal) BeforeControl(*Sim, int)               {}
func (Nominal) CanReinsert(*Sim, *Aircraft, int) bool { return true }
func (Nominal) RunwayOpen(*Sim, int) bool             { return true }

// Scenarios runs several scenarios in order. Vetoes from any of them
// apply.
type Scenarios []Scenario

func (sc Scenarios) Admit(s *Sim, ac *Aircraft, tick int) {
	for _, c := range sc {
		if s.Lanes.LaneOf(ac.ID) != LaneActive {
			return
		}
		c.Admit(s, ac, tick)
	}
}

func (sc Scenarios) BeforeControl(s *Sim, tick int) {
	for _, c := range sc {
		c.BeforeControl(s, tick)
	}
}

func (sc Scenarios) CanReinsert(s *Sim, ac *Aircraft, tick int) bool {
	for _, c := range sc {
		if !c.CanReinsert(s, ac, tick) {
			return false
		}
	}
	return true
}

func (sc Scenarios) RunwayOpen(s *Sim, tick int) bool {
	for _, c := range sc {
		if !c.RunwayOpen(s, tick) {
			return false
		}
	}
	return true
}

///////////////////////////////////////////////////////////////////////////
// RunwayClosure

// RunwayClosure closes the runway for a window of minutes. Aircraft that
// would reach it before it reopens are held outbound instead.
type RunwayClosure struct {
	Config ClosureConfig
}

func (rc *RunwayClosure) fastETA(s *Sim, ac *Aircraft) float64 {
	return s.ETA(ac.DistanceNM, s.Bands.MaxSpeed(ac.DistanceNM))
}

func (rc *RunwayClosure) Admit(s *Sim, ac *Aircraft, tick int) {
	if !rc.Config.Closed(tick) {
		return
	}
	if float64(tick)+rc.fastETA(s, ac) < float64(rc.Config.ReopenMinute()) {
		s.hold(ac, tick, StatusHeld, Event{Type: HeldAtEntryEvent})
	}
}

func (rc *RunwayClosure) BeforeControl(s *Sim, tick int) {
	if !rc.Config.Closed(tick) {
		return
	}
	remaining := float64(rc.Config.ReopenMinute() - tick)
	for _, id := range slices.Clone(s.Lanes.Active) {
		ac := s.Aircraft[id]
		if eta := rc.fastETA(s, ac); eta < remaining-1e-6 {
			s.Counters.ClosureHolds++
			s.lg.Debug("holding for closure", slog.Any("aircraft", ac), slog.Float64("eta", eta),
				slog.Float64("remaining", remaining))
			s.hold(ac, tick, StatusHeld, Event{Type: ClosureHoldEvent, GapMinutes: eta - remaining})
		}
	}
}

func (rc *RunwayClosure) CanReinsert(s *Sim, ac *Aircraft, tick int) bool {
	if !rc.Config.Closed(tick) {
		return true
	}
	return float64(tick)+rc.fastETA(s, ac) >= float64(rc.Config.ReopenMinute())-1e-6
}

func (rc *RunwayClosure) RunwayOpen(s *Sim, tick int) bool {
	return !rc.Config.Closed(tick)
}

///////////////////////////////////////////////////////////////////////////
// GoAround

// GoAround makes each aircraft about to touch down abort its approach
// with a fixed probability. Draws come from a stream of their own so
// the arrival sequence is the same with and without go-arounds.
type GoAround struct {
	Config GoAroundConfig
	rand   *rand.Rand
}

func NewGoAround(config GoAroundConfig, seed int64) *GoAround {
	return &GoAround{
		Config: config,
		rand:   rand.New(seed ^ 0x5eed60a1),
	}
}

func (g *GoAround) Admit(*Sim, *Aircraft, int) {}

func (g *GoAround) BeforeControl(s *Sim, tick int) {
	for _, id := range slices.Clone(s.Lanes.Active) {
		ac := s.Aircraft[id]
		if ac.GoAroundChecked || ac.DistanceNM-ac.SpeedKts/60 > 0 {
			continue
		}
		ac.GoAroundChecked = true
		if !g.rand.Bernoulli(g.Config.Probability) {
			continue
		}

		s.Counters.GoArounds++
		s.lg.Debug("go-around", slog.Any("aircraft", ac), slog.Int("tick", tick))
		s.hold(ac, tick, StatusGoAround, Event{Type: GoAroundEvent})
	}
}

func (g *GoAround) CanReinsert(s *Sim, ac *Aircraft, tick int) bool {
	return ac.Status != StatusGoAround || ac.DistanceNM > g.Config.MinReinsertDistanceNM
}

func (g *GoAround) RunwayOpen(*Sim, int) bool { return true }
