// sim/control.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package sim

import (
	"log/slog"
	"slices"

	"github.com/mmp/arrivals/math"
)

// SeparationController assigns speeds to the active lane once per tick,
// ejecting to the held lane any aircraft that cannot be separated from
// its leader. Decisions are made against the state at the start of the
// tick, before any aircraft has moved.
type SeparationController interface {
	Control(s *Sim, tick int)
}

func NewController(config Config) SeparationController {
	ordering := config.EffectiveOrdering()
	switch config.Controller {
	case IterativeController:
		return &Iterative{Ordering: ordering}
	case MeteringController:
		return &Metering{Ordering: ordering, Targets: config.Metering}
	default:
		return &SinglePass{Ordering: ordering}
	}
}

// snapshot is an aircraft's position and commanded speed at tick start.
type snapshot struct {
	DistanceNM float64
	SpeedKts   float64
}

func (s *Sim) takeSnapshot() map[AircraftID]snapshot {
	snap := make(map[AircraftID]snapshot, len(s.Lanes.Active))
	for _, id := range s.Lanes.Active {
		ac := s.Aircraft[id]
		snap[id] = snapshot{DistanceNM: ac.DistanceNM, SpeedKts: ac.SpeedKts}
	}
	return snap
}

// sequence orders the active lane from the snapshot and assigns leaders.
func (s *Sim) sequence(ordering Ordering, snap map[AircraftID]snapshot) {
	if ordering == OrderByDistance {
		s.Lanes.ReorderActive(func(id AircraftID) float64 { return snap[id].DistanceNM })
	} else {
		s.Lanes.ReorderActive(func(id AircraftID) float64 {
			return s.ETA(snap[id].DistanceNM, snap[id].SpeedKts)
		})
	}
}

///////////////////////////////////////////////////////////////////////////
// SinglePass

// SinglePass is the reference controller: each follower flies its band
// maximum unless that would bring it within the danger threshold of its
// leader, in which case it slows to a fixed step below the leader's
// speed, or is ejected if that is below its band minimum.
type SinglePass struct {
	Ordering Ordering
}

func (c *SinglePass) Control(s *Sim, tick int) {
	snap := s.takeSnapshot()
	s.sequence(c.Ordering, snap)

	for _, id := range slices.Clone(s.Lanes.Active) {
		ac := s.Aircraft[id]
		d := snap[id].DistanceNM
		vmin, vmax := s.Bands.Limits(d)

		if !ac.HasLeader() {
			ac.SpeedKts = vmax
			continue
		}

		lead := snap[ac.LeaderID]
		gap := s.ETA(d, vmax) - s.ETA(lead.DistanceNM, lead.SpeedKts)
		if gap >= s.Config.DangerSeparationMinutes {
			ac.SpeedKts = vmax
			continue
		}

		if v := min(vmax, lead.SpeedKts-s.Config.SlowdownStepKts); v >= vmin {
			ac.SpeedKts = v
		} else {
			s.eject(ac, tick, ac.LeaderID, gap)
			s.Lanes.Relink()
		}
	}
}

///////////////////////////////////////////////////////////////////////////
// Iterative

// Iterative repeatedly sweeps the sequence, computing for each follower
// the exact speed that puts it the minimum separation behind its
// leader's current estimate, until no speed changes or the iteration
// limit is reached.
type Iterative struct {
	Ordering Ordering
}

func (c *Iterative) Control(s *Sim, tick int) {
	const eps = math.Epsilon

	snap := s.takeSnapshot()
	s.sequence(c.Ordering, snap)

	prev := make(map[AircraftID]float64, len(snap))
	for id, sn := range snap {
		prev[id] = sn.SpeedKts
	}
	cur := make(map[AircraftID]float64, len(snap))

	converged := false
	for range s.Config.MaxIterations {
		clear(cur)
		for id, v := range prev {
			cur[id] = v
		}

		changed, ejected := false, false
		for i, id := range s.Lanes.Active {
			d := snap[id].DistanceNM
			vmin, vmax := s.Bands.Limits(d)

			target := vmax
			if i > 0 {
				lead := s.Lanes.Active[i-1]
				leadETA := s.ETA(snap[lead].DistanceNM, max(eps, cur[lead]))
				myETA := s.ETA(d, max(eps, cur[id]))

				if minETA := leadETA + s.Config.MinSeparationMinutes; myETA < minETA-eps {
					needed := d / max(eps, minETA) * 60
					if needed < vmin-eps {
						s.eject(s.Aircraft[id], tick, lead, myETA-leadETA)
						delete(cur, id)
						ejected = true
						break
					}
					target = s.Bands.ClampSpeed(d, needed)
				}
			}

			if !math.ApproxEqual(target, cur[id], eps) {
				cur[id] = target
				changed = true
			}
		}

		if ejected {
			s.Lanes.Relink()
			prev, cur = cur, prev
			continue
		}
		if !changed {
			converged = true
			break
		}
		prev, cur = cur, prev
	}

	if !converged {
		// The last sweep's speeds are in prev.
		cur = prev
		s.Counters.NonConverged++
		if !s.warnedIters {
			s.warnedIters = true
			s.lg.Warn("iterative control did not converge", slog.Int("tick", tick),
				slog.Int("max_iterations", s.Config.MaxIterations),
				slog.Int("active", len(s.Lanes.Active)))
		}
	}

	for _, id := range s.Lanes.Active {
		s.Aircraft[id].SpeedKts = cur[id]
	}
}

///////////////////////////////////////////////////////////////////////////
// Metering

// Metering reacts to danger like SinglePass but otherwise meters each
// follower toward a distance-dependent comfort gap behind its leader
// before the gap becomes dangerous.
type Metering struct {
	Ordering Ordering
	Targets  MeteringConfig
}

func (c *Metering) Control(s *Sim, tick int) {
	snap := s.takeSnapshot()
	s.sequence(c.Ordering, snap)

	for _, id := range slices.Clone(s.Lanes.Active) {
		ac := s.Aircraft[id]
		d := snap[id].DistanceNM
		vmin, vmax := s.Bands.Limits(d)

		if !ac.HasLeader() {
			ac.SpeedKts = vmax
			continue
		}

		// Danger is judged at the speeds flown into this tick; the metering
		// prediction assumes the follower would otherwise go to vmax.
		lead := snap[ac.LeaderID]
		leadETA := s.ETA(lead.DistanceNM, lead.SpeedKts)
		gap := s.ETA(d, snap[id].SpeedKts) - leadETA

		if gap < s.Config.DangerSeparationMinutes {
			if v := min(vmax, lead.SpeedKts-s.Config.SlowdownStepKts); v >= vmin {
				ac.SpeedKts = v
			} else {
				s.eject(ac, tick, ac.LeaderID, gap)
				s.Lanes.Relink()
			}
			continue
		}

		target := c.Targets.TargetGap(d)
		if predicted := s.ETA(d, vmax) - leadETA; predicted < target+c.Targets.AnticipationMinutes {
			if tt := leadETA + target; tt <= 0 {
				ac.SpeedKts = vmax
			} else {
				ac.SpeedKts = s.Bands.ClampSpeed(d, d/tt*60)
			}
		} else {
			ac.SpeedKts = vmax
		}
	}
}
