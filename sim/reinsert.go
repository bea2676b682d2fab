// sim/reinsert.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package sim

import (
	"cmp"
	gomath "math"
	"slices"

	"github.com/mmp/arrivals/util"
)

// ReinsertionPolicy decides the order in which held aircraft are offered
// a slot in the active lane. All policies share the same gap search.
type ReinsertionPolicy interface {
	Candidates(s *Sim) []AircraftID
}

func NewReinsertionPolicy(kind ReinsertionKind) ReinsertionPolicy {
	if kind == ReinsertRisk {
		return RiskPriority{}
	}
	return FIFO{}
}

// FIFO services held aircraft in the order they entered the held lane.
type FIFO struct{}

func (FIFO) Candidates(s *Sim) []AircraftID {
	return util.DuplicateSlice(s.Lanes.Held)
}

// RiskPriority services the aircraft closest to diverting first, i.e.
// by descending distance from the runway.
type RiskPriority struct{}

func (RiskPriority) Candidates(s *Sim) []AircraftID {
	ids := util.DuplicateSlice(s.Lanes.Held)
	slices.SortStableFunc(ids, func(a, b AircraftID) int {
		return cmp.Compare(s.Aircraft[b].DistanceNM, s.Aircraft[a].DistanceNM)
	})
	return ids
}

const reinsertEps = 1e-9

type agendaEntry struct {
	id  AircraftID
	eta float64
}

// slot is a window of touchdown times between two sequenced aircraft;
// lead or trail is zero at the open ends.
type slot struct {
	lo, hi      float64
	lead, trail agendaEntry
}

// reinsert offers each eligible held aircraft the first slot in the
// active sequence where it can touch down at least the minimum
// separation from both neighbours within its speed range.
func (s *Sim) reinsert(tick int) {
	candidates := util.FilterSlice(s.Reinsertion.Candidates(s), func(id AircraftID) bool {
		return !s.recentlyMoved[id] && s.Scenario.CanReinsert(s, s.Aircraft[id], tick)
	})
	if len(candidates) == 0 {
		return
	}

	if len(s.Lanes.Active) == 0 {
		ac := s.Aircraft[candidates[0]]
		s.reenter(ac, tick, s.Bands.MaxSpeed(ac.DistanceNM), gomath.Inf(1), gomath.Inf(1))
		candidates = candidates[1:]
	}

	agenda := make([]agendaEntry, 0, len(s.Lanes.Active)+len(candidates))
	for _, id := range s.Lanes.Active {
		ac := s.Aircraft[id]
		agenda = append(agenda, agendaEntry{id: id, eta: s.ETA(ac.DistanceNM, ac.SpeedKts)})
	}
	slices.SortStableFunc(agenda, func(a, b agendaEntry) int { return cmp.Compare(a.eta, b.eta) })

	for _, id := range candidates {
		ac := s.Aircraft[id]
		v, eta, sl, ok := s.findSlot(ac.DistanceNM, agenda)
		if !ok {
			continue
		}

		leadGap, trailGap := gomath.Inf(1), gomath.Inf(1)
		if sl.lead.id != 0 {
			leadGap = eta - sl.lead.eta
		}
		if sl.trail.id != 0 {
			trailGap = sl.trail.eta - eta
		}
		s.reenter(ac, tick, v, leadGap, trailGap)

		e := agendaEntry{id: id, eta: eta}
		i, _ := slices.BinarySearchFunc(agenda, e, func(a, b agendaEntry) int { return cmp.Compare(a.eta, b.eta) })
		agenda = slices.Insert(agenda, i, e)
	}
}

// findSlot tries interior gaps in sequence order, then ahead of the
// first aircraft, then behind the last.
func (s *Sim) findSlot(d float64, agenda []agendaEntry) (speed, eta float64, sl slot, ok bool) {
	if len(agenda) == 0 {
		return
	}
	sep := s.Config.MinSeparationMinutes

	var slots []slot
	for i := 0; i+1 < len(agenda); i++ {
		a, b := agenda[i], agenda[i+1]
		slots = append(slots, slot{lo: a.eta + sep, hi: b.eta - sep, lead: a, trail: b})
	}
	first, last := agenda[0], agenda[len(agenda)-1]
	slots = append(slots,
		slot{lo: gomath.Inf(-1), hi: first.eta - sep, trail: first},
		slot{lo: last.eta + sep, hi: gomath.Inf(1), lead: last})

	vmin, vmax := s.Bands.Limits(d)
	fast, slow := s.ETA(d, vmax), s.ETA(d, vmin)

	for _, sl := range slots {
		if sl.hi+reinsertEps < sl.lo {
			continue
		}
		a, b := max(sl.lo, fast), min(sl.hi, slow)
		if a-reinsertEps > b {
			continue
		}

		target := (a + b) / 2
		v := s.Bands.ClampSpeed(d, d/target*60)
		if e := s.ETA(d, v); e >= sl.lo-reinsertEps && e <= sl.hi+reinsertEps {
			return v, e, sl, true
		}
	}
	return 0, 0, slot{}, false
}
