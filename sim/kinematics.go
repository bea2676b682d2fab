// sim/kinematics.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package sim

import (
	"log/slog"
	"slices"

	av "github.com/mmp/arrivals/aviation"
)

// blockedDistanceNM is the closest an aircraft is held to a closed runway.
const blockedDistanceNM = 0.01

// advance moves every aircraft one minute along its track: active
// aircraft inbound at their commanded speed, held aircraft outbound at
// the reversal speed. Every active aircraft moves, including those
// reinserted this tick; aircraft sent to the held lane this tick do not.
func (s *Sim) advance(tick int) {
	for _, id := range slices.Clone(s.Lanes.Active) {
		ac := s.Aircraft[id]
		prev := ac.DistanceNM
		adv := av.KnotsToNMPerMinute(ac.SpeedKts)
		if next := max(0, prev-adv); next > 0 {
			ac.DistanceNM = next
			continue
		}

		if !s.Scenario.RunwayOpen(s, tick) {
			ac.DistanceNM = max(prev, blockedDistanceNM)
			s.Counters.ClosureHolds++
			s.lg.Debug("runway closed", slog.Any("aircraft", ac), slog.Int("tick", tick))
			s.hold(ac, tick, StatusHeld, Event{Type: BlockedEvent})
			continue
		}

		ac.LandingTick = tick
		if adv > 0 {
			ac.ContinuousLandingTime = float64(tick) + prev/adv
		} else {
			ac.ContinuousLandingTime = float64(tick) + 1
		}
		ac.DistanceNM, ac.SpeedKts = 0, 0
		s.Counters.Landed++

		delay := ac.Delay(s.FreeFlowMinutes)
		s.lg.Debug("landed", slog.Any("aircraft", ac), slog.Float64("delay", delay))
		s.retire(ac, tick, StatusLanded, Event{Type: LandedEvent,
			ContinuousLandingTime: ac.ContinuousLandingTime, Delay: delay})
	}

	for _, id := range slices.Clone(s.Lanes.Held) {
		ac := s.Aircraft[id]
		if s.recentlyMoved[id] {
			continue
		}

		ac.DistanceNM += av.KnotsToNMPerMinute(s.Config.ReversalSpeedKts)
		if ac.DistanceNM >= s.Config.DivertDistanceNM {
			s.Counters.Diverted++
			s.lg.Debug("diverted", slog.Any("aircraft", ac), slog.Int("tick", tick))
			s.retire(ac, tick, StatusDiverted, Event{Type: DivertedEvent})
		}
	}
}
