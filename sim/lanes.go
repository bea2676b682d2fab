// sim/lanes.go
// Copyright(c) 2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package sim

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/mmp/arrivals/util"
)

type Lane int

const (
	LaneNone Lane = iota
	LaneActive
	LaneHeld
	LaneTerminal
)

func (l Lane) String() string {
	return [...]string{"none", "active", "held", "terminal"}[l]
}

// Lanes partitions every aircraft created so far into exactly one of the
// active (approaching, in sequence order), held (outbound), and terminal
// (landed or diverted) lanes. Aircraft are referred to by id; the
// records themselves live in the map shared with the Sim.
type Lanes struct {
	Active   []AircraftID
	Held     []AircraftID
	Terminal []AircraftID

	lane     map[AircraftID]Lane
	aircraft map[AircraftID]*Aircraft
}

func NewLanes(aircraft map[AircraftID]*Aircraft) *Lanes {
	return &Lanes{
		lane:     make(map[AircraftID]Lane),
		aircraft: aircraft,
	}
}

func (l *Lanes) LaneOf(id AircraftID) Lane {
	return l.lane[id]
}

func (l *Lanes) Len() int {
	return len(l.lane)
}

// Add places a newly created aircraft at the end of the active lane.
func (l *Lanes) Add(id AircraftID) error {
	if _, ok := l.aircraft[id]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAircraft, id)
	}
	if lane := l.lane[id]; lane != LaneNone {
		return fmt.Errorf("%s: already in %s lane: %w", id, lane, ErrWrongLane)
	}
	l.Active = append(l.Active, id)
	l.lane[id] = LaneActive
	return nil
}

func (l *Lanes) remove(id AircraftID, from Lane) {
	switch from {
	case LaneActive:
		l.Active, _ = util.RemoveFirst(l.Active, id)
	case LaneHeld:
		l.Held, _ = util.RemoveFirst(l.Held, id)
	case LaneTerminal:
		l.Terminal, _ = util.RemoveFirst(l.Terminal, id)
	}
}

func (l *Lanes) check(id AircraftID, allowed ...Lane) (Lane, error) {
	cur, ok := l.lane[id]
	if !ok {
		return LaneNone, fmt.Errorf("%w: %s", ErrUnknownAircraft, id)
	}
	if cur == LaneTerminal {
		return cur, fmt.Errorf("%s: %w", id, ErrTerminalAircraft)
	}
	if !slices.Contains(allowed, cur) {
		return cur, fmt.Errorf("%s: in %s lane: %w", id, cur, ErrWrongLane)
	}
	return cur, nil
}

// MoveToHeld moves an active aircraft to the end of the held lane.
func (l *Lanes) MoveToHeld(id AircraftID) error {
	cur, err := l.check(id, LaneActive)
	if err != nil {
		return err
	}
	l.remove(id, cur)
	l.Held = append(l.Held, id)
	l.lane[id] = LaneHeld
	l.unlink(id)
	return nil
}

// MoveToActive moves a held aircraft to the end of the active lane; its
// sequence position is settled by the next ReorderActive.
func (l *Lanes) MoveToActive(id AircraftID) error {
	cur, err := l.check(id, LaneHeld)
	if err != nil {
		return err
	}
	l.remove(id, cur)
	l.Active = append(l.Active, id)
	l.lane[id] = LaneActive
	return nil
}

// MoveToTerminal retires an active or held aircraft.
func (l *Lanes) MoveToTerminal(id AircraftID) error {
	cur, err := l.check(id, LaneActive, LaneHeld)
	if err != nil {
		return err
	}
	l.remove(id, cur)
	l.Terminal = append(l.Terminal, id)
	l.lane[id] = LaneTerminal
	l.unlink(id)
	return nil
}

// unlink clears id's leader and any active aircraft's reference to it.
func (l *Lanes) unlink(id AircraftID) {
	l.aircraft[id].LeaderID = 0
	for _, aid := range l.Active {
		if ac := l.aircraft[aid]; ac.LeaderID == id {
			ac.LeaderID = 0
		}
	}
}

// ReorderActive stably sorts the active lane by ascending key and makes
// each aircraft's leader the one before it.
func (l *Lanes) ReorderActive(key func(id AircraftID) float64) {
	keys := make(map[AircraftID]float64, len(l.Active))
	for _, id := range l.Active {
		keys[id] = key(id)
	}
	slices.SortStableFunc(l.Active, func(a, b AircraftID) int {
		return cmp.Compare(keys[a], keys[b])
	})
	l.Relink()
}

// Relink rewrites leaders from the current active order.
func (l *Lanes) Relink() {
	for i, id := range l.Active {
		if i == 0 {
			l.aircraft[id].LeaderID = 0
		} else {
			l.aircraft[id].LeaderID = l.Active[i-1]
		}
	}
}

// Check verifies the partition and leader-chain invariants, returning
// the first violation found.
func (l *Lanes) Check() error {
	seen := make(map[AircraftID]Lane)
	for _, lane := range []struct {
		ids  []AircraftID
		lane Lane
	}{{l.Active, LaneActive}, {l.Held, LaneHeld}, {l.Terminal, LaneTerminal}} {
		for _, id := range lane.ids {
			if prev, ok := seen[id]; ok {
				return fmt.Errorf("%s: in both %s and %s lanes", id, prev, lane.lane)
			}
			seen[id] = lane.lane
			if l.lane[id] != lane.lane {
				return fmt.Errorf("%s: recorded in %s lane but found in %s", id, l.lane[id], lane.lane)
			}
		}
	}
	if len(seen) != len(l.aircraft) {
		return fmt.Errorf("%d aircraft in lanes but %d created", len(seen), len(l.aircraft))
	}

	for _, id := range l.Active {
		steps := 0
		for cur := l.aircraft[id]; cur.HasLeader(); cur = l.aircraft[cur.LeaderID] {
			if l.lane[cur.LeaderID] != LaneActive {
				return fmt.Errorf("%s: leader %s is not active", cur.ID, cur.LeaderID)
			}
			if steps++; steps > len(l.Active) {
				return fmt.Errorf("%s: leader chain does not terminate", id)
			}
		}
	}
	for _, id := range append(slices.Clone(l.Held), l.Terminal...) {
		if l.aircraft[id].HasLeader() {
			return fmt.Errorf("%s: has a leader outside the active lane", id)
		}
	}
	return nil
}
