// sim/aircraft.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package sim

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/goforj/godump"
)

// AircraftID identifies an aircraft for the lifetime of a Sim. IDs are
// assigned from 1; the zero value means "no aircraft".
type AircraftID int

func (id AircraftID) String() string {
	return "#" + strconv.Itoa(int(id))
}

type Status int

const (
	StatusApproaching Status = iota
	StatusHeld
	StatusGoAround
	StatusLanded
	StatusDiverted
)

func (s Status) String() string {
	switch s {
	case StatusApproaching:
		return "approaching"
	case StatusHeld:
		return "held"
	case StatusGoAround:
		return "go-around"
	case StatusLanded:
		return "landed"
	case StatusDiverted:
		return "diverted"
	default:
		return "Status(" + strconv.Itoa(int(s)) + ")"
	}
}

// Terminal reports whether no further state changes can occur.
func (s Status) Terminal() bool {
	return s == StatusLanded || s == StatusDiverted
}

// Holding reports whether the aircraft is flying outbound in the held lane.
func (s Status) Holding() bool {
	return s == StatusHeld || s == StatusGoAround
}

type Aircraft struct {
	ID             AircraftID
	AppearanceTick int
	DistanceNM     float64
	SpeedKts       float64
	Status         Status

	// LeaderID is the aircraft immediately ahead in the active lane; zero
	// if this aircraft is first or not active. It is re-derived every
	// tick.
	LeaderID AircraftID

	// Valid once Status is StatusLanded.
	LandingTick           int
	ContinuousLandingTime float64

	// Reporting and scenario bookkeeping.
	GoAroundChecked bool
	Ejections       int
	Reinsertions    int
	HeldSinceTick   int
}

func (ac *Aircraft) HasLeader() bool {
	return ac.LeaderID != 0
}

// Delay returns how much later than an unimpeded flight the aircraft
// touched down, given the free-flow time from the entry boundary.
func (ac *Aircraft) Delay(freeFlowMinutes float64) float64 {
	return ac.ContinuousLandingTime - (float64(ac.AppearanceTick) + freeFlowMinutes)
}

func (ac *Aircraft) String() string {
	return fmt.Sprintf("%s %s %.2fnm %.0fkt", ac.ID, ac.Status, ac.DistanceNM, ac.SpeedKts)
}

func (ac *Aircraft) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.Int("id", int(ac.ID)),
		slog.String("status", ac.Status.String()),
		slog.Float64("distance_nm", ac.DistanceNM),
		slog.Float64("speed_kts", ac.SpeedKts),
	}
	if ac.HasLeader() {
		attrs = append(attrs, slog.Int("leader", int(ac.LeaderID)))
	}
	return slog.GroupValue(attrs...)
}

// Dump returns a detailed multi-line rendering of the aircraft's state.
func (ac *Aircraft) Dump() string {
	return godump.DumpStr(ac)
}
