// sim/sim.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// Package sim models arrivals to a single runway as two lanes: aircraft
// approaching the runway and aircraft flying outbound after losing their
// slot. Each call to Step advances the model by one minute.
package sim

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"

	av "github.com/mmp/arrivals/aviation"
	"github.com/mmp/arrivals/log"
	"github.com/mmp/arrivals/rand"
	"github.com/mmp/arrivals/util"

	"github.com/brunoga/deep"
	"github.com/goforj/godump"
)

// Sim sequences arrivals to a single runway one minute at a time. It
// owns every aircraft record and the lanes that partition them; all
// phases of a tick operate on it.
type Sim struct {
	Config Config

	// Strategy seams; NewSim fills them in from Config and callers may
	// replace them before the first Step.
	Controller  SeparationController
	Reinsertion ReinsertionPolicy
	Scenario    Scenario

	Aircraft map[AircraftID]*Aircraft
	Lanes    *Lanes

	Bands           av.SpeedBands
	ETA             av.Estimator
	FreeFlowMinutes float64

	Counters Counters

	// Rand drives the arrival process; nothing else draws from it.
	Rand *rand.Rand

	mu            sync.Mutex
	nextID        AircraftID
	lastTick      int
	stepped       bool
	recentlyMoved map[AircraftID]bool
	warnedIters   bool

	eventStream *EventStream
	lg          *log.Logger
}

// Counters accumulates lane transitions over a run.
type Counters struct {
	Created      int
	Landed       int
	Diverted     int
	Ejections    int
	Reinsertions int
	GoArounds    int
	ClosureHolds int
	NonConverged int
}

// NewSim validates the configuration and returns a Sim with no aircraft.
func NewSim(config Config, lg *log.Logger) (*Sim, error) {
	var e util.ErrorLogger
	config.Validate(&e)
	if e.HaveErrors() {
		return nil, fmt.Errorf("%w:\n%s", ErrInvalidConfig, e.String())
	}

	eta, err := config.SpeedBands.Estimator(config.ETAModel)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	s := &Sim{
		Config:          config,
		Aircraft:        make(map[AircraftID]*Aircraft),
		Bands:           config.SpeedBands,
		ETA:             eta,
		FreeFlowMinutes: config.SpeedBands.FreeFlowMinutes(config.EntryDistanceNM),
		Rand:            rand.New(config.Seed),
		nextID:          1,
		recentlyMoved:   make(map[AircraftID]bool),
		eventStream:     NewEventStream(lg),
		lg:              lg.With(slog.Int64("seed", config.Seed)),
	}
	s.Lanes = NewLanes(s.Aircraft)

	s.Controller = NewController(config)
	s.Reinsertion = NewReinsertionPolicy(config.Reinsertion)
	s.Scenario = NewScenario(config)

	s.lg.Debug("created sim", slog.Float64("arrival_rate", config.ArrivalRate),
		slog.String("controller", string(config.Controller)),
		slog.String("reinsertion", string(config.Reinsertion)),
		slog.Float64("free_flow_minutes", s.FreeFlowMinutes))

	return s, nil
}

func (s *Sim) Events() *EventStream {
	return s.eventStream
}

// CreateAircraft admits a new aircraft at the entry boundary.
func (s *Sim) CreateAircraft(tick int) *Aircraft {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.createAircraft(tick)
}

func (s *Sim) createAircraft(tick int) *Aircraft {
	ac := &Aircraft{
		ID:             s.nextID,
		AppearanceTick: tick,
		DistanceNM:     s.Config.EntryDistanceNM,
		SpeedKts:       s.Config.EntrySpeedKts,
		Status:         StatusApproaching,
	}
	s.nextID++
	s.Aircraft[ac.ID] = ac
	if err := s.Lanes.Add(ac.ID); err != nil {
		// Ids are fresh, so this is a bug.
		panic(err)
	}
	s.Counters.Created++

	s.lg.Debug("spawned", slog.Any("aircraft", ac), slog.Int("tick", tick))
	s.eventStream.Post(Event{Type: SpawnedEvent, Tick: tick, Aircraft: ac.ID,
		DistanceNM: ac.DistanceNM, SpeedKts: ac.SpeedKts})

	s.Scenario.Admit(s, ac, tick)
	return ac
}

// Step runs one minute: an optional arrival, scenario hooks, separation
// control, reinsertion, the kinematic advance, and resequencing for the
// next tick. Ticks must be strictly increasing.
func (s *Sim) Step(tick int, arrived bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stepped && tick <= s.lastTick {
		return fmt.Errorf("tick %d after %d: %w", tick, s.lastTick, ErrTickOutOfOrder)
	}
	s.lastTick, s.stepped = tick, true
	clear(s.recentlyMoved)

	if arrived {
		s.createAircraft(tick)
	}

	s.Scenario.BeforeControl(s, tick)
	s.Controller.Control(s, tick)
	s.reinsert(tick)
	s.advance(tick)

	s.Lanes.ReorderActive(func(id AircraftID) float64 {
		ac := s.Aircraft[id]
		return s.ETA(ac.DistanceNM, ac.SpeedKts)
	})
	return nil
}

// Tick draws this minute's arrival from Rand and steps.
func (s *Sim) Tick(tick int) error {
	return s.Step(tick, s.Rand.Bernoulli(s.Config.ArrivalRate))
}

// BernoulliArrivals draws one uniform variate per minute in [t0, t1) and
// returns the minutes whose draw fell below lambda. It consumes Rand
// exactly as calling Tick for each of those minutes would.
func (s *Sim) BernoulliArrivals(lambda float64, t0, t1 int) []int {
	var ticks []int
	for t := t0; t < t1; t++ {
		if s.Rand.Bernoulli(lambda) {
			ticks = append(ticks, t)
		}
	}
	return ticks
}

// Run pre-draws the day's arrivals and steps through every minute of the
// configured window, calling observe (if non-nil) after each step.
func (s *Sim) Run(observe func(tick int)) error {
	arrivals := s.BernoulliArrivals(s.Config.ArrivalRate, s.Config.StartMinute, s.Config.EndMinute)
	next := 0
	for t := s.Config.StartMinute; t < s.Config.EndMinute; t++ {
		arrived := next < len(arrivals) && arrivals[next] == t
		if arrived {
			next++
		}
		if err := s.Step(t, arrived); err != nil {
			return err
		}
		if observe != nil {
			observe(t)
		}
	}
	return nil
}

///////////////////////////////////////////////////////////////////////////
// Lane transitions shared by the phases

// hold sends an active aircraft outbound at the reversal speed.
func (s *Sim) hold(ac *Aircraft, tick int, status Status, ev Event) {
	if err := s.Lanes.MoveToHeld(ac.ID); err != nil {
		s.lg.Warn("unable to hold aircraft", slog.Any("aircraft", ac), slog.Any("error", err))
		return
	}
	ac.Status = status
	ac.SpeedKts = s.Config.ReversalSpeedKts
	ac.HeldSinceTick = tick
	s.recentlyMoved[ac.ID] = true

	ev.Tick, ev.Aircraft, ev.DistanceNM, ev.SpeedKts = tick, ac.ID, ac.DistanceNM, ac.SpeedKts
	s.eventStream.Post(ev)
}

func (s *Sim) eject(ac *Aircraft, tick int, leader AircraftID, gap float64) {
	ac.Ejections++
	s.Counters.Ejections++
	s.lg.Debug("ejected", slog.Any("aircraft", ac), slog.Int("leader", int(leader)),
		slog.Float64("gap", gap))
	s.hold(ac, tick, StatusHeld, Event{Type: EjectedEvent, Leader: leader, GapMinutes: gap})
}

func (s *Sim) reenter(ac *Aircraft, tick int, speed, leadGap, trailGap float64) {
	if err := s.Lanes.MoveToActive(ac.ID); err != nil {
		s.lg.Warn("unable to reinsert aircraft", slog.Any("aircraft", ac), slog.Any("error", err))
		return
	}
	ac.Status = StatusApproaching
	ac.SpeedKts = speed
	ac.Reinsertions++
	s.Counters.Reinsertions++
	s.recentlyMoved[ac.ID] = true

	s.lg.Debug("reinserted", slog.Any("aircraft", ac), slog.Float64("gap", leadGap),
		slog.Float64("trail_gap", trailGap))
	s.eventStream.Post(Event{Type: ReinsertedEvent, Tick: tick, Aircraft: ac.ID, DistanceNM: ac.DistanceNM,
		SpeedKts: speed, GapMinutes: leadGap, TrailGapMinutes: trailGap})
}

func (s *Sim) retire(ac *Aircraft, tick int, status Status, ev Event) {
	if err := s.Lanes.MoveToTerminal(ac.ID); err != nil {
		s.lg.Warn("unable to retire aircraft", slog.Any("aircraft", ac), slog.Any("error", err))
		return
	}
	ac.Status = status
	ev.Tick, ev.Aircraft, ev.DistanceNM, ev.SpeedKts = tick, ac.ID, ac.DistanceNM, ac.SpeedKts
	s.eventStream.Post(ev)
}

///////////////////////////////////////////////////////////////////////////
// Read-only accessors

func (s *Sim) ActiveIDs() []AircraftID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.Lanes.Active)
}

func (s *Sim) HeldIDs() []AircraftID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.Lanes.Held)
}

func (s *Sim) TerminalIDs() []AircraftID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.Lanes.Terminal)
}

// GetAircraft returns a copy of the aircraft's current state.
func (s *Sim) GetAircraft(id AircraftID) (Aircraft, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ac, ok := s.Aircraft[id]; ok {
		return *ac, true
	}
	return Aircraft{}, false
}

// AllAircraft returns copies of every aircraft created so far, in id
// order.
func (s *Sim) AllAircraft() []Aircraft {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := make([]Aircraft, 0, len(s.Aircraft))
	for _, id := range util.SortedMapKeys(s.Aircraft) {
		all = append(all, *s.Aircraft[id])
	}
	return all
}

// CongestionSample returns the number of active aircraft and how many of
// them are commanded below their band's maximum speed.
func (s *Sim) CongestionSample() (active, congested int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range s.Lanes.Active {
		ac := s.Aircraft[id]
		if ac.SpeedKts < s.Bands.MaxSpeed(ac.DistanceNM)-1e-9 {
			congested++
		}
	}
	return len(s.Lanes.Active), congested
}

// StateSnapshot is a deep copy of a Sim's lanes and aircraft that is
// safe to read while the Sim continues to run.
type StateSnapshot struct {
	Tick     int
	Active   []AircraftID
	Held     []AircraftID
	Terminal []AircraftID
	Aircraft map[AircraftID]Aircraft
	Counters Counters
}

func (s *Sim) State() StateSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := StateSnapshot{
		Tick:     s.lastTick,
		Active:   s.Lanes.Active,
		Held:     s.Lanes.Held,
		Terminal: s.Lanes.Terminal,
		Aircraft: make(map[AircraftID]Aircraft, len(s.Aircraft)),
		Counters: s.Counters,
	}
	for id, ac := range s.Aircraft {
		st.Aircraft[id] = *ac
	}
	return deep.MustCopy(st)
}

// Dump returns a detailed rendering of the current state for debugging.
func (s *Sim) Dump() string {
	return godump.DumpStr(s.State())
}
