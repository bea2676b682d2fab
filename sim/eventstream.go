// sim/eventstream.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package sim

import (
	"fmt"
	"log/slog"
	"runtime"
	"slices"
	"sync"

	"github.com/mmp/arrivals/log"
)

// EventStream provides a basic pub/sub event interface that lets the
// simulation report lane transitions and landings to any number of
// consumers (metrics collection, traces, the live view) without them
// having to diff successive states.
type EventStream struct {
	mu            sync.Mutex
	events        []Event
	subscriptions map[*EventsSubscription]any
	lg            *log.Logger
}

type EventsSubscription struct {
	stream *EventStream
	// offset is offset in the EventStream stream array up to which the
	// subscriber has consumed events so far.
	offset int
	source string
}

func (e *EventsSubscription) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("offset", e.offset),
		slog.String("source", e.source))
}

func NewEventStream(lg *log.Logger) *EventStream {
	return &EventStream{
		subscriptions: make(map[*EventsSubscription]any),
		lg:            lg,
	}
}

// Subscribe registers a new subscriber to the stream. Only events posted
// after the call are reported to it.
func (e *EventStream) Subscribe() *EventsSubscription {
	// Record the subscriber's callsite, so that we can more easily debug
	// subscribers that aren't consuming events.
	_, fn, line, _ := runtime.Caller(1)

	e.mu.Lock()
	defer e.mu.Unlock()

	sub := &EventsSubscription{
		stream: e,
		offset: len(e.events),
		source: fmt.Sprintf("%s:%d", fn, line),
	}
	e.subscriptions[sub] = nil
	return sub
}

// Unsubscribe removes a subscriber from the subscriber list
func (e *EventsSubscription) Unsubscribe() {
	e.stream.mu.Lock()
	defer e.stream.mu.Unlock()

	if _, ok := e.stream.subscriptions[e]; !ok {
		e.stream.lg.Errorf("Attempted to unsubscribe invalid subscription: %+v", e)
	}
	delete(e.stream.subscriptions, e)
	e.stream.compact()
	e.stream = nil
}

// Post adds an event to the event stream.
func (e *EventStream) Post(event Event) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.lg.Debug("posted event", slog.Any("event", event))

	// Ignore the event if no one's paying attention.
	if len(e.subscriptions) > 0 {
		e.events = append(e.events, event)
	}
}

// Get returns all of the events from the stream since the last time Get
// was called by this subscriber.
func (e *EventsSubscription) Get() []Event {
	e.stream.mu.Lock()
	defer e.stream.mu.Unlock()

	if _, ok := e.stream.subscriptions[e]; !ok {
		e.stream.lg.Errorf("Attempted to get with unregistered subscription: %+v", e)
		return nil
	}

	events := slices.Clone(e.stream.events[e.offset:])
	e.offset = len(e.stream.events)
	e.stream.compact()

	return events
}

// compact reclaims storage for events that all subscribers have seen so
// that memory use doesn't grow over a long run.
func (e *EventStream) compact() {
	minOffset := len(e.events)
	for sub := range e.subscriptions {
		minOffset = min(minOffset, sub.offset)
	}

	if minOffset > cap(e.events)/2 || (minOffset == len(e.events) && minOffset > 0) {
		n := len(e.events) - minOffset

		copy(e.events, e.events[minOffset:])
		e.events = e.events[:n]

		for sub := range e.subscriptions {
			sub.offset -= minOffset
		}
	}
}

///////////////////////////////////////////////////////////////////////////

type EventType int

const (
	SpawnedEvent EventType = iota
	HeldAtEntryEvent
	EjectedEvent
	ClosureHoldEvent
	BlockedEvent
	GoAroundEvent
	ReinsertedEvent
	LandedEvent
	DivertedEvent
	NumEventTypes
)

func (t EventType) String() string {
	return []string{"Spawned", "HeldAtEntry", "Ejected", "ClosureHold", "Blocked", "GoAround",
		"Reinserted", "Landed", "Diverted"}[t]
}

type Event struct {
	Type       EventType
	Tick       int
	Aircraft   AircraftID
	DistanceNM float64
	SpeedKts   float64

	// EjectedEvent: the leader and the predicted gap behind it.
	// ReinsertedEvent: the predicted gaps to the aircraft ahead and
	// behind (+Inf when there is none).
	Leader          AircraftID
	GapMinutes      float64
	TrailGapMinutes float64

	// LandedEvent
	ContinuousLandingTime float64
	Delay                 float64
}

func (e Event) String() string {
	switch e.Type {
	case EjectedEvent:
		return fmt.Sprintf("%4d %s: %s at %.2fnm, %.2f min behind %s", e.Tick, e.Type, e.Aircraft,
			e.DistanceNM, e.GapMinutes, e.Leader)
	case ReinsertedEvent:
		return fmt.Sprintf("%4d %s: %s at %.2fnm %.0fkt, gaps %.2f/%.2f min", e.Tick, e.Type, e.Aircraft,
			e.DistanceNM, e.SpeedKts, e.GapMinutes, e.TrailGapMinutes)
	case LandedEvent:
		return fmt.Sprintf("%4d %s: %s at %.3f, delay %.2f min", e.Tick, e.Type, e.Aircraft,
			e.ContinuousLandingTime, e.Delay)
	default:
		return fmt.Sprintf("%4d %s: %s at %.2fnm %.0fkt", e.Tick, e.Type, e.Aircraft, e.DistanceNM, e.SpeedKts)
	}
}

func (e Event) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("type", e.Type.String()),
		slog.Int("tick", e.Tick),
		slog.Int("aircraft", int(e.Aircraft)),
		slog.Float64("distance_nm", e.DistanceNM),
	}
	switch e.Type {
	case EjectedEvent:
		attrs = append(attrs, slog.Int("leader", int(e.Leader)), slog.Float64("gap", e.GapMinutes))
	case ReinsertedEvent:
		attrs = append(attrs, slog.Float64("speed_kts", e.SpeedKts), slog.Float64("gap", e.GapMinutes),
			slog.Float64("trail_gap", e.TrailGapMinutes))
	case LandedEvent:
		attrs = append(attrs, slog.Float64("delay", e.Delay))
	}
	return slog.GroupValue(attrs...)
}
