// sim/config.go
// Copyright(c) 2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package sim

import (
	"fmt"
	gomath "math"
	"os"
	"slices"

	av "github.com/mmp/arrivals/aviation"
	"github.com/mmp/arrivals/util"
)

type ControllerKind string

const (
	SinglePassController ControllerKind = "single-pass"
	IterativeController  ControllerKind = "iterative"
	MeteringController   ControllerKind = "metering"
)

// Ordering selects how the active lane is sequenced before separation
// control. The empty Ordering uses the controller's native order.
type Ordering string

const (
	OrderByETA      Ordering = "eta"
	OrderByDistance Ordering = "distance"
)

type ReinsertionKind string

const (
	ReinsertFIFO ReinsertionKind = "fifo"
	ReinsertRisk ReinsertionKind = "risk"
)

// MeteringConfig sets the comfort separation that the metering controller
// targets behind each leader: base+FarExtraMinutes at or beyond
// FarDistanceNM, base at or beyond NearDistanceNM, and FinalMinutes
// inside that.
type MeteringConfig struct {
	BaseMinutes         float64 `json:"base_min"`
	AnticipationMinutes float64 `json:"anticipation_min"`
	FarDistanceNM       float64 `json:"far_distance_nm"`
	FarExtraMinutes     float64 `json:"far_extra_min"`
	NearDistanceNM      float64 `json:"near_distance_nm"`
	FinalMinutes        float64 `json:"final_min"`
}

// TargetGap returns the comfort separation at distance d.
func (m MeteringConfig) TargetGap(d float64) float64 {
	if d >= m.FarDistanceNM {
		return m.BaseMinutes + m.FarExtraMinutes
	}
	if d >= m.NearDistanceNM {
		return m.BaseMinutes
	}
	return m.FinalMinutes
}

// ClosureConfig closes the runway for [StartMinute, StartMinute+DurationMinutes).
type ClosureConfig struct {
	StartMinute     int `json:"start_minute"`
	DurationMinutes int `json:"duration_minutes"`
}

func (c ClosureConfig) Closed(tick int) bool {
	return tick >= c.StartMinute && tick < c.ReopenMinute()
}

func (c ClosureConfig) ReopenMinute() int {
	return c.StartMinute + c.DurationMinutes
}

// GoAroundConfig enables wind-driven missed approaches: each aircraft
// about to touch down goes around with the given probability, once.
type GoAroundConfig struct {
	Probability float64 `json:"probability"`
	// Aircraft that went around are not resequenced while this close in.
	MinReinsertDistanceNM float64 `json:"min_reinsert_distance_nm"`
}

type Config struct {
	ArrivalRate float64 `json:"arrival_rate"` // probability of an arrival each minute
	Seed        int64   `json:"seed"`
	StartMinute int     `json:"start_minute"`
	EndMinute   int     `json:"end_minute"`

	EntryDistanceNM  float64 `json:"entry_distance_nm"`
	DivertDistanceNM float64 `json:"divert_distance_nm"`
	EntrySpeedKts    float64 `json:"entry_speed_kts"`
	ReversalSpeedKts float64 `json:"reversal_speed_kts"`

	DangerSeparationMinutes float64 `json:"danger_separation_min"`
	MinSeparationMinutes    float64 `json:"min_separation_min"` // reinsertion and iterative control
	SlowdownStepKts         float64 `json:"slowdown_step_kts"`
	MaxIterations           int     `json:"max_iterations"`

	Controller  ControllerKind  `json:"controller"`
	Ordering    Ordering        `json:"ordering,omitempty"`
	Reinsertion ReinsertionKind `json:"reinsertion"`
	ETAModel    av.ETAModel     `json:"eta_model"`

	Metering   MeteringConfig  `json:"metering"`
	SpeedBands av.SpeedBands   `json:"speed_bands"`
	Closure    *ClosureConfig  `json:"closure,omitempty"`
	GoAround   *GoAroundConfig `json:"go_around,omitempty"`
}

func DefaultConfig() Config {
	return Config{
		ArrivalRate: 0.1,
		Seed:        42,
		StartMinute: 0,
		EndMinute:   1080,

		EntryDistanceNM:  100,
		DivertDistanceNM: 100,
		EntrySpeedKts:    300,
		ReversalSpeedKts: 200,

		DangerSeparationMinutes: 4,
		MinSeparationMinutes:    5,
		SlowdownStepKts:         20,
		MaxIterations:           50,

		Controller:  SinglePassController,
		Reinsertion: ReinsertFIFO,
		ETAModel:    av.BandedETA,

		Metering: MeteringConfig{
			BaseMinutes:         5.5,
			AnticipationMinutes: 0.5,
			FarDistanceNM:       50,
			FarExtraMinutes:     1,
			NearDistanceNM:      15,
			FinalMinutes:        4,
		},
		SpeedBands: av.DefaultSpeedBands(),
	}
}

// DefaultClosure is the 30-minute runway closure used by the closure
// scenario when no explicit window is given.
func DefaultClosure() *ClosureConfig {
	return &ClosureConfig{StartMinute: 180, DurationMinutes: 30}
}

func DefaultGoAround() *GoAroundConfig {
	return &GoAroundConfig{Probability: 0.1, MinReinsertDistanceNM: 5}
}

// LoadConfig reads a JSON configuration; fields not present in the file
// keep their DefaultConfig values.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := util.UnmarshalJSONBytes(b, &cfg); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// EffectiveOrdering returns the ordering used for the configured
// controller.
func (c Config) EffectiveOrdering() Ordering {
	if c.Ordering != "" {
		return c.Ordering
	}
	if c.Controller == IterativeController {
		return OrderByDistance
	}
	return OrderByETA
}

func (c *Config) Validate(e *util.ErrorLogger) {
	e.Push("config")
	defer e.Pop()

	positive := func(name string, v float64) {
		if !(v > 0) || gomath.IsInf(v, 0) {
			e.ErrorString("%s %g must be positive and finite", name, v)
		}
	}
	probability := func(name string, p float64) {
		if gomath.IsNaN(p) || p < 0 || p > 1 {
			e.ErrorString("%s %g must be in [0, 1]", name, p)
		}
	}

	probability("arrival_rate", c.ArrivalRate)
	if c.EndMinute <= c.StartMinute {
		e.ErrorString("end_minute %d must be after start_minute %d", c.EndMinute, c.StartMinute)
	}

	positive("entry_distance_nm", c.EntryDistanceNM)
	positive("divert_distance_nm", c.DivertDistanceNM)
	positive("entry_speed_kts", c.EntrySpeedKts)
	positive("reversal_speed_kts", c.ReversalSpeedKts)

	positive("danger_separation_min", c.DangerSeparationMinutes)
	positive("min_separation_min", c.MinSeparationMinutes)
	if c.MinSeparationMinutes < c.DangerSeparationMinutes {
		e.ErrorString("min_separation_min %g must not be less than danger_separation_min %g",
			c.MinSeparationMinutes, c.DangerSeparationMinutes)
	}
	if gomath.IsNaN(c.SlowdownStepKts) || c.SlowdownStepKts < 0 {
		e.ErrorString("slowdown_step_kts %g must be non-negative", c.SlowdownStepKts)
	}
	if c.MaxIterations < 1 {
		e.ErrorString("max_iterations %d must be at least 1", c.MaxIterations)
	}

	if !slices.Contains([]ControllerKind{SinglePassController, IterativeController, MeteringController}, c.Controller) {
		e.Error(fmt.Errorf("%q: %w", c.Controller, ErrUnknownController))
	}
	if !slices.Contains([]Ordering{"", OrderByETA, OrderByDistance}, c.Ordering) {
		e.Error(fmt.Errorf("%q: %w", c.Ordering, ErrUnknownOrdering))
	}
	if !slices.Contains([]ReinsertionKind{ReinsertFIFO, ReinsertRisk}, c.Reinsertion) {
		e.Error(fmt.Errorf("%q: %w", c.Reinsertion, ErrUnknownReinsertion))
	}
	if _, err := c.SpeedBands.Estimator(c.ETAModel); err != nil {
		e.Error(err)
	}

	if c.Controller == MeteringController {
		e.Push("metering")
		m := c.Metering
		positive("base_min", m.BaseMinutes)
		positive("final_min", m.FinalMinutes)
		if gomath.IsNaN(m.AnticipationMinutes) || m.AnticipationMinutes < 0 {
			e.ErrorString("anticipation_min %g must be non-negative", m.AnticipationMinutes)
		}
		if m.FarDistanceNM < m.NearDistanceNM {
			e.ErrorString("far_distance_nm %g must not be less than near_distance_nm %g",
				m.FarDistanceNM, m.NearDistanceNM)
		}
		e.Pop()
	}

	c.SpeedBands.Validate(e)

	if c.Closure != nil {
		e.Push("closure")
		if c.Closure.DurationMinutes <= 0 {
			e.ErrorString("duration_minutes %d must be positive", c.Closure.DurationMinutes)
		}
		e.Pop()
	}
	if c.GoAround != nil {
		e.Push("go_around")
		probability("probability", c.GoAround.Probability)
		if gomath.IsNaN(c.GoAround.MinReinsertDistanceNM) || c.GoAround.MinReinsertDistanceNM < 0 {
			e.ErrorString("min_reinsert_distance_nm %g must be non-negative", c.GoAround.MinReinsertDistanceNM)
		}
		e.Pop()
	}
}
