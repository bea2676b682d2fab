// sim/config_test.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package sim

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	av "github.com/mmp/arrivals/aviation"
	"github.com/mmp/arrivals/util"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(c *Config)
		wantErr bool
	}{
		{name: "defaults", modify: func(c *Config) {}},
		{name: "zero rate", modify: func(c *Config) { c.ArrivalRate = 0 }},
		{name: "saturated", modify: func(c *Config) { c.ArrivalRate = 1 }},
		{name: "negative rate", modify: func(c *Config) { c.ArrivalRate = -0.1 }, wantErr: true},
		{name: "rate above one", modify: func(c *Config) { c.ArrivalRate = 1.5 }, wantErr: true},
		{name: "empty window", modify: func(c *Config) { c.EndMinute = c.StartMinute }, wantErr: true},
		{name: "zero entry", modify: func(c *Config) { c.EntryDistanceNM = 0 }, wantErr: true},
		{name: "zero reversal", modify: func(c *Config) { c.ReversalSpeedKts = 0 }, wantErr: true},
		{
			name:    "reinsertion tighter than danger",
			modify:  func(c *Config) { c.MinSeparationMinutes = 3 },
			wantErr: true,
		},
		{name: "no iterations", modify: func(c *Config) { c.MaxIterations = 0 }, wantErr: true},
		{name: "unknown controller", modify: func(c *Config) { c.Controller = "magic" }, wantErr: true},
		{name: "unknown ordering", modify: func(c *Config) { c.Ordering = "alphabetical" }, wantErr: true},
		{name: "unknown reinsertion", modify: func(c *Config) { c.Reinsertion = "lifo" }, wantErr: true},
		{name: "unknown eta model", modify: func(c *Config) { c.ETAModel = "warp" }, wantErr: true},
		{
			name:   "metering defaults",
			modify: func(c *Config) { c.Controller = MeteringController },
		},
		{
			name: "metering without base",
			modify: func(c *Config) {
				c.Controller = MeteringController
				c.Metering.BaseMinutes = 0
			},
			wantErr: true,
		},
		{
			name:    "bands not ending at zero",
			modify:  func(c *Config) { c.SpeedBands = av.SpeedBands{{FloorNM: 5, MinKts: 100, MaxKts: 200}} },
			wantErr: true,
		},
		{name: "closure", modify: func(c *Config) { c.Closure = DefaultClosure() }},
		{
			name:    "empty closure",
			modify:  func(c *Config) { c.Closure = &ClosureConfig{StartMinute: 10} },
			wantErr: true,
		},
		{name: "go-around", modify: func(c *Config) { c.GoAround = DefaultGoAround() }},
		{
			name:    "go-around probability",
			modify:  func(c *Config) { c.GoAround = &GoAroundConfig{Probability: 2} },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultConfig()
			tt.modify(&c)

			var e util.ErrorLogger
			c.Validate(&e)
			if e.HaveErrors() != tt.wantErr {
				t.Errorf("got errors %q, want errors: %v", e.String(), tt.wantErr)
			}

			_, err := NewSim(c, nil)
			if tt.wantErr && !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("NewSim: got %v, want ErrInvalidConfig", err)
			} else if !tt.wantErr && err != nil {
				t.Errorf("NewSim: unexpected error %v", err)
			}
		})
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(`{"arrival_rate": 0.25, "controller": "iterative",
  "closure": {"start_minute": 60, "duration_minutes": 20}}`), 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if c.ArrivalRate != 0.25 {
		t.Errorf("got arrival rate %g, want 0.25", c.ArrivalRate)
	}
	if c.Controller != IterativeController {
		t.Errorf("got controller %q, want %q", c.Controller, IterativeController)
	}
	if c.Closure == nil || c.Closure.ReopenMinute() != 80 {
		t.Errorf("got closure %+v, want reopen at 80", c.Closure)
	}
	if c.EntryDistanceNM != 100 || c.Seed != 42 || len(c.SpeedBands) != 5 {
		t.Errorf("defaults not kept: %+v", c)
	}
	if c.EffectiveOrdering() != OrderByDistance {
		t.Errorf("got ordering %q, want %q", c.EffectiveOrdering(), OrderByDistance)
	}

	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte(`{"arrival_rates": 0.25}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(bad); err == nil {
		t.Errorf("expected error for unknown field")
	}

	if _, err := LoadConfig(filepath.Join(dir, "missing.json")); err == nil {
		t.Errorf("expected error for missing file")
	}
}

func TestMeteringTargetGap(t *testing.T) {
	m := DefaultConfig().Metering
	for _, tt := range []struct {
		d, want float64
	}{
		{100, 6.5},
		{50, 6.5},
		{49.9, 5.5},
		{15, 5.5},
		{14.9, 4},
		{0, 4},
	} {
		if got := m.TargetGap(tt.d); got != tt.want {
			t.Errorf("TargetGap(%g): got %g, want %g", tt.d, got, tt.want)
		}
	}
}
