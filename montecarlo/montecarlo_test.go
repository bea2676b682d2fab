// montecarlo/montecarlo_test.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package montecarlo

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	gomath "math"
	"strings"
	"testing"

	"github.com/mmp/arrivals/math"
	"github.com/mmp/arrivals/sim"
	"github.com/mmp/arrivals/util"
)

func shortDay(rate float64) sim.Config {
	c := sim.DefaultConfig()
	c.ArrivalRate = rate
	c.EndMinute = 240
	return c
}

func TestRunDayNoArrivals(t *testing.T) {
	r, err := RunDay(shortDay(0), 7, nil)
	if err != nil {
		t.Fatal(err)
	}
	if r.Arrivals != 0 || r.ApproachMinutes != 0 || len(r.Delays) != 0 {
		t.Errorf("got %+v, want an empty day", r)
	}
	for name, v := range map[string]float64{
		"congestion": r.CongestionRate(),
		"delay":      r.AverageDelay(),
		"diversion":  r.DiversionRate(),
	} {
		if !gomath.IsNaN(v) {
			t.Errorf("%s: got %g, want NaN", name, v)
		}
	}
}

func TestRunDay(t *testing.T) {
	r, err := RunDay(shortDay(0.3), 99, nil)
	if err != nil {
		t.Fatal(err)
	}
	if r.Seed != 99 {
		t.Errorf("got seed %d, want 99", r.Seed)
	}
	if r.Landed == 0 || len(r.Delays) != r.Landed {
		t.Errorf("got %d landed with %d delays", r.Landed, len(r.Delays))
	}
	if r.Landed+r.Diverted > r.Arrivals {
		t.Errorf("%d landed and %d diverted of %d arrivals", r.Landed, r.Diverted, r.Arrivals)
	}
	if r.CongestedMinutes > r.ApproachMinutes {
		t.Errorf("%d congested of %d approach minutes", r.CongestedMinutes, r.ApproachMinutes)
	}
	for _, d := range r.Delays {
		if d < -1e-6 {
			t.Errorf("landed %g minutes ahead of an unimpeded flight", -d)
		}
	}

	again, err := RunDay(shortDay(0.3), 99, nil)
	if err != nil {
		t.Fatal(err)
	}
	if again.Landed != r.Landed || again.Diverted != r.Diverted || again.CongestedMinutes != r.CongestedMinutes {
		t.Errorf("same seed gave different days: %+v vs %+v", r, again)
	}
}

func sameFloat(a, b float64) bool {
	return a == b || (gomath.IsNaN(a) && gomath.IsNaN(b))
}

func sameInterval(a, b math.Interval) bool {
	return sameFloat(a.Mean, b.Mean) && sameFloat(a.Low, b.Low) && sameFloat(a.High, b.High) && a.N == b.N
}

func sameRows(a, b []Row) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ArrivalRate != b[i].ArrivalRate || a[i].Days != b[i].Days ||
			!sameFloat(a[i].ArrivalsPerDay, b[i].ArrivalsPerDay) ||
			!sameFloat(a[i].DivertedPerDay, b[i].DivertedPerDay) ||
			!sameInterval(a[i].CongestionRate, b[i].CongestionRate) ||
			!sameInterval(a[i].AverageDelay, b[i].AverageDelay) ||
			!sameInterval(a[i].DiversionRate, b[i].DiversionRate) {
			return false
		}
	}
	return true
}

func TestSweepIsDeterministic(t *testing.T) {
	sc := SweepConfig{
		Base:  shortDay(0),
		Rates: []float64{0.1, 0.4},
		Days:  4,
		Seed:  2024,
	}

	sc.Workers = 1
	serial, err := Sweep(context.Background(), sc, nil)
	if err != nil {
		t.Fatal(err)
	}
	sc.Workers = 4
	parallel, err := Sweep(context.Background(), sc, nil)
	if err != nil {
		t.Fatal(err)
	}

	if !sameRows(serial, parallel) {
		t.Errorf("worker count changed results:\n%+v\n%+v", serial, parallel)
	}
	if len(serial) != 2 || serial[0].Days != 4 || serial[1].ArrivalRate != 0.4 {
		t.Fatalf("unexpected rows %+v", serial)
	}
	if serial[1].ArrivalsPerDay <= serial[0].ArrivalsPerDay {
		t.Errorf("got %g arrivals per day at 0.4 and %g at 0.1", serial[1].ArrivalsPerDay,
			serial[0].ArrivalsPerDay)
	}
	for _, r := range serial {
		if r.CongestionRate.Low > r.CongestionRate.Mean || r.CongestionRate.Mean > r.CongestionRate.High {
			t.Errorf("malformed interval %+v", r.CongestionRate)
		}
	}
}

func TestSweeperMemoizes(t *testing.T) {
	sc := SweepConfig{Base: shortDay(0), Rates: []float64{0.2}, Days: 3, Seed: 1, Workers: 2}

	sw := NewSweeper(nil)
	first, err := sw.Sweep(context.Background(), sc)
	if err != nil {
		t.Fatal(err)
	}
	if sw.Simulated() != 3 {
		t.Fatalf("got %d simulated days, want 3", sw.Simulated())
	}

	second, err := sw.Sweep(context.Background(), sc)
	if err != nil {
		t.Fatal(err)
	}
	if sw.Simulated() != 3 {
		t.Errorf("repeated sweep simulated %d more days", sw.Simulated()-3)
	}
	if !sameRows(first, second) {
		t.Errorf("memoized results differ")
	}
}

func TestSweepDiskCache(t *testing.T) {
	saved := util.CacheRoot
	util.CacheRoot = t.TempDir()
	defer func() { util.CacheRoot = saved }()

	sc := SweepConfig{Base: shortDay(0), Rates: []float64{0.2}, Days: 2, Seed: 5, Workers: 1, DiskCache: true}

	sw := NewSweeper(nil)
	first, err := sw.Sweep(context.Background(), sc)
	if err != nil {
		t.Fatal(err)
	}

	fresh := NewSweeper(nil)
	second, err := fresh.Sweep(context.Background(), sc)
	if err != nil {
		t.Fatal(err)
	}
	if fresh.Simulated() != 0 {
		t.Errorf("got %d simulated days, want all from the disk cache", fresh.Simulated())
	}
	if !sameRows(first, second) {
		t.Errorf("cached results differ")
	}
}

func TestSweepErrors(t *testing.T) {
	ctx := context.Background()

	if _, err := Sweep(ctx, SweepConfig{Base: shortDay(0), Days: 1}, nil); !errors.Is(err, ErrNoRates) {
		t.Errorf("got %v, want ErrNoRates", err)
	}
	if _, err := Sweep(ctx, SweepConfig{Base: shortDay(0), Rates: []float64{0.1}}, nil); !errors.Is(err, ErrNoDays) {
		t.Errorf("got %v, want ErrNoDays", err)
	}
	if _, err := Sweep(ctx, SweepConfig{Base: shortDay(0), Rates: []float64{1.5}, Days: 1}, nil); !errors.Is(err, sim.ErrInvalidConfig) {
		t.Errorf("got %v, want ErrInvalidConfig", err)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	sc := SweepConfig{Base: shortDay(0), Rates: []float64{0.1}, Days: 2, Workers: 1}
	if _, err := Sweep(cancelled, sc, nil); !errors.Is(err, context.Canceled) {
		t.Errorf("got %v, want context.Canceled", err)
	}
}

func testRows() []Row {
	nan := gomath.NaN()
	return []Row{
		{
			ArrivalRate:    0.1,
			Days:           10,
			ArrivalsPerDay: 108.2,
			DivertedPerDay: 0.5,
			CongestionRate: math.Interval{Mean: 0.2, Low: 0.15, High: 0.25, N: 10},
			AverageDelay:   math.Interval{Mean: 3, Low: 2, High: 4, N: 10},
			DiversionRate:  math.Interval{Mean: 0.005, Low: 0.001, High: 0.009, N: 10},
		},
		{
			ArrivalRate:    0,
			Days:           10,
			CongestionRate: math.Interval{Mean: nan, Low: nan, High: nan},
			AverageDelay:   math.Interval{Mean: nan, Low: nan, High: nan},
			DiversionRate:  math.Interval{Mean: nan, Low: nan, High: nan},
		},
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, testRows()); err != nil {
		t.Fatal(err)
	}

	recs, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 3 {
		t.Fatalf("got %d records, want 3", len(recs))
	}
	for i, rec := range recs {
		if len(rec) != len(csvHeader) {
			t.Errorf("record %d: got %d fields, want %d", i, len(rec), len(csvHeader))
		}
	}
	if recs[1][0] != "0.1" || recs[1][2] != "108.200000" || recs[1][7] != "3.000000" {
		t.Errorf("unexpected record %v", recs[1])
	}
	if recs[2][4] != "NaN" {
		t.Errorf("got %q for a NaN rate", recs[2][4])
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, testRows()); err != nil {
		t.Fatal(err)
	}
	s := buf.String()

	keys := []string{`"arrival_rate"`, `"days"`, `"arrivals_per_day"`, `"diverted_per_day"`,
		`"congestion_rate"`, `"avg_delay_min"`, `"diversion_rate"`}
	prev := -1
	for _, k := range keys {
		i := strings.Index(s, k)
		if i <= prev {
			t.Errorf("key %s out of order", k)
		}
		prev = i
	}

	var rows []map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rows); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, s)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	delay := rows[1]["avg_delay_min"].(map[string]any)
	if delay["mean"] != nil {
		t.Errorf("got %v for a NaN mean, want null", delay["mean"])
	}
	if rows[0]["days"].(float64) != 10 {
		t.Errorf("got days %v, want 10", rows[0]["days"])
	}
}

func TestJSONFloat(t *testing.T) {
	tests := []struct {
		v    float64
		want any
	}{
		{1.5, 1.5},
		{0, 0.0},
		{gomath.NaN(), nil},
		{gomath.Inf(1), nil},
		{gomath.Inf(-1), nil},
	}
	for _, tt := range tests {
		if got := jsonFloat(tt.v); got != tt.want {
			t.Errorf("jsonFloat(%g): got %v, want %v", tt.v, got, tt.want)
		}
	}
}
