// archive/archive_test.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package archive

import (
	"bytes"
	"io"
	"math"
	"os"
	fpath "path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	amath "github.com/mmp/arrivals/math"
	"github.com/mmp/arrivals/montecarlo"
	"github.com/mmp/arrivals/sim"
)

type testObject struct {
	Name   string
	Values []float64
	Counts map[string]int
}

func TestLocalRoundTrip(t *testing.T) {
	dir := t.TempDir()
	b, err := Open(dir, false)
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	obj := testObject{Name: "a", Values: []float64{1, 2.5, math.Inf(1)}, Counts: map[string]int{"x": 3}}
	n, err := b.StoreObject("sub/obj.msgpack.zst", obj)
	if err != nil {
		t.Fatal(err)
	}
	if n <= 0 {
		t.Errorf("StoreObject wrote %d bytes", n)
	}

	var back testObject
	if err := b.LoadObject("sub/obj.msgpack.zst", &back); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(obj, back) {
		t.Errorf("got %+v, want %+v", back, obj)
	}

	if _, err := b.Store("raw.txt", strings.NewReader("hello")); err != nil {
		t.Fatal(err)
	}
	r, err := b.OpenRead("raw.txt")
	if err != nil {
		t.Fatal(err)
	}
	raw, _ := io.ReadAll(r)
	r.Close()
	if string(raw) != "hello" {
		t.Errorf("got %q, want %q", raw, "hello")
	}

	m, err := b.List("")
	if err != nil {
		t.Fatal(err)
	}
	if len(m) != 2 || m["sub/obj.msgpack.zst"] != n || m["raw.txt"] != 5 {
		t.Errorf("unexpected listing %v", m)
	}

	if m, err := b.List("missing"); err != nil || len(m) != 0 {
		t.Errorf("List of missing dir: %v, %v", m, err)
	}

	if err := b.Delete("raw.txt"); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(fpath.Join(dir, "raw.txt")); !os.IsNotExist(err) {
		t.Errorf("raw.txt still present after Delete")
	}
}

func TestDryRunWritesNothing(t *testing.T) {
	dir := t.TempDir()
	b, err := Open(dir, true)
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	obj := testObject{Name: "dry", Values: []float64{1, 2, 3}}
	n, err := b.StoreObject("obj", obj)
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	want, err := encodeObject(&buf, obj)
	if err != nil {
		t.Fatal(err)
	}
	if n != want || int64(buf.Len()) != want {
		t.Errorf("dry run counted %d bytes, encoding is %d", n, want)
	}

	if n, err := b.Store("raw", strings.NewReader("12345678")); err != nil || n != 8 {
		t.Errorf("Store: got %d, %v", n, err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("dry run created %d entries", len(entries))
	}
}

func TestOpenGCSWithoutCredentials(t *testing.T) {
	t.Setenv(CredentialsEnv, "")
	if _, err := Open("gs://bucket/prefix", false); err != ErrNoCredentials {
		t.Errorf("got %v, want %v", err, ErrNoCredentials)
	}
	if _, err := MakeGCSBackend("", "x"); err == nil {
		t.Errorf("expected error for empty bucket name")
	}
}

func TestSweepRecords(t *testing.T) {
	b, err := Open(t.TempDir(), false)
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	base := sim.DefaultConfig()
	rec := SweepRecord{
		Created: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		Base:    base,
		Rates:   []float64{0.1},
		Days:    2,
		Seed:    7,
		Rows: []montecarlo.Row{{
			ArrivalRate:    0.1,
			Days:           2,
			ArrivalsPerDay: 100,
			AverageDelay:   amath.Interval{Mean: 1.5, Low: 1, High: 2},
		}},
	}
	name, _, err := StoreSweep(b, rec)
	if err != nil {
		t.Fatal(err)
	}

	later := rec
	later.Created = rec.Created.Add(time.Hour)
	if _, _, err := StoreSweep(b, later); err != nil {
		t.Fatal(err)
	}

	names, err := ListSweeps(b)
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 2 || names[0] != name {
		t.Fatalf("got %v, want %s first", names, name)
	}

	back, err := LoadSweep(b, name)
	if err != nil {
		t.Fatal(err)
	}
	if !back.Created.Equal(rec.Created) || back.Seed != rec.Seed || !reflect.DeepEqual(back.Rows, rec.Rows) {
		t.Errorf("got %+v, want %+v", back, rec)
	}

	if traces, err := ListTraces(b); err != nil || len(traces) != 0 {
		t.Errorf("ListTraces: got %v, %v", traces, err)
	}
}

func TestTraceRecord(t *testing.T) {
	b, err := Open(t.TempDir(), false)
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	config := sim.DefaultConfig()
	config.EndMinute = 120
	s, err := sim.NewSim(config, nil)
	if err != nil {
		t.Fatal(err)
	}
	sub := s.Events().Subscribe()
	var events []sim.Event
	if err := s.Run(func(int) { events = append(events, sub.Get()...) }); err != nil {
		t.Fatal(err)
	}

	rec := TraceRecord{
		Created:  time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		Config:   config,
		Aircraft: s.AllAircraft(),
		Events:   events,
		Counters: s.Counters,
	}
	name, _, err := StoreTrace(b, rec)
	if err != nil {
		t.Fatal(err)
	}
	back, err := LoadTrace(b, name)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(back.Aircraft, rec.Aircraft) || !reflect.DeepEqual(back.Events, rec.Events) ||
		back.Counters != rec.Counters {
		t.Errorf("trace did not round trip")
	}
}
