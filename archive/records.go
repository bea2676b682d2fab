// archive/records.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package archive

import (
	"fmt"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/mmp/arrivals/montecarlo"
	"github.com/mmp/arrivals/sim"
	"github.com/mmp/arrivals/util"
)

const (
	sweepsDir = "sweeps"
	tracesDir = "traces"
)

type SweepRecord struct {
	Created time.Time
	Base    sim.Config
	Rates   []float64
	Days    int
	Seed    int64
	Rows    []montecarlo.Row
}

// TraceRecord is a complete single-day run: every aircraft's final state
// and every event posted along the way.
type TraceRecord struct {
	Created  time.Time
	Config   sim.Config
	Aircraft []sim.Aircraft
	Events   []sim.Event
	Counters sim.Counters
}

func recordName(dir string, created time.Time, config any) string {
	hash, err := util.HashObject64(config)
	if err != nil {
		hash = 0
	}
	return path.Join(dir, fmt.Sprintf("%s-%016x.msgpack.zst", created.UTC().Format("20060102T150405"), hash))
}

// StoreSweep writes the record and returns its object name.
func StoreSweep(b StorageBackend, rec SweepRecord) (string, int64, error) {
	name := recordName(sweepsDir, rec.Created, rec.Base)
	n, err := b.StoreObject(name, rec)
	return name, n, err
}

func StoreTrace(b StorageBackend, rec TraceRecord) (string, int64, error) {
	name := recordName(tracesDir, rec.Created, rec.Config)
	n, err := b.StoreObject(name, rec)
	return name, n, err
}

func LoadSweep(b StorageBackend, name string) (SweepRecord, error) {
	var rec SweepRecord
	err := b.LoadObject(name, &rec)
	return rec, err
}

func LoadTrace(b StorageBackend, name string) (TraceRecord, error) {
	var rec TraceRecord
	err := b.LoadObject(name, &rec)
	return rec, err
}

// ListSweeps returns the names of all stored sweeps, oldest first.
func ListSweeps(b StorageBackend) ([]string, error) {
	return listRecords(b, sweepsDir)
}

func ListTraces(b StorageBackend) ([]string, error) {
	return listRecords(b, tracesDir)
}

func listRecords(b StorageBackend, dir string) ([]string, error) {
	m, err := b.List(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for name := range m {
		if strings.HasSuffix(name, ".msgpack.zst") {
			names = append(names, name)
		}
	}
	// Names start with the UTC creation time.
	slices.Sort(names)
	return names, nil
}
