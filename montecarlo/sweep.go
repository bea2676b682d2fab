// montecarlo/sweep.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package montecarlo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/mmp/arrivals/log"
	"github.com/mmp/arrivals/math"
	"github.com/mmp/arrivals/rand"
	"github.com/mmp/arrivals/sim"
	"github.com/mmp/arrivals/util"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/shirou/gopsutil/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"golang.org/x/sync/errgroup"
)

var (
	ErrNoRates = errors.New("No arrival rates given")
	ErrNoDays  = errors.New("Number of days must be positive")
)

type SweepConfig struct {
	Base  sim.Config
	Rates []float64
	Days  int
	// Seed drives the per-day seeds; the same Seed always yields the same
	// days regardless of Workers.
	Seed int64
	// Workers bounds the number of days simulated concurrently; zero
	// means one per physical core.
	Workers int
	// DiskCache keeps day results in the user cache directory across
	// runs.
	DiskCache bool
}

// Row summarizes all of the days run at one arrival rate.
type Row struct {
	ArrivalRate    float64
	Days           int
	ArrivalsPerDay float64
	DivertedPerDay float64
	CongestionRate math.Interval
	AverageDelay   math.Interval
	DiversionRate  math.Interval
}

// maxDiskCacheBytes bounds the on-disk day cache; older days are culled
// after each sweep that uses it.
const maxDiskCacheBytes = 256 << 20

type dayKey struct {
	config uint64
	seed   int64
}

// Sweeper runs sweeps, remembering recently simulated days so that
// repeated or overlapping sweeps don't redo work.
type Sweeper struct {
	lg       *log.Logger
	memo     *expirable.LRU[dayKey, DayResult]
	computed atomic.Int64
}

func NewSweeper(lg *log.Logger) *Sweeper {
	return &Sweeper{
		lg:   lg,
		memo: expirable.NewLRU[dayKey, DayResult](4096, nil, time.Hour),
	}
}

// Sweep is a convenience wrapper for a single sweep.
func Sweep(ctx context.Context, sc SweepConfig, lg *log.Logger) ([]Row, error) {
	return NewSweeper(lg).Sweep(ctx, sc)
}

// Simulated returns the number of days actually simulated, as opposed to
// found in a cache.
func (sw *Sweeper) Simulated() int64 {
	return sw.computed.Load()
}

func (sw *Sweeper) Sweep(ctx context.Context, sc SweepConfig) ([]Row, error) {
	if len(sc.Rates) == 0 {
		return nil, ErrNoRates
	}
	if sc.Days <= 0 {
		return nil, ErrNoDays
	}

	configs := make([]sim.Config, len(sc.Rates))
	for i, rate := range sc.Rates {
		configs[i] = sc.Base
		configs[i].ArrivalRate = rate

		var e util.ErrorLogger
		e.Push(fmt.Sprintf("rate %g", rate))
		configs[i].Validate(&e)
		if e.HaveErrors() {
			return nil, fmt.Errorf("%w:\n%s", sim.ErrInvalidConfig, e.String())
		}
	}

	// Seeds are drawn up front in a fixed order so that results do not
	// depend on scheduling.
	master := rand.New(sc.Seed)
	seeds := make([][]int64, len(sc.Rates))
	for i := range seeds {
		seeds[i] = make([]int64, sc.Days)
		for d := range seeds[i] {
			seeds[i][d] = int64(master.Intn(1_000_000_000))
		}
	}

	workers := sc.Workers
	if workers <= 0 {
		workers = defaultWorkers(sw.lg)
	}
	sw.lg.Info("starting sweep", slog.Int("rates", len(sc.Rates)), slog.Int("days", sc.Days),
		slog.Int("workers", workers))
	start := time.Now()

	results := make([][]DayResult, len(sc.Rates))
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)
	for i := range configs {
		results[i] = make([]DayResult, sc.Days)
		for d, seed := range seeds[i] {
			eg.Go(func() error {
				if err := ctx.Err(); err != nil {
					return err
				}
				r, err := sw.day(configs[i], seed, sc.DiskCache)
				results[i][d] = r
				return err
			})
		}
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	sw.lg.Info("finished sweep", slog.Duration("elapsed", time.Since(start)),
		slog.Int64("simulated", sw.Simulated()))

	if sc.DiskCache {
		if err := util.CacheCullObjects(maxDiskCacheBytes); err != nil {
			sw.lg.Warn("unable to cull day cache", slog.Any("error", err))
		}
	}

	rows := make([]Row, len(sc.Rates))
	for i, rate := range sc.Rates {
		rows[i] = summarize(rate, results[i])
	}
	return rows, nil
}

func (sw *Sweeper) day(config sim.Config, seed int64, diskCache bool) (DayResult, error) {
	config.Seed = 0
	h, err := util.HashObject64(config)
	if err != nil {
		return DayResult{}, err
	}
	key := dayKey{config: h, seed: seed}

	if r, ok := sw.memo.Get(key); ok {
		return r, nil
	}

	path := fmt.Sprintf("days/%016x-%d.msgpack", h, seed)
	if diskCache {
		var r DayResult
		if _, err := util.CacheRetrieveObject(path, &r); err == nil {
			sw.memo.Add(key, r)
			return r, nil
		}
	}

	r, err := RunDay(config, seed, sw.lg)
	if err != nil {
		return DayResult{}, err
	}
	sw.computed.Add(1)
	sw.memo.Add(key, r)

	if diskCache {
		if err := util.CacheStoreObject(path, r); err != nil {
			sw.lg.Warn("unable to cache day", slog.String("path", path), slog.Any("error", err))
		}
	}
	return r, nil
}

func defaultWorkers(lg *log.Logger) int {
	n, err := cpu.Counts(false)
	if err != nil || n <= 0 {
		n = runtime.NumCPU()
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		lg.Debug("host resources", slog.Int("cores", n),
			slog.Uint64("available_mb", vm.Available/(1024*1024)))
	}
	return n
}

func summarize(rate float64, days []DayResult) Row {
	stat := func(f func(DayResult) float64) []float64 { return util.MapSlice(days, f) }
	arrivals := stat(func(r DayResult) float64 { return float64(r.Arrivals) })
	diverted := stat(func(r DayResult) float64 { return float64(r.Diverted) })
	congestion := stat(DayResult.CongestionRate)
	delay := stat(DayResult.AverageDelay)
	diversion := stat(DayResult.DiversionRate)
	return Row{
		ArrivalRate:    rate,
		Days:           len(days),
		ArrivalsPerDay: math.Mean(arrivals),
		DivertedPerDay: math.Mean(diverted),
		CongestionRate: math.CI95(congestion),
		AverageDelay:   math.CI95(delay),
		DiversionRate:  math.CI95(diversion),
	}
}
