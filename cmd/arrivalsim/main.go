// cmd/arrivalsim/main.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/mmp/arrivals/archive"
	"github.com/mmp/arrivals/log"
	"github.com/mmp/arrivals/montecarlo"
	"github.com/mmp/arrivals/sim"
	"github.com/mmp/arrivals/util"

	"github.com/apenwarr/fixconsole"
	"github.com/shirou/gopsutil/cpu"
)

var (
	cpuprofile   = flag.String("cpuprofile", "", "write CPU profile to file")
	memprofile   = flag.String("memprofile", "", "write memory profile to this file")
	logLevel     = flag.String("loglevel", "info", "logging level: debug, info, warn, error")
	logDir       = flag.String("logdir", "", "log file directory")
	configFile   = flag.String("config", "", "JSON simulation configuration (defaults are used for missing fields)")
	arrivalRate  = flag.Float64("rate", -1, "per-minute arrival probability (overrides the configuration)")
	seed         = flag.Int64("seed", -1, "random seed (overrides the configuration)")
	controller   = flag.String("controller", "", "separation controller: single-pass, iterative, metering")
	reinsertion  = flag.String("reinsertion", "", "reinsertion policy: fifo, risk")
	closure      = flag.Bool("closure", false, "close the runway for 30 minutes starting at minute 180")
	goAround     = flag.Bool("goaround", false, "enable wind go-arounds with probability 0.1")
	dump         = flag.Bool("dump", false, "dump the final simulation state after run")
	rates        = flag.String("rates", "0.02,0.05,0.1,0.2,0.5,1", "comma-separated arrival rates to sweep")
	days         = flag.Int("days", 100, "number of simulated days per arrival rate")
	workers      = flag.Int("workers", 0, "number of days simulated concurrently (0: one per core)")
	diskCache    = flag.Bool("diskcache", false, "cache simulated days in the user cache directory")
	format       = flag.String("format", "csv", "sweep output format: csv, json")
	outFile      = flag.String("o", "", "write output to this file rather than stdout")
	archivePath  = flag.String("archive", "", "store results in this directory or gs://bucket/prefix")
	archiveDry   = flag.Bool("dryrun", false, "report archive sizes without writing anything")
	watchTickDur = flag.Duration("tick", 100*time.Millisecond, "wall-clock time per simulated minute in watch")
)

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), "usage: arrivalsim [flags] run|trace|sweep|watch|lint|list\n")
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	flag.Parse()

	if err := fixconsole.FixConsoleIfNeeded(); err != nil {
		fmt.Printf("FixConsole: %v\n", err)
	}

	command := "run"
	if flag.NArg() > 0 {
		command = flag.Arg(0)
	}

	lg := log.New(command == "sweep", *logLevel, *logDir)
	defer lg.CatchAndReportCrash()

	profiler, err := util.CreateProfiler(*cpuprofile, *memprofile)
	if err != nil {
		lg.Errorf("%v", err)
	}
	defer profiler.Cleanup()

	if info, err := cpu.Info(); err == nil && len(info) > 0 {
		lg.Info("host", "cpu", info[0].ModelName, "cores", len(info))
	}

	config, err := loadConfig()
	if err != nil && command != "lint" {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	switch command {
	case "lint":
		os.Exit(lint(config, err, lg))
	case "run", "trace":
		err = runDay(config, command == "trace", lg)
	case "sweep":
		err = sweep(config, lg)
	case "watch":
		err = watch(config, *watchTickDur, lg)
	case "list":
		err = list()
	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		lg.Errorf("%s: %v", command, err)
		fmt.Fprintf(os.Stderr, "%s: %v\n", command, err)
		profiler.Cleanup()
		os.Exit(1)
	}
}

// loadConfig returns the configuration from -config, with the
// command-line overrides applied.
func loadConfig() (sim.Config, error) {
	config := sim.DefaultConfig()
	if *configFile != "" {
		var err error
		if config, err = sim.LoadConfig(*configFile); err != nil {
			return config, err
		}
	}

	if *arrivalRate >= 0 {
		config.ArrivalRate = *arrivalRate
	}
	if *seed >= 0 {
		config.Seed = *seed
	}
	if *controller != "" {
		config.Controller = sim.ControllerKind(*controller)
	}
	if *reinsertion != "" {
		config.Reinsertion = sim.ReinsertionKind(*reinsertion)
	}
	if *closure && config.Closure == nil {
		config.Closure = sim.DefaultClosure()
	}
	if *goAround && config.GoAround == nil {
		config.GoAround = sim.DefaultGoAround()
	}

	var e util.ErrorLogger
	config.Validate(&e)
	if e.HaveErrors() {
		return config, fmt.Errorf("%w:\n%s", sim.ErrInvalidConfig, e.String())
	}
	return config, nil
}

func lint(config sim.Config, loadErr error, lg *log.Logger) int {
	var e util.ErrorLogger
	if loadErr != nil {
		e.Error(loadErr)
	} else {
		config.Validate(&e)
	}

	if e.HaveErrors() {
		e.PrintErrors(lg)
		return 1
	}
	fmt.Printf("%s: ok (controller %s, ordering %s, reinsertion %s)\n", util.Select(*configFile != "", *configFile, "defaults"),
		config.Controller, config.EffectiveOrdering(), config.Reinsertion)
	return 0
}

func output() (io.Writer, func() error, error) {
	if *outFile == "" {
		return os.Stdout, func() error { return nil }, nil
	}
	f, err := os.Create(*outFile)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}

func openArchive() (archive.StorageBackend, error) {
	if *archivePath == "" {
		return nil, nil
	}
	return archive.Open(*archivePath, *archiveDry)
}

func runDay(config sim.Config, trace bool, lg *log.Logger) error {
	s, err := sim.NewSim(config, lg)
	if err != nil {
		return err
	}

	w, closeOutput, err := output()
	if err != nil {
		return err
	}

	sub := s.Events().Subscribe()
	defer sub.Unsubscribe()

	var events []sim.Event
	var approach, congested int
	err = s.Run(func(tick int) {
		a, c := s.CongestionSample()
		approach += a
		congested += c

		evs := sub.Get()
		events = append(events, evs...)
		if trace {
			for _, ev := range evs {
				fmt.Fprintln(w, ev)
			}
		}
	})
	if err != nil {
		closeOutput()
		return err
	}

	var delays []float64
	for _, ev := range events {
		if ev.Type == sim.LandedEvent {
			delays = append(delays, ev.Delay)
		}
	}
	mean := 0.
	for _, d := range delays {
		mean += d
	}
	if len(delays) > 0 {
		mean /= float64(len(delays))
	}

	c := s.Counters
	fmt.Fprintf(w, "seed %d, rate %.3f, minutes %d-%d, controller %s, reinsertion %s\n", config.Seed,
		config.ArrivalRate, config.StartMinute, config.EndMinute, config.Controller, config.Reinsertion)
	fmt.Fprintf(w, "arrivals %d, landed %d, diverted %d, still airborne %d\n", c.Created, c.Landed, c.Diverted,
		c.Created-c.Landed-c.Diverted)
	fmt.Fprintf(w, "ejections %d, reinsertions %d, go-arounds %d, closure holds %d, non-converged %d\n",
		c.Ejections, c.Reinsertions, c.GoArounds, c.ClosureHolds, c.NonConverged)
	fmt.Fprintf(w, "congestion %.1f%% of %d aircraft-minutes, average delay %.2f min\n",
		100*float64(congested)/float64(max(approach, 1)), approach, mean)

	if *dump {
		fmt.Fprintln(w, s.Dump())
	}

	if err := closeOutput(); err != nil {
		return err
	}

	b, err := openArchive()
	if err != nil || b == nil {
		return err
	}
	defer b.Close()

	name, n, err := archive.StoreTrace(b, archive.TraceRecord{
		Created:  time.Now(),
		Config:   config,
		Aircraft: s.AllAircraft(),
		Events:   events,
		Counters: c,
	})
	if err != nil {
		return err
	}
	lg.Info("archived trace", "name", name, "bytes", n)
	fmt.Fprintf(os.Stderr, "archived %s (%s)\n", name, util.ByteCount(n))
	return nil
}

func parseRates(s string) ([]float64, error) {
	var r []float64
	for f := range strings.SplitSeq(s, ",") {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("%s: invalid arrival rate: %w", f, err)
		}
		r = append(r, v)
	}
	return r, nil
}

func sweep(config sim.Config, lg *log.Logger) error {
	rs, err := parseRates(*rates)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	sc := montecarlo.SweepConfig{
		Base:      config,
		Rates:     rs,
		Days:      *days,
		Seed:      config.Seed,
		Workers:   *workers,
		DiskCache: *diskCache,
	}

	start := time.Now()
	sw := montecarlo.NewSweeper(lg)
	rows, err := sw.Sweep(ctx, sc)
	if err != nil {
		return err
	}
	lg.Info("sweep finished", "rates", len(rs), "days", *days, "simulated", sw.Simulated(),
		"elapsed", time.Since(start))

	w, closeOutput, err := output()
	if err != nil {
		return err
	}
	switch *format {
	case "csv":
		err = montecarlo.WriteCSV(w, rows)
	case "json":
		err = montecarlo.WriteJSON(w, rows)
	default:
		err = fmt.Errorf("%s: unknown output format", *format)
	}
	if cerr := closeOutput(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}

	b, err := openArchive()
	if err != nil || b == nil {
		return err
	}
	defer b.Close()

	name, n, err := archive.StoreSweep(b, archive.SweepRecord{
		Created: time.Now(),
		Base:    config,
		Rates:   rs,
		Days:    *days,
		Seed:    sc.Seed,
		Rows:    rows,
	})
	if err != nil {
		return err
	}
	lg.Info("archived sweep", "name", name, "bytes", n)
	fmt.Fprintf(os.Stderr, "archived %s (%s)\n", name, util.ByteCount(n))
	return nil
}

// list prints the sweeps and traces stored in the -archive location.
func list() error {
	b, err := openArchive()
	if err != nil {
		return err
	} else if b == nil {
		return fmt.Errorf("-archive must be given")
	}
	defer b.Close()

	sweeps, err := archive.ListSweeps(b)
	if err != nil {
		return err
	}
	for _, name := range sweeps {
		rec, err := archive.LoadSweep(b, name)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		fmt.Printf("%s: %d rates x %d days, controller %s\n", name, len(rec.Rates), rec.Days, rec.Base.Controller)
	}

	traces, err := archive.ListTraces(b)
	if err != nil {
		return err
	}
	for _, name := range traces {
		fmt.Println(name)
	}
	return nil
}
