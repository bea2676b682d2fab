// cmd/arrivalsim/watch.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/mmp/arrivals/log"
	"github.com/mmp/arrivals/sim"

	"github.com/gdamore/tcell/v2"
)

const maxWatchEvents = 200

type watchState struct {
	s      *sim.Sim
	sub    *sim.EventsSubscription
	tick   int
	paused bool
	done   bool
	delay  time.Duration
	events []sim.Event
}

// watch runs a single day, redrawing the lanes after every simulated
// minute. Space pauses, +/- change the rate, n steps while paused, q
// quits.
func watch(config sim.Config, delay time.Duration, lg *log.Logger) error {
	s, err := sim.NewSim(config, lg)
	if err != nil {
		return err
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("creating screen: %w", err)
	}
	if err := screen.Init(); err != nil {
		return fmt.Errorf("initializing screen: %w", err)
	}
	defer screen.Fini()

	screen.SetStyle(tcell.StyleDefault.
		Background(tcell.ColorReset).
		Foreground(tcell.ColorReset))

	state := &watchState{
		s:     s,
		sub:   s.Events().Subscribe(),
		tick:  config.StartMinute,
		delay: delay,
	}
	defer state.sub.Unsubscribe()

	eventCh := make(chan tcell.Event)
	quitCh := make(chan struct{})
	defer close(quitCh)
	go screen.ChannelEvents(eventCh, quitCh)

	timer := time.NewTimer(state.delay)
	defer timer.Stop()

	for {
		renderWatch(screen, state)
		screen.Show()

		select {
		case ev := <-eventCh:
			if quit := state.handleEvent(ev, screen); quit {
				return nil
			}
		case <-timer.C:
			if !state.paused && !state.done {
				if err := state.step(); err != nil {
					return err
				}
			}
			timer.Reset(state.delay)
		}
	}
}

func (w *watchState) step() error {
	if w.tick >= w.s.Config.EndMinute {
		w.done = true
		return nil
	}
	if err := w.s.Tick(w.tick); err != nil {
		return err
	}
	w.tick++

	w.events = append(w.events, w.sub.Get()...)
	if n := len(w.events); n > maxWatchEvents {
		w.events = w.events[n-maxWatchEvents:]
	}
	return nil
}

func (w *watchState) handleEvent(ev tcell.Event, screen tcell.Screen) (quit bool) {
	switch ev := ev.(type) {
	case *tcell.EventResize:
		screen.Sync()

	case *tcell.EventKey:
		switch ev.Key() {
		case tcell.KeyEscape, tcell.KeyCtrlC:
			return true
		case tcell.KeyRune:
			switch ev.Rune() {
			case 'q':
				return true
			case ' ':
				w.paused = !w.paused
			case 'n':
				if w.paused && !w.done {
					if err := w.step(); err != nil {
						return true
					}
				}
			case '+', '=':
				w.delay = max(w.delay/2, time.Millisecond)
			case '-':
				w.delay = min(w.delay*2, 5*time.Second)
			}
		}
	}
	return false
}

func renderWatch(screen tcell.Screen, w *watchState) {
	screen.Clear()
	width, height := screen.Size()

	styleHeader := tcell.StyleDefault.Bold(true).Reverse(true)
	styleLane := tcell.StyleDefault.Foreground(tcell.ColorGray)
	styleActive := tcell.StyleDefault.Foreground(tcell.ColorGreen).Bold(true)
	styleSlowed := tcell.StyleDefault.Foreground(tcell.ColorYellow).Bold(true)
	styleHeld := tcell.StyleDefault.Foreground(tcell.ColorRed).Bold(true)
	styleHelp := tcell.StyleDefault.Foreground(tcell.ColorGray)

	s := w.s
	c := s.Counters
	status := fmt.Sprintf(" minute %d/%d  active %d  held %d  landed %d  diverted %d  ejections %d  reinsertions %d ",
		w.tick, s.Config.EndMinute, len(s.ActiveIDs()), len(s.HeldIDs()), c.Landed, c.Diverted, c.Ejections, c.Reinsertions)
	if w.paused {
		status += " [paused]"
	} else if w.done {
		status += " [done]"
	}
	drawText(screen, 0, 0, width, styleHeader, status)

	if width < 20 || height < 8 {
		return
	}

	// Lanes: runway at the left edge, the entry boundary at the right.
	laneWidth := width - 8
	column := func(d float64) int {
		return 7 + int(d/s.Config.DivertDistanceNM*float64(laneWidth-1)+0.5)
	}
	drawText(screen, 0, 2, width, styleLane, "  in  |"+strings.Repeat("-", laneWidth))
	drawText(screen, 0, 3, width, styleLane, " out  |"+strings.Repeat("-", laneWidth))

	for _, id := range s.ActiveIDs() {
		ac, _ := s.GetAircraft(id)
		vmin, vmax := s.Bands.Limits(ac.DistanceNM)
		style := styleActive
		if ac.SpeedKts < vmax-1e-9 {
			style = styleSlowed
		}
		if ac.SpeedKts <= vmin+1e-9 {
			style = styleHeld
		}
		screen.SetContent(min(column(ac.DistanceNM), width-1), 2, '>', nil, style)
	}
	for _, id := range s.HeldIDs() {
		ac, _ := s.GetAircraft(id)
		screen.SetContent(min(column(ac.DistanceNM), width-1), 3, heldRune(ac.Status), nil, styleHeld)
	}

	// Most recent events, newest last.
	y := 5
	n := min(len(w.events), height-y-1)
	for _, ev := range w.events[len(w.events)-n:] {
		drawText(screen, 0, y, width, tcell.StyleDefault, ev.String())
		y++
	}

	drawText(screen, 0, height-1, width, styleHelp, " [Space]=Pause  [n]=Step  [+/-]=Speed  [q]=Quit ")
}

func heldRune(st sim.Status) rune {
	if st == sim.StatusGoAround {
		return 'G'
	}
	return '<'
}

// drawText draws a string at the given position, filling the rest of the
// line with spaces.
func drawText(screen tcell.Screen, x, y, maxWidth int, style tcell.Style, text string) {
	col := 0
	for _, r := range text {
		if col >= maxWidth {
			break
		}
		screen.SetContent(x+col, y, r, nil, style)
		col++
	}
	for col < maxWidth {
		screen.SetContent(x+col, y, ' ', nil, style)
		col++
	}
}
