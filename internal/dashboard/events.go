package dashboard

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rileyhilliard/dockhand/internal/chart"
	"github.com/rileyhilliard/dockhand/internal/engine"
	"github.com/rileyhilliard/dockhand/internal/errors"
	"github.com/rileyhilliard/dockhand/internal/metrics"
	"github.com/rileyhilliard/dockhand/internal/telemetry"
)

// DefaultEventLogSize is how many events the monitor keeps.
const DefaultEventLogSize = 200

// EventLog is the events monitor: it keeps the most recent lifecycle
// events in a bounded log and draws them newest at the bottom.
type EventLog struct {
	eng engine.Engine
	tel *telemetry.Collector

	mu  sync.RWMutex
	log *metrics.Ring[engine.Event]
}

// NewEventLog creates an events monitor holding up to size events.
func NewEventLog(eng engine.Engine, size int, tel *telemetry.Collector) *EventLog {
	if size <= 0 {
		size = DefaultEventLogSize
	}
	return &EventLog{eng: eng, tel: tel, log: metrics.NewRing[engine.Event](size)}
}

// Run appends events until ctx ends. The events stream never ends on its
// own, so any other end is reported as a failure.
func (e *EventLog) Run(ctx context.Context) error {
	stream, err := e.eng.SubscribeEvents(ctx)
	if err != nil {
		return err
	}
	e.tel.SubscriptionOpened()
	defer e.tel.SubscriptionClosed()

	for ev := range stream.C {
		e.mu.Lock()
		e.log.Push(ev)
		e.mu.Unlock()
	}
	if ctx.Err() != nil {
		return nil
	}
	e.tel.StreamFailed()
	if err := stream.Err(); err != nil {
		return err
	}
	return errors.Wrap(engine.ErrStreamClosed, "Events stream ended")
}

// Events returns the last n events, oldest first.
func (e *EventLog) Events(n int) []engine.Event {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.log.Last(n)
}

// Compose draws as many of the latest events as fit.
func (e *EventLog) Compose(now time.Time, w, h int) chart.Grid {
	g := chart.NewGrid(w, h)
	if g.H == 0 {
		return g
	}

	top := 0
	if h >= 3 {
		header(g, "events", now.Format("15:04:05"))
		top = 1
	}

	events := e.Events(h - top)
	if len(events) == 0 {
		g.Text(0, top, "waiting for events…", chart.ClassMuted)
		return g
	}
	// Bottom-align so the newest event always sits on the last row.
	y := h - len(events)
	for _, ev := range events {
		n := g.Text(0, y, ev.Time.Format("15:04:05")+" ", chart.ClassMuted)
		n += g.Text(n, y, fmt.Sprintf("%-8s ", ev.Action), actionClass(ev.Action))
		name := ev.Name
		if name == "" {
			name = "-"
		}
		g.Text(n, y, engine.ShortID(ev.ID)+"  "+name, chart.ClassLabel)
		y++
	}
	return g
}

func actionClass(action string) chart.Class {
	switch action {
	case engine.ActionStart, engine.ActionUnpause, engine.ActionRestart, engine.ActionCreate:
		return chart.ClassOK
	case engine.ActionPause, engine.ActionStop:
		return chart.ClassWarn
	case engine.ActionDie, engine.ActionKill, engine.ActionDestroy, engine.ActionRemove:
		return chart.ClassCrit
	default:
		return chart.ClassAccent
	}
}
