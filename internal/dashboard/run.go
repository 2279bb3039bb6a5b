package dashboard

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rileyhilliard/dockhand/internal/engine"
	"github.com/rileyhilliard/dockhand/internal/ingest"
)

// Live runs act on a fresh loop until ctx ends, the user leaves an
// interactive screen, or act fails. Streams are released and the terminal
// restored before it returns. The result is act's failure, or nil.
func Live(ctx context.Context, screen Screen, act Activity, opts Options) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	loop := NewLoop(screen, opts)
	if err := loop.Start(ctx, act); err != nil {
		return err
	}

	screenDone := make(chan error, 1)
	if is, ok := screen.(Interactive); ok {
		go func() {
			err := is.Run(ctx)
			cancel()
			screenDone <- err
		}()
	} else {
		screenDone <- nil
	}

	select {
	case <-ctx.Done():
	case <-loop.Done():
	}
	err := loop.Stop()
	cancel()
	if serr := <-screenDone; err == nil {
		err = serr
	}
	return err
}

// Deps are what the dashboard entry points need from the caller.
type Deps struct {
	Engine engine.Engine
	// Screen defaults to DefaultScreen over stdin and stdout.
	Screen Screen
	View   View
	// Ingest carries grace period, history size and friends; Selector is
	// filled in by RunDashboard.
	Ingest ingest.Options
	Loop   Options
	// EventLogSize bounds the events monitor.
	EventLogSize int
	Stderr       io.Writer
}

func (d Deps) screen() Screen {
	if d.Screen != nil {
		return d.Screen
	}
	return DefaultScreen(os.Stdin, os.Stdout)
}

func (d Deps) stderr() io.Writer {
	if d.Stderr != nil {
		return d.Stderr
	}
	return os.Stderr
}

// RunDashboard shows deps.View for the selected containers, redrawn every
// tick, until ctx is cancelled or the user quits. It returns 0 on a normal
// stop and 1 when the view failed.
func RunDashboard(ctx context.Context, deps Deps, sel ingest.Selector, tick time.Duration) int {
	opts := deps.Loop
	if tick > 0 {
		opts.Interval = tick
	}
	in := deps.Ingest
	in.Selector = sel
	if in.Logger == nil {
		in.Logger = opts.Logger
	}
	if in.Telemetry == nil {
		in.Telemetry = opts.Telemetry
	}

	act := NewCharts(deps.Engine, deps.View, in)
	return exitStatus(deps.stderr(), Live(ctx, deps.screen(), act, opts))
}

// RunEvents shows the events monitor until ctx is cancelled or the user
// quits. Exit status follows RunDashboard.
func RunEvents(ctx context.Context, deps Deps) int {
	act := NewEventLog(deps.Engine, deps.EventLogSize, deps.Loop.Telemetry)
	return exitStatus(deps.stderr(), Live(ctx, deps.screen(), act, deps.Loop))
}

func exitStatus(w io.Writer, err error) int {
	if err == nil {
		return 0
	}
	fmt.Fprintln(w, err.Error())
	return 1
}
