// Package dashboard runs live views: a ticking render loop over an
// activity (charts fed by the ingestor, or the events monitor) drawn to a
// screen that is replaced on every frame.
package dashboard

import (
	"context"
	stderrors "errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rileyhilliard/dockhand/internal/chart"
	"github.com/rileyhilliard/dockhand/internal/logger"
	"github.com/rileyhilliard/dockhand/internal/telemetry"
)

// State is the loop's lifecycle position.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// Loop timing defaults.
const (
	DefaultInterval      = time.Second
	MinInterval          = 100 * time.Millisecond
	DefaultRenderTimeout = 500 * time.Millisecond
)

// ErrNotIdle is returned by Start on a loop that is already running.
var ErrNotIdle = stderrors.New("dashboard loop is not idle")

// Screen is where frames go. Draw replaces whatever was shown before.
type Screen interface {
	Size() (width, height int)
	Draw(frame string) error
}

// Options configure a Loop.
type Options struct {
	Interval      time.Duration
	RenderTimeout time.Duration
	Palette       chart.Palette
	Logger        logger.Logger
	Telemetry     *telemetry.Collector
	Now           func() time.Time
}

// Loop renders an activity on every tick. At most one render pass is in
// flight; a tick that arrives while one is running is skipped.
type Loop struct {
	screen Screen
	opts   Options
	log    logger.Logger
	tel    *telemetry.Collector

	state    atomic.Int32
	inFlight atomic.Bool

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// NewLoop creates an idle loop drawing to screen.
func NewLoop(screen Screen, opts Options) *Loop {
	switch {
	case opts.Interval <= 0:
		opts.Interval = DefaultInterval
	case opts.Interval < MinInterval:
		opts.Interval = MinInterval
	}
	if opts.RenderTimeout <= 0 {
		opts.RenderTimeout = DefaultRenderTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Loop{
		screen: screen,
		opts:   opts,
		log:    logger.OrDefault(opts.Logger),
		tel:    opts.Telemetry,
	}
}

// State returns the current lifecycle state.
func (l *Loop) State() State { return State(l.state.Load()) }

// Start moves the loop from Idle to Running and begins feeding and drawing
// act in the background.
func (l *Loop) Start(ctx context.Context, act Activity) error {
	if !l.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return ErrNotIdle
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	l.mu.Lock()
	l.cancel, l.done, l.err = cancel, done, nil
	l.mu.Unlock()

	l.log.Debug("dashboard loop started (interval %s)", l.opts.Interval)
	go l.run(ctx, cancel, act, done)
	return nil
}

// Done is closed once the loop has returned to Idle. It is nil before the
// first Start.
func (l *Loop) Done() <-chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.done
}

// Stop cancels the loop and waits for it to release the activity's
// streams. It returns the failure that ended the loop, if any; a loop
// ended by Stop itself reports nil.
func (l *Loop) Stop() error {
	l.mu.Lock()
	cancel, done := l.cancel, l.done
	l.mu.Unlock()
	if cancel == nil {
		return nil
	}

	l.state.CompareAndSwap(int32(StateRunning), int32(StateStopping))
	cancel()
	<-done
	return l.Err()
}

// Wait blocks until the loop ends on its own or is stopped.
func (l *Loop) Wait() error {
	if done := l.Done(); done != nil {
		<-done
	}
	return l.Err()
}

// Err returns the failure that ended the last run.
func (l *Loop) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

func (l *Loop) run(ctx context.Context, cancel context.CancelFunc, act Activity, done chan struct{}) {
	defer func() {
		cancel()
		l.state.Store(int32(StateIdle))
		close(done)
	}()

	feed := make(chan error, 1)
	go func() { feed <- act.Run(ctx) }()

	ticker := time.NewTicker(l.opts.Interval)
	defer ticker.Stop()

	l.tick(ctx, act)
	for {
		select {
		case <-ctx.Done():
			<-feed
			l.log.Debug("dashboard loop stopped")
			return

		case err := <-feed:
			if err != nil && ctx.Err() == nil {
				l.mu.Lock()
				l.err = err
				l.mu.Unlock()
				l.log.Error("live view ended: %v", err)
			}
			return

		case <-ticker.C:
			l.tick(ctx, act)
		}
	}
}

// tick runs one render pass, waiting at most RenderTimeout for it. A pass
// that overruns keeps the in-flight slot until it finishes, so following
// ticks are skipped rather than queued.
func (l *Loop) tick(ctx context.Context, act Activity) {
	if !l.inFlight.CompareAndSwap(false, true) {
		l.tel.FrameSkipped(telemetry.SkipInFlight)
		return
	}

	// Zero means nothing was drawn.
	rendered := make(chan time.Duration, 1)
	go func() {
		defer l.inFlight.Store(false)
		start := time.Now()
		w, h := l.screen.Size()
		frame := act.Compose(l.opts.Now(), w, h).Render(l.opts.Palette)
		if l.State() != StateRunning {
			rendered <- 0
			return
		}
		if err := l.screen.Draw(frame); err != nil {
			l.log.Debug("draw failed: %v", err)
			rendered <- 0
			return
		}
		rendered <- max(time.Since(start), time.Nanosecond)
	}()

	timer := time.NewTimer(l.opts.RenderTimeout)
	defer timer.Stop()

	select {
	case d := <-rendered:
		if d > 0 {
			l.tel.FrameRendered(d)
		}
	case <-timer.C:
		l.tel.FrameSkipped(telemetry.SkipTimeout)
		l.log.Warn("render pass exceeded %s; frame skipped", l.opts.RenderTimeout)
	case <-ctx.Done():
	}
}
