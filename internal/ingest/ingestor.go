// Package ingest bridges the engine's stats and events streams into the
// metrics store. The ingestor is the store's only writer.
package ingest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rileyhilliard/dockhand/internal/engine"
	"github.com/rileyhilliard/dockhand/internal/errors"
	"github.com/rileyhilliard/dockhand/internal/logger"
	"github.com/rileyhilliard/dockhand/internal/metrics"
	"github.com/rileyhilliard/dockhand/internal/telemetry"
	"golang.org/x/time/rate"
)

// Defaults for Options.
const (
	DefaultGracePeriod   = 30 * time.Second
	DefaultSweepInterval = time.Second
)

// Options configure an Ingestor.
type Options struct {
	Store         *metrics.Store
	HistorySize   int // ring capacity when Store is nil
	Selector      Selector
	GracePeriod   time.Duration // evict a ring that saw no sample for this long
	EvictDelay    time.Duration // wait after die/destroy before evicting; 0 is immediate
	SweepInterval time.Duration // staleness checks and system samples
	Logger        logger.Logger
	Telemetry     *telemetry.Collector
	Now           func() time.Time
}

// Ingestor consumes engine streams for one live view.
type Ingestor struct {
	eng   engine.Engine
	store *metrics.Store
	opts  Options
	log   logger.Logger
	tel   *telemetry.Collector
	now   func() time.Time
	norm  *Normalizer

	clampWarn rate.Sometimes

	// Owned by the Run goroutine.
	follow  map[string]bool // explicit selection, by id
	subs    map[string]*statsSub
	records chan engine.StatsRecord
	ended   chan subEnd
	evict   chan string
	wg      sync.WaitGroup
}

// statsSub is one open per-entity stats subscription. Identity matters: a
// restarted container gets a new statsSub under the same id.
type statsSub struct {
	id     string
	cancel context.CancelFunc
}

type subEnd struct {
	sub *statsSub
	err error
}

// New creates an ingestor writing into opts.Store.
func New(eng engine.Engine, opts Options) *Ingestor {
	if opts.Store == nil {
		opts.Store = metrics.NewStore(opts.HistorySize)
	}
	if opts.GracePeriod <= 0 {
		opts.GracePeriod = DefaultGracePeriod
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = DefaultSweepInterval
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Ingestor{
		eng:       eng,
		store:     opts.Store,
		opts:      opts,
		log:       logger.OrDefault(opts.Logger),
		tel:       opts.Telemetry,
		now:       opts.Now,
		norm:      NewNormalizer(),
		clampWarn: rate.Sometimes{Interval: 10 * time.Second},
	}
}

// Store returns the store this ingestor writes.
func (i *Ingestor) Store() *metrics.Store { return i.store }

// Run subscribes and ingests until ctx is cancelled (returns nil) or a
// stream fails (returns the terminal error). Every subscription it opened
// is closed before it returns. Run is not retried internally; the owner
// decides what a failure means.
func (i *Ingestor) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	i.subs = make(map[string]*statsSub)
	i.follow = make(map[string]bool)
	i.records = make(chan engine.StatsRecord, 64)
	i.ended = make(chan subEnd, 8)
	i.evict = make(chan string, 8)

	// Events first, so a container starting during setup is not missed.
	events, err := i.eng.SubscribeEvents(ctx)
	if err != nil {
		return err
	}
	i.tel.SubscriptionOpened()
	defer i.teardown(cancel, events)

	initial, err := Resolve(ctx, i.eng, i.opts.Selector)
	if err != nil {
		return err
	}
	now := i.now()
	for _, e := range initial {
		if !i.opts.Selector.All() {
			i.follow[e.ID] = true
		}
		i.store.SetPresence(metrics.Presence{ID: e.ID, Name: e.Name, State: e.State})
		if e.State != metrics.StateRunning {
			continue
		}
		i.store.Ensure(e.ID, now)
		if err := i.subscribe(ctx, e.ID); err != nil {
			return err
		}
	}
	i.log.Debug("ingesting %s (%d running)", i.opts.Selector, len(i.subs))

	sweep := time.NewTicker(i.opts.SweepInterval)
	defer sweep.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-events.C:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				i.tel.StreamFailed()
				if err := events.Err(); err != nil {
					return err
				}
				return errors.Wrap(engine.ErrStreamClosed, "Events stream ended")
			}
			if err := i.handleEvent(ctx, ev); err != nil {
				return err
			}

		case rec := <-i.records:
			i.handleRecord(rec)

		case end := <-i.ended:
			if i.subs[end.sub.id] != end.sub {
				continue // already unsubscribed
			}
			delete(i.subs, end.sub.id)
			i.tel.SubscriptionClosed()
			if end.err != nil {
				i.tel.StreamFailed()
				return end.err
			}
			i.log.Debug("stats stream for %s ended", engine.ShortID(end.sub.id))

		case id := <-i.evict:
			if p, ok := i.store.PresenceOf(id); ok && p.State == metrics.StateRunning {
				continue // restarted while the eviction was pending
			}
			i.dropBuffer(id, telemetry.EvictLifecycle)

		case <-sweep.C:
			i.sweep()
		}
	}
}

func (i *Ingestor) tracked(id string) bool {
	return i.opts.Selector.All() || i.follow[id]
}

func (i *Ingestor) handleEvent(ctx context.Context, ev engine.Event) error {
	if !i.tracked(ev.ID) {
		return nil
	}

	switch ev.Action {
	case engine.ActionStart:
		i.store.SetPresence(metrics.Presence{ID: ev.ID, Name: ev.Name, State: metrics.StateRunning})
		i.store.Ensure(ev.ID, i.now())
		i.norm.Forget(ev.ID)
		return i.subscribe(ctx, ev.ID)

	case engine.ActionUnpause, engine.ActionRestart:
		i.store.SetPresence(metrics.Presence{ID: ev.ID, Name: ev.Name, State: metrics.StateRunning})

	case engine.ActionPause:
		i.store.SetPresence(metrics.Presence{ID: ev.ID, Name: ev.Name, State: metrics.StatePaused})

	case engine.ActionDie, engine.ActionStop:
		i.store.SetPresence(metrics.Presence{ID: ev.ID, Name: ev.Name, State: metrics.StateExited})
		i.scheduleEviction(ev.ID)

	case engine.ActionDestroy, engine.ActionRemove:
		i.store.RemovePresence(ev.ID)
		i.scheduleEviction(ev.ID)
	}
	return nil
}

func (i *Ingestor) handleRecord(rec engine.StatsRecord) {
	if _, ok := i.subs[rec.ID]; !ok {
		// A record already in flight when its subscription was cancelled.
		i.tel.SampleDropped(telemetry.DropUntracked)
		return
	}

	now := i.now()
	res := i.norm.Normalize(rec, now)
	if !res.OK {
		i.tel.SampleDropped(telemetry.DropFirstSample)
		return
	}
	if res.Clamped {
		i.tel.RateClamped()
		i.clampWarn.Do(func() {
			i.log.Warn("counter went backwards for %s; rate clamped to 0", engine.ShortID(rec.ID))
		})
	}
	if rec.Name != "" {
		if p, ok := i.store.PresenceOf(rec.ID); !ok || p.Name == "" {
			i.store.SetPresence(metrics.Presence{ID: rec.ID, Name: rec.Name, State: metrics.StateRunning})
		}
	}
	i.store.Push(rec.ID, res.Sample, now)
	i.tel.SampleIngested()
}

// subscribe opens a stats stream for id unless one is already open. A
// container that vanished between the event and the call is skipped; any
// other failure is terminal.
func (i *Ingestor) subscribe(ctx context.Context, id string) error {
	if _, ok := i.subs[id]; ok {
		return nil
	}

	subCtx, cancel := context.WithCancel(ctx)
	stream, err := i.eng.SubscribeStats(subCtx, []string{id})
	if err != nil {
		cancel()
		if errors.IsCode(err, errors.ErrInput) {
			i.log.Debug("skipping %s: %v", engine.ShortID(id), err)
			return nil
		}
		return err
	}

	sub := &statsSub{id: id, cancel: cancel}
	i.subs[id] = sub
	i.tel.SubscriptionOpened()
	i.wg.Add(1)
	go i.forward(subCtx, sub, stream)
	return nil
}

// forward copies one subscription into the shared channels. It drains the
// stream until the engine closes it, so teardown can wait on it.
func (i *Ingestor) forward(ctx context.Context, sub *statsSub, stream *engine.Stream[engine.StatsRecord]) {
	defer i.wg.Done()
	for rec := range stream.C {
		select {
		case i.records <- rec:
		case <-ctx.Done():
		}
	}
	select {
	case i.ended <- subEnd{sub: sub, err: stream.Err()}:
	case <-ctx.Done():
	}
}

func (i *Ingestor) unsubscribe(id string) {
	if sub, ok := i.subs[id]; ok {
		sub.cancel()
		delete(i.subs, id)
		i.tel.SubscriptionClosed()
	}
}

func (i *Ingestor) scheduleEviction(id string) {
	i.unsubscribe(id)
	i.norm.Forget(id)

	if i.opts.EvictDelay <= 0 {
		i.dropBuffer(id, telemetry.EvictLifecycle)
		return
	}
	time.AfterFunc(i.opts.EvictDelay, func() {
		select {
		case i.evict <- id:
		default:
			// Channel full: the sweep's grace period will catch it.
		}
	})
}

func (i *Ingestor) dropBuffer(id, reason string) {
	if i.store.Clear(id) {
		i.tel.BufferEvicted(reason)
		i.log.Debug("evicted buffer for %s (%s)", engine.ShortID(id), reason)
	}
}

// sweep evicts rings that went quiet without a lifecycle event and pushes
// the system aggregate.
func (i *Ingestor) sweep() {
	now := i.now()
	for _, id := range i.store.Stale(now.Add(-i.opts.GracePeriod)) {
		i.unsubscribe(id)
		i.norm.Forget(id)
		i.dropBuffer(id, telemetry.EvictGrace)
	}

	latest := i.store.Latest()
	if len(latest) == 0 {
		return
	}
	var sys metrics.Sample
	sys.Time = now
	for id, s := range latest {
		// A dead container keeps its ring until the evict delay passes,
		// but its last reading no longer counts toward the host.
		if p, ok := i.store.PresenceOf(id); !ok || p.State == metrics.StateExited {
			continue
		}
		sys.CPUPercent += s.CPUPercent
		sys.MemUsedBytes += s.MemUsedBytes
		sys.MemLimitBytes += s.MemLimitBytes
		sys.RxRate += s.RxRate
		sys.TxRate += s.TxRate
		sys.BlkReadRate += s.BlkReadRate
		sys.BlkWriteRate += s.BlkWriteRate
	}
	i.store.Push(metrics.SystemID, sys, now)
}

// teardown cancels every subscription and waits until the engine has
// closed them all.
func (i *Ingestor) teardown(cancel context.CancelFunc, events *engine.Stream[engine.Event]) {
	cancel()
	for id := range i.subs {
		i.unsubscribe(id)
	}

	done := make(chan struct{})
	go func() {
		i.wg.Wait()
		close(done)
	}()
	for {
		select {
		case <-done:
			<-events.Done()
			i.tel.SubscriptionClosed()
			return
		case <-i.records:
		case <-i.ended:
		}
	}
}

// String is used in log lines.
func (i *Ingestor) String() string {
	return fmt.Sprintf("ingestor(%s)", i.opts.Selector)
}
