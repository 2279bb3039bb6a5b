package ingest

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rileyhilliard/dockhand/internal/engine"
	enginetest "github.com/rileyhilliard/dockhand/internal/engine/testing"
	"github.com/rileyhilliard/dockhand/internal/errors"
	"github.com/rileyhilliard/dockhand/internal/logger"
	"github.com/rileyhilliard/dockhand/internal/metrics"
	"github.com/rileyhilliard/dockhand/internal/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const wait = 2 * time.Second

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type harness struct {
	eng   *enginetest.FakeEngine
	store *metrics.Store
	ing   *Ingestor
	log   *logger.BufferLogger
	clock *fakeClock
	done  chan error
	stop  context.CancelFunc
}

func start(t *testing.T, eng *enginetest.FakeEngine, mutate func(*Options)) *harness {
	t.Helper()
	h := &harness{
		eng:   eng,
		store: metrics.NewStore(10),
		log:   logger.NewBufferLogger(),
		clock: &fakeClock{now: base},
		done:  make(chan error, 1),
	}
	opts := Options{
		Store:         h.store,
		Logger:        h.log,
		Now:           h.clock.Now,
		SweepInterval: time.Hour,
	}
	if mutate != nil {
		mutate(&opts)
	}
	h.ing = New(eng, opts)

	ctx, cancel := context.WithCancel(context.Background())
	h.stop = cancel
	go func() { h.done <- h.ing.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-h.done:
		case <-time.After(wait):
		}
	})
	return h
}

func (h *harness) finish(t *testing.T) error {
	t.Helper()
	h.stop()
	select {
	case err := <-h.done:
		return err
	case <-time.After(wait):
		t.Fatal("ingestor did not stop")
		return nil
	}
}

func TestIngestor_WritesNormalizedSamples(t *testing.T) {
	h := start(t, newEngine(), nil)
	// events + web + db; batch is exited
	require.True(t, h.eng.WaitForSubscriptions(3, wait))

	for i, rx := range []uint64{100, 140, 130} {
		require.Equal(t, 1, h.eng.EmitStats(engine.StatsRecord{ID: "aaa111", Name: "web", Read: base.Add(time.Duration(i) * time.Second), RxBytes: rx}))
	}

	require.Eventually(t, func() bool { return len(h.store.Snapshot("aaa111").Samples) == 2 }, wait, 5*time.Millisecond)
	snap := h.store.Snapshot("aaa111")
	assert.Equal(t, []float64{40, 0}, metrics.Values(snap.Samples, metrics.FieldRx))
	assert.Equal(t, "web", snap.Name)
	assert.True(t, h.log.HasLevel("warn"), "clamping is logged")

	p, ok := h.store.PresenceOf("ccc333")
	require.True(t, ok)
	assert.Equal(t, metrics.StateExited, p.State)

	assert.NoError(t, h.finish(t))
	assert.Equal(t, 0, h.eng.ActiveSubscriptions())
}

func TestIngestor_StartThenStopEvictsBuffer(t *testing.T) {
	eng := enginetest.NewFakeEngine()
	h := start(t, eng, nil)
	require.True(t, eng.WaitForSubscriptions(1, wait))

	eng.EmitEvent(engine.Event{ID: "x", Name: "worker", Action: engine.ActionStart})
	require.Eventually(t, func() bool { return h.store.Has("x") }, wait, 5*time.Millisecond)
	require.True(t, eng.WaitForSubscriptions(2, wait), "start in all mode subscribes")

	eng.EmitEvent(engine.Event{ID: "x", Name: "worker", Action: engine.ActionStop})
	require.Eventually(t, func() bool { return !h.store.Has("x") }, wait, 5*time.Millisecond)

	assert.True(t, h.store.Snapshot("x").Empty())
	require.True(t, eng.WaitForSubscriptions(1, wait), "stats subscription released")

	p, ok := h.store.PresenceOf("x")
	require.True(t, ok)
	assert.Equal(t, metrics.StateExited, p.State)

	eng.EmitEvent(engine.Event{ID: "x", Action: engine.ActionDestroy})
	require.Eventually(t, func() bool {
		_, ok := h.store.PresenceOf("x")
		return !ok
	}, wait, 5*time.Millisecond)
}

func TestIngestor_SelectedModeIgnoresOthers(t *testing.T) {
	eng := newEngine()
	h := start(t, eng, func(o *Options) { o.Selector = Selector{Names: []string{"web"}} })
	require.True(t, eng.WaitForSubscriptions(2, wait))

	eng.EmitEvent(engine.Event{ID: "zzz", Action: engine.ActionStart})
	eng.EmitEvent(engine.Event{ID: "aaa111", Action: engine.ActionPause})
	require.Eventually(t, func() bool {
		p, _ := h.store.PresenceOf("aaa111")
		return p.State == metrics.StatePaused
	}, wait, 5*time.Millisecond)

	assert.False(t, h.store.Has("zzz"))
	assert.Equal(t, 2, eng.ActiveSubscriptions())
	_, known := h.store.PresenceOf("aab222")
	assert.False(t, known)
}

func TestIngestor_DelayedEviction(t *testing.T) {
	eng := newEngine()
	h := start(t, eng, func(o *Options) { o.EvictDelay = 30 * time.Millisecond })
	require.True(t, eng.WaitForSubscriptions(3, wait))

	eng.EmitEvent(engine.Event{ID: "aaa111", Action: engine.ActionDie})
	require.Eventually(t, func() bool {
		p, _ := h.store.PresenceOf("aaa111")
		return p.State == metrics.StateExited
	}, wait, 5*time.Millisecond)
	assert.True(t, h.store.Has("aaa111"), "eviction waits for the delay")

	require.Eventually(t, func() bool { return !h.store.Has("aaa111") }, wait, 5*time.Millisecond)
}

func TestIngestor_GracePeriodAndSystemSample(t *testing.T) {
	eng := newEngine()
	h := start(t, eng, func(o *Options) {
		o.Selector = Selector{Names: []string{"web", "db"}}
		o.SweepInterval = 5 * time.Millisecond
		o.GracePeriod = time.Minute
	})
	require.True(t, eng.WaitForSubscriptions(3, wait))

	eng.EmitStats(engine.StatsRecord{ID: "aaa111", Read: base, MemUsed: 10, MemLimit: 100})
	eng.EmitStats(engine.StatsRecord{ID: "aaa111", Read: base.Add(time.Second), MemUsed: 20, MemLimit: 100})

	require.Eventually(t, func() bool { return !h.store.Snapshot(metrics.SystemID).Empty() }, wait, 5*time.Millisecond)
	sys, _ := h.store.Snapshot(metrics.SystemID).Latest()
	assert.Equal(t, uint64(20), sys.MemUsedBytes)

	// db never reported; once the grace period passes both go stale.
	h.clock.Advance(2 * time.Minute)
	require.Eventually(t, func() bool {
		return !h.store.Has("aaa111") && !h.store.Has("aab222")
	}, wait, 5*time.Millisecond)
	require.True(t, eng.WaitForSubscriptions(1, wait))
}

func TestIngestor_SkewedEngineClockKeepsStreamingRing(t *testing.T) {
	eng := newEngine()
	h := start(t, eng, func(o *Options) {
		o.Selector = Selector{Names: []string{"web"}}
		o.SweepInterval = 5 * time.Millisecond
		o.GracePeriod = 30 * time.Second
	})
	require.True(t, eng.WaitForSubscriptions(2, wait))

	// The engine's clock runs two minutes behind ours.
	skew := -2 * time.Minute
	for i := 0; i < 40; i++ {
		read := h.clock.Now().Add(skew)
		require.Equal(t, 1, eng.EmitStats(engine.StatsRecord{ID: "aaa111", Read: read, RxBytes: uint64(i * 10)}))
		if i > 0 {
			require.Eventually(t, func() bool {
				last, ok := h.store.Snapshot("aaa111").Latest()
				return ok && last.Time.Equal(read)
			}, wait, time.Millisecond)
		}
		h.clock.Advance(time.Second)
	}

	// Give the sweep a few passes at the final clock reading.
	time.Sleep(30 * time.Millisecond)
	assert.True(t, h.store.Has("aaa111"), "a container still reporting is never stale")
	assert.Equal(t, 2, eng.ActiveSubscriptions())
	assert.Len(t, h.store.Snapshot("aaa111").Samples, 10)
}

func TestIngestor_SystemSampleSkipsDeadContainers(t *testing.T) {
	eng := newEngine()
	h := start(t, eng, func(o *Options) {
		o.Selector = Selector{Names: []string{"web", "db"}}
		o.SweepInterval = 5 * time.Millisecond
		o.EvictDelay = time.Hour
	})
	require.True(t, eng.WaitForSubscriptions(3, wait))

	for i, mem := range []uint64{10, 20} {
		read := base.Add(time.Duration(i) * time.Second)
		eng.EmitStats(engine.StatsRecord{ID: "aaa111", Read: read, MemUsed: mem, MemLimit: 100})
		eng.EmitStats(engine.StatsRecord{ID: "aab222", Read: read, MemUsed: mem / 4, MemLimit: 100})
	}
	systemMem := func() uint64 {
		sys, _ := h.store.Snapshot(metrics.SystemID).Latest()
		return sys.MemUsedBytes
	}
	require.Eventually(t, func() bool { return systemMem() == 25 }, wait, 5*time.Millisecond)

	eng.EmitEvent(engine.Event{ID: "aaa111", Name: "web", Action: engine.ActionDie})
	require.Eventually(t, func() bool { return systemMem() == 5 }, wait, 5*time.Millisecond)
	assert.True(t, h.store.Has("aaa111"), "ring kept until the evict delay passes")
}

func TestIngestor_EventsFailureIsTerminal(t *testing.T) {
	eng := newEngine()
	tel := telemetry.NewCollector()
	h := start(t, eng, func(o *Options) { o.Telemetry = tel })
	require.True(t, eng.WaitForSubscriptions(3, wait))

	eng.FailEvents(errors.Wrap(engine.ErrStreamClosed, "Events stream ended"))

	select {
	case err := <-h.done:
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.ErrConnectivity))
	case <-time.After(wait):
		t.Fatal("ingestor kept running after the events stream died")
	}
	assert.Equal(t, 0, eng.ActiveSubscriptions())
	expected := `
# HELP dockhand_stream_failures_total Engine streams that ended with an error
# TYPE dockhand_stream_failures_total counter
dockhand_stream_failures_total 1
`
	assert.NoError(t, testutil.GatherAndCompare(tel.Registry(), strings.NewReader(expected), "dockhand_stream_failures_total"))
}

func TestIngestor_StatsFailureIsTerminal(t *testing.T) {
	eng := newEngine()
	h := start(t, eng, nil)
	require.True(t, eng.WaitForSubscriptions(3, wait))

	eng.FailStats(errors.Wrap(engine.ErrStreamClosed, "connection reset"))

	select {
	case err := <-h.done:
		require.Error(t, err)
		assert.ErrorIs(t, err, engine.ErrStreamClosed)
	case <-time.After(wait):
		t.Fatal("ingestor kept running after a stats stream failed")
	}
	assert.Equal(t, 0, eng.ActiveSubscriptions())
}

func TestIngestor_CleanStatsEndIsNotAnError(t *testing.T) {
	eng := newEngine()
	h := start(t, eng, nil)
	require.True(t, eng.WaitForSubscriptions(3, wait))

	eng.EndStats("aaa111")
	require.True(t, eng.WaitForSubscriptions(2, wait))

	select {
	case err := <-h.done:
		t.Fatalf("ingestor stopped unexpectedly: %v", err)
	case <-time.After(50 * time.Millisecond):
	}
	assert.NoError(t, h.finish(t))
}

func TestIngestor_SubscribeFailure(t *testing.T) {
	eng := newEngine()
	eng.SubscribeErr = errors.New(errors.ErrConnectivity, "engine down", "")

	err := New(eng, Options{}).Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrConnectivity))
}

func TestIngestor_UnknownSelection(t *testing.T) {
	eng := newEngine()
	err := New(eng, Options{Selector: Selector{Names: []string{"ghost"}}}).Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrInput))
	assert.Equal(t, 0, eng.ActiveSubscriptions())
}
