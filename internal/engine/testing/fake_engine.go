// Package testing provides test doubles for the engine package.
package testing

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/rileyhilliard/dockhand/internal/engine"
)

// subscription is one open stream handed out by FakeEngine.
type subscription[T any] struct {
	ids     map[string]bool // nil means every entity
	ctx     context.Context
	mu      sync.Mutex
	pipe    *engine.Pipe[T]
	open    bool
	onClose func()
}

func (s *subscription[T]) send(v T) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return false
	}
	return s.pipe.Send(s.ctx, v)
}

func (s *subscription[T]) close(err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return false
	}
	s.open = false
	// The count drops before the channel closes, so a consumer that saw
	// the close never observes a stale count.
	s.onClose()
	s.pipe.Close(err)
	return true
}

// AttachCall records a call to Attach.
type AttachCall struct {
	ID string
}

// FakeEngine is an in-memory Engine. Tests push records and events into the
// open subscriptions and can inspect how many are still open.
type FakeEngine struct {
	mu sync.Mutex

	// Configuration
	Containers   []engine.Entity
	Images       []engine.Entity
	ListErr      error
	ListDelay    time.Duration // honours ctx, so a short deadline times out
	PingErr      error
	SubscribeErr error
	AttachFunc   func(ctx context.Context, id string, stdin io.Reader, stdout io.Writer) error

	// Call tracking
	ListCalls   int
	StatsCalls  [][]string
	AttachCalls []AttachCall

	stats  []*subscription[engine.StatsRecord]
	events []*subscription[engine.Event]
	active int
	cond   *sync.Cond
}

// NewFakeEngine creates an engine with no entities.
func NewFakeEngine() *FakeEngine {
	f := &FakeEngine{}
	f.cond = sync.NewCond(&f.mu)
	return f
}

// Ping returns PingErr.
func (f *FakeEngine) Ping(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.PingErr
}

// ListEntities returns the configured containers or images.
func (f *FakeEngine) ListEntities(ctx context.Context, kind engine.Kind) ([]engine.Entity, error) {
	f.mu.Lock()
	f.ListCalls++
	delay, err := f.ListDelay, f.ListErr
	containers := append([]engine.Entity(nil), f.Containers...)
	images := append([]engine.Entity(nil), f.Images...)
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}

	switch kind {
	case engine.KindContainer:
		return containers, nil
	case engine.KindImage:
		return images, nil
	case engine.KindAny:
		return append(containers, images...), nil
	}
	return nil, nil
}

// SubscribeStats opens a stats subscription for ids.
func (f *FakeEngine) SubscribeStats(ctx context.Context, ids []string) (*engine.Stream[engine.StatsRecord], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.StatsCalls = append(f.StatsCalls, append([]string(nil), ids...))
	if f.SubscribeErr != nil {
		return nil, f.SubscribeErr
	}

	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	sub := &subscription[engine.StatsRecord]{ids: set, ctx: ctx, pipe: engine.NewPipe[engine.StatsRecord](8), open: true, onClose: f.closed}
	f.stats = append(f.stats, sub)
	f.opened()
	go func() {
		<-ctx.Done()
		sub.close(nil)
	}()
	return sub.pipe.Stream(), nil
}

// SubscribeEvents opens an events subscription.
func (f *FakeEngine) SubscribeEvents(ctx context.Context) (*engine.Stream[engine.Event], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SubscribeErr != nil {
		return nil, f.SubscribeErr
	}

	sub := &subscription[engine.Event]{ctx: ctx, pipe: engine.NewPipe[engine.Event](8), open: true, onClose: f.closed}
	f.events = append(f.events, sub)
	f.opened()
	go func() {
		<-ctx.Done()
		sub.close(nil)
	}()
	return sub.pipe.Stream(), nil
}

// Attach records the call and delegates to AttachFunc, or copies stdin to
// stdout until ctx ends or stdin fails.
func (f *FakeEngine) Attach(ctx context.Context, id string, stdin io.Reader, stdout io.Writer) error {
	f.mu.Lock()
	f.AttachCalls = append(f.AttachCalls, AttachCall{ID: id})
	fn := f.AttachFunc
	f.mu.Unlock()

	if fn != nil {
		return fn(ctx, id, stdin, stdout)
	}
	done := make(chan error, 1)
	go func() {
		_, err := io.Copy(stdout, stdin)
		done <- err
	}()
	select {
	case <-ctx.Done():
		return nil
	case err := <-done:
		if err == engine.ErrDetached {
			return nil
		}
		return err
	}
}

// opened must be called with f.mu held.
func (f *FakeEngine) opened() {
	f.active++
	f.cond.Broadcast()
}

// EmitStats delivers rec to every open stats subscription covering rec.ID.
// It returns how many subscriptions received it.
func (f *FakeEngine) EmitStats(rec engine.StatsRecord) int {
	f.mu.Lock()
	subs := append([]*subscription[engine.StatsRecord](nil), f.stats...)
	f.mu.Unlock()

	n := 0
	for _, s := range subs {
		if s.ids[rec.ID] && s.send(rec) {
			n++
		}
	}
	return n
}

// EmitEvent delivers ev to every open events subscription.
func (f *FakeEngine) EmitEvent(ev engine.Event) int {
	f.mu.Lock()
	subs := append([]*subscription[engine.Event](nil), f.events...)
	f.mu.Unlock()

	n := 0
	for _, s := range subs {
		if s.send(ev) {
			n++
		}
	}
	return n
}

// EndStats ends the open stats subscriptions for id cleanly, the way the
// engine does when a container stops.
func (f *FakeEngine) EndStats(id string) {
	f.mu.Lock()
	subs := append([]*subscription[engine.StatsRecord](nil), f.stats...)
	f.mu.Unlock()
	for _, s := range subs {
		if s.ids[id] {
			s.close(nil)
		}
	}
}

// FailEvents terminates every open events subscription with err.
func (f *FakeEngine) FailEvents(err error) {
	f.mu.Lock()
	subs := append([]*subscription[engine.Event](nil), f.events...)
	f.mu.Unlock()
	for _, s := range subs {
		s.close(err)
	}
}

// FailStats terminates every open stats subscription with err.
func (f *FakeEngine) FailStats(err error) {
	f.mu.Lock()
	subs := append([]*subscription[engine.StatsRecord](nil), f.stats...)
	f.mu.Unlock()
	for _, s := range subs {
		s.close(err)
	}
}

func (f *FakeEngine) closed() {
	f.mu.Lock()
	f.active--
	f.cond.Broadcast()
	f.mu.Unlock()
}

// ActiveSubscriptions returns the number of streams not yet closed.
func (f *FakeEngine) ActiveSubscriptions() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active
}

// WaitForSubscriptions blocks until exactly n streams are open or the
// timeout passes, and reports whether the count was reached.
func (f *FakeEngine) WaitForSubscriptions(n int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	timer := time.AfterFunc(timeout, func() {
		f.mu.Lock()
		f.cond.Broadcast()
		f.mu.Unlock()
	})
	defer timer.Stop()

	f.mu.Lock()
	defer f.mu.Unlock()
	for f.active != n {
		if !time.Now().Before(deadline) {
			return false
		}
		f.cond.Wait()
	}
	return true
}

// SetContainers replaces the container list.
func (f *FakeEngine) SetContainers(entities ...engine.Entity) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Containers = entities
}

var _ engine.Engine = (*FakeEngine)(nil)
