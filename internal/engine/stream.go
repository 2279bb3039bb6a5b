package engine

import (
	"context"
	"sync"
)

// Stream is the receiving end of a subscription. C is closed when the
// subscription ends; Err then reports why.
type Stream[T any] struct {
	C <-chan T

	mu   sync.Mutex
	err  error
	done chan struct{}
}

// Done is closed once the stream has ended and Err is final.
func (s *Stream[T]) Done() <-chan struct{} { return s.done }

// Err is nil while the stream runs and after a clean end or cancellation.
func (s *Stream[T]) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Pipe is the sending end of a Stream. Producers own exactly one Pipe and
// must call Close once.
type Pipe[T any] struct {
	ch     chan T
	stream *Stream[T]
	once   sync.Once
}

// NewPipe creates a connected Pipe and Stream with the given buffer.
func NewPipe[T any](buffer int) *Pipe[T] {
	ch := make(chan T, buffer)
	return &Pipe[T]{
		ch:     ch,
		stream: &Stream[T]{C: ch, done: make(chan struct{})},
	}
}

// Stream returns the receiving side.
func (p *Pipe[T]) Stream() *Stream[T] { return p.stream }

// Send delivers v unless ctx ends first.
func (p *Pipe[T]) Send(ctx context.Context, v T) bool {
	select {
	case p.ch <- v:
		return true
	case <-ctx.Done():
		return false
	}
}

// Close ends the stream with err (nil for a clean end). Later calls are no-ops.
func (p *Pipe[T]) Close(err error) {
	p.once.Do(func() {
		p.stream.mu.Lock()
		p.stream.err = err
		p.stream.mu.Unlock()
		close(p.ch)
		close(p.stream.done)
	})
}
