package shell

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rileyhilliard/dockhand/internal/dashboard"
	"github.com/rileyhilliard/dockhand/internal/engine"
	enginetest "github.com/rileyhilliard/dockhand/internal/engine/testing"
	"github.com/rileyhilliard/dockhand/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const wait = 2 * time.Second

func newEngine() *enginetest.FakeEngine {
	f := enginetest.NewFakeEngine()
	f.SetContainers(
		engine.Entity{ID: "aaa111", Name: "web", Image: "nginx:1.27", State: "running", Status: "Up 2 hours"},
		engine.Entity{ID: "bbb222", Name: "db", Image: "postgres:16", State: "running", Status: "Up 2 hours"},
		engine.Entity{ID: "ccc333", Name: "batch", Image: "busybox", State: "exited", Status: "Exited (0)"},
	)
	f.Images = []engine.Entity{
		{ID: "sha256:0123456789abcdef", Name: "nginx:1.27", Size: 190 << 20},
	}
	return f
}

// scriptReader replays lines, then reports end of input.
type scriptReader struct {
	lines     []string
	histories [][]string
}

func (r *scriptReader) ReadLine(_ context.Context, _ string, history []string) (string, error) {
	r.histories = append(r.histories, history)
	if len(r.lines) == 0 {
		return "", io.EOF
	}
	line := r.lines[0]
	r.lines = r.lines[1:]
	if line == "^C" {
		return "", ErrInterrupted
	}
	return line, nil
}

// leaveScreen is an interactive screen whose user leaves once the first
// frame is on screen.
type leaveScreen struct {
	mu     sync.Mutex
	frames []string
	once   sync.Once
	drawn  chan struct{}
}

func newLeaveScreen() *leaveScreen { return &leaveScreen{drawn: make(chan struct{})} }

func (s *leaveScreen) Size() (int, int) { return 60, 20 }

func (s *leaveScreen) Draw(frame string) error {
	s.mu.Lock()
	s.frames = append(s.frames, frame)
	s.mu.Unlock()
	s.once.Do(func() { close(s.drawn) })
	return nil
}

func (s *leaveScreen) Run(ctx context.Context) error {
	select {
	case <-ctx.Done():
	case <-s.drawn:
	}
	return nil
}

func (s *leaveScreen) Frames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.frames...)
}

type harness struct {
	eng    *enginetest.FakeEngine
	reader *scriptReader
	screen *leaveScreen
	out    bytes.Buffer
	errOut bytes.Buffer
	sh     *Shell
}

func newHarness(t *testing.T, lines ...string) *harness {
	t.Helper()
	h := &harness{eng: newEngine(), reader: &scriptReader{lines: lines}, screen: newLeaveScreen()}
	interactive := false
	h.sh = New(Options{
		Engine:      h.eng,
		In:          strings.NewReader(""),
		Out:         &h.out,
		Err:         &h.errOut,
		Reader:      h.reader,
		Interactive: &interactive,
		Dashboard: dashboard.Deps{
			Screen: h.screen,
			Loop:   dashboard.Options{Interval: dashboard.MinInterval},
		},
	})
	return h
}

func (h *harness) run(t *testing.T) {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- h.sh.Run(context.Background()) }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("shell did not exit")
	}
}

func TestShell_ExitStopsReading(t *testing.T) {
	h := newHarness(t, "containers", "containers", "bogus", "exit", "images")
	h.run(t)

	out := h.out.String()
	assert.Contains(t, out, "web")
	assert.Contains(t, out, "postgres:16")
	assert.Contains(t, out, "Goodbye!")
	assert.NotContains(t, out, "190 MiB", "nothing runs after exit")

	assert.Contains(t, h.errOut.String(), "Unknown command: bogus")

	last := h.reader.histories[len(h.reader.histories)-1]
	assert.Equal(t, []string{"containers", "bogus"}, last, "history as seen before exit was read")
	assert.Equal(t, 2, h.eng.ListCalls)
}

func TestShell_EndOfInput(t *testing.T) {
	h := newHarness(t, "images")
	h.run(t)

	assert.Contains(t, h.out.String(), "190 MiB")
	assert.Contains(t, h.out.String(), "0123456789ab")
	assert.Contains(t, h.out.String(), "Goodbye!")
}

func TestShell_InterruptDropsLine(t *testing.T) {
	h := newHarness(t, "^C", "history")
	h.run(t)

	assert.Contains(t, h.out.String(), "   1  history")
	assert.Empty(t, h.errOut.String())
}

func TestShell_HistoryAndHelp(t *testing.T) {
	h := newHarness(t, "help", "help dash", "hist")
	h.run(t)

	out := h.out.String()
	assert.Contains(t, out, "Commands:")
	assert.Contains(t, out, "containers")
	assert.Contains(t, out, "Usage: dashboard [container...]")
	assert.Contains(t, out, "Live view")
	assert.Contains(t, out, "   1  help\n   2  help dash\n   3  hist\n")
}

func TestShell_DashboardBlocksUntilUserLeaves(t *testing.T) {
	h := newHarness(t, "dashboard", "containers")
	h.run(t)

	frames := h.screen.Frames()
	require.NotEmpty(t, frames)
	assert.Contains(t, frames[0], "dashboard")
	assert.Equal(t, 0, h.eng.ActiveSubscriptions(), "streams released when the view ended")
	assert.False(t, h.sh.Active())
	assert.Contains(t, h.out.String(), "nginx:1.27", "prompt came back after the view")
}

func TestShell_ChartsSelection(t *testing.T) {
	h := newHarness(t, "charts cpu web")
	h.run(t)

	require.NotEmpty(t, h.screen.Frames())
	require.NotEmpty(t, h.eng.StatsCalls)
	assert.Equal(t, []string{"aaa111"}, h.eng.StatsCalls[0])
	assert.Empty(t, h.errOut.String())
}

func TestShell_LiveViewErrorsAreReported(t *testing.T) {
	tests := []struct {
		name  string
		line  string
		setup func(*enginetest.FakeEngine)
		want  string
	}{
		{"unknown chart", "charts disk", nil, "Unknown chart: disk"},
		{"invalid name", "dashboard -web", nil, "Invalid container name"},
		{"unknown container", "charts memory ghost", nil, "No such container: ghost"},
		{"engine down", "events", func(f *enginetest.FakeEngine) {
			f.SubscribeErr = errors.New(errors.ErrConnectivity, "Cannot reach the engine", "")
		}, "Cannot reach the engine"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, tt.line, "history")
			if tt.setup != nil {
				tt.setup(h.eng)
			}
			h.run(t)

			assert.Contains(t, h.errOut.String(), tt.want)
			assert.Contains(t, h.out.String(), "history", "shell carried on")
			assert.Equal(t, 0, h.eng.ActiveSubscriptions())
		})
	}
}

func TestShell_Attach(t *testing.T) {
	t.Run("by name", func(t *testing.T) {
		h := newHarness(t, "attach web")
		h.eng.AttachFunc = func(ctx context.Context, id string, stdin io.Reader, stdout io.Writer) error {
			_, err := io.WriteString(stdout, "root@web:/# ")
			return err
		}
		h.run(t)

		require.Len(t, h.eng.AttachCalls, 1)
		assert.Equal(t, "aaa111", h.eng.AttachCalls[0].ID)
		assert.Contains(t, h.out.String(), "Attached to web")
		assert.Contains(t, h.out.String(), "root@web:/# ")
		assert.Contains(t, h.out.String(), "Detached from web")
		assert.False(t, h.sh.Active())
	})

	t.Run("stopped container", func(t *testing.T) {
		h := newHarness(t, "attach batch")
		h.run(t)

		assert.Empty(t, h.eng.AttachCalls)
		assert.Contains(t, h.errOut.String(), "Container batch is exited")
	})

	t.Run("missing name without a terminal", func(t *testing.T) {
		h := newHarness(t, "attach")
		h.run(t)

		assert.Empty(t, h.eng.AttachCalls)
		assert.Contains(t, h.errOut.String(), "Usage: attach <container>")
	})

	t.Run("attach failure", func(t *testing.T) {
		h := newHarness(t, "attach db")
		h.eng.AttachFunc = func(context.Context, string, io.Reader, io.Writer) error {
			return errors.New(errors.ErrAttach, "Attach connection dropped", "")
		}
		h.run(t)

		assert.Contains(t, h.errOut.String(), "Attach connection dropped")
		assert.Contains(t, h.out.String(), "Detached from db")
	})
}

func TestShell_Complete(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	assert.Equal(t, []string{"charts", "clear", "containers"}, h.sh.Complete(ctx, "c"))
	assert.Equal(t, []string{"cpu"}, h.sh.Complete(ctx, "charts c"))
	assert.Equal(t, []string{"web"}, h.sh.Complete(ctx, "attach w"))
	assert.Equal(t, []string{"batch", "db", "web"}, h.sh.Complete(ctx, "dashboard web "))

	h.eng.ListErr = errors.New(errors.ErrConnectivity, "engine down", "")
	assert.Empty(t, h.sh.Complete(ctx, "attach w"), "degrades to static words, of which there are none here")
	assert.Equal(t, []string{"containers"}, h.sh.Complete(ctx, "co"))
}

func TestShell_RunStopsAttachedView(t *testing.T) {
	h := newHarness(t)

	ctx, release := h.sh.track(context.Background())
	released := make(chan struct{})
	go func() {
		<-ctx.Done()
		release()
		close(released)
	}()
	require.True(t, h.sh.Active())

	h.run(t)

	<-released
	assert.False(t, h.sh.Active())
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
}

func TestShell_CancelledContextEndsRun(t *testing.T) {
	interactive := false
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Run(ctx, Options{
		Engine:      newEngine(),
		In:          blockingReader{},
		Out:         io.Discard,
		Interactive: &interactive,
	})
	assert.NoError(t, err)
}

// blockingReader never produces input.
type blockingReader struct{}

func (blockingReader) Read([]byte) (int, error) { select {} }
