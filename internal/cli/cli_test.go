package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rileyhilliard/dockhand/internal/config"
	"github.com/rileyhilliard/dockhand/internal/engine"
	enginetest "github.com/rileyhilliard/dockhand/internal/engine/testing"
	"github.com/rileyhilliard/dockhand/internal/logger"
	"github.com/stretchr/testify/require"
)

// leaveScreen quits the live view once the first frame is drawn.
type leaveScreen struct {
	mu     sync.Mutex
	frames []string
	once   sync.Once
	drawn  chan struct{}
}

func newLeaveScreen() *leaveScreen { return &leaveScreen{drawn: make(chan struct{})} }

func (s *leaveScreen) Size() (int, int) { return 80, 24 }

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

// cliHarness runs the real command tree against a fake engine in an empty
// project directory with no config anywhere.
type cliHarness struct {
	app    *app
	eng    *enginetest.FakeEngine
	screen *leaveScreen
	dir    string
	dials  []engine.Options
	out    bytes.Buffer
	errOut bytes.Buffer
}

func newCLI(t *testing.T) *cliHarness {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_STATE_HOME", filepath.Join(home, "state"))
	t.Setenv(config.DockerHostEnv, "")
	t.Setenv(logger.DebugEnv, "")

	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, ".git"), 0o755))
	t.Chdir(dir)

	eng := enginetest.NewFakeEngine()
	eng.SetContainers(
		engine.Entity{ID: "aaa111", Name: "web", Image: "nginx:1.27", State: "running", Status: "Up 2 hours"},
		engine.Entity{ID: "bbb222", Name: "db", Image: "postgres:16", State: "running", Status: "Up 2 hours"},
		engine.Entity{ID: "ccc333", Name: "batch", Image: "busybox", State: "exited", Status: "Exited (0)"},
	)

	h := &cliHarness{app: newApp(), eng: eng, screen: newLeaveScreen(), dir: dir}
	h.app.dial = func(opts engine.Options) (engine.Engine, error) {
		h.dials = append(h.dials, opts)
		return eng, nil
	}
	interactive := false
	h.app.interactive = &interactive
	h.app.screen = h.screen
	t.Cleanup(h.app.close)
	return h
}

// run executes one command line with stdin as input.
func (h *cliHarness) run(t *testing.T, stdin string, args ...string) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cmd := newRootCmd(h.app)
	cmd.SetArgs(args)
	cmd.SetIn(bytes.NewBufferString(stdin))
	cmd.SetOut(&h.out)
	cmd.SetErr(&h.errOut)
	return cmd.ExecuteContext(ctx)
}
