package dashboard

import (
	"context"
	stderrors "errors"
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// Fallback size when the output is not a terminal.
const (
	FallbackWidth  = 80
	FallbackHeight = 24
)

// Interactive is a Screen that owns the terminal while a view runs. Run
// returns when ctx ends or the user asks to leave.
type Interactive interface {
	Screen
	Run(ctx context.Context) error
}

// DefaultScreen picks the full-screen viewer when both ends are a
// terminal and plain redraws otherwise.
func DefaultScreen(in, out *os.File) Screen {
	if term.IsTerminal(int(in.Fd())) && term.IsTerminal(int(out.Fd())) {
		return NewTeaScreen(in, out)
	}
	return NewPlainScreen(out)
}

// PlainScreen clears and rewrites its output on every frame. It has no
// input handling; the view ends when its context does.
type PlainScreen struct {
	mu  sync.Mutex
	out *termenv.Output
	fd  int
	tty bool
}

// NewPlainScreen draws to w.
func NewPlainScreen(w io.Writer) *PlainScreen {
	s := &PlainScreen{out: termenv.NewOutput(w)}
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		s.fd, s.tty = int(f.Fd()), true
	}
	return s
}

// Size reports the terminal size, or the fallback size.
func (s *PlainScreen) Size() (int, int) {
	if s.tty {
		if w, h, err := term.GetSize(s.fd); err == nil && w > 0 && h > 0 {
			return w, h
		}
	}
	return FallbackWidth, FallbackHeight
}

// Draw clears the screen and writes frame.
func (s *PlainScreen) Draw(frame string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.out.ClearScreen()
	_, err := io.WriteString(s.out, frame+"\n")
	return err
}

// keyMap holds the live-view key bindings.
type keyMap struct {
	Quit key.Binding
}

var liveKeys = keyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c", "esc"),
		key.WithHelp("q", "back to prompt"),
	),
}

// redrawMsg tells the program a new frame is ready.
type redrawMsg struct{}

// TeaScreen shows frames in a Bubble Tea program on the alternate screen.
// Draw never blocks: it stores the frame and nudges the program.
type TeaScreen struct {
	in  io.Reader
	out io.Writer

	mu     sync.Mutex
	frame  string
	width  int
	height int
	dirty  chan struct{}
}

// NewTeaScreen creates a screen reading keys from in and drawing to out.
func NewTeaScreen(in io.Reader, out io.Writer) *TeaScreen {
	return &TeaScreen{in: in, out: out, dirty: make(chan struct{}, 1)}
}

// Size returns the last size reported by the terminal.
func (s *TeaScreen) Size() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.width == 0 || s.height == 0 {
		return FallbackWidth, FallbackHeight
	}
	return s.width, s.height
}

// Draw stores frame for the next redraw.
func (s *TeaScreen) Draw(frame string) error {
	s.mu.Lock()
	s.frame = frame
	s.mu.Unlock()
	select {
	case s.dirty <- struct{}{}:
	default:
	}
	return nil
}

func (s *TeaScreen) current() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frame
}

func (s *TeaScreen) resize(w, h int) {
	s.mu.Lock()
	s.width, s.height = w, h
	s.mu.Unlock()
}

// Run shows the program until the user quits or ctx ends. The terminal is
// restored before it returns.
func (s *TeaScreen) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(screenModel{s: s},
		tea.WithAltScreen(),
		tea.WithContext(ctx),
		tea.WithInput(s.in),
		tea.WithOutput(s.out),
	)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.dirty:
				p.Send(redrawMsg{})
			}
		}
	}()

	_, err := p.Run()
	if ctx.Err() != nil || stderrors.Is(err, tea.ErrProgramKilled) {
		return nil
	}
	return err
}

type screenModel struct {
	s *TeaScreen
}

func (m screenModel) Init() tea.Cmd { return nil }

func (m screenModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.s.resize(msg.Width, msg.Height)
	case tea.KeyMsg:
		if key.Matches(msg, liveKeys.Quit) {
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m screenModel) View() string { return m.s.current() }
