package shell

import (
	"bufio"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rileyhilliard/dockhand/internal/completion"
	"github.com/rileyhilliard/dockhand/internal/ui"
)

// ErrInterrupted is returned by ReadLine when the user abandons the line
// with ctrl+c. The shell drops the line and prompts again.
var ErrInterrupted = stderrors.New("interrupted")

// LineReader reads one line of input. It returns io.EOF at end of input
// and honours ctx while waiting.
type LineReader interface {
	ReadLine(ctx context.Context, prompt string, history []string) (string, error)
}

// CompleteFunc returns candidates for the last token of input.
type CompleteFunc func(ctx context.Context, input string) []string

// maxShown caps the candidate list under the prompt.
const maxShown = 8

var (
	promptStyle    = lipgloss.NewStyle().Foreground(ui.ColorInfo).Bold(true)
	candidateStyle = lipgloss.NewStyle().Foreground(ui.ColorMuted)
	selectedStyle  = lipgloss.NewStyle().Foreground(ui.ColorPrimary).Bold(true)
)

type promptKeyMap struct {
	Complete  key.Binding
	Submit    key.Binding
	Prev      key.Binding
	Next      key.Binding
	Dismiss   key.Binding
	Interrupt key.Binding
	EOF       key.Binding
}

var promptKeys = promptKeyMap{
	Complete:  key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "complete")),
	Submit:    key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "run")),
	Prev:      key.NewBinding(key.WithKeys("up", "ctrl+p"), key.WithHelp("↑", "previous")),
	Next:      key.NewBinding(key.WithKeys("down", "ctrl+n"), key.WithHelp("↓", "next")),
	Dismiss:   key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "dismiss")),
	Interrupt: key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "cancel line")),
	EOF:       key.NewBinding(key.WithKeys("ctrl+d"), key.WithHelp("ctrl+d", "exit")),
}

// completedMsg carries the candidates computed for input.
type completedMsg struct {
	input string
	cands []string
}

// promptModel edits one line. Tab completes: a single candidate is applied,
// several are extended to their common prefix and listed. While the list is
// shown, up/down move through it and tab or enter accept; otherwise up/down
// walk the history.
type promptModel struct {
	ctx      context.Context
	input    textinput.Model
	complete CompleteFunc

	suggestions []string
	suggestIdx  int

	history []string
	histIdx int
	draft   string

	result string
	err    error
	done   bool
}

func newPromptModel(ctx context.Context, prompt string, history []string, complete CompleteFunc) promptModel {
	ti := textinput.New()
	ti.Prompt = promptStyle.Render(prompt)
	ti.Focus()
	return promptModel{
		ctx:      ctx,
		input:    ti,
		complete: complete,
		history:  history,
		histIdx:  len(history),
	}
}

func (m promptModel) Init() tea.Cmd { return textinput.Blink }

func (m promptModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case completedMsg:
		if msg.input == m.input.Value() {
			m.applyCompletion(msg.cands)
		}
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, promptKeys.Interrupt):
			return m.finish("", ErrInterrupted)
		case key.Matches(msg, promptKeys.EOF):
			if m.input.Value() == "" {
				return m.finish("", io.EOF)
			}
		case key.Matches(msg, promptKeys.Dismiss):
			if len(m.suggestions) > 0 {
				m.clearSuggestions()
				return m, nil
			}
			m.input.SetValue("")
			return m, nil
		case key.Matches(msg, promptKeys.Complete):
			if len(m.suggestions) > 0 {
				m.acceptSuggestion()
				return m, nil
			}
			return m, m.completeCmd()
		case key.Matches(msg, promptKeys.Prev):
			if len(m.suggestions) > 0 {
				m.suggestIdx = (m.suggestIdx - 1 + len(m.suggestions)) % len(m.suggestions)
			} else {
				m.walkHistory(-1)
			}
			return m, nil
		case key.Matches(msg, promptKeys.Next):
			if len(m.suggestions) > 0 {
				m.suggestIdx = (m.suggestIdx + 1) % len(m.suggestions)
			} else {
				m.walkHistory(1)
			}
			return m, nil
		case key.Matches(msg, promptKeys.Submit):
			if len(m.suggestions) > 0 {
				m.acceptSuggestion()
				return m, nil
			}
			return m.finish(m.input.Value(), nil)
		}
	}

	before := m.input.Value()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if m.input.Value() != before {
		m.clearSuggestions()
	}
	return m, cmd
}

func (m promptModel) View() string {
	if m.done {
		return m.input.Prompt + m.input.Value() + "\n"
	}
	var b strings.Builder
	b.WriteString(m.input.View())
	shown := m.suggestions
	if len(shown) > maxShown {
		shown = shown[:maxShown]
	}
	for i, s := range shown {
		b.WriteString("\n  ")
		if i == m.suggestIdx {
			b.WriteString(selectedStyle.Render("› " + s))
		} else {
			b.WriteString(candidateStyle.Render("  " + s))
		}
	}
	if extra := len(m.suggestions) - len(shown); extra > 0 {
		b.WriteString(candidateStyle.Render(fmt.Sprintf("\n    +%d more", extra)))
	}
	return b.String()
}

func (m promptModel) finish(line string, err error) (tea.Model, tea.Cmd) {
	m.result, m.err, m.done = line, err, true
	m.clearSuggestions()
	return m, tea.Quit
}

// completeCmd runs the completer off the update loop so a slow engine
// never freezes typing.
func (m promptModel) completeCmd() tea.Cmd {
	if m.complete == nil {
		return nil
	}
	ctx, input, complete := m.ctx, m.input.Value(), m.complete
	return func() tea.Msg {
		return completedMsg{input: input, cands: complete(ctx, input)}
	}
}

func (m *promptModel) applyCompletion(cands []string) {
	switch len(cands) {
	case 0:
		m.clearSuggestions()
	case 1:
		m.setValue(completion.Apply(m.input.Value(), cands[0]))
		m.clearSuggestions()
	default:
		_, partial := completion.Split(m.input.Value())
		if prefix := completion.CommonPrefix(cands); len(prefix) > len(partial) {
			prior, _ := completion.Split(m.input.Value())
			m.setValue(strings.Join(append(prior, prefix), " "))
		}
		m.suggestions = cands
		m.suggestIdx = 0
	}
}

func (m *promptModel) acceptSuggestion() {
	if m.suggestIdx < len(m.suggestions) {
		m.setValue(completion.Apply(m.input.Value(), m.suggestions[m.suggestIdx]))
	}
	m.clearSuggestions()
}

func (m *promptModel) clearSuggestions() {
	m.suggestions = nil
	m.suggestIdx = 0
}

// walkHistory moves through earlier lines. Walking past the newest entry
// restores what was being typed.
func (m *promptModel) walkHistory(delta int) {
	if len(m.history) == 0 {
		return
	}
	if m.histIdx == len(m.history) {
		m.draft = m.input.Value()
	}
	idx := m.histIdx + delta
	if idx < 0 || idx > len(m.history) {
		return
	}
	m.histIdx = idx
	if idx == len(m.history) {
		m.setValue(m.draft)
		return
	}
	m.setValue(m.history[idx])
}

func (m *promptModel) setValue(s string) {
	m.input.SetValue(s)
	m.input.CursorEnd()
}

// TeaReader edits lines with a Bubble Tea prompt. It needs a terminal.
type TeaReader struct {
	in       io.Reader
	out      io.Writer
	complete CompleteFunc
}

// NewTeaReader creates a reader using complete for tab completion.
func NewTeaReader(in io.Reader, out io.Writer, complete CompleteFunc) *TeaReader {
	return &TeaReader{in: in, out: out, complete: complete}
}

// ReadLine implements LineReader.
func (r *TeaReader) ReadLine(ctx context.Context, prompt string, history []string) (string, error) {
	p := tea.NewProgram(newPromptModel(ctx, prompt, history, r.complete),
		tea.WithContext(ctx),
		tea.WithInput(r.in),
		tea.WithOutput(r.out),
	)
	final, err := p.Run()
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", err
	}
	m, ok := final.(promptModel)
	if !ok {
		return "", io.EOF
	}
	return m.result, m.err
}

// ScanReader reads plain lines, for piped input or dumb terminals. A
// single goroutine owns the underlying reader so ReadLine can give up on
// cancellation without losing the next line. An interrupt while waiting
// abandons the prompt rather than killing the process.
type ScanReader struct {
	out   io.Writer
	in    io.Reader
	once  sync.Once
	lines chan scanResult

	notify func(chan<- os.Signal)
	stop   func(chan<- os.Signal)
}

type scanResult struct {
	line string
	err  error
}

// NewScanReader reads from in and writes prompts to out.
func NewScanReader(in io.Reader, out io.Writer) *ScanReader {
	return &ScanReader{
		in:     in,
		out:    out,
		lines:  make(chan scanResult),
		notify: func(c chan<- os.Signal) { signal.Notify(c, os.Interrupt) },
		stop:   func(c chan<- os.Signal) { signal.Stop(c) },
	}
}

func (r *ScanReader) start() {
	go func() {
		sc := bufio.NewScanner(r.in)
		for sc.Scan() {
			r.lines <- scanResult{line: sc.Text()}
		}
		err := sc.Err()
		if err == nil {
			err = io.EOF
		}
		r.lines <- scanResult{err: err}
		close(r.lines)
	}()
}

// ReadLine implements LineReader. History is not used.
func (r *ScanReader) ReadLine(ctx context.Context, prompt string, _ []string) (string, error) {
	r.once.Do(r.start)
	if prompt != "" {
		fmt.Fprint(r.out, prompt)
	}

	intr := make(chan os.Signal, 1)
	r.notify(intr)
	defer r.stop(intr)

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-intr:
		fmt.Fprintln(r.out)
		return "", ErrInterrupted
	case res, ok := <-r.lines:
		if !ok {
			return "", io.EOF
		}
		return res.line, res.err
	}
}
