// Package shell is dockhand's interactive command loop.
//
// Each line is resolved against a command Table (exact name, or a prefix
// shared by one command only) and dispatched to the command's handler. Live
// views own the terminal until the user interrupts them, and only then does
// the prompt come back. The Session value holding history is threaded
// through every step rather than kept in package state.
package shell

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/rileyhilliard/dockhand/internal/completion"
	"github.com/rileyhilliard/dockhand/internal/dashboard"
	"github.com/rileyhilliard/dockhand/internal/engine"
	"github.com/rileyhilliard/dockhand/internal/errors"
	"github.com/rileyhilliard/dockhand/internal/logger"
	"github.com/rileyhilliard/dockhand/internal/telemetry"
	"github.com/rileyhilliard/dockhand/internal/ui"
)

// DefaultPrompt is shown before each line.
const DefaultPrompt = "dockhand> "

// Options configure a Shell.
type Options struct {
	Engine engine.Engine
	// Commands is the static vocabulary. Nil means DefaultTable().
	Commands *Table

	In  io.Reader
	Out io.Writer
	Err io.Writer
	// Reader overrides the line editor picked from In and Out.
	Reader LineReader
	// Interactive forces terminal behaviour (pickers, raw attach) on or
	// off. Nil means detect from In and Out.
	Interactive *bool

	Prompt       string
	HistoryLimit int

	// Dashboard carries the live-view settings. Its Engine defaults to
	// Engine.
	Dashboard  dashboard.Deps
	Completion completion.Options

	Logger    logger.Logger
	Telemetry *telemetry.Collector
}

// Shell runs commands for one session.
type Shell struct {
	eng      engine.Engine
	table    *Table
	in       io.Reader
	out      io.Writer
	errw     io.Writer
	reader   LineReader
	complete *completion.Completer
	tty      bool
	prompt   string
	limit    int
	deps     dashboard.Deps
	log      logger.Logger

	mu     sync.Mutex
	active *activeView
}

// activeView is the live view currently holding the terminal.
type activeView struct {
	cancel context.CancelFunc
	done   chan struct{}
}

var (
	failStyle = lipgloss.NewStyle().Foreground(ui.ColorError)
	hintStyle = lipgloss.NewStyle().Foreground(ui.ColorMuted)
)

// New creates a shell. Missing streams default to the process's own.
func New(opts Options) *Shell {
	sh := &Shell{
		eng:    opts.Engine,
		table:  opts.Commands,
		in:     opts.In,
		out:    opts.Out,
		errw:   opts.Err,
		prompt: opts.Prompt,
		limit:  opts.HistoryLimit,
		deps:   opts.Dashboard,
		log:    logger.OrDefault(opts.Logger),
	}
	if sh.table == nil {
		sh.table = DefaultTable()
	}
	if sh.in == nil {
		sh.in = os.Stdin
	}
	if sh.out == nil {
		sh.out = os.Stdout
	}
	if sh.errw == nil {
		sh.errw = sh.out
	}
	if sh.prompt == "" {
		sh.prompt = DefaultPrompt
	}
	if sh.deps.Engine == nil {
		sh.deps.Engine = opts.Engine
	}
	if sh.deps.Stderr == nil {
		sh.deps.Stderr = sh.errw
	}
	if sh.deps.Loop.Logger == nil {
		sh.deps.Loop.Logger = opts.Logger
	}
	if sh.deps.Loop.Telemetry == nil {
		sh.deps.Loop.Telemetry = opts.Telemetry
	}

	if opts.Interactive != nil {
		sh.tty = *opts.Interactive
	} else {
		sh.tty = isTerminal(sh.in) && isTerminal(sh.out)
	}

	copts := opts.Completion
	if copts.Logger == nil {
		copts.Logger = opts.Logger
	}
	if copts.Telemetry == nil {
		copts.Telemetry = opts.Telemetry
	}
	var lister completion.Lister
	if opts.Engine != nil {
		lister = opts.Engine
	}
	sh.complete = completion.New(sh.table, lister, copts)

	sh.reader = opts.Reader
	if sh.reader == nil {
		if sh.tty {
			sh.reader = NewTeaReader(sh.in, sh.out, sh.complete.Complete)
		} else {
			sh.reader = NewScanReader(sh.in, sh.out)
		}
	}
	return sh
}

// Run starts a shell with opts and blocks until it exits.
func Run(ctx context.Context, opts Options) error {
	return New(opts).Run(ctx)
}

// Table returns the command table in use.
func (sh *Shell) Table() *Table { return sh.table }

// Complete offers completions for input, as the prompt does on tab.
func (sh *Shell) Complete(ctx context.Context, input string) []string {
	return sh.complete.Complete(ctx, input)
}

// Run reads and dispatches lines until exit, end of input or ctx ending.
// Errors from commands are reported and the loop carries on; only a broken
// input stream ends Run with an error.
func (sh *Shell) Run(ctx context.Context) error {
	defer sh.stopActive()

	sess := NewSession(sh.limit)
	if sh.tty {
		fmt.Fprintln(sh.out, hintStyle.Render("Type 'help' for commands, tab to complete, 'exit' to leave."))
	}

	for !sess.Done {
		line, err := sh.reader.ReadLine(ctx, sh.prompt, sess.History)
		switch {
		case err == nil:
		case stderrors.Is(err, ErrInterrupted):
			continue
		case err == io.EOF:
			fmt.Fprintln(sh.out, "Goodbye!")
			return nil
		case ctx.Err() != nil:
			return nil
		default:
			return errors.WrapWithCode(err, errors.ErrInput, "Reading input failed", "")
		}

		sess, err = sh.Step(ctx, sess, line)
		if err != nil {
			sh.report(err)
		}
	}
	return nil
}

// Step records line in the session and runs it. The returned session is
// the one to continue with, even when the command failed.
func (sh *Shell) Step(ctx context.Context, sess Session, line string) (Session, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return sess, nil
	}
	sess = sess.Record(line)

	cmd, err := sh.table.Lookup(fields[0])
	if err != nil {
		return sess, err
	}
	args := fields[1:]
	if err := cmd.checkArgs(args); err != nil {
		return sess, err
	}
	sh.log.Debug("shell: %s %v", cmd.Name, args)
	return cmd.Run(ctx, sh, sess, args)
}

// report prints err for the user. Input mistakes get a one-line form; the
// rest keep the full structured block.
func (sh *Shell) report(err error) {
	var e *errors.Error
	if stderrors.As(err, &e) && e.Code == errors.ErrInput {
		fmt.Fprintf(sh.errw, "%s %s\n", failStyle.Render(ui.SymbolFail), e.Short())
		if e.Suggestion != "" {
			fmt.Fprintf(sh.errw, "  %s\n", hintStyle.Render(e.Suggestion))
		}
		return
	}
	if e != nil {
		fmt.Fprint(sh.errw, err.Error())
		return
	}
	fmt.Fprintf(sh.errw, "%s %v\n", failStyle.Render(ui.SymbolFail), err)
}

// runLive shows act until the user interrupts it or it fails, then hands
// the terminal back.
func (sh *Shell) runLive(ctx context.Context, act dashboard.Activity) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	ctx, release := sh.track(ctx)
	defer release()

	return dashboard.Live(ctx, sh.screen(), act, sh.deps.Loop)
}

// track registers the view being started so every exit path can stop it.
func (sh *Shell) track(ctx context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancel(ctx)
	av := &activeView{cancel: cancel, done: make(chan struct{})}

	sh.mu.Lock()
	sh.active = av
	sh.mu.Unlock()

	return ctx, func() {
		cancel()
		sh.mu.Lock()
		if sh.active == av {
			sh.active = nil
		}
		sh.mu.Unlock()
		close(av.done)
	}
}

// stopActive cancels a view that is still attached and waits for it to
// release the terminal.
func (sh *Shell) stopActive() {
	sh.mu.Lock()
	av := sh.active
	sh.mu.Unlock()
	if av == nil {
		return
	}
	av.cancel()
	<-av.done
}

// Active reports whether a live view holds the terminal.
func (sh *Shell) Active() bool {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	return sh.active != nil
}

func (sh *Shell) screen() dashboard.Screen {
	if sh.deps.Screen != nil {
		return sh.deps.Screen
	}
	in, inOK := sh.in.(*os.File)
	out, outOK := sh.out.(*os.File)
	if sh.tty && inOK && outOK {
		return dashboard.DefaultScreen(in, out)
	}
	return dashboard.NewPlainScreen(sh.out)
}

func isTerminal(v interface{}) bool {
	f, ok := v.(*os.File)
	return ok && ui.IsTerminal(f)
}
