package shell

import (
	"context"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/muesli/termenv"
	"github.com/rileyhilliard/dockhand/internal/dashboard"
	"github.com/rileyhilliard/dockhand/internal/engine"
	"github.com/rileyhilliard/dockhand/internal/errors"
	"github.com/rileyhilliard/dockhand/internal/ingest"
	"github.com/rileyhilliard/dockhand/internal/ui"
)

// maxCell caps table columns so long image names don't wrap.
const maxCell = 40

// DefaultTable is the shell's built-in command set.
func DefaultTable() *Table {
	container := Arg{Name: "container", Kind: engine.KindContainer, Optional: true}
	return NewTable(
		Command{
			Name:    "containers",
			Summary: "List containers",
			Run:     runContainers,
		},
		Command{
			Name:    "images",
			Summary: "List images",
			Run:     runImages,
		},
		Command{
			Name:     "dashboard",
			Summary:  "Live CPU, memory, network and status for containers",
			Args:     []Arg{container},
			Variadic: true,
			Live:     true,
			Run:      runDashboard,
		},
		Command{
			Name:    "charts",
			Summary: "Live single chart: " + strings.Join(dashboard.ChartNames(), ", "),
			Args: []Arg{
				{Name: "chart", Words: dashboard.ChartNames()},
				container,
			},
			Variadic: true,
			Live:     true,
			Run:      runCharts,
		},
		Command{
			Name:    "events",
			Summary: "Live container lifecycle events",
			Live:    true,
			Run:     runEvents,
		},
		Command{
			Name:    "attach",
			Summary: "Attach the terminal to a running container (detach with ctrl-p ctrl-q)",
			Args:    []Arg{container},
			Run:     runAttach,
		},
		Command{
			Name:    "history",
			Summary: "Show command history",
			Run:     runHistory,
		},
		Command{
			Name:    "help",
			Summary: "List commands, or describe one",
			Args:    []Arg{{Name: "command", Commands: true, Optional: true}},
			Run:     runHelp,
		},
		Command{
			Name:    "clear",
			Summary: "Clear the screen",
			Run:     runClear,
		},
		Command{
			Name:    "exit",
			Summary: "Leave the shell",
			Run:     runExit,
		},
		Command{
			Name:    "quit",
			Summary: "Leave the shell",
			Run:     runExit,
		},
	)
}

func runContainers(ctx context.Context, sh *Shell, sess Session, _ []string) (Session, error) {
	list, err := sh.eng.ListEntities(ctx, engine.KindContainer)
	if err != nil {
		return sess, errors.Wrap(err, "Couldn't list containers")
	}
	if len(list) == 0 {
		fmt.Fprintln(sh.out, "No containers")
		return sess, nil
	}

	rows := make([][]string, len(list))
	for i, e := range list {
		rows[i] = []string{
			engine.ShortID(e.ID),
			e.Name,
			e.Image,
			ui.StateLabel(e.State),
			e.Status,
		}
	}
	titles := []string{"ID", "NAME", "IMAGE", "STATE", "STATUS"}
	fmt.Fprintln(sh.out, ui.RenderSimpleTable(ui.FitColumns(titles, rows, maxCell), rows))
	return sess, nil
}

func runImages(ctx context.Context, sh *Shell, sess Session, _ []string) (Session, error) {
	list, err := sh.eng.ListEntities(ctx, engine.KindImage)
	if err != nil {
		return sess, errors.Wrap(err, "Couldn't list images")
	}
	if len(list) == 0 {
		fmt.Fprintln(sh.out, "No images")
		return sess, nil
	}

	rows := make([][]string, len(list))
	for i, e := range list {
		rows[i] = []string{engine.ShortID(strings.TrimPrefix(e.ID, "sha256:")), e.Name, humanize.IBytes(uint64(max(e.Size, 0)))}
	}
	titles := []string{"ID", "IMAGE", "SIZE"}
	fmt.Fprintln(sh.out, ui.RenderSimpleTable(ui.FitColumns(titles, rows, maxCell), rows))
	return sess, nil
}

func runDashboard(ctx context.Context, sh *Shell, sess Session, args []string) (Session, error) {
	return sess, sh.liveCharts(ctx, dashboard.ViewDashboard, args)
}

func runCharts(ctx context.Context, sh *Shell, sess Session, args []string) (Session, error) {
	view, err := dashboard.ParseView(args[0])
	if err != nil {
		return sess, err
	}
	return sess, sh.liveCharts(ctx, view, args[1:])
}

func (sh *Shell) liveCharts(ctx context.Context, view dashboard.View, names []string) error {
	if err := validateNames(names); err != nil {
		return err
	}
	in := sh.deps.Ingest
	in.Selector = ingest.Selector{Names: names}
	if in.Logger == nil {
		in.Logger = sh.deps.Loop.Logger
	}
	if in.Telemetry == nil {
		in.Telemetry = sh.deps.Loop.Telemetry
	}
	return sh.runLive(ctx, dashboard.NewCharts(sh.eng, view, in))
}

func runEvents(ctx context.Context, sh *Shell, sess Session, _ []string) (Session, error) {
	act := dashboard.NewEventLog(sh.eng, sh.deps.EventLogSize, sh.deps.Loop.Telemetry)
	return sess, sh.runLive(ctx, act)
}

func runHistory(_ context.Context, sh *Shell, sess Session, _ []string) (Session, error) {
	for i, line := range sess.History {
		fmt.Fprintf(sh.out, "%4d  %s\n", i+1, line)
	}
	return sess, nil
}

func runHelp(_ context.Context, sh *Shell, sess Session, args []string) (Session, error) {
	if len(args) == 1 {
		c, err := sh.table.Lookup(args[0])
		if err != nil {
			return sess, err
		}
		fmt.Fprintf(sh.out, "%s\n\n  Usage: %s\n", c.Summary, c.usage())
		if c.Live {
			fmt.Fprintln(sh.out, hintStyle.Render("  Live view: press q or ctrl+c to return to the prompt."))
		}
		return sess, nil
	}

	names := sh.table.Names()
	width := 0
	for _, n := range names {
		if len(n) > width {
			width = len(n)
		}
	}
	fmt.Fprintln(sh.out, "Commands:")
	for _, n := range names {
		c, _ := sh.table.Get(n)
		fmt.Fprintf(sh.out, "  %-*s  %s\n", width, n, c.Summary)
	}
	fmt.Fprintln(sh.out, hintStyle.Render("\nCommands may be shortened to any unique prefix."))
	return sess, nil
}

func runClear(_ context.Context, sh *Shell, sess Session, _ []string) (Session, error) {
	termenv.NewOutput(sh.out).ClearScreen()
	return sess, nil
}

func runExit(_ context.Context, sh *Shell, sess Session, _ []string) (Session, error) {
	fmt.Fprintln(sh.out, "Goodbye!")
	sess.Done = true
	return sess, nil
}
