package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/rileyhilliard/dockhand/internal/completion"
	"github.com/rileyhilliard/dockhand/internal/dashboard"
	"github.com/rileyhilliard/dockhand/internal/engine"
	"github.com/rileyhilliard/dockhand/internal/errors"
	"github.com/rileyhilliard/dockhand/internal/ingest"
	"github.com/rileyhilliard/dockhand/internal/shell"
	"github.com/rileyhilliard/dockhand/internal/ui"
	"github.com/rileyhilliard/dockhand/pkg/sshutil"
	"github.com/spf13/cobra"
)

func newShellCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Start the interactive shell (the default)",
		Long: `Start an interactive shell with tab completion and history.

Inside the shell, type 'help' for the command list. Live views such as
'dashboard' hold the screen until you press q or ctrl-c.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runShell(cmd)
		},
	}
}

func (a *app) runShell(cmd *cobra.Command) error {
	ctx := cmd.Context()
	eng, err := a.connect(ctx)
	if err != nil {
		return err
	}
	if err := eng.Ping(ctx); err != nil {
		a.log.Warn("engine ping failed: %v", err)
		fmt.Fprintf(cmd.ErrOrStderr(), "%s Engine not reachable at %s; commands will try again.\n",
			ui.SymbolFail, hostOrDefault(a.cfg.Engine.Host))
	}
	return shell.Run(ctx, a.shellOptions(cmd, eng))
}

func (a *app) shellOptions(cmd *cobra.Command, eng engine.Engine) shell.Options {
	return shell.Options{
		Engine:       eng,
		In:           cmd.InOrStdin(),
		Out:          cmd.OutOrStdout(),
		Err:          cmd.ErrOrStderr(),
		Interactive:  a.interactive,
		Prompt:       a.cfg.Shell.Prompt,
		HistoryLimit: a.cfg.Shell.HistoryLimit,
		Dashboard:    a.deps(cmd, eng),
		Completion:   completion.Options{Timeout: a.cfg.Completion.Timeout},
		Logger:       a.log,
		Telemetry:    a.tel,
	}
}

func newDashboardCmd(a *app) *cobra.Command {
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "dashboard [container...]",
		Short: "Live CPU, memory, network and status charts",
		Long: `Show every chart at once, redrawn on each tick.

Without container names the dashboard follows all running containers,
picking up new ones as they start.

Examples:
  dockhand dashboard
  dockhand dashboard web db --interval 500ms`,
		ValidArgsFunction: a.completeContainers,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runView(cmd, dashboard.ViewDashboard, args, interval)
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 0, "redraw interval (default: dashboard.interval)")
	return cmd
}

func newChartsCmd(a *app) *cobra.Command {
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "charts <cpu|memory|network|status> [container...]",
		Short: "Live view of a single chart",
		Long: `Show one chart full screen.

Examples:
  dockhand charts cpu
  dockhand charts memory web`,
		Args: cobra.MinimumNArgs(1),
		ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
			if len(args) == 0 {
				return completion.Match(dashboard.ChartNames(), toComplete), cobra.ShellCompDirectiveNoFileComp
			}
			return a.completeContainers(cmd, args, toComplete)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			view, err := dashboard.ParseView(args[0])
			if err != nil {
				return err
			}
			return a.runView(cmd, view, args[1:], interval)
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 0, "redraw interval (default: dashboard.interval)")
	return cmd
}

// runView is the command-line face of runDashboard: its exit status
// becomes the process's.
func (a *app) runView(cmd *cobra.Command, view dashboard.View, names []string, interval time.Duration) error {
	if interval != 0 && interval < dashboard.MinInterval {
		return errors.New(errors.ErrInput,
			fmt.Sprintf("--interval %s is too fast", interval),
			fmt.Sprintf("Use %s or slower.", dashboard.MinInterval))
	}
	for _, name := range names {
		if err := shell.ValidateName(name); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	eng, err := a.connect(ctx)
	if err != nil {
		return err
	}
	deps := a.deps(cmd, eng)
	deps.View = view
	if code := dashboard.RunDashboard(ctx, deps, ingest.Selector{Names: names}, interval); code != 0 {
		return exitError{code: code}
	}
	return nil
}

func newEventsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "events",
		Short: "Follow container lifecycle events",
		Long: `Show a scrolling log of container starts, stops, deaths and removals,
newest at the bottom.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			eng, err := a.connect(ctx)
			if err != nil {
				return err
			}
			if code := dashboard.RunEvents(ctx, a.deps(cmd, eng)); code != 0 {
				return exitError{code: code}
			}
			return nil
		},
	}
}

func newAttachCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "attach <container>",
		Short: "Attach the terminal to a running container",
		Long: `Connect your terminal to a running container's console.

Detach with ctrl-p ctrl-q; the container keeps running.`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: a.completeContainers,
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := a.connect(cmd.Context())
			if err != nil {
				return err
			}
			sh := shell.New(a.shellOptions(cmd, eng))
			_, err = sh.Step(cmd.Context(), shell.NewSession(0), "attach "+args[0])
			return err
		},
	}
}

func newCompletionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion script",
		Long: `Generate shell completion scripts for dockhand.

Examples:
  # Bash
  dockhand completion bash > /etc/bash_completion.d/dockhand

  # Zsh
  dockhand completion zsh > "${fpath[1]}/_dockhand"

  # Fish
  dockhand completion fish > ~/.config/fish/completions/dockhand.fish`,
		ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		// Script generation needs neither config nor engine.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			root, out := cmd.Root(), cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return root.GenBashCompletion(out)
			case "zsh":
				return root.GenZshCompletion(out)
			case "fish":
				return root.GenFishCompletion(out, true)
			default:
				return root.GenPowerShellCompletion(out)
			}
		},
	}
}

// completeContainers offers container names for shell completion. It never
// starts the metrics endpoint and gives up after completion.timeout.
func (a *app) completeContainers(cmd *cobra.Command, _ []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if err := a.setup(); err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	timeout := a.cfg.Completion.Timeout
	if timeout <= 0 {
		timeout = completion.DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(contextOf(cmd), timeout)
	defer cancel()

	eng, err := a.openEngine()
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	entities, err := eng.ListEntities(ctx, engine.KindContainer)
	if err != nil {
		a.log.Debug("container completion: %v", err)
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	names := make([]string, 0, len(entities))
	for _, e := range entities {
		names = append(names, e.Name)
	}
	return completion.Match(names, toComplete), cobra.ShellCompDirectiveNoFileComp
}

// completeHosts offers the local socket plus every ssh alias in
// ~/.ssh/config.
func completeHosts(_ *cobra.Command, _ []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	pool := []string{engine.DefaultHost}
	if hosts, err := sshutil.Hosts(sshutil.UserConfigPath()); err == nil {
		for _, h := range hosts {
			pool = append(pool, "ssh://"+h)
		}
	}
	return completion.Match(pool, toComplete), cobra.ShellCompDirectiveNoFileComp
}

func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func hostOrDefault(host string) string {
	if host == "" {
		return engine.DefaultHost
	}
	return host
}
