package cli

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rileyhilliard/dockhand/internal/config"
	"github.com/rileyhilliard/dockhand/internal/errors"
	"github.com/rileyhilliard/dockhand/internal/logger"
	"github.com/rileyhilliard/dockhand/internal/ui"
	"github.com/spf13/cobra"
)

// exitError carries an exit status for a failure that was already reported.
type exitError struct {
	code int
}

func (e exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

// Execute runs the root command and exits the process with its status.
func Execute() {
	// SIGINT is left to the views: the shell and the live views each treat
	// it as "stop what is on screen", not "quit dockhand".
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)

	a := newApp()
	cmd := newRootCmd(a)
	err := cmd.ExecuteContext(ctx)
	a.close()
	stop()

	os.Exit(report(cmd, err))
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "dockhand",
		Short: "Watch and drive a container engine from your terminal",
		Long: `dockhand is an interactive shell and live dashboard for a container engine.

Run it with no arguments for the shell, or jump straight to a view:

  dockhand dashboard
  dockhand charts cpu web db
  dockhand events
  dockhand attach web

The engine address comes from --host, engine.host in .dockhand.yaml,
$DOCKER_HOST, or the local socket, in that order.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runShell(cmd)
		},
	}
	root.SetVersionTemplate("dockhand {{.Version}}\n")
	root.Version = formatVersion(version)

	flags := root.PersistentFlags()
	flags.StringVar(&a.flags.config, "config", "", "config file (default: .dockhand.yaml, then ~/.config/dockhand/config.yaml)")
	flags.StringVarP(&a.flags.host, "host", "H", "", "engine address: unix://, tcp:// or ssh://")
	flags.BoolVar(&a.flags.noColor, "no-color", false, "disable colored output")
	flags.BoolVar(&a.flags.debug, "debug", false, "log at debug level (same as "+logger.DebugEnv+"=1)")
	_ = root.RegisterFlagCompletionFunc("host", completeHosts)

	root.AddCommand(
		newShellCmd(a),
		newDashboardCmd(a),
		newChartsCmd(a),
		newEventsCmd(a),
		newAttachCmd(a),
		newConfigCmd(a),
		newVersionCmd(),
		newCompletionCmd(),
	)
	return root
}

// setup loads config, applies flag overrides and installs the logger.
func (a *app) setup() error {
	if a.cfg != nil {
		return nil
	}
	if a.flags.debug {
		_ = os.Setenv(logger.DebugEnv, "1")
	}

	cfg, path, err := config.LoadOrDefault(a.flags.config)
	if err != nil {
		return err
	}
	if a.flags.host != "" {
		cfg.Engine.Host = a.flags.host
	}
	if a.flags.noColor {
		cfg.Output.Color = ui.ColorNever
	}
	if a.flags.debug {
		cfg.Log.Level = "debug"
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}
	if err := ui.ApplyColorMode(cfg.Output.Color); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig, err.Error(), "")
	}

	z, closeLog, err := logger.New(logger.Options{File: cfg.Log.File, Level: cfg.Log.Level})
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Couldn't set up logging",
			"Check log.file and log.level in your config.")
	}
	a.log = logger.FromZap(z, "dockhand")
	logger.SetDefault(a.log)
	a.closeLog = closeLog

	a.cfg = cfg
	a.cfgPath = path
	if path != "" {
		a.log.Debug("config loaded from %s", path)
	}
	return nil
}

// report prints err the way dockhand formats failures and returns the
// process exit status.
func report(cmd *cobra.Command, err error) int {
	if err == nil {
		return 0
	}
	var exit exitError
	if stderrors.As(err, &exit) {
		return exit.code
	}

	w := cmd.ErrOrStderr()
	if isUnknownCommandError(err) {
		printUnknown(w, cmd, err)
		return 1
	}

	var e *errors.Error
	if stderrors.As(err, &e) {
		fmt.Fprint(w, e.Error())
		return 1
	}
	fmt.Fprintf(w, "%s %v\n", ui.SymbolFail, err)
	return 1
}

func printUnknown(w io.Writer, cmd *cobra.Command, err error) {
	fmt.Fprintf(w, "%s %s\n", ui.SymbolFail, firstLine(err.Error()))
	if name := extractUnknownCommand(err); name != "" {
		if suggestions := cmd.SuggestionsFor(name); len(suggestions) > 0 {
			fmt.Fprintf(w, "  Did you mean '%s'?\n", suggestions[0])
			return
		}
	}
	fmt.Fprintln(w, "  Run 'dockhand --help' to see what's available.")
}

// isUnknownCommandError reports whether err is cobra's complaint about an
// unknown command or flag.
func isUnknownCommandError(err error) bool {
	msg := err.Error()
	return strings.HasPrefix(msg, "unknown command") || strings.HasPrefix(msg, "unknown flag") ||
		strings.HasPrefix(msg, "unknown shorthand flag")
}

// extractUnknownCommand pulls the command name out of
// `unknown command "foo" for "dockhand"`.
func extractUnknownCommand(err error) string {
	msg := err.Error()
	start := strings.Index(msg, `"`)
	if start < 0 {
		return ""
	}
	end := strings.Index(msg[start+1:], `"`)
	if end < 0 {
		return ""
	}
	return msg[start+1 : start+1+end]
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
