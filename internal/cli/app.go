package cli

import (
	"context"
	"io"
	"os"

	"github.com/rileyhilliard/dockhand/internal/chart"
	"github.com/rileyhilliard/dockhand/internal/config"
	"github.com/rileyhilliard/dockhand/internal/dashboard"
	"github.com/rileyhilliard/dockhand/internal/engine"
	"github.com/rileyhilliard/dockhand/internal/errors"
	"github.com/rileyhilliard/dockhand/internal/ingest"
	"github.com/rileyhilliard/dockhand/internal/logger"
	"github.com/rileyhilliard/dockhand/internal/telemetry"
	"github.com/spf13/cobra"
)

// globalFlags are the persistent flags shared by every command.
type globalFlags struct {
	config  string
	host    string
	noColor bool
	debug   bool
}

// app is the state one dockhand invocation builds up: config, logger,
// metrics and the engine connection.
type app struct {
	flags globalFlags

	cfg      *config.Config
	cfgPath  string
	log      logger.Logger
	closeLog func() error

	tel      *telemetry.Collector
	eng      engine.Engine
	closeEng func() error

	// dial opens the engine; tests swap in a fake.
	dial func(engine.Options) (engine.Engine, error)
	// screen overrides terminal detection for live views.
	screen dashboard.Screen
	// interactive overrides terminal detection for the shell.
	interactive *bool
}

func newApp() *app {
	return &app{dial: dialDocker}
}

func dialDocker(opts engine.Options) (engine.Engine, error) {
	c, err := engine.NewClient(opts)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// connect opens the engine once per invocation. The metrics endpoint, when
// configured, comes up first so it covers the whole session.
func (a *app) connect(ctx context.Context) (engine.Engine, error) {
	if err := a.serveMetrics(ctx); err != nil {
		return nil, err
	}
	return a.openEngine()
}

func (a *app) serveMetrics(ctx context.Context) error {
	listen := a.cfg.Metrics.Listen
	if listen == "" || a.tel != nil {
		return nil
	}
	col := telemetry.NewCollector()
	addr, err := telemetry.Serve(ctx, listen, col, a.log)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Couldn't serve metrics on "+listen,
			"Pick a free port for metrics.listen, or leave it empty.")
	}
	a.tel = col
	a.log.Info("serving metrics on http://%s/metrics", addr)
	return nil
}

func (a *app) openEngine() (engine.Engine, error) {
	if a.eng != nil {
		return a.eng, nil
	}
	eng, err := a.dial(engine.Options{
		Host:    a.cfg.Engine.Host,
		Timeout: a.cfg.Engine.Timeout,
		Logger:  a.log,
	})
	if err != nil {
		return nil, err
	}
	a.eng = eng
	if c, ok := eng.(io.Closer); ok {
		a.closeEng = c.Close
	}
	return eng, nil
}

// close releases the engine and flushes the log. Safe to call more than once.
func (a *app) close() {
	if a.closeEng != nil {
		if err := a.closeEng(); err != nil && a.log != nil {
			a.log.Warn("closing engine: %v", err)
		}
		a.closeEng = nil
	}
	if a.closeLog != nil {
		_ = a.closeLog()
		a.closeLog = nil
	}
}

// deps maps the dashboard config onto what the live views need.
func (a *app) deps(cmd *cobra.Command, eng engine.Engine) dashboard.Deps {
	d := a.cfg.Dashboard
	return dashboard.Deps{
		Engine: eng,
		Screen: a.screenFor(cmd),
		Ingest: ingest.Options{
			HistorySize: d.HistorySize,
			GracePeriod: d.GracePeriod,
			EvictDelay:  d.EvictDelay,
			Logger:      a.log,
			Telemetry:   a.tel,
		},
		Loop: dashboard.Options{
			Interval:      d.Interval,
			RenderTimeout: d.RenderTimeout,
			Palette:       chart.DefaultPalette(),
			Logger:        a.log,
			Telemetry:     a.tel,
		},
		EventLogSize: d.EventLogSize,
		Stderr:       cmd.ErrOrStderr(),
	}
}

// screenFor picks the full-screen viewer when the command runs on the
// process terminal and plain redraws for anything else.
func (a *app) screenFor(cmd *cobra.Command) dashboard.Screen {
	if a.screen != nil {
		return a.screen
	}
	in, inOK := cmd.InOrStdin().(*os.File)
	out, outOK := cmd.OutOrStdout().(*os.File)
	if inOK && outOK {
		return dashboard.DefaultScreen(in, out)
	}
	return dashboard.NewPlainScreen(cmd.OutOrStdout())
}
