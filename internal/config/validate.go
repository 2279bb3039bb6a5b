package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/rileyhilliard/dockhand/internal/errors"
)

// MinInterval is the fastest redraw the dashboard accepts.
const MinInterval = 100 * time.Millisecond

var (
	validColors    = []string{"auto", "always", "never"}
	validLogLevels = []string{"debug", "info", "warn", "error"}
	validSchemes   = []string{"unix", "tcp", "ssh"}
)

// Validate checks the config for errors and returns structured error messages.
func Validate(cfg *Config) error {
	if cfg.Version > CurrentConfigVersion {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("This config is from the future (version %d, but dockhand only knows up to %d)", cfg.Version, CurrentConfigVersion),
			"Grab the latest dockhand release.")
	}

	if err := validateEngine(cfg.Engine); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig, err.Error(), "Check the 'engine' section in your .dockhand.yaml.")
	}
	if err := validateDashboard(cfg.Dashboard); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig, err.Error(), "Check the 'dashboard' section in your .dockhand.yaml.")
	}
	if cfg.Completion.Timeout < 0 {
		return errors.New(errors.ErrConfig, "completion.timeout can't be negative", "Use something like 300ms.")
	}
	if cfg.Shell.HistoryLimit < 0 {
		return errors.New(errors.ErrConfig, "shell.history_limit can't be negative", "Use 0 for the default.")
	}
	if !oneOf(cfg.Output.Color, validColors) {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("Unknown output.color %q", cfg.Output.Color),
			"Use one of: "+strings.Join(validColors, ", "))
	}
	if cfg.Log.Level != "" && !oneOf(cfg.Log.Level, validLogLevels) {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("Unknown log.level %q", cfg.Log.Level),
			"Use one of: "+strings.Join(validLogLevels, ", "))
	}
	if cfg.Metrics.Listen != "" {
		if _, _, err := net.SplitHostPort(cfg.Metrics.Listen); err != nil {
			return errors.WrapWithCode(err, errors.ErrConfig,
				fmt.Sprintf("metrics.listen %q isn't a host:port", cfg.Metrics.Listen),
				"Try 127.0.0.1:9464, or leave it empty to turn metrics off.")
		}
	}
	return nil
}

func validateEngine(e EngineConfig) error {
	if e.Timeout < 0 {
		return fmt.Errorf("engine.timeout can't be negative")
	}
	if e.Host == "" {
		return nil
	}
	u, err := url.Parse(e.Host)
	if err != nil {
		return fmt.Errorf("engine.host %q isn't a valid address", e.Host)
	}
	if !oneOf(u.Scheme, validSchemes) {
		return fmt.Errorf("engine.host %q needs a unix://, tcp:// or ssh:// scheme", e.Host)
	}
	return nil
}

func validateDashboard(d DashboardConfig) error {
	switch {
	case d.Interval != 0 && d.Interval < MinInterval:
		return fmt.Errorf("dashboard.interval %s is below the %s minimum", d.Interval, MinInterval)
	case d.RenderTimeout < 0:
		return fmt.Errorf("dashboard.render_timeout can't be negative")
	case d.HistorySize < 0:
		return fmt.Errorf("dashboard.history_size can't be negative")
	case d.GracePeriod < 0:
		return fmt.Errorf("dashboard.grace_period can't be negative")
	case d.EvictDelay < 0:
		return fmt.Errorf("dashboard.evict_delay can't be negative")
	case d.EventLogSize < 0:
		return fmt.Errorf("dashboard.event_log_size can't be negative")
	}
	return nil
}

func oneOf(s string, allowed []string) bool {
	for _, a := range allowed {
		if s == a {
			return true
		}
	}
	return false
}
