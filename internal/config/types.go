package config

import "time"

// CurrentConfigVersion is the schema version for the config file.
// Increment when making breaking changes to the config structure.
const CurrentConfigVersion = 1

// Config represents the complete .dockhand.yaml configuration file.
type Config struct {
	Version    int              `yaml:"version" mapstructure:"version"`
	Engine     EngineConfig     `yaml:"engine" mapstructure:"engine"`
	Dashboard  DashboardConfig  `yaml:"dashboard" mapstructure:"dashboard"`
	Completion CompletionConfig `yaml:"completion" mapstructure:"completion"`
	Shell      ShellConfig      `yaml:"shell" mapstructure:"shell"`
	Output     OutputConfig     `yaml:"output" mapstructure:"output"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
	Metrics    MetricsConfig    `yaml:"metrics" mapstructure:"metrics"`
}

// EngineConfig says where the container engine lives.
type EngineConfig struct {
	// Host is a unix://, tcp:// or ssh:// address. Empty falls back to
	// DOCKER_HOST, then the local socket.
	Host string `yaml:"host" mapstructure:"host"`

	// Timeout bounds each request/response call (not the streams).
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// DashboardConfig controls the live views.
type DashboardConfig struct {
	// Interval between redraws.
	Interval time.Duration `yaml:"interval" mapstructure:"interval"`

	// RenderTimeout bounds one render pass; a slower pass skips its frame.
	RenderTimeout time.Duration `yaml:"render_timeout" mapstructure:"render_timeout"`

	// HistorySize is how many samples each container keeps.
	HistorySize int `yaml:"history_size" mapstructure:"history_size"`

	// GracePeriod evicts a container that sent no samples for this long.
	GracePeriod time.Duration `yaml:"grace_period" mapstructure:"grace_period"`

	// EvictDelay waits this long after a die or destroy event before
	// dropping the container's samples.
	EvictDelay time.Duration `yaml:"evict_delay" mapstructure:"evict_delay"`

	// EventLogSize bounds the events monitor.
	EventLogSize int `yaml:"event_log_size" mapstructure:"event_log_size"`
}

// CompletionConfig controls tab completion in the shell.
type CompletionConfig struct {
	// Timeout bounds the live name lookup.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// ShellConfig controls the interactive shell.
type ShellConfig struct {
	Prompt       string `yaml:"prompt" mapstructure:"prompt"`
	HistoryLimit int    `yaml:"history_limit" mapstructure:"history_limit"`
}

// OutputConfig controls terminal output formatting.
type OutputConfig struct {
	// Color mode: "auto", "always", or "never".
	// "auto" disables color when output is piped.
	Color string `yaml:"color" mapstructure:"color"`
}

// LogConfig controls the debug log. The terminal belongs to the UI, so
// logs only ever go to a file.
type LogConfig struct {
	File  string `yaml:"file" mapstructure:"file"`
	Level string `yaml:"level" mapstructure:"level"`
}

// MetricsConfig exposes dockhand's own counters.
type MetricsConfig struct {
	// Listen is a host:port for the /metrics endpoint. Empty disables it.
	Listen string `yaml:"listen" mapstructure:"listen"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Version: CurrentConfigVersion,
		Engine: EngineConfig{
			Timeout: 10 * time.Second,
		},
		Dashboard: DashboardConfig{
			Interval:      time.Second,
			RenderTimeout: 500 * time.Millisecond,
			HistorySize:   60,
			GracePeriod:   30 * time.Second,
			EvictDelay:    0,
			EventLogSize:  200,
		},
		Completion: CompletionConfig{
			Timeout: 300 * time.Millisecond,
		},
		Shell: ShellConfig{
			Prompt:       "dockhand> ",
			HistoryLimit: 500,
		},
		Output: OutputConfig{
			Color: "auto",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}
