package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rileyhilliard/dockhand/internal/errors"
	"github.com/spf13/viper"
)

const (
	// ConfigFileName is the default config file name.
	ConfigFileName = ".dockhand.yaml"
	// GlobalConfigDir is the directory for global config.
	GlobalConfigDir = ".config/dockhand"
	// GlobalConfigFile is the global config file name.
	GlobalConfigFile = "config.yaml"
	// EnvPrefix prefixes environment overrides, e.g. DOCKHAND_ENGINE_HOST.
	EnvPrefix = "DOCKHAND"
	// DockerHostEnv is honoured when no engine host is configured.
	DockerHostEnv = "DOCKER_HOST"
)

// Load reads config from the specified path. An empty path loads the
// defaults, still subject to environment overrides.
func Load(path string) (*Config, error) {
	v := newViper()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if os.IsNotExist(err) {
				return nil, errors.WrapWithCode(err, errors.ErrConfig,
					"Config file not found",
					"Run 'dockhand config init' to create a config file, or specify one with --config")
			}
			return nil, errors.WrapWithCode(err, errors.ErrConfig,
				"Failed to read config file",
				"Check the file exists and is valid YAML")
		}
	}

	return parseConfig(v, path)
}

// Find locates the config file using the search order:
// 1. Explicit path (from --config flag)
// 2. .dockhand.yaml in current directory
// 3. .dockhand.yaml in parent directories (stops at git root or home)
// 4. ~/.config/dockhand/config.yaml (global defaults)
//
// Returns the path to the config file, or empty string if not found.
func Find(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			if os.IsNotExist(err) {
				return "", errors.WrapWithCode(err, errors.ErrConfig,
					"Specified config file not found: "+explicit,
					"Check the path is correct")
			}
			return "", errors.WrapWithCode(err, errors.ErrConfig,
				"Cannot access config file: "+explicit,
				"Check file permissions")
		}
		return explicit, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", errors.WrapWithCode(err, errors.ErrConfig,
			"Cannot determine current directory",
			"Check directory permissions")
	}

	localConfig := filepath.Join(cwd, ConfigFileName)
	if _, err := os.Stat(localConfig); err == nil {
		return localConfig, nil
	}

	home, _ := os.UserHomeDir()
	dir := cwd
	for !isGitRoot(dir) {
		parent := filepath.Dir(dir)
		if parent == dir || (home != "" && parent == home) {
			break
		}
		dir = parent

		configPath := filepath.Join(dir, ConfigFileName)
		if _, err := os.Stat(configPath); err == nil {
			return configPath, nil
		}
	}

	if home != "" {
		globalConfig := filepath.Join(home, GlobalConfigDir, GlobalConfigFile)
		if _, err := os.Stat(globalConfig); err == nil {
			return globalConfig, nil
		}
	}

	return "", nil
}

// LoadOrDefault finds and loads the config, falling back to defaults when
// there is no file.
func LoadOrDefault(explicit string) (*Config, string, error) {
	path, err := Find(explicit)
	if err != nil {
		return nil, "", err
	}
	cfg, err := Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

// parseConfig converts viper config to our Config struct with defaults merged in.
func parseConfig(v *viper.Viper, path string) (*Config, error) {
	cfg := DefaultConfig()

	if err := v.Unmarshal(cfg); err != nil {
		where := "your environment"
		if path != "" {
			where = path
		}
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Invalid config format",
			"Check the YAML syntax in "+where)
	}

	if cfg.Engine.Host == "" {
		cfg.Engine.Host = os.Getenv(DockerHostEnv)
	}
	cfg.Log.File = ExpandTilde(Expand(cfg.Log.File))

	return cfg, nil
}

// setDefaults registers every key, which is also what lets AutomaticEnv
// see DOCKHAND_* overrides during Unmarshal.
func setDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("version", d.Version)
	v.SetDefault("engine.host", d.Engine.Host)
	v.SetDefault("engine.timeout", d.Engine.Timeout)
	v.SetDefault("dashboard.interval", d.Dashboard.Interval)
	v.SetDefault("dashboard.render_timeout", d.Dashboard.RenderTimeout)
	v.SetDefault("dashboard.history_size", d.Dashboard.HistorySize)
	v.SetDefault("dashboard.grace_period", d.Dashboard.GracePeriod)
	v.SetDefault("dashboard.evict_delay", d.Dashboard.EvictDelay)
	v.SetDefault("dashboard.event_log_size", d.Dashboard.EventLogSize)
	v.SetDefault("completion.timeout", d.Completion.Timeout)
	v.SetDefault("shell.prompt", d.Shell.Prompt)
	v.SetDefault("shell.history_limit", d.Shell.HistoryLimit)
	v.SetDefault("output.color", d.Output.Color)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("metrics.listen", d.Metrics.Listen)
}

// isGitRoot checks if a directory is a git repository root.
func isGitRoot(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ".git"))
	return err == nil
}
