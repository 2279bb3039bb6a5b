package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/huh"
	"github.com/rileyhilliard/dockhand/internal/config"
	"github.com/rileyhilliard/dockhand/internal/errors"
	"github.com/rileyhilliard/dockhand/internal/ui"
	"github.com/spf13/cobra"
)

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Create or inspect the dockhand config file",
		// init must work even when the current config is broken, so loading
		// is left to the subcommands that need it.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	}
	cmd.AddCommand(newConfigInitCmd(a), newConfigShowCmd(a))
	return cmd
}

func newConfigInitCmd(a *app) *cobra.Command {
	var force, global bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a commented default .dockhand.yaml",
		Long: `Write a default config file with every setting and a note on what it does.

By default the file goes in the current directory. With --global it goes
to ~/.config/dockhand/config.yaml and applies everywhere.

Examples:
  dockhand config init
  dockhand config init --global
  dockhand config init --force`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := initPath(global)
			if err != nil {
				return err
			}
			return a.initConfig(cmd, path, force)
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing config")
	cmd.Flags().BoolVar(&global, "global", false, "write the global config instead of ./"+config.ConfigFileName)
	return cmd
}

func initPath(global bool) (string, error) {
	if global {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", errors.WrapWithCode(err, errors.ErrConfig,
				"Can't find your home directory",
				"Set $HOME, or run without --global.")
		}
		return filepath.Join(home, config.GlobalConfigDir, config.GlobalConfigFile), nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", errors.WrapWithCode(err, errors.ErrConfig,
			"Cannot determine current directory",
			"Check directory permissions")
	}
	return filepath.Join(cwd, config.ConfigFileName), nil
}

func (a *app) initConfig(cmd *cobra.Command, path string, force bool) error {
	out := cmd.OutOrStdout()

	if _, err := os.Stat(path); err == nil && !force && a.isInteractive(cmd) {
		var overwrite bool
		form := huh.NewForm(
			huh.NewGroup(
				huh.NewConfirm().
					Title(fmt.Sprintf("Config file '%s' already exists. Overwrite?", path)).
					Value(&overwrite),
			),
		)
		if err := form.Run(); err != nil {
			return errors.WrapWithCode(err, errors.ErrConfig,
				"Failed to get user input",
				"Try running with --force to overwrite")
		}
		if !overwrite {
			fmt.Fprintln(out, "Cancelled.")
			return nil
		}
		force = true
	}

	if err := config.WriteDefault(path, force); err != nil {
		return err
	}
	fmt.Fprintf(out, "%s Wrote %s\n", ui.SymbolSuccess, path)
	return nil
}

func newConfigShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective config",
		Long: `Print the config dockhand would run with: the file it found, merged
with defaults, DOCKHAND_* environment overrides and command-line flags.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.setup(); err != nil {
				return err
			}
			data, err := config.Marshal(a.cfg, false)
			if err != nil {
				return errors.WrapWithCode(err, errors.ErrConfig, "Couldn't render the config", "")
			}
			out := cmd.OutOrStdout()
			source := a.cfgPath
			if source == "" {
				source = "built-in defaults"
			}
			fmt.Fprintf(out, "# source: %s\n", source)
			_, err = out.Write(data)
			return err
		},
	}
}

func (a *app) isInteractive(cmd *cobra.Command) bool {
	if a.interactive != nil {
		return *a.interactive
	}
	in, inOK := cmd.InOrStdin().(*os.File)
	out, outOK := cmd.OutOrStdout().(*os.File)
	return inOK && outOK && ui.IsTerminal(in) && ui.IsTerminal(out)
}
