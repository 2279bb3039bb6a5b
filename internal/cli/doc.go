// Package cli implements the dockhand command-line interface.
//
// Each cobra command is a thin shell over the packages that do the work:
// the interactive shell, the live views in dashboard, and config.
//
// # Command Structure
//
//	dockhand                     - interactive shell (also: dockhand shell)
//	dockhand dashboard [name...] - every chart, live
//	dockhand charts <kind> [...] - one chart, live
//	dockhand events              - lifecycle event log, live
//	dockhand attach <container>  - terminal passthrough
//	dockhand config init|show    - write or print the config
//
// # Startup
//
// The root command's PersistentPreRunE loads the config (with --host,
// --no-color and --debug applied on top), sets the color profile and
// installs the process logger. The engine is only dialed by commands that
// talk to it, so version, completion and config init work without one.
//
// Live views exit 0 when the user leaves them and 1 when they fail; the
// failure is printed by the view, and Execute turns the status into the
// process exit code.
package cli
