// Package ui holds the terminal presentation pieces shared by the shell and
// the CLI: the colour palette, status symbols, plain tables and the
// interactive container picker.
//
// # Color Scheme
//
// Colors are ANSI codes so they follow the user's terminal theme:
//
//	ColorSuccess   (green)  - running, healthy values
//	ColorError     (red)    - failures, critical load
//	ColorWarning   (yellow) - paused, elevated load
//	ColorInfo      (cyan)   - prompt, accents
//	ColorMuted     (gray)   - secondary text, empty chart cells
//	ColorSecondary (blue)   - selection borders
//
// ApplyColorMode switches profiles for the output.color setting and the
// --no-color flag.
package ui
