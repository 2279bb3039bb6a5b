package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Semantic colors for status indication
const (
	ColorSuccess lipgloss.Color = "2" // Green
	ColorError   lipgloss.Color = "1" // Red
	ColorWarning lipgloss.Color = "3" // Yellow
	ColorInfo    lipgloss.Color = "6" // Cyan
)

// Text colors for content hierarchy
const (
	ColorPrimary   lipgloss.Color = "7" // White/default
	ColorSecondary lipgloss.Color = "4" // Blue
	ColorMuted     lipgloss.Color = "8" // Gray (bright black)
)

// Color modes accepted by ApplyColorMode.
const (
	ColorAuto   = "auto"
	ColorAlways = "always"
	ColorNever  = "never"
)

// ApplyColorMode sets the lipgloss color profile. "auto" keeps whatever
// termenv detected for stdout (NO_COLOR included).
func ApplyColorMode(mode string) error {
	switch strings.ToLower(mode) {
	case "", ColorAuto:
		return nil
	case ColorAlways:
		lipgloss.SetColorProfile(termenv.ANSI256)
	case ColorNever:
		lipgloss.SetColorProfile(termenv.Ascii)
	default:
		return fmt.Errorf("unknown color mode %q (want auto, always or never)", mode)
	}
	return nil
}

// StateColor picks the color for a container state.
func StateColor(state string) lipgloss.Color {
	switch state {
	case "running":
		return ColorSuccess
	case "paused", "restarting":
		return ColorWarning
	case "dead":
		return ColorError
	default:
		return ColorMuted
	}
}

// StateLabel renders a container state with its colored symbol, e.g. "● running".
func StateLabel(state string) string {
	return lipgloss.NewStyle().Foreground(StateColor(state)).Render(StateSymbol(state)) + " " + state
}
