package chart

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/rileyhilliard/dockhand/internal/ui"
)

// Palette maps colour classes to terminal styles. The zero Palette renders
// plain text.
type Palette struct {
	styles map[Class]lipgloss.Style
}

// DefaultPalette uses the ui package's ANSI colours.
func DefaultPalette() Palette {
	return Palette{styles: map[Class]lipgloss.Style{
		ClassOK:     lipgloss.NewStyle().Foreground(ui.ColorSuccess),
		ClassWarn:   lipgloss.NewStyle().Foreground(ui.ColorWarning),
		ClassCrit:   lipgloss.NewStyle().Foreground(ui.ColorError),
		ClassMuted:  lipgloss.NewStyle().Foreground(ui.ColorMuted),
		ClassAccent: lipgloss.NewStyle().Foreground(ui.ColorInfo),
		ClassLabel:  lipgloss.NewStyle().Foreground(ui.ColorPrimary).Bold(true),
	}}
}

func (p Palette) style(c Class, s string) string {
	st, ok := p.styles[c]
	if !ok {
		return s
	}
	return st.Render(s)
}
