package tui

import (
	"os"
	"strings"

	"storytree/internal/tree"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// The TUI must stay readable on light and dark backgrounds, so colors are adaptive and "faint"
// is only applied on dark terminals.

func ac(light, dark string) lipgloss.AdaptiveColor {
	return lipgloss.AdaptiveColor{Light: light, Dark: dark}
}

func faintIfDark(st lipgloss.Style) lipgloss.Style {
	if lipgloss.HasDarkBackground() {
		return st.Faint(true)
	}
	return st
}

var (
	colorMuted           lipgloss.TerminalColor = ac("240", "243")
	colorSurfaceFg       lipgloss.TerminalColor = ac("235", "252")
	colorAccent          lipgloss.TerminalColor = ac("#5A56E0", "#8B87FF")
	colorCardBorder      lipgloss.TerminalColor = ac("250", "240")
	colorHighlightBorder lipgloss.TerminalColor = ac("244", "247")
	colorSelectedBorder  lipgloss.TerminalColor = ac("232", "255")
	colorError           lipgloss.TerminalColor = ac("160", "203")
)

// applyColorProfile honours NO_COLOR and STORYTREE_TUI_COLOR (ascii|ansi|ansi256|truecolor).
func applyColorProfile() {
	if termenv.EnvNoColor() {
		lipgloss.SetColorProfile(termenv.Ascii)
		return
	}
	switch strings.ToLower(strings.TrimSpace(os.Getenv("STORYTREE_TUI_COLOR"))) {
	case "ascii", "none":
		lipgloss.SetColorProfile(termenv.Ascii)
	case "ansi":
		lipgloss.SetColorProfile(termenv.ANSI)
	case "ansi256":
		lipgloss.SetColorProfile(termenv.ANSI256)
	case "truecolor":
		lipgloss.SetColorProfile(termenv.TrueColor)
	}
}

func cardStyle(state tree.CardState, width int) lipgloss.Style {
	st := lipgloss.NewStyle().
		Border(cardBorder(state)).
		Padding(0, 1).
		Width(max(1, width-2)).
		Foreground(colorSurfaceFg)

	switch state {
	case tree.StateFocused:
		return st.BorderForeground(colorAccent)
	case tree.StateSelected:
		return st.BorderForeground(colorSelectedBorder).Bold(true)
	case tree.StateHighlighted:
		return st.BorderForeground(colorHighlightBorder)
	default:
		return faintIfDark(st.BorderForeground(colorCardBorder))
	}
}

var (
	styleStatus      = lipgloss.NewStyle().Foreground(colorMuted)
	styleStatusPos   = lipgloss.NewStyle().Foreground(colorAccent).Bold(true)
	styleMinibuffer  = lipgloss.NewStyle().Foreground(colorSurfaceFg)
	styleError       = lipgloss.NewStyle().Foreground(colorError)
	stylePlaceholder = lipgloss.NewStyle().Foreground(colorMuted).Italic(true)
	stylePanel       = lipgloss.NewStyle().
				Border(lipgloss.NormalBorder(), true, false, false, false).
				BorderForeground(colorCardBorder)
)
