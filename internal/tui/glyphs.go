package tui

import (
	"os"
	"strings"
	"sync"

	"storytree/internal/tree"

	"github.com/charmbracelet/lipgloss"
)

// Terminal apps can't change the user's font. Instead we choose between Unicode and ASCII glyph
// sets for borders and markers, for terminals that don't render box drawing cleanly.

type glyphSet int

const (
	glyphSetUnicode glyphSet = iota
	glyphSetASCII
)

var (
	glyphsMu      sync.RWMutex
	currentGlyphs = glyphSetUnicode
)

// applyGlyphPreference picks the glyph set: STORYTREE_TUI_GLYPHS, then the config value.
// Unknown values are ignored.
func applyGlyphPreference(configured string) {
	v := strings.TrimSpace(os.Getenv("STORYTREE_TUI_GLYPHS"))
	if v == "" {
		v = configured
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "unicode", "utf8":
		setGlyphs(glyphSetUnicode)
	case "ascii":
		setGlyphs(glyphSetASCII)
	}
}

func setGlyphs(gs glyphSet) {
	glyphsMu.Lock()
	currentGlyphs = gs
	glyphsMu.Unlock()
}

func glyphs() glyphSet {
	glyphsMu.RLock()
	gs := currentGlyphs
	glyphsMu.RUnlock()
	return gs
}

var asciiBorder = lipgloss.Border{
	Top:         "-",
	Bottom:      "-",
	Left:        "|",
	Right:       "|",
	TopLeft:     "+",
	TopRight:    "+",
	BottomLeft:  "+",
	BottomRight: "+",
}

func cardBorder(state tree.CardState) lipgloss.Border {
	if glyphs() == glyphSetASCII {
		if state == tree.StateFocused {
			b := asciiBorder
			b.Top, b.Bottom = "=", "="
			return b
		}
		return asciiBorder
	}
	switch state {
	case tree.StateFocused:
		return lipgloss.ThickBorder()
	case tree.StateSelected:
		return lipgloss.NormalBorder()
	default:
		return lipgloss.RoundedBorder()
	}
}

func glyphEllipsis() string {
	if glyphs() == glyphSetASCII {
		return "..."
	}
	return "…"
}

func glyphSeparator() string {
	if glyphs() == glyphSetASCII {
		return "|"
	}
	return "·"
}

// glyphChildren marks a card that has children.
func glyphChildren() string {
	if glyphs() == glyphSetASCII {
		return ">"
	}
	return "▸"
}
