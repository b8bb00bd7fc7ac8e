package tui

import (
	"math"
	"sort"
	"strings"

	"storytree/internal/tree"

	xansi "github.com/charmbracelet/x/ansi"
)

// maxCardLines caps how much of a long card is drawn in the tree; the preview shows the rest.
const maxCardLines = 12

// cardView sizes a card from its current text so heights follow edits without re-attaching.
type cardView struct {
	card  *tree.Card
	width int
}

func newViewFactory(width int) tree.ViewFactory {
	return func(c *tree.Card) tree.View {
		return &cardView{card: c, width: width}
	}
}

func (v *cardView) Size() (float64, float64) {
	lines := cardLines(v.card.Node().Text(), innerWidth(v.width))
	return float64(v.width), float64(len(lines) + 2)
}

// innerWidth is the text width inside the border and padding.
func innerWidth(cardWidth int) int {
	return max(1, cardWidth-4)
}

// cardLines wraps text to width. Empty text keeps a single blank line so cards never collapse.
func cardLines(text string, width int) []string {
	text = strings.TrimRight(text, "\n")
	if strings.TrimSpace(text) == "" {
		return []string{""}
	}
	lines := strings.Split(xansi.Wrap(text, width, ""), "\n")
	if len(lines) > maxCardLines {
		lines = lines[:maxCardLines]
		last := lines[maxCardLines-1]
		ell := glyphEllipsis()
		if xansi.StringWidth(last)+xansi.StringWidth(ell) > width {
			last = xansi.Cut(last, 0, max(0, width-xansi.StringWidth(ell)))
		}
		lines[maxCardLines-1] = last + ell
	}
	return lines
}

func renderCard(c *tree.Card, width int, hasChildren bool) string {
	lines := cardLines(c.Node().Text(), innerWidth(width))
	if len(lines) == 1 && lines[0] == "" {
		lines[0] = stylePlaceholder.Render("empty")
	}
	if hasChildren {
		// The marker sits at the end of the last line when it fits there.
		last := lines[len(lines)-1]
		mark := glyphChildren()
		if gap := innerWidth(width) - xansi.StringWidth(last) - xansi.StringWidth(mark); gap >= 1 {
			lines[len(lines)-1] = last + strings.Repeat(" ", gap) + styleStatus.Render(mark)
		}
	}
	return cardStyle(c.State(), width).Render(strings.Join(lines, "\n"))
}

// renderTree draws every card at its pillar's animated offset, clipped to width x height.
func renderTree(t *tree.Tree, width, height int) string {
	l := t.Layout()
	cv := newCanvas(width, height)
	cw := int(l.CardWidth)
	for d := 0; d < t.PillarCount(); d++ {
		p := t.Pillar(d)
		off := p.Offset()
		x := int(math.Round(off.X))
		if x >= width || x+cw <= 0 {
			continue
		}
		y := off.Y + l.TopMargin
		for f := 0; f < p.FamilyCount(); f++ {
			fam := p.Family(f)
			if fam.IsEmpty() {
				continue
			}
			for _, c := range fam.Cards() {
				top := int(math.Round(y))
				if top < height && top+int(c.Height()) > 0 {
					cv.draw(x, top, renderCard(c, cw, hasChildren(t, c)))
				}
				y += c.Height() + l.CardMargin
			}
			y += l.FamilyMargin
		}
	}
	return cv.String()
}

func hasChildren(t *tree.Tree, c *tree.Card) bool {
	cf := t.ChildFamily(c.Pos())
	p := t.Pillar(cf.Depth)
	return p != nil && p.FamilyLen(cf.Family) > 0
}

type segment struct {
	x int
	s string
}

// canvas composes styled blocks by column. Blocks must not overlap horizontally on a row;
// pillars are a stride apart so they never do.
type canvas struct {
	w, h int
	rows [][]segment
}

func newCanvas(w, h int) *canvas {
	return &canvas{w: max(0, w), h: max(0, h), rows: make([][]segment, max(0, h))}
}

func (c *canvas) draw(x, y int, block string) {
	for i, line := range strings.Split(block, "\n") {
		row := y + i
		if row < 0 || row >= c.h {
			continue
		}
		c.rows[row] = append(c.rows[row], segment{x: x, s: line})
	}
}

func (c *canvas) String() string {
	out := make([]string, c.h)
	for r, segs := range c.rows {
		sort.Slice(segs, func(i, j int) bool { return segs[i].x < segs[j].x })
		var b strings.Builder
		col := 0
		for _, seg := range segs {
			s, start := seg.s, seg.x
			w := xansi.StringWidth(s)
			if start < col {
				cut := col - start
				if cut >= w {
					continue
				}
				s = xansi.Cut(s, cut, w)
				w -= cut
				start = col
			}
			if start >= c.w {
				break
			}
			b.WriteString(strings.Repeat(" ", start-col))
			if start+w > c.w {
				s = xansi.Cut(s, 0, c.w-start)
				w = c.w - start
			}
			b.WriteString(s)
			col = start + w
		}
		out[r] = b.String()
	}
	return strings.Join(out, "\n")
}
