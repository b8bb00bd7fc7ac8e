package tui

import (
	"strings"
	"testing"

	"storytree/internal/motion"
	"storytree/internal/tree"

	xansi "github.com/charmbracelet/x/ansi"
)

func TestCanvas_ClipsAndPads(t *testing.T) {
	cv := newCanvas(10, 3)
	cv.draw(-2, 0, "abcdef")
	cv.draw(6, 0, "123456")
	cv.draw(2, 1, "xy\nzz")
	cv.draw(0, 5, "offscreen")

	got := strings.Split(cv.String(), "\n")
	want := []string{"cdef  1234", "  xy", "  zz"}
	if len(got) != len(want) {
		t.Fatalf("expected %d rows, got %d: %q", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("row %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestCardLines(t *testing.T) {
	if got := cardLines("", 10); len(got) != 1 || got[0] != "" {
		t.Fatalf("expected one blank line for empty text, got %q", got)
	}
	got := cardLines("one two three four", 9)
	for _, l := range got {
		if xansi.StringWidth(l) > 9 {
			t.Fatalf("line %q exceeds width", l)
		}
	}
	if len(got) < 2 {
		t.Fatalf("expected wrapping, got %q", got)
	}

	setGlyphs(glyphSetASCII)
	defer setGlyphs(glyphSetUnicode)
	long := strings.Repeat("line\n", maxCardLines+5)
	got = cardLines(long, 10)
	if len(got) != maxCardLines {
		t.Fatalf("expected %d lines, got %d", maxCardLines, len(got))
	}
	if !strings.HasSuffix(got[len(got)-1], "...") {
		t.Fatalf("expected truncated card to end with an ellipsis, got %q", got[len(got)-1])
	}
}

func TestCardView_HeightFollowsText(t *testing.T) {
	layout := tree.DefaultLayout()
	layout.Period = tree.NoAnimation
	tr := tree.New(tree.Options{
		Layout:    layout,
		Views:     newViewFactory(int(layout.CardWidth)),
		Scheduler: motion.NewManualScheduler(),
	})
	c := tr.Card(tr.Selected())
	if h := c.Height(); h != 3 {
		t.Fatalf("expected empty card height 3, got %v", h)
	}
	long := strings.Repeat("word ", 40)
	if _, err := tr.SetContent(tr.Selected(), contentOf(long)); err != nil {
		t.Fatalf("SetContent: %v", err)
	}
	if h := c.Height(); h <= 3 {
		t.Fatalf("expected wrapped card to grow, got %v", h)
	}
	if w := c.Width(); w != layout.CardWidth {
		t.Fatalf("expected width %v, got %v", layout.CardWidth, w)
	}
}

func TestRenderTree_DrawsSelectedColumn(t *testing.T) {
	layout := tree.DefaultLayout()
	layout.Period = tree.NoAnimation
	tr := tree.New(tree.Options{
		Layout:    layout,
		Views:     newViewFactory(int(layout.CardWidth)),
		Scheduler: motion.NewManualScheduler(),
	})
	if _, err := tr.SetContent(tr.Selected(), contentOf("root text")); err != nil {
		t.Fatalf("SetContent: %v", err)
	}
	tr.SetViewport(80, 20)

	out := xansi.Strip(renderTree(tr, 80, 20))
	rows := strings.Split(out, "\n")
	if len(rows) != 20 {
		t.Fatalf("expected 20 rows, got %d", len(rows))
	}
	found := -1
	for i, r := range rows {
		if strings.Contains(r, "root text") {
			found = i
		}
	}
	if found < 0 {
		t.Fatalf("expected root text in render:\n%s", out)
	}
	// The selected card is centered vertically.
	if found < 8 || found > 11 {
		t.Fatalf("expected the selected card near the middle, found on row %d", found)
	}
}
