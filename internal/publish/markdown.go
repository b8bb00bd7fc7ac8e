package publish

import (
	"bytes"
	"fmt"
	"strings"

	"storytree/internal/model"
	"storytree/internal/tree"
)

type RenderOptions struct {
	// Title is written as a top-level heading when set.
	Title string
	// Headings puts a heading naming the position above every card. Without it, empty cards
	// are skipped.
	Headings bool
}

// RenderStoryMarkdown reads the tree depth-first: every card is followed by its children, so the
// result is the story at full detail.
func RenderStoryMarkdown(t *tree.Tree, opt RenderOptions) string {
	var buf bytes.Buffer
	writeTitle(&buf, opt.Title)
	if p := t.Pillar(0); p != nil {
		for i := 0; i < p.FamilyLen(0); i++ {
			renderSubtree(&buf, t, model.Pos(0, 0, i), opt)
		}
	}
	return finish(&buf)
}

func renderSubtree(buf *bytes.Buffer, t *tree.Tree, pos model.Position, opt RenderOptions) {
	n, err := t.Node(pos)
	if err != nil {
		return
	}
	writeCard(buf, n, opt)

	cf := t.ChildFamily(pos)
	p := t.Pillar(cf.Depth)
	if p == nil {
		return
	}
	for i := 0; i < p.FamilyLen(cf.Family); i++ {
		renderSubtree(buf, t, model.Pos(cf.Depth, cf.Family, i), opt)
	}
}

// RenderPillarMarkdown reads one pillar top to bottom: the story at a single level of detail.
func RenderPillarMarkdown(t *tree.Tree, depth int, opt RenderOptions) (string, error) {
	p := t.Pillar(depth)
	if p == nil || p.CountCards() == 0 {
		return "", fmt.Errorf("pillar %d has no cards", depth)
	}
	var buf bytes.Buffer
	writeTitle(&buf, opt.Title)
	for f := 0; f < p.FamilyCount(); f++ {
		for i := 0; i < p.FamilyLen(f); i++ {
			if n, err := t.Node(model.Pos(depth, f, i)); err == nil {
				writeCard(&buf, n, opt)
			}
		}
	}
	return finish(&buf), nil
}

func writeTitle(buf *bytes.Buffer, title string) {
	if title = strings.TrimSpace(title); title != "" {
		buf.WriteString("# " + title + "\n\n")
	}
}

func writeCard(buf *bytes.Buffer, n model.Node, opt RenderOptions) {
	text := strings.TrimSpace(n.Text())
	if opt.Headings {
		level := min(n.Pos.Depth+2, 6)
		buf.WriteString(strings.Repeat("#", level) + " " + n.Pos.String() + "\n\n")
	} else if text == "" {
		return
	}
	if text != "" {
		buf.WriteString(text + "\n\n")
	}
}

func finish(buf *bytes.Buffer) string {
	s := strings.TrimRight(buf.String(), "\n")
	if s == "" {
		return ""
	}
	return s + "\n"
}
