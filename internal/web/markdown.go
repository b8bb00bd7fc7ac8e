package web

import (
	"bytes"
	"html/template"
	"strings"

	"github.com/yuin/goldmark"
	emoji "github.com/yuin/goldmark-emoji"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

// cardHeadingOffset puts a card's "# Title" under the page's own h1 and pillar headings.
const cardHeadingOffset = 2

// cardMarkdown renders card text for the inside of a card's <a>. Raw HTML is never passed through
// (no html.WithUnsafe).
var cardMarkdown = goldmark.New(
	goldmark.WithExtensions(
		extension.GFM,
		emoji.Emoji,
	),
	goldmark.WithParserOptions(
		parser.WithASTTransformers(util.Prioritized(headingShift{by: cardHeadingOffset}, 100)),
	),
	goldmark.WithRendererOptions(
		html.WithHardWraps(),
		renderer.WithNodeRenderers(util.Prioritized(inertLinks{}, 100)),
	),
)

func renderMarkdownHTML(src string) template.HTML {
	src = strings.TrimSpace(src)
	if src == "" {
		return ""
	}
	var b bytes.Buffer
	if err := cardMarkdown.Convert([]byte(src), &b); err != nil {
		return template.HTML("<pre>" + template.HTMLEscapeString(src) + "</pre>")
	}
	return template.HTML(b.String())
}

type headingShift struct{ by int }

func (h headingShift) Transform(doc *ast.Document, _ text.Reader, _ parser.Context) {
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if hd, ok := n.(*ast.Heading); ok && entering {
			hd.Level = min(hd.Level+h.by, 6)
		}
		return ast.WalkContinue, nil
	})
}

// inertLinks renders links as spans; the whole card is already a link to its position and
// anchors do not nest.
type inertLinks struct{}

func (inertLinks) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(ast.KindLink, renderInertLink)
	reg.Register(ast.KindAutoLink, renderInertAutoLink)
}

func renderInertLink(w util.BufWriter, _ []byte, n ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		_, _ = w.WriteString("</span>")
		return ast.WalkContinue, nil
	}
	l := n.(*ast.Link)
	_, _ = w.WriteString(`<span class="link" title="`)
	_, _ = w.Write(util.EscapeHTML(l.Destination))
	_, _ = w.WriteString(`">`)
	return ast.WalkContinue, nil
}

func renderInertAutoLink(w util.BufWriter, source []byte, n ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	l := n.(*ast.AutoLink)
	_, _ = w.WriteString(`<span class="link">`)
	_, _ = w.Write(util.EscapeHTML(l.Label(source)))
	_, _ = w.WriteString("</span>")
	return ast.WalkContinue, nil
}
