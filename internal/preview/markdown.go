package preview

import (
	"bytes"
	"regexp"
	"strings"

	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
)

// TOCItem represents a table of contents entry
type TOCItem struct {
	Level  int    `json:"level"`
	Title  string `json:"title"`
	Anchor string `json:"anchor"`
}

var (
	anchorStrip = regexp.MustCompile(`[^a-z0-9\-\p{Han}\p{Hiragana}\p{Katakana}]`)
	anchorDash  = regexp.MustCompile(`-+`)
)

// markdownRenderer converts markdown files to HTML. Raw HTML in the source is
// not passed through, since previewed files are untrusted.
type markdownRenderer struct {
	md goldmark.Markdown
}

func newMarkdownRenderer(style string) *markdownRenderer {
	md := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			extension.Table,
			extension.Strikethrough,
			extension.TaskList,
			extension.Typographer,
			highlighting.NewHighlighting(
				highlighting.WithStyle(style),
				highlighting.WithFormatOptions(
					chromahtml.WithClasses(true),
				),
			),
		),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
		),
		goldmark.WithRendererOptions(
			html.WithHardWraps(),
			html.WithXHTML(),
		),
	)
	return &markdownRenderer{md: md}
}

// render converts source to HTML and returns its headings. The first heading
// doubles as the document title.
func (m *markdownRenderer) render(source []byte) (string, []TOCItem, error) {
	var buf bytes.Buffer
	if err := m.md.Convert(source, &buf); err != nil {
		return "", nil, err
	}
	return buf.String(), m.extractTOC(source), nil
}

// extractTOC walks the AST to extract headings
func (m *markdownRenderer) extractTOC(source []byte) []TOCItem {
	doc := m.md.Parser().Parse(text.NewReader(source))

	var toc []TOCItem
	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if heading, ok := n.(*ast.Heading); ok {
			title := headingText(heading, source)
			toc = append(toc, TOCItem{
				Level:  heading.Level,
				Title:  title,
				Anchor: generateAnchor(title),
			})
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return nil
	}
	return toc
}

func headingText(n ast.Node, source []byte) string {
	var buf bytes.Buffer
	for child := n.FirstChild(); child != nil; child = child.NextSibling() {
		if t, ok := child.(*ast.Text); ok {
			buf.Write(t.Segment.Value(source))
		}
	}
	return buf.String()
}

// generateAnchor creates a URL-safe anchor from text
func generateAnchor(title string) string {
	anchor := strings.ReplaceAll(strings.ToLower(title), " ", "-")
	anchor = anchorStrip.ReplaceAllString(anchor, "")
	anchor = anchorDash.ReplaceAllString(anchor, "-")
	return strings.Trim(anchor, "-")
}
