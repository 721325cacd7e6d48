package preview

import (
	"bytes"
	"io"

	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
)

// codeRenderer highlights source files with chroma using CSS classes, so one
// stylesheet serves every preview.
type codeRenderer struct {
	style     *chroma.Style
	formatter *chromahtml.Formatter
}

func newCodeRenderer(style string) *codeRenderer {
	return &codeRenderer{
		style:     styles.Get(style),
		formatter: chromahtml.New(chromahtml.WithClasses(true), chromahtml.WithLineNumbers(true)),
	}
}

// lexerFor picks a lexer by file name, then by content.
func lexerFor(name string, source string) chroma.Lexer {
	l := lexers.Match(name)
	if l == nil {
		l = lexers.Analyse(source)
	}
	if l == nil {
		l = lexers.Fallback
	}
	return chroma.Coalesce(l)
}

func (c *codeRenderer) render(name string, source string) (html string, language string, err error) {
	lexer := lexerFor(name, source)
	it, err := lexer.Tokenise(nil, source)
	if err != nil {
		return "", "", err
	}
	var buf bytes.Buffer
	if err := c.formatter.Format(&buf, c.style, it); err != nil {
		return "", "", err
	}
	return buf.String(), lexer.Config().Name, nil
}

// writeCSS writes the stylesheet matching the highlighted markup.
func (c *codeRenderer) writeCSS(w io.Writer) error {
	return c.formatter.WriteCSS(w, c.style)
}
