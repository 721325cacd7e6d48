// Package preview renders file contents for the preview panel: markdown as
// HTML, source code highlighted, plain text as is, images as data URLs.
package preview

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/CageChen/finderhub/internal/fs"
	"github.com/CageChen/finderhub/internal/meta"
)

// DefaultStyle is the chroma style used when none is configured.
const DefaultStyle = "monokai"

// DefaultMaxBytes caps how much of a text file is read and rendered.
const DefaultMaxBytes = 1 << 20

// DefaultMaxImageBytes is the largest image embedded as a data URL.
const DefaultMaxImageBytes = 8 << 20

// ErrNotPreviewable is returned for directories, unknown file types, binary
// content in text files and images above the size limit.
var ErrNotPreviewable = errors.New("preview not available for this file type")

// Format is how a preview is rendered by the client.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatCode     Format = "code"
	FormatText     Format = "text"
	FormatImage    Format = "image"
	FormatPDF      Format = "pdf"
)

// Result is a rendered preview. Only the fields for Format are set.
type Result struct {
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	Format    Format    `json:"format"`
	MimeType  string    `json:"mimeType"`
	Size      string    `json:"size"`
	Kind      string    `json:"kind"`
	HTML      string    `json:"html,omitempty"`
	Text      string    `json:"text,omitempty"`
	DataURL   string    `json:"dataUrl,omitempty"`
	Language  string    `json:"language,omitempty"`
	Title     string    `json:"title,omitempty"`
	TOC       []TOCItem `json:"toc,omitempty"`
	Truncated bool      `json:"truncated,omitempty"`
}

// Source is where previewed files are read from. ReadLimit returns at most
// limit bytes.
type Source interface {
	Stat(ctx context.Context, path string) (fs.Item, error)
	ReadLimit(ctx context.Context, path string, limit int64) ([]byte, error)
}

// Renderer turns file contents into previews.
type Renderer struct {
	markdown *markdownRenderer
	code     *codeRenderer
	maxBytes int
	maxImage int
}

// Option configures a Renderer.
type Option func(*rendererConfig)

type rendererConfig struct {
	style    string
	maxBytes int
	maxImage int
}

// WithStyle sets the chroma style for highlighted code.
func WithStyle(style string) Option {
	return func(c *rendererConfig) {
		if style != "" {
			c.style = style
		}
	}
}

// WithMaxBytes caps rendered text at n bytes.
func WithMaxBytes(n int) Option {
	return func(c *rendererConfig) {
		if n > 0 {
			c.maxBytes = n
		}
	}
}

// WithMaxImageBytes sets the largest image that is previewed.
func WithMaxImageBytes(n int) Option {
	return func(c *rendererConfig) {
		if n > 0 {
			c.maxImage = n
		}
	}
}

// NewRenderer creates a Renderer.
func NewRenderer(opts ...Option) *Renderer {
	cfg := rendererConfig{style: DefaultStyle, maxBytes: DefaultMaxBytes, maxImage: DefaultMaxImageBytes}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Renderer{
		markdown: newMarkdownRenderer(cfg.style),
		code:     newCodeRenderer(cfg.style),
		maxBytes: cfg.maxBytes,
		maxImage: cfg.maxImage,
	}
}

// Preview stats and reads path from src and renders it. Text files are read
// up to the text limit plus one byte, enough to tell that they were cut.
// Images over the image limit are not read at all. PDFs are not read; clients
// fetch them raw. Read errors are returned as they come from src, so
// fs.ErrReadFailed reaches the caller.
func (r *Renderer) Preview(ctx context.Context, src Source, path string) (*Result, error) {
	item, err := src.Stat(ctx, path)
	if err != nil {
		return nil, err
	}
	if item.IsDir {
		return nil, fmt.Errorf("%s is a directory: %w", path, ErrNotPreviewable)
	}
	res := &Result{
		Name: item.Name,
		Path: item.Path,
		Size: meta.FormatSize(item.Size),
		Kind: meta.Kind(item),
	}

	limit := int64(r.maxBytes) + 1
	switch meta.Classify(item.Name) {
	case meta.PreviewPDF:
		res.Format = FormatPDF
		res.MimeType = meta.MimeType(item.Name)
		return res, nil
	case meta.PreviewNone:
		return nil, fmt.Errorf("%s: %w", item.Name, ErrNotPreviewable)
	case meta.PreviewImage:
		if item.Size != nil && *item.Size > int64(r.maxImage) {
			return nil, r.imageTooLarge(item.Name)
		}
		limit = int64(r.maxImage) + 1
	}

	content, err := src.ReadLimit(ctx, path, limit)
	if err != nil {
		return nil, err
	}
	if err := r.render(res, content); err != nil {
		return nil, err
	}
	return res, nil
}

// Render renders content as the file called name.
func (r *Renderer) Render(name string, content []byte) (*Result, error) {
	res := &Result{Name: name, Path: name, Kind: meta.Kind(fs.Item{Name: name})}
	size := int64(len(content))
	res.Size = meta.FormatSize(&size)
	if err := r.render(res, content); err != nil {
		return nil, err
	}
	return res, nil
}

func (r *Renderer) render(res *Result, content []byte) error {
	switch meta.Classify(res.Name) {
	case meta.PreviewImage:
		if len(content) > r.maxImage {
			return r.imageTooLarge(res.Name)
		}
		res.Format = FormatImage
		res.MimeType = meta.DetectMimeType(res.Name, content)
		res.DataURL = "data:" + res.MimeType + ";base64," + base64.StdEncoding.EncodeToString(content)
		return nil
	case meta.PreviewPDF:
		res.Format = FormatPDF
		res.MimeType = meta.MimeType(res.Name)
		return nil
	case meta.PreviewText:
	default:
		return fmt.Errorf("%s: %w", res.Name, ErrNotPreviewable)
	}

	if len(content) > r.maxBytes {
		content = trimUTF8(content[:r.maxBytes])
		res.Truncated = true
	}
	if !utf8.Valid(content) {
		return fmt.Errorf("%s has binary content: %w", res.Name, ErrNotPreviewable)
	}
	res.MimeType = meta.DetectMimeType(res.Name, content)

	switch meta.Extension(res.Name) {
	case "md":
		html, toc, err := r.markdown.render(content)
		if err != nil {
			return fmt.Errorf("render markdown %s: %w", res.Name, err)
		}
		res.Format = FormatMarkdown
		res.HTML = html
		res.TOC = toc
		if len(toc) > 0 {
			res.Title = toc[0].Title
		}
	case "txt", "log", "csv":
		res.Format = FormatText
		res.Text = string(content)
	default:
		html, lang, err := r.code.render(res.Name, string(content))
		if err != nil {
			return fmt.Errorf("highlight %s: %w", res.Name, err)
		}
		res.Format = FormatCode
		res.HTML = html
		res.Language = lang
		res.Text = string(content)
	}
	return nil
}

func (r *Renderer) imageTooLarge(name string) error {
	limit := int64(r.maxImage)
	return fmt.Errorf("%s is larger than %s: %w", name, meta.FormatSize(&limit), ErrNotPreviewable)
}

// WriteCSS writes the stylesheet for highlighted code.
func (r *Renderer) WriteCSS(w io.Writer) error {
	return r.code.writeCSS(w)
}

// trimUTF8 drops a trailing partial rune left by truncation.
func trimUTF8(b []byte) []byte {
	for i := 0; i < utf8.UTFMax && len(b) > 0; i++ {
		r, size := utf8.DecodeLastRune(b)
		if r != utf8.RuneError || size > 1 {
			return b
		}
		b = b[:len(b)-1]
	}
	return b
}
