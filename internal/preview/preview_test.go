package preview

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CageChen/finderhub/internal/fs"
)

// 1x1 transparent PNG
var pngPixel = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89, 0x00, 0x00, 0x00,
	0x0a, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9c, 0x63, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00, 0x00, 0x00, 0x00, 0x49,
	0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
}

func newLocalSource(t *testing.T) *fs.Adapter {
	t.Helper()
	dir := t.TempDir()
	files := map[string][]byte{
		"README.md":  []byte("# Title\n\nSome **bold** text.\n"),
		"main.go":    []byte("package main\n\nfunc main() {}\n"),
		"notes.txt":  []byte("plain <text>"),
		"pixel.png":  pngPixel,
		"paper.pdf":  []byte("%PDF-1.4"),
		"blob.bin":   {0x00, 0x01},
		"broken.txt": {0xff, 0xfe, 0xfd},
	}
	for name, data := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0755))

	a := fs.NewAdapter(fs.NewLocalProvider(dir))
	_, err := a.RequestAccess(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestPreview_Formats(t *testing.T) {
	src := newLocalSource(t)
	root := src.RootPath()
	r := NewRenderer()
	ctx := context.Background()

	res, err := r.Preview(ctx, src, root+"/README.md")
	require.NoError(t, err)
	assert.Equal(t, FormatMarkdown, res.Format)
	assert.Contains(t, res.HTML, "<strong>bold</strong>")
	assert.Equal(t, "Title", res.Title)

	res, err = r.Preview(ctx, src, root+"/main.go")
	require.NoError(t, err)
	assert.Equal(t, FormatCode, res.Format)
	assert.Equal(t, "Go", res.Language)
	assert.Contains(t, res.HTML, `class="chroma"`)

	res, err = r.Preview(ctx, src, root+"/notes.txt")
	require.NoError(t, err)
	assert.Equal(t, FormatText, res.Format)
	assert.Equal(t, "plain <text>", res.Text)
	assert.Empty(t, res.HTML)

	res, err = r.Preview(ctx, src, root+"/pixel.png")
	require.NoError(t, err)
	assert.Equal(t, FormatImage, res.Format)
	assert.Equal(t, "image/png", res.MimeType)
	assert.True(t, strings.HasPrefix(res.DataURL, "data:image/png;base64,"))

	res, err = r.Preview(ctx, src, root+"/paper.pdf")
	require.NoError(t, err)
	assert.Equal(t, FormatPDF, res.Format)
	assert.Equal(t, "application/pdf", res.MimeType)
	assert.Equal(t, "PDF Document", res.Kind)
}

func TestPreview_NotPreviewable(t *testing.T) {
	src := newLocalSource(t)
	root := src.RootPath()
	r := NewRenderer()
	ctx := context.Background()

	_, err := r.Preview(ctx, src, root+"/blob.bin")
	assert.ErrorIs(t, err, ErrNotPreviewable)

	_, err = r.Preview(ctx, src, root+"/sub")
	assert.ErrorIs(t, err, ErrNotPreviewable)

	_, err = r.Preview(ctx, src, root+"/broken.txt")
	assert.ErrorIs(t, err, ErrNotPreviewable)

	_, err = r.Preview(ctx, src, root+"/missing.txt")
	assert.ErrorIs(t, err, fs.ErrPathNotFound)
}

func TestPreview_ReadFailedFromMock(t *testing.T) {
	p, err := fs.NewMockProvider(fs.DefaultMockTree())
	require.NoError(t, err)
	a := fs.NewAdapter(p)
	_, err = a.RequestAccess(context.Background())
	require.NoError(t, err)

	_, err = NewRenderer().Preview(context.Background(), a, "home/todo.md")
	assert.ErrorIs(t, err, fs.ErrReadFailed)
}

// countingSource records how many bytes previews pull from the adapter.
type countingSource struct {
	*fs.Adapter
	read int
}

func (c *countingSource) ReadLimit(ctx context.Context, path string, limit int64) ([]byte, error) {
	data, err := c.Adapter.ReadLimit(ctx, path, limit)
	c.read += len(data)
	return data, err
}

func TestPreview_ReadsAtMostTheLimit(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "big.txt"), bytes.Repeat([]byte("x"), 1<<20), 0644))
	a := fs.NewAdapter(fs.NewLocalProvider(dir))
	_, err := a.RequestAccess(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	src := &countingSource{Adapter: a}

	res, err := NewRenderer(WithMaxBytes(1024)).Preview(context.Background(), src, a.RootPath()+"/big.txt")
	require.NoError(t, err)
	assert.True(t, res.Truncated)
	assert.Len(t, res.Text, 1024)
	assert.LessOrEqual(t, src.read, 1025)
}

func TestPreview_LargeImageIsNotRead(t *testing.T) {
	src := &countingSource{Adapter: newLocalSource(t)}
	r := NewRenderer(WithMaxImageBytes(16))

	_, err := r.Preview(context.Background(), src, src.RootPath()+"/pixel.png")
	assert.ErrorIs(t, err, ErrNotPreviewable)
	assert.Zero(t, src.read)

	_, err = r.Render("pixel.png", pngPixel)
	assert.ErrorIs(t, err, ErrNotPreviewable)

	res, err := NewRenderer(WithMaxImageBytes(len(pngPixel))).Render("pixel.png", pngPixel)
	require.NoError(t, err)
	assert.Equal(t, FormatImage, res.Format)
}

func TestRender_Truncates(t *testing.T) {
	r := NewRenderer(WithMaxBytes(10))
	res, err := r.Render("long.txt", []byte(strings.Repeat("é", 20)))
	require.NoError(t, err)
	assert.True(t, res.Truncated)
	assert.Equal(t, strings.Repeat("é", 5), res.Text)
}

func TestWriteCSS(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewRenderer(WithStyle("github")).WriteCSS(&buf))
	assert.Contains(t, buf.String(), ".chroma")
}
