package nav

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CageChen/finderhub/internal/fs"
)

// tableLister serves listings from a map and records every listed path.
type tableLister struct {
	mu     sync.Mutex
	table  map[string][]fs.Item
	listed []string
}

func (l *tableLister) List(_ context.Context, path string) fs.Listing {
	l.mu.Lock()
	l.listed = append(l.listed, path)
	l.mu.Unlock()
	items, ok := l.table[path]
	if !ok {
		return fs.Listing{Path: path, Items: []fs.Item{}, Err: fs.ErrPathNotFound}
	}
	return fs.Listing{Path: path, Items: items}
}

func d(path string) fs.Item { return fs.Item{Name: fs.BaseName(path), Path: path, IsDir: true} }
func f(path string) fs.Item { return fs.Item{Name: fs.BaseName(path), Path: path} }

func newTableLister() *tableLister {
	return &tableLister{table: map[string][]fs.Item{
		"root":        {d("root/A"), d("root/B"), d("root/Empty"), f("root/Photo.png")},
		"root/A":      {d("root/A/deep"), f("root/A/a.txt")},
		"root/A/deep": {f("root/A/deep/x.go")},
		"root/B":      {f("root/B/b.txt")},
		"root/Empty":  {},
	}}
}

func TestChain(t *testing.T) {
	assert.Equal(t, []string{"root"}, Chain("root", "root"))
	assert.Equal(t, []string{"root", "root/A", "root/A/deep"}, Chain("root", "root/A/deep"))
	assert.Equal(t, []string{"root"}, Chain("root", "other/A"))
}

func TestBuildColumns_NoRoot(t *testing.T) {
	cs := BuildColumns(context.Background(), "", "anything", newTableLister())
	assert.Equal(t, 0, cs.Len())
	assert.Empty(t, cs.Selected)
}

func TestBuildColumns_AtRoot(t *testing.T) {
	cs := BuildColumns(context.Background(), "root", "root", newTableLister())
	require.Equal(t, 1, cs.Len())
	assert.Len(t, cs.Columns[0], 4)
	assert.Empty(t, cs.Selected)
	assert.Equal(t, []string{"root"}, cs.Paths)
}

func TestBuildColumns_Depth(t *testing.T) {
	cs := BuildColumns(context.Background(), "root", "root/A/deep", newTableLister())
	require.Equal(t, 3, cs.Len())
	assert.Equal(t, []string{"root", "root/A", "root/A/deep"}, cs.Paths)
	assert.Equal(t, map[int]string{0: "root/A", 1: "root/A/deep"}, cs.Selected)
	assert.Equal(t, "root/A/deep/x.go", cs.Columns[2][0].Path)
}

func TestBuildColumns_StopsAtEmptyLevel(t *testing.T) {
	cs := BuildColumns(context.Background(), "root", "root/Empty", newTableLister())
	assert.Equal(t, 1, cs.Len())
	assert.Equal(t, "root/Empty", cs.Selected[0])
}

func TestBuildColumns_StopsAtFailedLevel(t *testing.T) {
	cs := BuildColumns(context.Background(), "root", "root/Missing/x", newTableLister())
	assert.Equal(t, 1, cs.Len())
	assert.Equal(t, map[int]string{0: "root/Missing"}, cs.Selected)
}

func TestBuildColumns_EmptyRootStillOneColumn(t *testing.T) {
	l := &tableLister{table: map[string][]fs.Item{"root": {}}}
	cs := BuildColumns(context.Background(), "root", "root", l)
	require.Equal(t, 1, cs.Len())
	assert.Empty(t, cs.Columns[0])
}

func TestColumnSet_SelectReplacesDeeperColumns(t *testing.T) {
	l := newTableLister()
	cs := BuildColumns(context.Background(), "root", "root/B", l)
	require.Equal(t, 2, cs.Len())

	next := cs.Select(context.Background(), d("root/A"), 0, l)
	require.Equal(t, 2, next.Len(), "selection must replace column 1, not append a third")
	assert.Equal(t, "root/A", next.Paths[1])
	assert.Equal(t, "root/A/deep", next.Columns[1][0].Path)
	assert.Equal(t, map[int]string{0: "root/A"}, next.Selected)

	// the receiver is untouched
	assert.Equal(t, "root/B", cs.Paths[1])
	assert.Equal(t, "root/B", cs.Selected[0])
}

func TestColumnSet_SelectTruncatesSelectionMarkers(t *testing.T) {
	l := newTableLister()
	cs := BuildColumns(context.Background(), "root", "root/A/deep", l)
	require.Equal(t, 3, cs.Len())

	next := cs.Select(context.Background(), f("root/A/a.txt"), 1, l)
	assert.Equal(t, 2, next.Len())
	assert.Equal(t, map[int]string{0: "root/A", 1: "root/A/a.txt"}, next.Selected)
}

func TestColumnSet_SelectEmptyDirectory(t *testing.T) {
	l := newTableLister()
	cs := BuildColumns(context.Background(), "root", "root", l)

	next := cs.Select(context.Background(), d("root/Empty"), 0, l)
	assert.Equal(t, 1, next.Len())
	assert.Equal(t, "root/Empty", next.Selected[0])
}

func TestColumnSet_SelectOutOfRange(t *testing.T) {
	l := newTableLister()
	cs := BuildColumns(context.Background(), "root", "root", l)

	next := cs.Select(context.Background(), d("root/A"), 3, l)
	assert.Equal(t, cs, next)
}

func TestBuildColumns_WithMockAdapter(t *testing.T) {
	p, err := fs.NewMockProvider(fs.DefaultMockTree())
	require.NoError(t, err)
	a := fs.NewAdapter(p)
	g, err := a.RequestAccess(context.Background())
	require.NoError(t, err)

	cs := BuildColumns(context.Background(), g.RootPath, "home/Documents/Projects", a)
	require.Equal(t, 3, cs.Len())
	assert.Equal(t, "home/Documents/Projects", cs.Selected[1])
}
