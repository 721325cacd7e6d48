package fs

import (
	"context"
	"iter"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// setupTestDir creates a small directory tree:
//
//	docs/guide.md
//	docs/deep/inner.txt
//	empty/
//	notes.txt
//	debug.log
func setupTestDir(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "docs", "deep"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "empty"), 0o755))
	files := map[string]string{
		"notes.txt":           "hello",
		"debug.log":           "noise",
		"docs/guide.md":       "# Guide\n",
		"docs/deep/inner.txt": "inner",
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

func grantedLocal(t *testing.T, opts ...Option) (*Adapter, string) {
	t.Helper()
	dir := setupTestDir(t)
	a := NewAdapter(NewLocalProvider(dir), opts...)
	t.Cleanup(func() { _ = a.Close() })
	g, err := a.RequestAccess(context.Background())
	require.NoError(t, err)
	require.Equal(t, filepath.Base(dir), g.RootPath)
	return a, g.RootPath
}

func names(items []Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Name
	}
	sort.Strings(out)
	return out
}

func TestAdapter_ListBeforeGrant(t *testing.T) {
	a := NewAdapter(NewLocalProvider(t.TempDir()))

	l := a.List(context.Background(), "anything")
	assert.ErrorIs(t, l.Err, ErrNoAccess)
	assert.Empty(t, l.Items)
	assert.False(t, a.HasAccess())
	assert.Equal(t, "", a.RootPath())
}

func TestAdapter_ListRoot(t *testing.T) {
	a, root := grantedLocal(t)

	l := a.List(context.Background(), root)
	require.True(t, l.OK(), "listing failed: %v", l.Err)
	assert.Equal(t, []string{"debug.log", "docs", "empty", "notes.txt"}, names(l.Items))

	for _, it := range l.Items {
		assert.Equal(t, root+"/"+it.Name, it.Path)
		require.NotNil(t, it.Modified, "modified must always be set")
		if it.IsDir {
			assert.Nil(t, it.Size, "directories have no size")
		} else {
			require.NotNil(t, it.Size)
		}
		if it.Name == "notes.txt" {
			assert.EqualValues(t, 5, *it.Size)
		}
	}
}

func TestAdapter_ListNested(t *testing.T) {
	a, root := grantedLocal(t)

	l := a.List(context.Background(), root+"/docs/deep")
	require.True(t, l.OK())
	require.Len(t, l.Items, 1)
	assert.Equal(t, root+"/docs/deep/inner.txt", l.Items[0].Path)
}

func TestAdapter_EmptyVersusMissing(t *testing.T) {
	a, root := grantedLocal(t)

	empty := a.List(context.Background(), root+"/empty")
	assert.True(t, empty.OK())
	assert.Empty(t, empty.Items)

	missing := a.List(context.Background(), root+"/nope")
	assert.ErrorIs(t, missing.Err, ErrPathNotFound)
	assert.Empty(t, missing.Items)
}

func TestAdapter_RejectsEscapingPaths(t *testing.T) {
	a, root := grantedLocal(t)

	for _, p := range []string{root + "/../x", root + "/docs/../../etc", "elsewhere/docs"} {
		l := a.List(context.Background(), p)
		assert.ErrorIs(t, l.Err, ErrPathNotFound, p)
	}
}

func TestAdapter_ListFileIsEnumerationError(t *testing.T) {
	a, root := grantedLocal(t)

	l := a.List(context.Background(), root+"/notes.txt")
	assert.False(t, l.OK())
	assert.Empty(t, l.Items)
}

func TestAdapter_Exclude(t *testing.T) {
	a, root := grantedLocal(t, WithExclude([]string{"*.log", "docs/deep"}))

	l := a.List(context.Background(), root)
	assert.Equal(t, []string{"docs", "empty", "notes.txt"}, names(l.Items))

	l = a.List(context.Background(), root+"/docs")
	assert.Equal(t, []string{"guide.md"}, names(l.Items))
}

func TestAdapter_Read(t *testing.T) {
	a, root := grantedLocal(t)

	data, err := a.Read(context.Background(), root+"/docs/guide.md")
	require.NoError(t, err)
	assert.Equal(t, "# Guide\n", string(data))

	_, err = a.Read(context.Background(), root+"/docs/missing.md")
	assert.ErrorIs(t, err, ErrPathNotFound)
}

func TestAdapter_Stat(t *testing.T) {
	a, root := grantedLocal(t)

	it, err := a.Stat(context.Background(), root+"/docs")
	require.NoError(t, err)
	assert.True(t, it.IsDir)
	assert.Equal(t, "docs", it.Name)
	assert.Equal(t, root+"/docs", it.Path)

	it, err = a.Stat(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, root, it.Path)
}

func TestAdapter_AccessDenied(t *testing.T) {
	a := NewAdapter(NewLocalProvider(filepath.Join(t.TempDir(), "missing")))

	_, err := a.RequestAccess(context.Background())
	assert.ErrorIs(t, err, ErrAccessDenied)
	assert.False(t, a.HasAccess())
}

func TestAdapter_MockDirectoriesGetClockTime(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	p, err := NewMockProvider(DefaultMockTree())
	require.NoError(t, err)
	a := NewAdapter(p, WithClock(func() time.Time { return now }))
	_, err = a.RequestAccess(context.Background())
	require.NoError(t, err)

	l := a.List(context.Background(), "home")
	require.True(t, l.OK())
	for _, it := range l.Items {
		if it.IsDir {
			assert.Equal(t, now, *it.Modified, it.Name)
		} else {
			assert.NotEqual(t, now, *it.Modified, it.Name)
		}
	}
}

func TestAdapter_MockReadUnsupported(t *testing.T) {
	p, err := NewMockProvider(DefaultMockTree())
	require.NoError(t, err)
	a := NewAdapter(p)
	_, err = a.RequestAccess(context.Background())
	require.NoError(t, err)

	_, err = a.Read(context.Background(), "home/todo.md")
	assert.ErrorIs(t, err, ErrReadFailed)
	assert.ErrorIs(t, err, ErrUnsupported)
}

// vanishingProvider reports one extra entry that disappears before it can be
// described.
type vanishingProvider struct{ Provider }

func (v vanishingProvider) Entries(ctx context.Context, rel string) (iter.Seq2[Entry, error], error) {
	seq, err := v.Provider.Entries(ctx, rel)
	if err != nil {
		return nil, err
	}
	return func(yield func(Entry, error) bool) {
		if !yield(Entry{}, newError(ErrEntrySkipped, "gone.txt", os.ErrNotExist)) {
			return
		}
		for e, err := range seq {
			if !yield(e, err) {
				return
			}
		}
	}, nil
}

func TestAdapter_SkipsVanishedEntries(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	p, err := NewMockProvider(DefaultMockTree())
	require.NoError(t, err)
	a := NewAdapter(vanishingProvider{p}, WithLogger(zap.New(core)))
	_, err = a.RequestAccess(context.Background())
	require.NoError(t, err)

	l := a.List(context.Background(), "home/Music")
	require.True(t, l.OK(), "%v", l.Err)
	assert.Equal(t, []string{"Song.mp3"}, names(l.Items))
	assert.Equal(t, 1, logs.FilterMessage("entry skipped").Len())
}

func TestAdapter_ReadLimit(t *testing.T) {
	a, root := grantedLocal(t)

	data, err := a.ReadLimit(context.Background(), root+"/docs/guide.md", 4)
	require.NoError(t, err)
	assert.Equal(t, "# Gu", string(data))
}
