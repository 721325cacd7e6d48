package watcher

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/CageChen/finderhub/internal/config"
)

func startWatcher(t *testing.T) (string, <-chan Event) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "docs", "deep"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "node_modules", "pkg"), 0755))

	cfg := config.DefaultConfig()
	cfg.Root.Path = dir

	w, err := New(cfg, zap.NewNop())
	require.NoError(t, err)
	events := make(chan Event, 16)
	w.OnChange(func(e Event) { events <- e })
	require.NoError(t, w.Start())
	t.Cleanup(func() { _ = w.Stop() })
	return dir, events
}

func waitEvent(t *testing.T, events <-chan Event) Event {
	t.Helper()
	select {
	case e := <-events:
		return e
	case <-time.After(3 * time.Second):
		t.Fatal("no event")
		return Event{}
	}
}

func TestWatcher_ReportsDirectory(t *testing.T) {
	dir, events := startWatcher(t)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "docs", "deep", "a.txt"), []byte("x"), 0644))
	e := waitEvent(t, events)
	assert.Equal(t, "docs/deep", e.Dir)
	assert.Equal(t, filepath.Join(dir, "docs", "deep", "a.txt"), e.Path)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "top.txt"), []byte("x"), 0644))
	for {
		e = waitEvent(t, events)
		if e.Path == filepath.Join(dir, "top.txt") {
			break
		}
	}
	assert.Equal(t, "", e.Dir)
}

func TestWatcher_SkipsExcluded(t *testing.T) {
	dir, events := startWatcher(t)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "node_modules", "pkg", "index.js"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".DS_Store"), []byte("x"), 0644))
	select {
	case e := <-events:
		t.Fatalf("unexpected event %+v", e)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcher_WatchesNewDirectories(t *testing.T) {
	dir, events := startWatcher(t)

	sub := filepath.Join(dir, "fresh")
	require.NoError(t, os.Mkdir(sub, 0755))
	e := waitEvent(t, events)
	assert.Equal(t, EventCreate, e.Type)
	assert.Equal(t, "", e.Dir)

	// give the watch on the new directory a moment to register
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(sub, "b.txt"), []byte("x"), 0644))
	for {
		e = waitEvent(t, events)
		if e.Dir == "fresh" {
			break
		}
	}
	assert.Equal(t, "create", e.Type.String())
}

func TestEventType_String(t *testing.T) {
	assert.Equal(t, "write", EventWrite.String())
	assert.Equal(t, "remove", EventRemove.String())
	assert.Equal(t, "rename", EventRename.String())
	assert.Equal(t, "unknown", EventType(42).String())
}
