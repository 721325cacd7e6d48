package fs

import (
	"context"
	"errors"
	"io"
	"iter"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/text/unicode/norm"
)

const defaultBatchSize = 64

// LocalProvider serves a directory on the local disk. Access is granted by
// opening an *os.Root, which confines every later lookup to that directory.
// Names are reported in NFC; lookups map them back to the on-disk spelling.
type LocalProvider struct {
	dir         string
	batchSize   int
	handleLimit int

	mu      sync.RWMutex
	root    *os.Root
	handles *HandleCache
}

// NewLocalProvider creates a LocalProvider for dir. No file system access
// happens until RequestAccess is called.
func NewLocalProvider(dir string) *LocalProvider {
	return &LocalProvider{dir: dir, batchSize: defaultBatchSize, handleLimit: DefaultHandleLimit}
}

// Name implements Provider.
func (l *LocalProvider) Name() string { return "local" }

// Dir returns the absolute directory this provider serves.
func (l *LocalProvider) Dir() string {
	abs, err := filepath.Abs(l.dir)
	if err != nil {
		return l.dir
	}
	return abs
}

// RequestAccess opens the root handle. Calling it again replaces the handle
// and starts an empty cache; the previous handles are retired into it so
// listings still reading through them can finish.
func (l *LocalProvider) RequestAccess(ctx context.Context) (Grant, error) {
	if err := ctx.Err(); err != nil {
		return Grant{}, err
	}
	abs := l.Dir()
	root, err := os.OpenRoot(abs)
	if err != nil {
		return Grant{}, newError(ErrAccessDenied, abs, err)
	}

	handles := NewHandleCache(l.handleLimit)
	l.mu.Lock()
	oldRoot, oldHandles := l.root, l.handles
	l.root = root
	l.handles = handles
	l.mu.Unlock()

	handles.Adopt(oldHandles, oldRoot)
	return Grant{RootPath: filepath.Base(abs)}, nil
}

func (l *LocalProvider) current() (*os.Root, *HandleCache) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.root, l.handles
}

// resolve walks from the deepest cached ancestor of rel down to rel, caching
// every directory handle it opens on the way.
func (l *LocalProvider) resolve(rel string) (*os.Root, *HandleCache, error) {
	root, handles := l.current()
	if root == nil {
		return nil, nil, ErrNoAccess
	}
	if rel == "" {
		return root, handles, nil
	}
	if h, ok := handles.Get(rel); ok {
		return h, handles, nil
	}

	segs := Segments(rel)
	cur, start := root, 0
	for i := len(segs) - 1; i > 0; i-- {
		if h, ok := handles.Get(strings.Join(segs[:i], "/")); ok {
			cur, start = h, i
			break
		}
	}
	for i := start; i < len(segs); i++ {
		parent := strings.Join(segs[:i], "/")
		next, err := cur.OpenRoot(onDisk(cur, handles, parent, segs[i]))
		if err != nil {
			return nil, nil, err
		}
		handles.Put(JoinPath(parent, segs[i]), next)
		cur = next
	}
	return cur, handles, nil
}

// onDisk returns the on-disk spelling of the NFC name inside dir, whose
// handle is h. Names that exist as given are returned unchanged.
func onDisk(h *os.Root, handles *HandleCache, dir, name string) string {
	key := JoinPath(dir, name)
	if raw, ok := handles.Name(key); ok {
		return raw
	}
	if _, err := h.Lstat(name); !errors.Is(err, os.ErrNotExist) {
		return name
	}
	f, err := h.Open(".")
	if err != nil {
		return name
	}
	defer f.Close()
	names, _ := f.Readdirnames(-1)
	for _, raw := range names {
		if raw != name && norm.NFC.String(raw) == name {
			handles.SetName(key, raw)
			return raw
		}
	}
	return name
}

// Entries implements Provider. The directory is opened when the sequence is
// ranged over and read in batches, so each range starts a fresh enumeration.
func (l *LocalProvider) Entries(ctx context.Context, rel string) (iter.Seq2[Entry, error], error) {
	h, handles, err := l.resolve(rel)
	if err != nil {
		return nil, classify(rel, err)
	}

	return func(yield func(Entry, error) bool) {
		f, err := h.Open(".")
		if err != nil {
			yield(Entry{}, classify(rel, err))
			return
		}
		defer f.Close()

		for {
			if err := ctx.Err(); err != nil {
				yield(Entry{}, err)
				return
			}
			batch, err := f.ReadDir(l.batchSize)
			for _, de := range batch {
				e, ierr := entryOf(h, de)
				if ierr == nil && e.Name != de.Name() {
					handles.SetName(JoinPath(rel, e.Name), de.Name())
				}
				if !yield(e, ierr) {
					return
				}
			}
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(Entry{}, newError(ErrEnumerationFailed, rel, err))
				return
			}
		}
	}, nil
}

// entryOf describes de. An entry that vanished or cannot be described is
// reported as ErrEntrySkipped.
func entryOf(h *os.Root, de os.DirEntry) (Entry, error) {
	info, err := de.Info()
	if err != nil {
		return Entry{}, newError(ErrEntrySkipped, de.Name(), err)
	}
	if info.Mode()&os.ModeSymlink != 0 {
		// Follow links that stay inside the root; broken or escaping links
		// are reported as plain files.
		if target, err := h.Stat(de.Name()); err == nil {
			info = target
		}
	}
	e := Entry{
		Name:    norm.NFC.String(de.Name()),
		IsDir:   info.IsDir(),
		ModTime: info.ModTime(),
	}
	if !e.IsDir {
		e.Size = info.Size()
	}
	return e, nil
}

// ReadFile implements Provider.
func (l *LocalProvider) ReadFile(ctx context.Context, rel string, limit int64) ([]byte, error) {
	if rel == "" {
		return nil, newError(ErrReadFailed, "cannot read directory as file", nil)
	}
	dir := ParentPath(rel)
	h, handles, err := l.resolve(dir)
	if err != nil {
		return nil, classify(rel, err)
	}
	f, err := h.Open(onDisk(h, handles, dir, BaseName(rel)))
	if err != nil {
		return nil, classify(rel, err)
	}
	defer f.Close()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := readLimited(f, limit)
	if err != nil {
		return nil, newError(ErrReadFailed, rel, err)
	}
	return data, nil
}

// Stat implements Provider.
func (l *LocalProvider) Stat(_ context.Context, rel string) (Entry, error) {
	var (
		info os.FileInfo
		err  error
	)
	if rel == "" {
		root, _ := l.current()
		if root == nil {
			return Entry{}, ErrNoAccess
		}
		info, err = root.Stat(".")
	} else {
		dir := ParentPath(rel)
		var (
			h       *os.Root
			handles *HandleCache
		)
		h, handles, err = l.resolve(dir)
		if err == nil {
			info, err = h.Stat(onDisk(h, handles, dir, BaseName(rel)))
		}
	}
	if err != nil {
		return Entry{}, classify(rel, err)
	}
	e := Entry{Name: norm.NFC.String(info.Name()), IsDir: info.IsDir(), ModTime: info.ModTime()}
	if !e.IsDir {
		e.Size = info.Size()
	}
	return e, nil
}

// Close releases the root and every cached handle.
func (l *LocalProvider) Close() error {
	l.mu.Lock()
	root, handles := l.root, l.handles
	l.root, l.handles = nil, nil
	l.mu.Unlock()

	var errs []error
	if handles != nil {
		errs = append(errs, handles.Close())
	}
	if root != nil {
		errs = append(errs, root.Close())
	}
	return errors.Join(errs...)
}

func classify(rel string, err error) error {
	switch {
	case errors.Is(err, ErrNoAccess):
		return err
	case errors.Is(err, os.ErrNotExist):
		return newError(ErrPathNotFound, rel, err)
	case errors.Is(err, os.ErrPermission):
		return newError(ErrAccessDenied, rel, err)
	default:
		return newError(ErrEnumerationFailed, rel, err)
	}
}
