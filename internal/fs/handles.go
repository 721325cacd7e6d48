package fs

import (
	"errors"
	"os"
	"sync"

	"github.com/CageChen/finderhub/internal/metrics"
)

// DefaultHandleLimit is the number of directory handles a cache keeps open.
const DefaultHandleLimit = 256

type cachedHandle struct {
	root *os.Root
	used uint64
}

// HandleCache memoizes resolved directory handles by root-relative path.
// Concurrent resolves of the same path are not serialized: the later Put
// replaces the earlier handle.
//
// Replaced and evicted handles are retired rather than closed, because a
// listing may still be reading through them. Retired handles are closed by
// Close, or once twice the limit of newer handles has been retired after them.
type HandleCache struct {
	mu      sync.Mutex
	limit   int
	clock   uint64
	handles map[string]*cachedHandle
	retired []*os.Root
	names   map[string]string
}

// NewHandleCache creates an empty cache holding at most limit handles.
// A limit of zero or less means DefaultHandleLimit.
func NewHandleCache(limit int) *HandleCache {
	if limit <= 0 {
		limit = DefaultHandleLimit
	}
	return &HandleCache{
		limit:   limit,
		handles: make(map[string]*cachedHandle),
		names:   make(map[string]string),
	}
}

// Get returns the cached handle for path.
func (c *HandleCache) Get(path string) (*os.Root, bool) {
	c.mu.Lock()
	ch, ok := c.handles[path]
	if ok {
		c.clock++
		ch.used = c.clock
	}
	c.mu.Unlock()
	metrics.RecordHandleLookup(ok)
	if !ok {
		return nil, false
	}
	return ch.root, true
}

// Put stores h for path, replacing any earlier handle. When the cache is
// full the least recently used handle is evicted.
func (c *HandleCache) Put(path string, h *os.Root) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clock++
	if old, ok := c.handles[path]; ok {
		if old.root != h {
			c.retireLocked(old.root)
		}
		old.root, old.used = h, c.clock
		return
	}
	c.handles[path] = &cachedHandle{root: h, used: c.clock}

	for len(c.handles) > c.limit {
		victim, oldest := "", c.clock
		for p, ch := range c.handles {
			if p != path && ch.used <= oldest {
				victim, oldest = p, ch.used
			}
		}
		c.retireLocked(c.handles[victim].root)
		delete(c.handles, victim)
	}
}

func (c *HandleCache) retireLocked(roots ...*os.Root) {
	c.retired = append(c.retired, roots...)
	if over := len(c.retired) - 2*c.limit; over > 0 {
		for _, h := range c.retired[:over] {
			_ = h.Close()
		}
		c.retired = append(c.retired[:0], c.retired[over:]...)
	}
}

// Adopt retires every handle of prev, plus root, into c. prev is left empty.
func (c *HandleCache) Adopt(prev *HandleCache, root *os.Root) {
	var roots []*os.Root
	if prev != nil {
		prev.mu.Lock()
		for _, ch := range prev.handles {
			roots = append(roots, ch.root)
		}
		roots = append(roots, prev.retired...)
		prev.handles = make(map[string]*cachedHandle)
		prev.retired = nil
		prev.mu.Unlock()
	}
	if root != nil {
		roots = append(roots, root)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.retireLocked(roots...)
}

// Name returns the on-disk spelling recorded for the normalized path.
func (c *HandleCache) Name(path string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.names[path]
	return raw, ok
}

// SetName records raw as the on-disk spelling of the last segment of path.
func (c *HandleCache) SetName(path, raw string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.names[path] = raw
}

// Len returns the number of cached paths.
func (c *HandleCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.handles)
}

// Retired returns the number of handles waiting to be closed.
func (c *HandleCache) Retired() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.retired)
}

// Close closes every handle the cache still holds.
func (c *HandleCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var errs []error
	for _, ch := range c.handles {
		errs = append(errs, ch.root.Close())
	}
	for _, h := range c.retired {
		errs = append(errs, h.Close())
	}
	c.handles = make(map[string]*cachedHandle)
	c.retired = nil
	return errors.Join(errs...)
}
