package fs

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"

	"github.com/CageChen/finderhub/internal/metrics"
)

// Adapter exposes one Provider through the uniform read-only contract.
// Callers never see which provider backs it. Listing failures are logged
// here and returned as typed results rather than errors.
type Adapter struct {
	provider Provider
	logger   *zap.Logger
	exclude  []string
	now      func() time.Time

	mu    sync.RWMutex
	grant *Grant
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithLogger sets the logger used for swallowed errors.
func WithLogger(l *zap.Logger) Option {
	return func(a *Adapter) { a.logger = l }
}

// WithExclude hides entries whose name or root-relative path matches one of
// the doublestar patterns.
func WithExclude(patterns []string) Option {
	return func(a *Adapter) { a.exclude = append([]string(nil), patterns...) }
}

// WithClock overrides the time source used for missing timestamps.
func WithClock(now func() time.Time) Option {
	return func(a *Adapter) { a.now = now }
}

// NewAdapter wraps p.
func NewAdapter(p Provider, opts ...Option) *Adapter {
	a := &Adapter{
		provider: p,
		logger:   zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.With(zap.String("provider", p.Name()))
	return a
}

// RequestAccess asks the provider for a root grant. A denial is returned to
// the caller as an error wrapping ErrAccessDenied and leaves any earlier
// grant in place.
func (a *Adapter) RequestAccess(ctx context.Context) (Grant, error) {
	g, err := a.provider.RequestAccess(ctx)
	if err != nil {
		a.logger.Warn("access request failed", zap.Error(err))
		if !errors.Is(err, ErrAccessDenied) {
			err = newError(ErrAccessDenied, "request access", err)
		}
		return Grant{}, err
	}
	a.mu.Lock()
	a.grant = &g
	a.mu.Unlock()
	a.logger.Info("access granted", zap.String("root", g.RootPath))
	return g, nil
}

// HasAccess reports whether a root has been granted.
func (a *Adapter) HasAccess() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.grant != nil
}

// RootPath returns the granted root path, or "" before a grant.
func (a *Adapter) RootPath() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.grant == nil {
		return ""
	}
	return a.grant.RootPath
}

func (a *Adapter) relative(path string) (string, error) {
	root := a.RootPath()
	if root == "" {
		return "", ErrNoAccess
	}
	rel, ok := Relative(root, path)
	if !ok {
		return "", newError(ErrPathNotFound, path+" is outside "+root, nil)
	}
	rel, ok = cleanRel(rel)
	if !ok {
		return "", newError(ErrPathNotFound, "invalid path "+path, nil)
	}
	return rel, nil
}

// List returns the items directly under path. It never fails outright: on
// any error the listing carries no items and a non-nil Err.
func (a *Adapter) List(ctx context.Context, path string) Listing {
	start := time.Now()
	items, err := a.list(ctx, path)
	metrics.RecordListing(a.provider.Name(), err, time.Since(start))
	if err != nil {
		a.logger.Warn("listing failed", zap.String("path", path), zap.Error(err))
		return Listing{Path: path, Items: []Item{}, Err: err}
	}
	return Listing{Path: path, Items: items}
}

func (a *Adapter) list(ctx context.Context, path string) ([]Item, error) {
	rel, err := a.relative(path)
	if err != nil {
		return nil, err
	}
	seq, err := a.provider.Entries(ctx, rel)
	if err != nil {
		return nil, err
	}

	now := a.now()
	items := []Item{}
	for e, err := range seq {
		if errors.Is(err, ErrEntrySkipped) {
			a.logger.Warn("entry skipped", zap.String("path", path), zap.Error(err))
			continue
		}
		if err != nil {
			if errors.Is(err, ErrEnumerationFailed) || errors.Is(err, ErrPathNotFound) ||
				errors.Is(err, ErrAccessDenied) || errors.Is(err, context.Canceled) ||
				errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			return nil, newError(ErrEnumerationFailed, path, err)
		}
		if a.excluded(JoinPath(rel, e.Name), e.Name) {
			continue
		}
		items = append(items, a.item(path, e, now))
	}
	return items, nil
}

func (a *Adapter) item(parent string, e Entry, now time.Time) Item {
	it := Item{
		Name:  e.Name,
		Path:  JoinPath(parent, e.Name),
		IsDir: e.IsDir,
	}
	if !e.IsDir {
		size := e.Size
		it.Size = &size
	}
	mod := e.ModTime
	if mod.IsZero() {
		// Keep date sorting total when the provider has no timestamp.
		mod = now
	}
	it.Modified = &mod
	return it
}

func (a *Adapter) excluded(rel, name string) bool {
	for _, pattern := range a.exclude {
		if ok, _ := doublestar.Match(pattern, name); ok {
			return true
		}
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

// Read returns the contents of the file at path.
func (a *Adapter) Read(ctx context.Context, path string) ([]byte, error) {
	return a.ReadLimit(ctx, path, 0)
}

// ReadLimit returns at most limit bytes of the file at path. A limit of zero
// or less reads the whole file.
func (a *Adapter) ReadLimit(ctx context.Context, path string, limit int64) ([]byte, error) {
	rel, err := a.relative(path)
	if err == nil {
		var data []byte
		data, err = a.provider.ReadFile(ctx, rel, limit)
		if err == nil {
			metrics.RecordRead(a.provider.Name(), nil)
			return data, nil
		}
	}
	metrics.RecordRead(a.provider.Name(), err)
	a.logger.Warn("read failed", zap.String("path", path), zap.Error(err))
	if errors.Is(err, ErrPathNotFound) || errors.Is(err, ErrNoAccess) || errors.Is(err, ErrReadFailed) {
		return nil, err
	}
	return nil, newError(ErrReadFailed, path, err)
}

// Stat returns the item at path.
func (a *Adapter) Stat(ctx context.Context, path string) (Item, error) {
	rel, err := a.relative(path)
	if err != nil {
		return Item{}, err
	}
	e, err := a.provider.Stat(ctx, rel)
	if err != nil {
		return Item{}, err
	}
	it := a.item(ParentPath(path), e, a.now())
	if rel == "" {
		it.Name, it.Path = path, path
	} else {
		it.Name = BaseName(path)
	}
	return it, nil
}

// Close releases provider resources.
func (a *Adapter) Close() error {
	return a.provider.Close()
}
