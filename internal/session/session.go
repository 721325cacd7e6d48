// Package session keeps the per-tab browser state and recomputes the view
// model whenever one of its inputs changes.
package session

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/CageChen/finderhub/internal/fs"
	"github.com/CageChen/finderhub/internal/meta"
	"github.com/CageChen/finderhub/internal/metrics"
	"github.com/CageChen/finderhub/internal/nav"
	"github.com/CageChen/finderhub/internal/view"
)

// ErrItemNotFound is returned when an operation names an item that is not in
// the listing it refers to.
var ErrItemNotFound = errors.New("item not found")

// ErrColumnsOutdated is returned by SelectColumnItem while the columns still
// belong to a directory the session has navigated away from.
var ErrColumnsOutdated = errors.New("columns are being rebuilt")

// Session is the state of one browser tab. All methods are safe for
// concurrent use. Listings run without the lock held; every load is tagged
// with a token and a completion whose token is no longer the latest is
// dropped, so the view always reflects the most recent request.
type Session struct {
	ID string

	adapter   *fs.Adapter
	logger    *zap.Logger
	shortcuts []ShortcutDef
	now       func() time.Time

	mu        sync.Mutex
	history   *nav.History
	items     []fs.Item
	listPath  string
	listErr   error
	accessErr error
	query     string
	sort      view.Sort
	selected  []string
	columns   nav.ColumnSet
	colsFor   string
	favs      []Shortcut
	touched   time.Time

	itemsToken   uint64
	columnsToken uint64
}

func newSession(id string, adapter *fs.Adapter, logger *zap.Logger, shortcuts []ShortcutDef, now func() time.Time) *Session {
	return &Session{
		ID:        id,
		adapter:   adapter,
		logger:    logger.With(zap.String("session", id)),
		shortcuts: shortcuts,
		now:       now,
		history:   nav.NewHistory(""),
		sort:      view.DefaultSort,
		columns:   nav.ColumnSet{Selected: map[int]string{}},
		touched:   now(),
	}
}

// loadTicket identifies one in-flight load.
type loadTicket struct {
	root, path     string
	items, columns uint64
}

// beginLoadLocked issues fresh tokens for a load of path. s.mu must be held.
func (s *Session) beginLoadLocked(path string) loadTicket {
	s.itemsToken++
	s.columnsToken++
	s.touched = s.now()
	return loadTicket{
		root:    s.adapter.RootPath(),
		path:    path,
		items:   s.itemsToken,
		columns: s.columnsToken,
	}
}

// fetch lists the ticket's directory and rebuilds the columns concurrently.
func (s *Session) fetch(ctx context.Context, t loadTicket) {
	var g errgroup.Group
	g.Go(func() error {
		s.applyListing(t.items, s.adapter.List(ctx, t.path))
		return nil
	})
	g.Go(func() error {
		s.applyColumns(t.columns, t.path, nav.BuildColumns(ctx, t.root, t.path, s.adapter))
		return nil
	})
	_ = g.Wait()
}

func (s *Session) applyListing(token uint64, l fs.Listing) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if token != s.itemsToken {
		metrics.RecordStaleResult("items")
		s.logger.Debug("dropping stale listing", zap.String("path", l.Path))
		return
	}
	s.items = l.Items
	s.listPath = l.Path
	s.listErr = l.Err
}

// applyColumns installs cs, built while the session showed dir.
func (s *Session) applyColumns(token uint64, dir string, cs nav.ColumnSet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if token != s.columnsToken {
		metrics.RecordStaleResult("columns")
		s.logger.Debug("dropping stale columns", zap.Int("columns", cs.Len()))
		return
	}
	s.columns = cs
	s.colsFor = dir
}

// RequestAccess asks the backing store for a root. On success the history is
// reset to the root and the root is listed.
func (s *Session) RequestAccess(ctx context.Context) error {
	g, err := s.adapter.RequestAccess(ctx)
	if err != nil {
		s.mu.Lock()
		s.accessErr = err
		s.mu.Unlock()
		return err
	}
	favs := resolveShortcuts(ctx, s.adapter, g.RootPath, s.shortcuts)

	s.mu.Lock()
	s.accessErr = nil
	s.favs = favs
	s.history.Reset(g.RootPath)
	s.selected = nil
	s.items = nil
	s.listErr = nil
	t := s.beginLoadLocked(g.RootPath)
	s.mu.Unlock()

	s.logger.Info("root granted", zap.String("root", g.RootPath))
	s.fetch(ctx, t)
	return nil
}

// HasAccess reports whether a root has been granted.
func (s *Session) HasAccess() bool {
	return s.adapter.HasAccess()
}

// Navigate makes path the current directory. Forward history is discarded
// and the selection cleared. Navigating to the current path does nothing.
func (s *Session) Navigate(ctx context.Context, path string) error {
	root := s.adapter.RootPath()
	if root == "" {
		return fs.ErrNoAccess
	}
	if _, ok := fs.Relative(root, path); !ok {
		return fmt.Errorf("navigate to %s: %w", path, fs.ErrPathNotFound)
	}

	s.mu.Lock()
	if !s.history.Navigate(path) {
		s.mu.Unlock()
		return nil
	}
	s.selected = nil
	t := s.beginLoadLocked(path)
	s.mu.Unlock()

	s.logger.Debug("navigate", zap.String("path", path))
	s.fetch(ctx, t)
	return nil
}

// Back moves to the previous history entry. It reports whether it moved.
func (s *Session) Back(ctx context.Context) bool {
	return s.step(ctx, (*nav.History).Back)
}

// Forward moves to the next history entry. It reports whether it moved.
func (s *Session) Forward(ctx context.Context) bool {
	return s.step(ctx, (*nav.History).Forward)
}

func (s *Session) step(ctx context.Context, move func(*nav.History) bool) bool {
	s.mu.Lock()
	if !move(s.history) {
		s.mu.Unlock()
		return false
	}
	s.selected = nil
	t := s.beginLoadLocked(s.history.Current())
	s.mu.Unlock()

	s.fetch(ctx, t)
	return true
}

// Refresh lists the current directory again. The selection is kept.
func (s *Session) Refresh(ctx context.Context) error {
	s.mu.Lock()
	cur := s.history.Current()
	if cur == "" {
		s.mu.Unlock()
		return fs.ErrNoAccess
	}
	t := s.beginLoadLocked(cur)
	s.mu.Unlock()

	s.fetch(ctx, t)
	return nil
}

// Showing reports whether dir is the current directory or one of the
// directories listed as a column.
func (s *Session) Showing(dir string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.Current() == dir || slices.Contains(s.columns.Paths, dir)
}

// SetSearchQuery sets the name filter.
func (s *Session) SetSearchQuery(q string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.query = q
}

// SetSort applies a sort key pick: the same key flips the order, a new key
// starts ascending.
func (s *Session) SetSort(key view.SortKey) view.Sort {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sort = s.sort.Toggle(key)
	return s.sort
}

// SelectItem selects path. With multi it toggles path in the selection;
// otherwise path becomes the only selected item.
func (s *Session) SelectItem(path string, multi bool) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !multi {
		s.selected = []string{path}
		return slices.Clone(s.selected)
	}
	if i := slices.Index(s.selected, path); i >= 0 {
		s.selected = slices.Delete(s.selected, i, i+1)
	} else {
		s.selected = append(s.selected, path)
	}
	return slices.Clone(s.selected)
}

// ClearSelection empties the selection.
func (s *Session) ClearSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected = nil
}

// SelectColumnItem selects the item at path in column columnIndex. Columns to
// its right are replaced by the item's listing when it is a directory. The
// history is not touched. Selection is refused while a navigation is still
// rebuilding the columns.
func (s *Session) SelectColumnItem(ctx context.Context, path string, columnIndex int) error {
	s.mu.Lock()
	cs, dir := s.columns, s.colsFor
	if dir != s.history.Current() {
		s.mu.Unlock()
		return fmt.Errorf("select %s: columns show %q, not %q: %w", path, dir, s.history.Current(), ErrColumnsOutdated)
	}
	if columnIndex < 0 || columnIndex >= cs.Len() {
		s.mu.Unlock()
		return fmt.Errorf("column %d: %w", columnIndex, ErrItemNotFound)
	}
	i := slices.IndexFunc(cs.Columns[columnIndex], func(it fs.Item) bool { return it.Path == path })
	if i < 0 {
		s.mu.Unlock()
		return fmt.Errorf("%s in column %d: %w", path, columnIndex, ErrItemNotFound)
	}
	item := cs.Columns[columnIndex][i]
	s.columnsToken++
	token := s.columnsToken
	s.mu.Unlock()

	s.applyColumns(token, dir, cs.Select(ctx, item, columnIndex, s.adapter))
	return nil
}

// OpenResult describes what Open did.
type OpenResult struct {
	Navigated bool         `json:"navigated"`
	Item      fs.Item      `json:"item"`
	Details   meta.Details `json:"details"`
}

// Open opens path: a directory is navigated to, a file is described so the
// caller can preview or download it.
func (s *Session) Open(ctx context.Context, path string) (OpenResult, error) {
	item, err := s.adapter.Stat(ctx, path)
	if err != nil {
		return OpenResult{}, err
	}
	res := OpenResult{Item: item, Details: meta.Describe(item, time.Now())}
	if item.IsDir {
		if err := s.Navigate(ctx, item.Path); err != nil {
			return OpenResult{}, err
		}
		res.Navigated = true
	}
	return res, nil
}

// Read returns the content of the file at path.
func (s *Session) Read(ctx context.Context, path string) ([]byte, error) {
	return s.adapter.Read(ctx, path)
}

// ReadLimit returns at most limit bytes of the file at path.
func (s *Session) ReadLimit(ctx context.Context, path string, limit int64) ([]byte, error) {
	return s.adapter.ReadLimit(ctx, path, limit)
}

// Stat returns the item at path.
func (s *Session) Stat(ctx context.Context, path string) (fs.Item, error) {
	return s.adapter.Stat(ctx, path)
}

// touch marks the session as used.
func (s *Session) touch() {
	s.mu.Lock()
	s.touched = s.now()
	s.mu.Unlock()
}

// Touched returns when the session was last used.
func (s *Session) Touched() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.touched
}

// Close releases the session's backing store.
func (s *Session) Close() error {
	return s.adapter.Close()
}
