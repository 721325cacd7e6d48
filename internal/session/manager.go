package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/CageChen/finderhub/internal/fs"
	"github.com/CageChen/finderhub/internal/metrics"
)

// ErrNotFound is returned for an unknown session id.
var ErrNotFound = errors.New("session not found")

// AdapterFactory builds a fresh backing store adapter for a new session.
type AdapterFactory func() (*fs.Adapter, error)

// Manager owns every open session. With an idle timeout a background sweep
// closes sessions nobody has used for that long.
type Manager struct {
	factory    AdapterFactory
	logger     *zap.Logger
	shortcuts  []ShortcutDef
	autoAccess bool
	idle       time.Duration
	now        func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithLogger sets the logger handed to every session.
func WithLogger(l *zap.Logger) ManagerOption {
	return func(m *Manager) { m.logger = l }
}

// WithShortcuts replaces the default sidebar entries.
func WithShortcuts(defs []ShortcutDef) ManagerOption {
	return func(m *Manager) { m.shortcuts = defs }
}

// WithAutoAccess makes Create request root access right away.
func WithAutoAccess(on bool) ManagerOption {
	return func(m *Manager) { m.autoAccess = on }
}

// WithIdleTimeout closes sessions that have not been used for d. Zero
// disables eviction.
func WithIdleTimeout(d time.Duration) ManagerOption {
	return func(m *Manager) { m.idle = d }
}

// NewManager creates a Manager that builds adapters with factory.
func NewManager(factory AdapterFactory, opts ...ManagerOption) *Manager {
	m := &Manager{
		factory:   factory,
		logger:    zap.NewNop(),
		shortcuts: DefaultShortcuts,
		now:       time.Now,
		sessions:  make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.idle > 0 {
		m.stop = make(chan struct{})
		m.done = make(chan struct{})
		go m.sweep(max(m.idle/4, 10*time.Millisecond))
	}
	return m
}

func (m *Manager) sweep(every time.Duration) {
	defer close(m.done)
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.EvictIdle(m.now())
		}
	}
}

// EvictIdle closes every session last used before now minus the idle
// timeout and returns their ids.
func (m *Manager) EvictIdle(now time.Time) []string {
	if m.idle <= 0 {
		return nil
	}
	cutoff := now.Add(-m.idle)

	m.mu.Lock()
	var idle []*Session
	for id, s := range m.sessions {
		if s.Touched().Before(cutoff) {
			idle = append(idle, s)
			delete(m.sessions, id)
		}
	}
	n := len(m.sessions)
	m.mu.Unlock()
	if len(idle) == 0 {
		return nil
	}
	metrics.SetSessionsActive(n)

	ids := make([]string, 0, len(idle))
	for _, s := range idle {
		if err := s.Close(); err != nil {
			m.logger.Warn("close idle session", zap.String("session", s.ID), zap.Error(err))
		}
		m.logger.Info("session evicted", zap.String("session", s.ID))
		ids = append(ids, s.ID)
	}
	return ids
}

// Create opens a new session. With auto access enabled a failed access
// request is recorded in the session's view, not returned.
func (m *Manager) Create(ctx context.Context) (*Session, error) {
	a, err := m.factory()
	if err != nil {
		return nil, err
	}
	s := newSession(uuid.NewString(), a, m.logger, m.shortcuts, m.now)

	m.mu.Lock()
	m.sessions[s.ID] = s
	n := len(m.sessions)
	m.mu.Unlock()
	metrics.SetSessionsActive(n)
	m.logger.Info("session created", zap.String("session", s.ID))

	if m.autoAccess {
		_ = s.RequestAccess(ctx)
	}
	return s, nil
}

// Get returns the session with id and marks it as used.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	s.touch()
	return s, nil
}

// Delete closes and forgets the session with id.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	n := len(m.sessions)
	m.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	metrics.SetSessionsActive(n)
	m.logger.Info("session closed", zap.String("session", id))
	return s.Close()
}

// Len returns the number of open sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Each calls fn for every open session.
func (m *Manager) Each(fn func(*Session)) {
	m.mu.RLock()
	list := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		list = append(list, s)
	}
	m.mu.RUnlock()
	for _, s := range list {
		fn(s)
	}
}

// Invalidate refreshes every session showing the directory rel, given
// relative to the root. It returns the ids of the refreshed sessions.
func (m *Manager) Invalidate(ctx context.Context, rel string) []string {
	var ids []string
	m.Each(func(s *Session) {
		root := s.adapter.RootPath()
		if root == "" {
			return
		}
		dir := root
		for _, seg := range fs.Segments(rel) {
			dir = fs.JoinPath(dir, seg)
		}
		if !s.Showing(dir) {
			return
		}
		if err := s.Refresh(ctx); err != nil {
			m.logger.Warn("refresh failed", zap.String("session", s.ID), zap.Error(err))
			return
		}
		ids = append(ids, s.ID)
	})
	return ids
}

// Close stops the idle sweep and closes every session.
func (m *Manager) Close() error {
	m.closeOnce.Do(func() {
		if m.stop != nil {
			close(m.stop)
			<-m.done
		}
	})

	m.mu.Lock()
	list := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()
	metrics.SetSessionsActive(0)

	var errs []error
	for _, s := range list {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}
