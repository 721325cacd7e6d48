package session

import (
	"errors"
	"slices"
	"time"

	"github.com/CageChen/finderhub/internal/fs"
	"github.com/CageChen/finderhub/internal/meta"
	"github.com/CageChen/finderhub/internal/nav"
	"github.com/CageChen/finderhub/internal/view"
)

// Entry is an item together with its derived presentation fields.
type Entry struct {
	fs.Item
	meta.Details
}

// HistoryState is the navigation history as shown by the toolbar.
type HistoryState struct {
	Entries      []string `json:"entries"`
	Index        int      `json:"index"`
	CanGoBack    bool     `json:"canGoBack"`
	CanGoForward bool     `json:"canGoForward"`
}

// ErrorState describes why the current directory shows no items.
type ErrorState struct {
	Kind    string `json:"kind"`
	Path    string `json:"path,omitempty"`
	Message string `json:"message"`
}

// View is the complete render model of a session.
type View struct {
	ID        string        `json:"id"`
	HasAccess bool          `json:"hasAccess"`
	Root      string        `json:"root"`
	Path      string        `json:"path"`
	Items     []Entry       `json:"items"`
	Total     int           `json:"total"`
	Query     string        `json:"query"`
	Sort      view.Sort     `json:"sort"`
	History   HistoryState  `json:"history"`
	Selected  []string      `json:"selected"`
	Columns   nav.ColumnSet `json:"columns"`
	Shortcuts []Shortcut    `json:"shortcuts"`
	Error     *ErrorState   `json:"error,omitempty"`
}

// View projects the current state. now is used for every relative date in
// the result.
func (s *Session) View(now time.Time) View {
	s.mu.Lock()
	defer s.mu.Unlock()

	projected := view.Project(s.items, s.query, s.sort)
	entries := make([]Entry, len(projected))
	for i, it := range projected {
		entries[i] = Entry{Item: it, Details: meta.Describe(it, now)}
	}

	v := View{
		ID:        s.ID,
		HasAccess: s.adapter.HasAccess(),
		Root:      s.adapter.RootPath(),
		Path:      s.history.Current(),
		Items:     entries,
		Total:     len(s.items),
		Query:     s.query,
		Sort:      s.sort,
		History: HistoryState{
			Entries:      s.history.Entries(),
			Index:        s.history.Index(),
			CanGoBack:    s.history.CanGoBack(),
			CanGoForward: s.history.CanGoForward(),
		},
		Selected:  slices.Clone(s.selected),
		Columns:   s.columns,
		Shortcuts: slices.Clone(s.favs),
	}
	if v.Selected == nil {
		v.Selected = []string{}
	}
	if v.Shortcuts == nil {
		v.Shortcuts = []Shortcut{}
	}

	switch {
	case s.accessErr != nil:
		v.Error = errorState(s.accessErr, "")
	case s.listErr != nil:
		v.Error = errorState(s.listErr, s.listPath)
	}
	return v
}

func errorState(err error, path string) *ErrorState {
	return &ErrorState{Kind: ErrorKind(err), Path: path, Message: err.Error()}
}

// ErrorKind names the failure class of err for clients.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, fs.ErrAccessDenied):
		return "accessDenied"
	case errors.Is(err, fs.ErrNoAccess):
		return "noAccess"
	case errors.Is(err, fs.ErrPathNotFound), errors.Is(err, ErrItemNotFound):
		return "pathNotFound"
	case errors.Is(err, fs.ErrReadFailed):
		return "readFailed"
	case errors.Is(err, fs.ErrUnsupported):
		return "unsupported"
	case errors.Is(err, ErrColumnsOutdated):
		return "columnsOutdated"
	default:
		return "enumerationFailed"
	}
}
