// Package nav keeps back/forward navigation history and derives the column
// (Miller browser) projection of the current path.
package nav

import "slices"

// History is a linear undo/redo list of visited paths. The zero value is an
// empty history. History is not safe for concurrent use.
type History struct {
	entries []string
	index   int
}

// NewHistory returns a history seeded with root, or an empty history when
// root is "".
func NewHistory(root string) *History {
	h := &History{}
	h.Reset(root)
	return h
}

// Reset discards all entries and seeds the history with root.
func (h *History) Reset(root string) {
	h.entries = h.entries[:0]
	h.index = 0
	if root != "" {
		h.entries = append(h.entries, root)
	}
}

// Navigate makes path current. Any forward entries are discarded before path
// is appended. Navigating to the current path does nothing and returns false.
func (h *History) Navigate(path string) bool {
	if len(h.entries) > 0 && h.entries[h.index] == path {
		return false
	}
	if len(h.entries) > 0 {
		h.entries = h.entries[:h.index+1]
	}
	h.entries = append(h.entries, path)
	h.index = len(h.entries) - 1
	return true
}

// Back moves one entry back. It returns false at the first entry.
func (h *History) Back() bool {
	if !h.CanGoBack() {
		return false
	}
	h.index--
	return true
}

// Forward moves one entry forward. It returns false at the last entry.
func (h *History) Forward() bool {
	if !h.CanGoForward() {
		return false
	}
	h.index++
	return true
}

// CanGoBack reports whether Back would move.
func (h *History) CanGoBack() bool { return h.index > 0 }

// CanGoForward reports whether Forward would move.
func (h *History) CanGoForward() bool { return h.index < len(h.entries)-1 }

// Current returns the current path, or "" for an empty history.
func (h *History) Current() string {
	if len(h.entries) == 0 {
		return ""
	}
	return h.entries[h.index]
}

// Index returns the position of the current entry.
func (h *History) Index() int { return h.index }

// Len returns the number of entries.
func (h *History) Len() int { return len(h.entries) }

// Entries returns a copy of the visited paths.
func (h *History) Entries() []string { return slices.Clone(h.entries) }
