// Package fs provides read-only directory access over interchangeable providers:
// a permission-scoped local directory, a git ref, or a static in-memory tree.
package fs

import (
	"context"
	"io"
	"iter"
	"strings"
	"time"
)

// Entry is a raw directory entry as reported by a provider.
type Entry struct {
	Name    string
	IsDir   bool
	Size    int64
	ModTime time.Time
}

// Item is one normalized file system entry. Path is always the parent's path
// joined with Name by "/".
type Item struct {
	Name     string     `json:"name"`
	Path     string     `json:"path"`
	IsDir    bool       `json:"isDirectory"`
	Size     *int64     `json:"size,omitempty"`
	Modified *time.Time `json:"modified,omitempty"`
}

// Grant is the result of a successful access request.
type Grant struct {
	RootPath string `json:"rootPath"`
}

// Listing is the typed result of listing a directory. An empty Items with a
// nil Err is an empty directory; a non-nil Err means the directory could not
// be read.
type Listing struct {
	Path  string
	Items []Item
	Err   error
}

// OK reports whether the listing succeeded.
func (l Listing) OK() bool { return l.Err == nil }

// Provider abstracts a backing store. Paths are relative to the granted root,
// slash separated, with "" meaning the root itself.
type Provider interface {
	// Name identifies the provider kind for logs and metrics.
	Name() string
	RequestAccess(ctx context.Context) (Grant, error)
	// Entries returns a fresh lazy sequence over the directory's entries.
	Entries(ctx context.Context, rel string) (iter.Seq2[Entry, error], error)
	// ReadFile returns at most limit bytes of the file. A limit of zero or
	// less reads the whole file.
	ReadFile(ctx context.Context, rel string, limit int64) ([]byte, error)
	Stat(ctx context.Context, rel string) (Entry, error)
	Close() error
}

// readLimited reads r, stopping after limit bytes when limit is positive.
func readLimited(r io.Reader, limit int64) ([]byte, error) {
	if limit > 0 {
		r = io.LimitReader(r, limit)
	}
	return io.ReadAll(r)
}

// JoinPath joins a parent path and a child name.
func JoinPath(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "/" + name
}

// ParentPath returns the path without its last segment.
func ParentPath(path string) string {
	i := strings.LastIndexByte(path, '/')
	if i < 0 {
		return ""
	}
	return path[:i]
}

// BaseName returns the last segment of a slash separated path.
func BaseName(path string) string {
	return path[strings.LastIndexByte(path, '/')+1:]
}

// Relative strips root from path. It reports false when path is not root or
// a descendant of it.
func Relative(root, path string) (string, bool) {
	if path == root {
		return "", true
	}
	if root == "" {
		return path, true
	}
	rel, ok := strings.CutPrefix(path, root+"/")
	if !ok {
		return "", false
	}
	return rel, true
}

// Segments splits a relative path into its non-empty segments.
func Segments(rel string) []string {
	parts := strings.Split(rel, "/")
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func cleanRel(rel string) (string, bool) {
	segs := Segments(rel)
	for _, s := range segs {
		if s == "." || s == ".." {
			return "", false
		}
	}
	return strings.Join(segs, "/"), true
}
