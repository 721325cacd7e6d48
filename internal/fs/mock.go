package fs

import (
	"context"
	"fmt"
	"iter"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

// Node is one entry of a static tree. A node with Dir set (or with any
// children) is a directory.
type Node struct {
	Name     string    `yaml:"name"`
	Dir      bool      `yaml:"dir,omitempty"`
	Size     int64     `yaml:"size,omitempty"`
	Modified time.Time `yaml:"modified,omitempty"`
	Children []*Node   `yaml:"children,omitempty"`
}

func (n *Node) isDir() bool { return n.Dir || len(n.Children) > 0 }

// MockProvider serves a fixed tree from a path-keyed table of pre-built
// entry lists. Listing is a pure lookup; file contents are not available.
type MockProvider struct {
	rootName string
	dirs     map[string][]Entry
	entries  map[string]Entry
}

// NewMockProvider flattens root into lookup tables. Sibling names must be
// unique.
func NewMockProvider(root *Node) (*MockProvider, error) {
	if root == nil || root.Name == "" {
		return nil, fmt.Errorf("mock tree: root must have a name")
	}
	m := &MockProvider{
		rootName: root.Name,
		dirs:     make(map[string][]Entry),
		entries:  make(map[string]Entry),
	}
	m.entries[""] = Entry{Name: root.Name, IsDir: true, ModTime: root.Modified}
	if err := m.flatten("", root); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *MockProvider) flatten(rel string, dir *Node) error {
	list := make([]Entry, 0, len(dir.Children))
	seen := make(map[string]bool, len(dir.Children))
	for _, child := range dir.Children {
		if child.Name == "" {
			return fmt.Errorf("mock tree: unnamed entry under %q", rel)
		}
		if seen[child.Name] {
			return fmt.Errorf("mock tree: duplicate name %q under %q", child.Name, rel)
		}
		seen[child.Name] = true

		e := Entry{Name: child.Name, IsDir: child.isDir(), ModTime: child.Modified}
		if !e.IsDir {
			e.Size = child.Size
		}
		list = append(list, e)

		childRel := JoinPath(rel, child.Name)
		m.entries[childRel] = e
		if e.IsDir {
			if err := m.flatten(childRel, child); err != nil {
				return err
			}
		}
	}
	m.dirs[rel] = list
	return nil
}

// LoadMockTree reads a YAML tree description from path.
func LoadMockTree(path string) (*Node, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var root Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("mock tree %s: %w", path, err)
	}
	return &root, nil
}

// Name implements Provider.
func (m *MockProvider) Name() string { return "mock" }

// RequestAccess implements Provider. The mock tree is always accessible.
func (m *MockProvider) RequestAccess(ctx context.Context) (Grant, error) {
	if err := ctx.Err(); err != nil {
		return Grant{}, err
	}
	return Grant{RootPath: m.rootName}, nil
}

// Entries implements Provider.
func (m *MockProvider) Entries(_ context.Context, rel string) (iter.Seq2[Entry, error], error) {
	list, ok := m.dirs[rel]
	if !ok {
		return nil, newError(ErrPathNotFound, rel, nil)
	}
	return func(yield func(Entry, error) bool) {
		for _, e := range slices.Clone(list) {
			if !yield(e, nil) {
				return
			}
		}
	}, nil
}

// ReadFile implements Provider. The mock tree carries no contents.
func (m *MockProvider) ReadFile(_ context.Context, rel string, _ int64) ([]byte, error) {
	return nil, newError(ErrUnsupported, "mock provider cannot read "+rel, nil)
}

// Stat implements Provider.
func (m *MockProvider) Stat(_ context.Context, rel string) (Entry, error) {
	e, ok := m.entries[rel]
	if !ok {
		return Entry{}, newError(ErrPathNotFound, rel, nil)
	}
	return e, nil
}

// Close implements Provider.
func (m *MockProvider) Close() error { return nil }

// DefaultMockTree returns the demo home folder used when no tree file is
// configured.
func DefaultMockTree() *Node {
	day := func(d int) time.Time {
		return time.Date(2025, time.March, d, 10, 30, 0, 0, time.UTC)
	}
	file := func(name string, size int64, d int) *Node {
		return &Node{Name: name, Size: size, Modified: day(d)}
	}
	dir := func(name string, children ...*Node) *Node {
		return &Node{Name: name, Dir: true, Children: children}
	}
	return dir("home",
		dir("Desktop",
			file("notes.txt", 1204, 3),
			file("screenshot.png", 482113, 4),
		),
		dir("Documents",
			file("Resume.pdf", 88211, 1),
			file("Budget.xlsx", 20480, 2),
			dir("Projects",
				file("README.md", 2311, 5),
				file("main.go", 5120, 6),
			),
		),
		dir("Downloads",
			file("archive.zip", 10485760, 7),
			file("installer.dmg", 73400320, 8),
		),
		dir("Pictures",
			file("Photo.png", 1536, 9),
			file("Vacation.jpg", 2457600, 10),
		),
		dir("Music",
			file("Song.mp3", 4194304, 11),
		),
		dir("Videos"),
		file("todo.md", 640, 12),
	)
}
