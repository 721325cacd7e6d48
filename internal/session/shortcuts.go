package session

import (
	"context"

	"github.com/CageChen/finderhub/internal/fs"
)

// ShortcutDef is a sidebar entry relative to the root. An empty Path points
// at the root itself.
type ShortcutDef struct {
	Name    string `yaml:"name"`
	Path    string `yaml:"path"`
	Section string `yaml:"section"`
}

// Shortcut is a resolved sidebar entry.
type Shortcut struct {
	Name    string `json:"name"`
	Path    string `json:"path"`
	Section string `json:"section"`
}

// DefaultShortcuts are the sidebar entries shown when none are configured.
var DefaultShortcuts = []ShortcutDef{
	{Name: "Desktop", Path: "Desktop", Section: "favorites"},
	{Name: "Documents", Path: "Documents", Section: "favorites"},
	{Name: "Downloads", Path: "Downloads", Section: "favorites"},
	{Name: "Projects", Path: "Projects", Section: "favorites"},
	{Name: "Home", Path: "", Section: "locations"},
	{Name: "Pictures", Path: "Pictures", Section: "media"},
	{Name: "Music", Path: "Music", Section: "media"},
	{Name: "Videos", Path: "Videos", Section: "media"},
}

// resolveShortcuts keeps the definitions that name an existing directory
// under root.
func resolveShortcuts(ctx context.Context, a *fs.Adapter, root string, defs []ShortcutDef) []Shortcut {
	out := []Shortcut{}
	for _, d := range defs {
		path := root
		for _, seg := range fs.Segments(d.Path) {
			path = fs.JoinPath(path, seg)
		}
		it, err := a.Stat(ctx, path)
		if err != nil || !it.IsDir {
			continue
		}
		out = append(out, Shortcut{Name: d.Name, Path: path, Section: d.Section})
	}
	return out
}
