package nav

import (
	"context"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/CageChen/finderhub/internal/fs"
)

// maxParallelLevels bounds how many directory levels are listed at once.
const maxParallelLevels = 4

// Lister lists one directory. *fs.Adapter satisfies it.
type Lister interface {
	List(ctx context.Context, path string) fs.Listing
}

// ColumnSet is the column projection of a path: one listing per directory
// level from the root down. Column i lists Paths[i], and Selected[i] is the
// path highlighted in column i. A ColumnSet is a value; every change
// produces a new one.
type ColumnSet struct {
	Columns  [][]fs.Item    `json:"columns"`
	Paths    []string       `json:"paths"`
	Selected map[int]string `json:"selected"`
}

// Len returns the number of columns.
func (cs ColumnSet) Len() int { return len(cs.Columns) }

// Chain returns root followed by every ancestor of current below root, ending
// with current. It returns just root when current is not under root.
func Chain(root, current string) []string {
	chain := []string{root}
	rel, ok := fs.Relative(root, current)
	if !ok {
		return chain
	}
	for _, seg := range fs.Segments(rel) {
		chain = append(chain, fs.JoinPath(chain[len(chain)-1], seg))
	}
	return chain
}

// BuildColumns lists every level from root down to current. Column 0 is
// always the root listing. For each deeper level the path is first marked
// selected in the column above, then listed as the next column. Assembly
// stops at the first level whose listing is empty or failed, so a path
// n levels below root yields n+1 columns only when every level on the way
// has entries.
func BuildColumns(ctx context.Context, root, current string, lister Lister) ColumnSet {
	cs := ColumnSet{Selected: map[int]string{}}
	if root == "" {
		return cs
	}

	chain := Chain(root, current)
	listings := make([]fs.Listing, len(chain))
	var g errgroup.Group
	g.SetLimit(maxParallelLevels)
	for i, p := range chain {
		g.Go(func() error {
			listings[i] = lister.List(ctx, p)
			return nil
		})
	}
	_ = g.Wait()

	cs.Columns = append(cs.Columns, listings[0].Items)
	cs.Paths = append(cs.Paths, chain[0])
	for i := 1; i < len(chain); i++ {
		cs.Selected[i-1] = chain[i]
		l := listings[i]
		if !l.OK() || len(l.Items) == 0 {
			break
		}
		cs.Columns = append(cs.Columns, l.Items)
		cs.Paths = append(cs.Paths, chain[i])
	}
	return cs
}

// Select marks item as selected in column columnIndex, drops every column to
// its right and, when item is a directory with entries, appends its listing.
// History is not touched. An out of range index returns cs unchanged.
func (cs ColumnSet) Select(ctx context.Context, item fs.Item, columnIndex int, lister Lister) ColumnSet {
	next, ok := cs.Truncate(columnIndex, item.Path)
	if !ok || !item.IsDir {
		return next
	}
	return next.Append(lister.List(ctx, item.Path))
}

// Truncate keeps columns 0..columnIndex and marks path selected in the last
// one. It reports false, returning cs, when columnIndex is out of range.
func (cs ColumnSet) Truncate(columnIndex int, path string) (ColumnSet, bool) {
	if columnIndex < 0 || columnIndex >= len(cs.Columns) {
		return cs, false
	}
	next := ColumnSet{
		Columns:  slices.Clone(cs.Columns[:columnIndex+1]),
		Paths:    slices.Clone(cs.Paths[:columnIndex+1]),
		Selected: make(map[int]string, columnIndex+1),
	}
	for k, v := range cs.Selected {
		if k < columnIndex {
			next.Selected[k] = v
		}
	}
	next.Selected[columnIndex] = path
	return next, true
}

// Append adds l as the rightmost column if it succeeded and has entries.
func (cs ColumnSet) Append(l fs.Listing) ColumnSet {
	if !l.OK() || len(l.Items) == 0 {
		return cs
	}
	cs.Columns = append(slices.Clone(cs.Columns), l.Items)
	cs.Paths = append(slices.Clone(cs.Paths), l.Path)
	return cs
}
