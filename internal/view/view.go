// Package view projects raw directory listings into the ordered sequence
// shown to the user. Projection is a pure function of its inputs.
package view

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/CageChen/finderhub/internal/fs"
	"github.com/CageChen/finderhub/internal/meta"
)

// SortKey selects the field items are ordered by.
type SortKey string

const (
	SortByName SortKey = "name"
	SortByDate SortKey = "date"
	SortBySize SortKey = "size"
	SortByKind SortKey = "kind"
)

// SortOrder is ascending or descending.
type SortOrder string

const (
	Asc  SortOrder = "asc"
	Desc SortOrder = "desc"
)

// ParseSortKey validates s.
func ParseSortKey(s string) (SortKey, error) {
	switch k := SortKey(strings.ToLower(s)); k {
	case SortByName, SortByDate, SortBySize, SortByKind:
		return k, nil
	}
	return "", fmt.Errorf("unknown sort key %q", s)
}

// ParseSortOrder validates s.
func ParseSortOrder(s string) (SortOrder, error) {
	switch o := SortOrder(strings.ToLower(s)); o {
	case Asc, Desc:
		return o, nil
	}
	return "", fmt.Errorf("unknown sort order %q", s)
}

// Sort is the active sort key and order.
type Sort struct {
	Key   SortKey   `json:"key"`
	Order SortOrder `json:"order"`
}

// DefaultSort orders by name ascending.
var DefaultSort = Sort{Key: SortByName, Order: Asc}

// Toggle returns the sort after the user picks key: the same key flips the
// order, a different key starts ascending.
func (s Sort) Toggle(key SortKey) Sort {
	if s.Key == key {
		if s.Order == Asc {
			return Sort{Key: key, Order: Desc}
		}
		return Sort{Key: key, Order: Asc}
	}
	return Sort{Key: key, Order: Asc}
}

// Filter keeps the items whose name contains query, ignoring case. An empty
// query keeps everything. The input is never modified.
func Filter(items []fs.Item, query string) []fs.Item {
	out := make([]fs.Item, 0, len(items))
	q := fold(query)
	for _, it := range items {
		if q == "" || strings.Contains(fold(it.Name), q) {
			out = append(out, it)
		}
	}
	return out
}

func fold(s string) string {
	return strings.ToLower(norm.NFC.String(s))
}

// Project filters items by query and sorts the result. Directories always
// precede files; within each group items are compared by key, ties broken by
// name and then path, and the whole comparison is reversed for Desc.
func Project(items []fs.Item, query string, s Sort) []fs.Item {
	out := Filter(items, query)
	c := newComparator(s)
	slices.SortStableFunc(out, c.compare)
	return out
}

type comparator struct {
	sort     Sort
	collator *collate.Collator
}

func newComparator(s Sort) *comparator {
	if s.Key == "" {
		s.Key = SortByName
	}
	if s.Order == "" {
		s.Order = Asc
	}
	return &comparator{sort: s, collator: collate.New(language.English)}
}

func (c *comparator) compare(a, b fs.Item) int {
	if a.IsDir != b.IsDir {
		if a.IsDir {
			return -1
		}
		return 1
	}

	var r int
	switch c.sort.Key {
	case SortByDate:
		r = cmp.Compare(unixMilli(a), unixMilli(b))
	case SortBySize:
		r = cmp.Compare(sizeOf(a), sizeOf(b))
	case SortByKind:
		r = c.collator.CompareString(meta.Kind(a), meta.Kind(b))
	}
	if r == 0 {
		r = c.collator.CompareString(a.Name, b.Name)
	}
	if r == 0 {
		r = strings.Compare(a.Path, b.Path)
	}
	if c.sort.Order == Desc {
		return -r
	}
	return r
}

func unixMilli(it fs.Item) int64 {
	if it.Modified == nil {
		return 0
	}
	return it.Modified.UnixMilli()
}

func sizeOf(it fs.Item) int64 {
	if it.Size == nil {
		return 0
	}
	return *it.Size
}
