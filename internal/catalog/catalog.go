// Package catalog holds the fixed, ordered list of queries a user can pick from.
package catalog

import (
	"errors"
	"fmt"

	"github.com/rescale/filequery/internal/query"
)

// ErrIndexOutOfRange is returned when an index falls outside [0, Count()).
var ErrIndexOutOfRange = errors.New("index out of range")

// Entry pairs a display label with the query it runs.
type Entry struct {
	Label string
	Query query.Query
}

// Catalog is a read-only, ordered list of entries. It is built once at start-up
// and never mutated afterwards, so it is safe for concurrent use.
type Catalog struct {
	entries []Entry
}

// New creates a catalog holding a copy of entries.
func New(entries ...Entry) *Catalog {
	c := &Catalog{entries: make([]Entry, len(entries))}
	copy(c.entries, entries)
	return c
}

// Count returns the number of entries.
func (c *Catalog) Count() int {
	return len(c.entries)
}

// Entry returns the entry at index i.
func (c *Catalog) Entry(i int) (Entry, error) {
	if i < 0 || i >= len(c.entries) {
		return Entry{}, fmt.Errorf("%w: catalog index %d not in [0, %d)", ErrIndexOutOfRange, i, len(c.entries))
	}
	return c.entries[i], nil
}

// Labels returns the display labels in catalog order.
func (c *Catalog) Labels() []string {
	labels := make([]string, len(c.entries))
	for i, e := range c.entries {
		labels[i] = e.Label
	}
	return labels
}

// Default returns the built-in catalog of sample queries.
func Default() *Catalog {
	build := func(filters ...query.Filter) query.Query {
		return query.NewBuilder().AddFilters(filters...).Build()
	}

	return New(
		Entry{
			Label: "Not shared with me",
			Query: build(query.Not(query.SharedWithMe())),
		},
		Entry{
			Label: "Shared with me",
			Query: build(query.SharedWithMe()),
		},
		Entry{
			Label: "Plain text files",
			Query: build(query.MustEq(query.FieldMimeType, "text/plain")),
		},
		Entry{
			Label: "Title contains 'a'",
			Query: build(query.MustContains(query.FieldTitle, "a")),
		},
		Entry{
			Label: "Starred plain text files",
			Query: build(query.And(
				query.MustEq(query.FieldMimeType, "text/plain"),
				query.MustEq(query.FieldStarred, "true"),
			)),
		},
		Entry{
			Label: "In root folder or plain text",
			Query: build(query.Or(
				query.MustIn(query.FieldParents, "root"),
				query.MustEq(query.FieldMimeType, "text/plain"),
			)),
		},
	)
}
