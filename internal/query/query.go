package query

import (
	"strings"

	"github.com/rescale/filequery/internal/models"
)

// Query is one complete search request: an ordered list of top-level filters
// combined with logical AND. The order only makes rendering deterministic; it
// carries no priority. A Query never changes after Build returns it.
type Query struct {
	filters []Filter
}

// Filters returns a copy of the top-level filters.
func (q Query) Filters() []Filter {
	out := make([]Filter, len(q.filters))
	copy(out, q.filters)
	return out
}

// Len returns the number of top-level filters.
func (q Query) Len() int { return len(q.filters) }

// Matches reports whether rec satisfies every top-level filter.
// An empty query matches everything.
func (q Query) Matches(rec models.FileMetadata) bool {
	for _, f := range q.filters {
		if !f.Matches(rec) {
			return false
		}
	}
	return true
}

// Filter folds the top-level filters into a single And tree.
// It returns false for an empty query.
func (q Query) Filter() (Filter, bool) {
	if len(q.filters) == 0 {
		return Filter{}, false
	}
	out := q.filters[0]
	for _, f := range q.filters[1:] {
		out = And(out, f)
	}
	return out, true
}

// Equal reports whether both queries hold structurally equal filters in the same order.
func (q Query) Equal(o Query) bool {
	if len(q.filters) != len(o.filters) {
		return false
	}
	for i := range q.filters {
		if !q.filters[i].Equal(o.filters[i]) {
			return false
		}
	}
	return true
}

// String renders the query in the remote store's syntax. The empty query
// renders as the empty string.
func (q Query) String() string {
	parts := make([]string, len(q.filters))
	for i, f := range q.filters {
		parts[i] = f.String()
	}
	return strings.Join(parts, " and ")
}

// Fields returns the distinct fields referenced by the query's filters in
// first-seen order.
func (q Query) Fields() []Field {
	var out []Field
	seen := make(map[Field]bool)
	for _, f := range q.filters {
		for _, field := range f.Fields() {
			if !seen[field] {
				seen[field] = true
				out = append(out, field)
			}
		}
	}
	return out
}

// Builder accumulates filters for a Query.
type Builder struct {
	filters []Filter
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// AddFilters appends filters to the builder.
func (b *Builder) AddFilters(filters ...Filter) *Builder {
	b.filters = append(b.filters, filters...)
	return b
}

// Build returns a Query holding the filters added so far. The builder stays
// usable and later additions do not affect queries already built.
func (b *Builder) Build() Query {
	filters := make([]Filter, len(b.filters))
	copy(filters, b.filters)
	return Query{filters: filters}
}
