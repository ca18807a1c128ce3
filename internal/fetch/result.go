package fetch

import (
	"fmt"
	"time"

	"github.com/rescale/filequery/internal/models"
	"github.com/rescale/filequery/internal/query"
)

// List is the read-only capability a display list needs.
type List interface {
	Count() int
	ItemAt(i int) (models.FileMetadata, error)
	ItemID(i int) int64
}

// ResultSet is an immutable snapshot of one applied fetch. A nil *ResultSet
// is the absent state: Count is 0 and every index is out of range.
type ResultSet struct {
	generation uint64
	index      int
	label      string
	query      query.Query
	records    []models.FileMetadata
	fetchedAt  time.Time
}

func newResultSet(generation uint64, index int, label string, q query.Query, records []models.FileMetadata) *ResultSet {
	owned := make([]models.FileMetadata, len(records))
	for i, r := range records {
		owned[i] = r.Clone()
	}
	return &ResultSet{
		generation: generation,
		index:      index,
		label:      label,
		query:      q,
		records:    owned,
		fetchedAt:  time.Now(),
	}
}

// Count returns the number of records, 0 for the absent state.
func (r *ResultSet) Count() int {
	if r == nil {
		return 0
	}
	return len(r.records)
}

// ItemAt returns a copy of the i-th record.
func (r *ResultSet) ItemAt(i int) (models.FileMetadata, error) {
	if i < 0 || i >= r.Count() {
		return models.FileMetadata{}, fmt.Errorf("%w: result index %d not in [0, %d)", ErrIndexOutOfRange, i, r.Count())
	}
	return r.records[i].Clone(), nil
}

// ItemID returns the stable per-index identity used by list widgets.
func (r *ResultSet) ItemID(i int) int64 {
	return int64(i)
}

// Records returns a copy of all records in fetch order.
func (r *ResultSet) Records() []models.FileMetadata {
	if r == nil {
		return nil
	}
	out := make([]models.FileMetadata, len(r.records))
	for i, rec := range r.records {
		out[i] = rec.Clone()
	}
	return out
}

// Generation identifies the fetch that produced the snapshot.
func (r *ResultSet) Generation() uint64 {
	if r == nil {
		return 0
	}
	return r.generation
}

// Index is the catalog index the snapshot was fetched for.
func (r *ResultSet) Index() int {
	if r == nil {
		return -1
	}
	return r.index
}

// Label is the catalog label the snapshot was fetched for.
func (r *ResultSet) Label() string {
	if r == nil {
		return ""
	}
	return r.label
}

// Query is the query that produced the snapshot.
func (r *ResultSet) Query() query.Query {
	if r == nil {
		return query.Query{}
	}
	return r.query
}

// FetchedAt is when the snapshot was applied.
func (r *ResultSet) FetchedAt() time.Time {
	if r == nil {
		return time.Time{}
	}
	return r.fetchedAt
}
