package fetch

import (
	"github.com/rescale/filequery/internal/models"
)

// Projection exposes the controller's current results as an indexed list.
// Every call reads the latest snapshot; use Snapshot for a consistent pass.
type Projection struct {
	source interface{ Results() *ResultSet }
}

// Snapshot returns the current result set, nil when absent.
func (p *Projection) Snapshot() *ResultSet {
	return p.source.Results()
}

// Count returns the number of items, 0 when the result set is absent.
func (p *Projection) Count() int {
	return p.Snapshot().Count()
}

// ItemAt returns the i-th record of the current result set.
func (p *Projection) ItemAt(i int) (models.FileMetadata, error) {
	return p.Snapshot().ItemAt(i)
}

// ItemID returns i; items are identified by position.
func (p *Projection) ItemID(i int) int64 {
	return int64(i)
}

var (
	_ List = (*Projection)(nil)
	_ List = (*ResultSet)(nil)
)
