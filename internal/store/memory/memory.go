// Package memory is an in-process file-metadata store. It backs tests, demos
// and offline use from a YAML records file.
package memory

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rescale/filequery/internal/models"
	"github.com/rescale/filequery/internal/query"
	"github.com/rescale/filequery/internal/store"
)

// Store evaluates queries against records held in memory.
type Store struct {
	mu      sync.RWMutex
	records []models.FileMetadata
	latency time.Duration
}

// Option configures a Store.
type Option func(*Store)

// WithLatency delays every query, honoring cancellation.
func WithLatency(d time.Duration) Option {
	return func(s *Store) { s.latency = d }
}

// New creates a store holding copies of records.
func New(records []models.FileMetadata, opts ...Option) *Store {
	s := &Store{}
	for _, opt := range opts {
		opt(s)
	}
	s.Add(records...)
	return s
}

type recordsFile struct {
	Files []models.FileMetadata `yaml:"files"`
}

// LoadFile reads records from a YAML document of the form
//
//	files:
//	  - id: "1"
//	    title: notes.txt
//	    mimeType: text/plain
//	    modifiedDate: 2024-03-01T12:00:00Z
//	    parents: [root]
//
// Records without parents are placed in the root folder.
func LoadFile(path string, opts ...Option) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read records file: %w", err)
	}
	var doc recordsFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse records file %s: %w", path, err)
	}
	for i, rec := range doc.Files {
		if rec.ID == "" {
			return nil, fmt.Errorf("records file %s: file %d has no id", path, i)
		}
		if len(rec.Parents) == 0 {
			doc.Files[i].Parents = []string{models.RootFolderID}
		}
	}
	return New(doc.Files, opts...), nil
}

// Add appends records.
func (s *Store) Add(records ...models.FileMetadata) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range records {
		s.records = append(s.records, rec.Clone())
	}
}

// Len returns the number of records held.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// ExecuteQuery returns the records in scope matching q, in insertion order.
func (s *Store) ExecuteQuery(ctx context.Context, scope string, q query.Query) ([]models.FileMetadata, error) {
	if s.latency > 0 {
		timer := time.NewTimer(s.latency)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	matched := store.Apply(s.records, scope, q)
	s.mu.RUnlock()

	out := make([]models.FileMetadata, len(matched))
	for i, rec := range matched {
		out[i] = rec.Clone()
	}
	return out, nil
}

// Sample returns a small record set that exercises every catalog query.
func Sample() []models.FileMetadata {
	day := func(d int) time.Time {
		return time.Date(2024, time.March, d, 9, 30, 0, 0, time.UTC)
	}
	return []models.FileMetadata{
		{ID: "f-001", Title: "meeting notes.txt", ModifiedDate: day(1), MimeType: "text/plain", Starred: true, Parents: []string{models.RootFolderID}},
		{ID: "f-002", Title: "budget.xlsx", ModifiedDate: day(2), MimeType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", Parents: []string{models.RootFolderID}},
		{ID: "f-003", Title: "readme.txt", ModifiedDate: day(3), MimeType: "text/plain", Parents: []string{"projects"}},
		{ID: "f-004", Title: "shared diagram.png", ModifiedDate: day(4), MimeType: "image/png", SharedWithMe: true, Parents: []string{models.RootFolderID}},
		{ID: "f-005", Title: "todo.txt", ModifiedDate: day(5), MimeType: "text/plain", Starred: true, SharedWithMe: true, Parents: []string{models.RootFolderID}},
		{ID: "f-006", Title: "photo.jpg", ModifiedDate: day(6), MimeType: "image/jpeg", Parents: []string{models.RootFolderID, "projects"}},
		{ID: "f-007", Title: "report.pdf", ModifiedDate: day(7), MimeType: "application/pdf", Starred: true, Parents: []string{"projects"}},
	}
}
