package models

import (
	"slices"
	"time"
)

// RootFolderID is the identifier of the top-level folder of a file store.
const RootFolderID = "root"

// FileMetadata represents one file record returned by a remote file-metadata store.
type FileMetadata struct {
	ID           string    `json:"id" yaml:"id"`
	Title        string    `json:"title" yaml:"title"`
	ModifiedDate time.Time `json:"modifiedDate" yaml:"modifiedDate"`
	MimeType     string    `json:"mimeType" yaml:"mimeType"`
	Starred      bool      `json:"starred" yaml:"starred"`
	Parents      []string  `json:"parents,omitempty" yaml:"parents,omitempty"`
	SharedWithMe bool      `json:"sharedWithMe" yaml:"sharedWithMe"`
}

// HasParent reports whether id is one of the record's parent folders.
func (f FileMetadata) HasParent(id string) bool {
	return slices.Contains(f.Parents, id)
}

// Clone returns a copy that shares no slices with f.
func (f FileMetadata) Clone() FileMetadata {
	f.Parents = slices.Clone(f.Parents)
	return f
}
