// Package store holds what the file-metadata backends share: mapping object
// storage entries to records and applying scope and query locally.
package store

import (
	"mime"
	"path"
	"strings"
	"time"

	"github.com/rescale/filequery/internal/models"
	"github.com/rescale/filequery/internal/query"
)

// User metadata keys read from stored objects. Azure metadata names must be
// identifiers, so the shared flag is also accepted without separators.
const (
	MetaTitle        = "title"
	MetaStarred      = "starred"
	MetaSharedWithMe = "shared-with-me"
	MetaParents      = "parents"
)

const defaultMimeType = "application/octet-stream"

// Object is one listed entry of an object store.
type Object struct {
	Key         string
	Modified    time.Time
	ContentType string
	Metadata    map[string]string
}

// RecordFromObject maps an object to a file record. prefix is the listing
// root: an object directly below it has the root folder as parent, deeper
// objects have their directory name, unless metadata names parents.
func RecordFromObject(prefix string, obj Object) models.FileMetadata {
	meta := normalizeMetadata(obj.Metadata)

	rec := models.FileMetadata{
		ID:           obj.Key,
		Title:        meta[MetaTitle],
		ModifiedDate: obj.Modified.UTC(),
		MimeType:     obj.ContentType,
		Starred:      parseFlag(meta[MetaStarred]),
		SharedWithMe: parseFlag(meta[MetaSharedWithMe]),
	}
	if rec.Title == "" {
		rec.Title = path.Base(obj.Key)
	}
	if rec.MimeType == "" {
		rec.MimeType = mimeFromName(obj.Key)
	}

	if parents := meta[MetaParents]; parents != "" {
		for _, p := range strings.Split(parents, ",") {
			if p = strings.TrimSpace(p); p != "" {
				rec.Parents = append(rec.Parents, p)
			}
		}
	} else {
		rec.Parents = []string{parentFromKey(prefix, obj.Key)}
	}
	return rec
}

func normalizeMetadata(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		k = strings.ToLower(k)
		k = strings.TrimPrefix(k, "x-amz-meta-")
		switch k {
		case "shared_with_me", "sharedwithme":
			k = MetaSharedWithMe
		}
		out[k] = v
	}
	return out
}

func parseFlag(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "1", "yes":
		return true
	}
	return false
}

func mimeFromName(name string) string {
	t := mime.TypeByExtension(path.Ext(name))
	if t == "" {
		return defaultMimeType
	}
	if mediaType, _, err := mime.ParseMediaType(t); err == nil {
		return mediaType
	}
	return t
}

func parentFromKey(prefix, key string) string {
	rel := strings.TrimPrefix(strings.TrimPrefix(key, prefix), "/")
	dir := path.Dir(rel)
	if dir == "." || dir == "/" || dir == "" {
		return models.RootFolderID
	}
	return path.Base(dir)
}

// ListPrefix returns the key prefix to list for scope below root prefix.
// The listing is recursive: objects deeper down may name the scope as a
// parent in their metadata, InScope keeps only the children.
func ListPrefix(prefix, scope string) string {
	p := strings.Trim(prefix, "/")
	if scope != "" && scope != models.RootFolderID {
		p = path.Join(p, scope)
	}
	if p == "" {
		return ""
	}
	return p + "/"
}

// InScope reports whether rec is a direct child of the scope folder. An
// empty scope is the root folder.
func InScope(rec models.FileMetadata, scope string) bool {
	if scope == "" {
		scope = models.RootFolderID
	}
	return rec.HasParent(scope)
}

// Apply keeps the records in scope that match q, preserving order.
func Apply(records []models.FileMetadata, scope string, q query.Query) []models.FileMetadata {
	out := make([]models.FileMetadata, 0, len(records))
	for _, rec := range records {
		if InScope(rec, scope) && q.Matches(rec) {
			out = append(out, rec)
		}
	}
	return out
}
