package query

import (
	"strings"

	"github.com/rescale/filequery/internal/models"
)

// Matches evaluates f against a file record.
func (f Filter) Matches(rec models.FileMetadata) bool {
	switch f.op {
	case OpEquals:
		return matchEquals(f.field, f.value, rec)
	case OpContains:
		s, ok := textValue(f.field, rec)
		return ok && strings.Contains(s, f.value.s)
	case OpIn:
		return f.field == FieldParents && rec.HasParent(f.value.s)
	case OpSharedWithMe:
		return rec.SharedWithMe
	case OpNot:
		return !f.operands[0].Matches(rec)
	case OpAnd:
		for _, sub := range f.operands {
			if !sub.Matches(rec) {
				return false
			}
		}
		return true
	case OpOr:
		for _, sub := range f.operands {
			if sub.Matches(rec) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func matchEquals(field Field, v Value, rec models.FileMetadata) bool {
	switch field {
	case FieldStarred:
		return rec.Starred == v.b
	case FieldModified:
		return rec.ModifiedDate.Equal(v.t)
	default:
		s, ok := textValue(field, rec)
		return ok && s == v.s
	}
}

func textValue(field Field, rec models.FileMetadata) (string, bool) {
	switch field {
	case FieldID:
		return rec.ID, true
	case FieldTitle:
		return rec.Title, true
	case FieldMimeType:
		return rec.MimeType, true
	default:
		return "", false
	}
}
