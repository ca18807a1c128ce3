// Package query implements the filter algebra used to search a remote
// file-metadata store: typed fields, composable filter expressions and
// immutable queries built through a Builder.
package query

import "fmt"

// Kind is the value domain of a searchable field.
type Kind int

const (
	KindText Kind = iota + 1
	KindBool
	KindTime
	KindIDList // collection of identifiers, only usable with In
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindBool:
		return "bool"
	case KindTime:
		return "time"
	case KindIDList:
		return "id-list"
	default:
		return "unknown"
	}
}

// Field names a searchable attribute of a file record.
// Fields are comparable values; the zero Field is invalid.
type Field struct {
	name string
	kind Kind
}

// Well-known searchable fields. These are the only fields that exist.
var (
	FieldID       = Field{name: "id", kind: KindText}
	FieldTitle    = Field{name: "title", kind: KindText}
	FieldModified = Field{name: "modifiedDate", kind: KindTime}
	FieldMimeType = Field{name: "mimeType", kind: KindText}
	FieldStarred  = Field{name: "starred", kind: KindBool}
	FieldParents  = Field{name: "parents", kind: KindIDList}
)

var knownFields = []Field{
	FieldID,
	FieldTitle,
	FieldModified,
	FieldMimeType,
	FieldStarred,
	FieldParents,
}

// Fields returns all searchable fields in a stable order.
func Fields() []Field {
	out := make([]Field, len(knownFields))
	copy(out, knownFields)
	return out
}

// LookupField resolves a field by its wire name.
func LookupField(name string) (Field, error) {
	for _, f := range knownFields {
		if f.name == name {
			return f, nil
		}
	}
	return Field{}, fmt.Errorf("%w: %q", ErrUnknownField, name)
}

// Name returns the wire name of the field.
func (f Field) Name() string { return f.name }

// Kind returns the value domain of the field.
func (f Field) Kind() Kind { return f.kind }

// IsValid reports whether f is one of the well-known fields.
func (f Field) IsValid() bool { return f.kind != 0 }

func (f Field) String() string {
	if !f.IsValid() {
		return "<invalid field>"
	}
	return f.name
}
