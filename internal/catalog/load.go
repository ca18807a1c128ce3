package catalog

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rescale/filequery/internal/query"
)

// catalogFile is the on-disk YAML layout:
//
//	queries:
//	  - label: Starred plain text files
//	    filters:
//	      - and:
//	          - eq: {field: mimeType, value: text/plain}
//	          - eq: {field: starred, value: true}
type catalogFile struct {
	Queries []entryDoc `yaml:"queries"`
}

type entryDoc struct {
	Label   string      `yaml:"label"`
	Filters []filterDoc `yaml:"filters"`
}

type filterDoc struct {
	Eq           *predicateDoc `yaml:"eq"`
	Contains     *predicateDoc `yaml:"contains"`
	In           *predicateDoc `yaml:"in"`
	Not          *filterDoc    `yaml:"not"`
	And          []filterDoc   `yaml:"and"`
	Or           []filterDoc   `yaml:"or"`
	SharedWithMe bool          `yaml:"sharedWithMe"`
}

type predicateDoc struct {
	Field string    `yaml:"field"`
	Value yaml.Node `yaml:"value"`
}

// Load reads a catalog from a YAML file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML catalog document.
func Parse(data []byte) (*Catalog, error) {
	var doc catalogFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	if len(doc.Queries) == 0 {
		return nil, errors.New("catalog has no queries")
	}

	entries := make([]Entry, 0, len(doc.Queries))
	for i, e := range doc.Queries {
		if e.Label == "" {
			return nil, fmt.Errorf("catalog entry %d: missing label", i)
		}
		b := query.NewBuilder()
		for j, fd := range e.Filters {
			f, err := fd.decode()
			if err != nil {
				return nil, fmt.Errorf("catalog entry %d (%s) filter %d: %w", i, e.Label, j, err)
			}
			b.AddFilters(f)
		}
		entries = append(entries, Entry{Label: e.Label, Query: b.Build()})
	}
	return New(entries...), nil
}

func (d filterDoc) decode() (query.Filter, error) {
	set := 0
	for _, present := range []bool{d.Eq != nil, d.Contains != nil, d.In != nil, d.Not != nil, d.And != nil, d.Or != nil, d.SharedWithMe} {
		if present {
			set++
		}
	}
	if set != 1 {
		return query.Filter{}, fmt.Errorf("filter must have exactly one operator, got %d", set)
	}

	switch {
	case d.Eq != nil:
		field, err := lookupField(d.Eq.Field)
		if err != nil {
			return query.Filter{}, err
		}
		v, err := scalarFor(field, &d.Eq.Value)
		if err != nil {
			return query.Filter{}, err
		}
		return query.Eq(field, v)
	case d.Contains != nil:
		field, err := lookupField(d.Contains.Field)
		if err != nil {
			return query.Filter{}, err
		}
		return query.Contains(field, d.Contains.Value.Value)
	case d.In != nil:
		field, err := lookupField(d.In.Field)
		if err != nil {
			return query.Filter{}, err
		}
		return query.In(field, d.In.Value.Value)
	case d.Not != nil:
		inner, err := d.Not.decode()
		if err != nil {
			return query.Filter{}, err
		}
		return query.Not(inner), nil
	case d.And != nil:
		return fold(d.And, query.And)
	case d.Or != nil:
		return fold(d.Or, query.Or)
	default:
		return query.SharedWithMe(), nil
	}
}

func fold(docs []filterDoc, combine func(a, b query.Filter) query.Filter) (query.Filter, error) {
	if len(docs) < 2 {
		return query.Filter{}, fmt.Errorf("and/or need at least two filters, got %d", len(docs))
	}
	out, err := docs[0].decode()
	if err != nil {
		return query.Filter{}, err
	}
	for _, d := range docs[1:] {
		next, err := d.decode()
		if err != nil {
			return query.Filter{}, err
		}
		out = combine(out, next)
	}
	return out, nil
}

// scalarFor converts a YAML scalar into the Go type the field expects.
func scalarFor(field query.Field, node *yaml.Node) (any, error) {
	switch field.Kind() {
	case query.KindTime:
		var t time.Time
		if err := node.Decode(&t); err != nil {
			return nil, fmt.Errorf("%w: %s expects a timestamp: %v", query.ErrInvalidFilterOperand, field, err)
		}
		return t, nil
	default:
		return node.Value, nil
	}
}

// lookupField resolves name and lists the searchable fields when it is unknown.
func lookupField(name string) (query.Field, error) {
	field, err := query.LookupField(name)
	if err != nil {
		known := make([]string, 0, len(query.Fields()))
		for _, f := range query.Fields() {
			known = append(known, f.String())
		}
		return query.Field{}, fmt.Errorf("%w (known fields: %s)", err, strings.Join(known, ", "))
	}
	return field, nil
}
