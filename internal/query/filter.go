package query

import (
	"strings"
	"time"
)

// Op identifies the variant of a Filter.
type Op int

const (
	OpEquals Op = iota + 1
	OpContains
	OpIn
	OpNot
	OpAnd
	OpOr
	OpSharedWithMe
)

func (o Op) String() string {
	switch o {
	case OpEquals:
		return "eq"
	case OpContains:
		return "contains"
	case OpIn:
		return "in"
	case OpNot:
		return "not"
	case OpAnd:
		return "and"
	case OpOr:
		return "or"
	case OpSharedWithMe:
		return "sharedWithMe"
	default:
		return "unknown"
	}
}

// Value is a typed operand of a field predicate.
type Value struct {
	kind Kind
	s    string
	b    bool
	t    time.Time
}

// Kind returns the value domain of v.
func (v Value) Kind() Kind { return v.kind }

// Interface returns the operand as a string, bool or time.Time.
func (v Value) Interface() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindTime:
		return v.t
	default:
		return v.s
	}
}

func (v Value) equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindBool:
		return v.b == o.b
	case KindTime:
		return v.t.Equal(o.t)
	default:
		return v.s == o.s
	}
}

// Filter is an immutable predicate, or boolean combination of predicates,
// over file record fields. The zero Filter is invalid and matches nothing.
type Filter struct {
	op       Op
	field    Field
	value    Value
	operands []Filter
}

// Eq builds an equality predicate. Text fields take a string, starred takes a
// bool (or "true"/"false"), modifiedDate takes a time.Time.
func Eq(field Field, value any) (Filter, error) {
	v, err := coerce(OpEquals, field, value)
	if err != nil {
		return Filter{}, err
	}
	return Filter{op: OpEquals, field: field, value: v}, nil
}

// Contains builds a substring predicate over a text field.
func Contains(field Field, substring string) (Filter, error) {
	if field.Kind() != KindText {
		return Filter{}, invalidOperand(OpContains, field, substring, "contains requires a text field")
	}
	return Filter{op: OpContains, field: field, value: Value{kind: KindText, s: substring}}, nil
}

// In builds a membership predicate against a collection-valued field such as parents.
func In(field Field, value string) (Filter, error) {
	if field.Kind() != KindIDList {
		return Filter{}, invalidOperand(OpIn, field, value, "in requires a collection field")
	}
	return Filter{op: OpIn, field: field, value: Value{kind: KindText, s: value}}, nil
}

// MustEq is like Eq but panics on an invalid operand.
func MustEq(field Field, value any) Filter {
	f, err := Eq(field, value)
	if err != nil {
		panic(err)
	}
	return f
}

// MustContains is like Contains but panics on an invalid operand.
func MustContains(field Field, substring string) Filter {
	f, err := Contains(field, substring)
	if err != nil {
		panic(err)
	}
	return f
}

// MustIn is like In but panics on an invalid operand.
func MustIn(field Field, value string) Filter {
	f, err := In(field, value)
	if err != nil {
		panic(err)
	}
	return f
}

// Not negates f.
func Not(f Filter) Filter {
	return Filter{op: OpNot, operands: []Filter{f}}
}

// And combines two filters with logical AND.
func And(a, b Filter) Filter {
	return Filter{op: OpAnd, operands: []Filter{a, b}}
}

// Or combines two filters with logical OR.
func Or(a, b Filter) Filter {
	return Filter{op: OpOr, operands: []Filter{a, b}}
}

// SharedWithMe matches files other users have shared with the current user.
func SharedWithMe() Filter {
	return Filter{op: OpSharedWithMe}
}

func coerce(op Op, field Field, value any) (Value, error) {
	switch field.Kind() {
	case KindText:
		s, ok := value.(string)
		if !ok {
			return Value{}, invalidOperand(op, field, value, "expected a string")
		}
		return Value{kind: KindText, s: s}, nil
	case KindBool:
		switch b := value.(type) {
		case bool:
			return Value{kind: KindBool, b: b}, nil
		case string:
			switch strings.ToLower(b) {
			case "true":
				return Value{kind: KindBool, b: true}, nil
			case "false":
				return Value{kind: KindBool, b: false}, nil
			}
		}
		return Value{}, invalidOperand(op, field, value, "expected a boolean")
	case KindTime:
		t, ok := value.(time.Time)
		if !ok {
			return Value{}, invalidOperand(op, field, value, "expected a time.Time")
		}
		return Value{kind: KindTime, t: t}, nil
	case KindIDList:
		return Value{}, invalidOperand(op, field, value, "collection fields only support in")
	default:
		return Value{}, invalidOperand(op, field, value, "unknown field")
	}
}

// Op returns the variant of f.
func (f Filter) Op() Op { return f.op }

// Field returns the field of a predicate, or the zero Field for combinators.
func (f Filter) Field() Field { return f.field }

// Value returns the operand of a predicate.
func (f Filter) Value() Value { return f.value }

// Operands returns a copy of the sub-filters of Not, And and Or.
func (f Filter) Operands() []Filter {
	if len(f.operands) == 0 {
		return nil
	}
	out := make([]Filter, len(f.operands))
	copy(out, f.operands)
	return out
}

// IsValid reports whether f was built by one of the constructors.
func (f Filter) IsValid() bool { return f.op != 0 }

// Equal reports structural equality.
func (f Filter) Equal(o Filter) bool {
	if f.op != o.op || f.field != o.field || !f.value.equal(o.value) {
		return false
	}
	if len(f.operands) != len(o.operands) {
		return false
	}
	for i := range f.operands {
		if !f.operands[i].Equal(o.operands[i]) {
			return false
		}
	}
	return true
}

// Walk visits f and its sub-filters in pre-order. Returning false from fn
// stops descent into that filter's operands.
func (f Filter) Walk(fn func(Filter) bool) {
	if !fn(f) {
		return
	}
	for _, sub := range f.operands {
		sub.Walk(fn)
	}
}

// Fields returns the distinct fields referenced by f in first-seen order.
func (f Filter) Fields() []Field {
	var out []Field
	seen := make(map[Field]bool)
	f.Walk(func(sub Filter) bool {
		if sub.field.IsValid() && !seen[sub.field] {
			seen[sub.field] = true
			out = append(out, sub.field)
		}
		return true
	})
	return out
}

// String renders f in the remote store's query syntax, e.g.
// (mimeType = 'text/plain' and starred = true).
func (f Filter) String() string {
	var sb strings.Builder
	f.render(&sb)
	return sb.String()
}

func (f Filter) render(sb *strings.Builder) {
	switch f.op {
	case OpEquals:
		sb.WriteString(f.field.name)
		sb.WriteString(" = ")
		writeLiteral(sb, f.value)
	case OpContains:
		sb.WriteString(f.field.name)
		sb.WriteString(" contains ")
		writeLiteral(sb, f.value)
	case OpIn:
		writeLiteral(sb, f.value)
		sb.WriteString(" in ")
		sb.WriteString(f.field.name)
	case OpSharedWithMe:
		sb.WriteString("sharedWithMe")
	case OpNot:
		sb.WriteString("not ")
		f.operands[0].render(sb)
	case OpAnd, OpOr:
		sep := " and "
		if f.op == OpOr {
			sep = " or "
		}
		sb.WriteByte('(')
		for i, sub := range f.operands {
			if i > 0 {
				sb.WriteString(sep)
			}
			sub.render(sb)
		}
		sb.WriteByte(')')
	default:
		sb.WriteString("<invalid>")
	}
}

func writeLiteral(sb *strings.Builder, v Value) {
	switch v.kind {
	case KindBool:
		if v.b {
			sb.WriteString("true")
		} else {
			sb.WriteString("false")
		}
	case KindTime:
		sb.WriteByte('\'')
		sb.WriteString(v.t.UTC().Format(time.RFC3339Nano))
		sb.WriteByte('\'')
	default:
		sb.WriteByte('\'')
		sb.WriteString(quoteReplacer.Replace(v.s))
		sb.WriteByte('\'')
	}
}

var quoteReplacer = strings.NewReplacer(`\`, `\\`, `'`, `\'`)
