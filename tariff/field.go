package tariff

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Kind is the comparable shape of a subject field
type Kind int

const (
	KindString Kind = iota
	KindNumber
	KindDate
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindDate:
		return "date"
	default:
		return "unknown"
	}
}

// Value is a field value read from a subject record
type Value struct {
	Kind Kind
	Str  string
	Num  decimal.Decimal
	Date time.Time
}

// StringValue wraps a string field value
func StringValue(s string) Value { return Value{Kind: KindString, Str: s} }

// NumberValue wraps a numeric field value
func NumberValue(n decimal.Decimal) Value { return Value{Kind: KindNumber, Num: n} }

// DateValue wraps a date field value
func DateValue(t time.Time) Value { return Value{Kind: KindDate, Date: t} }

// Equal reports strict equality: same kind and same value
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindString:
		return v.Str == o.Str
	case KindNumber:
		return v.Num.Equal(o.Num)
	case KindDate:
		return v.Date.Equal(o.Date)
	}
	return false
}

// Native returns the value as a plain Go value, used for expression activation
func (v Value) Native() any {
	switch v.Kind {
	case KindNumber:
		return v.Num.InexactFloat64()
	case KindDate:
		return v.Date
	default:
		return v.Str
	}
}

func (v Value) String() string {
	switch v.Kind {
	case KindNumber:
		return v.Num.String()
	case KindDate:
		return v.Date.Format(time.RFC3339)
	default:
		return fmt.Sprintf("%q", v.Str)
	}
}

// Record is a subject whose fields can be looked up by name
type Record interface {
	Field(name string) (Value, bool)
	Fields() map[string]Value
}

// field binds a field name to its kind and a typed accessor. A field with a
// set func is absent from a subject for which it returns false.
type field[S any] struct {
	kind Kind
	get  func(S) Value
	set  func(S) bool
}

var personFields = map[string]field[Person]{
	"name":   {kind: KindString, get: func(p Person) Value { return StringValue(p.Name) }},
	"age":    {kind: KindNumber, get: func(p Person) Value { return NumberValue(decimal.NewFromInt(int64(p.Age))) }},
	"gender": {kind: KindString, get: func(p Person) Value { return StringValue(p.Gender) }},
	"dob": {
		kind: KindDate,
		get:  func(p Person) Value { return DateValue(p.DateOfBirth) },
		set:  func(p Person) bool { return !p.DateOfBirth.IsZero() },
	},
	"privilege": {kind: KindString, get: func(p Person) Value { return StringValue(string(p.Privilege)) }},
}

var itemFields = map[string]field[Item]{
	"name":  {kind: KindString, get: func(i Item) Value { return StringValue(i.Name) }},
	"type":  {kind: KindString, get: func(i Item) Value { return StringValue(i.Type) }},
	"price": {kind: KindNumber, get: func(i Item) Value { return NumberValue(i.Price) }},
}

var fieldAliases = map[string]string{
	"dateofbirth": "dob",
	"category":    "type",
}

// canonicalField maps an authored field name onto the vocabulary key
func canonicalField(name string) string {
	key := strings.ToLower(strings.TrimSpace(name))
	if alias, ok := fieldAliases[key]; ok {
		return alias
	}
	return key
}

func lookup[S any](fields map[string]field[S], subject S, name string) (Value, bool) {
	f, ok := fields[canonicalField(name)]
	if !ok || (f.set != nil && !f.set(subject)) {
		return Value{}, false
	}
	return f.get(subject), true
}

func allFields[S any](fields map[string]field[S], subject S) map[string]Value {
	out := make(map[string]Value, len(fields))
	for name, f := range fields {
		if f.set != nil && !f.set(subject) {
			continue
		}
		out[name] = f.get(subject)
	}
	return out
}

// Field implements Record
func (p Person) Field(name string) (Value, bool) { return lookup(personFields, p, name) }

// Fields implements Record
func (p Person) Fields() map[string]Value { return allFields(personFields, p) }

// Field implements Record
func (i Item) Field(name string) (Value, bool) { return lookup(itemFields, i, name) }

// Fields implements Record
func (i Item) Fields() map[string]Value { return allFields(itemFields, i) }
