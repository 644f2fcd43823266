package tariff

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// SubjectType tags which record a condition inspects
type SubjectType string

const (
	SubjectPatient SubjectType = "patient"
	SubjectItem    SubjectType = "item"
)

// Operator names a comparison. The set is closed: anything outside it is
// rejected when a condition is built.
type Operator string

const (
	OpIsEqual        Operator = "isEqual"
	OpIsGreaterThan  Operator = "isGreaterThan"
	OpIsLessThan     Operator = "isLessThan"
	OpIsNot          Operator = "isNot"
	OpIsIn           Operator = "isIn"
	OpIsOlderThan    Operator = "isOlderThan"
	OpIsYoungerThan  Operator = "isYoungerThan"
	OpIsOnBirthMonth Operator = "isOnBirthMonth"
	OpSatisfies      Operator = "satisfies"
)

var operators = map[string]Operator{
	"isequal":        OpIsEqual,
	"isgreaterthan":  OpIsGreaterThan,
	"islessthan":     OpIsLessThan,
	"isnot":          OpIsNot,
	"isin":           OpIsIn,
	"isolderthan":    OpIsOlderThan,
	"isyoungerthan":  OpIsYoungerThan,
	"isonbirthmonth": OpIsOnBirthMonth,
	"isonbirthmoth":  OpIsOnBirthMonth,
	"satisfies":      OpSatisfies,
}

// ParseOperator resolves an authored operator name, case-insensitively
func ParseOperator(name string) (Operator, bool) {
	op, ok := operators[strings.ToLower(strings.TrimSpace(name))]
	return op, ok
}

// Condition is the authored form of one comparison test, as stored with a tariff
type Condition struct {
	Field    string      `json:"field" yaml:"field"`
	Type     SubjectType `json:"type" yaml:"type"`
	Operator Operator    `json:"condition" yaml:"condition"`
	Value    any         `json:"valueToBeCompared,omitempty" yaml:"valueToBeCompared,omitempty"`
}

// check is a resolved operator bound to its field and target
type check func(Comparator) (bool, error)

// PatientCondition is a condition resolved against the Person field vocabulary
type PatientCondition struct {
	Condition
	check check
}

// NewPatientCondition resolves c against the Person fields
func NewPatientCondition(c Condition) (PatientCondition, error) {
	chk, err := resolve(SubjectPatient, personFields, c)
	if err != nil {
		return PatientCondition{}, err
	}
	return PatientCondition{Condition: c, check: chk}, nil
}

// Evaluate applies the condition to a patient at the given instant
func (pc PatientCondition) Evaluate(p Person, now time.Time) (bool, error) {
	return pc.check(NewComparator(SubjectPatient, p, now))
}

// ItemCondition is a condition resolved against the Item field vocabulary
type ItemCondition struct {
	Condition
	check check
}

// NewItemCondition resolves c against the Item fields
func NewItemCondition(c Condition) (ItemCondition, error) {
	chk, err := resolve(SubjectItem, itemFields, c)
	if err != nil {
		return ItemCondition{}, err
	}
	return ItemCondition{Condition: c, check: chk}, nil
}

// Evaluate applies the condition to an item at the given instant
func (ic ItemCondition) Evaluate(i Item, now time.Time) (bool, error) {
	return ic.check(NewComparator(SubjectItem, i, now))
}

// PatientConditions keeps the conditions tagged "patient" and resolves them
func PatientConditions(conds []Condition) ([]PatientCondition, error) {
	return resolveAll(SubjectPatient, conds, NewPatientCondition)
}

// ItemConditions keeps the conditions tagged "item" and resolves them
func ItemConditions(conds []Condition) ([]ItemCondition, error) {
	return resolveAll(SubjectItem, conds, NewItemCondition)
}

func resolveAll[C any](subject SubjectType, conds []Condition, build func(Condition) (C, error)) ([]C, error) {
	out := make([]C, 0, len(conds))
	for _, c := range conds {
		if c.Type != subject {
			continue
		}
		resolved, err := build(c)
		if err != nil {
			return nil, err
		}
		out = append(out, resolved)
	}
	return out, nil
}

type predicate[S any] interface {
	Evaluate(subject S, now time.Time) (bool, error)
}

// allOf combines predicates with logical AND. An empty list is satisfied.
// Evaluation stops at the first false or the first error.
func allOf[S any, P predicate[S]](subject S, now time.Time, preds []P) (bool, error) {
	for _, p := range preds {
		ok, err := p.Evaluate(subject, now)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// MatchPatient reports whether the patient satisfies every condition
func MatchPatient(p Person, conds []PatientCondition, now time.Time) (bool, error) {
	return allOf(p, now, conds)
}

// MatchItem reports whether the item satisfies every condition
func MatchItem(i Item, conds []ItemCondition, now time.Time) (bool, error) {
	return allOf(i, now, conds)
}

// resolve binds an authored condition to a typed check for one subject kind
func resolve[S any](subject SubjectType, fields map[string]field[S], c Condition) (check, error) {
	if c.Type != subject {
		return nil, configErr(subject, c, "condition is tagged %q", c.Type)
	}
	op, ok := ParseOperator(string(c.Operator))
	if !ok {
		return nil, configErr(subject, c, "unknown operator")
	}
	if op == OpSatisfies {
		return resolveExpression(subject, c)
	}

	f, ok := fields[canonicalField(c.Field)]
	if !ok {
		return nil, configErr(subject, c, "unknown %s field", subject)
	}
	name := c.Field

	switch op {
	case OpIsEqual, OpIsNot:
		target, err := toValue(c.Value, f.kind)
		if err != nil {
			return nil, configErr(subject, c, "%v", err)
		}
		if op == OpIsEqual {
			return func(cmp Comparator) (bool, error) { return cmp.IsEqual(name, target) }, nil
		}
		return func(cmp Comparator) (bool, error) { return cmp.IsNot(name, target) }, nil

	case OpIsGreaterThan, OpIsLessThan:
		if f.kind != KindNumber {
			return nil, configErr(subject, c, "field is a %s, operator needs a number", f.kind)
		}
		target, err := toNumber(c.Value)
		if err != nil {
			return nil, configErr(subject, c, "%v", err)
		}
		if op == OpIsGreaterThan {
			return func(cmp Comparator) (bool, error) { return cmp.IsGreaterThan(name, target) }, nil
		}
		return func(cmp Comparator) (bool, error) { return cmp.IsLessThan(name, target) }, nil

	case OpIsIn:
		targets, err := toValues(c.Value, f.kind)
		if err != nil {
			return nil, configErr(subject, c, "%v", err)
		}
		return func(cmp Comparator) (bool, error) { return cmp.IsIn(name, targets) }, nil

	case OpIsOlderThan, OpIsYoungerThan:
		if f.kind != KindDate {
			return nil, configErr(subject, c, "field is a %s, operator needs a date", f.kind)
		}
		years, err := toNumber(c.Value)
		if err != nil {
			return nil, configErr(subject, c, "%v", err)
		}
		if op == OpIsOlderThan {
			return func(cmp Comparator) (bool, error) { return cmp.IsOlderThan(name, years) }, nil
		}
		return func(cmp Comparator) (bool, error) { return cmp.IsYoungerThan(name, years) }, nil

	case OpIsOnBirthMonth:
		if f.kind != KindDate {
			return nil, configErr(subject, c, "field is a %s, operator needs a date", f.kind)
		}
		return func(cmp Comparator) (bool, error) { return cmp.IsOnBirthMonth(name) }, nil
	}

	return nil, configErr(subject, c, "unknown operator")
}

// toNumber converts an authored target into a decimal
func toNumber(v any) (decimal.Decimal, error) {
	switch n := v.(type) {
	case nil:
		return decimal.Decimal{}, fmt.Errorf("missing numeric target")
	case int:
		return decimal.NewFromInt(int64(n)), nil
	case int32:
		return decimal.NewFromInt(int64(n)), nil
	case int64:
		return decimal.NewFromInt(n), nil
	case float32:
		return decimal.NewFromFloat32(n), nil
	case float64:
		return decimal.NewFromFloat(n), nil
	case json.Number:
		return decimal.NewFromString(n.String())
	case decimal.Decimal:
		return n, nil
	default:
		return decimal.Decimal{}, fmt.Errorf("target %v (%T) is not a number", v, v)
	}
}

// toValue converts an authored target into a Value of the wanted kind
func toValue(v any, kind Kind) (Value, error) {
	if v == nil {
		return Value{}, fmt.Errorf("missing %s target", kind)
	}
	switch kind {
	case KindString:
		s, ok := v.(string)
		if !ok {
			return Value{}, fmt.Errorf("target %v (%T) is not a string", v, v)
		}
		return StringValue(s), nil
	case KindNumber:
		n, err := toNumber(v)
		if err != nil {
			return Value{}, err
		}
		return NumberValue(n), nil
	case KindDate:
		switch d := v.(type) {
		case time.Time:
			return DateValue(d), nil
		case string:
			t, err := parseDate(d)
			if err != nil {
				return Value{}, err
			}
			return DateValue(t), nil
		}
		return Value{}, fmt.Errorf("target %v (%T) is not a date", v, v)
	}
	return Value{}, fmt.Errorf("unsupported field kind %s", kind)
}

// toValues converts an authored list target into Values of the wanted kind
func toValues(v any, kind Kind) ([]Value, error) {
	if v == nil {
		return nil, fmt.Errorf("missing list target")
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, fmt.Errorf("target %v (%T) is not a list", v, v)
	}
	out := make([]Value, 0, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		val, err := toValue(rv.Index(i).Interface(), kind)
		if err != nil {
			return nil, fmt.Errorf("list element %d: %w", i, err)
		}
		out = append(out, val)
	}
	return out, nil
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("target %q is not a date", s)
}
