package tariff

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Comparator evaluates named predicates against the fields of one subject
// record. It holds the evaluation instant so that date predicates are
// computed against the same "now" as the rest of a pipeline run.
type Comparator struct {
	subjectType SubjectType
	subject     Record
	now         time.Time
}

// NewComparator binds a comparator to a subject record and an evaluation instant
func NewComparator(subjectType SubjectType, subject Record, now time.Time) Comparator {
	return Comparator{subjectType: subjectType, subject: subject, now: now}
}

func (c Comparator) fail(op Operator, field, format string, args ...any) error {
	return &ConfigurationError{
		Subject:  c.subjectType,
		Field:    field,
		Operator: op,
		Reason:   fmt.Sprintf(format, args...),
	}
}

// value reads a field and checks it has the kind the operator needs
func (c Comparator) value(op Operator, field string, want Kind) (Value, error) {
	v, ok := c.subject.Field(field)
	if !ok {
		return Value{}, c.fail(op, field, "unknown or unset %s field", c.subjectType)
	}
	if v.Kind != want {
		return Value{}, c.fail(op, field, "field is a %s, operator needs a %s", v.Kind, want)
	}
	return v, nil
}

// IsEqual reports whether the field strictly equals target
func (c Comparator) IsEqual(field string, target Value) (bool, error) {
	v, err := c.value(OpIsEqual, field, target.Kind)
	if err != nil {
		return false, err
	}
	return v.Equal(target), nil
}

// IsNot reports whether the field is strictly not equal to target
func (c Comparator) IsNot(field string, target Value) (bool, error) {
	v, err := c.value(OpIsNot, field, target.Kind)
	if err != nil {
		return false, err
	}
	return !v.Equal(target), nil
}

// IsGreaterThan reports whether the numeric field is greater than target
func (c Comparator) IsGreaterThan(field string, target decimal.Decimal) (bool, error) {
	v, err := c.value(OpIsGreaterThan, field, KindNumber)
	if err != nil {
		return false, err
	}
	return v.Num.GreaterThan(target), nil
}

// IsLessThan reports whether the numeric field is less than target
func (c Comparator) IsLessThan(field string, target decimal.Decimal) (bool, error) {
	v, err := c.value(OpIsLessThan, field, KindNumber)
	if err != nil {
		return false, err
	}
	return v.Num.LessThan(target), nil
}

// IsIn reports whether the field value is a member of targets
func (c Comparator) IsIn(field string, targets []Value) (bool, error) {
	if len(targets) == 0 {
		return false, nil
	}
	v, err := c.value(OpIsIn, field, targets[0].Kind)
	if err != nil {
		return false, err
	}
	for _, t := range targets {
		if v.Equal(t) {
			return true, nil
		}
	}
	return false, nil
}

// IsOlderThan reports whether at least years whole years have elapsed since the date field
func (c Comparator) IsOlderThan(field string, years decimal.Decimal) (bool, error) {
	v, err := c.value(OpIsOlderThan, field, KindDate)
	if err != nil {
		return false, err
	}
	return decimal.NewFromInt(int64(ElapsedYears(v.Date, c.now))).GreaterThanOrEqual(years), nil
}

// IsYoungerThan reports whether fewer than years whole years have elapsed since the date field
func (c Comparator) IsYoungerThan(field string, years decimal.Decimal) (bool, error) {
	v, err := c.value(OpIsYoungerThan, field, KindDate)
	if err != nil {
		return false, err
	}
	return decimal.NewFromInt(int64(ElapsedYears(v.Date, c.now))).LessThan(years), nil
}

// IsOnBirthMonth reports whether the date field falls in the current calendar month
func (c Comparator) IsOnBirthMonth(field string) (bool, error) {
	v, err := c.value(OpIsOnBirthMonth, field, KindDate)
	if err != nil {
		return false, err
	}
	return v.Date.Month() == c.now.Month(), nil
}

// ElapsedYears returns the number of whole years between from and to.
// A year only counts once its anniversary has been reached. A Feb 29
// anniversary falls on Feb 28 in common years.
func ElapsedYears(from, to time.Time) int {
	if to.Before(from) {
		return -ElapsedYears(to, from)
	}
	years := to.Year() - from.Year()
	if anniversary(from, to.Year()).After(to) {
		years--
	}
	return years
}

// anniversary returns from moved to year, clamped to the end of the month
func anniversary(from time.Time, year int) time.Time {
	day := from.Day()
	if last := daysIn(from.Month(), year, from.Location()); day > last {
		day = last
	}
	return time.Date(year, from.Month(), day, from.Hour(), from.Minute(), from.Second(), from.Nanosecond(), from.Location())
}

func daysIn(month time.Month, year int, loc *time.Location) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}
