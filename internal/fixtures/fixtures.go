// Package fixtures holds the demo catalog, patient roster and tariffs used by
// tariffctl and the tests.
package fixtures

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/liamcoop/tariffs/tariff"
)

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func item(name, typ string, price int64) tariff.Item {
	return tariff.Item{Name: name, Type: typ, Price: decimal.NewFromInt(price)}
}

// Catalog returns the demo item catalog
func Catalog() []tariff.Item {
	return []tariff.Item{
		item("Paracetamal", "medicine", 100),
		item("Aspirine", "medicine", 1000),
		item("Arm Slings", "medical supply", 100),
		item("Athletic Supporters", "medical supply", 1000),
		item("Vitamin A", "vitamin & mineral", 100),
		item("Vitamin C", "vitamin & mineral", 1000),
		item("Anxiety Therapy", "therapy service", 100),
		item("Trauma Counseling", "therapy service", 1000),
		item("Dr. Hannibal Lecter", "doctor fee", 100),
		item("Dr. James Fallon", "doctor fee", 1000),
	}
}

// Patients returns the demo patient roster
func Patients() []tariff.Person {
	return []tariff.Person{
		{Name: "Anuchit", Age: 61, Gender: "male", DateOfBirth: date(1960, time.January, 1)},
		{Name: "Boonyarit", Age: 51, Gender: "male", DateOfBirth: date(1970, time.February, 2), Privilege: tariff.PrivilegeVVIP},
		{Name: "Chalermpon", Age: 51, Gender: "male", DateOfBirth: date(1970, time.December, 3)},
		{Name: "Dharinee", Age: 41, Gender: "female", DateOfBirth: date(1980, time.April, 4)},
		{Name: "Emorn", Age: 41, Gender: "female", DateOfBirth: date(1980, time.May, 5)},
		{Name: "Falida", Age: 36, Gender: "female", DateOfBirth: date(1985, time.June, 6), Privilege: tariff.PrivilegeVIP},
		{Name: "Giat", Age: 31, Gender: "male", DateOfBirth: date(1990, time.July, 7)},
		{Name: "Hattaya", Age: 21, Gender: "female", DateOfBirth: date(2000, time.August, 8), Privilege: tariff.PrivilegeVIP},
		{Name: "Ittirit", Age: 17, Gender: "male", DateOfBirth: date(2004, time.September, 9)},
		{Name: "Jetsada", Age: 16, Gender: "male", DateOfBirth: date(2005, time.October, 10), Privilege: tariff.PrivilegeVVIP},
	}
}

// Patient looks up a roster entry by name
func Patient(name string) (tariff.Person, bool) {
	for _, p := range Patients() {
		if p.Name == name {
			return p, true
		}
	}
	return tariff.Person{}, false
}

// SampleBasket holds every catalog item; the first six lines have quantity 10
func SampleBasket() tariff.Basket {
	catalog := Catalog()
	basket := make(tariff.Basket, 0, len(catalog))
	for i, it := range catalog {
		qty := 1
		if i < 6 {
			qty = 10
		}
		basket = append(basket, tariff.NewBasketLine(it, qty))
	}
	return basket
}

// Active window of the demo tariffs
var (
	December2021Start = date(2021, time.December, 1)
	December2021End   = date(2021, time.December, 31)
)

// MiddleAgedManTariff applies to men above 40 on medicine and doctor fees
func MiddleAgedManTariff() *tariff.Tariff {
	return &tariff.Tariff{
		ID:          "middle-aged-man",
		Title:       "Middle Aged Man Tariff",
		Description: "Applies to men above 40 on medicine & doctor fee",
		PatientConditions: []tariff.Condition{
			{Field: "dob", Type: tariff.SubjectPatient, Operator: tariff.OpIsOlderThan, Value: 40},
			{Field: "gender", Type: tariff.SubjectPatient, Operator: tariff.OpIsEqual, Value: "male"},
		},
		ItemConditions: []tariff.Condition{
			{Field: "type", Type: tariff.SubjectItem, Operator: tariff.OpIsIn, Value: []string{"medicine", "doctor fee"}},
		},
		StartDate: December2021Start,
		EndDate:   December2021End,
		Active:    true,
	}
}

// BirthMonthTariff applies to everyone born in the month of evaluation
func BirthMonthTariff() *tariff.Tariff {
	return &tariff.Tariff{
		ID:          "birth-month",
		Title:       "Birth Month Tariff",
		Description: "Applies to everyone who was born on current month",
		PatientConditions: []tariff.Condition{
			{Field: "dob", Type: tariff.SubjectPatient, Operator: tariff.OpIsOnBirthMonth},
		},
		ItemConditions: []tariff.Condition{
			{Field: "type", Type: tariff.SubjectItem, Operator: tariff.OpIsIn, Value: []string{"medicine", "doctor fee"}},
		},
		StartDate: December2021Start,
		EndDate:   December2021End,
		Active:    true,
	}
}

// Tariffs returns every demo tariff
func Tariffs() []*tariff.Tariff {
	return []*tariff.Tariff{MiddleAgedManTariff(), BirthMonthTariff()}
}
