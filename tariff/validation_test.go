package tariff

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func validTariff() *Tariff {
	return &Tariff{
		ID:    "middle-aged-man",
		Title: "Middle Aged Man Tariff",
		PatientConditions: []Condition{
			{Field: "dob", Type: SubjectPatient, Operator: OpIsOlderThan, Value: 40},
			{Field: "gender", Type: SubjectPatient, Operator: OpIsEqual, Value: "male"},
		},
		ItemConditions: []Condition{
			{Field: "type", Type: SubjectItem, Operator: OpIsIn, Value: []string{"medicine", "doctor fee"}},
		},
		StartDate: day(2021, time.December, 1),
		EndDate:   day(2021, time.December, 31),
		Active:    true,
	}
}

func TestValidateTariffAcceptsValidTariff(t *testing.T) {
	if err := ValidateTariff(validTariff()); err != nil {
		t.Errorf("ValidateTariff() failed: %v", err)
	}

	inverted := validTariff()
	inverted.StartDate, inverted.EndDate = inverted.EndDate, inverted.StartDate
	if err := ValidateTariff(inverted); err != nil {
		t.Errorf("an inverted window is accepted, got: %v", err)
	}

	withDiscount := validTariff()
	withDiscount.Discount = &Discount{Value: decimal.NewFromInt(15), Type: DiscountPercent}
	if err := ValidateTariff(withDiscount); err != nil {
		t.Errorf("ValidateTariff() with discount failed: %v", err)
	}
}

func TestValidateTariffRejectsInvalidTariff(t *testing.T) {
	manyConditions := make([]Condition, maxConditionsPerList+1)
	for i := range manyConditions {
		manyConditions[i] = Condition{Field: "gender", Type: SubjectPatient, Operator: OpIsEqual, Value: "male"}
	}

	testCases := []struct {
		name   string
		mutate func(*Tariff)
	}{
		{"Empty title", func(t *Tariff) { t.Title = "  " }},
		{"Long title", func(t *Tariff) { t.Title = strings.Repeat("a", maxTitleLength+1) }},
		{"Missing start", func(t *Tariff) { t.StartDate = time.Time{} }},
		{"Missing end", func(t *Tariff) { t.EndDate = time.Time{} }},
		{"Too many conditions", func(t *Tariff) { t.PatientConditions = manyConditions }},
		{"Item condition in patient list", func(t *Tariff) {
			t.PatientConditions = append(t.PatientConditions, Condition{Field: "type", Type: SubjectItem, Operator: OpIsEqual, Value: "medicine"})
		}},
		{"Negative discount", func(t *Tariff) {
			t.Discount = &Discount{Value: decimal.NewFromInt(-1), Type: DiscountFlat}
		}},
		{"Percent over hundred", func(t *Tariff) {
			t.Discount = &Discount{Value: decimal.NewFromInt(101), Type: DiscountPercent}
		}},
		{"Unknown discount type", func(t *Tariff) {
			t.Discount = &Discount{Value: decimal.NewFromInt(1), Type: "bogo"}
		}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tariff := validTariff()
			tc.mutate(tariff)
			err := ValidateTariff(tariff)
			if !errors.Is(err, ErrInvalidTariff) {
				t.Errorf("ValidateTariff() = %v, want ErrInvalidTariff", err)
			}
		})
	}
}

func TestValidateTariffReportsConfigurationErrors(t *testing.T) {
	tariff := validTariff()
	tariff.ItemConditions = []Condition{
		{Field: "type", Type: SubjectItem, Operator: OpIsOlderThan, Value: 3},
	}

	err := ValidateTariff(tariff)
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("ValidateTariff() = %v, want ConfigurationError", err)
	}
	if cfgErr.Subject != SubjectItem || cfgErr.Field != "type" {
		t.Errorf("unexpected error details: %+v", cfgErr)
	}
}
