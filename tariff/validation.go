package tariff

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	maxTitleLength       = 200
	maxConditionsPerList = 50
)

var hundred = decimal.NewFromInt(100)

// ValidateTariff checks a tariff definition before it is stored.
// A window whose end precedes its start is accepted: such a tariff is simply
// never active.
func ValidateTariff(t *Tariff) error {
	title := strings.TrimSpace(t.Title)
	if title == "" {
		return fmt.Errorf("%w: title cannot be empty", ErrInvalidTariff)
	}
	if len(title) > maxTitleLength {
		return fmt.Errorf("%w: title length %d exceeds maximum of %d characters", ErrInvalidTariff, len(title), maxTitleLength)
	}
	if t.StartDate.IsZero() || t.EndDate.IsZero() {
		return fmt.Errorf("%w: startDate and endDate are required", ErrInvalidTariff)
	}

	if err := validateConditions(SubjectPatient, t.PatientConditions); err != nil {
		return err
	}
	if err := validateConditions(SubjectItem, t.ItemConditions); err != nil {
		return err
	}

	if t.Discount != nil {
		if err := validateDiscount(t.Discount); err != nil {
			return err
		}
	}

	_, err := Compile(t)
	return err
}

func validateConditions(subject SubjectType, conds []Condition) error {
	if len(conds) > maxConditionsPerList {
		return fmt.Errorf("%w: %d %s conditions, maximum allowed is %d", ErrInvalidTariff, len(conds), subject, maxConditionsPerList)
	}
	for i, c := range conds {
		if c.Type != subject {
			return fmt.Errorf("%w: %s condition %d is tagged %q", ErrInvalidTariff, subject, i, c.Type)
		}
	}
	return nil
}

func validateDiscount(d *Discount) error {
	if d.Value.IsNegative() {
		return fmt.Errorf("%w: discount value cannot be negative", ErrInvalidTariff)
	}
	switch d.Type {
	case DiscountFlat:
	case DiscountPercent:
		if d.Value.GreaterThan(hundred) {
			return fmt.Errorf("%w: percent discount %s exceeds 100", ErrInvalidTariff, d.Value)
		}
	default:
		return fmt.Errorf("%w: discount type %q must be one of: flat, percent", ErrInvalidTariff, d.Type)
	}
	return nil
}
