package tariff

import (
	"time"

	"github.com/shopspring/decimal"
)

// Privilege is the optional membership tier of a patient
type Privilege string

const (
	PrivilegeNone Privilege = ""
	PrivilegeVIP  Privilege = "VIP"
	PrivilegeVVIP Privilege = "VVIP"
)

// Person is a read-only patient record used as the subject of patient conditions
type Person struct {
	Name        string    `json:"name" yaml:"name"`
	Age         int       `json:"age" yaml:"age"`
	Gender      string    `json:"gender" yaml:"gender"`
	DateOfBirth time.Time `json:"dob" yaml:"dob"`
	Privilege   Privilege `json:"privilege,omitempty" yaml:"privilege,omitempty"`
}

// Item is an immutable catalog entry
type Item struct {
	Name  string          `json:"name" yaml:"name"`
	Type  string          `json:"type" yaml:"type"`
	Price decimal.Decimal `json:"price" yaml:"price"`
}

// BasketLine is one priced, quantified item in a patient's basket.
// Applied is nil until a pipeline run has written it.
type BasketLine struct {
	Item     Item            `json:"item"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"amount"`
	Total    decimal.Decimal `json:"total"`
	Applied  *bool           `json:"applied,omitempty"`
}

// NewBasketLine pairs a catalog item with a quantity and computes the line total
func NewBasketLine(item Item, quantity int) BasketLine {
	return BasketLine{
		Item:     item,
		Name:     item.Name,
		Price:    item.Price,
		Quantity: quantity,
		Total:    item.Price.Mul(decimal.NewFromInt(int64(quantity))),
	}
}

// IsApplied reports whether the line was flagged by the last evaluation
func (l BasketLine) IsApplied() bool {
	return l.Applied != nil && *l.Applied
}

// Basket is the ordered collection of lines evaluated against a tariff
type Basket []BasketLine

// Clone returns a deep copy of the basket, including the applied flags
func (b Basket) Clone() Basket {
	if b == nil {
		return nil
	}
	out := make(Basket, len(b))
	for i, line := range b {
		out[i] = line
		if line.Applied != nil {
			applied := *line.Applied
			out[i].Applied = &applied
		}
	}
	return out
}

// DiscountType selects how a discount value is interpreted
type DiscountType string

const (
	DiscountFlat    DiscountType = "flat"
	DiscountPercent DiscountType = "percent"
)

// Discount describes the reduction a tariff grants. It is carried with the
// tariff but no component computes discounted prices from it.
type Discount struct {
	Value decimal.Decimal `json:"value" yaml:"value"`
	Type  DiscountType    `json:"type" yaml:"type"`
}

// Tariff is a time-boxed rule bundling patient and item conditions
type Tariff struct {
	ID                string      `json:"id" yaml:"id"`
	Title             string      `json:"title" yaml:"title"`
	Description       string      `json:"description" yaml:"description"`
	PatientConditions []Condition `json:"patientConditions,omitempty" yaml:"patientConditions,omitempty"`
	ItemConditions    []Condition `json:"itemConditions,omitempty" yaml:"itemConditions,omitempty"`
	StartDate         time.Time   `json:"startDate" yaml:"startDate"`
	EndDate           time.Time   `json:"endDate" yaml:"endDate"`
	Discount          *Discount   `json:"discount,omitempty" yaml:"discount,omitempty"`
	Active            bool        `json:"active" yaml:"active"`
	CreatedAt         time.Time   `json:"createdAt" yaml:"-"`
	UpdatedAt         time.Time   `json:"updatedAt" yaml:"-"`
}
