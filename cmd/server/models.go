package main

import (
	"fmt"
	"time"

	"github.com/liamcoop/tariffs/multitenantengine"
	"github.com/liamcoop/tariffs/tariff"
)

// API request and response models

// CreateTenantRequest represents the request body for creating a tenant
type CreateTenantRequest struct {
	Name string `json:"name"`
}

// TenantsListResponse represents the response for listing tenants
type TenantsListResponse struct {
	Tenants []multitenantengine.Tenant `json:"tenants"`
}

// TariffRequest is the body of tariff create and update requests
type TariffRequest struct {
	Title             string             `json:"title"`
	Description       string             `json:"description"`
	PatientConditions []tariff.Condition `json:"patientConditions"`
	ItemConditions    []tariff.Condition `json:"itemConditions"`
	StartDate         time.Time          `json:"startDate"`
	EndDate           time.Time          `json:"endDate"`
	Discount          *tariff.Discount   `json:"discount,omitempty"`
	Active            *bool              `json:"active,omitempty"`
}

// toTariff builds a tariff; Active defaults to true
func (r TariffRequest) toTariff(id string) *tariff.Tariff {
	active := true
	if r.Active != nil {
		active = *r.Active
	}
	return &tariff.Tariff{
		ID:                id,
		Title:             r.Title,
		Description:       r.Description,
		PatientConditions: r.PatientConditions,
		ItemConditions:    r.ItemConditions,
		StartDate:         r.StartDate,
		EndDate:           r.EndDate,
		Discount:          r.Discount,
		Active:            active,
	}
}

// TariffsListResponse represents the response for listing tariffs
type TariffsListResponse struct {
	Tariffs []*tariff.Tariff `json:"tariffs"`
}

// PatientRequest describes the patient of an applicability request.
// DateOfBirth accepts a date ("1970-12-03") or an RFC 3339 timestamp.
type PatientRequest struct {
	Name        string           `json:"name"`
	Age         int              `json:"age"`
	Gender      string           `json:"gender"`
	DateOfBirth string           `json:"dob"`
	Privilege   tariff.Privilege `json:"privilege,omitempty"`
}

func (p PatientRequest) toPerson() (tariff.Person, error) {
	person := tariff.Person{
		Name:      p.Name,
		Age:       p.Age,
		Gender:    p.Gender,
		Privilege: p.Privilege,
	}
	if p.DateOfBirth == "" {
		return person, nil
	}
	for _, layout := range []string{time.DateOnly, time.RFC3339} {
		if dob, err := time.Parse(layout, p.DateOfBirth); err == nil {
			person.DateOfBirth = dob
			return person, nil
		}
	}
	return person, fmt.Errorf("dob %q is not a date", p.DateOfBirth)
}

// BasketLineRequest is one basket line of an applicability request
type BasketLineRequest struct {
	Item     tariff.Item `json:"item"`
	Quantity int         `json:"quantity"`
	Applied  *bool       `json:"applied,omitempty"`
}

// ApplicabilityRequest is the body of an applicability request
type ApplicabilityRequest struct {
	Patient PatientRequest      `json:"patient"`
	Basket  []BasketLineRequest `json:"basket"`
}

func (r ApplicabilityRequest) toBasket() (tariff.Basket, error) {
	basket := make(tariff.Basket, 0, len(r.Basket))
	for i, line := range r.Basket {
		if line.Quantity < 0 {
			return nil, fmt.Errorf("basket line %d: quantity cannot be negative", i)
		}
		bl := tariff.NewBasketLine(line.Item, line.Quantity)
		bl.Applied = line.Applied
		basket = append(basket, bl)
	}
	return basket, nil
}

// ApplicabilityResponse reports the annotated basket and the gate outcomes
type ApplicabilityResponse struct {
	TariffID        string        `json:"tariffId"`
	At              time.Time     `json:"at"`
	Active          bool          `json:"active"`
	PatientEligible bool          `json:"patientEligible"`
	AppliedCount    int           `json:"appliedCount"`
	Basket          tariff.Basket `json:"basket"`
	EvaluationTime  string        `json:"evaluationTime"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status        string `json:"status"`
	Error         string `json:"error,omitempty"`
	TenantsLoaded int    `json:"tenantsLoaded"`
	Warnings      int64  `json:"warnings"`
	Errors        int64  `json:"errors"`
}
