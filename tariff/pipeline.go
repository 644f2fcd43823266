package tariff

import (
	"fmt"
	"time"
)

// Compiled is a tariff whose conditions have been resolved against the
// patient and item field vocabularies.
type Compiled struct {
	Tariff  *Tariff
	patient []PatientCondition
	items   []ItemCondition
}

// Compile resolves every condition of t. Conditions whose type tag does not
// match the list they were authored in are skipped.
func Compile(t *Tariff) (*Compiled, error) {
	patient, err := PatientConditions(t.PatientConditions)
	if err != nil {
		return nil, err
	}
	items, err := ItemConditions(t.ItemConditions)
	if err != nil {
		return nil, err
	}
	return &Compiled{Tariff: t, patient: patient, items: items}, nil
}

// Evaluation is the outcome of one pipeline run
type Evaluation struct {
	Basket          Basket    `json:"basket"`
	At              time.Time `json:"at"`
	Active          bool      `json:"active"`
	PatientEligible bool      `json:"patientEligible"`
}

// AppliedCount returns the number of lines flagged as applied
func (e *Evaluation) AppliedCount() int {
	n := 0
	for _, line := range e.Basket {
		if line.IsApplied() {
			n++
		}
	}
	return n
}

// PipelineOption configures a Pipeline
type PipelineOption func(*Pipeline)

// WithClock sets the source of the evaluation instant
func WithClock(now func() time.Time) PipelineOption {
	return func(p *Pipeline) {
		if now != nil {
			p.now = now
		}
	}
}

// WithObserver attaches an observer for gate outcomes
func WithObserver(o Observer) PipelineOption {
	return func(p *Pipeline) {
		if o != nil {
			p.observer = o
		}
	}
}

// Pipeline runs the temporal, patient and item gates in order
type Pipeline struct {
	now      func() time.Time
	observer Observer
}

// NewPipeline creates a pipeline reading the wall clock on every run
func NewPipeline(opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		now:      time.Now,
		observer: nopObserver{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// DetermineApplicability resolves the tariff and returns a copy of the basket
// annotated for it. The input basket is never modified.
func (p *Pipeline) DetermineApplicability(patient Person, basket Basket, t *Tariff) (Basket, error) {
	compiled, err := Compile(t)
	if err != nil {
		return nil, err
	}
	ev, err := p.Evaluate(patient, basket, compiled)
	if err != nil {
		return nil, err
	}
	return ev.Basket, nil
}

// Evaluate runs the three gates against a compiled tariff.
//
// When the tariff is outside its window or the patient does not qualify the
// returned basket carries the same flags as the input. Otherwise every line's
// flag is overwritten with its own item-gate result, so flags never accumulate
// across tariffs. A configuration error aborts the run without a result.
func (p *Pipeline) Evaluate(patient Person, basket Basket, c *Compiled) (*Evaluation, error) {
	at := p.now()
	ev := &Evaluation{Basket: basket.Clone(), At: at}

	ev.Active = IsActiveAt(at, c.Tariff)
	p.observer.TariffValidity(c.Tariff, at, ev.Active)
	if !ev.Active {
		return ev, nil
	}

	eligible, err := MatchPatient(patient, c.patient, at)
	if err != nil {
		return nil, fmt.Errorf("patient gate: %w", err)
	}
	ev.PatientEligible = eligible
	p.observer.PatientEligibility(c.Tariff, patient, eligible)
	if !eligible {
		return ev, nil
	}

	for i := range ev.Basket {
		applied := true
		if len(c.items) > 0 {
			applied, err = MatchItem(ev.Basket[i].Item, c.items, at)
			if err != nil {
				return nil, fmt.Errorf("item gate, line %d (%s): %w", i, ev.Basket[i].Name, err)
			}
		}
		ev.Basket[i].Applied = &applied
	}
	return ev, nil
}
