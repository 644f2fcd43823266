package tariff

import (
	"time"

	"github.com/liamcoop/tariffs/internal/logger"
)

// Observer receives the pipeline's two status observations. Observers are
// notified after a gate has decided and cannot change its outcome.
type Observer interface {
	TariffValidity(t *Tariff, at time.Time, active bool)
	PatientEligibility(t *Tariff, patient Person, eligible bool)
}

// Observers fans notifications out to several observers
type Observers []Observer

func (obs Observers) TariffValidity(t *Tariff, at time.Time, active bool) {
	for _, o := range obs {
		o.TariffValidity(t, at, active)
	}
}

func (obs Observers) PatientEligibility(t *Tariff, patient Person, eligible bool) {
	for _, o := range obs {
		o.PatientEligibility(t, patient, eligible)
	}
}

type nopObserver struct{}

func (nopObserver) TariffValidity(*Tariff, time.Time, bool) {}
func (nopObserver) PatientEligibility(*Tariff, Person, bool) {}

// LogObserver reports gate outcomes as structured log lines
type LogObserver struct{}

func (LogObserver) TariffValidity(t *Tariff, at time.Time, active bool) {
	if active {
		logger.Info("tariff is in active period", "tariff", t.Title, "at", at)
		return
	}
	logger.Info("tariff is not in active period", "tariff", t.Title, "at", at,
		"start", t.StartDate, "end", t.EndDate)
}

func (LogObserver) PatientEligibility(t *Tariff, patient Person, eligible bool) {
	if eligible {
		logger.Info("patient has tariff apply", "tariff", t.Title, "patient", patient.Name)
		return
	}
	logger.Info("patient doesn't have tariff apply", "tariff", t.Title, "patient", patient.Name)
}
