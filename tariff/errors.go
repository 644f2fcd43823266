package tariff

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration marks a tariff that cannot be evaluated as authored
	ErrConfiguration  = errors.New("tariff configuration error")
	ErrInvalidTariff  = errors.New("invalid tariff")
	ErrTariffNotFound = errors.New("tariff not found")
	ErrTariffExists   = errors.New("tariff already exists")
)

// ConfigurationError reports a condition that names an unknown operator or
// field, or pairs a field with an operator or target it cannot be compared with.
type ConfigurationError struct {
	Subject  SubjectType
	Field    string
	Operator Operator
	Reason   string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s condition %s(%s): %s", e.Subject, e.Operator, e.Field, e.Reason)
}

// Is lets callers match any ConfigurationError with errors.Is(err, ErrConfiguration)
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

func configErr(subject SubjectType, c Condition, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{
		Subject:  subject,
		Field:    c.Field,
		Operator: c.Operator,
		Reason:   fmt.Sprintf(format, args...),
	}
}
