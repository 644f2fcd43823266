package multitenantengine

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

const maxTenantNameLength = 100

// ErrInvalidTenantName wraps every ValidateTenantName failure
var ErrInvalidTenantName = errors.New("invalid tenant name")

var tenantNamePattern = regexp.MustCompile(`^[\p{L}\p{N}][\p{L}\p{M}\p{N} &'._-]*$`)

// reservedTenantNames collide with API path segments
var reservedTenantNames = map[string]bool{
	"health":  true,
	"metrics": true,
	"tariffs": true,
	"tenants": true,
}

// Tenant is a clinic owning its own set of tariffs
type Tenant struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ValidateTenantName checks a clinic name before it is registered
func ValidateTenantName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: tenant name cannot be empty", ErrInvalidTenantName)
	}
	if len(name) > maxTenantNameLength {
		return fmt.Errorf("%w: tenant name length %d exceeds maximum of %d characters", ErrInvalidTenantName, len(name), maxTenantNameLength)
	}
	if strings.TrimSpace(name) != name {
		return fmt.Errorf("%w: tenant name %q has leading or trailing whitespace", ErrInvalidTenantName, name)
	}
	if !tenantNamePattern.MatchString(name) {
		return fmt.Errorf("%w: tenant name %q must start with a letter or digit and contain only letters, digits, spaces and & ' . _ -", ErrInvalidTenantName, name)
	}
	if reservedTenantNames[strings.ToLower(name)] {
		return fmt.Errorf("%w: cannot use reserved name %q as tenant name", ErrInvalidTenantName, name)
	}
	return nil
}
