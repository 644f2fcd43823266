package tariff

import "time"

// IsActiveAt reports whether instant lies strictly inside the tariff's window.
// Both bounds are exclusive, so a tariff whose end precedes its start is never active.
func IsActiveAt(instant time.Time, t *Tariff) bool {
	return t.StartDate.Before(instant) && instant.Before(t.EndDate)
}
