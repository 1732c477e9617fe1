package units

import (
	"fmt"
	"time"
)

// IsTimezoneValid reports whether tz names a zone in the tz database.
func IsTimezoneValid(tz string) bool {
	if tz == "" {
		return false
	}
	_, err := time.LoadLocation(tz)
	return err == nil
}

// ConvertTime renders a stored UTC time in the named zone. An empty name
// or "UTC" leaves t unchanged.
func ConvertTime(t time.Time, tz string) (time.Time, error) {
	if tz == "" || tz == "UTC" {
		return t, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return t, fmt.Errorf("failed to load timezone %s: %w", tz, err)
	}
	return t.In(loc), nil
}
