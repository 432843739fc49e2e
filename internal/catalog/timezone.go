package catalog

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata" // The container image ships without a zoneinfo database.
)

// CentralLayout is the floating timestamp format Socrata accepts for calendar_date columns.
const CentralLayout = "2006-01-02T15:04:05"

var central = mustLoadLocation("America/Chicago")

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(fmt.Sprintf("load location %s: %v", name, err))
	}
	return loc
}

// ToCentral converts a UTC catalog timestamp ("2023-03-12T07:00:00.000Z") to US Central
// wall time without offset or fraction. Empty input yields empty output.
func ToCentral(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", nil
	}
	if !strings.HasSuffix(s, "Z") {
		return "", fmt.Errorf("timestamp %q is not UTC", s)
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return "", fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t.In(central).Format(CentralLayout), nil
}
